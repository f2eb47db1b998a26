package auth

import (
	"testing"
	"time"

	"github.com/aethra/oficina/internal/config"
	"github.com/aethra/oficina/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJWT(secret string) *JWTService {
	return NewJWTService(config.AuthConfig{JWTSecret: secret, TokenExpiry: time.Hour, Issuer: "oficina"})
}

func TestJWT_GenerateAndValidate_Success(t *testing.T) {
	svc := newTestJWT("secret")

	tok, err := svc.GenerateToken(42, models.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, "Bearer", tok.TokenType)
	assert.NotEmpty(t, tok.AccessToken)

	claims, err := svc.ValidateToken(tok.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)
	assert.Equal(t, "42", claims.Subject)
	assert.NotEmpty(t, claims.ID)
}

func TestJWT_UniqueTokenIDs(t *testing.T) {
	svc := newTestJWT("secret")
	a, err := svc.GenerateToken(1, models.RoleStandardUser)
	require.NoError(t, err)
	b, err := svc.GenerateToken(1, models.RoleStandardUser)
	require.NoError(t, err)

	ca, err := svc.ValidateToken(a.AccessToken)
	require.NoError(t, err)
	cb, err := svc.ValidateToken(b.AccessToken)
	require.NoError(t, err)
	assert.NotEqual(t, ca.ID, cb.ID)
}

func TestJWT_Expired(t *testing.T) {
	svc := newTestJWT("secret")
	svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	tok, err := svc.GenerateToken(1, models.RoleStandardUser)
	require.NoError(t, err)

	svc.now = time.Now
	_, err = svc.ValidateToken(tok.AccessToken)
	require.Error(t, err)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestJWT_WrongSecret(t *testing.T) {
	tok, err := newTestJWT("secret-a").GenerateToken(1, models.RoleStandardUser)
	require.NoError(t, err)

	_, err = newTestJWT("secret-b").ValidateToken(tok.AccessToken)
	assert.Error(t, err)
}

func TestJWT_MalformedString(t *testing.T) {
	_, err := newTestJWT("secret").ValidateToken("not.a.token")
	assert.Error(t, err)
}

func TestJWT_RejectsNoneAlgorithm(t *testing.T) {
	claims := &Claims{UserID: 1, Role: models.RoleAdmin, RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    "oficina",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = newTestJWT("secret").ValidateToken(unsigned)
	assert.Error(t, err)
}

func TestJWT_WrongIssuer(t *testing.T) {
	other := NewJWTService(config.AuthConfig{JWTSecret: "secret", TokenExpiry: time.Hour, Issuer: "someone-else"})
	tok, err := other.GenerateToken(1, models.RoleAdmin)
	require.NoError(t, err)

	_, err = newTestJWT("secret").ValidateToken(tok.AccessToken)
	assert.Error(t, err)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("s3nha-forte")
	require.NoError(t, err)
	assert.NotEqual(t, "s3nha-forte", hash)
	assert.True(t, CheckPassword("s3nha-forte", hash))
	assert.False(t, CheckPassword("errada", hash))
}
