package engine_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/aethra/oficina/internal/engine"
	apperrors "github.com/aethra/oficina/internal/errors"
	"github.com/aethra/oficina/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) register(t *testing.T, email string) *models.Usuario {
	t.Helper()
	u, err := f.users.Register(context.Background(), engine.RegisterInput{Nome: "User", Email: email, Senha: "secret123"})
	require.NoError(t, err)
	return u
}

func TestRegister_FirstUserIsAdmin(t *testing.T) {
	f := newFixture(t)

	first := f.register(t, "Admin@Oficina.com")
	assert.Equal(t, models.RoleAdmin, first.Role)
	assert.Equal(t, "admin@oficina.com", first.Email)
	assert.NotEqual(t, "secret123", first.Senha)

	second := f.register(t, "mecanico@oficina.com")
	assert.Equal(t, models.RoleStandardUser, second.Role)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	f := newFixture(t)
	f.register(t, "ana@oficina.com")

	_, err := f.users.Register(context.Background(), engine.RegisterInput{Nome: "Ana", Email: " ANA@oficina.com", Senha: "secret123"})
	assert.True(t, apperrors.IsConflict(err))
}

func TestRegister_ShortPassword(t *testing.T) {
	f := newFixture(t)
	_, err := f.users.Register(context.Background(), engine.RegisterInput{Nome: "Ana", Email: "ana@oficina.com", Senha: "123"})
	var verr *apperrors.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "senha", verr.Field)
}

func TestAuthenticate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.register(t, "ana@oficina.com")

	got, err := f.users.Authenticate(ctx, "ANA@oficina.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	require.NotNil(t, got.UltimoLogin)

	var unauthorized *apperrors.UnauthorizedError
	_, err = f.users.Authenticate(ctx, "ana@oficina.com", "wrong")
	assert.ErrorAs(t, err, &unauthorized)

	_, err = f.users.Authenticate(ctx, "nobody@oficina.com", "secret123")
	assert.ErrorAs(t, err, &unauthorized)
}

func TestAuthenticate_DisabledAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.register(t, "admin@oficina.com")
	u := f.register(t, "ana@oficina.com")

	require.NoError(t, f.users.Delete(ctx, u.ID, &admin.ID))

	_, err := f.users.Authenticate(ctx, "ana@oficina.com", "secret123")
	var unauthorized *apperrors.UnauthorizedError
	require.ErrorAs(t, err, &unauthorized)
	assert.Equal(t, "account is disabled", unauthorized.Error())

	_, err = f.users.Active(ctx, u.ID)
	assert.ErrorAs(t, err, &unauthorized)
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.register(t, "ana@oficina.com")

	err := f.users.ChangePassword(ctx, u.ID, "wrong", "newsecret")
	var verr *apperrors.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "senha_atual", verr.Field)

	require.NoError(t, f.users.ChangePassword(ctx, u.ID, "secret123", "newsecret"))

	_, err = f.users.Authenticate(ctx, "ana@oficina.com", "newsecret")
	require.NoError(t, err)

	rows := f.history(t, "usuarios", u.ID)
	require.NotEmpty(t, rows)
	assert.Equal(t, "senha", *rows[0].CampoAlterado)
	assert.JSONEq(t, `"***"`, string(*rows[0].ValorNovo))
}

func TestUserUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.register(t, "admin@oficina.com")
	u := f.register(t, "ana@oficina.com")

	updated, err := f.users.Update(ctx, u.ID, engine.UsuarioUpdate{Role: ptr("Administrador")}, &admin.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, updated.Role)

	_, err = f.users.Update(ctx, u.ID, engine.UsuarioUpdate{Role: ptr("root")}, &admin.ID)
	var verr *apperrors.ValidationError
	require.ErrorAs(t, err, &verr)

	_, err = f.users.Update(ctx, admin.ID, engine.UsuarioUpdate{Ativo: ptr(false)}, &admin.ID)
	require.ErrorAs(t, err, &verr)

	_, err = f.users.Update(ctx, u.ID, engine.UsuarioUpdate{Email: ptr("admin@oficina.com")}, &admin.ID)
	assert.True(t, apperrors.IsConflict(err))
}

func TestUserDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.register(t, "admin@oficina.com")
	u := f.register(t, "ana@oficina.com")

	var verr *apperrors.ValidationError
	require.ErrorAs(t, f.users.Delete(ctx, admin.ID, &admin.ID), &verr)

	require.NoError(t, f.users.Delete(ctx, u.ID, &admin.ID))
	assert.True(t, apperrors.IsNotFound(f.users.Delete(ctx, u.ID, &admin.ID)))

	page, err := f.users.List(ctx, engine.QueryParams{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, page.Total)

	page, err = f.users.List(ctx, engine.QueryParams{IncludeInactive: true})
	require.NoError(t, err)
	assert.EqualValues(t, 2, page.Total)
}

func TestUserCreate_ByAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.register(t, "admin@oficina.com")

	u, err := f.users.Create(ctx, engine.UsuarioInput{Nome: "Dev", Email: "dev@oficina.com", Senha: "secret123", Role: "developer"}, &admin.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleDeveloper, u.Role)

	rows := f.history(t, "usuarios", u.ID)
	require.Len(t, rows, 1)
	assert.Equal(t, admin.ID, *rows[0].UsuarioID)
	assert.NotContains(t, string(*rows[0].ValorNovo), "secret123")
}

func TestRegister_ConcurrentFirstUsers(t *testing.T) {
	f := newFixture(t)

	const n = 5
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.users.Register(context.Background(), engine.RegisterInput{
				Nome: "User", Email: fmt.Sprintf("user%d@oficina.com", i), Senha: "secret123",
			})
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	var admins int64
	require.NoError(t, f.db.Model(&models.Usuario{}).Where("role = ?", models.RoleAdmin).Count(&admins).Error)
	assert.Equal(t, int64(1), admins)
}

func TestPasswordTooLong(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	long := strings.Repeat("a", engine.MaxPasswordLen+1)
	var verr *apperrors.ValidationError

	_, err := f.users.Register(ctx, engine.RegisterInput{Nome: "Ana", Email: "ana@oficina.com", Senha: long})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "senha", verr.Field)

	// 72 bytes is still accepted
	u, err := f.users.Register(ctx, engine.RegisterInput{Nome: "Ana", Email: "ana@oficina.com", Senha: long[:engine.MaxPasswordLen]})
	require.NoError(t, err)

	_, err = f.users.Create(ctx, engine.UsuarioInput{Nome: "Bia", Email: "bia@oficina.com", Senha: long}, &u.ID)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "senha", verr.Field)

	_, err = f.users.Update(ctx, u.ID, engine.UsuarioUpdate{Senha: ptr(long)}, &u.ID)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "senha", verr.Field)

	err = f.users.ChangePassword(ctx, u.ID, long[:engine.MaxPasswordLen], long)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "nova_senha", verr.Field)
}
