// Package api - Authentication handlers
package api

import (
	"math"
	"net/http"
	"strings"

	"github.com/aethra/oficina/internal/auth"
	"github.com/aethra/oficina/internal/engine"
	apperrors "github.com/aethra/oficina/internal/errors"
	"github.com/aethra/oficina/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	users       *engine.UserEngine
	jwtService  *auth.JWTService
	rateLimiter *auth.LoginRateLimiter
	logger      logrus.FieldLogger
}

// NewAuthHandler creates an auth handler sharing h's engines
func NewAuthHandler(h *Handler) *AuthHandler {
	return &AuthHandler{
		users:       h.users,
		jwtService:  h.jwt,
		rateLimiter: auth.NewLoginRateLimiter(),
		logger:      h.logger,
	}
}

// Close stops the rate limiter cleanup
func (h *AuthHandler) Close() {
	h.rateLimiter.Stop()
}

// LoginRequest represents login credentials
type LoginRequest struct {
	Email string `json:"email" binding:"required,email"`
	Senha string `json:"senha" binding:"required"`
}

// ChangePasswordRequest is the body of PUT /api/auth/senha
type ChangePasswordRequest struct {
	SenhaAtual string `json:"senha_atual" binding:"required"`
	NovaSenha  string `json:"nova_senha" binding:"required,min=6,max=72"`
}

// Login authenticates a user and returns a token
// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := bindJSON(c, &req); err != nil {
		respondError(c, h.logger, err)
		return
	}

	// Rate limiting key: IP + email combination
	rateLimitKey := c.ClientIP() + ":" + strings.ToLower(strings.TrimSpace(req.Email))
	allowed, _, retryAfter := h.rateLimiter.Allow(rateLimitKey)
	if !allowed {
		respondError(c, h.logger, apperrors.NewRateLimitError(int(math.Ceil(retryAfter.Seconds()))))
		return
	}

	user, err := h.users.Authenticate(c.Request.Context(), req.Email, req.Senha)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.rateLimiter.Reset(rateLimitKey)

	h.respondWithToken(c, http.StatusOK, user)
}

// Register creates an account and logs it in
// POST /api/auth/registrar
func (h *AuthHandler) Register(c *gin.Context) {
	var req engine.RegisterInput
	if err := bindJSON(c, &req); err != nil {
		respondError(c, h.logger, err)
		return
	}

	user, err := h.users.Register(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.respondWithToken(c, http.StatusCreated, user)
}

// GetPerfil returns the current authenticated user
// GET /api/auth/perfil
func (h *AuthHandler) GetPerfil(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		respondError(c, h.logger, apperrors.NewUnauthorizedError("not authenticated"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"usuario": user})
}

// UpdatePerfil changes the current user's name or email
// PUT /api/auth/perfil
func (h *AuthHandler) UpdatePerfil(c *gin.Context) {
	var req engine.PerfilUpdate
	if err := bindJSON(c, &req); err != nil {
		respondError(c, h.logger, err)
		return
	}

	id := actorID(c)
	if id == nil {
		respondError(c, h.logger, apperrors.NewUnauthorizedError("not authenticated"))
		return
	}

	user, err := h.users.UpdateProfile(c.Request.Context(), *id, req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"usuario": user})
}

// ChangePassword changes the current user's password
// PUT /api/auth/senha
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req ChangePasswordRequest
	if err := bindJSON(c, &req); err != nil {
		respondError(c, h.logger, err)
		return
	}

	id := actorID(c)
	if id == nil {
		respondError(c, h.logger, apperrors.NewUnauthorizedError("not authenticated"))
		return
	}

	if err := h.users.ChangePassword(c.Request.Context(), *id, req.SenhaAtual, req.NovaSenha); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "password changed successfully"})
}

func (h *AuthHandler) respondWithToken(c *gin.Context, status int, user *models.Usuario) {
	token, err := h.jwtService.GenerateToken(user.ID, user.Role)
	if err != nil {
		respondError(c, h.logger, apperrors.NewInternalError(err))
		return
	}

	c.JSON(status, gin.H{
		"usuario":    user,
		"token":      token.AccessToken,
		"token_type": token.TokenType,
		"expires_at": token.ExpiresAt,
	})
}
