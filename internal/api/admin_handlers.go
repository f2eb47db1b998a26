// Package api - User administration handlers
package api

import (
	"net/http"

	"github.com/aethra/oficina/internal/engine"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// AdminHandler serves the user management endpoints
type AdminHandler struct {
	users   *engine.UserEngine
	handler *Handler
	logger  logrus.FieldLogger
}

// NewAdminHandler creates an admin handler sharing h's engines
func NewAdminHandler(h *Handler) *AdminHandler {
	return &AdminHandler{users: h.users, handler: h, logger: h.logger}
}

// =============================================================================
// USER MANAGEMENT
// =============================================================================

// ListUsers returns a page of users
// GET /api/usuarios
func (h *AdminHandler) ListUsers(c *gin.Context) {
	result, err := h.users.List(c.Request.Context(), queryParams(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetUser returns one user
// GET /api/usuarios/:id
func (h *AdminHandler) GetUser(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	user, err := h.users.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// CreateUser creates a user with any role
// POST /api/usuarios
func (h *AdminHandler) CreateUser(c *gin.Context) {
	var input engine.UsuarioInput
	if err := bindJSON(c, &input); err != nil {
		respondError(c, h.logger, err)
		return
	}

	user, err := h.users.Create(c.Request.Context(), input, actorID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

// UpdateUser changes a user's data, role or active flag
// PUT /api/usuarios/:id
func (h *AdminHandler) UpdateUser(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	var input engine.UsuarioUpdate
	if err := bindJSON(c, &input); err != nil {
		respondError(c, h.logger, err)
		return
	}

	user, err := h.users.Update(c.Request.Context(), id, input, actorID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// DeleteUser deactivates a user
// DELETE /api/usuarios/:id
func (h *AdminHandler) DeleteUser(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	if err := h.users.Delete(c.Request.Context(), id, actorID(c)); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "user deactivated"})
}

// UserHistory returns the change history of a user
// GET /api/usuarios/:id/historico
func (h *AdminHandler) UserHistory(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	if _, err := h.users.Get(c.Request.Context(), id); err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.handler.respondHistory(c, "usuarios", id)
}
