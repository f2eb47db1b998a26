// Package api contains the HTTP API handlers for the shop
package api

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aethra/oficina/internal/audit"
	"github.com/aethra/oficina/internal/auth"
	"github.com/aethra/oficina/internal/config"
	"github.com/aethra/oficina/internal/database"
	"github.com/aethra/oficina/internal/engine"
	apperrors "github.com/aethra/oficina/internal/errors"
	"github.com/aethra/oficina/internal/export"
	"github.com/aethra/oficina/internal/models"
	"github.com/aethra/oficina/internal/validation"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Version is reported by the health check
var Version = "1.0.0"

const (
	ctxUserID    = "user_id"
	ctxRole      = "role"
	ctxUsuario   = "usuario"
	ctxRequestID = "request_id"

	headerRequestID = "X-Request-ID"
)

// Handler contains the resource API handlers
type Handler struct {
	db      *gorm.DB
	clients *engine.ClientEngine
	quotes  *engine.QuoteEngine
	users   *engine.UserEngine
	company *engine.CompanyEngine
	history *audit.Recorder
	jwt     *auth.JWTService
	logger  logrus.FieldLogger
}

// NewHandler builds the engines on db and the handler serving them
func NewHandler(db *gorm.DB, cfg *config.Config, logger logrus.FieldLogger) *Handler {
	recorder := audit.NewRecorder(db, logger)
	return &Handler{
		db:      db,
		clients: engine.NewClientEngine(db, recorder),
		quotes:  engine.NewQuoteEngine(db, recorder, cfg.Quote.ValidityDays),
		users:   engine.NewUserEngine(db, recorder),
		company: engine.NewCompanyEngine(db, recorder),
		history: recorder,
		jwt:     auth.NewJWTService(cfg.Auth),
		logger:  logger,
	}
}

// =============================================================================
// MIDDLEWARE
// =============================================================================

// RequestID tags every request with an id, reusing the caller's header
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(headerRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(ctxRequestID, id)
		c.Header(headerRequestID, id)
		c.Next()
	}
}

// RequestLogger logs one entry per request once it has been served
func RequestLogger(logger logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		entry := logger.WithFields(logrus.Fields{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     status,
			"latency_ms": time.Since(start).Milliseconds(),
			"client_ip":  c.ClientIP(),
			"request_id": c.GetString(ctxRequestID),
		})
		switch {
		case status >= http.StatusInternalServerError:
			entry.Error("request failed")
		case status >= http.StatusBadRequest:
			entry.Warn("request rejected")
		default:
			entry.Info("request served")
		}
	}
}

// RequireAuthMiddleware validates the bearer token and loads its user.
// Tokens of deleted or deactivated users are rejected.
func (h *Handler) RequireAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			h.abort(c, apperrors.NewUnauthorizedError("missing bearer token"))
			return
		}

		claims, err := h.jwt.ValidateToken(strings.TrimSpace(token))
		if err != nil {
			h.abort(c, apperrors.NewUnauthorizedError("invalid or expired token"))
			return
		}

		user, err := h.users.Active(c.Request.Context(), claims.UserID)
		if err != nil {
			h.abort(c, err)
			return
		}

		c.Set(ctxUserID, user.ID)
		c.Set(ctxRole, user.Role)
		c.Set(ctxUsuario, user)
		c.Next()
	}
}

// PermissionMiddleware checks the caller's role against resource and action
func (h *Handler) PermissionMiddleware(resource auth.Resource, action auth.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !auth.CheckPermission(currentRole(c), resource, action) {
			h.abort(c, apperrors.NewPermissionDeniedError(string(action), string(resource)))
			return
		}
		c.Next()
	}
}

// RequireAdminMiddleware requires the admin or developer role
func (h *Handler) RequireAdminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !currentRole(c).IsAdmin() {
			h.abort(c, apperrors.NewPermissionDeniedError("admin", "api"))
			return
		}
		c.Next()
	}
}

func (h *Handler) abort(c *gin.Context, err error) {
	respondError(c, h.logger, err)
	c.Abort()
}

// =============================================================================
// HEALTH CHECK
// =============================================================================

// Health reports liveness and database reachability
// GET /api/health
func (h *Handler) Health(c *gin.Context) {
	status, dbStatus, code := "ok", "ok", http.StatusOK
	if err := database.Ping(h.db); err != nil {
		config.LogError(h.logger, "api", "Health", "ping database", nil, err)
		status, dbStatus, code = "degraded", "unreachable", http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status":   status,
		"service":  "oficina",
		"version":  Version,
		"database": dbStatus,
	})
}

// =============================================================================
// HELPERS
// =============================================================================

// respondError renders err with the error taxonomy. Internal causes are
// logged, never sent.
func respondError(c *gin.Context, logger logrus.FieldLogger, err error) {
	status, body := apperrors.ToHTTPError(err)
	if status >= http.StatusInternalServerError {
		config.LogError(logger, "api", c.HandlerName(), c.Request.Method+" "+c.Request.URL.Path, logrus.Fields{
			"request_id": c.GetString(ctxRequestID),
		}, err)
	}
	var rl *apperrors.RateLimitError
	if errors.As(err, &rl) {
		c.Header("Retry-After", strconv.Itoa(rl.RetryAfterSeconds))
	}
	c.JSON(status, body)
}

// bindJSON decodes the body into dst, turning binding failures into a
// ValidationError with one entry per field
func bindJSON(c *gin.Context, dst interface{}) error {
	if err := c.ShouldBindJSON(dst); err != nil {
		if fields := validation.FieldErrors(err); len(fields) > 0 {
			return apperrors.NewValidationErrors(fields)
		}
		return apperrors.NewValidationError("body", "invalid request body")
	}
	return nil
}

func parseID(c *gin.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, apperrors.NewValidationError("id", "invalid id")
	}
	return uint(id), nil
}

// queryParams reads page, limit (or page_size), search, status, sort,
// sort_dir and incluir_inativos
func queryParams(c *gin.Context) engine.QueryParams {
	limit := c.Query("limit")
	if limit == "" {
		limit = c.Query("page_size")
	}
	return engine.QueryParams{
		Page:            parseIntParam(c.Query("page"), 1),
		PageSize:        parseIntParam(limit, engine.DefaultPageSize),
		Search:          c.Query("search"),
		Status:          c.Query("status"),
		Sort:            c.Query("sort"),
		SortDir:         c.Query("sort_dir"),
		IncludeInactive: parseBoolParam(c.Query("incluir_inativos")),
	}
}

func parseIntParam(value string, defaultValue int) int {
	if value == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return i
}

func parseBoolParam(value string) bool {
	b, err := strconv.ParseBool(value)
	return err == nil && b
}

// actorID returns the authenticated user id for audit rows
func actorID(c *gin.Context) *uint {
	v, ok := c.Get(ctxUserID)
	if !ok {
		return nil
	}
	id, ok := v.(uint)
	if !ok {
		return nil
	}
	return &id
}

func currentRole(c *gin.Context) models.Role {
	if v, ok := c.Get(ctxRole); ok {
		if role, ok := v.(models.Role); ok {
			return role
		}
	}
	return ""
}

func currentUser(c *gin.Context) *models.Usuario {
	if v, ok := c.Get(ctxUsuario); ok {
		if u, ok := v.(*models.Usuario); ok {
			return u
		}
	}
	return nil
}

// sendWorkbook renders a workbook into memory before answering so a
// failure can still be reported as JSON
func sendWorkbook(c *gin.Context, logger logrus.FieldLogger, filename string, render func(*bytes.Buffer) error) {
	var buf bytes.Buffer
	if err := render(&buf); err != nil {
		respondError(c, logger, apperrors.NewInternalError(err))
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, export.ContentType, buf.Bytes())
}
