package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aethra/oficina/internal/audit"
	"github.com/aethra/oficina/internal/auth"
	"github.com/aethra/oficina/internal/database"
	apperrors "github.com/aethra/oficina/internal/errors"
	"github.com/aethra/oficina/internal/models"
	"github.com/aethra/oficina/internal/numbering"
	"github.com/aethra/oficina/internal/security"
	"github.com/aethra/oficina/internal/validation"
	"gorm.io/gorm"
)

const (
	tableUsuarios        = "usuarios"
	registrationSequence = "usuarios_registro"
	MinPasswordLen       = 6

	// MaxPasswordLen is the bcrypt input limit, in bytes
	MaxPasswordLen = 72
)

var userSortColumns = map[string]string{
	"nome":       "nome",
	"email":      "email",
	"created_at": "created_at",
}

// usuarioDiffSkip keeps login bookkeeping out of the change history
var usuarioDiffSkip = []string{"ultimo_login"}

// RegisterInput is the self-registration payload
type RegisterInput struct {
	Nome  string `json:"nome" binding:"required,max=150"`
	Email string `json:"email" binding:"required,email"`
	Senha string `json:"senha" binding:"required,min=6,max=72"`
}

// UsuarioInput is the admin payload for creating a user
type UsuarioInput struct {
	Nome  string `json:"nome" binding:"required,max=150"`
	Email string `json:"email" binding:"required,email"`
	Senha string `json:"senha" binding:"required,min=6,max=72"`
	Role  string `json:"role"`
}

// UsuarioUpdate is the admin partial update
type UsuarioUpdate struct {
	Nome  *string `json:"nome" binding:"omitempty,max=150"`
	Email *string `json:"email" binding:"omitempty,email"`
	Senha *string `json:"senha" binding:"omitempty,min=6,max=72"`
	Role  *string `json:"role"`
	Ativo *bool   `json:"ativo"`
}

// PerfilUpdate is the self-service profile update
type PerfilUpdate struct {
	Nome  *string `json:"nome" binding:"omitempty,max=150"`
	Email *string `json:"email" binding:"omitempty,email"`
}

// UserEngine handles user accounts
type UserEngine struct {
	db    *gorm.DB
	audit *audit.Recorder
	now   func() time.Time
}

// NewUserEngine creates a new user engine
func NewUserEngine(db *gorm.DB, recorder *audit.Recorder) *UserEngine {
	return &UserEngine{db: db, audit: recorder, now: time.Now}
}

// =============================================================================
// AUTHENTICATION
// =============================================================================

// Register creates a standard user. The very first account becomes admin
// so a fresh installation can be managed. Registrations take the
// registration counter row lock first, so only one of several concurrent
// first registrations can see an empty table.
func (e *UserEngine) Register(ctx context.Context, in RegisterInput) (*models.Usuario, error) {
	u, err := e.prepare(ctx, in.Nome, in.Email, in.Senha, models.RoleStandardUser)
	if err != nil {
		return nil, err
	}

	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := numbering.Next(tx, registrationSequence); err != nil {
			return err
		}
		var count int64
		if err := tx.Model(&models.Usuario{}).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			u.Role = models.RoleAdmin
		}
		return tx.Create(u).Error
	})
	if err != nil {
		return nil, insertUserError(err)
	}

	e.audit.Record(ctx, tableUsuarios, u.ID, models.AcaoCreate, u, &u.ID)
	return u, nil
}

// Authenticate checks credentials and stamps the login time
func (e *UserEngine) Authenticate(ctx context.Context, email, senha string) (*models.Usuario, error) {
	var u models.Usuario
	err := e.db.WithContext(ctx).Where("email = ?", models.TrimmedEmail(email)).Take(&u).Error
	if err != nil {
		if apperrors.IsNotFound(lookupError(err, "user")) {
			return nil, apperrors.NewUnauthorizedError("invalid credentials")
		}
		return nil, apperrors.NewInternalError(err)
	}
	if !auth.CheckPassword(senha, u.Senha) {
		return nil, apperrors.NewUnauthorizedError("invalid credentials")
	}
	if !u.Ativo {
		return nil, apperrors.NewUnauthorizedError("account is disabled")
	}

	now := e.now()
	u.UltimoLogin = &now
	if err := e.db.WithContext(ctx).Model(&models.Usuario{}).Where("id = ?", u.ID).Update("ultimo_login", now).Error; err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &u, nil
}

// Active returns the user if it exists and is active. Used on every
// authenticated request.
func (e *UserEngine) Active(ctx context.Context, id uint) (*models.Usuario, error) {
	var u models.Usuario
	err := e.db.WithContext(ctx).Where("id = ?", id).Take(&u).Error
	if err != nil {
		if apperrors.IsNotFound(lookupError(err, "user")) {
			return nil, apperrors.NewUnauthorizedError("user no longer exists")
		}
		return nil, apperrors.NewInternalError(err)
	}
	if !u.Ativo {
		return nil, apperrors.NewUnauthorizedError("account is disabled")
	}
	return &u, nil
}

// UpdateProfile lets a user change their own name and email
func (e *UserEngine) UpdateProfile(ctx context.Context, id uint, in PerfilUpdate) (*models.Usuario, error) {
	return e.Update(ctx, id, UsuarioUpdate{Nome: in.Nome, Email: in.Email}, &id)
}

// ChangePassword replaces the password after checking the current one
func (e *UserEngine) ChangePassword(ctx context.Context, id uint, atual, nova string) error {
	u, err := e.Active(ctx, id)
	if err != nil {
		return err
	}
	if !auth.CheckPassword(atual, u.Senha) {
		return apperrors.NewValidationError("senha_atual", "current password is incorrect")
	}
	if err := checkPasswordLen("nova_senha", nova); err != nil {
		return err
	}
	hash, err := auth.HashPassword(nova)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	if err := e.db.WithContext(ctx).Model(&models.Usuario{}).Where("id = ?", id).Update("senha", hash).Error; err != nil {
		return apperrors.NewInternalError(err)
	}
	// the hash itself is never recorded
	e.audit.Record(ctx, tableUsuarios, id, models.AcaoUpdate, audit.Changes{
		"senha": {Anterior: "***", Novo: "***"},
	}, &id)
	return nil
}

// =============================================================================
// ADMINISTRATION
// =============================================================================

// List returns a page of users
func (e *UserEngine) List(ctx context.Context, params QueryParams) (*QueryResult[models.Usuario], error) {
	params.Normalize()
	query := e.db.WithContext(ctx).Model(&models.Usuario{})
	if !params.IncludeInactive {
		query = query.Where("ativo = ?", true)
	}
	if params.Search != "" {
		cond, args := security.BuildMultiSearchCondition(e.db.Dialector.Name(), []string{"nome", "email"}, params.Search)
		query = query.Where(cond, args...)
	}
	order := security.SortClause(userSortColumns, params.Sort, params.SortDir, "nome ASC, id ASC")
	return paginate[models.Usuario](query.Session(&gorm.Session{}), params, order)
}

// Get returns any user by id
func (e *UserEngine) Get(ctx context.Context, id uint) (*models.Usuario, error) {
	var u models.Usuario
	if err := e.db.WithContext(ctx).Where("id = ?", id).Take(&u).Error; err != nil {
		return nil, lookupError(err, "user")
	}
	return &u, nil
}

// Create adds a user with the given role (standard user when empty)
func (e *UserEngine) Create(ctx context.Context, in UsuarioInput, actor *uint) (*models.Usuario, error) {
	role := models.RoleStandardUser
	if in.Role != "" {
		r, ok := auth.NormalizeRole(in.Role)
		if !ok {
			return nil, apperrors.NewValidationError("role", "unknown role")
		}
		role = r
	}
	return e.create(ctx, in.Nome, in.Email, in.Senha, role, actor)
}

func (e *UserEngine) create(ctx context.Context, nome, email, senha string, role models.Role, actor *uint) (*models.Usuario, error) {
	u, err := e.prepare(ctx, nome, email, senha, role)
	if err != nil {
		return nil, err
	}
	if err := e.db.WithContext(ctx).Create(u).Error; err != nil {
		return nil, insertUserError(err)
	}

	who := actor
	if who == nil {
		who = &u.ID
	}
	e.audit.Record(ctx, tableUsuarios, u.ID, models.AcaoCreate, u, who)
	return u, nil
}

// prepare validates a new account and hashes its password
func (e *UserEngine) prepare(ctx context.Context, nome, email, senha string, role models.Role) (*models.Usuario, error) {
	u := &models.Usuario{
		Nome:  strings.TrimSpace(nome),
		Email: models.TrimmedEmail(email),
		Role:  role,
		Ativo: true,
	}
	if err := validateUsuario(u); err != nil {
		return nil, err
	}
	if err := checkPasswordLen("senha", senha); err != nil {
		return nil, err
	}
	if err := e.ensureEmailAvailable(ctx, u.Email, 0); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(senha)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	u.Senha = hash
	return u, nil
}

func insertUserError(err error) error {
	if database.IsUniqueViolation(err) {
		return apperrors.NewConflictError("user", "email")
	}
	return apperrors.NewInternalError(err)
}

// Update applies a partial update. A user cannot deactivate themselves.
func (e *UserEngine) Update(ctx context.Context, id uint, in UsuarioUpdate, actor *uint) (*models.Usuario, error) {
	current, err := e.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	before := *current
	after := *current
	if in.Nome != nil {
		after.Nome = strings.TrimSpace(*in.Nome)
	}
	if in.Email != nil {
		after.Email = models.TrimmedEmail(*in.Email)
	}
	if in.Role != nil {
		r, ok := auth.NormalizeRole(*in.Role)
		if !ok {
			return nil, apperrors.NewValidationError("role", "unknown role")
		}
		after.Role = r
	}
	if in.Ativo != nil {
		if !*in.Ativo && actor != nil && *actor == id {
			return nil, apperrors.NewValidationError("ativo", "you cannot deactivate your own account")
		}
		after.Ativo = *in.Ativo
	}
	if in.Senha != nil {
		if err := checkPasswordLen("senha", *in.Senha); err != nil {
			return nil, err
		}
		hash, err := auth.HashPassword(*in.Senha)
		if err != nil {
			return nil, apperrors.NewInternalError(err)
		}
		after.Senha = hash
	}
	if err := validateUsuario(&after); err != nil {
		return nil, err
	}
	if after.Email != before.Email {
		if err := e.ensureEmailAvailable(ctx, after.Email, id); err != nil {
			return nil, err
		}
	}

	if err := e.db.WithContext(ctx).Save(&after).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return nil, apperrors.NewConflictError("user", "email")
		}
		return nil, apperrors.NewInternalError(err)
	}

	changes, err := audit.Diff(&before, &after, usuarioDiffSkip...)
	if err != nil {
		changes = audit.Changes{}
	}
	if after.Senha != before.Senha {
		changes["senha"] = audit.Change{Anterior: "***", Novo: "***"}
	}
	e.audit.Record(ctx, tableUsuarios, id, models.AcaoUpdate, changes, actor)
	return &after, nil
}

// Delete deactivates a user. Accounts are never removed so their history
// keeps a valid actor.
func (e *UserEngine) Delete(ctx context.Context, id uint, actor *uint) error {
	if actor != nil && *actor == id {
		return apperrors.NewValidationError("id", "you cannot delete your own account")
	}
	current, err := e.Get(ctx, id)
	if err != nil {
		return err
	}
	if !current.Ativo {
		return apperrors.NewNotFoundError("user")
	}
	if err := e.db.WithContext(ctx).Model(&models.Usuario{}).Where("id = ?", id).Update("ativo", false).Error; err != nil {
		return apperrors.NewInternalError(err)
	}
	e.audit.Record(ctx, tableUsuarios, id, models.AcaoDelete, current, actor)
	return nil
}

func (e *UserEngine) ensureEmailAvailable(ctx context.Context, email string, exceptID uint) error {
	var count int64
	err := e.db.WithContext(ctx).Model(&models.Usuario{}).
		Where("email = ? AND id <> ?", email, exceptID).
		Count(&count).Error
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	if count > 0 {
		return apperrors.NewConflictError("user", "email")
	}
	return nil
}

func checkPasswordLen(field, senha string) error {
	switch {
	case len(senha) < MinPasswordLen:
		return apperrors.NewValidationError(field, fmt.Sprintf("must be at least %d characters", MinPasswordLen))
	case len(senha) > MaxPasswordLen:
		return apperrors.NewValidationError(field, fmt.Sprintf("must be at most %d bytes", MaxPasswordLen))
	}
	return nil
}

func validateUsuario(u *models.Usuario) error {
	fields := map[string]string{}
	if u.Nome == "" {
		fields["nome"] = "is required"
	}
	if !validation.IsValidEmail(u.Email) {
		fields["email"] = "must be a valid email"
	}
	if !u.Role.Valid() {
		fields["role"] = "unknown role"
	}
	if len(fields) > 0 {
		return apperrors.NewValidationErrors(fields)
	}
	return nil
}
