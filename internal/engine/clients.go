package engine

import (
	"context"
	"strings"

	"github.com/aethra/oficina/internal/audit"
	"github.com/aethra/oficina/internal/database"
	apperrors "github.com/aethra/oficina/internal/errors"
	"github.com/aethra/oficina/internal/models"
	"github.com/aethra/oficina/internal/security"
	"github.com/aethra/oficina/internal/validation"
	"gorm.io/gorm"
)

const tableClientes = "clientes"

var clientSortColumns = map[string]string{
	"nome":       "nome",
	"cidade":     "cidade",
	"created_at": "created_at",
	"id":         "id",
}

// ClienteInput is the payload for creating a client
type ClienteInput struct {
	Nome        string `json:"nome" binding:"required,max=150"`
	CPF         string `json:"cpf" binding:"omitempty,cpf"`
	Telefone    string `json:"telefone" binding:"omitempty,phone_br"`
	Celular     string `json:"celular" binding:"omitempty,phone_br"`
	Email       string `json:"email" binding:"omitempty,email"`
	Endereco    string `json:"endereco" binding:"max=255"`
	Numero      string `json:"numero" binding:"max=20"`
	Complemento string `json:"complemento" binding:"max=100"`
	Bairro      string `json:"bairro" binding:"max=100"`
	Cidade      string `json:"cidade" binding:"max=100"`
	Estado      string `json:"estado" binding:"omitempty,uf"`
	CEP         string `json:"cep" binding:"omitempty,cep"`
	IsEmpresa   bool   `json:"is_empresa"`
	Observacoes string `json:"observacoes"`
	EmpresaID   *uint  `json:"empresa_id"`
}

// ClienteUpdate is a partial update; nil fields are left unchanged
type ClienteUpdate struct {
	Nome        *string `json:"nome" binding:"omitempty,max=150"`
	CPF         *string `json:"cpf" binding:"omitempty,cpf"`
	Telefone    *string `json:"telefone" binding:"omitempty,phone_br"`
	Celular     *string `json:"celular" binding:"omitempty,phone_br"`
	Email       *string `json:"email" binding:"omitempty,email"`
	Endereco    *string `json:"endereco"`
	Numero      *string `json:"numero"`
	Complemento *string `json:"complemento"`
	Bairro      *string `json:"bairro"`
	Cidade      *string `json:"cidade"`
	Estado      *string `json:"estado" binding:"omitempty,uf"`
	CEP         *string `json:"cep" binding:"omitempty,cep"`
	IsEmpresa   *bool   `json:"is_empresa"`
	Observacoes *string `json:"observacoes"`
	EmpresaID   *uint   `json:"empresa_id"`
}

// GetOrCreateResult is the outcome of a lookup-or-create by CPF
type GetOrCreateResult struct {
	Cliente   *models.Cliente `json:"cliente"`
	JaExistia bool            `json:"ja_existia"`
	Reativado bool            `json:"reativado"`
}

// ClientEngine handles client operations
type ClientEngine struct {
	db    *gorm.DB
	audit *audit.Recorder
}

// NewClientEngine creates a new client engine
func NewClientEngine(db *gorm.DB, recorder *audit.Recorder) *ClientEngine {
	return &ClientEngine{db: db, audit: recorder}
}

// =============================================================================
// QUERIES
// =============================================================================

// List returns a page of clients, active only unless IncludeInactive
func (e *ClientEngine) List(ctx context.Context, params QueryParams) (*QueryResult[models.Cliente], error) {
	params.Normalize()
	query := e.listQuery(ctx, params)
	order := security.SortClause(clientSortColumns, params.Sort, params.SortDir, "nome ASC, id ASC")
	return paginate[models.Cliente](query, params, order)
}

// Export returns every client matching params, capped at MaxExportRows
func (e *ClientEngine) Export(ctx context.Context, params QueryParams) ([]models.Cliente, error) {
	params.Normalize()
	query := e.listQuery(ctx, params)
	return all[models.Cliente](query, security.SortClause(clientSortColumns, params.Sort, params.SortDir, "nome ASC, id ASC"))
}

func (e *ClientEngine) listQuery(ctx context.Context, params QueryParams) *gorm.DB {
	query := e.db.WithContext(ctx).Model(&models.Cliente{})
	if !params.IncludeInactive {
		query = query.Where("ativo = ?", true)
	}
	if params.Search != "" {
		dialect := e.db.Dialector.Name()
		cond, args := security.BuildMultiSearchCondition(dialect, []string{"nome", "email", "cpf"}, params.Search)
		// "111.444" should match the digits stored in cpf
		if digits := validation.OnlyDigits(params.Search); digits != "" && digits != params.Search {
			cond = "(" + cond + " OR cpf LIKE ? ESCAPE '" + security.LikeEscapeChar + "')"
			args = append(args, security.ContainsParam(dialect, digits))
		}
		query = query.Where(cond, args...)
	}
	return query.Session(&gorm.Session{})
}

// Get returns a client by id. Inactive clients are not found unless includeInactive.
func (e *ClientEngine) Get(ctx context.Context, id uint, includeInactive bool) (*models.Cliente, error) {
	var c models.Cliente
	query := e.db.WithContext(ctx).Where("id = ?", id)
	if !includeInactive {
		query = query.Where("ativo = ?", true)
	}
	if err := query.Take(&c).Error; err != nil {
		return nil, lookupError(err, "client")
	}
	return &c, nil
}

// FindByCPF returns the client holding cpf, active or not
func (e *ClientEngine) FindByCPF(ctx context.Context, cpf string) (*models.Cliente, error) {
	clean, ok := validation.ValidateCPF(cpf)
	if !ok {
		return nil, apperrors.NewValidationError("cpf", "invalid cpf")
	}
	var c models.Cliente
	if err := e.db.WithContext(ctx).Where("cpf = ?", clean).Take(&c).Error; err != nil {
		return nil, lookupError(err, "client")
	}
	return &c, nil
}

// =============================================================================
// MUTATIONS
// =============================================================================

// Create validates and inserts a new client
func (e *ClientEngine) Create(ctx context.Context, in ClienteInput, actor *uint) (*models.Cliente, error) {
	c := in.toModel()
	normalizeCliente(c)
	if err := validateCliente(c); err != nil {
		return nil, err
	}
	if err := e.ensureCPFAvailable(ctx, c.CPF, 0); err != nil {
		return nil, err
	}

	if err := e.db.WithContext(ctx).Create(c).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return nil, apperrors.NewConflictError("client", "cpf")
		}
		return nil, apperrors.NewInternalError(err)
	}

	e.audit.Record(ctx, tableClientes, c.ID, models.AcaoCreate, c, actor)
	return c, nil
}

// GetOrCreate looks a client up by CPF. An active match is returned as is,
// an inactive one is reactivated with the supplied fields, and a missing one
// is created. The unique index on cpf settles concurrent creators: the loser
// re-reads the winner's row.
func (e *ClientEngine) GetOrCreate(ctx context.Context, in ClienteInput, actor *uint) (*GetOrCreateResult, error) {
	c := in.toModel()
	normalizeCliente(c)
	if c.CPF == nil {
		return nil, apperrors.NewValidationError("cpf", "cpf is required")
	}
	if err := validateCliente(c); err != nil {
		return nil, err
	}

	for attempt := 0; attempt < 2; attempt++ {
		existing, err := e.FindByCPF(ctx, *c.CPF)
		switch {
		case err == nil && existing.Ativo:
			return &GetOrCreateResult{Cliente: existing, JaExistia: true}, nil
		case err == nil:
			reactivated, err := e.reactivate(ctx, existing, c, actor)
			if err != nil {
				return nil, err
			}
			return &GetOrCreateResult{Cliente: reactivated, JaExistia: true, Reativado: true}, nil
		case !apperrors.IsNotFound(err):
			return nil, err
		}

		created, err := e.Create(ctx, in, actor)
		if err == nil {
			return &GetOrCreateResult{Cliente: created}, nil
		}
		if !apperrors.IsConflict(err) {
			return nil, err
		}
	}
	return nil, apperrors.NewConflictError("client", "cpf")
}

func (e *ClientEngine) reactivate(ctx context.Context, existing, supplied *models.Cliente, actor *uint) (*models.Cliente, error) {
	before := *existing
	after := *existing
	mergeNonEmpty(&after, supplied)
	after.Ativo = true

	if err := e.db.WithContext(ctx).Save(&after).Error; err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	e.recordUpdate(ctx, &before, &after, actor)
	return &after, nil
}

// Update applies a partial update to an active client
func (e *ClientEngine) Update(ctx context.Context, id uint, in ClienteUpdate, actor *uint) (*models.Cliente, error) {
	current, err := e.Get(ctx, id, false)
	if err != nil {
		return nil, err
	}

	before := *current
	after := *current
	in.apply(&after)
	normalizeCliente(&after)
	if err := validateCliente(&after); err != nil {
		return nil, err
	}
	if after.CPFValue() != before.CPFValue() {
		if err := e.ensureCPFAvailable(ctx, after.CPF, id); err != nil {
			return nil, err
		}
	}

	if err := e.db.WithContext(ctx).Save(&after).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return nil, apperrors.NewConflictError("client", "cpf")
		}
		return nil, apperrors.NewInternalError(err)
	}

	e.recordUpdate(ctx, &before, &after, actor)
	return &after, nil
}

// Delete deactivates a client. Its row and quotes are kept.
func (e *ClientEngine) Delete(ctx context.Context, id uint, actor *uint) error {
	current, err := e.Get(ctx, id, false)
	if err != nil {
		return err
	}

	if err := e.db.WithContext(ctx).Model(&models.Cliente{}).Where("id = ?", id).Update("ativo", false).Error; err != nil {
		return apperrors.NewInternalError(err)
	}

	e.audit.Record(ctx, tableClientes, id, models.AcaoDelete, current, actor)
	return nil
}

func (e *ClientEngine) recordUpdate(ctx context.Context, before, after *models.Cliente, actor *uint) {
	changes, err := audit.Diff(before, after)
	if err != nil {
		changes = audit.Changes{}
	}
	e.audit.Record(ctx, tableClientes, after.ID, models.AcaoUpdate, changes, actor)
}

// ensureCPFAvailable rejects a CPF already held by another client, active
// or not. Inactive holders are brought back through GetOrCreate instead.
func (e *ClientEngine) ensureCPFAvailable(ctx context.Context, cpf *string, exceptID uint) error {
	if cpf == nil {
		return nil
	}
	var count int64
	err := e.db.WithContext(ctx).Model(&models.Cliente{}).
		Where("cpf = ? AND id <> ?", *cpf, exceptID).
		Count(&count).Error
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	if count > 0 {
		return apperrors.NewConflictError("client", "cpf")
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (in ClienteInput) toModel() *models.Cliente {
	c := &models.Cliente{
		Nome:        in.Nome,
		Telefone:    in.Telefone,
		Celular:     in.Celular,
		Email:       in.Email,
		Endereco:    in.Endereco,
		Numero:      in.Numero,
		Complemento: in.Complemento,
		Bairro:      in.Bairro,
		Cidade:      in.Cidade,
		Estado:      in.Estado,
		CEP:         in.CEP,
		IsEmpresa:   in.IsEmpresa,
		Observacoes: in.Observacoes,
		EmpresaID:   in.EmpresaID,
		Ativo:       true,
	}
	if in.CPF != "" {
		cpf := in.CPF
		c.CPF = &cpf
	}
	return c
}

func (in ClienteUpdate) apply(c *models.Cliente) {
	if in.Nome != nil {
		c.Nome = *in.Nome
	}
	if in.CPF != nil {
		cpf := *in.CPF
		c.CPF = &cpf
	}
	if in.Telefone != nil {
		c.Telefone = *in.Telefone
	}
	if in.Celular != nil {
		c.Celular = *in.Celular
	}
	if in.Email != nil {
		c.Email = *in.Email
	}
	if in.Endereco != nil {
		c.Endereco = *in.Endereco
	}
	if in.Numero != nil {
		c.Numero = *in.Numero
	}
	if in.Complemento != nil {
		c.Complemento = *in.Complemento
	}
	if in.Bairro != nil {
		c.Bairro = *in.Bairro
	}
	if in.Cidade != nil {
		c.Cidade = *in.Cidade
	}
	if in.Estado != nil {
		c.Estado = *in.Estado
	}
	if in.CEP != nil {
		c.CEP = *in.CEP
	}
	if in.IsEmpresa != nil {
		c.IsEmpresa = *in.IsEmpresa
	}
	if in.Observacoes != nil {
		c.Observacoes = *in.Observacoes
	}
	if in.EmpresaID != nil {
		c.EmpresaID = in.EmpresaID
	}
}

// mergeNonEmpty copies the non-empty contact and address fields of src into dst
func mergeNonEmpty(dst, src *models.Cliente) {
	set := func(d *string, s string) {
		if s != "" {
			*d = s
		}
	}
	set(&dst.Nome, src.Nome)
	set(&dst.Telefone, src.Telefone)
	set(&dst.Celular, src.Celular)
	set(&dst.Email, src.Email)
	set(&dst.Endereco, src.Endereco)
	set(&dst.Numero, src.Numero)
	set(&dst.Complemento, src.Complemento)
	set(&dst.Bairro, src.Bairro)
	set(&dst.Cidade, src.Cidade)
	set(&dst.Estado, src.Estado)
	set(&dst.CEP, src.CEP)
	set(&dst.Observacoes, src.Observacoes)
}

func normalizeCliente(c *models.Cliente) {
	c.Nome = strings.TrimSpace(c.Nome)
	if c.CPF != nil {
		digits := validation.OnlyDigits(*c.CPF)
		if digits == "" && strings.TrimSpace(*c.CPF) == "" {
			c.CPF = nil
		} else {
			c.CPF = &digits
		}
	}
	c.Email = models.TrimmedEmail(c.Email)
	c.Telefone = strings.TrimSpace(c.Telefone)
	c.Celular = strings.TrimSpace(c.Celular)
	c.Estado = strings.ToUpper(strings.TrimSpace(c.Estado))
	c.CEP = validation.NormalizeCEP(c.CEP)
}

func validateCliente(c *models.Cliente) error {
	fields := map[string]string{}
	if c.Nome == "" {
		fields["nome"] = "is required"
	}
	if c.CPF != nil && !validation.IsValidCPF(*c.CPF) {
		fields["cpf"] = "must be a valid CPF"
	}
	if c.Email != "" && !validation.IsValidEmail(c.Email) {
		fields["email"] = "must be a valid email"
	}
	if c.Telefone != "" && !validation.IsValidPhone(c.Telefone) {
		fields["telefone"] = "must be a valid phone number"
	}
	if c.Celular != "" && !validation.IsValidPhone(c.Celular) {
		fields["celular"] = "must be a valid phone number"
	}
	if c.CEP != "" && !validation.IsValidCEP(c.CEP) {
		fields["cep"] = "must be a valid CEP"
	}
	if c.Estado != "" && !validation.IsValidUF(c.Estado) {
		fields["estado"] = "must be a valid UF"
	}
	if len(fields) > 0 {
		return apperrors.NewValidationErrors(fields)
	}
	return nil
}
