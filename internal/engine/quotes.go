package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aethra/oficina/internal/audit"
	"github.com/aethra/oficina/internal/database"
	apperrors "github.com/aethra/oficina/internal/errors"
	"github.com/aethra/oficina/internal/models"
	"github.com/aethra/oficina/internal/numbering"
	"github.com/aethra/oficina/internal/security"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const tableOrcamentos = "orcamentos"

var quoteSortColumns = map[string]string{
	"numero":        "numero",
	"data_criacao":  "data_criacao",
	"data_validade": "data_validade",
	"valor_final":   "valor_final",
	"status":        "status",
}

// quoteDiffSkip lists fields of a quote that are not persisted columns
var quoteDiffSkip = []string{"cliente", "vencido"}

// OrcamentoInput is the payload for creating a quote
type OrcamentoInput struct {
	ClienteID        uint                   `json:"cliente_id" binding:"required"`
	DataValidade     string                 `json:"data_validade"`
	VeiculoMarca     string                 `json:"veiculo_marca" binding:"max=50"`
	VeiculoModelo    string                 `json:"veiculo_modelo" binding:"max=100"`
	VeiculoAno       string                 `json:"veiculo_ano" binding:"max=10"`
	VeiculoPlaca     string                 `json:"veiculo_placa" binding:"max=10"`
	VeiculoCor       string                 `json:"veiculo_cor" binding:"max=30"`
	VeiculoKm        string                 `json:"veiculo_km" binding:"max=20"`
	ProblemaRelatado string                 `json:"problema_relatado"`
	ServicoExecutado string                 `json:"servico_executado"`
	FormaPagamento   string                 `json:"forma_pagamento" binding:"max=100"`
	Garantia         string                 `json:"garantia" binding:"max=100"`
	Itens            []models.ItemOrcamento `json:"itens"`
	TotalDesconto    decimal.Decimal        `json:"total_desconto"`
	Observacoes      string                 `json:"observacoes"`
}

// OrcamentoUpdate is a partial update; nil fields are left unchanged.
// Itens, when present, replaces the whole list.
type OrcamentoUpdate struct {
	ClienteID        *uint                   `json:"cliente_id"`
	DataValidade     *string                 `json:"data_validade"`
	Status           *models.StatusOrcamento `json:"status"`
	VeiculoMarca     *string                 `json:"veiculo_marca"`
	VeiculoModelo    *string                 `json:"veiculo_modelo"`
	VeiculoAno       *string                 `json:"veiculo_ano"`
	VeiculoPlaca     *string                 `json:"veiculo_placa"`
	VeiculoCor       *string                 `json:"veiculo_cor"`
	VeiculoKm        *string                 `json:"veiculo_km"`
	ProblemaRelatado *string                 `json:"problema_relatado"`
	ServicoExecutado *string                 `json:"servico_executado"`
	FormaPagamento   *string                 `json:"forma_pagamento"`
	Garantia         *string                 `json:"garantia"`
	Itens            *[]models.ItemOrcamento `json:"itens"`
	TotalDesconto    *decimal.Decimal        `json:"total_desconto"`
	Observacoes      *string                 `json:"observacoes"`
}

// QuoteEngine handles quote operations
type QuoteEngine struct {
	db           *gorm.DB
	audit        *audit.Recorder
	validityDays int
	now          func() time.Time
}

// NewQuoteEngine creates a new quote engine. validityDays is the default
// span between creation and expiry.
func NewQuoteEngine(db *gorm.DB, recorder *audit.Recorder, validityDays int) *QuoteEngine {
	if validityDays < 1 {
		validityDays = 30
	}
	return &QuoteEngine{db: db, audit: recorder, validityDays: validityDays, now: time.Now}
}

// SumItems returns the sum of quantidade × valor over items
func SumItems(items []models.ItemOrcamento) decimal.Decimal {
	return models.ItensOrcamento(items).Total()
}

// =============================================================================
// QUERIES
// =============================================================================

// List returns a page of quotes. Rejected quotes, the deleted state, are
// hidden unless a status filter is given or IncludeInactive is set.
func (e *QuoteEngine) List(ctx context.Context, params QueryParams) (*QueryResult[models.Orcamento], error) {
	params.Normalize()
	query, err := e.listQuery(ctx, params, 0)
	if err != nil {
		return nil, err
	}
	order := security.SortClause(quoteSortColumns, params.Sort, params.SortDir, "numero DESC")
	return paginate[models.Orcamento](query, params, order, "Cliente")
}

// ListByClient returns a page of the quotes of one client
func (e *QuoteEngine) ListByClient(ctx context.Context, clienteID uint, params QueryParams) (*QueryResult[models.Orcamento], error) {
	params.Normalize()
	query, err := e.listQuery(ctx, params, clienteID)
	if err != nil {
		return nil, err
	}
	order := security.SortClause(quoteSortColumns, params.Sort, params.SortDir, "numero DESC")
	return paginate[models.Orcamento](query, params, order)
}

// Export returns every quote matching params, capped at MaxExportRows
func (e *QuoteEngine) Export(ctx context.Context, params QueryParams) ([]models.Orcamento, error) {
	params.Normalize()
	query, err := e.listQuery(ctx, params, 0)
	if err != nil {
		return nil, err
	}
	return all[models.Orcamento](query, security.SortClause(quoteSortColumns, params.Sort, params.SortDir, "numero DESC"), "Cliente")
}

func (e *QuoteEngine) listQuery(ctx context.Context, params QueryParams, clienteID uint) (*gorm.DB, error) {
	query := e.db.WithContext(ctx).Model(&models.Orcamento{})

	if clienteID != 0 {
		query = query.Where("cliente_id = ?", clienteID)
	}

	switch {
	case params.Status != "":
		status := models.StatusOrcamento(strings.ToLower(params.Status))
		if !status.Valid() {
			return nil, apperrors.NewValidationError("status", fmt.Sprintf("unknown status %q", params.Status))
		}
		query = query.Where("status = ?", status)
	case !params.IncludeInactive:
		query = query.Where("status <> ?", models.StatusRejeitado)
	}

	if params.Search != "" {
		dialect := e.db.Dialector.Name()
		cond, args := security.BuildMultiSearchCondition(dialect, []string{"numero"}, params.Search)
		cond = "(" + cond + " OR cliente_id IN (SELECT id FROM clientes WHERE LOWER(nome) LIKE ? ESCAPE '" + security.LikeEscapeChar + "'))"
		args = append(args, security.ContainsParam(dialect, params.Search))
		query = query.Where(cond, args...)
	}
	return query.Session(&gorm.Session{}), nil
}

// Get returns a quote by id with its client, whatever its status
func (e *QuoteEngine) Get(ctx context.Context, id uint) (*models.Orcamento, error) {
	var o models.Orcamento
	if err := e.db.WithContext(ctx).Preload("Cliente").Where("id = ?", id).Take(&o).Error; err != nil {
		return nil, lookupError(err, "quote")
	}
	return &o, nil
}

// =============================================================================
// MUTATIONS
// =============================================================================

// Create validates and inserts a quote. The number is drawn from the quote
// sequence in the same transaction as the insert.
func (e *QuoteEngine) Create(ctx context.Context, in OrcamentoInput, actor *uint) (*models.Orcamento, error) {
	now := e.now()
	o := &models.Orcamento{
		ClienteID:        in.ClienteID,
		DataCriacao:      now,
		DataValidade:     now.AddDate(0, 0, e.validityDays),
		Status:           models.StatusPendente,
		VeiculoMarca:     strings.TrimSpace(in.VeiculoMarca),
		VeiculoModelo:    strings.TrimSpace(in.VeiculoModelo),
		VeiculoAno:       strings.TrimSpace(in.VeiculoAno),
		VeiculoPlaca:     normalizePlaca(in.VeiculoPlaca),
		VeiculoCor:       strings.TrimSpace(in.VeiculoCor),
		VeiculoKm:        strings.TrimSpace(in.VeiculoKm),
		ProblemaRelatado: in.ProblemaRelatado,
		ServicoExecutado: in.ServicoExecutado,
		FormaPagamento:   in.FormaPagamento,
		Garantia:         in.Garantia,
		Itens:            normalizeItens(in.Itens),
		TotalDesconto:    in.TotalDesconto,
		Observacoes:      in.Observacoes,
	}

	fields := map[string]string{}
	if in.ClienteID == 0 {
		fields["cliente_id"] = "is required"
	}
	if in.DataValidade != "" {
		d, err := parseDate(in.DataValidade)
		if err != nil {
			fields["data_validade"] = err.Error()
		} else {
			o.DataValidade = d
		}
	}
	validateAmounts(o, fields)
	if len(fields) > 0 {
		return nil, apperrors.NewValidationErrors(fields)
	}
	o.ValorTotal = o.Itens.Total()

	cliente, err := e.insert(ctx, o)
	if err != nil {
		return nil, err
	}

	e.audit.Record(ctx, tableOrcamentos, o.ID, models.AcaoCreate, o, actor)
	o.Cliente = cliente
	return o, nil
}

func (e *QuoteEngine) insert(ctx context.Context, o *models.Orcamento) (*models.Cliente, error) {
	var cliente models.Cliente
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := activeClient(tx, o.ClienteID, &cliente); err != nil {
			return err
		}
		numero, err := numbering.NextFormatted(tx, numbering.QuoteSequence)
		if err != nil {
			return err
		}
		o.Numero = numero
		return tx.Create(o).Error
	})
	if err != nil {
		var appErr apperrors.AppError
		if errors.As(err, &appErr) {
			return nil, err
		}
		if database.IsUniqueViolation(err) {
			return nil, apperrors.NewConflictError("quote", "numero")
		}
		return nil, apperrors.NewInternalError(err)
	}
	return &cliente, nil
}

// Update applies a partial update. Rejected quotes are treated as deleted.
func (e *QuoteEngine) Update(ctx context.Context, id uint, in OrcamentoUpdate, actor *uint) (*models.Orcamento, error) {
	current, err := e.load(ctx, id)
	if err != nil {
		return nil, err
	}

	before := *current
	before.Itens = append(models.ItensOrcamento{}, current.Itens...)
	after := *current

	fields := map[string]string{}
	in.apply(&after, fields)
	if next := after.Status; next != before.Status && !before.Status.CanTransitionTo(next) {
		fields["status"] = fmt.Sprintf("cannot change status from %s to %s", before.Status, next)
	}
	validateAmounts(&after, fields)
	if len(fields) > 0 {
		return nil, apperrors.NewValidationErrors(fields)
	}
	after.ValorTotal = after.Itens.Total()

	if after.ClienteID != before.ClienteID {
		var cliente models.Cliente
		if err := activeClient(e.db.WithContext(ctx), after.ClienteID, &cliente); err != nil {
			return nil, err
		}
	}

	if err := e.db.WithContext(ctx).Omit("Cliente").Save(&after).Error; err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	e.recordUpdate(ctx, &before, &after, actor)
	return e.Get(ctx, id)
}

// UpdateStatus moves a quote through the status machine. Setting the
// current status again is a no-op.
func (e *QuoteEngine) UpdateStatus(ctx context.Context, id uint, status models.StatusOrcamento, actor *uint) (*models.Orcamento, error) {
	status = models.StatusOrcamento(strings.ToLower(string(status)))
	if !status.Valid() {
		return nil, apperrors.NewValidationError("status", fmt.Sprintf("unknown status %q", status))
	}

	current, err := e.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status == status {
		return current, nil
	}
	if !current.Status.CanTransitionTo(status) {
		return nil, apperrors.NewValidationError("status", fmt.Sprintf("cannot change status from %s to %s", current.Status, status))
	}

	previous := current.Status
	if err := e.db.WithContext(ctx).Model(&models.Orcamento{}).Where("id = ?", id).Update("status", status).Error; err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	e.audit.Record(ctx, tableOrcamentos, id, models.AcaoUpdate, audit.Changes{
		"status": {Anterior: previous, Novo: status},
	}, actor)

	current.Status = status
	current.Vencido = current.IsOverdue(e.now())
	return current, nil
}

// Delete marks a quote rejected, bypassing the status machine. The row is kept.
func (e *QuoteEngine) Delete(ctx context.Context, id uint, actor *uint) error {
	current, err := e.load(ctx, id)
	if err != nil {
		return err
	}

	if err := e.db.WithContext(ctx).Model(&models.Orcamento{}).Where("id = ?", id).Update("status", models.StatusRejeitado).Error; err != nil {
		return apperrors.NewInternalError(err)
	}
	e.audit.Record(ctx, tableOrcamentos, id, models.AcaoDelete, current, actor)
	return nil
}

// Duplicate copies a quote into a new pending quote with its own number
// and a fresh validity period.
func (e *QuoteEngine) Duplicate(ctx context.Context, id uint, actor *uint) (*models.Orcamento, error) {
	src, err := e.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	now := e.now()
	o := *src
	o.ID = 0
	o.Numero = ""
	o.Cliente = nil
	o.Status = models.StatusPendente
	o.DataCriacao = now
	o.DataValidade = now.AddDate(0, 0, e.validityDays)
	o.Itens = append(models.ItensOrcamento{}, src.Itens...)
	o.ValorTotal = o.Itens.Total()
	o.CreatedAt = time.Time{}
	o.UpdatedAt = time.Time{}
	o.Vencido = false

	cliente, err := e.insert(ctx, &o)
	if err != nil {
		return nil, err
	}
	e.audit.Record(ctx, tableOrcamentos, o.ID, models.AcaoCreate, o, actor)
	o.Cliente = cliente
	return &o, nil
}

// load returns a quote that has not been deleted
func (e *QuoteEngine) load(ctx context.Context, id uint) (*models.Orcamento, error) {
	var o models.Orcamento
	err := e.db.WithContext(ctx).
		Where("id = ? AND status <> ?", id, models.StatusRejeitado).
		Take(&o).Error
	if err != nil {
		return nil, lookupError(err, "quote")
	}
	return &o, nil
}

func (e *QuoteEngine) recordUpdate(ctx context.Context, before, after *models.Orcamento, actor *uint) {
	changes, err := audit.Diff(before, after, quoteDiffSkip...)
	if err != nil {
		changes = audit.Changes{}
	}
	e.audit.Record(ctx, tableOrcamentos, after.ID, models.AcaoUpdate, changes, actor)
}

// =============================================================================
// HELPERS
// =============================================================================

func (in OrcamentoUpdate) apply(o *models.Orcamento, fields map[string]string) {
	if in.ClienteID != nil {
		if *in.ClienteID == 0 {
			fields["cliente_id"] = "is required"
		}
		o.ClienteID = *in.ClienteID
	}
	if in.DataValidade != nil {
		d, err := parseDate(*in.DataValidade)
		if err != nil {
			fields["data_validade"] = err.Error()
		} else {
			o.DataValidade = d
		}
	}
	if in.Status != nil {
		s := models.StatusOrcamento(strings.ToLower(string(*in.Status)))
		if !s.Valid() {
			fields["status"] = fmt.Sprintf("unknown status %q", *in.Status)
		} else {
			o.Status = s
		}
	}
	str := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	str(&o.VeiculoMarca, in.VeiculoMarca)
	str(&o.VeiculoModelo, in.VeiculoModelo)
	str(&o.VeiculoAno, in.VeiculoAno)
	if in.VeiculoPlaca != nil {
		o.VeiculoPlaca = normalizePlaca(*in.VeiculoPlaca)
	}
	str(&o.VeiculoCor, in.VeiculoCor)
	str(&o.VeiculoKm, in.VeiculoKm)
	if in.ProblemaRelatado != nil {
		o.ProblemaRelatado = *in.ProblemaRelatado
	}
	if in.ServicoExecutado != nil {
		o.ServicoExecutado = *in.ServicoExecutado
	}
	str(&o.FormaPagamento, in.FormaPagamento)
	str(&o.Garantia, in.Garantia)
	if in.Itens != nil {
		o.Itens = normalizeItens(*in.Itens)
	}
	if in.TotalDesconto != nil {
		o.TotalDesconto = *in.TotalDesconto
	}
	if in.Observacoes != nil {
		o.Observacoes = *in.Observacoes
	}
}

func validateAmounts(o *models.Orcamento, fields map[string]string) {
	if o.TotalDesconto.IsNegative() {
		fields["total_desconto"] = "must not be negative"
	}
	for i, item := range o.Itens {
		key := fmt.Sprintf("itens[%d]", i)
		switch {
		case item.Descricao == "":
			fields[key+".descricao"] = "is required"
		case !item.Quantidade.IsPositive():
			fields[key+".quantidade"] = "must be greater than 0"
		case item.Valor.IsNegative():
			fields[key+".valor"] = "must not be negative"
		}
	}
}

func normalizeItens(items []models.ItemOrcamento) models.ItensOrcamento {
	out := make(models.ItensOrcamento, 0, len(items))
	for _, item := range items {
		item.Descricao = strings.TrimSpace(item.Descricao)
		out = append(out, item)
	}
	return out
}

func normalizePlaca(p string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(p), " ", ""))
}

var dateLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02", "02/01/2006"}

// parseDate accepts RFC 3339 timestamps, ISO dates and dd/mm/yyyy
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("must be a date (YYYY-MM-DD)")
}

// activeClient loads an active client or fails with a validation error on cliente_id
func activeClient(tx *gorm.DB, id uint, dst *models.Cliente) error {
	err := tx.Where("id = ? AND ativo = ?", id, true).Take(dst).Error
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperrors.NewValidationError("cliente_id", "client not found or inactive")
	}
	return apperrors.NewInternalError(err)
}
