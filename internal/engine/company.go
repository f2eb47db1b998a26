package engine

import (
	"context"
	"strings"

	"github.com/aethra/oficina/internal/audit"
	apperrors "github.com/aethra/oficina/internal/errors"
	"github.com/aethra/oficina/internal/models"
	"github.com/aethra/oficina/internal/validation"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const tableDadosEmpresa = "dados_empresa"

// DadosEmpresaUpdate is a partial update of the company profile
type DadosEmpresaUpdate struct {
	RazaoSocial       *string `json:"razao_social" binding:"omitempty,max=200"`
	NomeFantasia      *string `json:"nome_fantasia" binding:"omitempty,max=200"`
	CNPJ              *string `json:"cnpj" binding:"omitempty,cnpj"`
	InscricaoEstadual *string `json:"inscricao_estadual" binding:"omitempty,max=30"`
	Endereco          *string `json:"endereco"`
	Numero            *string `json:"numero"`
	Complemento       *string `json:"complemento"`
	Bairro            *string `json:"bairro"`
	Cidade            *string `json:"cidade"`
	Estado            *string `json:"estado" binding:"omitempty,uf"`
	CEP               *string `json:"cep" binding:"omitempty,cep"`
	Telefone          *string `json:"telefone" binding:"omitempty,phone_br"`
	Celular           *string `json:"celular" binding:"omitempty,phone_br"`
	Email             *string `json:"email" binding:"omitempty,email"`
	Site              *string `json:"site"`
}

// CompanyEngine manages the single company profile row
type CompanyEngine struct {
	db    *gorm.DB
	audit *audit.Recorder
}

// NewCompanyEngine creates a new company engine
func NewCompanyEngine(db *gorm.DB, recorder *audit.Recorder) *CompanyEngine {
	return &CompanyEngine{db: db, audit: recorder}
}

// Get returns the profile, creating an empty one on first access
func (e *CompanyEngine) Get(ctx context.Context) (*models.DadosEmpresa, error) {
	db := e.db.WithContext(ctx)

	var d models.DadosEmpresa
	err := db.Where("id = ?", models.CompanyProfileID).Take(&d).Error
	if err == nil {
		return &d, nil
	}
	if !apperrors.IsNotFound(lookupError(err, "company profile")) {
		return nil, apperrors.NewInternalError(err)
	}

	// concurrent first reads may race; whoever loses the insert just reads
	seed := models.DadosEmpresa{ID: models.CompanyProfileID}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if err := db.Where("id = ?", models.CompanyProfileID).Take(&d).Error; err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &d, nil
}

// Update patches the profile and records the changed fields
func (e *CompanyEngine) Update(ctx context.Context, in DadosEmpresaUpdate, actor *uint) (*models.DadosEmpresa, error) {
	current, err := e.Get(ctx)
	if err != nil {
		return nil, err
	}

	before := *current
	after := *current
	applyEmpresa(&after, in)
	if err := validateEmpresa(&after); err != nil {
		return nil, err
	}

	if err := e.db.WithContext(ctx).Save(&after).Error; err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	if changes, err := audit.Diff(&before, &after); err == nil {
		e.audit.Record(ctx, tableDadosEmpresa, after.ID, models.AcaoUpdate, changes, actor)
	}
	return &after, nil
}

func applyEmpresa(d *models.DadosEmpresa, in DadosEmpresaUpdate) {
	set := func(dst *string, src *string) {
		if v := trimPtr(src); v != nil {
			*dst = *v
		}
	}
	set(&d.RazaoSocial, in.RazaoSocial)
	set(&d.NomeFantasia, in.NomeFantasia)
	set(&d.InscricaoEstadual, in.InscricaoEstadual)
	set(&d.Endereco, in.Endereco)
	set(&d.Numero, in.Numero)
	set(&d.Complemento, in.Complemento)
	set(&d.Bairro, in.Bairro)
	set(&d.Cidade, in.Cidade)
	set(&d.Telefone, in.Telefone)
	set(&d.Celular, in.Celular)
	set(&d.Site, in.Site)
	if in.CNPJ != nil {
		d.CNPJ = validation.OnlyDigits(*in.CNPJ)
	}
	if in.Estado != nil {
		d.Estado = strings.ToUpper(strings.TrimSpace(*in.Estado))
	}
	if in.CEP != nil {
		d.CEP = validation.NormalizeCEP(*in.CEP)
	}
	if in.Email != nil {
		d.Email = models.TrimmedEmail(*in.Email)
	}
}

func validateEmpresa(d *models.DadosEmpresa) error {
	fields := map[string]string{}
	if d.CNPJ != "" && !validation.IsValidCNPJ(d.CNPJ) {
		fields["cnpj"] = "invalid CNPJ"
	}
	if d.Estado != "" && !validation.IsValidUF(d.Estado) {
		fields["estado"] = "invalid state"
	}
	if d.CEP != "" && !validation.IsValidCEP(d.CEP) {
		fields["cep"] = "invalid CEP"
	}
	if d.Email != "" && !validation.IsValidEmail(d.Email) {
		fields["email"] = "must be a valid email"
	}
	for name, v := range map[string]string{"telefone": d.Telefone, "celular": d.Celular} {
		if v != "" && !validation.IsValidPhone(v) {
			fields[name] = "invalid phone number"
		}
	}
	if len(fields) > 0 {
		return apperrors.NewValidationErrors(fields)
	}
	return nil
}
