// Package models contains the persisted data structures of the shop:
// users, clients, quotes, the company profile and the change history.
package models

import (
	"strings"
	"time"
)

// =============================================================================
// ENUMS
// =============================================================================

// Role is the normalised user role
type Role string

const (
	RoleAdmin        Role = "admin"
	RoleDeveloper    Role = "developer"
	RoleStandardUser Role = "standard-user"
)

// IsAdmin reports whether the role carries administrative privileges.
// Developers share the admin privileges.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin || r == RoleDeveloper
}

// Valid reports whether r is one of the normalised roles
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleDeveloper, RoleStandardUser:
		return true
	}
	return false
}

// AcaoHistorico is the kind of mutation a history row records
type AcaoHistorico string

const (
	AcaoCreate AcaoHistorico = "create"
	AcaoUpdate AcaoHistorico = "update"
	AcaoDelete AcaoHistorico = "delete"
)

// =============================================================================
// SYSTEM MODELS
// =============================================================================

// Usuario represents a system user
type Usuario struct {
	ID          uint       `json:"id" gorm:"primaryKey"`
	Nome        string     `json:"nome" gorm:"not null;size:150"`
	Email       string     `json:"email" gorm:"uniqueIndex;not null;size:255"`
	Senha       string     `json:"-" gorm:"not null;size:255"`
	Role        Role       `json:"role" gorm:"not null;size:20;default:'standard-user'"`
	Ativo       bool       `json:"ativo" gorm:"not null;default:true"`
	UltimoLogin *time.Time `json:"ultimo_login,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// HistoricoAlteracao is one change-history row. Updates produce one row per
// changed field; creates and deletes produce a single row with no field.
type HistoricoAlteracao struct {
	ID            uint          `json:"id" gorm:"primaryKey"`
	Tabela        string        `json:"tabela" gorm:"not null;size:50;index:idx_historico_registro"`
	RegistroID    uint          `json:"registro_id" gorm:"not null;index:idx_historico_registro"`
	Acao          AcaoHistorico `json:"acao" gorm:"not null;size:10"`
	CampoAlterado *string       `json:"campo_alterado" gorm:"size:100"`
	ValorAnterior *ValorJSON    `json:"valor_anterior"`
	ValorNovo     *ValorJSON    `json:"valor_novo"`
	UsuarioID     *uint         `json:"usuario_id" gorm:"index"`
	CreatedAt     time.Time     `json:"created_at"`
}

func (HistoricoAlteracao) TableName() string {
	return "historico_alteracoes"
}

// Sequencia is a named monotonically increasing counter
type Sequencia struct {
	Nome  string `gorm:"primaryKey;size:50"`
	Valor int64  `gorm:"not null;default:0"`
}

// =============================================================================
// DOMAIN MODELS
// =============================================================================

// Cliente is a shop customer. CPF is stored as 11 digits, NULL when absent.
type Cliente struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	Nome        string    `json:"nome" gorm:"not null;size:150;index"`
	CPF         *string   `json:"cpf" gorm:"column:cpf;uniqueIndex;size:11"`
	Telefone    string    `json:"telefone" gorm:"size:20"`
	Celular     string    `json:"celular" gorm:"size:20"`
	Email       string    `json:"email" gorm:"size:255"`
	Endereco    string    `json:"endereco" gorm:"size:255"`
	Numero      string    `json:"numero" gorm:"size:20"`
	Complemento string    `json:"complemento" gorm:"size:100"`
	Bairro      string    `json:"bairro" gorm:"size:100"`
	Cidade      string    `json:"cidade" gorm:"size:100"`
	Estado      string    `json:"estado" gorm:"size:2"`
	CEP         string    `json:"cep" gorm:"column:cep;size:9"`
	IsEmpresa   bool      `json:"is_empresa" gorm:"not null;default:false"`
	Observacoes string    `json:"observacoes" gorm:"type:text"`
	Ativo       bool      `json:"ativo" gorm:"not null;default:true;index"`
	EmpresaID   *uint     `json:"empresa_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CPFValue returns the stored CPF or an empty string
func (c *Cliente) CPFValue() string {
	if c.CPF == nil {
		return ""
	}
	return *c.CPF
}

// CompanyProfileID is the fixed primary key of the company profile row
const CompanyProfileID uint = 1

// DadosEmpresa is the singleton business identity used on documents
type DadosEmpresa struct {
	ID                uint      `json:"id" gorm:"primaryKey;autoIncrement:false"`
	RazaoSocial       string    `json:"razao_social" gorm:"size:200"`
	NomeFantasia      string    `json:"nome_fantasia" gorm:"size:200"`
	CNPJ              string    `json:"cnpj" gorm:"column:cnpj;size:14"`
	InscricaoEstadual string    `json:"inscricao_estadual" gorm:"size:30"`
	Endereco          string    `json:"endereco" gorm:"size:255"`
	Numero            string    `json:"numero" gorm:"size:20"`
	Complemento       string    `json:"complemento" gorm:"size:100"`
	Bairro            string    `json:"bairro" gorm:"size:100"`
	Cidade            string    `json:"cidade" gorm:"size:100"`
	Estado            string    `json:"estado" gorm:"size:2"`
	CEP               string    `json:"cep" gorm:"column:cep;size:9"`
	Telefone          string    `json:"telefone" gorm:"size:20"`
	Celular           string    `json:"celular" gorm:"size:20"`
	Email             string    `json:"email" gorm:"size:255"`
	Site              string    `json:"site" gorm:"size:255"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func (DadosEmpresa) TableName() string {
	return "dados_empresa"
}

// TrimmedEmail lowercases and trims an email for storage and lookup
func TrimmedEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// All lists every model managed by migrations, in dependency order
func All() []interface{} {
	return []interface{}{
		&Usuario{},
		&Cliente{},
		&Orcamento{},
		&HistoricoAlteracao{},
		&DadosEmpresa{},
		&Sequencia{},
	}
}
