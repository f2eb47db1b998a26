package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func init() {
	// Amounts travel as JSON numbers, not strings.
	decimal.MarshalJSONWithoutQuotes = true
}

// StatusOrcamento is the quote lifecycle status
type StatusOrcamento string

const (
	StatusPendente  StatusOrcamento = "pendente"
	StatusAprovado  StatusOrcamento = "aprovado"
	StatusRejeitado StatusOrcamento = "rejeitado"
	StatusExpirado  StatusOrcamento = "expirado"
)

// Valid reports whether s is a known status
func (s StatusOrcamento) Valid() bool {
	switch s {
	case StatusPendente, StatusAprovado, StatusRejeitado, StatusExpirado:
		return true
	}
	return false
}

// CanTransitionTo reports whether the state machine allows s → next.
// Only pending quotes move; the other states are terminal. s → s is allowed.
func (s StatusOrcamento) CanTransitionTo(next StatusOrcamento) bool {
	if s == next {
		return true
	}
	if s != StatusPendente {
		return false
	}
	switch next {
	case StatusAprovado, StatusRejeitado, StatusExpirado:
		return true
	}
	return false
}

// Orcamento is a priced repair proposal tied to a client
type Orcamento struct {
	ID           uint            `json:"id" gorm:"primaryKey"`
	Numero       string          `json:"numero" gorm:"uniqueIndex;not null;size:20"`
	ClienteID    uint            `json:"cliente_id" gorm:"not null;index"`
	Cliente      *Cliente        `json:"cliente,omitempty" gorm:"foreignKey:ClienteID"`
	DataCriacao  time.Time       `json:"data_criacao" gorm:"not null"`
	DataValidade time.Time       `json:"data_validade" gorm:"not null"`
	Status       StatusOrcamento `json:"status" gorm:"not null;size:20;default:'pendente';index"`

	VeiculoMarca  string `json:"veiculo_marca" gorm:"size:50"`
	VeiculoModelo string `json:"veiculo_modelo" gorm:"size:100"`
	VeiculoAno    string `json:"veiculo_ano" gorm:"size:10"`
	VeiculoPlaca  string `json:"veiculo_placa" gorm:"size:10"`
	VeiculoCor    string `json:"veiculo_cor" gorm:"size:30"`
	VeiculoKm     string `json:"veiculo_km" gorm:"size:20"`

	ProblemaRelatado string `json:"problema_relatado" gorm:"type:text"`
	ServicoExecutado string `json:"servico_executado" gorm:"type:text"`
	FormaPagamento   string `json:"forma_pagamento" gorm:"size:100"`
	Garantia         string `json:"garantia" gorm:"size:100"`

	Itens         ItensOrcamento  `json:"itens"`
	TotalDesconto decimal.Decimal `json:"total_desconto" gorm:"type:decimal(12,2);not null;default:0"`
	ValorTotal    decimal.Decimal `json:"valor_total" gorm:"type:decimal(12,2);not null;default:0"`
	ValorFinal    decimal.Decimal `json:"valor_final" gorm:"type:decimal(12,2);not null;default:0"`
	Observacoes   string          `json:"observacoes" gorm:"type:text"`

	// Vencido is computed on read: pending and past its validity date.
	Vencido bool `json:"vencido" gorm:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RecomputeFinal sets ValorFinal = ValorTotal − TotalDesconto. The result may
// be negative when the discount exceeds the total.
func (o *Orcamento) RecomputeFinal() {
	o.ValorFinal = o.ValorTotal.Sub(o.TotalDesconto)
}

// BeforeSave keeps the final total derived on every create and update
func (o *Orcamento) BeforeSave(tx *gorm.DB) error {
	o.RecomputeFinal()
	return nil
}

// AfterFind fills the computed expiry flag
func (o *Orcamento) AfterFind(tx *gorm.DB) error {
	o.Vencido = o.IsOverdue(time.Now())
	return nil
}

// IsOverdue reports whether a pending quote is past its validity date at now
func (o *Orcamento) IsOverdue(now time.Time) bool {
	return o.Status == StatusPendente && !o.DataValidade.IsZero() && o.DataValidade.Before(now)
}
