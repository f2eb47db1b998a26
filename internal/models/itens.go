package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// ItemOrcamento is one quote line
type ItemOrcamento struct {
	Descricao  string          `json:"descricao"`
	Quantidade decimal.Decimal `json:"quantidade"`
	Valor      decimal.Decimal `json:"valor"`
}

// Subtotal returns quantidade × valor
func (i ItemOrcamento) Subtotal() decimal.Decimal {
	return i.Quantidade.Mul(i.Valor)
}

// ItensOrcamento is the ordered list of quote lines stored as one JSON column
type ItensOrcamento []ItemOrcamento

// GormDBDataType picks the JSON column type for the active dialect
func (ItensOrcamento) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	switch db.Dialector.Name() {
	case "postgres":
		return "JSONB"
	case "mysql":
		return "JSON"
	default:
		return "TEXT"
	}
}

// Value implements the driver.Valuer interface
func (it ItensOrcamento) Value() (driver.Value, error) {
	if it == nil {
		return "[]", nil
	}
	b, err := json.Marshal(it)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface
func (it *ItensOrcamento) Scan(value interface{}) error {
	if value == nil {
		*it = ItensOrcamento{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("itens: unsupported column type")
	}

	if len(bytes) == 0 {
		*it = ItensOrcamento{}
		return nil
	}

	result := ItensOrcamento{}
	if err := json.Unmarshal(bytes, &result); err != nil {
		return err
	}
	*it = result
	return nil
}

// Total returns the sum of all line subtotals, rounded to cents
func (it ItensOrcamento) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range it {
		total = total.Add(item.Subtotal())
	}
	return total.Round(2)
}
