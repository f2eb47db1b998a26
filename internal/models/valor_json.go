package models

import (
	"database/sql/driver"
	"fmt"
	"strconv"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// ValorJSON is one JSON encoded history value. Unlike datatypes.JSON it is
// stored as TEXT on sqlite: a JSON column there has numeric affinity and a
// bare number such as 100 would come back as an integer.
type ValorJSON datatypes.JSON

// NewValorJSON wraps raw JSON bytes
func NewValorJSON(raw []byte) *ValorJSON {
	v := ValorJSON(raw)
	return &v
}

// GormDBDataType picks the JSON column type for the active dialect
func (ValorJSON) GormDBDataType(db *gorm.DB, field *schema.Field) string {
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
func (j ValorJSON) Value() (driver.Value, error) {
	return datatypes.JSON(j).Value()
}

// Scan implements the sql.Scanner interface. Numbers are accepted for rows
// written while the column still had numeric affinity.
func (j *ValorJSON) Scan(value interface{}) error {
	switch v := value.(type) {
	case int64:
		*j = ValorJSON(strconv.FormatInt(v, 10))
		return nil
	case float64:
		*j = ValorJSON(strconv.FormatFloat(v, 'f', -1, 64))
		return nil
	case nil:
		*j = nil
		return nil
	case []byte:
		*j = append(ValorJSON(nil), v...)
		return nil
	case string:
		*j = ValorJSON(v)
		return nil
	}
	return fmt.Errorf("history value: unsupported column type %T", value)
}

// MarshalJSON emits the raw value, null when empty
func (j ValorJSON) MarshalJSON() ([]byte, error) {
	return datatypes.JSON(j).MarshalJSON()
}

// UnmarshalJSON keeps the raw value
func (j *ValorJSON) UnmarshalJSON(b []byte) error {
	*j = append((*j)[:0], b...)
	return nil
}

// String returns the raw JSON text
func (j ValorJSON) String() string {
	return string(j)
}
