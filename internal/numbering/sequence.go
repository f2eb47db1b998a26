// Package numbering assigns the sequential, zero-padded quote numbers.
//
// Each named counter lives in one row of the sequencias table. Next
// increments the row with a single UPDATE inside the caller's transaction,
// so the row lock serialises concurrent creators until they commit.
package numbering

import (
	"fmt"
	"strconv"

	"github.com/aethra/oficina/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// QuoteSequence is the counter used for orcamentos.numero
const QuoteSequence = "orcamentos"

// Width is the minimum number of digits of a formatted number
const Width = 6

// Next increments the named counter and returns the new value. Run it in
// the same transaction as the insert that uses the number.
func Next(tx *gorm.DB, name string) (int64, error) {
	res := increment(tx, name)
	if res.Error != nil {
		return 0, fmt.Errorf("increment sequence %s: %w", name, res.Error)
	}
	if res.RowsAffected == 0 {
		if err := ensure(tx, name, 0); err != nil {
			return 0, err
		}
		if res = increment(tx, name); res.Error != nil {
			return 0, fmt.Errorf("increment sequence %s: %w", name, res.Error)
		}
	}

	var seq models.Sequencia
	if err := tx.Where("nome = ?", name).Take(&seq).Error; err != nil {
		return 0, fmt.Errorf("read sequence %s: %w", name, err)
	}
	return seq.Valor, nil
}

func increment(tx *gorm.DB, name string) *gorm.DB {
	return tx.Model(&models.Sequencia{}).
		Where("nome = ?", name).
		UpdateColumn("valor", gorm.Expr("valor + ?", 1))
}

func ensure(tx *gorm.DB, name string, start int64) error {
	err := tx.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.Sequencia{Nome: name, Valor: start}).Error
	if err != nil {
		return fmt.Errorf("create sequence %s: %w", name, err)
	}
	return nil
}

// Seed makes sure the counter exists and is at least start
func Seed(tx *gorm.DB, name string, start int64) error {
	if err := ensure(tx, name, start); err != nil {
		return err
	}
	return tx.Model(&models.Sequencia{}).
		Where("nome = ? AND valor < ?", name, start).
		UpdateColumn("valor", start).Error
}

// Format renders n zero-padded to Width digits
func Format(n int64) string {
	return fmt.Sprintf("%0*d", Width, n)
}

// Parse returns the numeric value of a formatted number
func Parse(numero string) (int64, bool) {
	n, err := strconv.ParseInt(numero, 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// NextFormatted is Next followed by Format
func NextFormatted(tx *gorm.DB, name string) (string, error) {
	n, err := Next(tx, name)
	if err != nil {
		return "", err
	}
	return Format(n), nil
}
