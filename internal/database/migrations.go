package database

import (
	"fmt"
	"time"

	"github.com/aethra/oficina/internal/models"
	"github.com/aethra/oficina/internal/numbering"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// MigrationRecord tracks which migrations have been applied
type MigrationRecord struct {
	ID        uint      `gorm:"primaryKey"`
	Name      string    `gorm:"uniqueIndex;size:255"`
	AppliedAt time.Time `gorm:"autoCreateTime"`
}

// TableName returns the table name for migrations
func (MigrationRecord) TableName() string {
	return "_oficina_migrations"
}

// Migration is one named, run-once schema step
type Migration struct {
	Name string
	Up   func(tx *gorm.DB) error
}

// Migrations lists every step in application order
var Migrations = []Migration{
	{Name: "001_create_tables", Up: func(tx *gorm.DB) error {
		return tx.AutoMigrate(models.All()...)
	}},
	{Name: "002_seed_quote_sequence", Up: seedQuoteSequence},
}

// RunMigrations executes all pending migrations
func RunMigrations(db *gorm.DB, log logrus.FieldLogger) error {
	return runMigrations(db, Migrations, log)
}

func runMigrations(db *gorm.DB, steps []Migration, log logrus.FieldLogger) error {
	if err := db.AutoMigrate(&MigrationRecord{}); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	for _, step := range steps {
		var count int64
		if err := db.Model(&MigrationRecord{}).Where("name = ?", step.Name).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check migration %s: %w", step.Name, err)
		}
		if count > 0 {
			log.WithField("migration", step.Name).Debug("migration already applied")
			continue
		}

		log.WithField("migration", step.Name).Info("applying migration")
		if err := step.Up(db); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", step.Name, err)
		}
		if err := db.Create(&MigrationRecord{Name: step.Name}).Error; err != nil {
			return fmt.Errorf("failed to record migration %s: %w", step.Name, err)
		}
	}
	return nil
}

// seedQuoteSequence starts the counter after the highest existing quote
// number, compared numerically.
func seedQuoteSequence(tx *gorm.DB) error {
	var numeros []string
	if err := tx.Model(&models.Orcamento{}).Pluck("numero", &numeros).Error; err != nil {
		return err
	}
	var max int64
	for _, n := range numeros {
		if v, ok := numbering.Parse(n); ok && v > max {
			max = v
		}
	}
	return numbering.Seed(tx, numbering.QuoteSequence, max)
}
