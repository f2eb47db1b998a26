// Package testutil provides shared fixtures for package tests
package testutil

import (
	"io"
	"testing"

	"github.com/aethra/oficina/internal/config"
	"github.com/aethra/oficina/internal/database"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// NewDB returns a migrated, private in-memory SQLite database. The pool is
// capped at one connection so concurrent callers queue on it.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := database.Open(config.DatabaseConfig{
		Driver:       config.DriverSQLite,
		DSN:          "file:" + uuid.NewString() + "?mode=memory&cache=shared",
		MaxOpenConns: 1,
	}, Logger())
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.RunMigrations(db, Logger()))
	return db
}

// Logger returns a logger that discards output
func Logger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// CapturingLogger returns a logger whose entries can be inspected
func CapturingLogger() (*logrus.Logger, *Hook) {
	l := Logger()
	h := &Hook{}
	l.AddHook(h)
	return l, h
}

// Hook records every entry fired on a logger
type Hook struct {
	Entries []*logrus.Entry
}

func (h *Hook) Levels() []logrus.Level { return logrus.AllLevels }

func (h *Hook) Fire(e *logrus.Entry) error {
	h.Entries = append(h.Entries, e)
	return nil
}
