// Package audit records the change history of audited tables.
//
// Recording is best effort: the entity mutation has already been written
// when Record runs, and a failure to write history is logged, never
// returned.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/aethra/oficina/internal/config"
	"github.com/aethra/oficina/internal/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Change is the previous and new value of one field
type Change struct {
	Anterior interface{} `json:"anterior"`
	Novo     interface{} `json:"novo"`
}

// Changes maps field names to their change
type Changes map[string]Change

// Fields returns the changed field names in sorted order
func (c Changes) Fields() []string {
	fields := make([]string, 0, len(c))
	for f := range c {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

// Recorder writes history rows
type Recorder struct {
	db     *gorm.DB
	logger logrus.FieldLogger
}

// NewRecorder creates a recorder writing through db
func NewRecorder(db *gorm.DB, logger logrus.FieldLogger) *Recorder {
	return &Recorder{db: db, logger: logger}
}

// Record writes the history of one mutation.
//
//   - create: data is the new entity; one row holds its snapshot.
//   - update: data is a Changes; one row per field, nothing when empty.
//   - delete: data is the entity as it was (or nil); one tombstone row.
func (r *Recorder) Record(ctx context.Context, tabela string, registroID uint, acao models.AcaoHistorico, data interface{}, usuarioID *uint) {
	entries, err := buildEntries(tabela, registroID, acao, data, usuarioID)
	if err == nil && len(entries) > 0 {
		err = r.db.WithContext(ctx).Create(&entries).Error
	}
	if err != nil {
		config.LogError(r.logger, "audit", "Record", "write change history", logrus.Fields{
			"tabela":      tabela,
			"registro_id": registroID,
			"acao":        acao,
		}, err)
	}
}

// buildEntries builds the history rows for a mutation without writing them
func buildEntries(tabela string, registroID uint, acao models.AcaoHistorico, data interface{}, usuarioID *uint) ([]models.HistoricoAlteracao, error) {
	base := models.HistoricoAlteracao{
		Tabela:     tabela,
		RegistroID: registroID,
		Acao:       acao,
		UsuarioID:  usuarioID,
	}

	switch acao {
	case models.AcaoCreate:
		snapshot, err := encode(data)
		if err != nil {
			return nil, err
		}
		base.ValorNovo = snapshot
		return []models.HistoricoAlteracao{base}, nil

	case models.AcaoDelete:
		if data != nil {
			previous, err := encode(data)
			if err != nil {
				return nil, err
			}
			base.ValorAnterior = previous
		}
		return []models.HistoricoAlteracao{base}, nil

	case models.AcaoUpdate:
		changes, ok := data.(Changes)
		if !ok {
			return nil, fmt.Errorf("update history needs audit.Changes, got %T", data)
		}
		entries := make([]models.HistoricoAlteracao, 0, len(changes))
		for _, field := range changes.Fields() {
			change := changes[field]
			anterior, err := encode(change.Anterior)
			if err != nil {
				return nil, err
			}
			novo, err := encode(change.Novo)
			if err != nil {
				return nil, err
			}
			row := base
			campo := field
			row.CampoAlterado = &campo
			row.ValorAnterior = anterior
			row.ValorNovo = novo
			entries = append(entries, row)
		}
		return entries, nil
	}
	return nil, fmt.Errorf("unknown history action %q", acao)
}

// List returns the history of one record, newest first
func (r *Recorder) List(ctx context.Context, tabela string, registroID uint) ([]models.HistoricoAlteracao, error) {
	var rows []models.HistoricoAlteracao
	err := r.db.WithContext(ctx).
		Where("tabela = ? AND registro_id = ?", tabela, registroID).
		Order("created_at DESC, id DESC").
		Find(&rows).Error
	return rows, err
}

func encode(v interface{}) (*models.ValorJSON, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode history value: %w", err)
	}
	return models.NewValorJSON(b), nil
}
