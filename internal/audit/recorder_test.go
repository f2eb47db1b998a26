package audit_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aethra/oficina/internal/audit"
	"github.com/aethra/oficina/internal/models"
	"github.com/aethra/oficina/internal/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func isNull(j *models.ValorJSON) bool {
	return j == nil || string(*j) == "null"
}

func decode(t *testing.T, j *models.ValorJSON) interface{} {
	t.Helper()
	require.NotNil(t, j)
	var v interface{}
	require.NoError(t, json.Unmarshal(*j, &v))
	return v
}

func history(t *testing.T, db *gorm.DB) []models.HistoricoAlteracao {
	t.Helper()
	var rows []models.HistoricoAlteracao
	require.NoError(t, db.Order("id").Find(&rows).Error)
	return rows
}

func TestRecord_Create(t *testing.T) {
	db := testutil.NewDB(t)
	rec := audit.NewRecorder(db, testutil.Logger())
	uid := uint(7)

	cliente := models.Cliente{ID: 3, Nome: "Maria", Ativo: true}
	rec.Record(context.Background(), "clientes", 3, models.AcaoCreate, cliente, &uid)

	rows := history(t, db)
	require.Len(t, rows, 1)
	assert.Equal(t, "clientes", rows[0].Tabela)
	assert.Equal(t, uint(3), rows[0].RegistroID)
	assert.Equal(t, models.AcaoCreate, rows[0].Acao)
	assert.Nil(t, rows[0].CampoAlterado)
	assert.True(t, isNull(rows[0].ValorAnterior))
	require.NotNil(t, rows[0].UsuarioID)
	assert.Equal(t, uid, *rows[0].UsuarioID)

	snapshot := decode(t, rows[0].ValorNovo).(map[string]interface{})
	assert.Equal(t, "Maria", snapshot["nome"])
}

func TestRecord_UpdateOneRowPerField(t *testing.T) {
	db := testutil.NewDB(t)
	rec := audit.NewRecorder(db, testutil.Logger())

	changes := audit.Changes{
		"nome":   {Anterior: "A", Novo: "B"},
		"cidade": {Anterior: "Santos", Novo: "Campinas"},
	}
	rec.Record(context.Background(), "clientes", 1, models.AcaoUpdate, changes, nil)

	rows := history(t, db)
	require.Len(t, rows, 2)
	// fields are written in sorted order
	assert.Equal(t, "cidade", *rows[0].CampoAlterado)
	assert.Equal(t, "nome", *rows[1].CampoAlterado)
	assert.Equal(t, "A", decode(t, rows[1].ValorAnterior))
	assert.Equal(t, "B", decode(t, rows[1].ValorNovo))
	assert.Nil(t, rows[1].UsuarioID)
}

func TestRecord_UpdateWithoutChangesWritesNothing(t *testing.T) {
	db := testutil.NewDB(t)
	rec := audit.NewRecorder(db, testutil.Logger())

	rec.Record(context.Background(), "clientes", 1, models.AcaoUpdate, audit.Changes{}, nil)
	assert.Empty(t, history(t, db))
}

func TestRecord_DeleteTombstone(t *testing.T) {
	db := testutil.NewDB(t)
	rec := audit.NewRecorder(db, testutil.Logger())

	rec.Record(context.Background(), "orcamentos", 9, models.AcaoDelete, map[string]string{"status": "pendente"}, nil)

	rows := history(t, db)
	require.Len(t, rows, 1)
	assert.Equal(t, models.AcaoDelete, rows[0].Acao)
	assert.Nil(t, rows[0].CampoAlterado)
	assert.True(t, isNull(rows[0].ValorNovo))
	assert.False(t, isNull(rows[0].ValorAnterior))
}

func TestRecord_FailureIsLoggedNotReturned(t *testing.T) {
	db := testutil.NewDB(t)
	logger, hook := testutil.CapturingLogger()
	rec := audit.NewRecorder(db, logger)

	require.NoError(t, db.Migrator().DropTable(&models.HistoricoAlteracao{}))

	assert.NotPanics(t, func() {
		rec.Record(context.Background(), "clientes", 1, models.AcaoCreate, models.Cliente{Nome: "X"}, nil)
	})
	require.Len(t, hook.Entries, 1)
	assert.Equal(t, logrus.ErrorLevel, hook.Entries[0].Level)
	assert.Equal(t, "audit", hook.Entries[0].Data["module"])
}

func TestRecord_UpdateWithWrongPayloadIsLogged(t *testing.T) {
	db := testutil.NewDB(t)
	logger, hook := testutil.CapturingLogger()
	rec := audit.NewRecorder(db, logger)

	rec.Record(context.Background(), "clientes", 1, models.AcaoUpdate, "not a diff", nil)
	assert.Empty(t, history(t, db))
	assert.Len(t, hook.Entries, 1)
}

func TestList_NewestFirst(t *testing.T) {
	db := testutil.NewDB(t)
	rec := audit.NewRecorder(db, testutil.Logger())
	ctx := context.Background()

	rec.Record(ctx, "clientes", 1, models.AcaoCreate, models.Cliente{Nome: "A"}, nil)
	rec.Record(ctx, "clientes", 1, models.AcaoUpdate, audit.Changes{"nome": {Anterior: "A", Novo: "B"}}, nil)
	rec.Record(ctx, "clientes", 2, models.AcaoCreate, models.Cliente{Nome: "Z"}, nil)

	rows, err := rec.List(ctx, "clientes", 1)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, models.AcaoUpdate, rows[0].Acao)
	assert.Equal(t, models.AcaoCreate, rows[1].Acao)
}
