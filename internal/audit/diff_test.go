package audit

import (
	"testing"
	"time"

	"github.com/aethra/oficina/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiff_SingleField(t *testing.T) {
	before := models.Cliente{ID: 1, Nome: "A", Ativo: true, UpdatedAt: time.Now()}
	after := before
	after.Nome = "B"
	after.UpdatedAt = time.Now().Add(time.Minute)

	changes, err := Diff(before, after)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, Change{Anterior: "A", Novo: "B"}, changes["nome"])
}

func TestDiff_NoChanges(t *testing.T) {
	c := models.Cliente{ID: 1, Nome: "A"}
	changes, err := Diff(c, c)
	require.NoError(t, err)
	assert.Empty(t, changes)
}

func TestDiff_DeepEqualityOnNestedValues(t *testing.T) {
	itens := models.ItensOrcamento{{Descricao: "Filtro", Quantidade: decimal.NewFromInt(1), Valor: decimal.NewFromInt(10)}}
	before := models.Orcamento{ID: 1, Itens: itens}

	// same content, different backing array
	sameItens := append(models.ItensOrcamento{}, itens...)
	after := models.Orcamento{ID: 1, Itens: sameItens}
	changes, err := Diff(before, after, "cliente", "vencido")
	require.NoError(t, err)
	assert.Empty(t, changes)

	after.Itens = append(after.Itens, models.ItemOrcamento{Descricao: "Óleo", Quantidade: decimal.NewFromInt(1), Valor: decimal.NewFromInt(40)})
	changes, err = Diff(before, after, "cliente", "vencido")
	require.NoError(t, err)
	assert.Equal(t, []string{"itens"}, changes.Fields())
}

func TestDiff_PointerFields(t *testing.T) {
	cpf := "11144477735"
	before := models.Cliente{ID: 1, Nome: "A"}
	after := models.Cliente{ID: 1, Nome: "A", CPF: &cpf}

	changes, err := Diff(before, after)
	require.NoError(t, err)
	require.Contains(t, changes, "cpf")
	assert.Nil(t, changes["cpf"].Anterior)
	assert.Equal(t, cpf, changes["cpf"].Novo)
}

func TestBuildEntries_UnknownAction(t *testing.T) {
	_, err := buildEntries("clientes", 1, models.AcaoHistorico("purge"), nil, nil)
	assert.Error(t, err)
}
