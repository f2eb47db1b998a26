package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestItensOrcamento_Total(t *testing.T) {
	itens := ItensOrcamento{
		{Descricao: "Filtro", Quantidade: decimal.NewFromInt(2), Valor: decimal.RequireFromString("10.00")},
		{Descricao: "Mão de obra", Quantidade: decimal.NewFromInt(1), Valor: decimal.RequireFromString("5.00")},
	}
	assert.True(t, itens.Total().Equal(decimal.NewFromInt(25)))
	assert.True(t, ItensOrcamento{}.Total().IsZero())
}

func TestOrcamento_RecomputeFinal(t *testing.T) {
	o := Orcamento{ValorTotal: decimal.NewFromInt(25), TotalDesconto: decimal.NewFromInt(3)}
	require.NoError(t, o.BeforeSave(nil))
	assert.True(t, o.ValorFinal.Equal(decimal.NewFromInt(22)))

	// discount above total is kept negative
	o = Orcamento{ValorTotal: decimal.NewFromInt(10), TotalDesconto: decimal.NewFromInt(15)}
	o.RecomputeFinal()
	assert.True(t, o.ValorFinal.Equal(decimal.NewFromInt(-5)))
}

func TestStatusOrcamento_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to StatusOrcamento
		want     bool
	}{
		{StatusPendente, StatusAprovado, true},
		{StatusPendente, StatusRejeitado, true},
		{StatusPendente, StatusExpirado, true},
		{StatusPendente, StatusPendente, true},
		{StatusAprovado, StatusPendente, false},
		{StatusAprovado, StatusRejeitado, false},
		{StatusRejeitado, StatusAprovado, false},
		{StatusExpirado, StatusAprovado, false},
		{StatusPendente, StatusOrcamento("cancelado"), false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestOrcamento_IsOverdue(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	o := Orcamento{Status: StatusPendente, DataValidade: now.Add(-time.Hour)}
	assert.True(t, o.IsOverdue(now))

	o.Status = StatusAprovado
	assert.False(t, o.IsOverdue(now))

	o = Orcamento{Status: StatusPendente, DataValidade: now.Add(time.Hour)}
	assert.False(t, o.IsOverdue(now))
}

func TestItensOrcamento_ValueScan(t *testing.T) {
	in := ItensOrcamento{{Descricao: "Troca de óleo", Quantidade: decimal.NewFromInt(1), Valor: decimal.NewFromInt(150)}}
	v, err := in.Value()
	require.NoError(t, err)

	var out ItensOrcamento
	require.NoError(t, out.Scan(v))
	require.Len(t, out, 1)
	assert.Equal(t, "Troca de óleo", out[0].Descricao)
	assert.True(t, out[0].Valor.Equal(decimal.NewFromInt(150)))

	require.NoError(t, out.Scan([]byte(`[]`)))
	assert.Empty(t, out)

	require.NoError(t, out.Scan(nil))
	assert.NotNil(t, out)

	assert.Error(t, out.Scan(42))
}

func TestRole(t *testing.T) {
	assert.True(t, RoleAdmin.IsAdmin())
	assert.True(t, RoleDeveloper.IsAdmin())
	assert.False(t, RoleStandardUser.IsAdmin())
	assert.False(t, Role("administrador").Valid())
}

func TestValorJSON_Scan(t *testing.T) {
	tests := []struct {
		name  string
		value interface{}
		want  string
	}{
		{"text", []byte(`{"a":1}`), `{"a":1}`},
		{"string", `"Óleo"`, `"Óleo"`},
		{"integer from numeric affinity", int64(100), `100`},
		{"real from numeric affinity", float64(10.5), `10.5`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v ValorJSON
			require.NoError(t, v.Scan(tt.value))
			assert.Equal(t, tt.want, v.String())
		})
	}

	var v ValorJSON
	require.NoError(t, v.Scan(nil))
	raw, err := v.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, "null", string(raw))

	assert.Error(t, v.Scan(true))
}

func TestValorJSON_ScanCopiesDriverBuffer(t *testing.T) {
	buf := []byte(`"A"`)
	var v ValorJSON
	require.NoError(t, v.Scan(buf))
	buf[1] = 'B'
	assert.Equal(t, `"A"`, v.String())
}
