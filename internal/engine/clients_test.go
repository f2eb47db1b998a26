package engine_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/aethra/oficina/internal/engine"
	apperrors "github.com/aethra/oficina/internal/errors"
	"github.com/aethra/oficina/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validCPF = "111.444.777-35"

func TestClientCreate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c, err := f.clients.Create(ctx, engine.ClienteInput{
		Nome:   "  Maria Silva ",
		CPF:    validCPF,
		Email:  "Maria@Example.com",
		Estado: "sp",
		CEP:    "01310100",
	}, nil)
	require.NoError(t, err)

	assert.NotZero(t, c.ID)
	assert.Equal(t, "Maria Silva", c.Nome)
	assert.Equal(t, "11144477735", c.CPFValue())
	assert.Equal(t, "maria@example.com", c.Email)
	assert.Equal(t, "SP", c.Estado)
	assert.Equal(t, "01310-100", c.CEP)
	assert.True(t, c.Ativo)

	rows := f.history(t, "clientes", c.ID)
	require.Len(t, rows, 1)
	assert.Equal(t, models.AcaoCreate, rows[0].Acao)
	assert.Nil(t, rows[0].CampoAlterado)
}

func TestClientCreate_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.clients.Create(ctx, engine.ClienteInput{Nome: "Ana", CPF: "111.444.777-36"}, nil)
	var verr *apperrors.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "cpf")

	_, err = f.clients.Create(ctx, engine.ClienteInput{Nome: "   "}, nil)
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "nome")
}

func TestClientCreate_DuplicateCPF(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.clients.Create(ctx, engine.ClienteInput{Nome: "Ana", CPF: validCPF}, nil)
	require.NoError(t, err)

	_, err = f.clients.Create(ctx, engine.ClienteInput{Nome: "Outra", CPF: "11144477735"}, nil)
	assert.True(t, apperrors.IsConflict(err))

	// clients without cpf never collide
	f.client(t, "Sem CPF 1")
	f.client(t, "Sem CPF 2")
}

func TestClientList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 12; i++ {
		f.client(t, fmt.Sprintf("Cliente %02d", i))
	}
	_, err := f.clients.Create(ctx, engine.ClienteInput{Nome: "Zé 100%", CPF: validCPF}, nil)
	require.NoError(t, err)

	page, err := f.clients.List(ctx, engine.QueryParams{})
	require.NoError(t, err)
	assert.EqualValues(t, 13, page.Total)
	assert.Len(t, page.Data, 10)
	assert.Equal(t, 2, page.TotalPages)
	assert.Equal(t, "Cliente 00", page.Data[0].Nome)

	page, err = f.clients.List(ctx, engine.QueryParams{Page: 2})
	require.NoError(t, err)
	assert.Len(t, page.Data, 3)

	t.Run("search is case insensitive", func(t *testing.T) {
		page, err := f.clients.List(ctx, engine.QueryParams{Search: "cliente 0"})
		require.NoError(t, err)
		assert.EqualValues(t, 10, page.Total)
	})

	t.Run("wildcards are literal", func(t *testing.T) {
		page, err := f.clients.List(ctx, engine.QueryParams{Search: "100%"})
		require.NoError(t, err)
		require.EqualValues(t, 1, page.Total)

		page, err = f.clients.List(ctx, engine.QueryParams{Search: "_"})
		require.NoError(t, err)
		assert.EqualValues(t, 0, page.Total)
	})

	t.Run("formatted cpf matches stored digits", func(t *testing.T) {
		page, err := f.clients.List(ctx, engine.QueryParams{Search: "444.777"})
		require.NoError(t, err)
		require.EqualValues(t, 1, page.Total)
		assert.Equal(t, "Zé 100%", page.Data[0].Nome)
	})
}

func TestClientUpdate_RecordsChangedFields(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := uint(3)

	c := f.client(t, "A")

	updated, err := f.clients.Update(ctx, c.ID, engine.ClienteUpdate{Nome: ptr("B")}, &actor)
	require.NoError(t, err)
	assert.Equal(t, "B", updated.Nome)

	rows := f.history(t, "clientes", c.ID)
	require.Len(t, rows, 2)
	upd := rows[0]
	assert.Equal(t, models.AcaoUpdate, upd.Acao)
	require.NotNil(t, upd.CampoAlterado)
	assert.Equal(t, "nome", *upd.CampoAlterado)
	assert.JSONEq(t, `"A"`, string(*upd.ValorAnterior))
	assert.JSONEq(t, `"B"`, string(*upd.ValorNovo))
	require.NotNil(t, upd.UsuarioID)
	assert.Equal(t, actor, *upd.UsuarioID)

	// same values again: no history
	_, err = f.clients.Update(ctx, c.ID, engine.ClienteUpdate{Nome: ptr("B")}, &actor)
	require.NoError(t, err)
	assert.Len(t, f.history(t, "clientes", c.ID), 2)
}

func TestClientUpdate_CPFTaken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.clients.Create(ctx, engine.ClienteInput{Nome: "Ana", CPF: validCPF}, nil)
	require.NoError(t, err)
	other := f.client(t, "Bia")

	_, err = f.clients.Update(ctx, other.ID, engine.ClienteUpdate{CPF: ptr(validCPF)}, nil)
	assert.True(t, apperrors.IsConflict(err))
}

func TestClientDelete_IsSoft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c := f.client(t, "Carlos")
	require.NoError(t, f.clients.Delete(ctx, c.ID, nil))

	_, err := f.clients.Get(ctx, c.ID, false)
	assert.True(t, apperrors.IsNotFound(err))

	kept, err := f.clients.Get(ctx, c.ID, true)
	require.NoError(t, err)
	assert.False(t, kept.Ativo)

	page, err := f.clients.List(ctx, engine.QueryParams{})
	require.NoError(t, err)
	assert.EqualValues(t, 0, page.Total)

	page, err = f.clients.List(ctx, engine.QueryParams{IncludeInactive: true})
	require.NoError(t, err)
	assert.EqualValues(t, 1, page.Total)

	rows := f.history(t, "clientes", c.ID)
	require.Len(t, rows, 2)
	assert.Equal(t, models.AcaoDelete, rows[0].Acao)
	assert.NotNil(t, rows[0].ValorAnterior)

	err = f.clients.Delete(ctx, c.ID, nil)
	assert.True(t, apperrors.IsNotFound(err))

	_, err = f.clients.Update(ctx, c.ID, engine.ClienteUpdate{Nome: ptr("X")}, nil)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestClientGetOrCreate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in := engine.ClienteInput{Nome: "Ana", CPF: validCPF}

	first, err := f.clients.GetOrCreate(ctx, in, nil)
	require.NoError(t, err)
	assert.False(t, first.JaExistia)

	second, err := f.clients.GetOrCreate(ctx, engine.ClienteInput{Nome: "Other name", CPF: "11144477735"}, nil)
	require.NoError(t, err)
	assert.True(t, second.JaExistia)
	assert.False(t, second.Reativado)
	assert.Equal(t, first.Cliente.ID, second.Cliente.ID)
	assert.Equal(t, "Ana", second.Cliente.Nome)

	var count int64
	require.NoError(t, f.db.Model(&models.Cliente{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestClientGetOrCreate_ReactivatesInactive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c, err := f.clients.Create(ctx, engine.ClienteInput{Nome: "Ana", CPF: validCPF}, nil)
	require.NoError(t, err)
	require.NoError(t, f.clients.Delete(ctx, c.ID, nil))

	res, err := f.clients.GetOrCreate(ctx, engine.ClienteInput{Nome: "Ana Souza", CPF: validCPF, Cidade: "Santos"}, nil)
	require.NoError(t, err)
	assert.True(t, res.JaExistia)
	assert.True(t, res.Reativado)
	assert.Equal(t, c.ID, res.Cliente.ID)
	assert.True(t, res.Cliente.Ativo)
	assert.Equal(t, "Ana Souza", res.Cliente.Nome)
	assert.Equal(t, "Santos", res.Cliente.Cidade)
}

func TestClientGetOrCreate_RequiresCPF(t *testing.T) {
	f := newFixture(t)
	_, err := f.clients.GetOrCreate(context.Background(), engine.ClienteInput{Nome: "Ana"}, nil)
	var verr *apperrors.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestClientUpdate_CEPStoredHyphenated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c, err := f.clients.Create(ctx, engine.ClienteInput{Nome: "Maria", CEP: "01.310-100"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "01310-100", c.CEP)

	// the same CEP written another way is not a change
	c, err = f.clients.Update(ctx, c.ID, engine.ClienteUpdate{CEP: ptr("01310100")}, nil)
	require.NoError(t, err)
	assert.Equal(t, "01310-100", c.CEP)
	assert.Len(t, f.history(t, "clientes", c.ID), 1)

	_, err = f.clients.Update(ctx, c.ID, engine.ClienteUpdate{CEP: ptr("0131-010")}, nil)
	var verr *apperrors.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "cep")
}

func TestClientList_SearchAccentedUppercase(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.client(t, "Óleo Center")
	f.client(t, "Auto Peças")

	res, err := f.clients.List(ctx, engine.QueryParams{Search: "ÓLEO"})
	require.NoError(t, err)
	require.Len(t, res.Data, 1)
	assert.Equal(t, "Óleo Center", res.Data[0].Nome)

	res, err = f.clients.List(ctx, engine.QueryParams{Search: "auto peças"})
	require.NoError(t, err)
	assert.Len(t, res.Data, 1)
}
