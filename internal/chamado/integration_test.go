//go:build integration

package chamado_test

// go test -tags=integration ./internal/chamado -run Integration -count=1

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/minhacidade/backend/internal/auth"
	"github.com/minhacidade/backend/internal/chamado"
	"github.com/minhacidade/backend/internal/cidade"
	"github.com/minhacidade/backend/internal/db"
	"github.com/minhacidade/backend/internal/departamento"
	"github.com/minhacidade/backend/internal/notificacao"
	"github.com/minhacidade/backend/internal/repo"
)

func TestChamadoLifecycle_Integration(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	pgC, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("minhacidade"),
		postgres.WithUsername("minhacidade"),
		postgres.WithPassword("minhacidade"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, pgC)
	require.NoError(t, err)

	dsn, err := pgC.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := db.NewPool(ctx, dsn, "")
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, db.Migrate(ctx, pool))
	require.NoError(t, db.Migrate(ctx, pool), "migrações devem ser idempotentes")

	cidades := cidade.NewService(cidade.NewRepository(pool))
	departamentos := departamento.NewService(departamento.NewRepository(pool), cidades)
	chamados := chamado.NewService(chamado.NewRepository(pool), nil, notificacao.NewPusher(nil))

	c, err := cidades.Create(ctx, cidade.CreateInput{Nome: "Cabaceiras", Estado: "PB", Padrao: true})
	require.NoError(t, err)
	dep, err := departamentos.Create(ctx, departamento.CreateInput{Nome: "Obras", CidadeID: c.ID, PrioridadePadrao: chamado.PrioridadeAlta})
	require.NoError(t, err)
	u, err := repo.New(pool).CreateUsuario(ctx, repo.CreateUsuarioParams{
		Nome:      "Maria da Silva",
		Email:     "maria@example.com",
		CPF:       "52998224725",
		SenhaHash: "hash",
		Endereco:  json.RawMessage(`{"cep":"58475-000","logradouro":"Rua A","bairro":"Centro"}`),
		CidadeID:  c.ID,
	})
	require.NoError(t, err)

	u, err = repo.New(pool).UpdateUsuario(ctx, u.ID, repo.UsuarioPatch{Endereco: json.RawMessage(`{"numero":"12"}`)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"cep":"58475-000","logradouro":"Rua A","bairro":"Centro","numero":"12"}`, string(u.Endereco))

	municipe := auth.Principal{Kind: auth.KindUsuario, ID: u.ID, Role: auth.RoleMunicipe, CidadeID: &c.ID}
	admin := auth.Principal{Kind: auth.KindAdministrador, ID: 1, Role: auth.RoleAdminGlobal}

	_, err = chamados.Create(ctx, municipe, chamado.CreateInput{Titulo: "Buraco", Descricao: "Rua A", DepartamentoID: dep.ID + 100})
	require.ErrorIs(t, err, chamado.ErrDepartamentoNotFound)

	ch, err := chamados.Create(ctx, municipe, chamado.CreateInput{Titulo: "Buraco na rua", Descricao: "Rua A, 10", DepartamentoID: dep.ID})
	require.NoError(t, err)
	assert.Equal(t, chamado.StatusPendente, ch.Status)
	assert.Equal(t, chamado.PrioridadeAlta, ch.Prioridade)
	assert.Equal(t, c.ID, ch.CidadeID)

	cancelado, err := chamados.Transition(ctx, municipe, ch.ID, chamado.Cancelar, chamado.TransitionInput{Observacao: "resolvido por conta própria"})
	require.NoError(t, err)
	assert.Equal(t, chamado.StatusCancelado, cancelado.Status)
	assert.NotNil(t, cancelado.DataFechamento)

	_, err = chamados.Transition(ctx, admin, ch.ID, chamado.Encaminhar, chamado.TransitionInput{})
	var terr *chamado.TransitionError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, chamado.StatusCancelado, terr.Status)

	etapas, err := chamados.Etapas(ctx, admin, ch.ID)
	require.NoError(t, err)
	require.NotEmpty(t, etapas)

	err = cidades.Delete(ctx, c.ID)
	var refs *cidade.ReferencesError
	require.ErrorAs(t, err, &refs)
	assert.EqualValues(t, 1, refs.References.Departamentos)
	assert.EqualValues(t, 1, refs.References.Usuarios)
}
