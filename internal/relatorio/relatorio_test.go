package relatorio

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minhacidade/backend/internal/auth"
	"github.com/minhacidade/backend/internal/util"
)

type stubStore struct {
	mu      sync.Mutex
	filters []Filter
	failOn  string
}

func (s *stubStore) record(name string, f Filter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filters = append(s.filters, f)
	if s.failOn == name {
		return errors.New("consulta falhou")
	}
	return nil
}

func (s *stubStore) Totais(ctx context.Context, f Filter) (int64, *float64, error) {
	media := 12.5
	return 42, &media, s.record("totais", f)
}

func (s *stubStore) PorStatus(ctx context.Context, f Filter) (map[string]int64, error) {
	return map[string]int64{"Pendente": 30, "Resolvido": 12}, s.record("status", f)
}

func (s *stubStore) PorDepartamento(ctx context.Context, f Filter) ([]Contagem, error) {
	id := int64(3)
	return []Contagem{{ID: &id, Nome: "Obras", Total: 42}}, s.record("departamento", f)
}

func (s *stubStore) PorCategoria(ctx context.Context, f Filter) ([]Contagem, error) {
	return []Contagem{{Nome: "Sem categoria", Total: 42}}, s.record("categoria", f)
}

func (s *stubStore) TopBairros(ctx context.Context, f Filter, limit int) ([]Contagem, error) {
	return []Contagem{{Nome: "Centro", Total: 20}}, s.record("bairros", f)
}

var cid100 = int64(100)

func TestGeralCombinesAllQueries(t *testing.T) {
	store := &stubStore{}
	svc := NewService(store)
	admin := auth.Principal{Kind: auth.KindAdministrador, ID: 1, Role: auth.RoleAdminGlobal}

	g, err := svc.Geral(context.Background(), admin, Filter{})
	require.NoError(t, err)
	assert.Equal(t, int64(42), g.Total)
	assert.Equal(t, 12.5, *g.TempoMedioResolucaoHoras)
	assert.Equal(t, int64(30), g.PorStatus["Pendente"])
	assert.Len(t, g.PorDepartamento, 1)
	assert.Len(t, g.PorCategoria, 1)
	assert.Equal(t, "Centro", g.Bairros[0].Nome)
	assert.Len(t, store.filters, 5)
}

func TestGeralScopesCityAdmin(t *testing.T) {
	store := &stubStore{}
	svc := NewService(store)
	admin := auth.Principal{Kind: auth.KindAdministrador, ID: 2, Role: auth.RoleAdminCidade, CidadeID: &cid100}

	_, err := svc.Geral(context.Background(), admin, Filter{})
	require.NoError(t, err)
	for _, f := range store.filters {
		require.NotNil(t, f.CidadeID)
		assert.Equal(t, int64(100), *f.CidadeID)
	}

	outra := int64(7)
	_, err = svc.Geral(context.Background(), admin, Filter{CidadeID: &outra})
	assert.ErrorIs(t, err, ErrForbidden)

	servidor := auth.Principal{Kind: auth.KindFuncionario, ID: 9, Role: auth.RoleServidor, CidadeID: &cid100}
	_, err = svc.Geral(context.Background(), servidor, Filter{})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestGeralRejectsInvertedPeriodAndPropagatesErrors(t *testing.T) {
	admin := auth.Principal{Kind: auth.KindAdministrador, ID: 1, Role: auth.RoleAdminGlobal}
	inicio := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	fim := inicio.AddDate(0, 0, -1)

	_, err := NewService(&stubStore{}).Geral(context.Background(), admin, Filter{DataInicio: &inicio, DataFim: &fim})
	var ve *util.ValidationError
	assert.ErrorAs(t, err, &ve)

	_, err = NewService(&stubStore{failOn: "categoria"}).Geral(context.Background(), admin, Filter{})
	assert.EqualError(t, err, "consulta falhou")
}
