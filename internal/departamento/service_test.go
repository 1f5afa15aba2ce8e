package departamento

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCidades map[int64]bool

func (s stubCidades) Exists(ctx context.Context, id int64) (bool, error) {
	return s[id], nil
}

type stubStore struct {
	deps    map[int64]*Departamento
	refs    References
	created int
}

func (s *stubStore) List(ctx context.Context, filter Filter) ([]Departamento, error) {
	var out []Departamento
	for _, d := range s.deps {
		out = append(out, *d)
	}
	return out, nil
}

func (s *stubStore) Get(ctx context.Context, id int64) (*Departamento, error) {
	d, ok := s.deps[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *d
	return &c, nil
}

func (s *stubStore) Create(ctx context.Context, in CreateInput) (*Departamento, error) {
	s.created++
	d := &Departamento{ID: int64(len(s.deps) + 1), Nome: in.Nome, Descricao: in.Descricao, PrioridadePadrao: in.PrioridadePadrao, Motivos: in.Motivos, CidadeID: in.CidadeID}
	s.deps[d.ID] = d
	return d, nil
}

func (s *stubStore) Update(ctx context.Context, id int64, in UpdateInput) (*Departamento, error) {
	d, ok := s.deps[id]
	if !ok {
		return nil, ErrNotFound
	}
	if in.Nome != nil {
		d.Nome = *in.Nome
	}
	if in.Descricao != nil {
		d.Descricao = *in.Descricao
	}
	if in.PrioridadePadrao != nil {
		d.PrioridadePadrao = *in.PrioridadePadrao
	}
	if in.Motivos != nil {
		d.Motivos = *in.Motivos
	}
	c := *d
	return &c, nil
}

func (s *stubStore) CountReferences(ctx context.Context, id int64) (References, error) {
	return s.refs, nil
}

func (s *stubStore) Delete(ctx context.Context, id int64) error {
	delete(s.deps, id)
	return nil
}

func TestCreateRequiresExistingCity(t *testing.T) {
	store := &stubStore{deps: map[int64]*Departamento{}}
	svc := NewService(store, stubCidades{1: true})

	_, err := svc.Create(context.Background(), CreateInput{Nome: "Obras", CidadeID: 99})
	assert.ErrorIs(t, err, ErrCidadeNotFound)
	assert.Zero(t, store.created)

	d, err := svc.Create(context.Background(), CreateInput{Nome: "Obras", CidadeID: 1})
	require.NoError(t, err)
	assert.Equal(t, PrioridadePadrao, d.PrioridadePadrao)
}

func TestUpdateKeepsOmittedFields(t *testing.T) {
	store := &stubStore{deps: map[int64]*Departamento{
		1: {ID: 1, Nome: "Obras", Descricao: "Vias e calçadas", PrioridadePadrao: "Alta", Motivos: []string{"Buraco"}, CidadeID: 1},
	}}
	svc := NewService(store, stubCidades{1: true})

	nome := "Obras e Infraestrutura"
	d, err := svc.Update(context.Background(), 1, UpdateInput{Nome: &nome})
	require.NoError(t, err)
	assert.Equal(t, "Obras e Infraestrutura", d.Nome)
	assert.Equal(t, "Vias e calçadas", d.Descricao)
	assert.Equal(t, "Alta", d.PrioridadePadrao)
	assert.Equal(t, []string{"Buraco"}, d.Motivos)
}

func TestDeleteRefusesReferencedDepartment(t *testing.T) {
	store := &stubStore{deps: map[int64]*Departamento{1: {ID: 1, Nome: "Obras", CidadeID: 1}}, refs: References{Chamados: 3}}
	svc := NewService(store, stubCidades{1: true})

	err := svc.Delete(context.Background(), 1)
	assert.ErrorIs(t, err, ErrHasReferences)
	assert.Contains(t, store.deps, int64(1))
}
