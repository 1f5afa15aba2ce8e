package departamento

import (
	"context"
	"errors"

	"github.com/minhacidade/backend/internal/repo"
	"github.com/minhacidade/backend/internal/util"
)

// Store abstrai o repositório.
type Store interface {
	List(ctx context.Context, filter Filter) ([]Departamento, error)
	Get(ctx context.Context, id int64) (*Departamento, error)
	Create(ctx context.Context, in CreateInput) (*Departamento, error)
	Update(ctx context.Context, id int64, in UpdateInput) (*Departamento, error)
	CountReferences(ctx context.Context, id int64) (References, error)
	Delete(ctx context.Context, id int64) error
}

// CidadeChecker confirma a existência de cidades.
type CidadeChecker interface {
	Exists(ctx context.Context, id int64) (bool, error)
}

// Service aplica regras de departamentos.
type Service struct {
	repo    Store
	cidades CidadeChecker
}

// NewService cria serviço.
func NewService(store Store, cidades CidadeChecker) *Service {
	return &Service{repo: store, cidades: cidades}
}

// List lista departamentos.
func (s *Service) List(ctx context.Context, filter Filter) ([]Departamento, error) {
	return s.repo.List(ctx, filter)
}

// Get busca departamento.
func (s *Service) Get(ctx context.Context, id int64) (*Departamento, error) {
	return s.repo.Get(ctx, id)
}

// Create valida a cidade antes de inserir.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Departamento, error) {
	if err := util.Validate(in); err != nil {
		return nil, err
	}
	if in.PrioridadePadrao == "" {
		in.PrioridadePadrao = PrioridadePadrao
	}

	ok, err := s.cidades.Exists(ctx, in.CidadeID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrCidadeNotFound
	}

	return s.repo.Create(ctx, in)
}

// Update altera somente campos informados.
func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) (*Departamento, error) {
	if err := util.Validate(in); err != nil {
		return nil, err
	}
	return s.repo.Update(ctx, id, in)
}

// Delete remove departamento sem vínculos.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return err
	}
	refs, err := s.repo.CountReferences(ctx, id)
	if err != nil {
		return err
	}
	if refs.Chamados > 0 || refs.Funcionarios > 0 {
		return &ReferencesError{References: refs}
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repo.ErrHasReferences) {
			refs, _ = s.repo.CountReferences(ctx, id)
			return &ReferencesError{References: refs}
		}
		return err
	}
	return nil
}
