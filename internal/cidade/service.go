package cidade

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/minhacidade/backend/internal/repo"
	"github.com/minhacidade/backend/internal/util"
)

// Store abstrai o repositório (permite stubs em testes).
type Store interface {
	List(ctx context.Context, incluirInativas bool) ([]Cidade, error)
	Get(ctx context.Context, id int64) (*Cidade, error)
	GetPadrao(ctx context.Context) (*Cidade, error)
	Create(ctx context.Context, in CreateInput) (*Cidade, error)
	Update(ctx context.Context, id int64, in UpdateInput) (*Cidade, error)
	SetPadrao(ctx context.Context, id int64) (*Cidade, error)
	CountReferences(ctx context.Context, id int64) (References, error)
	Delete(ctx context.Context, id int64) error
}

// Service contém as regras de negócio de cidades, com cache curto por id.
type Service struct {
	repo     Store
	cache    sync.Map
	cacheTTL time.Duration
}

type cachedCidade struct {
	cidade   Cidade
	expireAt time.Time
}

// NewService cria uma nova instância de Service.
func NewService(store Store) *Service {
	return &Service{repo: store, cacheTTL: 2 * time.Minute}
}

// Get busca cidade, servindo do cache quando possível.
func (s *Service) Get(ctx context.Context, id int64) (*Cidade, error) {
	if v, ok := s.cache.Load(id); ok {
		entry := v.(cachedCidade)
		if time.Now().Before(entry.expireAt) {
			cidadeCopy := entry.cidade
			return &cidadeCopy, nil
		}
		s.cache.Delete(id)
	}

	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.store(*c)

	cidadeCopy := *c
	return &cidadeCopy, nil
}

// Exists indica se a cidade existe.
func (s *Service) Exists(ctx context.Context, id int64) (bool, error) {
	_, err := s.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// List devolve cidades (somente ativas, salvo pedido explícito).
func (s *Service) List(ctx context.Context, incluirInativas bool) ([]Cidade, error) {
	cidades, err := s.repo.List(ctx, incluirInativas)
	if err != nil {
		return nil, err
	}
	for _, c := range cidades {
		s.store(c)
	}
	return cidades, nil
}

// GetPadrao devolve a cidade padrão.
func (s *Service) GetPadrao(ctx context.Context) (*Cidade, error) {
	return s.repo.GetPadrao(ctx)
}

// PadraoID devolve o id da cidade padrão.
func (s *Service) PadraoID(ctx context.Context) (int64, error) {
	c, err := s.GetPadrao(ctx)
	if err != nil {
		return 0, err
	}
	return c.ID, nil
}

// Create registra nova cidade.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Cidade, error) {
	in.Estado = strings.ToUpper(strings.TrimSpace(in.Estado))
	if err := util.Validate(in); err != nil {
		return nil, err
	}
	c, err := s.repo.Create(ctx, in)
	if err != nil {
		return nil, err
	}
	if in.Padrao {
		s.invalidateAll()
	}
	s.store(*c)
	return c, nil
}

// Update altera somente os campos informados.
func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) (*Cidade, error) {
	if in.Estado != nil {
		uf := strings.ToUpper(strings.TrimSpace(*in.Estado))
		in.Estado = &uf
	}
	if err := util.Validate(in); err != nil {
		return nil, err
	}
	c, err := s.repo.Update(ctx, id, in)
	if err != nil {
		return nil, err
	}
	s.store(*c)
	return c, nil
}

// SetPadrao troca a cidade padrão.
func (s *Service) SetPadrao(ctx context.Context, id int64) (*Cidade, error) {
	c, err := s.repo.SetPadrao(ctx, id)
	if err != nil {
		return nil, err
	}
	s.invalidateAll()
	return c, nil
}

// Delete remove a cidade se nada a referenciar.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return err
	}

	refs, err := s.repo.CountReferences(ctx, id)
	if err != nil {
		return err
	}
	if refs.Total() > 0 {
		return &ReferencesError{References: refs}
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repo.ErrHasReferences) {
			log.Warn().Int64("cidade_id", id).Msg("cidade recebeu vínculo durante exclusão")
			refs, _ = s.repo.CountReferences(ctx, id)
			return &ReferencesError{References: refs}
		}
		return err
	}
	s.cache.Delete(id)
	return nil
}

func (s *Service) store(c Cidade) {
	s.cache.Store(c.ID, cachedCidade{cidade: c, expireAt: time.Now().Add(s.cacheTTL)})
}

func (s *Service) invalidateAll() {
	s.cache.Range(func(key, _ any) bool {
		s.cache.Delete(key)
		return true
	})
}
