package categoria

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/minhacidade/backend/internal/repo"
	"github.com/minhacidade/backend/internal/util"
)

var (
	// ErrNotFound indica categoria inexistente.
	ErrNotFound = repo.ErrNotFound
	// ErrHasReferences indica categoria usada por chamados.
	ErrHasReferences = errors.New("categoria possui chamados vinculados")
)

// Categoria classifica chamados; sem cidade vale para todas.
type Categoria struct {
	ID        int64  `json:"id"`
	Nome      string `json:"nome"`
	Descricao string `json:"descricao"`
	CidadeID  *int64 `json:"cidade_id"`
}

// CreateInput contém os campos de cadastro.
type CreateInput struct {
	Nome      string `json:"nome" validate:"required,min=2,max=120"`
	Descricao string `json:"descricao" validate:"max=500"`
	CidadeID  *int64 `json:"cidade_id" validate:"omitempty,gt=0"`
}

// UpdateInput descreve atualização parcial.
type UpdateInput struct {
	Nome      *string `json:"nome" validate:"omitempty,min=2,max=120"`
	Descricao *string `json:"descricao" validate:"omitempty,max=500"`
}

const categoriaColumns = `cat_id, cat_nome, cat_descricao, cid_id`

// Repository provê acesso a categorias.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository cria repositório.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanCategoria(row pgx.Row) (*Categoria, error) {
	var c Categoria
	if err := row.Scan(&c.ID, &c.Nome, &c.Descricao, &c.CidadeID); err != nil {
		return nil, repo.Classify(err)
	}
	return &c, nil
}

// List devolve categorias da cidade mais as globais; sem cidade devolve todas.
func (r *Repository) List(ctx context.Context, cidadeID *int64) ([]Categoria, error) {
	var where repo.Where
	if cidadeID != nil {
		where.Add("(cid_id = ? OR cid_id IS NULL)", *cidadeID)
	}

	rows, err := r.pool.Query(ctx, `SELECT `+categoriaColumns+` FROM categoria`+where.SQL()+` ORDER BY cat_nome`, where.Args()...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Categoria
	for rows.Next() {
		c, err := scanCategoria(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// Get busca categoria.
func (r *Repository) Get(ctx context.Context, id int64) (*Categoria, error) {
	return scanCategoria(r.pool.QueryRow(ctx, `SELECT `+categoriaColumns+` FROM categoria WHERE cat_id = $1`, id))
}

// Create insere categoria.
func (r *Repository) Create(ctx context.Context, in CreateInput) (*Categoria, error) {
	return scanCategoria(r.pool.QueryRow(ctx, `
        INSERT INTO categoria (cat_nome, cat_descricao, cid_id) VALUES ($1, $2, $3)
        RETURNING `+categoriaColumns, strings.TrimSpace(in.Nome), strings.TrimSpace(in.Descricao), in.CidadeID))
}

// Update aplica somente os campos informados.
func (r *Repository) Update(ctx context.Context, id int64, in UpdateInput) (*Categoria, error) {
	var p repo.Patch
	repo.SetIf(&p, "cat_nome", in.Nome)
	repo.SetIf(&p, "cat_descricao", in.Descricao)
	if p.Empty() {
		return r.Get(ctx, id)
	}
	query, args := p.Build("categoria", "cat_id", id, categoriaColumns)
	return scanCategoria(r.pool.QueryRow(ctx, query, args...))
}

// Delete remove categoria.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM categoria WHERE cat_id = $1`, id)
	if err != nil {
		err = repo.Classify(err)
		if errors.Is(err, repo.ErrHasReferences) {
			return ErrHasReferences
		}
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Store abstrai o repositório.
type Store interface {
	List(ctx context.Context, cidadeID *int64) ([]Categoria, error)
	Get(ctx context.Context, id int64) (*Categoria, error)
	Create(ctx context.Context, in CreateInput) (*Categoria, error)
	Update(ctx context.Context, id int64, in UpdateInput) (*Categoria, error)
	Delete(ctx context.Context, id int64) error
}

// Service aplica validação sobre o repositório.
type Service struct {
	repo Store
}

// NewService cria serviço.
func NewService(store Store) *Service {
	return &Service{repo: store}
}

func (s *Service) List(ctx context.Context, cidadeID *int64) ([]Categoria, error) {
	return s.repo.List(ctx, cidadeID)
}

func (s *Service) Get(ctx context.Context, id int64) (*Categoria, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*Categoria, error) {
	if err := util.Validate(in); err != nil {
		return nil, err
	}
	c, err := s.repo.Create(ctx, in)
	if errors.Is(err, repo.ErrHasReferences) {
		return nil, util.Invalid("cidade_id", "cidade não encontrada")
	}
	return c, err
}

func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) (*Categoria, error) {
	if err := util.Validate(in); err != nil {
		return nil, err
	}
	return s.repo.Update(ctx, id, in)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}
