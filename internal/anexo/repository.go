package anexo

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/minhacidade/backend/internal/repo"
)

const anexoColumns = `anx_id, anx_tipo, anx_url, anx_chave, anx_nome, anx_tamanho, anx_criado_em, cha_id`

// Repository persiste metadados dos anexos.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository cria repositório.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanAnexo(row pgx.Row) (*Anexo, error) {
	var a Anexo
	if err := row.Scan(&a.ID, &a.Tipo, &a.URL, &a.Chave, &a.Nome, &a.Tamanho, &a.CriadoEm, &a.ChamadoID); err != nil {
		return nil, repo.Classify(err)
	}
	return &a, nil
}

// Insert grava o registro do anexo.
func (r *Repository) Insert(ctx context.Context, a Anexo) (*Anexo, error) {
	return scanAnexo(r.pool.QueryRow(ctx, `
        INSERT INTO anexo (anx_tipo, anx_url, anx_chave, anx_nome, anx_tamanho, cha_id)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING `+anexoColumns,
		a.Tipo, a.URL, a.Chave, a.Nome, a.Tamanho, a.ChamadoID))
}

// Get busca anexo.
func (r *Repository) Get(ctx context.Context, id int64) (*Anexo, error) {
	return scanAnexo(r.pool.QueryRow(ctx, `SELECT `+anexoColumns+` FROM anexo WHERE anx_id = $1`, id))
}

// ListByChamado lista anexos do chamado em ordem de envio.
func (r *Repository) ListByChamado(ctx context.Context, chamadoID int64) ([]Anexo, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+anexoColumns+` FROM anexo WHERE cha_id = $1 ORDER BY anx_criado_em, anx_id`, chamadoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	anexos := []Anexo{}
	for rows.Next() {
		a, err := scanAnexo(rows)
		if err != nil {
			return nil, err
		}
		anexos = append(anexos, *a)
	}
	return anexos, rows.Err()
}

// Delete remove o registro.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM anexo WHERE anx_id = $1`, id)
	if err != nil {
		return repo.Classify(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
