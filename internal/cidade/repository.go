package cidade

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/minhacidade/backend/internal/db"
	"github.com/minhacidade/backend/internal/repo"
)

const cidadeColumns = `cid_id, cid_nome, cid_estado, cid_ativo, cid_padrao, cid_criado_em`

// Repository provê acesso ao armazenamento de cidades.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository cria um novo repositório de cidades.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanCidade(row pgx.Row) (*Cidade, error) {
	var c Cidade
	if err := row.Scan(&c.ID, &c.Nome, &c.Estado, &c.Ativo, &c.Padrao, &c.CriadoEm); err != nil {
		return nil, repo.Classify(err)
	}
	return &c, nil
}

// List devolve cidades ordenadas por nome.
func (r *Repository) List(ctx context.Context, incluirInativas bool) ([]Cidade, error) {
	query := `SELECT ` + cidadeColumns + ` FROM cidade`
	if !incluirInativas {
		query += ` WHERE cid_ativo`
	}
	query += ` ORDER BY cid_nome`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cidades []Cidade
	for rows.Next() {
		c, err := scanCidade(rows)
		if err != nil {
			return nil, err
		}
		cidades = append(cidades, *c)
	}
	return cidades, rows.Err()
}

// Get busca cidade pelo id.
func (r *Repository) Get(ctx context.Context, id int64) (*Cidade, error) {
	return scanCidade(r.pool.QueryRow(ctx, `SELECT `+cidadeColumns+` FROM cidade WHERE cid_id = $1`, id))
}

// GetPadrao busca a cidade marcada como padrão.
func (r *Repository) GetPadrao(ctx context.Context) (*Cidade, error) {
	return scanCidade(r.pool.QueryRow(ctx, `SELECT `+cidadeColumns+` FROM cidade WHERE cid_padrao LIMIT 1`))
}

// Create insere cidade; quando marcada como padrão a anterior é desmarcada na mesma transação.
func (r *Repository) Create(ctx context.Context, in CreateInput) (*Cidade, error) {
	ativo := true
	if in.Ativo != nil {
		ativo = *in.Ativo
	}

	var out *Cidade
	err := db.WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		if in.Padrao {
			if _, err := tx.Exec(ctx, `UPDATE cidade SET cid_padrao = FALSE WHERE cid_padrao`); err != nil {
				return err
			}
		}
		c, err := scanCidade(tx.QueryRow(ctx, `
            INSERT INTO cidade (cid_nome, cid_estado, cid_ativo, cid_padrao)
            VALUES ($1, $2, $3, $4)
            RETURNING `+cidadeColumns,
			strings.TrimSpace(in.Nome), strings.ToUpper(strings.TrimSpace(in.Estado)), ativo, in.Padrao))
		if err != nil {
			return err
		}
		out = c
		return nil
	})
	return out, err
}

// Update aplica somente os campos informados.
func (r *Repository) Update(ctx context.Context, id int64, in UpdateInput) (*Cidade, error) {
	var p repo.Patch
	if in.Nome != nil {
		p.Set("cid_nome", strings.TrimSpace(*in.Nome))
	}
	if in.Estado != nil {
		p.Set("cid_estado", strings.ToUpper(strings.TrimSpace(*in.Estado)))
	}
	repo.SetIf(&p, "cid_ativo", in.Ativo)
	if p.Empty() {
		return r.Get(ctx, id)
	}

	query, args := p.Build("cidade", "cid_id", id, cidadeColumns)
	return scanCidade(r.pool.QueryRow(ctx, query, args...))
}

// SetPadrao troca a cidade padrão atomicamente.
func (r *Repository) SetPadrao(ctx context.Context, id int64) (*Cidade, error) {
	var out *Cidade
	err := db.WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `UPDATE cidade SET cid_padrao = FALSE WHERE cid_padrao AND cid_id <> $1`, id); err != nil {
			return err
		}
		c, err := scanCidade(tx.QueryRow(ctx, `UPDATE cidade SET cid_padrao = TRUE WHERE cid_id = $1 RETURNING `+cidadeColumns, id))
		if err != nil {
			return err
		}
		out = c
		return nil
	})
	return out, err
}

// CountReferences conta registros que apontam para a cidade.
func (r *Repository) CountReferences(ctx context.Context, id int64) (References, error) {
	const query = `
        SELECT
            (SELECT count(*) FROM departamento WHERE cid_id = $1),
            (SELECT count(*) FROM funcionario WHERE cid_id = $1),
            (SELECT count(*) FROM administrador WHERE cid_id = $1),
            (SELECT count(*) FROM usuario WHERE cid_id = $1),
            (SELECT count(*) FROM categoria WHERE cid_id = $1)`

	var refs References
	err := r.pool.QueryRow(ctx, query, id).Scan(&refs.Departamentos, &refs.Funcionarios, &refs.Administradores, &refs.Usuarios, &refs.Categorias)
	return refs, err
}

// Delete remove a cidade.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM cidade WHERE cid_id = $1`, id)
	if err != nil {
		return repo.Classify(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
