package departamento

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/minhacidade/backend/internal/repo"
)

const departamentoColumns = `dep_id, dep_nome, dep_descricao, dep_prioridade_padrao, dep_motivos, cid_id`

// Repository provê acesso a departamentos.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository cria repositório.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanDepartamento(row pgx.Row) (*Departamento, error) {
	var d Departamento
	if err := row.Scan(&d.ID, &d.Nome, &d.Descricao, &d.PrioridadePadrao, &d.Motivos, &d.CidadeID); err != nil {
		return nil, repo.Classify(err)
	}
	if d.Motivos == nil {
		d.Motivos = []string{}
	}
	return &d, nil
}

// List lista departamentos.
func (r *Repository) List(ctx context.Context, filter Filter) ([]Departamento, error) {
	var where repo.Where
	if filter.CidadeID != nil {
		where.Add("cid_id = ?", *filter.CidadeID)
	}
	page, args := where.Page(filter.Limit, filter.Offset)

	rows, err := r.pool.Query(ctx, `SELECT `+departamentoColumns+` FROM departamento`+where.SQL()+` ORDER BY dep_nome`+page, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Departamento
	for rows.Next() {
		d, err := scanDepartamento(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// Get busca departamento.
func (r *Repository) Get(ctx context.Context, id int64) (*Departamento, error) {
	return scanDepartamento(r.pool.QueryRow(ctx, `SELECT `+departamentoColumns+` FROM departamento WHERE dep_id = $1`, id))
}

// Create insere departamento.
func (r *Repository) Create(ctx context.Context, in CreateInput) (*Departamento, error) {
	motivos := in.Motivos
	if motivos == nil {
		motivos = []string{}
	}
	return scanDepartamento(r.pool.QueryRow(ctx, `
        INSERT INTO departamento (dep_nome, dep_descricao, dep_prioridade_padrao, dep_motivos, cid_id)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING `+departamentoColumns,
		strings.TrimSpace(in.Nome), strings.TrimSpace(in.Descricao), in.PrioridadePadrao, motivos, in.CidadeID))
}

// Update aplica somente os campos informados.
func (r *Repository) Update(ctx context.Context, id int64, in UpdateInput) (*Departamento, error) {
	var p repo.Patch
	repo.SetIf(&p, "dep_nome", in.Nome)
	repo.SetIf(&p, "dep_descricao", in.Descricao)
	repo.SetIf(&p, "dep_prioridade_padrao", in.PrioridadePadrao)
	repo.SetIf(&p, "dep_motivos", in.Motivos)
	if p.Empty() {
		return r.Get(ctx, id)
	}

	query, args := p.Build("departamento", "dep_id", id, departamentoColumns)
	return scanDepartamento(r.pool.QueryRow(ctx, query, args...))
}

// CountReferences conta chamados e funcionários do departamento.
func (r *Repository) CountReferences(ctx context.Context, id int64) (References, error) {
	var refs References
	err := r.pool.QueryRow(ctx, `
        SELECT (SELECT count(*) FROM chamado WHERE dep_id = $1),
               (SELECT count(*) FROM funcionario WHERE dep_id = $1)`, id).Scan(&refs.Chamados, &refs.Funcionarios)
	return refs, err
}

// Delete remove departamento.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM departamento WHERE dep_id = $1`, id)
	if err != nil {
		return repo.Classify(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
