package repo

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
)

const funcionarioColumns = `fun_id, fun_nome, fun_email, fun_cpf, fun_telefone, fun_senha, fun_matricula, fun_cargo,
        fun_ativo, fun_tentativas_login, fun_bloqueado_ate, dep_id, cid_id, fun_criado_em`

// FuncionarioFilter restringe listagens de funcionários.
type FuncionarioFilter struct {
	CidadeID       *int64
	DepartamentoID *int64
	Cargo          string
	SomenteAtivos  bool
	Limit          int
	Offset         int
}

// CreateFuncionarioParams agrupa dados de criação.
type CreateFuncionarioParams struct {
	Nome           string
	Email          string
	CPF            string
	Telefone       *string
	SenhaHash      string
	Matricula      string
	Cargo          string
	DepartamentoID int64
	CidadeID       int64
}

// FuncionarioPatch descreve atualização parcial.
type FuncionarioPatch struct {
	Nome           *string
	Email          *string
	CPF            *string
	Telefone       *string
	SenhaHash      *string
	Matricula      *string
	Cargo          *string
	Ativo          *bool
	DepartamentoID *int64
	CidadeID       *int64
}

func scanFuncionario(row pgx.Row) (Funcionario, error) {
	var f Funcionario
	err := row.Scan(&f.ID, &f.Nome, &f.Email, &f.CPF, &f.Telefone, &f.SenhaHash, &f.Matricula, &f.Cargo,
		&f.Ativo, &f.TentativasLogin, &f.BloqueadoAte, &f.DepartamentoID, &f.CidadeID, &f.CriadoEm)
	if err != nil {
		return Funcionario{}, Classify(err)
	}
	return f, nil
}

// ListFuncionarios lista funcionários com filtros opcionais.
func (q *Queries) ListFuncionarios(ctx context.Context, filter FuncionarioFilter) ([]Funcionario, error) {
	var where Where
	if filter.CidadeID != nil {
		where.Add("cid_id = ?", *filter.CidadeID)
	}
	if filter.DepartamentoID != nil {
		where.Add("dep_id = ?", *filter.DepartamentoID)
	}
	if filter.Cargo != "" {
		where.Add("fun_cargo = ?", filter.Cargo)
	}
	if filter.SomenteAtivos {
		where.AddRaw("fun_ativo")
	}
	page, args := where.Page(filter.Limit, filter.Offset)

	rows, err := q.db.Query(ctx, `SELECT `+funcionarioColumns+` FROM funcionario`+where.SQL()+` ORDER BY fun_nome`+page, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Funcionario
	for rows.Next() {
		f, err := scanFuncionario(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// GetFuncionario busca por id.
func (q *Queries) GetFuncionario(ctx context.Context, id int64) (Funcionario, error) {
	return scanFuncionario(q.db.QueryRow(ctx, `SELECT `+funcionarioColumns+` FROM funcionario WHERE fun_id = $1`, id))
}

// CreateFuncionario insere funcionário com senha já hasheada.
func (q *Queries) CreateFuncionario(ctx context.Context, arg CreateFuncionarioParams) (Funcionario, error) {
	return scanFuncionario(q.db.QueryRow(ctx, `
        INSERT INTO funcionario (fun_nome, fun_email, fun_cpf, fun_telefone, fun_senha, fun_matricula, fun_cargo, dep_id, cid_id)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        RETURNING `+funcionarioColumns,
		strings.TrimSpace(arg.Nome), strings.ToLower(strings.TrimSpace(arg.Email)), arg.CPF, arg.Telefone, arg.SenhaHash,
		strings.TrimSpace(arg.Matricula), arg.Cargo, arg.DepartamentoID, arg.CidadeID,
	))
}

// UpdateFuncionario aplica somente os campos informados.
func (q *Queries) UpdateFuncionario(ctx context.Context, id int64, patch FuncionarioPatch) (Funcionario, error) {
	var p Patch
	SetIf(&p, "fun_nome", patch.Nome)
	if patch.Email != nil {
		p.Set("fun_email", strings.ToLower(strings.TrimSpace(*patch.Email)))
	}
	SetIf(&p, "fun_cpf", patch.CPF)
	SetIf(&p, "fun_telefone", patch.Telefone)
	SetIf(&p, "fun_senha", patch.SenhaHash)
	SetIf(&p, "fun_matricula", patch.Matricula)
	SetIf(&p, "fun_cargo", patch.Cargo)
	SetIf(&p, "fun_ativo", patch.Ativo)
	SetIf(&p, "dep_id", patch.DepartamentoID)
	SetIf(&p, "cid_id", patch.CidadeID)
	if p.Empty() {
		return q.GetFuncionario(ctx, id)
	}

	query, args := p.Build("funcionario", "fun_id", id, funcionarioColumns)
	return scanFuncionario(q.db.QueryRow(ctx, query, args...))
}

// DeleteFuncionario remove funcionário.
func (q *Queries) DeleteFuncionario(ctx context.Context, id int64) error {
	cmd, err := q.db.Exec(ctx, `DELETE FROM funcionario WHERE fun_id = $1`, id)
	if err != nil {
		return Classify(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
