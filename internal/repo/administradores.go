package repo

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
)

const administradorColumns = `adm_id, adm_nome, adm_email, adm_cpf, adm_telefone, adm_senha, adm_ativo,
        adm_tentativas_login, adm_bloqueado_ate, cid_id, adm_criado_em`

// AdministradorFilter restringe listagens de administradores.
type AdministradorFilter struct {
	CidadeID *int64
	Limit    int
	Offset   int
}

// CreateAdministradorParams agrupa dados de criação.
type CreateAdministradorParams struct {
	Nome      string
	Email     string
	CPF       *string
	Telefone  *string
	SenhaHash string
	CidadeID  *int64
}

// AdministradorPatch descreve atualização parcial; nil mantém o valor atual.
type AdministradorPatch struct {
	Nome        *string
	Email       *string
	CPF         *string
	Telefone    *string
	SenhaHash   *string
	Ativo       *bool
	CidadeID    *int64
	ClearCidade bool
}

func scanAdministrador(row pgx.Row) (Administrador, error) {
	var a Administrador
	err := row.Scan(&a.ID, &a.Nome, &a.Email, &a.CPF, &a.Telefone, &a.SenhaHash, &a.Ativo,
		&a.TentativasLogin, &a.BloqueadoAte, &a.CidadeID, &a.CriadoEm)
	if err != nil {
		return Administrador{}, Classify(err)
	}
	return a, nil
}

// ListAdministradores lista administradores, opcionalmente de uma cidade.
func (q *Queries) ListAdministradores(ctx context.Context, filter AdministradorFilter) ([]Administrador, error) {
	var where Where
	if filter.CidadeID != nil {
		where.Add("cid_id = ?", *filter.CidadeID)
	}
	page, args := where.Page(filter.Limit, filter.Offset)

	rows, err := q.db.Query(ctx, `SELECT `+administradorColumns+` FROM administrador`+where.SQL()+` ORDER BY adm_nome`+page, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Administrador
	for rows.Next() {
		a, err := scanAdministrador(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// GetAdministrador busca por id.
func (q *Queries) GetAdministrador(ctx context.Context, id int64) (Administrador, error) {
	return scanAdministrador(q.db.QueryRow(ctx, `SELECT `+administradorColumns+` FROM administrador WHERE adm_id = $1`, id))
}

// CreateAdministrador insere administrador com senha já hasheada.
func (q *Queries) CreateAdministrador(ctx context.Context, arg CreateAdministradorParams) (Administrador, error) {
	return scanAdministrador(q.db.QueryRow(ctx, `
        INSERT INTO administrador (adm_nome, adm_email, adm_cpf, adm_telefone, adm_senha, cid_id)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING `+administradorColumns,
		strings.TrimSpace(arg.Nome), strings.ToLower(strings.TrimSpace(arg.Email)), arg.CPF, arg.Telefone, arg.SenhaHash, arg.CidadeID,
	))
}

// UpdateAdministrador aplica somente os campos informados.
func (q *Queries) UpdateAdministrador(ctx context.Context, id int64, patch AdministradorPatch) (Administrador, error) {
	var p Patch
	SetIf(&p, "adm_nome", patch.Nome)
	if patch.Email != nil {
		p.Set("adm_email", strings.ToLower(strings.TrimSpace(*patch.Email)))
	}
	SetIf(&p, "adm_cpf", patch.CPF)
	SetIf(&p, "adm_telefone", patch.Telefone)
	SetIf(&p, "adm_senha", patch.SenhaHash)
	SetIf(&p, "adm_ativo", patch.Ativo)
	if patch.ClearCidade {
		p.SetRaw("cid_id = NULL")
	} else {
		SetIf(&p, "cid_id", patch.CidadeID)
	}
	if p.Empty() {
		return q.GetAdministrador(ctx, id)
	}

	query, args := p.Build("administrador", "adm_id", id, administradorColumns)
	return scanAdministrador(q.db.QueryRow(ctx, query, args...))
}

// DeleteAdministrador remove administrador.
func (q *Queries) DeleteAdministrador(ctx context.Context, id int64) error {
	cmd, err := q.db.Exec(ctx, `DELETE FROM administrador WHERE adm_id = $1`, id)
	if err != nil {
		return Classify(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
