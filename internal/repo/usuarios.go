package repo

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/jackc/pgx/v5"
)

const usuarioColumns = `usu_id, usu_nome, usu_email, usu_cpf, usu_telefone, usu_senha, usu_role, usu_ativo,
        usu_tentativas_login, usu_bloqueado_ate, usu_endereco, cid_id, usu_criado_em`

// UsuarioFilter restringe listagens de munícipes.
type UsuarioFilter struct {
	CidadeID *int64
	Busca    string
	Limit    int
	Offset   int
}

// CreateUsuarioParams agrupa dados do cadastro do munícipe.
type CreateUsuarioParams struct {
	Nome      string
	Email     string
	CPF       string
	Telefone  *string
	SenhaHash string
	Role      string
	Endereco  json.RawMessage
	CidadeID  int64
}

// UsuarioPatch descreve atualização parcial.
type UsuarioPatch struct {
	Nome      *string
	Email     *string
	CPF       *string
	Telefone  *string
	SenhaHash *string
	Role      *string
	Ativo     *bool
	Endereco  json.RawMessage
	CidadeID  *int64
}

func scanUsuario(row pgx.Row) (Usuario, error) {
	var u Usuario
	err := row.Scan(&u.ID, &u.Nome, &u.Email, &u.CPF, &u.Telefone, &u.SenhaHash, &u.Role, &u.Ativo,
		&u.TentativasLogin, &u.BloqueadoAte, &u.Endereco, &u.CidadeID, &u.CriadoEm)
	if err != nil {
		return Usuario{}, Classify(err)
	}
	return u, nil
}

// ListUsuarios lista munícipes.
func (q *Queries) ListUsuarios(ctx context.Context, filter UsuarioFilter) ([]Usuario, error) {
	var where Where
	if filter.CidadeID != nil {
		where.Add("cid_id = ?", *filter.CidadeID)
	}
	if busca := strings.TrimSpace(filter.Busca); busca != "" {
		where.Add("(usu_nome ILIKE ? OR usu_email ILIKE ?)", "%"+busca+"%")
	}
	page, args := where.Page(filter.Limit, filter.Offset)

	rows, err := q.db.Query(ctx, `SELECT `+usuarioColumns+` FROM usuario`+where.SQL()+` ORDER BY usu_nome`+page, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Usuario
	for rows.Next() {
		u, err := scanUsuario(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// GetUsuario busca munícipe por id.
func (q *Queries) GetUsuario(ctx context.Context, id int64) (Usuario, error) {
	return scanUsuario(q.db.QueryRow(ctx, `SELECT `+usuarioColumns+` FROM usuario WHERE usu_id = $1`, id))
}

// CreateUsuario insere munícipe.
func (q *Queries) CreateUsuario(ctx context.Context, arg CreateUsuarioParams) (Usuario, error) {
	endereco := arg.Endereco
	if len(endereco) == 0 {
		endereco = json.RawMessage(`{}`)
	}
	role := arg.Role
	if role == "" {
		role = "municipe"
	}
	return scanUsuario(q.db.QueryRow(ctx, `
        INSERT INTO usuario (usu_nome, usu_email, usu_cpf, usu_telefone, usu_senha, usu_role, usu_endereco, cid_id)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING `+usuarioColumns,
		strings.TrimSpace(arg.Nome), strings.ToLower(strings.TrimSpace(arg.Email)), arg.CPF, arg.Telefone, arg.SenhaHash,
		role, endereco, arg.CidadeID,
	))
}

// UpdateUsuario aplica somente os campos informados.
func (q *Queries) UpdateUsuario(ctx context.Context, id int64, patch UsuarioPatch) (Usuario, error) {
	p := usuarioPatch(patch)
	if p.Empty() {
		return q.GetUsuario(ctx, id)
	}

	query, args := p.Build("usuario", "usu_id", id, usuarioColumns)
	return scanUsuario(q.db.QueryRow(ctx, query, args...))
}

// usuarioPatch monta o SET; o endereço é fundido campo a campo ao armazenado.
func usuarioPatch(patch UsuarioPatch) Patch {
	var p Patch
	SetIf(&p, "usu_nome", patch.Nome)
	if patch.Email != nil {
		p.Set("usu_email", strings.ToLower(strings.TrimSpace(*patch.Email)))
	}
	SetIf(&p, "usu_cpf", patch.CPF)
	SetIf(&p, "usu_telefone", patch.Telefone)
	SetIf(&p, "usu_senha", patch.SenhaHash)
	SetIf(&p, "usu_role", patch.Role)
	SetIf(&p, "usu_ativo", patch.Ativo)
	if len(patch.Endereco) > 0 {
		p.Merge("usu_endereco", patch.Endereco)
	}
	SetIf(&p, "cid_id", patch.CidadeID)
	return p
}

// DeleteUsuario remove munícipe; chamados vinculados impedem a remoção.
func (q *Queries) DeleteUsuario(ctx context.Context, id int64) error {
	cmd, err := q.db.Exec(ctx, `DELETE FROM usuario WHERE usu_id = $1`, id)
	if err != nil {
		return Classify(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
