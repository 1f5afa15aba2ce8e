package repo

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"
)

// Queries agrupa o acesso às tabelas de contas (administrador, usuario, funcionario)
// e aos tokens de recuperação de senha.
type Queries struct {
	db DBTX
}

// New cria Queries sobre pool ou transação.
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// WithTx devolve cópia vinculada à transação informada.
func (q *Queries) WithTx(tx DBTX) *Queries {
	return &Queries{db: tx}
}

// FindAccount localiza conta do tipo informado por e-mail, CPF ou (funcionários) matrícula.
func (q *Queries) FindAccount(ctx context.Context, kind AccountKind, identifier string) (Account, error) {
	identifier = strings.TrimSpace(identifier)
	email := strings.ToLower(identifier)
	cpf := onlyDigits(identifier)
	if len(cpf) != 11 {
		cpf = ""
	}

	var (
		query string
		args  []any
	)
	switch kind {
	case KindAdministrador:
		query = `
            SELECT adm_id, adm_nome, adm_email, adm_senha, adm_ativo, adm_tentativas_login, adm_bloqueado_ate, cid_id, NULL::bigint, ''
            FROM administrador
            WHERE lower(adm_email) = $1 OR ($2 <> '' AND adm_cpf = $2)
            LIMIT 1`
		args = []any{email, cpf}
	case KindUsuario:
		query = `
            SELECT usu_id, usu_nome, usu_email, usu_senha, usu_ativo, usu_tentativas_login, usu_bloqueado_ate, cid_id, NULL::bigint, usu_role
            FROM usuario
            WHERE lower(usu_email) = $1 OR ($2 <> '' AND usu_cpf = $2)
            LIMIT 1`
		args = []any{email, cpf}
	case KindFuncionario:
		query = `
            SELECT fun_id, fun_nome, fun_email, fun_senha, fun_ativo, fun_tentativas_login, fun_bloqueado_ate, cid_id, dep_id, fun_cargo
            FROM funcionario
            WHERE lower(fun_email) = $1 OR ($2 <> '' AND fun_cpf = $2) OR fun_matricula = $3
            LIMIT 1`
		args = []any{email, cpf, identifier}
	default:
		return Account{}, fmt.Errorf("tipo de conta desconhecido: %s", kind)
	}

	acc := Account{Kind: kind}
	err := q.db.QueryRow(ctx, query, args...).Scan(
		&acc.ID, &acc.Nome, &acc.Email, &acc.SenhaHash, &acc.Ativo, &acc.TentativasLogin,
		&acc.BloqueadoAte, &acc.CidadeID, &acc.DepartamentoID, &acc.Cargo,
	)
	if err != nil {
		return Account{}, Classify(err)
	}
	return acc, nil
}

// GetAccount carrega a conta pelo id (usado por /me e pelo refresh).
func (q *Queries) GetAccount(ctx context.Context, kind AccountKind, id int64) (Account, error) {
	meta, ok := accountTables[kind]
	if !ok {
		return Account{}, fmt.Errorf("tipo de conta desconhecido: %s", kind)
	}
	p := meta.prefix

	depCol, cargoCol := "NULL::bigint", "''"
	switch kind {
	case KindFuncionario:
		depCol, cargoCol = "dep_id", "fun_cargo"
	case KindUsuario:
		cargoCol = "usu_role"
	}

	query := fmt.Sprintf(`
        SELECT %[1]s_id, %[1]s_nome, %[1]s_email, %[1]s_senha, %[1]s_ativo, %[1]s_tentativas_login, %[1]s_bloqueado_ate, cid_id, %[2]s, %[3]s
        FROM %[4]s
        WHERE %[1]s_id = $1`, p, depCol, cargoCol, meta.table)

	acc := Account{Kind: kind}
	err := q.db.QueryRow(ctx, query, id).Scan(
		&acc.ID, &acc.Nome, &acc.Email, &acc.SenhaHash, &acc.Ativo, &acc.TentativasLogin,
		&acc.BloqueadoAte, &acc.CidadeID, &acc.DepartamentoID, &acc.Cargo,
	)
	if err != nil {
		return Account{}, Classify(err)
	}
	return acc, nil
}

// RegisterLoginFailure incrementa tentativas e aplica bloqueio ao atingir o limite.
// Um bloqueio já expirado reinicia a contagem.
func (q *Queries) RegisterLoginFailure(ctx context.Context, kind AccountKind, id int64, maxAttempts int, lockUntil, now time.Time) (int, *time.Time, error) {
	meta, ok := accountTables[kind]
	if !ok {
		return 0, nil, fmt.Errorf("tipo de conta desconhecido: %s", kind)
	}

	query := fmt.Sprintf(`
        UPDATE %[2]s SET
            %[1]s_tentativas_login = CASE
                WHEN %[1]s_bloqueado_ate IS NOT NULL AND %[1]s_bloqueado_ate <= $2 THEN 1
                ELSE %[1]s_tentativas_login + 1 END,
            %[1]s_bloqueado_ate = CASE
                WHEN (CASE WHEN %[1]s_bloqueado_ate IS NOT NULL AND %[1]s_bloqueado_ate <= $2 THEN 1
                      ELSE %[1]s_tentativas_login + 1 END) >= $3 THEN $4
                WHEN %[1]s_bloqueado_ate IS NOT NULL AND %[1]s_bloqueado_ate <= $2 THEN NULL
                ELSE %[1]s_bloqueado_ate END
        WHERE %[1]s_id = $1
        RETURNING %[1]s_tentativas_login, %[1]s_bloqueado_ate`, meta.prefix, meta.table)

	var (
		attempts int
		locked   *time.Time
	)
	if err := q.db.QueryRow(ctx, query, id, now, maxAttempts, lockUntil).Scan(&attempts, &locked); err != nil {
		return 0, nil, Classify(err)
	}
	return attempts, locked, nil
}

// ResetLoginState zera tentativas e bloqueio após login bem-sucedido.
func (q *Queries) ResetLoginState(ctx context.Context, kind AccountKind, id int64) error {
	meta, ok := accountTables[kind]
	if !ok {
		return fmt.Errorf("tipo de conta desconhecido: %s", kind)
	}
	query := fmt.Sprintf(`UPDATE %[2]s SET %[1]s_tentativas_login = 0, %[1]s_bloqueado_ate = NULL WHERE %[1]s_id = $1`, meta.prefix, meta.table)
	cmd, err := q.db.Exec(ctx, query, id)
	if err != nil {
		return Classify(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AccountKindsByEmail devolve os tipos de conta que possuem o e-mail.
func (q *Queries) AccountKindsByEmail(ctx context.Context, email string) ([]AccountKind, error) {
	const query = `
        SELECT 'administrador' FROM administrador WHERE lower(adm_email) = $1
        UNION ALL
        SELECT 'usuario' FROM usuario WHERE lower(usu_email) = $1
        UNION ALL
        SELECT 'funcionario' FROM funcionario WHERE lower(fun_email) = $1`

	rows, err := q.db.Query(ctx, query, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var kinds []AccountKind
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		kinds = append(kinds, AccountKind(k))
	}
	return kinds, rows.Err()
}

// UpdatePasswordByEmail troca a senha de todas as contas com o e-mail e limpa bloqueios.
func (q *Queries) UpdatePasswordByEmail(ctx context.Context, email, hash string) (int64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var total int64
	for _, kind := range LoginOrder {
		meta := accountTables[kind]
		query := fmt.Sprintf(`
            UPDATE %[2]s SET %[1]s_senha = $2, %[1]s_tentativas_login = 0, %[1]s_bloqueado_ate = NULL
            WHERE lower(%[1]s_email) = $1`, meta.prefix, meta.table)
		cmd, err := q.db.Exec(ctx, query, email, hash)
		if err != nil {
			return total, Classify(err)
		}
		total += cmd.RowsAffected()
	}
	return total, nil
}

// IdentityTaken verifica proativamente e-mail/CPF (e matrícula) já usados no tipo de conta.
func (q *Queries) IdentityTaken(ctx context.Context, kind AccountKind, email, cpf, matricula string, excludeID int64) (bool, error) {
	meta, ok := accountTables[kind]
	if !ok {
		return false, fmt.Errorf("tipo de conta desconhecido: %s", kind)
	}

	var where Where
	where.Add(meta.prefix+"_id <> ?", excludeID)

	var ors []string
	var args []any
	args = append(args, where.Args()...)
	if email != "" {
		args = append(args, strings.ToLower(strings.TrimSpace(email)))
		ors = append(ors, fmt.Sprintf("lower(%s_email) = $%d", meta.prefix, len(args)))
	}
	if cpf != "" {
		args = append(args, cpf)
		ors = append(ors, fmt.Sprintf("%s_cpf = $%d", meta.prefix, len(args)))
	}
	if matricula != "" && kind == KindFuncionario {
		args = append(args, matricula)
		ors = append(ors, fmt.Sprintf("fun_matricula = $%d", len(args)))
	}
	if len(ors) == 0 {
		return false, nil
	}

	query := fmt.Sprintf(`SELECT EXISTS(SELECT 1 FROM %s%s AND (%s))`, meta.table, where.SQL(), strings.Join(ors, " OR "))
	var exists bool
	if err := q.db.QueryRow(ctx, query, args...).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func onlyDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// UpdatePasswordHash regrava o hash (migração transparente de bcrypt para Argon2id).
func (q *Queries) UpdatePasswordHash(ctx context.Context, kind AccountKind, id int64, hash string) error {
	meta, ok := accountTables[kind]
	if !ok {
		return fmt.Errorf("tipo de conta desconhecido: %s", kind)
	}
	query := fmt.Sprintf(`UPDATE %[2]s SET %[1]s_senha = $2 WHERE %[1]s_id = $1`, meta.prefix, meta.table)
	_, err := q.db.Exec(ctx, query, id, hash)
	return Classify(err)
}
