package chamado

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/minhacidade/backend/internal/db"
	"github.com/minhacidade/backend/internal/notificacao"
	"github.com/minhacidade/backend/internal/repo"
)

const chamadoColumns = `c.cha_id, c.cha_titulo, c.cha_descricao, c.cha_prioridade, c.cha_status,
    c.cha_data_abertura, c.cha_data_fechamento, c.cha_cep, c.cha_logradouro, c.cha_numero,
    c.cha_bairro, c.cha_complemento, c.dep_id, c.cat_id, c.usu_id, c.cha_responsavel, d.cid_id`

const selectChamado = `SELECT ` + chamadoColumns + ` FROM chamado c JOIN departamento d ON d.dep_id = c.dep_id`

const etapaColumns = `eta_id, cha_id, eta_nome, eta_descricao, eta_data_inicio, eta_data_fim`

// Repository acessa chamados, etapas e as tabelas consultadas pelas regras.
type Repository struct {
	pool *pgxpool.Pool
	db   repo.DBTX
}

// NewRepository cria repositório sobre o pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, db: pool}
}

// InTx executa fn com um repositório vinculado a uma única transação.
func (r *Repository) InTx(ctx context.Context, fn func(Store) error) error {
	return db.WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		return fn(&Repository{pool: r.pool, db: tx})
	})
}

func scanChamado(row pgx.Row) (*Chamado, error) {
	var c Chamado
	err := row.Scan(
		&c.ID, &c.Titulo, &c.Descricao, &c.Prioridade, &c.Status,
		&c.DataAbertura, &c.DataFechamento, &c.Endereco.CEP, &c.Endereco.Logradouro, &c.Endereco.Numero,
		&c.Endereco.Bairro, &c.Endereco.Complemento, &c.DepartamentoID, &c.CategoriaID, &c.UsuarioID,
		&c.ResponsavelID, &c.CidadeID,
	)
	if err != nil {
		return nil, repo.Classify(err)
	}
	return &c, nil
}

func scanEtapa(row pgx.Row) (*Etapa, error) {
	var e Etapa
	if err := row.Scan(&e.ID, &e.ChamadoID, &e.Nome, &e.Descricao, &e.DataInicio, &e.DataFim); err != nil {
		return nil, repo.Classify(err)
	}
	return &e, nil
}

// Get busca chamado.
func (r *Repository) Get(ctx context.Context, id int64) (*Chamado, error) {
	return scanChamado(r.db.QueryRow(ctx, selectChamado+` WHERE c.cha_id = $1`, id))
}

// GetForUpdate busca e trava a linha do chamado até o fim da transação.
func (r *Repository) GetForUpdate(ctx context.Context, id int64) (*Chamado, error) {
	return scanChamado(r.db.QueryRow(ctx, selectChamado+` WHERE c.cha_id = $1 FOR UPDATE OF c`, id))
}

func listWhere(filter Filter) *repo.Where {
	var where repo.Where
	if filter.CidadeID != nil {
		where.Add("d.cid_id = ?", *filter.CidadeID)
	}
	if filter.DepartamentoID != nil {
		where.Add("c.dep_id = ?", *filter.DepartamentoID)
	}
	if len(filter.Status) > 0 {
		where.Add("c.cha_status = ANY(?)", filter.Status)
	}
	if filter.UsuarioID != nil {
		where.Add("c.usu_id = ?", *filter.UsuarioID)
	}
	if filter.ResponsavelID != nil {
		where.Add("c.cha_responsavel = ?", *filter.ResponsavelID)
	}
	if filter.Prioridade != "" {
		where.Add("c.cha_prioridade = ?", filter.Prioridade)
	}
	return &where
}

// List lista chamados do mais recente para o mais antigo.
func (r *Repository) List(ctx context.Context, filter Filter) ([]Chamado, error) {
	where := listWhere(filter)
	page, args := where.Page(filter.Limit, filter.Offset)

	rows, err := r.db.Query(ctx, selectChamado+where.SQL()+` ORDER BY c.cha_data_abertura DESC, c.cha_id DESC`+page, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Chamado{}
	for rows.Next() {
		c, err := scanChamado(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// Insert grava o chamado com status Pendente.
func (r *Repository) Insert(ctx context.Context, p InsertParams) (*Chamado, error) {
	return scanChamado(r.db.QueryRow(ctx, `
        WITH c AS (
            INSERT INTO chamado (cha_titulo, cha_descricao, cha_prioridade, cha_status, cha_data_abertura,
                cha_cep, cha_logradouro, cha_numero, cha_bairro, cha_complemento, dep_id, cat_id, usu_id)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
            RETURNING *
        )
        SELECT `+chamadoColumns+` FROM c JOIN departamento d ON d.dep_id = c.dep_id`,
		p.Titulo, p.Descricao, p.Prioridade, StatusPendente, p.Abertura,
		p.Endereco.CEP, p.Endereco.Logradouro, p.Endereco.Numero, p.Endereco.Bairro, p.Endereco.Complemento,
		p.DepartamentoID, p.CategoriaID, p.UsuarioID))
}

func (r *Repository) applyPatch(ctx context.Context, id int64, p *repo.Patch) (*Chamado, error) {
	if p.Empty() {
		return r.Get(ctx, id)
	}
	query, args := p.Build("chamado", "cha_id", id, "*")
	return scanChamado(r.db.QueryRow(ctx,
		`WITH c AS (`+query+`) SELECT `+chamadoColumns+` FROM c JOIN departamento d ON d.dep_id = c.dep_id`, args...))
}

// Update aplica somente os campos informados.
func (r *Repository) Update(ctx context.Context, id int64, in UpdateInput) (*Chamado, error) {
	var p repo.Patch
	repo.SetIf(&p, "cha_titulo", in.Titulo)
	repo.SetIf(&p, "cha_descricao", in.Descricao)
	repo.SetIf(&p, "cha_prioridade", in.Prioridade)
	repo.SetIf(&p, "cat_id", in.CategoriaID)
	if e := in.Endereco; e != nil {
		repo.SetIf(&p, "cha_cep", e.CEP)
		repo.SetIf(&p, "cha_logradouro", e.Logradouro)
		repo.SetIf(&p, "cha_numero", e.Numero)
		repo.SetIf(&p, "cha_bairro", e.Bairro)
		repo.SetIf(&p, "cha_complemento", e.Complemento)
	}
	return r.applyPatch(ctx, id, &p)
}

// ApplyStatus grava o efeito de uma transição.
func (r *Repository) ApplyStatus(ctx context.Context, id int64, u StatusUpdate) (*Chamado, error) {
	var p repo.Patch
	p.Set("cha_status", u.Status)
	if u.ClearResponsavel {
		p.SetRaw("cha_responsavel = NULL")
	} else {
		repo.SetIf(&p, "cha_responsavel", u.ResponsavelID)
	}
	repo.SetIf(&p, "dep_id", u.DepartamentoID)
	repo.SetIf(&p, "cha_data_fechamento", u.DataFechamento)
	return r.applyPatch(ctx, id, &p)
}

// CloseOpenEtapas encerra as etapas em aberto do chamado.
func (r *Repository) CloseOpenEtapas(ctx context.Context, chamadoID int64, at time.Time) error {
	_, err := r.db.Exec(ctx, `UPDATE etapa SET eta_data_fim = $2 WHERE cha_id = $1 AND eta_data_fim IS NULL`, chamadoID, at)
	return err
}

// InsertEtapa acrescenta etapa ao histórico.
func (r *Repository) InsertEtapa(ctx context.Context, e Etapa) (*Etapa, error) {
	return scanEtapa(r.db.QueryRow(ctx, `
        INSERT INTO etapa (cha_id, eta_nome, eta_descricao, eta_data_inicio, eta_data_fim)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING `+etapaColumns, e.ChamadoID, e.Nome, e.Descricao, e.DataInicio, e.DataFim))
}

// ListEtapas lista o histórico em ordem cronológica.
func (r *Repository) ListEtapas(ctx context.Context, chamadoID int64) ([]Etapa, error) {
	rows, err := r.db.Query(ctx, `SELECT `+etapaColumns+` FROM etapa WHERE cha_id = $1 ORDER BY eta_data_inicio, eta_id`, chamadoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Etapa{}
	for rows.Next() {
		e, err := scanEtapa(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// InsertNotificacoes grava notificações na mesma conexão/transação.
func (r *Repository) InsertNotificacoes(ctx context.Context, novas []notificacao.Nova) ([]notificacao.Notificacao, error) {
	if len(novas) == 0 {
		return nil, nil
	}
	return notificacao.InsertBatch(ctx, r.db, novas)
}

// GetDepartamento carrega dados do departamento usados pelas regras.
func (r *Repository) GetDepartamento(ctx context.Context, id int64) (DepartamentoRef, error) {
	var d DepartamentoRef
	err := r.db.QueryRow(ctx, `SELECT dep_id, dep_nome, cid_id, dep_prioridade_padrao FROM departamento WHERE dep_id = $1`, id).
		Scan(&d.ID, &d.Nome, &d.CidadeID, &d.PrioridadePadrao)
	return d, repo.Classify(err)
}

// CategoriaExists confirma a categoria.
func (r *Repository) CategoriaExists(ctx context.Context, id int64) (bool, error) {
	var ok bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM categoria WHERE cat_id = $1)`, id).Scan(&ok)
	return ok, err
}

// UsuarioExists confirma o munícipe solicitante.
func (r *Repository) UsuarioExists(ctx context.Context, id int64) (bool, error) {
	var ok bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM usuario WHERE usu_id = $1)`, id).Scan(&ok)
	return ok, err
}

// GetFuncionario carrega dados do funcionário usados na atribuição.
func (r *Repository) GetFuncionario(ctx context.Context, id int64) (FuncionarioRef, error) {
	var f FuncionarioRef
	err := r.db.QueryRow(ctx, `SELECT fun_id, fun_nome, fun_cargo, fun_ativo, cid_id, dep_id FROM funcionario WHERE fun_id = $1`, id).
		Scan(&f.ID, &f.Nome, &f.Cargo, &f.Ativo, &f.CidadeID, &f.DepartamentoID)
	return f, repo.Classify(err)
}

// ListAtendentes devolve os atendentes ativos do departamento.
func (r *Repository) ListAtendentes(ctx context.Context, departamentoID int64) ([]int64, error) {
	rows, err := r.db.Query(ctx, `
        SELECT fun_id FROM funcionario
        WHERE dep_id = $1 AND fun_cargo = 'atendente' AND fun_ativo
        ORDER BY fun_id`, departamentoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func statsWhere(f StatsFilter) *repo.Where {
	var where repo.Where
	if f.CidadeID != nil {
		where.Add("d.cid_id = ?", *f.CidadeID)
	}
	if f.DepartamentoID != nil {
		where.Add("c.dep_id = ?", *f.DepartamentoID)
	}
	return &where
}

// Distribution conta chamados por status e por departamento.
func (r *Repository) Distribution(ctx context.Context, f StatsFilter) (*Distribution, error) {
	where := statsWhere(f)
	out := &Distribution{PorStatus: map[string]int64{}, PorDepartamento: []DepartamentoCount{}}

	rows, err := r.db.Query(ctx, `
        SELECT c.cha_status, count(*)
        FROM chamado c JOIN departamento d ON d.dep_id = c.dep_id`+where.SQL()+`
        GROUP BY c.cha_status`, where.Args()...)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var status string
		var total int64
		if err := rows.Scan(&status, &total); err != nil {
			rows.Close()
			return nil, err
		}
		out.PorStatus[status] = total
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = r.db.Query(ctx, `
        SELECT d.dep_id, d.dep_nome, count(*)
        FROM chamado c JOIN departamento d ON d.dep_id = c.dep_id`+where.SQL()+`
        GROUP BY d.dep_id, d.dep_nome
        ORDER BY count(*) DESC, d.dep_nome`, where.Args()...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var dc DepartamentoCount
		if err := rows.Scan(&dc.DepartamentoID, &dc.Nome, &dc.Total); err != nil {
			return nil, err
		}
		out.PorDepartamento = append(out.PorDepartamento, dc)
	}
	return out, rows.Err()
}

// Trend conta abertos e fechados por dia nos últimos `dias` dias até `ate`.
func (r *Repository) Trend(ctx context.Context, f StatsFilter, ate time.Time) ([]TrendPoint, error) {
	where := statsWhere(f)
	args := append(append([]any(nil), where.Args()...), ate, f.Dias)
	n := len(args)

	query := fmt.Sprintf(`
        WITH dias AS (
            SELECT generate_series($%[1]d::date - ($%[2]d::int - 1), $%[1]d::date, interval '1 day')::date AS dia
        )
        SELECT to_char(dias.dia, 'YYYY-MM-DD'),
            (SELECT count(*) FROM chamado c JOIN departamento d ON d.dep_id = c.dep_id
             WHERE %[3]s AND c.cha_data_abertura::date = dias.dia),
            (SELECT count(*) FROM chamado c JOIN departamento d ON d.dep_id = c.dep_id
             WHERE %[3]s AND c.cha_data_fechamento::date = dias.dia)
        FROM dias
        ORDER BY dias.dia`, n-1, n, where.Expr())

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []TrendPoint{}
	for rows.Next() {
		var p TrendPoint
		if err := rows.Scan(&p.Dia, &p.Abertos, &p.Fechados); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Stats calcula totais e tempo médio de resolução em horas.
func (r *Repository) Stats(ctx context.Context, f StatsFilter) (*Stats, error) {
	where := statsWhere(f)
	out := &Stats{PorPrioridade: map[string]int64{}}

	err := r.db.QueryRow(ctx, `
        SELECT count(*),
            count(*) FILTER (WHERE c.cha_data_fechamento IS NULL),
            count(*) FILTER (WHERE c.cha_data_fechamento IS NOT NULL),
            (avg(EXTRACT(EPOCH FROM (c.cha_data_fechamento - c.cha_data_abertura)) / 3600)
                FILTER (WHERE c.cha_status IN ('`+StatusResolvido+`', '`+StatusFinalizado+`')))::float8
        FROM chamado c JOIN departamento d ON d.dep_id = c.dep_id`+where.SQL(), where.Args()...).
		Scan(&out.Total, &out.Abertos, &out.Fechados, &out.TempoMedioResolucaoHoras)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, `
        SELECT c.cha_prioridade, count(*)
        FROM chamado c JOIN departamento d ON d.dep_id = c.dep_id`+where.SQL()+`
        GROUP BY c.cha_prioridade`, where.Args()...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var prioridade string
		var total int64
		if err := rows.Scan(&prioridade, &total); err != nil {
			return nil, err
		}
		out.PorPrioridade[strings.TrimSpace(prioridade)] = total
	}
	return out, rows.Err()
}
