package sac

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/minhacidade/backend/internal/db"
	"github.com/minhacidade/backend/internal/notificacao"
	"github.com/minhacidade/backend/internal/repo"
)

const sacColumns = `s.sac_id, s.sac_tipo, s.sac_assunto, s.sac_mensagem, s.sac_status, s.sac_resposta,
    s.sac_anexo_url, s.sac_data_criacao, s.sac_data_resposta, s.usu_id, u.cid_id`

const selectSac = `SELECT ` + sacColumns + ` FROM sac_ouvidoria s JOIN usuario u ON u.usu_id = s.usu_id`

// Repository acessa a tabela sac_ouvidoria.
type Repository struct {
	pool *pgxpool.Pool
	db   repo.DBTX
}

// NewRepository cria repositório.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, db: pool}
}

// InTx executa fn com repositório vinculado à transação.
func (r *Repository) InTx(ctx context.Context, fn func(Store) error) error {
	return db.WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		return fn(&Repository{pool: r.pool, db: tx})
	})
}

func scanManifestacao(row pgx.Row) (*Manifestacao, error) {
	var m Manifestacao
	err := row.Scan(&m.ID, &m.Tipo, &m.Assunto, &m.Mensagem, &m.Status, &m.Resposta,
		&m.AnexoURL, &m.DataCriacao, &m.DataResposta, &m.UsuarioID, &m.CidadeID)
	if err != nil {
		return nil, repo.Classify(err)
	}
	return &m, nil
}

// Insert grava nova manifestação com status Aberto.
func (r *Repository) Insert(ctx context.Context, usuarioID int64, in CreateInput) (*Manifestacao, error) {
	return scanManifestacao(r.db.QueryRow(ctx, `
        WITH s AS (
            INSERT INTO sac_ouvidoria (sac_tipo, sac_assunto, sac_mensagem, sac_status, sac_anexo_url, usu_id)
            VALUES ($1, $2, $3, $4, $5, $6)
            RETURNING *
        )
        SELECT `+sacColumns+` FROM s JOIN usuario u ON u.usu_id = s.usu_id`,
		in.Tipo, in.Assunto, in.Mensagem, StatusAberto, in.AnexoURL, usuarioID))
}

// Get busca manifestação.
func (r *Repository) Get(ctx context.Context, id int64) (*Manifestacao, error) {
	return scanManifestacao(r.db.QueryRow(ctx, selectSac+` WHERE s.sac_id = $1`, id))
}

// GetForUpdate busca e trava a linha até o fim da transação.
func (r *Repository) GetForUpdate(ctx context.Context, id int64) (*Manifestacao, error) {
	return scanManifestacao(r.db.QueryRow(ctx, selectSac+` WHERE s.sac_id = $1 FOR UPDATE OF s`, id))
}

// List lista manifestações mais recentes primeiro.
func (r *Repository) List(ctx context.Context, f Filter) ([]Manifestacao, error) {
	var where repo.Where
	if f.Tipo != "" {
		where.Add("s.sac_tipo = ?", f.Tipo)
	}
	if f.Status != "" {
		where.Add("s.sac_status = ?", f.Status)
	}
	if f.CidadeID != nil {
		where.Add("u.cid_id = ?", *f.CidadeID)
	}
	if f.UsuarioID != nil {
		where.Add("s.usu_id = ?", *f.UsuarioID)
	}
	page, args := where.Page(f.Limit, f.Offset)

	rows, err := r.db.Query(ctx, selectSac+where.SQL()+` ORDER BY s.sac_data_criacao DESC, s.sac_id DESC`+page, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Manifestacao{}
	for rows.Next() {
		m, err := scanManifestacao(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

// Responder grava a resposta e marca como respondida.
func (r *Repository) Responder(ctx context.Context, id int64, resposta string, at time.Time) (*Manifestacao, error) {
	return scanManifestacao(r.db.QueryRow(ctx, `
        WITH s AS (
            UPDATE sac_ouvidoria
               SET sac_resposta = $2, sac_status = $3, sac_data_resposta = $4
             WHERE sac_id = $1
            RETURNING *
        )
        SELECT `+sacColumns+` FROM s JOIN usuario u ON u.usu_id = s.usu_id`,
		id, resposta, StatusRespondido, at))
}

// InsertNotificacoes grava avisos na mesma conexão ou transação.
func (r *Repository) InsertNotificacoes(ctx context.Context, novas []notificacao.Nova) ([]notificacao.Notificacao, error) {
	return notificacao.InsertBatch(ctx, r.db, novas)
}
