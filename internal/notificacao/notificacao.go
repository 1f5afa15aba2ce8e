package notificacao

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"github.com/minhacidade/backend/internal/auth"
	"github.com/minhacidade/backend/internal/repo"
)

// ErrNotFound indica notificação inexistente ou de outro destinatário.
var ErrNotFound = repo.ErrNotFound

// Notificacao é um aviso para munícipe ou funcionário.
type Notificacao struct {
	ID            int64     `json:"id"`
	Mensagem      string    `json:"mensagem"`
	Lida          bool      `json:"lida"`
	Data          time.Time `json:"data"`
	ChamadoID     *int64    `json:"chamado_id,omitempty"`
	UsuarioID     *int64    `json:"usuario_id,omitempty"`
	FuncionarioID *int64    `json:"funcionario_id,omitempty"`
}

// Nova descreve notificação a inserir.
type Nova struct {
	Mensagem      string
	ChamadoID     *int64
	UsuarioID     *int64
	FuncionarioID *int64
}

// ParaUsuario monta aviso a um munícipe.
func ParaUsuario(usuarioID int64, chamadoID *int64, mensagem string) Nova {
	return Nova{Mensagem: mensagem, ChamadoID: chamadoID, UsuarioID: &usuarioID}
}

// ParaFuncionario monta aviso a um funcionário.
func ParaFuncionario(funcionarioID int64, chamadoID *int64, mensagem string) Nova {
	return Nova{Mensagem: mensagem, ChamadoID: chamadoID, FuncionarioID: &funcionarioID}
}

// Destinatario identifica o dono da caixa de notificações.
type Destinatario struct {
	Kind string
	ID   int64
}

// DestinatarioDe deriva o destinatário do principal. Administradores não possuem caixa.
func DestinatarioDe(p auth.Principal) (Destinatario, bool) {
	switch p.Kind {
	case auth.KindUsuario, auth.KindFuncionario:
		return Destinatario{Kind: p.Kind, ID: p.ID}, true
	}
	return Destinatario{}, false
}

// Destinatario devolve o dono da notificação.
func (n Notificacao) Destinatario() Destinatario {
	if n.FuncionarioID != nil {
		return Destinatario{Kind: auth.KindFuncionario, ID: *n.FuncionarioID}
	}
	if n.UsuarioID != nil {
		return Destinatario{Kind: auth.KindUsuario, ID: *n.UsuarioID}
	}
	return Destinatario{}
}

func (d Destinatario) column() string {
	if d.Kind == auth.KindFuncionario {
		return "fun_id"
	}
	return "usu_id"
}

const columns = `not_id, not_mensagem, not_lida, not_data, cha_id, usu_id, fun_id`

func scanNotificacao(row pgx.Row) (*Notificacao, error) {
	var n Notificacao
	if err := row.Scan(&n.ID, &n.Mensagem, &n.Lida, &n.Data, &n.ChamadoID, &n.UsuarioID, &n.FuncionarioID); err != nil {
		return nil, repo.Classify(err)
	}
	return &n, nil
}

// InsertBatch grava as notificações na conexão ou transação recebida.
func InsertBatch(ctx context.Context, db repo.DBTX, novas []Nova) ([]Notificacao, error) {
	out := make([]Notificacao, 0, len(novas))
	for _, nv := range novas {
		n, err := scanNotificacao(db.QueryRow(ctx, `
            INSERT INTO notificacao (not_mensagem, cha_id, usu_id, fun_id)
            VALUES ($1, $2, $3, $4)
            RETURNING `+columns, nv.Mensagem, nv.ChamadoID, nv.UsuarioID, nv.FuncionarioID))
		if err != nil {
			return nil, fmt.Errorf("inserir notificação: %w", err)
		}
		out = append(out, *n)
	}
	return out, nil
}

// Filter restringe a listagem.
type Filter struct {
	SomenteNaoLidas bool
	Limit           int
	Offset          int
}

// Repository acessa a tabela de notificações.
type Repository struct {
	db repo.DBTX
}

// NewRepository cria repositório.
func NewRepository(db repo.DBTX) *Repository {
	return &Repository{db: db}
}

// List devolve as notificações do destinatário, mais recentes primeiro.
func (r *Repository) List(ctx context.Context, d Destinatario, filter Filter) ([]Notificacao, error) {
	var where repo.Where
	where.Add(d.column()+" = ?", d.ID)
	if filter.SomenteNaoLidas {
		where.AddRaw("NOT not_lida")
	}
	page, args := where.Page(filter.Limit, filter.Offset)

	rows, err := r.db.Query(ctx, `SELECT `+columns+` FROM notificacao`+where.SQL()+` ORDER BY not_data DESC, not_id DESC`+page, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Notificacao{}
	for rows.Next() {
		n, err := scanNotificacao(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *n)
	}
	return out, rows.Err()
}

// CountUnread conta notificações não lidas.
func (r *Repository) CountUnread(ctx context.Context, d Destinatario) (int64, error) {
	var total int64
	err := r.db.QueryRow(ctx, `SELECT count(*) FROM notificacao WHERE `+d.column()+` = $1 AND NOT not_lida`, d.ID).Scan(&total)
	return total, err
}

// MarkRead marca uma notificação do destinatário como lida.
func (r *Repository) MarkRead(ctx context.Context, d Destinatario, id int64) error {
	cmd, err := r.db.Exec(ctx, `UPDATE notificacao SET not_lida = TRUE WHERE not_id = $1 AND `+d.column()+` = $2`, id, d.ID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkAllRead marca todas as notificações do destinatário como lidas.
func (r *Repository) MarkAllRead(ctx context.Context, d Destinatario) (int64, error) {
	cmd, err := r.db.Exec(ctx, `UPDATE notificacao SET not_lida = TRUE WHERE `+d.column()+` = $1 AND NOT not_lida`, d.ID)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

// Sender entrega mensagens a conexões de uma conta.
type Sender interface {
	SendTo(key string, payload []byte) int
}

// AccountKey é a chave de roteamento de uma conta no hub em tempo real.
func AccountKey(kind string, id int64) string {
	return fmt.Sprintf("%s:%d", kind, id)
}

// Pusher envia notificações recém-criadas em tempo real.
type Pusher struct {
	sender Sender
}

// NewPusher cria pusher sobre o hub.
func NewPusher(sender Sender) *Pusher {
	return &Pusher{sender: sender}
}

type pushMessage struct {
	Tipo        string      `json:"tipo"`
	Notificacao Notificacao `json:"notificacao"`
}

// Push entrega cada notificação às conexões do destinatário. Falhas são apenas logadas.
func (p *Pusher) Push(notificacoes []Notificacao) {
	if p == nil || p.sender == nil {
		return
	}
	for _, n := range notificacoes {
		d := n.Destinatario()
		if d.Kind == "" {
			continue
		}
		payload, err := json.Marshal(pushMessage{Tipo: "notificacao", Notificacao: n})
		if err != nil {
			log.Warn().Err(err).Int64("notificacao", n.ID).Msg("notificacao: falha ao serializar push")
			continue
		}
		p.sender.SendTo(AccountKey(d.Kind, d.ID), payload)
	}
}
