package sac

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/minhacidade/backend/internal/auth"
	"github.com/minhacidade/backend/internal/notificacao"
	"github.com/minhacidade/backend/internal/util"
)

// Store abstrai o repositório.
type Store interface {
	InTx(ctx context.Context, fn func(Store) error) error
	Insert(ctx context.Context, usuarioID int64, in CreateInput) (*Manifestacao, error)
	Get(ctx context.Context, id int64) (*Manifestacao, error)
	GetForUpdate(ctx context.Context, id int64) (*Manifestacao, error)
	List(ctx context.Context, f Filter) ([]Manifestacao, error)
	Responder(ctx context.Context, id int64, resposta string, at time.Time) (*Manifestacao, error)
	InsertNotificacoes(ctx context.Context, novas []notificacao.Nova) ([]notificacao.Notificacao, error)
}

// Pusher entrega notificações em tempo real.
type Pusher interface {
	Push(notificacoes []notificacao.Notificacao)
}

// Service trata SAC e ouvidoria.
type Service struct {
	repo   Store
	pusher Pusher
	now    func() time.Time
}

// NewService cria serviço. pusher pode ser nil.
func NewService(store Store, pusher Pusher) *Service {
	return &Service{repo: store, pusher: pusher, now: util.Now}
}

// Create registra manifestação do munícipe autenticado.
func (s *Service) Create(ctx context.Context, p auth.Principal, in CreateInput) (*Manifestacao, error) {
	if p.Kind != auth.KindUsuario {
		return nil, ErrForbidden
	}
	in.Tipo = strings.ToLower(strings.TrimSpace(in.Tipo))
	in.Assunto = strings.TrimSpace(in.Assunto)
	in.Mensagem = strings.TrimSpace(in.Mensagem)
	if in.AnexoURL != nil {
		v := strings.TrimSpace(*in.AnexoURL)
		in.AnexoURL = &v
		if v == "" {
			in.AnexoURL = nil
		}
	}
	if err := util.Validate(in); err != nil {
		return nil, err
	}
	return s.repo.Insert(ctx, p.ID, in)
}

func canRead(p auth.Principal, m Manifestacao) bool {
	if p.Kind == auth.KindUsuario {
		return m.UsuarioID == p.ID
	}
	return p.IsAdmin() && p.CanAccessCidade(m.CidadeID)
}

// List devolve as manifestações do munícipe ou, para administradores, as da cidade.
func (s *Service) List(ctx context.Context, p auth.Principal, f Filter) ([]Manifestacao, error) {
	switch {
	case p.Kind == auth.KindUsuario:
		id := p.ID
		f.UsuarioID = &id
		f.CidadeID = nil
	case p.IsGlobalAdmin():
	case p.IsAdmin():
		if p.CidadeID == nil || (f.CidadeID != nil && *f.CidadeID != *p.CidadeID) {
			return nil, ErrForbidden
		}
		cid := *p.CidadeID
		f.CidadeID = &cid
	default:
		return nil, ErrForbidden
	}

	f.Tipo = strings.ToLower(strings.TrimSpace(f.Tipo))
	if f.Tipo != "" && f.Tipo != TipoSAC && f.Tipo != TipoOuvidoria {
		return nil, util.Invalid("tipo", "valor deve ser um de: sac ouvidoria")
	}
	if f.Status != "" && f.Status != StatusAberto && f.Status != StatusRespondido {
		return nil, util.Invalid("status", "valor deve ser um de: Aberto, Respondido")
	}
	return s.repo.List(ctx, f)
}

// Get busca manifestação visível ao principal.
func (s *Service) Get(ctx context.Context, p auth.Principal, id int64) (*Manifestacao, error) {
	m, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canRead(p, *m) {
		return nil, ErrForbidden
	}
	return m, nil
}

// Responder grava a resposta e avisa o munícipe na mesma transação.
func (s *Service) Responder(ctx context.Context, p auth.Principal, id int64, in RespostaInput) (*Manifestacao, error) {
	if !p.IsAdmin() {
		return nil, ErrForbidden
	}
	in.Resposta = strings.TrimSpace(in.Resposta)
	if err := util.Validate(in); err != nil {
		return nil, err
	}

	var (
		updated *Manifestacao
		notifs  []notificacao.Notificacao
	)
	err := s.repo.InTx(ctx, func(st Store) error {
		m, err := st.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !p.CanAccessCidade(m.CidadeID) {
			return ErrForbidden
		}
		if m.Status == StatusRespondido {
			return ErrJaRespondida
		}

		updated, err = st.Responder(ctx, id, in.Resposta, s.now())
		if err != nil {
			return err
		}

		label := "SAC"
		if m.Tipo == TipoOuvidoria {
			label = "ouvidoria"
		}
		notifs, err = st.InsertNotificacoes(ctx, []notificacao.Nova{
			notificacao.ParaUsuario(m.UsuarioID, nil, fmt.Sprintf("Sua manifestação de %s \"%s\" foi respondida.", label, m.Assunto)),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	if s.pusher != nil {
		s.pusher.Push(notifs)
	}
	return updated, nil
}
