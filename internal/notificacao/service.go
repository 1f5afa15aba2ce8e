package notificacao

import (
	"context"

	"github.com/minhacidade/backend/internal/auth"
)

// Store abstrai o repositório.
type Store interface {
	List(ctx context.Context, d Destinatario, filter Filter) ([]Notificacao, error)
	CountUnread(ctx context.Context, d Destinatario) (int64, error)
	MarkRead(ctx context.Context, d Destinatario, id int64) error
	MarkAllRead(ctx context.Context, d Destinatario) (int64, error)
}

// Service expõe a caixa de notificações do principal.
type Service struct {
	repo Store
}

// NewService cria serviço.
func NewService(store Store) *Service {
	return &Service{repo: store}
}

// List lista notificações do principal.
func (s *Service) List(ctx context.Context, p auth.Principal, filter Filter) ([]Notificacao, error) {
	d, ok := DestinatarioDe(p)
	if !ok {
		return []Notificacao{}, nil
	}
	return s.repo.List(ctx, d, filter)
}

// CountUnread conta não lidas.
func (s *Service) CountUnread(ctx context.Context, p auth.Principal) (int64, error) {
	d, ok := DestinatarioDe(p)
	if !ok {
		return 0, nil
	}
	return s.repo.CountUnread(ctx, d)
}

// MarkRead marca uma notificação como lida.
func (s *Service) MarkRead(ctx context.Context, p auth.Principal, id int64) error {
	d, ok := DestinatarioDe(p)
	if !ok {
		return ErrNotFound
	}
	return s.repo.MarkRead(ctx, d, id)
}

// MarkAllRead marca todas como lidas.
func (s *Service) MarkAllRead(ctx context.Context, p auth.Principal) (int64, error) {
	d, ok := DestinatarioDe(p)
	if !ok {
		return 0, nil
	}
	return s.repo.MarkAllRead(ctx, d)
}
