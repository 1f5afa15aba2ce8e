package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/minhacidade/backend/internal/auth"
	"github.com/minhacidade/backend/internal/db"
	"github.com/minhacidade/backend/internal/mailer"
	"github.com/minhacidade/backend/internal/repo"
	"github.com/minhacidade/backend/internal/util"
)

var (
	// ErrResetTokenInvalid indica token inexistente, usado ou expirado.
	ErrResetTokenInvalid = errors.New("token inválido ou expirado")
	// ErrMailDelivery indica falha no envio do e-mail.
	ErrMailDelivery = errors.New("falha ao enviar e-mail")
)

type recoveryStore interface {
	AccountKindsByEmail(ctx context.Context, email string) ([]repo.AccountKind, error)
	InsertResetToken(ctx context.Context, hash, email string, expiraEm time.Time) error
	GetResetTokenForUpdate(ctx context.Context, hash string) (repo.TokenRecuperacao, error)
	MarkResetTokenUsed(ctx context.Context, id int64, at time.Time) error
	UpdatePasswordByEmail(ctx context.Context, email, hash string) (int64, error)
}

// RecoveryService implementa a recuperação de senha por e-mail.
type RecoveryService struct {
	store       recoveryStore
	inTx        func(ctx context.Context, fn func(recoveryStore) error) error
	mailer      mailer.Mailer
	ttl         time.Duration
	frontendURL string
	now         func() time.Time
}

// NewRecoveryService cria serviço sobre o pool.
func NewRecoveryService(pool *pgxpool.Pool, m mailer.Mailer, ttl time.Duration, frontendURL string) *RecoveryService {
	return &RecoveryService{
		store: repo.New(pool),
		inTx: func(ctx context.Context, fn func(recoveryStore) error) error {
			return db.WithTx(ctx, pool, func(ctx context.Context, tx pgx.Tx) error {
				return fn(repo.New(tx))
			})
		},
		mailer:      m,
		ttl:         ttl,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		now:         util.Now,
	}
}

// RequestReset emite token e envia o link. E-mail desconhecido não gera erro.
func (s *RecoveryService) RequestReset(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	kinds, err := s.store.AccountKindsByEmail(ctx, email)
	if err != nil {
		return err
	}
	if len(kinds) == 0 {
		log.Info().Msg("recuperação de senha: e-mail não cadastrado")
		return nil
	}

	raw, hash, err := auth.GenerateResetToken()
	if err != nil {
		return err
	}
	if err := s.store.InsertResetToken(ctx, hash, email, s.now().Add(s.ttl)); err != nil {
		return err
	}

	link := fmt.Sprintf("%s/redefinir-senha?token=%s", s.frontendURL, url.QueryEscape(raw))
	msg := mailer.Message{
		To:      email,
		Subject: "Minha Cidade - redefinição de senha",
		Text: fmt.Sprintf("Recebemos um pedido para redefinir sua senha.\n\nAcesse: %s\n\nO link expira em %d minutos. Se você não fez o pedido, ignore este e-mail.",
			link, int(s.ttl.Minutes())),
		HTML: fmt.Sprintf(`<p>Recebemos um pedido para redefinir sua senha.</p><p><a href="%s">Redefinir senha</a></p><p>O link expira em %d minutos.</p>`,
			link, int(s.ttl.Minutes())),
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		log.Error().Err(err).Msg("recuperação de senha: envio falhou")
		return fmt.Errorf("%w: %v", ErrMailDelivery, err)
	}
	return nil
}

// ResetPassword consome o token e troca a senha de todas as contas do e-mail.
func (s *RecoveryService) ResetPassword(ctx context.Context, rawToken, novaSenha string) error {
	if strings.TrimSpace(rawToken) == "" {
		return ErrResetTokenInvalid
	}
	if err := util.ValidatePassword(novaSenha); err != nil {
		return util.Invalid("nova_senha", err.Error())
	}

	hashed, err := auth.Hash(novaSenha)
	if err != nil {
		return err
	}

	return s.inTx(ctx, func(st recoveryStore) error {
		tok, err := st.GetResetTokenForUpdate(ctx, auth.HashToken(rawToken))
		if errors.Is(err, repo.ErrNotFound) {
			return ErrResetTokenInvalid
		}
		if err != nil {
			return err
		}

		now := s.now()
		if tok.UsadoEm != nil || !tok.ExpiraEm.After(now) {
			return ErrResetTokenInvalid
		}

		if err := st.MarkResetTokenUsed(ctx, tok.ID, now); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrResetTokenInvalid
			}
			return err
		}

		updated, err := st.UpdatePasswordByEmail(ctx, tok.Email, hashed)
		if err != nil {
			return err
		}
		if updated == 0 {
			return ErrResetTokenInvalid
		}
		return nil
	})
}
