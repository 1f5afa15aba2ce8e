package service

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minhacidade/backend/internal/auth"
	"github.com/minhacidade/backend/internal/mailer"
	"github.com/minhacidade/backend/internal/repo"
	"github.com/minhacidade/backend/internal/util"
)

type stubRecoveryStore struct {
	emails    map[string][]repo.AccountKind
	tokens    map[string]*repo.TokenRecuperacao
	passwords map[string]string
	nextID    int64
}

func (s *stubRecoveryStore) AccountKindsByEmail(ctx context.Context, email string) ([]repo.AccountKind, error) {
	return s.emails[email], nil
}

func (s *stubRecoveryStore) InsertResetToken(ctx context.Context, hash, email string, expiraEm time.Time) error {
	s.nextID++
	s.tokens[hash] = &repo.TokenRecuperacao{ID: s.nextID, Hash: hash, Email: email, ExpiraEm: expiraEm}
	return nil
}

func (s *stubRecoveryStore) GetResetTokenForUpdate(ctx context.Context, hash string) (repo.TokenRecuperacao, error) {
	tok, ok := s.tokens[hash]
	if !ok {
		return repo.TokenRecuperacao{}, repo.ErrNotFound
	}
	return *tok, nil
}

func (s *stubRecoveryStore) MarkResetTokenUsed(ctx context.Context, id int64, at time.Time) error {
	for _, tok := range s.tokens {
		if tok.ID == id && tok.UsadoEm == nil {
			tok.UsadoEm = &at
			return nil
		}
	}
	return repo.ErrNotFound
}

func (s *stubRecoveryStore) UpdatePasswordByEmail(ctx context.Context, email, hash string) (int64, error) {
	kinds := s.emails[email]
	for _, k := range kinds {
		s.passwords[string(k)+":"+email] = hash
	}
	return int64(len(kinds)), nil
}

type stubMailer struct {
	sent []mailer.Message
	err  error
}

func (m *stubMailer) Send(ctx context.Context, msg mailer.Message) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func newRecovery(store *stubRecoveryStore, m mailer.Mailer) *RecoveryService {
	return &RecoveryService{
		store: store,
		inTx: func(ctx context.Context, fn func(recoveryStore) error) error {
			return fn(store)
		},
		mailer:      m,
		ttl:         time.Hour,
		frontendURL: "https://app.minhacidade.gov.br",
		now:         util.Now,
	}
}

func tokenFromLink(t *testing.T, body string) string {
	t.Helper()
	idx := strings.Index(body, "https://")
	require.GreaterOrEqual(t, idx, 0)
	link := strings.Fields(body[idx:])[0]
	u, err := url.Parse(link)
	require.NoError(t, err)
	return u.Query().Get("token")
}

func TestRecoveryResetIsSingleUse(t *testing.T) {
	store := &stubRecoveryStore{
		emails:    map[string][]repo.AccountKind{"maria@example.com": {repo.KindUsuario}},
		tokens:    map[string]*repo.TokenRecuperacao{},
		passwords: map[string]string{},
	}
	m := &stubMailer{}
	svc := newRecovery(store, m)

	require.NoError(t, svc.RequestReset(context.Background(), "Maria@Example.com"))
	require.Len(t, m.sent, 1)
	assert.Equal(t, "maria@example.com", m.sent[0].To)

	raw := tokenFromLink(t, m.sent[0].Text)
	require.NotEmpty(t, raw)
	_, stored := store.tokens[auth.HashToken(raw)]
	assert.True(t, stored, "only the hash must be persisted")

	require.NoError(t, svc.ResetPassword(context.Background(), raw, "NovaSenha123"))
	hash := store.passwords["usuario:maria@example.com"]
	ok, err := auth.Verify("NovaSenha123", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	err = svc.ResetPassword(context.Background(), raw, "OutraSenha123")
	assert.ErrorIs(t, err, ErrResetTokenInvalid)
}

func TestRecoveryUnknownEmailIsSilent(t *testing.T) {
	store := &stubRecoveryStore{emails: map[string][]repo.AccountKind{}, tokens: map[string]*repo.TokenRecuperacao{}, passwords: map[string]string{}}
	m := &stubMailer{}
	svc := newRecovery(store, m)

	require.NoError(t, svc.RequestReset(context.Background(), "ninguem@example.com"))
	assert.Empty(t, m.sent)
	assert.Empty(t, store.tokens)
}

func TestRecoveryMailerFailureSurfaces(t *testing.T) {
	store := &stubRecoveryStore{
		emails:    map[string][]repo.AccountKind{"maria@example.com": {repo.KindUsuario}},
		tokens:    map[string]*repo.TokenRecuperacao{},
		passwords: map[string]string{},
	}
	svc := newRecovery(store, &stubMailer{err: errors.New("connection refused")})

	err := svc.RequestReset(context.Background(), "maria@example.com")
	assert.ErrorIs(t, err, ErrMailDelivery)
}

func TestRecoveryRejectsExpiredToken(t *testing.T) {
	store := &stubRecoveryStore{
		emails:    map[string][]repo.AccountKind{"maria@example.com": {repo.KindUsuario}},
		tokens:    map[string]*repo.TokenRecuperacao{},
		passwords: map[string]string{},
	}
	raw, hash, err := auth.GenerateResetToken()
	require.NoError(t, err)
	store.tokens[hash] = &repo.TokenRecuperacao{ID: 1, Hash: hash, Email: "maria@example.com", ExpiraEm: time.Now().Add(-time.Minute)}

	svc := newRecovery(store, &stubMailer{})
	assert.ErrorIs(t, svc.ResetPassword(context.Background(), raw, "NovaSenha123"), ErrResetTokenInvalid)

	var ve *util.ValidationError
	assert.ErrorAs(t, svc.ResetPassword(context.Background(), raw, "curta"), &ve)
}
