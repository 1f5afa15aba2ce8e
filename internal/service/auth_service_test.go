package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minhacidade/backend/internal/auth"
	"github.com/minhacidade/backend/internal/repo"
)

type stubAccounts struct {
	mu       sync.Mutex
	accounts map[repo.AccountKind][]*repo.Account
	upgraded int
}

func newStubAccounts(accs ...repo.Account) *stubAccounts {
	s := &stubAccounts{accounts: map[repo.AccountKind][]*repo.Account{}}
	for i := range accs {
		acc := accs[i]
		s.accounts[acc.Kind] = append(s.accounts[acc.Kind], &acc)
	}
	return s
}

func (s *stubAccounts) find(kind repo.AccountKind, id int64) *repo.Account {
	for _, acc := range s.accounts[kind] {
		if acc.ID == id {
			return acc
		}
	}
	return nil
}

func (s *stubAccounts) FindAccount(ctx context.Context, kind repo.AccountKind, identifier string) (repo.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, acc := range s.accounts[kind] {
		if strings.EqualFold(acc.Email, identifier) {
			return *acc, nil
		}
	}
	return repo.Account{}, repo.ErrNotFound
}

func (s *stubAccounts) GetAccount(ctx context.Context, kind repo.AccountKind, id int64) (repo.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if acc := s.find(kind, id); acc != nil {
		return *acc, nil
	}
	return repo.Account{}, repo.ErrNotFound
}

func (s *stubAccounts) RegisterLoginFailure(ctx context.Context, kind repo.AccountKind, id int64, maxAttempts int, lockUntil, now time.Time) (int, *time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc := s.find(kind, id)
	if acc == nil {
		return 0, nil, repo.ErrNotFound
	}
	if acc.BloqueadoAte != nil && !acc.BloqueadoAte.After(now) {
		acc.TentativasLogin = 0
		acc.BloqueadoAte = nil
	}
	acc.TentativasLogin++
	if acc.TentativasLogin >= maxAttempts {
		until := lockUntil
		acc.BloqueadoAte = &until
	}
	return acc.TentativasLogin, acc.BloqueadoAte, nil
}

func (s *stubAccounts) ResetLoginState(ctx context.Context, kind repo.AccountKind, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc := s.find(kind, id)
	if acc == nil {
		return repo.ErrNotFound
	}
	acc.TentativasLogin = 0
	acc.BloqueadoAte = nil
	return nil
}

func (s *stubAccounts) UpdatePasswordHash(ctx context.Context, kind repo.AccountKind, id int64, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if acc := s.find(kind, id); acc != nil {
		acc.SenhaHash = hash
		s.upgraded++
	}
	return nil
}

type stubRedis struct {
	store map[string]string
}

func (s *stubRedis) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	if s.store == nil {
		s.store = make(map[string]string)
	}
	s.store[key] = fmt.Sprint(value)
	cmd := redis.NewStatusCmd(ctx)
	cmd.SetVal("OK")
	return cmd
}

func (s *stubRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	cmd := redis.NewStringCmd(ctx)
	val, ok := s.store[key]
	if !ok {
		cmd.SetErr(redis.Nil)
		return cmd
	}
	cmd.SetVal(val)
	return cmd
}

func (s *stubRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	var removed int64
	for _, key := range keys {
		if _, ok := s.store[key]; ok {
			delete(s.store, key)
			removed++
		}
	}
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(removed)
	return cmd
}

const senha = "SenhaForte123!"

func mustHash(t *testing.T, password string) string {
	t.Helper()
	hash, err := auth.Hash(password)
	require.NoError(t, err)
	return hash
}

func newAuthService(accounts *stubAccounts, now time.Time) *AuthService {
	return &AuthService{
		repo:       accounts,
		redis:      &stubRedis{},
		jwt:        auth.NewJWTManager(strings.Repeat("a", 32), time.Minute),
		refreshTTL: time.Hour,
		now:        func() time.Time { return now },
	}
}

func int64Ptr(v int64) *int64 { return &v }

func TestLoginReturnsRolePerAccountKind(t *testing.T) {
	hash := mustHash(t, senha)
	accounts := newStubAccounts(
		repo.Account{Kind: repo.KindAdministrador, ID: 1, Email: "global@pref.gov.br", SenhaHash: hash, Ativo: true},
		repo.Account{Kind: repo.KindAdministrador, ID: 2, Email: "admin@recife.pe.gov.br", SenhaHash: hash, Ativo: true, CidadeID: int64Ptr(10)},
		repo.Account{Kind: repo.KindUsuario, ID: 3, Email: "maria@example.com", SenhaHash: hash, Ativo: true, CidadeID: int64Ptr(10), Cargo: "municipe"},
		repo.Account{Kind: repo.KindFuncionario, ID: 4, Email: "joao@recife.pe.gov.br", SenhaHash: hash, Ativo: true, CidadeID: int64Ptr(10), DepartamentoID: int64Ptr(5), Cargo: repo.CargoServidor},
		repo.Account{Kind: repo.KindFuncionario, ID: 5, Email: "ana@recife.pe.gov.br", SenhaHash: hash, Ativo: true, CidadeID: int64Ptr(10), DepartamentoID: int64Ptr(5), Cargo: repo.CargoAtendente},
	)
	svc := newAuthService(accounts, time.Now().UTC())

	cases := []struct {
		email string
		tipo  string
		role  string
	}{
		{"global@pref.gov.br", "administrador", auth.RoleAdminGlobal},
		{"admin@recife.pe.gov.br", "administrador", auth.RoleAdminCidade},
		{"maria@example.com", "usuario", auth.RoleMunicipe},
		{"joao@recife.pe.gov.br", "funcionario", auth.RoleServidor},
		{"ana@recife.pe.gov.br", "funcionario", auth.RoleAtendente},
	}

	for _, tc := range cases {
		t.Run(tc.role, func(t *testing.T) {
			result, err := svc.Login(context.Background(), LoginInput{Identificador: tc.email, Senha: senha})
			require.NoError(t, err)
			assert.Equal(t, tc.tipo, result.Tipo)
			assert.Equal(t, tc.role, result.Role)
			assert.NotEmpty(t, result.AccessToken)
			assert.NotEmpty(t, result.RefreshToken)

			claims, err := svc.JWT().ParseAndValidate(result.AccessToken)
			require.NoError(t, err)
			assert.Equal(t, []string{tc.role}, claims.Roles)
		})
	}
}

func TestRoleForIgnoresUnknownUsuarioRoles(t *testing.T) {
	assert.Equal(t, auth.RoleMunicipe, RoleFor(repo.Account{Kind: repo.KindUsuario, Cargo: auth.RoleAdminGlobal}))
	assert.Equal(t, auth.RoleMunicipe, RoleFor(repo.Account{Kind: repo.KindUsuario, Cargo: auth.RoleAtendente}))
	assert.Equal(t, auth.RoleMunicipe, RoleFor(repo.Account{Kind: repo.KindUsuario}))
	assert.Equal(t, auth.RoleMunicipe, RoleFor(repo.Account{Kind: repo.KindUsuario, Cargo: auth.RoleMunicipe}))
}

func TestLoginLocksAfterFiveFailures(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	accounts := newStubAccounts(repo.Account{Kind: repo.KindUsuario, ID: 3, Email: "maria@example.com", SenhaHash: mustHash(t, senha), Ativo: true})
	svc := newAuthService(accounts, now)

	for i := 1; i <= MaxLoginAttempts; i++ {
		_, err := svc.Login(context.Background(), LoginInput{Identificador: "maria@example.com", Senha: "errada"})
		var loginErr *LoginError
		require.ErrorAs(t, err, &loginErr)
		assert.ErrorIs(t, err, ErrInvalidCredentials)
		require.NotNil(t, loginErr.TentativasRestantes)
		assert.Equal(t, MaxLoginAttempts-i, *loginErr.TentativasRestantes)
	}

	_, err := svc.Login(context.Background(), LoginInput{Identificador: "maria@example.com", Senha: senha})
	var loginErr *LoginError
	require.ErrorAs(t, err, &loginErr)
	assert.ErrorIs(t, err, ErrAccountLocked)
	require.NotNil(t, loginErr.BloqueadoAte)
	assert.Equal(t, now.Add(30*time.Minute), *loginErr.BloqueadoAte)

	svc.now = func() time.Time { return now.Add(31 * time.Minute) }
	result, err := svc.Login(context.Background(), LoginInput{Identificador: "maria@example.com", Senha: senha})
	require.NoError(t, err)
	assert.Equal(t, auth.RoleMunicipe, result.Role)

	acc, _ := accounts.GetAccount(context.Background(), repo.KindUsuario, 3)
	assert.Zero(t, acc.TentativasLogin)
	assert.Nil(t, acc.BloqueadoAte)
}

func TestLoginRejectsDisabledAccount(t *testing.T) {
	accounts := newStubAccounts(repo.Account{Kind: repo.KindFuncionario, ID: 4, Email: "joao@recife.pe.gov.br", SenhaHash: mustHash(t, senha), Cargo: repo.CargoServidor})
	svc := newAuthService(accounts, time.Now().UTC())

	_, err := svc.Login(context.Background(), LoginInput{Identificador: "joao@recife.pe.gov.br", Senha: senha})
	assert.ErrorIs(t, err, ErrAccountDisabled)
}

func TestLoginUnknownIdentifierOmitsRemainingAttempts(t *testing.T) {
	svc := newAuthService(newStubAccounts(), time.Now().UTC())

	_, err := svc.Login(context.Background(), LoginInput{Identificador: "ninguem@example.com", Senha: senha})
	var loginErr *LoginError
	require.ErrorAs(t, err, &loginErr)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Nil(t, loginErr.TentativasRestantes)
}

func TestLoginCollisionFollowsPrecedenceUnlessTipoGiven(t *testing.T) {
	hash := mustHash(t, senha)
	accounts := newStubAccounts(
		repo.Account{Kind: repo.KindFuncionario, ID: 4, Email: "dupla@recife.pe.gov.br", SenhaHash: hash, Ativo: true, Cargo: repo.CargoServidor},
		repo.Account{Kind: repo.KindUsuario, ID: 3, Email: "dupla@recife.pe.gov.br", SenhaHash: hash, Ativo: true},
	)
	svc := newAuthService(accounts, time.Now().UTC())

	result, err := svc.Login(context.Background(), LoginInput{Identificador: "dupla@recife.pe.gov.br", Senha: senha})
	require.NoError(t, err)
	assert.Equal(t, "usuario", result.Tipo)

	result, err = svc.Login(context.Background(), LoginInput{Identificador: "dupla@recife.pe.gov.br", Senha: senha, Tipo: "funcionario"})
	require.NoError(t, err)
	assert.Equal(t, "funcionario", result.Tipo)

	_, err = svc.Login(context.Background(), LoginInput{Identificador: "dupla@recife.pe.gov.br", Senha: senha, Tipo: "root"})
	assert.True(t, errors.Is(err, ErrInvalidAccountKind))
}

func TestLoginUpgradesLegacyBcryptHash(t *testing.T) {
	legacy, err := auth.HashBcrypt(senha)
	require.NoError(t, err)
	accounts := newStubAccounts(repo.Account{Kind: repo.KindAdministrador, ID: 1, Email: "global@pref.gov.br", SenhaHash: legacy, Ativo: true})
	svc := newAuthService(accounts, time.Now().UTC())

	_, err = svc.Login(context.Background(), LoginInput{Identificador: "global@pref.gov.br", Senha: senha})
	require.NoError(t, err)
	assert.Equal(t, 1, accounts.upgraded)

	acc, _ := accounts.GetAccount(context.Background(), repo.KindAdministrador, 1)
	assert.False(t, auth.IsLegacyHash(acc.SenhaHash))
}

func TestRefreshRotatesToken(t *testing.T) {
	accounts := newStubAccounts(repo.Account{Kind: repo.KindUsuario, ID: 3, Email: "maria@example.com", SenhaHash: mustHash(t, senha), Ativo: true})
	svc := newAuthService(accounts, time.Now().UTC())

	first, err := svc.Login(context.Background(), LoginInput{Identificador: "maria@example.com", Senha: senha})
	require.NoError(t, err)

	second, err := svc.Refresh(context.Background(), first.Tipo, first.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)

	_, err = svc.Refresh(context.Background(), first.Tipo, first.RefreshToken)
	assert.ErrorIs(t, err, ErrRefreshInvalid)

	require.NoError(t, svc.Logout(context.Background(), second.Tipo, second.RefreshToken))
	_, err = svc.Refresh(context.Background(), second.Tipo, second.RefreshToken)
	assert.ErrorIs(t, err, ErrRefreshInvalid)
}
