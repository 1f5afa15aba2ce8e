package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/minhacidade/backend/internal/auth"
	"github.com/minhacidade/backend/internal/repo"
	"github.com/minhacidade/backend/internal/util"
)

const (
	// MaxLoginAttempts é o número de falhas que dispara o bloqueio.
	MaxLoginAttempts = 5
	// LockoutDuration é a duração do bloqueio por excesso de tentativas.
	LockoutDuration = 30 * time.Minute
)

var (
	// ErrInvalidCredentials indica falha na autenticação.
	ErrInvalidCredentials = errors.New("credenciais inválidas")
	// ErrAccountDisabled indica conta desativada.
	ErrAccountDisabled = errors.New("conta desativada")
	// ErrAccountLocked indica conta bloqueada temporariamente.
	ErrAccountLocked = errors.New("conta bloqueada temporariamente")
	// ErrRefreshInvalid indica refresh token inválido ou expirado.
	ErrRefreshInvalid = errors.New("refresh token inválido")
	// ErrInvalidAccountKind indica tipo de conta desconhecido.
	ErrInvalidAccountKind = errors.New("tipo de conta inválido")
)

// LoginError detalha a falha de login para a resposta HTTP.
type LoginError struct {
	Err                 error
	TentativasRestantes *int
	BloqueadoAte        *time.Time
}

func (e *LoginError) Error() string { return e.Err.Error() }

func (e *LoginError) Unwrap() error { return e.Err }

type accountRepository interface {
	FindAccount(ctx context.Context, kind repo.AccountKind, identifier string) (repo.Account, error)
	GetAccount(ctx context.Context, kind repo.AccountKind, id int64) (repo.Account, error)
	RegisterLoginFailure(ctx context.Context, kind repo.AccountKind, id int64, maxAttempts int, lockUntil, now time.Time) (int, *time.Time, error)
	ResetLoginState(ctx context.Context, kind repo.AccountKind, id int64) error
	UpdatePasswordHash(ctx context.Context, kind repo.AccountKind, id int64, hash string) error
}

type redisCommander interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// AuthService concentra regras de autenticação e sessões.
type AuthService struct {
	repo       accountRepository
	redis      redisCommander
	jwt        *auth.JWTManager
	refreshTTL time.Duration
	now        func() time.Time
}

// NewAuthService cria novo serviço.
func NewAuthService(r *repo.Queries, redisClient *redis.Client, jwtMgr *auth.JWTManager, refreshTTL time.Duration) *AuthService {
	return &AuthService{repo: r, redis: redisClient, jwt: jwtMgr, refreshTTL: refreshTTL, now: util.Now}
}

// JWT expõe gerenciador de JWT (útil em middlewares).
func (s *AuthService) JWT() *auth.JWTManager {
	return s.jwt
}

// LoginInput representa credenciais recebidas.
type LoginInput struct {
	Identificador string
	Senha         string
	Tipo          string
}

// Profile descreve a conta autenticada, qualquer que seja a tabela de origem.
type Profile struct {
	ID             int64  `json:"id"`
	Nome           string `json:"nome"`
	Email          string `json:"email"`
	Tipo           string `json:"tipo"`
	Role           string `json:"role"`
	CidadeID       *int64 `json:"cidade_id"`
	DepartamentoID *int64 `json:"departamento_id,omitempty"`
}

// LoginResult representa retorno padrão de autenticações.
type LoginResult struct {
	Tipo         string   `json:"tipo"`
	Role         string   `json:"role"`
	Usuario      *Profile `json:"usuario"`
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	ExpiresIn    int64    `json:"expires_in"`
}

// Login resolve a conta entre administradores, munícipes e funcionários.
// As três buscas rodam em paralelo; a precedência é administrador, munícipe, funcionário.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	identifier := strings.TrimSpace(in.Identificador)
	if identifier == "" || in.Senha == "" {
		return nil, &LoginError{Err: ErrInvalidCredentials}
	}

	kinds := repo.LoginOrder
	if tipo := strings.TrimSpace(in.Tipo); tipo != "" {
		kind := repo.AccountKind(strings.ToLower(tipo))
		if !kind.Valid() {
			return nil, ErrInvalidAccountKind
		}
		kinds = []repo.AccountKind{kind}
	}

	acc, err := s.resolve(ctx, kinds, identifier)
	if err != nil {
		return nil, err
	}

	if !acc.Ativo {
		return nil, &LoginError{Err: ErrAccountDisabled}
	}

	now := s.now()
	if acc.BloqueadoAte != nil && acc.BloqueadoAte.After(now) {
		return nil, &LoginError{Err: ErrAccountLocked, BloqueadoAte: acc.BloqueadoAte}
	}

	ok, err := auth.Verify(in.Senha, acc.SenhaHash)
	if err != nil {
		log.Warn().Err(err).Str("tipo", string(acc.Kind)).Int64("id", acc.ID).Msg("login: verify password failed")
		ok = false
	}
	if !ok {
		attempts, lockedUntil, err := s.repo.RegisterLoginFailure(ctx, acc.Kind, acc.ID, MaxLoginAttempts, now.Add(LockoutDuration), now)
		if err != nil {
			return nil, err
		}
		remaining := MaxLoginAttempts - attempts
		if remaining < 0 {
			remaining = 0
		}
		if lockedUntil != nil && !lockedUntil.After(now) {
			lockedUntil = nil
		}
		log.Warn().Str("tipo", string(acc.Kind)).Int64("id", acc.ID).Int("tentativas", attempts).Msg("login: senha inválida")
		return nil, &LoginError{Err: ErrInvalidCredentials, TentativasRestantes: &remaining, BloqueadoAte: lockedUntil}
	}

	if acc.TentativasLogin > 0 || acc.BloqueadoAte != nil {
		if err := s.repo.ResetLoginState(ctx, acc.Kind, acc.ID); err != nil {
			return nil, err
		}
	}

	if auth.IsLegacyHash(acc.SenhaHash) {
		if upgraded, err := auth.Hash(in.Senha); err == nil {
			if err := s.repo.UpdatePasswordHash(ctx, acc.Kind, acc.ID, upgraded); err != nil {
				log.Warn().Err(err).Int64("id", acc.ID).Msg("login: falha ao migrar hash legado")
			}
		}
	}

	return s.issue(ctx, acc)
}

func (s *AuthService) resolve(ctx context.Context, kinds []repo.AccountKind, identifier string) (repo.Account, error) {
	found := make([]*repo.Account, len(kinds))

	g, gctx := errgroup.WithContext(ctx)
	for i, kind := range kinds {
		g.Go(func() error {
			acc, err := s.repo.FindAccount(gctx, kind, identifier)
			if errors.Is(err, repo.ErrNotFound) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("buscar %s: %w", kind, err)
			}
			found[i] = &acc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return repo.Account{}, err
	}

	var (
		chosen  *repo.Account
		matched []string
	)
	for _, acc := range found {
		if acc == nil {
			continue
		}
		matched = append(matched, string(acc.Kind))
		if chosen == nil {
			chosen = acc
		}
	}

	if chosen == nil {
		log.Warn().Msg("login: identificador não encontrado")
		return repo.Account{}, &LoginError{Err: ErrInvalidCredentials}
	}
	if len(matched) > 1 {
		log.Warn().Strs("tipos", matched).Str("escolhido", string(chosen.Kind)).
			Msg("login: identificador presente em mais de um tipo de conta; informe 'tipo' para desambiguar")
	}
	return *chosen, nil
}

// RoleFor deriva o papel a partir da tabela e do vínculo municipal.
func RoleFor(acc repo.Account) string {
	switch acc.Kind {
	case repo.KindAdministrador:
		if acc.CidadeID == nil {
			return auth.RoleAdminGlobal
		}
		return auth.RoleAdminCidade
	case repo.KindFuncionario:
		if acc.Cargo == repo.CargoAtendente {
			return auth.RoleAtendente
		}
		return auth.RoleServidor
	default:
		if municipeRoles[acc.Cargo] {
			return acc.Cargo
		}
		return auth.RoleMunicipe
	}
}

// municipeRoles lista os valores de usu_role aceitos no token; qualquer outro vira municipe.
var municipeRoles = map[string]bool{
	auth.RoleMunicipe: true,
}

func profileOf(acc repo.Account) *Profile {
	return &Profile{
		ID:             acc.ID,
		Nome:           acc.Nome,
		Email:          acc.Email,
		Tipo:           string(acc.Kind),
		Role:           RoleFor(acc),
		CidadeID:       acc.CidadeID,
		DepartamentoID: acc.DepartamentoID,
	}
}

func (s *AuthService) issue(ctx context.Context, acc repo.Account) (*LoginResult, error) {
	role := RoleFor(acc)
	audience := string(acc.Kind)
	subject := strconv.FormatInt(acc.ID, 10)

	token, _, err := s.jwt.GenerateAccessToken(subject, audience, []string{role}, auth.Scope{
		CidadeID:       acc.CidadeID,
		DepartamentoID: acc.DepartamentoID,
	})
	if err != nil {
		return nil, err
	}

	rawRefresh, refreshHash, err := auth.GenerateRefreshToken()
	if err != nil {
		return nil, err
	}
	if err := s.redis.Set(ctx, auth.RefreshRedisKey(audience, refreshHash), subject, s.refreshTTL).Err(); err != nil {
		return nil, err
	}

	return &LoginResult{
		Tipo:         audience,
		Role:         role,
		Usuario:      profileOf(acc),
		AccessToken:  token,
		RefreshToken: rawRefresh,
		ExpiresIn:    int64(s.jwt.AccessTTL().Seconds()),
	}, nil
}

// Refresh troca refresh token por novos tokens (rotação).
func (s *AuthService) Refresh(ctx context.Context, tipo, rawToken string) (*LoginResult, error) {
	kind := repo.AccountKind(strings.ToLower(strings.TrimSpace(tipo)))
	if rawToken == "" || !kind.Valid() {
		return nil, ErrRefreshInvalid
	}

	redisKey := auth.RefreshRedisKey(string(kind), auth.HashToken(rawToken))
	subject, err := s.redis.Get(ctx, redisKey).Result()
	if err == redis.Nil {
		return nil, ErrRefreshInvalid
	}
	if err != nil {
		return nil, err
	}

	id, err := strconv.ParseInt(subject, 10, 64)
	if err != nil {
		return nil, ErrRefreshInvalid
	}

	acc, err := s.repo.GetAccount(ctx, kind, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrRefreshInvalid
		}
		return nil, err
	}
	if !acc.Ativo {
		return nil, ErrAccountDisabled
	}

	if err := s.redis.Del(ctx, redisKey).Err(); err != nil && err != redis.Nil {
		return nil, err
	}

	return s.issue(ctx, acc)
}

// Logout revoga refresh token atual.
func (s *AuthService) Logout(ctx context.Context, tipo, rawToken string) error {
	if rawToken == "" {
		return nil
	}
	redisKey := auth.RefreshRedisKey(strings.ToLower(strings.TrimSpace(tipo)), auth.HashToken(rawToken))
	if err := s.redis.Del(ctx, redisKey).Err(); err != nil && err != redis.Nil {
		return err
	}
	return nil
}

// GetMe retorna perfil do principal autenticado.
func (s *AuthService) GetMe(ctx context.Context, p auth.Principal) (*Profile, error) {
	acc, err := s.repo.GetAccount(ctx, repo.AccountKind(p.Kind), p.ID)
	if err != nil {
		return nil, err
	}
	return profileOf(acc), nil
}
