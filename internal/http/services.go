package http

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/minhacidade/backend/internal/anexo"
	"github.com/minhacidade/backend/internal/auth"
	"github.com/minhacidade/backend/internal/categoria"
	"github.com/minhacidade/backend/internal/chamado"
	"github.com/minhacidade/backend/internal/cidade"
	"github.com/minhacidade/backend/internal/config"
	"github.com/minhacidade/backend/internal/departamento"
	"github.com/minhacidade/backend/internal/events"
	httpmiddleware "github.com/minhacidade/backend/internal/http/middleware"
	"github.com/minhacidade/backend/internal/mailer"
	"github.com/minhacidade/backend/internal/notificacao"
	"github.com/minhacidade/backend/internal/realtime"
	"github.com/minhacidade/backend/internal/relatorio"
	"github.com/minhacidade/backend/internal/repo"
	"github.com/minhacidade/backend/internal/sac"
	"github.com/minhacidade/backend/internal/service"
	"github.com/minhacidade/backend/internal/storage"
)

// AuthAPI cobre login e sessões.
type AuthAPI interface {
	Login(ctx context.Context, in service.LoginInput) (*service.LoginResult, error)
	Refresh(ctx context.Context, tipo, rawToken string) (*service.LoginResult, error)
	Logout(ctx context.Context, tipo, rawToken string) error
	GetMe(ctx context.Context, p auth.Principal) (*service.Profile, error)
}

// RecoveryAPI cobre a recuperação de senha.
type RecoveryAPI interface {
	RequestReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, rawToken, novaSenha string) error
}

// CidadeAPI cobre o cadastro de cidades.
type CidadeAPI interface {
	List(ctx context.Context, incluirInativas bool) ([]cidade.Cidade, error)
	Get(ctx context.Context, id int64) (*cidade.Cidade, error)
	GetPadrao(ctx context.Context) (*cidade.Cidade, error)
	Create(ctx context.Context, in cidade.CreateInput) (*cidade.Cidade, error)
	Update(ctx context.Context, id int64, in cidade.UpdateInput) (*cidade.Cidade, error)
	SetPadrao(ctx context.Context, id int64) (*cidade.Cidade, error)
	Delete(ctx context.Context, id int64) error
}

// DepartamentoAPI cobre o cadastro de departamentos.
type DepartamentoAPI interface {
	List(ctx context.Context, filter departamento.Filter) ([]departamento.Departamento, error)
	Get(ctx context.Context, id int64) (*departamento.Departamento, error)
	Create(ctx context.Context, in departamento.CreateInput) (*departamento.Departamento, error)
	Update(ctx context.Context, id int64, in departamento.UpdateInput) (*departamento.Departamento, error)
	Delete(ctx context.Context, id int64) error
}

// CategoriaAPI cobre o cadastro de categorias.
type CategoriaAPI interface {
	List(ctx context.Context, cidadeID *int64) ([]categoria.Categoria, error)
	Get(ctx context.Context, id int64) (*categoria.Categoria, error)
	Create(ctx context.Context, in categoria.CreateInput) (*categoria.Categoria, error)
	Update(ctx context.Context, id int64, in categoria.UpdateInput) (*categoria.Categoria, error)
	Delete(ctx context.Context, id int64) error
}

// AdministradorAPI cobre o cadastro de administradores.
type AdministradorAPI interface {
	List(ctx context.Context, p auth.Principal, filter repo.AdministradorFilter) ([]repo.Administrador, error)
	Get(ctx context.Context, p auth.Principal, id int64) (*repo.Administrador, error)
	Create(ctx context.Context, p auth.Principal, in service.AdministradorInput) (*repo.Administrador, error)
	Update(ctx context.Context, p auth.Principal, id int64, in service.AdministradorUpdate) (*repo.Administrador, error)
	Delete(ctx context.Context, p auth.Principal, id int64) error
}

// FuncionarioAPI cobre o cadastro de funcionários.
type FuncionarioAPI interface {
	List(ctx context.Context, p auth.Principal, filter repo.FuncionarioFilter) ([]repo.Funcionario, error)
	Get(ctx context.Context, p auth.Principal, id int64) (*repo.Funcionario, error)
	Create(ctx context.Context, p auth.Principal, in service.FuncionarioInput) (*repo.Funcionario, error)
	Update(ctx context.Context, p auth.Principal, id int64, in service.FuncionarioUpdate) (*repo.Funcionario, error)
	Delete(ctx context.Context, p auth.Principal, id int64) error
	DesignarAtendente(ctx context.Context, p auth.Principal, id int64, in service.DesignarAtendenteInput) (*repo.Funcionario, error)
}

// UsuarioAPI cobre o cadastro de munícipes.
type UsuarioAPI interface {
	Register(ctx context.Context, in service.UsuarioInput) (*repo.Usuario, error)
	List(ctx context.Context, p auth.Principal, filter repo.UsuarioFilter) ([]repo.Usuario, error)
	Get(ctx context.Context, p auth.Principal, id int64) (*repo.Usuario, error)
	Update(ctx context.Context, p auth.Principal, id int64, in service.UsuarioUpdate) (*repo.Usuario, error)
	Delete(ctx context.Context, p auth.Principal, id int64) error
}

// ChamadoAPI cobre o ciclo de vida dos chamados.
type ChamadoAPI interface {
	Create(ctx context.Context, p auth.Principal, in chamado.CreateInput) (*chamado.Chamado, error)
	List(ctx context.Context, p auth.Principal, filter chamado.Filter) ([]chamado.Chamado, error)
	Get(ctx context.Context, p auth.Principal, id int64) (*chamado.Chamado, error)
	Etapas(ctx context.Context, p auth.Principal, id int64) ([]chamado.Etapa, error)
	Update(ctx context.Context, p auth.Principal, id int64, in chamado.UpdateInput) (*chamado.Chamado, error)
	Transition(ctx context.Context, p auth.Principal, id int64, t chamado.Transition, in chamado.TransitionInput) (*chamado.Chamado, error)
	Distribution(ctx context.Context, p auth.Principal, f chamado.StatsFilter) (*chamado.Distribution, error)
	Trend(ctx context.Context, p auth.Principal, f chamado.StatsFilter) ([]chamado.TrendPoint, error)
	Stats(ctx context.Context, p auth.Principal, f chamado.StatsFilter) (*chamado.Stats, error)
}

// NotificacaoAPI cobre a caixa de notificações.
type NotificacaoAPI interface {
	List(ctx context.Context, p auth.Principal, filter notificacao.Filter) ([]notificacao.Notificacao, error)
	CountUnread(ctx context.Context, p auth.Principal) (int64, error)
	MarkRead(ctx context.Context, p auth.Principal, id int64) error
	MarkAllRead(ctx context.Context, p auth.Principal) (int64, error)
}

// AnexoAPI cobre upload e remoção de anexos.
type AnexoAPI interface {
	Upload(ctx context.Context, p auth.Principal, in anexo.UploadInput) (*anexo.Anexo, error)
	ListByChamado(ctx context.Context, p auth.Principal, chamadoID int64) ([]anexo.Anexo, error)
	Delete(ctx context.Context, p auth.Principal, id int64) error
	MaxBytes() int64
	Timeout() time.Duration
}

// SacAPI cobre SAC e ouvidoria.
type SacAPI interface {
	Create(ctx context.Context, p auth.Principal, in sac.CreateInput) (*sac.Manifestacao, error)
	List(ctx context.Context, p auth.Principal, f sac.Filter) ([]sac.Manifestacao, error)
	Get(ctx context.Context, p auth.Principal, id int64) (*sac.Manifestacao, error)
	Responder(ctx context.Context, p auth.Principal, id int64, in sac.RespostaInput) (*sac.Manifestacao, error)
}

// RelatorioAPI cobre os relatórios gerenciais.
type RelatorioAPI interface {
	Geral(ctx context.Context, p auth.Principal, f relatorio.Filter) (*relatorio.Geral, error)
}

// Services agrupa as dependências dos handlers.
type Services struct {
	Tokens        httpmiddleware.TokenParser
	Auth          AuthAPI
	Recovery      RecoveryAPI
	Cidades       CidadeAPI
	Departamentos DepartamentoAPI
	Categorias    CategoriaAPI
	Admins        AdministradorAPI
	Funcionarios  FuncionarioAPI
	Usuarios      UsuarioAPI
	Chamados      ChamadoAPI
	Notificacoes  NotificacaoAPI
	Anexos        AnexoAPI
	Sac           SacAPI
	Relatorios    RelatorioAPI

	Hub       *realtime.Hub
	UploadDir string
	DB        Pinger
	Redis     Pinger
}

// Deps são as conexões e adaptadores criados no boot.
type Deps struct {
	Pool      *pgxpool.Pool
	Redis     *redis.Client
	Publisher events.Publisher
	Mailer    mailer.Mailer
	Blobs     storage.BlobStore
	Hub       *realtime.Hub
}

// NewServices monta os serviços sobre o pool.
func NewServices(cfg *config.Config, d Deps) Services {
	queries := repo.New(d.Pool)
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTAccessTTL)
	pusher := notificacao.NewPusher(d.Hub)

	cidades := cidade.NewService(cidade.NewRepository(d.Pool))
	departamentos := departamento.NewService(departamento.NewRepository(d.Pool), cidades)
	chamados := chamado.NewService(chamado.NewRepository(d.Pool), d.Publisher, pusher)

	svc := Services{
		Tokens:        jwtManager,
		Auth:          service.NewAuthService(queries, d.Redis, jwtManager, cfg.JWTRefreshTTL),
		Recovery:      service.NewRecoveryService(d.Pool, d.Mailer, cfg.ResetTokenTTL, cfg.FrontendURL),
		Cidades:       cidades,
		Departamentos: departamentos,
		Categorias:    categoria.NewService(categoria.NewRepository(d.Pool)),
		Admins:        service.NewAdministradorService(queries, cidades),
		Funcionarios:  service.NewFuncionarioService(d.Pool, departamentos, pusher),
		Usuarios:      service.NewUsuarioService(queries, cidades),
		Chamados:      chamados,
		Notificacoes:  notificacao.NewService(notificacao.NewRepository(d.Pool)),
		Anexos: anexo.NewService(anexo.NewRepository(d.Pool), d.Blobs, chamados,
			cfg.Storage.MaxBytes, cfg.Storage.UploadTimeout),
		Sac:        sac.NewService(sac.NewRepository(d.Pool), pusher),
		Relatorios: relatorio.NewService(relatorio.NewRepository(d.Pool)),
		Hub:        d.Hub,
		DB:         PingFunc(d.Pool.Ping),
		Redis: PingFunc(func(ctx context.Context) error {
			return d.Redis.Ping(ctx).Err()
		}),
	}
	if _, ok := d.Blobs.(*storage.LocalStore); ok {
		svc.UploadDir = cfg.Storage.UploadDir
	}
	log.Debug().Str("storage", cfg.Storage.Provider).Str("events", cfg.Events.Driver).Msg("serviços inicializados")
	return svc
}
