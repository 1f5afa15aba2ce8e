package http

import (
	"context"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/minhacidade/backend/internal/config"
	httpmiddleware "github.com/minhacidade/backend/internal/http/middleware"
	"github.com/minhacidade/backend/internal/realtime"
)

// Pinger verifica uma dependência externa no /ready.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapta uma função a Pinger.
type PingFunc func(ctx context.Context) error

// Ping executa a função.
func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// filesOnly serve arquivos e responde 404 para diretórios, sem listagem.
type filesOnly struct {
	root http.FileSystem
}

func (f filesOnly) Open(name string) (http.File, error) {
	file, err := f.root.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	if info.IsDir() {
		_ = file.Close()
		return nil, fs.ErrNotExist
	}
	return file, nil
}

// Handler concentra os handlers da API.
type Handler struct {
	svc           Services
	publicLimiter *httpmiddleware.RateLimiter
	authLimiter   *httpmiddleware.RateLimiter
	loginLimiter  *httpmiddleware.RateLimiter
}

// NewRouter devolve roteador configurado.
func NewRouter(cfg *config.Config, svc Services) http.Handler {
	h := &Handler{
		svc:           svc,
		publicLimiter: httpmiddleware.NewRateLimiter(cfg.RateLimitPublic.RequestsPerSecond, cfg.RateLimitPublic.Burst),
		authLimiter:   httpmiddleware.NewRateLimiter(cfg.RateLimitAuth.RequestsPerSecond, cfg.RateLimitAuth.Burst),
		loginLimiter:  httpmiddleware.NewRateLimiter(loginRatePerSecond, loginBurst),
	}

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(httpmiddleware.Logging)
	r.Use(httpmiddleware.Recover)
	r.Use(httpmiddleware.CORS(cfg.AllowOrigins))

	r.Group(func(public chi.Router) {
		public.Use(httpmiddleware.IPRateLimit(h.publicLimiter))

		public.Get("/health", h.Health)
		public.Get("/ready", h.Ready)

		public.Route("/auth", func(a chi.Router) {
			a.With(httpmiddleware.LoginRateLimit(h.loginLimiter, loginIdentifier)).Post("/login", h.Login)
			a.Post("/refresh", h.Refresh)
			a.Post("/logout", h.Logout)
			a.Post("/solicitar-recuperacao-senha", h.SolicitarRecuperacaoSenha)
			a.Post("/redefinir-senha", h.RedefinirSenha)
		})

		public.Route("/cidades", func(c chi.Router) {
			c.Group(func(read chi.Router) {
				read.Use(httpmiddleware.OptionalAuth(svc.Tokens))
				read.Get("/", h.ListCidades)
				read.Get("/padrao", h.GetCidadePadrao)
				read.Get("/{id}", h.GetCidade)
			})
			c.Group(func(write chi.Router) {
				h.authenticated(write)
				write.Use(httpmiddleware.RequireGlobalAdmin)
				write.Post("/", h.CreateCidade)
				write.Put("/{id}", h.UpdateCidade)
				write.Put("/{id}/padrao", h.SetCidadePadrao)
				write.Delete("/{id}", h.DeleteCidade)
			})
		})

		public.Route("/usuarios", func(u chi.Router) {
			u.Post("/", h.RegisterUsuario)
			u.Group(func(private chi.Router) {
				h.authenticated(private)
				private.With(httpmiddleware.RequireAdmin).Get("/", h.ListUsuarios)
				private.Get("/{id}", h.GetUsuario)
				private.Put("/{id}", h.UpdateUsuario)
				private.Delete("/{id}", h.DeleteUsuario)
				private.Get("/{id}/chamados", h.ListChamadosDoUsuario)
			})
		})

		if svc.Hub != nil {
			public.Get("/ws/notificacoes", realtime.Handler(svc.Hub, svc.Tokens))
		}
		if dir := strings.TrimSpace(svc.UploadDir); dir != "" {
			public.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(filesOnly{http.Dir(dir)})))
		}
	})

	r.Group(func(private chi.Router) {
		h.authenticated(private)

		private.Get("/me", h.Me)

		private.Route("/departamentos", func(d chi.Router) {
			d.Get("/", h.ListDepartamentos)
			d.Get("/{id}", h.GetDepartamento)
			d.Group(func(admin chi.Router) {
				admin.Use(httpmiddleware.RequireAdmin)
				admin.Post("/", h.CreateDepartamento)
				admin.Put("/{id}", h.UpdateDepartamento)
				admin.Delete("/{id}", h.DeleteDepartamento)
			})
		})

		private.Route("/categorias", func(c chi.Router) {
			c.Get("/", h.ListCategorias)
			c.Get("/{id}", h.GetCategoria)
			c.Group(func(admin chi.Router) {
				admin.Use(httpmiddleware.RequireAdmin)
				admin.Post("/", h.CreateCategoria)
				admin.Put("/{id}", h.UpdateCategoria)
				admin.Delete("/{id}", h.DeleteCategoria)
			})
		})

		private.Route("/administradores", func(a chi.Router) {
			a.Use(httpmiddleware.RequireGlobalAdmin)
			a.Get("/", h.ListAdministradores)
			a.Post("/", h.CreateAdministrador)
			a.Get("/{id}", h.GetAdministrador)
			a.Put("/{id}", h.UpdateAdministrador)
			a.Delete("/{id}", h.DeleteAdministrador)
		})

		private.Route("/funcionarios", func(f chi.Router) {
			f.Use(httpmiddleware.RequireAdmin)
			f.Get("/", h.ListFuncionarios)
			f.Post("/", h.CreateFuncionario)
			f.Get("/{id}", h.GetFuncionario)
			f.Put("/{id}", h.UpdateFuncionario)
			f.Delete("/{id}", h.DeleteFuncionario)
			f.Put("/{id}/designar-atendente", h.DesignarAtendente)
		})

		private.Route("/chamados", func(c chi.Router) {
			c.Get("/", h.ListChamados)
			c.Post("/", h.CreateChamado)
			c.Group(func(staff chi.Router) {
				staff.Use(httpmiddleware.RequireStaff)
				staff.Get("/distribution", h.ChamadosDistribution)
				staff.Get("/trend", h.ChamadosTrend)
				staff.Get("/stats", h.ChamadosStats)
			})
			c.Get("/{id}", h.GetChamado)
			c.Put("/{id}", h.UpdateChamado)
			c.Get("/{id}/etapas", h.ListEtapas)
			c.Get("/{id}/anexos", h.ListAnexos)
			for _, t := range transitions {
				c.Post("/{id}/"+string(t), h.TransitionChamado(t))
			}
		})

		private.Route("/notificacoes", func(n chi.Router) {
			n.Get("/", h.ListNotificacoes)
			n.Get("/nao-lidas", h.CountNaoLidas)
			n.Put("/lidas", h.MarkAllNotificacoesRead)
			n.Put("/{id}/lida", h.MarkNotificacaoRead)
		})

		private.Route("/anexos", func(a chi.Router) {
			a.Post("/upload", h.UploadAnexo)
			a.Delete("/{id}", h.DeleteAnexo)
		})

		private.Route("/sac", func(s chi.Router) {
			s.Get("/", h.ListSac)
			s.Post("/", h.CreateSac)
			s.Get("/{id}", h.GetSac)
			s.With(httpmiddleware.RequireAdmin).Put("/{id}/responder", h.ResponderSac)
		})

		private.With(httpmiddleware.RequireAdmin).Get("/relatorios/geral", h.RelatorioGeral)
	})

	return r
}

func (h *Handler) authenticated(r chi.Router) {
	r.Use(httpmiddleware.Auth(h.svc.Tokens))
	r.Use(httpmiddleware.UserRateLimit(h.authLimiter))
}

// Health responde status simples.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready valida conexões com Postgres e Redis.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	dbErr := ping(ctx, h.svc.DB)
	redisErr := ping(ctx, h.svc.Redis)

	if dbErr != nil || redisErr != nil {
		WriteError(w, http.StatusServiceUnavailable, "INTERNAL", "dependências indisponíveis", map[string]any{
			"db":    errorString(dbErr),
			"redis": errorString(redisErr),
		})
		return
	}

	WriteJSON(w, http.StatusOK, map[string]bool{"ready": true})
}

func ping(ctx context.Context, p Pinger) error {
	if p == nil {
		return nil
	}
	return p.Ping(ctx)
}

func errorString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
