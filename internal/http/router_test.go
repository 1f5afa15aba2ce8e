package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"io/fs"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minhacidade/backend/internal/anexo"
	"github.com/minhacidade/backend/internal/auth"
	"github.com/minhacidade/backend/internal/chamado"
	"github.com/minhacidade/backend/internal/cidade"
	"github.com/minhacidade/backend/internal/config"
	"github.com/minhacidade/backend/internal/relatorio"
	"github.com/minhacidade/backend/internal/repo"
	"github.com/minhacidade/backend/internal/service"
	"github.com/minhacidade/backend/internal/storage"
)

type fakeAuth struct {
	AuthAPI
	login func(in service.LoginInput) (*service.LoginResult, error)
}

func (f *fakeAuth) Login(_ context.Context, in service.LoginInput) (*service.LoginResult, error) {
	return f.login(in)
}

type fakeRelatorios struct {
	got relatorio.Filter
}

func (f *fakeRelatorios) Geral(_ context.Context, _ auth.Principal, filter relatorio.Filter) (*relatorio.Geral, error) {
	f.got = filter
	return &relatorio.Geral{}, nil
}

type fakeCidades struct {
	CidadeAPI
	deleteErr error
	deleted   []int64
}

func (f *fakeCidades) List(context.Context, bool) ([]cidade.Cidade, error) {
	return []cidade.Cidade{{ID: 1, Nome: "Cidade Exemplo"}}, nil
}

func (f *fakeCidades) Delete(_ context.Context, id int64) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeUsuarios struct {
	UsuarioAPI
	registered []service.UsuarioInput
}

func (f *fakeUsuarios) Register(_ context.Context, in service.UsuarioInput) (*repo.Usuario, error) {
	f.registered = append(f.registered, in)
	return &repo.Usuario{ID: 99, Nome: in.Nome, Email: in.Email}, nil
}

type fakeChamados struct {
	ChamadoAPI
	createErr     error
	transitionErr error
	lastUpdate    chamado.UpdateInput
	transitions   []chamado.Transition
	readable      map[int64]bool
}

func (f *fakeChamados) Create(_ context.Context, p auth.Principal, in chamado.CreateInput) (*chamado.Chamado, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &chamado.Chamado{ID: 1, Titulo: in.Titulo, Status: chamado.StatusPendente, UsuarioID: p.ID}, nil
}

func (f *fakeChamados) Get(_ context.Context, _ auth.Principal, id int64) (*chamado.Chamado, error) {
	if !f.readable[id] {
		return nil, repo.ErrNotFound
	}
	return &chamado.Chamado{ID: id, Status: chamado.StatusEmAndamento}, nil
}

func (f *fakeChamados) Update(_ context.Context, _ auth.Principal, id int64, in chamado.UpdateInput) (*chamado.Chamado, error) {
	f.lastUpdate = in
	out := &chamado.Chamado{ID: id, Titulo: "original", Prioridade: "Baixa"}
	if in.Titulo != nil {
		out.Titulo = *in.Titulo
	}
	if in.Prioridade != nil {
		out.Prioridade = *in.Prioridade
	}
	return out, nil
}

func (f *fakeChamados) Transition(_ context.Context, _ auth.Principal, id int64, t chamado.Transition, _ chamado.TransitionInput) (*chamado.Chamado, error) {
	f.transitions = append(f.transitions, t)
	if f.transitionErr != nil {
		return nil, f.transitionErr
	}
	return &chamado.Chamado{ID: id, Status: chamado.StatusResolvido}, nil
}

type memAnexos struct {
	rows   map[int64]anexo.Anexo
	nextID int64
}

func (m *memAnexos) Insert(_ context.Context, a anexo.Anexo) (*anexo.Anexo, error) {
	m.nextID++
	a.ID = m.nextID
	m.rows[a.ID] = a
	return &a, nil
}

func (m *memAnexos) Get(_ context.Context, id int64) (*anexo.Anexo, error) {
	a, ok := m.rows[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return &a, nil
}

func (m *memAnexos) ListByChamado(_ context.Context, chamadoID int64) ([]anexo.Anexo, error) {
	var out []anexo.Anexo
	for _, a := range m.rows {
		if a.ChamadoID == chamadoID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memAnexos) Delete(_ context.Context, id int64) error {
	delete(m.rows, id)
	return nil
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

type testAPI struct {
	handler  http.Handler
	jwt      *auth.JWTManager
	cidades  *fakeCidades
	usuarios *fakeUsuarios
	chamados *fakeChamados
	auth     *fakeAuth
}

func newTestAPI(t *testing.T, mutate func(*Services)) *testAPI {
	t.Helper()
	api := &testAPI{
		jwt:      auth.NewJWTManager(strings.Repeat("s", 32), time.Minute),
		cidades:  &fakeCidades{},
		usuarios: &fakeUsuarios{},
		chamados: &fakeChamados{readable: map[int64]bool{}},
		auth:     &fakeAuth{},
	}
	svc := Services{
		Tokens:   api.jwt,
		Auth:     api.auth,
		Cidades:  api.cidades,
		Usuarios: api.usuarios,
		Chamados: api.chamados,
	}
	if mutate != nil {
		mutate(&svc)
	}
	cfg := &config.Config{
		RateLimitPublic: config.RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000},
		RateLimitAuth:   config.RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000},
		AllowOrigins:    []string{"*"},
	}
	api.handler = NewRouter(cfg, svc)
	return api
}

func (a *testAPI) token(t *testing.T, kind, role string, id int64, cidadeID *int64) string {
	t.Helper()
	tok, _, err := a.jwt.GenerateAccessToken(strconv.FormatInt(id, 10), kind, []string{role}, auth.Scope{CidadeID: cidadeID})
	require.NoError(t, err)
	return tok
}

func (a *testAPI) do(t *testing.T, method, path, token string, body io.Reader, contentType string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

func (a *testAPI) doJSON(t *testing.T, method, path, token string, payload any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return a.do(t, method, path, token, bytes.NewReader(raw), "application/json")
}

func ptr[T any](v T) *T { return &v }

func TestHealth(t *testing.T) {
	api := newTestAPI(t, nil)
	rec, env := api.do(t, http.MethodGet, "/health", "", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, env.Error)
	assert.JSONEq(t, `{"status":"ok"}`, string(env.Data))
}

func TestReadyReportsFailingDependency(t *testing.T) {
	api := newTestAPI(t, func(s *Services) {
		s.DB = PingFunc(func(context.Context) error { return nil })
		s.Redis = PingFunc(func(context.Context) error { return assert.AnError })
	})
	rec, env := api.do(t, http.MethodGet, "/ready", "", nil, "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "", env.Error.Details["db"])
	assert.Equal(t, assert.AnError.Error(), env.Error.Details["redis"])
}

func TestCORSPreflight(t *testing.T) {
	api := newTestAPI(t, nil)
	req := httptest.NewRequest(http.MethodOptions, "/chamados", nil)
	req.Header.Set("Origin", "https://app.exemplo.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	api.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "Authorization")
}

func TestPrivateRoutesRequireToken(t *testing.T) {
	api := newTestAPI(t, nil)
	for _, path := range []string{"/chamados", "/me", "/notificacoes", "/usuarios/1"} {
		rec, env := api.do(t, http.MethodGet, path, "", nil, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
		require.NotNil(t, env.Error, path)
		assert.Equal(t, "AUTH", env.Error.Code, path)
	}

	rec, _ := api.do(t, http.MethodGet, "/chamados", "nao-e-um-jwt", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRoleGuards(t *testing.T) {
	api := newTestAPI(t, nil)
	municipe := api.token(t, auth.KindUsuario, auth.RoleMunicipe, 50, ptr(int64(1)))
	adminCidade := api.token(t, auth.KindAdministrador, auth.RoleAdminCidade, 2, ptr(int64(1)))

	cases := []struct {
		name   string
		method string
		path   string
		token  string
	}{
		{"munícipe em administradores", http.MethodGet, "/administradores", municipe},
		{"munícipe em funcionarios", http.MethodGet, "/funcionarios", municipe},
		{"munícipe em estatísticas", http.MethodGet, "/chamados/stats", municipe},
		{"munícipe em relatórios", http.MethodGet, "/relatorios/geral", municipe},
		{"admin municipal cria cidade", http.MethodPost, "/cidades", adminCidade},
		{"admin municipal remove cidade", http.MethodDelete, "/cidades/1", adminCidade},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, env := api.do(t, tc.method, tc.path, tc.token, nil, "")
			assert.Equal(t, http.StatusForbidden, rec.Code)
			require.NotNil(t, env.Error)
			assert.Equal(t, "FORBIDDEN", env.Error.Code)
		})
	}
}

func TestPublicCidadesAndCadastro(t *testing.T) {
	api := newTestAPI(t, nil)

	rec, env := api.do(t, http.MethodGet, "/cidades", "", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), "Cidade Exemplo")

	rec, env = api.doJSON(t, http.MethodPost, "/usuarios", "", map[string]any{
		"nome":  "Maria",
		"email": "maria@example.com",
		"senha": "segredo123",
	})
	require.Equal(t, http.StatusCreated, rec.Code, string(env.Data))
	require.Len(t, api.usuarios.registered, 1)
	assert.Equal(t, "maria@example.com", api.usuarios.registered[0].Email)
}

func TestLoginErrors(t *testing.T) {
	lockedUntil := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)
	api := newTestAPI(t, nil)

	api.auth.login = func(in service.LoginInput) (*service.LoginResult, error) {
		return nil, &service.LoginError{Err: service.ErrInvalidCredentials, TentativasRestantes: ptr(3)}
	}
	rec, env := api.doJSON(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "a@b.com", "senha": "errada"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "INVALID_CREDENTIALS", env.Error.Code)
	assert.EqualValues(t, 3, env.Error.Details["tentativas_restantes"])

	api.auth.login = func(in service.LoginInput) (*service.LoginResult, error) {
		return nil, &service.LoginError{Err: service.ErrAccountLocked, BloqueadoAte: &lockedUntil}
	}
	rec, env = api.doJSON(t, http.MethodPost, "/auth/login", "", map[string]string{"identificador": "12345678900", "senha": "x"})
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "ACCOUNT_LOCKED", env.Error.Code)
	assert.Equal(t, "2026-03-01T12:30:00Z", env.Error.Details["bloqueado_ate"])

	rec, env = api.doJSON(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "a@b.com"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION", env.Error.Code)
}

func TestLoginLockoutReachesServiceBeforeRateLimit(t *testing.T) {
	lockedUntil := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)
	api := newTestAPI(t, nil)

	calls := 0
	api.auth.login = func(in service.LoginInput) (*service.LoginResult, error) {
		calls++
		if calls > service.MaxLoginAttempts {
			return nil, &service.LoginError{Err: service.ErrAccountLocked, BloqueadoAte: &lockedUntil}
		}
		return nil, &service.LoginError{Err: service.ErrInvalidCredentials, TentativasRestantes: ptr(service.MaxLoginAttempts - calls)}
	}

	body := map[string]string{"email": "maria@example.com", "senha": "errada"}
	for i := 1; i <= service.MaxLoginAttempts; i++ {
		rec, env := api.doJSON(t, http.MethodPost, "/auth/login", "", body)
		require.Equal(t, http.StatusUnauthorized, rec.Code, "tentativa %d", i)
		require.NotNil(t, env.Error)
		assert.Equal(t, "INVALID_CREDENTIALS", env.Error.Code)
	}

	rec, env := api.doJSON(t, http.MethodPost, "/auth/login", "", body)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "ACCOUNT_LOCKED", env.Error.Code)
	assert.Equal(t, service.MaxLoginAttempts+1, calls)
}

func TestLoginPassesIdentifierAndKind(t *testing.T) {
	api := newTestAPI(t, nil)
	var got service.LoginInput
	api.auth.login = func(in service.LoginInput) (*service.LoginResult, error) {
		got = in
		return &service.LoginResult{Tipo: auth.KindFuncionario, Role: auth.RoleServidor, AccessToken: "tok"}, nil
	}

	rec, env := api.doJSON(t, http.MethodPost, "/auth/login", "", map[string]string{
		"identificador": " joao@prefeitura.gov.br ",
		"senha":         "segredo",
		"tipo":          auth.KindFuncionario,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "joao@prefeitura.gov.br", got.Identificador)
	assert.Equal(t, auth.KindFuncionario, got.Tipo)
	assert.Contains(t, string(env.Data), `"role":"servidor"`)
}

func TestDeleteCidadeWithReferences(t *testing.T) {
	api := newTestAPI(t, nil)
	api.cidades.deleteErr = &cidade.ReferencesError{References: cidade.References{Departamentos: 2, Usuarios: 5}}
	admin := api.token(t, auth.KindAdministrador, auth.RoleAdminGlobal, 1, nil)

	rec, env := api.do(t, http.MethodDelete, "/cidades/7", admin, nil, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "CITY_HAS_REFERENCES", env.Error.Code)
	assert.EqualValues(t, 2, env.Error.Details["departamentos"])
	assert.EqualValues(t, 5, env.Error.Details["usuarios"])

	api.cidades.deleteErr = nil
	rec, _ = api.do(t, http.MethodDelete, "/cidades/7", admin, nil, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []int64{7}, api.cidades.deleted)
}

func TestCreateChamadoUnknownDepartamento(t *testing.T) {
	api := newTestAPI(t, nil)
	api.chamados.createErr = chamado.ErrDepartamentoNotFound
	municipe := api.token(t, auth.KindUsuario, auth.RoleMunicipe, 50, ptr(int64(1)))

	rec, env := api.doJSON(t, http.MethodPost, "/chamados", municipe, map[string]any{
		"titulo":          "Buraco na rua",
		"descricao":       "Buraco grande",
		"departamento_id": 999,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION", env.Error.Code)
	assert.Contains(t, env.Error.Details, "departamento_id")
}

func TestUpdateChamadoKeepsOmittedFields(t *testing.T) {
	api := newTestAPI(t, nil)
	admin := api.token(t, auth.KindAdministrador, auth.RoleAdminGlobal, 1, nil)

	rec, env := api.doJSON(t, http.MethodPut, "/chamados/4", admin, map[string]any{"prioridade": "Alta"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, api.chamados.lastUpdate.Titulo)
	require.NotNil(t, api.chamados.lastUpdate.Prioridade)
	assert.Equal(t, "Alta", *api.chamados.lastUpdate.Prioridade)

	var ch chamado.Chamado
	require.NoError(t, json.Unmarshal(env.Data, &ch))
	assert.Equal(t, "original", ch.Titulo)
	assert.Equal(t, "Alta", ch.Prioridade)
}

func TestTransitionRoutes(t *testing.T) {
	api := newTestAPI(t, nil)
	servidor := api.token(t, auth.KindFuncionario, auth.RoleServidor, 8, ptr(int64(1)))

	rec, _ := api.doJSON(t, http.MethodPost, "/chamados/3/resolver", servidor, map[string]string{"observacao": "feito"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []chamado.Transition{chamado.Resolver}, api.chamados.transitions)

	api.chamados.transitionErr = &chamado.TransitionError{Transicao: chamado.Encaminhar, Status: chamado.StatusFinalizado}
	rec, env := api.do(t, http.MethodPost, "/chamados/3/encaminhar", servidor, nil, "")
	require.Equal(t, http.StatusConflict, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "INVALID_TRANSITION", env.Error.Code)
	assert.Equal(t, chamado.StatusFinalizado, env.Error.Details["status"])
	assert.Equal(t, string(chamado.Encaminhar), env.Error.Details["transicao"])

	rec, _ = api.do(t, http.MethodPost, "/chamados/3/reabrir", servidor, nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func multipartBody(t *testing.T, fields map[string]string, fileName string, content []byte) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	fw, err := mw.CreateFormFile("arquivo", fileName)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func countFiles(t *testing.T, dir string) int {
	t.Helper()
	n := 0
	err := filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			n++
		}
		return nil
	})
	require.NoError(t, err)
	return n
}

func TestUploadAnexo(t *testing.T) {
	dir := t.TempDir()
	blobs, err := storage.NewLocalStore(dir, "/uploads")
	require.NoError(t, err)
	rows := &memAnexos{rows: map[int64]anexo.Anexo{}}

	api := newTestAPI(t, func(s *Services) {
		chamados := s.Chamados.(*fakeChamados)
		chamados.readable[10] = true
		s.Anexos = anexo.NewService(rows, blobs, chamados, 1<<10, time.Second)
	})
	municipe := api.token(t, auth.KindUsuario, auth.RoleMunicipe, 50, ptr(int64(1)))

	t.Run("acima do limite", func(t *testing.T) {
		body, ct := multipartBody(t, map[string]string{"chamado_id": "10", "tipo": "foto"}, "grande.jpg", bytes.Repeat([]byte("x"), 4<<10))
		rec, env := api.do(t, http.MethodPost, "/anexos/upload", municipe, body, ct)
		require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
		require.NotNil(t, env.Error)
		assert.Equal(t, "PAYLOAD_TOO_LARGE", env.Error.Code)
		assert.Empty(t, rows.rows)
		assert.Zero(t, countFiles(t, dir))
	})

	t.Run("chamado inexistente", func(t *testing.T) {
		body, ct := multipartBody(t, map[string]string{"chamado_id": "11", "tipo": "foto"}, "foto.jpg", []byte("conteudo"))
		rec, _ := api.do(t, http.MethodPost, "/anexos/upload", municipe, body, ct)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Zero(t, countFiles(t, dir))
	})

	t.Run("sem arquivo", func(t *testing.T) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		require.NoError(t, mw.WriteField("chamado_id", "10"))
		require.NoError(t, mw.Close())
		rec, env := api.do(t, http.MethodPost, "/anexos/upload", municipe, &buf, mw.FormDataContentType())
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.NotNil(t, env.Error)
		assert.Contains(t, env.Error.Details, "arquivo")
	})

	t.Run("dentro do limite", func(t *testing.T) {
		body, ct := multipartBody(t, map[string]string{"chamado_id": "10", "tipo": "foto"}, "foto.jpg", []byte("conteudo"))
		rec, env := api.do(t, http.MethodPost, "/anexos/upload", municipe, body, ct)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var a anexo.Anexo
		require.NoError(t, json.Unmarshal(env.Data, &a))
		assert.Equal(t, int64(10), a.ChamadoID)
		assert.Equal(t, int64(len("conteudo")), a.Tamanho)
		assert.True(t, strings.HasPrefix(a.URL, "/uploads/"))
		assert.Len(t, rows.rows, 1)
		assert.Equal(t, 1, countFiles(t, dir))
	})
}

func TestRelatorioDataFimIncludesWholeDay(t *testing.T) {
	rel := &fakeRelatorios{}
	api := newTestAPI(t, func(s *Services) { s.Relatorios = rel })
	admin := api.token(t, auth.KindAdministrador, auth.RoleAdminGlobal, 1, nil)

	rec, _ := api.do(t, http.MethodGet, "/relatorios/geral?data_inicio=2026-03-31&data_fim=2026-03-31", admin, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, rel.got.DataInicio)
	require.NotNil(t, rel.got.DataFim)
	assert.Equal(t, time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC), *rel.got.DataInicio)
	assert.Equal(t, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), *rel.got.DataFim)

	rec, _ = api.do(t, http.MethodGet, "/relatorios/geral?data_fim=2026-03-31T15:00:00Z", admin, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, rel.got.DataFim)
	assert.Equal(t, time.Date(2026, 3, 31, 15, 0, 0, 0, time.UTC), *rel.got.DataFim)

	rec, env := api.do(t, http.MethodGet, "/relatorios/geral?data_fim=31/03/2026", admin, nil, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION", env.Error.Code)
}

func TestUploadsDoNotListDirectories(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "foto"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "foto", "3f1c.jpg"), []byte("jpeg"), 0o644))
	api := newTestAPI(t, func(s *Services) { s.UploadDir = dir })

	for _, path := range []string{"/uploads/", "/uploads/foto/", "/uploads/foto"} {
		rec, _ := api.do(t, http.MethodGet, path, "", nil, "")
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
		assert.NotContains(t, rec.Body.String(), "3f1c.jpg", path)
	}

	rec, _ := api.do(t, http.MethodGet, "/uploads/foto/3f1c.jpg", "", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "jpeg", rec.Body.String())
}
