package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/minhacidade/backend/internal/anexo"
	"github.com/minhacidade/backend/internal/auth"
	"github.com/minhacidade/backend/internal/categoria"
	"github.com/minhacidade/backend/internal/chamado"
	"github.com/minhacidade/backend/internal/cidade"
	"github.com/minhacidade/backend/internal/departamento"
	httpmiddleware "github.com/minhacidade/backend/internal/http/middleware"
	"github.com/minhacidade/backend/internal/relatorio"
	"github.com/minhacidade/backend/internal/repo"
	"github.com/minhacidade/backend/internal/sac"
	"github.com/minhacidade/backend/internal/service"
	"github.com/minhacidade/backend/internal/util"
)

// SuccessEnvelope padroniza respostas com dados.
type SuccessEnvelope struct {
	Data  any `json:"data"`
	Error any `json:"error"`
}

// ErrorEnvelope padroniza respostas de erro.
type ErrorEnvelope struct {
	Data  any        `json:"data"`
	Error *ErrorBody `json:"error"`
}

// ErrorBody descreve falhas normalizadas.
type ErrorBody struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// WriteJSON escreve envelope de sucesso.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(SuccessEnvelope{Data: data, Error: nil})
}

// WriteError escreve envelope de erro e mantém formato consistente.
func WriteError(w http.ResponseWriter, status int, code, message string, details interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorEnvelope{
		Data:  nil,
		Error: &ErrorBody{Code: code, Message: message, Details: details},
	})
}

// writeServiceError traduz erros das camadas de domínio para status e código da API.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validation  *util.ValidationError
		cidadeRefs  *cidade.ReferencesError
		depRefs     *departamento.ReferencesError
		transition  *chamado.TransitionError
		loginErr    *service.LoginError
		maxBytesErr *http.MaxBytesError
	)

	switch {
	case errors.As(err, &validation):
		WriteError(w, http.StatusBadRequest, "VALIDATION", "dados inválidos", validation.Fields)
	case errors.As(err, &cidadeRefs):
		WriteError(w, http.StatusBadRequest, "CITY_HAS_REFERENCES", "cidade possui registros vinculados", cidadeRefs.References)
	case errors.As(err, &depRefs):
		WriteError(w, http.StatusBadRequest, "DEPARTMENT_HAS_REFERENCES", "departamento possui registros vinculados", depRefs.References)
	case errors.As(err, &transition):
		WriteError(w, http.StatusConflict, "INVALID_TRANSITION", transition.Error(), map[string]any{
			"status":     transition.Status,
			"transicao":  transition.Transicao,
			"permitidas": chamado.Allowed(transition.Status),
		})
	case errors.Is(err, chamado.ErrInvalidTransition):
		WriteError(w, http.StatusConflict, "INVALID_TRANSITION", err.Error(), nil)
	case errors.As(err, &loginErr):
		writeLoginError(w, loginErr)
	case errors.Is(err, chamado.ErrDepartamentoNotFound):
		WriteError(w, http.StatusBadRequest, "VALIDATION", err.Error(), map[string][]string{"departamento_id": {err.Error()}})
	case errors.Is(err, chamado.ErrCategoriaNotFound):
		WriteError(w, http.StatusBadRequest, "VALIDATION", err.Error(), map[string][]string{"categoria_id": {err.Error()}})
	case errors.Is(err, chamado.ErrUsuarioNotFound):
		WriteError(w, http.StatusBadRequest, "VALIDATION", err.Error(), map[string][]string{"usuario_id": {err.Error()}})
	case errors.Is(err, chamado.ErrServidorInvalido):
		WriteError(w, http.StatusBadRequest, "VALIDATION", err.Error(), map[string][]string{"servidor_id": {err.Error()}})
	case errors.Is(err, departamento.ErrCidadeNotFound):
		WriteError(w, http.StatusBadRequest, "VALIDATION", err.Error(), map[string][]string{"cidade_id": {err.Error()}})
	case errors.Is(err, service.ErrDepartamentoInvalido):
		WriteError(w, http.StatusBadRequest, "VALIDATION", err.Error(), map[string][]string{"departamento_id": {err.Error()}})
	case errors.Is(err, service.ErrResetTokenInvalid), errors.Is(err, service.ErrInvalidAccountKind):
		WriteError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
	case errors.Is(err, service.ErrRefreshInvalid):
		WriteError(w, http.StatusUnauthorized, "AUTH", err.Error(), nil)
	case errors.Is(err, service.ErrAccountDisabled):
		WriteError(w, http.StatusForbidden, "ACCOUNT_DISABLED", err.Error(), nil)
	case errors.Is(err, anexo.ErrTooLarge), errors.As(err, &maxBytesErr):
		WriteError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", anexo.ErrTooLarge.Error(), nil)
	case errors.Is(err, anexo.ErrTimeout):
		WriteError(w, http.StatusRequestTimeout, "UPLOAD_TIMEOUT", err.Error(), nil)
	case errors.Is(err, repo.ErrNotFound):
		WriteError(w, http.StatusNotFound, "NOT_FOUND", "registro não encontrado", nil)
	case errors.Is(err, service.ErrForbidden), errors.Is(err, chamado.ErrForbidden),
		errors.Is(err, sac.ErrForbidden), errors.Is(err, relatorio.ErrForbidden):
		WriteError(w, http.StatusForbidden, "FORBIDDEN", err.Error(), nil)
	case errors.Is(err, service.ErrConflict), errors.Is(err, repo.ErrConflict):
		WriteError(w, http.StatusConflict, "CONFLICT", "registro já cadastrado", nil)
	case errors.Is(err, sac.ErrJaRespondida), errors.Is(err, categoria.ErrHasReferences), errors.Is(err, repo.ErrHasReferences):
		WriteError(w, http.StatusConflict, "CONFLICT", err.Error(), nil)
	default:
		log.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).
			Str("request_id", chimiddleware.GetReqID(r.Context())).Msg("erro não tratado")
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "erro interno", nil)
	}
}

func writeLoginError(w http.ResponseWriter, e *service.LoginError) {
	switch {
	case errors.Is(e.Err, service.ErrAccountLocked):
		details := map[string]any{}
		if e.BloqueadoAte != nil {
			details["bloqueado_ate"] = e.BloqueadoAte.UTC().Format(time.RFC3339)
		}
		WriteError(w, http.StatusForbidden, "ACCOUNT_LOCKED", "conta bloqueada temporariamente", details)
	case errors.Is(e.Err, service.ErrAccountDisabled):
		WriteError(w, http.StatusForbidden, "ACCOUNT_DISABLED", "conta desativada", nil)
	default:
		var details map[string]any
		if e.TentativasRestantes != nil {
			details = map[string]any{"tentativas_restantes": *e.TentativasRestantes}
		}
		WriteError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "credenciais inválidas", details)
	}
}

// decodeJSON lê o corpo; corpo vazio é aceito e deixa o destino intacto.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
		return false
	}
	return true
}

func idParam(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(chi.URLParam(r, name)), 10, 64)
	if err != nil || id <= 0 {
		WriteError(w, http.StatusBadRequest, "VALIDATION", name+" inválido", nil)
		return 0, false
	}
	return id, true
}

func principal(w http.ResponseWriter, r *http.Request) (auth.Principal, bool) {
	p, ok := httpmiddleware.PrincipalFrom(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, "AUTH", "token ausente", nil)
	}
	return p, ok
}

// query facilita a leitura de filtros da URL acumulando erros de formato.
type query struct {
	values  map[string][]string
	invalid map[string][]string
}

func newQuery(r *http.Request) *query {
	return &query{values: r.URL.Query(), invalid: map[string][]string{}}
}

func (q *query) get(name string) string {
	if v := q.values[name]; len(v) > 0 {
		return strings.TrimSpace(v[0])
	}
	return ""
}

func (q *query) int64Ptr(name string) *int64 {
	raw := q.get(name)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v <= 0 {
		q.invalid[name] = append(q.invalid[name], "deve ser um inteiro positivo")
		return nil
	}
	return &v
}

func (q *query) int(name string, def int) int {
	raw := q.get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		q.invalid[name] = append(q.invalid[name], "deve ser um inteiro não negativo")
		return def
	}
	return v
}

func (q *query) bool(name string) bool {
	v, _ := strconv.ParseBool(q.get(name))
	return v
}

func (q *query) list(name string) []string {
	raw := q.get(name)
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (q *query) date(name string) *time.Time {
	raw := q.get(name)
	if raw == "" {
		return nil
	}
	ts, err := parseISODate(raw)
	if err != nil {
		q.invalid[name] = append(q.invalid[name], "data inválida, use AAAA-MM-DD ou RFC3339")
		return nil
	}
	return &ts
}

// dateEnd lê o fim de um período: data sem horário inclui o dia inteiro.
func (q *query) dateEnd(name string) *time.Time {
	ts := q.date(name)
	if ts == nil {
		return nil
	}
	if _, err := time.Parse(dateOnly, strings.TrimSpace(q.get(name))); err == nil {
		end := ts.AddDate(0, 0, 1)
		return &end
	}
	return ts
}

// page lê limit e offset; os limites são normalizados no repositório.
func (q *query) page() (int, int) {
	return q.int("limit", 0), q.int("offset", 0)
}

// err devolve os problemas acumulados, se houver.
func (q *query) err() error {
	if len(q.invalid) == 0 {
		return nil
	}
	return &util.ValidationError{Fields: q.invalid}
}

const dateOnly = "2006-01-02"

func parseISODate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty")
	}
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts, nil
	}
	if ts, err := time.Parse(dateOnly, value); err == nil {
		return ts, nil
	}
	return time.Time{}, fmt.Errorf("invalid date")
}
