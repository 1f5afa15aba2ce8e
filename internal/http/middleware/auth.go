package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/minhacidade/backend/internal/auth"
)

type contextKey string

const (
	contextKeyPrincipal contextKey = "principal"
	contextKeySlot      contextKey = "principal_slot"
)

// principalSlot devolve ao Logging, que roda antes do Auth, quem fez a requisição.
type principalSlot struct {
	p   auth.Principal
	set bool
}

// TokenParser valida o JWT de acesso.
type TokenParser interface {
	ParseAndValidate(token string) (*auth.Claims, error)
}

// Auth valida o JWT de acesso e injeta o Principal no contexto.
func Auth(tokens TokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				writeError(w, http.StatusUnauthorized, "AUTH", "token ausente")
				return
			}

			claims, err := tokens.ParseAndValidate(strings.TrimSpace(parts[1]))
			if err != nil {
				writeError(w, http.StatusUnauthorized, "AUTH", "token inválido")
				return
			}

			if len(claims.Audience) == 0 {
				writeError(w, http.StatusUnauthorized, "AUTH", "audience inválida")
				return
			}

			p, err := auth.PrincipalFromClaims(claims)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "AUTH", "subject inválido")
				return
			}

			if slot, ok := r.Context().Value(contextKeySlot).(*principalSlot); ok {
				slot.p, slot.set = p, true
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// OptionalAuth injeta o Principal quando há token válido e segue adiante sem ele.
func OptionalAuth(tokens TokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
			if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
				if claims, err := tokens.ParseAndValidate(strings.TrimSpace(parts[1])); err == nil {
					if p, err := auth.PrincipalFromClaims(claims); err == nil {
						r = r.WithContext(WithPrincipal(r.Context(), p))
					}
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithPrincipal grava o principal no contexto.
func WithPrincipal(ctx context.Context, p auth.Principal) context.Context {
	return context.WithValue(ctx, contextKeyPrincipal, p)
}

// PrincipalFrom recupera o principal autenticado.
func PrincipalFrom(ctx context.Context) (auth.Principal, bool) {
	p, ok := ctx.Value(contextKeyPrincipal).(auth.Principal)
	return p, ok
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"data": nil,
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	})
}
