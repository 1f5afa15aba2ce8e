package middleware

import (
	"net/http"

	"github.com/minhacidade/backend/internal/auth"
)

// Require barra a requisição quando o principal não satisfaz a regra.
func Require(allow func(auth.Principal) bool, message string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFrom(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "AUTH", "token ausente")
				return
			}
			if !allow(p) {
				writeError(w, http.StatusForbidden, "FORBIDDEN", message)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin aceita administradores globais e municipais.
func RequireAdmin(next http.Handler) http.Handler {
	return Require(auth.Principal.IsAdmin, "acesso restrito a administradores")(next)
}

// RequireGlobalAdmin aceita apenas o administrador global.
func RequireGlobalAdmin(next http.Handler) http.Handler {
	return Require(auth.Principal.IsGlobalAdmin, "acesso restrito ao administrador global")(next)
}

// RequireStaff aceita administradores e funcionários.
func RequireStaff(next http.Handler) http.Handler {
	return Require(auth.Principal.IsStaff, "acesso restrito à equipe da prefeitura")(next)
}

// RequireRoles aceita os papéis informados.
func RequireRoles(roles ...string) func(http.Handler) http.Handler {
	return Require(func(p auth.Principal) bool { return p.HasRole(roles...) }, "papel sem permissão para esta operação")
}
