package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/minhacidade/backend/internal/service"
)

const (
	loginRatePerSecond = 0.2
	// loginBurst fica acima de MaxLoginAttempts para o bloqueio responder antes do limitador.
	loginBurst     = 2 * service.MaxLoginAttempts
	loginPeekLimit = 4 << 10
)

type loginPayload struct {
	Identificador string `json:"identificador"`
	Email         string `json:"email"`
	Senha         string `json:"senha"`
	Tipo          string `json:"tipo"`
}

func (p loginPayload) identifier() string {
	if v := strings.TrimSpace(p.Identificador); v != "" {
		return v
	}
	return strings.TrimSpace(p.Email)
}

// loginIdentifier lê o identificador sem consumir o corpo do handler.
func loginIdentifier(r *http.Request) string {
	if r.Body == nil {
		return ""
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, loginPeekLimit))
	rest := r.Body
	r.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(raw), rest), rest}
	if err != nil {
		return ""
	}
	var payload loginPayload
	_ = json.Unmarshal(raw, &payload)
	return payload.identifier()
}

// Login autentica administradores, munícipes e funcionários pelo mesmo endpoint.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var payload loginPayload
	if !decodeJSON(w, r, &payload) {
		return
	}
	if payload.identifier() == "" || payload.Senha == "" {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "identificador e senha são obrigatórios", nil)
		return
	}

	result, err := h.svc.Auth.Login(r.Context(), service.LoginInput{
		Identificador: payload.identifier(),
		Senha:         payload.Senha,
		Tipo:          payload.Tipo,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, result)
}

type refreshPayload struct {
	Tipo         string `json:"tipo"`
	RefreshToken string `json:"refresh_token"`
}

// Refresh troca o refresh token por um novo par.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var payload refreshPayload
	if !decodeJSON(w, r, &payload) {
		return
	}
	result, err := h.svc.Auth.Refresh(r.Context(), payload.Tipo, payload.RefreshToken)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, result)
}

// Logout revoga o refresh token.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	var payload refreshPayload
	if !decodeJSON(w, r, &payload) {
		return
	}
	if err := h.svc.Auth.Logout(r.Context(), payload.Tipo, payload.RefreshToken); err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Me devolve o perfil do token.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	profile, err := h.svc.Auth.GetMe(r.Context(), p)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, profile)
}

// SolicitarRecuperacaoSenha envia o link de redefinição. A resposta não revela se o e-mail existe.
func (h *Handler) SolicitarRecuperacaoSenha(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email string `json:"email"`
	}
	if !decodeJSON(w, r, &payload) {
		return
	}
	if strings.TrimSpace(payload.Email) == "" {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "email é obrigatório", nil)
		return
	}

	if err := h.svc.Recovery.RequestReset(r.Context(), payload.Email); err != nil {
		if errors.Is(err, service.ErrMailDelivery) {
			WriteError(w, http.StatusInternalServerError, "INTERNAL", "não foi possível enviar o e-mail de recuperação", map[string]bool{"success": false})
			return
		}
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"mensagem": "se o e-mail estiver cadastrado, você receberá as instruções",
	})
}

// RedefinirSenha consome o token e grava a nova senha.
func (h *Handler) RedefinirSenha(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Token     string `json:"token"`
		NovaSenha string `json:"nova_senha"`
	}
	if !decodeJSON(w, r, &payload) {
		return
	}
	if err := h.svc.Recovery.ResetPassword(r.Context(), payload.Token, payload.NovaSenha); err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"success": true})
}
