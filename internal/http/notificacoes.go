package http

import (
	"net/http"

	"github.com/minhacidade/backend/internal/notificacao"
)

// ListNotificacoes lista a caixa do principal (?nao_lidas=true filtra).
func (h *Handler) ListNotificacoes(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	q := newQuery(r)
	filter := notificacao.Filter{SomenteNaoLidas: q.bool("nao_lidas")}
	filter.Limit, filter.Offset = q.page()
	if err := q.err(); err != nil {
		writeServiceError(w, r, err)
		return
	}
	items, err := h.svc.Notificacoes.List(r.Context(), p, filter)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, items)
}

func (h *Handler) CountNaoLidas(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	total, err := h.svc.Notificacoes.CountUnread(r.Context(), p)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]int64{"total": total})
}

func (h *Handler) MarkNotificacaoRead(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.Notificacoes.MarkRead(r.Context(), p, id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]bool{"lida": true})
}

func (h *Handler) MarkAllNotificacoesRead(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	n, err := h.svc.Notificacoes.MarkAllRead(r.Context(), p)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]int64{"atualizadas": n})
}
