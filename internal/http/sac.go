package http

import (
	"net/http"

	"github.com/minhacidade/backend/internal/relatorio"
	"github.com/minhacidade/backend/internal/sac"
)

// CreateSac registra manifestação do munícipe.
func (h *Handler) CreateSac(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var in sac.CreateInput
	if !decodeJSON(w, r, &in) {
		return
	}
	m, err := h.svc.Sac.Create(r.Context(), p, in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, m)
}

// ListSac aceita ?tipo, ?status e ?cidade_id.
func (h *Handler) ListSac(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	q := newQuery(r)
	f := sac.Filter{Tipo: q.get("tipo"), Status: q.get("status"), CidadeID: q.int64Ptr("cidade_id")}
	f.Limit, f.Offset = q.page()
	if err := q.err(); err != nil {
		writeServiceError(w, r, err)
		return
	}
	items, err := h.svc.Sac.List(r.Context(), p, f)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, items)
}

func (h *Handler) GetSac(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	m, err := h.svc.Sac.Get(r.Context(), p, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, m)
}

func (h *Handler) ResponderSac(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var in sac.RespostaInput
	if !decodeJSON(w, r, &in) {
		return
	}
	m, err := h.svc.Sac.Responder(r.Context(), p, id, in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, m)
}

// RelatorioGeral aceita ?cidade_id, ?data_inicio e ?data_fim (inclusivo quando só a data é informada).
func (h *Handler) RelatorioGeral(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	q := newQuery(r)
	f := relatorio.Filter{
		CidadeID:   q.int64Ptr("cidade_id"),
		DataInicio: q.date("data_inicio"),
		DataFim:    q.dateEnd("data_fim"),
	}
	if err := q.err(); err != nil {
		writeServiceError(w, r, err)
		return
	}
	out, err := h.svc.Relatorios.Geral(r.Context(), p, f)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, out)
}
