package http

import (
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/minhacidade/backend/internal/anexo"
	"github.com/minhacidade/backend/internal/chamado"
)

var transitions = chamado.Transitions()

// ListChamados aceita cidade_id, departamento_id, status (csv), usuario_id, responsavel_id, prioridade, limit e offset.
func (h *Handler) ListChamados(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	q := newQuery(r)
	filter := chamado.Filter{
		CidadeID:       q.int64Ptr("cidade_id"),
		DepartamentoID: q.int64Ptr("departamento_id"),
		Status:         q.list("status"),
		UsuarioID:      q.int64Ptr("usuario_id"),
		ResponsavelID:  q.int64Ptr("responsavel_id"),
		Prioridade:     q.get("prioridade"),
	}
	filter.Limit, filter.Offset = q.page()
	if err := q.err(); err != nil {
		writeServiceError(w, r, err)
		return
	}
	items, err := h.svc.Chamados.List(r.Context(), p, filter)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, items)
}

// CreateChamado abre um chamado; departamento inexistente responde 400 sem gravar nada.
func (h *Handler) CreateChamado(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var in chamado.CreateInput
	if !decodeJSON(w, r, &in) {
		return
	}
	ch, err := h.svc.Chamados.Create(r.Context(), p, in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, ch)
}

type chamadoDetalhe struct {
	*chamado.Chamado
	Etapas []chamado.Etapa `json:"etapas"`
	Anexos []anexo.Anexo   `json:"anexos"`
}

// GetChamado devolve o chamado com histórico e anexos.
func (h *Handler) GetChamado(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	ch, err := h.svc.Chamados.Get(r.Context(), p, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out := chamadoDetalhe{Chamado: ch}
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		out.Etapas, err = h.svc.Chamados.Etapas(ctx, p, id)
		return err
	})
	g.Go(func() error {
		var err error
		out.Anexos, err = h.svc.Anexos.ListByChamado(ctx, p, id)
		return err
	})
	if err := g.Wait(); err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, out)
}

// UpdateChamado altera só os campos enviados.
func (h *Handler) UpdateChamado(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var in chamado.UpdateInput
	if !decodeJSON(w, r, &in) {
		return
	}
	ch, err := h.svc.Chamados.Update(r.Context(), p, id, in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, ch)
}

func (h *Handler) ListEtapas(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	items, err := h.svc.Chamados.Etapas(r.Context(), p, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, items)
}

func (h *Handler) ListAnexos(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	items, err := h.svc.Anexos.ListByChamado(r.Context(), p, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, items)
}

// TransitionChamado devolve o handler de uma transição; ilegal responde 409 INVALID_TRANSITION.
func (h *Handler) TransitionChamado(t chamado.Transition) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := principal(w, r)
		if !ok {
			return
		}
		id, ok := idParam(w, r, "id")
		if !ok {
			return
		}
		var in chamado.TransitionInput
		if !decodeJSON(w, r, &in) {
			return
		}
		ch, err := h.svc.Chamados.Transition(r.Context(), p, id, t, in)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		WriteJSON(w, http.StatusOK, ch)
	}
}

func statsFilter(q *query) chamado.StatsFilter {
	return chamado.StatsFilter{
		CidadeID:       q.int64Ptr("cidade_id"),
		DepartamentoID: q.int64Ptr("departamento_id"),
		Dias:           q.int("dias", 30),
	}
}

func (h *Handler) ChamadosDistribution(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	q := newQuery(r)
	f := statsFilter(q)
	if err := q.err(); err != nil {
		writeServiceError(w, r, err)
		return
	}
	out, err := h.svc.Chamados.Distribution(r.Context(), p, f)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, out)
}

// ChamadosTrend devolve abertos e fechados por dia (?dias=30).
func (h *Handler) ChamadosTrend(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	q := newQuery(r)
	f := statsFilter(q)
	if err := q.err(); err != nil {
		writeServiceError(w, r, err)
		return
	}
	out, err := h.svc.Chamados.Trend(r.Context(), p, f)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) ChamadosStats(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	q := newQuery(r)
	f := statsFilter(q)
	if err := q.err(); err != nil {
		writeServiceError(w, r, err)
		return
	}
	out, err := h.svc.Chamados.Stats(r.Context(), p, f)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, out)
}
