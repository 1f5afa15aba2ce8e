package http

import (
	"net/http"

	"github.com/minhacidade/backend/internal/auth"
	"github.com/minhacidade/backend/internal/categoria"
	"github.com/minhacidade/backend/internal/cidade"
	"github.com/minhacidade/backend/internal/departamento"
	httpmiddleware "github.com/minhacidade/backend/internal/http/middleware"
	"github.com/minhacidade/backend/internal/service"
)

// ListCidades lista cidades ativas; administradores podem pedir ?todas=true.
func (h *Handler) ListCidades(w http.ResponseWriter, r *http.Request) {
	todas := newQuery(r).bool("todas")
	if todas {
		p, ok := httpmiddleware.PrincipalFrom(r.Context())
		todas = ok && p.IsAdmin()
	}
	items, err := h.svc.Cidades.List(r.Context(), todas)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, items)
}

// GetCidadePadrao devolve a cidade usada quando o cadastro não informa uma.
func (h *Handler) GetCidadePadrao(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.Cidades.GetPadrao(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, c)
}

func (h *Handler) GetCidade(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	c, err := h.svc.Cidades.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, c)
}

func (h *Handler) CreateCidade(w http.ResponseWriter, r *http.Request) {
	var in cidade.CreateInput
	if !decodeJSON(w, r, &in) {
		return
	}
	c, err := h.svc.Cidades.Create(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, c)
}

// UpdateCidade aplica atualização parcial.
func (h *Handler) UpdateCidade(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var in cidade.UpdateInput
	if !decodeJSON(w, r, &in) {
		return
	}
	c, err := h.svc.Cidades.Update(r.Context(), id, in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, c)
}

func (h *Handler) SetCidadePadrao(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	c, err := h.svc.Cidades.SetPadrao(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, c)
}

// DeleteCidade recusa com CITY_HAS_REFERENCES enquanto houver vínculos.
func (h *Handler) DeleteCidade(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.Cidades.Delete(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// cidadePadraoDo aplica a cidade do principal quando o filtro não informa uma.
func cidadePadraoDo(p auth.Principal, requested *int64) *int64 {
	if requested == nil && !p.IsGlobalAdmin() && p.CidadeID != nil {
		cid := *p.CidadeID
		return &cid
	}
	return requested
}

func (h *Handler) ListDepartamentos(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	q := newQuery(r)
	filter := departamento.Filter{CidadeID: cidadePadraoDo(p, q.int64Ptr("cidade_id"))}
	filter.Limit, filter.Offset = q.page()
	if err := q.err(); err != nil {
		writeServiceError(w, r, err)
		return
	}
	items, err := h.svc.Departamentos.List(r.Context(), filter)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, items)
}

func (h *Handler) GetDepartamento(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	d, err := h.svc.Departamentos.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, d)
}

// CreateDepartamento exige cidade existente; administrador municipal só cria na própria cidade.
func (h *Handler) CreateDepartamento(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var in departamento.CreateInput
	if !decodeJSON(w, r, &in) {
		return
	}
	if in.CidadeID > 0 {
		if err := service.RequireCidade(p, in.CidadeID); err != nil {
			writeServiceError(w, r, err)
			return
		}
	}
	d, err := h.svc.Departamentos.Create(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, d)
}

// departamentoDaCidade carrega o departamento e confere o vínculo municipal do principal.
func (h *Handler) departamentoDaCidade(w http.ResponseWriter, r *http.Request, p auth.Principal, id int64) bool {
	d, err := h.svc.Departamentos.Get(r.Context(), id)
	if err == nil {
		err = service.RequireCidade(p, d.CidadeID)
	}
	if err != nil {
		writeServiceError(w, r, err)
		return false
	}
	return true
}

// UpdateDepartamento aplica atualização parcial.
func (h *Handler) UpdateDepartamento(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var in departamento.UpdateInput
	if !decodeJSON(w, r, &in) {
		return
	}
	if !h.departamentoDaCidade(w, r, p, id) {
		return
	}
	d, err := h.svc.Departamentos.Update(r.Context(), id, in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, d)
}

// DeleteDepartamento recusa com DEPARTMENT_HAS_REFERENCES enquanto houver chamados ou funcionários.
func (h *Handler) DeleteDepartamento(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	if !h.departamentoDaCidade(w, r, p, id) {
		return
	}
	if err := h.svc.Departamentos.Delete(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListCategorias devolve as categorias da cidade e as globais.
func (h *Handler) ListCategorias(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	q := newQuery(r)
	cidadeID := cidadePadraoDo(p, q.int64Ptr("cidade_id"))
	if err := q.err(); err != nil {
		writeServiceError(w, r, err)
		return
	}
	items, err := h.svc.Categorias.List(r.Context(), cidadeID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, items)
}

func (h *Handler) GetCategoria(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	c, err := h.svc.Categorias.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, c)
}

// podeGerirCategoria: categorias globais ficam com o administrador global.
func podeGerirCategoria(p auth.Principal, cidadeID *int64) error {
	if cidadeID == nil {
		if !p.IsGlobalAdmin() {
			return service.ErrForbidden
		}
		return nil
	}
	return service.RequireCidade(p, *cidadeID)
}

func (h *Handler) CreateCategoria(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var in categoria.CreateInput
	if !decodeJSON(w, r, &in) {
		return
	}
	if err := podeGerirCategoria(p, in.CidadeID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	c, err := h.svc.Categorias.Create(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, c)
}

func (h *Handler) UpdateCategoria(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var in categoria.UpdateInput
	if !decodeJSON(w, r, &in) {
		return
	}
	atual, err := h.svc.Categorias.Get(r.Context(), id)
	if err == nil {
		err = podeGerirCategoria(p, atual.CidadeID)
	}
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	c, err := h.svc.Categorias.Update(r.Context(), id, in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, c)
}

func (h *Handler) DeleteCategoria(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	atual, err := h.svc.Categorias.Get(r.Context(), id)
	if err == nil {
		err = podeGerirCategoria(p, atual.CidadeID)
	}
	if err == nil {
		err = h.svc.Categorias.Delete(r.Context(), id)
	}
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
