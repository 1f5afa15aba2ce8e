package http

import (
	"net/http"

	"github.com/minhacidade/backend/internal/chamado"
	"github.com/minhacidade/backend/internal/repo"
	"github.com/minhacidade/backend/internal/service"
)

func (h *Handler) ListAdministradores(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	q := newQuery(r)
	filter := repo.AdministradorFilter{CidadeID: q.int64Ptr("cidade_id")}
	filter.Limit, filter.Offset = q.page()
	if err := q.err(); err != nil {
		writeServiceError(w, r, err)
		return
	}
	items, err := h.svc.Admins.List(r.Context(), p, filter)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, items)
}

func (h *Handler) GetAdministrador(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	a, err := h.svc.Admins.Get(r.Context(), p, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, a)
}

// CreateAdministrador responde 409 para e-mail ou CPF já cadastrados.
func (h *Handler) CreateAdministrador(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var in service.AdministradorInput
	if !decodeJSON(w, r, &in) {
		return
	}
	a, err := h.svc.Admins.Create(r.Context(), p, in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, a)
}

func (h *Handler) UpdateAdministrador(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var in service.AdministradorUpdate
	if !decodeJSON(w, r, &in) {
		return
	}
	a, err := h.svc.Admins.Update(r.Context(), p, id, in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, a)
}

func (h *Handler) DeleteAdministrador(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.Admins.Delete(r.Context(), p, id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListFuncionarios aceita ?cidade_id, ?departamento_id, ?cargo e ?ativos=true.
func (h *Handler) ListFuncionarios(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	q := newQuery(r)
	filter := repo.FuncionarioFilter{
		CidadeID:       q.int64Ptr("cidade_id"),
		DepartamentoID: q.int64Ptr("departamento_id"),
		Cargo:          q.get("cargo"),
		SomenteAtivos:  q.bool("ativos"),
	}
	filter.Limit, filter.Offset = q.page()
	if err := q.err(); err != nil {
		writeServiceError(w, r, err)
		return
	}
	items, err := h.svc.Funcionarios.List(r.Context(), p, filter)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, items)
}

func (h *Handler) GetFuncionario(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	f, err := h.svc.Funcionarios.Get(r.Context(), p, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, f)
}

func (h *Handler) CreateFuncionario(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var in service.FuncionarioInput
	if !decodeJSON(w, r, &in) {
		return
	}
	f, err := h.svc.Funcionarios.Create(r.Context(), p, in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, f)
}

func (h *Handler) UpdateFuncionario(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var in service.FuncionarioUpdate
	if !decodeJSON(w, r, &in) {
		return
	}
	f, err := h.svc.Funcionarios.Update(r.Context(), p, id, in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, f)
}

func (h *Handler) DeleteFuncionario(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.Funcionarios.Delete(r.Context(), p, id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DesignarAtendente promove o funcionário e o notifica.
func (h *Handler) DesignarAtendente(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var in service.DesignarAtendenteInput
	if !decodeJSON(w, r, &in) {
		return
	}
	f, err := h.svc.Funcionarios.DesignarAtendente(r.Context(), p, id, in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, f)
}

// RegisterUsuario é o cadastro público do munícipe.
func (h *Handler) RegisterUsuario(w http.ResponseWriter, r *http.Request) {
	var in service.UsuarioInput
	if !decodeJSON(w, r, &in) {
		return
	}
	u, err := h.svc.Usuarios.Register(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, u)
}

func (h *Handler) ListUsuarios(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	q := newQuery(r)
	filter := repo.UsuarioFilter{CidadeID: q.int64Ptr("cidade_id"), Busca: q.get("busca")}
	filter.Limit, filter.Offset = q.page()
	if err := q.err(); err != nil {
		writeServiceError(w, r, err)
		return
	}
	items, err := h.svc.Usuarios.List(r.Context(), p, filter)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, items)
}

func (h *Handler) GetUsuario(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	u, err := h.svc.Usuarios.Get(r.Context(), p, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, u)
}

// UpdateUsuario aplica atualização parcial; o próprio munícipe ou um administrador.
func (h *Handler) UpdateUsuario(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var in service.UsuarioUpdate
	if !decodeJSON(w, r, &in) {
		return
	}
	u, err := h.svc.Usuarios.Update(r.Context(), p, id, in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, u)
}

func (h *Handler) DeleteUsuario(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.Usuarios.Delete(r.Context(), p, id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListChamadosDoUsuario lista os chamados abertos pelo munícipe.
func (h *Handler) ListChamadosDoUsuario(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	if _, err := h.svc.Usuarios.Get(r.Context(), p, id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	q := newQuery(r)
	filter := chamado.Filter{UsuarioID: &id, Status: q.list("status")}
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
