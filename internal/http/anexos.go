package http

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/minhacidade/backend/internal/anexo"
	"github.com/minhacidade/backend/internal/util"
)

const (
	// multipartOverhead cobre cabeçalhos e campos de texto além do arquivo.
	multipartOverhead = 1 << 20
	maxFieldBytes     = 256
)

// UploadAnexo recebe multipart (chamado_id, tipo, arquivo) em streaming.
// Os campos de texto devem vir antes do arquivo; chamado_id e tipo também são aceitos na query.
func (h *Handler) UploadAnexo(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	timeout := h.svc.Anexos.Timeout()
	_ = http.NewResponseController(w).SetReadDeadline(time.Now().Add(timeout))
	r.Body = http.MaxBytesReader(w, r.Body, h.svc.Anexos.MaxBytes()+multipartOverhead)

	mr, err := r.MultipartReader()
	if err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "requisição multipart inválida", nil)
		return
	}

	q := newQuery(r)
	in := anexo.UploadInput{Tipo: q.get("tipo")}
	if id := q.int64Ptr("chamado_id"); id != nil {
		in.ChamadoID = *id
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			writeServiceError(w, r, uploadReadError(err))
			return
		}

		switch part.FormName() {
		case "chamado_id":
			raw, err := readField(part)
			if err != nil {
				writeServiceError(w, r, uploadReadError(err))
				return
			}
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				writeServiceError(w, r, util.Invalid("chamado_id", "deve ser um inteiro positivo"))
				return
			}
			in.ChamadoID = id
		case "tipo":
			raw, err := readField(part)
			if err != nil {
				writeServiceError(w, r, uploadReadError(err))
				return
			}
			in.Tipo = raw
		case "arquivo":
			in.Nome = part.FileName()
			in.ContentType = part.Header.Get("Content-Type")
			in.Body = part

			a, err := h.svc.Anexos.Upload(r.Context(), p, in)
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			WriteJSON(w, http.StatusCreated, a)
			return
		}
		_ = part.Close()
	}

	writeServiceError(w, r, util.Invalid("arquivo", "campo obrigatório"))
}

func readField(part io.Reader) (string, error) {
	raw, err := io.ReadAll(io.LimitReader(part, maxFieldBytes))
	return strings.TrimSpace(string(raw)), err
}

// uploadReadError converte falhas de leitura do corpo nos erros de anexo.
func uploadReadError(err error) error {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes):
		return anexo.ErrTooLarge
	case isTimeout(err):
		return anexo.ErrTimeout
	}
	return util.Invalid("arquivo", "corpo multipart inválido")
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

// DeleteAnexo remove registro e blob.
func (h *Handler) DeleteAnexo(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.Anexos.Delete(r.Context(), p, id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
