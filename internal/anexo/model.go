package anexo

import (
	"errors"
	"io"
	"time"

	"github.com/minhacidade/backend/internal/repo"
)

var (
	// ErrNotFound indica anexo inexistente.
	ErrNotFound = repo.ErrNotFound
	// ErrTooLarge indica arquivo acima de UPLOAD_MAX_BYTES.
	ErrTooLarge = errors.New("arquivo excede o tamanho máximo permitido")
	// ErrTimeout indica upload que não terminou dentro de UPLOAD_TIMEOUT.
	ErrTimeout = errors.New("tempo limite do upload excedido")
)

// Anexo é um arquivo vinculado a um chamado.
type Anexo struct {
	ID        int64     `json:"id"`
	Tipo      string    `json:"tipo"`
	URL       string    `json:"url"`
	Chave     string    `json:"-"`
	Nome      string    `json:"nome"`
	Tamanho   int64     `json:"tamanho"`
	CriadoEm  time.Time `json:"criado_em"`
	ChamadoID int64     `json:"chamado_id"`
}

// UploadInput descreve o arquivo recebido em streaming.
type UploadInput struct {
	ChamadoID   int64     `json:"chamado_id" validate:"gt=0"`
	Tipo        string    `json:"tipo" validate:"required,max=40"`
	Nome        string    `json:"nome" validate:"max=255"`
	ContentType string    `json:"-"`
	Body        io.Reader `json:"-"`
}

// limitedReader falha com ErrTooLarge assim que o corpo ultrapassa o limite.
type limitedReader struct {
	r         io.Reader
	remaining int64
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if l.remaining < 0 {
		return 0, ErrTooLarge
	}
	if int64(len(p)) > l.remaining+1 {
		p = p[:l.remaining+1]
	}
	n, err := l.r.Read(p)
	l.remaining -= int64(n)
	if l.remaining < 0 {
		return n, ErrTooLarge
	}
	return n, err
}
