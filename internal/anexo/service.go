package anexo

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/minhacidade/backend/internal/auth"
	"github.com/minhacidade/backend/internal/chamado"
	"github.com/minhacidade/backend/internal/storage"
	"github.com/minhacidade/backend/internal/util"
)

// Padrões quando a configuração não informa limites.
const (
	DefaultMaxBytes = 10 << 20
	DefaultTimeout  = 60 * time.Second
)

// Store abstrai o repositório.
type Store interface {
	Insert(ctx context.Context, a Anexo) (*Anexo, error)
	Get(ctx context.Context, id int64) (*Anexo, error)
	ListByChamado(ctx context.Context, chamadoID int64) ([]Anexo, error)
	Delete(ctx context.Context, id int64) error
}

// ChamadoReader confirma que o principal enxerga o chamado.
type ChamadoReader interface {
	Get(ctx context.Context, p auth.Principal, id int64) (*chamado.Chamado, error)
}

// Service recebe uploads e mantém blob e registro consistentes.
type Service struct {
	repo     Store
	blobs    storage.BlobStore
	chamados ChamadoReader
	maxBytes int64
	timeout  time.Duration
	log      zerolog.Logger
}

// NewService cria serviço. Limites zerados assumem os padrões.
func NewService(store Store, blobs storage.BlobStore, chamados ChamadoReader, maxBytes int64, timeout time.Duration) *Service {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Service{
		repo:     store,
		blobs:    blobs,
		chamados: chamados,
		maxBytes: maxBytes,
		timeout:  timeout,
		log:      log.With().Str("component", "anexo").Logger(),
	}
}

// MaxBytes devolve o limite efetivo.
func (s *Service) MaxBytes() int64 {
	return s.maxBytes
}

// Timeout devolve o prazo efetivo do upload.
func (s *Service) Timeout() time.Duration {
	return s.timeout
}

// Upload grava o blob e depois o registro. Se qualquer etapa falhar, nada fica para trás.
func (s *Service) Upload(ctx context.Context, p auth.Principal, in UploadInput) (*Anexo, error) {
	in.Tipo = strings.TrimSpace(in.Tipo)
	in.Nome = strings.TrimSpace(in.Nome)
	if err := util.Validate(in); err != nil {
		return nil, err
	}
	if in.Body == nil {
		return nil, util.Invalid("arquivo", "campo obrigatório")
	}
	if _, err := s.chamados.Get(ctx, p, in.ChamadoID); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	key := storage.NewKey(in.Tipo, in.Nome)
	obj, err := s.blobs.Put(ctx, storage.PutInput{
		Key:         key,
		Body:        &limitedReader{r: in.Body, remaining: s.maxBytes},
		ContentType: in.ContentType,
	})
	if err != nil {
		s.discard(key)
		return nil, uploadError(ctx, err)
	}

	a, err := s.repo.Insert(ctx, Anexo{
		Tipo:      in.Tipo,
		URL:       obj.URL,
		Chave:     obj.Key,
		Nome:      in.Nome,
		Tamanho:   obj.Size,
		ChamadoID: in.ChamadoID,
	})
	if err != nil {
		s.discard(key)
		return nil, err
	}

	s.log.Info().Int64("chamado_id", a.ChamadoID).Int64("anexo_id", a.ID).Int64("tamanho", a.Tamanho).Msg("anexo recebido")
	return a, nil
}

// discard remove o blob com contexto próprio, pois o da requisição pode ter expirado.
func (s *Service) discard(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.blobs.Delete(ctx, key); err != nil {
		s.log.Warn().Err(err).Str("chave", key).Msg("falha ao remover blob órfão")
	}
}

func uploadError(ctx context.Context, err error) error {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.Is(err, ErrTooLarge), errors.As(err, &maxBytes):
		return ErrTooLarge
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, os.ErrDeadlineExceeded):
		return ErrTimeout
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return ErrTimeout
	}
	return err
}

// ListByChamado lista anexos de um chamado visível ao principal.
func (s *Service) ListByChamado(ctx context.Context, p auth.Principal, chamadoID int64) ([]Anexo, error) {
	if _, err := s.chamados.Get(ctx, p, chamadoID); err != nil {
		return nil, err
	}
	return s.repo.ListByChamado(ctx, chamadoID)
}

// Delete remove registro e blob. O solicitante do chamado e a equipe podem excluir.
func (s *Service) Delete(ctx context.Context, p auth.Principal, id int64) error {
	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if _, err := s.chamados.Get(ctx, p, a.ChamadoID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.blobs.Delete(ctx, a.Chave); err != nil {
		s.log.Warn().Err(err).Str("chave", a.Chave).Msg("registro removido, blob permaneceu")
	}
	return nil
}
