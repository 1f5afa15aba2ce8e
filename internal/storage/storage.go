package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/minhacidade/backend/internal/config"
)

// ErrInvalidKey indica chave vazia ou que escapa do diretório base.
var ErrInvalidKey = errors.New("storage: chave inválida")

// PutInput representa um upload em streaming.
type PutInput struct {
	Key         string
	Body        io.Reader
	ContentType string
}

// Object descreve o blob persistido.
type Object struct {
	Key  string
	URL  string
	Size int64
}

// BlobStore guarda e remove arquivos de anexos.
type BlobStore interface {
	Put(ctx context.Context, in PutInput) (*Object, error)
	Delete(ctx context.Context, key string) error
	URL(key string) string
}

// New escolhe o backend conforme STORAGE_PROVIDER.
func New(ctx context.Context, cfg config.StorageConfig) (BlobStore, error) {
	switch cfg.Provider {
	case "", "local":
		return NewLocalStore(cfg.UploadDir, cfg.PublicURL)
	case "s3":
		return NewS3Store(ctx, cfg)
	case "noop":
		return Noop{}, nil
	default:
		return nil, fmt.Errorf("storage: provider desconhecido %q", cfg.Provider)
	}
}

// NewKey monta a chave `<tipo>/<uuid><ext>` preservando a extensão original.
func NewKey(tipo, filename string) string {
	ext := strings.ToLower(path.Ext(strings.ReplaceAll(filename, "\\", "/")))
	if len(ext) > 10 || strings.ContainsAny(ext, " /") {
		ext = ""
	}
	return cleanSegment(tipo) + "/" + uuid.NewString() + ext
}

func cleanSegment(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "outros"
	}
	return b.String()
}

func validKey(key string) bool {
	if key == "" || strings.HasPrefix(key, "/") {
		return false
	}
	return path.Clean(key) == key && !strings.HasPrefix(key, "..")
}
