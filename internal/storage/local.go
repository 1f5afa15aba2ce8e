package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore grava anexos em disco; o diretório é servido em UPLOAD_PUBLIC_URL.
type LocalStore struct {
	dir       string
	publicURL string
}

// NewLocalStore garante o diretório base.
func NewLocalStore(dir, publicURL string) (*LocalStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("storage: UPLOAD_DIR obrigatório")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: criar diretório: %w", err)
	}
	return &LocalStore{dir: dir, publicURL: strings.TrimRight(publicURL, "/")}, nil
}

// Dir devolve o diretório base.
func (s *LocalStore) Dir() string {
	return s.dir
}

func (s *LocalStore) path(key string) (string, error) {
	if !validKey(key) {
		return "", ErrInvalidKey
	}
	return filepath.Join(s.dir, filepath.FromSlash(key)), nil
}

// Put copia o corpo para o disco. Em qualquer falha o arquivo parcial é removido.
func (s *LocalStore) Put(ctx context.Context, in PutInput) (*Object, error) {
	dst, err := s.path(in.Key)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}

	n, copyErr := io.Copy(f, ctxReader{ctx: ctx, r: in.Body})
	closeErr := f.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		_ = os.Remove(dst)
		return nil, err
	}

	return &Object{Key: in.Key, URL: s.URL(in.Key), Size: n}, nil
}

// Delete remove o arquivo; ausência não é erro.
func (s *LocalStore) Delete(_ context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// URL devolve o caminho público do arquivo.
func (s *LocalStore) URL(key string) string {
	return s.publicURL + "/" + key
}

// ctxReader interrompe a cópia quando o contexto expira.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
