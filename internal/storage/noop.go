package storage

import (
	"context"
	"io"
)

// Noop descarta o conteúdo; usado em testes e ambientes sem armazenamento.
type Noop struct{}

// Put consome o corpo sem persistir.
func (Noop) Put(_ context.Context, in PutInput) (*Object, error) {
	if !validKey(in.Key) {
		return nil, ErrInvalidKey
	}
	n, err := io.Copy(io.Discard, in.Body)
	if err != nil {
		return nil, err
	}
	return &Object{Key: in.Key, URL: Noop{}.URL(in.Key), Size: n}, nil
}

// Delete não faz nada.
func (Noop) Delete(context.Context, string) error { return nil }

// URL devolve caminho fictício.
func (Noop) URL(key string) string { return "/noop/" + key }
