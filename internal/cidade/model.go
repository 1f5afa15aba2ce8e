package cidade

import (
	"errors"
	"fmt"
	"time"

	"github.com/minhacidade/backend/internal/repo"
)

var (
	// ErrNotFound indica cidade inexistente.
	ErrNotFound = repo.ErrNotFound
	// ErrHasReferences indica cidade ainda referenciada.
	ErrHasReferences = errors.New("cidade possui vínculos")
)

// Cidade representa um município atendido pela plataforma.
type Cidade struct {
	ID       int64     `json:"id"`
	Nome     string    `json:"nome"`
	Estado   string    `json:"estado"`
	Ativo    bool      `json:"ativo"`
	Padrao   bool      `json:"padrao"`
	CriadoEm time.Time `json:"criado_em"`
}

// CreateInput contém os campos necessários para cadastrar uma cidade.
type CreateInput struct {
	Nome   string `json:"nome" validate:"required,min=2,max=120"`
	Estado string `json:"estado" validate:"required,uf"`
	Ativo  *bool  `json:"ativo"`
	Padrao bool   `json:"padrao"`
}

// UpdateInput descreve atualização parcial; campos nulos não são alterados.
type UpdateInput struct {
	Nome   *string `json:"nome" validate:"omitempty,min=2,max=120"`
	Estado *string `json:"estado" validate:"omitempty,uf"`
	Ativo  *bool   `json:"ativo"`
}

// References contabiliza registros que apontam para a cidade.
type References struct {
	Departamentos   int64 `json:"departamentos"`
	Funcionarios    int64 `json:"funcionarios"`
	Administradores int64 `json:"administradores"`
	Usuarios        int64 `json:"usuarios"`
	Categorias      int64 `json:"categorias"`
}

// Total soma todas as referências.
func (r References) Total() int64 {
	return r.Departamentos + r.Funcionarios + r.Administradores + r.Usuarios + r.Categorias
}

// ReferencesError impede a exclusão e informa as contagens.
type ReferencesError struct {
	References References
}

func (e *ReferencesError) Error() string {
	return fmt.Sprintf("cidade possui %d registros vinculados", e.References.Total())
}

func (e *ReferencesError) Unwrap() error {
	return ErrHasReferences
}
