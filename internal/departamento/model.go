package departamento

import (
	"errors"
	"fmt"

	"github.com/minhacidade/backend/internal/repo"
)

var (
	// ErrNotFound indica departamento inexistente.
	ErrNotFound = repo.ErrNotFound
	// ErrHasReferences indica departamento com chamados ou funcionários.
	ErrHasReferences = errors.New("departamento possui vínculos")
	// ErrCidadeNotFound indica cidade informada inexistente.
	ErrCidadeNotFound = errors.New("cidade não encontrada")
)

// PrioridadePadrao usada quando o departamento não define outra.
const PrioridadePadrao = "Média"

// Departamento agrupa serviços de uma cidade (Obras, Saúde, Iluminação...).
type Departamento struct {
	ID               int64    `json:"id"`
	Nome             string   `json:"nome"`
	Descricao        string   `json:"descricao"`
	PrioridadePadrao string   `json:"prioridade_padrao"`
	Motivos          []string `json:"motivos"`
	CidadeID         int64    `json:"cidade_id"`
}

// CreateInput contém os campos de cadastro.
type CreateInput struct {
	Nome             string   `json:"nome" validate:"required,min=2,max=120"`
	Descricao        string   `json:"descricao" validate:"max=500"`
	PrioridadePadrao string   `json:"prioridade_padrao" validate:"omitempty,oneof=Baixa Média Alta Urgente"`
	Motivos          []string `json:"motivos" validate:"omitempty,dive,required"`
	CidadeID         int64    `json:"cidade_id" validate:"required,gt=0"`
}

// UpdateInput descreve atualização parcial.
type UpdateInput struct {
	Nome             *string   `json:"nome" validate:"omitempty,min=2,max=120"`
	Descricao        *string   `json:"descricao" validate:"omitempty,max=500"`
	PrioridadePadrao *string   `json:"prioridade_padrao" validate:"omitempty,oneof=Baixa Média Alta Urgente"`
	Motivos          *[]string `json:"motivos"`
}

// Filter restringe listagens.
type Filter struct {
	CidadeID *int64
	Limit    int
	Offset   int
}

// References contabiliza registros que apontam para o departamento.
type References struct {
	Chamados     int64 `json:"chamados"`
	Funcionarios int64 `json:"funcionarios"`
}

// ReferencesError impede a exclusão e informa as contagens.
type ReferencesError struct {
	References References
}

func (e *ReferencesError) Error() string {
	return fmt.Sprintf("departamento possui %d chamados e %d funcionários", e.References.Chamados, e.References.Funcionarios)
}

func (e *ReferencesError) Unwrap() error {
	return ErrHasReferences
}
