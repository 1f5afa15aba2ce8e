package sac

import (
	"errors"
	"time"

	"github.com/minhacidade/backend/internal/repo"
)

// Tipos de manifestação.
const (
	TipoSAC       = "sac"
	TipoOuvidoria = "ouvidoria"
)

// Status de uma manifestação.
const (
	StatusAberto     = "Aberto"
	StatusRespondido = "Respondido"
)

var (
	// ErrNotFound indica manifestação inexistente.
	ErrNotFound = repo.ErrNotFound
	// ErrForbidden indica que o principal não pode ver ou responder a manifestação.
	ErrForbidden = errors.New("operação não permitida para esta manifestação")
	// ErrJaRespondida impede segunda resposta.
	ErrJaRespondida = errors.New("manifestação já respondida")
)

// Manifestacao é um contato de SAC ou ouvidoria aberto por um munícipe.
type Manifestacao struct {
	ID           int64      `json:"id"`
	Tipo         string     `json:"tipo"`
	Assunto      string     `json:"assunto"`
	Mensagem     string     `json:"mensagem"`
	Status       string     `json:"status"`
	Resposta     *string    `json:"resposta"`
	AnexoURL     *string    `json:"anexo_url"`
	DataCriacao  time.Time  `json:"data_criacao"`
	DataResposta *time.Time `json:"data_resposta"`
	UsuarioID    int64      `json:"usuario_id"`
	CidadeID     int64      `json:"cidade_id"`
}

// CreateInput é o corpo de POST /sac.
type CreateInput struct {
	Tipo     string  `json:"tipo" validate:"required,oneof=sac ouvidoria"`
	Assunto  string  `json:"assunto" validate:"required,min=3,max=200"`
	Mensagem string  `json:"mensagem" validate:"required,max=5000"`
	AnexoURL *string `json:"anexo_url" validate:"omitempty,max=500"`
}

// RespostaInput é o corpo de PUT /sac/{id}/responder.
type RespostaInput struct {
	Resposta string `json:"resposta" validate:"required,max=5000"`
}

// Filter restringe a listagem.
type Filter struct {
	Tipo      string
	Status    string
	CidadeID  *int64
	UsuarioID *int64
	Limit     int
	Offset    int
}
