package chamado

import (
	"errors"
	"fmt"
	"time"

	"github.com/minhacidade/backend/internal/repo"
)

// Status possíveis de um chamado.
const (
	StatusPendente             = "Pendente"
	StatusAguardandoAtribuicao = "Aguardando Atribuição"
	StatusEmAndamento          = "Em Andamento"
	StatusResolvido            = "Resolvido"
	StatusFinalizado           = "Finalizado"
	StatusEncerrado            = "Encerrado"
	StatusCancelado            = "Cancelado"
)

// Prioridades aceitas.
const (
	PrioridadeBaixa   = "Baixa"
	PrioridadeMedia   = "Média"
	PrioridadeAlta    = "Alta"
	PrioridadeUrgente = "Urgente"
)

// EtapaAbertura é a primeira etapa de todo chamado.
const EtapaAbertura = "Abertura"

var (
	// ErrNotFound indica chamado inexistente.
	ErrNotFound = repo.ErrNotFound
	// ErrForbidden indica que o principal não pode operar o chamado.
	ErrForbidden = errors.New("operação não permitida para este chamado")
	// ErrInvalidTransition indica transição ilegal a partir do status atual.
	ErrInvalidTransition = errors.New("transição de status inválida")
	// ErrDepartamentoNotFound indica departamento inexistente.
	ErrDepartamentoNotFound = errors.New("departamento não encontrado")
	// ErrCategoriaNotFound indica categoria inexistente.
	ErrCategoriaNotFound = errors.New("categoria não encontrada")
	// ErrUsuarioNotFound indica munícipe solicitante inexistente.
	ErrUsuarioNotFound = errors.New("usuário solicitante não encontrado")
	// ErrServidorInvalido indica servidor inexistente, inativo ou de outra cidade.
	ErrServidorInvalido = errors.New("servidor inválido para atribuição")
)

// TransitionError detalha a transição recusada.
type TransitionError struct {
	Transicao Transition
	Status    string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %q não é permitida a partir de %q", ErrInvalidTransition, e.Transicao, e.Status)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// Endereco é o local da ocorrência.
type Endereco struct {
	CEP         string `json:"cep"`
	Logradouro  string `json:"logradouro"`
	Numero      string `json:"numero"`
	Bairro      string `json:"bairro"`
	Complemento string `json:"complemento"`
}

// Chamado é uma solicitação de serviço aberta por um munícipe.
type Chamado struct {
	ID             int64      `json:"id"`
	Titulo         string     `json:"titulo"`
	Descricao      string     `json:"descricao"`
	Prioridade     string     `json:"prioridade"`
	Status         string     `json:"status"`
	DataAbertura   time.Time  `json:"data_abertura"`
	DataFechamento *time.Time `json:"data_fechamento"`
	Endereco       Endereco   `json:"endereco"`
	DepartamentoID int64      `json:"departamento_id"`
	CategoriaID    *int64     `json:"categoria_id"`
	UsuarioID      int64      `json:"usuario_id"`
	ResponsavelID  *int64     `json:"responsavel_id"`
	CidadeID       int64      `json:"cidade_id"`
}

// Terminal indica status sem transições de trabalho posteriores.
func (c Chamado) Terminal() bool {
	switch c.Status {
	case StatusFinalizado, StatusEncerrado, StatusCancelado:
		return true
	}
	return false
}

// Etapa registra um passo do histórico do chamado.
type Etapa struct {
	ID         int64      `json:"id"`
	ChamadoID  int64      `json:"chamado_id"`
	Nome       string     `json:"nome"`
	Descricao  string     `json:"descricao"`
	DataInicio time.Time  `json:"data_inicio"`
	DataFim    *time.Time `json:"data_fim"`
}

// EnderecoInput recebe o endereço da ocorrência.
type EnderecoInput struct {
	CEP         string `json:"cep" validate:"omitempty,max=9"`
	Logradouro  string `json:"logradouro" validate:"max=200"`
	Numero      string `json:"numero" validate:"max=20"`
	Bairro      string `json:"bairro" validate:"max=120"`
	Complemento string `json:"complemento" validate:"max=200"`
}

// CreateInput abre um chamado. UsuarioID só é lido quando um funcionário abre em nome do munícipe.
type CreateInput struct {
	Titulo         string        `json:"titulo" validate:"required,min=3,max=200"`
	Descricao      string        `json:"descricao" validate:"required,max=5000"`
	Prioridade     string        `json:"prioridade" validate:"omitempty,oneof=Baixa Média Alta Urgente"`
	Endereco       EnderecoInput `json:"endereco"`
	DepartamentoID int64         `json:"departamento_id" validate:"required,gt=0"`
	CategoriaID    *int64        `json:"categoria_id" validate:"omitempty,gt=0"`
	UsuarioID      *int64        `json:"usuario_id" validate:"omitempty,gt=0"`
}

// EnderecoPatch altera partes do endereço.
type EnderecoPatch struct {
	CEP         *string `json:"cep" validate:"omitempty,max=9"`
	Logradouro  *string `json:"logradouro" validate:"omitempty,max=200"`
	Numero      *string `json:"numero" validate:"omitempty,max=20"`
	Bairro      *string `json:"bairro" validate:"omitempty,max=120"`
	Complemento *string `json:"complemento" validate:"omitempty,max=200"`
}

// UpdateInput altera somente os campos informados.
type UpdateInput struct {
	Titulo      *string        `json:"titulo" validate:"omitempty,min=3,max=200"`
	Descricao   *string        `json:"descricao" validate:"omitempty,max=5000"`
	Prioridade  *string        `json:"prioridade" validate:"omitempty,oneof=Baixa Média Alta Urgente"`
	Endereco    *EnderecoPatch `json:"endereco"`
	CategoriaID *int64         `json:"categoria_id" validate:"omitempty,gt=0"`
}

// TransitionInput carrega parâmetros opcionais das transições.
type TransitionInput struct {
	ServidorID     *int64 `json:"servidor_id"`
	DepartamentoID *int64 `json:"departamento_id"`
	Observacao     string `json:"observacao" validate:"max=2000"`
}

// Filter restringe a listagem.
type Filter struct {
	CidadeID       *int64
	DepartamentoID *int64
	Status         []string
	UsuarioID      *int64
	ResponsavelID  *int64
	Prioridade     string
	Limit          int
	Offset         int
}

// StatsFilter restringe os indicadores.
type StatsFilter struct {
	CidadeID       *int64
	DepartamentoID *int64
	Dias           int
}

// Distribution conta chamados por status e por departamento.
type Distribution struct {
	PorStatus       map[string]int64    `json:"por_status"`
	PorDepartamento []DepartamentoCount `json:"por_departamento"`
}

// DepartamentoCount é a contagem de um departamento.
type DepartamentoCount struct {
	DepartamentoID int64  `json:"departamento_id"`
	Nome           string `json:"nome"`
	Total          int64  `json:"total"`
}

// TrendPoint é a contagem diária de abertos e fechados.
type TrendPoint struct {
	Dia      string `json:"dia"`
	Abertos  int64  `json:"abertos"`
	Fechados int64  `json:"fechados"`
}

// Stats resume os totais.
type Stats struct {
	Total                    int64            `json:"total"`
	Abertos                  int64            `json:"abertos"`
	Fechados                 int64            `json:"fechados"`
	TempoMedioResolucaoHoras *float64         `json:"tempo_medio_resolucao_horas"`
	PorPrioridade            map[string]int64 `json:"por_prioridade"`
}

// DepartamentoRef são os dados do departamento usados pelas regras.
type DepartamentoRef struct {
	ID               int64
	Nome             string
	CidadeID         int64
	PrioridadePadrao string
}

// FuncionarioRef são os dados do funcionário usados na atribuição.
type FuncionarioRef struct {
	ID             int64
	Nome           string
	Cargo          string
	Ativo          bool
	CidadeID       int64
	DepartamentoID int64
}

// InsertParams são os valores resolvidos para inserir um chamado.
type InsertParams struct {
	Titulo         string
	Descricao      string
	Prioridade     string
	Endereco       Endereco
	DepartamentoID int64
	CategoriaID    *int64
	UsuarioID      int64
	Abertura       time.Time
}

// StatusUpdate é o efeito de uma transição sobre a linha do chamado.
type StatusUpdate struct {
	Status           string
	ResponsavelID    *int64
	ClearResponsavel bool
	DepartamentoID   *int64
	DataFechamento   *time.Time
}
