package repo

import (
	"encoding/json"
	"time"
)

// AccountKind identifica a tabela de origem de uma conta.
type AccountKind string

const (
	KindAdministrador AccountKind = "administrador"
	KindUsuario       AccountKind = "usuario"
	KindFuncionario   AccountKind = "funcionario"
)

// LoginOrder é a precedência documentada na resolução de identificadores.
var LoginOrder = []AccountKind{KindAdministrador, KindUsuario, KindFuncionario}

// Valid indica se o tipo de conta é conhecido.
func (k AccountKind) Valid() bool {
	_, ok := accountTables[k]
	return ok
}

type accountTable struct {
	table  string
	prefix string
}

var accountTables = map[AccountKind]accountTable{
	KindAdministrador: {table: "administrador", prefix: "adm"},
	KindUsuario:       {table: "usuario", prefix: "usu"},
	KindFuncionario:   {table: "funcionario", prefix: "fun"},
}

// Account é a visão comum das três tabelas de credenciais.
type Account struct {
	Kind            AccountKind
	ID              int64
	Nome            string
	Email           string
	SenhaHash       string
	Ativo           bool
	TentativasLogin int
	BloqueadoAte    *time.Time
	CidadeID        *int64
	DepartamentoID  *int64
	Cargo           string
}

// Administrador representa gestor global (sem cidade) ou municipal.
type Administrador struct {
	ID              int64      `json:"id"`
	Nome            string     `json:"nome"`
	Email           string     `json:"email"`
	CPF             *string    `json:"cpf,omitempty"`
	Telefone        *string    `json:"telefone,omitempty"`
	SenhaHash       string     `json:"-"`
	Ativo           bool       `json:"ativo"`
	TentativasLogin int        `json:"-"`
	BloqueadoAte    *time.Time `json:"bloqueado_ate,omitempty"`
	CidadeID        *int64     `json:"cidade_id"`
	CriadoEm        time.Time  `json:"criado_em"`
}

// Global indica administrador sem vínculo municipal.
func (a Administrador) Global() bool {
	return a.CidadeID == nil
}

// Funcionario representa servidor ou atendente de um departamento.
type Funcionario struct {
	ID              int64      `json:"id"`
	Nome            string     `json:"nome"`
	Email           string     `json:"email"`
	CPF             string     `json:"cpf"`
	Telefone        *string    `json:"telefone,omitempty"`
	SenhaHash       string     `json:"-"`
	Matricula       string     `json:"matricula"`
	Cargo           string     `json:"cargo"`
	Ativo           bool       `json:"ativo"`
	TentativasLogin int        `json:"-"`
	BloqueadoAte    *time.Time `json:"bloqueado_ate,omitempty"`
	DepartamentoID  int64      `json:"departamento_id"`
	CidadeID        int64      `json:"cidade_id"`
	CriadoEm        time.Time  `json:"criado_em"`
}

const (
	CargoServidor  = "servidor"
	CargoAtendente = "atendente"
)

// Usuario representa munícipe do app cidadão.
type Usuario struct {
	ID              int64           `json:"id"`
	Nome            string          `json:"nome"`
	Email           string          `json:"email"`
	CPF             string          `json:"cpf"`
	Telefone        *string         `json:"telefone,omitempty"`
	SenhaHash       string          `json:"-"`
	Role            string          `json:"role"`
	Ativo           bool            `json:"ativo"`
	TentativasLogin int             `json:"-"`
	BloqueadoAte    *time.Time      `json:"bloqueado_ate,omitempty"`
	Endereco        json.RawMessage `json:"endereco"`
	CidadeID        int64           `json:"cidade_id"`
	CriadoEm        time.Time       `json:"criado_em"`
}

// TokenRecuperacao modela tabela de tokens de redefinição de senha.
type TokenRecuperacao struct {
	ID       int64
	Hash     string
	Email    string
	CriadoEm time.Time
	ExpiraEm time.Time
	UsadoEm  *time.Time
}
