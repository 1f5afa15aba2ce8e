package auth

import (
	"strconv"
)

// Papéis emitidos no login.
const (
	RoleAdminGlobal = "admin_global"
	RoleAdminCidade = "admin_cidade"
	RoleMunicipe    = "municipe"
	RoleServidor    = "servidor"
	RoleAtendente   = "atendente"
)

// Tipos de conta usados como audience do token.
const (
	KindAdministrador = "administrador"
	KindUsuario       = "usuario"
	KindFuncionario   = "funcionario"
)

// Principal identifica quem faz a requisição.
type Principal struct {
	Kind           string
	ID             int64
	Role           string
	CidadeID       *int64
	DepartamentoID *int64
}

// PrincipalFromClaims converte claims validadas em Principal.
func PrincipalFromClaims(c *Claims) (Principal, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return Principal{}, err
	}
	p := Principal{ID: id, CidadeID: c.CidadeID, DepartamentoID: c.DepartamentoID}
	if len(c.Audience) > 0 {
		p.Kind = c.Audience[0]
	}
	if len(c.Roles) > 0 {
		p.Role = c.Roles[0]
	}
	return p, nil
}

// IsAdmin indica administrador global ou municipal; só contas de administrador contam.
func (p Principal) IsAdmin() bool {
	return p.Kind == KindAdministrador && (p.Role == RoleAdminGlobal || p.Role == RoleAdminCidade)
}

// IsGlobalAdmin indica administrador sem vínculo municipal.
func (p Principal) IsGlobalAdmin() bool {
	return p.Kind == KindAdministrador && p.Role == RoleAdminGlobal
}

// IsStaff indica administradores e funcionários.
func (p Principal) IsStaff() bool {
	return p.IsAdmin() || p.Kind == KindFuncionario
}

// HasRole verifica se o papel está entre os informados.
func (p Principal) HasRole(roles ...string) bool {
	for _, r := range roles {
		if p.Role == r {
			return true
		}
	}
	return false
}

// CanAccessCidade indica se o principal pode operar na cidade.
func (p Principal) CanAccessCidade(cidadeID int64) bool {
	if p.IsGlobalAdmin() {
		return true
	}
	return p.CidadeID != nil && *p.CidadeID == cidadeID
}

// Is compara tipo de conta e id.
func (p Principal) Is(kind string, id int64) bool {
	return p.Kind == kind && p.ID == id
}
