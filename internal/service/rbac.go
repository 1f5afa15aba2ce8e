package service

import (
	"github.com/minhacidade/backend/internal/auth"
)

// ScopeCidade restringe o filtro de cidade ao vínculo do principal.
// Administrador global mantém o filtro pedido; os demais ficam presos à própria cidade.
func ScopeCidade(p auth.Principal, requested *int64) (*int64, error) {
	if p.IsGlobalAdmin() {
		return requested, nil
	}
	if p.CidadeID == nil {
		return nil, ErrForbidden
	}
	if requested != nil && *requested != *p.CidadeID {
		return nil, ErrForbidden
	}
	cid := *p.CidadeID
	return &cid, nil
}

// RequireCidade garante que o principal opera na cidade informada.
func RequireCidade(p auth.Principal, cidadeID int64) error {
	if !p.CanAccessCidade(cidadeID) {
		return ErrForbidden
	}
	return nil
}

// RequireAdmin garante administrador global ou municipal.
func RequireAdmin(p auth.Principal) error {
	if !p.IsAdmin() {
		return ErrForbidden
	}
	return nil
}
