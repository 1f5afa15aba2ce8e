package service

import (
	"context"
	"errors"
	"strings"

	"github.com/minhacidade/backend/internal/auth"
	"github.com/minhacidade/backend/internal/repo"
	"github.com/minhacidade/backend/internal/util"
)

// CidadeChecker confirma a existência de cidades.
type CidadeChecker interface {
	Exists(ctx context.Context, id int64) (bool, error)
}

type administradorStore interface {
	ListAdministradores(ctx context.Context, filter repo.AdministradorFilter) ([]repo.Administrador, error)
	GetAdministrador(ctx context.Context, id int64) (repo.Administrador, error)
	CreateAdministrador(ctx context.Context, arg repo.CreateAdministradorParams) (repo.Administrador, error)
	UpdateAdministrador(ctx context.Context, id int64, patch repo.AdministradorPatch) (repo.Administrador, error)
	DeleteAdministrador(ctx context.Context, id int64) error
	IdentityTaken(ctx context.Context, kind repo.AccountKind, email, cpf, matricula string, excludeID int64) (bool, error)
}

// AdministradorInput cria administrador. Sem cidade_id o administrador é global.
type AdministradorInput struct {
	Nome     string  `json:"nome" validate:"required,min=3,max=120"`
	Email    string  `json:"email" validate:"required,email"`
	CPF      *string `json:"cpf" validate:"omitempty,cpf"`
	Telefone *string `json:"telefone" validate:"omitempty,max=20"`
	Senha    string  `json:"senha" validate:"required,min=8"`
	CidadeID *int64  `json:"cidade_id" validate:"omitempty,gt=0"`
}

// AdministradorUpdate altera somente os campos informados. Global=true remove o vínculo municipal.
type AdministradorUpdate struct {
	Nome     *string `json:"nome" validate:"omitempty,min=3,max=120"`
	Email    *string `json:"email" validate:"omitempty,email"`
	CPF      *string `json:"cpf" validate:"omitempty,cpf"`
	Telefone *string `json:"telefone" validate:"omitempty,max=20"`
	Senha    *string `json:"senha" validate:"omitempty,min=8"`
	Ativo    *bool   `json:"ativo"`
	CidadeID *int64  `json:"cidade_id" validate:"omitempty,gt=0"`
	Global   bool    `json:"global"`
}

// AdministradorService gerencia administradores (restrito ao administrador global).
type AdministradorService struct {
	repo    administradorStore
	cidades CidadeChecker
}

// NewAdministradorService cria nova instância do serviço.
func NewAdministradorService(r *repo.Queries, cidades CidadeChecker) *AdministradorService {
	return &AdministradorService{repo: r, cidades: cidades}
}

// List lista administradores.
func (s *AdministradorService) List(ctx context.Context, p auth.Principal, filter repo.AdministradorFilter) ([]repo.Administrador, error) {
	if !p.IsGlobalAdmin() {
		return nil, ErrForbidden
	}
	return s.repo.ListAdministradores(ctx, filter)
}

// Get busca administrador.
func (s *AdministradorService) Get(ctx context.Context, p auth.Principal, id int64) (*repo.Administrador, error) {
	if !p.IsGlobalAdmin() && !p.Is(auth.KindAdministrador, id) {
		return nil, ErrForbidden
	}
	adm, err := s.repo.GetAdministrador(ctx, id)
	if err != nil {
		return nil, err
	}
	return &adm, nil
}

func (s *AdministradorService) checkCidade(ctx context.Context, id *int64) error {
	if id == nil {
		return nil
	}
	ok, err := s.cidades.Exists(ctx, *id)
	if err != nil {
		return err
	}
	if !ok {
		return util.Invalid("cidade_id", "cidade não encontrada")
	}
	return nil
}

// Create cadastra administrador com senha hasheada.
func (s *AdministradorService) Create(ctx context.Context, p auth.Principal, in AdministradorInput) (*repo.Administrador, error) {
	if !p.IsGlobalAdmin() {
		return nil, ErrForbidden
	}
	if err := util.Validate(in); err != nil {
		return nil, err
	}
	cpf := sanitizeOptionalCPF(in.CPF)
	if err := s.checkCidade(ctx, in.CidadeID); err != nil {
		return nil, err
	}
	if err := s.ensureAvailable(ctx, in.Email, deref(cpf), 0); err != nil {
		return nil, err
	}

	hash, err := auth.Hash(in.Senha)
	if err != nil {
		return nil, err
	}
	adm, err := s.repo.CreateAdministrador(ctx, repo.CreateAdministradorParams{
		Nome:      strings.TrimSpace(in.Nome),
		Email:     in.Email,
		CPF:       cpf,
		Telefone:  in.Telefone,
		SenhaHash: hash,
		CidadeID:  in.CidadeID,
	})
	if err != nil {
		return nil, mapConflict(err)
	}
	return &adm, nil
}

// Update aplica atualização parcial; a senha só muda quando informada.
func (s *AdministradorService) Update(ctx context.Context, p auth.Principal, id int64, in AdministradorUpdate) (*repo.Administrador, error) {
	if !p.IsGlobalAdmin() {
		return nil, ErrForbidden
	}
	if err := util.Validate(in); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetAdministrador(ctx, id); err != nil {
		return nil, err
	}
	cpf := sanitizeOptionalCPF(in.CPF)
	if err := s.checkCidade(ctx, in.CidadeID); err != nil {
		return nil, err
	}
	if err := s.ensureAvailable(ctx, deref(in.Email), deref(cpf), id); err != nil {
		return nil, err
	}

	patch := repo.AdministradorPatch{
		Nome:        trimmed(in.Nome),
		Email:       in.Email,
		CPF:         cpf,
		Telefone:    in.Telefone,
		Ativo:       in.Ativo,
		CidadeID:    in.CidadeID,
		ClearCidade: in.Global,
	}
	if in.Senha != nil {
		hash, err := auth.Hash(*in.Senha)
		if err != nil {
			return nil, err
		}
		patch.SenhaHash = &hash
	}

	adm, err := s.repo.UpdateAdministrador(ctx, id, patch)
	if err != nil {
		return nil, mapConflict(err)
	}
	return &adm, nil
}

// Delete remove administrador; o próprio usuário não pode se remover.
func (s *AdministradorService) Delete(ctx context.Context, p auth.Principal, id int64) error {
	if !p.IsGlobalAdmin() || p.Is(auth.KindAdministrador, id) {
		return ErrForbidden
	}
	return s.repo.DeleteAdministrador(ctx, id)
}

func (s *AdministradorService) ensureAvailable(ctx context.Context, email, cpf string, excludeID int64) error {
	taken, err := s.repo.IdentityTaken(ctx, repo.KindAdministrador, email, cpf, "", excludeID)
	if err != nil {
		return err
	}
	if taken {
		return ErrConflict
	}
	return nil
}

// mapConflict traduz violação de unicidade (corrida entre verificação e insert) para ErrConflict.
func mapConflict(err error) error {
	if errors.Is(err, repo.ErrConflict) {
		return ErrConflict
	}
	return err
}

func sanitizeOptionalCPF(cpf *string) *string {
	if cpf == nil {
		return nil
	}
	v := util.SanitizeCPF(*cpf)
	if v == "" {
		return nil
	}
	return &v
}

func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	return &t
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
