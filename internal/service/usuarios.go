package service

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/minhacidade/backend/internal/auth"
	"github.com/minhacidade/backend/internal/repo"
	"github.com/minhacidade/backend/internal/util"
)

type usuarioStore interface {
	ListUsuarios(ctx context.Context, filter repo.UsuarioFilter) ([]repo.Usuario, error)
	GetUsuario(ctx context.Context, id int64) (repo.Usuario, error)
	CreateUsuario(ctx context.Context, arg repo.CreateUsuarioParams) (repo.Usuario, error)
	UpdateUsuario(ctx context.Context, id int64, patch repo.UsuarioPatch) (repo.Usuario, error)
	DeleteUsuario(ctx context.Context, id int64) error
	IdentityTaken(ctx context.Context, kind repo.AccountKind, email, cpf, matricula string, excludeID int64) (bool, error)
}

// CidadePadrao resolve a cidade usada quando o cadastro não informa uma.
type CidadePadrao interface {
	Exists(ctx context.Context, id int64) (bool, error)
	PadraoID(ctx context.Context) (int64, error)
}

// Endereco do munícipe, guardado como JSON.
type Endereco struct {
	CEP         string `json:"cep,omitempty" validate:"omitempty,max=9"`
	Logradouro  string `json:"logradouro,omitempty" validate:"max=200"`
	Numero      string `json:"numero,omitempty" validate:"max=20"`
	Bairro      string `json:"bairro,omitempty" validate:"max=120"`
	Complemento string `json:"complemento,omitempty" validate:"max=200"`
	Cidade      string `json:"cidade,omitempty" validate:"max=120"`
	UF          string `json:"uf,omitempty" validate:"omitempty,len=2"`
}

// UsuarioInput é o cadastro público do munícipe.
type UsuarioInput struct {
	Nome     string    `json:"nome" validate:"required,min=3,max=120"`
	Email    string    `json:"email" validate:"required,email"`
	CPF      string    `json:"cpf" validate:"required,cpf"`
	Telefone *string   `json:"telefone" validate:"omitempty,max=20"`
	Senha    string    `json:"senha" validate:"required,min=8"`
	Endereco *Endereco `json:"endereco"`
	CidadeID *int64    `json:"cidade_id" validate:"omitempty,gt=0"`
}

// UsuarioUpdate altera somente os campos informados. Ativo só é aceito de administradores.
type UsuarioUpdate struct {
	Nome     *string   `json:"nome" validate:"omitempty,min=3,max=120"`
	Email    *string   `json:"email" validate:"omitempty,email"`
	CPF      *string   `json:"cpf" validate:"omitempty,cpf"`
	Telefone *string   `json:"telefone" validate:"omitempty,max=20"`
	Senha    *string   `json:"senha" validate:"omitempty,min=8"`
	Endereco *Endereco `json:"endereco"`
	Ativo    *bool     `json:"ativo"`
	CidadeID *int64    `json:"cidade_id" validate:"omitempty,gt=0"`
}

// UsuarioService gerencia munícipes.
type UsuarioService struct {
	repo    usuarioStore
	cidades CidadePadrao
}

// NewUsuarioService cria nova instância.
func NewUsuarioService(r *repo.Queries, cidades CidadePadrao) *UsuarioService {
	return &UsuarioService{repo: r, cidades: cidades}
}

// Register cadastra munícipe (rota pública). Sem cidade_id usa a cidade padrão.
func (s *UsuarioService) Register(ctx context.Context, in UsuarioInput) (*repo.Usuario, error) {
	if err := util.Validate(in); err != nil {
		return nil, err
	}

	cidadeID, err := s.resolveCidade(ctx, in.CidadeID)
	if err != nil {
		return nil, err
	}

	cpf := util.SanitizeCPF(in.CPF)
	taken, err := s.repo.IdentityTaken(ctx, repo.KindUsuario, in.Email, cpf, "", 0)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrConflict
	}

	endereco, err := encodeEndereco(in.Endereco)
	if err != nil {
		return nil, err
	}
	hash, err := auth.Hash(in.Senha)
	if err != nil {
		return nil, err
	}

	u, err := s.repo.CreateUsuario(ctx, repo.CreateUsuarioParams{
		Nome:      strings.TrimSpace(in.Nome),
		Email:     in.Email,
		CPF:       cpf,
		Telefone:  in.Telefone,
		SenhaHash: hash,
		Role:      auth.RoleMunicipe,
		Endereco:  endereco,
		CidadeID:  cidadeID,
	})
	if err != nil {
		return nil, mapConflict(err)
	}
	return &u, nil
}

func (s *UsuarioService) resolveCidade(ctx context.Context, id *int64) (int64, error) {
	if id == nil {
		padrao, err := s.cidades.PadraoID(ctx)
		if err != nil {
			return 0, util.Invalid("cidade_id", "obrigatório: nenhuma cidade padrão configurada")
		}
		return padrao, nil
	}
	ok, err := s.cidades.Exists(ctx, *id)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, util.Invalid("cidade_id", "cidade não encontrada")
	}
	return *id, nil
}

func encodeEndereco(e *Endereco) (json.RawMessage, error) {
	if e == nil {
		return nil, nil
	}
	return json.Marshal(e)
}

// List lista munícipes (administradores).
func (s *UsuarioService) List(ctx context.Context, p auth.Principal, filter repo.UsuarioFilter) ([]repo.Usuario, error) {
	if err := RequireAdmin(p); err != nil {
		return nil, err
	}
	cid, err := ScopeCidade(p, filter.CidadeID)
	if err != nil {
		return nil, err
	}
	filter.CidadeID = cid
	return s.repo.ListUsuarios(ctx, filter)
}

// authorize permite o próprio munícipe ou administrador com acesso à cidade dele.
func (s *UsuarioService) authorize(ctx context.Context, p auth.Principal, id int64) (repo.Usuario, error) {
	u, err := s.repo.GetUsuario(ctx, id)
	if err != nil {
		return repo.Usuario{}, err
	}
	if p.Is(auth.KindUsuario, id) {
		return u, nil
	}
	if p.IsAdmin() && p.CanAccessCidade(u.CidadeID) {
		return u, nil
	}
	return repo.Usuario{}, ErrForbidden
}

// Get busca munícipe.
func (s *UsuarioService) Get(ctx context.Context, p auth.Principal, id int64) (*repo.Usuario, error) {
	u, err := s.authorize(ctx, p, id)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Update aplica atualização parcial.
func (s *UsuarioService) Update(ctx context.Context, p auth.Principal, id int64, in UsuarioUpdate) (*repo.Usuario, error) {
	if err := util.Validate(in); err != nil {
		return nil, err
	}
	if _, err := s.authorize(ctx, p, id); err != nil {
		return nil, err
	}
	if in.Ativo != nil && !p.IsAdmin() {
		return nil, ErrForbidden
	}

	patch := repo.UsuarioPatch{
		Nome:     trimmed(in.Nome),
		Email:    in.Email,
		Telefone: in.Telefone,
		Ativo:    in.Ativo,
	}
	if in.CPF != nil {
		cpf := util.SanitizeCPF(*in.CPF)
		patch.CPF = &cpf
	}
	if in.CidadeID != nil {
		cid, err := s.resolveCidade(ctx, in.CidadeID)
		if err != nil {
			return nil, err
		}
		patch.CidadeID = &cid
	}
	endereco, err := encodeEndereco(in.Endereco)
	if err != nil {
		return nil, err
	}
	patch.Endereco = endereco

	taken, err := s.repo.IdentityTaken(ctx, repo.KindUsuario, deref(in.Email), deref(patch.CPF), "", id)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrConflict
	}

	if in.Senha != nil {
		hash, err := auth.Hash(*in.Senha)
		if err != nil {
			return nil, err
		}
		patch.SenhaHash = &hash
	}

	u, err := s.repo.UpdateUsuario(ctx, id, patch)
	if err != nil {
		return nil, mapConflict(err)
	}
	return &u, nil
}

// Delete remove munícipe sem chamados.
func (s *UsuarioService) Delete(ctx context.Context, p auth.Principal, id int64) error {
	if _, err := s.authorize(ctx, p, id); err != nil {
		return err
	}
	return s.repo.DeleteUsuario(ctx, id)
}
