package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/minhacidade/backend/internal/auth"
	"github.com/minhacidade/backend/internal/db"
	"github.com/minhacidade/backend/internal/departamento"
	"github.com/minhacidade/backend/internal/notificacao"
	"github.com/minhacidade/backend/internal/repo"
	"github.com/minhacidade/backend/internal/util"
)

type funcionarioStore interface {
	ListFuncionarios(ctx context.Context, filter repo.FuncionarioFilter) ([]repo.Funcionario, error)
	GetFuncionario(ctx context.Context, id int64) (repo.Funcionario, error)
	CreateFuncionario(ctx context.Context, arg repo.CreateFuncionarioParams) (repo.Funcionario, error)
	UpdateFuncionario(ctx context.Context, id int64, patch repo.FuncionarioPatch) (repo.Funcionario, error)
	DeleteFuncionario(ctx context.Context, id int64) error
	IdentityTaken(ctx context.Context, kind repo.AccountKind, email, cpf, matricula string, excludeID int64) (bool, error)
}

type funcionarioTxStore interface {
	GetFuncionario(ctx context.Context, id int64) (repo.Funcionario, error)
	UpdateFuncionario(ctx context.Context, id int64, patch repo.FuncionarioPatch) (repo.Funcionario, error)
	InsertNotificacoes(ctx context.Context, novas []notificacao.Nova) ([]notificacao.Notificacao, error)
}

// DepartamentoLookup carrega departamentos.
type DepartamentoLookup interface {
	Get(ctx context.Context, id int64) (*departamento.Departamento, error)
}

// NotificationPusher entrega notificações em tempo real.
type NotificationPusher interface {
	Push(notificacoes []notificacao.Notificacao)
}

// ErrDepartamentoInvalido indica departamento inexistente ou de outra cidade.
var ErrDepartamentoInvalido = errors.New("departamento inválido")

// FuncionarioInput cadastra servidor ou atendente.
type FuncionarioInput struct {
	Nome           string  `json:"nome" validate:"required,min=3,max=120"`
	Email          string  `json:"email" validate:"required,email"`
	CPF            string  `json:"cpf" validate:"required,cpf"`
	Telefone       *string `json:"telefone" validate:"omitempty,max=20"`
	Senha          string  `json:"senha" validate:"required,min=8"`
	Matricula      string  `json:"matricula" validate:"required,max=30"`
	Cargo          string  `json:"cargo" validate:"required,oneof=servidor atendente"`
	DepartamentoID int64   `json:"departamento_id" validate:"required,gt=0"`
}

// FuncionarioUpdate altera somente os campos informados.
type FuncionarioUpdate struct {
	Nome           *string `json:"nome" validate:"omitempty,min=3,max=120"`
	Email          *string `json:"email" validate:"omitempty,email"`
	CPF            *string `json:"cpf" validate:"omitempty,cpf"`
	Telefone       *string `json:"telefone" validate:"omitempty,max=20"`
	Senha          *string `json:"senha" validate:"omitempty,min=8"`
	Matricula      *string `json:"matricula" validate:"omitempty,max=30"`
	Cargo          *string `json:"cargo" validate:"omitempty,oneof=servidor atendente"`
	Ativo          *bool   `json:"ativo"`
	DepartamentoID *int64  `json:"departamento_id" validate:"omitempty,gt=0"`
}

// DesignarAtendenteInput promove funcionário a atendente, opcionalmente trocando de departamento.
type DesignarAtendenteInput struct {
	DepartamentoID *int64 `json:"departamento_id" validate:"omitempty,gt=0"`
}

// FuncionarioService gerencia funcionários; administradores municipais ficam restritos à sua cidade.
type FuncionarioService struct {
	repo          funcionarioStore
	inTx          func(ctx context.Context, fn func(funcionarioTxStore) error) error
	departamentos DepartamentoLookup
	pusher        NotificationPusher
}

type funcionarioTx struct {
	*repo.Queries
	tx pgx.Tx
}

func (t funcionarioTx) InsertNotificacoes(ctx context.Context, novas []notificacao.Nova) ([]notificacao.Notificacao, error) {
	return notificacao.InsertBatch(ctx, t.tx, novas)
}

// NewFuncionarioService cria serviço sobre o pool.
func NewFuncionarioService(pool *pgxpool.Pool, departamentos DepartamentoLookup, pusher NotificationPusher) *FuncionarioService {
	return &FuncionarioService{
		repo: repo.New(pool),
		inTx: func(ctx context.Context, fn func(funcionarioTxStore) error) error {
			return db.WithTx(ctx, pool, func(ctx context.Context, tx pgx.Tx) error {
				return fn(funcionarioTx{Queries: repo.New(tx), tx: tx})
			})
		},
		departamentos: departamentos,
		pusher:        pusher,
	}
}

// List lista funcionários visíveis ao principal.
func (s *FuncionarioService) List(ctx context.Context, p auth.Principal, filter repo.FuncionarioFilter) ([]repo.Funcionario, error) {
	if !p.IsStaff() {
		return nil, ErrForbidden
	}
	cid, err := ScopeCidade(p, filter.CidadeID)
	if err != nil {
		return nil, err
	}
	filter.CidadeID = cid
	return s.repo.ListFuncionarios(ctx, filter)
}

// Get busca funcionário.
func (s *FuncionarioService) Get(ctx context.Context, p auth.Principal, id int64) (*repo.Funcionario, error) {
	f, err := s.repo.GetFuncionario(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.Is(auth.KindFuncionario, id) && !(p.IsStaff() && p.CanAccessCidade(f.CidadeID)) {
		return nil, ErrForbidden
	}
	return &f, nil
}

// departamentoFor exige departamento existente e acessível; devolve a cidade dele.
func (s *FuncionarioService) departamentoFor(ctx context.Context, p auth.Principal, id int64) (*departamento.Departamento, error) {
	dep, err := s.departamentos.Get(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, util.Invalid("departamento_id", ErrDepartamentoInvalido.Error())
	}
	if err != nil {
		return nil, err
	}
	if err := RequireCidade(p, dep.CidadeID); err != nil {
		return nil, err
	}
	return dep, nil
}

// Create cadastra funcionário; a cidade vem do departamento.
func (s *FuncionarioService) Create(ctx context.Context, p auth.Principal, in FuncionarioInput) (*repo.Funcionario, error) {
	if err := RequireAdmin(p); err != nil {
		return nil, err
	}
	if err := util.Validate(in); err != nil {
		return nil, err
	}
	dep, err := s.departamentoFor(ctx, p, in.DepartamentoID)
	if err != nil {
		return nil, err
	}

	cpf := util.SanitizeCPF(in.CPF)
	matricula := strings.TrimSpace(in.Matricula)
	taken, err := s.repo.IdentityTaken(ctx, repo.KindFuncionario, in.Email, cpf, matricula, 0)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrConflict
	}

	hash, err := auth.Hash(in.Senha)
	if err != nil {
		return nil, err
	}
	f, err := s.repo.CreateFuncionario(ctx, repo.CreateFuncionarioParams{
		Nome:           in.Nome,
		Email:          in.Email,
		CPF:            cpf,
		Telefone:       in.Telefone,
		SenhaHash:      hash,
		Matricula:      matricula,
		Cargo:          in.Cargo,
		DepartamentoID: dep.ID,
		CidadeID:       dep.CidadeID,
	})
	if err != nil {
		return nil, mapConflict(err)
	}
	return &f, nil
}

// Update aplica atualização parcial; trocar de departamento mantém a mesma cidade.
func (s *FuncionarioService) Update(ctx context.Context, p auth.Principal, id int64, in FuncionarioUpdate) (*repo.Funcionario, error) {
	if err := RequireAdmin(p); err != nil {
		return nil, err
	}
	if err := util.Validate(in); err != nil {
		return nil, err
	}
	current, err := s.repo.GetFuncionario(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := RequireCidade(p, current.CidadeID); err != nil {
		return nil, err
	}

	patch := repo.FuncionarioPatch{
		Nome:      trimmed(in.Nome),
		Email:     in.Email,
		Telefone:  in.Telefone,
		Matricula: trimmed(in.Matricula),
		Cargo:     in.Cargo,
		Ativo:     in.Ativo,
	}
	if in.CPF != nil {
		cpf := util.SanitizeCPF(*in.CPF)
		patch.CPF = &cpf
	}
	if in.DepartamentoID != nil {
		dep, err := s.departamentoFor(ctx, p, *in.DepartamentoID)
		if err != nil {
			return nil, err
		}
		if dep.CidadeID != current.CidadeID {
			return nil, util.Invalid("departamento_id", "departamento de outra cidade")
		}
		patch.DepartamentoID = &dep.ID
	}

	taken, err := s.repo.IdentityTaken(ctx, repo.KindFuncionario, deref(in.Email), deref(patch.CPF), deref(patch.Matricula), id)
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

	f, err := s.repo.UpdateFuncionario(ctx, id, patch)
	if err != nil {
		return nil, mapConflict(err)
	}
	return &f, nil
}

// Delete remove funcionário; chamados sob sua responsabilidade impedem a remoção.
func (s *FuncionarioService) Delete(ctx context.Context, p auth.Principal, id int64) error {
	if err := RequireAdmin(p); err != nil {
		return err
	}
	current, err := s.repo.GetFuncionario(ctx, id)
	if err != nil {
		return err
	}
	if err := RequireCidade(p, current.CidadeID); err != nil {
		return err
	}
	return s.repo.DeleteFuncionario(ctx, id)
}

// DesignarAtendente define o cargo atendente, move de departamento se pedido e avisa o funcionário, numa transação.
func (s *FuncionarioService) DesignarAtendente(ctx context.Context, p auth.Principal, id int64, in DesignarAtendenteInput) (*repo.Funcionario, error) {
	if err := RequireAdmin(p); err != nil {
		return nil, err
	}
	if err := util.Validate(in); err != nil {
		return nil, err
	}

	var target *departamento.Departamento
	if in.DepartamentoID != nil {
		dep, err := s.departamentoFor(ctx, p, *in.DepartamentoID)
		if err != nil {
			return nil, err
		}
		target = dep
	}

	var (
		updated repo.Funcionario
		notifs  []notificacao.Notificacao
	)
	err := s.inTx(ctx, func(st funcionarioTxStore) error {
		current, err := st.GetFuncionario(ctx, id)
		if err != nil {
			return err
		}
		if err := RequireCidade(p, current.CidadeID); err != nil {
			return err
		}

		cargo := repo.CargoAtendente
		patch := repo.FuncionarioPatch{Cargo: &cargo}
		msg := "Você foi designado(a) como atendente."
		if target != nil {
			if target.CidadeID != current.CidadeID {
				return util.Invalid("departamento_id", "departamento de outra cidade")
			}
			patch.DepartamentoID = &target.ID
			msg = fmt.Sprintf("Você foi designado(a) como atendente do departamento %s.", target.Nome)
		}

		if updated, err = st.UpdateFuncionario(ctx, id, patch); err != nil {
			return err
		}
		notifs, err = st.InsertNotificacoes(ctx, []notificacao.Nova{notificacao.ParaFuncionario(id, nil, msg)})
		return err
	})
	if err != nil {
		return nil, err
	}

	if s.pusher != nil {
		s.pusher.Push(notifs)
	}
	return &updated, nil
}
