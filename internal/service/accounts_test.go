package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minhacidade/backend/internal/auth"
	"github.com/minhacidade/backend/internal/departamento"
	"github.com/minhacidade/backend/internal/notificacao"
	"github.com/minhacidade/backend/internal/repo"
	"github.com/minhacidade/backend/internal/util"
)

var (
	globalAdmin = auth.Principal{Kind: auth.KindAdministrador, ID: 1, Role: auth.RoleAdminGlobal}
	cityAdmin   = auth.Principal{Kind: auth.KindAdministrador, ID: 2, Role: auth.RoleAdminCidade, CidadeID: int64Ptr(100)}
)

type stubCidades struct {
	padrao int64
}

func (s stubCidades) Exists(_ context.Context, id int64) (bool, error) { return id == 100 || id == 200, nil }

func (s stubCidades) PadraoID(context.Context) (int64, error) {
	if s.padrao == 0 {
		return 0, repo.ErrNotFound
	}
	return s.padrao, nil
}

type stubAdmins struct {
	items      []repo.Administrador
	raceOnSave bool
}

func (s *stubAdmins) ListAdministradores(context.Context, repo.AdministradorFilter) ([]repo.Administrador, error) {
	return s.items, nil
}

func (s *stubAdmins) GetAdministrador(_ context.Context, id int64) (repo.Administrador, error) {
	for _, a := range s.items {
		if a.ID == id {
			return a, nil
		}
	}
	return repo.Administrador{}, repo.ErrNotFound
}

func (s *stubAdmins) CreateAdministrador(_ context.Context, arg repo.CreateAdministradorParams) (repo.Administrador, error) {
	if s.raceOnSave {
		return repo.Administrador{}, &repo.ConstraintError{Err: repo.ErrConflict, Constraint: "administrador_adm_email_key"}
	}
	a := repo.Administrador{ID: int64(len(s.items) + 10), Nome: arg.Nome, Email: arg.Email, CPF: arg.CPF, SenhaHash: arg.SenhaHash, CidadeID: arg.CidadeID, Ativo: true}
	s.items = append(s.items, a)
	return a, nil
}

func (s *stubAdmins) UpdateAdministrador(_ context.Context, id int64, patch repo.AdministradorPatch) (repo.Administrador, error) {
	for i := range s.items {
		if s.items[i].ID != id {
			continue
		}
		if patch.Nome != nil {
			s.items[i].Nome = *patch.Nome
		}
		if patch.SenhaHash != nil {
			s.items[i].SenhaHash = *patch.SenhaHash
		}
		if patch.ClearCidade {
			s.items[i].CidadeID = nil
		}
		return s.items[i], nil
	}
	return repo.Administrador{}, repo.ErrNotFound
}

func (s *stubAdmins) DeleteAdministrador(context.Context, int64) error { return nil }

func (s *stubAdmins) IdentityTaken(_ context.Context, _ repo.AccountKind, email, cpf, _ string, excludeID int64) (bool, error) {
	for _, a := range s.items {
		if a.ID == excludeID {
			continue
		}
		if email != "" && a.Email == email {
			return true, nil
		}
		if cpf != "" && a.CPF != nil && *a.CPF == cpf {
			return true, nil
		}
	}
	return false, nil
}

func TestAdministradorCreateDetectsDuplicates(t *testing.T) {
	store := &stubAdmins{items: []repo.Administrador{{ID: 1, Nome: "Raiz", Email: "raiz@cidade.gov.br"}}}
	svc := &AdministradorService{repo: store, cidades: stubCidades{}}
	ctx := context.Background()

	cpf := "529.982.247-25"
	adm, err := svc.Create(ctx, globalAdmin, AdministradorInput{
		Nome: "Maria Gestora", Email: "maria@cidade.gov.br", CPF: &cpf, Senha: "segredo123", CidadeID: int64Ptr(100),
	})
	require.NoError(t, err)
	require.NotNil(t, adm.CPF)
	assert.Equal(t, "52998224725", *adm.CPF)
	assert.NotEqual(t, "segredo123", adm.SenhaHash)

	_, err = svc.Create(ctx, globalAdmin, AdministradorInput{Nome: "Outra", Email: "raiz@cidade.gov.br", Senha: "segredo123"})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = svc.Create(ctx, globalAdmin, AdministradorInput{Nome: "Outro CPF", Email: "novo@cidade.gov.br", CPF: &cpf, Senha: "segredo123"})
	assert.ErrorIs(t, err, ErrConflict)

	store.raceOnSave = true
	_, err = svc.Create(ctx, globalAdmin, AdministradorInput{Nome: "Corrida", Email: "corrida@cidade.gov.br", Senha: "segredo123"})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = svc.Create(ctx, cityAdmin, AdministradorInput{Nome: "Sem permissão", Email: "x@cidade.gov.br", Senha: "segredo123"})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestAdministradorUpdateKeepsPasswordWhenOmitted(t *testing.T) {
	store := &stubAdmins{items: []repo.Administrador{{ID: 5, Nome: "Ana", Email: "ana@cidade.gov.br", SenhaHash: "hash-antigo", CidadeID: int64Ptr(100)}}}
	svc := &AdministradorService{repo: store, cidades: stubCidades{}}

	nome := "Ana Paula"
	adm, err := svc.Update(context.Background(), globalAdmin, 5, AdministradorUpdate{Nome: &nome, Global: true})
	require.NoError(t, err)
	assert.Equal(t, "Ana Paula", adm.Nome)
	assert.Equal(t, "hash-antigo", adm.SenhaHash)
	assert.Nil(t, adm.CidadeID)

	assert.ErrorIs(t, svc.Delete(context.Background(), globalAdmin, 1), ErrForbidden, "não remove a si mesmo")
}

type stubFuncionarios struct {
	items  map[int64]repo.Funcionario
	notifs []notificacao.Nova
}

func (s *stubFuncionarios) ListFuncionarios(_ context.Context, f repo.FuncionarioFilter) ([]repo.Funcionario, error) {
	var out []repo.Funcionario
	for _, it := range s.items {
		if f.CidadeID != nil && it.CidadeID != *f.CidadeID {
			continue
		}
		out = append(out, it)
	}
	return out, nil
}

func (s *stubFuncionarios) GetFuncionario(_ context.Context, id int64) (repo.Funcionario, error) {
	f, ok := s.items[id]
	if !ok {
		return repo.Funcionario{}, repo.ErrNotFound
	}
	return f, nil
}

func (s *stubFuncionarios) CreateFuncionario(_ context.Context, arg repo.CreateFuncionarioParams) (repo.Funcionario, error) {
	f := repo.Funcionario{ID: int64(len(s.items) + 100), Nome: arg.Nome, Email: arg.Email, CPF: arg.CPF, Matricula: arg.Matricula,
		Cargo: arg.Cargo, DepartamentoID: arg.DepartamentoID, CidadeID: arg.CidadeID, Ativo: true}
	s.items[f.ID] = f
	return f, nil
}

func (s *stubFuncionarios) UpdateFuncionario(_ context.Context, id int64, patch repo.FuncionarioPatch) (repo.Funcionario, error) {
	f, ok := s.items[id]
	if !ok {
		return repo.Funcionario{}, repo.ErrNotFound
	}
	if patch.Cargo != nil {
		f.Cargo = *patch.Cargo
	}
	if patch.DepartamentoID != nil {
		f.DepartamentoID = *patch.DepartamentoID
	}
	if patch.Nome != nil {
		f.Nome = *patch.Nome
	}
	s.items[id] = f
	return f, nil
}

func (s *stubFuncionarios) DeleteFuncionario(_ context.Context, id int64) error {
	delete(s.items, id)
	return nil
}

func (s *stubFuncionarios) IdentityTaken(_ context.Context, _ repo.AccountKind, email, cpf, matricula string, excludeID int64) (bool, error) {
	for _, f := range s.items {
		if f.ID == excludeID {
			continue
		}
		if (email != "" && f.Email == email) || (cpf != "" && f.CPF == cpf) || (matricula != "" && f.Matricula == matricula) {
			return true, nil
		}
	}
	return false, nil
}

func (s *stubFuncionarios) InsertNotificacoes(_ context.Context, novas []notificacao.Nova) ([]notificacao.Notificacao, error) {
	s.notifs = append(s.notifs, novas...)
	out := make([]notificacao.Notificacao, len(novas))
	for i, n := range novas {
		out[i] = notificacao.Notificacao{ID: int64(i + 1), Mensagem: n.Mensagem, FuncionarioID: n.FuncionarioID}
	}
	return out, nil
}

type stubDepartamentos map[int64]departamento.Departamento

func (s stubDepartamentos) Get(_ context.Context, id int64) (*departamento.Departamento, error) {
	d, ok := s[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return &d, nil
}

type capturePusher struct {
	pushed []notificacao.Notificacao
}

func (c *capturePusher) Push(n []notificacao.Notificacao) { c.pushed = append(c.pushed, n...) }

func newFuncionarioService(store *stubFuncionarios, pusher NotificationPusher) *FuncionarioService {
	return &FuncionarioService{
		repo: store,
		inTx: func(ctx context.Context, fn func(funcionarioTxStore) error) error {
			return fn(store)
		},
		departamentos: stubDepartamentos{
			1: {ID: 1, Nome: "Obras", CidadeID: 100},
			2: {ID: 2, Nome: "Saúde", CidadeID: 100},
			3: {ID: 3, Nome: "Obras", CidadeID: 200},
		},
		pusher: pusher,
	}
}

func TestFuncionarioCreateTakesCidadeFromDepartamento(t *testing.T) {
	store := &stubFuncionarios{items: map[int64]repo.Funcionario{}}
	svc := newFuncionarioService(store, nil)
	ctx := context.Background()

	in := FuncionarioInput{
		Nome: "João Servidor", Email: "joao@cidade.gov.br", CPF: "111.444.777-35", Senha: "segredo123",
		Matricula: "M-001", Cargo: repo.CargoServidor, DepartamentoID: 1,
	}
	f, err := svc.Create(ctx, cityAdmin, in)
	require.NoError(t, err)
	assert.Equal(t, int64(100), f.CidadeID)
	assert.Equal(t, "11144477735", f.CPF)

	in.Email = "outro@cidade.gov.br"
	in.CPF = "529.982.247-25"
	_, err = svc.Create(ctx, cityAdmin, in)
	assert.ErrorIs(t, err, ErrConflict, "matrícula repetida")

	in.Matricula = "M-002"
	in.DepartamentoID = 3
	_, err = svc.Create(ctx, cityAdmin, in)
	assert.ErrorIs(t, err, ErrForbidden, "administrador municipal não cria em outra cidade")

	in.DepartamentoID = 99
	_, err = svc.Create(ctx, globalAdmin, in)
	var verr *util.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestDesignarAtendenteUpdatesCargoAndNotifies(t *testing.T) {
	store := &stubFuncionarios{items: map[int64]repo.Funcionario{
		7: {ID: 7, Nome: "Carla", Cargo: repo.CargoServidor, DepartamentoID: 1, CidadeID: 100, Ativo: true},
	}}
	pusher := &capturePusher{}
	svc := newFuncionarioService(store, pusher)
	ctx := context.Background()

	f, err := svc.DesignarAtendente(ctx, cityAdmin, 7, DesignarAtendenteInput{DepartamentoID: int64Ptr(2)})
	require.NoError(t, err)
	assert.Equal(t, repo.CargoAtendente, f.Cargo)
	assert.Equal(t, int64(2), f.DepartamentoID)

	require.Len(t, store.notifs, 1)
	assert.Equal(t, int64(7), *store.notifs[0].FuncionarioID)
	assert.Contains(t, store.notifs[0].Mensagem, "Saúde")
	assert.Len(t, pusher.pushed, 1)

	_, err = svc.DesignarAtendente(ctx, globalAdmin, 7, DesignarAtendenteInput{DepartamentoID: int64Ptr(3)})
	var verr *util.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, int64(2), store.items[7].DepartamentoID, "nada muda quando o departamento é de outra cidade")
}

type stubUsuarios struct {
	items map[int64]repo.Usuario
}

func (s *stubUsuarios) ListUsuarios(context.Context, repo.UsuarioFilter) ([]repo.Usuario, error) {
	return nil, nil
}

func (s *stubUsuarios) GetUsuario(_ context.Context, id int64) (repo.Usuario, error) {
	u, ok := s.items[id]
	if !ok {
		return repo.Usuario{}, repo.ErrNotFound
	}
	return u, nil
}

func (s *stubUsuarios) CreateUsuario(_ context.Context, arg repo.CreateUsuarioParams) (repo.Usuario, error) {
	u := repo.Usuario{ID: int64(len(s.items) + 1), Nome: arg.Nome, Email: arg.Email, CPF: arg.CPF, Role: arg.Role,
		Endereco: arg.Endereco, CidadeID: arg.CidadeID, Ativo: true}
	s.items[u.ID] = u
	return u, nil
}

func (s *stubUsuarios) UpdateUsuario(_ context.Context, id int64, patch repo.UsuarioPatch) (repo.Usuario, error) {
	u := s.items[id]
	if patch.Nome != nil {
		u.Nome = *patch.Nome
	}
	if patch.Ativo != nil {
		u.Ativo = *patch.Ativo
	}
	s.items[id] = u
	return u, nil
}

func (s *stubUsuarios) DeleteUsuario(_ context.Context, id int64) error {
	delete(s.items, id)
	return nil
}

func (s *stubUsuarios) IdentityTaken(_ context.Context, _ repo.AccountKind, email, cpf, _ string, excludeID int64) (bool, error) {
	for _, u := range s.items {
		if u.ID != excludeID && ((email != "" && u.Email == email) || (cpf != "" && u.CPF == cpf)) {
			return true, nil
		}
	}
	return false, nil
}

func TestUsuarioRegisterUsesDefaultCidade(t *testing.T) {
	store := &stubUsuarios{items: map[int64]repo.Usuario{}}
	svc := &UsuarioService{repo: store, cidades: stubCidades{padrao: 100}}
	ctx := context.Background()

	u, err := svc.Register(ctx, UsuarioInput{
		Nome: "Pedro Munícipe", Email: "pedro@email.com", CPF: "529.982.247-25", Senha: "segredo123",
		Endereco: &Endereco{Bairro: "Centro"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(100), u.CidadeID)
	assert.Equal(t, auth.RoleMunicipe, u.Role)
	assert.JSONEq(t, `{"bairro":"Centro"}`, string(u.Endereco))

	_, err = svc.Register(ctx, UsuarioInput{Nome: "Pedro Dois", Email: "outro@email.com", CPF: "52998224725", Senha: "segredo123"})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = svc.Register(ctx, UsuarioInput{Nome: "CPF Ruim", Email: "ruim@email.com", CPF: "123.456.789-00", Senha: "segredo123"})
	var verr *util.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "cpf")
}

func TestUsuarioSelfOrAdminAccess(t *testing.T) {
	store := &stubUsuarios{items: map[int64]repo.Usuario{
		1: {ID: 1, Nome: "Pedro", CidadeID: 100, Ativo: true},
		2: {ID: 2, Nome: "Paula", CidadeID: 200, Ativo: true},
	}}
	svc := &UsuarioService{repo: store, cidades: stubCidades{padrao: 100}}
	ctx := context.Background()
	pedro := auth.Principal{Kind: auth.KindUsuario, ID: 1, Role: auth.RoleMunicipe}

	_, err := svc.Get(ctx, pedro, 1)
	assert.NoError(t, err)
	_, err = svc.Get(ctx, pedro, 2)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.Get(ctx, cityAdmin, 2)
	assert.ErrorIs(t, err, ErrForbidden, "administrador de outra cidade")

	inativo := false
	_, err = svc.Update(ctx, pedro, 1, UsuarioUpdate{Ativo: &inativo})
	assert.ErrorIs(t, err, ErrForbidden, "munícipe não se desativa")

	nome := "Pedro Henrique"
	u, err := svc.Update(ctx, pedro, 1, UsuarioUpdate{Nome: &nome})
	require.NoError(t, err)
	assert.Equal(t, "Pedro Henrique", u.Nome)
	assert.True(t, u.Ativo)
}
