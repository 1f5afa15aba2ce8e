package chamado

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/minhacidade/backend/internal/auth"
	"github.com/minhacidade/backend/internal/events"
	"github.com/minhacidade/backend/internal/notificacao"
	"github.com/minhacidade/backend/internal/repo"
	"github.com/minhacidade/backend/internal/util"
)

// Store abstrai o repositório; InTx entrega uma cópia vinculada à transação.
type Store interface {
	InTx(ctx context.Context, fn func(Store) error) error

	Get(ctx context.Context, id int64) (*Chamado, error)
	GetForUpdate(ctx context.Context, id int64) (*Chamado, error)
	List(ctx context.Context, filter Filter) ([]Chamado, error)
	Insert(ctx context.Context, p InsertParams) (*Chamado, error)
	Update(ctx context.Context, id int64, in UpdateInput) (*Chamado, error)
	ApplyStatus(ctx context.Context, id int64, u StatusUpdate) (*Chamado, error)

	CloseOpenEtapas(ctx context.Context, chamadoID int64, at time.Time) error
	InsertEtapa(ctx context.Context, e Etapa) (*Etapa, error)
	ListEtapas(ctx context.Context, chamadoID int64) ([]Etapa, error)
	InsertNotificacoes(ctx context.Context, novas []notificacao.Nova) ([]notificacao.Notificacao, error)

	GetDepartamento(ctx context.Context, id int64) (DepartamentoRef, error)
	CategoriaExists(ctx context.Context, id int64) (bool, error)
	UsuarioExists(ctx context.Context, id int64) (bool, error)
	GetFuncionario(ctx context.Context, id int64) (FuncionarioRef, error)
	ListAtendentes(ctx context.Context, departamentoID int64) ([]int64, error)

	Distribution(ctx context.Context, f StatsFilter) (*Distribution, error)
	Trend(ctx context.Context, f StatsFilter, ate time.Time) ([]TrendPoint, error)
	Stats(ctx context.Context, f StatsFilter) (*Stats, error)
}

// Pusher entrega notificações em tempo real após o commit.
type Pusher interface {
	Push(notificacoes []notificacao.Notificacao)
}

// Service concentra o ciclo de vida dos chamados.
type Service struct {
	repo   Store
	events events.Publisher
	pusher Pusher
	now    func() time.Time
	log    zerolog.Logger
}

// NewService cria serviço. publisher e pusher podem ser nil.
func NewService(store Store, publisher events.Publisher, pusher Pusher) *Service {
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &Service{
		repo:   store,
		events: publisher,
		pusher: pusher,
		now:    util.Now,
		log:    log.With().Str("component", "chamado").Logger(),
	}
}

// Create abre o chamado, registra a etapa de abertura e avisa os atendentes, numa única transação.
func (s *Service) Create(ctx context.Context, p auth.Principal, in CreateInput) (*Chamado, error) {
	in.Titulo = strings.TrimSpace(in.Titulo)
	in.Descricao = strings.TrimSpace(in.Descricao)
	if err := util.Validate(in); err != nil {
		return nil, err
	}

	var solicitante int64
	switch {
	case p.Kind == auth.KindUsuario:
		solicitante = p.ID
	case p.IsStaff():
		if in.UsuarioID == nil {
			return nil, util.Invalid("usuario_id", "obrigatório quando o chamado é aberto por funcionário")
		}
		solicitante = *in.UsuarioID
	default:
		return nil, ErrForbidden
	}

	var (
		created *Chamado
		notifs  []notificacao.Notificacao
	)
	err := s.repo.InTx(ctx, func(st Store) error {
		dep, err := st.GetDepartamento(ctx, in.DepartamentoID)
		if errors.Is(err, repo.ErrNotFound) {
			return ErrDepartamentoNotFound
		}
		if err != nil {
			return err
		}
		if p.IsStaff() && !p.CanAccessCidade(dep.CidadeID) {
			return ErrForbidden
		}

		if in.CategoriaID != nil {
			ok, err := st.CategoriaExists(ctx, *in.CategoriaID)
			if err != nil {
				return err
			}
			if !ok {
				return ErrCategoriaNotFound
			}
		}
		if p.Kind != auth.KindUsuario {
			ok, err := st.UsuarioExists(ctx, solicitante)
			if err != nil {
				return err
			}
			if !ok {
				return ErrUsuarioNotFound
			}
		}

		prioridade := in.Prioridade
		if prioridade == "" {
			prioridade = dep.PrioridadePadrao
		}
		if prioridade == "" {
			prioridade = PrioridadeMedia
		}

		now := s.now()
		ch, err := st.Insert(ctx, InsertParams{
			Titulo:         in.Titulo,
			Descricao:      in.Descricao,
			Prioridade:     prioridade,
			Endereco:       Endereco(in.Endereco),
			DepartamentoID: dep.ID,
			CategoriaID:    in.CategoriaID,
			UsuarioID:      solicitante,
			Abertura:       now,
		})
		if err != nil {
			return err
		}

		if _, err := st.InsertEtapa(ctx, Etapa{
			ChamadoID:  ch.ID,
			Nome:       EtapaAbertura,
			Descricao:  "Chamado registrado no departamento " + dep.Nome,
			DataInicio: now,
		}); err != nil {
			return err
		}

		atendentes, err := st.ListAtendentes(ctx, dep.ID)
		if err != nil {
			return err
		}
		chamadoID := ch.ID
		novas := []notificacao.Nova{
			notificacao.ParaUsuario(solicitante, &chamadoID, fmt.Sprintf("Seu chamado #%d foi registrado.", ch.ID)),
		}
		for _, id := range atendentes {
			novas = append(novas, notificacao.ParaFuncionario(id, &chamadoID, fmt.Sprintf("Novo chamado #%d: %s", ch.ID, ch.Titulo)))
		}
		if notifs, err = st.InsertNotificacoes(ctx, novas); err != nil {
			return err
		}

		created = ch
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterCommit(ctx, events.ChamadoCriado, "", created, notifs)
	return created, nil
}

// scope ajusta o filtro conforme o principal: munícipe vê só os seus, funcionário só a sua cidade.
func scope(p auth.Principal, filter *Filter) error {
	switch {
	case p.Kind == auth.KindUsuario:
		if filter.UsuarioID != nil && *filter.UsuarioID != p.ID {
			return ErrForbidden
		}
		id := p.ID
		filter.UsuarioID = &id
	case p.IsGlobalAdmin():
	case p.IsStaff():
		if p.CidadeID == nil {
			return ErrForbidden
		}
		if filter.CidadeID != nil && *filter.CidadeID != *p.CidadeID {
			return ErrForbidden
		}
		cid := *p.CidadeID
		filter.CidadeID = &cid
	default:
		return ErrForbidden
	}
	return nil
}

func canRead(p auth.Principal, ch Chamado) bool {
	if p.Kind == auth.KindUsuario {
		return ch.UsuarioID == p.ID
	}
	return p.IsStaff() && p.CanAccessCidade(ch.CidadeID)
}

// List lista chamados visíveis ao principal.
func (s *Service) List(ctx context.Context, p auth.Principal, filter Filter) ([]Chamado, error) {
	if err := scope(p, &filter); err != nil {
		return nil, err
	}
	for _, st := range filter.Status {
		if !knownStatus(st) {
			return nil, util.Invalid("status", "status desconhecido: "+st)
		}
	}
	return s.repo.List(ctx, filter)
}

func knownStatus(st string) bool {
	switch st {
	case StatusPendente, StatusAguardandoAtribuicao, StatusEmAndamento, StatusResolvido,
		StatusFinalizado, StatusEncerrado, StatusCancelado:
		return true
	}
	return false
}

// Get busca chamado visível ao principal.
func (s *Service) Get(ctx context.Context, p auth.Principal, id int64) (*Chamado, error) {
	ch, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canRead(p, *ch) {
		return nil, ErrForbidden
	}
	return ch, nil
}

// Etapas lista o histórico do chamado.
func (s *Service) Etapas(ctx context.Context, p auth.Principal, id int64) ([]Etapa, error) {
	if _, err := s.Get(ctx, p, id); err != nil {
		return nil, err
	}
	return s.repo.ListEtapas(ctx, id)
}

// Update altera campos descritivos enquanto o chamado não está em status terminal.
func (s *Service) Update(ctx context.Context, p auth.Principal, id int64, in UpdateInput) (*Chamado, error) {
	if err := util.Validate(in); err != nil {
		return nil, err
	}

	var updated *Chamado
	err := s.repo.InTx(ctx, func(st Store) error {
		ch, err := st.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !canRead(p, *ch) {
			return ErrForbidden
		}
		if ch.Terminal() {
			return fmt.Errorf("%w: chamado em status %q não pode ser alterado", ErrInvalidTransition, ch.Status)
		}
		if in.CategoriaID != nil {
			ok, err := st.CategoriaExists(ctx, *in.CategoriaID)
			if err != nil {
				return err
			}
			if !ok {
				return ErrCategoriaNotFound
			}
		}
		updated, err = st.Update(ctx, id, in)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.afterCommit(ctx, events.ChamadoAtualizado, "", updated, nil)
	return updated, nil
}

// Transition executa uma transição da máquina de estados numa única transação:
// trava a linha, valida, atualiza o chamado, fecha a etapa aberta, registra uma nova etapa e notifica.
func (s *Service) Transition(ctx context.Context, p auth.Principal, id int64, t Transition, in TransitionInput) (*Chamado, error) {
	r, ok := transitions[t]
	if !ok {
		return nil, &TransitionError{Transicao: t}
	}
	if err := util.Validate(in); err != nil {
		return nil, err
	}

	var (
		updated *Chamado
		notifs  []notificacao.Notificacao
	)
	err := s.repo.InTx(ctx, func(st Store) error {
		ch, err := st.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !canRead(p, *ch) {
			return ErrForbidden
		}
		if !CanTransition(ch.Status, t) {
			return &TransitionError{Transicao: t, Status: ch.Status}
		}
		if !MayTransition(p, *ch, t) {
			return ErrForbidden
		}

		now := s.now()
		upd := StatusUpdate{Status: r.to}
		descricao := strings.TrimSpace(in.Observacao)
		var destino *DepartamentoRef

		switch t {
		case AtribuirServidor:
			if in.ServidorID == nil {
				return util.Invalid("servidor_id", "obrigatório")
			}
			f, err := st.GetFuncionario(ctx, *in.ServidorID)
			if errors.Is(err, repo.ErrNotFound) {
				return ErrServidorInvalido
			}
			if err != nil {
				return err
			}
			if !f.Ativo || f.Cargo != repo.CargoServidor || f.CidadeID != ch.CidadeID {
				return ErrServidorInvalido
			}
			upd.ResponsavelID = &f.ID
			if descricao == "" {
				descricao = "Atribuído a " + f.Nome
			}
		case Devolver:
			upd.ClearResponsavel = true
		case Encaminhar:
			if in.DepartamentoID == nil {
				return util.Invalid("departamento_id", "obrigatório")
			}
			dep, err := st.GetDepartamento(ctx, *in.DepartamentoID)
			if errors.Is(err, repo.ErrNotFound) {
				return ErrDepartamentoNotFound
			}
			if err != nil {
				return err
			}
			if dep.CidadeID != ch.CidadeID {
				return util.Invalid("departamento_id", "departamento de outra cidade")
			}
			upd.DepartamentoID = &dep.ID
			upd.ClearResponsavel = true
			destino = &dep
			if descricao == "" {
				descricao = "Encaminhado ao departamento " + dep.Nome
			}
		case Resolver, Encerrar, Cancelar:
			upd.DataFechamento = &now
		case Finalizar:
			if ch.DataFechamento == nil {
				upd.DataFechamento = &now
			}
		}

		if updated, err = st.ApplyStatus(ctx, id, upd); err != nil {
			return err
		}
		if err := st.CloseOpenEtapas(ctx, id, now); err != nil {
			return err
		}
		if _, err := st.InsertEtapa(ctx, Etapa{ChamadoID: id, Nome: r.etapa, Descricao: descricao, DataInicio: now}); err != nil {
			return err
		}

		novas, err := transitionNotices(ctx, st, t, *updated, destino)
		if err != nil {
			return err
		}
		notifs, err = st.InsertNotificacoes(ctx, novas)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.afterCommit(ctx, events.ChamadoTransicao, t, updated, notifs)
	return updated, nil
}

// transitionNotices monta os avisos: solicitante sempre, servidor atribuído e atendentes conforme a transição.
func transitionNotices(ctx context.Context, st Store, t Transition, after Chamado, destino *DepartamentoRef) ([]notificacao.Nova, error) {
	chamadoID := after.ID
	novas := []notificacao.Nova{
		notificacao.ParaUsuario(after.UsuarioID, &chamadoID,
			fmt.Sprintf("Seu chamado #%d mudou para %s.", after.ID, after.Status)),
	}

	switch t {
	case AtribuirServidor:
		novas = append(novas, notificacao.ParaFuncionario(*after.ResponsavelID, &chamadoID,
			fmt.Sprintf("Chamado #%d atribuído a você: %s", after.ID, after.Titulo)))
	case Devolver, Encaminhar, Resolver, Cancelar:
		atendentes, err := st.ListAtendentes(ctx, after.DepartamentoID)
		if err != nil {
			return nil, err
		}
		msg := fmt.Sprintf("Chamado #%d: %s (%s).", after.ID, after.Status, transitionLabel(t))
		if destino != nil {
			msg = fmt.Sprintf("Chamado #%d encaminhado ao departamento %s.", after.ID, destino.Nome)
		}
		for _, id := range atendentes {
			novas = append(novas, notificacao.ParaFuncionario(id, &chamadoID, msg))
		}
	}
	return novas, nil
}

func transitionLabel(t Transition) string {
	switch t {
	case Devolver:
		return "devolvido"
	case Encaminhar:
		return "encaminhado"
	case Resolver:
		return "resolvido"
	case Cancelar:
		return "cancelado"
	}
	return string(t)
}

// afterCommit publica o evento e envia o push. Falhas não desfazem a operação.
func (s *Service) afterCommit(ctx context.Context, tipo string, t Transition, ch *Chamado, notifs []notificacao.Notificacao) {
	ev := events.Event{
		Tipo:           tipo,
		Transicao:      string(t),
		ChamadoID:      ch.ID,
		Status:         ch.Status,
		DepartamentoID: ch.DepartamentoID,
		OcorridoEm:     s.now(),
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		s.log.Warn().Err(err).Int64("chamado", ch.ID).Str("evento", tipo).Msg("falha ao publicar evento")
	}
	if s.pusher != nil && len(notifs) > 0 {
		s.pusher.Push(notifs)
	}
}

func (s *Service) statsScope(p auth.Principal, f *StatsFilter) error {
	if p.IsGlobalAdmin() {
		return nil
	}
	if !p.IsStaff() || p.CidadeID == nil {
		return ErrForbidden
	}
	if f.CidadeID != nil && *f.CidadeID != *p.CidadeID {
		return ErrForbidden
	}
	cid := *p.CidadeID
	f.CidadeID = &cid
	return nil
}

// Distribution conta chamados por status e departamento.
func (s *Service) Distribution(ctx context.Context, p auth.Principal, f StatsFilter) (*Distribution, error) {
	if err := s.statsScope(p, &f); err != nil {
		return nil, err
	}
	return s.repo.Distribution(ctx, f)
}

// Trend devolve a série diária (padrão 30 dias, máximo 365).
func (s *Service) Trend(ctx context.Context, p auth.Principal, f StatsFilter) ([]TrendPoint, error) {
	if err := s.statsScope(p, &f); err != nil {
		return nil, err
	}
	if f.Dias <= 0 {
		f.Dias = 30
	}
	if f.Dias > 365 {
		f.Dias = 365
	}
	return s.repo.Trend(ctx, f, s.now())
}

// Stats resume totais e tempo médio de resolução.
func (s *Service) Stats(ctx context.Context, p auth.Principal, f StatsFilter) (*Stats, error) {
	if err := s.statsScope(p, &f); err != nil {
		return nil, err
	}
	return s.repo.Stats(ctx, f)
}
