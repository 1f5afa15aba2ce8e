package chamado

import (
	"github.com/minhacidade/backend/internal/auth"
)

// Transition nomeia uma transição de status exposta na API.
type Transition string

const (
	AtribuirServidor Transition = "atribuir-servidor"
	Devolver         Transition = "devolver"
	Encaminhar       Transition = "encaminhar"
	Resolver         Transition = "resolver"
	Finalizar        Transition = "finalizar"
	Encerrar         Transition = "encerrar"
	Cancelar         Transition = "cancelar"
)

// actor é um papel relativo ao chamado.
type actor int

const (
	actorAdmin actor = iota
	actorAtendente
	actorResponsavel
	actorSolicitante
)

type rule struct {
	from   []string
	to     string
	etapa  string
	actors []actor
}

// transitions é a máquina de estados: origens, destino, etapa registrada e papéis autorizados.
var transitions = map[Transition]rule{
	AtribuirServidor: {
		from:   []string{StatusPendente, StatusAguardandoAtribuicao},
		to:     StatusEmAndamento,
		etapa:  "Atribuição",
		actors: []actor{actorAtendente, actorAdmin},
	},
	Devolver: {
		from:   []string{StatusEmAndamento},
		to:     StatusAguardandoAtribuicao,
		etapa:  "Devolução",
		actors: []actor{actorResponsavel, actorAtendente, actorAdmin},
	},
	Encaminhar: {
		from:   []string{StatusPendente, StatusAguardandoAtribuicao, StatusEmAndamento},
		to:     StatusPendente,
		etapa:  "Encaminhamento",
		actors: []actor{actorAtendente, actorAdmin},
	},
	Resolver: {
		from:   []string{StatusEmAndamento},
		to:     StatusResolvido,
		etapa:  "Resolução",
		actors: []actor{actorResponsavel, actorAdmin},
	},
	Finalizar: {
		from:   []string{StatusResolvido},
		to:     StatusFinalizado,
		etapa:  "Finalização",
		actors: []actor{actorSolicitante, actorAtendente, actorAdmin},
	},
	Encerrar: {
		from:   []string{StatusPendente, StatusAguardandoAtribuicao, StatusEmAndamento, StatusResolvido},
		to:     StatusEncerrado,
		etapa:  "Encerramento",
		actors: []actor{actorAtendente, actorAdmin},
	},
	Cancelar: {
		from:   []string{StatusPendente, StatusAguardandoAtribuicao, StatusEmAndamento},
		to:     StatusCancelado,
		etapa:  "Cancelamento",
		actors: []actor{actorSolicitante, actorAtendente, actorAdmin},
	},
}

// Transitions lista as transições conhecidas, na ordem das rotas.
func Transitions() []Transition {
	return []Transition{AtribuirServidor, Devolver, Encaminhar, Resolver, Finalizar, Encerrar, Cancelar}
}

// Valid indica se a transição existe.
func (t Transition) Valid() bool {
	_, ok := transitions[t]
	return ok
}

// Target devolve o status de destino.
func (t Transition) Target() string {
	return transitions[t].to
}

// CanTransition indica se a transição é legal a partir do status.
func CanTransition(status string, t Transition) bool {
	r, ok := transitions[t]
	if !ok {
		return false
	}
	for _, from := range r.from {
		if from == status {
			return true
		}
	}
	return false
}

// Allowed lista as transições legais a partir do status.
func Allowed(status string) []Transition {
	var out []Transition
	for _, t := range Transitions() {
		if CanTransition(status, t) {
			out = append(out, t)
		}
	}
	return out
}

func (a actor) matches(p auth.Principal, ch Chamado) bool {
	switch a {
	case actorAdmin:
		return p.IsAdmin() && p.CanAccessCidade(ch.CidadeID)
	case actorAtendente:
		return p.Kind == auth.KindFuncionario && p.Role == auth.RoleAtendente && p.CanAccessCidade(ch.CidadeID)
	case actorResponsavel:
		return p.Kind == auth.KindFuncionario && ch.ResponsavelID != nil && *ch.ResponsavelID == p.ID
	case actorSolicitante:
		return p.Is(auth.KindUsuario, ch.UsuarioID)
	}
	return false
}

// MayTransition indica se o principal pode disparar a transição no chamado.
func MayTransition(p auth.Principal, ch Chamado, t Transition) bool {
	r, ok := transitions[t]
	if !ok {
		return false
	}
	for _, a := range r.actors {
		if a.matches(p, ch) {
			return true
		}
	}
	return false
}
