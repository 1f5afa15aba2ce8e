package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/minhacidade/backend/internal/config"
)

// Tipos de evento emitidos pelo ciclo de vida dos chamados.
const (
	ChamadoCriado     = "chamado.criado"
	ChamadoAtualizado = "chamado.atualizado"
	ChamadoTransicao  = "chamado.transicao"
)

// Event é a mensagem publicada no broker.
type Event struct {
	Tipo           string    `json:"tipo"`
	Transicao      string    `json:"transicao,omitempty"`
	ChamadoID      int64     `json:"chamado_id"`
	Status         string    `json:"status"`
	DepartamentoID int64     `json:"departamento_id"`
	OcorridoEm     time.Time `json:"ocorrido_em"`
}

// Key identifica a partição/roteamento do evento.
func (e Event) Key() string {
	return strconv.FormatInt(e.ChamadoID, 10)
}

func (e Event) encode() ([]byte, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("events: encode: %w", err)
	}
	return body, nil
}

// Publisher entrega eventos a um broker.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// Noop descarta eventos.
type Noop struct{}

// Publish não faz nada.
func (Noop) Publish(context.Context, Event) error { return nil }

// Close não faz nada.
func (Noop) Close() error { return nil }

// New escolhe o publisher conforme EVENTS_DRIVER.
func New(cfg config.EventsConfig, logger zerolog.Logger) (Publisher, error) {
	switch cfg.Driver {
	case "rabbitmq":
		p, err := NewRabbitPublisher(cfg.RabbitURL, cfg.RabbitQueue)
		if err != nil {
			return nil, fmt.Errorf("events: rabbitmq: %w", err)
		}
		logger.Info().Str("queue", cfg.RabbitQueue).Msg("events: publicando no rabbitmq")
		return p, nil
	case "kafka":
		logger.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("events: publicando no kafka")
		return NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic), nil
	default:
		return Noop{}, nil
	}
}
