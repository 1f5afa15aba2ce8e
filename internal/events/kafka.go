package events

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher publica eventos num tópico, com a chave igual ao id do chamado.
type KafkaPublisher struct {
	writer messageWriter
}

// NewKafkaPublisher cria writer síncrono balanceado por hash da chave.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{writer: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		WriteTimeout:           5 * time.Second,
	}}
}

// Publish grava o evento no tópico.
func (p *KafkaPublisher) Publish(ctx context.Context, ev Event) error {
	body, err := ev.encode()
	if err != nil {
		return err
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.Key()),
		Value: body,
		Time:  ev.OcorridoEm,
		Headers: []kafka.Header{
			{Key: "tipo", Value: []byte(ev.Tipo)},
		},
	})
	if err != nil {
		return fmt.Errorf("events: kafka write: %w", err)
	}
	return nil
}

// Close libera o writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
