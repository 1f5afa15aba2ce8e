package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minhacidade/backend/internal/config"
)

type recordingWriter struct {
	msgs   []kafka.Message
	closed bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaPublisherKeysByChamado(t *testing.T) {
	w := &recordingWriter{}
	p := &KafkaPublisher{writer: w}

	ev := Event{
		Tipo:           ChamadoTransicao,
		Transicao:      "resolver",
		ChamadoID:      42,
		Status:         "Resolvido",
		DepartamentoID: 7,
		OcorridoEm:     time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, p.Publish(context.Background(), ev))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "42", string(msg.Key))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "chamado.transicao", decoded["tipo"])
	assert.Equal(t, "Resolvido", decoded["status"])
	assert.EqualValues(t, 42, decoded["chamado_id"])

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestNewDefaultsToNoop(t *testing.T) {
	p, err := New(config.EventsConfig{Driver: "none"}, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, Noop{}, p)
	assert.NoError(t, p.Publish(context.Background(), Event{}))
}
