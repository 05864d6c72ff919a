package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TimothyStephens/magi/internal/config"
	pkgerrors "github.com/TimothyStephens/magi/pkg/errors"
)

type mockKafkaWriter struct {
	writeFunc func(ctx context.Context, msgs ...kafka.Message) error
	closed    int
	written   []kafka.Message
}

func (m *mockKafkaWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if m.writeFunc != nil {
		if err := m.writeFunc(ctx, msgs...); err != nil {
			return err
		}
	}
	m.written = append(m.written, msgs...)
	return nil
}

func (m *mockKafkaWriter) Close() error {
	m.closed++
	return nil
}

func TestNewProducer_RequiresBrokers(t *testing.T) {
	_, err := NewProducer(config.KafkaConfig{}, nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeConfig))

	p, err := NewProducer(config.KafkaConfig{Brokers: []string{"localhost:9092"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, TopicRunCompleted, p.Topic())
}

func TestPublishRunCompleted(t *testing.T) {
	w := &mockKafkaWriter{}
	p := NewProducerWithWriter(w, "", nil)

	started := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	payload := RunCompletedPayload{
		RunID:      "run-1",
		Status:     RunSucceeded,
		StartedAt:  started,
		FinishedAt: started.Add(time.Minute),
		Compounds:  3,
		Links:      7,
		Records:    12,
		Artifacts:  []string{"runs/run-1/magi_results.csv"},
	}
	require.NoError(t, p.PublishRunCompleted(context.Background(), payload))

	require.Len(t, w.written, 1)
	msg := w.written[0]
	assert.Equal(t, TopicRunCompleted, msg.Topic)
	assert.Equal(t, "run-1", string(msg.Key))
	assert.Equal(t, "event_type", msg.Headers[0].Key)
	assert.Equal(t, EventTypeRunCompleted, string(msg.Headers[0].Value))

	var env EventEnvelope
	require.NoError(t, json.Unmarshal(msg.Value, &env))
	assert.NotEmpty(t, env.EventID)
	assert.Equal(t, EventSource, env.Source)
	assert.Equal(t, "run-1", env.Metadata["run_id"])

	var got RunCompletedPayload
	require.NoError(t, env.DecodePayload(&got))
	assert.Equal(t, payload, got)
	assert.True(t, strings.Contains(string(env.Payload), `"compound_reaction_links":7`))
}

func TestPublish_WriterError(t *testing.T) {
	w := &mockKafkaWriter{writeFunc: func(ctx context.Context, msgs ...kafka.Message) error {
		return errors.New("broker down")
	}}
	p := NewProducerWithWriter(w, "custom", nil)

	err := p.PublishRunCompleted(context.Background(), RunCompletedPayload{RunID: "r", Status: RunFailed})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeExternalService))
	assert.Empty(t, w.written)
}

func TestPublish_TooLarge(t *testing.T) {
	w := &mockKafkaWriter{}
	p := NewProducerWithWriter(w, "", nil)

	big := make([]string, 0, 1)
	big = append(big, strings.Repeat("x", maxMessageBytes))
	err := p.PublishRunCompleted(context.Background(), RunCompletedPayload{RunID: "r", Artifacts: big})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeValidation))
}

func TestClose(t *testing.T) {
	w := &mockKafkaWriter{}
	p := NewProducerWithWriter(w, "", nil)

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	assert.Equal(t, 1, w.closed)

	err := p.PublishRunCompleted(context.Background(), RunCompletedPayload{RunID: "r"})
	assert.Equal(t, ErrProducerClosed, err)
}

func TestDecodePayload_Invalid(t *testing.T) {
	env := &EventEnvelope{Payload: json.RawMessage(`[1,2]`)}
	var p RunCompletedPayload
	assert.True(t, pkgerrors.IsCode(env.DecodePayload(&p), pkgerrors.ErrCodeSerialization))
}
