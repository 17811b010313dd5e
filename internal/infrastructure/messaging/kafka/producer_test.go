package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/turtacn/ProtocolIQ/pkg/errors"
)

type mockKafkaWriter struct {
	writeFunc func(ctx context.Context, msgs ...kafka.Message) error
	closed    int
}

func (m *mockKafkaWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if m.writeFunc != nil {
		return m.writeFunc(ctx, msgs...)
	}
	return nil
}

func (m *mockKafkaWriter) Close() error {
	m.closed++
	return nil
}

func newTestProducer(w WriterInterface) *Producer {
	return NewProducerWithWriter(w, ProducerConfig{Brokers: []string{"localhost:9092"}, MaxMessageBytes: 64}, nil)
}

func TestValidateProducerConfig(t *testing.T) {
	assert.NoError(t, ValidateProducerConfig(ProducerConfig{Brokers: []string{"b:9092"}}))
	assert.Error(t, ValidateProducerConfig(ProducerConfig{}))
	assert.Error(t, ValidateProducerConfig(ProducerConfig{Brokers: []string{"b:9092"}, MaxRetries: -1}))
}

func TestNewProducer_RejectsUnknownMechanism(t *testing.T) {
	_, err := NewProducer(ProducerConfig{
		Brokers:  []string{"b:9092"},
		Security: SecurityConfig{SASLEnabled: true, SASLMechanism: "GSSAPI"},
	}, nil)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidation))
}

func TestPublish_Success(t *testing.T) {
	var captured []kafka.Message
	w := &mockKafkaWriter{writeFunc: func(_ context.Context, msgs ...kafka.Message) error {
		captured = append(captured, msgs...)
		return nil
	}}
	p := newTestProducer(w)

	err := p.Publish(context.Background(), &ProducerMessage{
		Topic:   "t",
		Key:     []byte("u1"),
		Value:   []byte("payload"),
		Headers: map[string]string{"event_type": "x"},
	})
	require.NoError(t, err)
	require.Len(t, captured, 1)
	assert.Equal(t, "t", captured[0].Topic)
	assert.Equal(t, []byte("u1"), captured[0].Key)
	require.Len(t, captured[0].Headers, 1)
	assert.Equal(t, "event_type", captured[0].Headers[0].Key)
	assert.Equal(t, int64(1), p.Stats().MessagesSent)
	assert.Equal(t, int64(7), p.Stats().BytesSent)
}

func TestPublish_Validation(t *testing.T) {
	p := newTestProducer(&mockKafkaWriter{})
	ctx := context.Background()

	assert.Error(t, p.Publish(ctx, &ProducerMessage{Value: []byte("v")}))
	assert.Error(t, p.Publish(ctx, &ProducerMessage{Topic: "t"}))
	big := make([]byte, 65)
	assert.Error(t, p.Publish(ctx, &ProducerMessage{Topic: "t", Value: big}))
}

func TestPublish_Failure(t *testing.T) {
	p := newTestProducer(&mockKafkaWriter{writeFunc: func(context.Context, ...kafka.Message) error {
		return errors.New("broker down")
	}})
	err := p.Publish(context.Background(), &ProducerMessage{Topic: "t", Value: []byte("v")})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeMessagingFailure))
	assert.Equal(t, int64(1), p.Stats().MessagesFailed)
}

func TestClose_Idempotent(t *testing.T) {
	w := &mockKafkaWriter{}
	p := newTestProducer(w)
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	assert.Equal(t, 1, w.closed)

	err := p.Publish(context.Background(), &ProducerMessage{Topic: "t", Value: []byte("v")})
	assert.ErrorIs(t, err, ErrProducerClosed)
}
