package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/turtacn/ProtocolIQ/pkg/errors"
)

// mockKafkaReader serves queued messages, then blocks until ctx is done.
type mockKafkaReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []kafka.Message
}

func (m *mockKafkaReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	m.mu.Lock()
	if len(m.queue) > 0 {
		msg := m.queue[0]
		m.queue = m.queue[1:]
		m.mu.Unlock()
		return msg, nil
	}
	m.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (m *mockKafkaReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.committed = append(m.committed, msgs...)
	return nil
}

func (m *mockKafkaReader) Close() error { return nil }

func (m *mockKafkaReader) commits() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.committed)
}

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []*ProducerMessage
	err  error
}

func (r *recordingPublisher) Publish(_ context.Context, msg *ProducerMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.msgs = append(r.msgs, msg)
	return nil
}

func newTestConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		Brokers: []string{"localhost:9092"},
		GroupID: "g",
		Topics:  []string{"t"},
		Retry: RetryConfig{
			MaxRetries:      2,
			RetryBackoff:    time.Millisecond,
			MaxRetryBackoff: 2 * time.Millisecond,
			DeadLetterTopic: "dlq",
		},
	}
}

func TestValidateConsumerConfig(t *testing.T) {
	assert.NoError(t, ValidateConsumerConfig(newTestConsumerConfig()))

	cfg := newTestConsumerConfig()
	cfg.Brokers = nil
	assert.Error(t, ValidateConsumerConfig(cfg))

	cfg = newTestConsumerConfig()
	cfg.GroupID = ""
	assert.Error(t, ValidateConsumerConfig(cfg))
}

func TestStart_AlreadyRunning(t *testing.T) {
	c := NewConsumerWithReader(&mockKafkaReader{}, nil, newTestConsumerConfig(), nil)
	require.NoError(t, c.Start(context.Background()))
	defer c.Close()
	assert.ErrorIs(t, c.Start(context.Background()), ErrAlreadyRunning)
}

func TestConsumeLoop_DispatchesAndCommits(t *testing.T) {
	reader := &mockKafkaReader{queue: []kafka.Message{
		{Topic: "t", Offset: 0, Value: []byte("a"), Headers: []kafka.Header{{Key: "h", Value: []byte("v")}}},
		{Topic: "other", Offset: 1, Value: []byte("b")},
	}}
	c := NewConsumerWithReader(reader, nil, newTestConsumerConfig(), nil)

	got := make(chan *Message, 1)
	c.Subscribe("t", func(_ context.Context, msg *Message) error {
		got <- msg
		return nil
	})
	require.NoError(t, c.Start(context.Background()))

	select {
	case msg := <-got:
		assert.Equal(t, []byte("a"), msg.Value)
		assert.Equal(t, "v", msg.Headers["h"])
	case <-time.After(time.Second):
		t.Fatal("handler not called")
	}
	// Unhandled topics are committed too.
	require.Eventually(t, func() bool { return reader.commits() == 2 }, time.Second, 5*time.Millisecond)
	require.NoError(t, c.Close())

	st := c.Stats()
	assert.Equal(t, int64(2), st.Consumed)
	assert.Equal(t, int64(1), st.Processed)
}

func TestProcessMessage_RetrySuccess(t *testing.T) {
	c := NewConsumerWithReader(&mockKafkaReader{}, nil, newTestConsumerConfig(), nil)
	calls := 0
	err := c.processMessage(context.Background(), &Message{Topic: "t"}, func(context.Context, *Message) error {
		calls++
		if calls < 2 {
			return errors.New("transient")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, int64(1), c.Stats().Retried)
}

func TestProcessMessage_RetryExhaustedGoesToDeadLetter(t *testing.T) {
	dl := &recordingPublisher{}
	c := NewConsumerWithReader(&mockKafkaReader{}, dl, newTestConsumerConfig(), nil)
	calls := 0
	err := c.processMessage(context.Background(),
		&Message{Topic: "t", Key: []byte("k"), Value: []byte("v"), Headers: map[string]string{"a": "b"}},
		func(context.Context, *Message) error {
			calls++
			return errors.New("boom")
		})
	assert.Error(t, err)
	assert.Equal(t, 3, calls)
	require.Len(t, dl.msgs, 1)
	assert.Equal(t, "dlq", dl.msgs[0].Topic)
	assert.Equal(t, "t", dl.msgs[0].Headers["original_topic"])
	assert.Equal(t, "boom", dl.msgs[0].Headers["error_message"])
	assert.Equal(t, "b", dl.msgs[0].Headers["a"])
	assert.Equal(t, int64(1), c.Stats().DeadLettered)
}

func TestProcessMessage_PermanentErrorSkipsRetry(t *testing.T) {
	dl := &recordingPublisher{}
	c := NewConsumerWithReader(&mockKafkaReader{}, dl, newTestConsumerConfig(), nil)
	calls := 0
	err := c.processMessage(context.Background(), &Message{Topic: "t"}, func(context.Context, *Message) error {
		calls++
		return apperrors.New(apperrors.ErrCodeSerialization, "bad json")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Len(t, dl.msgs, 1)
}
