package kafka

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/turtacn/ProtocolIQ/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ProtocolIQ/pkg/errors"
)

var ErrAlreadyRunning = errors.New(errors.ErrCodeConflict, "consumer already running")

// RetryConfig defines retry behavior for failed handlers.
type RetryConfig struct {
	MaxRetries      int
	RetryBackoff    time.Duration
	MaxRetryBackoff time.Duration
	DeadLetterTopic string
}

// ConsumerConfig holds configuration for the Consumer.
type ConsumerConfig struct {
	Brokers         []string
	GroupID         string
	Topics          []string
	AutoOffsetReset string // earliest | latest
	SessionTimeout  time.Duration
	MaxWait         time.Duration
	Security        SecurityConfig
	Retry           RetryConfig
}

// ConsumerStats is a snapshot of consumer counters.
type ConsumerStats struct {
	Consumed     int64
	Processed    int64
	Failed       int64
	Retried      int64
	DeadLettered int64
	Lag          int64
}

// ReaderInterface abstracts kafka.Reader for testing.
type ReaderInterface interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// MessagePublisher is what the consumer needs to dead-letter a message.
type MessagePublisher interface {
	Publish(ctx context.Context, msg *ProducerMessage) error
}

// Consumer dispatches messages to per-topic handlers. Failed handlers are
// retried with exponential backoff; a message that still fails is sent to the
// dead letter topic and committed so that one bad record never blocks the
// partition.
type Consumer struct {
	reader     ReaderInterface
	config     ConsumerConfig
	logger     logging.Logger
	deadLetter MessagePublisher

	mu       sync.RWMutex
	handlers map[string]MessageHandler

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	consumed, processed, failed, retried, deadLettered, lag atomic.Int64
}

func ValidateConsumerConfig(cfg ConsumerConfig) error {
	if len(cfg.Brokers) == 0 {
		return errors.New(errors.ErrCodeValidation, "at least one broker is required")
	}
	if cfg.GroupID == "" {
		return errors.New(errors.ErrCodeValidation, "group id is required")
	}
	if len(cfg.Topics) == 0 {
		return errors.New(errors.ErrCodeValidation, "at least one topic is required")
	}
	return nil
}

func (c ConsumerConfig) withDefaults() ConsumerConfig {
	if c.AutoOffsetReset == "" {
		c.AutoOffsetReset = "earliest"
	}
	if c.SessionTimeout == 0 {
		c.SessionTimeout = 30 * time.Second
	}
	if c.MaxWait == 0 {
		c.MaxWait = time.Second
	}
	if c.Retry.MaxRetries == 0 {
		c.Retry.MaxRetries = 3
	}
	if c.Retry.RetryBackoff == 0 {
		c.Retry.RetryBackoff = time.Second
	}
	if c.Retry.MaxRetryBackoff == 0 {
		c.Retry.MaxRetryBackoff = 30 * time.Second
	}
	return c
}

// NewConsumer creates a group consumer. When a dead letter topic is set, a
// producer sharing the broker settings is created for it.
func NewConsumer(cfg ConsumerConfig, logger logging.Logger) (*Consumer, error) {
	if err := ValidateConsumerConfig(cfg); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	mech, err := cfg.Security.mechanism()
	if err != nil {
		return nil, err
	}
	readerCfg := kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		GroupID:        cfg.GroupID,
		GroupTopics:    cfg.Topics,
		MaxWait:        cfg.MaxWait,
		SessionTimeout: cfg.SessionTimeout,
		StartOffset:    kafka.FirstOffset,
		Dialer: &kafka.Dialer{
			Timeout:       10 * time.Second,
			DualStack:     true,
			TLS:           cfg.Security.tlsConfig(),
			SASLMechanism: mech,
		},
	}
	if cfg.AutoOffsetReset == "latest" {
		readerCfg.StartOffset = kafka.LastOffset
	}

	var dl MessagePublisher
	if cfg.Retry.DeadLetterTopic != "" {
		p, err := NewProducer(ProducerConfig{Brokers: cfg.Brokers, Security: cfg.Security}, logger)
		if err != nil {
			return nil, err
		}
		dl = p
	}
	return NewConsumerWithReader(kafka.NewReader(readerCfg), dl, cfg, logger), nil
}

// NewConsumerWithReader builds a consumer around an existing reader. deadLetter
// may be nil.
func NewConsumerWithReader(r ReaderInterface, deadLetter MessagePublisher, cfg ConsumerConfig, logger logging.Logger) *Consumer {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Consumer{
		reader:     r,
		config:     cfg.withDefaults(),
		logger:     logger.Named("kafka.consumer"),
		deadLetter: deadLetter,
		handlers:   make(map[string]MessageHandler),
	}
}

// Subscribe registers the handler for topic, replacing any previous one.
func (c *Consumer) Subscribe(topic string, handler MessageHandler) {
	c.mu.Lock()
	c.handlers[topic] = handler
	c.mu.Unlock()
	c.logger.Info("subscribed", logging.String("topic", topic))
}

// Start begins consuming in the background until ctx is cancelled or Close
// is called.
func (c *Consumer) Start(ctx context.Context) error {
	if c.running.Swap(true) {
		return ErrAlreadyRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.wg.Add(1)
	go c.consumeLoop(ctx)
	c.logger.Info("consumer started", logging.String("group", c.config.GroupID))
	return nil
}

func (c *Consumer) consumeLoop(ctx context.Context) {
	defer c.wg.Done()
	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("fetch failed", logging.Err(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		c.consumed.Add(1)
		if m.HighWaterMark > 0 {
			c.lag.Store(m.HighWaterMark - m.Offset - 1)
		}

		c.mu.RLock()
		handler, ok := c.handlers[m.Topic]
		c.mu.RUnlock()
		if !ok {
			c.logger.Warn("no handler for topic", logging.String("topic", m.Topic))
		} else if err := c.processMessage(ctx, fromKafkaMessage(m), handler); err != nil {
			c.failed.Add(1)
			if ctx.Err() != nil {
				// Leave uncommitted so the group redelivers it.
				return
			}
		} else {
			c.processed.Add(1)
		}
		if err := c.reader.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
			c.logger.Error("commit failed", logging.Err(err), logging.Int64("offset", m.Offset))
		}
	}
}

// retryable reports whether a handler error may succeed on a later attempt.
func retryable(err error) bool {
	return !errors.IsCode(err, errors.ErrCodeSerialization) &&
		!errors.IsCode(err, errors.ErrCodeValidation)
}

// processMessage runs handler with retries. It returns the last handler error
// once the message has been dead-lettered or dropped.
func (c *Consumer) processMessage(ctx context.Context, msg *Message, handler MessageHandler) error {
	err := handler(ctx, msg)
	if err == nil {
		return nil
	}

	backoff := c.config.Retry.RetryBackoff
	for i := 0; i < c.config.Retry.MaxRetries && retryable(err); i++ {
		c.retried.Add(1)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		if err = handler(ctx, msg); err == nil {
			return nil
		}
		backoff *= 2
		if backoff > c.config.Retry.MaxRetryBackoff {
			backoff = c.config.Retry.MaxRetryBackoff
		}
	}

	c.logger.Error("message processing failed",
		logging.String("topic", msg.Topic),
		logging.Int64("offset", msg.Offset),
		logging.Err(err))

	if c.deadLetter != nil && c.config.Retry.DeadLetterTopic != "" {
		headers := make(map[string]string, len(msg.Headers)+2)
		for k, v := range msg.Headers {
			headers[k] = v
		}
		headers["original_topic"] = msg.Topic
		headers["error_message"] = err.Error()
		dl := &ProducerMessage{
			Topic:   c.config.Retry.DeadLetterTopic,
			Key:     msg.Key,
			Value:   msg.Value,
			Headers: headers,
		}
		if dlErr := c.deadLetter.Publish(ctx, dl); dlErr != nil {
			c.logger.Error("dead letter publish failed", logging.Err(dlErr))
		} else {
			c.deadLettered.Add(1)
		}
	}
	return err
}

func (c *Consumer) Stats() ConsumerStats {
	return ConsumerStats{
		Consumed:     c.consumed.Load(),
		Processed:    c.processed.Load(),
		Failed:       c.failed.Load(),
		Retried:      c.retried.Load(),
		DeadLettered: c.deadLettered.Load(),
		Lag:          c.lag.Load(),
	}
}

// Close stops the loop, waits for the in-flight message and closes the reader.
func (c *Consumer) Close() error {
	if c.running.Swap(false) && c.cancel != nil {
		c.cancel()
		c.wg.Wait()
	}
	if closer, ok := c.deadLetter.(interface{ Close() error }); ok {
		_ = closer.Close()
	}
	if err := c.reader.Close(); err != nil {
		return errors.Wrap(err, errors.CodeMessagingFailure, "failed to close reader")
	}
	return nil
}
