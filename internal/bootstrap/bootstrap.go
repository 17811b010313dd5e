// Package bootstrap assembles a ProtocolIQ service graph from configuration.
// The CLI and the worker share it so both see the same store and patterns.
package bootstrap

import (
	"context"
	"time"

	"github.com/turtacn/ProtocolIQ/internal/application/mining"
	"github.com/turtacn/ProtocolIQ/internal/application/preference"
	"github.com/turtacn/ProtocolIQ/internal/application/protocoliq"
	"github.com/turtacn/ProtocolIQ/internal/application/suggestion"
	"github.com/turtacn/ProtocolIQ/internal/config"
	"github.com/turtacn/ProtocolIQ/internal/domain/corpus"
	"github.com/turtacn/ProtocolIQ/internal/domain/pattern"
	"github.com/turtacn/ProtocolIQ/internal/infrastructure/database/redis"
	"github.com/turtacn/ProtocolIQ/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/ProtocolIQ/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ProtocolIQ/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/ProtocolIQ/internal/intelligence/contextdetect"
	"github.com/turtacn/ProtocolIQ/internal/intelligence/embedding"
)

const analysisLockName = "corpus-analysis"

// App is a fully wired service graph.
type App struct {
	Config    *config.Config
	Logger    logging.Logger
	Library   *pattern.Library
	Service   *protocoliq.Service
	Prefs     *preference.Service
	Miner     *mining.Miner
	Store     Store
	Metrics   *prometheus.AppMetrics
	Collector prometheus.MetricsCollector
	// Publisher is set when kafka is enabled.
	Publisher *kafka.ActionPublisher

	health  func(ctx context.Context) error
	closers []func() error
}

type options struct {
	withPublisher bool
	store         Store
}

type Option func(*options)

// WithActionPublisher creates a Kafka producer for action events when
// kafka.enabled is set.
func WithActionPublisher() Option { return func(o *options) { o.withPublisher = true } }

// WithStore bypasses store.backend, mainly for tests.
func WithStore(s Store) Option { return func(o *options) { o.store = s } }

// New wires every component. On error nothing is left open.
func New(ctx context.Context, cfg *config.Config, log logging.Logger, opts ...Option) (_ *App, err error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	app := &App{Config: cfg, Logger: log}
	defer func() {
		if err != nil {
			_ = app.closeResources()
		}
	}()

	if cfg.Metrics.Enabled {
		app.Collector, err = prometheus.NewMetricsCollector(prometheus.CollectorConfig{
			Namespace:       cfg.Metrics.Namespace,
			EnableGoMetrics: true,
		}, log)
		if err != nil {
			return nil, err
		}
		app.Metrics = prometheus.NewAppMetrics(app.Collector)
	}

	var redisClient *redis.Client
	if o.store != nil {
		app.Store = o.store
	} else {
		st, err := openStore(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		app.Store = st.Store
		app.health = st.health
		redisClient = st.redis
		if st.close != nil {
			app.closers = append(app.closers, st.close)
		}
	}

	app.Library = pattern.Default()
	if cfg.Patterns.File != "" {
		if app.Library, err = pattern.LoadFile(cfg.Patterns.File); err != nil {
			return nil, err
		}
		log.Info("pattern library loaded", logging.String("file", cfg.Patterns.File))
	}

	detectorOpts := []contextdetect.Option{
		contextdetect.WithWeights(cfg.Detector.Weights),
		contextdetect.WithLogger(log),
	}
	var sim embedding.Similarity = embedding.NewKeywordOverlap()
	if cfg.Embedding.Enabled {
		emb, err := newEmbedder(cfg, redisClient, log)
		if err != nil {
			return nil, err
		}
		sim = embedding.NewEmbeddingSimilarity(emb)
	}
	detectorOpts = append(detectorOpts, contextdetect.WithSimilarity(sim, cfg.Detector.SemanticTimeout))

	minerOpts := []mining.Option{
		mining.WithConfig(cfg.MinerConfig()),
		mining.WithPatternStore(app.Store),
		mining.WithLogger(log),
	}
	if redisClient != nil {
		locks := redis.NewLockFactory(redisClient, log)
		minerOpts = append(minerOpts, mining.WithLocker(locks.NewMutex(analysisLockName, redis.WithLockTTL(30*time.Minute))))
	}

	prefOpts := []preference.Option{
		preference.WithConfig(cfg.Persistence),
		preference.WithProfileConfig(cfg.Profile),
		preference.WithLogger(log),
	}
	var svcOpts []protocoliq.Option
	if app.Metrics != nil {
		detectorOpts = append(detectorOpts, contextdetect.WithFallbackHook(app.Metrics.DetectorFallback))
		minerOpts = append(minerOpts, mining.WithMetrics(app.Metrics), mining.WithBatchObserver(app.Metrics))
		prefOpts = append(prefOpts, preference.WithMetrics(app.Metrics))
		svcOpts = append(svcOpts, protocoliq.WithMetrics(app.Metrics))
	}
	svcOpts = append(svcOpts, protocoliq.WithLogger(log))

	app.Miner = mining.NewMiner(minerOpts...)
	if err := app.Miner.Load(ctx); err != nil {
		log.Warn("success patterns unavailable", logging.Err(err))
	}
	app.recordPatternCounts()

	generator := suggestion.NewGenerator(app.Library,
		suggestion.WithConfig(cfg.Suggestion),
		suggestion.WithProfileConfig(cfg.Profile),
		suggestion.WithEvidence(app.Miner))

	app.Prefs = preference.NewService(app.Store, prefOpts...)
	app.closers = append(app.closers, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return app.Prefs.Close(ctx)
	})

	detector := contextdetect.New(app.Library, detectorOpts...)
	if err := detector.Warm(ctx); err != nil {
		log.Warn("semantic context signal unavailable", logging.Err(err))
	}
	app.Service = protocoliq.New(detector, generator, app.Prefs, app.Miner, svcOpts...)

	if o.withPublisher && cfg.Kafka.Enabled {
		producer, err := kafka.NewProducer(ProducerConfig(cfg.Kafka), log)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, producer.Close)
		app.Publisher = kafka.NewActionPublisher(producer, cfg.Kafka.ActionTopic)
	}
	return app, nil
}

func newEmbedder(cfg *config.Config, rc *redis.Client, log logging.Logger) (embedding.Embedder, error) {
	httpEmb, err := embedding.NewHTTPEmbedder(cfg.Embedding.HTTP, log)
	if err != nil {
		return nil, err
	}
	if rc == nil {
		return httpEmb, nil
	}
	cache := redis.NewRedisCache(rc, log, redis.WithNamespace("embedding"), redis.WithDefaultTTL(cfg.Embedding.CacheTTL))
	return embedding.NewCachedEmbedder(httpEmb, cache, cfg.Embedding.HTTP.Model, cfg.Embedding.CacheTTL), nil
}

// RunCorpusAnalysis mines src and refreshes the pattern gauges.
func (a *App) RunCorpusAnalysis(ctx context.Context, src corpus.Source, sampleSize int) (*mining.Summary, error) {
	summary, err := a.Service.RunCorpusAnalysis(ctx, src, sampleSize)
	if err != nil {
		return nil, err
	}
	a.recordPatternCounts()
	return summary, nil
}

func (a *App) recordPatternCounts() {
	if a.Metrics == nil {
		return
	}
	counts := map[corpus.PatternType]int{corpus.PatternLanguage: 0, corpus.PatternStructural: 0}
	for _, p := range a.Miner.Patterns() {
		counts[p.Type]++
	}
	for t, n := range counts {
		a.Metrics.SetPatternCount(string(t), n)
	}
}

// Reload applies the settings that are safe to change while running.
func (a *App) Reload(cfg *config.Config) {
	logging.SetLevel(cfg.Log.Level)
	a.Miner.SetRecommendation(cfg.Miner.RecommendThreshold, cfg.Miner.RecommendLimit)
	a.Logger.Info("configuration reloaded", logging.String("log_level", cfg.Log.Level))
}

// HealthCheck pings the store when it supports it.
func (a *App) HealthCheck(ctx context.Context) error {
	if a.health == nil {
		return nil
	}
	err := a.health(ctx)
	if a.Metrics != nil {
		a.Metrics.SetHealth("store", err == nil)
	}
	return err
}

// Close drains pending profile writes, then releases the store and producer.
func (a *App) Close() error {
	return a.closeResources()
}

func (a *App) closeResources() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}

// ProducerConfig maps the kafka section onto producer settings.
func ProducerConfig(k config.KafkaConfig) kafka.ProducerConfig {
	return kafka.ProducerConfig{
		Brokers:      k.Brokers,
		MaxRetries:   k.MaxRetries,
		WriteTimeout: k.WriteTimeout,
		Security:     security(k),
	}
}

// ConsumerConfig maps the kafka section onto consumer settings for the
// action topic.
func ConsumerConfig(k config.KafkaConfig) kafka.ConsumerConfig {
	return kafka.ConsumerConfig{
		Brokers:         k.Brokers,
		GroupID:         k.GroupID,
		Topics:          []string{k.ActionTopic},
		AutoOffsetReset: k.AutoOffsetReset,
		Security:        security(k),
		Retry: kafka.RetryConfig{
			MaxRetries:      k.MaxRetries,
			DeadLetterTopic: k.DeadLetterTopic,
		},
	}
}

func security(k config.KafkaConfig) kafka.SecurityConfig {
	return kafka.SecurityConfig{
		SASLEnabled:   k.SASLEnabled,
		SASLMechanism: k.SASLMechanism,
		SASLUsername:  k.SASLUsername,
		SASLPassword:  k.SASLPassword,
		TLSEnabled:    k.TLSEnabled,
		TLSCertPath:   k.TLSCertPath,
	}
}
