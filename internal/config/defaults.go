package config

import (
	"time"

	"github.com/turtacn/ProtocolIQ/internal/application/mining"
	"github.com/turtacn/ProtocolIQ/internal/application/preference"
	"github.com/turtacn/ProtocolIQ/internal/application/suggestion"
	"github.com/turtacn/ProtocolIQ/internal/domain/corpus"
	"github.com/turtacn/ProtocolIQ/internal/domain/profile"
	"github.com/turtacn/ProtocolIQ/internal/intelligence/contextdetect"
)

const (
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultSemanticTimeout   = 2 * time.Second
	DefaultEmbeddingCacheTTL = 24 * time.Hour

	DefaultStoreBackend = StoreSQLite
	DefaultMaxEvents    = 1000

	DefaultRedisAddr = "localhost:6379"

	DefaultSQLitePath        = "protocoliq.db"
	DefaultSQLiteBusyTimeout = 5 * time.Second

	DefaultDBHost           = "localhost"
	DefaultDBPort           = 5432
	DefaultDBName           = "protocoliq"
	DefaultDBMaxConns       = 10
	DefaultStatementTimeout = 30 * time.Second

	DefaultKafkaBroker       = "localhost:9092"
	DefaultKafkaGroupID      = "protocoliq-worker"
	DefaultActionTopic       = "protocoliq.user.action"
	DefaultDeadLetterTopic   = "protocoliq.dead_letter"
	DefaultKafkaWriteTimeout = 10 * time.Second

	DefaultCorpusSource = SourceFilesystem
	DefaultCorpusDir    = "corpus"

	DefaultMetricsAddr      = ":9091"
	DefaultMetricsPath      = "/metrics"
	DefaultMetricsNamespace = "protocoliq"
)

// ApplyDefaults fills every zero-value field in cfg with its default. Values
// already set by the caller are left unchanged. Whole weight blocks are
// defaulted together: a block left entirely unset takes the built-in values.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}

	if cfg.Detector.Weights == (contextdetect.Weights{}) {
		cfg.Detector.Weights = contextdetect.DefaultWeights()
	}
	if cfg.Detector.SemanticTimeout == 0 {
		cfg.Detector.SemanticTimeout = DefaultSemanticTimeout
	}
	if cfg.Embedding.CacheTTL == 0 {
		cfg.Embedding.CacheTTL = DefaultEmbeddingCacheTTL
	}

	sd := suggestion.DefaultConfig()
	if cfg.Suggestion.Weights == (suggestion.Weights{}) {
		cfg.Suggestion.Weights = sd.Weights
	}
	if cfg.Suggestion.MaxResults == 0 {
		cfg.Suggestion.MaxResults = sd.MaxResults
	}
	if cfg.Suggestion.EvidenceThreshold == 0 {
		cfg.Suggestion.EvidenceThreshold = sd.EvidenceThreshold
	}

	if cfg.Profile == (profile.Config{}) {
		cfg.Profile = profile.DefaultConfig()
	}

	pd := preference.DefaultConfig()
	if cfg.Persistence.Stripes == 0 {
		cfg.Persistence.Stripes = pd.Stripes
	}
	if cfg.Persistence.QueueSize == 0 {
		cfg.Persistence.QueueSize = pd.QueueSize
	}
	if cfg.Persistence.Workers == 0 {
		cfg.Persistence.Workers = pd.Workers
	}
	if cfg.Persistence.MaxRetries == 0 {
		cfg.Persistence.MaxRetries = pd.MaxRetries
	}
	if cfg.Persistence.RetryBackoff == 0 {
		cfg.Persistence.RetryBackoff = pd.RetryBackoff
	}
	if cfg.Persistence.WriteTimeout == 0 {
		cfg.Persistence.WriteTimeout = pd.WriteTimeout
	}

	if cfg.Scoring == (corpus.ScoreWeights{}) {
		cfg.Scoring = corpus.DefaultScoreWeights()
	}
	md := mining.DefaultConfig()
	if cfg.Miner.BatchSize == 0 {
		cfg.Miner.BatchSize = md.BatchSize
	}
	if cfg.Miner.MaxConcurrency == 0 {
		cfg.Miner.MaxConcurrency = md.MaxConcurrency
	}
	if cfg.Miner.ItemTimeout == 0 {
		cfg.Miner.ItemTimeout = md.ItemTimeout
	}
	if cfg.Miner.InitialConfidence == 0 {
		cfg.Miner.InitialConfidence = md.InitialConfidence
	}
	if cfg.Miner.ConfidenceStep == 0 {
		cfg.Miner.ConfidenceStep = md.ConfidenceStep
	}
	if cfg.Miner.MaxConfidence == 0 {
		cfg.Miner.MaxConfidence = md.MaxConfidence
	}
	if cfg.Miner.MaxExamples == 0 {
		cfg.Miner.MaxExamples = md.MaxExamples
	}
	if cfg.Miner.RecommendThreshold == 0 {
		cfg.Miner.RecommendThreshold = md.RecommendThreshold
	}
	if cfg.Miner.RecommendLimit == 0 {
		cfg.Miner.RecommendLimit = md.RecommendLimit
	}

	if cfg.Store.Backend == "" {
		cfg.Store.Backend = DefaultStoreBackend
	}
	if cfg.Store.MaxEvents == 0 {
		cfg.Store.MaxEvents = DefaultMaxEvents
	}

	if cfg.Redis.Addr == "" && len(cfg.Redis.ClusterAddrs) == 0 && len(cfg.Redis.SentinelAddrs) == 0 {
		cfg.Redis.Addr = DefaultRedisAddr
	}

	if cfg.SQLite.Path == "" {
		cfg.SQLite.Path = DefaultSQLitePath
	}
	if cfg.SQLite.BusyTimeout == 0 {
		cfg.SQLite.BusyTimeout = DefaultSQLiteBusyTimeout
	}

	if cfg.Postgres.Host == "" {
		cfg.Postgres.Host = DefaultDBHost
	}
	if cfg.Postgres.Port == 0 {
		cfg.Postgres.Port = DefaultDBPort
	}
	if cfg.Postgres.DBName == "" {
		cfg.Postgres.DBName = DefaultDBName
	}
	if cfg.Postgres.MaxConns == 0 {
		cfg.Postgres.MaxConns = DefaultDBMaxConns
	}
	if cfg.Postgres.SSLMode == "" {
		cfg.Postgres.SSLMode = "disable"
	}
	if cfg.Postgres.StatementTimeout == 0 {
		cfg.Postgres.StatementTimeout = DefaultStatementTimeout
	}

	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{DefaultKafkaBroker}
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = DefaultKafkaGroupID
	}
	if cfg.Kafka.ActionTopic == "" {
		cfg.Kafka.ActionTopic = DefaultActionTopic
	}
	if cfg.Kafka.DeadLetterTopic == "" {
		cfg.Kafka.DeadLetterTopic = DefaultDeadLetterTopic
	}
	if cfg.Kafka.AutoOffsetReset == "" {
		cfg.Kafka.AutoOffsetReset = "earliest"
	}
	if cfg.Kafka.MaxRetries == 0 {
		cfg.Kafka.MaxRetries = 3
	}
	if cfg.Kafka.WriteTimeout == 0 {
		cfg.Kafka.WriteTimeout = DefaultKafkaWriteTimeout
	}

	if cfg.Corpus.Source == "" {
		cfg.Corpus.Source = DefaultCorpusSource
	}
	if cfg.Corpus.Dir == "" {
		cfg.Corpus.Dir = DefaultCorpusDir
	}

	if cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = DefaultMetricsAddr
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}
}
