// Package config defines the configuration structures for ProtocolIQ. No I/O
// or parsing logic lives here, only plain data types and validation.
package config

import (
	"fmt"
	"time"

	"github.com/turtacn/ProtocolIQ/internal/application/mining"
	"github.com/turtacn/ProtocolIQ/internal/application/preference"
	"github.com/turtacn/ProtocolIQ/internal/application/suggestion"
	"github.com/turtacn/ProtocolIQ/internal/domain/corpus"
	"github.com/turtacn/ProtocolIQ/internal/domain/profile"
	"github.com/turtacn/ProtocolIQ/internal/infrastructure/database/redis"
	"github.com/turtacn/ProtocolIQ/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ProtocolIQ/internal/intelligence/contextdetect"
	"github.com/turtacn/ProtocolIQ/internal/intelligence/embedding"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

// Corpus sources.
const (
	SourceFilesystem = "fs"
	SourceMinIO      = "minio"
)

// PatternsConfig points at an optional pattern library override.
type PatternsConfig struct {
	File string `mapstructure:"file"`
}

// DetectorConfig tunes context detection.
type DetectorConfig struct {
	Weights         contextdetect.Weights `mapstructure:"weights"`
	SemanticTimeout time.Duration         `mapstructure:"semantic_timeout"`
}

// EmbeddingConfig enables the optional semantic similarity signal.
type EmbeddingConfig struct {
	Enabled  bool                 `mapstructure:"enabled"`
	HTTP     embedding.HTTPConfig `mapstructure:"http"`
	CacheTTL time.Duration        `mapstructure:"cache_ttl"`
}

// StoreConfig selects where profiles and success patterns live.
type StoreConfig struct {
	Backend   string `mapstructure:"backend"` // memory | redis | sqlite | postgres
	MaxEvents int    `mapstructure:"max_events"`
}

// SQLiteConfig holds embedded database parameters.
type SQLiteConfig struct {
	Path        string        `mapstructure:"path"`
	BusyTimeout time.Duration `mapstructure:"busy_timeout"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host             string        `mapstructure:"host"`
	Port             int           `mapstructure:"port"`
	User             string        `mapstructure:"user"`
	Password         string        `mapstructure:"password"`
	DBName           string        `mapstructure:"db_name"`
	SSLMode          string        `mapstructure:"ssl_mode"`
	MaxConns         int           `mapstructure:"max_conns"`
	MinConns         int           `mapstructure:"min_conns"`
	ConnMaxLifetime  time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime  time.Duration `mapstructure:"conn_max_idle_time"`
	StatementTimeout time.Duration `mapstructure:"statement_timeout"`
	AutoMigrate      bool          `mapstructure:"auto_migrate"`
}

// KafkaConfig holds action stream parameters.
type KafkaConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Brokers         []string      `mapstructure:"brokers"`
	GroupID         string        `mapstructure:"group_id"`
	ActionTopic     string        `mapstructure:"action_topic"`
	DeadLetterTopic string        `mapstructure:"dead_letter_topic"`
	AutoOffsetReset string        `mapstructure:"auto_offset_reset"` // earliest | latest
	MaxRetries      int           `mapstructure:"max_retries"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	SASLEnabled     bool          `mapstructure:"sasl_enabled"`
	SASLMechanism   string        `mapstructure:"sasl_mechanism"`
	SASLUsername    string        `mapstructure:"sasl_username"`
	SASLPassword    string        `mapstructure:"sasl_password"`
	TLSEnabled      bool          `mapstructure:"tls_enabled"`
	TLSCertPath     string        `mapstructure:"tls_cert_path"`
}

// MinIOConfig holds object storage parameters for the corpus.
type MinIOConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// CorpusConfig selects the corpus source.
type CorpusConfig struct {
	Source string `mapstructure:"source"` // fs | minio
	Dir    string `mapstructure:"dir"`
	Prefix string `mapstructure:"prefix"`
}

// MetricsConfig controls the Prometheus exporter.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Addr      string `mapstructure:"addr"`
	Path      string `mapstructure:"path"`
	Namespace string `mapstructure:"namespace"`
}

// Config is the root configuration.
type Config struct {
	Log         logging.LogConfig   `mapstructure:"log"`
	Patterns    PatternsConfig      `mapstructure:"patterns"`
	Detector    DetectorConfig      `mapstructure:"detector"`
	Embedding   EmbeddingConfig     `mapstructure:"embedding"`
	Suggestion  suggestion.Config   `mapstructure:"suggestion"`
	Profile     profile.Config      `mapstructure:"profile"`
	Persistence preference.Config   `mapstructure:"persistence"`
	Scoring     corpus.ScoreWeights `mapstructure:"scoring"`
	Miner       mining.Config       `mapstructure:"miner"`
	Store       StoreConfig         `mapstructure:"store"`
	Redis       redis.RedisConfig   `mapstructure:"redis"`
	SQLite      SQLiteConfig        `mapstructure:"sqlite"`
	Postgres    PostgresConfig      `mapstructure:"postgres"`
	Kafka       KafkaConfig         `mapstructure:"kafka"`
	MinIO       MinIOConfig         `mapstructure:"minio"`
	Corpus      CorpusConfig        `mapstructure:"corpus"`
	Metrics     MetricsConfig       `mapstructure:"metrics"`
}

// MinerConfig returns the miner settings with the scoring weights applied.
func (c *Config) MinerConfig() mining.Config {
	m := c.Miner
	m.Weights = c.Scoring
	return m
}

func inUnit(name string, v float64) error {
	if v < 0 || v > 1 {
		return fmt.Errorf("config: %s %.3f is out of range [0, 1]", name, v)
	}
	return nil
}

// Validate performs semantic validation of the fully-populated Config. Any
// error is fatal at startup.
func (c *Config) Validate() error {
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|console", c.Log.Format)
	}

	w := c.Suggestion.Weights
	for name, v := range map[string]float64{
		"suggestion.weights.rule":                    w.Rule,
		"suggestion.weights.relevance":               w.Relevance,
		"suggestion.weights.personalization":         w.Personalization,
		"suggestion.weights.default_personalization": w.DefaultPersonalization,
		"suggestion.weights.avoided_penalty":         w.AvoidedPenalty,
		"suggestion.weights.floor":                   w.Floor,
		"scoring.approval":                           c.Scoring.Approval,
		"scoring.amendment":                          c.Scoring.Amendment,
		"scoring.timeline":                           c.Scoring.Timeline,
		"scoring.compliance":                         c.Scoring.Compliance,
		"scoring.recruitment":                        c.Scoring.Recruitment,
	} {
		if err := inUnit(name, v); err != nil {
			return err
		}
	}
	if c.Suggestion.MaxResults < 1 {
		return fmt.Errorf("config: suggestion.max_results must be ≥ 1, got %d", c.Suggestion.MaxResults)
	}

	switch c.Store.Backend {
	case StoreMemory:
	case StoreRedis:
		if c.Redis.Addr == "" && len(c.Redis.ClusterAddrs) == 0 && len(c.Redis.SentinelAddrs) == 0 {
			return fmt.Errorf("config: redis.addr is required for the redis store")
		}
	case StoreSQLite:
		if c.SQLite.Path == "" {
			return fmt.Errorf("config: sqlite.path is required for the sqlite store")
		}
	case StorePostgres:
		if c.Postgres.Host == "" {
			return fmt.Errorf("config: postgres.host is required for the postgres store")
		}
		if c.Postgres.Port < 1 || c.Postgres.Port > 65535 {
			return fmt.Errorf("config: postgres.port %d is out of range [1, 65535]", c.Postgres.Port)
		}
		if c.Postgres.DBName == "" {
			return fmt.Errorf("config: postgres.db_name is required")
		}
	default:
		return fmt.Errorf("config: store.backend %q is invalid; expected memory|redis|sqlite|postgres", c.Store.Backend)
	}

	switch c.Corpus.Source {
	case SourceFilesystem:
	case SourceMinIO:
		if c.MinIO.Endpoint == "" || c.MinIO.Bucket == "" {
			return fmt.Errorf("config: minio.endpoint and minio.bucket are required for the minio corpus source")
		}
	default:
		return fmt.Errorf("config: corpus.source %q is invalid; expected fs|minio", c.Corpus.Source)
	}

	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("config: kafka.brokers must contain at least one broker address")
		}
		if c.Kafka.GroupID == "" {
			return fmt.Errorf("config: kafka.group_id is required")
		}
	}

	if c.Embedding.Enabled && c.Embedding.HTTP.Endpoint == "" {
		return fmt.Errorf("config: embedding.http.endpoint is required when embedding is enabled")
	}
	return nil
}
