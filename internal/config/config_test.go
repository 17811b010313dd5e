package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/ProtocolIQ/internal/config"
)

// validConfig returns a Config that passes Validate().
func validConfig() *config.Config {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	return cfg
}

func TestConfig_Validate_ValidConfig(t *testing.T) {
	t.Parallel()
	assert.NoError(t, validConfig().Validate())
}

func TestConfig_Validate_LogLevel(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Log.Level = "verbose"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log.level")
}

func TestConfig_Validate_WeightsOutOfRange(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Suggestion.Weights.Rule = 1.5
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "suggestion.weights.rule")

	cfg = validConfig()
	cfg.Scoring.Approval = -0.1
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scoring.approval")
}

func TestConfig_Validate_StoreBackend(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{"unknown", func(c *config.Config) { c.Store.Backend = "cassandra" }, "store.backend"},
		{"sqlite without path", func(c *config.Config) {
			c.Store.Backend = config.StoreSQLite
			c.SQLite.Path = ""
		}, "sqlite.path"},
		{"postgres bad port", func(c *config.Config) {
			c.Store.Backend = config.StorePostgres
			c.Postgres.Port = 70000
		}, "postgres.port"},
		{"postgres no db", func(c *config.Config) {
			c.Store.Backend = config.StorePostgres
			c.Postgres.DBName = ""
		}, "postgres.db_name"},
		{"redis no addr", func(c *config.Config) {
			c.Store.Backend = config.StoreRedis
			c.Redis.Addr = ""
		}, "redis.addr"},
		{"redis ok", func(c *config.Config) { c.Store.Backend = config.StoreRedis }, ""},
		{"postgres ok", func(c *config.Config) { c.Store.Backend = config.StorePostgres }, ""},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestConfig_Validate_MinIOSource(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Corpus.Source = config.SourceMinIO
	require.Error(t, cfg.Validate())

	cfg.MinIO.Endpoint = "localhost:9000"
	cfg.MinIO.Bucket = "protocols"
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Validate_Kafka(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Kafka.Enabled = true
	cfg.Kafka.Brokers = nil
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kafka.brokers")
}

func TestConfig_Validate_EmbeddingEndpoint(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Embedding.Enabled = true
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embedding.http.endpoint")
}
