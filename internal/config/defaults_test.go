package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/ProtocolIQ/internal/application/suggestion"
	"github.com/turtacn/ProtocolIQ/internal/domain/corpus"
	"github.com/turtacn/ProtocolIQ/internal/domain/profile"
	"github.com/turtacn/ProtocolIQ/internal/intelligence/contextdetect"
)

func TestApplyDefaults_EmptyConfig(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	assert.Equal(t, DefaultLogLevel, cfg.Log.Level)
	assert.Equal(t, StoreSQLite, cfg.Store.Backend, "state survives separate CLI runs")
	assert.Equal(t, DefaultSQLitePath, cfg.SQLite.Path)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, SourceFilesystem, cfg.Corpus.Source)
	assert.Equal(t, contextdetect.DefaultWeights(), cfg.Detector.Weights)
	assert.Equal(t, suggestion.DefaultConfig(), cfg.Suggestion)
	assert.Equal(t, profile.DefaultConfig(), cfg.Profile)
	assert.Equal(t, corpus.DefaultScoreWeights(), cfg.Scoring)
	assert.Equal(t, []string{DefaultKafkaBroker}, cfg.Kafka.Brokers)
	assert.Equal(t, DefaultActionTopic, cfg.Kafka.ActionTopic)
	assert.Equal(t, 100, cfg.Miner.BatchSize)
	assert.Equal(t, 0.7, cfg.Miner.RecommendThreshold)
}

func TestApplyDefaults_PreserveExistingValues(t *testing.T) {
	cfg := &Config{}
	cfg.Suggestion.MaxResults = 3
	cfg.Store.Backend = StoreSQLite
	cfg.Persistence.RetryBackoff = time.Second
	ApplyDefaults(cfg)

	assert.Equal(t, 3, cfg.Suggestion.MaxResults)
	assert.Equal(t, StoreSQLite, cfg.Store.Backend)
	assert.Equal(t, time.Second, cfg.Persistence.RetryBackoff)
}

func TestApplyDefaults_Nil(t *testing.T) {
	assert.NotPanics(t, func() { ApplyDefaults(nil) })
}

func TestMinerConfig_UsesScoringWeights(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	cfg.Scoring.Approval = 0.5
	assert.Equal(t, 0.5, cfg.MinerConfig().Weights.Approval)
}
