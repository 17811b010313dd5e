package prometheus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/turtacn/ProtocolIQ/internal/application/mining"
	"github.com/turtacn/ProtocolIQ/internal/application/preference"
	"github.com/turtacn/ProtocolIQ/internal/application/protocoliq"
	"github.com/turtacn/ProtocolIQ/internal/intelligence/batch"
)

var (
	_ preference.Metrics = (*AppMetrics)(nil)
	_ mining.Metrics     = (*AppMetrics)(nil)
	_ protocoliq.Metrics = (*AppMetrics)(nil)
	_ batch.Observer     = (*AppMetrics)(nil)
)

func TestAppMetrics_Suggestions(t *testing.T) {
	c := newTestCollector(t)
	m := NewAppMetrics(c)

	m.SuggestionsServed("dosing", 2)
	m.SuggestionsServed("", 0)
	m.ObserveSuggestionLatency(3 * time.Millisecond)
	m.DetectorFallback()

	out := scrapeMetrics(t, c)
	assert.Contains(t, out, `test_unit_suggestions_served_total{context="dosing"} 2`)
	assert.Contains(t, out, `test_unit_suggestion_requests_total{context="none"} 1`)
	assert.Contains(t, out, "test_unit_suggestion_duration_seconds_count 1")
	assert.Contains(t, out, "test_unit_detector_semantic_fallbacks_total 1")
}

func TestAppMetrics_PreferenceAndMining(t *testing.T) {
	c := newTestCollector(t)
	m := NewAppMetrics(c)

	m.ActionRecorded("accept")
	m.ActionRecorded("accept")
	m.PersistenceFailed("put")
	m.DocumentsProcessed(4)
	m.DocumentsSkipped(1)
	m.ObserveSuccessScore(0.75)
	m.ObserveAnalysis(2 * time.Second)
	m.ObserveBatch("corpus", 5, 3, 1, time.Second)
	m.SetPatternCount("language", 7)

	out := scrapeMetrics(t, c)
	assert.Contains(t, out, `test_unit_actions_recorded_total{action="accept"} 2`)
	assert.Contains(t, out, `test_unit_persistence_failures_total{operation="put"} 1`)
	assert.Contains(t, out, `test_unit_corpus_documents_total{status="processed"} 4`)
	assert.Contains(t, out, `test_unit_corpus_documents_total{status="skipped"} 1`)
	assert.Contains(t, out, `test_unit_batch_items_total{batch="corpus",status="succeeded"} 3`)
	assert.Contains(t, out, `test_unit_batch_items_total{batch="corpus",status="skipped"} 1`)
	assert.Contains(t, out, `test_unit_corpus_patterns{type="language"} 7`)
}

func TestAppMetrics_ConsumerAndHealth(t *testing.T) {
	c := newTestCollector(t)
	m := NewAppMetrics(c)

	m.SetConsumerCounters("actions", map[string]int64{"processed": 9, "failed": 1}, 4)
	m.SetHealth("store", true)
	m.SetHealth("kafka", false)

	out := scrapeMetrics(t, c)
	assert.Contains(t, out, `test_unit_kafka_messages{status="processed",topic="actions"} 9`)
	assert.Contains(t, out, `test_unit_kafka_consumer_lag{topic="actions"} 4`)
	assert.Contains(t, out, `test_unit_health_check_status{component="store"} 1`)
	assert.Contains(t, out, `test_unit_health_check_status{component="kafka"} 0`)
}
