package prometheus

import "time"

// AppMetrics holds every ProtocolIQ metric. Its methods satisfy the metrics
// hooks of the suggestion, preference and mining services.
type AppMetrics struct {
	SuggestionsTotal   CounterVec
	SuggestionRequests CounterVec
	SuggestionLatency  HistogramVec
	DetectorFallbacks  CounterVec

	ActionsRecorded     CounterVec
	PersistenceFailures CounterVec

	DocumentsTotal      CounterVec
	SuccessScore        HistogramVec
	AnalysisDuration    HistogramVec
	BatchItemsTotal     CounterVec
	BatchDuration       HistogramVec
	CorpusPatternsTotal GaugeVec

	MessagesTotal GaugeVec
	ConsumerLag   GaugeVec

	HealthCheckStatus GaugeVec
}

var (
	DefaultLatencyBuckets  = []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1}
	DefaultAnalysisBuckets = []float64{.1, .5, 1, 5, 10, 30, 60, 120, 300, 600}
	DefaultScoreBuckets    = []float64{.1, .2, .3, .4, .5, .6, .7, .8, .9, 1}
)

// NewAppMetrics registers all metrics on collector.
func NewAppMetrics(collector MetricsCollector) *AppMetrics {
	m := &AppMetrics{}

	m.SuggestionsTotal = collector.RegisterCounter("suggestions_served_total", "Suggestions returned to callers", "context")
	m.SuggestionRequests = collector.RegisterCounter("suggestion_requests_total", "Suggestion requests", "context")
	m.SuggestionLatency = collector.RegisterHistogram("suggestion_duration_seconds", "Time to detect context and rank suggestions", DefaultLatencyBuckets)
	m.DetectorFallbacks = collector.RegisterCounter("detector_semantic_fallbacks_total", "Semantic lookups that fell back to keyword scoring")

	m.ActionsRecorded = collector.RegisterCounter("actions_recorded_total", "User actions applied to profiles", "action")
	m.PersistenceFailures = collector.RegisterCounter("persistence_failures_total", "Store writes that failed after retries", "operation")

	m.DocumentsTotal = collector.RegisterCounter("corpus_documents_total", "Corpus documents seen by the miner", "status")
	m.SuccessScore = collector.RegisterHistogram("corpus_success_score", "Success score of analyzed documents", DefaultScoreBuckets)
	m.AnalysisDuration = collector.RegisterHistogram("corpus_analysis_duration_seconds", "Corpus analysis run duration", DefaultAnalysisBuckets)
	m.BatchItemsTotal = collector.RegisterCounter("batch_items_total", "Batch items processed", "batch", "status")
	m.BatchDuration = collector.RegisterHistogram("batch_duration_seconds", "Batch duration", DefaultAnalysisBuckets, "batch")
	m.CorpusPatternsTotal = collector.RegisterGauge("corpus_patterns", "Success patterns currently loaded", "type")

	m.MessagesTotal = collector.RegisterGauge("kafka_messages", "Consumer message counters", "topic", "status")
	m.ConsumerLag = collector.RegisterGauge("kafka_consumer_lag", "Messages behind the high water mark", "topic")

	m.HealthCheckStatus = collector.RegisterGauge("health_check_status", "Health check status (1=up, 0=down)", "component")
	return m
}

func (m *AppMetrics) SuggestionsServed(contextName string, n int) {
	m.SuggestionRequests.WithLabelValues(label(contextName)).Inc()
	m.SuggestionsTotal.WithLabelValues(label(contextName)).Add(float64(n))
}

func (m *AppMetrics) ObserveSuggestionLatency(d time.Duration) {
	m.SuggestionLatency.WithLabelValues().Observe(d.Seconds())
}

// DetectorFallback is passed to the detector's fallback hook.
func (m *AppMetrics) DetectorFallback() {
	m.DetectorFallbacks.WithLabelValues().Inc()
}

func (m *AppMetrics) ActionRecorded(action string) {
	m.ActionsRecorded.WithLabelValues(action).Inc()
}

func (m *AppMetrics) PersistenceFailed(operation string) {
	m.PersistenceFailures.WithLabelValues(operation).Inc()
}

func (m *AppMetrics) DocumentsProcessed(n int) {
	m.DocumentsTotal.WithLabelValues("processed").Add(float64(n))
}

func (m *AppMetrics) DocumentsSkipped(n int) {
	m.DocumentsTotal.WithLabelValues("skipped").Add(float64(n))
}

func (m *AppMetrics) ObserveSuccessScore(score float64) {
	m.SuccessScore.WithLabelValues().Observe(score)
}

func (m *AppMetrics) ObserveAnalysis(d time.Duration) {
	m.AnalysisDuration.WithLabelValues().Observe(d.Seconds())
}

// ObserveBatch implements batch.Observer.
func (m *AppMetrics) ObserveBatch(name string, total, succeeded, failed int, d time.Duration) {
	m.BatchItemsTotal.WithLabelValues(name, "succeeded").Add(float64(succeeded))
	m.BatchItemsTotal.WithLabelValues(name, "failed").Add(float64(failed))
	if skipped := total - succeeded - failed; skipped > 0 {
		m.BatchItemsTotal.WithLabelValues(name, "skipped").Add(float64(skipped))
	}
	m.BatchDuration.WithLabelValues(name).Observe(d.Seconds())
}

// SetPatternCount records how many mined patterns of each type are loaded.
func (m *AppMetrics) SetPatternCount(patternType string, n int) {
	m.CorpusPatternsTotal.WithLabelValues(patternType).Set(float64(n))
}

// SetConsumerCounters mirrors a consumer's cumulative counters.
func (m *AppMetrics) SetConsumerCounters(topic string, counters map[string]int64, lag int64) {
	for status, v := range counters {
		m.MessagesTotal.WithLabelValues(topic, status).Set(float64(v))
	}
	m.ConsumerLag.WithLabelValues(topic).Set(float64(lag))
}

func (m *AppMetrics) SetHealth(component string, up bool) {
	m.HealthCheckStatus.WithLabelValues(component).Set(boolToFloat(up))
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func label(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
