package prometheus

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCollector(t *testing.T) MetricsCollector {
	c, err := NewMetricsCollector(CollectorConfig{Namespace: "test", Subsystem: "unit"}, nil)
	require.NoError(t, err)
	return c
}

func scrapeMetrics(t *testing.T, collector MetricsCollector) string {
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	collector.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	return w.Body.String()
}

func TestNewMetricsCollector_EmptyNamespace(t *testing.T) {
	_, err := NewMetricsCollector(CollectorConfig{Subsystem: "unit"}, nil)
	assert.Error(t, err)
}

func TestNewMetricsCollector_WithGoMetrics(t *testing.T) {
	c, err := NewMetricsCollector(CollectorConfig{Namespace: "test", EnableGoMetrics: true}, nil)
	require.NoError(t, err)
	assert.Contains(t, scrapeMetrics(t, c), "go_goroutines")
}

func TestRegisterCounter(t *testing.T) {
	c := newTestCollector(t)
	c.RegisterCounter("events_total", "events", "kind").WithLabelValues("a").Add(3)
	assert.Contains(t, scrapeMetrics(t, c), `test_unit_events_total{kind="a"} 3`)
}

func TestRegister_SameNameReturnsExisting(t *testing.T) {
	c := newTestCollector(t)
	c.RegisterCounter("dup_total", "dup", "k").WithLabelValues("x").Inc()
	c.RegisterCounter("dup_total", "dup", "k").WithLabelValues("x").Inc()
	assert.Contains(t, scrapeMetrics(t, c), `test_unit_dup_total{k="x"} 2`)
}

func TestRegister_TypeMismatchIsNoop(t *testing.T) {
	c := newTestCollector(t)
	c.RegisterCounter("clash", "clash")
	g := c.RegisterGauge("clash", "clash")
	assert.NotPanics(t, func() { g.WithLabelValues().Set(5) })
}

func TestRegisterHistogram_DefaultBuckets(t *testing.T) {
	c := newTestCollector(t)
	c.RegisterHistogram("latency_seconds", "latency", nil).WithLabelValues().Observe(0.2)
	out := scrapeMetrics(t, c)
	assert.Contains(t, out, `test_unit_latency_seconds_bucket{le="0.25"} 1`)
	assert.Contains(t, out, "test_unit_latency_seconds_count 1")
}
