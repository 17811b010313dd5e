package prometheus

import (
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServer_ServesMetricsAndHealth(t *testing.T) {
	c := newTestCollector(t)
	NewAppMetrics(c).ActionRecorded("reject")

	s := NewServer("127.0.0.1:0", "/metrics", c, nil)
	require.NoError(t, s.Start())
	defer s.Shutdown(context.Background())

	addr := s.Addr()
	resp, err := http.Get("http://" + addr + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), `test_unit_actions_recorded_total{action="reject"} 1`)

	resp, err = http.Get("http://" + addr + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
