package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveRun(t *testing.T) {
	m := NewMetricsForTesting()
	m.ObserveRun("ndwi", "complete", 20*time.Millisecond, 65536)
	m.ObserveRun("ndwi", "failed", time.Millisecond, 0)

	assert.InDelta(t, 1.0, testutil.ToFloat64(m.PipelineRuns.WithLabelValues("ndwi", "complete")), 1e-9)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.PipelineRuns.WithLabelValues("ndwi", "failed")), 1e-9)
	assert.InDelta(t, 65536.0, testutil.ToFloat64(m.CellsProcessed.WithLabelValues("ndwi")), 1e-9)
}

func TestObserveRun_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() { m.ObserveRun("simulate", "complete", time.Second, 1) })
}

func TestHandler(t *testing.T) {
	m := NewMetricsForTesting()
	m.RateLimited.Inc()

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "flood_http_rate_limited_total 1")
}

func TestWriteTextfile(t *testing.T) {
	m := NewRunMetrics()
	m.ObserveRun("simulate", "complete", 2*time.Second, 400)

	path := filepath.Join(t.TempDir(), "flood.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, `flood_pipeline_runs_total{pipeline="simulate",status="complete"} 1`)
	assert.Contains(t, text, `flood_cells_processed_total{pipeline="simulate"} 400`)
	assert.NotContains(t, text, "go_goroutines")
}

func TestWriteTextfile_NilAndBadPath(t *testing.T) {
	var m *Metrics
	assert.NoError(t, m.WriteTextfile("/nonexistent/x.prom"))

	err := NewRunMetrics().WriteTextfile(filepath.Join(t.TempDir(), "missing", "x.prom"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "metrics: write")
}
