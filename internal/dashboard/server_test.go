package dashboard

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/flood-cli/internal/location"
	"github.com/sells-group/flood-cli/internal/observability"
	"github.com/sells-group/flood-cli/internal/timeseries"
)

const testGeoJSON = `{"type":"FeatureCollection","features":[
 {"type":"Feature","geometry":{"type":"Point","coordinates":[32.58,0.34]},"properties":{"name":"Kampala","risk_score":0.9}},
 {"type":"Feature","geometry":{"type":"Point","coordinates":[32.46,0.05]},"properties":{"name":"Entebbe","risk_score":0.4}}]}`

func testData(t *testing.T, withLocations bool) *Data {
	t.Helper()
	tbl, err := timeseries.FromRows([][]string{
		timeseries.Columns,
		{"2024-01-01", "0", "100"},
		{"2024-01-02", "12.5", "110"},
		{"2024-01-03", "30", "180"},
		{"2024-01-04", "4", "150"},
	})
	require.NoError(t, err)
	d := &Data{Table: tbl}
	if withLocations {
		d.Locations, err = location.ParseGeoJSON([]byte(testGeoJSON))
		require.NoError(t, err)
	}
	return d
}

func newTestServer(t *testing.T, withLocations bool, cfg Config) (*Server, *observability.Metrics) {
	t.Helper()
	m := observability.NewMetricsForTesting()
	return NewServer(testData(t, withLocations), cfg, m), m
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	fake := clockwork.NewFakeClockAt(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	SetClock(fake)
	defer SetClock(nil)

	s, _ := newTestServer(t, true, Config{})
	fake.Advance(90 * time.Second)

	rec := get(t, s, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "2024-06-01T12:01:30Z", body["time"])
	assert.Equal(t, 90.0, body["uptime_s"])
	assert.Equal(t, 4.0, body["records"])
	assert.Equal(t, 2.0, body["locations"])
}

func TestTimeseriesAPI(t *testing.T) {
	s, _ := newTestServer(t, true, Config{})

	tests := []struct {
		name   string
		target string
		code   int
		points int
		title  string
	}{
		{"defaults", "/api/timeseries", http.StatusOK, 4, "Rainfall (mm)"},
		{"discharge range", "/api/timeseries?variable=discharge_cms&start=2024-01-02&end=2024-01-03", http.StatusOK, 2, "Discharge (m³/s)"},
		{"open end", "/api/timeseries?start=2024-01-04", http.StatusOK, 1, "Rainfall (mm)"},
		{"empty range", "/api/timeseries?start=2025-01-01&end=2025-02-01", http.StatusOK, 0, "Rainfall (mm)"},
		{"bad variable", "/api/timeseries?variable=snow", http.StatusBadRequest, 0, ""},
		{"bad date", "/api/timeseries?start=01/02/2024", http.StatusBadRequest, 0, ""},
		{"inverted range", "/api/timeseries?start=2024-01-03&end=2024-01-01", http.StatusBadRequest, 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, s, tt.target)
			require.Equal(t, tt.code, rec.Code, rec.Body.String())
			if tt.code != http.StatusOK {
				assert.Contains(t, rec.Body.String(), "error")
				return
			}
			var resp seriesResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Len(t, resp.Points, tt.points)
			assert.Equal(t, tt.title, resp.Title)
		})
	}
}

func TestTimeseriesAPI_Values(t *testing.T) {
	s, _ := newTestServer(t, false, Config{})
	rec := get(t, s, "/api/timeseries?variable=discharge_cms&start=2024-01-03&end=2024-01-03")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp seriesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Points, 1)
	assert.Equal(t, 180.0, resp.Points[0].Value)
	assert.Equal(t, "2024-01-03", resp.Start)
}

func TestIndex(t *testing.T) {
	s, _ := newTestServer(t, true, Config{CacheEntries: 8, CacheTTL: time.Minute})

	rec := get(t, s, "/?variable=discharge_cms")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, body, "Discharge (m³/s)")
	assert.Contains(t, body, "<polyline")
	assert.Contains(t, body, "Kampala")
	assert.Contains(t, body, "risk_score: 0.9")
	assert.Contains(t, body, `value="2024-01-01"`)
	assert.Contains(t, body, `value="2024-01-04"`)
	assert.NotContains(t, body, "No locations loaded")
	assert.Equal(t, "miss", rec.Header().Get("X-Cache"))

	again := get(t, s, "/?variable=discharge_cms")
	assert.Equal(t, "hit", again.Header().Get("X-Cache"))
	assert.Equal(t, body, again.Body.String())
}

func TestIndex_PlaceholderMap(t *testing.T) {
	s, _ := newTestServer(t, false, Config{})
	rec := get(t, s, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "No locations loaded")
	assert.Contains(t, rec.Body.String(), "0.34, 32.58")
}

func TestIndex_BadParams(t *testing.T) {
	s, _ := newTestServer(t, false, Config{})
	rec := get(t, s, "/?end=tomorrow")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLocationsAPI(t *testing.T) {
	s, _ := newTestServer(t, true, Config{})
	rec := get(t, s, "/api/locations")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/geo+json", rec.Header().Get("Content-Type"))

	back, err := location.ParseGeoJSON(rec.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 2, back.Len())

	empty, _ := newTestServer(t, false, Config{})
	rec = get(t, empty, "/api/locations")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "FeatureCollection")
}

func TestRateLimit(t *testing.T) {
	s, m := newTestServer(t, false, Config{RateLimit: 0.001, RateBurst: 2})

	assert.Equal(t, http.StatusOK, get(t, s, "/api/timeseries").Code)
	assert.Equal(t, http.StatusOK, get(t, s, "/api/timeseries").Code)
	rec := get(t, s, "/api/timeseries")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RateLimited))

	// Health checks bypass the limiter.
	assert.Equal(t, http.StatusOK, get(t, s, "/healthz").Code)
}

func TestMetrics(t *testing.T) {
	s, m := newTestServer(t, true, Config{})
	get(t, s, "/api/timeseries")
	get(t, s, "/api/timeseries?variable=x")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("/api/timeseries", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("/api/timeseries", "400")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.DatasetLoaded.WithLabelValues("table")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.DatasetLoaded.WithLabelValues("locations")))

	rec := get(t, s, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "flood_http_requests_total")
}

func TestCORS(t *testing.T) {
	s, _ := newTestServer(t, false, Config{CORSOrigins: []string{"*"}})
	req := httptest.NewRequest(http.MethodGet, "/api/timeseries", nil)
	req.Header.Set("Origin", "http://example.test")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestServe_GracefulShutdown(t *testing.T) {
	s, _ := newTestServer(t, false, Config{ShutdownTimeout: time.Second})
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	table := filepath.Join(dir, "rainfall_discharge.csv")
	locs := filepath.Join(dir, "flood_prone.geojson")
	require.NoError(t, os.WriteFile(table, []byte("date,rainfall_mm,discharge_cms\n2024-01-01,1,2\n"), 0o644))
	require.NoError(t, os.WriteFile(locs, []byte(testGeoJSON), 0o644))

	d, err := Load(context.Background(), LoadOptions{Table: table, Locations: locs})
	require.NoError(t, err)
	assert.Equal(t, 1, d.Table.Len())
	assert.Equal(t, 2, d.Locations.Len())

	d, err = Load(context.Background(), LoadOptions{Table: table})
	require.NoError(t, err)
	assert.Nil(t, d.Locations)
}

func TestLoad_SchemaError(t *testing.T) {
	table := filepath.Join(t.TempDir(), "bad.csv")
	require.NoError(t, os.WriteFile(table, []byte("date,rainfall_mm\n2024-01-01,1\n"), 0o644))
	_, err := Load(context.Background(), LoadOptions{Table: table})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "discharge_cms"))
}
