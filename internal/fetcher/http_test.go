package fetcher

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func noWait(int) time.Duration { return 0 }

func fastFetcher(attempts int) *HTTPFetcher {
	return NewHTTPFetcher(HTTPOptions{
		UserAgent:   "flood-test",
		Timeout:     5 * time.Second,
		MaxAttempts: attempts,
		RatePerHost: 1000,
		Backoff:     noWait,
	})
}

// flaky answers with status for the first n requests, then serves body.
func flaky(t *testing.T, n int32, status int, header http.Header, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) <= n {
			for k, v := range header {
				w.Header()[k] = v
			}
			w.WriteHeader(status)
			return
		}
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestHTTPDownload_SetsUserAgent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "flood-test", r.Header.Get("User-Agent"))
		_, _ = io.WriteString(w, "GTiff")
	}))
	defer srv.Close()

	body, err := fastFetcher(1).Download(context.Background(), srv.URL+"/dem.tif")
	require.NoError(t, err)
	defer body.Close()
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "GTiff", string(data))
}

func TestHTTPDownloadToFile(t *testing.T) {
	srv, _ := flaky(t, 0, 0, nil, "date,rainfall_mm\n")
	path := filepath.Join(t.TempDir(), "rain.csv")

	n, err := fastFetcher(1).DownloadToFile(context.Background(), srv.URL, path)
	require.NoError(t, err)
	assert.Equal(t, int64(17), n)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "date,rainfall_mm\n", string(data))
}

func TestHTTPDownload_RetriesTransientStatus(t *testing.T) {
	srv, hits := flaky(t, 2, http.StatusServiceUnavailable, nil, "ok")

	body, err := fastFetcher(3).Download(context.Background(), srv.URL)
	require.NoError(t, err)
	body.Close()
	assert.Equal(t, int32(3), hits.Load())
}

func TestHTTPDownload_GivesUp(t *testing.T) {
	srv, hits := flaky(t, 5, http.StatusBadGateway, nil, "ok")

	_, err := fastFetcher(2).Download(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "giving up after 2 attempt(s)")
	assert.Equal(t, int32(2), hits.Load())
}

func TestHTTPDownload_NoRetryOnPermanentStatus(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusInternalServerError, http.StatusForbidden} {
		srv, hits := flaky(t, 1, status, nil, "ok")
		_, err := fastFetcher(3).Download(context.Background(), srv.URL)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unexpected status")
		assert.Equal(t, int32(1), hits.Load())
	}
}

func TestHTTPDownload_HonoursRetryAfter(t *testing.T) {
	srv, hits := flaky(t, 1, http.StatusTooManyRequests, http.Header{"Retry-After": {"0"}}, "ok")

	f := NewHTTPFetcher(HTTPOptions{
		MaxAttempts: 2,
		RatePerHost: 1000,
		Backoff:     func(int) time.Duration { return time.Hour },
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	body, err := f.Download(ctx, srv.URL)
	require.NoError(t, err)
	body.Close()
	assert.Equal(t, int32(2), hits.Load())
}

func TestHTTPDownload_CancelledDuringBackoff(t *testing.T) {
	srv, _ := flaky(t, 5, http.StatusServiceUnavailable, nil, "ok")

	f := NewHTTPFetcher(HTTPOptions{
		MaxAttempts: 3,
		RatePerHost: 1000,
		Backoff:     func(int) time.Duration { return time.Hour },
	})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := f.Download(ctx, srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backoff")
}

func TestHTTPDownloadToFile_ShortBodyLeavesNoFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "1000")
		_, _ = io.WriteString(w, "partial")
	}))
	defer srv.Close()

	dir := t.TempDir()
	path := filepath.Join(dir, "dem.tif")
	_, err := fastFetcher(1).DownloadToFile(context.Background(), srv.URL, path)
	require.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestNewHTTPFetcher_Defaults(t *testing.T) {
	f := NewHTTPFetcher(HTTPOptions{})
	assert.Equal(t, 60*time.Second, f.opts.Timeout)
	assert.Equal(t, 1, f.opts.MaxAttempts)
	assert.Equal(t, rate.Limit(5), f.opts.RatePerHost)
	assert.Equal(t, "flood-cli/1.0", f.opts.UserAgent)
	assert.NotNil(t, f.opts.Backoff)
}

func TestLimiter_PerHost(t *testing.T) {
	f := fastFetcher(1)
	a := f.limiter("example.com")
	assert.Same(t, a, f.limiter("example.com"))
	assert.NotSame(t, a, f.limiter("data.example.org"))
}

func TestJitteredBackoff(t *testing.T) {
	assert.GreaterOrEqual(t, jitteredBackoff(0), time.Second)
	assert.Less(t, jitteredBackoff(0), 2*time.Second)
	assert.GreaterOrEqual(t, jitteredBackoff(10), 30*time.Second)
	assert.LessOrEqual(t, jitteredBackoff(10), 45*time.Second)

	for _, n := range []int{33, 34, 40, 63, 64, 1000, -1} {
		assert.NotPanics(t, func() {
			d := jitteredBackoff(n)
			assert.Positive(t, d)
			assert.LessOrEqual(t, d, 45*time.Second)
		}, "n=%d", n)
	}
}

func TestRetryAfter(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	d, ok := retryAfter("7", now)
	assert.True(t, ok)
	assert.Equal(t, 7*time.Second, d)

	d, ok = retryAfter(now.Add(90*time.Second).Format(http.TimeFormat), now)
	assert.True(t, ok)
	assert.Equal(t, 90*time.Second, d)

	d, ok = retryAfter(now.Add(-time.Minute).Format(http.TimeFormat), now)
	assert.True(t, ok)
	assert.Zero(t, d)

	_, ok = retryAfter("", now)
	assert.False(t, ok)
	_, ok = retryAfter("soon", now)
	assert.False(t, ok)
}
