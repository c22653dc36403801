package fetcher

import (
	"context"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	UserAgent string
	Timeout   time.Duration
	// MaxAttempts bounds the number of requests per download. 1 disables retries.
	MaxAttempts int
	// RatePerHost caps requests per second to any one host.
	RatePerHost rate.Limit
	// Backoff returns the wait before retry n (0-based). Nil means
	// exponential from one second, capped at 30s, with jitter.
	Backoff func(n int) time.Duration
}

// HTTPFetcher downloads over http(s) with a rate limiter per host. Transport
// failures and 429/502/503/504 responses are retried; a Retry-After header
// overrides the computed backoff.
type HTTPFetcher struct {
	client *http.Client
	opts   HTTPOptions

	mu    sync.Mutex
	hosts map[string]*rate.Limiter
}

// NewHTTPFetcher fills defaults and returns a fetcher.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}
	if opts.RatePerHost == 0 {
		opts.RatePerHost = 5
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "flood-cli/1.0"
	}
	if opts.Backoff == nil {
		opts.Backoff = jitteredBackoff
	}
	return &HTTPFetcher{
		client: &http.Client{Timeout: opts.Timeout},
		opts:   opts,
		hosts:  make(map[string]*rate.Limiter),
	}
}

func jitteredBackoff(n int) time.Duration {
	// 1s<<5 already exceeds the cap; larger shifts overflow.
	d := min(time.Second<<min(max(n, 0), 5), 30*time.Second)
	return d + time.Duration(rand.Int64N(int64(d)/2+1))
}

func (f *HTTPFetcher) limiter(host string) *rate.Limiter {
	f.mu.Lock()
	defer f.mu.Unlock()
	lim, ok := f.hosts[host]
	if !ok {
		lim = rate.NewLimiter(f.opts.RatePerHost, max(1, int(f.opts.RatePerHost)))
		f.hosts[host] = lim
	}
	return lim
}

func retryable(status int) bool {
	switch status {
	case http.StatusTooManyRequests, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// retryAfter parses a Retry-After header given in seconds or as an HTTP date.
func retryAfter(h string, now time.Time) (time.Duration, bool) {
	if h == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(h); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second, true
	}
	if at, err := http.ParseTime(h); err == nil {
		return max(at.Sub(now), 0), true
	}
	return 0, false
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Download returns the body of a 200 response for rawURL.
func (f *HTTPFetcher) Download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, eris.Wrapf(err, "http: parse %s", rawURL)
	}
	lim := f.limiter(u.Host)
	log := zap.L().With(zap.String("url", rawURL))

	var lastErr error
	for attempt := range f.opts.MaxAttempts {
		if attempt > 0 {
			wait := f.opts.Backoff(attempt - 1)
			if ra, ok := lastRetryAfter(lastErr); ok {
				wait = ra
			}
			if err := sleepCtx(ctx, wait); err != nil {
				return nil, eris.Wrap(err, "http: backoff")
			}
		}
		if err := lim.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "http: rate limit")
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, eris.Wrap(err, "http: build request")
		}
		req.Header.Set("User-Agent", f.opts.UserAgent)

		resp, err := f.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, eris.Wrap(ctx.Err(), "http: request")
			}
			lastErr = eris.Wrap(err, "http: request")
			log.Warn("http: transport error", zap.Int("attempt", attempt+1), zap.Error(err))
			continue
		}
		if resp.StatusCode == http.StatusOK {
			return resp.Body, nil
		}
		_ = resp.Body.Close()

		if !retryable(resp.StatusCode) {
			return nil, eris.Errorf("http: unexpected status %d from %s", resp.StatusCode, rawURL)
		}
		se := &statusError{code: resp.StatusCode}
		se.retryAfter, se.hasRetryAfter = retryAfter(resp.Header.Get("Retry-After"), time.Now())
		lastErr = se
		log.Warn("http: retryable status", zap.Int("status", resp.StatusCode), zap.Int("attempt", attempt+1))
	}
	return nil, eris.Wrapf(lastErr, "http: giving up after %d attempt(s)", f.opts.MaxAttempts)
}

type statusError struct {
	code          int
	retryAfter    time.Duration
	hasRetryAfter bool
}

func (e *statusError) Error() string { return "status " + strconv.Itoa(e.code) }

func lastRetryAfter(err error) (time.Duration, bool) {
	if se, ok := err.(*statusError); ok && se.hasRetryAfter {
		return se.retryAfter, true
	}
	return 0, false
}

// DownloadToFile saves rawURL to path. A short body against the
// advertised Content-Length is an error and leaves no file behind.
func (f *HTTPFetcher) DownloadToFile(ctx context.Context, rawURL, path string) (int64, error) {
	body, err := f.Download(ctx, rawURL)
	if err != nil {
		return 0, err
	}
	defer body.Close() //nolint:errcheck
	return saveAtomic(path, body)
}
