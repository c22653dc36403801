package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/flood-cli/internal/observability"
	"github.com/sells-group/flood-cli/internal/timeseries"
)

// Config tunes the HTTP server.
type Config struct {
	Addr string
	// RateLimit is the sustained request rate across all clients; 0 disables limiting.
	RateLimit       float64
	RateBurst       int
	CORSOrigins     []string
	CacheEntries    int
	CacheTTL        time.Duration
	ShutdownTimeout time.Duration
}

// Server serves the dashboard over HTTP.
type Server struct {
	cfg     Config
	data    *Data
	metrics *observability.Metrics
	limiter *rate.Limiter
	cache   *pageCache
	started time.Time
	router  chi.Router
}

// NewServer wires routes over already-loaded data. metrics may be nil.
func NewServer(data *Data, cfg Config, metrics *observability.Metrics) *Server {
	s := &Server{
		cfg:     cfg,
		data:    data,
		metrics: metrics,
		cache:   newPageCache(cfg.CacheEntries, cfg.CacheTTL),
		started: clock.Now(),
	}
	if cfg.RateLimit > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), max(cfg.RateBurst, 1))
	}
	if metrics != nil {
		metrics.DatasetLoaded.WithLabelValues("table").Set(float64(data.Table.Len()))
		metrics.DatasetLoaded.WithLabelValues("locations").Set(float64(data.Locations.Len()))
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.observe)
	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodOptions},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", s.handleHealth)
	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler())
	}
	r.Group(func(r chi.Router) {
		r.Use(s.rateLimit)
		r.Get("/", s.handleIndex)
		r.Get("/api/timeseries", s.handleTimeseries)
		r.Get("/api/locations", s.handleLocations)
	})
	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves until ctx is cancelled, then drains connections
// within the shutdown timeout.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return eris.Wrapf(err, "dashboard: listen %s", s.cfg.Addr)
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("dashboard: listening", zap.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return eris.Wrap(err, "dashboard: serve")
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	zap.L().Info("dashboard: shutting down", zap.Duration("timeout", timeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return eris.Wrap(err, "dashboard: shutdown")
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	now := clock.Now()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"time":      now.UTC().Format(time.RFC3339),
		"uptime_s":  int64(now.Sub(s.started).Seconds()),
		"records":   s.data.Table.Len(),
		"locations": s.data.Locations.Len(),
		"cache":     s.cache.stats(),
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r.URL.Query(), s.data.Table)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if page := s.cache.get(q.key()); page != nil {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("X-Cache", "hit")
		_, _ = w.Write(page)
		return
	}

	first, last, _ := s.data.Table.Range()
	pts := s.data.Table.Series(q.Variable, q.Start, q.End)
	page, err := renderPage(pageModel{
		Variable:  string(q.Variable),
		Variables: []timeseries.Variable{timeseries.Rainfall, timeseries.Discharge},
		Start:     formatDate(q.Start),
		End:       formatDate(q.End),
		MinDate:   formatDate(first),
		MaxDate:   formatDate(last),
		Records:   len(pts),
		Chart:     buildChart(q.Variable, pts),
		Map:       buildMap(s.data.Locations),
	})
	if err != nil {
		zap.L().Error("dashboard: render failed", zap.Error(err))
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	s.cache.put(q.key(), page)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("X-Cache", "miss")
	_, _ = w.Write(page)
}

type seriesResponse struct {
	Variable string             `json:"variable"`
	Title    string             `json:"title"`
	Start    string             `json:"start,omitempty"`
	End      string             `json:"end,omitempty"`
	Points   []timeseries.Point `json:"points"`
}

func (s *Server) handleTimeseries(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r.URL.Query(), s.data.Table)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, seriesResponse{
		Variable: string(q.Variable),
		Title:    q.Variable.Title(),
		Start:    formatDate(q.Start),
		End:      formatDate(q.End),
		Points:   s.data.Table.Series(q.Variable, q.Start, q.End),
	})
}

func (s *Server) handleLocations(w http.ResponseWriter, _ *http.Request) {
	data, err := s.data.Locations.MarshalGeoJSON()
	if err != nil {
		zap.L().Error("dashboard: encode locations", zap.Error(err))
		http.Error(w, "encode failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	_, _ = w.Write(data)
}

// rateLimit rejects requests beyond the shared token bucket with 429.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow() {
			if s.metrics != nil {
				s.metrics.RateLimited.Inc()
			}
			w.Header().Set("Retry-After", "1")
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// observe records request count and latency per matched route.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := clock.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		if s.metrics != nil {
			s.metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
			s.metrics.HTTPDuration.WithLabelValues(route).Observe(clock.Since(start).Seconds())
		}
		zap.L().Debug("dashboard: request",
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}
