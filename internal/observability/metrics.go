// Package observability holds the Prometheus metrics shared by the flood pipelines and the dashboard.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
)

const namespace = "flood"

// Metrics holds the Prometheus counters and histograms for pipeline runs and HTTP serving.
type Metrics struct {
	PipelineRuns     *prometheus.CounterVec   // labels: pipeline, status={complete,failed}
	PipelineDuration *prometheus.HistogramVec // labels: pipeline
	CellsProcessed   *prometheus.CounterVec   // labels: pipeline

	HTTPRequests  *prometheus.CounterVec   // labels: route, code
	HTTPDuration  *prometheus.HistogramVec // labels: route
	RateLimited   prometheus.Counter
	DatasetLoaded *prometheus.GaugeVec // labels: dataset={table,locations}; value = rows/features

	gatherer prometheus.Gatherer
}

func newMetrics() *Metrics {
	return &Metrics{
		PipelineRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_runs_total",
			Help:      "Pipeline runs by pipeline and final status.",
		}, []string{"pipeline", "status"}),
		PipelineDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_duration_seconds",
			Help:      "Wall time of a pipeline run.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"pipeline"}),
		CellsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cells_processed_total",
			Help:      "Raster cells written by pipeline.",
		}, []string{"pipeline"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Dashboard HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Dashboard request latency by route.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"route"}),
		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_rate_limited_total",
			Help:      "Requests rejected by the dashboard rate limiter.",
		}),
		DatasetLoaded: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dataset_records",
			Help:      "Records loaded into the dashboard at startup.",
		}, []string{"dataset"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.PipelineRuns,
		m.PipelineDuration,
		m.CellsProcessed,
		m.HTTPRequests,
		m.HTTPDuration,
		m.RateLimited,
		m.DatasetLoaded,
	}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	m.gatherer = prometheus.DefaultGatherer
	return m
}

// NewRunMetrics creates Metrics on a private registry. Batch commands use it
// so one run's textfile holds only that run's series.
func NewRunMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := newMetrics()
	reg.MustRegister(m.collectors()...)
	m.gatherer = reg
	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return NewRunMetrics()
}

// WriteTextfile writes the registry in the Prometheus text format to path,
// replacing it atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.gatherer); err != nil {
		return eris.Wrapf(err, "metrics: write %s", path)
	}
	return nil
}

// Handler serves the registry the metrics were registered with.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// ObserveRun records the outcome of one pipeline run.
func (m *Metrics) ObserveRun(pipeline, status string, elapsed time.Duration, cells int) {
	if m == nil {
		return
	}
	m.PipelineRuns.WithLabelValues(pipeline, status).Inc()
	m.PipelineDuration.WithLabelValues(pipeline).Observe(elapsed.Seconds())
	if cells > 0 {
		m.CellsProcessed.WithLabelValues(pipeline).Add(float64(cells))
	}
}
