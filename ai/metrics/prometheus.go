// Package metrics provides Prometheus metrics export for the memory and
// chat pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Exporter exports retrieval and chat metrics in Prometheus format.
// A nil *Exporter is valid and records nothing.
type Exporter struct {
	registry *prometheus.Registry

	retrievalLatency   prometheus.Histogram
	retrievalResults   prometheus.Histogram
	retrievalCandidate *prometheus.CounterVec
	retrievalDegraded  prometheus.Counter

	chatLatency  *prometheus.HistogramVec
	chatRequests *prometheus.CounterVec
}

// Config configures the Prometheus exporter.
type Config struct {
	// Registry to use (if nil, creates a new one)
	Registry *prometheus.Registry

	// Buckets for latency histograms (in seconds)
	LatencyBuckets []float64
}

// DefaultConfig returns default Prometheus configuration.
func DefaultConfig() Config {
	return Config{
		LatencyBuckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
	}
}

// NewExporter creates a new Exporter and registers its collectors.
func NewExporter(cfg Config) *Exporter {
	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	buckets := cfg.LatencyBuckets
	if len(buckets) == 0 {
		buckets = DefaultConfig().LatencyBuckets
	}

	e := &Exporter{
		registry: registry,
		retrievalLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "athena_retrieval_duration_seconds",
			Help:    "Duration of hybrid retrieval calls.",
			Buckets: buckets,
		}),
		retrievalResults: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "athena_retrieval_results",
			Help:    "Number of documents returned per retrieval call.",
			Buckets: []float64{0, 1, 2, 4, 6, 8, 12, 16, 24},
		}),
		retrievalCandidate: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "athena_retrieval_candidates_total",
			Help: "Candidates produced per generator.",
		}, []string{"source"}),
		retrievalDegraded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "athena_retrieval_degraded_total",
			Help: "Retrieval calls that degraded to an empty result set.",
		}),
		chatLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "athena_chat_duration_seconds",
			Help:    "Duration of chat requests.",
			Buckets: buckets,
		}, []string{"path"}),
		chatRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "athena_chat_requests_total",
			Help: "Chat requests by path and outcome.",
		}, []string{"path", "status"}),
	}

	registry.MustRegister(
		e.retrievalLatency,
		e.retrievalResults,
		e.retrievalCandidate,
		e.retrievalDegraded,
		e.chatLatency,
		e.chatRequests,
	)
	return e
}

// RecordRetrieval records one retrieval call.
func (e *Exporter) RecordRetrieval(duration time.Duration, vectorCandidates, keywordCandidates, results int, degraded bool) {
	if e == nil {
		return
	}
	e.retrievalLatency.Observe(duration.Seconds())
	e.retrievalResults.Observe(float64(results))
	e.retrievalCandidate.WithLabelValues("vector").Add(float64(vectorCandidates))
	e.retrievalCandidate.WithLabelValues("keyword").Add(float64(keywordCandidates))
	if degraded {
		e.retrievalDegraded.Inc()
	}
}

// RecordChat records one chat request.
func (e *Exporter) RecordChat(path string, duration time.Duration, success bool) {
	if e == nil {
		return
	}
	status := "ok"
	if !success {
		status = "error"
	}
	e.chatLatency.WithLabelValues(path).Observe(duration.Seconds())
	e.chatRequests.WithLabelValues(path, status).Inc()
}

// Handler returns the HTTP handler serving the metrics endpoint.
func (e *Exporter) Handler() http.Handler {
	if e == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}
