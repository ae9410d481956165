// Package metrics exposes Prometheus instruments for the auth server.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Request outcomes.
const (
	OutcomeOK           = "ok"
	OutcomeConflict     = "conflict"
	OutcomeUnauthorized = "unauthorized"
	OutcomeInvalid      = "invalid"
	OutcomeUnavailable  = "unavailable"
	OutcomeError        = "error"
)

// Metrics holds the server's collectors, registered on their own registry.
type Metrics struct {
	registry *prometheus.Registry

	requests     *prometheus.CounterVec
	hashDuration *prometheus.HistogramVec
	queueDepth   prometheus.Gauge
	rejected     prometheus.Counter
}

// New creates and registers all collectors, plus the Go runtime and process
// collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_requests_total",
			Help: "Auth operations by operation and outcome.",
		}, []string{"op", "outcome"}),
		hashDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "auth_hash_duration_seconds",
			Help:    "Time spent deriving argon2id keys.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"op"}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "auth_hash_queue_depth",
			Help: "Hash jobs waiting for a worker.",
		}),
		rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "auth_hash_rejected_total",
			Help: "Hash jobs rejected because the pool was saturated.",
		}),
	}

	m.registry.MustRegister(
		m.requests,
		m.hashDuration,
		m.queueDepth,
		m.rejected,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveRequest(op, outcome string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(op, outcome).Inc()
}

func (m *Metrics) ObserveHash(op string, d time.Duration) {
	if m == nil {
		return
	}
	m.hashDuration.WithLabelValues(op).Observe(d.Seconds())
}

func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}

func (m *Metrics) IncRejected() {
	if m == nil {
		return
	}
	m.rejected.Inc()
}
