package queryserver

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bf2ms/queryserver/pkg/registry"
)

// Metrics holds Prometheus metric descriptors for the query core.
type Metrics struct {
	reg *registry.Registry

	sessionsTotal        *prometheus.CounterVec
	registrySize         prometheus.GaugeFunc
	evaluatorErrorsTotal prometheus.Counter
	encodeDuration       prometheus.Histogram
}

// NewMetrics creates and registers Prometheus metrics for the query core.
func NewMetrics(reg *registry.Registry) *Metrics {
	m := &Metrics{
		reg: reg,
		sessionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "queryserver_sessions_total",
			Help: "Total sessions handled, by outcome.",
		}, []string{"outcome"}),
		evaluatorErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "queryserver_evaluator_errors_total",
			Help: "Total filters rejected by the evaluator (parse errors or non-filterable identifier references).",
		}),
		encodeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "queryserver_encode_duration_seconds",
			Help:    "Time spent encoding and encrypting one response blob.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	m.registrySize = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "queryserver_registry_size",
		Help: "Number of servers currently tracked by the registry.",
	}, func() float64 { return float64(reg.Len()) })

	prometheus.MustRegister(
		m.sessionsTotal,
		m.registrySize,
		m.evaluatorErrorsTotal,
		m.encodeDuration,
	)
	return m
}

// SessionOutcome records the terminal outcome of one session.
func (m *Metrics) SessionOutcome(outcome string) {
	m.sessionsTotal.WithLabelValues(outcome).Inc()
}

// EvaluatorError records one EvaluatorError (spec.md §7).
func (m *Metrics) EvaluatorError() {
	m.evaluatorErrorsTotal.Inc()
}

// ObserveEncodeDuration records the wall time spent in C3/C4 for one query.
func (m *Metrics) ObserveEncodeDuration(d time.Duration) {
	m.encodeDuration.Observe(d.Seconds())
}

// Handler returns an http.Handler serving the registered metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}
