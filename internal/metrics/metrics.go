// Package metrics exposes Prometheus counters for HTTP traffic and the quiz
// session lifecycle.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"wastequiz/internal/quiz"
)

const namespace = "wastequiz"

type Metrics struct {
	registry *prometheus.Registry

	RequestCounter   *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	SessionsStarted     prometheus.Counter
	StartConflicts      prometheus.Counter
	SessionsCompleted   *prometheus.CounterVec
	CertificateFailures prometheus.Counter
}

var _ quiz.Recorder = (*Metrics)(nil)

// New registers every collector on a private registry so tests and multiple
// servers in one process never collide on the global one.
func New(subsystem string) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		RequestCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		RequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "requests_in_flight",
				Help:      "Number of HTTP requests currently being processed",
			},
		),
		SessionsStarted: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "sessions_started_total",
				Help:      "Quiz sessions started",
			},
		),
		StartConflicts: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "session_start_conflicts_total",
				Help:      "Start requests rejected because an unfinished session exists",
			},
		),
		SessionsCompleted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "sessions_completed_total",
				Help:      "Quiz sessions completed, by completion kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		CertificateFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "certificate_failures_total",
				Help:      "Passed sessions completed without a certificate",
			},
		),
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) RequestStarted() {
	m.RequestsInFlight.Inc()
}

func (m *Metrics) RequestFinished(method string, status int, elapsed time.Duration) {
	m.RequestsInFlight.Dec()
	m.RequestCounter.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

func (m *Metrics) SessionStarted() {
	m.SessionsStarted.Inc()
}

func (m *Metrics) StartConflict() {
	m.StartConflicts.Inc()
}

func (m *Metrics) SessionCompleted(kind quiz.CompletionKind, passed bool) {
	outcome := "failed"
	if passed {
		outcome = "passed"
	}
	m.SessionsCompleted.WithLabelValues(string(kind), outcome).Inc()
}

func (m *Metrics) CertificateFailed() {
	m.CertificateFailures.Inc()
}
