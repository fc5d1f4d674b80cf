// Package metrics exposes Prometheus instrumentation for the game server.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector the server records into.
type Metrics struct {
	registry *prometheus.Registry

	// Protocol
	Requests        *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	Rejected        *prometheus.CounterVec

	// Games
	GamesStarted   *prometheus.CounterVec
	GamesFinished  *prometheus.CounterVec
	ActiveSessions prometheus.Gauge
	TrialsScored   prometheus.Counter

	// Stream workers
	StreamWorkers prometheus.Gauge
}

// Rejection reasons for the Rejected counter.
const (
	ReasonRateLimited = "rate_limited"
	ReasonPoolFull    = "pool_full"
	ReasonTooLong     = "too_long"
	ReasonReadTimeout = "read_timeout"
)

// New registers all collectors on a fresh registry. Each call is
// independent, so tests can build as many as they need.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		Requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "codebreaker",
			Name:      "requests_total",
			Help:      "Requests answered, by channel, command and reply status",
		}, []string{"channel", "command", "status"}),
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "codebreaker",
			Name:      "request_duration_seconds",
			Help:      "Time spent turning a request into a reply",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}, []string{"channel"}),
		Rejected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "codebreaker",
			Name:      "rejected_total",
			Help:      "Requests dropped before reaching the dispatcher",
		}, []string{"channel", "reason"}),

		GamesStarted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "codebreaker",
			Name:      "games_started_total",
			Help:      "Games started, by mode",
		}, []string{"mode"}),
		GamesFinished: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "codebreaker",
			Name:      "games_finished_total",
			Help:      "Games that reached a terminal status",
		}, []string{"status"}),
		ActiveSessions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "codebreaker",
			Name:      "sessions_active",
			Help:      "Sessions currently in progress",
		}),
		TrialsScored: f.NewCounter(prometheus.CounterOpts{
			Namespace: "codebreaker",
			Name:      "trials_scored_total",
			Help:      "Trials registered and scored",
		}),

		StreamWorkers: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "codebreaker",
			Name:      "stream_workers_active",
			Help:      "Stream connections currently being served",
		}),
	}
}

// RecordRequest counts one answered request.
func (m *Metrics) RecordRequest(channel, command, status string, d time.Duration) {
	m.Requests.WithLabelValues(channel, command, status).Inc()
	m.RequestDuration.WithLabelValues(channel).Observe(d.Seconds())
}

// RecordRejected counts one dropped request.
func (m *Metrics) RecordRejected(channel, reason string) {
	m.Rejected.WithLabelValues(channel, reason).Inc()
}

// RecordGameStarted counts a new game.
func (m *Metrics) RecordGameStarted(debug bool) {
	mode := "play"
	if debug {
		mode = "debug"
	}
	m.GamesStarted.WithLabelValues(mode).Inc()
}

// RecordGameFinished counts a terminal transition.
func (m *Metrics) RecordGameFinished(status string) {
	m.GamesFinished.WithLabelValues(status).Inc()
}

// RecordTrialScored counts a registered trial.
func (m *Metrics) RecordTrialScored() {
	m.TrialsScored.Inc()
}

// SetActiveSessions sets the in-progress gauge.
func (m *Metrics) SetActiveSessions(n int) {
	m.ActiveSessions.Set(float64(n))
}

// IncStreamWorkers marks a stream worker busy.
func (m *Metrics) IncStreamWorkers() {
	m.StreamWorkers.Inc()
}

// DecStreamWorkers marks a stream worker idle.
func (m *Metrics) DecStreamWorkers() {
	m.StreamWorkers.Dec()
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
