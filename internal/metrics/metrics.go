// Package metrics holds the Prometheus collectors for the game server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fightclub"

type Metrics struct {
	sessionsCreated prometheus.Counter
	phasesCompleted *prometheus.CounterVec
	gateRedirects   *prometheus.CounterVec
	roundOutcomes   *prometheus.CounterVec
	backendCalls    *prometheus.HistogramVec
	wsClients       prometheus.Gauge
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
}

// MustNewMetrics builds and registers the collectors. Registration errors
// panic, so pass a fresh registry in tests.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		sessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_created_total",
			Help:      "Game sessions started.",
		}),
		phasesCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "phases_completed_total",
			Help:      "Phase completions by phase.",
		}, []string{"phase"}),
		gateRedirects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gate_redirects_total",
			Help:      "Navigations the phase gate refused, by requested phase.",
		}, []string{"phase"}),
		roundOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "round_outcomes_total",
			Help:      "Settled rounds by outcome and whether the local scorer was used.",
		}, []string{"outcome", "degraded"}),
		backendCalls: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "call_duration_seconds",
			Help:      "AI backend call latency by outcome.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 20, 40},
		}, []string{"outcome"}),
		wsClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ws",
			Name:      "clients",
			Help:      "Connected live session clients.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route template, method and status.",
		}, []string{"route", "method", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route template.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
	reg.MustRegister(
		m.sessionsCreated, m.phasesCompleted, m.gateRedirects, m.roundOutcomes,
		m.backendCalls, m.wsClients, m.httpRequests, m.httpDuration,
	)
	return m
}

func (m *Metrics) SessionCreated()             { m.sessionsCreated.Inc() }
func (m *Metrics) PhaseCompleted(phase string) { m.phasesCompleted.WithLabelValues(phase).Inc() }
func (m *Metrics) GateRedirect(phase string)   { m.gateRedirects.WithLabelValues(phase).Inc() }

func (m *Metrics) RoundOutcome(outcome string, degraded bool) {
	m.roundOutcomes.WithLabelValues(outcome, strconv.FormatBool(degraded)).Inc()
}

func (m *Metrics) BackendCall(outcome string, took time.Duration) {
	m.backendCalls.WithLabelValues(outcome).Observe(took.Seconds())
}

func (m *Metrics) ClientConnected()    { m.wsClients.Inc() }
func (m *Metrics) ClientDisconnected() { m.wsClients.Dec() }

func (m *Metrics) ObserveRequest(route, method string, status int, took time.Duration) {
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(took.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
