// Package metrics exposes Prometheus instruments for the session subsystem.
// A nil *Metrics is valid and records nothing, which keeps tests free of registry plumbing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace prefixes every metric name.
const Namespace = "boardgate"

// Metrics holds the session subsystem instruments.
type Metrics struct {
	refreshTotal     *prometheus.CounterVec
	gateDecisions    *prometheus.CounterVec
	fetchRetries     *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec
}

// New registers the instruments with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		refreshTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "refresh_total",
			Help:      "Refresh operations by caller and outcome (ok, expired, transient).",
		}, []string{"caller", "outcome"}),

		gateDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "gate_decisions_total",
			Help:      "Request gate decisions by session state and action.",
		}, []string{"state", "action"}),

		fetchRetries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "fetch_retries_total",
			Help:      "Authenticated fetch retries by reason.",
		}, []string{"reason"}),

		upstreamDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "External API call latency by operation and status class.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "status"}),
	}
}

// Refresh records a refresh outcome for caller (gate, fetch, route, client).
func (m *Metrics) Refresh(caller, outcome string) {
	if m == nil {
		return
	}
	m.refreshTotal.WithLabelValues(caller, outcome).Inc()
}

// GateDecision records what the request gate did for a session state.
func (m *Metrics) GateDecision(state, action string) {
	if m == nil {
		return
	}
	m.gateDecisions.WithLabelValues(state, action).Inc()
}

// FetchRetry records a retried authenticated fetch.
func (m *Metrics) FetchRetry(reason string) {
	if m == nil {
		return
	}
	m.fetchRetries.WithLabelValues(reason).Inc()
}

// ObserveUpstream records the latency of one external API call.
func (m *Metrics) ObserveUpstream(operation, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.upstreamDuration.WithLabelValues(operation, status).Observe(elapsed.Seconds())
}
