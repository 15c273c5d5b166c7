// Package metrics collects ledger, preset, MFA and send counters on a
// private Prometheus registry.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "payflow"

// Metrics holds the payflow collectors. It satisfies the observer interfaces
// of the ledger client, the preset fetcher, the MFA controller and the send session.
type Metrics struct {
	registry *prometheus.Registry

	LedgerRequests *prometheus.CounterVec
	LedgerLatency  *prometheus.HistogramVec
	PresetPolls    *prometheus.CounterVec
	MfaChallenges  *prometheus.CounterVec
	Sends          *prometheus.CounterVec
	StaleResponses *prometheus.CounterVec
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		LedgerRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_requests_total",
			Help:      "Ledger service requests by operation and outcome.",
		}, []string{"operation", "outcome"}),
		LedgerLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ledger_request_seconds",
			Help:      "Ledger service request latency.",
			Buckets:   []float64{0.1, 0.3, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"operation"}),
		PresetPolls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "preset_polls_total",
			Help:      "Fee preset fetch results.",
		}, []string{"result"}),
		MfaChallenges: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mfa_challenges_total",
			Help:      "MFA challenge outcomes by action.",
		}, []string{"action", "outcome"}),
		Sends: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sends_total",
			Help:      "Send confirmation outcomes.",
		}, []string{"outcome"}),
		StaleResponses: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_responses_total",
			Help:      "Responses dropped because the session moved on.",
		}, []string{"kind"}),
	}
}

// Registry returns the registry, for gathering or serving.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveLedgerRequest records one ledger call.
func (m *Metrics) ObserveLedgerRequest(operation, outcome string, elapsed time.Duration) {
	m.LedgerRequests.WithLabelValues(operation, outcome).Inc()
	m.LedgerLatency.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// ObservePresetPoll records one fee preset fetch result.
func (m *Metrics) ObservePresetPoll(result string) {
	m.PresetPolls.WithLabelValues(result).Inc()
}

// ObserveChallenge records an MFA challenge transition.
func (m *Metrics) ObserveChallenge(action, outcome string) {
	m.MfaChallenges.WithLabelValues(action, outcome).Inc()
}

// ObserveSend records a send outcome.
func (m *Metrics) ObserveSend(outcome string) {
	m.Sends.WithLabelValues(outcome).Inc()
}

// ObserveStaleResponse records a dropped response.
func (m *Metrics) ObserveStaleResponse(kind string) {
	m.StaleResponses.WithLabelValues(kind).Inc()
}

// WriteTextfile writes the registry in the node_exporter textfile format.
// An empty path is a no-op.
func (m *Metrics) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}
