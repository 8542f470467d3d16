// Package metrics exposes the Prometheus collectors for todo status
// transitions, deliverable verdicts, and breaker state.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// Metrics bundles every collector this repo registers.
type Metrics struct {
	TodoStatusTransitions *prometheus.CounterVec
	BlockersOpen          *prometheus.GaugeVec
	DeliverableVerdicts   *prometheus.CounterVec
	CircuitBreakerState   *prometheus.GaugeVec
	AnalysisDuration      *prometheus.HistogramVec
}

// New constructs and registers every collector against reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TodoStatusTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "taskforge",
			Subsystem: "todograph",
			Name:      "status_transitions_total",
			Help:      "Count of todo status transitions by from/to state.",
		}, []string{"from", "to"}),
		BlockersOpen: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "taskforge",
			Subsystem: "todograph",
			Name:      "blockers_open",
			Help:      "Current count of open blockers by severity.",
		}, []string{"severity"}),
		DeliverableVerdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "taskforge",
			Subsystem: "deliverable",
			Name:      "verdicts_total",
			Help:      "Count of deliverable quality verdicts.",
		}, []string{"verdict"}),
		CircuitBreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "taskforge",
			Subsystem: "dependency",
			Name:      "circuit_breaker_state",
			Help:      "0=closed, 1=half-open, 2=open.",
		}, []string{"breaker"}),
		AnalysisDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "taskforge",
			Subsystem: "analysis",
			Name:      "stage_duration_seconds",
			Help:      "Duration of each analysis pipeline stage.",
		}, []string{"stage"}),
	}

	reg.MustRegister(
		m.TodoStatusTransitions,
		m.BlockersOpen,
		m.DeliverableVerdicts,
		m.CircuitBreakerState,
		m.AnalysisDuration,
	)
	return m
}

// Snapshot gathers every registered metric family as raw protobuf
// structs, for callers (e.g. a diagnostics endpoint) that need the typed
// representation rather than the text exposition format.
func Snapshot(gatherer prometheus.Gatherer) ([]*dto.MetricFamily, error) {
	return gatherer.Gather()
}
