// Package metrics exposes Prometheus counters for the chore workflow.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Transitions counts successful state-machine operations by name
	// (claim, approve, reject, unclaim, reassign, reset, close_claiming,
	// reward_claim, ...).
	Transitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "choretab_transitions_total",
		Help: "Successful workflow transitions by operation.",
	}, []string{"op"})

	// SweepRuns counts background job executions by job name.
	SweepRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "choretab_sweep_runs_total",
		Help: "Background job runs by job.",
	}, []string{"job"})

	// SweepErrors counts background job failures by job name.
	SweepErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "choretab_sweep_errors_total",
		Help: "Background job failures by job.",
	}, []string{"job"})

	// ImbalancesDetected counts users whose stored balance diverged from
	// the ledger sum during an audit.
	ImbalancesDetected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "choretab_imbalances_detected_total",
		Help: "Balance audit mismatches detected.",
	})

	// EventsEmitted counts domain events handed to the sink fanout.
	EventsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "choretab_events_emitted_total",
		Help: "Domain events emitted by type.",
	}, []string{"type"})
)
