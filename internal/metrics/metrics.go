// Package metrics exposes the engine's Prometheus gauges/counters on a
// dedicated registry, directly following the teacher's metrics package
// shape (one package-level Registry, promauto.With(Registry) builders
// grouped by concern).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry is the custom prometheus registry for this engine's metrics.
var Registry = prometheus.NewRegistry()

var (
	// ProposalsTotal counts proposals emitted, labeled by strategy and symbol.
	ProposalsTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "optionsengine",
			Subsystem: "brain",
			Name:      "proposals_total",
			Help:      "Total proposals emitted by the strategy gates",
		},
		[]string{"strategy", "symbol", "side"},
	)

	// ProposalOutcomeTotal counts Gate responses to proposals.
	ProposalOutcomeTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "optionsengine",
			Subsystem: "gate",
			Name:      "proposal_outcome_total",
			Help:      "Proposal outcomes by status",
		},
		[]string{"status", "reason"},
	)

	// OpenPositions is the current count of tracked positions by symbol.
	OpenPositions = promauto.With(Registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "optionsengine",
			Subsystem: "brain",
			Name:      "open_positions",
			Help:      "Currently tracked open positions",
		},
		[]string{"symbol", "strategy"},
	)

	// PositionPnLPercent is the latest pnl_pct seen per tracked trade.
	PositionPnLPercent = promauto.With(Registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "optionsengine",
			Subsystem: "brain",
			Name:      "position_pnl_percent",
			Help:      "Latest P&L percent per tracked trade",
		},
		[]string{"trade_id", "symbol"},
	)

	// OrderChaseAttempts counts cancel/resubmit cycles during order chasing.
	OrderChaseAttempts = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "optionsengine",
			Subsystem: "brain",
			Name:      "order_chase_attempts_total",
			Help:      "Order chase cancel/resubmit attempts",
		},
		[]string{"symbol", "reason"},
	)

	// ReconciliationDrift counts ghost-position removals and OPENING→OPEN promotions.
	ReconciliationDrift = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "optionsengine",
			Subsystem: "brain",
			Name:      "reconciliation_drift_total",
			Help:      "Reconciliation actions taken against broker truth",
		},
		[]string{"action"},
	)

	// HeartbeatAgeSeconds is the age of the last heartbeat observed by the Gate.
	HeartbeatAgeSeconds = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: "optionsengine",
			Subsystem: "gate",
			Name:      "heartbeat_age_seconds",
			Help:      "Seconds since the last heartbeat was received",
		},
	)

	// SystemLocked is 1 when the Gate is LOCKED, 0 when NORMAL.
	SystemLocked = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: "optionsengine",
			Subsystem: "gate",
			Name:      "system_locked",
			Help:      "1 if the gate is locked, 0 otherwise",
		},
	)

	// DailyPnLPercent tracks the Gate's computed day P&L percentage.
	DailyPnLPercent = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: "optionsengine",
			Subsystem: "gate",
			Name:      "daily_pnl_percent",
			Help:      "Current day P&L as a percentage of start-of-day equity",
		},
	)
)
