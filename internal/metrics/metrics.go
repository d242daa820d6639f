// Package metrics defines the Prometheus collectors for payment reconciliation.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "tripvault"

// Webhook outcomes.
const (
	OutcomeHandled  = "handled"
	OutcomeIgnored  = "ignored"
	OutcomeRejected = "rejected"
	OutcomeRetry    = "retry"
)

// Metrics holds the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	WebhookEvents        *prometheus.CounterVec
	Transitions          *prometheus.CounterVec
	GatewayCalls         *prometheus.CounterVec
	GatewayLatency       *prometheus.HistogramVec
	UnknownFees          prometheus.Counter
	DuplicateSettlements prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		WebhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_events_total",
			Help:      "Processor webhook events received, by event type and outcome.",
		}, []string{"type", "outcome"}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transaction_transitions_total",
			Help:      "Transactions moved out of pending, by resulting status.",
		}, []string{"status"}),
		GatewayCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_calls_total",
			Help:      "Payment processor calls, by operation and result.",
		}, []string{"op", "result"}),
		GatewayLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "gateway_call_duration_seconds",
			Help:      "Payment processor call latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		UnknownFees: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unknown_fees_total",
			Help:      "Succeeded transactions recorded without a known processor fee.",
		}),
		DuplicateSettlements: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicate_settlements_total",
			Help:      "Succeeded transactions whose split was already paid by another transaction.",
		}),
	}
	reg.MustRegister(m.WebhookEvents, m.Transitions, m.GatewayCalls, m.GatewayLatency,
		m.UnknownFees, m.DuplicateSettlements)
	return m
}

// Webhook counts one webhook event.
func (m *Metrics) Webhook(eventType, outcome string) {
	if m == nil {
		return
	}
	m.WebhookEvents.WithLabelValues(eventType, outcome).Inc()
}

// Transition counts a transaction leaving pending.
func (m *Metrics) Transition(status string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(status).Inc()
}

// GatewayCall records one processor call that started at start.
func (m *Metrics) GatewayCall(op string, start time.Time, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.GatewayCalls.WithLabelValues(op, result).Inc()
	m.GatewayLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// UnknownFee counts a settlement recorded without a fee.
func (m *Metrics) UnknownFee() {
	if m == nil {
		return
	}
	m.UnknownFees.Inc()
}

// DuplicateSettlement counts a success that found its split already paid.
func (m *Metrics) DuplicateSettlement() {
	if m == nil {
		return
	}
	m.DuplicateSettlements.Inc()
}
