package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Webhook("payment_intent.succeeded", OutcomeHandled)
	m.Webhook("payment_intent.succeeded", OutcomeHandled)
	m.Webhook("charge.succeeded", OutcomeIgnored)
	m.Transition("succeeded")
	m.GatewayCall("retrieve_intent", time.Now(), nil)
	m.GatewayCall("retrieve_intent", time.Now(), errors.New("boom"))
	m.UnknownFee()
	m.DuplicateSettlement()

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"handled webhooks", testutil.ToFloat64(m.WebhookEvents.WithLabelValues("payment_intent.succeeded", OutcomeHandled)), 2},
		{"ignored webhooks", testutil.ToFloat64(m.WebhookEvents.WithLabelValues("charge.succeeded", OutcomeIgnored)), 1},
		{"transitions", testutil.ToFloat64(m.Transitions.WithLabelValues("succeeded")), 1},
		{"gateway ok", testutil.ToFloat64(m.GatewayCalls.WithLabelValues("retrieve_intent", "ok")), 1},
		{"gateway error", testutil.ToFloat64(m.GatewayCalls.WithLabelValues("retrieve_intent", "error")), 1},
		{"unknown fees", testutil.ToFloat64(m.UnknownFees), 1},
		{"duplicates", testutil.ToFloat64(m.DuplicateSettlements), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}

	if n := testutil.CollectAndCount(m.GatewayLatency); n != 1 {
		t.Errorf("expected 1 latency series, got %d", n)
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.Webhook("x", OutcomeHandled)
	m.Transition("failed")
	m.GatewayCall("op", time.Now(), nil)
	m.UnknownFee()
	m.DuplicateSettlement()
}
