package service

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/mmynk/tripvault/internal/gateway"
	"github.com/mmynk/tripvault/internal/gateway/gatewaytest"
	"github.com/mmynk/tripvault/internal/metrics"
	"github.com/mmynk/tripvault/internal/vaulterr"
	"github.com/mmynk/tripvault/pkg/api"
)

func TestWebhookResponses(t *testing.T) {
	ts := setupTestServer(t)
	ctx := context.Background()
	f := ts.fixture

	created, err := ts.payment.CreatePaymentIntent(ctx, as(t, ts, f.Bob.ID, &api.CreatePaymentIntentRequest{SplitID: f.BobSplit().ID}))
	if err != nil {
		t.Fatal(err)
	}
	intentID := created.Msg.Transaction.PaymentIntentID

	signed := func(payload []byte) string {
		return gatewaytest.Sign(payload, gatewaytest.WebhookSecret, time.Now())
	}
	succeeded := gatewaytest.EventPayload("evt_ok", gateway.EventIntentSucceeded, intentID, "")

	tests := []struct {
		name      string
		payload   []byte
		signature string
		setup     func()
		want      int
	}{
		{
			name:      "missing signature",
			payload:   succeeded,
			signature: "",
			want:      http.StatusBadRequest,
		},
		{
			name:      "wrong secret",
			payload:   succeeded,
			signature: gatewaytest.Sign(succeeded, "whsec_other", time.Now()),
			want:      http.StatusBadRequest,
		},
		{
			name:      "ignored event type",
			payload:   gatewaytest.EventPayload("evt_created", gateway.EventIntentCreated, intentID, ""),
			signature: signed(gatewaytest.EventPayload("evt_created", gateway.EventIntentCreated, intentID, "")),
			want:      http.StatusOK,
		},
		{
			name:      "unknown event type",
			payload:   gatewaytest.EventPayload("evt_future", "payment_intent.partially_funded", intentID, ""),
			signature: signed(gatewaytest.EventPayload("evt_future", "payment_intent.partially_funded", intentID, "")),
			want:      http.StatusOK,
		},
		{
			name:      "intent not recorded yet",
			payload:   gatewaytest.EventPayload("evt_early", gateway.EventIntentSucceeded, "pi_unknown", ""),
			signature: signed(gatewaytest.EventPayload("evt_early", gateway.EventIntentSucceeded, "pi_unknown", "")),
			want:      http.StatusNotFound,
		},
		{
			name:      "event without intent id",
			payload:   gatewaytest.EventPayload("evt_blank", gateway.EventIntentSucceeded, "", ""),
			signature: signed(gatewaytest.EventPayload("evt_blank", gateway.EventIntentSucceeded, "", "")),
			want:      http.StatusBadRequest,
		},
		{
			name:      "processor unreachable",
			payload:   succeeded,
			signature: signed(succeeded),
			setup: func() {
				ts.processor.Succeed(intentID, 117)
				ts.processor.SetError(gatewaytest.OpRetrieveIntent, errors.New("connection reset"))
			},
			want: http.StatusBadGateway,
		},
		{
			name:      "redelivery after outage",
			payload:   succeeded,
			signature: signed(succeeded),
			setup:     func() { ts.processor.SetError(gatewaytest.OpRetrieveIntent, nil) },
			want:      http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setup != nil {
				tt.setup()
			}
			if got := ts.postRaw(t, tt.payload, tt.signature); got != tt.want {
				t.Errorf("status = %d, want %d", got, tt.want)
			}
		})
	}

	if got := testutil.ToFloat64(ts.metrics.WebhookEvents.WithLabelValues("unknown", metrics.OutcomeRejected)); got != 2 {
		t.Errorf("rejected webhooks = %v, want 2", got)
	}
	if got := testutil.ToFloat64(ts.metrics.WebhookEvents.WithLabelValues(string(gateway.EventIntentSucceeded), metrics.OutcomeRetry)); got != 2 {
		t.Errorf("retried webhooks = %v, want 2", got)
	}

	txn, err := ts.store.GetTransactionByIntent(ctx, intentID)
	if err != nil {
		t.Fatal(err)
	}
	if txn.Status != "succeeded" {
		t.Errorf("status after redelivery = %s, want succeeded", txn.Status)
	}
}

func TestWebhookRequestLimits(t *testing.T) {
	ts := setupTestServer(t)

	resp, err := http.Get(ts.url + WebhookPath)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET status = %d, want 405", resp.StatusCode)
	}

	big := bytes.Repeat([]byte("x"), 5<<10)
	if got := ts.postRaw(t, big, "t=1,v1=00"); got != http.StatusRequestEntityTooLarge {
		t.Errorf("oversized status = %d, want 413", got)
	}
}

func TestWebhookStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", vaulterr.NotFound("transaction", "pi_1"), http.StatusNotFound},
		{"gateway", vaulterr.Gateway("retrieve_payment_intent", errors.New("timeout")), http.StatusBadGateway},
		{"validation", vaulterr.Validation("bad"), http.StatusBadRequest},
		{"inconsistent", vaulterr.Inconsistent("settle payment", "", errors.New("disk full")), http.StatusInternalServerError},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := webhookStatus(tt.err); got != tt.want {
				t.Errorf("webhookStatus = %d, want %d", got, tt.want)
			}
		})
	}
}
