package service

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/mmynk/tripvault/internal/gateway"
	"github.com/mmynk/tripvault/internal/metrics"
	"github.com/mmynk/tripvault/internal/reconcile"
	"github.com/mmynk/tripvault/internal/vaulterr"
)

// WebhookPath is where the processor delivers events.
const WebhookPath = "/webhooks/stripe"

// WebhookHandler receives processor events. A 2xx response acknowledges the
// event; anything else makes the processor deliver it again later.
type WebhookHandler struct {
	client   *gateway.Client
	engine   *reconcile.Engine
	metrics  *metrics.Metrics
	maxBytes int64
}

// NewWebhookHandler creates a WebhookHandler. m may be nil.
func NewWebhookHandler(client *gateway.Client, engine *reconcile.Engine, m *metrics.Metrics, maxBytes int64) *WebhookHandler {
	return &WebhookHandler{client: client, engine: engine, metrics: m, maxBytes: maxBytes}
}

func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			slog.Warn("Webhook body too large", "limit", h.maxBytes)
			http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	event, err := h.client.ParseWebhook(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		slog.Warn("Rejected webhook", "error", err)
		h.metrics.Webhook("unknown", metrics.OutcomeRejected)
		http.Error(w, "invalid webhook", http.StatusBadRequest)
		return
	}

	if err := h.engine.HandleEvent(r.Context(), event); err != nil {
		status := webhookStatus(err)
		if status >= http.StatusInternalServerError {
			slog.Error("Webhook event failed", "event_id", event.ID, "event_type", event.Type, "status", status, "error", err)
		}
		http.Error(w, http.StatusText(status), status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"received":true}`))
}

// webhookStatus picks the response for an event the engine could not apply.
// An unknown intent gets 404 so that an event arriving before its
// transaction is recorded is redelivered.
func webhookStatus(err error) int {
	switch {
	case vaulterr.IsNotFound(err):
		return http.StatusNotFound
	case vaulterr.IsGateway(err):
		return http.StatusBadGateway
	case vaulterr.IsValidation(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
