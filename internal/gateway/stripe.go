package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

// Ensure StripeProcessor implements Processor
var _ Processor = (*StripeProcessor)(nil)

// StripeConfig configures a StripeProcessor.
type StripeConfig struct {
	SecretKey     string
	WebhookSecret string

	// APIURL overrides the API base URL. Empty uses Stripe's.
	APIURL string

	// HTTPClient is used for API calls. Nil uses a default client.
	HTTPClient *http.Client

	Logger *slog.Logger
}

// StripeProcessor implements Processor with the Stripe API.
type StripeProcessor struct {
	api           *client.API
	webhookSecret string
}

// NewStripeProcessor creates a processor with its own backends. It does not
// touch stripe-go's package-level key or backends.
func NewStripeProcessor(cfg StripeConfig) (*StripeProcessor, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("stripe secret key is required")
	}
	if cfg.WebhookSecret == "" {
		return nil, errors.New("stripe webhook secret is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	backendConfig := &stripe.BackendConfig{
		HTTPClient:    cfg.HTTPClient,
		LeveledLogger: &leveledLogger{logger: logger},
	}
	if cfg.APIURL != "" {
		backendConfig.URL = stripe.String(cfg.APIURL)
	}
	api := stripe.GetBackendWithConfig(stripe.APIBackend, backendConfig)
	uploads := stripe.GetBackendWithConfig(stripe.UploadsBackend, &stripe.BackendConfig{
		HTTPClient:    cfg.HTTPClient,
		LeveledLogger: backendConfig.LeveledLogger,
	})

	sc := &client.API{}
	sc.Init(cfg.SecretKey, &stripe.Backends{API: api, Connect: api, Uploads: uploads})
	return &StripeProcessor{api: sc, webhookSecret: cfg.WebhookSecret}, nil
}

// CreateCustomer creates a Stripe customer tagged with the local user ID.
func (p *StripeProcessor) CreateCustomer(ctx context.Context, params CustomerParams) (string, error) {
	cp := &stripe.CustomerParams{Name: stripe.String(params.Name)}
	if params.Email != "" {
		cp.Email = stripe.String(params.Email)
	}
	cp.Context = ctx
	cp.AddMetadata("vault_user_id", params.UserID)
	if params.IdempotencyKey != "" {
		cp.SetIdempotencyKey(params.IdempotencyKey)
	}

	cus, err := p.api.Customers.New(cp)
	if err != nil {
		return "", err
	}
	return cus.ID, nil
}

// CreatePaymentIntent creates a Stripe payment intent with automatic payment methods.
func (p *StripeProcessor) CreatePaymentIntent(ctx context.Context, params IntentParams) (*Intent, error) {
	ip := &stripe.PaymentIntentParams{
		Amount:      stripe.Int64(params.Amount),
		Currency:    stripe.String(strings.ToLower(params.Currency)),
		Description: stripe.String(params.Description),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	if params.CustomerID != "" {
		ip.Customer = stripe.String(params.CustomerID)
	}
	ip.Context = ctx
	for k, v := range params.Metadata {
		ip.AddMetadata(k, v)
	}
	if params.IdempotencyKey != "" {
		ip.SetIdempotencyKey(params.IdempotencyKey)
	}

	pi, err := p.api.PaymentIntents.New(ip)
	if err != nil {
		return nil, err
	}
	return toIntent(pi), nil
}

// RetrievePaymentIntent fetches an intent with its latest charge expanded.
func (p *StripeProcessor) RetrievePaymentIntent(ctx context.Context, intentID string) (*Intent, error) {
	ip := &stripe.PaymentIntentParams{}
	ip.Context = ctx
	ip.AddExpand("latest_charge")

	pi, err := p.api.PaymentIntents.Get(intentID, ip)
	if err != nil {
		return nil, err
	}
	return toIntent(pi), nil
}

// RetrieveFee fetches a balance transaction and returns its fee.
func (p *StripeProcessor) RetrieveFee(ctx context.Context, balanceTransactionID string) (int64, error) {
	bp := &stripe.BalanceTransactionParams{}
	bp.Context = ctx

	bt, err := p.api.BalanceTransactions.Get(balanceTransactionID, bp)
	if err != nil {
		return 0, err
	}
	return bt.Fee, nil
}

// ParseWebhook verifies a Stripe-Signature header and decodes the event.
func (p *StripeProcessor) ParseWebhook(payload []byte, signature string) (*Event, error) {
	return ParseStripeEvent(payload, signature, p.webhookSecret)
}

// ParseStripeEvent verifies payload against secret and decodes the fields
// the reconciliation engine needs.
func ParseStripeEvent(payload []byte, signature, secret string) (*Event, error) {
	evt, err := webhook.ConstructEventWithOptions(payload, signature, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	event := &Event{ID: evt.ID, Type: EventType(evt.Type)}
	if evt.Data == nil || len(evt.Data.Raw) == 0 {
		return event, nil
	}

	switch {
	case strings.HasPrefix(string(evt.Type), "payment_intent."):
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(evt.Data.Raw, &pi); err != nil {
			return nil, fmt.Errorf("failed to decode payment intent: %w", err)
		}
		event.IntentID = pi.ID
		if pi.LastPaymentError != nil {
			event.ErrorMessage = pi.LastPaymentError.Msg
		}
	case strings.HasPrefix(string(evt.Type), "charge."):
		var ch stripe.Charge
		if err := json.Unmarshal(evt.Data.Raw, &ch); err != nil {
			return nil, fmt.Errorf("failed to decode charge: %w", err)
		}
		if ch.PaymentIntent != nil {
			event.IntentID = ch.PaymentIntent.ID
		}
	}
	return event, nil
}

func toIntent(pi *stripe.PaymentIntent) *Intent {
	intent := &Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       IntentStatus(pi.Status),
		Amount:       pi.Amount,
		Currency:     string(pi.Currency),
	}
	if ch := pi.LatestCharge; ch != nil {
		intent.ChargeID = ch.ID
		if ch.BalanceTransaction != nil {
			intent.BalanceTransactionID = ch.BalanceTransaction.ID
		}
	}
	if pi.LastPaymentError != nil {
		intent.LastError = pi.LastPaymentError.Msg
	}
	return intent
}

// leveledLogger routes stripe-go's client logging through slog.
type leveledLogger struct {
	logger *slog.Logger
}

func (l *leveledLogger) Debugf(format string, v ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, v...), "component", "stripe")
}

func (l *leveledLogger) Infof(format string, v ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, v...), "component", "stripe")
}

func (l *leveledLogger) Warnf(format string, v ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, v...), "component", "stripe")
}

func (l *leveledLogger) Errorf(format string, v ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, v...), "component", "stripe")
}
