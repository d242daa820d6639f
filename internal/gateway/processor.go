// Package gateway adapts the external payment processor to the ledger.
//
// Processor is the outbound boundary. StripeProcessor implements it on
// stripe-go; gatewaytest.Processor is an in-memory stand-in for tests.
// Client wraps a Processor with per-call timeouts, metrics and GatewayError
// classification, and Adapter creates customers and payment intents against
// the ledger store.
package gateway

import (
	"context"
	"errors"
)

// ErrInvalidSignature is returned by ParseWebhook when a payload fails verification.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// IntentStatus mirrors the processor's payment intent status.
type IntentStatus string

const (
	IntentRequiresPaymentMethod IntentStatus = "requires_payment_method"
	IntentRequiresConfirmation  IntentStatus = "requires_confirmation"
	IntentRequiresAction        IntentStatus = "requires_action"
	IntentProcessing            IntentStatus = "processing"
	IntentSucceeded             IntentStatus = "succeeded"
	IntentCanceled              IntentStatus = "canceled"
)

// EventType is a processor webhook event type.
type EventType string

const (
	EventIntentCreated   EventType = "payment_intent.created"
	EventIntentSucceeded EventType = "payment_intent.succeeded"
	EventIntentFailed    EventType = "payment_intent.payment_failed"
	EventIntentCanceled  EventType = "payment_intent.canceled"
	EventChargeSucceeded EventType = "charge.succeeded"
)

// CustomerParams describes a processor customer to create.
type CustomerParams struct {
	UserID         string
	Email          string
	Name           string
	IdempotencyKey string
}

// IntentParams describes a payment intent to create.
type IntentParams struct {
	// Amount is in the currency's minor unit.
	Amount         int64
	Currency       string
	CustomerID     string
	Description    string
	Metadata       map[string]string
	IdempotencyKey string
}

// Intent is the processor's view of a payment intent.
type Intent struct {
	ID           string
	ClientSecret string
	Status       IntentStatus
	Amount       int64
	Currency     string

	// ChargeID and BalanceTransactionID are set once the intent has a charge.
	ChargeID             string
	BalanceTransactionID string

	// LastError is the processor's message for the most recent failed attempt.
	LastError string
}

// Event is a verified webhook event.
type Event struct {
	ID   string
	Type EventType

	// IntentID is the payment intent the event refers to, when it has one.
	IntentID string

	// ErrorMessage carries the failure reason of payment_failed events.
	ErrorMessage string
}

// Processor is the payment processor boundary.
type Processor interface {
	CreateCustomer(ctx context.Context, params CustomerParams) (string, error)
	CreatePaymentIntent(ctx context.Context, params IntentParams) (*Intent, error)
	RetrievePaymentIntent(ctx context.Context, intentID string) (*Intent, error)

	// RetrieveFee returns the processor fee of a balance transaction in minor units.
	RetrieveFee(ctx context.Context, balanceTransactionID string) (int64, error)

	// ParseWebhook verifies the signature header and decodes the event.
	// Verification failures wrap ErrInvalidSignature.
	ParseWebhook(payload []byte, signature string) (*Event, error)
}
