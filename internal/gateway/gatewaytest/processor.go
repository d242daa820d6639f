// Package gatewaytest provides an in-memory payment processor for tests.
package gatewaytest

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/mmynk/tripvault/internal/gateway"
)

// WebhookSecret is the signing secret the fake verifies webhooks with.
const WebhookSecret = "whsec_test"

// Ensure Processor implements gateway.Processor
var _ gateway.Processor = (*Processor)(nil)

// Processor is a concurrency-safe fake of the payment processor. Intents
// start in requires_payment_method and move when the test calls Succeed,
// Fail or Cancel. Reused idempotency keys return the original object.
type Processor struct {
	mu sync.Mutex

	customers map[string]string // idempotency key -> customer ID
	intents   map[string]*gateway.Intent
	byKey     map[string]string // idempotency key -> intent ID
	fees      map[string]int64  // balance transaction ID -> fee
	seq       int

	errs  map[string]error
	delay map[string]time.Duration
	calls map[string]int
}

// New returns an empty fake processor.
func New() *Processor {
	return &Processor{
		customers: make(map[string]string),
		intents:   make(map[string]*gateway.Intent),
		byKey:     make(map[string]string),
		fees:      make(map[string]int64),
		errs:      make(map[string]error),
		delay:     make(map[string]time.Duration),
		calls:     make(map[string]int),
	}
}

// Operation names accepted by SetError, SetDelay and Calls.
const (
	OpCreateCustomer = "create_customer"
	OpCreateIntent   = "create_payment_intent"
	OpRetrieveIntent = "retrieve_payment_intent"
	OpRetrieveFee    = "retrieve_fee"
)

// SetError makes every call to op fail with err until cleared with nil.
func (p *Processor) SetError(op string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err == nil {
		delete(p.errs, op)
		return
	}
	p.errs[op] = err
}

// SetDelay makes calls to op wait d, or until the call's context is done.
func (p *Processor) SetDelay(op string, d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.delay[op] = d
}

// Calls returns how many times op was invoked.
func (p *Processor) Calls(op string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[op]
}

// Intent returns a copy of a stored intent.
func (p *Processor) Intent(intentID string) (gateway.Intent, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	in, ok := p.intents[intentID]
	if !ok {
		return gateway.Intent{}, false
	}
	return *in, true
}

// Succeed moves an intent to succeeded with a charge and a balance
// transaction carrying fee.
func (p *Processor) Succeed(intentID string, fee int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	in := p.intents[intentID]
	in.Status = gateway.IntentSucceeded
	in.ChargeID = "ch_" + intentID[len("pi_"):]
	in.BalanceTransactionID = "txn_" + intentID[len("pi_"):]
	p.fees[in.BalanceTransactionID] = fee
}

// SucceedWithoutBalance moves an intent to succeeded with a charge whose
// balance transaction is not yet available.
func (p *Processor) SucceedWithoutBalance(intentID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	in := p.intents[intentID]
	in.Status = gateway.IntentSucceeded
	in.ChargeID = "ch_" + intentID[len("pi_"):]
}

// Fail records a failed attempt on an intent.
func (p *Processor) Fail(intentID, message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	in := p.intents[intentID]
	in.Status = gateway.IntentRequiresPaymentMethod
	in.LastError = message
}

// Cancel moves an intent to canceled.
func (p *Processor) Cancel(intentID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.intents[intentID].Status = gateway.IntentCanceled
}

// SetIntentStatus forces an intent's status.
func (p *Processor) SetIntentStatus(intentID string, status gateway.IntentStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.intents[intentID].Status = status
}

func (p *Processor) begin(ctx context.Context, op string) error {
	p.mu.Lock()
	p.calls[op]++
	err := p.errs[op]
	d := p.delay[op]
	p.mu.Unlock()

	if d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

// CreateCustomer returns a new customer ID, or the earlier one for a reused key.
func (p *Processor) CreateCustomer(ctx context.Context, params gateway.CustomerParams) (string, error) {
	if err := p.begin(ctx, OpCreateCustomer); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if id, ok := p.customers[params.IdempotencyKey]; ok && params.IdempotencyKey != "" {
		return id, nil
	}
	p.seq++
	id := fmt.Sprintf("cus_%d", p.seq)
	if params.IdempotencyKey != "" {
		p.customers[params.IdempotencyKey] = id
	}
	return id, nil
}

// CreatePaymentIntent stores a new intent, or returns the earlier one for a reused key.
func (p *Processor) CreatePaymentIntent(ctx context.Context, params gateway.IntentParams) (*gateway.Intent, error) {
	if err := p.begin(ctx, OpCreateIntent); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if id, ok := p.byKey[params.IdempotencyKey]; ok && params.IdempotencyKey != "" {
		in := *p.intents[id]
		return &in, nil
	}
	p.seq++
	id := "pi_" + strconv.Itoa(p.seq)
	in := &gateway.Intent{
		ID:           id,
		ClientSecret: id + "_secret_" + strconv.Itoa(p.seq),
		Status:       gateway.IntentRequiresPaymentMethod,
		Amount:       params.Amount,
		Currency:     params.Currency,
	}
	p.intents[id] = in
	if params.IdempotencyKey != "" {
		p.byKey[params.IdempotencyKey] = id
	}
	out := *in
	return &out, nil
}

// RetrievePaymentIntent returns the stored intent.
func (p *Processor) RetrievePaymentIntent(ctx context.Context, intentID string) (*gateway.Intent, error) {
	if err := p.begin(ctx, OpRetrieveIntent); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	in, ok := p.intents[intentID]
	if !ok {
		return nil, fmt.Errorf("no such payment_intent: %s", intentID)
	}
	out := *in
	return &out, nil
}

// RetrieveFee returns the fee recorded by Succeed.
func (p *Processor) RetrieveFee(ctx context.Context, balanceTransactionID string) (int64, error) {
	if err := p.begin(ctx, OpRetrieveFee); err != nil {
		return 0, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	fee, ok := p.fees[balanceTransactionID]
	if !ok {
		return 0, errors.New("no such balance_transaction: " + balanceTransactionID)
	}
	return fee, nil
}

// ParseWebhook verifies payloads signed with WebhookSecret.
func (p *Processor) ParseWebhook(payload []byte, signature string) (*gateway.Event, error) {
	return gateway.ParseStripeEvent(payload, signature, WebhookSecret)
}

// Sign returns a Stripe-Signature header for payload signed with secret at ts.
func Sign(payload []byte, secret string, ts time.Time) string {
	unix := strconv.FormatInt(ts.Unix(), 10)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(unix))
	mac.Write([]byte("."))
	mac.Write(payload)
	return "t=" + unix + ",v1=" + hex.EncodeToString(mac.Sum(nil))
}

// EventPayload builds a webhook body for an event about a payment intent.
func EventPayload(eventID string, eventType gateway.EventType, intentID, failureMessage string) []byte {
	object := fmt.Sprintf(`{"id":%q,"object":"payment_intent"`, intentID)
	if failureMessage != "" {
		object += fmt.Sprintf(`,"last_payment_error":{"message":%q}`, failureMessage)
	}
	object += "}"
	return []byte(fmt.Sprintf(`{"id":%q,"object":"event","type":%q,"data":{"object":%s}}`, eventID, eventType, object))
}
