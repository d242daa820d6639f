package gateway

import (
	"context"
	"time"

	"github.com/mmynk/tripvault/internal/metrics"
	"github.com/mmynk/tripvault/internal/vaulterr"
)

// DefaultTimeout bounds a processor call when no timeout is configured.
const DefaultTimeout = 10 * time.Second

// Client calls a Processor with a timeout per call. Failed calls are
// returned as *vaulterr.GatewayError.
type Client struct {
	processor Processor
	timeout   time.Duration
	metrics   *metrics.Metrics
}

// NewClient wraps processor. A non-positive timeout uses DefaultTimeout.
// m may be nil.
func NewClient(processor Processor, timeout time.Duration, m *metrics.Metrics) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{processor: processor, timeout: timeout, metrics: m}
}

// CreateCustomer creates a processor customer and returns its ID.
func (c *Client) CreateCustomer(ctx context.Context, params CustomerParams) (string, error) {
	var id string
	err := c.call(ctx, "create_customer", func(ctx context.Context) (err error) {
		id, err = c.processor.CreateCustomer(ctx, params)
		return err
	})
	return id, err
}

// CreatePaymentIntent creates a payment intent.
func (c *Client) CreatePaymentIntent(ctx context.Context, params IntentParams) (*Intent, error) {
	var intent *Intent
	err := c.call(ctx, "create_payment_intent", func(ctx context.Context) (err error) {
		intent, err = c.processor.CreatePaymentIntent(ctx, params)
		return err
	})
	return intent, err
}

// RetrievePaymentIntent fetches the current state of a payment intent.
func (c *Client) RetrievePaymentIntent(ctx context.Context, intentID string) (*Intent, error) {
	var intent *Intent
	err := c.call(ctx, "retrieve_payment_intent", func(ctx context.Context) (err error) {
		intent, err = c.processor.RetrievePaymentIntent(ctx, intentID)
		return err
	})
	return intent, err
}

// RetrieveFee fetches the fee of a balance transaction in minor units.
func (c *Client) RetrieveFee(ctx context.Context, balanceTransactionID string) (int64, error) {
	var fee int64
	err := c.call(ctx, "retrieve_fee", func(ctx context.Context) (err error) {
		fee, err = c.processor.RetrieveFee(ctx, balanceTransactionID)
		return err
	})
	return fee, err
}

// ParseWebhook verifies and decodes a webhook payload. It makes no network call.
func (c *Client) ParseWebhook(payload []byte, signature string) (*Event, error) {
	return c.processor.ParseWebhook(payload, signature)
}

func (c *Client) call(ctx context.Context, op string, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	err := fn(ctx)
	c.metrics.GatewayCall(op, start, err)
	if err != nil {
		if ctx.Err() != nil && ctx.Err() != err {
			err = &timeoutError{cause: err, ctxErr: ctx.Err()}
		}
		return vaulterr.Gateway(op, err)
	}
	return nil
}

// timeoutError keeps the processor's error text while matching the
// context error with errors.Is.
type timeoutError struct {
	cause  error
	ctxErr error
}

func (e *timeoutError) Error() string   { return e.cause.Error() }
func (e *timeoutError) Unwrap() []error { return []error{e.cause, e.ctxErr} }
