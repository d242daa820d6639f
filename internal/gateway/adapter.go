package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mmynk/tripvault/internal/clock"
	"github.com/mmynk/tripvault/internal/models"
	"github.com/mmynk/tripvault/internal/money"
	"github.com/mmynk/tripvault/internal/storage"
	"github.com/mmynk/tripvault/internal/vaulterr"
)

// PaymentIntent is a pending transaction with the secret a client needs to
// complete it.
type PaymentIntent struct {
	Transaction  *models.Transaction
	ClientSecret string

	// Reused is true when an existing pending attempt was returned.
	Reused bool
}

// Adapter creates processor customers and payment intents for ledger splits.
type Adapter struct {
	store  storage.Store
	client *Client
	clock  clock.Clock
	logger *slog.Logger
}

// NewAdapter creates an Adapter.
func NewAdapter(store storage.Store, client *Client, clk clock.Clock, logger *slog.Logger) *Adapter {
	return &Adapter{store: store, client: client, clock: clk, logger: logger}
}

// EnsureCustomer returns the processor customer for user, creating and
// recording one if none exists.
func (a *Adapter) EnsureCustomer(ctx context.Context, user *models.User) (string, error) {
	mapping, err := a.store.GetCustomerMapping(ctx, user.ID)
	if err == nil {
		return mapping.StripeCustomerID, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return "", fmt.Errorf("failed to look up customer: %w", err)
	}

	customerID, err := a.client.CreateCustomer(ctx, CustomerParams{
		UserID:         user.ID,
		Email:          user.Email,
		Name:           user.Name,
		IdempotencyKey: "customer-" + user.ID,
	})
	if err != nil {
		return "", err
	}

	err = a.store.CreateCustomerMapping(ctx, &models.CustomerMapping{
		UserID:           user.ID,
		StripeCustomerID: customerID,
		Email:            user.Email,
		CreatedAt:        a.clock.Now(),
	})
	if errors.Is(err, storage.ErrConflict) {
		// A concurrent request recorded the mapping first.
		mapping, err := a.store.GetCustomerMapping(ctx, user.ID)
		if err != nil {
			return "", vaulterr.Inconsistent("ensure customer", "customer "+customerID, err)
		}
		return mapping.StripeCustomerID, nil
	}
	if err != nil {
		return "", vaulterr.Inconsistent("ensure customer", "customer "+customerID+" created but not recorded", err)
	}
	a.logger.Info("Created processor customer", "user_id", user.ID, "customer_id", customerID)
	return customerID, nil
}

// CreatePaymentIntent starts payment of splitID by payerID. A split with a
// pending attempt gets that attempt back rather than a second one.
func (a *Adapter) CreatePaymentIntent(ctx context.Context, splitID, payerID string) (*PaymentIntent, error) {
	split, err := a.store.GetSplit(ctx, splitID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, vaulterr.NotFound("split", splitID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get split: %w", err)
	}

	amount, err := payable(split, payerID)
	if err != nil {
		return nil, err
	}

	pending, err := a.store.GetPendingTransactionForSplit(ctx, splitID)
	if err == nil {
		return a.resume(ctx, pending)
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("failed to check pending transaction: %w", err)
	}

	payer, err := a.store.GetUser(ctx, payerID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, vaulterr.NotFound("user", payerID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payer: %w", err)
	}
	customerID, err := a.EnsureCustomer(ctx, payer)
	if err != nil {
		return nil, err
	}

	attempts, err := a.store.CountTransactionsForSplit(ctx, splitID)
	if err != nil {
		return nil, fmt.Errorf("failed to count attempts: %w", err)
	}

	intent, err := a.client.CreatePaymentIntent(ctx, IntentParams{
		Amount:      amount,
		Currency:    split.Currency,
		CustomerID:  customerID,
		Description: "Trip Vault Payment - Split #" + splitID,
		Metadata: map[string]string{
			"vault_user_id":     payerID,
			"recipient_user_id": split.RecipientID,
			"vault_split_id":    splitID,
			"trip_id":           split.TripID,
		},
		IdempotencyKey: fmt.Sprintf("split-%s-attempt-%d", splitID, attempts+1),
	})
	if err != nil {
		return nil, err
	}

	txn := &models.Transaction{
		SplitID:         splitID,
		PaymentIntentID: intent.ID,
		Amount:          split.Amount,
		Currency:        split.Currency,
		Status:          models.StatusPending,
		PayerID:         payerID,
		RecipientID:     split.RecipientID,
		TripID:          split.TripID,
		CreatedAt:       a.clock.Now(),
	}
	if err := a.store.CreateTransaction(ctx, txn); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			// An identical request won the race for the same idempotency key.
			if stored, getErr := a.store.GetTransactionByIntent(ctx, intent.ID); getErr == nil {
				return &PaymentIntent{Transaction: stored, ClientSecret: intent.ClientSecret, Reused: true}, nil
			}
		}
		a.logger.Error("Payment intent created but not recorded",
			"intent_id", intent.ID, "split_id", splitID, "error", err)
		return nil, vaulterr.Inconsistent("create payment intent", "intent "+intent.ID+" created but not recorded", err)
	}

	a.logger.Info("Created payment intent",
		"intent_id", intent.ID, "split_id", splitID, "payer_id", payerID, "amount", amount, "currency", split.Currency)
	return &PaymentIntent{Transaction: txn, ClientSecret: intent.ClientSecret}, nil
}

// resume returns an existing pending attempt with a fresh client secret.
func (a *Adapter) resume(ctx context.Context, pending *models.Transaction) (*PaymentIntent, error) {
	intent, err := a.client.RetrievePaymentIntent(ctx, pending.PaymentIntentID)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("Reusing pending payment intent", "intent_id", pending.PaymentIntentID, "split_id", pending.SplitID)
	return &PaymentIntent{Transaction: pending, ClientSecret: intent.ClientSecret, Reused: true}, nil
}

// payable checks that payerID may pay split electronically and returns the
// amount in minor units.
func payable(split *models.SplitContext, payerID string) (int64, error) {
	if split.UserID != payerID {
		return 0, vaulterr.Validation("split %s is owed by another user", split.ID)
	}
	if split.Paid {
		return 0, vaulterr.InvalidAmount("split already paid")
	}
	if split.UserID == split.RecipientID {
		return 0, vaulterr.Validation("payer and recipient are the same user")
	}
	if !split.StripePayable {
		return 0, vaulterr.Validation("split %s is not payable electronically", split.ID)
	}
	amount, err := money.ToMinor(split.Amount, split.Currency)
	if err != nil {
		return 0, vaulterr.InvalidAmount("%v", err)
	}
	if amount <= 0 {
		return 0, vaulterr.InvalidAmount("split amount must be positive")
	}
	return amount, nil
}
