// Package reconcile drives payment transactions from pending to a terminal
// state, from processor webhooks or from explicit confirmation calls.
//
// The processor is the source of truth for a payment's outcome. A
// transaction leaves pending at most once: every transition is a
// conditional update in the store, so replayed or concurrent events for
// the same intent settle the split exactly once.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/tripvault/internal/clock"
	"github.com/mmynk/tripvault/internal/gateway"
	"github.com/mmynk/tripvault/internal/metrics"
	"github.com/mmynk/tripvault/internal/models"
	"github.com/mmynk/tripvault/internal/money"
	"github.com/mmynk/tripvault/internal/storage"
	"github.com/mmynk/tripvault/internal/vaulterr"
)

// DefaultFailureMessage is recorded when a failed event carries no reason.
const DefaultFailureMessage = "Payment failed"

// batchSize bounds the rows a single sweep pass loads.
const batchSize = 100

// Engine reconciles transactions against the processor.
type Engine struct {
	store   storage.TransactionStore
	client  *gateway.Client
	clock   clock.Clock
	metrics *metrics.Metrics
	logger  *slog.Logger
	locks   *keyedMutex
}

// NewEngine creates an Engine. m may be nil.
func NewEngine(store storage.TransactionStore, client *gateway.Client, clk clock.Clock, m *metrics.Metrics, logger *slog.Logger) *Engine {
	return &Engine{
		store:   store,
		client:  client,
		clock:   clk,
		metrics: m,
		logger:  logger,
		locks:   newKeyedMutex(),
	}
}

// Confirm asks the processor for the intent's status and applies it. A
// terminal transaction is returned unchanged. A processor status that is
// neither succeeded nor canceled leaves the transaction pending.
func (e *Engine) Confirm(ctx context.Context, intentID string) (*models.Transaction, error) {
	unlock := e.locks.Lock(intentID)
	defer unlock()

	txn, err := e.load(ctx, intentID)
	if err != nil {
		return nil, err
	}
	if txn.Status.IsTerminal() {
		e.conflict(intentID, txn.Status, "confirm")
		return txn, nil
	}

	intent, err := e.client.RetrievePaymentIntent(ctx, intentID)
	if err != nil {
		e.logger.Warn("Failed to retrieve payment intent", "intent_id", intentID, "error", err)
		return nil, err
	}

	switch intent.Status {
	case gateway.IntentSucceeded:
		return e.settle(ctx, txn, intent)
	case gateway.IntentCanceled:
		return e.cancel(ctx, txn)
	default:
		e.logger.Debug("Payment intent not settled yet", "intent_id", intentID, "status", intent.Status)
		return txn, nil
	}
}

// HandleEvent applies a verified webhook event. Unknown event types and
// events for terminal transactions are acknowledged without changes.
func (e *Engine) HandleEvent(ctx context.Context, event *gateway.Event) error {
	logger := e.logger.With("event_id", event.ID, "event_type", event.Type, "intent_id", event.IntentID)

	switch event.Type {
	case gateway.EventIntentSucceeded, gateway.EventIntentFailed, gateway.EventIntentCanceled:
		if event.IntentID == "" {
			logger.Warn("Webhook event carries no payment intent")
			e.metrics.Webhook(string(event.Type), metrics.OutcomeRejected)
			return vaulterr.Validation("event %s has no payment intent id", event.ID)
		}
	}

	var err error
	switch event.Type {
	case gateway.EventIntentSucceeded:
		_, err = e.Confirm(ctx, event.IntentID)
	case gateway.EventIntentFailed:
		err = e.Fail(ctx, event.IntentID, event.ErrorMessage)
	case gateway.EventIntentCanceled:
		err = e.Cancel(ctx, event.IntentID)
	case gateway.EventIntentCreated, gateway.EventChargeSucceeded:
		logger.Debug("Webhook event needs no action")
		e.metrics.Webhook(string(event.Type), metrics.OutcomeIgnored)
		return nil
	default:
		logger.Info("Ignoring unhandled webhook event")
		e.metrics.Webhook(string(event.Type), metrics.OutcomeIgnored)
		return nil
	}

	if err != nil {
		logger.Warn("Webhook event not applied", "error", err)
		e.metrics.Webhook(string(event.Type), metrics.OutcomeRetry)
		return err
	}
	e.metrics.Webhook(string(event.Type), metrics.OutcomeHandled)
	return nil
}

// Fail moves a pending transaction to failed with the processor's message.
func (e *Engine) Fail(ctx context.Context, intentID, message string) error {
	unlock := e.locks.Lock(intentID)
	defer unlock()

	txn, err := e.load(ctx, intentID)
	if err != nil {
		return err
	}
	if message == "" {
		message = DefaultFailureMessage
	}

	ok, err := e.store.MarkTransactionFailed(ctx, intentID, message, e.clock.Now())
	if err != nil {
		return fmt.Errorf("failed to record failure: %w", err)
	}
	if !ok {
		e.conflict(intentID, txn.Status, "fail")
		return nil
	}
	e.metrics.Transition(string(models.StatusFailed))
	e.logger.Info("Payment failed", "intent_id", intentID, "split_id", txn.SplitID, "reason", message)
	return nil
}

// Cancel moves a pending transaction to canceled.
func (e *Engine) Cancel(ctx context.Context, intentID string) error {
	unlock := e.locks.Lock(intentID)
	defer unlock()

	txn, err := e.load(ctx, intentID)
	if err != nil {
		return err
	}
	_, err = e.cancel(ctx, txn)
	return err
}

// ResolveUnknownFees retries the fee lookup of succeeded transactions
// recorded without one and returns how many were resolved.
func (e *Engine) ResolveUnknownFees(ctx context.Context) (int, error) {
	txns, err := e.store.ListFeeUnknownTransactions(ctx, batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to list fee-unknown transactions: %w", err)
	}

	var resolved int
	var errs []error
	for _, txn := range txns {
		intent, err := e.client.RetrievePaymentIntent(ctx, txn.PaymentIntentID)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		fee, net, ok := e.lookupFee(ctx, txn, intent)
		if !ok {
			continue
		}
		applied, err := e.store.ResolveFee(ctx, txn.ID, fee, net)
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to resolve fee of %s: %w", txn.PaymentIntentID, err))
			continue
		}
		if applied {
			resolved++
			e.logger.Info("Resolved processor fee", "intent_id", txn.PaymentIntentID, "fee", fee.String())
		}
	}
	return resolved, errors.Join(errs...)
}

// ResyncStalePending re-confirms transactions that have been pending longer
// than olderThan and returns how many left pending.
func (e *Engine) ResyncStalePending(ctx context.Context, olderThan time.Duration) (int, error) {
	txns, err := e.store.ListStalePendingTransactions(ctx, e.clock.Now().Add(-olderThan), batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to list stale transactions: %w", err)
	}

	var moved int
	var errs []error
	for _, txn := range txns {
		got, err := e.Confirm(ctx, txn.PaymentIntentID)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if got.Status != models.StatusPending {
			moved++
		}
	}
	return moved, errors.Join(errs...)
}

// settle records a succeeded intent. The fee is looked up first; when that
// fails the transaction is still settled with an unknown fee.
func (e *Engine) settle(ctx context.Context, txn *models.Transaction, intent *gateway.Intent) (*models.Transaction, error) {
	update := storage.SuccessUpdate{
		PaymentIntentID: txn.PaymentIntentID,
		ChargeID:        intent.ChargeID,
		CompletedAt:     e.clock.Now(),
	}
	if fee, net, ok := e.lookupFee(ctx, txn, intent); ok {
		update.Fee = &fee
		update.NetAmount = &net
	}

	res, err := e.store.MarkTransactionSucceeded(ctx, update)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, vaulterr.NotFound("transaction", txn.PaymentIntentID)
	}
	if err != nil {
		e.logger.Error("Failed to record settlement", "intent_id", txn.PaymentIntentID, "split_id", txn.SplitID, "error", err)
		return nil, vaulterr.Inconsistent("settle payment", "intent "+txn.PaymentIntentID, err)
	}
	if !res.Applied {
		e.conflict(txn.PaymentIntentID, res.Transaction.Status, "settle")
		return res.Transaction, nil
	}

	e.metrics.Transition(string(models.StatusSucceeded))
	if update.Fee == nil {
		e.metrics.UnknownFee()
		e.logger.Warn("Payment settled with unknown fee", "intent_id", txn.PaymentIntentID, "transaction_id", txn.ID)
	}
	if !res.SplitMarked {
		e.metrics.DuplicateSettlement()
		e.logger.Warn("Split was already paid by another transaction", "intent_id", txn.PaymentIntentID, "split_id", txn.SplitID)
	}
	e.logger.Info("Payment succeeded", "intent_id", txn.PaymentIntentID, "split_id", txn.SplitID, "amount", txn.Amount.String())
	return res.Transaction, nil
}

// lookupFee returns the processor fee of a succeeded intent and the net
// amount left after it. ok is false when the fee cannot be determined.
func (e *Engine) lookupFee(ctx context.Context, txn *models.Transaction, intent *gateway.Intent) (fee, net decimal.Decimal, ok bool) {
	if intent.BalanceTransactionID == "" {
		e.logger.Warn("Succeeded intent has no balance transaction", "intent_id", txn.PaymentIntentID)
		return fee, net, false
	}
	minor, err := e.client.RetrieveFee(ctx, intent.BalanceTransactionID)
	if err != nil {
		e.logger.Warn("Failed to retrieve processor fee", "intent_id", txn.PaymentIntentID, "error", err)
		return fee, net, false
	}
	fee = money.FromMinor(minor, txn.Currency)
	return fee, txn.Amount.Sub(fee), true
}

func (e *Engine) cancel(ctx context.Context, txn *models.Transaction) (*models.Transaction, error) {
	ok, err := e.store.MarkTransactionCanceled(ctx, txn.PaymentIntentID, e.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to record cancellation: %w", err)
	}
	if !ok {
		e.conflict(txn.PaymentIntentID, txn.Status, "cancel")
	} else {
		e.metrics.Transition(string(models.StatusCanceled))
		e.logger.Info("Payment canceled", "intent_id", txn.PaymentIntentID, "split_id", txn.SplitID)
	}
	return e.load(ctx, txn.PaymentIntentID)
}

func (e *Engine) load(ctx context.Context, intentID string) (*models.Transaction, error) {
	txn, err := e.store.GetTransactionByIntent(ctx, intentID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, vaulterr.NotFound("transaction", intentID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load transaction: %w", err)
	}
	return txn, nil
}

func (e *Engine) conflict(intentID string, status models.TransactionStatus, action string) {
	e.logger.Debug("Transaction already settled", "intent_id", intentID, "status", status, "action", action,
		"error", vaulterr.ErrReconciliationConflict)
}
