// Package storage provides abstractions for persistent ledger storage.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/tripvault/internal/models"
)

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a write violates a uniqueness rule, or when a
	// delete is refused because dependent financial history exists.
	ErrConflict = errors.New("conflict")

	// ErrCommit is returned when a multi-row write fails at commit, leaving
	// its outcome unknown to the caller.
	ErrCommit = errors.New("commit failed")
)

// IdentityStore holds the user and trip rows the ledger joins against.
type IdentityStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, userID string) (*models.User, error)

	CreateTrip(ctx context.Context, trip *models.Trip) error
	GetTrip(ctx context.Context, tripID string) (*models.Trip, error)
	AddTripMembers(ctx context.Context, tripID string, userIDs []string) error
}

// LedgerStore holds expense entries and their splits.
type LedgerStore interface {
	// CreateEntry persists the entry and all of its splits as one unit.
	// IDs and timestamps that are unset are populated by the store.
	// A failed commit wraps ErrCommit.
	CreateEntry(ctx context.Context, entry *models.Entry) error

	GetEntry(ctx context.Context, entryID string) (*models.Entry, error)

	// ListTripEntries returns a trip's entries with splits, newest expense date first.
	ListTripEntries(ctx context.Context, tripID string) ([]*models.Entry, error)

	// DeleteEntry removes an entry and cascades to its splits. It returns
	// ErrConflict if any split has a pending or succeeded transaction.
	DeleteEntry(ctx context.Context, entryID string) error

	// GetSplit returns a split with the entry fields needed to pay it.
	GetSplit(ctx context.Context, splitID string) (*models.SplitContext, error)

	// ListUnpaidSplitsForUser returns the user's unpaid, electronically payable
	// splits across all trips, ordered by expense date.
	ListUnpaidSplitsForUser(ctx context.Context, userID string) ([]*models.UnpaidSplitRow, error)
}

// CustomerStore maps local users to payment processor customers.
type CustomerStore interface {
	GetCustomerMapping(ctx context.Context, userID string) (*models.CustomerMapping, error)

	// CreateCustomerMapping returns ErrConflict if the user or the processor
	// customer is already mapped.
	CreateCustomerMapping(ctx context.Context, mapping *models.CustomerMapping) error
}

// SuccessUpdate carries the settlement details recorded when a transaction succeeds.
type SuccessUpdate struct {
	PaymentIntentID string
	ChargeID        string

	// Fee and NetAmount are nil when the processor fee could not be determined.
	Fee       *decimal.Decimal
	NetAmount *decimal.Decimal

	CompletedAt time.Time
}

// SuccessResult reports what MarkTransactionSucceeded changed.
type SuccessResult struct {
	// Applied is true when this call moved the transaction from pending to succeeded.
	Applied bool

	// SplitMarked is true when this call flipped the owning split to paid.
	// It is false when the split was already paid by an earlier transaction.
	SplitMarked bool

	// Transaction is the record as stored after the call.
	Transaction *models.Transaction
}

// TransactionStore holds payment-intent transactions.
type TransactionStore interface {
	// CreateTransaction returns ErrConflict if the intent ID is already recorded
	// or the split already has a pending transaction.
	CreateTransaction(ctx context.Context, txn *models.Transaction) error

	GetTransactionByIntent(ctx context.Context, paymentIntentID string) (*models.Transaction, error)

	// GetPendingTransactionForSplit returns ErrNotFound when the split has no
	// pending attempt.
	GetPendingTransactionForSplit(ctx context.Context, splitID string) (*models.Transaction, error)

	CountTransactionsForSplit(ctx context.Context, splitID string) (int, error)

	// MarkTransactionSucceeded moves a pending transaction to succeeded and
	// marks its split paid in a single database transaction. The status update
	// is conditional on the row still being pending, and the split update only
	// runs when that condition held.
	MarkTransactionSucceeded(ctx context.Context, update SuccessUpdate) (*SuccessResult, error)

	// MarkTransactionFailed and MarkTransactionCanceled are conditional on the
	// row being pending. They report whether the transition happened.
	MarkTransactionFailed(ctx context.Context, paymentIntentID, message string, at time.Time) (bool, error)
	MarkTransactionCanceled(ctx context.Context, paymentIntentID string, at time.Time) (bool, error)

	// ResolveFee records a fee for a succeeded transaction whose fee was unknown.
	ResolveFee(ctx context.Context, transactionID string, fee, net decimal.Decimal) (bool, error)

	// ListTransactionsByTrip returns a trip's transactions joined with payer and
	// recipient identities, newest first.
	ListTransactionsByTrip(ctx context.Context, tripID string) ([]*models.TransactionHistoryRow, error)

	// ListFeeUnknownTransactions returns succeeded transactions needing fee reconciliation.
	ListFeeUnknownTransactions(ctx context.Context, limit int) ([]*models.Transaction, error)

	// ListFeeUnknownTransactionsForUser is ListFeeUnknownTransactions limited to
	// transactions the user paid or received.
	ListFeeUnknownTransactionsForUser(ctx context.Context, userID string, limit int) ([]*models.Transaction, error)

	// ListStalePendingTransactions returns pending transactions created before cutoff.
	ListStalePendingTransactions(ctx context.Context, cutoff time.Time, limit int) ([]*models.Transaction, error)
}

// Store defines the full ledger store used by the service.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL)
// without changing the service layer.
type Store interface {
	IdentityStore
	LedgerStore
	CustomerStore
	TransactionStore

	// Close releases any resources held by the store.
	Close() error
}
