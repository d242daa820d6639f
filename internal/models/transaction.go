package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionStatus tracks where a payment attempt is in its lifecycle.
type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusSucceeded TransactionStatus = "succeeded"
	StatusFailed    TransactionStatus = "failed"
	StatusCanceled  TransactionStatus = "canceled"
)

// IsTerminal reports whether no further transitions are accepted.
func (s TransactionStatus) IsTerminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusCanceled:
		return true
	}
	return false
}

// FeeStatus records whether the processor fee of a succeeded transaction is known.
type FeeStatus string

const (
	// FeeNone is used while a transaction has not succeeded.
	FeeNone FeeStatus = "none"
	// FeeKnown means Fee and NetAmount are populated.
	FeeKnown FeeStatus = "known"
	// FeeUnknown means the processor lookup failed and the transaction
	// needs manual or background fee reconciliation.
	FeeUnknown FeeStatus = "unknown"
)

// Transaction is one payment-intent lifecycle tied to exactly one Split.
// A split may have many transactions across retries but at most one pending.
type Transaction struct {
	ID      string
	SplitID string

	// PaymentIntentID is the processor's handle for the attempt. Unique.
	PaymentIntentID string

	Amount   decimal.Decimal
	Currency string
	Status   TransactionStatus

	PayerID     string
	RecipientID string
	TripID      string

	// ChargeID is set when the transaction succeeds.
	ChargeID string

	// Fee and NetAmount are nil unless FeeStatus is FeeKnown.
	Fee       *decimal.Decimal
	NetAmount *decimal.Decimal
	FeeStatus FeeStatus

	// ErrorMessage is the processor's failure reason.
	ErrorMessage string

	CreatedAt   time.Time
	CompletedAt *time.Time
}

// TransactionHistoryRow is a transaction joined with display identities.
type TransactionHistoryRow struct {
	Transaction

	PayerUsername     string
	PayerName         string
	RecipientUsername string
	RecipientName     string
}

// UnpaidSplitRow is an outstanding, electronically payable split with the
// entry, trip and payer details a client needs to display it.
type UnpaidSplitRow struct {
	Split

	TripID          string
	TripTitle       string
	TripDestination string

	Description string
	Category    string
	Currency    string
	Date        time.Time

	PaidBy         string
	PaidByUsername string
	PaidByName     string
}
