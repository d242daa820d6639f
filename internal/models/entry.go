package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultCurrency is used when an entry does not name one.
const DefaultCurrency = "USD"

// DefaultCategory is used when an entry does not name one.
const DefaultCategory = "general"

// Entry is one expense recorded against a trip.
// An entry is immutable once its splits exist; amending an expense means
// recording a new entry.
type Entry struct {
	// ID is the unique identifier for the entry (UUID format).
	ID string

	TripID      string
	Description string

	// Amount is the total paid, in Currency.
	Amount   decimal.Decimal
	Currency string

	// PaidBy is the user ID of the member who paid the expense.
	// Every split of this entry is owed to PaidBy.
	PaidBy string

	Category string

	// Date is when the expense occurred.
	Date time.Time

	// Splits are the per-participant obligations. Their amounts sum to Amount.
	Splits []Split

	CreatedAt time.Time
}

// SplitTotal returns the sum of the entry's split amounts.
func (e *Entry) SplitTotal() decimal.Decimal {
	total := decimal.Zero
	for _, s := range e.Splits {
		total = total.Add(s.Amount)
	}
	return total
}

// Split is one participant's share of an Entry.
type Split struct {
	ID      string
	EntryID string

	// UserID owes Amount to the entry's payer.
	UserID string
	Amount decimal.Decimal

	// Paid is set once a transaction for this split succeeds. It never reverts.
	Paid bool

	// StripePayable marks the split as eligible for electronic settlement.
	// The payer's own share is recorded but not payable.
	StripePayable bool

	PaidViaStripe bool
	PaidAt        *time.Time
}

// SplitContext is a split together with the entry fields needed to pay it.
type SplitContext struct {
	Split

	TripID string

	// RecipientID is the entry's payer.
	RecipientID string

	Currency    string
	Description string
}
