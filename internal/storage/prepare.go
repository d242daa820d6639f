package storage

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mmynk/tripvault/internal/models"
	"github.com/mmynk/tripvault/internal/money"
)

// EntryRow is an entry converted to the minor-unit values backends persist.
type EntryRow struct {
	Amount       int64
	SplitAmounts []int64
}

// PrepareEntry fills unset IDs, defaults and timestamps on entry and its
// splits, resets their paid state and converts amounts to minor units.
// It fails when the splits do not sum exactly to the entry amount.
func PrepareEntry(entry *models.Entry) (*EntryRow, error) {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if entry.Date.IsZero() {
		entry.Date = entry.CreatedAt
	}
	if entry.Currency == "" {
		entry.Currency = models.DefaultCurrency
	}
	entry.Currency = money.Normalize(entry.Currency)
	if entry.Category == "" {
		entry.Category = models.DefaultCategory
	}

	total, err := money.ToMinor(entry.Amount, entry.Currency)
	if err != nil {
		return nil, fmt.Errorf("failed to convert entry amount: %w", err)
	}
	row := &EntryRow{Amount: total, SplitAmounts: make([]int64, len(entry.Splits))}

	var sum int64
	for i := range entry.Splits {
		split := &entry.Splits[i]
		if split.ID == "" {
			split.ID = uuid.New().String()
		}
		split.EntryID = entry.ID
		split.Paid = false
		split.PaidViaStripe = false
		split.PaidAt = nil

		if row.SplitAmounts[i], err = money.ToMinor(split.Amount, entry.Currency); err != nil {
			return nil, fmt.Errorf("failed to convert split amount: %w", err)
		}
		sum += row.SplitAmounts[i]
	}
	if sum != total {
		return nil, fmt.Errorf("split amounts sum to %d, entry amount is %d", sum, total)
	}
	return row, nil
}

// PrepareTransaction fills unset fields of a new transaction and returns its
// amount in minor units.
func PrepareTransaction(txn *models.Transaction) (int64, error) {
	if txn.ID == "" {
		txn.ID = uuid.New().String()
	}
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = time.Now().UTC()
	}
	if txn.Status == "" {
		txn.Status = models.StatusPending
	}
	if txn.FeeStatus == "" {
		txn.FeeStatus = models.FeeNone
	}
	txn.Currency = money.Normalize(txn.Currency)

	amount, err := money.ToMinor(txn.Amount, txn.Currency)
	if err != nil {
		return 0, fmt.Errorf("failed to convert transaction amount: %w", err)
	}
	return amount, nil
}

// FeeColumns converts an optional fee and net amount to column values.
// Both are NULL with FeeUnknown when either is missing.
func FeeColumns(fee, net *decimal.Decimal, currency string) (any, any, models.FeeStatus, error) {
	if fee == nil || net == nil {
		return nil, nil, models.FeeUnknown, nil
	}
	feeMinor, err := money.ToMinor(*fee, currency)
	if err != nil {
		return nil, nil, "", fmt.Errorf("failed to convert fee: %w", err)
	}
	netMinor, err := money.ToMinor(*net, currency)
	if err != nil {
		return nil, nil, "", fmt.Errorf("failed to convert net amount: %w", err)
	}
	return feeMinor, netMinor, models.FeeKnown, nil
}
