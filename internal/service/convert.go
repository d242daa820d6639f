package service

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/tripvault/internal/models"
	"github.com/mmynk/tripvault/internal/money"
	"github.com/mmynk/tripvault/pkg/api"
)

const dateLayout = "2006-01-02"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

func formatAmountPtr(d *decimal.Decimal, currency string) string {
	if d == nil {
		return ""
	}
	return money.Format(*d, currency)
}

// parseDate accepts a calendar date or an RFC 3339 timestamp.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

func entryToAPI(e *models.Entry) *api.Entry {
	splits := make([]api.Split, len(e.Splits))
	for i, s := range e.Splits {
		splits[i] = api.Split{
			ID:            s.ID,
			EntryID:       s.EntryID,
			UserID:        s.UserID,
			Amount:        money.Format(s.Amount, e.Currency),
			Paid:          s.Paid,
			StripePayable: s.StripePayable,
			PaidViaStripe: s.PaidViaStripe,
			PaidAt:        formatTimePtr(s.PaidAt),
		}
	}
	return &api.Entry{
		ID:          e.ID,
		TripID:      e.TripID,
		Description: e.Description,
		Amount:      money.Format(e.Amount, e.Currency),
		Currency:    e.Currency,
		PaidBy:      e.PaidBy,
		Category:    e.Category,
		Date:        e.Date.UTC().Format(dateLayout),
		Splits:      splits,
		CreatedAt:   formatTime(e.CreatedAt),
	}
}

func transactionToAPI(t *models.Transaction) *api.Transaction {
	return &api.Transaction{
		ID:              t.ID,
		SplitID:         t.SplitID,
		PaymentIntentID: t.PaymentIntentID,
		Amount:          money.Format(t.Amount, t.Currency),
		Currency:        t.Currency,
		Status:          string(t.Status),
		PayerID:         t.PayerID,
		RecipientID:     t.RecipientID,
		TripID:          t.TripID,
		ChargeID:        t.ChargeID,
		Fee:             formatAmountPtr(t.Fee, t.Currency),
		NetAmount:       formatAmountPtr(t.NetAmount, t.Currency),
		FeeStatus:       string(t.FeeStatus),
		ErrorMessage:    t.ErrorMessage,
		CreatedAt:       formatTime(t.CreatedAt),
		CompletedAt:     formatTimePtr(t.CompletedAt),
	}
}

func historyToAPI(row *models.TransactionHistoryRow) *api.HistoryEntry {
	return &api.HistoryEntry{
		Transaction:       *transactionToAPI(&row.Transaction),
		PayerUsername:     row.PayerUsername,
		PayerName:         row.PayerName,
		RecipientUsername: row.RecipientUsername,
		RecipientName:     row.RecipientName,
	}
}

func unpaidToAPI(row *models.UnpaidSplitRow) *api.UnpaidSplit {
	return &api.UnpaidSplit{
		SplitID:         row.ID,
		EntryID:         row.EntryID,
		Amount:          money.Format(row.Amount, row.Currency),
		Currency:        row.Currency,
		TripID:          row.TripID,
		TripTitle:       row.TripTitle,
		TripDestination: row.TripDestination,
		Description:     row.Description,
		Category:        row.Category,
		Date:            row.Date.UTC().Format(dateLayout),
		PaidBy:          row.PaidBy,
		PaidByUsername:  row.PaidByUsername,
		PaidByName:      row.PaidByName,
	}
}
