// Package api defines the request and response messages of the vault's
// Connect services. Messages travel as JSON. Amounts are decimal strings
// ("25.00") in the message's currency and timestamps are RFC 3339.
package api

// SplitInput is a caller-chosen share of an entry.
type SplitInput struct {
	UserID string `json:"user_id"`
	Amount string `json:"amount"`
}

// CreateEntryRequest records an expense against a trip.
//
// Exactly one way of dividing the amount is used: Splits when present,
// otherwise ParticipantIDs with optional Weights. Without weights the amount
// is divided equally.
type CreateEntryRequest struct {
	TripID      string `json:"trip_id"`
	Description string `json:"description"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency,omitempty"`

	// PaidBy defaults to the caller.
	PaidBy   string `json:"paid_by,omitempty"`
	Category string `json:"category,omitempty"`

	// Date is YYYY-MM-DD or RFC 3339. Defaults to now.
	Date string `json:"date,omitempty"`

	ParticipantIDs []string          `json:"participant_ids,omitempty"`
	Weights        map[string]string `json:"weights,omitempty"`
	Splits         []SplitInput      `json:"splits,omitempty"`
}

type CreateEntryResponse struct {
	Entry *Entry `json:"entry"`
}

type GetEntryRequest struct {
	EntryID string `json:"entry_id"`
}

type GetEntryResponse struct {
	Entry *Entry `json:"entry"`
}

type DeleteEntryRequest struct {
	EntryID string `json:"entry_id"`
}

type DeleteEntryResponse struct{}

type GetTripSummaryRequest struct {
	TripID string `json:"trip_id"`
}

// GetTripSummaryResponse reports a trip's spending. Balances are computed
// per currency; amounts in different currencies are never combined.
type GetTripSummaryResponse struct {
	TripID      string            `json:"trip_id"`
	Title       string            `json:"title"`
	Destination string            `json:"destination,omitempty"`
	Currencies  []CurrencySummary `json:"currencies"`
	Entries     []*Entry          `json:"entries"`

	// UnpaidSplits are the caller's outstanding payable splits in this trip.
	UnpaidSplits []*UnpaidSplit `json:"unpaid_splits"`
}

// CurrencySummary holds the totals and balances of one currency in a trip.
type CurrencySummary struct {
	Currency   string          `json:"currency"`
	TotalSpent string          `json:"total_spent"`
	Balances   []MemberBalance `json:"balances"`
	Debts      []Debt          `json:"debts"`
}

// MemberBalance is positive when the member is owed money.
type MemberBalance struct {
	UserID     string `json:"user_id"`
	NetBalance string `json:"net_balance"`
	TotalPaid  string `json:"total_paid"`
	TotalOwed  string `json:"total_owed"`
}

// Debt is one simplified payment that settles part of the trip.
type Debt struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type Entry struct {
	ID          string  `json:"id"`
	TripID      string  `json:"trip_id"`
	Description string  `json:"description"`
	Amount      string  `json:"amount"`
	Currency    string  `json:"currency"`
	PaidBy      string  `json:"paid_by"`
	Category    string  `json:"category"`
	Date        string  `json:"date"`
	Splits      []Split `json:"splits"`
	CreatedAt   string  `json:"created_at"`
}

type Split struct {
	ID            string `json:"id"`
	EntryID       string `json:"entry_id"`
	UserID        string `json:"user_id"`
	Amount        string `json:"amount"`
	Paid          bool   `json:"paid"`
	StripePayable bool   `json:"stripe_payable"`
	PaidViaStripe bool   `json:"paid_via_stripe"`
	PaidAt        string `json:"paid_at,omitempty"`
}

// UnpaidSplit is an outstanding split with the context needed to show it.
type UnpaidSplit struct {
	SplitID         string `json:"split_id"`
	EntryID         string `json:"entry_id"`
	Amount          string `json:"amount"`
	Currency        string `json:"currency"`
	TripID          string `json:"trip_id"`
	TripTitle       string `json:"trip_title"`
	TripDestination string `json:"trip_destination,omitempty"`
	Description     string `json:"description"`
	Category        string `json:"category"`
	Date            string `json:"date"`
	PaidBy          string `json:"paid_by"`
	PaidByUsername  string `json:"paid_by_username"`
	PaidByName      string `json:"paid_by_name"`
}

// Transaction is one payment attempt for a split.
type Transaction struct {
	ID              string `json:"id"`
	SplitID         string `json:"split_id"`
	PaymentIntentID string `json:"payment_intent_id"`
	Amount          string `json:"amount"`
	Currency        string `json:"currency"`
	Status          string `json:"status"`
	PayerID         string `json:"payer_id"`
	RecipientID     string `json:"recipient_id"`
	TripID          string `json:"trip_id"`
	ChargeID        string `json:"charge_id,omitempty"`

	// Fee and NetAmount are empty unless FeeStatus is "known".
	Fee       string `json:"fee,omitempty"`
	NetAmount string `json:"net_amount,omitempty"`
	FeeStatus string `json:"fee_status"`

	ErrorMessage string `json:"error_message,omitempty"`
	CreatedAt    string `json:"created_at"`
	CompletedAt  string `json:"completed_at,omitempty"`
}

// HistoryEntry is a transaction with display identities.
type HistoryEntry struct {
	Transaction

	PayerUsername     string `json:"payer_username"`
	PayerName         string `json:"payer_name"`
	RecipientUsername string `json:"recipient_username"`
	RecipientName     string `json:"recipient_name"`
}

type CreatePaymentIntentRequest struct {
	SplitID string `json:"split_id"`
}

type CreatePaymentIntentResponse struct {
	Transaction  *Transaction `json:"transaction"`
	ClientSecret string       `json:"client_secret"`

	// Reused is true when an existing pending attempt was returned.
	Reused bool `json:"reused"`
}

type ConfirmPaymentRequest struct {
	PaymentIntentID string `json:"payment_intent_id"`
}

type ConfirmPaymentResponse struct {
	Transaction *Transaction `json:"transaction"`
}

type GetTransactionHistoryRequest struct {
	TripID string `json:"trip_id"`
}

type GetTransactionHistoryResponse struct {
	Transactions []*HistoryEntry `json:"transactions"`
}

type GetUnpaidSplitsRequest struct{}

type GetUnpaidSplitsResponse struct {
	Splits []*UnpaidSplit `json:"splits"`
}

type ListFeeUnknownRequest struct {
	// Limit caps the rows returned. Zero means the server default.
	Limit int `json:"limit,omitempty"`
}

type ListFeeUnknownResponse struct {
	Transactions []*Transaction `json:"transactions"`
}
