package service

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"

	"connectrpc.com/connect"
	"github.com/shopspring/decimal"

	"github.com/mmynk/tripvault/internal/calculator"
	"github.com/mmynk/tripvault/internal/clock"
	"github.com/mmynk/tripvault/internal/models"
	"github.com/mmynk/tripvault/internal/money"
	"github.com/mmynk/tripvault/internal/storage"
	"github.com/mmynk/tripvault/internal/vaulterr"
	"github.com/mmynk/tripvault/pkg/api"
	"github.com/mmynk/tripvault/pkg/api/apiconnect"
)

var _ apiconnect.VaultServiceHandler = (*VaultService)(nil)

// VaultService implements the Connect VaultService: recording entries and
// reporting trip balances.
type VaultService struct {
	store storage.Store
	clock clock.Clock
}

// NewVaultService creates a new VaultService with the given storage backend.
func NewVaultService(store storage.Store, clk clock.Clock) *VaultService {
	return &VaultService{store: store, clock: clk}
}

// CreateEntry records an expense and its splits.
func (s *VaultService) CreateEntry(ctx context.Context, req *connect.Request[api.CreateEntryRequest]) (*connect.Response[api.CreateEntryResponse], error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	trip, err := requireMember(ctx, s.store, req.Msg.TripID, userID)
	if err != nil {
		return nil, err
	}

	entry, err := s.buildEntry(trip, userID, req.Msg)
	if err != nil {
		slog.Warn("CreateEntry rejected", "trip_id", trip.ID, "user_id", userID, "error", err)
		return nil, toConnectError(err)
	}

	if err := s.store.CreateEntry(ctx, entry); err != nil {
		slog.Error("Failed to save entry", "trip_id", trip.ID, "entry_id", entry.ID, "error", err)
		if errors.Is(err, storage.ErrCommit) {
			err = vaulterr.Inconsistent("create entry", "entry "+entry.ID, err)
		}
		return nil, toConnectError(err)
	}

	slog.Info("Entry created",
		"entry_id", entry.ID,
		"trip_id", entry.TripID,
		"amount", entry.Amount.String(),
		"currency", entry.Currency,
		"splits", len(entry.Splits),
	)
	return connect.NewResponse(&api.CreateEntryResponse{Entry: entryToAPI(entry)}), nil
}

// buildEntry validates the request and computes the splits.
func (s *VaultService) buildEntry(trip *models.Trip, userID string, msg *api.CreateEntryRequest) (*models.Entry, error) {
	description := strings.TrimSpace(msg.Description)
	if description == "" {
		return nil, vaulterr.Validation("description is required")
	}

	amount, err := money.Parse(msg.Amount)
	if err != nil {
		return nil, vaulterr.InvalidAmount("%v", err)
	}

	currency := money.Normalize(msg.Currency)
	if currency == "" {
		currency = models.DefaultCurrency
	}
	if len(currency) != 3 {
		return nil, vaulterr.Validation("currency must be a three-letter code, got %q", msg.Currency)
	}

	paidBy := msg.PaidBy
	if paidBy == "" {
		paidBy = userID
	}
	if !trip.HasMember(paidBy) {
		return nil, vaulterr.Validation("payer %s is not a member of the trip", paidBy)
	}

	date := s.clock.Now()
	if msg.Date != "" {
		if date, err = parseDate(msg.Date); err != nil {
			return nil, vaulterr.Validation("invalid date %q", msg.Date)
		}
	}

	shares, err := computeShares(amount, currency, msg)
	if err != nil {
		return nil, err
	}

	entry := &models.Entry{
		TripID:      trip.ID,
		Description: description,
		Amount:      amount,
		Currency:    currency,
		PaidBy:      paidBy,
		Category:    strings.TrimSpace(msg.Category),
		Date:        date,
		CreatedAt:   s.clock.Now(),
		Splits:      make([]models.Split, len(shares)),
	}
	for i, share := range shares {
		if !trip.HasMember(share.Participant) {
			return nil, vaulterr.Validation("participant %s is not a member of the trip", share.Participant)
		}
		entry.Splits[i] = models.Split{
			UserID: share.Participant,
			Amount: share.Amount,
			// The payer's own share is never paid to themselves.
			StripePayable: share.Participant != paidBy,
		}
	}
	return entry, nil
}

func computeShares(amount decimal.Decimal, currency string, msg *api.CreateEntryRequest) ([]calculator.Share, error) {
	if len(msg.Splits) > 0 {
		if len(msg.ParticipantIDs) > 0 || len(msg.Weights) > 0 {
			return nil, vaulterr.Validation("give either splits or participant_ids, not both")
		}
		shares := make([]calculator.Share, len(msg.Splits))
		for i, in := range msg.Splits {
			a, err := money.Parse(in.Amount)
			if err != nil {
				return nil, vaulterr.InvalidAmount("split for %s: %v", in.UserID, err)
			}
			shares[i] = calculator.Share{Participant: in.UserID, Amount: a}
		}
		if err := calculator.ValidateExplicit(amount, currency, shares); err != nil {
			return nil, err
		}
		return shares, nil
	}

	var weights map[string]decimal.Decimal
	if len(msg.Weights) > 0 {
		weights = make(map[string]decimal.Decimal, len(msg.Weights))
		for participant, raw := range msg.Weights {
			w, err := decimal.NewFromString(raw)
			if err != nil {
				return nil, vaulterr.Validation("invalid weight %q for %s", raw, participant)
			}
			weights[participant] = w
		}
	}
	return calculator.SplitEntry(amount, currency, msg.ParticipantIDs, weights)
}

// GetEntry returns one entry with its splits.
func (s *VaultService) GetEntry(ctx context.Context, req *connect.Request[api.GetEntryRequest]) (*connect.Response[api.GetEntryResponse], error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	entry, err := s.loadEntry(ctx, req.Msg.EntryID, userID)
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(&api.GetEntryResponse{Entry: entryToAPI(entry)}), nil
}

// DeleteEntry removes an entry that has no payment history. Only the
// member who paid the expense may delete it.
func (s *VaultService) DeleteEntry(ctx context.Context, req *connect.Request[api.DeleteEntryRequest]) (*connect.Response[api.DeleteEntryResponse], error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	entry, err := s.loadEntry(ctx, req.Msg.EntryID, userID)
	if err != nil {
		return nil, err
	}
	if entry.PaidBy != userID {
		return nil, connect.NewError(connect.CodePermissionDenied, errors.New("only the payer can delete an entry"))
	}

	err = s.store.DeleteEntry(ctx, entry.ID)
	if errors.Is(err, storage.ErrConflict) {
		return nil, connect.NewError(connect.CodeFailedPrecondition, errHasPayments)
	}
	if err != nil {
		slog.Error("Failed to delete entry", "entry_id", entry.ID, "error", err)
		return nil, toConnectError(err)
	}

	slog.Info("Entry deleted", "entry_id", entry.ID, "trip_id", entry.TripID, "user_id", userID)
	return connect.NewResponse(&api.DeleteEntryResponse{}), nil
}

func (s *VaultService) loadEntry(ctx context.Context, entryID, userID string) (*models.Entry, error) {
	if entryID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, vaulterr.Validation("entry_id is required"))
	}
	entry, err := s.store.GetEntry(ctx, entryID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, connect.NewError(connect.CodeNotFound, vaulterr.NotFound("entry", entryID))
	}
	if err != nil {
		slog.Error("Failed to get entry", "entry_id", entryID, "error", err)
		return nil, toConnectError(err)
	}
	if _, err := requireMember(ctx, s.store, entry.TripID, userID); err != nil {
		return nil, err
	}
	return entry, nil
}

// GetTripSummary reports a trip's totals, balances and simplified debts per
// currency, with its entries and the caller's unpaid splits.
func (s *VaultService) GetTripSummary(ctx context.Context, req *connect.Request[api.GetTripSummaryRequest]) (*connect.Response[api.GetTripSummaryResponse], error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	trip, err := requireMember(ctx, s.store, req.Msg.TripID, userID)
	if err != nil {
		return nil, err
	}

	entries, err := s.store.ListTripEntries(ctx, trip.ID)
	if err != nil {
		slog.Error("Failed to list entries", "trip_id", trip.ID, "error", err)
		return nil, toConnectError(err)
	}
	summaries, err := summarize(entries)
	if err != nil {
		slog.Error("Failed to summarize trip", "trip_id", trip.ID, "error", err)
		return nil, toConnectError(err)
	}

	unpaid, err := s.store.ListUnpaidSplitsForUser(ctx, userID)
	if err != nil {
		slog.Error("Failed to list unpaid splits", "user_id", userID, "error", err)
		return nil, toConnectError(err)
	}

	resp := &api.GetTripSummaryResponse{
		TripID:       trip.ID,
		Title:        trip.Title,
		Destination:  trip.Destination,
		Currencies:   summaries,
		Entries:      make([]*api.Entry, len(entries)),
		UnpaidSplits: []*api.UnpaidSplit{},
	}
	for i, e := range entries {
		resp.Entries[i] = entryToAPI(e)
	}
	for _, row := range unpaid {
		if row.TripID == trip.ID {
			resp.UnpaidSplits = append(resp.UnpaidSplits, unpaidToAPI(row))
		}
	}
	return connect.NewResponse(resp), nil
}

// summarize computes balances per currency. Paid splits count as
// settlements from the split's owner to the entry's payer.
func summarize(entries []*models.Entry) ([]api.CurrencySummary, error) {
	type bucket struct {
		total       int64
		entries     []calculator.EntryForBalance
		settlements []calculator.SettlementForBalance
	}
	buckets := make(map[string]*bucket)

	for _, e := range entries {
		b, ok := buckets[e.Currency]
		if !ok {
			b = &bucket{}
			buckets[e.Currency] = b
		}
		total, err := money.ToMinor(e.Amount, e.Currency)
		if err != nil {
			return nil, err
		}
		b.total += total

		shares := make(map[string]int64, len(e.Splits))
		for _, split := range e.Splits {
			minor, err := money.ToMinor(split.Amount, e.Currency)
			if err != nil {
				return nil, err
			}
			shares[split.UserID] += minor
			if split.Paid && split.UserID != e.PaidBy {
				b.settlements = append(b.settlements, calculator.SettlementForBalance{
					FromUserID: split.UserID,
					ToUserID:   e.PaidBy,
					Amount:     minor,
				})
			}
		}
		b.entries = append(b.entries, calculator.EntryForBalance{PaidBy: e.PaidBy, Total: total, Shares: shares})
	}

	currencies := make([]string, 0, len(buckets))
	for c := range buckets {
		currencies = append(currencies, c)
	}
	sort.Strings(currencies)

	format := func(minor int64, currency string) string {
		return money.Format(money.FromMinor(minor, currency), currency)
	}

	summaries := make([]api.CurrencySummary, 0, len(currencies))
	for _, currency := range currencies {
		b := buckets[currency]
		balances, debts := calculator.CalculateTripBalances(b.entries, b.settlements)

		summary := api.CurrencySummary{
			Currency:   currency,
			TotalSpent: format(b.total, currency),
			Balances:   make([]api.MemberBalance, len(balances)),
			Debts:      make([]api.Debt, len(debts)),
		}
		for i, mb := range balances {
			summary.Balances[i] = api.MemberBalance{
				UserID:     mb.UserID,
				NetBalance: format(mb.NetBalance, currency),
				TotalPaid:  format(mb.TotalPaid, currency),
				TotalOwed:  format(mb.TotalOwed, currency),
			}
		}
		for i, d := range debts {
			summary.Debts[i] = api.Debt{From: d.From, To: d.To, Amount: format(d.Amount, currency)}
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}
