package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mmynk/tripvault/internal/models"
	"github.com/mmynk/tripvault/internal/storage"
)

// These tests run against a live database named by VAULT_TEST_POSTGRES_DSN.
func newTestStore(t *testing.T) *PostgresStore {
	t.Helper()
	dsn := os.Getenv("VAULT_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("VAULT_TEST_POSTGRES_DSN not set")
	}
	store, err := New(context.Background(), dsn)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestPostgresStore(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	suffix := uuid.New().String()[:8]

	payer := &models.User{Username: "payer-" + suffix, Name: "Payer"}
	debtor := &models.User{Username: "debtor-" + suffix, Name: "Debtor"}
	for _, u := range []*models.User{payer, debtor} {
		if err := store.CreateUser(ctx, u); err != nil {
			t.Fatalf("CreateUser failed: %v", err)
		}
	}
	trip := &models.Trip{Title: "Trip " + suffix, Members: []string{payer.ID, debtor.ID}}
	if err := store.CreateTrip(ctx, trip); err != nil {
		t.Fatalf("CreateTrip failed: %v", err)
	}
	entry := &models.Entry{
		TripID:      trip.ID,
		Description: "Hotel",
		Amount:      decimal.RequireFromString("100"),
		PaidBy:      payer.ID,
		Splits: []models.Split{
			{UserID: payer.ID, Amount: decimal.RequireFromString("50")},
			{UserID: debtor.ID, Amount: decimal.RequireFromString("50"), StripePayable: true},
		},
	}
	if err := store.CreateEntry(ctx, entry); err != nil {
		t.Fatalf("CreateEntry failed: %v", err)
	}
	split := entry.Splits[1]

	t.Run("GetEntry", func(t *testing.T) {
		got, err := store.GetEntry(ctx, entry.ID)
		if err != nil {
			t.Fatalf("GetEntry failed: %v", err)
		}
		if len(got.Splits) != 2 || got.Splits[1].UserID != debtor.ID {
			t.Errorf("unexpected splits: %+v", got.Splits)
		}
	})

	intentID := "pi_" + suffix
	t.Run("one pending per split", func(t *testing.T) {
		txn := &models.Transaction{
			SplitID: split.ID, PaymentIntentID: intentID, Amount: split.Amount, Currency: "USD",
			PayerID: debtor.ID, RecipientID: payer.ID, TripID: trip.ID,
		}
		if err := store.CreateTransaction(ctx, txn); err != nil {
			t.Fatalf("CreateTransaction failed: %v", err)
		}
		second := *txn
		second.ID = ""
		second.PaymentIntentID = intentID + "_2"
		if err := store.CreateTransaction(ctx, &second); !errors.Is(err, storage.ErrConflict) {
			t.Errorf("expected ErrConflict, got %v", err)
		}
	})

	t.Run("succeeded applies once", func(t *testing.T) {
		update := storage.SuccessUpdate{PaymentIntentID: intentID, ChargeID: "ch_" + suffix, CompletedAt: time.Now()}
		res, err := store.MarkTransactionSucceeded(ctx, update)
		if err != nil {
			t.Fatalf("MarkTransactionSucceeded failed: %v", err)
		}
		if !res.Applied || !res.SplitMarked || res.Transaction.FeeStatus != models.FeeUnknown {
			t.Errorf("unexpected result: %+v", res)
		}
		res, err = store.MarkTransactionSucceeded(ctx, update)
		if err != nil {
			t.Fatalf("replay failed: %v", err)
		}
		if res.Applied || res.SplitMarked {
			t.Errorf("expected replay to be a no-op, got %+v", res)
		}
	})

	t.Run("delete refused after settlement", func(t *testing.T) {
		if err := store.DeleteEntry(ctx, entry.ID); !errors.Is(err, storage.ErrConflict) {
			t.Errorf("expected ErrConflict, got %v", err)
		}
	})
}
