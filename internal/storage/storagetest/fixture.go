// Package storagetest builds seeded ledger stores for tests of the layers
// above storage.
package storagetest

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/tripvault/internal/models"
	"github.com/mmynk/tripvault/internal/storage"
	"github.com/mmynk/tripvault/internal/storage/sqlite"
)

// NewStore returns an empty SQLite store in a temp directory.
func NewStore(t testing.TB) storage.Store {
	t.Helper()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "vault.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// Fixture is a trip of three members with one 90.00 USD dinner paid by
// Alice and split equally. Splits are in member order, so Splits[0] is
// Alice's own non-payable share.
type Fixture struct {
	Alice, Bob, Carol *models.User
	Trip              *models.Trip
	Entry             *models.Entry
}

// BobSplit is the split Bob owes Alice.
func (f *Fixture) BobSplit() models.Split { return f.Entry.Splits[1] }

// CarolSplit is the split Carol owes Alice.
func (f *Fixture) CarolSplit() models.Split { return f.Entry.Splits[2] }

// Seed creates the Fixture in store.
func Seed(t testing.TB, store storage.Store) *Fixture {
	t.Helper()
	ctx := context.Background()
	f := &Fixture{
		Alice: &models.User{Username: "alice", Name: "Alice", Email: "alice@example.com"},
		Bob:   &models.User{Username: "bob", Name: "Bob", Email: "bob@example.com"},
		Carol: &models.User{Username: "carol", Name: "Carol"},
	}
	for _, u := range []*models.User{f.Alice, f.Bob, f.Carol} {
		if err := store.CreateUser(ctx, u); err != nil {
			t.Fatalf("CreateUser failed: %v", err)
		}
	}

	f.Trip = &models.Trip{Title: "Lisbon", Destination: "Portugal", Members: []string{f.Alice.ID, f.Bob.ID, f.Carol.ID}}
	if err := store.CreateTrip(ctx, f.Trip); err != nil {
		t.Fatalf("CreateTrip failed: %v", err)
	}

	third := decimal.RequireFromString("30.00")
	f.Entry = &models.Entry{
		TripID:      f.Trip.ID,
		Description: "Dinner",
		Amount:      decimal.RequireFromString("90.00"),
		PaidBy:      f.Alice.ID,
		Date:        time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC),
		Splits: []models.Split{
			{UserID: f.Alice.ID, Amount: third},
			{UserID: f.Bob.ID, Amount: third, StripePayable: true},
			{UserID: f.Carol.ID, Amount: third, StripePayable: true},
		},
	}
	if err := store.CreateEntry(ctx, f.Entry); err != nil {
		t.Fatalf("CreateEntry failed: %v", err)
	}
	return f
}
