package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mmynk/tripvault/internal/models"
	"github.com/mmynk/tripvault/internal/money"
	"github.com/mmynk/tripvault/internal/storage"
)

const splitColumns = `s.id, s.entry_id, s.user_id, s.amount, s.paid, s.stripe_payable,
	s.paid_via_stripe, s.paid_at, e.currency`

// CreateEntry persists a new entry and its splits in one transaction.
func (s *SQLiteStore) CreateEntry(ctx context.Context, entry *models.Entry) error {
	row, err := storage.PrepareEntry(entry)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO vault_entries (id, trip_id, description, amount, currency, paid_by, category, date, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.TripID, entry.Description, row.Amount, entry.Currency, entry.PaidBy,
		entry.Category, toMicros(entry.Date), toMicros(entry.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert entry: %w", err)
	}

	for i := range entry.Splits {
		split := &entry.Splits[i]
		_, err = tx.ExecContext(ctx,
			`INSERT INTO vault_splits (id, entry_id, position, user_id, amount, paid, stripe_payable, paid_via_stripe, paid_at)
			 VALUES (?, ?, ?, ?, ?, 0, ?, 0, NULL)`,
			split.ID, entry.ID, i, split.UserID, row.SplitAmounts[i], split.StripePayable,
		)
		if err != nil {
			return fmt.Errorf("failed to insert split: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %w", storage.ErrCommit, err)
	}
	return nil
}

// GetEntry retrieves an entry by ID, including its splits.
func (s *SQLiteStore) GetEntry(ctx context.Context, entryID string) (*models.Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, trip_id, description, amount, currency, paid_by, category, date, created_at
		 FROM vault_entries WHERE id = ?`,
		entryID,
	)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("entry %s: %w", entryID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entry: %w", err)
	}

	splits, err := s.querySplits(ctx,
		`SELECT `+splitColumns+`
		 FROM vault_splits s JOIN vault_entries e ON s.entry_id = e.id
		 WHERE s.entry_id = ? ORDER BY s.position`,
		entryID,
	)
	if err != nil {
		return nil, err
	}
	entry.Splits = splits
	return entry, nil
}

// ListTripEntries retrieves all entries of a trip with their splits.
func (s *SQLiteStore) ListTripEntries(ctx context.Context, tripID string) ([]*models.Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, trip_id, description, amount, currency, paid_by, category, date, created_at
		 FROM vault_entries WHERE trip_id = ? ORDER BY date DESC, created_at DESC`,
		tripID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}

	var entries []*models.Entry
	byID := make(map[string]*models.Entry)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		entries = append(entries, entry)
		byID[entry.ID] = entry
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate entries: %w", err)
	}

	splits, err := s.querySplits(ctx,
		`SELECT `+splitColumns+`
		 FROM vault_splits s JOIN vault_entries e ON s.entry_id = e.id
		 WHERE e.trip_id = ? ORDER BY s.entry_id, s.position`,
		tripID,
	)
	if err != nil {
		return nil, err
	}
	for _, split := range splits {
		if entry, ok := byID[split.EntryID]; ok {
			entry.Splits = append(entry.Splits, split)
		}
	}
	return entries, nil
}

// DeleteEntry removes an entry unless its splits carry payment history.
func (s *SQLiteStore) DeleteEntry(ctx context.Context, entryID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, "SELECT 1 FROM vault_entries WHERE id = ?", entryID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("entry %s: %w", entryID, storage.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to check entry existence: %w", err)
	}

	var settled int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM vault_transactions t
		 JOIN vault_splits s ON t.split_id = s.id
		 WHERE s.entry_id = ? AND t.status IN ('pending', 'succeeded')`,
		entryID,
	).Scan(&settled)
	if err != nil {
		return fmt.Errorf("failed to check entry payments: %w", err)
	}
	if settled > 0 {
		return fmt.Errorf("entry %s has %d pending or settled payments: %w", entryID, settled, storage.ErrConflict)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM vault_entries WHERE id = ?", entryID); err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetSplit retrieves a split with its entry's trip, payer and currency.
func (s *SQLiteStore) GetSplit(ctx context.Context, splitID string) (*models.SplitContext, error) {
	sc := &models.SplitContext{}
	var amount int64
	var paidAt sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT s.id, s.entry_id, s.user_id, s.amount, s.paid, s.stripe_payable, s.paid_via_stripe, s.paid_at,
		        e.trip_id, e.paid_by, e.currency, e.description
		 FROM vault_splits s JOIN vault_entries e ON s.entry_id = e.id
		 WHERE s.id = ?`,
		splitID,
	).Scan(&sc.ID, &sc.EntryID, &sc.UserID, &amount, &sc.Paid, &sc.StripePayable, &sc.PaidViaStripe, &paidAt,
		&sc.TripID, &sc.RecipientID, &sc.Currency, &sc.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("split %s: %w", splitID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get split: %w", err)
	}
	sc.Amount = money.FromMinor(amount, sc.Currency)
	sc.PaidAt = timePtr(paidAt)
	return sc, nil
}

// ListUnpaidSplitsForUser retrieves a user's outstanding payable splits across trips.
func (s *SQLiteStore) ListUnpaidSplitsForUser(ctx context.Context, userID string) ([]*models.UnpaidSplitRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+splitColumns+`,
		        e.trip_id, t.title, t.destination, e.description, e.category, e.date,
		        e.paid_by, payer.username, payer.name
		 FROM vault_splits s
		 INNER JOIN vault_entries e ON s.entry_id = e.id
		 INNER JOIN trips t ON e.trip_id = t.id
		 INNER JOIN users payer ON e.paid_by = payer.id
		 WHERE s.user_id = ? AND s.paid = 0 AND s.stripe_payable = 1
		 ORDER BY e.date DESC, s.id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list unpaid splits: %w", err)
	}
	defer rows.Close()

	var out []*models.UnpaidSplitRow
	for rows.Next() {
		row := &models.UnpaidSplitRow{}
		var amount, date int64
		var paidAt sql.NullInt64
		if err := rows.Scan(&row.ID, &row.EntryID, &row.UserID, &amount, &row.Paid, &row.StripePayable,
			&row.PaidViaStripe, &paidAt, &row.Currency,
			&row.TripID, &row.TripTitle, &row.TripDestination, &row.Description, &row.Category, &date,
			&row.PaidBy, &row.PaidByUsername, &row.PaidByName); err != nil {
			return nil, fmt.Errorf("failed to scan unpaid split: %w", err)
		}
		row.Amount = money.FromMinor(amount, row.Currency)
		row.PaidAt = timePtr(paidAt)
		row.Date = fromMicros(date)
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate unpaid splits: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) querySplits(ctx context.Context, query string, args ...any) ([]models.Split, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get splits: %w", err)
	}
	defer rows.Close()

	var splits []models.Split
	for rows.Next() {
		var split models.Split
		var amount int64
		var paidAt sql.NullInt64
		var currency string
		if err := rows.Scan(&split.ID, &split.EntryID, &split.UserID, &amount, &split.Paid,
			&split.StripePayable, &split.PaidViaStripe, &paidAt, &currency); err != nil {
			return nil, fmt.Errorf("failed to scan split: %w", err)
		}
		split.Amount = money.FromMinor(amount, currency)
		split.PaidAt = timePtr(paidAt)
		splits = append(splits, split)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate splits: %w", err)
	}
	return splits, nil
}

func scanEntry(row scanner) (*models.Entry, error) {
	entry := &models.Entry{}
	var amount, date, createdAt int64
	if err := row.Scan(&entry.ID, &entry.TripID, &entry.Description, &amount, &entry.Currency,
		&entry.PaidBy, &entry.Category, &date, &createdAt); err != nil {
		return nil, err
	}
	entry.Amount = money.FromMinor(amount, entry.Currency)
	entry.Date = fromMicros(date)
	entry.CreatedAt = fromMicros(createdAt)
	return entry, nil
}
