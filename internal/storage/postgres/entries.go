package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mmynk/tripvault/internal/models"
	"github.com/mmynk/tripvault/internal/money"
	"github.com/mmynk/tripvault/internal/storage"
)

const entryColumns = `id, trip_id, description, amount, currency, paid_by, category, date, created_at`

const splitColumns = `s.id, s.entry_id, s.user_id, s.amount, s.paid, s.stripe_payable,
	s.paid_via_stripe, s.paid_at, e.currency`

// CreateEntry persists a new entry and its splits in one transaction.
func (s *PostgresStore) CreateEntry(ctx context.Context, entry *models.Entry) error {
	row, err := storage.PrepareEntry(entry)
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	batch.Queue(
		`INSERT INTO vault_entries (`+entryColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		entry.ID, entry.TripID, entry.Description, row.Amount, entry.Currency, entry.PaidBy,
		entry.Category, entry.Date, entry.CreatedAt,
	)
	for i, split := range entry.Splits {
		batch.Queue(
			`INSERT INTO vault_splits (id, entry_id, position, user_id, amount, stripe_payable)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			split.ID, entry.ID, i, split.UserID, row.SplitAmounts[i], split.StripePayable,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to insert entry: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: %w", storage.ErrCommit, err)
	}
	return nil
}

// GetEntry retrieves an entry by ID, including its splits.
func (s *PostgresStore) GetEntry(ctx context.Context, entryID string) (*models.Entry, error) {
	entry, err := scanEntry(s.pool.QueryRow(ctx,
		`SELECT `+entryColumns+` FROM vault_entries WHERE id = $1`, entryID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("entry %s: %w", entryID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entry: %w", err)
	}

	entry.Splits, err = s.querySplits(ctx,
		`SELECT `+splitColumns+`
		 FROM vault_splits s JOIN vault_entries e ON s.entry_id = e.id
		 WHERE s.entry_id = $1 ORDER BY s.position`,
		entryID,
	)
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// ListTripEntries retrieves all entries of a trip with their splits.
func (s *PostgresStore) ListTripEntries(ctx context.Context, tripID string) ([]*models.Entry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+entryColumns+` FROM vault_entries WHERE trip_id = $1 ORDER BY date DESC, created_at DESC`,
		tripID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.Entry, error) {
		return scanEntry(row)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan entries: %w", err)
	}

	byID := make(map[string]*models.Entry, len(entries))
	for _, entry := range entries {
		byID[entry.ID] = entry
	}

	splits, err := s.querySplits(ctx,
		`SELECT `+splitColumns+`
		 FROM vault_splits s JOIN vault_entries e ON s.entry_id = e.id
		 WHERE e.trip_id = $1 ORDER BY s.entry_id, s.position`,
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
func (s *PostgresStore) DeleteEntry(ctx context.Context, entryID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var exists int
	err = tx.QueryRow(ctx, "SELECT 1 FROM vault_entries WHERE id = $1 FOR UPDATE", entryID).Scan(&exists)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("entry %s: %w", entryID, storage.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to check entry existence: %w", err)
	}

	var settled int
	err = tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM vault_transactions t
		 JOIN vault_splits s ON t.split_id = s.id
		 WHERE s.entry_id = $1 AND t.status IN ('pending', 'succeeded')`,
		entryID,
	).Scan(&settled)
	if err != nil {
		return fmt.Errorf("failed to check entry payments: %w", err)
	}
	if settled > 0 {
		return fmt.Errorf("entry %s has %d pending or settled payments: %w", entryID, settled, storage.ErrConflict)
	}

	if _, err := tx.Exec(ctx, "DELETE FROM vault_entries WHERE id = $1", entryID); err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetSplit retrieves a split with its entry's trip, payer and currency.
func (s *PostgresStore) GetSplit(ctx context.Context, splitID string) (*models.SplitContext, error) {
	sc := &models.SplitContext{}
	var amount int64
	err := s.pool.QueryRow(ctx,
		`SELECT s.id, s.entry_id, s.user_id, s.amount, s.paid, s.stripe_payable, s.paid_via_stripe, s.paid_at,
		        e.trip_id, e.paid_by, e.currency, e.description
		 FROM vault_splits s JOIN vault_entries e ON s.entry_id = e.id
		 WHERE s.id = $1`,
		splitID,
	).Scan(&sc.ID, &sc.EntryID, &sc.UserID, &amount, &sc.Paid, &sc.StripePayable, &sc.PaidViaStripe, &sc.PaidAt,
		&sc.TripID, &sc.RecipientID, &sc.Currency, &sc.Description)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("split %s: %w", splitID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get split: %w", err)
	}
	sc.Amount = money.FromMinor(amount, sc.Currency)
	sc.PaidAt = utcPtr(sc.PaidAt)
	return sc, nil
}

// ListUnpaidSplitsForUser retrieves a user's outstanding payable splits across trips.
func (s *PostgresStore) ListUnpaidSplitsForUser(ctx context.Context, userID string) ([]*models.UnpaidSplitRow, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+splitColumns+`,
		        e.trip_id, t.title, t.destination, e.description, e.category, e.date,
		        e.paid_by, payer.username, payer.name
		 FROM vault_splits s
		 INNER JOIN vault_entries e ON s.entry_id = e.id
		 INNER JOIN trips t ON e.trip_id = t.id
		 INNER JOIN users payer ON e.paid_by = payer.id
		 WHERE s.user_id = $1 AND NOT s.paid AND s.stripe_payable
		 ORDER BY e.date DESC, s.id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list unpaid splits: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (*models.UnpaidSplitRow, error) {
		row := &models.UnpaidSplitRow{}
		var amount int64
		err := r.Scan(&row.ID, &row.EntryID, &row.UserID, &amount, &row.Paid, &row.StripePayable,
			&row.PaidViaStripe, &row.PaidAt, &row.Currency,
			&row.TripID, &row.TripTitle, &row.TripDestination, &row.Description, &row.Category, &row.Date,
			&row.PaidBy, &row.PaidByUsername, &row.PaidByName)
		if err != nil {
			return nil, err
		}
		row.Amount = money.FromMinor(amount, row.Currency)
		row.PaidAt = utcPtr(row.PaidAt)
		row.Date = row.Date.UTC()
		return row, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan unpaid splits: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) querySplits(ctx context.Context, query string, args ...any) ([]models.Split, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get splits: %w", err)
	}
	splits, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (models.Split, error) {
		var split models.Split
		var amount int64
		var currency string
		err := r.Scan(&split.ID, &split.EntryID, &split.UserID, &amount, &split.Paid,
			&split.StripePayable, &split.PaidViaStripe, &split.PaidAt, &currency)
		if err != nil {
			return split, err
		}
		split.Amount = money.FromMinor(amount, currency)
		split.PaidAt = utcPtr(split.PaidAt)
		return split, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan splits: %w", err)
	}
	return splits, nil
}

func scanEntry(row pgx.Row) (*models.Entry, error) {
	entry := &models.Entry{}
	var amount int64
	var date, createdAt time.Time
	if err := row.Scan(&entry.ID, &entry.TripID, &entry.Description, &amount, &entry.Currency,
		&entry.PaidBy, &entry.Category, &date, &createdAt); err != nil {
		return nil, err
	}
	entry.Amount = money.FromMinor(amount, entry.Currency)
	entry.Date = date.UTC()
	entry.CreatedAt = createdAt.UTC()
	return entry, nil
}
