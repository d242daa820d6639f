package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/mmynk/tripvault/internal/models"
	"github.com/mmynk/tripvault/internal/money"
	"github.com/mmynk/tripvault/internal/storage"
)

const transactionColumns = `t.id, t.split_id, t.payment_intent_id, t.amount, t.currency, t.status,
	t.payer_id, t.recipient_id, t.trip_id, t.charge_id, t.fee, t.net_amount, t.fee_status,
	t.error_message, t.created_at, t.completed_at`

// CreateTransaction persists a new payment attempt.
func (s *PostgresStore) CreateTransaction(ctx context.Context, txn *models.Transaction) error {
	amount, err := storage.PrepareTransaction(txn)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO vault_transactions (id, split_id, payment_intent_id, amount, currency, status,
		     payer_id, recipient_id, trip_id, fee_status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		txn.ID, txn.SplitID, txn.PaymentIntentID, amount, txn.Currency, string(txn.Status),
		txn.PayerID, txn.RecipientID, txn.TripID, string(txn.FeeStatus), txn.CreatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("transaction for intent %s: %w", txn.PaymentIntentID, storage.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

// GetTransactionByIntent retrieves a transaction by its payment intent ID.
func (s *PostgresStore) GetTransactionByIntent(ctx context.Context, paymentIntentID string) (*models.Transaction, error) {
	return getTransactionByIntent(ctx, s.pool, paymentIntentID)
}

func getTransactionByIntent(ctx context.Context, q querier, paymentIntentID string) (*models.Transaction, error) {
	txn, err := scanTransaction(q.QueryRow(ctx,
		`SELECT `+transactionColumns+` FROM vault_transactions t WHERE t.payment_intent_id = $1`,
		paymentIntentID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("transaction for intent %s: %w", paymentIntentID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return txn, nil
}

// GetPendingTransactionForSplit retrieves the split's pending attempt, if any.
func (s *PostgresStore) GetPendingTransactionForSplit(ctx context.Context, splitID string) (*models.Transaction, error) {
	txn, err := scanTransaction(s.pool.QueryRow(ctx,
		`SELECT `+transactionColumns+` FROM vault_transactions t WHERE t.split_id = $1 AND t.status = 'pending'`,
		splitID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("pending transaction for split %s: %w", splitID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pending transaction: %w", err)
	}
	return txn, nil
}

// CountTransactionsForSplit returns how many attempts were recorded for a split.
func (s *PostgresStore) CountTransactionsForSplit(ctx context.Context, splitID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM vault_transactions WHERE split_id = $1", splitID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return n, nil
}

// MarkTransactionSucceeded records the success and marks the split paid as one unit.
// The transaction row is locked for the duration so concurrent callers serialize.
func (s *PostgresStore) MarkTransactionSucceeded(ctx context.Context, update storage.SuccessUpdate) (*storage.SuccessResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var splitID, currency string
	err = tx.QueryRow(ctx,
		"SELECT split_id, currency FROM vault_transactions WHERE payment_intent_id = $1 FOR UPDATE",
		update.PaymentIntentID,
	).Scan(&splitID, &currency)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("transaction for intent %s: %w", update.PaymentIntentID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	fee, net, feeStatus, err := storage.FeeColumns(update.Fee, update.NetAmount, currency)
	if err != nil {
		return nil, err
	}

	tag, err := tx.Exec(ctx,
		`UPDATE vault_transactions
		 SET status = 'succeeded', charge_id = $1, fee = $2, net_amount = $3, fee_status = $4, completed_at = $5
		 WHERE payment_intent_id = $6 AND status = 'pending'`,
		nullString(update.ChargeID), fee, net, string(feeStatus), update.CompletedAt, update.PaymentIntentID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update transaction status: %w", err)
	}

	result := &storage.SuccessResult{}
	if tag.RowsAffected() == 1 {
		result.Applied = true

		tag, err = tx.Exec(ctx,
			`UPDATE vault_splits SET paid = TRUE, paid_via_stripe = TRUE, paid_at = $1
			 WHERE id = $2 AND NOT paid`,
			update.CompletedAt, splitID,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to mark split paid: %w", err)
		}
		result.SplitMarked = tag.RowsAffected() == 1
	}

	if result.Transaction, err = getTransactionByIntent(ctx, tx, update.PaymentIntentID); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return result, nil
}

// MarkTransactionFailed moves a pending transaction to failed.
func (s *PostgresStore) MarkTransactionFailed(ctx context.Context, paymentIntentID, message string, at time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE vault_transactions SET status = 'failed', error_message = $1, completed_at = $2
		 WHERE payment_intent_id = $3 AND status = 'pending'`,
		message, at, paymentIntentID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark transaction failed: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// MarkTransactionCanceled moves a pending transaction to canceled.
func (s *PostgresStore) MarkTransactionCanceled(ctx context.Context, paymentIntentID string, at time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE vault_transactions SET status = 'canceled', completed_at = $1
		 WHERE payment_intent_id = $2 AND status = 'pending'`,
		at, paymentIntentID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark transaction canceled: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ResolveFee fills in the fee of a succeeded transaction whose fee was unknown.
func (s *PostgresStore) ResolveFee(ctx context.Context, transactionID string, fee, net decimal.Decimal) (bool, error) {
	var currency string
	err := s.pool.QueryRow(ctx, "SELECT currency FROM vault_transactions WHERE id = $1", transactionID).Scan(&currency)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, fmt.Errorf("transaction %s: %w", transactionID, storage.ErrNotFound)
	}
	if err != nil {
		return false, fmt.Errorf("failed to get transaction: %w", err)
	}

	feeMinor, netMinor, _, err := storage.FeeColumns(&fee, &net, currency)
	if err != nil {
		return false, err
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE vault_transactions SET fee = $1, net_amount = $2, fee_status = 'known'
		 WHERE id = $3 AND status = 'succeeded' AND fee_status = 'unknown'`,
		feeMinor, netMinor, transactionID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to resolve fee: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListTransactionsByTrip retrieves a trip's transactions with payer and recipient names.
func (s *PostgresStore) ListTransactionsByTrip(ctx context.Context, tripID string) ([]*models.TransactionHistoryRow, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+transactionColumns+`,
		        payer.username, payer.name, recipient.username, recipient.name
		 FROM vault_transactions t
		 INNER JOIN users payer ON t.payer_id = payer.id
		 INNER JOIN users recipient ON t.recipient_id = recipient.id
		 WHERE t.trip_id = $1
		 ORDER BY t.created_at DESC, t.id`,
		tripID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (*models.TransactionHistoryRow, error) {
		row := &models.TransactionHistoryRow{}
		txn, err := scanTransaction(r, &row.PayerUsername, &row.PayerName, &row.RecipientUsername, &row.RecipientName)
		if err != nil {
			return nil, err
		}
		row.Transaction = *txn
		return row, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan transactions: %w", err)
	}
	return out, nil
}

// ListFeeUnknownTransactions retrieves succeeded transactions whose fee lookup failed.
func (s *PostgresStore) ListFeeUnknownTransactions(ctx context.Context, limit int) ([]*models.Transaction, error) {
	return s.listTransactions(ctx,
		`SELECT `+transactionColumns+` FROM vault_transactions t
		 WHERE t.status = 'succeeded' AND t.fee_status = 'unknown'
		 ORDER BY t.completed_at LIMIT $1`,
		limit,
	)
}

// ListFeeUnknownTransactionsForUser retrieves fee-unknown transactions the user paid or received.
func (s *PostgresStore) ListFeeUnknownTransactionsForUser(ctx context.Context, userID string, limit int) ([]*models.Transaction, error) {
	return s.listTransactions(ctx,
		`SELECT `+transactionColumns+` FROM vault_transactions t
		 WHERE t.status = 'succeeded' AND t.fee_status = 'unknown'
		   AND (t.payer_id = $1 OR t.recipient_id = $1)
		 ORDER BY t.completed_at LIMIT $2`,
		userID, limit,
	)
}

// ListStalePendingTransactions retrieves pending transactions created before cutoff.
func (s *PostgresStore) ListStalePendingTransactions(ctx context.Context, cutoff time.Time, limit int) ([]*models.Transaction, error) {
	return s.listTransactions(ctx,
		`SELECT `+transactionColumns+` FROM vault_transactions t
		 WHERE t.status = 'pending' AND t.created_at < $1
		 ORDER BY t.created_at LIMIT $2`,
		cutoff, limit,
	)
}

func (s *PostgresStore) listTransactions(ctx context.Context, query string, args ...any) ([]*models.Transaction, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (*models.Transaction, error) {
		return scanTransaction(r)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan transactions: %w", err)
	}
	return out, nil
}

// scanTransaction reads transactionColumns followed by any extra destinations.
func scanTransaction(row pgx.Row, extra ...any) (*models.Transaction, error) {
	txn := &models.Transaction{}
	var amount int64
	var status, feeStatus string
	var chargeID, errorMessage *string
	var fee, net *int64

	dest := []any{&txn.ID, &txn.SplitID, &txn.PaymentIntentID, &amount, &txn.Currency, &status,
		&txn.PayerID, &txn.RecipientID, &txn.TripID, &chargeID, &fee, &net, &feeStatus,
		&errorMessage, &txn.CreatedAt, &txn.CompletedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	txn.Amount = money.FromMinor(amount, txn.Currency)
	txn.Status = models.TransactionStatus(status)
	txn.FeeStatus = models.FeeStatus(feeStatus)
	if chargeID != nil {
		txn.ChargeID = *chargeID
	}
	if errorMessage != nil {
		txn.ErrorMessage = *errorMessage
	}
	if fee != nil {
		d := money.FromMinor(*fee, txn.Currency)
		txn.Fee = &d
	}
	if net != nil {
		d := money.FromMinor(*net, txn.Currency)
		txn.NetAmount = &d
	}
	txn.CreatedAt = txn.CreatedAt.UTC()
	txn.CompletedAt = utcPtr(txn.CompletedAt)
	return txn, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
