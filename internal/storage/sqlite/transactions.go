package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/tripvault/internal/models"
	"github.com/mmynk/tripvault/internal/money"
	"github.com/mmynk/tripvault/internal/storage"
)

const transactionColumns = `t.id, t.split_id, t.payment_intent_id, t.amount, t.currency, t.status,
	t.payer_id, t.recipient_id, t.trip_id, t.charge_id, t.fee, t.net_amount, t.fee_status,
	t.error_message, t.created_at, t.completed_at`

// CreateTransaction persists a new payment attempt.
func (s *SQLiteStore) CreateTransaction(ctx context.Context, txn *models.Transaction) error {
	amount, err := storage.PrepareTransaction(txn)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO vault_transactions (id, split_id, payment_intent_id, amount, currency, status,
		     payer_id, recipient_id, trip_id, fee_status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		txn.ID, txn.SplitID, txn.PaymentIntentID, amount, txn.Currency, string(txn.Status),
		txn.PayerID, txn.RecipientID, txn.TripID, string(txn.FeeStatus), toMicros(txn.CreatedAt),
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
func (s *SQLiteStore) GetTransactionByIntent(ctx context.Context, paymentIntentID string) (*models.Transaction, error) {
	return getTransactionByIntent(ctx, s.db, paymentIntentID)
}

func getTransactionByIntent(ctx context.Context, q querier, paymentIntentID string) (*models.Transaction, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM vault_transactions t WHERE t.payment_intent_id = ?`,
		paymentIntentID,
	)
	txn, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transaction for intent %s: %w", paymentIntentID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return txn, nil
}

// GetPendingTransactionForSplit retrieves the split's pending attempt, if any.
func (s *SQLiteStore) GetPendingTransactionForSplit(ctx context.Context, splitID string) (*models.Transaction, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM vault_transactions t WHERE t.split_id = ? AND t.status = 'pending'`,
		splitID,
	)
	txn, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("pending transaction for split %s: %w", splitID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pending transaction: %w", err)
	}
	return txn, nil
}

// CountTransactionsForSplit returns how many attempts were recorded for a split.
func (s *SQLiteStore) CountTransactionsForSplit(ctx context.Context, splitID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM vault_transactions WHERE split_id = ?", splitID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return n, nil
}

// MarkTransactionSucceeded records the success and marks the split paid as one unit.
func (s *SQLiteStore) MarkTransactionSucceeded(ctx context.Context, update storage.SuccessUpdate) (*storage.SuccessResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var splitID, currency string
	err = tx.QueryRowContext(ctx,
		"SELECT split_id, currency FROM vault_transactions WHERE payment_intent_id = ?",
		update.PaymentIntentID,
	).Scan(&splitID, &currency)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transaction for intent %s: %w", update.PaymentIntentID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	fee, net, feeStatus, err := storage.FeeColumns(update.Fee, update.NetAmount, currency)
	if err != nil {
		return nil, err
	}
	completedAt := toMicros(update.CompletedAt)

	res, err := tx.ExecContext(ctx,
		`UPDATE vault_transactions
		 SET status = 'succeeded', charge_id = ?, fee = ?, net_amount = ?, fee_status = ?, completed_at = ?
		 WHERE payment_intent_id = ? AND status = 'pending'`,
		nullString(update.ChargeID), fee, net, string(feeStatus), completedAt, update.PaymentIntentID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update transaction status: %w", err)
	}

	result := &storage.SuccessResult{}
	if n, err := res.RowsAffected(); err != nil {
		return nil, fmt.Errorf("failed to read rows affected: %w", err)
	} else if n == 1 {
		result.Applied = true

		res, err = tx.ExecContext(ctx,
			`UPDATE vault_splits SET paid = 1, paid_via_stripe = 1, paid_at = ?
			 WHERE id = ? AND paid = 0`,
			completedAt, splitID,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to mark split paid: %w", err)
		}
		marked, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("failed to read rows affected: %w", err)
		}
		result.SplitMarked = marked == 1
	}

	if result.Transaction, err = getTransactionByIntent(ctx, tx, update.PaymentIntentID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return result, nil
}

// MarkTransactionFailed moves a pending transaction to failed.
func (s *SQLiteStore) MarkTransactionFailed(ctx context.Context, paymentIntentID, message string, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE vault_transactions SET status = 'failed', error_message = ?, completed_at = ?
		 WHERE payment_intent_id = ? AND status = 'pending'`,
		message, toMicros(at), paymentIntentID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark transaction failed: %w", err)
	}
	return affectedOne(res)
}

// MarkTransactionCanceled moves a pending transaction to canceled.
func (s *SQLiteStore) MarkTransactionCanceled(ctx context.Context, paymentIntentID string, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE vault_transactions SET status = 'canceled', completed_at = ?
		 WHERE payment_intent_id = ? AND status = 'pending'`,
		toMicros(at), paymentIntentID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark transaction canceled: %w", err)
	}
	return affectedOne(res)
}

// ResolveFee fills in the fee of a succeeded transaction whose fee was unknown.
func (s *SQLiteStore) ResolveFee(ctx context.Context, transactionID string, fee, net decimal.Decimal) (bool, error) {
	var currency string
	err := s.db.QueryRowContext(ctx, "SELECT currency FROM vault_transactions WHERE id = ?", transactionID).Scan(&currency)
	if errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("transaction %s: %w", transactionID, storage.ErrNotFound)
	}
	if err != nil {
		return false, fmt.Errorf("failed to get transaction: %w", err)
	}

	feeMinor, netMinor, _, err := storage.FeeColumns(&fee, &net, currency)
	if err != nil {
		return false, err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE vault_transactions SET fee = ?, net_amount = ?, fee_status = 'known'
		 WHERE id = ? AND status = 'succeeded' AND fee_status = 'unknown'`,
		feeMinor, netMinor, transactionID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to resolve fee: %w", err)
	}
	return affectedOne(res)
}

// ListTransactionsByTrip retrieves a trip's transactions with payer and recipient names.
func (s *SQLiteStore) ListTransactionsByTrip(ctx context.Context, tripID string) ([]*models.TransactionHistoryRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+transactionColumns+`,
		        payer.username, payer.name, recipient.username, recipient.name
		 FROM vault_transactions t
		 INNER JOIN users payer ON t.payer_id = payer.id
		 INNER JOIN users recipient ON t.recipient_id = recipient.id
		 WHERE t.trip_id = ?
		 ORDER BY t.created_at DESC, t.id`,
		tripID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var out []*models.TransactionHistoryRow
	for rows.Next() {
		row := &models.TransactionHistoryRow{}
		txn, err := scanTransaction(rows, &row.PayerUsername, &row.PayerName, &row.RecipientUsername, &row.RecipientName)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		row.Transaction = *txn
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}
	return out, nil
}

// ListFeeUnknownTransactions retrieves succeeded transactions whose fee lookup failed.
func (s *SQLiteStore) ListFeeUnknownTransactions(ctx context.Context, limit int) ([]*models.Transaction, error) {
	return s.listTransactions(ctx,
		`SELECT `+transactionColumns+` FROM vault_transactions t
		 WHERE t.status = 'succeeded' AND t.fee_status = 'unknown'
		 ORDER BY t.completed_at LIMIT ?`,
		limit,
	)
}

// ListFeeUnknownTransactionsForUser retrieves fee-unknown transactions the user paid or received.
func (s *SQLiteStore) ListFeeUnknownTransactionsForUser(ctx context.Context, userID string, limit int) ([]*models.Transaction, error) {
	return s.listTransactions(ctx,
		`SELECT `+transactionColumns+` FROM vault_transactions t
		 WHERE t.status = 'succeeded' AND t.fee_status = 'unknown'
		   AND (t.payer_id = ? OR t.recipient_id = ?)
		 ORDER BY t.completed_at LIMIT ?`,
		userID, userID, limit,
	)
}

// ListStalePendingTransactions retrieves pending transactions created before cutoff.
func (s *SQLiteStore) ListStalePendingTransactions(ctx context.Context, cutoff time.Time, limit int) ([]*models.Transaction, error) {
	return s.listTransactions(ctx,
		`SELECT `+transactionColumns+` FROM vault_transactions t
		 WHERE t.status = 'pending' AND t.created_at < ?
		 ORDER BY t.created_at LIMIT ?`,
		toMicros(cutoff), limit,
	)
}

func (s *SQLiteStore) listTransactions(ctx context.Context, query string, args ...any) ([]*models.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var out []*models.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		out = append(out, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}
	return out, nil
}

// scanTransaction reads transactionColumns followed by any extra destinations.
func scanTransaction(row scanner, extra ...any) (*models.Transaction, error) {
	txn := &models.Transaction{}
	var amount, createdAt int64
	var status, feeStatus string
	var chargeID, errorMessage sql.NullString
	var fee, net, completedAt sql.NullInt64

	dest := []any{&txn.ID, &txn.SplitID, &txn.PaymentIntentID, &amount, &txn.Currency, &status,
		&txn.PayerID, &txn.RecipientID, &txn.TripID, &chargeID, &fee, &net, &feeStatus,
		&errorMessage, &createdAt, &completedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	txn.Amount = money.FromMinor(amount, txn.Currency)
	txn.Status = models.TransactionStatus(status)
	txn.FeeStatus = models.FeeStatus(feeStatus)
	txn.ChargeID = chargeID.String
	txn.ErrorMessage = errorMessage.String
	if fee.Valid {
		d := money.FromMinor(fee.Int64, txn.Currency)
		txn.Fee = &d
	}
	if net.Valid {
		d := money.FromMinor(net.Int64, txn.Currency)
		txn.NetAmount = &d
	}
	txn.CreatedAt = fromMicros(createdAt)
	txn.CompletedAt = timePtr(completedAt)
	return txn, nil
}

func affectedOne(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n == 1, nil
}
