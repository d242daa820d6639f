package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mmynk/tripvault/internal/models"
	"github.com/mmynk/tripvault/internal/storage"
)

// GetCustomerMapping retrieves the processor customer recorded for a user.
func (s *SQLiteStore) GetCustomerMapping(ctx context.Context, userID string) (*models.CustomerMapping, error) {
	mapping := &models.CustomerMapping{}
	var email string
	var createdAt int64
	err := s.db.QueryRowContext(ctx,
		"SELECT user_id, stripe_customer_id, email, created_at FROM stripe_customers WHERE user_id = ?",
		userID,
	).Scan(&mapping.UserID, &mapping.StripeCustomerID, &email, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("customer for user %s: %w", userID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get customer mapping: %w", err)
	}
	mapping.Email = email
	mapping.CreatedAt = fromMicros(createdAt)
	return mapping, nil
}

// CreateCustomerMapping records the processor customer for a user.
func (s *SQLiteStore) CreateCustomerMapping(ctx context.Context, mapping *models.CustomerMapping) error {
	if mapping.CreatedAt.IsZero() {
		mapping.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO stripe_customers (user_id, stripe_customer_id, email, created_at) VALUES (?, ?, ?, ?)",
		mapping.UserID, mapping.StripeCustomerID, mapping.Email, toMicros(mapping.CreatedAt),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("customer for user %s: %w", mapping.UserID, storage.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("failed to create customer mapping: %w", err)
	}
	return nil
}
