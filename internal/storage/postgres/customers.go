package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mmynk/tripvault/internal/models"
	"github.com/mmynk/tripvault/internal/storage"
)

// GetCustomerMapping retrieves the processor customer recorded for a user.
func (s *PostgresStore) GetCustomerMapping(ctx context.Context, userID string) (*models.CustomerMapping, error) {
	mapping := &models.CustomerMapping{}
	err := s.pool.QueryRow(ctx,
		"SELECT user_id, stripe_customer_id, email, created_at FROM stripe_customers WHERE user_id = $1",
		userID,
	).Scan(&mapping.UserID, &mapping.StripeCustomerID, &mapping.Email, &mapping.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("customer for user %s: %w", userID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get customer mapping: %w", err)
	}
	mapping.CreatedAt = mapping.CreatedAt.UTC()
	return mapping, nil
}

// CreateCustomerMapping records the processor customer for a user.
func (s *PostgresStore) CreateCustomerMapping(ctx context.Context, mapping *models.CustomerMapping) error {
	if mapping.CreatedAt.IsZero() {
		mapping.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		"INSERT INTO stripe_customers (user_id, stripe_customer_id, email, created_at) VALUES ($1, $2, $3, $4)",
		mapping.UserID, mapping.StripeCustomerID, mapping.Email, mapping.CreatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("customer for user %s: %w", mapping.UserID, storage.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("failed to create customer mapping: %w", err)
	}
	return nil
}
