package models

import (
	"slices"
	"time"
)

// Trip groups the people who share a vault.
type Trip struct {
	// ID is the unique identifier for the trip (UUID format).
	ID string

	Title       string
	Destination string

	// Members holds the user IDs allowed to record and settle expenses.
	Members []string

	CreatedAt time.Time
}

// HasMember reports whether userID belongs to the trip.
func (t *Trip) HasMember(userID string) bool {
	return slices.Contains(t.Members, userID)
}
