package models

import "time"

// User is the identity of someone who pays or is paid.
type User struct {
	// ID is the unique identifier for the user (UUID format).
	ID string

	// Username is the unique handle shown next to ledger rows.
	Username string

	// Name is the display name of the user.
	Name string

	// Email is sent to the payment processor when a customer is created.
	Email string

	CreatedAt time.Time
}

// CustomerMapping links a local user to the payment processor's customer object.
// There is at most one mapping per user and per processor customer ID.
type CustomerMapping struct {
	UserID           string
	StripeCustomerID string
	Email            string
	CreatedAt        time.Time
}
