// Package models defines the core domain models for the trip vault.
//
// # Ledger Models
//
//   - Entry: an expense paid by one trip member on behalf of the trip
//   - Split: one participant's share of an Entry
//   - Transaction: one attempt to settle a Split through the payment processor
//   - CustomerMapping: the processor customer that belongs to a local user
//
// Trip and User carry only the identity fields the ledger joins against.
// Users, trips and their membership are owned by other parts of the system.
//
// # Money
//
// Amounts are decimal.Decimal values tagged with an ISO currency code. The
// storage layer persists them in the currency's minor unit (see package money),
// so a value that cannot be represented exactly in minor units never reaches
// the database.
//
// # Ownership
//
// Entries and their splits are written once, together, and are read-mostly
// afterwards. Transactions are created by the payment gateway adapter and only
// ever mutated by the reconciliation engine. A split's Paid flag is set by the
// engine when one of its transactions succeeds and is never cleared.
package models
