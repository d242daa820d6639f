package sqlite

import (
	"context"
	"database/sql"
)

// schema sets up the ledger tables. It runs on startup to ensure tables exist.
// Amounts are stored in the currency's minor unit and timestamps as Unix
// microseconds in UTC.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    username TEXT NOT NULL UNIQUE,
    name TEXT NOT NULL,
    email TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS trips (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    destination TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS trip_members (
    trip_id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    PRIMARY KEY (trip_id, user_id),
    FOREIGN KEY (trip_id) REFERENCES trips(id) ON DELETE CASCADE,
    FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS vault_entries (
    id TEXT PRIMARY KEY,
    trip_id TEXT NOT NULL,
    description TEXT NOT NULL,
    amount INTEGER NOT NULL CHECK (amount > 0),
    currency TEXT NOT NULL DEFAULT 'USD',
    paid_by TEXT NOT NULL,
    category TEXT NOT NULL DEFAULT 'general',
    date INTEGER NOT NULL,
    created_at INTEGER NOT NULL,
    FOREIGN KEY (trip_id) REFERENCES trips(id) ON DELETE CASCADE,
    FOREIGN KEY (paid_by) REFERENCES users(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS vault_splits (
    id TEXT PRIMARY KEY,
    entry_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    user_id TEXT NOT NULL,
    amount INTEGER NOT NULL CHECK (amount > 0),
    paid INTEGER NOT NULL DEFAULT 0,
    stripe_payable INTEGER NOT NULL DEFAULT 1,
    paid_via_stripe INTEGER NOT NULL DEFAULT 0,
    paid_at INTEGER,
    UNIQUE (entry_id, user_id),
    FOREIGN KEY (entry_id) REFERENCES vault_entries(id) ON DELETE CASCADE,
    FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS stripe_customers (
    user_id TEXT PRIMARY KEY,
    stripe_customer_id TEXT NOT NULL UNIQUE,
    email TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL,
    FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS vault_transactions (
    id TEXT PRIMARY KEY,
    split_id TEXT NOT NULL,
    payment_intent_id TEXT NOT NULL UNIQUE,
    amount INTEGER NOT NULL,
    currency TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'pending'
        CHECK (status IN ('pending', 'succeeded', 'failed', 'canceled')),
    payer_id TEXT NOT NULL,
    recipient_id TEXT NOT NULL,
    trip_id TEXT NOT NULL,
    charge_id TEXT,
    fee INTEGER,
    net_amount INTEGER,
    fee_status TEXT NOT NULL DEFAULT 'none'
        CHECK (fee_status IN ('none', 'known', 'unknown')),
    error_message TEXT,
    created_at INTEGER NOT NULL,
    completed_at INTEGER,
    FOREIGN KEY (split_id) REFERENCES vault_splits(id) ON DELETE CASCADE,
    FOREIGN KEY (payer_id) REFERENCES users(id) ON DELETE CASCADE,
    FOREIGN KEY (recipient_id) REFERENCES users(id) ON DELETE CASCADE,
    FOREIGN KEY (trip_id) REFERENCES trips(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_trip_members_user_id ON trip_members(user_id);
CREATE INDEX IF NOT EXISTS idx_vault_entries_trip_id ON vault_entries(trip_id);
CREATE INDEX IF NOT EXISTS idx_vault_splits_entry_id ON vault_splits(entry_id);
CREATE INDEX IF NOT EXISTS idx_vault_splits_user_unpaid ON vault_splits(user_id, paid);
CREATE INDEX IF NOT EXISTS idx_vault_transactions_trip ON vault_transactions(trip_id);
CREATE INDEX IF NOT EXISTS idx_vault_transactions_status ON vault_transactions(status);
CREATE INDEX IF NOT EXISTS idx_vault_transactions_split ON vault_transactions(split_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_vault_transactions_one_pending
    ON vault_transactions(split_id) WHERE status = 'pending';
`

// runMigrations executes the schema setup.
func runMigrations(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schema)
	return err
}
