package postgres

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// DB wraps the database connection
type DB struct {
	*sql.DB
}

// NewDB creates a new database connection
// connectionString should be in the format: "host=localhost port=5432 user=postgres password=postgres dbname=kipubank sslmode=disable"
func NewDB(connectionString string) (*DB, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: db}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS ledger_balances (
	asset      TEXT NOT NULL,
	account    TEXT NOT NULL,
	amount     NUMERIC(78, 0) NOT NULL CHECK (amount >= 0),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (asset, account)
);

CREATE TABLE IF NOT EXISTS ledger_totals (
	asset      TEXT PRIMARY KEY,
	amount     NUMERIC(78, 0) NOT NULL CHECK (amount >= 0),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS tracked_assets (
	seq   BIGSERIAL,
	asset TEXT PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS price_bindings (
	asset      TEXT PRIMARY KEY,
	source_ref TEXT NOT NULL,
	scaled     BOOLEAN NOT NULL DEFAULT FALSE,
	decimals   INTEGER NOT NULL CHECK (decimals >= 0),
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS recovery_records (
	id          UUID PRIMARY KEY,
	asset       TEXT NOT NULL,
	account     TEXT NOT NULL,
	old_balance NUMERIC(78, 0) NOT NULL,
	new_balance NUMERIC(78, 0) NOT NULL,
	operator    TEXT NOT NULL,
	recorded_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS recovery_records_account_idx ON recovery_records (account, recorded_at DESC);

CREATE TABLE IF NOT EXISTS payout_outbox (
	id         UUID PRIMARY KEY,
	asset      TEXT NOT NULL,
	account    TEXT NOT NULL,
	amount     NUMERIC(78, 0) NOT NULL CHECK (amount > 0),
	created_at TIMESTAMPTZ NOT NULL,
	sent_at    TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS payout_outbox_pending_idx ON payout_outbox (created_at) WHERE sent_at IS NULL;
`

// EnsureSchema creates the custody tables if they do not exist
func (db *DB) EnsureSchema(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}
