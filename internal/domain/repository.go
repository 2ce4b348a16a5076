package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// LedgerRepository defines persistence of balances, totals and tracked assets
type LedgerRepository interface {
	// Load reads the whole persisted ledger state
	Load(ctx context.Context) (*LedgerSnapshot, error)

	// Begin opens a storage transaction for one ledger unit of work
	Begin(ctx context.Context) (LedgerTx, error)
}

// LedgerTx is an open storage transaction
type LedgerTx interface {
	// Apply writes absolute balance, total and tracked-asset rows and inserts payouts
	Apply(ctx context.Context, changes LedgerChanges) error

	Commit() error

	// Rollback discards the transaction; it is safe to call after Commit
	Rollback() error
}

// PriceBindingRepository defines persistence of price bindings
type PriceBindingRepository interface {
	// Save creates or replaces the binding for record.Asset and tracks the asset
	Save(ctx context.Context, record *PriceBindingRecord) error

	// GetByAsset retrieves the binding of an asset
	GetByAsset(ctx context.Context, asset Address) (*PriceBindingRecord, error)

	// List retrieves all bindings
	List(ctx context.Context) ([]*PriceBindingRecord, error)
}

// RecoveryRecordRepository defines persistence of recovery audit records
type RecoveryRecordRepository interface {
	// Add stores a new record
	Add(ctx context.Context, record *RecoveryRecord) error

	// ListByAccount retrieves the most recent records of an account, newest first
	ListByAccount(ctx context.Context, account Address, limit int) ([]*RecoveryRecord, error)
}

// PayoutOutboxRepository reads and settles payouts written by ledger transactions
type PayoutOutboxRepository interface {
	// Pending lists undelivered payouts created before the cutoff, oldest first
	Pending(ctx context.Context, before time.Time, limit int) ([]Payout, error)

	// MarkSent records the delivery of a payout
	MarkSent(ctx context.Context, id uuid.UUID) error
}
