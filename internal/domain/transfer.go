package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transferer delivers value out of custody.
// It may call back into the ledger with the same ctx before returning.
type Transferer interface {
	Transfer(ctx context.Context, asset Address, to Address, amount decimal.Decimal) error
}

// EventPublisher publishes audit records for downstream consumers
type EventPublisher interface {
	PublishRecovery(ctx context.Context, record *RecoveryRecord) error
}

// Payout is a withdrawal waiting for delivery out of custody.
// It is stored in the same transaction as the debit that produced it and the
// ID lets the payout rail discard repeated deliveries.
type Payout struct {
	ID        uuid.UUID
	Asset     Address
	Account   Address
	Amount    decimal.Decimal
	CreatedAt time.Time
}
