package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/simaogato/kipubank-backend/internal/domain"
)

// PayoutDispatcher delivers the payouts of a committed unit of work
type PayoutDispatcher interface {
	Dispatch(ctx context.Context, payouts []domain.Payout)
}

var errNoUnit = errors.New("payout requested outside a ledger unit of work")

// Outbox is a Transferer that records the payout in the running unit of work
// instead of delivering it. The payout is inserted by the same storage
// transaction as the debit and reaches the ledger's PayoutDispatcher only
// after that transaction commits, so a withdrawal that rolls back never pays out.
type Outbox struct {
	now func() time.Time
}

func NewOutbox() *Outbox {
	return &Outbox{now: time.Now}
}

func (o *Outbox) Transfer(ctx context.Context, asset, to domain.Address, amount decimal.Decimal) error {
	u, ok := unitFrom(ctx)
	if !ok {
		return errNoUnit
	}
	u.enqueue(domain.Payout{
		ID:        uuid.New(),
		Asset:     asset,
		Account:   to,
		Amount:    amount,
		CreatedAt: o.now().UTC(),
	})
	return nil
}
