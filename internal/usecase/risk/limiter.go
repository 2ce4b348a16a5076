package risk

import (
	"context"
	"fmt"

	"github.com/simaogato/kipubank-backend/internal/domain"
	"github.com/simaogato/kipubank-backend/internal/usecase/oracle"
)

// Valuer computes the current USD exposure of a set of holdings
type Valuer interface {
	CurrentTotalUSD(ctx context.Context, holdings oracle.Holdings) (domain.USD, error)
}

// Limiter enforces the global custody cap and the per-withdrawal ceiling.
// It holds no mutable state; both limits are fixed for its lifetime.
type Limiter struct {
	valuer     Valuer
	globalCap  domain.USD
	perTxLimit domain.USD
}

// NewLimiter creates a Limiter. Both limits must be positive.
func NewLimiter(valuer Valuer, globalCap, perTxLimit domain.USD) (*Limiter, error) {
	if globalCap.Cmp(domain.USD{}) <= 0 {
		return nil, fmt.Errorf("global cap must be positive, got %s", globalCap)
	}
	if perTxLimit.Cmp(domain.USD{}) <= 0 {
		return nil, fmt.Errorf("per-transaction limit must be positive, got %s", perTxLimit)
	}
	return &Limiter{
		valuer:     valuer,
		globalCap:  globalCap,
		perTxLimit: perTxLimit,
	}, nil
}

func (l *Limiter) GlobalCap() domain.USD {
	return l.globalCap
}

func (l *Limiter) PerTxLimit() domain.USD {
	return l.perTxLimit
}

// CheckDeposit passes iff current exposure plus proposed stays within the global cap
func (l *Limiter) CheckDeposit(ctx context.Context, holdings oracle.Holdings, proposed domain.USD) error {
	current, err := l.valuer.CurrentTotalUSD(ctx, holdings)
	if err != nil {
		return err
	}
	if current.Add(proposed).GreaterThan(l.globalCap) {
		return &domain.CapExceededError{
			Proposed: proposed,
			Headroom: l.headroom(current),
		}
	}
	return nil
}

// CheckWithdrawal passes iff proposed does not exceed the per-transaction limit
func (l *Limiter) CheckWithdrawal(proposed domain.USD) error {
	if proposed.GreaterThan(l.perTxLimit) {
		return &domain.LimitExceededError{
			Proposed: proposed,
			Limit:    l.perTxLimit,
		}
	}
	return nil
}

// CheckCap validates holdings that already include a pending change
func (l *Limiter) CheckCap(ctx context.Context, holdings oracle.Holdings) error {
	current, err := l.valuer.CurrentTotalUSD(ctx, holdings)
	if err != nil {
		return err
	}
	if current.GreaterThan(l.globalCap) {
		return &domain.CapExceededError{
			Proposed: current,
			Headroom: domain.USD{},
		}
	}
	return nil
}

// Headroom returns how much USD value may still be deposited
func (l *Limiter) Headroom(ctx context.Context, holdings oracle.Holdings) (domain.USD, error) {
	current, err := l.valuer.CurrentTotalUSD(ctx, holdings)
	if err != nil {
		return domain.USD{}, err
	}
	return l.headroom(current), nil
}

func (l *Limiter) headroom(current domain.USD) domain.USD {
	remaining := l.globalCap.Sub(current)
	if remaining.IsNegative() {
		return domain.USD{}
	}
	return remaining
}
