package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/simaogato/kipubank-backend/internal/domain"
	"github.com/simaogato/kipubank-backend/internal/metrics"
	"github.com/simaogato/kipubank-backend/internal/usecase/oracle"
	"github.com/simaogato/kipubank-backend/internal/usecase/registry"
)

// Pricer values amounts and holdings in normalized USD
type Pricer interface {
	ValueInUSD(ctx context.Context, asset domain.Address, amount decimal.Decimal) (domain.USD, error)
	CurrentTotalUSD(ctx context.Context, holdings oracle.Holdings) (domain.USD, error)
}

// RiskChecker approves value changes before they are committed
type RiskChecker interface {
	CheckDeposit(ctx context.Context, holdings oracle.Holdings, proposed domain.USD) error
	CheckWithdrawal(proposed domain.USD) error
}

// Ledger is the balance store. It is the only component that writes balances
// and asset totals, and it serializes every operation: one unit of work
// commits or rolls back completely before the next one starts.
type Ledger struct {
	Registry   *registry.AssetRegistry
	Prices     Pricer
	Limiter    RiskChecker
	Access     domain.AccessController
	Transferer domain.Transferer
	Repo       domain.LedgerRepository
	// Payouts receives the payouts of each committed unit, after the ledger
	// lock is released. Nil drops them.
	Payouts PayoutDispatcher

	mu       sync.Mutex
	balances map[domain.BalanceKey]decimal.Decimal
	totals   map[domain.Address]decimal.Decimal
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// NewLedger creates a new, empty Ledger. repo may be nil for a memory-only ledger.
func NewLedger(
	assets *registry.AssetRegistry,
	prices Pricer,
	limiter RiskChecker,
	access domain.AccessController,
	transferer domain.Transferer,
	repo domain.LedgerRepository,
	logger *slog.Logger,
	m *metrics.Metrics,
) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{
		Registry:   assets,
		Prices:     prices,
		Limiter:    limiter,
		Access:     access,
		Transferer: transferer,
		Repo:       repo,
		balances:   make(map[domain.BalanceKey]decimal.Decimal),
		totals:     make(map[domain.Address]decimal.Decimal),
		logger:     logger,
		metrics:    m,
	}
}

// Execute runs fn as one atomic unit of work.
// If fn fails, or the storage commit fails, every balance, total,
// tracked-asset and payout change made by fn is undone. When ctx already
// carries a unit of this ledger (a reentrant call made while handing value to
// the transferer), fn runs nested inside it: it sees the outer unit's pending
// writes and a failure undoes only its own.
func (l *Ledger) Execute(ctx context.Context, fn func(ctx context.Context, u *Unit) error) error {
	if u, ok := unitFrom(ctx); ok && u.ledger == l {
		mark := u.mark()
		if err := fn(ctx, u); err != nil {
			u.rollbackTo(mark)
			return err
		}
		return nil
	}

	payouts, err := l.run(ctx, fn)
	if err != nil {
		return err
	}
	if len(payouts) > 0 && l.Payouts != nil {
		l.Payouts.Dispatch(ctx, payouts)
	}
	return nil
}

// Exclusive runs fn while no other ledger operation is in progress.
// Components sharing the asset registry use it to keep their writes ordered
// with the ledger's.
func (l *Ledger) Exclusive(ctx context.Context, fn func(ctx context.Context) error) error {
	return l.Execute(ctx, func(ctx context.Context, _ *Unit) error {
		return fn(ctx)
	})
}

func (l *Ledger) run(ctx context.Context, fn func(ctx context.Context, u *Unit) error) ([]domain.Payout, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	u := newUnit(l)
	ctx = withUnit(ctx, u)
	if err := fn(ctx, u); err != nil {
		u.abort()
		return nil, err
	}
	if err := u.commit(ctx); err != nil {
		u.abort()
		return nil, err
	}

	l.metrics.SetTrackedAssets(l.Registry.Len())
	return u.payouts, nil
}

// Deposit credits amount of asset to account.
// Checks: amount > 0, the asset can be tracked, and the deposit's USD value
// keeps total custody within the global cap. Returns the new balance.
func (l *Ledger) Deposit(ctx context.Context, asset, account domain.Address, amount decimal.Decimal) (decimal.Decimal, error) {
	start := time.Now()
	var balance decimal.Decimal

	err := l.Execute(ctx, func(ctx context.Context, u *Unit) error {
		if err := domain.ValidateAmount(amount); err != nil {
			return err
		}
		if !l.Registry.CanTrack(asset) {
			return fmt.Errorf("%w: cannot deposit %s", domain.ErrTooManyAssets, asset)
		}

		value, err := l.Prices.ValueInUSD(ctx, asset, amount)
		if err != nil {
			return err
		}
		if err := l.Limiter.CheckDeposit(ctx, u, value); err != nil {
			return err
		}

		if err := u.Credit(asset, account, amount); err != nil {
			return err
		}
		balance = u.BalanceOf(asset, account)
		return nil
	})

	l.metrics.ObserveOperation("deposit", metrics.StatusOf(err), time.Since(start))
	if err != nil {
		l.logger.Warn("deposit rejected",
			"asset", asset.String(),
			"account", account.String(),
			"amount", amount.String(),
			"error", err,
		)
		return decimal.Zero, err
	}

	l.logger.Info("deposit committed",
		"asset", asset.String(),
		"account", account.String(),
		"amount", amount.String(),
	)
	return balance, nil
}

// Withdraw debits amount of asset from account and hands it to the transferer.
// Order: validate, value and limit-check; write the debit; then transfer. A
// reentrant call made by the transferer already sees the debit. If the
// transfer fails the debit is rolled back and TransferFailed is returned.
func (l *Ledger) Withdraw(ctx context.Context, asset, account domain.Address, amount decimal.Decimal) (decimal.Decimal, error) {
	start := time.Now()
	var balance decimal.Decimal

	err := l.Execute(ctx, func(ctx context.Context, u *Unit) error {
		if err := domain.ValidateAmount(amount); err != nil {
			return err
		}
		available := u.BalanceOf(asset, account)
		if amount.GreaterThan(available) {
			return &domain.InsufficientBalanceError{Asset: asset, Requested: amount, Available: available}
		}

		value, err := l.Prices.ValueInUSD(ctx, asset, amount)
		if err != nil {
			return err
		}
		if err := l.Limiter.CheckWithdrawal(value); err != nil {
			return err
		}

		// Effects
		if err := u.Debit(asset, account, amount); err != nil {
			return err
		}
		if err := u.Flush(ctx); err != nil {
			return err
		}

		// Interaction
		if err := l.Transferer.Transfer(ctx, asset, account, amount); err != nil {
			return fmt.Errorf("%w: %w", domain.ErrTransferFailed, err)
		}
		balance = u.BalanceOf(asset, account)
		return nil
	})

	l.metrics.ObserveOperation("withdraw", metrics.StatusOf(err), time.Since(start))
	if err != nil {
		l.logger.Warn("withdrawal rejected",
			"asset", asset.String(),
			"account", account.String(),
			"amount", amount.String(),
			"error", err,
		)
		return decimal.Zero, err
	}

	l.logger.Info("withdrawal committed",
		"asset", asset.String(),
		"account", account.String(),
		"amount", amount.String(),
	)
	return balance, nil
}

// BalanceOf returns account's balance of asset in smallest units.
// Only the account itself or an admin may read it.
func (l *Ledger) BalanceOf(ctx context.Context, caller, asset, account domain.Address) (decimal.Decimal, error) {
	if err := l.authorizeRead(ctx, caller, account); err != nil {
		return decimal.Zero, err
	}

	var balance decimal.Decimal
	err := l.Execute(ctx, func(ctx context.Context, u *Unit) error {
		balance = u.BalanceOf(asset, account)
		return nil
	})
	return balance, err
}

// BalanceOfUSD returns account's balance of asset valued in normalized USD.
// A zero balance is worth zero without consulting the price source.
func (l *Ledger) BalanceOfUSD(ctx context.Context, caller, asset, account domain.Address) (domain.USD, error) {
	if err := l.authorizeRead(ctx, caller, account); err != nil {
		return domain.USD{}, err
	}

	var value domain.USD
	err := l.Execute(ctx, func(ctx context.Context, u *Unit) error {
		balance := u.BalanceOf(asset, account)
		if balance.IsZero() {
			return nil
		}
		v, err := l.Prices.ValueInUSD(ctx, asset, balance)
		if err != nil {
			return err
		}
		value = v
		return nil
	})
	return value, err
}

// TotalUSD returns the USD value of everything in custody. Owner only.
func (l *Ledger) TotalUSD(ctx context.Context, caller domain.Address) (domain.USD, error) {
	if !l.Access.CanManagePermissions(ctx, caller) {
		return domain.USD{}, fmt.Errorf("%w: %s cannot read total custody", domain.ErrUnauthorized, caller)
	}

	var total domain.USD
	err := l.Execute(ctx, func(ctx context.Context, u *Unit) error {
		v, err := l.Prices.CurrentTotalUSD(ctx, u)
		if err != nil {
			return err
		}
		total = v
		return nil
	})
	return total, err
}

// Totals lists every tracked asset with its recorded total, in first-seen order
func (l *Ledger) Totals(ctx context.Context) ([]domain.AssetTotal, error) {
	var out []domain.AssetTotal
	err := l.Execute(ctx, func(ctx context.Context, u *Unit) error {
		for asset := range l.Registry.All() {
			out = append(out, domain.AssetTotal{Asset: asset, Amount: u.TotalOf(asset)})
		}
		return nil
	})
	return out, err
}

// Restore replaces the in-memory state with the persisted snapshot.
// The snapshot must satisfy conservation and non-negativity.
func (l *Ledger) Restore(ctx context.Context) error {
	if l.Repo == nil {
		return nil
	}
	snapshot, err := l.Repo.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load ledger snapshot: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	balances := make(map[domain.BalanceKey]decimal.Decimal, len(snapshot.Balances))
	for _, entry := range snapshot.Balances {
		balances[domain.BalanceKey{Asset: entry.Asset, Account: entry.Account}] = entry.Amount
	}
	totals := make(map[domain.Address]decimal.Decimal, len(snapshot.Totals))
	for _, total := range snapshot.Totals {
		totals[total.Asset] = total.Amount
	}
	if err := checkInvariants(balances, totals); err != nil {
		return fmt.Errorf("ledger snapshot rejected: %w", err)
	}

	for _, asset := range snapshot.Tracked {
		if _, err := l.Registry.Track(asset); err != nil {
			return fmt.Errorf("failed to track restored asset: %w", err)
		}
	}
	l.balances = balances
	l.totals = totals
	l.metrics.SetTrackedAssets(l.Registry.Len())

	l.logger.Info("ledger restored",
		"balances", len(balances),
		"assets", l.Registry.Len(),
	)
	return nil
}

// CheckInvariants verifies that no balance or total is negative and that every
// asset total equals the sum of its balances
func (l *Ledger) CheckInvariants(ctx context.Context) error {
	return l.Execute(ctx, func(ctx context.Context, u *Unit) error {
		return checkInvariants(l.balances, l.totals)
	})
}

func (l *Ledger) authorizeRead(ctx context.Context, caller, account domain.Address) error {
	if caller == account || l.Access.HasRecoveryPermission(ctx, caller) {
		return nil
	}
	return fmt.Errorf("%w: %s cannot read balances of %s", domain.ErrUnauthorized, caller, account)
}

func checkInvariants(balances map[domain.BalanceKey]decimal.Decimal, totals map[domain.Address]decimal.Decimal) error {
	sums := make(map[domain.Address]decimal.Decimal, len(totals))
	for key, amount := range balances {
		if amount.IsNegative() {
			return fmt.Errorf("negative balance %s for %s in %s", amount, key.Account, key.Asset)
		}
		sums[key.Asset] = sums[key.Asset].Add(amount)
	}
	for asset, total := range totals {
		if total.IsNegative() {
			return fmt.Errorf("negative total %s for %s", total, asset)
		}
		if !sums[asset].Equal(total) {
			return fmt.Errorf("total of %s is %s but balances sum to %s", asset, total, sums[asset])
		}
	}
	for asset, sum := range sums {
		if _, ok := totals[asset]; !ok && !sum.IsZero() {
			return fmt.Errorf("balances of %s sum to %s without a recorded total", asset, sum)
		}
	}
	return nil
}
