package ledger

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/simaogato/kipubank-backend/internal/domain"
)

type undoKind int

const (
	undoBalance undoKind = iota
	undoTotal
	undoTrack
	undoPayout
)

// undo restores one value overwritten inside a unit of work
type undo struct {
	kind    undoKind
	key     domain.BalanceKey
	prev    decimal.Decimal
	existed bool
}

// Unit is one atomic unit of work over the ledger.
// Every write is journaled so the whole unit, or a nested part of it, can be
// undone. A Unit is only valid inside the Execute callback that received it
// and must not be shared with other goroutines.
type Unit struct {
	ledger  *Ledger
	journal []undo

	dirtyBalances map[domain.BalanceKey]struct{}
	dirtyTotals   map[domain.Address]struct{}
	tracked       []domain.Address
	payouts       []domain.Payout

	tx domain.LedgerTx
}

func newUnit(l *Ledger) *Unit {
	return &Unit{
		ledger:        l,
		dirtyBalances: make(map[domain.BalanceKey]struct{}),
		dirtyTotals:   make(map[domain.Address]struct{}),
	}
}

type unitContextKey struct{}

func withUnit(ctx context.Context, u *Unit) context.Context {
	return context.WithValue(ctx, unitContextKey{}, u)
}

func unitFrom(ctx context.Context) (*Unit, bool) {
	u, ok := ctx.Value(unitContextKey{}).(*Unit)
	return u, ok && u != nil
}

// BalanceOf returns the recorded balance, including writes made in this unit
func (u *Unit) BalanceOf(asset, account domain.Address) decimal.Decimal {
	return u.ledger.balances[domain.BalanceKey{Asset: asset, Account: account}]
}

// TotalOf returns the recorded asset total, including writes made in this unit
func (u *Unit) TotalOf(asset domain.Address) decimal.Decimal {
	return u.ledger.totals[asset]
}

// Credit increases a balance and its asset total by amount and tracks the asset
func (u *Unit) Credit(asset, account domain.Address, amount decimal.Decimal) error {
	if err := domain.ValidateAmount(amount); err != nil {
		return err
	}
	if err := u.track(asset); err != nil {
		return err
	}

	key := domain.BalanceKey{Asset: asset, Account: account}
	u.setBalance(key, u.BalanceOf(asset, account).Add(amount))
	u.setTotal(asset, u.TotalOf(asset).Add(amount))
	return nil
}

// Debit decreases a balance and its asset total by amount.
// Fails with InsufficientBalance, reporting the available amount, when the
// balance does not cover it.
func (u *Unit) Debit(asset, account domain.Address, amount decimal.Decimal) error {
	if err := domain.ValidateAmount(amount); err != nil {
		return err
	}

	available := u.BalanceOf(asset, account)
	if amount.GreaterThan(available) {
		return &domain.InsufficientBalanceError{Asset: asset, Requested: amount, Available: available}
	}

	total := u.TotalOf(asset)
	if amount.GreaterThan(total) {
		return fmt.Errorf("ledger corrupted: total of %s (%s) below debit %s", asset, total, amount)
	}

	key := domain.BalanceKey{Asset: asset, Account: account}
	u.setBalance(key, available.Sub(amount))
	u.setTotal(asset, total.Sub(amount))
	return nil
}

// SetBalance rewrites a balance directly and moves the asset total by the
// signed delta. It returns the previous balance. No limit checks are applied.
func (u *Unit) SetBalance(asset, account domain.Address, balance decimal.Decimal) (decimal.Decimal, error) {
	if err := domain.ValidateBalance(balance); err != nil {
		return decimal.Zero, err
	}

	old := u.BalanceOf(asset, account)
	if old.Equal(balance) {
		return old, nil
	}
	if balance.Sign() > 0 {
		if err := u.track(asset); err != nil {
			return decimal.Zero, err
		}
	}

	newTotal := u.TotalOf(asset).Add(balance.Sub(old))
	if newTotal.IsNegative() {
		return decimal.Zero, fmt.Errorf("ledger corrupted: total of %s would become %s", asset, newTotal)
	}

	key := domain.BalanceKey{Asset: asset, Account: account}
	u.setBalance(key, balance)
	u.setTotal(asset, newTotal)
	return old, nil
}

// Flush writes the balances and totals changed so far into the storage
// transaction, opening it on first use. Withdraw flushes before handing
// value to the transferer so the effects precede the interaction in storage too.
func (u *Unit) Flush(ctx context.Context) error {
	return u.flush(ctx, false)
}

func (u *Unit) flush(ctx context.Context, final bool) error {
	repo := u.ledger.Repo
	if repo == nil {
		return nil
	}

	changes := domain.LedgerChanges{}
	for key := range u.dirtyBalances {
		changes.Balances = append(changes.Balances, domain.BalanceEntry{
			Asset:   key.Asset,
			Account: key.Account,
			Amount:  u.BalanceOf(key.Asset, key.Account),
		})
	}
	for asset := range u.dirtyTotals {
		changes.Totals = append(changes.Totals, domain.AssetTotal{Asset: asset, Amount: u.TotalOf(asset)})
	}
	// Tracked rows and payouts cannot be taken back once written, so they wait for the final flush.
	if final {
		changes.Tracked = append(changes.Tracked, u.tracked...)
		changes.Payouts = append(changes.Payouts, u.payouts...)
	}
	if changes.IsEmpty() {
		return nil
	}

	if u.tx == nil {
		tx, err := repo.Begin(ctx)
		if err != nil {
			return fmt.Errorf("failed to begin ledger transaction: %w", err)
		}
		u.tx = tx
	}
	if err := u.tx.Apply(ctx, changes); err != nil {
		return fmt.Errorf("failed to apply ledger changes: %w", err)
	}
	clear(u.dirtyBalances)
	clear(u.dirtyTotals)
	return nil
}

func (u *Unit) commit(ctx context.Context) error {
	if err := u.flush(ctx, true); err != nil {
		return err
	}
	if u.tx == nil {
		return nil
	}
	if err := u.tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit ledger transaction: %w", err)
	}
	u.tx = nil
	return nil
}

func (u *Unit) abort() {
	u.rollbackTo(0)
	if u.tx != nil {
		if err := u.tx.Rollback(); err != nil {
			u.ledger.logger.Error("ledger transaction rollback failed", "error", err)
		}
		u.tx = nil
	}
}

func (u *Unit) mark() int {
	return len(u.journal)
}

// rollbackTo undoes journal entries newer than mark, newest first.
// Undone keys stay dirty so the next flush rewrites their restored values.
func (u *Unit) rollbackTo(mark int) {
	for i := len(u.journal) - 1; i >= mark; i-- {
		entry := u.journal[i]
		switch entry.kind {
		case undoBalance:
			if entry.existed {
				u.ledger.balances[entry.key] = entry.prev
			} else {
				delete(u.ledger.balances, entry.key)
			}
			u.dirtyBalances[entry.key] = struct{}{}
		case undoTotal:
			if entry.existed {
				u.ledger.totals[entry.key.Asset] = entry.prev
			} else {
				delete(u.ledger.totals, entry.key.Asset)
			}
			u.dirtyTotals[entry.key.Asset] = struct{}{}
		case undoTrack:
			u.ledger.Registry.Retract(entry.key.Asset)
			if n := len(u.tracked); n > 0 && u.tracked[n-1] == entry.key.Asset {
				u.tracked = u.tracked[:n-1]
			}
		case undoPayout:
			u.payouts = u.payouts[:len(u.payouts)-1]
		}
	}
	u.journal = u.journal[:mark]
}

func (u *Unit) setBalance(key domain.BalanceKey, value decimal.Decimal) {
	prev, existed := u.ledger.balances[key]
	u.journal = append(u.journal, undo{kind: undoBalance, key: key, prev: prev, existed: existed})
	u.ledger.balances[key] = value
	u.dirtyBalances[key] = struct{}{}
}

func (u *Unit) setTotal(asset domain.Address, value decimal.Decimal) {
	prev, existed := u.ledger.totals[asset]
	u.journal = append(u.journal, undo{kind: undoTotal, key: domain.BalanceKey{Asset: asset}, prev: prev, existed: existed})
	u.ledger.totals[asset] = value
	u.dirtyTotals[asset] = struct{}{}
}

func (u *Unit) track(asset domain.Address) error {
	added, err := u.ledger.Registry.Track(asset)
	if err != nil {
		return err
	}
	if added {
		u.journal = append(u.journal, undo{kind: undoTrack, key: domain.BalanceKey{Asset: asset}})
		u.tracked = append(u.tracked, asset)
	}
	return nil
}

// enqueue records a payout to deliver once the unit commits
func (u *Unit) enqueue(payout domain.Payout) {
	u.journal = append(u.journal, undo{kind: undoPayout})
	u.payouts = append(u.payouts, payout)
}
