package domain

import (
	"github.com/shopspring/decimal"
)

// BalanceKey identifies a balance entry
type BalanceKey struct {
	Asset   Address
	Account Address
}

// BalanceEntry is a holding of one account in one asset, in smallest units
type BalanceEntry struct {
	Asset   Address
	Account Address
	Amount  decimal.Decimal
}

// AssetTotal is the sum of all balance entries of one asset
type AssetTotal struct {
	Asset  Address
	Amount decimal.Decimal
}

// LedgerSnapshot is the persisted ledger state loaded at startup
type LedgerSnapshot struct {
	Balances []BalanceEntry
	Totals   []AssetTotal
	Tracked  []Address // In first-seen order
}

// LedgerChanges is the set of rows a unit of work writes back to storage.
// Values are absolute, so applying the same changes twice is harmless.
type LedgerChanges struct {
	Balances []BalanceEntry
	Totals   []AssetTotal
	Tracked  []Address
	Payouts  []Payout // Inserted, never rewritten
}

// IsEmpty reports whether there is nothing to write
func (c LedgerChanges) IsEmpty() bool {
	return len(c.Balances) == 0 && len(c.Totals) == 0 && len(c.Tracked) == 0 && len(c.Payouts) == 0
}
