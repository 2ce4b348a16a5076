package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// PriceSource quotes the latest USD price of one asset as an 8-decimal fixed-point integer.
// Implementations return an error when the quote cannot be obtained; the oracle
// rejects non-positive quotes itself.
type PriceSource interface {
	LatestPrice(ctx context.Context) (decimal.Decimal, error)
}

// TokenMetadata reports the self-declared precision of a fungible asset contract
type TokenMetadata interface {
	Decimals(ctx context.Context, asset Address) (int32, error)
}

// PriceBinding associates an asset with its price source and precision
type PriceBinding struct {
	Asset    Address
	Source   PriceSource
	Ref      string // Source reference as configured, e.g. "static:200000000000"
	Scaled   bool   // Source reports plain dollar prices instead of 8-decimal units
	Decimals int32
}

// PriceBindingRecord is the persisted form of a PriceBinding
type PriceBindingRecord struct {
	Asset     Address
	Ref       string
	Scaled    bool
	Decimals  int32
	UpdatedAt time.Time
}
