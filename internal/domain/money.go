package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// USDDecimals is the number of fractional digits of the normalized USD unit
const USDDecimals int32 = 8

// USD is a normalized USD value held as an integer count of 1e-8 USD units.
// The zero value is zero dollars.
type USD struct {
	units decimal.Decimal
}

// USDFromUnits builds a USD value from raw 1e-8 units, truncating any fraction
func USDFromUnits(units decimal.Decimal) USD {
	return USD{units: units.Truncate(0)}
}

// ParseUSD parses a dollar string such as "10000.00".
// Digits beyond the eighth fractional place are rejected rather than rounded.
func ParseUSD(s string) (USD, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return USD{}, fmt.Errorf("invalid USD amount %q: %w", s, err)
	}
	units := d.Shift(USDDecimals)
	if !units.Equal(units.Truncate(0)) {
		return USD{}, fmt.Errorf("USD amount %q has more than %d fractional digits", s, USDDecimals)
	}
	return USD{units: units}, nil
}

// MustParseUSD is ParseUSD for constants; it panics on malformed input
func MustParseUSD(s string) USD {
	u, err := ParseUSD(s)
	if err != nil {
		panic(err)
	}
	return u
}

// Units returns the raw 1e-8 unit count
func (u USD) Units() decimal.Decimal {
	return u.units
}

func (u USD) Add(other USD) USD {
	return USD{units: u.units.Add(other.units)}
}

func (u USD) Sub(other USD) USD {
	return USD{units: u.units.Sub(other.units)}
}

func (u USD) Cmp(other USD) int {
	return u.units.Cmp(other.units)
}

func (u USD) GreaterThan(other USD) bool {
	return u.units.GreaterThan(other.units)
}

func (u USD) IsZero() bool {
	return u.units.IsZero()
}

func (u USD) IsNegative() bool {
	return u.units.IsNegative()
}

// Equal compares values, so USD can be used with assert.True(t, a.Equal(b))
func (u USD) Equal(other USD) bool {
	return u.units.Equal(other.units)
}

// String renders the value in dollars, e.g. "0.01"
func (u USD) String() string {
	return u.units.Shift(-USDDecimals).String()
}

// ValidateAmount checks that amount is a positive whole number of smallest units
func ValidateAmount(amount decimal.Decimal) error {
	if amount.Sign() <= 0 {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidValue)
	}
	if !amount.Equal(amount.Truncate(0)) {
		return fmt.Errorf("%w: amount must be a whole number of smallest units", ErrInvalidValue)
	}
	return nil
}

// ParseAmount parses an integer amount of smallest units
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: malformed amount %q", ErrInvalidValue, s)
	}
	if err := ValidateAmount(d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

// ValidateBalance checks that balance is a non-negative whole number of smallest units
func ValidateBalance(balance decimal.Decimal) error {
	if balance.IsNegative() {
		return fmt.Errorf("%w: balance cannot be negative", ErrInvalidValue)
	}
	if !balance.Equal(balance.Truncate(0)) {
		return fmt.Errorf("%w: balance must be a whole number of smallest units", ErrInvalidValue)
	}
	return nil
}
