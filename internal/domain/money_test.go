package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUSD(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantUnits string
		wantErr   bool
	}{
		{name: "Whole dollars", input: "10000", wantUnits: "1000000000000"},
		{name: "Cents", input: "10000.00", wantUnits: "1000000000000"},
		{name: "Smallest unit", input: "0.00000001", wantUnits: "1"},
		{name: "Nine fractional digits", input: "0.000000001", wantErr: true},
		{name: "Garbage", input: "ten", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			usd, err := ParseUSD(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantUnits, usd.Units().String())
		})
	}
}

func TestUSD_Arithmetic(t *testing.T) {
	a := MustParseUSD("1000.00")
	b := MustParseUSD("0.01")

	assert.Equal(t, "1000.01", a.Add(b).String())
	assert.Equal(t, "999.99", a.Sub(b).String())
	assert.True(t, a.GreaterThan(b))
	assert.Equal(t, -1, b.Cmp(a))
	assert.True(t, b.Sub(a).IsNegative())
	assert.True(t, USD{}.IsZero())
	assert.Equal(t, "0", USD{}.String())
}

func TestUSDFromUnits_Truncates(t *testing.T) {
	usd := USDFromUnits(decimal.RequireFromString("99.999"))
	assert.Equal(t, "99", usd.Units().String())

	usd = USDFromUnits(decimal.RequireFromString("-1.5"))
	assert.Equal(t, "-1", usd.Units().String())
}

func TestValidateAmount(t *testing.T) {
	tests := []struct {
		name    string
		amount  decimal.Decimal
		wantErr bool
	}{
		{name: "Positive integer", amount: decimal.NewFromInt(1)},
		{name: "Large integer", amount: decimal.RequireFromString("1000000000000000000000000")},
		{name: "Zero", amount: decimal.Zero, wantErr: true},
		{name: "Negative", amount: decimal.NewFromInt(-5), wantErr: true},
		{name: "Fractional", amount: decimal.RequireFromString("1.5"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAmount(tt.amount)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidValue)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseAmount(t *testing.T) {
	amount, err := ParseAmount("490000000000000000")
	require.NoError(t, err)
	assert.Equal(t, "490000000000000000", amount.String())

	_, err = ParseAmount("")
	assert.ErrorIs(t, err, ErrInvalidValue)

	_, err = ParseAmount("0")
	assert.ErrorIs(t, err, ErrInvalidValue)
}

func TestValidateBalance(t *testing.T) {
	assert.NoError(t, ValidateBalance(decimal.Zero))
	assert.NoError(t, ValidateBalance(decimal.NewFromInt(40)))
	assert.ErrorIs(t, ValidateBalance(decimal.NewFromInt(-1)), ErrInvalidValue)
	assert.ErrorIs(t, ValidateBalance(decimal.RequireFromString("0.1")), ErrInvalidValue)
}
