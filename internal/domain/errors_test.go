package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestDetailErrors_MatchSentinels(t *testing.T) {
	cause := errors.New("feed timeout")

	tests := []struct {
		name     string
		err      error
		sentinel error
		contains string
	}{
		{
			name: "Insufficient balance",
			err: &InsufficientBalanceError{
				Asset:     NativeAsset,
				Requested: decimal.NewFromInt(101),
				Available: decimal.NewFromInt(100),
			},
			sentinel: ErrInsufficientBalance,
			contains: "available 100",
		},
		{
			name:     "Cap exceeded",
			err:      &CapExceededError{Proposed: MustParseUSD("2000"), Headroom: MustParseUSD("0")},
			sentinel: ErrCapExceeded,
			contains: "headroom 0 USD",
		},
		{
			name:     "Limit exceeded",
			err:      &LimitExceededError{Proposed: MustParseUSD("1020"), Limit: MustParseUSD("1000")},
			sentinel: ErrLimitExceeded,
			contains: "limit 1000 USD",
		},
		{
			name:     "Price unavailable",
			err:      &PriceUnavailableError{Asset: NativeAsset, Reason: "price source failed", Err: cause},
			sentinel: ErrPriceUnavailable,
			contains: "feed timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("operation: %w", tt.err)
			assert.ErrorIs(t, wrapped, tt.sentinel)
			assert.Contains(t, tt.err.Error(), tt.contains)
			assert.NotErrorIs(t, wrapped, ErrInvalidValue)
		})
	}
}

func TestPriceUnavailableError_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := &PriceUnavailableError{Asset: NativeAsset, Reason: "price source failed", Err: cause}

	assert.ErrorIs(t, err, cause)

	var detail *PriceUnavailableError
	assert.ErrorAs(t, fmt.Errorf("value deposit: %w", err), &detail)
	assert.Equal(t, "price source failed", detail.Reason)
}
