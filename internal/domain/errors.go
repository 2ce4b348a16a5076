package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Error kinds returned by the custody core.
// Callers match them with errors.Is; detail types below carry the reported amounts.
var (
	ErrInvalidValue        = errors.New("invalid value")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrLimitExceeded       = errors.New("per-transaction limit exceeded")
	ErrCapExceeded         = errors.New("global cap exceeded")
	ErrPriceUnavailable    = errors.New("price unavailable")
	ErrTransferFailed      = errors.New("transfer failed")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrTooManyAssets       = errors.New("tracked asset limit reached")
	ErrNotFound            = errors.New("not found")
)

// InsufficientBalanceError reports the balance actually available
type InsufficientBalanceError struct {
	Asset     Address
	Requested decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance for %s: requested %s, available %s",
		e.Asset, e.Requested.String(), e.Available.String())
}

func (e *InsufficientBalanceError) Is(target error) bool {
	return target == ErrInsufficientBalance
}

// CapExceededError reports the USD headroom left under the global cap
type CapExceededError struct {
	Proposed USD
	Headroom USD
}

func (e *CapExceededError) Error() string {
	return fmt.Sprintf("global cap exceeded: proposed %s USD, headroom %s USD",
		e.Proposed.String(), e.Headroom.String())
}

func (e *CapExceededError) Is(target error) bool {
	return target == ErrCapExceeded
}

// LimitExceededError reports the rejected value against the per-transaction ceiling
type LimitExceededError struct {
	Proposed USD
	Limit    USD
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("per-transaction limit exceeded: %s USD over limit %s USD",
		e.Proposed.String(), e.Limit.String())
}

func (e *LimitExceededError) Is(target error) bool {
	return target == ErrLimitExceeded
}

// PriceUnavailableError names the asset whose valuation failed
type PriceUnavailableError struct {
	Asset  Address
	Reason string
	Err    error
}

func (e *PriceUnavailableError) Error() string {
	msg := fmt.Sprintf("price unavailable for %s: %s", e.Asset, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *PriceUnavailableError) Is(target error) bool {
	return target == ErrPriceUnavailable
}

func (e *PriceUnavailableError) Unwrap() error {
	return e.Err
}
