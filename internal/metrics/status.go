package metrics

import (
	"errors"

	"github.com/simaogato/kipubank-backend/internal/domain"
)

// StatusOf maps an operation result to a low-cardinality label value
func StatusOf(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrInvalidValue):
		return "invalid_value"
	case errors.Is(err, domain.ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, domain.ErrLimitExceeded):
		return "limit_exceeded"
	case errors.Is(err, domain.ErrCapExceeded):
		return "cap_exceeded"
	case errors.Is(err, domain.ErrPriceUnavailable):
		return "price_unavailable"
	case errors.Is(err, domain.ErrTransferFailed):
		return "transfer_failed"
	case errors.Is(err, domain.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, domain.ErrTooManyAssets):
		return "too_many_assets"
	default:
		return "error"
	}
}
