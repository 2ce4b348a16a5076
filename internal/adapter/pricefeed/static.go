package pricefeed

import (
	"context"

	"github.com/shopspring/decimal"
)

// StaticSource always quotes the same price. Used for pegged assets and tests.
type StaticSource struct {
	price decimal.Decimal
}

// NewStaticSource creates a source quoting price (8-decimal fixed point)
func NewStaticSource(price decimal.Decimal) *StaticSource {
	return &StaticSource{price: price}
}

func (s *StaticSource) LatestPrice(context.Context) (decimal.Decimal, error) {
	return s.price, nil
}
