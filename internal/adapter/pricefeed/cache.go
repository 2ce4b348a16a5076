package pricefeed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/simaogato/kipubank-backend/internal/domain"
)

const defaultCachePrefix = "kipubank:price:"

// CachedSource is a read-through Redis cache in front of another source.
// Only positive prices are cached; failures always reach the caller.
type CachedSource struct {
	inner  domain.PriceSource
	client *redis.Client
	key    string
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedSource caches inner's quotes under prefix+ref for ttl
func NewCachedSource(inner domain.PriceSource, client *redis.Client, prefix, ref string, ttl time.Duration, logger *slog.Logger) *CachedSource {
	if prefix == "" {
		prefix = defaultCachePrefix
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedSource{
		inner:  inner,
		client: client,
		key:    prefix + ref,
		ttl:    ttl,
		logger: logger,
	}
}

func (s *CachedSource) LatestPrice(ctx context.Context) (decimal.Decimal, error) {
	cached, err := s.client.Get(ctx, s.key).Result()
	switch {
	case err == nil:
		price, parseErr := decimal.NewFromString(cached)
		if parseErr == nil && price.Sign() > 0 {
			return price, nil
		}
		s.logger.Warn("discarding malformed cached price", "key", s.key, "value", cached)
	case !errors.Is(err, redis.Nil):
		s.logger.Warn("price cache read failed", "key", s.key, "error", err)
	}

	price, err := s.inner.LatestPrice(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	if price.Sign() <= 0 {
		return price, nil
	}

	if err := s.client.Set(ctx, s.key, price.String(), s.ttl).Err(); err != nil {
		s.logger.Warn("price cache write failed", "key", s.key, "error", err)
	}
	return price, nil
}

// Invalidate drops the cached quote
func (s *CachedSource) Invalidate(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("invalidate cached price: %w", err)
	}
	return nil
}
