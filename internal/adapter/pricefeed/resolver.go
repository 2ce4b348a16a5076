package pricefeed

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/simaogato/kipubank-backend/internal/domain"
)

// Resolver turns a source reference into a price source.
// Supported references:
//
//	static:<price>                 fixed price
//	http(s)://host/path#<gjson>    JSON feed, value at the gjson path
//
// When a Redis client is configured, HTTP sources are wrapped in a CachedSource.
type Resolver struct {
	HTTPClient  *http.Client
	Redis       *redis.Client
	CachePrefix string
	CacheTTL    time.Duration

	logger *slog.Logger
}

// NewResolver creates a new Resolver. redisClient may be nil to disable caching.
func NewResolver(httpClient *http.Client, redisClient *redis.Client, cachePrefix string, cacheTTL time.Duration, logger *slog.Logger) *Resolver {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		HTTPClient:  httpClient,
		Redis:       redisClient,
		CachePrefix: cachePrefix,
		CacheTTL:    cacheTTL,
		logger:      logger,
	}
}

func (r *Resolver) Resolve(ref string, scaled bool) (domain.PriceSource, error) {
	ref = strings.TrimSpace(ref)
	switch {
	case strings.HasPrefix(ref, "static:"):
		return parseStatic(strings.TrimPrefix(ref, "static:"), scaled)
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		return r.resolveHTTP(ref, scaled)
	default:
		return nil, fmt.Errorf("unsupported price source %q", ref)
	}
}

func (r *Resolver) resolveHTTP(ref string, scaled bool) (domain.PriceSource, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return nil, fmt.Errorf("invalid price source url %q: %w", ref, err)
	}
	path := u.Fragment
	if path == "" {
		return nil, fmt.Errorf("price source %q needs a #<json path> fragment", ref)
	}
	u.Fragment = ""

	var source domain.PriceSource = NewHTTPSource(r.HTTPClient, u.String(), path, scaled)
	if r.Redis != nil && r.CacheTTL > 0 {
		source = NewCachedSource(source, r.Redis, r.CachePrefix, cacheKey(ref, scaled), r.CacheTTL, r.logger)
	}
	return source, nil
}

// cacheKey separates scaled and unscaled reads of the same feed, since the
// cached value is the converted 8-decimal price.
func cacheKey(ref string, scaled bool) string {
	if scaled {
		return ref + "|scaled"
	}
	return ref
}

func parseStatic(value string, scaled bool) (domain.PriceSource, error) {
	price, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return nil, fmt.Errorf("invalid static price %q: %w", value, err)
	}
	if scaled {
		price = price.Shift(8)
	}
	return NewStaticSource(price.Truncate(0)), nil
}
