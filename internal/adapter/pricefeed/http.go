package pricefeed

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

const maxFeedResponseBytes = 1 << 20

// HTTPSource reads a price from a JSON document served over HTTP.
// The value at Path is an 8-decimal fixed-point integer, or a plain dollar
// price when Scaled is set.
type HTTPSource struct {
	client *http.Client
	url    string
	path   string
	scaled bool
}

// NewHTTPSource creates a source polling url and extracting the gjson path
func NewHTTPSource(client *http.Client, url, path string, scaled bool) *HTTPSource {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPSource{
		client: client,
		url:    url,
		path:   path,
		scaled: scaled,
	}
}

func (s *HTTPSource) LatestPrice(ctx context.Context) (decimal.Decimal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("build price request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("fetch price: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("price feed returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedResponseBytes))
	if err != nil {
		return decimal.Zero, fmt.Errorf("read price response: %w", err)
	}
	return ParsePrice(body, s.path, s.scaled)
}

// ParsePrice extracts the price at path from a JSON document
func ParsePrice(body []byte, path string, scaled bool) (decimal.Decimal, error) {
	if !gjson.ValidBytes(body) {
		return decimal.Zero, fmt.Errorf("price response is not valid JSON")
	}

	result := gjson.GetBytes(body, path)
	if !result.Exists() {
		return decimal.Zero, fmt.Errorf("price path %q not found", path)
	}

	var raw string
	switch result.Type {
	case gjson.Number:
		raw = result.Raw
	case gjson.String:
		raw = result.Str
	default:
		return decimal.Zero, fmt.Errorf("price at %q is not a number", path)
	}

	price, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse price %q: %w", raw, err)
	}
	if scaled {
		price = price.Shift(8)
	}
	return price.Truncate(0), nil
}
