package tokenmeta

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/simaogato/kipubank-backend/internal/domain"
	"github.com/tidwall/gjson"
)

// Static serves decimals declared in configuration
type Static map[domain.Address]int32

func (s Static) Decimals(_ context.Context, asset domain.Address) (int32, error) {
	d, ok := s[asset]
	if !ok {
		return 0, fmt.Errorf("decimals of %s: %w", asset, domain.ErrNotFound)
	}
	return d, nil
}

// HTTP reads decimals from a token metadata endpoint: GET <base>/<asset> → {"decimals": n}
type HTTP struct {
	client  *http.Client
	baseURL string
}

func NewHTTP(client *http.Client, baseURL string) *HTTP {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTP{client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

func (h *HTTP) Decimals(ctx context.Context, asset domain.Address) (int32, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+"/"+asset.String(), nil)
	if err != nil {
		return 0, fmt.Errorf("build metadata request: %w", err)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetch token metadata: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return 0, fmt.Errorf("decimals of %s: %w", asset, domain.ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("token metadata returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return 0, fmt.Errorf("read token metadata: %w", err)
	}
	result := gjson.GetBytes(body, "decimals")
	if result.Type != gjson.Number {
		return 0, errors.New("token metadata has no numeric decimals")
	}
	d := result.Int()
	if float64(d) != result.Num || d < 0 || d > 255 {
		return 0, fmt.Errorf("token metadata decimals %s out of range", result.Raw)
	}
	return int32(d), nil
}

// Chain asks each provider in order and returns the first answer.
// A provider answering ErrNotFound passes to the next one; any other error stops the chain.
type Chain []domain.TokenMetadata

func (c Chain) Decimals(ctx context.Context, asset domain.Address) (int32, error) {
	for _, provider := range c {
		d, err := provider.Decimals(ctx, asset)
		if err == nil {
			return d, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return 0, err
		}
	}
	return 0, fmt.Errorf("decimals of %s: %w", asset, domain.ErrNotFound)
}
