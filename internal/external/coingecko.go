package external

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/kjannette/trahn-dca/internal/httputil"
)

const coingeckoBaseURL = "https://api.coingecko.com"

// CoinGeckoClient is a secondary spot price source keyed by CoinGecko coin id
// (e.g. "ethereum", "solana").
type CoinGeckoClient struct {
	baseURL    string
	coinID     string
	httpClient *http.Client
	retry      httputil.RetryConfig
}

func NewCoinGeckoClient(baseURL, coinID string) *CoinGeckoClient {
	if baseURL == "" {
		baseURL = coingeckoBaseURL
	}
	return &CoinGeckoClient{
		baseURL:    baseURL,
		coinID:     coinID,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		retry: httputil.RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   2 * time.Second,
			MaxDelay:    10 * time.Second,
		},
	}
}

// SpotPrice returns the USD price of the configured coin. symbol is ignored.
func (c *CoinGeckoClient) SpotPrice(ctx context.Context, _ string) (float64, error) {
	q := url.Values{}
	q.Set("ids", c.coinID)
	q.Set("vs_currencies", "usd")

	var data map[string]struct {
		USD float64 `json:"usd"`
	}
	if err := httputil.GetJSON(ctx, c.httpClient, c.retry, c.baseURL+"/api/v3/simple/price?"+q.Encode(), &data); err != nil {
		return 0, fmt.Errorf("coingecko fetch: %w", err)
	}

	entry, ok := data[c.coinID]
	if !ok {
		return 0, fmt.Errorf("coingecko: missing %s: %w", c.coinID, ErrUnexpectedShape)
	}
	if entry.USD <= 0 {
		return 0, fmt.Errorf("invalid price: %f", entry.USD)
	}
	return entry.USD, nil
}
