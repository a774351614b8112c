package external

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/kjannette/trahn-dca/internal/httputil"
)

const binanceBaseURL = "https://api.binance.com"

// klineCloseIndex is the position of the close price in a kline row.
const klineCloseIndex = 4

var ErrUnexpectedShape = errors.New("unexpected response shape")

// BinanceClient reads public market data. No API key is needed.
type BinanceClient struct {
	baseURL    string
	httpClient *http.Client
	retry      httputil.RetryConfig
}

func NewBinanceClient(baseURL string) *BinanceClient {
	if baseURL == "" {
		baseURL = binanceBaseURL
	}
	return &BinanceClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		retry: httputil.RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   1 * time.Second,
			MaxDelay:    5 * time.Second,
		},
	}
}

// FetchRecentCloses returns up to limit close prices, oldest first.
func (c *BinanceClient) FetchRecentCloses(ctx context.Context, symbol string, timeframeMinutes, limit int) ([]float64, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("interval", fmt.Sprintf("%dm", timeframeMinutes))
	q.Set("limit", strconv.Itoa(limit))

	var rows [][]json.RawMessage
	if err := httputil.GetJSON(ctx, c.httpClient, c.retry, c.baseURL+"/api/v3/klines?"+q.Encode(), &rows); err != nil {
		return nil, fmt.Errorf("binance klines: %w", err)
	}

	closes := make([]float64, 0, len(rows))
	for i, row := range rows {
		if len(row) <= klineCloseIndex {
			return nil, fmt.Errorf("binance kline %d: %w", i, ErrUnexpectedShape)
		}
		var raw string
		if err := json.Unmarshal(row[klineCloseIndex], &raw); err != nil {
			return nil, fmt.Errorf("binance kline %d close: %w", i, ErrUnexpectedShape)
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("binance kline %d close %q: %w", i, raw, ErrUnexpectedShape)
		}
		closes = append(closes, v)
	}
	return closes, nil
}

// SpotPrice returns the last traded price for symbol.
func (c *BinanceClient) SpotPrice(ctx context.Context, symbol string) (float64, error) {
	var data struct {
		Symbol string `json:"symbol"`
		Price  string `json:"price"`
	}
	if err := httputil.GetJSON(ctx, c.httpClient, c.retry, c.baseURL+"/api/v3/ticker/price?symbol="+url.QueryEscape(symbol), &data); err != nil {
		return 0, fmt.Errorf("binance ticker: %w", err)
	}
	if data.Price == "" {
		return 0, fmt.Errorf("binance ticker: missing price: %w", ErrUnexpectedShape)
	}
	v, err := strconv.ParseFloat(data.Price, 64)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("binance ticker: invalid price %q", data.Price)
	}
	return v, nil
}
