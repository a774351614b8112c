package external

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBinanceFetchRecentCloses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/klines", r.URL.Path)
		assert.Equal(t, "ETHUSDT", r.URL.Query().Get("symbol"))
		assert.Equal(t, "4m", r.URL.Query().Get("interval"))
		assert.Equal(t, "2", r.URL.Query().Get("limit"))
		w.Write([]byte(`[
			[1700000000000,"100.0","101.0","99.0","100.50","12.3",1700000239999,"0",1,"0","0","0"],
			[1700000240000,"100.5","102.0","100.0","101.75","9.1",1700000479999,"0",1,"0","0","0"]
		]`))
	}))
	defer srv.Close()

	closes, err := NewBinanceClient(srv.URL).FetchRecentCloses(context.Background(), "ETHUSDT", 4, 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{100.5, 101.75}, closes)
}

func TestBinanceFetchRecentCloses_ShortRow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[[1700000000000,"100.0","101.0"]]`))
	}))
	defer srv.Close()

	_, err := NewBinanceClient(srv.URL).FetchRecentCloses(context.Background(), "ETHUSDT", 4, 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnexpectedShape))
}

func TestBinanceSpotPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/ticker/price", r.URL.Path)
		w.Write([]byte(`{"symbol":"ETHUSDT","price":"2500.12"}`))
	}))
	defer srv.Close()

	p, err := NewBinanceClient(srv.URL).SpotPrice(context.Background(), "ETHUSDT")
	require.NoError(t, err)
	assert.Equal(t, 2500.12, p)
}

func TestCoinGeckoSpotPrice(t *testing.T) {
	var gotIDs []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotIDs = append(gotIDs, r.URL.Query().Get("ids"))
		w.Write([]byte(`{"ethereum":{"usd":2499.5}}`))
	}))
	defer srv.Close()

	p, err := NewCoinGeckoClient(srv.URL, "ethereum").SpotPrice(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 2499.5, p)

	// The response omits the requested coin.
	_, err = NewCoinGeckoClient(srv.URL, "solana").SpotPrice(context.Background(), "")
	assert.ErrorIs(t, err, ErrUnexpectedShape)
	assert.Equal(t, []string{"ethereum", "solana"}, gotIDs)
}

type stubSpot struct {
	price float64
	err   error
	calls int
}

func (s *stubSpot) SpotPrice(context.Context, string) (float64, error) {
	s.calls++
	return s.price, s.err
}

func TestFallbackSpot(t *testing.T) {
	bad := &stubSpot{err: errors.New("down")}
	good := &stubSpot{price: 42}

	p, err := FallbackSpot{bad, good}.SpotPrice(context.Background(), "X")
	require.NoError(t, err)
	assert.Equal(t, 42.0, p)
	assert.Equal(t, 1, bad.calls)

	_, err = FallbackSpot{bad}.SpotPrice(context.Background(), "X")
	assert.Error(t, err)

	_, err = FallbackSpot{}.SpotPrice(context.Background(), "X")
	assert.Error(t, err)
}
