package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/kjannette/trahn-dca/internal/engine"
	"github.com/kjannette/trahn-dca/internal/models"
	"github.com/kjannette/trahn-dca/internal/strategy"
)

type stubStatus struct {
	st     engine.Status
	err    error
	market string
	ladder []strategy.Rung
}

func (s stubStatus) Status() (engine.Status, error) { return s.st, s.err }

func (s stubStatus) MarketStatus(context.Context) (string, error) { return s.market, s.err }

func (s stubStatus) Ladder(_ context.Context, n int) ([]strategy.Rung, error) {
	if len(s.ladder) > n {
		return s.ladder[:n], s.err
	}
	return s.ladder, s.err
}

type stubLedger []models.Trade

func (l stubLedger) Trades() []models.Trade { return l }

func newTestServer(status StatusProvider, ledger LedgerReader) http.Handler {
	return NewServer(Options{Port: 0, Status: status, Ledger: ledger}, zerolog.Nop()).Handler()
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func TestPosition(t *testing.T) {
	h := newTestServer(stubStatus{st: engine.Status{Pair: "WETH/USDC", HoldingValue: 2, DCALevel: 1, TradingEnabled: true}}, nil)

	rr := get(t, h, "/v1/position")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var st engine.Status
	if err := json.NewDecoder(rr.Body).Decode(&st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.Pair != "WETH/USDC" || st.HoldingValue != 2 || st.DCALevel != 1 {
		t.Fatalf("unexpected status: %+v", st)
	}
}

func TestPosition_NotRunning(t *testing.T) {
	h := newTestServer(stubStatus{err: engine.ErrNotRunning}, nil)

	if rr := get(t, h, "/v1/position"); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}

func TestMarketStatus_QuoteFailure(t *testing.T) {
	h := newTestServer(stubStatus{err: errors.New("quote timeout")}, nil)

	if rr := get(t, h, "/v1/position/market"); rr.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rr.Code)
	}
}

func TestLadder(t *testing.T) {
	h := newTestServer(stubStatus{ladder: []strategy.Rung{
		{Level: 1, TriggerPrice: 1900, Size: 90},
		{Level: 2, TriggerPrice: 1850, Size: 89},
	}}, nil)

	var resp ladderJSON
	rr := get(t, h, "/v1/position/ladder?limit=1")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Rungs) != 1 || resp.Rungs[0].Level != 1 {
		t.Fatalf("expected first rung only, got %+v", resp.Rungs)
	}
}

func TestLedgerTrades(t *testing.T) {
	lvl := uint32(1)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ledger := stubLedger{
		{ID: "a", Kind: models.Buy, AmountIn: 100, AmountOut: 2, Timestamp: base},
		{ID: "b", Kind: models.Sell, AmountIn: 2, AmountOut: 103, Timestamp: base.Add(time.Hour)},
		{ID: "c", Kind: models.Buy, AmountIn: 50, AmountOut: 1, Timestamp: base.Add(2 * time.Hour)},
		{ID: "d", Kind: models.Buy, AmountIn: 25, AmountOut: 0.6, Timestamp: base.Add(3 * time.Hour), DCALevel: &lvl, Ref: "0xfeed"},
	}
	h := newTestServer(nil, ledger)

	var all []tradeJSON
	rr := get(t, h, "/v1/trades?limit=3")
	if err := json.NewDecoder(rr.Body).Decode(&all); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(all) != 3 || all[0].ID != "d" || all[2].ID != "b" {
		t.Fatalf("expected newest three records, got %+v", all)
	}
	if all[0].DCALevel == nil || *all[0].DCALevel != 1 || all[0].Ref == nil {
		t.Fatalf("expected level and ref on newest record, got %+v", all[0])
	}

	var open []tradeJSON
	rr = get(t, h, "/v1/trades?open=true")
	if err := json.NewDecoder(rr.Body).Decode(&open); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(open) != 2 || open[1].ID != "c" {
		t.Fatalf("expected open position c,d, got %+v", open)
	}
}

func TestHealth_NoDatabase(t *testing.T) {
	h := newTestServer(stubStatus{st: engine.Status{TradingEnabled: false}}, nil)

	var resp healthResponse
	rr := get(t, h, "/health")
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Services.Database != "disabled" || resp.Services.Engine != "paused" {
		t.Fatalf("unexpected services: %+v", resp.Services)
	}
	if resp.Status != "ok" {
		t.Fatalf("expected ok, got %q", resp.Status)
	}
}

func TestHealth_EngineStopped(t *testing.T) {
	h := newTestServer(stubStatus{err: engine.ErrNotRunning}, nil)

	var resp healthResponse
	rr := get(t, h, "/health")
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "degraded" || resp.Services.Engine != "stopped" {
		t.Fatalf("expected degraded/stopped, got %+v", resp)
	}
}

func TestMirrorRoutesAbsentWithoutDatabase(t *testing.T) {
	h := newTestServer(nil, stubLedger{})

	if rr := get(t, h, "/v1/trades/stats"); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without database, got %d", rr.Code)
	}
}
