package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/kjannette/trahn-dca/internal/models"
	"github.com/kjannette/trahn-dca/internal/repository"
	"github.com/kjannette/trahn-dca/internal/testutil"
)

func TestTradingDay(t *testing.T) {
	ts := time.Date(2026, 3, 1, 23, 30, 0, 0, time.FixedZone("EST", -5*3600))
	if got := repository.TradingDay(ts); got != "2026-03-02" {
		t.Fatalf("TradingDay = %s, want 2026-03-02", got)
	}
}

// ---------- PriceRepo ----------

func TestPriceRepo(t *testing.T) {
	pool := testutil.SetupPool(t)
	repo := repository.NewPriceRepo(pool, "binance")
	ctx := context.Background()

	ts := time.Now()
	if err := repo.RecordPrice(ctx, "ETHUSDT", 2650.42, 1000, ts); err != nil {
		t.Fatalf("RecordPrice: %v", err)
	}

	latest, err := repo.GetLatest(ctx)
	if err != nil {
		t.Fatalf("GetLatest: %v", err)
	}
	if latest == nil {
		t.Fatal("expected latest price")
	}
	if latest.Symbol != "ETHUSDT" || latest.Source != "binance" {
		t.Fatalf("unexpected row: %+v", latest)
	}
	t.Logf("Latest: id=%d price=%.2f samples=%d", latest.ID, latest.Price, latest.Samples)

	prices, err := repo.GetByDay(ctx, repository.TradingDay(ts))
	if err != nil {
		t.Fatalf("GetByDay: %v", err)
	}
	if len(prices) == 0 {
		t.Fatal("expected prices for trading day")
	}

	days, err := repo.GetAvailableDays(ctx)
	if err != nil {
		t.Fatalf("GetAvailableDays: %v", err)
	}
	if len(days) == 0 {
		t.Fatal("expected at least one day")
	}
	t.Logf("Available days: %v", days)
}

// ---------- TradeRepo ----------

func TestTradeRepo(t *testing.T) {
	pool := testutil.SetupPool(t)
	repo := repository.NewTradeRepo(pool)
	ctx := context.Background()

	level := uint32(0)
	trade := models.Trade{
		ID:        ulid.Make().String(),
		Kind:      models.Buy,
		AmountIn:  100,
		AmountOut: 0.0385,
		Timestamp: time.Now().UTC(),
		DCALevel:  &level,
		Ref:       "paper-test",
	}

	if err := repo.RecordTrade(ctx, "WETH/USDC", trade, true); err != nil {
		t.Fatalf("RecordTrade: %v", err)
	}
	// replaying the same ledger record is a no-op
	if err := repo.RecordTrade(ctx, "WETH/USDC", trade, true); err != nil {
		t.Fatalf("RecordTrade (replay): %v", err)
	}

	all, err := repo.GetAll(ctx, 50, nil)
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	matches := 0
	for _, row := range all {
		if row.RecordID == trade.ID {
			matches++
			if row.Kind != "buy" || row.DCALevel == nil || *row.DCALevel != 0 {
				t.Fatalf("unexpected row: %+v", row)
			}
		}
	}
	if matches != 1 {
		t.Fatalf("expected exactly one row for %s, got %d", trade.ID, matches)
	}

	paperMode := true
	paperTrades, err := repo.GetAll(ctx, 10, &paperMode)
	if err != nil {
		t.Fatalf("GetAll(paper): %v", err)
	}
	for _, pt := range paperTrades {
		if !pt.IsPaperTrade {
			t.Fatalf("expected paper trade, got live trade id=%d", pt.ID)
		}
	}

	stats, err := repo.GetStats(ctx, &paperMode)
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if stats.BuyCount == 0 {
		t.Fatal("expected at least one buy in stats")
	}
	t.Logf("Stats(paper): total=%d buys=%d sells=%d", stats.TotalTrades, stats.BuyCount, stats.SellCount)
}
