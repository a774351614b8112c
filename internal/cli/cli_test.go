package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kjannette/trahn-dca/internal/config"
	"github.com/kjannette/trahn-dca/internal/ledger"
	"github.com/kjannette/trahn-dca/internal/models"
	"github.com/kjannette/trahn-dca/internal/state"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		BaseSymbol:          "WETH",
		QuoteSymbol:         "USDC",
		StateDir:            t.TempDir(),
		StateBackend:        "file",
		PriceHistoryLimit:   100,
		ProfitTargetPercent: 2,
		DCATriggerPercent:   5,
		CooldownSeconds:     3600,
	}
}

func level(n uint32) *uint32 { return &n }

func seed(t *testing.T, cfg *config.Config, trades ...models.Trade) {
	t.Helper()
	led, err := ledger.Open(ledgerPath(cfg))
	require.NoError(t, err)
	for _, tr := range trades {
		_, err := led.Append(tr)
		require.NoError(t, err)
	}
}

func TestCollectStatusOpenPosition(t *testing.T) {
	cfg := testConfig(t)
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	seed(t, cfg,
		models.Trade{Kind: models.Buy, AmountIn: 100, AmountOut: 0.05, DCALevel: level(0), Timestamp: now.Add(-2 * time.Hour)},
		models.Trade{Kind: models.Buy, AmountIn: 50, AmountOut: 0.03, DCALevel: level(1), Timestamp: now.Add(-time.Hour)},
	)
	fs := state.NewFileStore(cfg.StateDir, cfg.PairKey())
	require.NoError(t, fs.Save(context.Background(), models.Counters{HoldingValue: 0.08, DCALevel: 1}))

	r, err := collectStatus(context.Background(), cfg, now)
	require.NoError(t, err)

	assert.Equal(t, "WETH/USDC", r.Pair)
	assert.InDelta(t, 0.08, r.HoldingValue, 1e-12)
	assert.Equal(t, uint32(1), r.DCALevel)
	assert.InDelta(t, 150.0, r.CostBasis, 1e-9)
	assert.Equal(t, 2, r.OpenTrades)
	assert.Equal(t, 2, r.LedgerRecords)
	assert.Zero(t, r.CooldownRemaining)
	require.NotNil(t, r.LastTrade)
	assert.Equal(t, models.Buy, r.LastTrade.Kind)
	assert.Nil(t, r.LastPrice)

	var out bytes.Buffer
	printStatus(&out, r, cfg)
	assert.Contains(t, out.String(), "Holding: 0.080000 WETH")
	assert.Contains(t, out.String(), "Exit Target: 153.00 USDC")
	assert.Contains(t, out.String(), "Exit Price: 1912.50")
	assert.Contains(t, out.String(), "Next DCA Below: 1781.25")
	assert.NotContains(t, out.String(), "WARNING")
}

func TestCollectStatusCooldownAfterExit(t *testing.T) {
	cfg := testConfig(t)
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	seed(t, cfg,
		models.Trade{Kind: models.Buy, AmountIn: 100, AmountOut: 0.05, DCALevel: level(0), Timestamp: now.Add(-3 * time.Hour)},
		models.Trade{Kind: models.Sell, AmountIn: 0.05, AmountOut: 103, DCALevel: level(0), Timestamp: now.Add(-20 * time.Minute)},
	)

	r, err := collectStatus(context.Background(), cfg, now)
	require.NoError(t, err)

	assert.Zero(t, r.HoldingValue)
	assert.Zero(t, r.OpenTrades)
	assert.Equal(t, 40*time.Minute, r.CooldownRemaining)

	var out bytes.Buffer
	printStatus(&out, r, cfg)
	assert.Contains(t, out.String(), "Position: none")
	assert.Contains(t, out.String(), "Cooldown: 40m0s remaining")
}

func TestCollectStatusFlagsCounterDrift(t *testing.T) {
	cfg := testConfig(t)
	seed(t, cfg, models.Trade{Kind: models.Buy, AmountIn: 100, AmountOut: 0.05, DCALevel: level(0)})

	r, err := collectStatus(context.Background(), cfg, time.Now())
	require.NoError(t, err)
	assert.Zero(t, r.HoldingValue)
	assert.InDelta(t, 0.05, r.LedgerHolding, 1e-12)

	var out bytes.Buffer
	printStatus(&out, r, cfg)
	assert.Contains(t, out.String(), "WARNING: counters differ from ledger")
}

func TestPrintLedgerTable(t *testing.T) {
	trades := []models.Trade{
		{Kind: models.Buy, AmountIn: 100, AmountOut: 0.05, DCALevel: level(0), Ref: "paper-1"},
		{Kind: models.Sell, AmountIn: 0.05, AmountOut: 103, DCALevel: level(0), Ref: "paper-2"},
		{Kind: models.Buy, AmountIn: 80, AmountOut: 0.04, Ref: "paper-3"},
	}

	var out bytes.Buffer
	require.NoError(t, printLedger(&out, trades, false, 0, false))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 5)
	assert.True(t, strings.HasPrefix(lines[0], "TIME"))
	assert.Contains(t, lines[3], "paper-3")
	assert.Contains(t, lines[3], " - ")
	assert.Equal(t, "3 records, cost basis of open position 80.00", lines[4])
}

func TestPrintLedgerOpenJSON(t *testing.T) {
	trades := []models.Trade{
		{ID: "a", Kind: models.Buy, AmountIn: 100, AmountOut: 0.05},
		{ID: "b", Kind: models.Sell, AmountIn: 0.05, AmountOut: 103},
		{ID: "c", Kind: models.Buy, AmountIn: 80, AmountOut: 0.04},
		{ID: "d", Kind: models.Buy, AmountIn: 40, AmountOut: 0.03},
	}

	var out bytes.Buffer
	require.NoError(t, printLedger(&out, trades, true, 1, true))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 1)

	var got models.Trade
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &got))
	assert.Equal(t, "d", got.ID)
	assert.Equal(t, models.Buy, got.Kind)
}

func TestLoadConfigProfileRequiresFile(t *testing.T) {
	t.Setenv("STRATEGY_PROFILE", "")
	_, err := loadConfig("aggressive")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STRATEGY_PROFILE is not set")
}

func TestVersionCommand(t *testing.T) {
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), Version)
}
