package ledger

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kjannette/trahn-dca/internal/models"
)

func lvl(n uint32) *uint32 { return &n }

func buy(in, out float64, level uint32) models.Trade {
	return models.Trade{Kind: models.Buy, AmountIn: in, AmountOut: out, DCALevel: lvl(level)}
}

func sell(in, out float64) models.Trade {
	return models.Trade{Kind: models.Sell, AmountIn: in, AmountOut: out}
}

func openTemp(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "trades", "weth_usdc.jsonl"))
	require.NoError(t, err)
	return l
}

func TestOpenCreatesMissingFile(t *testing.T) {
	l := openTemp(t)
	_, err := os.Stat(l.Path())
	require.NoError(t, err)
	assert.Equal(t, 0, l.Len())
	assert.Empty(t, l.OpenPosition())
	assert.Equal(t, 0.0, l.CostBasis())
}

func TestAppendPersistsAndAssignsID(t *testing.T) {
	l := openTemp(t)

	rec, err := l.Append(buy(100, 2, 0))
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.False(t, rec.Timestamp.IsZero())

	reopened, err := Open(l.Path())
	require.NoError(t, err)
	require.Equal(t, 1, reopened.Len())
	got := reopened.Trades()[0]
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, models.Buy, got.Kind)
	assert.Equal(t, 100.0, got.AmountIn)
}

func TestAppendRejectsUnknownKind(t *testing.T) {
	l := openTemp(t)
	_, err := l.Append(models.Trade{AmountIn: 1})
	assert.Error(t, err)
	assert.Equal(t, 0, l.Len())
}

func TestLoadSkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.jsonl")
	body := `{"kind":"buy","amountIn":100,"amountOut":2,"timestamp":"2026-01-01T00:00:00Z"}
not json
{"kind":"hold","amountIn":1,"amountOut":1,"timestamp":"2026-01-01T00:00:00Z"}
{"kind":"sell","amountIn":2,"amountOut":103,"timestamp":"2026-01-02T00:00:00Z"}
{"kind":"buy","amountIn":50,"amo`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	l, err := Open(path)
	require.NoError(t, err)
	require.Equal(t, 2, l.Len())

	last, ok := l.Last()
	require.True(t, ok)
	assert.Equal(t, models.Sell, last.Kind)
}

func TestOpenPositionIsSuffixAfterLastSell(t *testing.T) {
	tests := []struct {
		name   string
		trades []models.Trade
		want   int
		basis  float64
	}{
		{"empty", nil, 0, 0},
		{"no sell", []models.Trade{buy(100, 2, 0), buy(50, 1.1, 1)}, 2, 150},
		{"ends with sell", []models.Trade{buy(100, 2, 0), sell(2, 103)}, 0, 0},
		{"buys after sell", []models.Trade{buy(100, 2, 0), sell(2, 103), buy(40, 1, 0), buy(20, 0.6, 1)}, 2, 60},
		{"two cycles", []models.Trade{buy(1, 1, 0), sell(1, 2), buy(3, 1, 0), sell(1, 4), buy(7, 1, 0)}, 1, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			open := OpenPosition(tt.trades)
			assert.Len(t, open, tt.want)
			for _, tr := range open {
				assert.Equal(t, models.Buy, tr.Kind)
			}
			assert.InDelta(t, tt.basis, CostBasis(open), 1e-9)
		})
	}
}

func TestDerive(t *testing.T) {
	trades := []models.Trade{buy(100, 2, 0), sell(2, 103), buy(40, 1, 0), buy(20, 0.6, 1), buy(30, 0.9, 2)}

	c := Derive(OpenPosition(trades))
	assert.InDelta(t, 2.5, c.HoldingValue, 1e-9)
	assert.Equal(t, uint32(2), c.DCALevel)
	assert.True(t, c.Holding())

	flat := Derive(OpenPosition(trades[:2]))
	assert.False(t, flat.Holding())
	assert.Equal(t, uint32(0), flat.DCALevel)
}

func TestCountBuysSince(t *testing.T) {
	l := openTemp(t)
	now := time.Now().UTC()

	old := buy(10, 1, 0)
	old.Timestamp = now.Add(-48 * time.Hour)
	_, err := l.Append(old)
	require.NoError(t, err)

	s := sell(1, 11)
	s.Timestamp = now.Add(-47 * time.Hour)
	_, err = l.Append(s)
	require.NoError(t, err)

	_, err = l.Append(buy(10, 1, 0))
	require.NoError(t, err)
	_, err = l.Append(buy(5, 0.5, 1))
	require.NoError(t, err)

	assert.Equal(t, 2, l.CountBuysSince(now.Add(-time.Hour)))
	assert.Equal(t, 3, l.CountBuysSince(now.Add(-72*time.Hour)))
}

func TestCountBuysTodayUsesClock(t *testing.T) {
	l := openTemp(t)
	now := time.Date(2024, 3, 10, 0, 30, 0, 0, time.UTC)
	l.SetClock(func() time.Time { return now })

	late := buy(10, 1, 0)
	late.Timestamp = now.Add(-45 * time.Minute)
	_, err := l.Append(late)
	require.NoError(t, err)

	rec, err := l.Append(buy(5, 0.5, 1))
	require.NoError(t, err)
	assert.Equal(t, now, rec.Timestamp)

	n, err := l.CountBuysToday(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	l.SetClock(func() time.Time { return now.Add(24 * time.Hour) })
	n, err = l.CountBuysToday(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestReadFileMissing(t *testing.T) {
	trades, err := ReadFile(filepath.Join(t.TempDir(), "nope.jsonl"))
	require.NoError(t, err)
	assert.Empty(t, trades)
}
