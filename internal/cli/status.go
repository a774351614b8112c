package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/kjannette/trahn-dca/internal/config"
	"github.com/kjannette/trahn-dca/internal/engine"
	"github.com/kjannette/trahn-dca/internal/history"
	"github.com/kjannette/trahn-dca/internal/ledger"
	"github.com/kjannette/trahn-dca/internal/models"
	"github.com/kjannette/trahn-dca/internal/state"
	"github.com/kjannette/trahn-dca/internal/strategy"
)

// statusReport is assembled from the state files without locking them; a
// running engine may be writing concurrently, so values are advisory.
type statusReport struct {
	Pair              string        `json:"pair"`
	Backend           string        `json:"backend"`
	HoldingValue      float64       `json:"holdingValue"`
	DCALevel          uint32        `json:"dcaLevel"`
	CostBasis         float64       `json:"costBasis"`
	OpenTrades        int           `json:"openTrades"`
	LedgerRecords     int           `json:"ledgerRecords"`
	LedgerHolding     float64       `json:"ledgerHolding"`
	LedgerDCALevel    uint32        `json:"ledgerDcaLevel"`
	Drift             bool          `json:"drift"`
	LastTrade         *models.Trade `json:"lastTrade,omitempty"`
	CooldownRemaining time.Duration `json:"cooldownRemainingNs"`
	LastPrice         *float64      `json:"lastPrice,omitempty"`
	PriceSamples      int           `json:"priceSamples"`
}

func newStatusCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the persisted position for the configured pair",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("config load error: %w", err)
			}
			r, err := collectStatus(cmd.Context(), cfg, time.Now())
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(r)
			}
			printStatus(cmd.OutOrStdout(), r, cfg)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func collectStatus(ctx context.Context, cfg *config.Config, now time.Time) (statusReport, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	r := statusReport{Pair: cfg.PairName(), Backend: cfg.StateBackend}

	trades, err := ledger.ReadFile(ledgerPath(cfg))
	if err != nil {
		return r, fmt.Errorf("read ledger: %w", err)
	}
	open := ledger.OpenPosition(trades)
	derived := ledger.Derive(open)
	r.LedgerRecords = len(trades)
	r.OpenTrades = len(open)
	r.CostBasis = ledger.CostBasis(open)
	r.LedgerHolding = derived.HoldingValue
	r.LedgerDCALevel = derived.DCALevel
	if len(trades) > 0 {
		last := trades[len(trades)-1]
		r.LastTrade = &last
		if last.Kind == models.Sell {
			if left := cfg.Cooldown() - now.Sub(last.Timestamp); left > 0 {
				r.CooldownRemaining = left
			}
		}
	}

	switch cfg.StateBackend {
	case "redis":
		client, err := state.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return r, fmt.Errorf("connect redis: %w", err)
		}
		defer client.Close()
		c, err := state.NewRedisStore(client, cfg.PairKey()).Load(ctx)
		if err != nil {
			return r, err
		}
		r.HoldingValue, r.DCALevel = c.HoldingValue, c.DCALevel
	default:
		fs := state.NewFileStore(cfg.StateDir, cfg.PairKey())
		r.HoldingValue = state.ReadHolding(fs.HoldingPath())
		r.DCALevel = state.ReadLevel(fs.LevelPath())
	}

	hist := history.NewStore(cfg.PriceHistoryLimit, snapshotPath(cfg))
	if err := hist.LoadSnapshot(); err == nil {
		if p, ok := hist.Latest(); ok {
			r.LastPrice = &p
		}
		r.PriceSamples = hist.Len()
	}
	r.Drift = !engine.CountersMatch(
		models.Counters{HoldingValue: r.HoldingValue, DCALevel: r.DCALevel},
		models.Counters{HoldingValue: r.LedgerHolding, DCALevel: r.LedgerDCALevel})
	return r, nil
}

func printStatus(w io.Writer, r statusReport, cfg *config.Config) {
	fmt.Fprintf(w, "=== %s (%s state) ===\n", r.Pair, r.Backend)
	if r.HoldingValue == 0 {
		fmt.Fprintln(w, "Position: none (awaiting entry)")
	} else {
		fmt.Fprintf(w, "Holding: %.6f %s\n", r.HoldingValue, cfg.BaseSymbol)
		fmt.Fprintf(w, "Cost Basis: %.2f %s over %d buys\n", r.CostBasis, cfg.QuoteSymbol, r.OpenTrades)
		fmt.Fprintf(w, "DCA Level: %d\n", r.DCALevel)
		fmt.Fprintf(w, "Exit Target: %.2f %s (+%.2f%%)\n", r.CostBasis*(1+cfg.ProfitTargetPercent/100), cfg.QuoteSymbol, cfg.ProfitTargetPercent)
		fmt.Fprintf(w, "Exit Price: %.2f\n", strategy.ExitPrice(r.HoldingValue, r.CostBasis, cfg.ProfitTargetPercent))
		fmt.Fprintf(w, "Next DCA Below: %.2f\n", strategy.TriggerPrice(r.HoldingValue, r.CostBasis, cfg.DCATriggerPercent))
	}
	if r.Drift {
		fmt.Fprintf(w, "WARNING: counters differ from ledger (ledger holding %.6f, level %d); the engine repairs this on start\n",
			r.LedgerHolding, r.LedgerDCALevel)
	}
	if r.CooldownRemaining > 0 {
		fmt.Fprintf(w, "Cooldown: %s remaining\n", r.CooldownRemaining.Round(time.Second))
	}
	if r.LastTrade != nil {
		fmt.Fprintf(w, "Last Trade: %s %.6f -> %.6f at %s\n",
			r.LastTrade.Kind, r.LastTrade.AmountIn, r.LastTrade.AmountOut, r.LastTrade.Timestamp.Format(time.RFC3339))
	}
	if r.LastPrice != nil {
		fmt.Fprintf(w, "Last Price: %.2f (%d samples)\n", *r.LastPrice, r.PriceSamples)
	}
	fmt.Fprintf(w, "Ledger Records: %d\n", r.LedgerRecords)
}
