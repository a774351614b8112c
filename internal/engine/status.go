package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kjannette/trahn-dca/internal/risk"
	"github.com/kjannette/trahn-dca/internal/strategy"
	"github.com/kjannette/trahn-dca/internal/swap"
)

// Status is a point-in-time view of the engine for the API and reporters.
type Status struct {
	Pair            string           `json:"pair"`
	Paper           bool             `json:"paper"`
	TradingEnabled  bool             `json:"tradingEnabled"`
	HoldingValue    float64          `json:"holdingValue"`
	DCALevel        uint32           `json:"dcaLevel"`
	CostBasis       float64          `json:"costBasis"`
	ExitPrice       float64          `json:"exitPrice,omitempty"`
	NextDCAPrice    float64          `json:"nextDcaPrice,omitempty"`
	OpenTrades      int              `json:"openTrades"`
	LedgerRecords   int              `json:"ledgerRecords"`
	LastPrice       *float64         `json:"lastPrice,omitempty"`
	LastQuote       *float64         `json:"lastQuote,omitempty"`
	LastAssessment  *risk.Assessment `json:"lastAssessment,omitempty"`
	EntryMultiplier float64          `json:"entryMultiplier"`
	LastAction      string           `json:"lastAction"`
	LastCycleAt     *time.Time       `json:"lastCycleAt,omitempty"`
	LastError       string           `json:"lastError,omitempty"`
	Cycles          int              `json:"cycles"`
}

func (e *Engine) Status() Status {
	open := e.d.Ledger.OpenPosition()
	var basis float64
	for _, t := range open {
		basis += t.AmountIn
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	s := Status{
		Pair:            e.p.Pair,
		Paper:           e.p.Paper,
		TradingEnabled:  e.d.Gate == nil || e.d.Gate.Enabled(),
		HoldingValue:    e.counters.HoldingValue,
		DCALevel:        e.counters.DCALevel,
		CostBasis:       basis,
		OpenTrades:      len(open),
		LedgerRecords:   e.d.Ledger.Len(),
		LastQuote:       e.lastQuote,
		LastAssessment:  e.lastAssessment,
		EntryMultiplier: e.entryMultiplier,
		LastAction:      e.lastAction.String(),
		Cycles:          e.cycles,
		LastError:       e.lastErr,
	}
	if s.HoldingValue > 0 {
		s.ExitPrice = strategy.ExitPrice(s.HoldingValue, basis, e.p.ProfitTargetPct)
		s.NextDCAPrice = strategy.TriggerPrice(s.HoldingValue, basis, e.p.DCATriggerPct)
	}
	if p, ok := e.d.History.Latest(); ok {
		s.LastPrice = &p
	}
	if !e.lastCycleAt.IsZero() {
		at := e.lastCycleAt
		s.LastCycleAt = &at
	}
	return s
}

// MarketStatus summarizes the open position against a fresh exit quote.
// It never trades and never writes state.
func (e *Engine) MarketStatus(ctx context.Context) (string, error) {
	c := e.Counters()
	if !c.Holding() {
		var b strings.Builder
		fmt.Fprintf(&b, "💤 No open position on %s", e.p.Pair)
		if p, ok := e.d.History.Latest(); ok {
			fmt.Fprintf(&b, "\n💲 Last price: %.2f %s", p, e.p.Quote.Symbol)
		}
		return b.String(), nil
	}

	basis := e.d.Ledger.CostBasis()
	if basis <= 0 {
		return "", fmt.Errorf("holding %.6f %s with no cost basis in ledger", c.HoldingValue, e.p.Base.Symbol)
	}

	q, err := e.d.Venue.Quote(ctx, swap.Intent{Input: e.p.Base, Output: e.p.Quote, Amount: c.HoldingValue}, e.p.QuoteSlippageBps)
	if err != nil {
		return "", fmt.Errorf("exit quote: %w", err)
	}

	return FormatMarketStatus(e.p.Base.Symbol, e.p.Quote.Symbol, c.HoldingValue, q.ExpectedOut, basis, e.p.ProfitTargetPct), nil
}

// Ladder projects up to n further average-down buys from the open position
// using the current quote balance. Empty when flat.
func (e *Engine) Ladder(ctx context.Context, n int) ([]strategy.Rung, error) {
	c := e.Counters()
	if !c.Holding() {
		return nil, nil
	}
	balance, err := e.d.Venue.BalanceOf(ctx, e.p.Quote)
	if err != nil {
		return nil, fmt.Errorf("quote balance: %w", err)
	}
	return strategy.Project(strategy.LadderParams{
		Holding:        c.HoldingValue,
		CostBasis:      e.d.Ledger.CostBasis(),
		QuoteBalance:   balance,
		Level:          c.DCALevel,
		TriggerPercent: e.p.DCATriggerPct,
		ProfitPercent:  e.p.ProfitTargetPct,
		GrowthFactor:   e.p.GrowthFactor,
		Multiplier:     e.dcaMultiplier(),
		MinNotional:    e.p.DCAMinNotional,
		MaxRungs:       n,
	})
}

// LadderSummary renders the next five projected DCA buys.
func (e *Engine) LadderSummary(ctx context.Context) (string, error) {
	if !e.Counters().Holding() {
		return fmt.Sprintf("💤 No open position on %s", e.p.Pair), nil
	}
	ladder, err := e.Ladder(ctx, 5)
	if err != nil {
		return "", err
	}
	return strategy.FormatLadder(ladder, e.p.Quote.Symbol), nil
}

func FormatMarketStatus(base, quote string, holding, proceeds, basis, profitPct float64) string {
	target := basis * (1 + profitPct/100)
	change := 100 * (proceeds/basis - 1)
	return fmt.Sprintf(
		"🔁 Holding: %.6f %s →\n🔁 Would return %.6f %s for selling %.6f %s\n🎯 Need at least %.6f %s to sell for profit (+%.1f%%)\n📉 Price is at %+.2f%%",
		holding, base,
		proceeds, quote, holding, base,
		target, quote, profitPct,
		change)
}
