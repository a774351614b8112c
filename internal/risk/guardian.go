package risk

import (
	"context"
	"fmt"
)

// DailyBuyCounter abstracts the buy-counting dependency so Guardian
// can be tested without a ledger or database.
type DailyBuyCounter interface {
	CountBuysToday(ctx context.Context) (int, error)
}

// Limits holds the per-buy thresholds from config.
// A zero value for any field means that check is disabled.
type Limits struct {
	MaxDailyBuys    int
	MaxPositionSize float64
}

// Guardian enforces operator limits on buys. Sells are never blocked so an
// open position can always be exited.
type Guardian struct {
	limits  Limits
	counter DailyBuyCounter
}

func NewGuardian(limits Limits, counter DailyBuyCounter) *Guardian {
	return &Guardian{limits: limits, counter: counter}
}

// PreBuyCheck validates a buy of the given quote notional before execution.
// Returns nil if the buy is allowed, a descriptive error if blocked.
func (g *Guardian) PreBuyCheck(ctx context.Context, notional float64) error {
	if g == nil {
		return nil
	}

	if g.limits.MaxPositionSize > 0 && notional > g.limits.MaxPositionSize {
		return fmt.Errorf("buy blocked: size %.2f exceeds max %.2f",
			notional, g.limits.MaxPositionSize)
	}

	if g.limits.MaxDailyBuys > 0 && g.counter != nil {
		count, err := g.counter.CountBuysToday(ctx)
		if err != nil {
			return fmt.Errorf("buy blocked: unable to verify daily buy count: %w", err)
		}
		if count >= g.limits.MaxDailyBuys {
			return fmt.Errorf("buy blocked: daily limit of %d buys reached (%d executed today)",
				g.limits.MaxDailyBuys, count)
		}
	}

	return nil
}
