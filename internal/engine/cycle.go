package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/kjannette/trahn-dca/internal/executor"
	"github.com/kjannette/trahn-dca/internal/ledger"
	"github.com/kjannette/trahn-dca/internal/models"
	"github.com/kjannette/trahn-dca/internal/risk"
	"github.com/kjannette/trahn-dca/internal/strategy"
	"github.com/kjannette/trahn-dca/internal/swap"
)

// Action is the outcome of one cycle.
type Action int

const (
	ActionNone Action = iota
	ActionCooldown
	ActionSkipRisk
	ActionSkipFloor
	ActionBlocked
	ActionBuy
	ActionSell
	ActionDCA
	ActionHold
	ActionAborted
)

func (a Action) String() string {
	switch a {
	case ActionNone:
		return "none"
	case ActionCooldown:
		return "cooldown"
	case ActionSkipRisk:
		return "skip_risk"
	case ActionSkipFloor:
		return "skip_floor"
	case ActionBlocked:
		return "blocked"
	case ActionBuy:
		return "buy"
	case ActionSell:
		return "sell"
	case ActionDCA:
		return "dca"
	case ActionHold:
		return "hold"
	case ActionAborted:
		return "aborted"
	default:
		return fmt.Sprintf("Action(%d)", int(a))
	}
}

// Cycle runs one poll iteration. Errors abort the iteration only; the
// returned Action is ActionAborted in that case.
func (e *Engine) Cycle(ctx context.Context) (Action, error) {
	action, err := e.cycle(ctx)
	if err != nil {
		action = ActionAborted
	}

	e.mu.Lock()
	e.cycles++
	e.lastAction = action
	e.lastCycleAt = e.now()
	e.lastErr = ""
	if err != nil {
		e.lastErr = err.Error()
	}
	e.mu.Unlock()

	return action, err
}

func (e *Engine) cycle(ctx context.Context) (Action, error) {
	counters, err := e.d.State.Load(ctx)
	if err != nil {
		return ActionNone, fmt.Errorf("read counters: %w", err)
	}
	e.mu.Lock()
	e.counters = counters
	e.mu.Unlock()

	if !counters.Holding() {
		return e.awaitEntry(ctx, counters)
	}
	return e.holding(ctx, counters)
}

func (e *Engine) awaitEntry(ctx context.Context, c models.Counters) (Action, error) {
	if last, ok := e.d.Ledger.Last(); ok && last.Kind == models.Sell {
		if elapsed := e.now().Sub(last.Timestamp); elapsed < e.p.Cooldown {
			e.logger.Debug().
				Dur("remaining", e.p.Cooldown-elapsed).
				Msg("cooldown after exit")
			return ActionCooldown, nil
		}
	}

	price, err := e.refreshPrice(ctx)
	if err != nil {
		return ActionNone, err
	}

	a := risk.Assess(e.d.History.Samples(), e.p.BucketWidth, price, e.p.ProfitTargetPct)
	e.mu.Lock()
	e.lastAssessment = &a
	e.mu.Unlock()

	e.logger.Info().
		Float64("price", price).
		Float64("target", a.TargetPrice).
		Int("touches", a.TouchCount).
		Str("risk", a.Label.String()).
		Float64("multiplier", a.SizeMultiplier).
		Msg("entry assessment")

	if a.Label == risk.HighRisk {
		return ActionSkipRisk, nil
	}

	balance, err := e.d.Venue.BalanceOf(ctx, e.p.Quote)
	if err != nil {
		return ActionNone, fmt.Errorf("quote balance: %w", err)
	}
	size := balance * a.SizeMultiplier
	if size < e.p.EntryMinNotional {
		e.logger.Info().
			Float64("size", size).
			Float64("floor", e.p.EntryMinNotional).
			Msg("entry size below floor")
		return ActionSkipFloor, nil
	}

	if err := e.d.Guardian.PreBuyCheck(ctx, size); err != nil {
		e.logger.Warn().Err(err).Float64("size", size).Msg("entry blocked by guardian")
		return ActionBlocked, nil
	}

	out, err := e.execute(ctx, swap.Intent{Input: e.p.Quote, Output: e.p.Base, Amount: size})
	if err != nil {
		return ActionNone, err
	}

	level := c.DCALevel
	rec, err := e.commit(ctx, models.Trade{
		Kind:      models.Buy,
		AmountIn:  size,
		AmountOut: out.Received,
		DCALevel:  &level,
		Ref:       out.Ref,
	}, models.Counters{
		HoldingValue: c.HoldingValue + out.Received,
		DCALevel:     c.DCALevel,
	})
	if err != nil {
		return ActionNone, err
	}

	e.mu.Lock()
	e.entryMultiplier = a.SizeMultiplier
	e.mu.Unlock()

	e.logger.Info().
		Str("id", rec.ID).
		Float64("amount", size).
		Float64("received", out.Received).
		Str("ref", out.Ref).
		Msg("entry buy filled")
	e.d.Notifier.Notify(ctx, fmt.Sprintf(
		"🟢 BUY %s\nSpent: %.2f %s\nReceived: %.6f %s\nRisk: %s (%d touches, x%.2f)\nRef: %s",
		e.p.Pair, size, e.p.Quote.Symbol, out.Received, e.p.Base.Symbol,
		a.Label, a.TouchCount, a.SizeMultiplier, out.Ref))
	return ActionBuy, nil
}

func (e *Engine) holding(ctx context.Context, c models.Counters) (Action, error) {
	open := e.d.Ledger.OpenPosition()
	basis := ledger.CostBasis(open)
	if basis <= 0 {
		return ActionNone, fmt.Errorf("holding %.6f %s with no cost basis in ledger", c.HoldingValue, e.p.Base.Symbol)
	}

	// Exit and DCA decisions rest on the venue quote, so a feed outage
	// only leaves the history stale.
	if _, err := e.refreshPrice(ctx); err != nil {
		e.logger.Warn().Err(err).Msg("price refresh failed, using venue quote")
	}

	quote, err := e.d.Venue.Quote(ctx, swap.Intent{Input: e.p.Base, Output: e.p.Quote, Amount: c.HoldingValue}, e.p.QuoteSlippageBps)
	if err != nil {
		return ActionNone, fmt.Errorf("exit quote: %w", err)
	}
	proceeds := quote.ExpectedOut
	e.mu.Lock()
	e.lastQuote = &proceeds
	e.mu.Unlock()

	target := basis * (1 + e.p.ProfitTargetPct/100)
	change := 100 * (proceeds/basis - 1)

	e.logger.Info().
		Float64("holding", c.HoldingValue).
		Float64("cost_basis", basis).
		Float64("proceeds", proceeds).
		Float64("target", target).
		Float64("change_pct", change).
		Uint32("dca_level", c.DCALevel).
		Msg("position check")

	switch {
	case proceeds >= target:
		return e.sell(ctx, c, basis)
	case change <= -e.p.DCATriggerPct:
		return e.averageDown(ctx, c, change)
	default:
		return ActionHold, nil
	}
}

func (e *Engine) sell(ctx context.Context, c models.Counters, basis float64) (Action, error) {
	out, err := e.execute(ctx, swap.Intent{Input: e.p.Base, Output: e.p.Quote, Amount: c.HoldingValue})
	if err != nil {
		return ActionNone, err
	}

	level := c.DCALevel
	rec, err := e.commit(ctx, models.Trade{
		Kind:      models.Sell,
		AmountIn:  c.HoldingValue,
		AmountOut: out.Received,
		DCALevel:  &level,
		Ref:       out.Ref,
	}, models.Counters{})
	if err != nil {
		return ActionNone, err
	}

	profit := out.Received - basis
	pct := 100 * profit / basis
	e.logger.Info().
		Str("id", rec.ID).
		Float64("amount", c.HoldingValue).
		Float64("received", out.Received).
		Float64("profit", profit).
		Float64("profit_pct", pct).
		Str("ref", out.Ref).
		Msg("exit sell filled")
	e.d.Notifier.Notify(ctx, fmt.Sprintf(
		"🔴 SELL %s\nSold: %.6f %s\nReceived: %.2f %s\nProfit: %+.2f %s (%+.2f%%)\nRef: %s",
		e.p.Pair, c.HoldingValue, e.p.Base.Symbol, out.Received, e.p.Quote.Symbol,
		profit, e.p.Quote.Symbol, pct, out.Ref))
	return ActionSell, nil
}

func (e *Engine) averageDown(ctx context.Context, c models.Counters, change float64) (Action, error) {
	next := c.DCALevel + 1

	balance, err := e.d.Venue.BalanceOf(ctx, e.p.Quote)
	if err != nil {
		return ActionNone, fmt.Errorf("quote balance: %w", err)
	}
	size := strategy.DCASize(balance, e.dcaMultiplier(), e.p.GrowthFactor, next)
	if size < e.p.DCAMinNotional {
		e.logger.Info().
			Float64("size", size).
			Float64("floor", e.p.DCAMinNotional).
			Uint32("dca_level", next).
			Msg("dca size below floor")
		return ActionSkipFloor, nil
	}

	if err := e.d.Guardian.PreBuyCheck(ctx, size); err != nil {
		e.logger.Warn().Err(err).Float64("size", size).Msg("dca blocked by guardian")
		return ActionBlocked, nil
	}

	out, err := e.execute(ctx, swap.Intent{Input: e.p.Quote, Output: e.p.Base, Amount: size})
	if err != nil {
		return ActionNone, err
	}

	rec, err := e.commit(ctx, models.Trade{
		Kind:      models.Buy,
		AmountIn:  size,
		AmountOut: out.Received,
		DCALevel:  &next,
		Ref:       out.Ref,
	}, models.Counters{
		HoldingValue: c.HoldingValue + out.Received,
		DCALevel:     next,
	})
	if err != nil {
		return ActionNone, err
	}

	e.logger.Info().
		Str("id", rec.ID).
		Uint32("dca_level", next).
		Float64("amount", size).
		Float64("received", out.Received).
		Float64("change_pct", change).
		Str("ref", out.Ref).
		Msg("dca buy filled")
	e.d.Notifier.Notify(ctx, fmt.Sprintf(
		"📉 DCA #%d %s\nPrice change: %+.2f%%\nSpent: %.2f %s\nReceived: %.6f %s\nRef: %s",
		next, e.p.Pair, change, size, e.p.Quote.Symbol, out.Received, e.p.Base.Symbol, out.Ref))
	return ActionDCA, nil
}

func (e *Engine) dcaMultiplier() float64 {
	if e.p.DCAMultiplier > 0 {
		return e.p.DCAMultiplier
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.entryMultiplier > 0 {
		return e.entryMultiplier
	}
	return 1.0
}

func (e *Engine) refreshPrice(ctx context.Context) (float64, error) {
	if err := e.d.History.Refresh(ctx, e.d.Feed, e.p.FeedSymbol, e.p.TimeframeMinutes); err != nil {
		return 0, err
	}
	price, ok := e.d.History.Latest()
	if !ok || price <= 0 {
		return 0, fmt.Errorf("no usable price for %s: %w", e.p.FeedSymbol, swap.ErrMissingField)
	}
	if e.d.Prices != nil {
		if err := e.d.Prices.RecordPrice(ctx, e.p.FeedSymbol, price, e.d.History.Len(), e.now()); err != nil {
			e.logger.Warn().Err(err).Msg("price snapshot write failed")
		}
	}
	return price, nil
}

func (e *Engine) execute(ctx context.Context, in swap.Intent) (executor.Outcome, error) {
	out, err := e.d.Executor.Run(ctx, in)
	if err == nil {
		return out, nil
	}
	if errors.Is(err, executor.ErrBudgetExhausted) {
		e.d.Notifier.Notify(ctx, fmt.Sprintf(
			"⚠️ %s swap %s→%s gave up after %d attempts",
			e.p.Pair, in.Input.Symbol, in.Output.Symbol, out.Attempts))
	}
	return out, fmt.Errorf("swap %s→%s %.6f: %w", in.Input.Symbol, in.Output.Symbol, in.Amount, err)
}
