package engine

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/kjannette/trahn-dca/internal/config"
	"github.com/kjannette/trahn-dca/internal/control"
	"github.com/kjannette/trahn-dca/internal/executor"
	"github.com/kjannette/trahn-dca/internal/history"
	"github.com/kjannette/trahn-dca/internal/ledger"
	"github.com/kjannette/trahn-dca/internal/models"
	"github.com/kjannette/trahn-dca/internal/notifications"
	"github.com/kjannette/trahn-dca/internal/risk"
	"github.com/kjannette/trahn-dca/internal/state"
	"github.com/kjannette/trahn-dca/internal/swap"
)

// Params are the strategy policy values.
type Params struct {
	Pair             string
	Base             swap.Asset
	Quote            swap.Asset
	FeedSymbol       string
	TimeframeMinutes int
	BucketWidth      float64
	ProfitTargetPct  float64
	DCATriggerPct    float64
	GrowthFactor     float64
	DCAMultiplier    float64
	EntryMinNotional float64
	DCAMinNotional   float64
	Cooldown         time.Duration
	PollInterval     time.Duration
	QuoteSlippageBps int
	Paper            bool
}

func ParamsFromConfig(cfg *config.Config) Params {
	return Params{
		Pair: cfg.PairName(),
		Base: swap.Asset{
			Symbol:   cfg.BaseSymbol,
			Address:  cfg.BaseTokenAddress,
			Decimals: cfg.BaseTokenDecimals,
		},
		Quote: swap.Asset{
			Symbol:   cfg.QuoteSymbol,
			Address:  cfg.QuoteTokenAddress,
			Decimals: cfg.QuoteTokenDecimals,
		},
		FeedSymbol:       cfg.PriceFeedSymbol,
		TimeframeMinutes: cfg.PriceFeedTimeframeMinutes,
		BucketWidth:      cfg.RiskBucketWidth,
		ProfitTargetPct:  cfg.ProfitTargetPercent,
		DCATriggerPct:    cfg.DCATriggerPercent,
		GrowthFactor:     cfg.DCAGrowthFactor,
		DCAMultiplier:    cfg.DCAMultiplier,
		EntryMinNotional: cfg.EntryMinNotional,
		DCAMinNotional:   cfg.DCAMinNotional,
		Cooldown:         cfg.Cooldown(),
		PollInterval:     cfg.PollInterval(),
		QuoteSlippageBps: cfg.QuoteSlippageBps,
		Paper:            cfg.PaperTradingEnabled,
	}
}

// TradeMirror receives a copy of every committed trade.
type TradeMirror interface {
	RecordTrade(ctx context.Context, pair string, t models.Trade, paper bool) error
}

// PriceRecorder receives the latest close after each history refresh.
type PriceRecorder interface {
	RecordPrice(ctx context.Context, symbol string, price float64, samples int, at time.Time) error
}

// Deps are the engine's collaborators. Guardian, Gate, Notifier, Mirror and
// Prices are optional.
type Deps struct {
	Ledger   *ledger.Ledger
	State    state.Store
	History  *history.Store
	Feed     history.Feed
	Venue    swap.Venue
	Executor *executor.RetryExecutor
	Guardian *risk.Guardian
	Gate     *control.Gate
	Notifier notifications.Notifier
	Mirror   TradeMirror
	Prices   PriceRecorder
}

// Engine is the DCA state machine. It is the only writer of the ledger and
// the persisted counters.
type Engine struct {
	p      Params
	d      Deps
	now    func() time.Time
	logger zerolog.Logger

	mu              sync.RWMutex
	counters        models.Counters
	entryMultiplier float64
	lastAssessment  *risk.Assessment
	lastQuote       *float64
	lastAction      Action
	lastCycleAt     time.Time
	lastErr         string
	cycles          int

	stopOnce sync.Once
	stopCh   chan struct{}
}

func New(p Params, d Deps, logger zerolog.Logger) *Engine {
	if d.Notifier == nil {
		d.Notifier = notifications.Nop{}
	}
	return &Engine{
		p:      p,
		d:      d,
		now:    time.Now,
		logger: logger.With().Str("component", "engine").Str("pair", p.Pair).Logger(),
		stopCh: make(chan struct{}),
	}
}

// Init loads the persisted counters and reconciles them with the ledger.
func (e *Engine) Init(ctx context.Context) error {
	persisted, err := e.d.State.Load(ctx)
	if err != nil {
		return fmt.Errorf("load counters: %w", err)
	}

	derived := e.d.Ledger.Derive()
	if !CountersMatch(persisted, derived) {
		e.logger.Warn().
			Float64("persisted_holding", persisted.HoldingValue).
			Uint32("persisted_level", persisted.DCALevel).
			Float64("ledger_holding", derived.HoldingValue).
			Uint32("ledger_level", derived.DCALevel).
			Msg("persisted counters disagree with ledger, repairing from ledger")
		if err := e.d.State.Save(ctx, derived); err != nil {
			return fmt.Errorf("repair counters: %w", err)
		}
		persisted = derived
	}

	e.mu.Lock()
	e.counters = persisted
	e.mu.Unlock()

	e.logger.Info().
		Float64("holding", persisted.HoldingValue).
		Uint32("dca_level", persisted.DCALevel).
		Int("ledger_records", e.d.Ledger.Len()).
		Msg("state loaded")
	return nil
}

// Run polls until ctx is cancelled or Shutdown is called. A cycle runs only
// when the gate is open at the moment the cycle would start.
func (e *Engine) Run(ctx context.Context) {
	mode := "LIVE MODE"
	if e.p.Paper {
		mode = "PAPER MODE"
	}
	e.d.Notifier.Notify(ctx, fmt.Sprintf("🟢 DCA bot online: %s - %s", e.p.Pair, mode))

	var changed <-chan struct{}
	if e.d.Gate != nil {
		changed = e.d.Gate.Changed()
	}

	for {
		if e.d.Gate == nil || e.d.Gate.Enabled() {
			action, err := e.Cycle(ctx)
			if err != nil && ctx.Err() == nil {
				e.logger.Warn().Err(err).Str("action", action.String()).Msg("cycle aborted")
			}
		} else {
			e.logger.Debug().Msg("trading paused, skipping cycle")
		}

		select {
		case <-ctx.Done():
			e.logger.Info().Msg("engine stopped")
			return
		case <-e.stopCh:
			e.d.Notifier.Notify(context.Background(), fmt.Sprintf("DCA bot shutting down: %s", e.p.Pair))
			return
		case <-changed:
		case <-time.After(e.p.PollInterval):
		}
	}
}

func (e *Engine) Shutdown() {
	e.stopOnce.Do(func() { close(e.stopCh) })
}

// Counters returns the in-memory copy of the persisted counters.
func (e *Engine) Counters() models.Counters {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.counters
}

// commit appends t to the ledger and then persists next. The ledger write is
// the durable step; a failed counter write is repaired from the ledger on the
// next Init.
func (e *Engine) commit(ctx context.Context, t models.Trade, next models.Counters) (models.Trade, error) {
	if t.Timestamp.IsZero() {
		t.Timestamp = e.now().UTC()
	}
	rec, err := e.d.Ledger.Append(t)
	if err != nil {
		return rec, fmt.Errorf("ledger append (swap %s already executed): %w", t.Ref, err)
	}

	if err := e.d.State.Save(ctx, next); err != nil {
		e.logger.Error().Err(err).Str("ref", rec.Ref).Msg("failed to persist counters, ledger remains authoritative")
	}

	e.mu.Lock()
	e.counters = next
	e.mu.Unlock()

	if e.d.Mirror != nil {
		if err := e.d.Mirror.RecordTrade(ctx, e.p.Pair, rec, e.p.Paper); err != nil {
			e.logger.Warn().Err(err).Str("id", rec.ID).Msg("trade mirror write failed")
		}
	}
	return rec, nil
}

// CountersMatch compares counters with a relative holding tolerance of 1e-9.
func CountersMatch(a, b models.Counters) bool {
	if a.DCALevel != b.DCALevel {
		return false
	}
	diff := math.Abs(a.HoldingValue - b.HoldingValue)
	scale := math.Max(math.Abs(a.HoldingValue), math.Abs(b.HoldingValue))
	return diff <= 1e-9*math.Max(scale, 1)
}
