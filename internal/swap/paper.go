package swap

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// PriceFunc returns the price of the base asset in quote units.
type PriceFunc func(ctx context.Context) (float64, error)

// PaperWallet simulates fills against a reference price and keeps its
// balances in a JSON file so restarts resume where they left off.
type PaperWallet struct {
	mu     sync.Mutex
	path   string
	base   Asset
	quote  Asset
	price  PriceFunc
	rng    *rand.Rand
	logger zerolog.Logger

	state paperState
}

type paperState struct {
	Base         float64   `json:"base"`
	Quote        float64   `json:"quote"`
	InitialBase  float64   `json:"initialBase"`
	InitialQuote float64   `json:"initialQuote"`
	Fills        int       `json:"fills"`
	StartTime    time.Time `json:"startTime"`
}

type PaperOptions struct {
	Path         string
	Base         Asset
	Quote        Asset
	InitialBase  float64
	InitialQuote float64
	Price        PriceFunc
	Seed         int64
}

// NewPaperWallet loads the wallet at opts.Path or starts a fresh one with
// the initial balances.
func NewPaperWallet(opts PaperOptions, logger zerolog.Logger) (*PaperWallet, error) {
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	pw := &PaperWallet{
		path:   opts.Path,
		base:   opts.Base,
		quote:  opts.Quote,
		price:  opts.Price,
		rng:    rand.New(rand.NewSource(seed)),
		logger: logger.With().Str("component", "paper").Logger(),
	}

	loaded, err := pw.load()
	if err != nil {
		return nil, err
	}
	if loaded {
		pw.logger.Info().
			Float64(opts.Base.Symbol, pw.state.Base).
			Float64(opts.Quote.Symbol, pw.state.Quote).
			Int("fills", pw.state.Fills).
			Msg("loaded paper wallet")
		return pw, nil
	}

	pw.state = paperState{
		Base:         opts.InitialBase,
		Quote:        opts.InitialQuote,
		InitialBase:  opts.InitialBase,
		InitialQuote: opts.InitialQuote,
		StartTime:    time.Now().UTC(),
	}
	pw.logger.Info().
		Float64(opts.Base.Symbol, pw.state.Base).
		Float64(opts.Quote.Symbol, pw.state.Quote).
		Msg("starting fresh paper wallet")
	if err := pw.save(); err != nil {
		return nil, err
	}
	return pw, nil
}

func (pw *PaperWallet) BalanceOf(_ context.Context, asset Asset) (float64, error) {
	pw.mu.Lock()
	defer pw.mu.Unlock()
	switch asset.Symbol {
	case pw.base.Symbol:
		return pw.state.Base, nil
	case pw.quote.Symbol:
		return pw.state.Quote, nil
	default:
		return 0, fmt.Errorf("paper wallet: unknown asset %s", asset.Symbol)
	}
}

// Quote prices the intent at the reference price with no slippage.
func (pw *PaperWallet) Quote(ctx context.Context, in Intent, _ int) (Quote, error) {
	out, err := pw.convert(ctx, in)
	if err != nil {
		return Quote{}, err
	}
	return Quote{ExpectedOut: out}, nil
}

// Execute fills the intent with a random adverse slippage of at most
// slippageBps.
func (pw *PaperWallet) Execute(ctx context.Context, in Intent, slippageBps int) (Result, error) {
	expected, err := pw.convert(ctx, in)
	if err != nil {
		return Result{}, err
	}

	pw.mu.Lock()
	defer pw.mu.Unlock()

	slip := pw.rng.Float64() * float64(slippageBps) / 10000
	received := expected * (1 - slip)

	switch in.Input.Symbol {
	case pw.quote.Symbol:
		if pw.state.Quote < in.Amount {
			return Result{}, fmt.Errorf("paper buy: have %.2f %s, need %.2f: %w",
				pw.state.Quote, pw.quote.Symbol, in.Amount, ErrInsufficientBalance)
		}
		pw.state.Quote -= in.Amount
		pw.state.Base += received
	case pw.base.Symbol:
		if pw.state.Base < in.Amount {
			return Result{}, fmt.Errorf("paper sell: have %.6f %s, need %.6f: %w",
				pw.state.Base, pw.base.Symbol, in.Amount, ErrInsufficientBalance)
		}
		pw.state.Base -= in.Amount
		pw.state.Quote += received
	default:
		return Result{}, fmt.Errorf("paper wallet: unknown asset %s", in.Input.Symbol)
	}
	pw.state.Fills++

	if err := pw.save(); err != nil {
		pw.logger.Error().Err(err).Msg("failed to persist paper wallet")
	}

	return Result{Received: received, Ref: "paper-" + uuid.NewString()}, nil
}

type PaperStats struct {
	InitialBase      float64 `json:"initialBase"`
	InitialQuote     float64 `json:"initialQuote"`
	CurrentBase      float64 `json:"currentBase"`
	CurrentQuote     float64 `json:"currentQuote"`
	InitialValue     float64 `json:"initialValue"`
	CurrentValue     float64 `json:"currentValue"`
	UnrealizedPnL    float64 `json:"unrealizedPnl"`
	UnrealizedPnLPct float64 `json:"unrealizedPnlPercent"`
	Fills            int     `json:"fills"`
	RunningTimeHours float64 `json:"runningTimeHours"`
}

func (pw *PaperWallet) Stats(price float64) PaperStats {
	pw.mu.Lock()
	defer pw.mu.Unlock()

	initialVal := pw.state.InitialBase*price + pw.state.InitialQuote
	currentVal := pw.state.Base*price + pw.state.Quote
	pnl := currentVal - initialVal
	pnlPct := 0.0
	if initialVal > 0 {
		pnlPct = pnl / initialVal * 100
	}
	return PaperStats{
		InitialBase:      pw.state.InitialBase,
		InitialQuote:     pw.state.InitialQuote,
		CurrentBase:      pw.state.Base,
		CurrentQuote:     pw.state.Quote,
		InitialValue:     initialVal,
		CurrentValue:     currentVal,
		UnrealizedPnL:    pnl,
		UnrealizedPnLPct: pnlPct,
		Fills:            pw.state.Fills,
		RunningTimeHours: time.Since(pw.state.StartTime).Hours(),
	}
}

func (pw *PaperWallet) convert(ctx context.Context, in Intent) (float64, error) {
	if in.Amount <= 0 {
		return 0, fmt.Errorf("paper wallet: non-positive amount %f", in.Amount)
	}
	price, err := pw.price(ctx)
	if err != nil {
		return 0, fmt.Errorf("paper wallet price: %w", err)
	}
	if price <= 0 {
		return 0, fmt.Errorf("paper wallet: invalid price %f", price)
	}
	switch in.Input.Symbol {
	case pw.quote.Symbol:
		return in.Amount / price, nil
	case pw.base.Symbol:
		return in.Amount * price, nil
	default:
		return 0, fmt.Errorf("paper wallet: unknown asset %s", in.Input.Symbol)
	}
}

func (pw *PaperWallet) load() (bool, error) {
	if pw.path == "" {
		return false, nil
	}
	b, err := os.ReadFile(pw.path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read paper wallet: %w", err)
	}
	var st paperState
	if err := json.Unmarshal(b, &st); err != nil {
		pw.logger.Warn().Err(err).Str("path", pw.path).Msg("paper wallet file unreadable, starting fresh")
		return false, nil
	}
	pw.state = st
	return true, nil
}

func (pw *PaperWallet) save() error {
	if pw.path == "" {
		return nil
	}
	b, err := json.MarshalIndent(pw.state, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(pw.path), 0o755); err != nil {
		return err
	}
	tmp := pw.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, pw.path)
}
