package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/kjannette/trahn-dca/internal/api"
	"github.com/kjannette/trahn-dca/internal/config"
	"github.com/kjannette/trahn-dca/internal/control"
	"github.com/kjannette/trahn-dca/internal/db"
	"github.com/kjannette/trahn-dca/internal/engine"
	"github.com/kjannette/trahn-dca/internal/ethereum"
	"github.com/kjannette/trahn-dca/internal/executor"
	"github.com/kjannette/trahn-dca/internal/external"
	"github.com/kjannette/trahn-dca/internal/history"
	"github.com/kjannette/trahn-dca/internal/ledger"
	"github.com/kjannette/trahn-dca/internal/logging"
	"github.com/kjannette/trahn-dca/internal/notifications"
	"github.com/kjannette/trahn-dca/internal/repository"
	"github.com/kjannette/trahn-dca/internal/risk"
	"github.com/kjannette/trahn-dca/internal/scheduler"
	"github.com/kjannette/trahn-dca/internal/state"
	"github.com/kjannette/trahn-dca/internal/swap"
)

func newRunCmd() *cobra.Command {
	var (
		profile string
		paused  bool
		noAPI   bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the strategy engine until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(profile)
			if err != nil {
				return fmt.Errorf("config load error: %w", err)
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return run(cmd.Context(), cfg, runOptions{paused: paused, noAPI: noAPI})
		},
	}
	cmd.Flags().StringVar(&profile, "profile", "", "strategy profile name from STRATEGY_PROFILE")
	cmd.Flags().BoolVar(&paused, "paused", false, "start with trading stopped (resume with /start_trading)")
	cmd.Flags().BoolVar(&noAPI, "no-api", false, "do not start the REST status API")
	return cmd
}

type runOptions struct {
	paused bool
	noAPI  bool
}

func run(parent context.Context, cfg *config.Config, opts runOptions) error {
	if parent == nil {
		parent = context.Background()
	}
	fmt.Printf(banner, Version)
	cfg.Print()

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	for _, w := range cfg.Warnings() {
		logger.Warn().Msg(w)
	}

	// Graceful shutdown context
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithContext(ctx)

	// Ledger and counters
	led, err := ledger.Open(ledgerPath(cfg))
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	counters, closeCounters, err := openCounterStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeCounters()

	// Price history
	hist := history.NewStore(cfg.PriceHistoryLimit, snapshotPath(cfg))
	if err := hist.LoadSnapshot(); err != nil {
		logger.Warn().Err(err).Msg("price snapshot unreadable, starting empty")
	}
	feed := external.NewBinanceClient(cfg.BinanceBaseURL)
	spot := external.FallbackSpot{feed, external.NewCoinGeckoClient("", cfg.CoinGeckoID)}

	// Swap venue
	venue, paper, closeVenue, err := openVenue(cfg, hist, spot, logger)
	if err != nil {
		return err
	}
	defer closeVenue()

	exec := executor.New(executor.Policy{
		AttemptBudget:    cfg.SwapAttemptBudget,
		StartSlippageBps: cfg.SwapStartSlippageBps,
		StepBps:          cfg.SwapSlippageStepBps,
		MaxSlippageBps:   cfg.SwapMaxSlippageBps,
		Delay:            cfg.SwapRetryDelay(),
	}, venue, logger)

	// Notifications
	telegram := notifications.NewTelegram("", cfg.TelegramBotToken, cfg.TelegramChatID, logger)
	webhook := notifications.NewSender(cfg.WebhookURL, cfg.BotName, logger)
	var notify notifications.Multi
	if telegram.Enabled() {
		notify = append(notify, telegram)
	}
	if webhook.Enabled() {
		notify = append(notify, webhook)
	}

	// Postgres mirror (optional)
	var pool *pgxpool.Pool
	var mirror engine.TradeMirror
	var prices engine.PriceRecorder
	if cfg.DatabaseURL != "" {
		pool, err = openMirror(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return err
		}
		defer func() {
			pool.Close()
			logger.Info().Msg("connection pool closed")
		}()
		mirror = repository.NewTradeRepo(pool)
		prices = repository.NewPriceRepo(pool, "binance")
	}

	gate := control.NewGate(!opts.paused)

	eng := engine.New(engine.ParamsFromConfig(cfg), engine.Deps{
		Ledger:   led,
		State:    counters,
		History:  hist,
		Feed:     feed,
		Venue:    venue,
		Executor: exec,
		Guardian: risk.NewGuardian(risk.Limits{
			MaxDailyBuys:    cfg.MaxDailyBuys,
			MaxPositionSize: cfg.MaxPositionSize,
		}, led),
		Gate:     gate,
		Notifier: notify,
		Mirror:   mirror,
		Prices:   prices,
	}, logger)

	// 1. Engine
	svc := engine.NewService(logger)
	if err := svc.Start(ctx, eng); err != nil {
		return err
	}

	// 2. Remote control
	if telegram.Enabled() {
		listener := control.NewListener(telegram, gate, svc, telegram.ChatID(), logger)
		go listener.Run(ctx)
	}

	// 3. Periodic status report
	var reports *scheduler.ReportScheduler
	if len(notify) > 0 && cfg.StatusReportIntervalMinutes > 0 {
		reports = scheduler.NewReportScheduler(svc, notify, scheduler.ReportSchedulerConfig{
			Interval: time.Duration(cfg.StatusReportIntervalMinutes) * time.Minute,
			Title:    "📊 " + cfg.PairName() + " status",
		}, logger)
		reports.Start()
	}

	// 4. API server
	var srv *api.Server
	if !opts.noAPI {
		srv = api.NewServer(api.Options{
			Port:       cfg.APIPort,
			APIKey:     cfg.APIKey,
			CORSOrigin: cfg.CORSAllowOrigin,
			Pool:       pool,
			Status:     svc,
			Ledger:     led,
			Source:     "binance",
		}, logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("API server error")
				stop()
			}
		}()
	}

	logger.Info().Msg("all services started")

	select {
	case <-ctx.Done():
	case <-svc.Done():
	}
	logger.Info().Msg("shutting down gracefully")

	if reports != nil {
		reports.Stop()
	}
	svc.Stop()

	if paper != nil {
		if p, ok := hist.Latest(); ok {
			st := paper.Stats(p)
			logger.Info().
				Float64("value", st.CurrentValue).
				Float64("pnl", st.UnrealizedPnL).
				Float64("pnl_pct", st.UnrealizedPnLPct).
				Int("fills", st.Fills).
				Msg("paper wallet summary")
		}
	}

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("API shutdown error")
		}
	}
	logger.Info().Msg("shutdown complete")
	return nil
}

func openCounterStore(ctx context.Context, cfg *config.Config) (state.Store, func(), error) {
	switch cfg.StateBackend {
	case "redis":
		client, err := state.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		return state.NewRedisStore(client, cfg.PairKey()), func() { client.Close() }, nil
	default:
		return state.NewFileStore(cfg.StateDir, cfg.PairKey()), func() {}, nil
	}
}

// openVenue returns the paper wallet in paper mode (also as the second
// result) or a Uniswap V2 router client in live mode.
func openVenue(cfg *config.Config, hist *history.Store, spot external.SpotSource, logger zerolog.Logger) (swap.Venue, *swap.PaperWallet, func(), error) {
	params := engine.ParamsFromConfig(cfg)

	if cfg.PaperTradingEnabled {
		price := func(ctx context.Context) (float64, error) {
			if p, ok := hist.Latest(); ok {
				return p, nil
			}
			return spot.SpotPrice(ctx, cfg.PriceFeedSymbol)
		}
		pw, err := swap.NewPaperWallet(swap.PaperOptions{
			Path:         paperWalletPath(cfg),
			Base:         params.Base,
			Quote:        params.Quote,
			InitialBase:  cfg.PaperInitialBase,
			InitialQuote: cfg.PaperInitialQuote,
			Price:        price,
		}, logger)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("paper wallet: %w", err)
		}
		return pw, pw, func() {}, nil
	}

	client, err := ethereum.NewClient(cfg.EthereumAPIEndpoint, cfg.PrivateKey, int64(cfg.ChainID), cfg.GasLimit, cfg.GasMultiplier)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("ethereum client: %w", err)
	}
	router, err := ethereum.NewUniswapV2(client, cfg.UniswapRouterAddress, logger)
	if err != nil {
		client.Close()
		return nil, nil, nil, fmt.Errorf("uniswap router: %w", err)
	}
	logger.Info().Str("wallet", client.WalletAddress().Hex()).Msg("live trading wallet")
	return router, nil, client.Close, nil
}

func openMirror(ctx context.Context, dsn string, logger zerolog.Logger) (*pgxpool.Pool, error) {
	pool, err := db.Connect(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	if err := db.TestConnection(ctx, pool, logger); err != nil {
		pool.Close()
		return nil, err
	}
	if err := db.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}
