package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// Pair
	BaseSymbol         string `envconfig:"PAIR_BASE_SYMBOL" default:"WETH"`
	QuoteSymbol        string `envconfig:"PAIR_QUOTE_SYMBOL" default:"USDC"`
	BaseTokenAddress   string `envconfig:"BASE_TOKEN_ADDRESS" default:"0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"`
	BaseTokenDecimals  int    `envconfig:"BASE_TOKEN_DECIMALS" default:"18"`
	QuoteTokenAddress  string `envconfig:"QUOTE_TOKEN_ADDRESS" default:"0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"`
	QuoteTokenDecimals int    `envconfig:"QUOTE_TOKEN_DECIMALS" default:"6"`

	// Price history
	PriceFeedSymbol           string  `envconfig:"PRICE_FEED_SYMBOL" default:"ETHUSDT"`
	PriceFeedTimeframeMinutes int     `envconfig:"PRICE_FEED_TIMEFRAME_MINUTES" default:"4"`
	PriceHistoryLimit         int     `envconfig:"PRICE_HISTORY_LIMIT" default:"1000"`
	RiskBucketWidth           float64 `envconfig:"RISK_BUCKET_WIDTH" default:"0.25"`
	BinanceBaseURL            string  `envconfig:"BINANCE_BASE_URL" default:"https://api.binance.com"`
	CoinGeckoID               string  `envconfig:"COINGECKO_ID" default:"ethereum"`

	// Strategy
	ProfitTargetPercent float64 `envconfig:"PROFIT_TARGET_PERCENT" default:"2.3"`
	DCATriggerPercent   float64 `envconfig:"DCA_TRIGGER_PERCENT" default:"3.5"`
	DCAGrowthFactor     float64 `envconfig:"DCA_GROWTH_FACTOR" default:"0.5"`
	DCAMultiplier       float64 `envconfig:"DCA_MULTIPLIER" default:"0"`
	EntryMinNotional    float64 `envconfig:"ENTRY_MIN_NOTIONAL" default:"10"`
	DCAMinNotional      float64 `envconfig:"DCA_MIN_NOTIONAL" default:"5"`
	CooldownSeconds     int     `envconfig:"COOLDOWN_SECONDS" default:"3600"`
	PollIntervalSeconds int     `envconfig:"POLL_INTERVAL_SECONDS" default:"10"`

	// Swap execution
	SwapAttemptBudget     int `envconfig:"SWAP_ATTEMPT_BUDGET" default:"200"`
	SwapStartSlippageBps  int `envconfig:"SWAP_START_SLIPPAGE_BPS" default:"1"`
	SwapSlippageStepBps   int `envconfig:"SWAP_SLIPPAGE_STEP_BPS" default:"1"`
	SwapMaxSlippageBps    int `envconfig:"SWAP_MAX_SLIPPAGE_BPS" default:"5"`
	SwapRetryDelaySeconds int `envconfig:"SWAP_RETRY_DELAY_SECONDS" default:"2"`
	QuoteSlippageBps      int `envconfig:"QUOTE_SLIPPAGE_BPS" default:"50"`

	// Persisted state
	StateDir     string `envconfig:"STATE_DIR" default:"state"`
	StateBackend string `envconfig:"STATE_BACKEND" default:"file"`
	RedisURL     string `envconfig:"REDIS_URL"`

	// Paper trading
	PaperTradingEnabled bool    `envconfig:"PAPER_TRADING_ENABLED" default:"true"`
	PaperInitialBase    float64 `envconfig:"PAPER_INITIAL_BASE" default:"0"`
	PaperInitialQuote   float64 `envconfig:"PAPER_INITIAL_QUOTE" default:"1000"`

	// Live trading
	WalletAddress        string  `envconfig:"WALLET_ADDRESS"`
	PrivateKey           string  `envconfig:"PRIVATE_KEY"`
	EthereumAPIEndpoint  string  `envconfig:"ETHEREUM_API_ENDPOINT"`
	ChainID              int     `envconfig:"CHAIN_ID" default:"1"`
	UniswapRouterAddress string  `envconfig:"UNISWAP_ROUTER_ADDRESS" default:"0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D"`
	GasLimit             int     `envconfig:"GAS_LIMIT" default:"250000"`
	GasMultiplier        float64 `envconfig:"GAS_MULTIPLIER" default:"1.2"`

	// Notifications and remote control
	TelegramBotToken string `envconfig:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID   string `envconfig:"TELEGRAM_CHAT_ID"`
	WebhookURL       string `envconfig:"WEBHOOK_URL"`
	BotName          string `envconfig:"BOT_NAME" default:"TrahnDCABot"`

	StatusReportIntervalMinutes int `envconfig:"STATUS_REPORT_INTERVAL_MINUTES" default:"60"`

	// Postgres mirror
	DatabaseURL string `envconfig:"DATABASE_URL"`

	// Status API
	APIPort         int    `envconfig:"API_PORT" default:"3001"`
	APIKey          string `envconfig:"API_KEY"`
	CORSAllowOrigin string `envconfig:"CORS_ALLOW_ORIGIN" default:"*"`

	// Guardian
	MaxDailyBuys    int     `envconfig:"MAX_DAILY_BUYS" default:"0"`
	MaxPositionSize float64 `envconfig:"MAX_POSITION_SIZE" default:"0"`

	StrategyProfile     string `envconfig:"STRATEGY_PROFILE"`
	StrategyProfileName string `envconfig:"STRATEGY_PROFILE_NAME"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"console"`
}

// Load reads .env (when present) and the process environment, then applies
// the strategy profile named by STRATEGY_PROFILE, if any.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}

	if cfg.StrategyProfile != "" {
		if err := cfg.ApplyProfileFile(cfg.StrategyProfile, cfg.StrategyProfileName); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []string

	if c.BaseSymbol == "" || c.QuoteSymbol == "" {
		errs = append(errs, "PAIR_BASE_SYMBOL and PAIR_QUOTE_SYMBOL are required")
	}
	if c.PriceFeedSymbol == "" {
		errs = append(errs, "PRICE_FEED_SYMBOL is required")
	}
	if c.PriceHistoryLimit <= 0 {
		errs = append(errs, "PRICE_HISTORY_LIMIT must be positive")
	}
	if c.RiskBucketWidth <= 0 {
		errs = append(errs, "RISK_BUCKET_WIDTH must be positive")
	}
	if c.ProfitTargetPercent <= 0 {
		errs = append(errs, "PROFIT_TARGET_PERCENT must be positive")
	}
	if c.DCATriggerPercent <= 0 {
		errs = append(errs, "DCA_TRIGGER_PERCENT must be positive")
	}
	if c.DCAGrowthFactor <= 0 {
		errs = append(errs, "DCA_GROWTH_FACTOR must be positive")
	}
	if c.DCAMultiplier < 0 {
		errs = append(errs, "DCA_MULTIPLIER must not be negative")
	}
	if c.SwapAttemptBudget < 1 {
		errs = append(errs, "SWAP_ATTEMPT_BUDGET must be at least 1")
	}
	if c.SwapStartSlippageBps < 0 || c.SwapStartSlippageBps > c.SwapMaxSlippageBps {
		errs = append(errs, "SWAP_START_SLIPPAGE_BPS must be between 0 and SWAP_MAX_SLIPPAGE_BPS")
	}
	if c.SwapSlippageStepBps < 0 {
		errs = append(errs, "SWAP_SLIPPAGE_STEP_BPS must not be negative")
	}
	if c.PollIntervalSeconds <= 0 {
		errs = append(errs, "POLL_INTERVAL_SECONDS must be positive")
	}

	switch c.StateBackend {
	case "file":
	case "redis":
		if c.RedisURL == "" {
			errs = append(errs, "REDIS_URL is required when STATE_BACKEND=redis")
		}
	default:
		errs = append(errs, fmt.Sprintf("STATE_BACKEND %q is not one of file|redis", c.StateBackend))
	}

	if !c.PaperTradingEnabled {
		if c.PrivateKey == "" {
			errs = append(errs, "PRIVATE_KEY is required for live trading")
		}
		if c.EthereumAPIEndpoint == "" {
			errs = append(errs, "ETHEREUM_API_ENDPOINT is required for live trading")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  %s", strings.Join(errs, "\n  "))
	}
	return nil
}

// Warnings lists non-fatal configuration gaps.
func (c *Config) Warnings() []string {
	var out []string
	if c.TelegramBotToken == "" || c.TelegramChatID == "" {
		out = append(out, "TELEGRAM_BOT_TOKEN/TELEGRAM_CHAT_ID not set - remote control disabled")
	}
	if c.APIKey == "" {
		out = append(out, "API_KEY not set - REST API has no authentication")
	}
	if c.MaxDailyBuys == 0 && c.MaxPositionSize == 0 {
		out = append(out, "MAX_DAILY_BUYS and MAX_POSITION_SIZE are both 0 - no per-trade limits active")
	}
	if c.DatabaseURL == "" {
		out = append(out, "DATABASE_URL not set - trades are kept in the ledger file only")
	}
	return out
}

func (c *Config) Print() {
	fmt.Println("=== DCA Spot Bot Configuration ===")

	if c.PaperTradingEnabled {
		fmt.Println("════════════════════════════════════════")
		fmt.Println("  PAPER TRADING MODE ENABLED")
		fmt.Println("  No real transactions will execute")
		fmt.Println("════════════════════════════════════════")
		fmt.Printf("Paper Initial %s: %.6f\n", c.BaseSymbol, c.PaperInitialBase)
		fmt.Printf("Paper Initial %s: %.2f\n", c.QuoteSymbol, c.PaperInitialQuote)
	} else {
		fmt.Println("  LIVE TRADING MODE")
		fmt.Printf("Chain ID: %d\n", c.ChainID)
		if len(c.WalletAddress) > 16 {
			fmt.Printf("Wallet: %s...%s\n", c.WalletAddress[:10], c.WalletAddress[len(c.WalletAddress)-6:])
		}
	}

	fmt.Println("--------------------------------------")
	fmt.Printf("Trading Pair: %s\n", c.PairName())
	fmt.Printf("Price Feed: %s (%dm x %d)\n", c.PriceFeedSymbol, c.PriceFeedTimeframeMinutes, c.PriceHistoryLimit)
	fmt.Println("--------------------------------------")
	fmt.Println("Strategy:")
	fmt.Printf("  Profit Target: %.2f%%\n", c.ProfitTargetPercent)
	fmt.Printf("  DCA Trigger: -%.2f%%\n", c.DCATriggerPercent)
	fmt.Printf("  DCA Growth Factor: %.2f\n", c.DCAGrowthFactor)
	fmt.Printf("  DCA Multiplier: %s\n", boolLabel(c.DCAMultiplier > 0, fmt.Sprintf("%.2f", c.DCAMultiplier), "carry over entry assessment"))
	fmt.Printf("  Cooldown: %s\n", c.Cooldown())
	fmt.Println("--------------------------------------")
	fmt.Println("Execution:")
	fmt.Printf("  Attempts: %d\n", c.SwapAttemptBudget)
	fmt.Printf("  Slippage: %d-%d bps\n", c.SwapStartSlippageBps, c.SwapMaxSlippageBps)
	fmt.Printf("  State Backend: %s\n", c.StateBackend)
	fmt.Printf("  Postgres Mirror: %s\n", boolLabel(c.DatabaseURL != "", "configured", "disabled"))
	fmt.Println("======================================")
}

func (c *Config) PairName() string {
	return c.BaseSymbol + "/" + c.QuoteSymbol
}

// PairKey is the filesystem/key-safe pair identifier.
func (c *Config) PairKey() string {
	return strings.ToLower(c.BaseSymbol + "_" + c.QuoteSymbol)
}

func (c *Config) Cooldown() time.Duration {
	return time.Duration(c.CooldownSeconds) * time.Second
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

func (c *Config) SwapRetryDelay() time.Duration {
	return time.Duration(c.SwapRetryDelaySeconds) * time.Second
}

// --- helpers ---

func boolLabel(cond bool, ifTrue, ifFalse string) string {
	if cond {
		return ifTrue
	}
	return ifFalse
}
