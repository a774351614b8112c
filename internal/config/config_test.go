package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "WETH/USDC", cfg.PairName())
	assert.Equal(t, "weth_usdc", cfg.PairKey())
	assert.Equal(t, 1000, cfg.PriceHistoryLimit)
	assert.Equal(t, 0.25, cfg.RiskBucketWidth)
	assert.Equal(t, 2.3, cfg.ProfitTargetPercent)
	assert.Equal(t, 3.5, cfg.DCATriggerPercent)
	assert.Equal(t, 0.5, cfg.DCAGrowthFactor)
	assert.Equal(t, time.Hour, cfg.Cooldown())
	assert.Equal(t, 200, cfg.SwapAttemptBudget)
	assert.Equal(t, 2*time.Second, cfg.SwapRetryDelay())
	assert.True(t, cfg.PaperTradingEnabled)
	assert.NoError(t, cfg.Validate())
}

func TestLoadOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PAIR_BASE_SYMBOL", "SOL")
	t.Setenv("PROFIT_TARGET_PERCENT", "4")
	t.Setenv("COOLDOWN_SECONDS", "60")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "SOL/USDC", cfg.PairName())
	assert.Equal(t, 4.0, cfg.ProfitTargetPercent)
	assert.Equal(t, time.Minute, cfg.Cooldown())
}

func TestValidate(t *testing.T) {
	base := func(t *testing.T) *Config {
		t.Chdir(t.TempDir())
		cfg, err := Load()
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad bucket width", func(c *Config) { c.RiskBucketWidth = 0 }, "RISK_BUCKET_WIDTH"},
		{"no attempts", func(c *Config) { c.SwapAttemptBudget = 0 }, "SWAP_ATTEMPT_BUDGET"},
		{"start above max", func(c *Config) { c.SwapStartSlippageBps = 10 }, "SWAP_START_SLIPPAGE_BPS"},
		{"negative step", func(c *Config) { c.SwapSlippageStepBps = -1 }, "SWAP_SLIPPAGE_STEP_BPS"},
		{"redis without url", func(c *Config) { c.StateBackend = "redis" }, "REDIS_URL"},
		{"unknown backend", func(c *Config) { c.StateBackend = "etcd" }, "STATE_BACKEND"},
		{"live without key", func(c *Config) { c.PaperTradingEnabled = false }, "PRIVATE_KEY"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base(t)
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestApplyProfileFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "profiles.yaml")
	body := `active: cautious
profiles:
  cautious:
    profit_target_percent: 1.5
    cooldown_seconds: 7200
  aggressive:
    dca_trigger_percent: 2
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg := &Config{ProfitTargetPercent: 2.3, DCATriggerPercent: 3.5, CooldownSeconds: 3600}
	require.NoError(t, cfg.ApplyProfileFile(path, ""))
	assert.Equal(t, 1.5, cfg.ProfitTargetPercent)
	assert.Equal(t, 3.5, cfg.DCATriggerPercent)
	assert.Equal(t, 7200, cfg.CooldownSeconds)

	cfg = &Config{ProfitTargetPercent: 2.3, DCATriggerPercent: 3.5}
	require.NoError(t, cfg.ApplyProfileFile(path, "aggressive"))
	assert.Equal(t, 2.3, cfg.ProfitTargetPercent)
	assert.Equal(t, 2.0, cfg.DCATriggerPercent)

	err := cfg.ApplyProfileFile(path, "missing")
	assert.Error(t, err)
}
