package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kjannette/trahn-dca/internal/config"
)

// Version is set at build time with -ldflags "-X ...cli.Version=v1.2.3".
var Version = "dev"

const banner = `
╔══════════════════════════════════════╗
║       TRAHN DCA Spot Bot %-8s    ║
║                                      ║
╚══════════════════════════════════════╝
`

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "trahn",
		Short: "Unattended DCA spot-trading bot for a single pair",
		Long: `trahn buys a single spot pair when historical price risk allows, averages
down on drawdowns, and exits the whole position at a profit target.

State lives under STATE_DIR: an append-only trade ledger (JSON lines),
the holding and DCA-level counters, and the last price history snapshot.`,
		SilenceUsage: true,
	}

	root.AddCommand(
		newRunCmd(),
		newStatusCmd(),
		newLedgerCmd(),
		newVersionCmd(),
	)
	return root
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// loadConfig reads env configuration and applies an optional profile name
// given on the command line.
func loadConfig(profileName string) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if profileName != "" {
		if cfg.StrategyProfile == "" {
			return nil, fmt.Errorf("--profile %q given but STRATEGY_PROFILE is not set", profileName)
		}
		if err := cfg.ApplyProfileFile(cfg.StrategyProfile, profileName); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// --- per-pair file layout ---

func ledgerPath(cfg *config.Config) string {
	return filepath.Join(cfg.StateDir, "trades", cfg.PairKey()+".jsonl")
}

func snapshotPath(cfg *config.Config) string {
	return filepath.Join(cfg.StateDir, cfg.PairKey()+"_prices.txt")
}

func paperWalletPath(cfg *config.Config) string {
	return filepath.Join(cfg.StateDir, cfg.PairKey()+"_paper_wallet.json")
}
