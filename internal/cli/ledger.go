package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kjannette/trahn-dca/internal/config"
	"github.com/kjannette/trahn-dca/internal/ledger"
	"github.com/kjannette/trahn-dca/internal/models"
)

func newLedgerCmd() *cobra.Command {
	var (
		openOnly bool
		limit    int
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Print trade ledger records, oldest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("config load error: %w", err)
			}
			trades, err := ledger.ReadFile(ledgerPath(cfg))
			if err != nil {
				return fmt.Errorf("read ledger: %w", err)
			}
			return printLedger(cmd.OutOrStdout(), trades, openOnly, limit, asJSON)
		},
	}
	cmd.Flags().BoolVar(&openOnly, "open", false, "only records of the open position")
	cmd.Flags().IntVar(&limit, "limit", 0, "show at most the last N records (0 = all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON lines")
	return cmd
}

func printLedger(w io.Writer, trades []models.Trade, openOnly bool, limit int, asJSON bool) error {
	if openOnly {
		trades = ledger.OpenPosition(trades)
	}
	if limit > 0 && len(trades) > limit {
		trades = trades[len(trades)-limit:]
	}

	if asJSON {
		enc := json.NewEncoder(w)
		for _, t := range trades {
			if err := enc.Encode(t); err != nil {
				return err
			}
		}
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tKIND\tIN\tOUT\tLEVEL\tREF")
	for _, t := range trades {
		level := "-"
		if t.DCALevel != nil {
			level = fmt.Sprint(*t.DCALevel)
		}
		fmt.Fprintf(tw, "%s\t%s\t%.6f\t%.6f\t%s\t%s\n",
			t.Timestamp.Format(time.RFC3339), t.Kind, t.AmountIn, t.AmountOut, level, t.Ref)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "%d records, cost basis of open position %.2f\n",
		len(trades), ledger.CostBasis(ledger.OpenPosition(trades)))
	return nil
}
