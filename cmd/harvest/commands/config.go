package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/castleryder/dividend-harvest/internal/strategyconfig"
	"github.com/castleryder/dividend-harvest/pkg/config"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective thresholds",
	Long: `Prints the screening thresholds after HARVEST_STRATEGY_FILE is applied,
with the hash recorded against every stored run.

Example:
  go run ./cmd/harvest config`,
	RunE: runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	thresholds, hash, err := strategyconfig.Resolve(cfg)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out)
	PrintDoubleSeparator(out)
	fmt.Fprintln(out, "  Effective Configuration")
	PrintSeparator(out)
	PrintKeyValue(out, "Provider", cfg.Provider.Name, 18)
	if cfg.NeedsTickers() {
		PrintKeyValue(out, "Universe", cfg.Universe.Source, 18)
	} else {
		PrintKeyValue(out, "Universe", "screener", 18)
	}
	if cfg.StrategyFile != "" {
		PrintKeyValue(out, "Strategy file", cfg.StrategyFile, 18)
	}
	PrintKeyValue(out, "Strategy hash", hash, 18)
	PrintSeparator(out)
	printThresholds(cmd, thresholds)

	if cfg.StrategyFile != "" {
		strategy, _, err := strategyconfig.Load(cfg.StrategyFile)
		if err != nil {
			return err
		}
		for _, w := range strategyconfig.Warn(strategy) {
			PrintWarning(out, fmt.Sprintf("%s: %s", w.Code, w.Message))
		}
	}
	return nil
}

func printThresholds(cmd *cobra.Command, t config.Thresholds) {
	out := cmd.OutOrStdout()
	PrintKeyValue(out, "Min market cap", fmt.Sprintf("%.0f", t.MinMarketCap), 18)
	PrintKeyValue(out, "Min yield %", fmt.Sprintf("%.2f", t.MinYieldPct), 18)
	PrintKeyValue(out, "Max P/E", fmt.Sprintf("%.2f", t.MaxPE), 18)
	PrintKeyValue(out, "Max payout %", fmt.Sprintf("%.2f", t.MaxPayoutPct), 18)
	PrintKeyValue(out, "Min volume", fmt.Sprintf("%.0f", t.MinVolume), 18)
	PrintKeyValue(out, "Max beta", fmt.Sprintf("%.2f", t.MaxBeta), 18)
	PrintKeyValue(out, "Ex-div window", fmt.Sprintf("[%d, %d] days", t.MinDays, t.MaxDays), 18)
	PrintKeyValue(out, "Min % from low", fmt.Sprintf("%.2f", t.MinPctFromLow), 18)
	PrintKeyValue(out, "Max results", fmt.Sprintf("%d", t.MaxResults), 18)
}
