package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose   bool
	logFormat string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "harvest",
	Short: "Dividend Harvest - upcoming ex-dividend screener",
	Long: `Dividend Harvest CLI

Finds dividend stocks going ex-dividend soon that also pass
size, valuation, payout, liquidity and volatility filters.

Usage:
  go run ./cmd/harvest [command]

Examples:
  go run ./cmd/harvest run
  go run ./cmd/harvest run --force --top 20
  go run ./cmd/harvest show --json
  go run ./cmd/harvest api
  go run ./cmd/harvest scheduler start`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format override (json|console)")
}
