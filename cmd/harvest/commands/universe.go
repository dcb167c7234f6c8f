package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/castleryder/dividend-harvest/internal/contracts"
	"github.com/castleryder/dividend-harvest/internal/snapshot"
)

// universeCmd represents the universe command
var universeCmd = &cobra.Command{
	Use:   "universe",
	Short: "Show or rebuild the qualified universe",
	Long: `The qualified universe is the set of tickers that passed every filter
except the ex-dividend window. Per-ticker providers scan only this set
while it is younger than HARVEST_UNIVERSE_TTL.

Example:
  go run ./cmd/harvest universe
  go run ./cmd/harvest universe --refresh`,
	RunE: runUniverse,
}

var universeRefresh bool

func init() {
	rootCmd.AddCommand(universeCmd)

	universeCmd.Flags().BoolVar(&universeRefresh, "refresh", false, "rescan the full configured universe")
}

func runUniverse(cmd *cobra.Command, args []string) error {
	a, err := bootstrap(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()

	var u *contracts.Universe
	if universeRefresh {
		if u, err = a.service.RefreshUniverse(cmd.Context()); err != nil {
			return fmt.Errorf("refresh universe: %w", err)
		}
	} else {
		u, err = a.service.Universe()
		if errors.Is(err, snapshot.ErrNotFound) {
			PrintInfo(out, "No qualified universe yet. Run with --refresh")
			return nil
		}
		if err != nil {
			return err
		}
	}

	fmt.Fprintln(out)
	PrintDoubleSeparator(out)
	fmt.Fprintln(out, "  Qualified Universe")
	PrintSeparator(out)
	PrintKeyValue(out, "Source", u.Source, 10)
	PrintKeyValue(out, "Written", u.WrittenAt.Format("2006-01-02 15:04 MST"), 10)
	PrintKeyValue(out, "Tickers", fmt.Sprintf("%d", u.Count()), 10)
	PrintSeparator(out)
	PrintList(out, u.Tickers)
	return nil
}
