package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/castleryder/dividend-harvest/internal/export"
	"github.com/castleryder/dividend-harvest/internal/harvest"
)

// errNoStocks makes the process exit 1 when nothing qualified
var errNoStocks = errors.New("no stocks met the harvest criteria")

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the dividend harvest",
	Long: `Runs the harvest pipeline, writes the dated CSV export and prints
the top ranked stocks.

A cached result younger than HARVEST_CACHE_TTL is reused unless --force
is given. The command exits with status 1 when no stock qualifies.

Example:
  go run ./cmd/harvest run
  go run ./cmd/harvest run --force --top 25`,
	RunE: runHarvest,
}

var (
	runForce bool
	runTop   int
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolVar(&runForce, "force", false, "ignore the cached result and refetch")
	runCmd.Flags().IntVar(&runTop, "top", 10, "number of ranked stocks to print")
}

func runHarvest(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	start := time.Now()
	var res *harvest.Result
	if runForce {
		res, err = a.service.Refresh(ctx)
	} else {
		res, err = a.service.GetDividendHarvest(ctx)
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return fmt.Errorf("harvest interrupted: %w", err)
		}
		return fmt.Errorf("harvest failed: %w", err)
	}

	out := cmd.OutOrStdout()
	rs := res.ResultSet

	source := "fresh"
	if res.FromCache {
		source = fmt.Sprintf("cache (age %s)", res.Age.Round(time.Second))
	}
	PrintRunHeader(out, RunMetadata{
		Title:          "Dividend Harvest",
		RunID:          rs.RunID,
		Provider:       rs.Provider,
		EvaluationDate: rs.EvaluationDate.String(),
		Source:         source,
	})

	path, err := export.NewExporter(a.exports).Export(rs)
	if err != nil {
		return fmt.Errorf("export csv: %w", err)
	}

	if rs.IsEmpty() {
		PrintWarning(out, "No stocks met the criteria")
		PrintSummary(out, rs)
		return errNoStocks
	}

	fmt.Fprintln(out)
	PrintHarvestTable(out, rs.Top(runTop))
	fmt.Fprintln(out)
	PrintSummary(out, rs)
	fmt.Fprintln(out)
	PrintSuccess(out, fmt.Sprintf("Exported %d stocks to %s in %.2fs", rs.Len(), path, time.Since(start).Seconds()))

	return nil
}
