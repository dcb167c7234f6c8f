package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/tidwall/pretty"

	"github.com/castleryder/dividend-harvest/internal/harvest"
)

// showCmd represents the show command
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the latest harvest without fetching",
	Long: `Prints the persisted result set whatever its age. Nothing is fetched.

Example:
  go run ./cmd/harvest show
  go run ./cmd/harvest show --json`,
	RunE: runShow,
}

var (
	showJSON bool
	showTop  int
)

func init() {
	rootCmd.AddCommand(showCmd)

	showCmd.Flags().BoolVar(&showJSON, "json", false, "print the cached result set as JSON")
	showCmd.Flags().IntVar(&showTop, "top", -1, "number of ranked stocks to print (-1 for all)")
}

func runShow(cmd *cobra.Command, args []string) error {
	a, err := bootstrap(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.service.Latest(cmd.Context())
	if errors.Is(err, harvest.ErrNoSnapshot) {
		PrintInfo(cmd.ErrOrStderr(), "No harvest yet. Run: go run ./cmd/harvest run")
		return err
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if showJSON {
		_, err := out.Write(pretty.Pretty(res.Raw))
		return err
	}

	rs := res.ResultSet
	PrintRunHeader(out, RunMetadata{
		Title:          "Dividend Harvest (cached)",
		RunID:          rs.RunID,
		Provider:       rs.Provider,
		EvaluationDate: rs.EvaluationDate.String(),
		Source:         fmt.Sprintf("age %s", res.Age.Round(time.Second)),
	})
	fmt.Fprintln(out)
	PrintHarvestTable(out, rs.Top(showTop))
	fmt.Fprintln(out)
	PrintSummary(out, rs)
	return nil
}
