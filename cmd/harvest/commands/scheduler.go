package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/castleryder/dividend-harvest/internal/scheduler"
	"github.com/castleryder/dividend-harvest/internal/scheduler/jobs"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Scheduler management",
	Long: `Starts the scheduler or manages its jobs.

Subcommands:
  start   - start the scheduler
  list    - list registered jobs
  run     - run one job now

Example:
  go run ./cmd/harvest scheduler start
  go run ./cmd/harvest scheduler list
  go run ./cmd/harvest scheduler run harvest_refresh`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "Start the scheduler",
		Long: `Starts the scheduler and schedules every registered job.

Registered jobs (UTC):
- harvest_refresh: HARVEST_REFRESH_CRON (weekdays 06:30)
- universe_refresh: HARVEST_UNIVERSE_CRON (Mondays 05:00)
- export_prune: daily 04:00, removes exports older than HARVEST_EXPORT_RETENTION

Stop the scheduler with Ctrl+C.`,
		RunE: runScheduler,
	}

	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "List registered jobs",
		RunE:  listJobs,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "Run one job now",
		Args:  cobra.ExactArgs(1),
		RunE:  runJob,
	}
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerListCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)
}

// newScheduler registers every job against a wired app
func newScheduler(a *app) (*scheduler.Scheduler, error) {
	a.service.AddSink(a.exportSink())

	sched := scheduler.New(a.log)
	for _, job := range []scheduler.Job{
		jobs.NewHarvestRefreshJob(a.service, a.cfg.Schedule.RefreshCron, a.log),
		jobs.NewUniverseRefreshJob(a.service, a.cfg.Schedule.UniverseCron, a.log),
		jobs.NewExportPruneJob(a.exports.Dir(), a.cfg.Cache.ExportRetention, a.log),
	} {
		if err := sched.AddJob(job); err != nil {
			return nil, err
		}
	}
	return sched, nil
}

func runScheduler(cmd *cobra.Command, args []string) error {
	a, err := bootstrap(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := newScheduler(a)
	if err != nil {
		return err
	}

	sched.Start()

	out := cmd.OutOrStdout()
	PrintSuccess(out, "Scheduler started")
	for _, name := range sched.GetAllJobs() {
		PrintKeyValue(out, name, sched.NextRun(name).Format(time.RFC3339), 18)
	}
	fmt.Fprintln(out, "\nPress Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	sched.Stop()
	return nil
}

func listJobs(cmd *cobra.Command, args []string) error {
	a, err := bootstrap(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := newScheduler(a)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	stats := sched.GetJobStats()
	widths := []int{18, 18}
	PrintTableHeader(out, []string{"JOB", "SCHEDULE"}, widths)
	for _, name := range sched.GetAllJobs() {
		PrintTableRow(out, []string{name, stats[name].Schedule}, widths)
	}
	return nil
}

func runJob(cmd *cobra.Command, args []string) error {
	a, err := bootstrap(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := newScheduler(a)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := sched.RunJobSync(ctx, args[0])
	out := cmd.OutOrStdout()
	if err != nil {
		PrintError(out, err.Error())
		return err
	}

	PrintSuccess(out, fmt.Sprintf("Job %s completed in %.2fs (%d attempt(s))", result.JobName, result.Duration.Seconds(), result.Attempts))
	return nil
}
