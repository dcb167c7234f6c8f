package jobs

import (
	"context"
	"fmt"

	"github.com/castleryder/dividend-harvest/internal/harvest"
	"github.com/castleryder/dividend-harvest/pkg/logger"
)

// HarvestRefresher recomputes the result set
type HarvestRefresher interface {
	Refresh(ctx context.Context) (*harvest.Result, error)
}

// HarvestRefreshJob recomputes the dividend harvest ahead of the session
// ⭐ SSOT: the scheduled harvest refresh lives in this job only
type HarvestRefreshJob struct {
	service  HarvestRefresher
	schedule string
	logger   *logger.Logger
}

// NewHarvestRefreshJob creates a new harvest refresh job
func NewHarvestRefreshJob(service HarvestRefresher, schedule string, log *logger.Logger) *HarvestRefreshJob {
	return &HarvestRefreshJob{
		service:  service,
		schedule: schedule,
		logger:   log,
	}
}

// Name returns the job name
func (j *HarvestRefreshJob) Name() string {
	return "harvest_refresh"
}

// Schedule returns the cron schedule (weekdays 06:30 UTC by default)
func (j *HarvestRefreshJob) Schedule() string {
	return j.schedule
}

// Run executes the refresh
func (j *HarvestRefreshJob) Run(ctx context.Context) error {
	j.logger.Info("Starting scheduled harvest refresh")

	res, err := j.service.Refresh(ctx)
	if err != nil {
		return fmt.Errorf("refresh harvest: %w", err)
	}

	j.logger.WithFields(map[string]interface{}{
		"run_id":    res.ResultSet.RunID,
		"scanned":   res.ResultSet.Scanned,
		"qualified": res.ResultSet.Len(),
	}).Info("Harvest refreshed")

	return nil
}
