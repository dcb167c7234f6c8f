package jobs

import (
	"context"
	"fmt"

	"github.com/castleryder/dividend-harvest/internal/contracts"
	"github.com/castleryder/dividend-harvest/pkg/logger"
)

// UniverseRefresher rebuilds the qualified universe
type UniverseRefresher interface {
	RefreshUniverse(ctx context.Context) (*contracts.Universe, error)
}

// UniverseRefreshJob rebuilds the qualified universe weekly
// ⭐ SSOT: the scheduled universe rebuild lives in this job only
type UniverseRefreshJob struct {
	service  UniverseRefresher
	schedule string
	logger   *logger.Logger
}

// NewUniverseRefreshJob creates a new universe job
func NewUniverseRefreshJob(service UniverseRefresher, schedule string, log *logger.Logger) *UniverseRefreshJob {
	return &UniverseRefreshJob{
		service:  service,
		schedule: schedule,
		logger:   log,
	}
}

// Name returns the job name
func (j *UniverseRefreshJob) Name() string {
	return "universe_refresh"
}

// Schedule returns the cron schedule (Mondays 05:00 UTC by default)
func (j *UniverseRefreshJob) Schedule() string {
	return j.schedule
}

// Run executes the universe rebuild
func (j *UniverseRefreshJob) Run(ctx context.Context) error {
	j.logger.Info("Starting scheduled universe refresh")

	universe, err := j.service.RefreshUniverse(ctx)
	if err != nil {
		return fmt.Errorf("refresh universe: %w", err)
	}

	j.logger.WithFields(map[string]interface{}{
		"source":         universe.Source,
		"included_count": universe.Count(),
		"excluded_count": len(universe.Excluded),
	}).Info("Universe refreshed")

	return nil
}
