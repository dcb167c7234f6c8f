package jobs

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/castleryder/dividend-harvest/internal/export"
	"github.com/castleryder/dividend-harvest/pkg/logger"
)

// ExportPruneJob deletes dated CSV exports older than the retention
type ExportPruneJob struct {
	dir       string
	retention time.Duration
	now       func() time.Time
	logger    *logger.Logger
}

// NewExportPruneJob creates a new export prune job
func NewExportPruneJob(dir string, retention time.Duration, log *logger.Logger) *ExportPruneJob {
	return &ExportPruneJob{
		dir:       dir,
		retention: retention,
		now:       time.Now,
		logger:    log,
	}
}

// Name returns the job name
func (j *ExportPruneJob) Name() string {
	return "export_prune"
}

// Schedule returns the cron schedule (daily at 04:00 UTC)
func (j *ExportPruneJob) Schedule() string {
	return "0 0 4 * * *"
}

// Run removes expired exports
func (j *ExportPruneJob) Run(ctx context.Context) error {
	j.logger.Debug("Starting scheduled export prune")

	matches, err := filepath.Glob(filepath.Join(j.dir, export.FilePrefix+"*.csv"))
	if err != nil {
		return err
	}

	cutoff := j.now().Add(-j.retention)
	removed := 0
	for _, path := range matches {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		info, err := os.Stat(path)
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil {
			j.logger.WithField("path", path).WithError(err).Warn("Failed to remove export")
			continue
		}
		removed++
	}

	if removed > 0 {
		j.logger.WithField("removed", removed).Info("Export prune completed")
	}

	return nil
}
