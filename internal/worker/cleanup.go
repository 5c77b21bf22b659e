package worker

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	apperrors "clipforge/internal/pkg/errors"
	"clipforge/internal/pkg/logger"
	"clipforge/internal/ports"
)

const DefaultCleanupSchedule = "@daily"

// CleanupOldJobs deletes completed and failed jobs finished more than
// retentionDays ago.
func CleanupOldJobs(ctx context.Context, jobs ports.JobStore, retentionDays int, now time.Time) (int, error) {
	if retentionDays <= 0 {
		return 0, apperrors.Validationf("retention must be at least one day, got %d", retentionDays)
	}
	cutoff := now.Add(-time.Duration(retentionDays) * 24 * time.Hour)
	return jobs.DeleteFinishedBefore(ctx, cutoff)
}

// NewCleanupScheduler returns a stopped cron that runs CleanupOldJobs on
// schedule. Start and Stop are left to the caller.
func NewCleanupScheduler(jobs ports.JobStore, retentionDays int, schedule string, log *logger.Logger) (*cron.Cron, error) {
	if schedule == "" {
		schedule = DefaultCleanupSchedule
	}
	if log == nil {
		log = logger.NewDefault()
	}
	log = log.WithComponent("cleanup")

	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		n, err := CleanupOldJobs(ctx, jobs, retentionDays, time.Now())
		if err != nil {
			log.Error("job cleanup failed", "error", err.Error())
			return
		}
		log.Info("job cleanup finished", "deleted", n, "retention_days", retentionDays)
	})
	if err != nil {
		return nil, apperrors.WrapWithCode(err, apperrors.CodeValidation, "worker.cleanup", "invalid cleanup schedule").
			WithField("schedule", schedule)
	}
	return c, nil
}
