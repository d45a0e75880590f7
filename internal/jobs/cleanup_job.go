package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// CleanupJobName is the name of the notification cleanup job
const CleanupJobName = "notification_cleanup"

// NotificationCleaner deletes old notifications.
type NotificationCleaner interface {
	// Cleanup deletes notifications older than the retention window and
	// returns the number deleted.
	Cleanup(ctx context.Context, retention time.Duration) (int64, error)
}

// CleanupJob prunes notifications past the retention window.
type CleanupJob struct {
	cleaner   NotificationCleaner
	retention time.Duration
	logger    *zap.Logger
}

// NewCleanupJob creates a new notification cleanup job.
func NewCleanupJob(cleaner NotificationCleaner, retention time.Duration, logger *zap.Logger) *CleanupJob {
	return &CleanupJob{
		cleaner:   cleaner,
		retention: retention,
		logger:    logger,
	}
}

// Run executes one cleanup pass. Called by the scheduler.
func (j *CleanupJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	deleted, err := j.cleaner.Cleanup(ctx, j.retention)
	if err != nil {
		j.logger.Error("notification cleanup failed", zap.Error(err))
		return
	}

	j.logger.Info("notification cleanup completed",
		zap.Int64("deleted", deleted),
		zap.Duration("retention", j.retention))
}

// RegisterCleanupJob registers the cleanup job with the scheduler.
func RegisterCleanupJob(scheduler *Scheduler, cleaner NotificationCleaner, retention time.Duration, logger *zap.Logger, cronExpr string) error {
	job := NewCleanupJob(cleaner, retention, logger)
	return scheduler.AddJob(CleanupJobName, cronExpr, job.Run)
}
