package jobs

import (
	"context"
	"time"

	"github.com/wonny/fundarb/pkg/logger"
)

// Pruner removes old day-cache files
type Pruner interface {
	Prune(now time.Time, keep int) (int, error)
}

// NavCacheCleanupJob removes NAV cache files older than the retention window
type NavCacheCleanupJob struct {
	store  Pruner
	keep   int
	now    func() time.Time
	logger *logger.Logger
}

// NewNavCacheCleanupJob creates a new cache cleanup job keeping keepDays days
func NewNavCacheCleanupJob(store Pruner, keepDays int, log *logger.Logger) *NavCacheCleanupJob {
	return &NavCacheCleanupJob{
		store:  store,
		keep:   keepDays,
		now:    time.Now,
		logger: log,
	}
}

// Name returns the job name
func (j *NavCacheCleanupJob) Name() string {
	return "nav_cache_cleanup"
}

// Schedule returns the cron schedule (every day at 00:30)
func (j *NavCacheCleanupJob) Schedule() string {
	return "0 30 0 * * *"
}

// Run executes the cache cleanup
func (j *NavCacheCleanupJob) Run(ctx context.Context) error {
	j.logger.Debug("Starting scheduled NAV cache cleanup")

	count, err := j.store.Prune(j.now(), j.keep)
	if err != nil {
		return err
	}

	if count > 0 {
		j.logger.WithField("removed", count).Info("NAV cache cleanup completed")
	}

	return nil
}
