package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wonny/fundarb/internal/pipeline"
	"github.com/wonny/fundarb/internal/quote"
	"github.com/wonny/fundarb/internal/scheduler"
	"github.com/wonny/fundarb/pkg/logger"
)

// Scanner runs one detection pass
type Scanner interface {
	Run(ctx context.Context, mode pipeline.Mode) (pipeline.Result, error)
}

// Notifier delivers an opportunity digest
type Notifier interface {
	Notify(ctx context.Context, set quote.OpportunitySet) (bool, error)
}

// DefaultBusyRetry is how often a due scan re-checks a busy detector
const DefaultBusyRetry = 5 * time.Second

// OpportunityScanJob runs the detection pipeline once a day and sends the digest
// ⭐ SSOT: 일일 스캔 + 알림은 이 Job에서만
type OpportunityScanJob struct {
	scanner  Scanner
	notifier Notifier
	mode     pipeline.Mode
	schedule string
	retry    time.Duration
	logger   *logger.Logger
}

// NewOpportunityScanJob creates a scan job firing daily at triggerTime (HH:MM)
func NewOpportunityScanJob(scanner Scanner, notifier Notifier, mode pipeline.Mode, triggerTime string, log *logger.Logger) (*OpportunityScanJob, error) {
	schedule, err := scheduler.DailyAt(triggerTime)
	if err != nil {
		return nil, err
	}
	return &OpportunityScanJob{
		scanner:  scanner,
		notifier: notifier,
		mode:     mode,
		schedule: schedule,
		retry:    DefaultBusyRetry,
		logger:   log,
	}, nil
}

// Name returns the job name
func (j *OpportunityScanJob) Name() string {
	return "opportunity_scan"
}

// Schedule returns the cron schedule
func (j *OpportunityScanJob) Schedule() string {
	return j.schedule
}

// Run executes the scan, then the notification
func (j *OpportunityScanJob) Run(ctx context.Context) error {
	j.logger.WithField("mode", string(j.mode)).Info("Starting scheduled opportunity scan")

	result, err := j.scan(ctx)
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}

	sent, err := j.notifier.Notify(ctx, result.Set)
	if err != nil {
		return fmt.Errorf("notify: %w", err)
	}

	j.logger.WithFields(map[string]interface{}{
		"run_id":        result.Set.RunID,
		"opportunities": result.Set.Total(),
		"notified":      sent,
	}).Info("Scheduled opportunity scan completed")
	return nil
}

// scan waits out an in-flight run (a manual scan) instead of failing the day's claim
func (j *OpportunityScanJob) scan(ctx context.Context) (pipeline.Result, error) {
	for {
		result, err := j.scanner.Run(ctx, j.mode)
		if !errors.Is(err, pipeline.ErrBusy) {
			return result, err
		}

		j.logger.WithField("retry", j.retry.String()).Info("Detector busy, waiting for the in-flight run")
		select {
		case <-ctx.Done():
			return pipeline.Result{}, errors.Join(err, ctx.Err())
		case <-time.After(j.retry):
		}
	}
}
