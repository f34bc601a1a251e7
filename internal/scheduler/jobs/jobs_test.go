package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/fundarb/internal/navcache"
	"github.com/wonny/fundarb/internal/pipeline"
	"github.com/wonny/fundarb/internal/quote"
	"github.com/wonny/fundarb/internal/scheduler"
	"github.com/wonny/fundarb/pkg/logger"
)

type fakeScanner struct {
	result pipeline.Result
	err    error
	busy   int // runs answered with ErrBusy before err/result
	modes  []pipeline.Mode
}

func (f *fakeScanner) Run(ctx context.Context, mode pipeline.Mode) (pipeline.Result, error) {
	f.modes = append(f.modes, mode)
	if f.busy > 0 {
		f.busy--
		return pipeline.Result{}, pipeline.ErrBusy
	}
	return f.result, f.err
}

type fakeNotifier struct {
	sets []quote.OpportunitySet
	err  error
}

func (f *fakeNotifier) Notify(ctx context.Context, set quote.OpportunitySet) (bool, error) {
	f.sets = append(f.sets, set)
	if f.err != nil {
		return false, f.err
	}
	return !set.Empty(), nil
}

func sampleSet() quote.OpportunitySet {
	set := quote.OpportunitySet{RunID: "run-1"}
	set.Add("qdii_us_eu", "🌍 【QDII欧美】", []quote.FundQuote{
		quote.NewReported("160922", "标普500", 1.85, 0, 0, 12.5, ""),
	})
	return set
}

func TestOpportunityScanJob(t *testing.T) {
	scanner := &fakeScanner{result: pipeline.Result{Set: sampleSet()}}
	notifier := &fakeNotifier{}

	job, err := NewOpportunityScanJob(scanner, notifier, pipeline.ModeAll, "14:00", logger.Nop())
	require.NoError(t, err)

	assert.Equal(t, "opportunity_scan", job.Name())
	assert.Equal(t, "0 0 14 * * *", job.Schedule())

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, []pipeline.Mode{pipeline.ModeAll}, scanner.modes)
	require.Len(t, notifier.sets, 1)
	assert.Equal(t, "run-1", notifier.sets[0].RunID)
}

func TestOpportunityScanJob_InvalidTrigger(t *testing.T) {
	_, err := NewOpportunityScanJob(&fakeScanner{}, &fakeNotifier{}, pipeline.ModeNav, "2pm", logger.Nop())
	assert.Error(t, err)
}

func TestOpportunityScanJob_ScanFailureSkipsNotify(t *testing.T) {
	scanner := &fakeScanner{err: context.DeadlineExceeded}
	notifier := &fakeNotifier{}
	job, err := NewOpportunityScanJob(scanner, notifier, pipeline.ModePremiumFeed, "14:00", logger.Nop())
	require.NoError(t, err)

	err = job.Run(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, notifier.sets)
}

func TestOpportunityScanJob_WaitsForInFlightRun(t *testing.T) {
	scanner := &fakeScanner{result: pipeline.Result{Set: sampleSet()}, busy: 2}
	notifier := &fakeNotifier{}
	job, err := NewOpportunityScanJob(scanner, notifier, pipeline.ModePremiumFeed, "14:00", logger.Nop())
	require.NoError(t, err)
	job.retry = time.Millisecond

	require.NoError(t, job.Run(context.Background()))
	assert.Len(t, scanner.modes, 3)
	require.Len(t, notifier.sets, 1)
	assert.Equal(t, "run-1", notifier.sets[0].RunID)
}

func TestOpportunityScanJob_BusyUntilCancelled(t *testing.T) {
	scanner := &fakeScanner{busy: 1 << 30}
	notifier := &fakeNotifier{}
	job, err := NewOpportunityScanJob(scanner, notifier, pipeline.ModePremiumFeed, "14:00", logger.Nop())
	require.NoError(t, err)
	job.retry = time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err = job.Run(ctx)
	assert.ErrorIs(t, err, pipeline.ErrBusy)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, notifier.sets)
}

func TestOpportunityScanJob_ManualScanAtTriggerKeepsDigest(t *testing.T) {
	scanner := &fakeScanner{result: pipeline.Result{Set: sampleSet()}, busy: 1}
	notifier := &fakeNotifier{}
	job, err := NewOpportunityScanJob(scanner, notifier, pipeline.ModePremiumFeed, "14:00", logger.Nop())
	require.NoError(t, err)
	job.retry = time.Millisecond

	loc := time.FixedZone("CST", 8*3600)
	now := time.Date(2024, 1, 15, 14, 0, 0, 0, loc)
	s := scheduler.New(scheduler.NewMemoryLedger(), logger.Nop(),
		scheduler.WithLocation(loc),
		scheduler.WithClock(func() time.Time { return now }))
	require.NoError(t, s.AddJob(job))

	assert.Equal(t, []string{"opportunity_scan"}, s.Tick(context.Background()))
	require.Len(t, notifier.sets, 1)

	history, err := s.GetJobHistory("opportunity_scan")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.True(t, history[0].Success)
}

func TestOpportunityScanJob_NotifyFailure(t *testing.T) {
	scanner := &fakeScanner{result: pipeline.Result{Set: sampleSet()}}
	notifier := &fakeNotifier{err: errors.New("webhook returned 500")}
	job, err := NewOpportunityScanJob(scanner, notifier, pipeline.ModePremiumFeed, "14:00", logger.Nop())
	require.NoError(t, err)

	err = job.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "webhook returned 500")
}

func TestOpportunityScanJob_FiresOncePerDay(t *testing.T) {
	scanner := &fakeScanner{result: pipeline.Result{Set: sampleSet()}}
	notifier := &fakeNotifier{}
	job, err := NewOpportunityScanJob(scanner, notifier, pipeline.ModePremiumFeed, "14:00", logger.Nop())
	require.NoError(t, err)

	loc := time.FixedZone("CST", 8*3600)
	now := time.Date(2024, 1, 15, 14, 0, 0, 0, loc)
	s := scheduler.New(scheduler.NewMemoryLedger(), logger.Nop(),
		scheduler.WithLocation(loc),
		scheduler.WithClock(func() time.Time { return now }))
	require.NoError(t, s.AddJob(job))

	s.Tick(context.Background())
	now = now.Add(time.Minute)
	s.Tick(context.Background())
	now = now.Add(3 * time.Hour)
	s.Tick(context.Background())

	assert.Len(t, scanner.modes, 1)
	assert.Len(t, notifier.sets, 1)
}

func TestNavCacheCleanupJob(t *testing.T) {
	store := navcache.NewStore(t.TempDir(), logger.Nop())
	for i := 1; i <= 5; i++ {
		day := navcache.NewDay(time.Date(2024, 1, i, 0, 0, 0, 0, time.Local))
		day.Put("161125", 1.0, "")
		require.NoError(t, store.Save(day))
	}

	job := NewNavCacheCleanupJob(store, 1, logger.Nop())
	job.now = func() time.Time { return time.Date(2024, 1, 5, 0, 30, 0, 0, time.Local) }

	assert.Equal(t, "nav_cache_cleanup", job.Name())
	assert.Equal(t, "0 30 0 * * *", job.Schedule())

	require.NoError(t, job.Run(context.Background()))

	dates, err := store.Dates(time.Local)
	require.NoError(t, err)
	require.Len(t, dates, 2)
	assert.Equal(t, 4, dates[0].Day())
	assert.Equal(t, 5, dates[1].Day())
}

type failingPruner struct{}

func (failingPruner) Prune(now time.Time, keep int) (int, error) {
	return 0, errors.New("permission denied")
}

func TestNavCacheCleanupJob_Error(t *testing.T) {
	job := NewNavCacheCleanupJob(failingPruner{}, 7, logger.Nop())
	assert.Error(t, job.Run(context.Background()))
}
