package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/fundarb/pkg/logger"
)

type countingJob struct {
	name     string
	schedule string
	err      error

	mu   sync.Mutex
	runs int
}

func (j *countingJob) Name() string     { return j.name }
func (j *countingJob) Schedule() string { return j.schedule }
func (j *countingJob) Run(ctx context.Context) error {
	j.mu.Lock()
	j.runs++
	j.mu.Unlock()
	return j.err
}
func (j *countingJob) count() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.runs
}

// clock is a settable time source
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

var shanghai = time.FixedZone("CST", 8*3600)

func at(day, hour, minute int) time.Time {
	return time.Date(2024, 1, day, hour, minute, 0, 0, shanghai)
}

func newTestScheduler(t *testing.T, ledger Ledger, c *clock) *Scheduler {
	t.Helper()
	return New(ledger, logger.Nop(), WithClock(c.Now), WithLocation(shanghai), WithPollInterval(10*time.Millisecond))
}

func TestDailyAt(t *testing.T) {
	expr, err := DailyAt("14:00")
	require.NoError(t, err)
	assert.Equal(t, "0 0 14 * * *", expr)

	expr, err = DailyAt("09:05")
	require.NoError(t, err)
	assert.Equal(t, "0 5 9 * * *", expr)

	for _, bad := range []string{"", "24:00", "9:00", "14:60", "14h00"} {
		_, err := DailyAt(bad)
		assert.Error(t, err, bad)
	}
}

func TestAddJob(t *testing.T) {
	s := New(NewMemoryLedger(), logger.Nop())

	require.NoError(t, s.AddJob(&countingJob{name: "scan", schedule: "0 0 14 * * *"}))
	assert.Error(t, s.AddJob(&countingJob{name: "scan", schedule: "0 0 14 * * *"}))
	assert.Error(t, s.AddJob(&countingJob{name: "bad", schedule: "not a cron"}))
	require.NoError(t, s.AddJob(&countingJob{name: "cleanup", schedule: "@daily"}))

	assert.Equal(t, []string{"cleanup", "scan"}, s.GetAllJobs())
}

func TestTick_FiresOncePerDay(t *testing.T) {
	c := &clock{}
	s := newTestScheduler(t, NewMemoryLedger(), c)
	job := &countingJob{name: "scan", schedule: "0 0 14 * * *"}
	require.NoError(t, s.AddJob(job))
	ctx := context.Background()

	c.Set(at(15, 13, 59))
	assert.Empty(t, s.Tick(ctx))

	c.Set(at(15, 14, 0))
	assert.Equal(t, []string{"scan"}, s.Tick(ctx))

	// later polls the same day do nothing
	for _, minute := range []int{1, 2, 30} {
		c.Set(at(15, 14, minute))
		assert.Empty(t, s.Tick(ctx))
	}
	c.Set(at(15, 23, 59))
	assert.Empty(t, s.Tick(ctx))

	// next day before and at the trigger
	c.Set(at(16, 0, 0))
	assert.Empty(t, s.Tick(ctx))
	c.Set(at(16, 14, 1))
	assert.Equal(t, []string{"scan"}, s.Tick(ctx))

	assert.Equal(t, 2, job.count())
}

func TestTick_RestartAfterTrigger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fired.json")
	c := &clock{}
	ctx := context.Background()

	// first process fires at 14:00
	first := newTestScheduler(t, NewFileLedger(path), c)
	job := &countingJob{name: "scan", schedule: "0 0 14 * * *"}
	require.NoError(t, first.AddJob(job))
	c.Set(at(15, 14, 0))
	first.Tick(ctx)
	require.Equal(t, 1, job.count())

	// restarted at 15:30 the same day: already fired, nothing happens
	second := newTestScheduler(t, NewFileLedger(path), c)
	require.NoError(t, second.AddJob(job))
	c.Set(at(15, 15, 30))
	assert.Empty(t, second.Tick(ctx))
	assert.Equal(t, 1, job.count())
}

func TestTick_CatchUpWhenDown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fired.json")
	c := &clock{}

	// process was down at 14:00 and starts at 16:00: fires once
	s := newTestScheduler(t, NewFileLedger(path), c)
	job := &countingJob{name: "scan", schedule: "0 0 14 * * *"}
	require.NoError(t, s.AddJob(job))

	c.Set(at(15, 16, 0))
	assert.Equal(t, []string{"scan"}, s.Tick(context.Background()))
	assert.Empty(t, s.Tick(context.Background()))
	assert.Equal(t, 1, job.count())
}

func TestTick_FailedRunIsNotRetried(t *testing.T) {
	c := &clock{}
	s := newTestScheduler(t, NewMemoryLedger(), c)
	job := &countingJob{name: "scan", schedule: "0 0 14 * * *", err: errors.New("provider down")}
	require.NoError(t, s.AddJob(job))

	c.Set(at(15, 14, 0))
	s.Tick(context.Background())
	c.Set(at(15, 14, 1))
	s.Tick(context.Background())

	assert.Equal(t, 1, job.count())

	history, err := s.GetJobHistory("scan")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.False(t, history[0].Success)
	assert.Equal(t, "provider down", history[0].Error)
}

type rejectingLedger struct{ *MemoryLedger }

func (l *rejectingLedger) Claim(ctx context.Context, job, date string) (bool, error) {
	return false, nil
}

func TestTick_LostClaimSkipsRun(t *testing.T) {
	c := &clock{}
	s := newTestScheduler(t, &rejectingLedger{NewMemoryLedger()}, c)
	job := &countingJob{name: "scan", schedule: "0 0 14 * * *"}
	require.NoError(t, s.AddJob(job))

	c.Set(at(15, 14, 0))
	assert.Empty(t, s.Tick(context.Background()))
	assert.Equal(t, 0, job.count())
}

func TestRunJob_ManualDoesNotTouchLedger(t *testing.T) {
	c := &clock{}
	ledger := NewMemoryLedger()
	s := newTestScheduler(t, ledger, c)
	job := &countingJob{name: "scan", schedule: "0 0 14 * * *"}
	require.NoError(t, s.AddJob(job))

	c.Set(at(15, 10, 0))
	require.NoError(t, s.RunJob(context.Background(), "scan"))
	assert.Error(t, s.RunJob(context.Background(), "missing"))

	last, _ := ledger.LastFired(context.Background(), "scan")
	assert.Empty(t, last)

	// scheduled run still happens
	c.Set(at(15, 14, 0))
	assert.Equal(t, []string{"scan"}, s.Tick(context.Background()))
	assert.Equal(t, 2, job.count())

	history, err := s.GetJobHistory("scan")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.True(t, history[0].Manual)
	assert.False(t, history[1].Manual)
}

func TestGetJobStats(t *testing.T) {
	c := &clock{}
	s := newTestScheduler(t, NewMemoryLedger(), c)
	require.NoError(t, s.AddJob(&countingJob{name: "scan", schedule: "0 0 14 * * *"}))
	require.NoError(t, s.AddJob(&countingJob{name: "cleanup", schedule: "0 30 0 * * *", err: errors.New("boom")}))

	c.Set(at(15, 14, 0))
	s.Tick(context.Background())

	stats := s.GetJobStats(context.Background())
	require.Len(t, stats, 2)

	scan := stats["scan"]
	assert.Equal(t, 1, scan.TotalRuns)
	assert.Equal(t, 1, scan.SuccessCount)
	assert.Equal(t, 1.0, scan.SuccessRate)
	assert.Equal(t, "2024-01-15", scan.LastFired)
	assert.True(t, scan.NextRun.Equal(at(16, 14, 0)))

	cleanup := stats["cleanup"]
	assert.Equal(t, 1, cleanup.FailureCount)
	assert.Equal(t, "boom", cleanup.LastError)

	next, err := s.NextRun("scan")
	require.NoError(t, err)
	assert.True(t, next.Equal(at(16, 14, 0)))
}

func TestStart_StopsOnCancel(t *testing.T) {
	c := &clock{}
	c.Set(at(15, 14, 0))
	s := newTestScheduler(t, NewMemoryLedger(), c)
	job := &countingJob{name: "scan", schedule: "0 0 14 * * *"}
	require.NoError(t, s.AddJob(job))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	require.Eventually(t, func() bool { return job.count() == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}

	assert.Equal(t, 1, job.count())
	state, current := s.State()
	assert.Equal(t, StateIdle, state)
	assert.Empty(t, current)
}

func TestFileLedger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "fired.json")
	ledger := NewFileLedger(path)
	ctx := context.Background()

	fired, err := ledger.Fired(ctx, "scan", "2024-01-15")
	require.NoError(t, err)
	assert.False(t, fired)

	ok, err := ledger.Claim(ctx, "scan", "2024-01-15")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = ledger.Claim(ctx, "scan", "2024-01-15")
	require.NoError(t, err)
	assert.False(t, ok)

	// another job is independent
	ok, err = ledger.Claim(ctx, "cleanup", "2024-01-15")
	require.NoError(t, err)
	assert.True(t, ok)

	// persisted across instances
	reopened := NewFileLedger(path)
	last, err := reopened.LastFired(ctx, "scan")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-15", last)

	ok, err = reopened.Claim(ctx, "scan", "2024-01-16")
	require.NoError(t, err)
	assert.True(t, ok)
}
