package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/wonny/fundarb/pkg/logger"
)

// DefaultPollInterval is how often the loop checks for due jobs
const DefaultPollInterval = 60 * time.Second

const dateLayout = "2006-01-02"

// State is the loop state
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
)

type entry struct {
	job      Job
	schedule cron.Schedule
}

// Scheduler is a single polling loop that fires each job at most once per
// calendar day: a job is due once today's first cron activation has passed and
// the ledger has no firing recorded for today. Jobs run synchronously on the
// loop, so runs never overlap, and a failed run is not retried.
// ⭐ SSOT: 스케줄 관리는 이 스케줄러에서만
type Scheduler struct {
	parser   cron.Parser
	ledger   Ledger
	logger   *logger.Logger
	poll     time.Duration
	location *time.Location
	now      func() time.Time

	mu      sync.RWMutex
	jobs    map[string]*entry
	history map[string]*JobHistory
	state   State
	current string
}

// Option configures a Scheduler
type Option func(*Scheduler)

// WithPollInterval sets the poll interval
func WithPollInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.poll = d
		}
	}
}

// WithLocation sets the time zone the trigger time and calendar day are read in
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		if loc != nil {
			s.location = loc
		}
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// New creates a new scheduler recording firings in ledger
func New(ledger Ledger, log *logger.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		parser:   cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		ledger:   ledger,
		logger:   log.WithComponent("scheduler"),
		poll:     DefaultPollInterval,
		location: time.Local,
		now:      time.Now,
		jobs:     make(map[string]*entry),
		history:  make(map[string]*JobHistory),
		state:    StateIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddJob adds a job to the scheduler
func (s *Scheduler) AddJob(job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobName := job.Name()

	// Check if job already exists
	if _, exists := s.jobs[jobName]; exists {
		return fmt.Errorf("job %s already exists", jobName)
	}

	schedule, err := s.parser.Parse(job.Schedule())
	if err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", jobName, err)
	}

	s.jobs[jobName] = &entry{job: job, schedule: schedule}
	s.history[jobName] = &JobHistory{}

	s.logger.WithFields(map[string]interface{}{
		"job":      jobName,
		"schedule": job.Schedule(),
	}).Info("Job added to scheduler")

	return nil
}

// Start runs the poll loop until ctx is cancelled. The first check happens
// immediately, so a restart after today's trigger time catches up once.
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.WithFields(map[string]interface{}{
		"poll_interval": s.poll.String(),
		"location":      s.location.String(),
		"jobs":          len(s.GetAllJobs()),
	}).Info("Starting scheduler")

	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	for {
		s.Tick(ctx)

		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Tick performs one check: every due job is claimed and run, in name order.
// It returns the names of the jobs that ran.
func (s *Scheduler) Tick(ctx context.Context) []string {
	now := s.now().In(s.location)
	today := now.Format(dateLayout)

	var ran []string
	for _, e := range s.entries() {
		if ctx.Err() != nil {
			break
		}

		name := e.job.Name()
		if !s.activatedToday(e, now) {
			continue
		}

		fired, err := s.ledger.Fired(ctx, name, today)
		if err != nil {
			s.logger.WithError(err).WithField("job", name).Error("Failed to read fired ledger, skipping")
			continue
		}
		if fired {
			continue
		}

		claimed, err := s.ledger.Claim(ctx, name, today)
		if err != nil {
			s.logger.WithError(err).WithField("job", name).Error("Failed to claim run, skipping")
			continue
		}
		if !claimed {
			s.logger.WithField("job", name).Info("Run already claimed for today, skipping")
			continue
		}

		s.runJob(ctx, e.job, false)
		ran = append(ran, name)
	}
	return ran
}

// activatedToday reports whether the job's first activation of now's calendar
// day is at or before now
func (s *Scheduler) activatedToday(e *entry, now time.Time) bool {
	y, m, d := now.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, now.Location())

	first := e.schedule.Next(midnight.Add(-time.Second))
	if first.IsZero() || first.After(now) {
		return false
	}
	fy, fm, fd := first.Date()
	return fy == y && fm == m && fd == d
}

// NextRun returns the job's next activation after now
func (s *Scheduler) NextRun(jobName string) (time.Time, error) {
	s.mu.RLock()
	e, exists := s.jobs[jobName]
	s.mu.RUnlock()

	if !exists {
		return time.Time{}, fmt.Errorf("job %s not found", jobName)
	}
	return e.schedule.Next(s.now().In(s.location)), nil
}

// RunJob runs a specific job immediately (outside of schedule). The ledger is
// not touched, so a manual run does not suppress today's scheduled one.
func (s *Scheduler) RunJob(ctx context.Context, jobName string) error {
	s.mu.RLock()
	e, exists := s.jobs[jobName]
	s.mu.RUnlock()

	if !exists {
		return fmt.Errorf("job %s not found", jobName)
	}

	return s.runJob(ctx, e.job, true)
}

// runJob executes a job once and records the result
func (s *Scheduler) runJob(ctx context.Context, job Job, manual bool) error {
	jobName := job.Name()
	startTime := s.now()

	s.setState(StateRunning, jobName)
	defer s.setState(StateIdle, "")

	s.logger.WithFields(map[string]interface{}{
		"job":    jobName,
		"manual": manual,
	}).Info("Job started")

	err := job.Run(ctx)

	endTime := s.now()
	duration := endTime.Sub(startTime)

	result := JobResult{
		JobName:   jobName,
		StartTime: startTime,
		EndTime:   endTime,
		Duration:  duration,
		Success:   err == nil,
		Manual:    manual,
	}
	if err != nil {
		result.Error = err.Error()
	}

	// Store result in history
	s.mu.Lock()
	if history, exists := s.history[jobName]; exists {
		history.AddResult(result)
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.WithError(err).WithFields(map[string]interface{}{
			"job":      jobName,
			"duration": duration,
		}).Error("Job failed")
		return err
	}

	s.logger.WithFields(map[string]interface{}{
		"job":      jobName,
		"duration": duration,
	}).Info("Job completed successfully")
	return nil
}

func (s *Scheduler) setState(state State, job string) {
	s.mu.Lock()
	s.state = state
	s.current = job
	s.mu.Unlock()
}

// State returns the loop state and the job running, if any
func (s *Scheduler) State() (State, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state, s.current
}

func (s *Scheduler) entries() []*entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*entry, 0, len(s.jobs))
	for _, e := range s.jobs {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].job.Name() < out[j].job.Name() })
	return out
}

// GetJobHistory returns the history for a specific job
func (s *Scheduler) GetJobHistory(jobName string) ([]JobResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, exists := s.history[jobName]
	if !exists {
		return nil, fmt.Errorf("job %s not found", jobName)
	}

	return history.GetLatestResults(len(history.Results)), nil
}

// GetAllJobs returns all registered job names, sorted
func (s *Scheduler) GetAllJobs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]string, 0, len(s.jobs))
	for jobName := range s.jobs {
		jobs = append(jobs, jobName)
	}
	sort.Strings(jobs)

	return jobs
}

// GetJobStats returns statistics for all jobs
func (s *Scheduler) GetJobStats(ctx context.Context) map[string]JobStats {
	entries := s.entries()
	now := s.now().In(s.location)

	stats := make(map[string]JobStats, len(entries))
	for _, e := range entries {
		jobName := e.job.Name()

		s.mu.RLock()
		history := s.history[jobName]
		latest := history.GetLatestResults(1)
		st := JobStats{
			JobName:      jobName,
			Schedule:     e.job.Schedule(),
			TotalRuns:    len(history.Results),
			FailureCount: history.FailureCount(),
			SuccessRate:  history.GetSuccessRate(),
			NextRun:      e.schedule.Next(now),
		}
		s.mu.RUnlock()

		st.SuccessCount = st.TotalRuns - st.FailureCount
		if len(latest) > 0 {
			last := latest[0]
			st.LastRun = &last.StartTime
			st.LastError = last.Error
		}

		lastFired, err := s.ledger.LastFired(ctx, jobName)
		if err != nil {
			s.logger.WithError(err).WithField("job", jobName).Warn("Failed to read fired ledger")
		}
		st.LastFired = lastFired

		stats[jobName] = st
	}

	return stats
}

// JobStats represents statistics for a job
type JobStats struct {
	JobName      string     `json:"job_name"`
	Schedule     string     `json:"schedule"`
	TotalRuns    int        `json:"total_runs"`
	SuccessCount int        `json:"success_count"`
	FailureCount int        `json:"failure_count"`
	SuccessRate  float64    `json:"success_rate"`
	LastRun      *time.Time `json:"last_run,omitempty"`
	LastError    string     `json:"last_error,omitempty"`
	LastFired    string     `json:"last_fired,omitempty"`
	NextRun      time.Time  `json:"next_run"`
}
