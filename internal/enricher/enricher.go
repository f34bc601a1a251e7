// Package enricher resolves fund reference values that today's cache does not hold.
package enricher

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wonny/fundarb/internal/external/eastmoney"
	"github.com/wonny/fundarb/internal/navcache"
	"github.com/wonny/fundarb/pkg/logger"
)

// DefaultWorkers is the size of the lookup pool
const DefaultWorkers = 3

// NavSource looks up the latest published NAV for one fund
type NavSource interface {
	LatestNAV(ctx context.Context, code string, asOf time.Time) (eastmoney.NAV, error)
}

// DayStore persists an enriched day
type DayStore interface {
	Save(day *navcache.Day) error
}

// Outcome is what one lookup produced: a NAV on success, Err on failure
type Outcome struct {
	Code  string
	Value eastmoney.NAV
	Err   error
}

// OK reports whether the lookup succeeded
func (o Outcome) OK() bool { return o.Err == nil }

// Result is the outcome of one Enrich call.
// Resolved holds cache hits and successful lookups only; unresolved codes are absent.
type Result struct {
	Resolved map[string]float64
	Hits     int
	Fetched  int
	Failed   int
	Saved    bool
}

// ProgressFunc is called by the collector after every completed lookup
type ProgressFunc func(done, total int)

// Progress is a snapshot of the lookups in flight
type Progress struct {
	Done    int  `json:"done"`
	Total   int  `json:"total"`
	Running bool `json:"running"`
}

// Enricher runs bounded-parallel NAV lookups
// ⭐ SSOT: 기준가 보강(워커 풀)은 이 패키지에서만
type Enricher struct {
	source   NavSource
	store    DayStore
	workers  int
	logger   *logger.Logger
	progress ProgressFunc

	done    atomic.Int64
	total   atomic.Int64
	running atomic.Bool
}

// Option configures an Enricher
type Option func(*Enricher)

// WithWorkers sets the pool size; values below 1 keep the default
func WithWorkers(n int) Option {
	return func(e *Enricher) {
		if n >= 1 {
			e.workers = n
		}
	}
}

// WithProgress registers a progress callback
func WithProgress(fn ProgressFunc) Option {
	return func(e *Enricher) { e.progress = fn }
}

// New creates an enricher that looks values up in source and persists days to store
func New(source NavSource, store DayStore, log *logger.Logger, opts ...Option) *Enricher {
	e := &Enricher{
		source:  source,
		store:   store,
		workers: DefaultWorkers,
		logger:  log.WithComponent("enricher"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Progress returns the latest progress snapshot; safe to call from any goroutine
func (e *Enricher) Progress() Progress {
	return Progress{
		Done:    int(e.done.Load()),
		Total:   int(e.total.Load()),
		Running: e.running.Load(),
	}
}

// Enrich resolves codes against day, looking up the missing ones with a pool of
// workers. Successes are merged into day; day is saved when at least one lookup
// succeeded. Failures are logged per code and never abort the batch.
func (e *Enricher) Enrich(ctx context.Context, codes []string, day *navcache.Day) Result {
	result := Result{Resolved: make(map[string]float64, len(codes))}

	// 1. Partition into cached / missing
	seen := make(map[string]struct{}, len(codes))
	missing := make([]string, 0, len(codes))
	for _, code := range codes {
		if _, dup := seen[code]; dup || code == "" {
			continue
		}
		seen[code] = struct{}{}

		if entry, ok := day.Get(code); ok {
			result.Resolved[code] = entry.ReferenceValue
			result.Hits++
			continue
		}
		missing = append(missing, code)
	}

	e.logger.WithFields(map[string]interface{}{
		"codes":   len(seen),
		"cached":  result.Hits,
		"missing": len(missing),
		"workers": e.workers,
	}).Info("Starting nav enrichment")

	if len(missing) == 0 {
		return result
	}

	e.done.Store(0)
	e.total.Store(int64(len(missing)))
	e.running.Store(true)
	defer e.running.Store(false)

	// 2. Worker pool
	codeCh := make(chan string, len(missing))
	outcomeCh := make(chan Outcome, len(missing))
	asOf := day.Date()

	var wg sync.WaitGroup
	for i := 0; i < e.workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			e.worker(ctx, workerID, asOf, codeCh, outcomeCh)
		}(i)
	}

	for _, code := range missing {
		codeCh <- code
	}
	close(codeCh)

	go func() {
		wg.Wait()
		close(outcomeCh)
	}()

	// 3. Single collector: sole writer of result and day
	completed := 0
	for outcome := range outcomeCh {
		completed++
		if outcome.OK() {
			result.Resolved[outcome.Code] = outcome.Value.Value
			day.Put(outcome.Code, outcome.Value.Value, outcome.Value.Date)
			result.Fetched++
		} else {
			result.Failed++
		}

		e.done.Store(int64(completed))
		if e.progress != nil {
			e.progress(completed, len(missing))
		}
	}

	// 4. Persist once per batch
	if result.Fetched > 0 && e.store != nil {
		if err := e.store.Save(day); err != nil {
			e.logger.WithError(err).Error("Failed to save nav cache")
		} else {
			result.Saved = true
		}
	}

	e.logger.WithFields(map[string]interface{}{
		"fetched": result.Fetched,
		"failed":  result.Failed,
		"cached":  result.Hits,
		"saved":   result.Saved,
	}).Info("Nav enrichment completed")

	return result
}

func (e *Enricher) worker(ctx context.Context, workerID int, asOf time.Time, codeCh <-chan string, outcomeCh chan<- Outcome) {
	for code := range codeCh {
		select {
		case <-ctx.Done():
			outcomeCh <- Outcome{Code: code, Err: ctx.Err()}
			continue
		default:
		}

		nav, err := e.source.LatestNAV(ctx, code, asOf)
		if err == nil && nav.Value <= 0 {
			err = eastmoney.ErrNoNAV
		}
		if err != nil {
			e.logger.WithError(err).WithFields(map[string]interface{}{
				"worker":    workerID,
				"fund_code": code,
			}).Warn("Nav lookup failed")
			outcomeCh <- Outcome{Code: code, Err: err}
			continue
		}

		e.logger.WithFields(map[string]interface{}{
			"worker":    workerID,
			"fund_code": code,
			"nav":       nav.Value,
			"nav_date":  nav.Date,
		}).Debug("Nav resolved")
		outcomeCh <- Outcome{Code: code, Value: nav}
	}
}
