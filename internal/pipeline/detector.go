// Package pipeline wires fetch, normalize, enrich and filter into one run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/fundarb/internal/enricher"
	"github.com/wonny/fundarb/internal/external/eastmoney"
	"github.com/wonny/fundarb/internal/external/jisilu"
	"github.com/wonny/fundarb/internal/navcache"
	"github.com/wonny/fundarb/internal/opportunity"
	"github.com/wonny/fundarb/internal/quote"
	"github.com/wonny/fundarb/pkg/logger"
)

// Mode selects which data-source configuration a run uses
type Mode string

const (
	// ModePremiumFeed reads provider-reported premiums (LOF index + QDII lists)
	ModePremiumFeed Mode = "premium-feed"
	// ModeNav joins the exchange spot list with NAVs resolved through the day cache
	ModeNav Mode = "nav"
	// ModeAll runs both configurations
	ModeAll Mode = "all"
)

// ErrBusy is returned when a run is already in progress
var ErrBusy = errors.New("pipeline run already in progress")

// ParseMode validates a mode string
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModePremiumFeed, ModeNav, ModeAll:
		return m, nil
	case "":
		return ModePremiumFeed, nil
	default:
		return "", fmt.Errorf("unknown mode %q (premium-feed, nav, all)", s)
	}
}

func (m Mode) includes(source string) bool {
	switch m {
	case ModeAll:
		return true
	case ModeNav:
		return source == opportunity.SourceNav
	default:
		return source == opportunity.SourceLOF || source == opportunity.SourceQDII
	}
}

// FeedClient is the premium-feed provider
type FeedClient interface {
	Fetch(ctx context.Context, datasetURL, description string) []jisilu.RawRow
}

// SpotClient is the exchange spot list provider
type SpotClient interface {
	SpotList(ctx context.Context) ([]eastmoney.SpotItem, error)
}

// DayStore loads the day-scoped NAV cache
type DayStore interface {
	Load(date time.Time) (*navcache.Day, error)
}

// Enricher resolves missing reference values
type Enricher interface {
	Enrich(ctx context.Context, codes []string, day *navcache.Day) enricher.Result
	Progress() enricher.Progress
}

// Feeds names the premium-feed dataset endpoints
type Feeds struct {
	LOFURL  string
	QDIIURL string
}

// Result is the outcome of one run
type Result struct {
	Mode      Mode                           `json:"mode"`
	Set       quote.OpportunitySet           `json:"opportunities"`
	Summaries map[string]opportunity.Summary `json:"summaries"`
	Scanned   map[string]int                 `json:"scanned"` // quotes considered per source
	Duration  time.Duration                  `json:"duration"`
}

// Detector runs the opportunity-detection pipeline
// ⭐ SSOT: 파이프라인 조립은 이 Detector에서만
type Detector struct {
	feed       FeedClient
	feeds      Feeds
	spot       SpotClient
	store      DayStore
	enricher   Enricher
	categories []opportunity.Category
	high       float64
	logger     *logger.Logger
	loc        *time.Location
	now        func() time.Time

	running atomic.Bool
	mu      sync.RWMutex
	latest  *Result
}

// Deps groups the Detector's collaborators. Spot, Store and Enricher may be nil
// when only the premium-feed configuration is used.
type Deps struct {
	Feed       FeedClient
	Feeds      Feeds
	Spot       SpotClient
	Store      DayStore
	Enricher   Enricher
	Categories []opportunity.Category
	// HighPremium is the summary bucket threshold
	HighPremium float64
	// Location is the zone the cache's calendar day is read in; nil means time.Local
	Location *time.Location
}

// NewDetector creates a Detector
func NewDetector(deps Deps, log *logger.Logger) *Detector {
	loc := deps.Location
	if loc == nil {
		loc = time.Local
	}
	return &Detector{
		feed:       deps.Feed,
		feeds:      deps.Feeds,
		spot:       deps.Spot,
		store:      deps.Store,
		enricher:   deps.Enricher,
		categories: deps.Categories,
		high:       deps.HighPremium,
		logger:     log.WithComponent("pipeline"),
		loc:        loc,
		now:        time.Now,
	}
}

// Categories returns the configured categories
func (d *Detector) Categories() []opportunity.Category {
	return d.categories
}

// Latest returns the result of the last completed run
func (d *Detector) Latest() (Result, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.latest == nil {
		return Result{}, false
	}
	return *d.latest, true
}

// Running reports whether a run is in progress
func (d *Detector) Running() bool {
	return d.running.Load()
}

// Progress returns the enrichment progress of the current or last run
func (d *Detector) Progress() enricher.Progress {
	if d.enricher == nil {
		return enricher.Progress{}
	}
	return d.enricher.Progress()
}

// Run executes one pipeline pass. Data-source failures degrade to empty
// categories; the only errors are ErrBusy and context cancellation.
func (d *Detector) Run(ctx context.Context, mode Mode) (Result, error) {
	if !d.running.CompareAndSwap(false, true) {
		return Result{}, ErrBusy
	}
	defer d.running.Store(false)

	start := d.now()
	runID := uuid.NewString()
	log := d.logger.WithFields(map[string]interface{}{
		"run_id": runID,
		"mode":   string(mode),
	})
	log.Info("Pipeline run started")

	quotesBySource := make(map[string][]quote.FundQuote)
	load := func(source string) []quote.FundQuote {
		if q, ok := quotesBySource[source]; ok {
			return q
		}
		var q []quote.FundQuote
		switch source {
		case opportunity.SourceLOF:
			q = jisilu.Normalize(d.feed.Fetch(ctx, d.feeds.LOFURL, "LOF指数数据"))
		case opportunity.SourceQDII:
			q = jisilu.Normalize(d.feed.Fetch(ctx, d.feeds.QDIIURL, "QDII数据"))
		case opportunity.SourceNav:
			q = d.navQuotes(ctx, log)
		}
		quotesBySource[source] = q
		return q
	}

	result := Result{
		Mode:      mode,
		Set:       quote.OpportunitySet{RunID: runID, GeneratedAt: start},
		Summaries: make(map[string]opportunity.Summary),
		Scanned:   make(map[string]int),
	}

	for _, c := range d.categories {
		if !mode.includes(c.Source) {
			continue
		}
		quotes := load(c.Source)
		result.Scanned[c.Source] = len(quotes)

		matched := c.Apply(quotes)
		result.Set.Add(c.Key, c.Label(), matched)
		result.Summaries[c.Key] = opportunity.Summarize(matched, d.high)
	}

	if err := ctx.Err(); err != nil {
		log.WithError(err).Warn("Pipeline run cancelled")
		return result, err
	}

	result.Duration = d.now().Sub(start)

	d.mu.Lock()
	d.latest = &result
	d.mu.Unlock()

	log.WithFields(map[string]interface{}{
		"opportunities": result.Set.Total(),
		"duration":      result.Duration.String(),
	}).Info("Pipeline run completed")
	return result, nil
}

// navQuotes builds complete quotes from the spot list and resolved NAVs.
// Rows without a positive price or without a resolved NAV are dropped.
func (d *Detector) navQuotes(ctx context.Context, log *logger.Logger) []quote.FundQuote {
	if d.spot == nil || d.store == nil || d.enricher == nil {
		log.Warn("NAV configuration not wired, skipping")
		return []quote.FundQuote{}
	}

	items, err := d.spot.SpotList(ctx)
	if err != nil {
		log.WithError(err).Error("Spot list fetch failed, treating as empty")
		return []quote.FundQuote{}
	}

	spots := make([]eastmoney.SpotQuote, 0, len(items))
	codes := make([]string, 0, len(items))
	for _, s := range eastmoney.NormalizeSpot(items) {
		if s.Price <= 0 {
			continue
		}
		spots = append(spots, s)
		codes = append(codes, s.Code)
	}

	today := d.now().In(d.loc)
	day, err := d.store.Load(today)
	if err != nil {
		log.WithError(err).Warn("Nav cache unreadable, enriching from scratch")
		day = navcache.NewDay(today)
	}

	resolved := d.enricher.Enrich(ctx, codes, day).Resolved

	quotes := make([]quote.FundQuote, 0, len(spots))
	for _, s := range spots {
		nav, ok := resolved[s.Code]
		if !ok {
			continue
		}
		q := quote.New(s.Code, s.Name, s.Price, nav, s.Turnover, "")
		if !q.Complete() {
			continue
		}
		quotes = append(quotes, q)
	}

	log.WithFields(map[string]interface{}{
		"spot":     len(spots),
		"complete": len(quotes),
	}).Info("NAV quotes built")
	return quotes
}
