// Package navcache is the day-scoped on-disk store of fund reference values.
//
// Each calendar date owns one file, nav_cache_YYYYMMDD.json, holding a JSON object
// that maps fund code to {code, referenceValue, asOfDate}. A Day is only ever
// loaded from its own file, so values from another date are never served.
package navcache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/wonny/fundarb/pkg/logger"
)

const (
	filePrefix = "nav_cache_"
	fileSuffix = ".json"
	dateLayout = "20060102"
	isoLayout  = "2006-01-02"
)

// Entry is one cached reference value
type Entry struct {
	Code           string  `json:"code"`
	ReferenceValue float64 `json:"referenceValue"`
	AsOfDate       string  `json:"asOfDate"`
	NavDate        string  `json:"navDate,omitempty"`
}

// Day is the in-memory cache for one calendar date.
// It is not safe for concurrent writers; the enricher's collector is its only writer.
type Day struct {
	date    time.Time
	entries map[string]Entry
}

// NewDay returns an empty cache for date
func NewDay(date time.Time) *Day {
	y, m, d := date.Date()
	return &Day{
		date:    time.Date(y, m, d, 0, 0, 0, 0, date.Location()),
		entries: make(map[string]Entry),
	}
}

// Date returns the calendar date the day is partitioned by
func (d *Day) Date() time.Time { return d.date }

// AsOf returns the ISO form of the day's date
func (d *Day) AsOf() string { return d.date.Format(isoLayout) }

// Get returns the cached entry for code
func (d *Day) Get(code string) (Entry, bool) {
	e, ok := d.entries[code]
	return e, ok
}

// Put stores a reference value for code, stamped with the day's date.
// Non-positive values are ignored: the cache never holds placeholders.
func (d *Day) Put(code string, referenceValue float64, navDate string) {
	if code == "" || referenceValue <= 0 {
		return
	}
	d.entries[code] = Entry{
		Code:           code,
		ReferenceValue: referenceValue,
		AsOfDate:       d.AsOf(),
		NavDate:        navDate,
	}
}

// Codes returns the cached codes in ascending order
func (d *Day) Codes() []string {
	codes := make([]string, 0, len(d.entries))
	for code := range d.entries {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Len returns the number of cached entries
func (d *Day) Len() int { return len(d.entries) }

// Values returns code -> reference value for every entry
func (d *Day) Values() map[string]float64 {
	out := make(map[string]float64, len(d.entries))
	for code, e := range d.entries {
		out[code] = e.ReferenceValue
	}
	return out
}

// Store reads and writes day files under one directory
// ⭐ SSOT: 기준가 캐시 파일 입출력은 이 Store에서만
type Store struct {
	dir    string
	logger *logger.Logger
}

// NewStore creates a store rooted at dir; the directory is created on first save
func NewStore(dir string, log *logger.Logger) *Store {
	return &Store{
		dir:    dir,
		logger: log.WithComponent("navcache"),
	}
}

// Dir returns the cache directory
func (s *Store) Dir() string { return s.dir }

// Path returns the file holding date's cache
func (s *Store) Path(date time.Time) string {
	return filepath.Join(s.dir, filePrefix+date.Format(dateLayout)+fileSuffix)
}

// Load reads the cache for date. A missing file gives an empty day.
// A corrupt file is logged and also gives an empty day; the error is only
// returned for I/O failures other than "not exist".
func (s *Store) Load(date time.Time) (*Day, error) {
	day := NewDay(date)

	entries, err := s.read(date)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return day, nil
		}
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
			s.logger.WithError(err).WithField("path", s.Path(date)).Warn("Corrupt nav cache, starting empty")
			return day, nil
		}
		return day, err
	}

	for code, e := range entries {
		// entries stamped with another date are not served
		if e.AsOfDate != "" && e.AsOfDate != day.AsOf() {
			continue
		}
		if e.Code == "" {
			e.Code = code
		}
		day.Put(e.Code, e.ReferenceValue, e.NavDate)
	}

	s.logger.WithFields(map[string]interface{}{
		"date":    day.AsOf(),
		"entries": day.Len(),
	}).Debug("Loaded nav cache")
	return day, nil
}

// Save merges day into the file on disk for the same date and writes the result
// atomically (temp file + rename). Entries already on disk but absent from day are kept.
func (s *Store) Save(day *Day) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	merged, err := s.read(day.Date())
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.WithError(err).Warn("Existing nav cache unreadable, overwriting")
		}
		merged = make(map[string]Entry)
	}
	for code, e := range merged {
		if e.AsOfDate != day.AsOf() {
			delete(merged, code)
		}
	}
	for code, e := range day.entries {
		merged[code] = e
	}

	data, err := json.MarshalIndent(merged, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal nav cache: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, filePrefix+"*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.Path(day.Date())); err != nil {
		return fmt.Errorf("rename cache file: %w", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"date":    day.AsOf(),
		"entries": len(merged),
	}).Info("Saved nav cache")
	return nil
}

// Prune deletes day files older than keep days before now and returns how many were removed.
// Files that do not follow the naming scheme are left alone.
func (s *Store) Prune(now time.Time, keep int) (int, error) {
	files, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("read cache dir: %w", err)
	}

	y, m, d := now.Date()
	cutoff := time.Date(y, m, d, 0, 0, 0, 0, now.Location()).AddDate(0, 0, -keep)

	removed := 0
	for _, f := range files {
		date, ok := parseFileDate(f.Name(), now.Location())
		if !ok || !date.Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, f.Name())); err != nil {
			s.logger.WithError(err).WithField("file", f.Name()).Warn("Failed to prune nav cache file")
			continue
		}
		removed++
	}

	s.logger.WithFields(map[string]interface{}{
		"removed": removed,
		"keep":    keep,
	}).Info("Pruned nav cache")
	return removed, nil
}

// Dates lists the dates that have a cache file, oldest first
func (s *Store) Dates(loc *time.Location) ([]time.Time, error) {
	files, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read cache dir: %w", err)
	}

	var dates []time.Time
	for _, f := range files {
		if date, ok := parseFileDate(f.Name(), loc); ok {
			dates = append(dates, date)
		}
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates, nil
}

func (s *Store) read(date time.Time) (map[string]Entry, error) {
	data, err := os.ReadFile(s.Path(date))
	if err != nil {
		return nil, err
	}
	entries := make(map[string]Entry)
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func parseFileDate(name string, loc *time.Location) (time.Time, bool) {
	if !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
		return time.Time{}, false
	}
	raw := strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix)
	date, err := time.ParseInLocation(dateLayout, raw, loc)
	if err != nil {
		return time.Time{}, false
	}
	return date, true
}
