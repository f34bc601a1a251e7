package handlers

import (
	"net/http"
	"time"

	"github.com/wonny/fundarb/internal/navcache"
	"github.com/wonny/fundarb/pkg/logger"
)

// CacheReader reads day-scoped NAV caches
type CacheReader interface {
	Load(date time.Time) (*navcache.Day, error)
	Dates(loc *time.Location) ([]time.Time, error)
}

// CacheHandler exposes the NAV cache
type CacheHandler struct {
	store    CacheReader
	location *time.Location
	logger   *logger.Logger
}

// NewCacheHandler creates a new cache handler
func NewCacheHandler(store CacheReader, loc *time.Location, log *logger.Logger) *CacheHandler {
	if loc == nil {
		loc = time.Local
	}
	return &CacheHandler{
		store:    store,
		location: loc,
		logger:   log,
	}
}

// CacheDatesResponse lists the cached days
type CacheDatesResponse struct {
	Dates []string `json:"dates"`
}

// GetDates lists the days with a cache file, oldest first
// GET /api/cache
func (h *CacheHandler) GetDates(w http.ResponseWriter, r *http.Request) {
	dates, err := h.store.Dates(h.location)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list nav cache")
		respondError(w, http.StatusInternalServerError, "Failed to list nav cache")
		return
	}

	resp := CacheDatesResponse{Dates: make([]string, 0, len(dates))}
	for _, d := range dates {
		resp.Dates = append(resp.Dates, d.Format("2006-01-02"))
	}
	respondJSON(w, http.StatusOK, resp)
}

// CacheDayResponse is one day's cache content
type CacheDayResponse struct {
	Date    string             `json:"date"`
	Entries int                `json:"entries"`
	Values  map[string]float64 `json:"values"`
}

// GetDay returns one day's resolved reference values, today by default
// GET /api/cache/day?date=YYYY-MM-DD
func (h *CacheHandler) GetDay(w http.ResponseWriter, r *http.Request) {
	date := time.Now().In(h.location)
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.ParseInLocation("2006-01-02", raw, h.location)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid 'date' format (expected YYYY-MM-DD)")
			return
		}
		date = parsed
	}

	day, err := h.store.Load(date)
	if err != nil {
		h.logger.WithError(err).Error("Failed to load nav cache")
		respondError(w, http.StatusInternalServerError, "Failed to load nav cache")
		return
	}

	respondJSON(w, http.StatusOK, CacheDayResponse{
		Date:    day.AsOf(),
		Entries: day.Len(),
		Values:  day.Values(),
	})
}
