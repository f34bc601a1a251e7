package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/wonny/fundarb/internal/enricher"
	"github.com/wonny/fundarb/internal/opportunity"
	"github.com/wonny/fundarb/internal/pipeline"
	"github.com/wonny/fundarb/internal/quote"
	"github.com/wonny/fundarb/pkg/logger"
)

// Detector is the pipeline surface the API exposes
type Detector interface {
	Run(ctx context.Context, mode pipeline.Mode) (pipeline.Result, error)
	Latest() (pipeline.Result, bool)
	Running() bool
	Progress() enricher.Progress
	Categories() []opportunity.Category
}

// Notifier delivers an opportunity digest
type Notifier interface {
	Notify(ctx context.Context, set quote.OpportunitySet) (bool, error)
}

// OpportunityHandler handles scan-related API endpoints
// ⭐ SSOT: 기회 조회/스캔 API 핸들러는 여기서만
type OpportunityHandler struct {
	detector Detector
	notifier Notifier
	logger   *logger.Logger
}

// NewOpportunityHandler creates a new opportunity handler
func NewOpportunityHandler(detector Detector, notifier Notifier, log *logger.Logger) *OpportunityHandler {
	return &OpportunityHandler{
		detector: detector,
		notifier: notifier,
		logger:   log,
	}
}

// GetLatest returns the result of the last completed run
// GET /api/opportunities
func (h *OpportunityHandler) GetLatest(w http.ResponseWriter, r *http.Request) {
	result, ok := h.detector.Latest()
	if !ok {
		respondError(w, http.StatusNotFound, "No scan has completed yet")
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// GetCategories returns the configured categories
// GET /api/categories
func (h *OpportunityHandler) GetCategories(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.detector.Categories())
}

// ProgressResponse reports the state of the current run
type ProgressResponse struct {
	Running    bool              `json:"running"`
	Enrichment enricher.Progress `json:"enrichment"`
}

// GetProgress returns whether a run is in flight and its NAV lookup progress
// GET /api/progress
func (h *OpportunityHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, ProgressResponse{
		Running:    h.detector.Running(),
		Enrichment: h.detector.Progress(),
	})
}

// ScanRequest represents a scan request. An empty body runs the default mode
// without notification.
type ScanRequest struct {
	Mode   string `json:"mode"`   // premium-feed, nav, all
	Notify bool   `json:"notify"` // send the digest when opportunities are found
}

// ScanResponse represents a scan response
type ScanResponse struct {
	Status   string          `json:"status"`
	Notified bool            `json:"notified"`
	Result   pipeline.Result `json:"result"`
}

// Scan runs the pipeline synchronously
// POST /api/scan
func (h *OpportunityHandler) Scan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req ScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if q := r.URL.Query().Get("mode"); q != "" {
		req.Mode = q
	}

	mode, err := pipeline.ParseMode(req.Mode)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.logger.WithFields(map[string]interface{}{
		"mode":   string(mode),
		"notify": req.Notify,
	}).Info("Scan triggered")

	result, err := h.detector.Run(ctx, mode)
	if err != nil {
		if errors.Is(err, pipeline.ErrBusy) {
			respondError(w, http.StatusConflict, "A scan is already running")
			return
		}
		h.logger.WithError(err).Error("Scan failed")
		respondError(w, http.StatusInternalServerError, "Scan failed")
		return
	}

	resp := ScanResponse{Status: "success", Result: result}
	if req.Notify {
		sent, err := h.notifier.Notify(ctx, result.Set)
		if err != nil {
			// the scan itself succeeded; report the delivery failure in status
			resp.Status = "notify_failed"
		}
		resp.Notified = sent
	}

	respondJSON(w, http.StatusOK, resp)
}

// Helper functions

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
