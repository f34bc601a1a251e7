package handlers

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/wonny/fundarb/internal/scheduler"
	"github.com/wonny/fundarb/pkg/logger"
)

// JobRunner is the scheduler surface the API exposes
type JobRunner interface {
	GetJobStats(ctx context.Context) map[string]scheduler.JobStats
	GetJobHistory(jobName string) ([]scheduler.JobResult, error)
	RunJob(ctx context.Context, jobName string) error
	State() (scheduler.State, string)
}

// SchedulerHandler handles job endpoints
type SchedulerHandler struct {
	scheduler JobRunner
	logger    *logger.Logger
}

// NewSchedulerHandler creates a new scheduler handler
func NewSchedulerHandler(s JobRunner, log *logger.Logger) *SchedulerHandler {
	return &SchedulerHandler{
		scheduler: s,
		logger:    log,
	}
}

// JobsResponse lists job statistics with the loop state
type JobsResponse struct {
	State   scheduler.State               `json:"state"`
	Current string                        `json:"current,omitempty"`
	Jobs    map[string]scheduler.JobStats `json:"jobs"`
}

// GetJobs returns statistics for every job
// GET /api/jobs
func (h *SchedulerHandler) GetJobs(w http.ResponseWriter, r *http.Request) {
	state, current := h.scheduler.State()
	respondJSON(w, http.StatusOK, JobsResponse{
		State:   state,
		Current: current,
		Jobs:    h.scheduler.GetJobStats(r.Context()),
	})
}

// GetHistory returns the run history of one job
// GET /api/jobs/{name}/history
func (h *SchedulerHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	history, err := h.scheduler.GetJobHistory(name)
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, history)
}

// RunJob runs one job immediately, outside of its schedule
// POST /api/jobs/{name}/run
func (h *SchedulerHandler) RunJob(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	if _, err := h.scheduler.GetJobHistory(name); err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}

	h.logger.WithField("job", name).Info("Manual job run triggered")

	if err := h.scheduler.RunJob(r.Context(), name); err != nil {
		respondJSON(w, http.StatusOK, map[string]string{
			"status": "failed",
			"job":    name,
			"error":  err.Error(),
		})
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"status": "success",
		"job":    name,
	})
}
