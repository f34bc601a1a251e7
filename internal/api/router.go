package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/fundarb/internal/api/handlers"
	"github.com/wonny/fundarb/pkg/logger"
)

// Handlers groups the endpoint handlers. Only Opportunity is required.
type Handlers struct {
	Opportunity *handlers.OpportunityHandler
	Stream      *handlers.StreamHandler
	Scheduler   *handlers.SchedulerHandler
	Cache       *handlers.CacheHandler
}

// NewRouter creates and configures the HTTP router
// ⭐ SSOT: 라우팅 설정은 이 함수에서만
func NewRouter(h Handlers, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()

	// Opportunity endpoints
	api.HandleFunc("/opportunities", h.Opportunity.GetLatest).Methods("GET")
	api.HandleFunc("/categories", h.Opportunity.GetCategories).Methods("GET")
	api.HandleFunc("/progress", h.Opportunity.GetProgress).Methods("GET")
	api.HandleFunc("/scan", h.Opportunity.Scan).Methods("POST")

	// Live progress
	if h.Stream != nil {
		r.HandleFunc("/ws/progress", h.Stream.Progress).Methods("GET")
	}

	// Scheduler endpoints
	if h.Scheduler != nil {
		api.HandleFunc("/jobs", h.Scheduler.GetJobs).Methods("GET")
		api.HandleFunc("/jobs/{name}/history", h.Scheduler.GetHistory).Methods("GET")
		api.HandleFunc("/jobs/{name}/run", h.Scheduler.RunJob).Methods("POST")
	}

	// NAV cache endpoints
	if h.Cache != nil {
		api.HandleFunc("/cache", h.Cache.GetDates).Methods("GET")
		api.HandleFunc("/cache/day", h.Cache.GetDay).Methods("GET")
	}

	// Apply middleware
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// healthCheckHandler returns server health status
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"service": "fundarb",
	})
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			next.ServeHTTP(w, r)

			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
