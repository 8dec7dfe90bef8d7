package http

import (
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/go-chi/chi/v5"

	"github.com/archon-research/emissions-api/internal/ports/inbound"
)

// HealthHandler serves the load balancer and orchestrator health checks.
//
// Endpoints:
//   - /health/ready  - 200 when the store answers a ping (readiness)
//   - /health/live   - 200 unless the store has been failing for a while (liveness)
//   - /health        - combined status for monitoring
//
// After SIGTERM the process sets shuttingDown and every health route answers 503,
// so the load balancer drains the task before the server stops.
type HealthHandler struct {
	checker      inbound.HealthChecker
	shuttingDown *atomic.Bool
	logger       *slog.Logger
}

// NewHealthHandler creates the health check handler.
func NewHealthHandler(checker inbound.HealthChecker, shuttingDown *atomic.Bool, logger *slog.Logger) *HealthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if shuttingDown == nil {
		shuttingDown = new(atomic.Bool)
	}
	return &HealthHandler{
		checker:      checker,
		shuttingDown: shuttingDown,
		logger:       logger.With("component", "health"),
	}
}

// RegisterRoutes mounts the health routes on r.
func (hh *HealthHandler) RegisterRoutes(r chi.Router) {
	r.Get("/health/ready", hh.handleReady)
	r.Get("/health/live", hh.handleLive)
	r.Get("/health", hh.handleHealth)
}

func (hh *HealthHandler) handleReady(w http.ResponseWriter, r *http.Request) {
	if hh.shuttingDown.Load() {
		respondJSON(w, hh.logger, http.StatusServiceUnavailable, map[string]string{"status": "shutting_down"})
		return
	}
	if hh.checker.IsReady(r.Context()) {
		respondJSON(w, hh.logger, http.StatusOK, map[string]string{"status": "ready"})
	} else {
		respondJSON(w, hh.logger, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
	}
}

func (hh *HealthHandler) handleLive(w http.ResponseWriter, r *http.Request) {
	if hh.shuttingDown.Load() {
		respondJSON(w, hh.logger, http.StatusServiceUnavailable, map[string]string{"status": "shutting_down"})
		return
	}
	if hh.checker.IsHealthy(r.Context()) {
		respondJSON(w, hh.logger, http.StatusOK, map[string]string{"status": "healthy"})
	} else {
		respondJSON(w, hh.logger, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
	}
}

func (hh *HealthHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if hh.shuttingDown.Load() {
		respondJSON(w, hh.logger, http.StatusServiceUnavailable, map[string]any{
			"status":       "shutting_down",
			"ready":        false,
			"healthy":      false,
			"shuttingDown": true,
		})
		return
	}

	ready, healthy := hh.checker.Status(r.Context())
	status := "ok"
	statusCode := http.StatusOK
	if !ready || !healthy {
		status = "degraded"
		statusCode = http.StatusServiceUnavailable
	}

	respondJSON(w, hh.logger, statusCode, map[string]any{
		"status":       status,
		"ready":        ready,
		"healthy":      healthy,
		"shuttingDown": false,
	})
}
