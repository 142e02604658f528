package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// Pinger is a dependency whose reachability is part of the health status.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthChecker is an optional dependency probed by the health endpoint.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	repo      Pinger
	generator HealthChecker
	timeout   time.Duration
}

// NewHealthHandler creates a new health handler. gen may be nil.
func NewHealthHandler(repo Pinger, gen HealthChecker) *HealthHandler {
	return &HealthHandler{repo: repo, generator: gen, timeout: 5 * time.Second}
}

// Health returns the health status of the API and its dependencies. Only the
// database decides the status code; a failing generator degrades the report.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	checks := map[string]string{"api": "ok"}
	status := map[string]interface{}{
		"status": "healthy",
		"checks": checks,
	}
	statusCode := http.StatusOK

	if err := h.repo.Ping(ctx); err != nil {
		slog.Error("Health check failed", "error", err)
		status["status"] = "degraded"
		checks["database"] = "unreachable"
		statusCode = http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
	}

	if h.generator != nil {
		if err := h.generator.Health(ctx); err != nil {
			slog.Warn("Generator health check failed", "error", err)
			status["status"] = "degraded"
			checks["generator"] = "unreachable"
		} else {
			checks["generator"] = "ok"
		}
	}

	JSON(w, statusCode, status)
}

// RegisterHealth registers the health check route.
func (h *HealthHandler) RegisterHealth(r chi.Router) {
	r.Get("/health", h.Health)
}
