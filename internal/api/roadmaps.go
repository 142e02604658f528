package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ashureev/goalmap/internal/identity"
	"github.com/ashureev/goalmap/internal/roadmap"
	"github.com/go-chi/chi/v5"
)

// RoadmapService is the set of roadmap operations served over HTTP.
type RoadmapService interface {
	CreateRoadmap(ctx context.Context, externalUserID, prompt string) (*roadmap.RoadmapView, error)
	ListRoadmaps(ctx context.Context, externalUserID string) ([]roadmap.RoadmapListItem, error)
	GetRoadmap(ctx context.Context, id int64) (*roadmap.RoadmapView, error)
	DecomposeStep(ctx context.Context, stepID int64) ([]*roadmap.StepNode, error)
	ToggleStep(ctx context.Context, stepID int64) (*roadmap.ToggleResult, error)
	DeleteRoadmap(ctx context.Context, id int64) error
	MaxDecomposeDepth() int
}

var _ RoadmapService = (*roadmap.Service)(nil)

// RoadmapHandlerConfig carries the knobs the roadmap routes need.
type RoadmapHandlerConfig struct {
	// GeneratorName is reported by GET /api/config.
	GeneratorName       string
	MaxRequestBodyBytes int64
	// Limiter throttles the generating routes; nil disables throttling.
	Limiter *RateLimiter
}

// RoadmapHandler handles roadmap and step endpoints.
type RoadmapHandler struct {
	svc RoadmapService
	cfg RoadmapHandlerConfig
}

// NewRoadmapHandler creates a new roadmap handler.
func NewRoadmapHandler(svc RoadmapService, cfg RoadmapHandlerConfig) *RoadmapHandler {
	if cfg.MaxRequestBodyBytes <= 0 {
		cfg.MaxRequestBodyBytes = 1 << 20
	}
	return &RoadmapHandler{svc: svc, cfg: cfg}
}

// CreateRoadmapRequest is the body of POST /api/roadmaps.
type CreateRoadmapRequest struct {
	Prompt    string `json:"prompt" validate:"notblank,max=2000"`
	MaxUserID string `json:"maxUserId" validate:"required,userid"`
}

// RegisterRoutes registers roadmap routes.
func (h *RoadmapHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/config", h.GetConfig)

		r.Route("/roadmaps", func(r chi.Router) {
			r.With(h.limit).Post("/", h.CreateRoadmap)
			r.Get("/", h.ListRoadmaps)
			r.Get("/{roadmapID}", h.GetRoadmap)
			r.Delete("/{roadmapID}", h.DeleteRoadmap)
		})

		r.Route("/steps/{stepID}", func(r chi.Router) {
			r.With(h.limit).Post("/decompose", h.DecomposeStep)
			r.Put("/toggle", h.ToggleStep)
		})
	})
}

func (h *RoadmapHandler) limit(next http.Handler) http.Handler {
	if h.cfg.Limiter == nil {
		return next
	}
	return h.cfg.Limiter.Middleware(next)
}

// GetConfig returns the server configuration for the frontend.
func (h *RoadmapHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]interface{}{
		"generator":           h.cfg.GeneratorName,
		"max_decompose_depth": h.svc.MaxDecomposeDepth(),
	})
}

// CreateRoadmap generates and stores a new roadmap.
func (h *RoadmapHandler) CreateRoadmap(w http.ResponseWriter, r *http.Request) {
	var req CreateRoadmapRequest
	if err := decodeJSON(w, r, h.cfg.MaxRequestBodyBytes, &req); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	req.MaxUserID = strings.TrimSpace(req.MaxUserID)
	if req.MaxUserID == "" {
		req.MaxUserID = identity.UserIDFromContext(r.Context())
	}
	if err := validateRequest(&req); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}

	view, err := h.svc.CreateRoadmap(r.Context(), req.MaxUserID, req.Prompt)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	JSON(w, http.StatusCreated, view)
}

// ListRoadmaps returns the caller's roadmaps with progress.
func (h *RoadmapHandler) ListRoadmaps(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusBadRequest, "maxUserId is required")
		return
	}

	items, err := h.svc.ListRoadmaps(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, items)
}

// GetRoadmap returns one roadmap as nested trees.
func (h *RoadmapHandler) GetRoadmap(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "roadmapID")
	if err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}

	view, err := h.svc.GetRoadmap(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, view)
}

// DeleteRoadmap removes a roadmap and all of its steps.
func (h *RoadmapHandler) DeleteRoadmap(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "roadmapID")
	if err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.svc.DeleteRoadmap(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"message": "roadmap deleted",
	})
}

// DecomposeStep generates sub-steps for a step.
func (h *RoadmapHandler) DecomposeStep(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "stepID")
	if err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}

	nodes, err := h.svc.DecomposeStep(r.Context(), id)
	if err != nil {
		slog.Warn("Decompose failed", "step_id", id, "error", err)
		writeServiceError(w, r, err)
		return
	}
	JSON(w, http.StatusCreated, nodes)
}

// ToggleStep flips a step's completion flag.
func (h *RoadmapHandler) ToggleStep(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "stepID")
	if err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.svc.ToggleStep(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, res)
}
