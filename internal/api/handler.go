// Package api provides HTTP handlers for the roadmap API.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/ashureev/goalmap/internal/domain"
	"github.com/ashureev/goalmap/internal/generator"
	"github.com/go-chi/chi/v5"
)

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// decodeJSON reads a size-limited JSON body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, maxBytes int64, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("request body exceeds %d bytes", tooLarge.Limit)
		}
		return errors.New("invalid JSON body")
	}
	return nil
}

// pathID parses a positive integer URL parameter.
func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return id, nil
}

// writeServiceError maps a roadmap service error to an HTTP response.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		inputErr    *domain.InputError
		notFoundErr *domain.NotFoundError
		depthErr    *domain.DepthLimitError
		genErr      *domain.GenerationError
	)

	switch {
	case errors.As(err, &inputErr):
		Error(w, http.StatusBadRequest, inputErr.Error())
	case errors.As(err, &notFoundErr):
		Error(w, http.StatusNotFound, notFoundErr.Error())
	case errors.As(err, &depthErr):
		Error(w, http.StatusUnprocessableEntity, depthErr.Error())
	case errors.As(err, &genErr):
		if errors.Is(err, generator.ErrUnavailable) {
			Error(w, http.StatusServiceUnavailable, "step generator is temporarily unavailable")
			return
		}
		Error(w, http.StatusInternalServerError, "failed to generate steps")
	default:
		slog.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		Error(w, http.StatusInternalServerError, "internal server error")
	}
}
