// Package generator produces step descriptors for roadmaps. Backends talk to
// an OpenAI-compatible chat endpoint or to a gRPC step service; wrappers add
// circuit breaking and a journal of every generation call.
package generator

import (
	"context"
	"errors"

	"github.com/ashureev/goalmap/internal/domain"
)

// Mode identifies which kind of generation was requested.
type Mode string

const (
	// ModeTopLevel generates the first level of a new roadmap from a goal.
	ModeTopLevel Mode = "top_level"
	// ModeChildren generates sub-steps for an existing step.
	ModeChildren Mode = "children"
)

var (
	// ErrDisabled is returned by every call when no backend is configured.
	ErrDisabled = errors.New("step generator is not configured")

	// ErrUnavailable is returned while the circuit breaker rejects calls.
	ErrUnavailable = errors.New("step generator temporarily unavailable")
)

// Generator produces ordered step descriptors. Implementations may return an
// empty slice; callers treat that as a failed generation.
type Generator interface {
	GenerateTopLevel(ctx context.Context, topic string) ([]domain.StepDraft, error)
	GenerateChildren(ctx context.Context, title, description string) ([]domain.StepDraft, error)
}

// Disabled is the generator used when no credentials or address are configured.
type Disabled struct{}

var _ Generator = Disabled{}

// GenerateTopLevel always fails with ErrDisabled.
func (Disabled) GenerateTopLevel(context.Context, string) ([]domain.StepDraft, error) {
	return nil, ErrDisabled
}

// GenerateChildren always fails with ErrDisabled.
func (Disabled) GenerateChildren(context.Context, string, string) ([]domain.StepDraft, error) {
	return nil, ErrDisabled
}

// Func adapts a pair of functions to the Generator interface.
type Func struct {
	TopLevel func(ctx context.Context, topic string) ([]domain.StepDraft, error)
	Children func(ctx context.Context, title, description string) ([]domain.StepDraft, error)
}

var _ Generator = Func{}

// GenerateTopLevel calls f.TopLevel, or returns ErrDisabled when it is nil.
func (f Func) GenerateTopLevel(ctx context.Context, topic string) ([]domain.StepDraft, error) {
	if f.TopLevel == nil {
		return nil, ErrDisabled
	}
	return f.TopLevel(ctx, topic)
}

// GenerateChildren calls f.Children, or returns ErrDisabled when it is nil.
func (f Func) GenerateChildren(ctx context.Context, title, description string) ([]domain.StepDraft, error) {
	if f.Children == nil {
		return nil, ErrDisabled
	}
	return f.Children(ctx, title, description)
}
