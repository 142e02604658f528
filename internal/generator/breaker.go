package generator

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ashureev/goalmap/internal/domain"
	"github.com/sony/gobreaker"
)

// BreakerConfig holds configuration for the generator circuit breaker.
type BreakerConfig struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultBreakerConfig returns the default breaker settings.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:             "step-generator",
		MaxRequests:      1,
		Interval:         60 * time.Second,
		Timeout:          30 * time.Second,
		FailureThreshold: 0.6,
		MinRequests:      5,
	}
}

// Breaker stops calling a failing backend for a cool-down period. While open
// every call fails fast with ErrUnavailable.
type Breaker struct {
	next Generator
	cb   *gobreaker.CircuitBreaker
}

var _ Generator = (*Breaker)(nil)

// NewBreaker wraps next with a circuit breaker.
func NewBreaker(next Generator, cfg BreakerConfig, logger *slog.Logger) *Breaker {
	if logger == nil {
		logger = slog.Default()
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
		// A caller giving up says nothing about backend health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
	return &Breaker{next: next, cb: cb}
}

// State reports the current breaker state.
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

// GenerateTopLevel forwards to the wrapped generator unless the breaker is open.
func (b *Breaker) GenerateTopLevel(ctx context.Context, topic string) ([]domain.StepDraft, error) {
	return b.execute(func() ([]domain.StepDraft, error) {
		return b.next.GenerateTopLevel(ctx, topic)
	})
}

// GenerateChildren forwards to the wrapped generator unless the breaker is open.
func (b *Breaker) GenerateChildren(ctx context.Context, title, description string) ([]domain.StepDraft, error) {
	return b.execute(func() ([]domain.StepDraft, error) {
		return b.next.GenerateChildren(ctx, title, description)
	})
}

func (b *Breaker) execute(call func() ([]domain.StepDraft, error)) ([]domain.StepDraft, error) {
	out, err := b.cb.Execute(func() (any, error) {
		drafts, err := call()
		if err == nil && len(drafts) == 0 {
			return nil, domain.ErrEmptyGeneration
		}
		return drafts, err
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, errors.Join(ErrUnavailable, err)
	}
	if errors.Is(err, domain.ErrEmptyGeneration) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return out.([]domain.StepDraft), nil
}
