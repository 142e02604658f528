package generator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ashureev/goalmap/internal/config"
)

// Stack is a configured generator with its optional middleware applied.
type Stack struct {
	Generator
	// Name is the provider name reported to clients.
	Name string

	remote *GRPCClient
}

// FromConfig builds the generator selected by cfg.Provider and wraps it with
// the circuit breaker (when enabled) and journal (when non-nil). The journal
// sits outermost so it also records calls the breaker rejects.
func FromConfig(cfg config.GeneratorConfig, journal *Journal, logger *slog.Logger) (*Stack, error) {
	if logger == nil {
		logger = slog.Default()
	}
	st := &Stack{Name: cfg.Provider}

	var gen Generator
	switch cfg.Provider {
	case config.ProviderOpenAI:
		client, err := NewOpenAI(OpenAIConfig{
			BaseURL:     cfg.BaseURL,
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxRetries:  cfg.MaxRetries,
			Timeout:     cfg.Timeout,
			Logger:      logger,
		})
		if err != nil {
			return nil, err
		}
		gen = client
	case config.ProviderGRPC:
		client, err := NewGRPC(DefaultGRPCConfig(cfg.GRPCAddr), logger)
		if err != nil {
			return nil, err
		}
		st.remote = client
		gen = client
	case config.ProviderNone, "":
		st.Name = config.ProviderNone
		gen = Disabled{}
	default:
		return nil, fmt.Errorf("unknown generator provider %q", cfg.Provider)
	}

	if cfg.Breaker.Enabled && st.Name != config.ProviderNone {
		bc := DefaultBreakerConfig()
		if cfg.Breaker.Timeout > 0 {
			bc.Timeout = cfg.Breaker.Timeout
		}
		if cfg.Breaker.MinRequests > 0 {
			bc.MinRequests = uint32(cfg.Breaker.MinRequests)
		}
		if cfg.Breaker.FailureRatio > 0 {
			bc.FailureThreshold = cfg.Breaker.FailureRatio
		}
		gen = NewBreaker(gen, bc, logger)
	}
	if journal != nil {
		gen = WithJournal(gen, journal)
	}

	st.Generator = gen
	return st, nil
}

// Health probes the remote backend. Local backends are always healthy.
func (s *Stack) Health(ctx context.Context) error {
	if s.remote == nil {
		return nil
	}
	return s.remote.Health(ctx)
}

// Close releases the remote connection, if any.
func (s *Stack) Close() {
	if s.remote != nil {
		s.remote.Close()
	}
}
