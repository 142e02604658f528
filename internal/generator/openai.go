package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ashureev/goalmap/internal/domain"
)

// OpenAIConfig configures the chat-completions backend.
type OpenAIConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxRetries  int
	Timeout     time.Duration
	Prompts     *Prompts
	HTTPClient  *http.Client
	Logger      *slog.Logger
}

// OpenAIClient generates steps through an OpenAI-compatible
// /v1/chat/completions endpoint.
type OpenAIClient struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	maxRetries  int
	prompts     *Prompts
	httpClient  *http.Client
	logger      *slog.Logger
}

var _ Generator = (*OpenAIClient)(nil)

// NewOpenAI creates a chat-completions generator.
func NewOpenAI(cfg OpenAIConfig) (*OpenAIClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("openai: api key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.Prompts == nil {
		p, err := DefaultPrompts()
		if err != nil {
			return nil, err
		}
		cfg.Prompts = p
	}
	if cfg.HTTPClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		cfg.HTTPClient = &http.Client{Timeout: timeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &OpenAIClient{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxRetries:  cfg.MaxRetries,
		prompts:     cfg.Prompts,
		httpClient:  cfg.HTTPClient,
		logger:      cfg.Logger,
	}, nil
}

// GenerateTopLevel asks the model for the first level of a roadmap.
func (c *OpenAIClient) GenerateTopLevel(ctx context.Context, topic string) ([]domain.StepDraft, error) {
	return c.generate(ctx, ModeTopLevel, PromptInput{Topic: topic})
}

// GenerateChildren asks the model to break a step into sub-steps.
func (c *OpenAIClient) GenerateChildren(ctx context.Context, title, description string) ([]domain.StepDraft, error) {
	return c.generate(ctx, ModeChildren, PromptInput{Title: title, Description: description})
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

func (c *OpenAIClient) generate(ctx context.Context, mode Mode, in PromptInput) ([]domain.StepDraft, error) {
	msgs, err := c.prompts.For(mode).Messages(in)
	if err != nil {
		return nil, err
	}

	var resp chatResponse
	req := chatRequest{Model: c.model, Messages: msgs, Temperature: c.temperature}
	if err := c.do(ctx, http.MethodPost, "/v1/chat/completions", req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("openai: response has no choices")
	}

	raw := resp.Choices[0].Message.Content
	recordRaw(ctx, raw)
	return ParseSteps(raw)
}

// HTTPError is a non-2xx answer from the model endpoint.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("openai http %d: %s", e.StatusCode, e.Body)
}

func retryable(err error) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == http.StatusTooManyRequests || httpErr.StatusCode >= 500
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

func (c *OpenAIClient) doOnce(ctx context.Context, method, path string, body any) ([]byte, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	_ = resp.Body.Close()
	if readErr != nil {
		return nil, readErr
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return raw, nil
}

func (c *OpenAIClient) do(ctx context.Context, method, path string, body, out any) error {
	backoff := 500 * time.Millisecond

	for attempt := 0; ; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		raw, err := c.doOnce(ctx, method, path, body)
		if err == nil {
			if uErr := json.Unmarshal(raw, out); uErr != nil {
				return fmt.Errorf("openai decode error: %w", uErr)
			}
			return nil
		}

		if !retryable(err) || attempt >= c.maxRetries {
			return err
		}

		c.logger.Warn("Generator request retrying",
			"path", path,
			"attempt", attempt+1,
			"max_retries", c.maxRetries,
			"sleep", backoff.String(),
			"error", err,
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}
