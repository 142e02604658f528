// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Generator providers.
const (
	ProviderOpenAI = "openai"
	ProviderGRPC   = "grpc"
	ProviderNone   = "none"
)

// Config holds all application configuration.
type Config struct {
	Port                string
	FrontendURL         string
	DBPath              string
	CORSAllowedOrigins  []string
	MaxRequestBodyBytes int64
	MaxDecomposeDepth   int
	RateLimit           RateLimitConfig
	Generator           GeneratorConfig
	GenerationLog       GenerationLogConfig
}

// GeneratorConfig selects and configures the step generator backend.
type GeneratorConfig struct {
	Provider    string
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxRetries  int
	Timeout     time.Duration
	GRPCAddr    string
	// GRPCListen, when set, also serves the configured generator over gRPC.
	GRPCListen string
	Breaker    BreakerConfig
}

// BreakerConfig controls the generator circuit breaker.
type BreakerConfig struct {
	Enabled      bool
	Timeout      time.Duration
	MinRequests  int
	FailureRatio float64
}

// RateLimitConfig bounds generation requests per caller.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// GenerationLogConfig controls the NDJSON generation journal.
type GenerationLogConfig struct {
	Enabled   bool
	Dir       string
	QueueSize int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	queueSize := getEnvInt("GENERATION_LOG_QUEUE_SIZE", 1000)
	if queueSize <= 0 {
		queueSize = 1000
	}

	apiKey := getEnv("LLM_API_KEY", "")
	defaultProvider := ProviderNone
	if apiKey != "" {
		defaultProvider = ProviderOpenAI
	}

	cfg := &Config{
		Port:                getEnv("PORT", "8080"),
		FrontendURL:         getEnv("FRONTEND_URL", ""),
		DBPath:              getEnv("DB_PATH", "./data/roadmaps.db"),
		CORSAllowedOrigins:  splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		MaxRequestBodyBytes: int64(getEnvInt("MAX_REQUEST_BODY_BYTES", 1<<20)),
		MaxDecomposeDepth:   getEnvInt("MAX_DECOMPOSE_DEPTH", 8),
		RateLimit: RateLimitConfig{
			Requests: getEnvInt("RATE_LIMIT_REQUESTS", 10),
			Window:   getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
		Generator: GeneratorConfig{
			Provider:    strings.ToLower(getEnv("GENERATOR_PROVIDER", defaultProvider)),
			BaseURL:     getEnv("LLM_BASE_URL", "https://api.openai.com"),
			APIKey:      apiKey,
			Model:       getEnv("LLM_MODEL", "gpt-4o-mini"),
			Temperature: getEnvFloat("LLM_TEMPERATURE", 0.7),
			MaxRetries:  getEnvInt("LLM_MAX_RETRIES", 2),
			Timeout:     getEnvDuration("GENERATOR_TIMEOUT", 60*time.Second),
			GRPCAddr:    getEnv("GENERATOR_GRPC_ADDR", ""),
			GRPCListen:  getEnv("GENERATOR_GRPC_LISTEN", ""),
			Breaker: BreakerConfig{
				Enabled:      getEnvBool("GENERATOR_BREAKER_ENABLED", true),
				Timeout:      getEnvDuration("GENERATOR_BREAKER_TIMEOUT", 30*time.Second),
				MinRequests:  getEnvInt("GENERATOR_BREAKER_MIN_REQUESTS", 5),
				FailureRatio: getEnvFloat("GENERATOR_BREAKER_FAILURE_RATIO", 0.6),
			},
		},
		GenerationLog: GenerationLogConfig{
			Enabled:   getEnvBool("GENERATION_LOG_ENABLED", true),
			Dir:       getEnv("GENERATION_LOG_DIR", "./data/logs/generations"),
			QueueSize: queueSize,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.MaxDecomposeDepth < 0 {
		return fmt.Errorf("MAX_DECOMPOSE_DEPTH must be >= 0")
	}
	if c.MaxRequestBodyBytes <= 0 {
		return fmt.Errorf("MAX_REQUEST_BODY_BYTES must be > 0")
	}
	if c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW must be > 0")
	}
	if c.Generator.Timeout <= 0 {
		return fmt.Errorf("GENERATOR_TIMEOUT must be > 0")
	}
	switch c.Generator.Provider {
	case ProviderOpenAI:
		if c.Generator.APIKey == "" {
			return fmt.Errorf("LLM_API_KEY is required for provider %q", ProviderOpenAI)
		}
	case ProviderGRPC:
		if c.Generator.GRPCAddr == "" {
			return fmt.Errorf("GENERATOR_GRPC_ADDR is required for provider %q", ProviderGRPC)
		}
	case ProviderNone:
	default:
		return fmt.Errorf("GENERATOR_PROVIDER must be one of openai, grpc, none; got %q", c.Generator.Provider)
	}
	if c.GenerationLog.Enabled && c.GenerationLog.Dir == "" {
		return fmt.Errorf("GENERATION_LOG_DIR cannot be empty")
	}
	if c.GenerationLog.QueueSize <= 0 {
		return fmt.Errorf("GENERATION_LOG_QUEUE_SIZE must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
