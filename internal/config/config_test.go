package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("LLM_API_KEY", "")
	t.Setenv("GENERATOR_PROVIDER", "none")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("Port = %q", cfg.Port)
	}
	if cfg.MaxDecomposeDepth != 8 {
		t.Fatalf("MaxDecomposeDepth = %d", cfg.MaxDecomposeDepth)
	}
	if cfg.Generator.Model != "gpt-4o-mini" || cfg.Generator.Temperature != 0.7 {
		t.Fatalf("unexpected generator defaults: %+v", cfg.Generator)
	}
	if cfg.Generator.Timeout != 60*time.Second {
		t.Fatalf("Timeout = %v", cfg.Generator.Timeout)
	}
	if len(cfg.CORSAllowedOrigins) != 1 || cfg.CORSAllowedOrigins[0] != "*" {
		t.Fatalf("CORSAllowedOrigins = %v", cfg.CORSAllowedOrigins)
	}
}

func TestLoadPicksOpenAIWhenKeySet(t *testing.T) {
	t.Setenv("LLM_API_KEY", "sk-test")
	t.Setenv("GENERATOR_PROVIDER", "")
	if err := os.Unsetenv("GENERATOR_PROVIDER"); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Generator.Provider != ProviderOpenAI {
		t.Fatalf("Provider = %q, want openai", cfg.Generator.Provider)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("GENERATOR_PROVIDER", "grpc")
	t.Setenv("GENERATOR_GRPC_ADDR", "localhost:50051")
	t.Setenv("MAX_DECOMPOSE_DEPTH", "0")
	t.Setenv("RATE_LIMIT_WINDOW", "30s")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Generator.Provider != ProviderGRPC {
		t.Fatalf("Provider = %q", cfg.Generator.Provider)
	}
	if cfg.MaxDecomposeDepth != 0 {
		t.Fatalf("MaxDecomposeDepth = %d", cfg.MaxDecomposeDepth)
	}
	if cfg.RateLimit.Window != 30*time.Second {
		t.Fatalf("Window = %v", cfg.RateLimit.Window)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://b.example" {
		t.Fatalf("CORSAllowedOrigins = %v", cfg.CORSAllowedOrigins)
	}
}

func TestValidateRejectsBadProvider(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "openai without key", env: map[string]string{"GENERATOR_PROVIDER": "openai", "LLM_API_KEY": ""}},
		{name: "grpc without addr", env: map[string]string{"GENERATOR_PROVIDER": "grpc", "GENERATOR_GRPC_ADDR": ""}},
		{name: "unknown", env: map[string]string{"GENERATOR_PROVIDER": "gigachat"}},
		{name: "negative depth", env: map[string]string{"GENERATOR_PROVIDER": "none", "MAX_DECOMPOSE_DEPTH": "-1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
