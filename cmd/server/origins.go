package main

import (
	"fmt"
	"net/url"

	"github.com/ashureev/goalmap/internal/config"
)

func urlHost(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Host == "" {
		return "", fmt.Errorf("origin %q has no host", raw)
	}
	return u.Host, nil
}

// websocketOrigins turns the CORS origins into host patterns for the
// websocket origin check.
func websocketOrigins(cfg *config.Config) []string {
	var patterns []string
	for _, origin := range cfg.CORSAllowedOrigins {
		if origin == "*" {
			return []string{"*"}
		}
		if u, err := urlHost(origin); err == nil {
			patterns = append(patterns, u)
		}
	}
	if cfg.FrontendURL != "" {
		if u, err := urlHost(cfg.FrontendURL); err == nil {
			patterns = append(patterns, u)
		}
	}
	return patterns
}
