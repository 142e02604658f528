package main

import (
	"testing"

	"github.com/ashureev/goalmap/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestWebsocketOrigins(t *testing.T) {
	assert.Equal(t, []string{"*"}, websocketOrigins(&config.Config{CORSAllowedOrigins: []string{"https://a.example", "*"}}))

	got := websocketOrigins(&config.Config{
		CORSAllowedOrigins: []string{"https://a.example", "not a url"},
		FrontendURL:        "http://localhost:5173",
	})
	assert.Equal(t, []string{"a.example", "localhost:5173"}, got)
}
