package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5000, cfg.HTTPPort)
	assert.Equal(t, ":5000", cfg.GetHTTPAddr())
	assert.Equal(t, []string{"test-chat"}, cfg.AI.Modes)
	assert.Equal(t, "test-chat", cfg.AI.DefaultMode)
	assert.Equal(t, "http://localhost:5678/webhook/test-chat", cfg.ModeEndpoint("test-chat"))
	assert.Equal(t, 120*time.Second, cfg.AI.RequestTimeout)
	assert.Equal(t, []string{"http://localhost:3000", "http://localhost:4000"}, cfg.AllowedOrigins)
	assert.Equal(t, "memory", cfg.Events.Backend)
	assert.Equal(t, 4, cfg.Session.MaxPending)
}

func TestLoadModeEndpoints(t *testing.T) {
	t.Setenv("AI_WEBHOOK_BASE_URL", "https://n8n.internal/webhook/")
	t.Setenv("AI_MODES", "test-chat, diagram")
	t.Setenv("AI_MODE_ENDPOINTS", "docs=http://docs-agent:8000/chat,claude=anthropic://claude-3-5-haiku-latest")
	t.Setenv("LLM_API_KEY", "sk-test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"test-chat", "diagram", "docs", "claude"}, cfg.AI.Modes)
	assert.Equal(t, "https://n8n.internal/webhook/diagram", cfg.ModeEndpoint("diagram"))
	assert.Equal(t, "http://docs-agent:8000/chat", cfg.ModeEndpoint("docs"))
	assert.Equal(t, "anthropic://claude-3-5-haiku-latest", cfg.ModeEndpoint("claude"))
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad port", map[string]string{"CHATRELAY_HTTP_PORT": "70000"}},
		{"unknown default mode", map[string]string{"AI_DEFAULT_MODE": "nope"}},
		{"bad webhook scheme", map[string]string{"AI_WEBHOOK_BASE_URL": "ftp://example.com"}},
		{"anthropic without key", map[string]string{"AI_MODE_ENDPOINTS": "claude=anthropic://claude-3-5-haiku-latest"}},
		{"bad log level", map[string]string{"LOG_LEVEL": "verbose"}},
		{"bad events backend", map[string]string{"EVENTS_BACKEND": "kafka"}},
		{"zero pending", map[string]string{"SESSION_MAX_PENDING": "0"}},
		{"zero workers", map[string]string{"WORKER_POOL_SIZE": "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
		})
	}
}

func TestGRPCPortIgnoredWhenDisabled(t *testing.T) {
	t.Setenv("CHATRELAY_GRPC_ENABLED", "false")
	t.Setenv("CHATRELAY_GRPC_PORT", "0")

	_, err := Load()
	require.NoError(t, err)
}
