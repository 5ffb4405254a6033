package main

import (
	"testing"

	"github.com/aescanero/chatrelay/internal/config"
	"github.com/aescanero/chatrelay/pkg/adapters/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestModeConfigsBuildRouter(t *testing.T) {
	t.Setenv("AI_MODES", "test-chat,diagram")
	t.Setenv("AI_WEBHOOK_TOKEN", "secret")

	cfg, err := config.Load()
	require.NoError(t, err)

	configs := modeConfigs(cfg, zap.NewNop())
	require.Len(t, configs, 2)
	assert.Equal(t, "test-chat", configs[0].Mode)
	assert.Equal(t, "http://localhost:5678/webhook/test-chat", configs[0].Endpoint)
	assert.Equal(t, "secret", configs[1].Token)
	assert.Equal(t, int64(cfg.AI.MaxReplyBytes)*4, configs[1].MaxBodyBytes)

	router, err := llm.NewRouter(configs)
	require.NoError(t, err)
	assert.Equal(t, []string{"diagram", "test-chat"}, router.Modes())
}

func TestInitLoggerLevels(t *testing.T) {
	assert.True(t, initLogger("debug").Core().Enabled(zap.DebugLevel))
	assert.False(t, initLogger("warn").Core().Enabled(zap.InfoLevel))
	assert.True(t, initLogger("bogus").Core().Enabled(zap.InfoLevel))
}
