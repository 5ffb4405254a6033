package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aescanero/chatrelay/pkg/adapters/llm/anthropic"
	"github.com/aescanero/chatrelay/pkg/adapters/llm/webhook"
	"github.com/aescanero/chatrelay/pkg/domain"
	"github.com/aescanero/chatrelay/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewClientByScheme(t *testing.T) {
	client, err := NewClient(&Config{Mode: "test-chat", Endpoint: "http://localhost:5678/webhook/test-chat", Logger: zap.NewNop()})
	require.NoError(t, err)
	assert.IsType(t, &webhook.Client{}, client)
	assert.Equal(t, "webhook:test-chat", client.Name())

	client, err = NewClient(&Config{Mode: "claude", Endpoint: "anthropic://claude-3-5-haiku-latest", APIKey: "key"})
	require.NoError(t, err)
	assert.IsType(t, &anthropic.Client{}, client)
	assert.Equal(t, "anthropic:claude-3-5-haiku-latest", client.Name())

	client, err = NewClient(&Config{Mode: "claude", Endpoint: "anthropic://", APIKey: "key", Model: "claude-default"})
	require.NoError(t, err)
	assert.Equal(t, "anthropic:claude-default", client.Name())

	_, err = NewClient(&Config{Mode: "bad", Endpoint: "ftp://example.com"})
	assert.Error(t, err)
}

func TestRouterDispatchesByMode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(r.URL.Path))
	}))
	defer server.Close()

	router, err := NewRouter([]*Config{
		{Mode: "alpha", Endpoint: server.URL + "/alpha"},
		{Mode: "beta", Endpoint: server.URL + "/beta"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta"}, router.Modes())

	resp, err := router.Send(context.Background(), &ports.AIRequest{RequestID: "r1", Mode: "beta", Content: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "/beta", string(resp.Body))

	_, err = router.Send(context.Background(), &ports.AIRequest{RequestID: "r2", Mode: "gamma", Content: "hi"})
	code, _ := domain.CodeOf(err)
	assert.Equal(t, domain.CodeUnknownMode, code)
}

func TestNewRouterFailsOnBadMode(t *testing.T) {
	_, err := NewRouter([]*Config{{Mode: "claude", Endpoint: "anthropic://model"}})
	assert.Error(t, err)
}
