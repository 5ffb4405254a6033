package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aescanero/chatrelay/pkg/domain"
	"github.com/aescanero/chatrelay/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient(Config{Mode: "claude"}, zap.NewNop())
	assert.Error(t, err)
}

func TestNewClientDefaults(t *testing.T) {
	client, err := NewClient(Config{Mode: "claude", APIKey: "key"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "anthropic:"+defaultModel, client.Name())
	assert.Equal(t, defaultMaxTokens, client.maxTokens)
}

func TestSendReturnsTextBlocks(t *testing.T) {
	var got map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("X-Api-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-test",
			"content": [
				{"type": "text", "text": "first"},
				{"type": "text", "text": "second"}
			],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 3, "output_tokens": 2}
		}`))
	}))
	defer server.Close()

	client, err := NewClient(Config{
		Mode:      "claude",
		APIKey:    "key",
		Model:     "claude-test",
		MaxTokens: 64,
		BaseURL:   server.URL,
	}, zap.NewNop())
	require.NoError(t, err)

	resp, err := client.Send(context.Background(), &ports.AIRequest{
		RequestID: "req-1",
		ChatID:    "chat-1",
		Mode:      "claude",
		Content:   "hello",
		Timestamp: time.Now(),
	})
	require.NoError(t, err)

	assert.Equal(t, "first\n\nsecond", string(resp.Body))
	assert.Equal(t, "text/plain; charset=utf-8", resp.ContentType)
	assert.Equal(t, "claude-test", got["model"])
	assert.EqualValues(t, 64, got["max_tokens"])
}

func TestSendMapsFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"invalid_request_error","message":"bad"}}`))
	}))
	defer server.Close()

	client, err := NewClient(Config{Mode: "claude", APIKey: "key", BaseURL: server.URL}, zap.NewNop())
	require.NoError(t, err)

	_, err = client.Send(context.Background(), &ports.AIRequest{RequestID: "req-1", Content: "hello"})
	require.Error(t, err)

	code, _ := domain.CodeOf(err)
	assert.Equal(t, domain.CodeUpstreamFailed, code)
}
