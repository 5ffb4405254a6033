package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aescanero/chatrelay/internal/application/relay"
	"github.com/aescanero/chatrelay/internal/application/workers"
	eventsmemory "github.com/aescanero/chatrelay/pkg/adapters/events/memory"
	promadapter "github.com/aescanero/chatrelay/pkg/adapters/metrics/prometheus"
	storagememory "github.com/aescanero/chatrelay/pkg/adapters/storage/memory"
	"github.com/aescanero/chatrelay/pkg/ports"
	"github.com/aescanero/chatrelay/pkg/reply"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type nopClient struct{}

func (nopClient) Send(ctx context.Context, req *ports.AIRequest) (*ports.AIResponse, error) {
	return &ports.AIResponse{Body: []byte("ok"), ContentType: "text/plain", Attempts: 1}, nil
}

func (nopClient) Name() string { return "nop" }

func newTestServer(t *testing.T) (*Server, *relay.Manager, *workers.Pool) {
	t.Helper()
	logger := zap.NewNop()
	registry := prometheus.NewRegistry()
	metrics := promadapter.NewCollector(registry)

	pool := workers.NewPool(2, 4, metrics, logger, time.Hour)
	require.NoError(t, pool.Start())
	t.Cleanup(func() { _ = pool.Shutdown(context.Background()) })

	manager := relay.NewManager(relay.Config{
		Modes:           []string{"test-chat", "research"},
		DefaultMode:     "test-chat",
		MaxContentChars: 100,
		MaxPending:      2,
		RateLimit:       1,
		RateBurst:       5,
		RequestTimeout:  time.Second,
	}, pool, nopClient{}, reply.NewNormalizer(1024, logger), storagememory.NewInMemorySessionStore(),
		eventsmemory.NewInMemoryEventBus(logger), metrics, logger)

	server := NewServer(&Config{
		Port:           0,
		Manager:        manager,
		Health:         pool.Health(),
		AllowedOrigins: []string{"http://localhost:3000"},
		MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		Logger:         logger,
	})
	return server, manager, pool
}

func get(t *testing.T, s *Server, path string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestRoot(t *testing.T) {
	s, _, _ := newTestServer(t)
	rec := get(t, s, "/", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Hello world"}`, rec.Body.String())
}

func TestModes(t *testing.T) {
	s, _, _ := newTestServer(t)
	rec := get(t, s, "/api/v1/modes", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ModesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"test-chat", "research"}, resp.Modes)
	assert.Equal(t, "test-chat", resp.DefaultMode)
}

func TestSessions(t *testing.T) {
	s, manager, _ := newTestServer(t)
	_, err := manager.OpenSession(context.Background(), "10.0.0.1", nil)
	require.NoError(t, err)

	rec := get(t, s, "/api/v1/sessions", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SessionsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
	require.Len(t, resp.Sessions, 1)
	assert.Equal(t, "test-chat", resp.Sessions[0].Mode)
	assert.Equal(t, "10.0.0.1", resp.Sessions[0].RemoteAddr)
}

func TestHealth(t *testing.T) {
	s, _, pool := newTestServer(t)

	rec := get(t, s, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)
	assert.Contains(t, rec.Body.String(), `"worker_pool"`)

	require.NoError(t, pool.Shutdown(context.Background()))
	rec = get(t, s, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetrics(t *testing.T) {
	s, manager, _ := newTestServer(t)
	_, err := manager.OpenSession(context.Background(), "10.0.0.1", nil)
	require.NoError(t, err)

	rec := get(t, s, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "chatrelay_sessions_opened_total 1")
}

func TestCORS(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := get(t, s, "/api/v1/modes", http.Header{"Origin": {"http://localhost:3000"}})
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = get(t, s, "/api/v1/modes", http.Header{"Origin": {"http://evil.example"}})
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/modes", strings.NewReader(""))
	req.Header.Set("Origin", "http://localhost:3000")
	preflight := httptest.NewRecorder()
	s.Handler().ServeHTTP(preflight, req)
	assert.Equal(t, http.StatusNoContent, preflight.Code)
}
