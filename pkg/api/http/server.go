package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/aescanero/chatrelay/internal/application/relay"
	"github.com/aescanero/chatrelay/internal/application/workers"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server represents the HTTP API server
type Server struct {
	router  *gin.Engine
	server  *http.Server
	manager *relay.Manager
	health  *workers.HealthMonitor
	logger  *zap.Logger
}

// Config holds HTTP server configuration
type Config struct {
	Port           int
	Manager        *relay.Manager
	Health         *workers.HealthMonitor
	AllowedOrigins []string
	// MetricsHandler serves /metrics; defaults to the global Prometheus registry
	MetricsHandler http.Handler
	Logger         *zap.Logger
}

// NewServer creates a new HTTP server
func NewServer(cfg *Config) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(cfg.Logger))
	router.Use(corsMiddleware(cfg.AllowedOrigins))

	s := &Server{
		router:  router,
		manager: cfg.Manager,
		health:  cfg.Health,
		logger:  cfg.Logger,
	}

	metricsHandler := cfg.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	s.setupRoutes(metricsHandler)

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// setupRoutes configures API routes
func (s *Server) setupRoutes(metricsHandler http.Handler) {
	s.router.GET("/", s.handleRoot)

	// Health check
	s.router.GET("/health", s.handleHealth)

	// Metrics
	s.router.GET("/metrics", gin.WrapH(metricsHandler))

	// API v1
	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/modes", s.handleListModes)
		v1.GET("/sessions", s.handleListSessions)
	}
}

// SocketHandler serves the chat socket and the event stream
type SocketHandler interface {
	HandleChat(*gin.Context)
	HandleEventStream(*gin.Context)
}

// SetupWebSocket mounts the socket endpoints
func (s *Server) SetupWebSocket(handler SocketHandler) {
	s.router.GET("/ws", handler.HandleChat)
	s.router.GET("/socket", handler.HandleChat)
	s.router.GET("/api/v1/events/ws", handler.HandleEventStream)
}

// Handler returns the server's HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}

	s.logger.Info("HTTP server shut down complete")
	return nil
}
