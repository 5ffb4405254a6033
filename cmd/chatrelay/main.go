package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aescanero/chatrelay/internal/application/relay"
	"github.com/aescanero/chatrelay/internal/application/workers"
	"github.com/aescanero/chatrelay/internal/config"
	eventsmemory "github.com/aescanero/chatrelay/pkg/adapters/events/memory"
	eventsredis "github.com/aescanero/chatrelay/pkg/adapters/events/redis"
	"github.com/aescanero/chatrelay/pkg/adapters/llm"
	"github.com/aescanero/chatrelay/pkg/adapters/metrics/prometheus"
	storagememory "github.com/aescanero/chatrelay/pkg/adapters/storage/memory"
	"github.com/aescanero/chatrelay/pkg/api/grpc"
	"github.com/aescanero/chatrelay/pkg/api/http"
	"github.com/aescanero/chatrelay/pkg/api/websocket"
	"github.com/aescanero/chatrelay/pkg/ports"
	"github.com/aescanero/chatrelay/pkg/reply"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Version is set by build flags
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := initLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("starting chat relay",
		zap.String("version", Version),
		zap.String("build_time", BuildTime))

	// Initialize adapters
	var redisClient *goredis.Client
	var eventBus ports.EventBus
	if cfg.Events.Backend == "redis" {
		redisClient = initRedis(cfg, logger)
		eventBus = eventsredis.NewStreamsEventBus(redisClient, cfg.Events.StreamMaxLen, logger)
	} else {
		eventBus = eventsmemory.NewInMemoryEventBus(logger)
	}

	sessionStore := storagememory.NewInMemorySessionStore()

	router, err := llm.NewRouter(modeConfigs(cfg, logger))
	if err != nil {
		logger.Fatal("failed to create AI clients", zap.Error(err))
	}
	for _, mode := range router.Modes() {
		client, _ := router.Client(mode)
		logger.Info("AI mode configured",
			zap.String("mode", mode),
			zap.String("client", client.Name()))
	}

	metricsCollector := prometheus.NewCollector(nil)
	normalizer := reply.NewNormalizer(cfg.AI.MaxReplyBytes, logger)

	// Initialize application components
	workerPool := workers.NewPool(
		cfg.Workers.PoolSize,
		cfg.Workers.QueueSize,
		metricsCollector,
		logger,
		cfg.Workers.HealthCheckInterval,
	)

	relayMgr := relay.NewManager(
		relay.Config{
			Modes:           cfg.AI.Modes,
			DefaultMode:     cfg.AI.DefaultMode,
			MaxContentChars: cfg.Session.MaxContentChars,
			MaxPending:      cfg.Session.MaxPending,
			RateLimit:       cfg.Session.RateLimit,
			RateBurst:       cfg.Session.RateBurst,
			RequestTimeout:  cfg.AI.RequestTimeout,
		},
		workerPool,
		router,
		normalizer,
		sessionStore,
		eventBus,
		metricsCollector,
		logger,
	)

	// Start worker pool
	if err := workerPool.Start(); err != nil {
		logger.Fatal("failed to start worker pool", zap.Error(err))
	}

	// Initialize API servers
	httpServer := http.NewServer(&http.Config{
		Port:           cfg.HTTPPort,
		Manager:        relayMgr,
		Health:         workerPool.Health(),
		AllowedOrigins: cfg.AllowedOrigins,
		Logger:         logger,
	})

	// Add WebSocket handlers to HTTP server
	wsHandler := websocket.NewHandler(relayMgr, eventBus, websocket.Config{
		AllowedOrigins:  cfg.AllowedOrigins,
		MaxMessageBytes: cfg.Session.MaxMessageBytes,
	}, logger)
	httpServer.SetupWebSocket(wsHandler)

	var grpcServer *grpc.Server
	if cfg.GRPCEnabled {
		grpcServer, err = grpc.NewServer(&grpc.Config{
			Port:    cfg.GRPCPort,
			Checker: workerPool.Health(),
			Logger:  logger,
		})
		if err != nil {
			logger.Fatal("failed to create gRPC server", zap.Error(err))
		}
	}

	// Start servers
	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	if grpcServer != nil {
		go func() {
			if err := grpcServer.Start(); err != nil {
				logger.Fatal("gRPC server failed", zap.Error(err))
			}
		}()
	}

	logger.Info("chat relay started",
		zap.Int("http_port", cfg.HTTPPort),
		zap.Bool("grpc_enabled", cfg.GRPCEnabled),
		zap.Int("grpc_port", cfg.GRPCPort),
		zap.Strings("modes", cfg.AI.Modes),
		zap.String("default_mode", cfg.AI.DefaultMode),
		zap.String("events_backend", cfg.Events.Backend),
		zap.Int("worker_pool_size", cfg.Workers.PoolSize))

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info("received shutdown signal")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeouts.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	if grpcServer != nil {
		if err := grpcServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("gRPC server shutdown error", zap.Error(err))
		}
	}

	// Close sessions first so late replies are dropped instead of delivered
	if err := relayMgr.Shutdown(shutdownCtx); err != nil {
		logger.Error("relay shutdown error", zap.Error(err))
	}

	if err := workerPool.Shutdown(shutdownCtx); err != nil {
		logger.Error("worker pool shutdown error", zap.Error(err))
	}

	if err := eventBus.Close(); err != nil {
		logger.Error("event bus close error", zap.Error(err))
	}

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Error("Redis close error", zap.Error(err))
		}
	}

	logger.Info("chat relay shut down complete")
}

// initRedis connects to Redis, exiting when the server is unreachable
func initRedis(cfg *config.Config, logger *zap.Logger) *goredis.Client {
	redisClient := goredis.NewClient(&goredis.Options{
		Addr:         cfg.Redis.Addr,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		MaxRetries:   cfg.Redis.MaxRetries,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})

	// Test Redis connection
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		logger.Fatal("failed to connect to Redis", zap.Error(err))
	}
	logger.Info("connected to Redis", zap.String("addr", cfg.Redis.Addr))

	return redisClient
}

// modeConfigs builds the AI client configuration of every mode
func modeConfigs(cfg *config.Config, logger *zap.Logger) []*llm.Config {
	configs := make([]*llm.Config, 0, len(cfg.AI.Modes))
	for _, mode := range cfg.AI.Modes {
		configs = append(configs, &llm.Config{
			Mode:            mode,
			Endpoint:        cfg.ModeEndpoint(mode),
			Token:           cfg.AI.WebhookToken,
			MaxRetries:      cfg.AI.MaxRetries,
			InitialInterval: cfg.AI.RetryInitialInterval,
			MaxBodyBytes:    int64(cfg.AI.MaxReplyBytes) * 4,
			APIKey:          cfg.LLM.APIKey,
			Model:           cfg.LLM.DefaultModel,
			MaxTokens:       cfg.LLM.DefaultMaxTokens,
			Temperature:     cfg.LLM.DefaultTemperature,
			Logger:          logger,
		})
	}
	return configs
}

// initLogger initializes the logger based on log level
func initLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(zapLevel)
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := config.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}

	return logger
}
