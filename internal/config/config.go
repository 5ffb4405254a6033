package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all configuration for the chat relay
type Config struct {
	// Server configuration
	HTTPPort    int    `env:"CHATRELAY_HTTP_PORT" envDefault:"5000"`
	GRPCPort    int    `env:"CHATRELAY_GRPC_PORT" envDefault:"9090"`
	GRPCEnabled bool   `env:"CHATRELAY_GRPC_ENABLED" envDefault:"true"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// Browser origins allowed to open sockets; "*" allows any
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000,http://localhost:4000"`

	// Upstream AI webhook configuration
	AI AIConfig

	// Direct LLM configuration, used by anthropic:// mode endpoints
	LLM LLMConfig

	// Per-connection session limits
	Session SessionConfig

	// Worker configuration
	Workers WorkerConfig

	// Lifecycle event bus
	Events EventsConfig

	// Redis configuration
	Redis RedisConfig

	// Timeouts
	Timeouts TimeoutConfig
}

// AIConfig holds upstream AI webhook configuration
type AIConfig struct {
	WebhookBaseURL string `env:"AI_WEBHOOK_BASE_URL" envDefault:"http://localhost:5678/webhook"`
	WebhookToken   string `env:"AI_WEBHOOK_TOKEN"`

	Modes       []string `env:"AI_MODES" envSeparator:"," envDefault:"test-chat"`
	DefaultMode string   `env:"AI_DEFAULT_MODE" envDefault:"test-chat"`
	// Explicit mode=url pairs, overriding WebhookBaseURL/<mode>
	ModeEndpoints map[string]string `env:"AI_MODE_ENDPOINTS" envSeparator:"," envKeyValSeparator:"="`

	RequestTimeout       time.Duration `env:"AI_REQUEST_TIMEOUT" envDefault:"120s"`
	MaxRetries           int           `env:"AI_MAX_RETRIES" envDefault:"2"`
	RetryInitialInterval time.Duration `env:"AI_RETRY_INITIAL_INTERVAL" envDefault:"500ms"`
	MaxReplyBytes        int           `env:"AI_MAX_REPLY_BYTES" envDefault:"1048576"`
}

// LLMConfig holds direct LLM provider configuration
type LLMConfig struct {
	APIKey string `env:"LLM_API_KEY"`

	// Default model settings
	DefaultModel       string  `env:"LLM_DEFAULT_MODEL" envDefault:"claude-3-5-sonnet-20241022"`
	DefaultTemperature float64 `env:"LLM_DEFAULT_TEMPERATURE" envDefault:"0.7"`
	DefaultMaxTokens   int     `env:"LLM_DEFAULT_MAX_TOKENS" envDefault:"4096"`
}

// SessionConfig holds per-connection limits
type SessionConfig struct {
	MaxMessageBytes int64   `env:"SESSION_MAX_MESSAGE_BYTES" envDefault:"65536"`
	MaxContentChars int     `env:"SESSION_MAX_CONTENT_CHARS" envDefault:"8000"`
	MaxPending      int     `env:"SESSION_MAX_PENDING" envDefault:"4"`
	RateLimit       float64 `env:"SESSION_RATE_LIMIT" envDefault:"1"`
	RateBurst       int     `env:"SESSION_RATE_BURST" envDefault:"5"`
}

// WorkerConfig holds worker pool configuration
type WorkerConfig struct {
	PoolSize            int           `env:"WORKER_POOL_SIZE" envDefault:"8"`
	QueueSize           int           `env:"WORKER_QUEUE_SIZE" envDefault:"64"`
	HealthCheckInterval time.Duration `env:"WORKER_HEALTH_CHECK_INTERVAL" envDefault:"30s"`
}

// EventsConfig selects the lifecycle event bus backend
type EventsConfig struct {
	Backend      string `env:"EVENTS_BACKEND" envDefault:"memory"`
	StreamMaxLen int64  `env:"EVENTS_STREAM_MAX_LEN" envDefault:"10000"`
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASS"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`

	// Connection pool settings
	PoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	MaxRetries   int           `env:"REDIS_MAX_RETRIES" envDefault:"3"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`
}

// TimeoutConfig holds various timeout configurations
type TimeoutConfig struct {
	ShutdownTimeout time.Duration `env:"TIMEOUT_SHUTDOWN" envDefault:"30s"`
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// normalize trims list entries so "a, b" and "a,b" load the same
func (c *Config) normalize() {
	c.AllowedOrigins = trimAll(c.AllowedOrigins)
	c.AI.Modes = trimAll(c.AI.Modes)
	c.AI.DefaultMode = strings.TrimSpace(c.AI.DefaultMode)
	c.AI.WebhookBaseURL = strings.TrimRight(strings.TrimSpace(c.AI.WebhookBaseURL), "/")

	if len(c.AI.ModeEndpoints) > 0 {
		endpoints := make(map[string]string, len(c.AI.ModeEndpoints))
		for mode, endpoint := range c.AI.ModeEndpoints {
			endpoints[strings.TrimSpace(mode)] = strings.TrimSpace(endpoint)
		}
		c.AI.ModeEndpoints = endpoints
	}

	// Modes with an explicit endpoint are always available
	for mode := range c.AI.ModeEndpoints {
		if !contains(c.AI.Modes, mode) {
			c.AI.Modes = append(c.AI.Modes, mode)
		}
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server ports
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.GRPCEnabled && (c.GRPCPort < 1 || c.GRPCPort > 65535) {
		return fmt.Errorf("invalid gRPC port: %d", c.GRPCPort)
	}

	// Validate AI config
	if len(c.AI.Modes) == 0 {
		return fmt.Errorf("at least one AI mode is required")
	}
	if !contains(c.AI.Modes, c.AI.DefaultMode) {
		return fmt.Errorf("default AI mode %q is not one of the configured modes %v", c.AI.DefaultMode, c.AI.Modes)
	}
	for _, mode := range c.AI.Modes {
		endpoint := c.ModeEndpoint(mode)
		if err := validateEndpoint(endpoint); err != nil {
			return fmt.Errorf("invalid endpoint for mode %q: %w", mode, err)
		}
		if strings.HasPrefix(endpoint, "anthropic://") && c.LLM.APIKey == "" {
			return fmt.Errorf("LLM API key is required for mode %q", mode)
		}
	}
	if c.AI.RequestTimeout <= 0 {
		return fmt.Errorf("AI request timeout must be positive")
	}
	if c.AI.MaxRetries < 0 {
		return fmt.Errorf("AI max retries cannot be negative")
	}
	if c.AI.MaxReplyBytes < 1 {
		return fmt.Errorf("AI max reply bytes must be at least 1")
	}

	// Validate session limits
	if c.Session.MaxContentChars < 1 {
		return fmt.Errorf("session max content chars must be at least 1")
	}
	if c.Session.MaxPending < 1 {
		return fmt.Errorf("session max pending must be at least 1")
	}
	if c.Session.RateLimit <= 0 || c.Session.RateBurst < 1 {
		return fmt.Errorf("session rate limit and burst must be positive")
	}

	// Validate worker config
	if c.Workers.PoolSize < 1 {
		return fmt.Errorf("worker pool size must be at least 1")
	}
	if c.Workers.QueueSize < 1 {
		return fmt.Errorf("worker queue size must be at least 1")
	}

	// Validate events backend
	switch c.Events.Backend {
	case "memory":
	case "redis":
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis address is required for the redis events backend")
		}
	default:
		return fmt.Errorf("unsupported events backend: %s (must be memory or redis)", c.Events.Backend)
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	return nil
}

// ModeEndpoint returns the upstream endpoint serving a mode
func (c *Config) ModeEndpoint(mode string) string {
	if endpoint, ok := c.AI.ModeEndpoints[mode]; ok {
		return endpoint
	}
	return c.AI.WebhookBaseURL + "/" + url.PathEscape(mode)
}

// GetHTTPAddr returns the HTTP server address
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// GetGRPCAddr returns the gRPC server address
func (c *Config) GetGRPCAddr() string {
	return fmt.Sprintf(":%d", c.GRPCPort)
}

func validateEndpoint(endpoint string) error {
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return err
	}
	switch parsed.Scheme {
	case "http", "https":
		if parsed.Host == "" {
			return fmt.Errorf("missing host in %q", endpoint)
		}
	case "anthropic":
	default:
		return fmt.Errorf("unsupported scheme %q", parsed.Scheme)
	}
	return nil
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
