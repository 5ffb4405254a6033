package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/aescanero/chatrelay/pkg/adapters/llm/anthropic"
	"github.com/aescanero/chatrelay/pkg/adapters/llm/webhook"
	"github.com/aescanero/chatrelay/pkg/domain"
	"github.com/aescanero/chatrelay/pkg/ports"
	"go.uber.org/zap"
)

const schemeAnthropic = "anthropic"

// StatusError is returned by webhook clients on non-2xx replies
type StatusError = webhook.StatusError

// Config holds the client configuration of one mode
type Config struct {
	Mode     string
	Endpoint string

	// Webhook settings
	Token           string
	MaxRetries      int
	InitialInterval time.Duration
	MaxBodyBytes    int64
	HTTPClient      *http.Client

	// Anthropic settings
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64

	Logger *zap.Logger
}

// NewClient creates an AI client based on the endpoint scheme
func NewClient(cfg *Config) (ports.AIClient, error) {
	u, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint for mode %s: %w", cfg.Mode, err)
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return webhook.NewClient(webhook.Config{
			Mode:            cfg.Mode,
			Endpoint:        cfg.Endpoint,
			Token:           cfg.Token,
			MaxRetries:      cfg.MaxRetries,
			InitialInterval: cfg.InitialInterval,
			MaxBodyBytes:    cfg.MaxBodyBytes,
			HTTPClient:      cfg.HTTPClient,
		}, cfg.Logger)
	case schemeAnthropic:
		// anthropic://<model>; an empty host falls back to the configured model
		model := u.Host + u.Path
		model = strings.Trim(model, "/")
		if model == "" {
			model = cfg.Model
		}
		return anthropic.NewClient(anthropic.Config{
			Mode:        cfg.Mode,
			APIKey:      cfg.APIKey,
			Model:       model,
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
			MaxRetries:  cfg.MaxRetries,
		}, cfg.Logger)
	default:
		return nil, fmt.Errorf("unsupported endpoint scheme %q for mode %s", u.Scheme, cfg.Mode)
	}
}

// Router dispatches requests to the client of their mode
type Router struct {
	clients map[string]ports.AIClient
}

// NewRouter creates a client for every mode config
func NewRouter(configs []*Config) (*Router, error) {
	clients := make(map[string]ports.AIClient, len(configs))
	for _, cfg := range configs {
		client, err := NewClient(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create client for mode %s: %w", cfg.Mode, err)
		}
		clients[cfg.Mode] = client
	}
	return NewRouterWithClients(clients), nil
}

// NewRouterWithClients creates a router from prebuilt clients
func NewRouterWithClients(clients map[string]ports.AIClient) *Router {
	return &Router{clients: clients}
}

// Name returns the router name
func (r *Router) Name() string {
	return "router"
}

// Modes returns the routed modes in sorted order
func (r *Router) Modes() []string {
	modes := make([]string, 0, len(r.clients))
	for mode := range r.clients {
		modes = append(modes, mode)
	}
	sort.Strings(modes)
	return modes
}

// Client returns the client of a mode
func (r *Router) Client(mode string) (ports.AIClient, bool) {
	client, ok := r.clients[mode]
	return client, ok
}

// Send forwards the request to the client of its mode
func (r *Router) Send(ctx context.Context, req *ports.AIRequest) (*ports.AIResponse, error) {
	client, ok := r.clients[req.Mode]
	if !ok {
		return nil, domain.NewError(domain.CodeUnknownMode, fmt.Sprintf("unknown mode: %s", req.Mode))
	}
	return client.Send(ctx, req)
}
