package anthropic

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/aescanero/chatrelay/pkg/domain"
	"github.com/aescanero/chatrelay/pkg/ports"
	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"
)

const (
	defaultModel     = "claude-3-5-sonnet-20241022"
	defaultMaxTokens = 1024
)

// Config holds Anthropic client configuration
type Config struct {
	Mode        string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	MaxRetries  int
	// BaseURL overrides the API endpoint
	BaseURL string
}

// Client answers user messages through the Anthropic Messages API
type Client struct {
	client      anthropic.Client
	mode        string
	model       string
	maxTokens   int
	temperature float64
	logger      *zap.Logger
}

// NewClient creates a new Anthropic client
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, fmt.Errorf("anthropic client requires an API key")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	opts := []option.RequestOption{
		option.WithAPIKey(key),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Client{
		client:      anthropic.NewClient(opts...),
		mode:        cfg.Mode,
		model:       model,
		maxTokens:   maxTokens,
		temperature: cfg.Temperature,
		logger:      logger,
	}, nil
}

// Name returns the client name
func (c *Client) Name() string {
	return "anthropic:" + c.model
}

// Send asks the model a single-turn question and returns its text as text/plain
func (c *Client) Send(ctx context.Context, req *ports.AIRequest) (*ports.AIResponse, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(c.maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Content)),
		},
	}
	if c.temperature > 0 {
		params.Temperature = anthropic.Float(c.temperature)
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, classify(err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type != "text" {
			continue
		}
		if text.Len() > 0 {
			text.WriteString("\n\n")
		}
		text.WriteString(block.Text)
	}

	c.logger.Debug("anthropic reply received",
		zap.String("mode", c.mode),
		zap.String("request_id", req.RequestID),
		zap.String("model", c.model),
		zap.Int64("output_tokens", msg.Usage.OutputTokens))

	return &ports.AIResponse{
		Body:        []byte(text.String()),
		ContentType: "text/plain; charset=utf-8",
		StatusCode:  http.StatusOK,
		Attempts:    1,
	}, nil
}

func classify(err error) error {
	if coded := domain.ContextError(err); coded != nil {
		return coded
	}
	return domain.WrapError(domain.CodeUpstreamFailed, "AI service request failed",
		fmt.Errorf("anthropic completion failed: %w", err))
}
