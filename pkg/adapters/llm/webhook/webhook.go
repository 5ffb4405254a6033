package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aescanero/chatrelay/pkg/domain"
	"github.com/aescanero/chatrelay/pkg/ports"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

const (
	actionSendMessage = "sendMessage"

	defaultInitialInterval = 500 * time.Millisecond
	defaultMaxBodyBytes    = 4 << 20
)

// StatusError is returned when the webhook answers with a non-2xx status
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("webhook returned %s", e.Status)
}

// Retryable reports whether the status is worth retrying
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Config holds webhook client configuration
type Config struct {
	Mode            string
	Endpoint        string
	Token           string
	MaxRetries      int
	InitialInterval time.Duration
	MaxBodyBytes    int64
	HTTPClient      *http.Client
}

// Client posts user messages to an AI webhook
type Client struct {
	mode            string
	endpoint        string
	token           string
	maxRetries      int
	initialInterval time.Duration
	maxBodyBytes    int64
	httpClient      *http.Client
	logger          *zap.Logger
}

// payload is the JSON body the webhook receives
type payload struct {
	Action string `json:"action"`
	// SessionID is the chat id: chat-trigger workflows key their conversation
	// memory on it, so new_chat starts a fresh upstream conversation
	SessionID    string `json:"sessionId"`
	ChatID       string `json:"chatId"`
	ConnectionID string `json:"connectionId,omitempty"`
	ChatInput    string `json:"chatInput"`
	Mode         string `json:"mode"`
	RequestID    string `json:"requestId"`
	Timestamp    string `json:"timestamp"`
}

// NewClient creates a new webhook client
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("webhook endpoint is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	initial := cfg.InitialInterval
	if initial <= 0 {
		initial = defaultInitialInterval
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}
	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}

	return &Client{
		mode:            cfg.Mode,
		endpoint:        cfg.Endpoint,
		token:           cfg.Token,
		maxRetries:      retries,
		initialInterval: initial,
		maxBodyBytes:    maxBody,
		httpClient:      httpClient,
		logger:          logger,
	}, nil
}

// Name returns the client name
func (c *Client) Name() string {
	return "webhook:" + c.mode
}

// Send posts the message and returns the raw reply.
// Transport errors, 429 and 5xx are retried with exponential backoff.
func (c *Client) Send(ctx context.Context, req *ports.AIRequest) (*ports.AIResponse, error) {
	body, err := json.Marshal(payload{
		Action:    actionSendMessage,
		SessionID:    req.ChatID,
		ChatID:       req.ChatID,
		ConnectionID: req.SessionID,
		ChatInput:    req.Content,
		Mode:         req.Mode,
		RequestID:    req.RequestID,
		Timestamp:    req.Timestamp.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	var (
		resp     *ports.AIResponse
		attempts int
	)
	operation := func() error {
		attempts++
		r, err := c.post(ctx, req.RequestID, body)
		if err != nil {
			var statusErr *StatusError
			if errors.As(err, &statusErr) && !statusErr.Retryable() {
				return backoff.Permanent(err)
			}
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			c.logger.Warn("webhook attempt failed",
				zap.String("mode", c.mode),
				zap.String("request_id", req.RequestID),
				zap.Int("attempt", attempts),
				zap.Error(err))
			return err
		}
		resp = r
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.initialInterval
	policy.MaxElapsedTime = 0

	err = backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(policy, uint64(c.maxRetries)), ctx))
	if err != nil {
		return nil, classify(err, attempts)
	}

	resp.Attempts = attempts
	return resp, nil
}

func (c *Client) post(ctx context.Context, requestID string, body []byte) (*ports.AIResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json, text/plain, text/html")
	httpReq.Header.Set("X-Request-ID", requestID)
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to call webhook: %w", err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, c.maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read webhook response: %w", err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: httpResp.StatusCode, Status: httpResp.Status}
	}

	return &ports.AIResponse{
		Body:        data,
		ContentType: httpResp.Header.Get("Content-Type"),
		StatusCode:  httpResp.StatusCode,
	}, nil
}

// classify attaches the client-facing code to a final webhook error
func classify(err error, attempts int) error {
	if coded := domain.ContextError(err); coded != nil {
		return coded
	}
	return domain.WrapError(domain.CodeUpstreamFailed, "AI service request failed",
		fmt.Errorf("after %d attempts: %w", attempts, err))
}
