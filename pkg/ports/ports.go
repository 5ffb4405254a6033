package ports

import (
	"context"
	"time"

	"github.com/aescanero/chatrelay/pkg/domain"
)

// EventHandler processes an event delivered by the bus
type EventHandler func(ctx context.Context, event domain.Event) error

// EventBus publishes relay lifecycle events
type EventBus interface {
	Publish(ctx context.Context, topic string, event domain.Event) error
	// Subscribe delivers events until ctx is cancelled
	Subscribe(ctx context.Context, topic string, handler EventHandler) error
	Close() error
}

// SessionRecord is the stored view of a connected client's chat session
type SessionRecord struct {
	SessionID  string    `json:"session_id"`
	ChatID     string    `json:"chatid"`
	Mode       string    `json:"mode"`
	RemoteAddr string    `json:"remote_addr"`
	OpenedAt   time.Time `json:"opened_at"`
	Pending    int       `json:"pending"`
}

// SessionStore keeps session records for the lifetime of their connection
type SessionStore interface {
	Save(ctx context.Context, record *SessionRecord) error
	Get(ctx context.Context, sessionID string) (*SessionRecord, error)
	Delete(ctx context.Context, sessionID string) error
	List(ctx context.Context) ([]*SessionRecord, error)
	Count(ctx context.Context) (int, error)
}

// AIRequest is a user message forwarded to an upstream AI mode
type AIRequest struct {
	RequestID string
	// SessionID identifies the socket connection; ChatID the conversation
	SessionID string
	ChatID    string
	Mode      string
	Content   string
	Timestamp time.Time
}

// AIResponse is the raw upstream reply
type AIResponse struct {
	Body        []byte
	ContentType string
	StatusCode  int
	Attempts    int
}

// AIClient sends a message to an upstream AI endpoint
type AIClient interface {
	Send(ctx context.Context, req *AIRequest) (*AIResponse, error)
	Name() string
}

// Emitter delivers named events to one connected client
type Emitter interface {
	Emit(event string, payload interface{}) error
}

// MetricsCollector records relay metrics
type MetricsCollector interface {
	IncSessionsOpened()
	SetActiveSessions(count int)
	IncMessagesReceived(mode string)
	IncMessagesRejected(code string)
	IncReplies(mode, outcome string)
	ObserveUpstreamLatency(mode string, duration time.Duration)
	AddUpstreamRetries(mode string, retries int)
	IncBlocksSanitized(kind string)
	SetInflightRequests(count int)
	RecordWorkerPoolStatus(idle, busy, stopped int)
	SetQueueDepth(depth int)
}
