package relay

import (
	"context"
	"sync"
	"time"

	"github.com/aescanero/chatrelay/pkg/ports"
	"golang.org/x/time/rate"
)

// Session is the relay state of one socket connection
type Session struct {
	id         string
	remoteAddr string
	openedAt   time.Time
	emitter    ports.Emitter
	limiter    *rate.Limiter

	mu      sync.Mutex
	chatID  string
	mode    string
	pending map[string]*pendingRequest
	closed  bool
}

// pendingRequest is a request waiting for its upstream reply
type pendingRequest struct {
	id          string
	chatID      string
	mode        string
	content     string
	submittedAt time.Time

	ctx    context.Context
	cancel context.CancelFunc
	// closed once the ack has been emitted so replies never overtake it
	acked chan struct{}
}

// SessionInfo is the payload of the session event
type SessionInfo struct {
	SessionID string   `json:"session_id"`
	ChatID    string   `json:"chatid"`
	Mode      string   `json:"mode"`
	Modes     []string `json:"modes"`
}

// ID returns the session id
func (s *Session) ID() string {
	return s.id
}

// ChatID returns the current chat id
func (s *Session) ChatID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chatID
}

// Mode returns the session's default mode
func (s *Session) Mode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Pending returns the number of requests waiting for a reply
func (s *Session) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

func (s *Session) record() *ports.SessionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recordLocked()
}

func (s *Session) recordLocked() *ports.SessionRecord {
	return &ports.SessionRecord{
		SessionID:  s.id,
		ChatID:     s.chatID,
		Mode:       s.mode,
		RemoteAddr: s.remoteAddr,
		OpenedAt:   s.openedAt,
		Pending:    len(s.pending),
	}
}

// drain removes and returns every pending request
func (s *Session) drain() []*pendingRequest {
	drained := make([]*pendingRequest, 0, len(s.pending))
	for id, p := range s.pending {
		drained = append(drained, p)
		delete(s.pending, id)
	}
	return drained
}
