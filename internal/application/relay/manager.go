package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/aescanero/chatrelay/internal/application/workers"
	"github.com/aescanero/chatrelay/pkg/domain"
	"github.com/aescanero/chatrelay/pkg/ports"
	"github.com/aescanero/chatrelay/pkg/reply"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Client event names emitted by the manager
const (
	EventSession    = "session"
	EventAck        = "ack"
	EventAIResponse = "ai_response"
	EventMessage    = "message"
	EventError      = "error"
)

// Reasons a reply is dropped instead of delivered
const (
	DropSessionClosed = "session_closed"
	DropCancelled     = "cancelled"
	DropStaleChat     = "stale_chat"
)

// Outcomes recorded once per request
const (
	OutcomeDelivered = "delivered"
	OutcomeFailed    = "failed"
	OutcomeDropped   = "dropped"
)

// JobQueue accepts jobs for asynchronous execution
type JobQueue interface {
	Enqueue(job workers.Job) error
}

// Config holds session limits and mode configuration
type Config struct {
	Modes           []string
	DefaultMode     string
	MaxContentChars int
	MaxPending      int
	RateLimit       float64
	RateBurst       int
	RequestTimeout  time.Duration
}

// Ack is the payload of the ack event
type Ack struct {
	RequestID string `json:"request_id"`
	ChatID    string `json:"chatid"`
	Mode      string `json:"mode"`
}

// ErrorPayload is the payload of the error event
type ErrorPayload struct {
	RequestID string           `json:"request_id,omitempty"`
	ChatID    string           `json:"chatid,omitempty"`
	Code      domain.ErrorCode `json:"code"`
	Message   string           `json:"message"`
}

// Manager tracks chat sessions and correlates requests with replies
type Manager struct {
	cfg        Config
	queue      JobQueue
	client     ports.AIClient
	normalizer *reply.Normalizer
	store      ports.SessionStore
	eventBus   ports.EventBus
	metrics    ports.MetricsCollector
	validator  *Validator
	logger     *zap.Logger

	sessions sync.Map // map[string]*Session
	inflight atomic.Int64
}

// NewManager creates a new relay manager
func NewManager(
	cfg Config,
	queue JobQueue,
	client ports.AIClient,
	normalizer *reply.Normalizer,
	store ports.SessionStore,
	eventBus ports.EventBus,
	metrics ports.MetricsCollector,
	logger *zap.Logger,
) *Manager {
	if cfg.MaxPending < 1 {
		cfg.MaxPending = 1
	}
	if cfg.RateBurst < 1 {
		cfg.RateBurst = 1
	}
	return &Manager{
		cfg:        cfg,
		queue:      queue,
		client:     client,
		normalizer: normalizer,
		store:      store,
		eventBus:   eventBus,
		metrics:    metrics,
		validator:  NewValidator(cfg.Modes, cfg.MaxContentChars),
		logger:     logger,
	}
}

// Modes returns the configured modes
func (m *Manager) Modes() []string {
	modes := make([]string, len(m.cfg.Modes))
	copy(modes, m.cfg.Modes)
	return modes
}

// DefaultMode returns the mode new sessions start in
func (m *Manager) DefaultMode() string {
	return m.cfg.DefaultMode
}

// OpenSession registers a new connection and emits its session event
func (m *Manager) OpenSession(ctx context.Context, remoteAddr string, emitter ports.Emitter) (*Session, error) {
	s := &Session{
		id:         uuid.New().String(),
		remoteAddr: remoteAddr,
		openedAt:   time.Now(),
		emitter:    emitter,
		limiter:    rate.NewLimiter(rate.Limit(m.cfg.RateLimit), m.cfg.RateBurst),
		chatID:     uuid.New().String(),
		mode:       m.cfg.DefaultMode,
		pending:    make(map[string]*pendingRequest),
	}

	if err := m.store.Save(ctx, s.record()); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	m.sessions.Store(s.id, s)

	m.metrics.IncSessionsOpened()
	m.updateActiveSessions(ctx)

	m.logger.Info("session opened",
		zap.String("session_id", s.id),
		zap.String("chat_id", s.chatID),
		zap.String("mode", s.mode),
		zap.String("remote_addr", remoteAddr))

	m.emitSession(s)
	m.publish(ctx, domain.EventTypeSessionOpened, s.id, s.chatID, "", map[string]interface{}{
		"mode": s.mode,
	})

	return s, nil
}

// Session returns a connected session
func (m *Manager) Session(sessionID string) (*Session, error) {
	value, ok := m.sessions.Load(sessionID)
	if !ok {
		return nil, ErrSessionNotFound
	}
	return value.(*Session), nil
}

// Submit validates a user message and queues it for the upstream AI.
// It returns the request id the reply will be correlated with.
func (m *Manager) Submit(ctx context.Context, sessionID string, msg domain.UserMessage) (string, error) {
	s, err := m.Session(sessionID)
	if err != nil {
		return "", err
	}

	p, err := m.register(s, &msg)
	if err != nil {
		code, _ := domain.CodeOf(err)
		m.metrics.IncMessagesRejected(string(code))
		m.logger.Debug("message rejected",
			zap.String("session_id", s.id),
			zap.String("code", string(code)),
			zap.Error(err))
		return "", err
	}

	job := workers.Job{
		ID: p.id,
		Run: func(poolCtx context.Context) {
			m.process(poolCtx, s, p)
		},
	}
	if err := m.queue.Enqueue(job); err != nil {
		m.unregister(s, p)
		if errors.Is(err, workers.ErrPoolStopped) {
			return "", ErrShuttingDown
		}
		m.metrics.IncMessagesRejected(string(domain.CodeQueueFull))
		m.logger.Warn("job queue full",
			zap.String("session_id", s.id),
			zap.String("request_id", p.id))
		return "", ErrQueueFull
	}

	m.updateInflight(1)
	m.metrics.IncMessagesReceived(p.mode)

	m.emit(s, EventAck, Ack{RequestID: p.id, ChatID: p.chatID, Mode: p.mode})
	close(p.acked)

	m.logger.Info("message received",
		zap.String("session_id", s.id),
		zap.String("chat_id", p.chatID),
		zap.String("request_id", p.id),
		zap.String("mode", p.mode),
		zap.Int("content_chars", utf8.RuneCountInString(p.content)))

	m.saveRecord(ctx, s)
	m.publish(ctx, domain.EventTypeMessageReceived, s.id, p.chatID, p.id, map[string]interface{}{
		"mode": p.mode,
	})

	return p.id, nil
}

// register validates the message and records it as pending
func (m *Manager) register(s *Session, msg *domain.UserMessage) (*pendingRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSessionNotFound
	}

	content, mode, err := m.validator.Validate(msg, s.chatID, s.mode)
	if err != nil {
		return nil, err
	}

	if !s.limiter.Allow() {
		return nil, ErrRateLimited
	}

	if len(s.pending) >= m.cfg.MaxPending {
		return nil, ErrTooManyPending
	}

	requestID := msg.ID
	if _, taken := s.pending[requestID]; requestID == "" || taken {
		requestID = uuid.New().String()
	}

	var (
		reqCtx context.Context
		cancel context.CancelFunc
	)
	if m.cfg.RequestTimeout > 0 {
		reqCtx, cancel = context.WithTimeout(context.Background(), m.cfg.RequestTimeout)
	} else {
		reqCtx, cancel = context.WithCancel(context.Background())
	}

	p := &pendingRequest{
		id:          requestID,
		chatID:      s.chatID,
		mode:        mode,
		content:     content,
		submittedAt: time.Now(),
		ctx:         reqCtx,
		cancel:      cancel,
		acked:       make(chan struct{}),
	}
	s.pending[requestID] = p

	return p, nil
}

func (m *Manager) unregister(s *Session, p *pendingRequest) {
	s.mu.Lock()
	if s.pending[p.id] == p {
		delete(s.pending, p.id)
	}
	s.mu.Unlock()
	p.cancel()
}

// process runs on a worker: it calls the upstream AI and completes the request
func (m *Manager) process(poolCtx context.Context, s *Session, p *pendingRequest) {
	stop := context.AfterFunc(poolCtx, p.cancel)
	defer stop()

	select {
	case <-p.acked:
	case <-p.ctx.Done():
	}

	var (
		result *domain.Reply
		err    error
	)
	if p.ctx.Err() == nil {
		result, err = m.safeCall(s, p)
	} else {
		// Expired or cancelled while waiting in the queue
		err = p.ctx.Err()
	}

	m.complete(s, p, result, err)
}

// safeCall turns a panic in the client or normalizer into a failed request,
// so the request still reaches exactly one terminal outcome
func (m *Manager) safeCall(s *Session, p *pendingRequest) (result *domain.Reply, err error) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("upstream call panicked",
				zap.String("session_id", s.id),
				zap.String("request_id", p.id),
				zap.String("mode", p.mode),
				zap.Any("panic", r))
			result = nil
			err = domain.WrapError(domain.CodeUpstreamFailed, "AI service request failed", fmt.Errorf("panic: %v", r))
		}
	}()
	return m.call(s, p)
}

// call forwards the request upstream and normalizes the reply
func (m *Manager) call(s *Session, p *pendingRequest) (*domain.Reply, error) {
	start := time.Now()
	resp, err := m.client.Send(p.ctx, &ports.AIRequest{
		RequestID: p.id,
		SessionID: s.id,
		ChatID:    p.chatID,
		Mode:      p.mode,
		Content:   p.content,
		Timestamp: p.submittedAt,
	})
	m.metrics.ObserveUpstreamLatency(p.mode, time.Since(start))
	if err != nil {
		return nil, err
	}
	m.metrics.AddUpstreamRetries(p.mode, resp.Attempts-1)

	normalized, err := m.normalizer.Normalize(resp.Body, resp.ContentType)
	if err != nil {
		return nil, domain.WrapError(domain.CodeUpstreamFailed, "AI service returned an empty reply", err)
	}
	for _, kind := range normalized.Sanitized {
		m.metrics.IncBlocksSanitized(string(kind))
	}

	return &domain.Reply{
		RequestID: p.id,
		ChatID:    p.chatID,
		Mode:      p.mode,
		Role:      domain.RoleAssistant,
		Content:   normalized.Content,
		Format:    normalized.Format,
		Blocks:    normalized.Blocks,
		Truncated: normalized.Truncated,
		Timestamp: time.Now(),
	}, nil
}

// complete delivers the single terminal outcome of a request
func (m *Manager) complete(s *Session, p *pendingRequest, result *domain.Reply, err error) {
	ctx := context.Background()
	defer p.cancel()
	defer m.updateInflight(-1)

	s.mu.Lock()
	reason := ""
	switch {
	case s.closed:
		reason = DropSessionClosed
	case s.chatID != p.chatID:
		reason = DropStaleChat
	case s.pending[p.id] != p:
		reason = DropCancelled
	default:
		delete(s.pending, p.id)
	}
	s.mu.Unlock()

	if reason != "" {
		m.metrics.IncReplies(p.mode, OutcomeDropped)
		m.logger.Info("reply dropped",
			zap.String("session_id", s.id),
			zap.String("chat_id", p.chatID),
			zap.String("request_id", p.id),
			zap.String("reason", reason))
		m.publish(ctx, domain.EventTypeReplyDropped, s.id, p.chatID, p.id, map[string]interface{}{
			"mode":   p.mode,
			"reason": reason,
		})
		return
	}

	m.saveRecord(ctx, s)

	if err != nil {
		code, message := domain.CodeOf(err)
		if code == domain.CodeInternal {
			code, message = domain.CodeUpstreamFailed, "AI service request failed"
			if coded := domain.ContextError(err); coded != nil {
				code, message = coded.Code, coded.Message
			}
		}
		m.metrics.IncReplies(p.mode, OutcomeFailed)
		m.logger.Warn("request failed",
			zap.String("session_id", s.id),
			zap.String("chat_id", p.chatID),
			zap.String("request_id", p.id),
			zap.String("mode", p.mode),
			zap.String("code", string(code)),
			zap.Duration("elapsed", time.Since(p.submittedAt)),
			zap.Error(err))
		m.emit(s, EventError, ErrorPayload{RequestID: p.id, ChatID: p.chatID, Code: code, Message: message})
		m.publish(ctx, domain.EventTypeReplyFailed, s.id, p.chatID, p.id, map[string]interface{}{
			"mode": p.mode,
			"code": string(code),
		})
		return
	}

	m.metrics.IncReplies(p.mode, OutcomeDelivered)
	m.logger.Info("reply delivered",
		zap.String("session_id", s.id),
		zap.String("chat_id", p.chatID),
		zap.String("request_id", p.id),
		zap.String("mode", p.mode),
		zap.String("format", string(result.Format)),
		zap.Bool("truncated", result.Truncated),
		zap.Duration("elapsed", time.Since(p.submittedAt)))
	m.emit(s, EventAIResponse, result)
	m.emit(s, EventMessage, result.ChatMessage())
	m.publish(ctx, domain.EventTypeReplyDelivered, s.id, p.chatID, p.id, map[string]interface{}{
		"mode":      p.mode,
		"format":    string(result.Format),
		"blocks":    len(result.Blocks),
		"truncated": result.Truncated,
	})
}

// Cancel aborts one in-flight request. The client gets a CANCELLED error.
func (m *Manager) Cancel(ctx context.Context, sessionID, requestID string) error {
	s, err := m.Session(sessionID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	p, ok := s.pending[requestID]
	if ok {
		delete(s.pending, requestID)
	}
	s.mu.Unlock()

	if !ok {
		return ErrRequestNotFound
	}
	p.cancel()

	m.logger.Info("request cancelled",
		zap.String("session_id", s.id),
		zap.String("chat_id", p.chatID),
		zap.String("request_id", requestID))

	m.emit(s, EventError, ErrorPayload{
		RequestID: requestID,
		ChatID:    p.chatID,
		Code:      domain.CodeCancelled,
		Message:   ErrCancelled.Message,
	})
	m.saveRecord(ctx, s)
	return nil
}

// NewChat starts a new chat: the chat id rotates and requests of the
// previous chat are cancelled.
func (m *Manager) NewChat(ctx context.Context, sessionID string) (*SessionInfo, error) {
	s, err := m.Session(sessionID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionNotFound
	}
	previous := s.chatID
	s.chatID = uuid.New().String()
	stale := s.drain()
	chatID := s.chatID
	s.mu.Unlock()

	for _, p := range stale {
		p.cancel()
	}

	m.logger.Info("chat reset",
		zap.String("session_id", s.id),
		zap.String("previous_chat_id", previous),
		zap.String("chat_id", chatID),
		zap.Int("cancelled", len(stale)))

	m.saveRecord(ctx, s)
	info := m.emitSession(s)
	m.publish(ctx, domain.EventTypeSessionReset, s.id, chatID, "", map[string]interface{}{
		"previous_chatid": previous,
		"cancelled":       len(stale),
	})

	return info, nil
}

// SetMode changes the session's default mode
func (m *Manager) SetMode(ctx context.Context, sessionID, mode string) (*SessionInfo, error) {
	s, err := m.Session(sessionID)
	if err != nil {
		return nil, err
	}
	if err := m.validator.ValidateMode(mode); err != nil {
		return nil, err
	}

	s.mu.Lock()
	previous := s.mode
	s.mode = mode
	chatID := s.chatID
	s.mu.Unlock()

	m.logger.Info("mode changed",
		zap.String("session_id", s.id),
		zap.String("previous_mode", previous),
		zap.String("mode", mode))

	m.saveRecord(ctx, s)
	info := m.emitSession(s)
	m.publish(ctx, domain.EventTypeSessionModeChanged, s.id, chatID, "", map[string]interface{}{
		"previous_mode": previous,
		"mode":          mode,
	})

	return info, nil
}

// CloseSession cancels everything in flight for a connection and forgets it.
// Closing an unknown session is a no-op.
func (m *Manager) CloseSession(ctx context.Context, sessionID string) error {
	value, ok := m.sessions.LoadAndDelete(sessionID)
	if !ok {
		return nil
	}
	s := value.(*Session)

	s.mu.Lock()
	s.closed = true
	pending := s.drain()
	chatID := s.chatID
	s.mu.Unlock()

	for _, p := range pending {
		p.cancel()
	}

	if err := m.store.Delete(ctx, s.id); err != nil {
		m.logger.Error("failed to delete session",
			zap.String("session_id", s.id),
			zap.Error(err))
	}
	m.updateActiveSessions(ctx)

	m.logger.Info("session closed",
		zap.String("session_id", s.id),
		zap.String("chat_id", chatID),
		zap.Int("cancelled", len(pending)),
		zap.Duration("duration", time.Since(s.openedAt)))

	m.publish(ctx, domain.EventTypeSessionClosed, s.id, chatID, "", map[string]interface{}{
		"cancelled": len(pending),
	})
	return nil
}

// Sessions lists connected sessions
func (m *Manager) Sessions(ctx context.Context) ([]*ports.SessionRecord, error) {
	records, err := m.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return records, nil
}

// Inflight returns the number of requests not yet completed
func (m *Manager) Inflight() int {
	return int(m.inflight.Load())
}

// Shutdown closes every session
func (m *Manager) Shutdown(ctx context.Context) error {
	m.logger.Info("closing all sessions")

	var ids []string
	m.sessions.Range(func(key, _ interface{}) bool {
		ids = append(ids, key.(string))
		return true
	})
	for _, id := range ids {
		if err := m.CloseSession(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) emitSession(s *Session) *SessionInfo {
	s.mu.Lock()
	info := &SessionInfo{
		SessionID: s.id,
		ChatID:    s.chatID,
		Mode:      s.mode,
		Modes:     m.Modes(),
	}
	s.mu.Unlock()

	m.emit(s, EventSession, info)
	return info
}

func (m *Manager) emit(s *Session, event string, payload interface{}) {
	if s.emitter == nil {
		return
	}
	if err := s.emitter.Emit(event, payload); err != nil {
		m.logger.Warn("failed to emit event",
			zap.String("session_id", s.id),
			zap.String("event", event),
			zap.Error(err))
	}
}

func (m *Manager) publish(ctx context.Context, eventType domain.EventType, sessionID, chatID, requestID string, data map[string]interface{}) {
	if m.eventBus == nil {
		return
	}
	event := domain.Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		SessionID: sessionID,
		ChatID:    chatID,
		RequestID: requestID,
		Timestamp: time.Now(),
		Data:      data,
	}
	if err := m.eventBus.Publish(ctx, eventType.Topic(), event); err != nil {
		m.logger.Error("failed to publish event",
			zap.String("event_type", string(eventType)),
			zap.String("session_id", sessionID),
			zap.Error(err))
	}
}

// saveRecord holds the session lock while saving so a closed session is never resurrected
func (m *Manager) saveRecord(ctx context.Context, s *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if err := m.store.Save(ctx, s.recordLocked()); err != nil {
		m.logger.Error("failed to save session",
			zap.String("session_id", s.id),
			zap.Error(err))
	}
}

func (m *Manager) updateActiveSessions(ctx context.Context) {
	count, err := m.store.Count(ctx)
	if err != nil {
		m.logger.Error("failed to count sessions", zap.Error(err))
		return
	}
	m.metrics.SetActiveSessions(count)
}

func (m *Manager) updateInflight(delta int64) {
	m.metrics.SetInflightRequests(int(m.inflight.Add(delta)))
}
