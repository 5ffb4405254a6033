package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/aescanero/chatrelay/internal/application/relay"
	"github.com/aescanero/chatrelay/pkg/domain"
	"github.com/aescanero/chatrelay/pkg/ports"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const eventStreamBuffer = 64

// Config holds socket limits and origin settings
type Config struct {
	AllowedOrigins  []string
	MaxMessageBytes int64
}

// Handler handles chat sockets and event stream sockets
type Handler struct {
	manager         *relay.Manager
	eventBus        ports.EventBus
	origins         *OriginPolicy
	upgrader        websocket.Upgrader
	maxMessageBytes int64
	logger          *zap.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(manager *relay.Manager, eventBus ports.EventBus, cfg Config, logger *zap.Logger) *Handler {
	origins := NewOriginPolicy(cfg.AllowedOrigins, logger)
	return &Handler{
		manager:  manager,
		eventBus: eventBus,
		origins:  origins,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     origins.Allowed,
		},
		maxMessageBytes: cfg.MaxMessageBytes,
		logger:          logger,
	}
}

// HandleChat upgrades the request to a chat socket and serves it until the client leaves
func (h *Handler) HandleChat(c *gin.Context) {
	if !h.checkOrigin(c) {
		return
	}

	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("failed to upgrade connection", zap.Error(err))
		return
	}

	remoteAddr := c.ClientIP()
	conn := newConn(ws, remoteAddr, h.logger)
	go conn.writePump()

	session, err := h.manager.OpenSession(c.Request.Context(), remoteAddr, conn)
	if err != nil {
		h.logger.Error("failed to open session",
			zap.String("remote_addr", remoteAddr),
			zap.Error(err))
		conn.Close()
		return
	}

	defer func() {
		if err := h.manager.CloseSession(context.Background(), session.ID()); err != nil {
			h.logger.Error("failed to close session",
				zap.String("session_id", session.ID()),
				zap.Error(err))
		}
		conn.Close()
	}()

	h.readPump(conn, session.ID())
}

// readPump dispatches client events until the socket fails or closes
func (h *Handler) readPump(conn *Conn, sessionID string) {
	conn.setupRead(h.maxMessageBytes)

	for {
		_, raw, err := conn.ws.ReadMessage()
		if err != nil {
			switch {
			case errors.Is(err, websocket.ErrReadLimit):
				h.logger.Warn("message exceeded read limit",
					zap.String("session_id", sessionID),
					zap.Int64("limit", h.maxMessageBytes))
			case isExpectedClose(err):
				h.logger.Debug("client disconnected",
					zap.String("session_id", sessionID),
					zap.Error(err))
			default:
				h.logger.Debug("read failed",
					zap.String("session_id", sessionID),
					zap.Error(err))
			}
			return
		}

		h.dispatch(conn, sessionID, raw)
	}
}

// dispatch handles one client frame
func (h *Handler) dispatch(conn *Conn, sessionID string, raw []byte) {
	ctx := context.Background()

	var envelope Envelope
	if err := json.Unmarshal(raw, &envelope); err != nil || envelope.Event == "" {
		h.emitError(conn, "", domain.CodeInvalidMessage, "malformed event envelope")
		return
	}

	switch envelope.Event {
	case EventUserMessage:
		var msg domain.UserMessage
		if err := decodeData(envelope.Data, &msg); err != nil {
			h.emitError(conn, "", domain.CodeInvalidMessage, "malformed user_message payload")
			return
		}
		if _, err := h.manager.Submit(ctx, sessionID, msg); err != nil {
			h.emitErr(conn, msg.ID, err)
		}

	case EventSetMode:
		var payload setModePayload
		if err := decodeData(envelope.Data, &payload); err != nil {
			h.emitError(conn, "", domain.CodeInvalidMessage, "malformed set_mode payload")
			return
		}
		if _, err := h.manager.SetMode(ctx, sessionID, payload.Mode); err != nil {
			h.emitErr(conn, "", err)
		}

	case EventNewChat:
		if _, err := h.manager.NewChat(ctx, sessionID); err != nil {
			h.emitErr(conn, "", err)
		}

	case EventCancel:
		var payload cancelPayload
		if err := decodeData(envelope.Data, &payload); err != nil || payload.RequestID == "" {
			h.emitError(conn, "", domain.CodeInvalidMessage, "cancel requires a request_id")
			return
		}
		if err := h.manager.Cancel(ctx, sessionID, payload.RequestID); err != nil {
			h.emitErr(conn, payload.RequestID, err)
		}

	case EventPing:
		_ = conn.Emit(EventPong, pongPayload{Timestamp: time.Now().UTC()})

	default:
		h.emitError(conn, "", domain.CodeUnknownEvent, "unknown event: "+envelope.Event)
	}
}

func (h *Handler) emitErr(conn *Conn, requestID string, err error) {
	code, message := domain.CodeOf(err)
	h.emitError(conn, requestID, code, message)
}

func (h *Handler) emitError(conn *Conn, requestID string, code domain.ErrorCode, message string) {
	_ = conn.Emit(relay.EventError, relay.ErrorPayload{
		RequestID: requestID,
		Code:      code,
		Message:   message,
	})
}

// HandleEventStream streams lifecycle events, optionally filtered by ?chatid=
func (h *Handler) HandleEventStream(c *gin.Context) {
	if !h.checkOrigin(c) {
		return
	}

	chatID := c.Query("chatid")

	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("failed to upgrade connection", zap.Error(err))
		return
	}
	defer func() { _ = ws.Close() }()

	h.logger.Info("event stream connected",
		zap.String("chat_id", chatID),
		zap.String("client", c.ClientIP()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The stream is write-only; reading detects the client leaving
	go func() {
		defer cancel()
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	events := make(chan domain.Event, eventStreamBuffer)
	handler := func(ctx context.Context, event domain.Event) error {
		if chatID != "" && event.ChatID != chatID {
			return nil
		}
		select {
		case events <- event:
		case <-ctx.Done():
			return ctx.Err()
		default:
			h.logger.Warn("event stream buffer full, dropping event",
				zap.String("event_id", event.ID),
				zap.String("event_type", string(event.Type)))
		}
		return nil
	}

	for _, topic := range []string{domain.TopicSessions, domain.TopicMessages} {
		if err := h.eventBus.Subscribe(ctx, topic, handler); err != nil {
			h.logger.Error("failed to subscribe to events",
				zap.String("topic", topic),
				zap.Error(err))
			return
		}
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-events:
			data, err := json.Marshal(event)
			if err != nil {
				h.logger.Error("failed to marshal event", zap.Error(err))
				continue
			}
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
				h.logger.Debug("failed to write event", zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Handler) checkOrigin(c *gin.Context) bool {
	if h.origins.Allowed(c.Request) {
		return true
	}

	h.logger.Warn("blocked socket from disallowed origin",
		zap.String("origin", c.GetHeader("Origin")),
		zap.String("client", c.ClientIP()))
	c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
		"error": gin.H{
			"code":    "FORBIDDEN_ORIGIN",
			"message": "origin not allowed",
		},
	})
	return false
}
