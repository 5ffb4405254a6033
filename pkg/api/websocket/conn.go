package websocket

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 256
)

var (
	// ErrConnClosed is returned when emitting on a closed connection
	ErrConnClosed = errors.New("connection closed")

	// ErrSendBufferFull is returned when a frame is dropped for a slow client
	ErrSendBufferFull = errors.New("send buffer full")
)

// Conn is one client socket. It implements ports.Emitter.
type Conn struct {
	ws         *websocket.Conn
	send       chan []byte
	remoteAddr string
	logger     *zap.Logger

	mu     sync.Mutex
	closed bool
}

func newConn(ws *websocket.Conn, remoteAddr string, logger *zap.Logger) *Conn {
	return &Conn{
		ws:         ws,
		send:       make(chan []byte, sendBufferSize),
		remoteAddr: remoteAddr,
		logger:     logger,
	}
}

// Emit queues an event for the client without blocking
func (c *Conn) Emit(event string, payload interface{}) error {
	data, err := encode(event, payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", event, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrConnClosed
	}

	select {
	case c.send <- data:
		return nil
	default:
		c.logger.Warn("send buffer full, dropping frame",
			zap.String("remote_addr", c.remoteAddr),
			zap.String("event", event))
		return ErrSendBufferFull
	}
}

// Close stops the write pump, which then closes the socket
func (c *Conn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (c *Conn) setupRead(limit int64) {
	if limit > 0 {
		c.ws.SetReadLimit(limit)
	}
	if err := c.ws.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Debug("failed to set read deadline", zap.Error(err))
	}
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})
}

// writePump writes queued frames and keepalive pings until the send channel closes
func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Debug("failed to write message",
					zap.String("remote_addr", c.remoteAddr),
					zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Debug("failed to write ping",
					zap.String("remote_addr", c.remoteAddr),
					zap.Error(err))
				return
			}
		}
	}
}

// isExpectedClose reports read errors that mean the client went away
func isExpectedClose(err error) bool {
	return websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
		websocket.CloseAbnormalClosure)
}
