package domain

import "time"

// EventType names a relay lifecycle event
type EventType string

const (
	EventTypeSessionOpened      EventType = "session.opened"
	EventTypeSessionClosed      EventType = "session.closed"
	EventTypeSessionReset       EventType = "session.reset"
	EventTypeSessionModeChanged EventType = "session.mode_changed"
	EventTypeMessageReceived    EventType = "message.received"
	EventTypeReplyDelivered     EventType = "reply.delivered"
	EventTypeReplyDropped       EventType = "reply.dropped"
	EventTypeReplyFailed        EventType = "reply.failed"
)

// Topics used on the event bus
const (
	TopicSessions = "session.events"
	TopicMessages = "message.events"
)

// Event is a lifecycle notification. It never carries message content.
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	SessionID string                 `json:"session_id,omitempty"`
	ChatID    string                 `json:"chatid,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// Topic returns the bus topic an event type is published on
func (t EventType) Topic() string {
	switch t {
	case EventTypeSessionOpened, EventTypeSessionClosed, EventTypeSessionReset, EventTypeSessionModeChanged:
		return TopicSessions
	default:
		return TopicMessages
	}
}
