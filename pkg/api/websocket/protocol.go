package websocket

import (
	"encoding/json"
	"time"
)

// Client to server events
const (
	EventUserMessage = "user_message"
	EventSetMode     = "set_mode"
	EventNewChat     = "new_chat"
	EventCancel      = "cancel"
	EventPing        = "ping"
)

// Server to client events not emitted by the relay
const (
	EventPong = "pong"
)

// Envelope is the frame exchanged on the chat socket
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outbound struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

type setModePayload struct {
	Mode string `json:"mode"`
}

type cancelPayload struct {
	RequestID string `json:"request_id"`
}

type pongPayload struct {
	Timestamp time.Time `json:"timestamp"`
}

func encode(event string, payload interface{}) ([]byte, error) {
	return json.Marshal(outbound{Event: event, Data: payload})
}

// decodeData unmarshals an envelope's data; a missing payload leaves v untouched
func decodeData(data json.RawMessage, v interface{}) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	return json.Unmarshal(data, v)
}
