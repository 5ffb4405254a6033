package domain

import "time"

// Role identifies the author of a chat message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ChatMessage is the message shape rendered by chat clients
type ChatMessage struct {
	ChatID    string    `json:"chatid"`
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Role      Role      `json:"role"`
	Mode      string    `json:"mode,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// UserMessage is the payload of an inbound user_message event.
// ID, Mode and ChatID are optional.
type UserMessage struct {
	ID        string    `json:"id,omitempty"`
	Content   string    `json:"content"`
	Mode      string    `json:"mode,omitempty"`
	ChatID    string    `json:"chatid,omitempty"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// BlockKind classifies a segment of a normalized reply
type BlockKind string

const (
	BlockText BlockKind = "text"
	BlockHTML BlockKind = "html"
	BlockSVG  BlockKind = "svg"
	BlockCode BlockKind = "code"
)

// Block is one segment of a normalized reply
type Block struct {
	Kind     BlockKind `json:"kind"`
	Content  string    `json:"content"`
	Language string    `json:"language,omitempty"`
}

// Format summarizes the block kinds of a reply
type Format string

const (
	FormatText  Format = "text"
	FormatHTML  Format = "html"
	FormatSVG   Format = "svg"
	FormatJSON  Format = "json"
	FormatMixed Format = "mixed"
)

// Reply is a normalized, sanitized AI reply correlated to a request
type Reply struct {
	RequestID string    `json:"request_id"`
	ChatID    string    `json:"chatid"`
	Mode      string    `json:"mode"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Format    Format    `json:"format"`
	Blocks    []Block   `json:"blocks,omitempty"`
	Truncated bool      `json:"truncated,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ChatMessage converts the reply into the assistant chat message clients render
func (r *Reply) ChatMessage() ChatMessage {
	return ChatMessage{
		ChatID:    r.ChatID,
		ID:        r.RequestID,
		Content:   r.Content,
		Role:      RoleAssistant,
		Mode:      r.Mode,
		Timestamp: r.Timestamp,
	}
}
