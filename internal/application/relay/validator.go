package relay

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/aescanero/chatrelay/pkg/domain"
)

// Validator validates inbound user messages
type Validator struct {
	modes           map[string]bool
	maxContentChars int
}

// NewValidator creates a validator for the configured modes
func NewValidator(modes []string, maxContentChars int) *Validator {
	known := make(map[string]bool, len(modes))
	for _, mode := range modes {
		known[mode] = true
	}
	return &Validator{
		modes:           known,
		maxContentChars: maxContentChars,
	}
}

// Validate checks a message against the session's chat id and default mode.
// It returns the trimmed content and the mode the message resolves to.
func (v *Validator) Validate(msg *domain.UserMessage, chatID, sessionMode string) (string, string, error) {
	if msg == nil {
		return "", "", ErrInvalidMessage
	}

	content := strings.TrimSpace(msg.Content)
	if content == "" {
		return "", "", ErrInvalidMessage
	}
	if !utf8.ValidString(content) {
		return "", "", domain.NewError(domain.CodeInvalidMessage, "message content is not valid UTF-8")
	}
	if v.maxContentChars > 0 && utf8.RuneCountInString(content) > v.maxContentChars {
		return "", "", domain.NewError(domain.CodeMessageTooLong,
			fmt.Sprintf("message exceeds %d characters", v.maxContentChars))
	}

	mode := strings.TrimSpace(msg.Mode)
	if mode == "" {
		mode = sessionMode
	}
	if err := v.ValidateMode(mode); err != nil {
		return "", "", err
	}

	if msg.ChatID != "" && msg.ChatID != chatID {
		return "", "", ErrChatMismatch
	}

	return content, mode, nil
}

// ValidateMode checks that a mode is configured
func (v *Validator) ValidateMode(mode string) error {
	if !v.modes[mode] {
		return domain.NewError(domain.CodeUnknownMode, fmt.Sprintf("unknown mode: %q", mode))
	}
	return nil
}
