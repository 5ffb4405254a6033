package relay

import (
	"testing"

	"github.com/aescanero/chatrelay/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatorResolvesModeAndContent(t *testing.T) {
	v := NewValidator([]string{"test-chat", "other"}, 10)

	content, mode, err := v.Validate(&domain.UserMessage{Content: "\n hi \t"}, "chat-1", "test-chat")
	require.NoError(t, err)
	assert.Equal(t, "hi", content)
	assert.Equal(t, "test-chat", mode)

	_, mode, err = v.Validate(&domain.UserMessage{Content: "hi", Mode: " other ", ChatID: "chat-1"}, "chat-1", "test-chat")
	require.NoError(t, err)
	assert.Equal(t, "other", mode)
}

func TestValidatorRejects(t *testing.T) {
	v := NewValidator([]string{"test-chat"}, 3)

	tests := []struct {
		name string
		msg  *domain.UserMessage
		code domain.ErrorCode
	}{
		{"nil", nil, domain.CodeInvalidMessage},
		{"blank", &domain.UserMessage{Content: " "}, domain.CodeInvalidMessage},
		{"invalid utf8", &domain.UserMessage{Content: "a\xffb"}, domain.CodeInvalidMessage},
		{"too many runes", &domain.UserMessage{Content: "abcd"}, domain.CodeMessageTooLong},
		{"unknown mode", &domain.UserMessage{Content: "abc", Mode: "x"}, domain.CodeUnknownMode},
		{"chat mismatch", &domain.UserMessage{Content: "abc", ChatID: "chat-2"}, domain.CodeChatMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := v.Validate(tt.msg, "chat-1", "test-chat")
			require.Error(t, err)
			code, _ := domain.CodeOf(err)
			assert.Equal(t, tt.code, code)
		})
	}
}

func TestValidatorCountsRunesNotBytes(t *testing.T) {
	v := NewValidator([]string{"test-chat"}, 3)
	_, _, err := v.Validate(&domain.UserMessage{Content: "äöü"}, "chat-1", "test-chat")
	assert.NoError(t, err)
}
