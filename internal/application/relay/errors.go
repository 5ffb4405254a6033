package relay

import "github.com/aescanero/chatrelay/pkg/domain"

// Sentinel errors, matched by code with errors.Is
var (
	ErrSessionNotFound = domain.NewError(domain.CodeSessionNotFound, "session not found")
	ErrRequestNotFound = domain.NewError(domain.CodeInvalidMessage, "request is not in flight")
	ErrInvalidMessage  = domain.NewError(domain.CodeInvalidMessage, "message content is required")
	ErrMessageTooLong  = domain.NewError(domain.CodeMessageTooLong, "message is too long")
	ErrUnknownMode     = domain.NewError(domain.CodeUnknownMode, "unknown mode")
	ErrChatMismatch    = domain.NewError(domain.CodeChatMismatch, "message belongs to a different chat")
	ErrRateLimited     = domain.NewError(domain.CodeRateLimited, "too many messages, slow down")
	ErrTooManyPending  = domain.NewError(domain.CodeTooManyPending, "too many messages waiting for a reply")
	ErrQueueFull       = domain.NewError(domain.CodeQueueFull, "server is busy, try again later")
	ErrShuttingDown    = domain.NewError(domain.CodeInternal, "server is shutting down")
	ErrCancelled       = domain.NewError(domain.CodeCancelled, "request cancelled")
)
