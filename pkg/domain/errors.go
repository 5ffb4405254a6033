package domain

import (
	"context"
	"errors"
)

// ErrorCode is the machine-readable code sent to clients in error events
type ErrorCode string

const (
	CodeInvalidMessage  ErrorCode = "INVALID_MESSAGE"
	CodeMessageTooLong  ErrorCode = "MESSAGE_TOO_LONG"
	CodeUnknownMode     ErrorCode = "UNKNOWN_MODE"
	CodeChatMismatch    ErrorCode = "CHAT_MISMATCH"
	CodeRateLimited     ErrorCode = "RATE_LIMITED"
	CodeTooManyPending  ErrorCode = "TOO_MANY_PENDING"
	CodeQueueFull       ErrorCode = "QUEUE_FULL"
	CodeUpstreamFailed  ErrorCode = "UPSTREAM_FAILED"
	CodeUpstreamTimeout ErrorCode = "UPSTREAM_TIMEOUT"
	CodeCancelled       ErrorCode = "CANCELLED"
	CodeUnknownEvent    ErrorCode = "UNKNOWN_EVENT"
	CodeSessionNotFound ErrorCode = "SESSION_NOT_FOUND"
	CodeInternal        ErrorCode = "INTERNAL"
)

// CodedError attaches a client-facing code to an error
type CodedError struct {
	Code    ErrorCode
	Message string
	Err     error
}

// NewError creates a coded error
func NewError(code ErrorCode, message string) *CodedError {
	return &CodedError{Code: code, Message: message}
}

// WrapError attaches a code to an underlying error
func WrapError(code ErrorCode, message string, err error) *CodedError {
	return &CodedError{Code: code, Message: message, Err: err}
}

func (e *CodedError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *CodedError) Unwrap() error {
	return e.Err
}

// Is matches coded errors by code so sentinel values work with errors.Is
func (e *CodedError) Is(target error) bool {
	t, ok := target.(*CodedError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// CodeOf returns the client-facing code and message of err.
// Errors without a code map to INTERNAL with a generic message.
func CodeOf(err error) (ErrorCode, string) {
	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Code, coded.Message
	}
	return CodeInternal, "internal error"
}

// ContextError codes a deadline as UPSTREAM_TIMEOUT and a cancellation as
// CANCELLED. It returns nil for any other error, including coded ones.
func ContextError(err error) *CodedError {
	var coded *CodedError
	if err == nil || errors.As(err, &coded) {
		return nil
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return WrapError(CodeUpstreamTimeout, "AI service timed out", err)
	case errors.Is(err, context.Canceled):
		return WrapError(CodeCancelled, "request cancelled", err)
	}
	return nil
}
