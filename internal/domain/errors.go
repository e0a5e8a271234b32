package domain

import (
	"errors"
	"fmt"
)

var (
	ErrRoomNotFound      = errors.New("room not found")
	ErrUserNotFound      = errors.New("user not found")
	ErrAssistantNotBound = errors.New("room has no assistant bound")
)

// ValidationError rejects a frame before any persistence happens.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func NewValidationError(format string, v ...interface{}) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, v...)}
}

// UpstreamError wraps a completion collaborator failure. The user message is
// already persisted when this surfaces; only the reply is missing.
type UpstreamError struct {
	Timeout bool
	Err     error
}

func (e *UpstreamError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("assistant timed out: %v", e.Err)
	}
	return fmt.Sprintf("assistant unavailable: %v", e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
