package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures so callers and the API layer can map them
// to the right external behavior without string matching.
type ErrorKind string

const (
	KindUnauthenticated    ErrorKind = "unauthenticated"
	KindForbidden          ErrorKind = "forbidden"
	KindNotFound           ErrorKind = "not_found"
	KindUnauthorized       ErrorKind = "unauthorized"
	KindValidation         ErrorKind = "validation"
	KindServiceUnavailable ErrorKind = "service_unavailable"
	KindToolExecution      ErrorKind = "tool_execution"
	KindTimeout            ErrorKind = "timeout"
)

// Sentinel errors for the common kinds. Wrap with context via %w so
// errors.Is keeps working up the stack.
var (
	ErrUnauthenticated    = &KindError{Kind: KindUnauthenticated, Message: "missing or invalid credential"}
	ErrForbidden          = &KindError{Kind: KindForbidden, Message: "caller identity mismatch"}
	ErrNotFound           = &KindError{Kind: KindNotFound, Message: "not found"}
	ErrUnauthorized       = &KindError{Kind: KindUnauthorized, Message: "not owned by caller"}
	ErrServiceUnavailable = &KindError{Kind: KindServiceUnavailable, Message: "service unavailable"}
)

// KindError is an error carrying a taxonomy kind.
// KindUnauthorized stays distinct from KindNotFound internally; the API layer
// maps both to the same external 404 shape so existence never leaks.
type KindError struct {
	Kind    ErrorKind
	Message string
}

func (e *KindError) Error() string {
	return e.Message
}

// Is matches any KindError with the same kind, so wrapped errors compare
// against the sentinels above.
func (e *KindError) Is(target error) bool {
	var ke *KindError
	if errors.As(target, &ke) {
		return ke.Kind == e.Kind
	}
	return false
}

// NewValidationError builds a validation failure with a formatted message
func NewValidationError(format string, args ...interface{}) error {
	return &KindError{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// NewToolExecutionError builds a tool execution failure wrapping the cause
func NewToolExecutionError(tool string, cause error) error {
	return fmt.Errorf("tool %s: %w", tool, &KindError{Kind: KindToolExecution, Message: cause.Error()})
}

// NewTimeoutError builds a retryable timeout failure
func NewTimeoutError(operation string) error {
	return &KindError{Kind: KindTimeout, Message: fmt.Sprintf("%s timed out", operation)}
}

// KindOf extracts the taxonomy kind from err, or empty string if err carries none
func KindOf(err error) ErrorKind {
	var ke *KindError
	if errors.As(err, &ke) {
		return ke.Kind
	}
	return ""
}

// IsValidation reports whether err is a validation failure
func IsValidation(err error) bool {
	return KindOf(err) == KindValidation
}

// IsTimeout reports whether err is a timeout failure
func IsTimeout(err error) bool {
	return KindOf(err) == KindTimeout
}
