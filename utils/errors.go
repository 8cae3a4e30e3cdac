package utils

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError represents a backend request failure with context
type AppError struct {
	Code    int                    // HTTP status code, 0 for transport failures
	Message string                 // User-facing message, server-reported when available
	Err     error                  // Underlying error
	Context map[string]interface{} // Additional context
}

// NewAppError creates a new AppError
func NewAppError(code int, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
		Context: make(map[string]interface{}),
	}
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap exposes the underlying error to errors.Is/As
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	e.Context[key] = value
	return e
}

// TransportError wraps a network-level failure (no response received).
func TransportError(message string, err error) *AppError {
	return NewAppError(0, message, err)
}

// ServerError wraps a business error reported by the backend.
func ServerError(code int, message string) *AppError {
	return NewAppError(code, message, nil)
}

// NotFoundError marks a missing resource
func NotFoundError(message string, err error) *AppError {
	return NewAppError(http.StatusNotFound, message, err)
}

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == http.StatusNotFound
	}
	return false
}

// UserMessage extracts the user-facing message from an error for the
// notification sink. Falls back to the raw error text.
func UserMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	if err != nil {
		return err.Error()
	}
	return ""
}
