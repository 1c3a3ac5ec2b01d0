// Package errors provides domain-specific errors for the evalrunner application.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common domain error conditions.
var (
	ErrInvalidModelName     = errors.New("invalid name")
	ErrModelPathRequired    = errors.New("model path required")
	ErrBackendUnreachable   = errors.New("backend unreachable")
	ErrModelNotServed       = errors.New("model not served by backend")
	ErrTokenizerUnavailable = errors.New("tokenizer unavailable")
	ErrBackendNotFound      = errors.New("backend not found")
)

// ErrorCode categorizes errors for handling and reporting.
type ErrorCode string

const (
	CodeValidation    ErrorCode = "VALIDATION"
	CodeNotFound      ErrorCode = "NOT_FOUND"
	CodeBackend       ErrorCode = "BACKEND"
	CodeExecution     ErrorCode = "EXECUTION"
	CodeConfiguration ErrorCode = "CONFIG"
)

// EvalError wraps errors with additional context for debugging and handling.
type EvalError struct {
	Code    ErrorCode
	Message string
	Cause   error
	Context map[string]any
}

// Error returns a formatted error string including the code, message, and cause if present.
func (e *EvalError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error for use with errors.Is and errors.As.
func (e *EvalError) Unwrap() error {
	return e.Cause
}

// NewError creates a new EvalError with the given code, message, and optional cause.
func NewError(code ErrorCode, message string, cause error) *EvalError {
	return &EvalError{
		Code:    code,
		Message: message,
		Cause:   cause,
		Context: make(map[string]any),
	}
}

// WithContext adds a key-value pair to the error's context and returns the error.
func WithContext(err *EvalError, key string, value any) *EvalError {
	if err.Context == nil {
		err.Context = make(map[string]any)
	}
	err.Context[key] = value
	return err
}

// CodeOf returns the code of the first EvalError in err's chain, or "" if none.
func CodeOf(err error) ErrorCode {
	var evalErr *EvalError
	if errors.As(err, &evalErr) {
		return evalErr.Code
	}
	return ""
}

// Is reports whether err matches target using errors.Is semantics.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}
