// Package errors provides structured error types for the Vanadium query engine.
// All errors include a category, code, message, and retryable flag for
// consistent error handling across components.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by system component.
type ErrorCategory string

const (
	ErrCategorySchema   ErrorCategory = "SCHEMA"
	ErrCategoryFilter   ErrorCategory = "FILTER"
	ErrCategoryCursor   ErrorCategory = "CURSOR"
	ErrCategoryBackend  ErrorCategory = "BACKEND"
	ErrCategoryInternal ErrorCategory = "INTERNAL"
)

// Error codes for each category. Every code maps 1:1 to a user-facing
// error in the query API.
const (
	// Schema codes
	CodeUnknownEntity = "UNKNOWN_ENTITY"
	CodeUnknownField  = "UNKNOWN_FIELD"

	// Filter codes
	CodeInvalidFilterField  = "INVALID_FILTER_FIELD"
	CodeFilterTypeMismatch  = "FILTER_TYPE_MISMATCH"
	CodeUnsupportedOperator = "UNSUPPORTED_OPERATOR"
	CodeFilterTooComplex    = "FILTER_TOO_COMPLEX"

	// Cursor codes
	CodeInvalidCursor  = "INVALID_CURSOR"
	CodeCursorMismatch = "CURSOR_MISMATCH"

	// Backend codes
	CodeBackendError = "BACKEND_ERROR"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// VanadiumError is the structured error type used throughout the system.
type VanadiumError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Details   map[string]interface{}
	Cause     error
	Retryable bool
}

// Error returns a formatted error string.
func (e *VanadiumError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *VanadiumError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *VanadiumError) Is(target error) bool {
	var t *VanadiumError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new VanadiumError.
func New(category ErrorCategory, code, message string) *VanadiumError {
	return &VanadiumError{
		Category:  category,
		Code:      code,
		Message:   message,
		Retryable: isRetryable(category, code),
	}
}

// Newf creates a new VanadiumError with a formatted message.
func Newf(category ErrorCategory, code, format string, args ...interface{}) *VanadiumError {
	return New(category, code, fmt.Sprintf(format, args...))
}

// Wrap creates a new VanadiumError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *VanadiumError {
	return &VanadiumError{
		Category:  category,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: isRetryable(category, code),
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *VanadiumError) WithDetails(details map[string]interface{}) *VanadiumError {
	cp := *e
	cp.Details = details
	return &cp
}

// IsRetryable checks whether an error (or its chain) is retryable.
func IsRetryable(err error) bool {
	var ve *VanadiumError
	if errors.As(err, &ve) {
		return ve.Retryable
	}
	return false
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not a VanadiumError.
func GetCategory(err error) ErrorCategory {
	var ve *VanadiumError
	if errors.As(err, &ve) {
		return ve.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not a VanadiumError.
func GetCode(err error) string {
	var ve *VanadiumError
	if errors.As(err, &ve) {
		return ve.Code
	}
	return ""
}

// isRetryable determines if an error code is possibly transient.
// Only backend failures qualify; retry policy belongs to the caller.
func isRetryable(category ErrorCategory, code string) bool {
	return category == ErrCategoryBackend && code == CodeBackendError
}

// Convenience constructors for common errors.

func NewSchemaError(code, message string) *VanadiumError {
	return New(ErrCategorySchema, code, message)
}

func NewFilterError(code, message string) *VanadiumError {
	return New(ErrCategoryFilter, code, message)
}

func NewCursorError(code, message string) *VanadiumError {
	return New(ErrCategoryCursor, code, message)
}

func NewBackendError(message string, cause error) *VanadiumError {
	return Wrap(ErrCategoryBackend, CodeBackendError, message, cause)
}

func NewInternalError(message string, cause error) *VanadiumError {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}
