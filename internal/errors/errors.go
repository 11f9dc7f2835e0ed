// Package errors provides structured error types for the blog's tracking and
// sink components. Every error carries a category, code, message, and
// retryable flag so HTTP and gRPC layers can map them consistently.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by failure class.
type ErrorCategory string

const (
	ErrCategoryValidation ErrorCategory = "VALIDATION"
	ErrCategoryStorage    ErrorCategory = "STORAGE"
	ErrCategoryTransport  ErrorCategory = "TRANSPORT"
	ErrCategoryConfig     ErrorCategory = "CONFIG"
	ErrCategoryContent    ErrorCategory = "CONTENT"
	ErrCategoryInternal   ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Validation codes
	CodeMissingFields = "MISSING_FIELDS"
	CodeMalformedBody = "MALFORMED_BODY"

	// Storage codes
	CodeInsertFailed = "INSERT_FAILED"
	CodeOpenFailed   = "OPEN_FAILED"

	// Transport codes
	CodeSendFailed   = "SEND_FAILED"
	CodeRejected     = "REJECTED"
	CodeEncodeFailed = "ENCODE_FAILED"

	// Config codes
	CodeInvalidConfig = "INVALID_CONFIG"

	// Content codes
	CodeNotFound = "NOT_FOUND"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// BlogError is the structured error type used throughout the system.
type BlogError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Details   map[string]interface{}
	Cause     error
	Retryable bool
}

// Error returns a formatted error string.
func (e *BlogError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *BlogError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *BlogError) Is(target error) bool {
	var t *BlogError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new BlogError.
func New(category ErrorCategory, code, message string) *BlogError {
	return &BlogError{
		Category:  category,
		Code:      code,
		Message:   message,
		Retryable: isRetryable(category, code),
	}
}

// Wrap creates a new BlogError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *BlogError {
	return &BlogError{
		Category:  category,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: isRetryable(category, code),
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *BlogError) WithDetails(details map[string]interface{}) *BlogError {
	cp := *e
	cp.Details = details
	return &cp
}

// IsRetryable checks whether an error (or its chain) is retryable.
func IsRetryable(err error) bool {
	var be *BlogError
	if errors.As(err, &be) {
		return be.Retryable
	}
	return false
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not a BlogError.
func GetCategory(err error) ErrorCategory {
	var be *BlogError
	if errors.As(err, &be) {
		return be.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not a BlogError.
func GetCode(err error) string {
	var be *BlogError
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}

// isRetryable reports whether a failure may be retried. Events are
// fire-and-forget and inserts are attempted once, so nothing qualifies.
func isRetryable(category ErrorCategory, code string) bool {
	return false
}

// Convenience constructors for common errors.

func NewValidationError(code, message string) *BlogError {
	return New(ErrCategoryValidation, code, message)
}

func NewStorageError(code, message string, cause error) *BlogError {
	return Wrap(ErrCategoryStorage, code, message, cause)
}

func NewTransportError(code, message string, cause error) *BlogError {
	return Wrap(ErrCategoryTransport, code, message, cause)
}

func NewConfigError(message string) *BlogError {
	return New(ErrCategoryConfig, CodeInvalidConfig, message)
}

func NewContentError(code, message string, cause error) *BlogError {
	return Wrap(ErrCategoryContent, code, message, cause)
}

func NewInternalError(message string, cause error) *BlogError {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}
