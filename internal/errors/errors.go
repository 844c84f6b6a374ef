package errors

import (
	"errors"
	"fmt"
)

// RetrievalError is the structured error type for the retrieval engine.
// It provides rich context for error handling, logging, and user presentation.
type RetrievalError struct {
	// Code is the unique error code (e.g., "ERR_201_VECTOR_BACKEND").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, Provider, RateLimit, ...).
	Category Category

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried by the caller.
	Retryable bool
}

// Error implements the error interface.
func (e *RetrievalError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *RetrievalError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with RetrievalError.
func (e *RetrievalError) Is(target error) bool {
	if t, ok := target.(*RetrievalError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *RetrievalError) WithDetail(key, value string) *RetrievalError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New creates a new RetrievalError with the given code and message.
// Category and retryable flag are derived from the code.
func New(code string, message string, cause error) *RetrievalError {
	return &RetrievalError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a RetrievalError from an existing error.
// Returns nil if err is nil.
func Wrap(code string, err error) *RetrievalError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration error. These surface at construction
// time only.
func ConfigError(message string, cause error) *RetrievalError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// ProviderError creates an external-provider error. Surfaced to the caller
// unmodified; retry/backoff is the caller's responsibility.
func ProviderError(code, message string, cause error) *RetrievalError {
	return New(code, message, cause)
}

// RateLimitError creates a rate-limit error.
func RateLimitError(message string, cause error) *RetrievalError {
	return New(ErrCodeRateLimited, message, cause)
}

// TimeoutError creates a timeout error.
func TimeoutError(message string, cause error) *RetrievalError {
	return New(ErrCodeTimeout, message, cause)
}

// ValidationError creates a validation error. Validation failures are
// programming errors and are never silently recovered.
func ValidationError(message string, cause error) *RetrievalError {
	return New(ErrCodeInvalidInput, message, cause)
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var re *RetrievalError
	if errors.As(err, &re) {
		return re.Retryable
	}
	return false
}

// CategoryOf returns the category of an error, or CategoryInternal for
// errors that are not RetrievalErrors.
func CategoryOf(err error) Category {
	var re *RetrievalError
	if errors.As(err, &re) {
		return re.Category
	}
	return CategoryInternal
}

// IsRateLimit reports whether err is a rate-limit error.
func IsRateLimit(err error) bool {
	return CategoryOf(err) == CategoryRateLimit
}

// IsTimeout reports whether err is a timeout error.
func IsTimeout(err error) bool {
	return CategoryOf(err) == CategoryTimeout
}
