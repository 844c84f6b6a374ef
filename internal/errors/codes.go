// Package errors provides structured error handling for DocuMind retrieval.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Provider errors (vector backend, embedding API, reranker API)
//   - 3XX: Rate limit and timeout errors
//   - 4XX: Validation errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	// These fail fast at construction time, never during a retrieve call.
	CategoryConfig Category = "CONFIG"
	// CategoryProvider indicates failures of an external provider
	// (vector backend, embedding API, hosted reranker).
	CategoryProvider Category = "PROVIDER"
	// CategoryRateLimit indicates the provider rejected the request for
	// quota reasons. Callers may apply their own backoff policy.
	CategoryRateLimit Category = "RATE_LIMIT"
	// CategoryTimeout indicates a deadline elapsed while waiting on a provider.
	CategoryTimeout Category = "TIMEOUT"
	// CategoryValidation indicates input validation errors. These are
	// programming errors, never silently recovered.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Error codes. Grouped by category prefix.
const (
	ErrCodeConfigInvalid      = "ERR_101_CONFIG_INVALID"
	ErrCodeMissingCredentials = "ERR_102_MISSING_CREDENTIALS"
	ErrCodeUnknownProvider    = "ERR_103_UNKNOWN_PROVIDER"

	ErrCodeVectorBackend = "ERR_201_VECTOR_BACKEND"
	ErrCodeEmbedding     = "ERR_202_EMBEDDING"
	ErrCodeReranker      = "ERR_203_RERANKER"

	ErrCodeRateLimited = "ERR_301_RATE_LIMITED"
	ErrCodeTimeout     = "ERR_302_TIMEOUT"

	ErrCodeInvalidInput  = "ERR_401_INVALID_INPUT"
	ErrCodeArrayMismatch = "ERR_402_PARALLEL_ARRAY_MISMATCH"

	ErrCodeInternal = "ERR_501_INTERNAL"
)

// categoryFromCode derives the category from the code's numeric prefix.
func categoryFromCode(code string) Category {
	if len(code) < 5 {
		return CategoryInternal
	}
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryProvider
	case '3':
		if code == ErrCodeTimeout {
			return CategoryTimeout
		}
		return CategoryRateLimit
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// isRetryableCode reports whether operations failing with this code may be
// retried by the caller. This layer performs no retries of its own.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeRateLimited, ErrCodeTimeout, ErrCodeVectorBackend, ErrCodeEmbedding, ErrCodeReranker:
		return true
	default:
		return false
	}
}
