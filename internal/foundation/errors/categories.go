package errors

import "maps"

// ErrorCategory represents the broad category of an error for classification and routing.
type ErrorCategory string

const (
	// CategoryValidation covers bad domain values: non-positive specification
	// fields, duplicate names within a registration list, malformed input.
	CategoryValidation ErrorCategory = "validation"
	// CategoryAuth covers failed credential checks.
	CategoryAuth ErrorCategory = "auth"
	// CategoryNotFound covers references to ids or names with no record.
	CategoryNotFound ErrorCategory = "not_found"
	// CategoryAlreadyExists covers uniqueness conflicts (appliance names,
	// re-initialising the state registry).
	CategoryAlreadyExists ErrorCategory = "already_exists"
	// CategoryInsufficientHistory means a caller asked for more historical
	// depth than the ledger holds. Deliberately distinct from not_found:
	// "no history at all" and "not enough history" are different conditions.
	CategoryInsufficientHistory ErrorCategory = "insufficient_history"
	// CategoryConcurrency covers transient sequence-assignment contention at
	// the storage boundary. The only category retried internally.
	CategoryConcurrency ErrorCategory = "concurrency"
	// CategoryNotImplemented covers operations intentionally left
	// unimplemented (update/delete of accounts and appliances).
	CategoryNotImplemented ErrorCategory = "not_implemented"
	// CategoryStorage covers persistence failures that are not contention.
	CategoryStorage ErrorCategory = "storage"
	// CategoryInternal covers everything else.
	CategoryInternal ErrorCategory = "internal"
)

// ErrorSeverity indicates the impact level of an error.
type ErrorSeverity string

const (
	SeverityFatal   ErrorSeverity = "fatal"   // Stops execution completely
	SeverityError   ErrorSeverity = "error"   // Fails the current operation
	SeverityWarning ErrorSeverity = "warning" // Continues with degraded functionality
	SeverityInfo    ErrorSeverity = "info"    // Informational, no impact
)

// RetryStrategy indicates how an error should be handled in retry scenarios.
type RetryStrategy string

const (
	RetryNever      RetryStrategy = "never"     // Permanent failure, don't retry
	RetryImmediate  RetryStrategy = "immediate" // Retry immediately
	RetryBackoff    RetryStrategy = "backoff"   // Retry with bounded backoff
	RetryUserAction RetryStrategy = "user"      // Requires user intervention
)

// ErrorContext provides structured context for errors.
type ErrorContext map[string]any

// Set adds or updates a context value.
func (c ErrorContext) Set(key string, value any) ErrorContext {
	if c == nil {
		c = make(ErrorContext)
	}
	c[key] = value
	return c
}

// Get retrieves a context value.
func (c ErrorContext) Get(key string) (any, bool) {
	if c == nil {
		return nil, false
	}
	value, exists := c[key]
	return value, exists
}

// Merge combines two contexts, with other taking precedence.
func (c ErrorContext) Merge(other ErrorContext) ErrorContext {
	if c == nil {
		return other
	}
	if other == nil {
		return c
	}
	result := make(ErrorContext)
	maps.Copy(result, c)
	maps.Copy(result, other)
	return result
}
