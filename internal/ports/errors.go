package ports

import (
	"errors"
	"fmt"
)

// Common infrastructure errors that can occur during external service
// interactions.
var (
	// ErrNoSubmission indicates that a participant has not published a
	// preference document.
	ErrNoSubmission = errors.New("no submission")

	// ErrRateLimited indicates that the service has rate limited the request.
	ErrRateLimited = errors.New("rate limited")

	// ErrServiceUnavailable indicates that the external service is unavailable.
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrTimeout indicates that an operation timed out.
	ErrTimeout = errors.New("operation timed out")

	// ErrConfigNotFound indicates that required configuration is missing.
	ErrConfigNotFound = errors.New("configuration not found")
)

// RetrievalError represents a failure to retrieve a participant's document.
// The aggregation core never treats it as fatal; the participant is simply
// considered non-submitting.
type RetrievalError struct {
	// Hotkey identifies the participant whose document was requested.
	Hotkey string

	// Operation is the name of the operation that failed.
	Operation string

	// Err is the underlying error that occurred.
	Err error

	// Attempts is the number of attempts made before giving up.
	Attempts int
}

// Error implements the error interface for RetrievalError.
func (e *RetrievalError) Error() string {
	msg := fmt.Sprintf("retrieval error: hotkey=%s, operation=%s, err=%v", e.Hotkey, e.Operation, e.Err)
	if e.Attempts > 1 {
		msg += fmt.Sprintf(", attempts=%d", e.Attempts)
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *RetrievalError) Unwrap() error { return e.Err }

// IsRetryable returns true if the error is temporary and the operation
// can be retried.
func (e *RetrievalError) IsRetryable() bool { return IsRetryable(e.Err) }

// NewRetrievalError creates a new RetrievalError with the given details.
func NewRetrievalError(hotkey, operation string, err error) *RetrievalError {
	return &RetrievalError{
		Hotkey:    hotkey,
		Operation: operation,
		Err:       err,
	}
}

// IsRetryable reports whether err is a transient service-level failure.
// A missing submission is a definitive answer and is never retried.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, ErrNoSubmission) {
		return false
	}
	return errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout)
}

// ConfigError represents an error from configuration operations.
type ConfigError struct {
	// ConfigKey is the configuration key that was involved in the failed
	// operation.
	ConfigKey string

	// Err is the underlying error that caused the configuration operation
	// to fail.
	Err error
}

// Error implements the error interface for ConfigError.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: key=%s, err=%v", e.ConfigKey, e.Err)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error { return e.Err }

// NewConfigError creates a new ConfigError with the given details.
func NewConfigError(key string, err error) *ConfigError {
	return &ConfigError{
		ConfigKey: key,
		Err:       err,
	}
}
