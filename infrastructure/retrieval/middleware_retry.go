package retrieval

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/ahrav/go-desirability/internal/ports"
)

// Default retry configuration constants.
const (
	// DefaultMaxAttempts is the default number of retries after the first attempt.
	DefaultMaxAttempts = 2
	// DefaultBaseDelay is the default initial delay before the first retry.
	DefaultBaseDelay = 200 * time.Millisecond
	// DefaultMaxDelay is the default maximum delay between retry attempts.
	DefaultMaxDelay = 2 * time.Second
	// DefaultJitterPercent is the default jitter percentage.
	DefaultJitterPercent = 0.1
)

// RetryConfig defines the configuration for retry behavior. These settings
// control the exponential backoff and jitter logic used between attempts.
type RetryConfig struct {
	// MaxAttempts specifies the maximum number of times to retry a failed
	// fetch. A value of 0 means no retries will be attempted.
	MaxAttempts int

	// BaseDelay sets the initial delay for the first retry attempt.
	// Subsequent delays are calculated using exponential backoff.
	BaseDelay time.Duration

	// MaxDelay caps the maximum delay between retry attempts.
	MaxDelay time.Duration

	// JitterPercent adds a random percentage of the current delay. It should
	// be between 0.0 and 1.0.
	JitterPercent float64
}

// DefaultRetryConfig returns a RetryConfig with sensible default values.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   DefaultMaxAttempts,
		BaseDelay:     DefaultBaseDelay,
		MaxDelay:      DefaultMaxDelay,
		JitterPercent: DefaultJitterPercent,
	}
}

// retryStore retries transient fetch failures with exponential backoff.
// Missing submissions and other definitive failures are returned at once.
type retryStore struct {
	next   ports.PreferenceStore
	config RetryConfig
}

// RetryMiddleware creates middleware that retries transient failures as
// classified by ports.IsRetryable. The final error is a *ports.RetrievalError
// carrying the number of attempts.
func RetryMiddleware(config RetryConfig) Middleware {
	return func(next ports.PreferenceStore) ports.PreferenceStore {
		return &retryStore{next: next, config: config}
	}
}

// Fetch executes the fetch with automatic retry logic.
func (r *retryStore) Fetch(ctx context.Context, hotkey string) ([]byte, error) {
	var lastErr error
	attempts := 0
	for attempt := 0; attempt <= r.config.MaxAttempts; attempt++ {
		attempts++
		data, err := r.next.Fetch(ctx, hotkey)
		if err == nil {
			return data, nil
		}

		lastErr = err
		if attempt == r.config.MaxAttempts || ctx.Err() != nil || !ports.IsRetryable(err) {
			break
		}

		delay := r.calculateDelay(attempt)
		if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < delay {
			break
		}

		select {
		case <-ctx.Done():
			lastErr = ctx.Err()
		case <-time.After(delay):
			continue
		}
		break
	}

	rerr := ports.NewRetrievalError(hotkey, "Fetch", lastErr)
	rerr.Attempts = attempts
	return nil, rerr
}

// calculateDelay calculates the backoff delay for an attempt, including
// jitter to avoid synchronized retries across participants.
func (r *retryStore) calculateDelay(attempt int) time.Duration {
	if attempt > 30 {
		attempt = 30
	}
	delay := r.config.BaseDelay * time.Duration(1<<attempt)
	if delay > r.config.MaxDelay || delay <= 0 {
		delay = r.config.MaxDelay
	}

	jitter := int64(float64(delay) * r.config.JitterPercent)
	if jitter > 0 {
		//nolint:gosec // G404: math/rand is acceptable for retry jitter timing.
		delay += time.Duration(rand.Int64N(2*jitter) - jitter)
	}

	if delay < r.config.BaseDelay {
		return r.config.BaseDelay
	}
	return delay
}
