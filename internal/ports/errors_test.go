package ports

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestRetrievalError tests the functionality of the RetrievalError error type.
// It covers error creation, message formatting, and retryable logic.
func TestRetrievalError(t *testing.T) {
	t.Run("basic error", func(t *testing.T) {
		err := NewRetrievalError("5Fhot", "Fetch", ErrServiceUnavailable)

		assert.Equal(t, "retrieval error: hotkey=5Fhot, operation=Fetch, err=service unavailable", err.Error())
		assert.Equal(t, "5Fhot", err.Hotkey)
		assert.True(t, errors.Is(err, ErrServiceUnavailable))
	})

	t.Run("with attempts", func(t *testing.T) {
		err := &RetrievalError{Hotkey: "a", Operation: "Fetch", Err: ErrTimeout, Attempts: 3}
		assert.Contains(t, err.Error(), "attempts=3")
	})

	t.Run("retryable errors", func(t *testing.T) {
		for _, baseErr := range []error{ErrRateLimited, ErrServiceUnavailable, ErrTimeout} {
			err := NewRetrievalError("a", "Fetch", baseErr)
			assert.True(t, err.IsRetryable(), "%v should be retryable", baseErr)
		}

		for _, baseErr := range []error{ErrNoSubmission, ErrConfigNotFound, errors.New("boom")} {
			err := NewRetrievalError("a", "Fetch", baseErr)
			assert.False(t, err.IsRetryable(), "%v should not be retryable", baseErr)
		}
	})
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.True(t, IsRetryable(fmt.Errorf("git fetch: %w", ErrServiceUnavailable)))
	assert.False(t, IsRetryable(fmt.Errorf("%w: %w", ErrNoSubmission, ErrTimeout)),
		"a missing submission is never retried")
}

// TestConfigError tests the functionality of the ConfigError error type.
func TestConfigError(t *testing.T) {
	err := NewConfigError("aggregation.total_vali_weight", ErrConfigNotFound)

	assert.Equal(t, "config error: key=aggregation.total_vali_weight, err=configuration not found", err.Error())
	assert.Equal(t, "aggregation.total_vali_weight", err.ConfigKey)
	assert.True(t, errors.Is(err, ErrConfigNotFound))
}
