package retrieval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ahrav/go-desirability/internal/ports"
)

// timeoutStore bounds every fetch with a deadline.
type timeoutStore struct {
	next    ports.PreferenceStore
	timeout time.Duration
}

// TimeoutMiddleware creates middleware that enforces a per-fetch timeout.
// A fetch that exceeds it fails with an error wrapping ports.ErrTimeout.
func TimeoutMiddleware(timeout time.Duration) Middleware {
	return func(next ports.PreferenceStore) ports.PreferenceStore {
		return &timeoutStore{next: next, timeout: timeout}
	}
}

// Fetch executes the fetch with a timeout context.
func (t *timeoutStore) Fetch(ctx context.Context, hotkey string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	data, err := t.next.Fetch(ctx, hotkey)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w after %s: %w", ports.ErrTimeout, t.timeout, err)
	}
	return data, err
}
