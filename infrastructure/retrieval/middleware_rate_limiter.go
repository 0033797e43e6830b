package retrieval

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/ahrav/go-desirability/internal/ports"
)

// rateLimitedStore paces fetches with a token bucket so a retrieval fan-out
// does not overwhelm the backing repository.
type rateLimitedStore struct {
	next    ports.PreferenceStore
	limiter *rate.Limiter
}

// RateLimitMiddleware creates middleware that enforces rate limiting using a
// token bucket algorithm. The limit parameter sets fetches per second, while
// burst allows temporary spikes above the sustained rate. The limiter is
// shared by every store the middleware wraps.
func RateLimitMiddleware(limit rate.Limit, burst int) Middleware {
	limiter := rate.NewLimiter(limit, burst)

	return func(next ports.PreferenceStore) ports.PreferenceStore {
		return &rateLimitedStore{next: next, limiter: limiter}
	}
}

// Fetch waits for rate limit permission before forwarding the fetch. When
// the token cannot be granted before ctx's deadline the fetch fails with
// context.DeadlineExceeded, which is not retryable.
func (r *rateLimitedStore) Fetch(ctx context.Context, hotkey string) ([]byte, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if _, ok := ctx.Deadline(); ok {
			return nil, fmt.Errorf("rate limit wait: %w", context.DeadlineExceeded)
		}
		return nil, fmt.Errorf("%w: %w", ports.ErrRateLimited, err)
	}
	return r.next.Fetch(ctx, hotkey)
}
