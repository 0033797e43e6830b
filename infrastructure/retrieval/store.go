// Package retrieval provides preference store adapters and a middleware
// chain that adds timeouts, pacing, retries, circuit breaking and metrics to
// any ports.PreferenceStore.
//
// Example:
//
//	store := retrieval.Chain(retrieval.NewDirStore("preferences"),
//	    retrieval.TimeoutMiddleware(10*time.Second),
//	    retrieval.RateLimitMiddleware(10, 1),
//	    retrieval.RetryMiddleware(retrieval.DefaultRetryConfig()),
//	    retrieval.MetricsMiddleware(metrics),
//	)
package retrieval

import (
	"context"

	"github.com/ahrav/go-desirability/internal/ports"
)

// Middleware wraps a PreferenceStore to add cross-cutting functionality.
type Middleware func(ports.PreferenceStore) ports.PreferenceStore

// Chain applies middleware to store. The first middleware is the outermost
// wrapper, so it sees every call first.
func Chain(store ports.PreferenceStore, middleware ...Middleware) ports.PreferenceStore {
	for i := len(middleware) - 1; i >= 0; i-- {
		store = middleware[i](store)
	}
	return store
}

// StoreFunc adapts an ordinary function to the PreferenceStore interface.
type StoreFunc func(ctx context.Context, hotkey string) ([]byte, error)

// Fetch calls f(ctx, hotkey).
func (f StoreFunc) Fetch(ctx context.Context, hotkey string) ([]byte, error) {
	return f(ctx, hotkey)
}
