package retrieval

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ahrav/go-desirability/internal/ports"
)

// ErrCircuitOpen indicates that the circuit breaker rejected a fetch.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreakerState represents the current state of a circuit breaker.
type CircuitBreakerState int

// Circuit breaker states.
const (
	// StateClosed allows all fetches to pass through normally.
	StateClosed CircuitBreakerState = iota

	// StateOpen rejects all fetches immediately.
	StateOpen

	// StateHalfOpen allows a probe fetch to test recovery.
	StateHalfOpen
)

// CircuitBreaker opens after too many consecutive service failures so a
// repository outage costs one fast failure per participant instead of a
// full timeout each. Missing submissions do not count as failures.
type CircuitBreaker struct {
	mu               sync.Mutex
	state            CircuitBreakerState
	failureCount     int
	maxFailures      int
	cooldownDuration time.Duration
	lastFailure      time.Time
}

// NewCircuitBreaker creates a circuit breaker that opens after maxFailures
// consecutive failures and probes again after cooldown.
func NewCircuitBreaker(maxFailures int, cooldown time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		state:            StateClosed,
		maxFailures:      maxFailures,
		cooldownDuration: cooldown,
	}
}

// allow reports whether a call may proceed, moving an expired open circuit
// to half-open.
func (cb *CircuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen {
		if time.Since(cb.lastFailure) < cb.cooldownDuration {
			return false
		}
		cb.state = StateHalfOpen
	}
	return true
}

// record updates the circuit with the outcome of a call.
func (cb *CircuitBreaker) record(failed bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if !failed {
		cb.failureCount = 0
		cb.state = StateClosed
		return
	}

	cb.failureCount++
	cb.lastFailure = time.Now()
	if cb.state == StateHalfOpen || cb.failureCount >= cb.maxFailures {
		cb.state = StateOpen
	}
}

// State returns the current circuit breaker state.
func (cb *CircuitBreaker) State() CircuitBreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

type circuitBreakerStore struct {
	next ports.PreferenceStore
	cb   *CircuitBreaker
}

// CircuitBreakerMiddleware creates middleware backed by cb. Sharing one
// breaker across the chain is intended: every participant is served by the
// same repository.
func CircuitBreakerMiddleware(cb *CircuitBreaker) Middleware {
	return func(next ports.PreferenceStore) ports.PreferenceStore {
		return &circuitBreakerStore{next: next, cb: cb}
	}
}

// Fetch executes the fetch through the circuit breaker.
func (c *circuitBreakerStore) Fetch(ctx context.Context, hotkey string) ([]byte, error) {
	if !c.cb.allow() {
		return nil, ports.NewRetrievalError(hotkey, "Fetch", ErrCircuitOpen)
	}

	data, err := c.next.Fetch(ctx, hotkey)
	c.cb.record(err != nil && !errors.Is(err, ports.ErrNoSubmission))
	return data, err
}
