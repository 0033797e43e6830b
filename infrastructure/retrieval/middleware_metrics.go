package retrieval

import (
	"context"
	"errors"
	"time"

	"github.com/ahrav/go-desirability/internal/ports"
)

// metricsStore records fetch latency and outcome.
type metricsStore struct {
	next      ports.PreferenceStore
	collector ports.MetricsCollector
}

// MetricsMiddleware creates middleware that collects fetch metrics.
func MetricsMiddleware(collector ports.MetricsCollector) Middleware {
	return func(next ports.PreferenceStore) ports.PreferenceStore {
		return &metricsStore{next: next, collector: collector}
	}
}

// Fetch executes the fetch while recording its latency and status.
func (m *metricsStore) Fetch(ctx context.Context, hotkey string) ([]byte, error) {
	start := time.Now()
	data, err := m.next.Fetch(ctx, hotkey)

	if m.collector != nil {
		labels := map[string]string{"status": fetchStatus(err)}
		m.collector.RecordLatency("preference_fetch", time.Since(start), labels)
		m.collector.RecordCounter("preference_fetches_total", 1, labels)
	}

	return data, err
}

func fetchStatus(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ports.ErrNoSubmission):
		return "no_submission"
	case errors.Is(err, ErrCircuitOpen):
		return "circuit_open"
	case errors.Is(err, ports.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}
