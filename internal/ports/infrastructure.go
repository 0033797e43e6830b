// Package ports declares the interfaces the aggregation core uses to reach
// external collaborators.
package ports

import (
	"context"
	"time"

	"github.com/ahrav/go-desirability/internal/domain"
)

// PreferenceStore retrieves the raw preference document a participant
// submitted for the current cycle.
// Implementations could read from a version-controlled repository pinned to
// an on-chain commit, an object store, or a local directory.
type PreferenceStore interface {
	// Fetch returns the raw document bytes for hotkey.
	//
	// Implementations should return an error wrapping ErrNoSubmission when
	// the participant has not published a document, and should honour ctx
	// cancellation and deadlines.
	Fetch(ctx context.Context, hotkey string) ([]byte, error)
}

// StakeResolver reports the participants of the current cycle and their
// stake fractions.
type StakeResolver interface {
	// Participants returns every participant eligible to vote. Order is not
	// significant.
	Participants(ctx context.Context) ([]domain.Participant, error)
}

// MetricsCollector defines the interface for collecting operational metrics.
// Implementations should integrate with observability platforms like
// Prometheus, OpenTelemetry, or custom monitoring solutions.
type MetricsCollector interface {
	// RecordLatency records the execution time of an operation.
	// The labels map provides additional context for the metric.
	RecordLatency(operation string, duration time.Duration, labels map[string]string)

	// RecordCounter increments a counter metric.
	// This is useful for tracking events like fallbacks, retrieval failures, etc.
	RecordCounter(metric string, value float64, labels map[string]string)

	// RecordGauge sets the current value of a gauge metric.
	// This is useful for tracking values like submitting participants.
	RecordGauge(metric string, value float64, labels map[string]string)

	// RecordHistogram records a value in a histogram.
	// This is useful for tracking distributions like label scale factors.
	RecordHistogram(metric string, value float64, labels map[string]string)
}

// PassObserver is notified around every aggregation pass. Implementations
// typically open a trace span in PassStarted and close it in PassFinished.
type PassObserver interface {
	// PassStarted is called before retrieval begins. The returned context
	// is used for the remainder of the pass.
	PassStarted(ctx context.Context, participants int) context.Context

	// PassFinished is called with the lookup the pass produced, which is
	// the default-only lookup when the pass fell back.
	PassFinished(ctx context.Context, lookup *domain.DesirabilityLookup, report domain.PassReport)
}
