package retrieval

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/go-desirability/internal/ports"
)

// tracedStore wraps every fetch in an OpenTelemetry span.
type tracedStore struct {
	next   ports.PreferenceStore
	tracer trace.Tracer
}

// TracingMiddleware creates middleware that starts a child span per fetch
// using the global tracer provider. A missing submission is recorded as an
// event, not as a span error.
func TracingMiddleware(serviceName string) Middleware {
	tracer := otel.Tracer(serviceName)
	return func(next ports.PreferenceStore) ports.PreferenceStore {
		return &tracedStore{next: next, tracer: tracer}
	}
}

// Fetch executes the fetch within a span.
func (t *tracedStore) Fetch(ctx context.Context, hotkey string) ([]byte, error) {
	ctx, span := t.tracer.Start(ctx, "PreferenceStore.Fetch",
		trace.WithAttributes(attribute.String("participant.hotkey", hotkey)),
	)
	defer span.End()

	data, err := t.next.Fetch(ctx, hotkey)
	switch {
	case err == nil:
		span.SetAttributes(attribute.Int("document.bytes", len(data)))
	case errors.Is(err, ports.ErrNoSubmission):
		span.AddEvent("no_submission")
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return data, err
}
