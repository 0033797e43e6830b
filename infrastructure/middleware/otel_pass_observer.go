package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/go-desirability/internal/domain"
	"github.com/ahrav/go-desirability/internal/ports"
)

const tracerName = "desirability-pipeline"

var _ ports.PassObserver = (*OTelPassObserver)(nil)

// OTelPassObserver implements observability for aggregation passes using
// OpenTelemetry tracing. It opens a span per pass, records an event for
// every skipped participant and for a fallback, and forwards pass metrics to
// a MetricsCollector.
type OTelPassObserver struct {
	metrics ports.MetricsCollector
	tracer  trace.Tracer
}

// NewOTelPassObserver creates a pass observer using the global tracer
// provider. metrics may be nil.
func NewOTelPassObserver(metrics ports.MetricsCollector) *OTelPassObserver {
	return &OTelPassObserver{
		metrics: metrics,
		tracer:  otel.Tracer(tracerName),
	}
}

// PassStarted implements ports.PassObserver by starting the pass span.
func (o *OTelPassObserver) PassStarted(ctx context.Context, participants int) context.Context {
	ctx, _ = o.tracer.Start(ctx, "Pipeline.Run", trace.WithAttributes(
		attribute.Int("pass.participants", participants),
	))
	return ctx
}

// PassFinished implements ports.PassObserver. It finalizes the span started
// by PassStarted and records pass metrics.
func (o *OTelPassObserver) PassFinished(
	ctx context.Context,
	lookup *domain.DesirabilityLookup,
	report domain.PassReport,
) {
	span := trace.SpanFromContext(ctx)
	defer span.End()

	span.SetAttributes(
		attribute.Int("pass.submitters", report.Submitters),
		attribute.Int("pass.skipped", len(report.Skipped)),
		attribute.Bool("pass.fallback", report.Fallback),
		attribute.Int64("pass.duration_ms", report.Duration.Milliseconds()),
	)

	for _, s := range report.Skipped {
		span.AddEvent("participant.skipped", trace.WithAttributes(
			attribute.String("hotkey", s.Hotkey),
			attribute.String("reason", s.Reason),
		))
	}

	if report.Fallback {
		reason := "unknown"
		if report.Err != nil {
			reason = report.Err.Error()
		}
		span.AddEvent("pass.fallback", trace.WithAttributes(attribute.String("reason", reason)))
		span.SetStatus(codes.Error, "Fell back to default lookup")
	} else {
		span.SetStatus(codes.Ok, "Pass completed successfully")
	}

	o.updateMetrics(lookup, report)
}

// updateMetrics sends the pass outcome and published scale factors to the
// metrics collector.
func (o *OTelPassObserver) updateMetrics(lookup *domain.DesirabilityLookup, report domain.PassReport) {
	if o.metrics == nil {
		return
	}

	outcome := map[string]string{"outcome": report.Outcome(), "status": report.Outcome()}
	o.metrics.RecordLatency(MetricOperationPassDuration, report.Duration, outcome)
	o.metrics.RecordCounter(MetricPassesTotal, 1, outcome)

	o.metrics.RecordGauge(MetricParticipants, float64(report.Participants), map[string]string{"state": "total"})
	o.metrics.RecordGauge(MetricParticipants, float64(report.Submitters), map[string]string{"state": "submitted"})
	o.metrics.RecordGauge(MetricParticipants, float64(len(report.Skipped)), map[string]string{"state": "skipped"})

	if lookup == nil {
		return
	}
	for _, source := range domain.KnownSources() {
		sd, ok := lookup.Source(source)
		if !ok {
			continue
		}
		labels := map[string]string{"source": source.String()}
		for _, factor := range sd.LabelScaleFactors() {
			o.metrics.RecordHistogram(MetricLabelScaleFactor, factor, labels)
		}
	}
}
