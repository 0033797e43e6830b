// Package middleware provides cross-cutting concerns for the aggregation
// pipeline: Prometheus metrics and OpenTelemetry pass tracing.
package middleware

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ahrav/go-desirability/internal/ports"
)

// Metric names understood by PrometheusMetrics. Any other name is routed to
// the generic operation counter, gauge or histogram.
const (
	MetricPassesTotal           = "passes_total"
	MetricPreferenceFetches     = "preference_fetches_total"
	MetricParticipants          = "participants"
	MetricLabelScaleFactor      = "label_scale_factor"
	MetricOperationPassDuration = "desirability_pass"
)

// PrometheusMetrics implements the MetricsCollector interface using
// Prometheus. It tracks pass outcomes and latency, retrieval health and the
// distribution of published label scale factors.
type PrometheusMetrics struct {
	passesTotal      *prometheus.CounterVec
	fetchesTotal     *prometheus.CounterVec
	participants     *prometheus.GaugeVec
	scaleFactors     *prometheus.HistogramVec
	executionLatency *prometheus.HistogramVec
	operationCounter *prometheus.CounterVec
	systemGauges     *prometheus.GaugeVec
	histograms       *prometheus.HistogramVec
}

// NewPrometheusMetrics creates a PrometheusMetrics instance and registers
// all metrics with reg. A nil reg uses the default Prometheus registerer.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &PrometheusMetrics{
		passesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "desirability_passes_total",
				Help: "Aggregation passes by outcome.",
			},
			[]string{"outcome"},
		),
		fetchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "desirability_preference_fetches_total",
				Help: "Preference document fetches by status.",
			},
			[]string{"status"},
		),
		participants: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "desirability_participants",
				Help: "Participants seen by the latest pass, by state.",
			},
			[]string{"state"},
		),
		scaleFactors: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "desirability_label_scale_factor",
				Help:    "Label scale factors of the published lookup.",
				Buckets: []float64{-1, -0.5, 0, 0.25, 0.5, 0.75, 1, 2, 4, 8, 16, 23.4},
			},
			[]string{"source"},
		),

		executionLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "desirability_operation_duration_seconds",
				Help:    "Execution time of pipeline operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "status"},
		),
		operationCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "desirability_operations_total",
				Help: "Total number of other pipeline events.",
			},
			[]string{"operation", "status"},
		),
		systemGauges: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "desirability_system_state",
				Help: "Current system state values.",
			},
			[]string{"metric"},
		),
		histograms: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "desirability_values",
				Help:    "Distribution of other recorded values.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"metric"},
		),
	}
}

// RecordLatency implements the MetricsCollector interface by recording
// execution latency in a Prometheus histogram.
func (pm *PrometheusMetrics) RecordLatency(
	operation string,
	duration time.Duration,
	labels map[string]string,
) {
	pm.executionLatency.WithLabelValues(operation, labelOr(labels, "status", "unknown")).
		Observe(duration.Seconds())
}

// RecordCounter implements the MetricsCollector interface by incrementing
// Prometheus counters.
func (pm *PrometheusMetrics) RecordCounter(
	metric string, value float64, labels map[string]string,
) {
	switch metric {
	case MetricPassesTotal:
		pm.passesTotal.WithLabelValues(labelOr(labels, "outcome", "unknown")).Add(value)
	case MetricPreferenceFetches:
		pm.fetchesTotal.WithLabelValues(labelOr(labels, "status", "unknown")).Add(value)
	default:
		pm.operationCounter.WithLabelValues(metric, labelOr(labels, "status", "success")).Add(value)
	}
}

// RecordGauge implements the MetricsCollector interface by setting
// Prometheus gauge values.
func (pm *PrometheusMetrics) RecordGauge(
	metric string, value float64, labels map[string]string,
) {
	switch metric {
	case MetricParticipants:
		pm.participants.WithLabelValues(labelOr(labels, "state", "total")).Set(value)
	default:
		pm.systemGauges.WithLabelValues(metric).Set(value)
	}
}

// RecordHistogram implements the MetricsCollector interface by recording
// values in a Prometheus histogram.
func (pm *PrometheusMetrics) RecordHistogram(
	metric string, value float64, labels map[string]string,
) {
	switch metric {
	case MetricLabelScaleFactor:
		pm.scaleFactors.WithLabelValues(labelOr(labels, "source", "unknown")).Observe(value)
	default:
		pm.histograms.WithLabelValues(metric).Observe(value)
	}
}

func labelOr(labels map[string]string, key, fallback string) string {
	if v := labels[key]; v != "" {
		return v
	}
	return fallback
}

// Compile-time verification that PrometheusMetrics implements MetricsCollector.
var _ ports.MetricsCollector = (*PrometheusMetrics)(nil)
