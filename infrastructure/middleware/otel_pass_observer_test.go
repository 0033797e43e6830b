package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-desirability/internal/domain"
)

type recordedMetric struct {
	name   string
	value  float64
	labels map[string]string
}

// fakeCollector records every call for inspection.
type fakeCollector struct {
	mu         sync.Mutex
	latencies  []recordedMetric
	counters   []recordedMetric
	gauges     []recordedMetric
	histograms []recordedMetric
}

func (f *fakeCollector) RecordLatency(op string, d time.Duration, labels map[string]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.latencies = append(f.latencies, recordedMetric{op, d.Seconds(), labels})
}

func (f *fakeCollector) RecordCounter(name string, v float64, labels map[string]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counters = append(f.counters, recordedMetric{name, v, labels})
}

func (f *fakeCollector) RecordGauge(name string, v float64, labels map[string]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gauges = append(f.gauges, recordedMetric{name, v, labels})
}

func (f *fakeCollector) RecordHistogram(name string, v float64, labels map[string]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.histograms = append(f.histograms, recordedMetric{name, v, labels})
}

func testLookup(t *testing.T) *domain.DesirabilityLookup {
	t.Helper()
	lookup, err := domain.NewDesirabilityLookup(domain.LookupProposal{
		Distribution: map[domain.Source]domain.SourceProposal{
			domain.SourceReddit: {Weight: 0.6, DefaultScaleFactor: 1, LabelScaleFactors: map[domain.Label]float64{"r/bittensor_": 2}},
			domain.SourceX:      {Weight: 0.4, DefaultScaleFactor: 1, LabelScaleFactors: map[domain.Label]float64{"#tao": 0.5, "#btc": 1.5}},
		},
		MaxAgeInHours: 720,
	})
	require.NoError(t, err)
	return lookup
}

func TestOTelPassObserver_Success(t *testing.T) {
	metrics := &fakeCollector{}
	obs := NewOTelPassObserver(metrics)

	ctx := obs.PassStarted(context.Background(), 3)
	require.NotNil(t, ctx)

	obs.PassFinished(ctx, testLookup(t), domain.PassReport{
		Participants: 3,
		Submitters:   2,
		Skipped:      []domain.SkippedParticipant{{Hotkey: "c", Reason: "malformed"}},
		Duration:     25 * time.Millisecond,
	})

	require.Len(t, metrics.counters, 1)
	assert.Equal(t, MetricPassesTotal, metrics.counters[0].name)
	assert.Equal(t, "success", metrics.counters[0].labels["outcome"])

	require.Len(t, metrics.latencies, 1)
	assert.Equal(t, MetricOperationPassDuration, metrics.latencies[0].name)

	gauges := map[string]float64{}
	for _, g := range metrics.gauges {
		gauges[g.labels["state"]] = g.value
	}
	assert.Equal(t, map[string]float64{"total": 3, "submitted": 2, "skipped": 1}, gauges)

	perSource := map[string]int{}
	for _, h := range metrics.histograms {
		assert.Equal(t, MetricLabelScaleFactor, h.name)
		perSource[h.labels["source"]]++
	}
	assert.Equal(t, map[string]int{"reddit": 1, "x": 2}, perSource)
}

func TestOTelPassObserver_Fallback(t *testing.T) {
	metrics := &fakeCollector{}
	obs := NewOTelPassObserver(metrics)

	ctx := obs.PassStarted(context.Background(), 1)
	obs.PassFinished(ctx, nil, domain.PassReport{
		Participants: 1,
		Fallback:     true,
		Err:          errors.New("validation failed"),
	})

	require.Len(t, metrics.counters, 1)
	assert.Equal(t, "fallback", metrics.counters[0].labels["outcome"])
	assert.Empty(t, metrics.histograms)
}

func TestOTelPassObserver_NilMetrics(t *testing.T) {
	obs := NewOTelPassObserver(nil)
	ctx := obs.PassStarted(context.Background(), 0)
	assert.NotPanics(t, func() {
		obs.PassFinished(ctx, testLookup(t), domain.PassReport{})
	})
}
