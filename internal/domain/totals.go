package domain

import (
	"maps"
	"slices"
)

// RawTotals maps each source to its accumulated label weights. Values are
// unbounded until validated by the lookup construction step.
type RawTotals map[Source]map[Label]float64

// NewRawTotals seeds totals with the weights of a preference document. When a
// document lists the same source/label pair twice, the later weight wins.
func NewRawTotals(seed PreferenceDocument) RawTotals {
	t := make(RawTotals)
	for _, sp := range seed {
		for label, weight := range sp.LabelWeights {
			t.Set(sp.Source, label, weight)
		}
	}
	return t
}

// Set stores weight for the source/label pair, replacing any previous value.
func (t RawTotals) Set(source Source, label Label, weight float64) {
	labels, ok := t[source]
	if !ok {
		labels = make(map[Label]float64)
		t[source] = labels
	}
	labels[label] = weight
}

// Add upserts delta into the running total for the source/label pair.
func (t RawTotals) Add(source Source, label Label, delta float64) {
	labels, ok := t[source]
	if !ok {
		labels = make(map[Label]float64)
		t[source] = labels
	}
	labels[label] += delta
}

// Get returns the total for the source/label pair.
func (t RawTotals) Get(source Source, label Label) (float64, bool) {
	v, ok := t[source][label]
	return v, ok
}

// Clone returns a deep copy of t.
func (t RawTotals) Clone() RawTotals {
	out := make(RawTotals, len(t))
	for source, labels := range t {
		out[source] = maps.Clone(labels)
	}
	return out
}

// Records serializes t into the aggregate record shape, sources in canonical
// order.
func (t RawTotals) Records() []SourceRecord {
	sources := slices.Sorted(maps.Keys(t))
	out := make([]SourceRecord, 0, len(sources))
	for _, source := range sources {
		out = append(out, newSourceRecord(source, t[source]))
	}
	return out
}

// SourceRecord is the serialized form shared by aggregate totals and lookups:
// {"source_name": "reddit", "label_weights": {"r/bitcoin": 1.2}}.
type SourceRecord struct {
	SourceName   string             `json:"source_name" yaml:"source_name"`
	LabelWeights map[string]float64 `json:"label_weights" yaml:"label_weights"`
}

func newSourceRecord(source Source, labels map[Label]float64) SourceRecord {
	weights := make(map[string]float64, len(labels))
	for label, w := range labels {
		weights[string(label)] = w
	}
	return SourceRecord{SourceName: source.String(), LabelWeights: weights}
}
