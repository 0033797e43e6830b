package domain

import (
	"maps"
	"slices"
	"time"
)

// Bounds enforced on every desirability lookup.
const (
	MinSourceWeight = 0.0
	MaxSourceWeight = 1.0

	MinDefaultScaleFactor = -1.0
	MaxDefaultScaleFactor = 1.0

	// MinLabelScaleFactor and MaxLabelScaleFactor bound per-label factors.
	// One validator with full stake putting all weight on a single label
	// reaches roughly 23.33 under the default tuning.
	MinLabelScaleFactor = -1.0
	MaxLabelScaleFactor = 23.4

	// DefaultScaleFactor applies to labels without an explicit factor.
	DefaultScaleFactor = 1.0
)

const lookupEntity = "DesirabilityLookup"

// SourceProposal is the mutable, untrusted shape of a SourceDesirability.
type SourceProposal struct {
	Weight             float64
	DefaultScaleFactor float64
	LabelScaleFactors  map[Label]float64
}

// LookupProposal is a fully shaped but not yet trusted desirability lookup.
// It becomes a DesirabilityLookup only through NewDesirabilityLookup.
type LookupProposal struct {
	Distribution  map[Source]SourceProposal
	MaxAgeInHours int
}

// ValidateProposal checks every lookup invariant and returns the first
// violation as a *ValidationError. Sources are checked in canonical order and
// labels in sorted order so the reported violation is deterministic.
func ValidateProposal(p LookupProposal) error {
	var sum float64
	for _, source := range KnownSources() {
		sp, ok := p.Distribution[source]
		if !ok {
			return &ValidationError{
				Entity: lookupEntity,
				Field:  "distribution",
				Source: source,
				Reason: "every known source must be present",
			}
		}
		if err := validateSourceProposal(source, sp); err != nil {
			return err
		}
		sum += sp.Weight
	}

	for source := range p.Distribution {
		if !source.IsKnown() {
			return &ValidationError{
				Entity: lookupEntity,
				Field:  "distribution",
				Value:  float64(source),
				Reason: "unknown source",
			}
		}
	}

	if sum != 1.0 {
		return &ValidationError{
			Entity: lookupEntity,
			Field:  "distribution.weight_sum",
			Value:  sum,
			Reason: "source weights must sum to exactly 1.0",
		}
	}

	if p.MaxAgeInHours <= 0 {
		return &ValidationError{
			Entity: lookupEntity,
			Field:  "max_age_in_hours",
			Value:  float64(p.MaxAgeInHours),
			Reason: "must be a positive integer",
		}
	}

	return nil
}

func validateSourceProposal(source Source, sp SourceProposal) error {
	// NaN fails every comparison below, so bounds are written to reject it.
	if !(sp.Weight >= MinSourceWeight && sp.Weight <= MaxSourceWeight) {
		return &ValidationError{
			Entity: lookupEntity,
			Field:  "weight",
			Source: source,
			Value:  sp.Weight,
			Reason: "must be between 0 and 1, inclusive",
		}
	}
	if !(sp.DefaultScaleFactor >= MinDefaultScaleFactor && sp.DefaultScaleFactor <= MaxDefaultScaleFactor) {
		return &ValidationError{
			Entity: lookupEntity,
			Field:  "default_scale_factor",
			Source: source,
			Value:  sp.DefaultScaleFactor,
			Reason: "must be between -1 and 1, inclusive",
		}
	}
	for _, label := range slices.Sorted(maps.Keys(sp.LabelScaleFactors)) {
		factor := sp.LabelScaleFactors[label]
		if !(factor >= MinLabelScaleFactor && factor <= MaxLabelScaleFactor) {
			return &ValidationError{
				Entity: lookupEntity,
				Field:  "label_scale_factors",
				Source: source,
				Label:  label,
				Value:  factor,
				Reason: "must be between -1 and 23.4, inclusive",
			}
		}
	}
	return nil
}

// SourceDesirability is the validated, read-only desirability of one source.
type SourceDesirability struct {
	weight             float64
	defaultScaleFactor float64
	labelScaleFactors  map[Label]float64
}

// Weight returns the share of total reward allocated to the source.
func (s SourceDesirability) Weight() float64 { return s.weight }

// DefaultScaleFactor returns the factor applied to labels without an
// explicit entry.
func (s SourceDesirability) DefaultScaleFactor() float64 { return s.defaultScaleFactor }

// LabelScaleFactors returns a copy of the per-label factors.
func (s SourceDesirability) LabelScaleFactors() map[Label]float64 {
	return maps.Clone(s.labelScaleFactors)
}

// ScaleFactor returns the factor for label, falling back to the default
// scale factor.
func (s SourceDesirability) ScaleFactor(label Label) float64 {
	if f, ok := s.labelScaleFactors[label]; ok {
		return f
	}
	return s.defaultScaleFactor
}

// DesirabilityLookup is the immutable, validated consensus table consumed by
// the reward engine. It is safe for concurrent use without locking; updates
// are made by building a new instance.
type DesirabilityLookup struct {
	distribution  map[Source]SourceDesirability
	maxAgeInHours int
}

// NewDesirabilityLookup validates p and freezes a deep copy of it.
func NewDesirabilityLookup(p LookupProposal) (*DesirabilityLookup, error) {
	if err := ValidateProposal(p); err != nil {
		return nil, err
	}

	dist := make(map[Source]SourceDesirability, len(p.Distribution))
	for source, sp := range p.Distribution {
		labels := maps.Clone(sp.LabelScaleFactors)
		if labels == nil {
			labels = make(map[Label]float64)
		}
		dist[source] = SourceDesirability{
			weight:             sp.Weight,
			defaultScaleFactor: sp.DefaultScaleFactor,
			labelScaleFactors:  labels,
		}
	}

	return &DesirabilityLookup{distribution: dist, maxAgeInHours: p.MaxAgeInHours}, nil
}

// Source returns the desirability of source.
func (l *DesirabilityLookup) Source(source Source) (SourceDesirability, bool) {
	sd, ok := l.distribution[source]
	return sd, ok
}

// ScaleFactor returns the scale factor the reward engine applies to data
// with the given source and label. Unknown sources score 0.
func (l *DesirabilityLookup) ScaleFactor(source Source, label Label) float64 {
	sd, ok := l.distribution[source]
	if !ok {
		return 0
	}
	return sd.ScaleFactor(label)
}

// MaxAgeInHours returns the age limit beyond which data earns no reward.
func (l *DesirabilityLookup) MaxAgeInHours() int { return l.maxAgeInHours }

// MaxAge returns MaxAgeInHours as a duration.
func (l *DesirabilityLookup) MaxAge() time.Duration {
	return time.Duration(l.maxAgeInHours) * time.Hour
}

// Records serializes the per-label factors into the aggregate record shape.
func (l *DesirabilityLookup) Records() []SourceRecord {
	out := make([]SourceRecord, 0, len(l.distribution))
	for _, source := range KnownSources() {
		sd, ok := l.distribution[source]
		if !ok {
			continue
		}
		out = append(out, newSourceRecord(source, sd.labelScaleFactors))
	}
	return out
}
