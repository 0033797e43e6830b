// Package domain contains pure, dependency-light domain models and types
// for desirability aggregation.
package domain

import (
	"fmt"
	"strings"
)

// Source identifies a content origin whose data is scored by the reward
// engine. The set of sources is closed and defined by the source registry.
type Source int

// Known sources. The zero value is deliberately not a valid source.
const (
	SourceReddit Source = iota + 1
	SourceX
)

// sourceInfo carries the static attributes of a Source.
type sourceInfo struct {
	source Source
	name   string
	// weight is the share of total reward allocated to the source.
	weight float64
}

// sourceRegistry is the read-only table of known sources in canonical order.
// Weights must sum to exactly 1.0 when added in this order.
var sourceRegistry = [...]sourceInfo{
	{source: SourceReddit, name: "reddit", weight: 0.6},
	{source: SourceX, name: "x", weight: 0.4},
}

// KnownSources returns every registered source in canonical order.
// The returned slice is a fresh copy and may be modified by the caller.
func KnownSources() []Source {
	out := make([]Source, 0, len(sourceRegistry))
	for _, info := range sourceRegistry {
		out = append(out, info.source)
	}
	return out
}

// KnownSourceNames returns the canonical names of every registered source.
func KnownSourceNames() []string {
	out := make([]string, 0, len(sourceRegistry))
	for _, info := range sourceRegistry {
		out = append(out, info.name)
	}
	return out
}

// ParseSource resolves a source name case-insensitively.
func ParseSource(name string) (Source, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	for _, info := range sourceRegistry {
		if info.name == normalized {
			return info.source, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownSource, name)
}

func (s Source) info() (sourceInfo, bool) {
	for _, info := range sourceRegistry {
		if info.source == s {
			return info, true
		}
	}
	return sourceInfo{}, false
}

// IsKnown reports whether s is present in the source registry.
func (s Source) IsKnown() bool {
	_, ok := s.info()
	return ok
}

// String returns the canonical source name.
func (s Source) String() string {
	if info, ok := s.info(); ok {
		return info.name
	}
	return fmt.Sprintf("source(%d)", int(s))
}

// Weight returns the fixed importance weight of the source, or 0 for an
// unknown source.
func (s Source) Weight() float64 {
	info, _ := s.info()
	return info.weight
}

// MarshalText implements encoding.TextMarshaler so sources can key JSON maps.
func (s Source) MarshalText() ([]byte, error) {
	if !s.IsKnown() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownSource, int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Source) UnmarshalText(text []byte) error {
	parsed, err := ParseSource(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
