package domain

import (
	"fmt"
	"math"
)

// SourcePreference is one entry of a preference document: the raw label
// weights a participant assigns within a single source.
type SourcePreference struct {
	Source       Source
	LabelWeights map[Label]float64
}

// PreferenceDocument is the ordered list of source preferences submitted by
// one participant or by the network default. Documents are read-only inputs.
type PreferenceDocument []SourcePreference

// CheckWeights returns ErrInvalidWeight for the first NaN or infinite label
// weight in the document.
func (d PreferenceDocument) CheckWeights() error {
	for _, sp := range d {
		for label, w := range sp.LabelWeights {
			if math.IsNaN(w) || math.IsInf(w, 0) {
				return fmt.Errorf("%w: %v for %s/%s", ErrInvalidWeight, w, sp.Source, label)
			}
		}
	}
	return nil
}

// StakeInfo carries a participant's voting power. Participants that did not
// submit are excluded from the stake denominator and contribute nothing.
type StakeInfo struct {
	Stake     float64
	Submitted bool
}

// Submission pairs a participant's document with its stake.
type Submission struct {
	Hotkey string
	StakeInfo
	Document PreferenceDocument
}

// Participant is a validator as reported by the stake-resolution
// collaborator. A nil Stake counts as a full stake of 1.
type Participant struct {
	Hotkey string   `json:"hotkey" yaml:"hotkey"`
	Stake  *float64 `json:"stake,omitempty" yaml:"stake,omitempty"`
}

// StakeOrDefault returns the participant's stake, or 1 when none was reported.
func (p Participant) StakeOrDefault() float64 {
	if p.Stake == nil {
		return 1
	}
	return *p.Stake
}
