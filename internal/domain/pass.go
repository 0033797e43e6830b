package domain

import "time"

// SkippedParticipant records a participant whose document could not be used
// and who was therefore treated as non-submitting.
type SkippedParticipant struct {
	Hotkey string
	Reason string
}

// PassReport summarizes one aggregation pass.
type PassReport struct {
	// Participants is the number of participants considered.
	Participants int
	// Submitters counts participants whose documents were aggregated.
	Submitters int
	// Skipped lists participants degraded to non-submitting, sorted by hotkey.
	Skipped []SkippedParticipant
	// Fallback is set when the pass returned the default-only lookup.
	Fallback bool
	// Err is the cause of the fallback.
	Err      error
	Duration time.Duration
}

// Outcome returns "fallback" or "success".
func (r PassReport) Outcome() string {
	if r.Fallback {
		return "fallback"
	}
	return "success"
}
