package domain

// Aggregator defines the interface for combining the network default
// preferences and stake-weighted participant submissions into raw totals.
// Implementations must not mutate their inputs and must produce results
// independent of the order of submissions.
type Aggregator interface {
	// Aggregate seeds the totals with defaults and adds the contribution of
	// every submitting participant.
	//
	// The method should handle edge cases such as:
	//   - No submitting participants (return the defaults unchanged)
	//   - Participants referencing labels absent from the defaults
	//   - NaN, infinite or negative stakes (return error)
	//   - Submitted documents with NaN or infinite weights (drop the submitter)
	//
	// Example:
	//
	//	totals, err := aggregator.Aggregate(defaults, []Submission{
	//	    {Hotkey: "5F...", StakeInfo: StakeInfo{Stake: 0.4, Submitted: true}, Document: doc},
	//	})
	Aggregate(defaults PreferenceDocument, submissions []Submission) (RawTotals, error)
}

// LookupBuilder converts validated raw totals into an immutable lookup.
type LookupBuilder interface {
	Build(totals RawTotals) (*DesirabilityLookup, error)
}
