package aggregation

import (
	"cmp"
	"fmt"
	"maps"
	"math"
	"slices"

	"github.com/ahrav/go-desirability/internal/domain"
)

var _ domain.Aggregator = (*WeightedAggregator)(nil)

// Default tuning for the weight aggregator.
const (
	// DefaultTotalValiWeight is the share of reward mass steered by
	// validator votes; the remainder belongs to the network default.
	DefaultTotalValiWeight = 0.7

	// DefaultAmplificationFactor inflates validator contributions relative
	// to the default floor.
	DefaultAmplificationFactor = 10.0
)

// WeightedAggregator merges the network default preferences with
// stake-weighted validator preferences into raw totals.
//
// Algorithm:
//  1. Seed totals with the default document verbatim.
//  2. normalizer = (1 - TotalValiWeight) / AmplificationFactor.
//  3. total_stake = Σ stake over submitting participants. Zero means the
//     result is the default floor only. A submitter whose document holds a
//     NaN or infinite weight is dropped and counts as non-submitting.
//  4. Each submitter adds TotalValiWeight * stake/total_stake * weight / normalizer
//     to every label it names, creating labels that are absent.
//
// Because the normalizer is smaller than the subnet weight, validator
// consensus can push a label above 1.0; the lookup bounds it later.
//
// Determinism: submitters are sorted by hotkey before both the stake sum
// and the label sums, so permuting the input yields bit-identical totals.
//
// Concurrency: stateless after construction and safe for concurrent use.
type WeightedAggregator struct {
	config WeightedAggregatorConfig
}

// WeightedAggregatorConfig holds the two tunable constants of the
// aggregation. Configuration is immutable after construction.
type WeightedAggregatorConfig struct {
	// TotalValiWeight is the fraction of reward mass controlled by
	// validator votes, in the open interval (0, 1).
	TotalValiWeight float64 `yaml:"total_vali_weight" json:"total_vali_weight" env:"TOTAL_VALI_WEIGHT" validate:"gt=0,lt=1"`

	// AmplificationFactor scales validator contributions up relative to the
	// default floor. Must be greater than 1.
	AmplificationFactor float64 `yaml:"amplification_factor" json:"amplification_factor" env:"AMPLIFICATION_FACTOR" validate:"gt=1"`
}

// DefaultWeightedAggregatorConfig returns the production tuning.
func DefaultWeightedAggregatorConfig() WeightedAggregatorConfig {
	return WeightedAggregatorConfig{
		TotalValiWeight:     DefaultTotalValiWeight,
		AmplificationFactor: DefaultAmplificationFactor,
	}
}

// Normalizer returns (1 - TotalValiWeight) / AmplificationFactor.
func (c WeightedAggregatorConfig) Normalizer() float64 {
	return (1 - c.TotalValiWeight) / c.AmplificationFactor
}

// NewWeightedAggregator creates a WeightedAggregator with validated
// configuration.
func NewWeightedAggregator(config WeightedAggregatorConfig) (*WeightedAggregator, error) {
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidConfiguration, err)
	}
	return &WeightedAggregator{config: config}, nil
}

// Config returns the aggregator configuration.
func (a *WeightedAggregator) Config() WeightedAggregatorConfig { return a.config }

// Aggregate implements domain.Aggregator.
//
// Errors:
//   - domain.ErrInvalidStake for a negative or non-finite stake of a submitter
//   - domain.ErrInvalidWeight for a non-finite label weight in defaults
//   - ErrDuplicateHotkey when two submitters share a hotkey
//   - ErrNonFiniteTotal when accumulation overflows
func (a *WeightedAggregator) Aggregate(
	defaults domain.PreferenceDocument,
	submissions []domain.Submission,
) (domain.RawTotals, error) {
	if err := defaults.CheckWeights(); err != nil {
		return nil, fmt.Errorf("default document: %w", err)
	}
	totals := domain.NewRawTotals(defaults)

	voters, err := submitters(submissions)
	if err != nil {
		return nil, err
	}

	var totalStake float64
	for _, v := range voters {
		totalStake += v.Stake
	}
	if totalStake == 0 {
		return totals, nil
	}

	normalizer := a.config.Normalizer()
	for _, v := range voters {
		participantWeight := a.config.TotalValiWeight * (v.Stake / totalStake)
		for _, sp := range v.Document {
			for _, label := range slices.Sorted(maps.Keys(sp.LabelWeights)) {
				totals.Add(sp.Source, label, participantWeight*sp.LabelWeights[label]/normalizer)
			}
		}
	}

	for source, labels := range totals {
		for label, total := range labels {
			if math.IsNaN(total) || math.IsInf(total, 0) {
				return nil, fmt.Errorf("%w: %s/%s", ErrNonFiniteTotal, source, label)
			}
		}
	}

	return totals, nil
}

// submitters filters the participants that submitted with a usable document,
// validates their stakes, and returns them in a stable order.
func submitters(submissions []domain.Submission) ([]domain.Submission, error) {
	voters := make([]domain.Submission, 0, len(submissions))
	for _, s := range submissions {
		if !s.Submitted {
			continue
		}
		if math.IsNaN(s.Stake) || math.IsInf(s.Stake, 0) || s.Stake < 0 {
			return nil, fmt.Errorf("%w: participant %s has stake %v", domain.ErrInvalidStake, s.Hotkey, s.Stake)
		}
		if s.Document.CheckWeights() != nil {
			continue
		}
		voters = append(voters, s)
	}

	slices.SortFunc(voters, func(a, b domain.Submission) int {
		return cmp.Or(cmp.Compare(a.Hotkey, b.Hotkey), cmp.Compare(a.Stake, b.Stake))
	})
	for i := 1; i < len(voters); i++ {
		if voters[i].Hotkey == voters[i-1].Hotkey {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateHotkey, voters[i].Hotkey)
		}
	}
	return voters, nil
}
