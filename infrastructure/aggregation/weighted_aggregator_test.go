package aggregation

import (
	"math"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-desirability/internal/domain"
)

func newTestAggregator(t *testing.T, tvw, amp float64) *WeightedAggregator {
	t.Helper()
	agg, err := NewWeightedAggregator(WeightedAggregatorConfig{TotalValiWeight: tvw, AmplificationFactor: amp})
	require.NoError(t, err)
	return agg
}

func doc(source domain.Source, weights map[domain.Label]float64) domain.PreferenceDocument {
	return domain.PreferenceDocument{{Source: source, LabelWeights: weights}}
}

func submission(hotkey string, stake float64, submitted bool, d domain.PreferenceDocument) domain.Submission {
	return domain.Submission{
		Hotkey:    hotkey,
		StakeInfo: domain.StakeInfo{Stake: stake, Submitted: submitted},
		Document:  d,
	}
}

func TestNewWeightedAggregator(t *testing.T) {
	tests := []struct {
		name    string
		config  WeightedAggregatorConfig
		wantErr bool
	}{
		{name: "defaults", config: DefaultWeightedAggregatorConfig()},
		{name: "zero validator weight", config: WeightedAggregatorConfig{TotalValiWeight: 0, AmplificationFactor: 3}, wantErr: true},
		{name: "full validator weight", config: WeightedAggregatorConfig{TotalValiWeight: 1, AmplificationFactor: 3}, wantErr: true},
		{name: "amplification of one", config: WeightedAggregatorConfig{TotalValiWeight: 0.3, AmplificationFactor: 1}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg, err := NewWeightedAggregator(tt.config)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
				assert.Nil(t, agg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.config, agg.Config())
		})
	}
}

func TestWeightedAggregator_SingleValidatorScenario(t *testing.T) {
	agg := newTestAggregator(t, 0.3, 3)
	defaults := doc(domain.SourceX, map[domain.Label]float64{"news": 0.5})

	totals, err := agg.Aggregate(defaults, []domain.Submission{
		submission("validator-1", 1.0, true, doc(domain.SourceX, map[domain.Label]float64{"news": 1.0})),
	})
	require.NoError(t, err)

	assert.InDelta(t, 0.7/3, agg.Config().Normalizer(), 1e-12)
	got, ok := totals.Get(domain.SourceX, "news")
	require.True(t, ok)
	// 0.5 + 0.3*1.0*1.0/(0.7/3) = 0.5 + 1.2857...
	assert.InDelta(t, 1.7857142857, got, 1e-9)
}

func TestWeightedAggregator_NoSubmittersIsIdentity(t *testing.T) {
	agg := newTestAggregator(t, DefaultTotalValiWeight, DefaultAmplificationFactor)
	defaults := domain.PreferenceDocument{
		{Source: domain.SourceReddit, LabelWeights: map[domain.Label]float64{"r/bitcoin": 0.5, "r/tao": 0.25}},
		{Source: domain.SourceX, LabelWeights: map[domain.Label]float64{"#bittensor": 0.75}},
	}

	tests := []struct {
		name        string
		submissions []domain.Submission
	}{
		{name: "no participants"},
		{
			name: "participants that did not submit",
			submissions: []domain.Submission{
				submission("a", 0.5, false, doc(domain.SourceX, map[domain.Label]float64{"#bittensor": 1})),
				submission("b", 0.5, false, nil),
			},
		},
		{
			name: "submitters with zero stake",
			submissions: []domain.Submission{
				submission("a", 0, true, doc(domain.SourceX, map[domain.Label]float64{"#other": 1})),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			totals, err := agg.Aggregate(defaults, tt.submissions)
			require.NoError(t, err)
			assert.Equal(t, domain.NewRawTotals(defaults), totals)
		})
	}
}

func TestWeightedAggregator_StakeWeighting(t *testing.T) {
	agg := newTestAggregator(t, 0.5, 2) // normalizer = 0.25
	defaults := doc(domain.SourceReddit, map[domain.Label]float64{"r/bitcoin": 0.1})

	totals, err := agg.Aggregate(defaults, []domain.Submission{
		submission("a", 3, true, doc(domain.SourceReddit, map[domain.Label]float64{"r/bitcoin": 0.5})),
		submission("b", 1, true, domain.PreferenceDocument{
			{Source: domain.SourceReddit, LabelWeights: map[domain.Label]float64{"r/new": 1}},
			{Source: domain.SourceX, LabelWeights: map[domain.Label]float64{"#fresh": 0.4}},
		}),
		submission("c", 100, false, doc(domain.SourceReddit, map[domain.Label]float64{"r/bitcoin": 1})),
	})
	require.NoError(t, err)

	// a: 0.5 * 0.75 * 0.5 / 0.25 = 0.75
	// b: 0.5 * 0.25 * w / 0.25 = 0.5 * w
	assert.InDelta(t, 0.85, totals[domain.SourceReddit]["r/bitcoin"], 1e-12)
	assert.InDelta(t, 0.5, totals[domain.SourceReddit]["r/new"], 1e-12)
	assert.InDelta(t, 0.2, totals[domain.SourceX]["#fresh"], 1e-12)
}

func TestWeightedAggregator_OrderIndependent(t *testing.T) {
	agg := newTestAggregator(t, DefaultTotalValiWeight, DefaultAmplificationFactor)
	defaults := doc(domain.SourceX, map[domain.Label]float64{"#a": 0.1, "#b": 0.2})

	subs := []domain.Submission{
		submission("v1", 0.137, true, doc(domain.SourceX, map[domain.Label]float64{"#a": 0.3, "#b": 0.7})),
		submission("v2", 0.021, true, doc(domain.SourceX, map[domain.Label]float64{"#a": 0.9, "#c": 0.1})),
		submission("v3", 0.333, true, doc(domain.SourceX, map[domain.Label]float64{"#b": 0.11, "#c": 0.89})),
		submission("v4", 0.509, true, doc(domain.SourceX, map[domain.Label]float64{"#a": 0.01, "#b": 0.99})),
		submission("v5", 0.2, false, doc(domain.SourceX, map[domain.Label]float64{"#a": 1})),
	}

	want, err := agg.Aggregate(defaults, subs)
	require.NoError(t, err)

	permuted := slices.Clone(subs)
	slices.Reverse(permuted)
	permuted[0], permuted[2] = permuted[2], permuted[0]

	got, err := agg.Aggregate(defaults, permuted)
	require.NoError(t, err)
	assert.Equal(t, want, got, "permuting submissions must yield identical totals")
}

func TestWeightedAggregator_ExclusionEqualsNonSubmitting(t *testing.T) {
	agg := newTestAggregator(t, DefaultTotalValiWeight, DefaultAmplificationFactor)
	defaults := doc(domain.SourceReddit, map[domain.Label]float64{"r/x": 0.5})
	active := submission("a", 0.4, true, doc(domain.SourceReddit, map[domain.Label]float64{"r/x": 0.2, "r/y": 0.8}))
	idle := submission("b", 0.6, false, doc(domain.SourceReddit, map[domain.Label]float64{"r/z": 1}))

	with, err := agg.Aggregate(defaults, []domain.Submission{active, idle})
	require.NoError(t, err)
	without, err := agg.Aggregate(defaults, []domain.Submission{active})
	require.NoError(t, err)

	assert.Equal(t, without, with)
	_, ok := with.Get(domain.SourceReddit, "r/z")
	assert.False(t, ok)
}

func TestWeightedAggregator_DoesNotMutateDefaults(t *testing.T) {
	agg := newTestAggregator(t, 0.3, 3)
	weights := map[domain.Label]float64{"news": 0.5}
	defaults := doc(domain.SourceX, weights)

	_, err := agg.Aggregate(defaults, []domain.Submission{
		submission("a", 1, true, doc(domain.SourceX, map[domain.Label]float64{"news": 1})),
	})
	require.NoError(t, err)
	assert.Equal(t, 0.5, weights["news"])
}

func TestWeightedAggregator_Errors(t *testing.T) {
	agg := newTestAggregator(t, 0.3, 3)
	defaults := doc(domain.SourceX, map[domain.Label]float64{"news": 0.5})
	valid := doc(domain.SourceX, map[domain.Label]float64{"news": 1})

	tests := []struct {
		name        string
		defaults    domain.PreferenceDocument
		submissions []domain.Submission
		wantErr     error
	}{
		{
			name:        "negative stake",
			defaults:    defaults,
			submissions: []domain.Submission{submission("a", -1, true, valid)},
			wantErr:     domain.ErrInvalidStake,
		},
		{
			name:        "nan stake",
			defaults:    defaults,
			submissions: []domain.Submission{submission("a", math.NaN(), true, valid)},
			wantErr:     domain.ErrInvalidStake,
		},
		{
			name:     "nan default weight",
			defaults: doc(domain.SourceX, map[domain.Label]float64{"news": math.NaN()}),
			wantErr:  domain.ErrInvalidWeight,
		},
		{
			name:     "duplicate hotkey",
			defaults: defaults,
			submissions: []domain.Submission{
				submission("a", 1, true, valid),
				submission("a", 2, true, valid),
			},
			wantErr: ErrDuplicateHotkey,
		},
		{
			name:     "overflowing total",
			defaults: defaults,
			submissions: []domain.Submission{
				submission("a", 1, true, doc(domain.SourceX, map[domain.Label]float64{"news": math.MaxFloat64})),
			},
			wantErr: ErrNonFiniteTotal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			totals, err := agg.Aggregate(tt.defaults, tt.submissions)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, totals)
		})
	}
}

func TestWeightedAggregator_DropsNonFiniteDocuments(t *testing.T) {
	agg := newTestAggregator(t, 0.3, 3)
	defaults := doc(domain.SourceX, map[domain.Label]float64{"news": 0.5})
	good := submission("b", 1, true, doc(domain.SourceX, map[domain.Label]float64{"news": 1}))

	for _, bad := range []float64{math.Inf(1), math.Inf(-1), math.NaN()} {
		withBad, err := agg.Aggregate(defaults, []domain.Submission{
			submission("a", 3, true, doc(domain.SourceX, map[domain.Label]float64{"news": bad, "tech": 1})),
			good,
		})
		require.NoError(t, err)

		alone, err := agg.Aggregate(defaults, []domain.Submission{good})
		require.NoError(t, err)
		assert.Equal(t, alone, withBad, "weight %v", bad)
	}
}
