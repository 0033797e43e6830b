package aggregation

import (
	"fmt"

	"github.com/ahrav/go-desirability/internal/domain"
)

var _ domain.LookupBuilder = (*LookupBuilder)(nil)

// DefaultAgeLimitDays is how old data may be before it earns no reward.
const DefaultAgeLimitDays = 30

// LookupBuilderConfig controls the fixed parts of every built lookup.
type LookupBuilderConfig struct {
	// AgeLimitDays becomes max_age_in_hours after multiplying by 24.
	AgeLimitDays int `yaml:"age_limit_days" json:"age_limit_days" env:"AGE_LIMIT_DAYS" validate:"min=1,max=3650"`

	// DefaultScaleFactor is applied to labels without an explicit factor.
	DefaultScaleFactor float64 `yaml:"default_scale_factor" json:"default_scale_factor" env:"DEFAULT_SCALE_FACTOR" validate:"min=-1,max=1"`
}

// DefaultLookupBuilderConfig returns the production lookup settings.
func DefaultLookupBuilderConfig() LookupBuilderConfig {
	return LookupBuilderConfig{
		AgeLimitDays:       DefaultAgeLimitDays,
		DefaultScaleFactor: domain.DefaultScaleFactor,
	}
}

// LookupBuilder converts raw totals into a DesirabilityLookup.
//
// Each known source receives its fixed weight from the source registry; the
// aggregated numbers only ever populate label scale factors. Validator stake
// can therefore reweight labels within a source but never move reward mass
// between sources.
type LookupBuilder struct {
	config LookupBuilderConfig
}

// NewLookupBuilder creates a LookupBuilder with validated configuration.
func NewLookupBuilder(config LookupBuilderConfig) (*LookupBuilder, error) {
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidConfiguration, err)
	}
	return &LookupBuilder{config: config}, nil
}

// MaxAgeInHours returns the age limit attached to every built lookup.
func (b *LookupBuilder) MaxAgeInHours() int { return b.config.AgeLimitDays * 24 }

// Build implements domain.LookupBuilder. The result is validated against
// every lookup invariant; a *domain.ValidationError is returned on the first
// violation.
func (b *LookupBuilder) Build(totals domain.RawTotals) (*domain.DesirabilityLookup, error) {
	for source := range totals {
		if !source.IsKnown() {
			return nil, fmt.Errorf("%w: %s", domain.ErrUnknownSource, source)
		}
	}

	proposal := domain.LookupProposal{
		Distribution:  make(map[domain.Source]domain.SourceProposal, len(domain.KnownSources())),
		MaxAgeInHours: b.MaxAgeInHours(),
	}
	for _, source := range domain.KnownSources() {
		factors := make(map[domain.Label]float64, len(totals[source]))
		for label, total := range totals[source] {
			normalized, err := domain.NewLabel(string(label))
			if err != nil {
				return nil, fmt.Errorf("source %s: %w", source, err)
			}
			if normalized != label {
				return nil, fmt.Errorf("%w: source %s has unnormalized label %q", domain.ErrInvalidLabel, source, label)
			}
			factors[normalized] = total
		}

		proposal.Distribution[source] = domain.SourceProposal{
			Weight:             source.Weight(),
			DefaultScaleFactor: b.config.DefaultScaleFactor,
			LabelScaleFactors:  factors,
		}
	}

	return domain.NewDesirabilityLookup(proposal)
}

// BuildDefault builds the lookup derived from the network default document
// alone, as if no participant had submitted.
func (b *LookupBuilder) BuildDefault(defaults domain.PreferenceDocument) (*domain.DesirabilityLookup, error) {
	return b.Build(domain.NewRawTotals(defaults))
}
