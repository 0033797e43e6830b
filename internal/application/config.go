package application

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-desirability/infrastructure/aggregation"
	"github.com/ahrav/go-desirability/infrastructure/retrieval"
	"github.com/ahrav/go-desirability/internal/ports"
)

// EnvPrefix prefixes every environment variable that overrides Config.
const EnvPrefix = "DESIRABILITY_"

// Config is the complete runtime configuration of the aggregation pipeline.
// Values are taken from DefaultConfig, then an optional YAML file, then
// environment variables, and are validated last.
type Config struct {
	// Aggregation tunes the stake-weighted merge.
	Aggregation aggregation.WeightedAggregatorConfig `yaml:"aggregation" envPrefix:"AGGREGATION_"`
	// Lookup tunes the fixed parts of every published lookup.
	Lookup aggregation.LookupBuilderConfig `yaml:"lookup" envPrefix:"LOOKUP_"`
	// Retrieval bounds how participant documents are fetched.
	Retrieval RetrievalConfig `yaml:"retrieval" envPrefix:"RETRIEVAL_"`
	// Scraping controls the scraping plan derived from a lookup.
	Scraping ScrapingConfig `yaml:"scraping" envPrefix:"SCRAPING_"`
}

// RetrievalConfig bounds the concurrent retrieval of participant documents.
type RetrievalConfig struct {
	// TimeoutSeconds is the deadline for the whole retrieval phase of a
	// pass. Participants still outstanding when it expires are treated as
	// non-submitting.
	TimeoutSeconds int `yaml:"timeout_seconds" env:"TIMEOUT_SECONDS" validate:"min=1,max=3600"`
	// FetchTimeoutSeconds bounds a single fetch attempt. Zero disables the
	// per-fetch timeout.
	FetchTimeoutSeconds int `yaml:"fetch_timeout_seconds" env:"FETCH_TIMEOUT_SECONDS" validate:"min=0,ltefield=TimeoutSeconds"`
	// MaxConcurrency caps the number of in-flight fetches.
	MaxConcurrency int `yaml:"max_concurrency" env:"MAX_CONCURRENCY" validate:"min=1,max=256"`
	// RateLimitPerSecond paces fetches. Zero disables pacing.
	RateLimitPerSecond float64 `yaml:"rate_limit_per_second" env:"RATE_LIMIT_PER_SECOND" validate:"min=0"`
	// Burst is the token bucket size used with RateLimitPerSecond.
	Burst int `yaml:"burst" env:"BURST" validate:"min=1"`
	// CircuitBreakerFailures opens the circuit after that many consecutive
	// store failures. Zero disables the breaker.
	CircuitBreakerFailures int `yaml:"circuit_breaker_failures" env:"CIRCUIT_BREAKER_FAILURES" validate:"min=0"`
	// CircuitBreakerCooldownSeconds is how long an open circuit waits
	// before probing again.
	CircuitBreakerCooldownSeconds int `yaml:"circuit_breaker_cooldown_seconds" env:"CIRCUIT_BREAKER_COOLDOWN_SECONDS" validate:"min=1"`
	// Retry configures retries of transient fetch failures.
	Retry RetryConfig `yaml:"retry" envPrefix:"RETRY_"`
}

// RetryConfig configures the retry middleware.
type RetryConfig struct {
	// MaxAttempts is the number of retries after the first attempt; 0
	// disables retries.
	MaxAttempts int `yaml:"max_attempts" env:"MAX_ATTEMPTS" validate:"min=0,max=10"`
	// BaseDelayMs is the delay before the first retry in milliseconds.
	BaseDelayMs int `yaml:"base_delay_ms" env:"BASE_DELAY_MS" validate:"min=0,max=60000"`
	// MaxDelayMs caps the backoff between retries in milliseconds.
	MaxDelayMs int `yaml:"max_delay_ms" env:"MAX_DELAY_MS" validate:"gtefield=BaseDelayMs,max=300000"`
}

// ScrapingConfig controls BuildScrapingPlan.
type ScrapingConfig struct {
	// LabelThreshold is the minimum scale factor a label needs to be
	// scraped.
	LabelThreshold float64 `yaml:"label_threshold" env:"LABEL_THRESHOLD" validate:"scalefactor"`
}

// Default configuration values not owned by another package.
const (
	DefaultRetrievalTimeoutSeconds = 90
	DefaultFetchTimeoutSeconds     = 30
	DefaultMaxConcurrency          = 8
	DefaultRateLimitPerSecond      = 10
	DefaultBurst                   = 1
	DefaultBreakerFailures         = 5
	DefaultBreakerCooldownSeconds  = 30
	DefaultLabelThreshold          = 0.7
)

// DefaultConfig returns the production configuration.
func DefaultConfig() Config {
	retry := retrieval.DefaultRetryConfig()
	return Config{
		Aggregation: aggregation.DefaultWeightedAggregatorConfig(),
		Lookup:      aggregation.DefaultLookupBuilderConfig(),
		Retrieval: RetrievalConfig{
			TimeoutSeconds:                DefaultRetrievalTimeoutSeconds,
			FetchTimeoutSeconds:           DefaultFetchTimeoutSeconds,
			MaxConcurrency:                DefaultMaxConcurrency,
			RateLimitPerSecond:            DefaultRateLimitPerSecond,
			Burst:                         DefaultBurst,
			CircuitBreakerFailures:        DefaultBreakerFailures,
			CircuitBreakerCooldownSeconds: DefaultBreakerCooldownSeconds,
			Retry: RetryConfig{
				MaxAttempts: retry.MaxAttempts,
				BaseDelayMs: int(retry.BaseDelay / time.Millisecond),
				MaxDelayMs:  int(retry.MaxDelay / time.Millisecond),
			},
		},
		Scraping: ScrapingConfig{LabelThreshold: DefaultLabelThreshold},
	}
}

// LoadConfig builds a Config from defaults, the YAML file at path (skipped
// when path is empty) and DESIRABILITY_* environment variables.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		f, err := os.Open(path)
		if errors.Is(err, os.ErrNotExist) {
			return Config{}, ports.NewConfigError(path, ports.ErrConfigNotFound)
		}
		if err != nil {
			return Config{}, ports.NewConfigError(path, err)
		}
		defer f.Close()

		if err := decodeConfig(f, &cfg); err != nil {
			return Config{}, ports.NewConfigError(path, err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ParseConfig decodes YAML on top of DefaultConfig and validates the result.
// Environment variables are not consulted.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := decodeConfig(bytes.NewReader(data), &cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decodeConfig(r io.Reader, cfg *Config) error {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true) // Strict mode - fail on unknown fields.
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	return nil
}

// Validate checks every field against its struct tag constraints.
func (c Config) Validate() error {
	v, err := newConfigValidator()
	if err != nil {
		return err
	}
	if err := v.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			first := verrs[0]
			return fmt.Errorf("invalid configuration: %s failed %q (value %v): %w",
				first.Namespace(), first.Tag(), first.Value(), err)
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// RetrievalTimeout returns the retrieval phase deadline.
func (c RetrievalConfig) RetrievalTimeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Middleware returns the store middleware chain described by c, outermost
// first: metrics, tracing, circuit breaker, retry, rate limit, then the
// per-fetch timeout.
func (c RetrievalConfig) Middleware(metrics ports.MetricsCollector) []retrieval.Middleware {
	mws := []retrieval.Middleware{
		retrieval.MetricsMiddleware(metrics),
		retrieval.TracingMiddleware("desirability-retrieval"),
	}

	if c.CircuitBreakerFailures > 0 {
		cb := retrieval.NewCircuitBreaker(
			c.CircuitBreakerFailures,
			time.Duration(c.CircuitBreakerCooldownSeconds)*time.Second,
		)
		mws = append(mws, retrieval.CircuitBreakerMiddleware(cb))
	}

	if c.Retry.MaxAttempts > 0 {
		mws = append(mws, retrieval.RetryMiddleware(retrieval.RetryConfig{
			MaxAttempts:   c.Retry.MaxAttempts,
			BaseDelay:     time.Duration(c.Retry.BaseDelayMs) * time.Millisecond,
			MaxDelay:      time.Duration(c.Retry.MaxDelayMs) * time.Millisecond,
			JitterPercent: retrieval.DefaultJitterPercent,
		}))
	}

	if c.RateLimitPerSecond > 0 {
		mws = append(mws, retrieval.RateLimitMiddleware(rate.Limit(c.RateLimitPerSecond), c.Burst))
	}

	if c.FetchTimeoutSeconds > 0 {
		mws = append(mws, retrieval.TimeoutMiddleware(time.Duration(c.FetchTimeoutSeconds)*time.Second))
	}
	return mws
}
