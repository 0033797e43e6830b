// Package aggregation provides the weight aggregator and lookup builder that
// turn preference documents into a desirability lookup.
package aggregation

import (
	"errors"

	"github.com/go-playground/validator/v10"
)

// Common errors returned by the aggregation components.
var (
	// ErrNonFiniteTotal is returned when accumulation produces NaN or Inf.
	ErrNonFiniteTotal = errors.New("aggregated total is not finite")

	// ErrDuplicateHotkey is returned when two submissions share a hotkey.
	ErrDuplicateHotkey = errors.New("duplicate participant hotkey")
)

// Package-level validator instance for configuration validation.
// Uses go-playground/validator v10 for struct tag-based validation.
var validate = validator.New()
