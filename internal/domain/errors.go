package domain

import (
	"errors"
	"fmt"
	"strconv"
)

// Common domain errors that can occur while aggregating preferences.
var (
	// ErrUnknownSource indicates a source name that is not in the registry.
	ErrUnknownSource = errors.New("unknown source")

	// ErrInvalidLabel indicates a label that is empty or too long.
	ErrInvalidLabel = errors.New("invalid label")

	// ErrInvalidWeight indicates a weight that is not a finite number.
	ErrInvalidWeight = errors.New("invalid weight")

	// ErrInvalidStake indicates a stake that is negative or not finite.
	ErrInvalidStake = errors.New("invalid stake")

	// ErrInvalidConfiguration indicates that configuration is invalid or incomplete.
	ErrInvalidConfiguration = errors.New("invalid configuration")
)

// MalformedInputError reports a preference document that could not be
// interpreted. The document is treated as absent; the pass continues.
type MalformedInputError struct {
	// Participant is the hotkey of the submitting participant, or "default"
	// for the network default document.
	Participant string

	// Reason is a short human-readable description of the problem.
	Reason string

	// Err is the underlying error, if any.
	Err error
}

// Error implements the error interface for MalformedInputError.
func (e *MalformedInputError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed preferences from %s: %s: %v", e.Participant, e.Reason, e.Err)
	}
	return fmt.Sprintf("malformed preferences from %s: %s", e.Participant, e.Reason)
}

// Unwrap returns the underlying error.
func (e *MalformedInputError) Unwrap() error { return e.Err }

// NewMalformedInputError creates a new MalformedInputError with the given details.
func NewMalformedInputError(participant, reason string, err error) *MalformedInputError {
	return &MalformedInputError{
		Participant: participant,
		Reason:      reason,
		Err:         err,
	}
}

// ValidationError reports the first invariant a proposed desirability lookup
// violates. Source, Label and Value are set when they apply to the violation.
type ValidationError struct {
	// Entity is the name of the entity that failed validation.
	Entity string

	// Field is the offending field name.
	Field string

	// Source is the source the violation belongs to, or zero.
	Source Source

	// Label is the offending label, or empty.
	Label Label

	// Value is the offending value.
	Value float64

	// Reason describes the violated bound.
	Reason string
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	path := e.Field
	if e.Source != 0 {
		path = e.Source.String() + "." + path
	}
	if e.Label != "" {
		path += "[" + string(e.Label) + "]"
	}
	return fmt.Sprintf("validation error for %s: %s=%s: %s",
		e.Entity, path, strconv.FormatFloat(e.Value, 'g', -1, 64), e.Reason)
}
