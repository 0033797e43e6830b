package application

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/go-playground/validator/v10"

	"github.com/ahrav/go-desirability/internal/domain"
)

// DefaultParticipant names the network default document in errors and logs.
const DefaultParticipant = "default"

// maxSuggestionDistance bounds how far a misspelt source name may be from a
// known one for a suggestion to be offered.
const maxSuggestionDistance = 2

// sourceEntry is the wire shape of one document entry:
//
//	{"source_name": "reddit", "label_weights": {"r/bittensor_": 0.5}}
type sourceEntry struct {
	SourceName   string              `json:"source_name" validate:"required,sourcename"`
	LabelWeights map[string]*float64 `json:"label_weights" validate:"required,dive,keys,label,endkeys"`
}

// ParseDocument decodes and normalizes the preference document submitted by
// participant. Any problem is reported as a *domain.MalformedInputError so
// the caller can skip the document and continue the pass.
//
// Labels are normalized with domain.NewLabel; two labels of one source that
// normalize to the same value make the document malformed, as does a null
// weight. Repeated source entries are kept in order and aggregate additively.
func ParseDocument(participant string, data []byte) (domain.PreferenceDocument, error) {
	var entries []sourceEntry
	decoder := json.NewDecoder(bytes.NewReader(data))
	if err := decoder.Decode(&entries); err != nil {
		return nil, domain.NewMalformedInputError(participant, "invalid JSON document", err)
	}
	if decoder.More() {
		return nil, domain.NewMalformedInputError(participant, "trailing data after document", nil)
	}

	v, err := newConfigValidator()
	if err != nil {
		return nil, err
	}

	doc := make(domain.PreferenceDocument, 0, len(entries))
	for i, entry := range entries {
		if err := v.Struct(entry); err != nil {
			return nil, domain.NewMalformedInputError(participant, entryReason(i, entry, err), err)
		}

		source, err := domain.ParseSource(entry.SourceName)
		if err != nil {
			return nil, domain.NewMalformedInputError(participant, unknownSourceReason(i, entry.SourceName), err)
		}

		weights := make(map[domain.Label]float64, len(entry.LabelWeights))
		for _, raw := range slices.Sorted(maps.Keys(entry.LabelWeights)) {
			weight := entry.LabelWeights[raw]
			if weight == nil {
				return nil, domain.NewMalformedInputError(participant,
					fmt.Sprintf("entry %d has non-numeric weight for %q", i, raw), nil)
			}
			label, err := domain.NewLabel(raw)
			if err != nil {
				return nil, domain.NewMalformedInputError(participant, fmt.Sprintf("entry %d", i), err)
			}
			if _, dup := weights[label]; dup {
				return nil, domain.NewMalformedInputError(participant,
					fmt.Sprintf("entry %d: labels collide after normalization as %q", i, label), nil)
			}
			weights[label] = *weight
		}

		doc = append(doc, domain.SourcePreference{Source: source, LabelWeights: weights})
	}

	return doc, nil
}

// entryReason turns the first struct validation failure into a readable
// reason.
func entryReason(i int, entry sourceEntry, err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Sprintf("entry %d is invalid", i)
	}

	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("entry %d is missing %s", i, jsonFieldName(fe.StructField()))
	case "sourcename":
		return unknownSourceReason(i, entry.SourceName)
	case "label":
		return fmt.Sprintf("entry %d has invalid label %q", i, fe.Value())
	default:
		return fmt.Sprintf("entry %d: %s failed %q", i, jsonFieldName(fe.StructField()), fe.Tag())
	}
}

func jsonFieldName(field string) string {
	switch field {
	case "SourceName":
		return "source_name"
	case "LabelWeights":
		return "label_weights"
	default:
		return field
	}
}

// unknownSourceReason names the unknown source and, when one is close
// enough, the known source the author probably meant.
func unknownSourceReason(i int, name string) string {
	reason := fmt.Sprintf("entry %d has unknown source %q", i, name)
	if suggestion, ok := suggestSource(name); ok {
		reason += fmt.Sprintf(" (did you mean %q?)", suggestion)
	}
	return reason
}

// suggestSource returns the known source name closest to name by edit
// distance, if it is within maxSuggestionDistance.
func suggestSource(name string) (string, bool) {
	lowered := strings.ToLower(strings.TrimSpace(name))
	best, bestDist := "", maxSuggestionDistance+1
	for _, known := range domain.KnownSourceNames() {
		if d := levenshtein.ComputeDistance(lowered, known); d < bestDist {
			best, bestDist = known, d
		}
	}
	return best, best != "" && lowered != ""
}
