package domain

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// MaxLabelLength is the maximum number of characters a label may contain.
const MaxLabelLength = 32

// labelCaser lower-cases labels independently of locale.
var labelCaser = cases.Lower(language.Und)

// Label identifies a content category within a source, such as a subreddit
// ("r/bitcoin") or a hashtag ("#bittensor"). Labels are always normalized;
// construct them with NewLabel.
type Label string

// NewLabel normalizes value (trimmed, lower-cased) and enforces the length
// bound.
func NewLabel(value string) (Label, error) {
	normalized := labelCaser.String(strings.TrimSpace(value))
	if normalized == "" {
		return "", fmt.Errorf("%w: label is empty", ErrInvalidLabel)
	}
	if n := utf8.RuneCountInString(normalized); n > MaxLabelLength {
		return "", fmt.Errorf("%w: %q has %d characters, maximum is %d",
			ErrInvalidLabel, value, n, MaxLabelLength)
	}
	return Label(normalized), nil
}

// MustLabel is like NewLabel but panics on error. It is intended for
// constants and tests.
func MustLabel(value string) Label {
	l, err := NewLabel(value)
	if err != nil {
		panic(err)
	}
	return l
}

// String returns the label value.
func (l Label) String() string { return string(l) }
