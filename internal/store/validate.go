package store

import (
	"errors"
	"fmt"
	"strings"
)

// Write-side limits. Reads never re-validate, so loosening a limit does not
// strand existing rows.
const (
	MaxDictionaryEntries = 500
	MaxOriginalLength    = 100
	MaxReplacementLength = 200
	MaxSnippets          = 100
	MaxSnippetTriggerLen = 50
	MaxSnippetContentLen = 2000
)

// dictionaryMetachars are rejected in dictionary text. Entries are applied as
// literal substitutions, but keeping metacharacters out guards against a
// future regex-based matcher and against pasted garbage.
const dictionaryMetachars = `[](){}*+?|^$\`

// ValidateDictionaryEntry checks one personal-dictionary entry against the
// write-side rules. The entry count limit is enforced separately by the
// store.
func ValidateDictionaryEntry(e DictionaryEntry) error {
	var errs []error

	original := strings.TrimSpace(e.Original)
	replacement := strings.TrimSpace(e.Replacement)

	if original == "" {
		errs = append(errs, errors.New("store: dictionary original must not be empty"))
	}
	if replacement == "" {
		errs = append(errs, errors.New("store: dictionary replacement must not be empty"))
	}
	if len(original) > MaxOriginalLength {
		errs = append(errs, fmt.Errorf("store: dictionary original exceeds %d characters", MaxOriginalLength))
	}
	if len(replacement) > MaxReplacementLength {
		errs = append(errs, fmt.Errorf("store: dictionary replacement exceeds %d characters", MaxReplacementLength))
	}
	for _, s := range []string{original, replacement} {
		if strings.ContainsAny(s, dictionaryMetachars) {
			errs = append(errs, fmt.Errorf("store: dictionary text %q contains a reserved character (%s)", s, dictionaryMetachars))
			break
		}
	}
	if isDegenerate(original) {
		errs = append(errs, fmt.Errorf("store: dictionary original %q is mostly one repeated character", original))
	}

	return errors.Join(errs...)
}

// isDegenerate reports whether more than 80% of s is a single repeated
// character, which is never a real word and would match aggressively.
// Short strings are exempt; "aa" is a plausible abbreviation.
func isDegenerate(s string) bool {
	runes := []rune(strings.ToLower(s))
	if len(runes) <= 10 {
		return false
	}
	counts := make(map[rune]int)
	top := 0
	for _, r := range runes {
		counts[r]++
		if counts[r] > top {
			top = counts[r]
		}
	}
	return float64(top) > 0.8*float64(len(runes))
}

// ValidateSnippet checks one snippet against the write-side rules. The
// snippet count limit is enforced separately by the store. Triggers are
// matched case-insensitively, so the caller should lowercase before storing.
func ValidateSnippet(s *Snippet) error {
	var errs []error

	trigger := strings.TrimSpace(s.Trigger)
	if trigger == "" {
		errs = append(errs, errors.New("store: snippet trigger must not be empty"))
	}
	if len(trigger) > MaxSnippetTriggerLen {
		errs = append(errs, fmt.Errorf("store: snippet trigger exceeds %d characters", MaxSnippetTriggerLen))
	}
	if s.Content == "" {
		errs = append(errs, errors.New("store: snippet content must not be empty"))
	}
	if len(s.Content) > MaxSnippetContentLen {
		errs = append(errs, fmt.Errorf("store: snippet content exceeds %d characters", MaxSnippetContentLen))
	}

	return errors.Join(errs...)
}

// ValidateMode checks mode fields that must hold regardless of backend.
func ValidateMode(m *Mode) error {
	var errs []error

	if strings.TrimSpace(m.Name) == "" {
		errs = append(errs, errors.New("store: mode name must not be empty"))
	}
	switch m.Tone {
	case "", "formal", "casual", "technical":
	default:
		errs = append(errs, fmt.Errorf("store: mode tone %q is invalid; valid values: formal, casual, technical", m.Tone))
	}

	return errors.Join(errs...)
}
