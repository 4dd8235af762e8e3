package textproc

import (
	"strings"

	"github.com/voiceflow/voiceflowd/internal/store"
)

// ApplyDictionary rewrites every case-insensitive occurrence of each entry's
// original text with its replacement. Matching is literal substring
// matching; the write-side validation in the store keeps pattern
// metacharacters out of entries.
func ApplyDictionary(text string, entries []store.DictionaryEntry) string {
	if text == "" || len(entries) == 0 {
		return text
	}

	for _, e := range entries {
		text = replaceFold(text, e.Original, e.Replacement)
	}
	return text
}

// replaceFold replaces all case-insensitive occurrences of old in s with new.
// ASCII-adequate folding: dictation originals are typed by the user and
// matched against engine output, both effectively ASCII-cased.
func replaceFold(s, old, new string) string {
	if old == "" {
		return s
	}

	lower := strings.ToLower(s)
	target := strings.ToLower(old)

	var b strings.Builder
	for {
		i := strings.Index(lower, target)
		if i < 0 {
			b.WriteString(s)
			return b.String()
		}
		b.WriteString(s[:i])
		b.WriteString(new)
		s = s[i+len(old):]
		lower = lower[i+len(target):]
	}
}
