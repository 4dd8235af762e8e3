// Package textproc implements the post-transcription text pipeline: speech
// cleanup, personal-dictionary substitution, snippet expansion, command
// detection, and optional AI polish. Stages run in a fixed order and each is
// individually toggleable per dictation mode.
package textproc

import (
	"regexp"
	"strings"
	"unicode"
)

// Self-correction patterns run before filler removal so the correction cue
// words ("no", "wait", "sorry") are still present to anchor on.
var correctionPatterns = []struct {
	re   *regexp.Regexp
	repl string
}{
	// "let's meet at 2 actually 3" -> "let's meet at 3"
	{regexp.MustCompile(`(?i)\b\d+\s+(?:actually|no|wait|I mean|sorry)\s+(\d+)\b`), "$1"},
	// "send it to Bob sorry Alice" -> "send it to Alice"
	{regexp.MustCompile(`(?i)\b\w+\s+(?:no|wait|I mean|sorry|actually)\s+(\w+)\b`), "$1"},
}

var fillerPatterns = []struct {
	re   *regexp.Regexp
	repl string
}{
	// Basic fillers.
	{regexp.MustCompile(`(?i)\b(?:um+|uh+|er+|ah+|eh+|hm+|hmm+)\b`), ""},

	// Hesitation "like", only when followed by actual content. The follower
	// is captured and kept because RE2 has no lookahead.
	{regexp.MustCompile(`(?i)\blike\s+(the|a|an|I|you|we|they|he|she|it|this|that|so|um|uh)\b`), "$1"},

	// Discourse fillers, removed together with their trailing delimiter.
	{regexp.MustCompile(`(?i)\b(?:you know|I mean|basically|literally|obviously|honestly)\b[,.]?\s+`), ""},

	// Redundant sentence starters before a capitalised word.
	{regexp.MustCompile(`^(?i:so+|well|right|okay|ok)\b[,.]?\s+([A-Z])`), "$1"},
}

var formatPatterns = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`\s{2,}`), " "},                 // multiple spaces
	{regexp.MustCompile(`\s+([.,!?;:])`), "$1"},         // space before punctuation
	{regexp.MustCompile(`([.,!?])[.,!?]+`), "$1"},       // multiple punctuation
	{regexp.MustCompile(`([.,!?;:])([A-Za-z])`), "$1 $2"}, // missing space after punctuation
}

var sentenceStart = regexp.MustCompile(`(\.\s+)([a-z])`)

// Cleanup removes speech artefacts from raw transcription text: spoken
// self-corrections, filler words, stuttered repeats, and spacing or
// punctuation glitches. It is idempotent: Cleanup(Cleanup(s)) == Cleanup(s).
func Cleanup(text string) string {
	if text == "" {
		return text
	}

	result := text
	for _, p := range correctionPatterns {
		result = p.re.ReplaceAllString(result, p.repl)
	}
	for _, p := range fillerPatterns {
		result = p.re.ReplaceAllString(result, p.repl)
	}
	result = collapseRepeats(result)
	result = strings.TrimSpace(result)

	for _, p := range formatPatterns {
		result = p.re.ReplaceAllString(result, p.repl)
	}
	result = capitalize(result)
	return strings.TrimSpace(result)
}

// collapseRepeats removes stuttered word repeats ("the the" -> "the"). The
// repeat must follow a bare word; intervening punctuation ("yes, yes") is a
// deliberate repeat and is kept.
func collapseRepeats(text string) string {
	tokens := strings.Fields(text)
	if len(tokens) < 2 {
		return text
	}

	out := tokens[:1]
	for _, tok := range tokens[1:] {
		prev := out[len(out)-1]
		if isBareWord(prev) && strings.EqualFold(wordOf(tok), prev) {
			// Keep the later token so its punctuation survives.
			out[len(out)-1] = tok
			continue
		}
		out = append(out, tok)
	}
	return strings.Join(out, " ")
}

func isBareWord(tok string) bool {
	for _, r := range tok {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\'' {
			return false
		}
	}
	return tok != ""
}

// wordOf strips trailing punctuation from a token.
func wordOf(tok string) string {
	return strings.TrimRightFunc(tok, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}

// capitalize upper-cases the first letter and the first letter after each
// sentence-ending period.
func capitalize(text string) string {
	if text == "" {
		return text
	}

	runes := []rune(text)
	if unicode.IsLower(runes[0]) {
		runes[0] = unicode.ToUpper(runes[0])
		text = string(runes)
	}

	return sentenceStart.ReplaceAllStringFunc(text, func(m string) string {
		return m[:len(m)-1] + strings.ToUpper(m[len(m)-1:])
	})
}
