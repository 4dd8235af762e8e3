package polish

import (
	"regexp"
	"strings"
)

var toneInstructions = map[Tone]string{
	ToneFormal: `- Use professional language
- Avoid contractions (use "do not" instead of "don't")
- Use complete sentences
- Maintain a respectful, business-appropriate tone`,
	ToneCasual: `- Use natural, conversational language
- Contractions are fine (don't, can't, won't)
- Keep it friendly and approachable
- Short sentences are okay`,
	ToneTechnical: `- Use precise technical terminology
- Be concise and clear
- Maintain accuracy over style
- Preserve code-like content exactly`,
}

var contextInstructions = map[AppContext]string{
	ContextEmail:    "Format as proper email content with appropriate structure.",
	ContextChat:     "Keep messages short and direct. Casual tone unless formal setting.",
	ContextCode:     "Preserve any code-like content exactly. Use technical terminology.",
	ContextDocument: "Use proper document formatting. Professional tone by default.",
	ContextGeneral:  "Adapt to the content naturally. Focus on clarity.",
}

// systemPrompt builds the polishing instruction set. The hard rules exist
// because small models love to summarise; the word-count constraint is the
// strongest lever against that.
func systemPrompt(tone Tone, appCtx AppContext, custom string) string {
	if _, ok := toneInstructions[tone]; !ok {
		tone = ToneFormal
	}
	if _, ok := contextInstructions[appCtx]; !ok {
		appCtx = ContextGeneral
	}

	var b strings.Builder
	b.WriteString(`You are a text polishing assistant for a voice dictation app.

Your job is to take raw transcribed speech and clean it up while preserving the speaker's EXACT words.

## ABSOLUTE RULES - VIOLATION = FAILURE:
1. Output MUST have the SAME NUMBER OF WORDS (±2) as input
2. NEVER cut off, truncate, or shorten the text
3. NEVER summarize - output the FULL text
4. NEVER answer questions - just fix grammar on questions
5. NEVER add new content or commentary
6. Only fix: grammar, spelling, punctuation, capitalization
7. Remove ONLY filler words: "um", "uh", "like", "you know"
8. Handle self-corrections: "at 2 actually 3" -> "at 3"
9. PRESERVE EVERY SENTENCE AND IDEA from the input

## Examples of CORRECT behavior:
- Input: "how are you doing" -> Output: "How are you doing?"
- Input: "whats the weather like" -> Output: "What's the weather like?"
- Input: "i went to the um store" -> Output: "I went to the store."

## Examples of WRONG behavior (DO NOT DO THIS):
- Input: "The startup is way too long I actually completed one full"
- Output: "The startup is too long." <- WRONG! This truncates content!

`)
	b.WriteString("## Tone: " + strings.ToUpper(string(tone)) + "\n")
	b.WriteString(toneInstructions[tone] + "\n\n")
	b.WriteString("## Context: " + strings.ToUpper(string(appCtx)) + "\n")
	b.WriteString(contextInstructions[appCtx] + "\n")

	if custom != "" {
		b.WriteString("\n## Additional Instructions:\n" + custom + "\n")
	}

	b.WriteString(`
## Output Format:
Return ONLY the polished text. No explanations, no quotes, no prefixes.
Just output the cleaned-up text directly. Keep it SHORT - same length as input.
`)
	return b.String()
}

var responsePrefixes = []string{
	"Here's the polished text:",
	"Here is the polished text:",
	"Polished text:",
	"Polished:",
	"Output:",
}

var commentaryPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?is)\s*\(Note:.*?\)`),
	regexp.MustCompile(`(?is)\s*\(This text.*?\)`),
	regexp.MustCompile(`(?is)\s*\(No changes.*?\)`),
	regexp.MustCompile(`(?is)\s*\(Already.*?\)`),
	regexp.MustCompile(`(?is)\s*\(The text.*?\)`),
}

var commentaryLinePrefixes = []string{
	"(Note", "Note:", "(This", "(The text", "(No changes", "(Already",
}

// ScrubResponse strips model chatter from a completion: lead-in prefixes,
// surrounding quotes, and parenthesised commentary, leaving just the
// polished text.
func ScrubResponse(response string) string {
	result := strings.TrimSpace(response)

	for _, prefix := range responsePrefixes {
		if len(result) >= len(prefix) && strings.EqualFold(result[:len(prefix)], prefix) {
			result = strings.TrimSpace(result[len(prefix):])
		}
	}

	if n := len(result); n >= 2 {
		if (result[0] == '"' && result[n-1] == '"') || (result[0] == '\'' && result[n-1] == '\'') {
			result = result[1 : n-1]
		}
	}

	for _, re := range commentaryPatterns {
		result = re.ReplaceAllString(result, "")
	}

	var lines []string
	for _, line := range strings.Split(result, "\n") {
		stripped := strings.TrimSpace(line)
		if stripped == "" || isCommentaryLine(stripped) {
			continue
		}
		lines = append(lines, line)
	}

	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func isCommentaryLine(line string) bool {
	for _, prefix := range commentaryLinePrefixes {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}
