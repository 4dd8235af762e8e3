package textproc

import (
	"context"
	"log/slog"
	"regexp"
	"sort"

	"github.com/voiceflow/voiceflowd/internal/store"
)

// SnippetCounter records snippet usage. Stores satisfy it.
type SnippetCounter interface {
	IncrementSnippetUse(ctx context.Context, id int64) error
}

// ExpandSnippets replaces each whole-word, case-insensitive occurrence of a
// snippet trigger with its content and returns the list of triggers that
// fired. Longer triggers are tried first so "my work address" wins over "my
// address".
//
// Use counts are incremented through counter in a fire-and-forget goroutine;
// a failed increment never fails the expansion. counter may be nil.
func ExpandSnippets(ctx context.Context, text string, snippets []store.Snippet, counter SnippetCounter) (string, []string) {
	if text == "" || len(snippets) == 0 {
		return text, nil
	}

	ordered := make([]store.Snippet, len(snippets))
	copy(ordered, snippets)
	sort.SliceStable(ordered, func(i, j int) bool {
		return len(ordered[i].Trigger) > len(ordered[j].Trigger)
	})

	var applied []string
	for _, sn := range ordered {
		if sn.Trigger == "" {
			continue
		}
		re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(sn.Trigger) + `\b`)
		if err != nil {
			slog.Warn("skipping uncompilable snippet trigger", "trigger", sn.Trigger, "error", err)
			continue
		}
		if !re.MatchString(text) {
			continue
		}
		text = re.ReplaceAllLiteralString(text, sn.Content)
		applied = append(applied, sn.Trigger)

		if counter != nil {
			go func(id int64) {
				if err := counter.IncrementSnippetUse(context.WithoutCancel(ctx), id); err != nil {
					slog.Debug("snippet use count increment failed", "snippet_id", id, "error", err)
				}
			}(sn.ID)
		}
	}
	return text, applied
}
