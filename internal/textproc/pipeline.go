package textproc

import (
	"context"
	"log/slog"

	"github.com/voiceflow/voiceflowd/internal/store"
	"github.com/voiceflow/voiceflowd/internal/textproc/polish"
)

// Polisher is the AI polish stage. *polish.Client satisfies it.
type Polisher interface {
	Polish(ctx context.Context, req polish.Request) (string, error)
}

// PipelineStore is the slice of the store the pipeline reads from.
type PipelineStore interface {
	Dictionary(ctx context.Context) ([]store.DictionaryEntry, error)
	Snippets(ctx context.Context) ([]store.Snippet, error)
	IncrementSnippetUse(ctx context.Context, id int64) error
}

// Pipeline runs the post-transcription text stages in order: cleanup,
// dictionary, snippets, command detection, AI polish. Each stage is gated by
// the dictation mode's toggles.
type Pipeline struct {
	store    PipelineStore
	polisher Polisher
}

// NewPipeline builds a Pipeline. polisher may be nil, which disables the AI
// polish stage regardless of mode settings.
func NewPipeline(st PipelineStore, polisher Polisher) *Pipeline {
	return &Pipeline{store: st, polisher: polisher}
}

// Result is the outcome of one pipeline run.
type Result struct {
	// Text is the final processed text.
	Text string

	// Raw is the unprocessed engine output the run started from.
	Raw string

	// AppliedSnippets lists the snippet triggers that fired.
	AppliedSnippets []string

	// Command is the detected command classification.
	Command CommandType

	// Polished reports whether the AI polish stage ran and succeeded.
	Polished bool
}

// Run processes raw engine text under the given mode. Store read failures
// and polish failures degrade gracefully: the affected stage is skipped and
// the text so far carries through.
func (p *Pipeline) Run(ctx context.Context, raw string, mode *store.Mode, appCtx polish.AppContext) *Result {
	res := &Result{Text: raw, Raw: raw, Command: CommandNone}
	if raw == "" {
		return res
	}

	if mode.UseCleanup {
		res.Text = Cleanup(res.Text)
	}

	if mode.UseDictionary {
		entries, err := p.store.Dictionary(ctx)
		if err != nil {
			slog.Warn("skipping dictionary stage", "error", err)
		} else {
			res.Text = ApplyDictionary(res.Text, entries)
		}
	}

	if mode.UseSnippets {
		snippets, err := p.store.Snippets(ctx)
		if err != nil {
			slog.Warn("skipping snippet stage", "error", err)
		} else {
			res.Text, res.AppliedSnippets = ExpandSnippets(ctx, res.Text, snippets, p.store)
		}
	}

	res.Command = DetectCommand(res.Text)

	if mode.UseAIPolish && p.polisher != nil {
		polished, err := p.polisher.Polish(ctx, polish.Request{
			Text:               res.Text,
			Tone:               polish.Tone(mode.Tone),
			AppContext:         appCtx,
			Model:              mode.AIModel,
			CustomInstructions: mode.SystemPrompt,
		})
		if err != nil {
			slog.Warn("AI polish failed, keeping unpolished text", "mode", mode.Name, "error", err)
		} else {
			res.Text = polished
			res.Polished = true
		}
	}

	return res
}
