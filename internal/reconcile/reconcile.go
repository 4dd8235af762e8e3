// Package reconcile turns repeated full-buffer transcriptions into a stable
// stream of confirmed words. Each pass re-transcribes everything buffered so
// far and votes on the word at every position; a word that the engine has
// produced at the same position often enough is confirmed and locked.
// Confirmed text is append-only: once a word is confirmed it never changes,
// which is what lets the client type it into the foreground app immediately.
package reconcile

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/voiceflow/voiceflowd/pkg/asr"
	"github.com/voiceflow/voiceflowd/pkg/audio"
)

// Config holds the reconciliation tunables.
type Config struct {
	// SampleRate of buffered audio in Hz.
	SampleRate int

	// MinConfirmations is how many passes must agree on a word at a
	// position before it is confirmed. Lower is snappier, higher is more
	// stable.
	MinConfirmations int

	// MinAudioDuration is the least buffered audio worth transcribing; a
	// pass below it is skipped.
	MinAudioDuration time.Duration
}

// Snapshot is the outcome of one pass.
type Snapshot struct {
	// Confirmed is the full locked text so far.
	Confirmed string

	// Partial is the unstable tail beyond the confirmed words.
	Partial string

	// NewWords is how many words this pass confirmed.
	NewWords int

	// Skipped reports that the pass did not run inference (too little
	// audio, or the engine failed).
	Skipped bool
}

// Reconciler owns the voting state for one dictation session. It is safe
// for concurrent use, though the session scheduler runs at most one Pass at
// a time.
type Reconciler struct {
	engine asr.Engine
	buf    *audio.Accumulator
	cfg    Config

	mu sync.Mutex
	// votes counts engine agreement keyed by "<position>:<lowercased word>"
	// for positions at or beyond the confirmed boundary.
	votes          map[string]int
	confirmedWords []string
}

// New creates a Reconciler reading audio from buf and transcribing with
// engine.
func New(engine asr.Engine, buf *audio.Accumulator, cfg Config) *Reconciler {
	return &Reconciler{
		engine: engine,
		buf:    buf,
		cfg:    cfg,
		votes:  make(map[string]int),
	}
}

// Confirmed returns the locked text so far.
func (r *Reconciler) Confirmed() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return strings.Join(r.confirmedWords, " ")
}

// Reset clears all voting state for a new utterance. The audio buffer is
// owned by the session and reset separately.
func (r *Reconciler) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.votes = make(map[string]int)
	r.confirmedWords = nil
}

// Pass transcribes the current buffer and advances the confirmed boundary.
// Engine failures are absorbed: the pass is reported as skipped and the
// confirmed text is returned untouched, so a transient inference error never
// disturbs what the user already sees.
func (r *Reconciler) Pass(ctx context.Context) (Snapshot, error) {
	samples := r.buf.Snapshot()
	if audio.Duration(len(samples), r.cfg.SampleRate) < r.cfg.MinAudioDuration {
		return Snapshot{Confirmed: r.Confirmed(), Skipped: true}, nil
	}

	text, err := r.engine.Transcribe(ctx, samples)
	if err != nil {
		// Canceled passes bubble up so the caller can tell shutdown from
		// a flaky engine.
		if ctx.Err() != nil {
			return Snapshot{}, ctx.Err()
		}
		return Snapshot{Confirmed: r.Confirmed(), Skipped: true},
			fmt.Errorf("reconcile: transcribe pass: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return Snapshot{Confirmed: r.Confirmed(), Skipped: true}, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	words := strings.Fields(text)
	boundary := len(r.confirmedWords)

	// Vote only for unconfirmed positions; confirmed ones are settled.
	for i := boundary; i < len(words); i++ {
		r.votes[voteKey(i, words[i])]++
	}

	// Walk forward from the boundary confirming words, stopping at the
	// first position that has not gathered enough agreement. No gaps: a
	// stable word behind an unstable one stays unconfirmed.
	newWords := 0
	for i := boundary; i < len(words); i++ {
		if r.votes[voteKey(i, words[i])] < r.cfg.MinConfirmations {
			break
		}
		r.confirmedWords = append(r.confirmedWords, words[i])
		newWords++
	}

	snap := Snapshot{
		Confirmed: strings.Join(r.confirmedWords, " "),
		NewWords:  newWords,
	}
	if len(r.confirmedWords) < len(words) {
		snap.Partial = strings.Join(words[len(r.confirmedWords):], " ")
	}
	return snap, nil
}

func voteKey(pos int, word string) string {
	return fmt.Sprintf("%d:%s", pos, strings.ToLower(word))
}
