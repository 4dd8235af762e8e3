// Package asr defines the speech-recognition engine abstraction used by the
// dictation pipeline. The production implementation lives in pkg/asr/whisper;
// pkg/asr/mock provides a scripted engine for tests.
package asr

import (
	"context"
	"sync"
	"time"
)

// Engine performs batch speech-to-text inference on normalised float32 mono
// samples at 16 kHz. Implementations are not required to be safe for
// concurrent use; wrap them with [Serialize] when shared across sessions.
type Engine interface {
	// Transcribe runs inference over the full sample buffer and returns the
	// recognised text. An empty string with a nil error means genuine
	// silence.
	Transcribe(ctx context.Context, samples []float32) (string, error)

	// MaxInputDuration reports the longest audio span the engine accepts in
	// a single Transcribe call, or 0 for no limit. Longer audio must be
	// chunked by the caller.
	MaxInputDuration() time.Duration

	// Close releases engine resources. Transcribe must not be called after
	// Close.
	Close() error
}

// serialized wraps an Engine with a mutex so only one inference runs at a
// time process-wide. Native whisper contexts are cheap but the underlying
// compute is not; serialising keeps memory and CPU pressure bounded when
// several dictation sessions are live.
type serialized struct {
	mu    sync.Mutex
	inner Engine
}

var _ Engine = (*serialized)(nil)

// Serialize returns an Engine that forwards to inner while holding a mutex,
// guaranteeing at most one Transcribe call is in flight at any moment.
func Serialize(inner Engine) Engine {
	return &serialized{inner: inner}
}

func (s *serialized) Transcribe(ctx context.Context, samples []float32) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return s.inner.Transcribe(ctx, samples)
}

func (s *serialized) MaxInputDuration() time.Duration {
	return s.inner.MaxInputDuration()
}

func (s *serialized) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Close()
}
