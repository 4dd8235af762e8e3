// Package whisper implements asr.Engine on the whisper.cpp CGO bindings.
// The whisper.cpp static library (libwhisper.a) and headers (whisper.h) must
// be available at link time via LIBRARY_PATH and C_INCLUDE_PATH environment
// variables.
package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/voiceflow/voiceflowd/pkg/asr"
)

const (
	defaultLanguage = "en"

	// defaultMaxInput bounds a single inference pass. Whisper models are
	// trained on 30-second windows; feeding more degrades accuracy sharply.
	defaultMaxInput = 30 * time.Second
)

// Compile-time assertion that Engine satisfies asr.Engine.
var _ asr.Engine = (*Engine)(nil)

// Engine is a whisper.cpp-backed speech recogniser. The model is loaded once
// at construction and shared for the life of the process; each Transcribe
// call creates a fresh whisper context, which is how the bindings expect to
// be driven.
//
// Engine is NOT safe for concurrent Transcribe calls; wrap it with
// asr.Serialize before sharing across sessions.
type Engine struct {
	model    whisperlib.Model
	language string
	maxInput time.Duration
}

// Option is a functional option for configuring an Engine.
type Option func(*Engine)

// WithLanguage sets the BCP-47 language code for transcription (e.g. "en",
// "de", "fr"). Defaults to "en".
func WithLanguage(lang string) Option {
	return func(e *Engine) { e.language = lang }
}

// WithMaxInputDuration overrides the maximum single-pass audio span.
func WithMaxInputDuration(d time.Duration) Option {
	return func(e *Engine) { e.maxInput = d }
}

// New loads the whisper.cpp model from modelPath. The caller must call Close
// when the engine is no longer needed.
func New(modelPath string, opts ...Option) (*Engine, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}

	e := &Engine{
		model:    model,
		language: defaultLanguage,
		maxInput: defaultMaxInput,
	}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// Transcribe runs whisper inference over the full sample buffer using a
// fresh context and returns the concatenated segment text.
func (e *Engine) Transcribe(ctx context.Context, samples []float32) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(samples) == 0 {
		return "", nil
	}

	// Each context is NOT thread-safe, but the model can be shared.
	wctx, err := e.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("whisper: create context: %w", err)
	}

	if err := wctx.SetLanguage(e.language); err != nil {
		slog.Warn("whisper: failed to set language, using default", "language", e.language, "error", err)
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("whisper: process audio: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("whisper: read segment: %w", err)
		}
		text := strings.TrimSpace(segment.Text)
		if text != "" {
			parts = append(parts, text)
		}
	}

	return strings.Join(parts, " "), nil
}

// MaxInputDuration reports the longest audio span accepted per Transcribe.
func (e *Engine) MaxInputDuration() time.Duration { return e.maxInput }

// Close releases the whisper model.
func (e *Engine) Close() error {
	if e.model != nil {
		return e.model.Close()
	}
	return nil
}
