// Package mock provides a scripted asr.Engine for tests.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/voiceflow/voiceflowd/pkg/asr"
)

// Result is a single scripted Transcribe outcome.
type Result struct {
	Text string
	Err  error
}

// Compile-time assertion that Engine satisfies asr.Engine.
var _ asr.Engine = (*Engine)(nil)

// Engine returns pre-scripted transcripts in order. Once the script is
// exhausted the last result repeats, so callers do not need to predict the
// exact number of passes. If Func is set it takes precedence over Script.
type Engine struct {
	mu     sync.Mutex
	Script []Result
	Func   func(samples []float32) (string, error)
	MaxIn  time.Duration

	calls int
	// Samples records the buffer length of every Transcribe call.
	Samples []int
}

// Transcribe pops the next scripted result, or delegates to Func when set.
func (e *Engine) Transcribe(ctx context.Context, samples []float32) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.Samples = append(e.Samples, len(samples))

	if e.Func != nil {
		return e.Func(samples)
	}
	if len(e.Script) == 0 {
		return "", nil
	}
	i := e.calls
	if i >= len(e.Script) {
		i = len(e.Script) - 1
	}
	e.calls++
	r := e.Script[i]
	return r.Text, r.Err
}

// Calls reports how many times Transcribe has been invoked.
func (e *Engine) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

func (e *Engine) MaxInputDuration() time.Duration { return e.MaxIn }

func (e *Engine) Close() error { return nil }
