package audio

import "sync"

// Accumulator is a bounded, append-only sample buffer owned by a single
// dictation session. When the buffer grows beyond its cap the oldest samples
// are evicted (sliding window), so a runaway recording cannot exhaust memory.
//
// Eviction is silent from the Accumulator's point of view; Append reports the
// number of evicted samples so the session can log it. Evicted audio may cause
// a later reconciliation pass to lose early unconfirmed words, which is
// acceptable — confirmed text already emitted never depends on buffer
// contents.
//
// Accumulator is safe for concurrent use.
type Accumulator struct {
	mu      sync.Mutex
	max     int
	samples []float32
}

// NewAccumulator creates an Accumulator holding at most maxSamples samples.
// maxSamples must be positive.
func NewAccumulator(maxSamples int) *Accumulator {
	if maxSamples <= 0 {
		panic("audio: maxSamples must be positive")
	}
	return &Accumulator{max: maxSamples}
}

// Append concatenates chunk onto the buffer and, if the total length now
// exceeds the cap, drops the oldest excess samples. It returns the number of
// samples evicted (0 in the common case).
func (a *Accumulator) Append(chunk []float32) (evicted int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.samples = append(a.samples, chunk...)
	if n := len(a.samples); n > a.max {
		evicted = n - a.max
		// Copy down rather than re-slice so the evicted prefix becomes
		// collectable instead of pinning the backing array.
		copy(a.samples, a.samples[evicted:])
		a.samples = a.samples[:a.max]
	}
	return evicted
}

// Snapshot returns a copy of the current buffer contents. The returned slice
// is owned by the caller and is never mutated by subsequent Append calls.
func (a *Accumulator) Snapshot() []float32 {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]float32, len(a.samples))
	copy(out, a.samples)
	return out
}

// Len returns the current number of buffered samples.
func (a *Accumulator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.samples)
}

// Reset clears the buffer to empty, retaining capacity for reuse.
func (a *Accumulator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.samples = a.samples[:0]
}
