// Package longform transcribes audio longer than the engine's single-pass
// window by splitting it into overlapping chunks and merging the per-chunk
// transcripts at word level.
package longform

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/voiceflow/voiceflowd/pkg/asr"
	"github.com/voiceflow/voiceflowd/pkg/audio"
)

// Config holds the chunking parameters.
type Config struct {
	// SampleRate of the input samples in Hz.
	SampleRate int

	// ChunkDuration is the window length per inference pass.
	ChunkDuration time.Duration

	// ChunkOverlap is the audio shared between consecutive windows so words
	// cut at a boundary appear whole in the next window.
	ChunkOverlap time.Duration

	// MaxOverlapWords bounds the word-overlap search during merging.
	MaxOverlapWords int
}

// SplitChunks slices samples into overlapping windows of cfg.ChunkDuration
// with cfg.ChunkOverlap of shared audio. The final window is truncated to
// the buffer end, so the windows always cover every sample exactly once at
// minimum and the last window ends at the last sample.
func SplitChunks(samples []float32, cfg Config) [][]float32 {
	chunkSamples := int(cfg.ChunkDuration.Seconds() * float64(cfg.SampleRate))
	overlapSamples := int(cfg.ChunkOverlap.Seconds() * float64(cfg.SampleRate))
	stride := chunkSamples - overlapSamples
	if stride <= 0 || chunkSamples <= 0 {
		return [][]float32{samples}
	}

	var chunks [][]float32
	for start := 0; start < len(samples); start += stride {
		end := min(start+chunkSamples, len(samples))
		chunks = append(chunks, samples[start:end])
		if end >= len(samples) {
			break
		}
	}
	return chunks
}

// Merge appends newChunk to existing, removing a duplicated word run at the
// boundary. It searches for the LONGEST suffix of existing (up to
// maxOverlapWords words) that case-insensitively equals a prefix of
// newChunk and drops that prefix. With no overlap the chunks are joined
// with a space.
func Merge(existing, newChunk string, maxOverlapWords int) string {
	existing = strings.TrimSpace(existing)
	newChunk = strings.TrimSpace(newChunk)
	if existing == "" {
		return newChunk
	}
	if newChunk == "" {
		return existing
	}

	existingWords := strings.Fields(existing)
	newWords := strings.Fields(newChunk)

	bestOverlap := 0
	limit := min(maxOverlapWords, len(existingWords), len(newWords))
	for n := 1; n <= limit; n++ {
		if wordsEqualFold(existingWords[len(existingWords)-n:], newWords[:n]) {
			bestOverlap = n
		}
	}

	if bestOverlap == len(newWords) {
		return existing
	}
	return existing + " " + strings.Join(newWords[bestOverlap:], " ")
}

func wordsEqualFold(a, b []string) bool {
	for i := range a {
		if !strings.EqualFold(a[i], b[i]) {
			return false
		}
	}
	return true
}

// Transcribe runs engine inference over samples, chunking when the audio
// exceeds cfg.ChunkDuration. Individual chunk failures are tolerated: the
// failed window's words are lost but the surrounding transcript survives.
// Transcribe fails only when every chunk fails.
func Transcribe(ctx context.Context, engine asr.Engine, samples []float32, cfg Config) (string, error) {
	if audio.Duration(len(samples), cfg.SampleRate) <= cfg.ChunkDuration {
		return engine.Transcribe(ctx, samples)
	}

	chunks := SplitChunks(samples, cfg)
	var (
		merged string
		failed int
	)
	for i, chunk := range chunks {
		text, err := engine.Transcribe(ctx, chunk)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			failed++
			slog.Warn("long-form chunk failed",
				"chunk", i+1, "chunks", len(chunks),
				"duration", audio.Duration(len(chunk), cfg.SampleRate),
				"error", err)
			continue
		}
		merged = Merge(merged, text, cfg.MaxOverlapWords)
	}
	if failed == len(chunks) {
		return "", fmt.Errorf("longform: all %d chunks failed", len(chunks))
	}
	return merged, nil
}
