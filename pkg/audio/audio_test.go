package audio_test

import (
	"encoding/binary"
	"math"
	"testing"
	"time"

	"github.com/voiceflow/voiceflowd/pkg/audio"
)

func pcm16(samples ...int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

func TestPCM16ToFloat32(t *testing.T) {
	t.Parallel()

	got := audio.PCM16ToFloat32(pcm16(0, 16384, -16384, 32767, -32768))
	want := []float32{0, 0.5, -0.5, 32767.0 / 32768.0, -1.0}
	if len(got) != len(want) {
		t.Fatalf("PCM16ToFloat32: got %d samples, want %d", len(got), len(want))
	}
	for i := range want {
		if math.Abs(float64(got[i]-want[i])) > 1e-6 {
			t.Errorf("sample %d: got=%v, want %v", i, got[i], want[i])
		}
	}
}

func TestPCM16ToFloat32_OddTrailingByte(t *testing.T) {
	t.Parallel()

	got := audio.PCM16ToFloat32([]byte{0x00, 0x40, 0xFF})
	if len(got) != 1 {
		t.Fatalf("PCM16ToFloat32: got %d samples, want 1", len(got))
	}
}

func TestDuration(t *testing.T) {
	t.Parallel()

	tests := []struct {
		n, rate int
		want    time.Duration
	}{
		{audio.SampleRate, audio.SampleRate, time.Second},
		{audio.SampleRate / 2, audio.SampleRate, 500 * time.Millisecond},
		{0, audio.SampleRate, 0},
		{1000, 0, 0},
	}
	for _, tt := range tests {
		if got := audio.Duration(tt.n, tt.rate); got != tt.want {
			t.Errorf("Duration(%d, %d): got=%v, want %v", tt.n, tt.rate, tt.want, got)
		}
	}
}

func TestWAVRoundTrip(t *testing.T) {
	t.Parallel()

	pcm := pcm16(0, 1000, -1000, 32767, -32768)
	wav := audio.EncodeWAV(pcm, audio.SampleRate, 1)

	samples, rate, err := audio.DecodeWAV(wav)
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if rate != audio.SampleRate {
		t.Fatalf("DecodeWAV rate: got=%d, want %d", rate, audio.SampleRate)
	}
	want := audio.PCM16ToFloat32(pcm)
	if len(samples) != len(want) {
		t.Fatalf("DecodeWAV: got %d samples, want %d", len(samples), len(want))
	}
	for i := range want {
		if samples[i] != want[i] {
			t.Errorf("sample %d: got=%v, want %v", i, samples[i], want[i])
		}
	}
}

func TestDecodeWAV_StereoDownmix(t *testing.T) {
	t.Parallel()

	// Two frames of stereo: (16384, 0) and (-16384, -16384).
	pcm := pcm16(16384, 0, -16384, -16384)
	wav := audio.EncodeWAV(pcm, audio.SampleRate, 2)

	samples, _, err := audio.DecodeWAV(wav)
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	want := []float32{0.25, -0.5}
	if len(samples) != len(want) {
		t.Fatalf("DecodeWAV: got %d samples, want %d", len(samples), len(want))
	}
	for i := range want {
		if math.Abs(float64(samples[i]-want[i])) > 1e-6 {
			t.Errorf("sample %d: got=%v, want %v", i, samples[i], want[i])
		}
	}
}

func TestDecodeWAV_NotWAV(t *testing.T) {
	t.Parallel()

	if _, _, err := audio.DecodeWAV([]byte("definitely not a wav file at all, no")); err != audio.ErrNotWAV {
		t.Fatalf("DecodeWAV: got err=%v, want ErrNotWAV", err)
	}
}

func TestAccumulator_AppendSnapshot(t *testing.T) {
	t.Parallel()

	acc := audio.NewAccumulator(10)
	if evicted := acc.Append([]float32{1, 2, 3}); evicted != 0 {
		t.Fatalf("Append: evicted=%d, want 0", evicted)
	}
	if evicted := acc.Append([]float32{4, 5}); evicted != 0 {
		t.Fatalf("Append: evicted=%d, want 0", evicted)
	}
	if got := acc.Len(); got != 5 {
		t.Fatalf("Len: got=%d, want 5", got)
	}

	snap := acc.Snapshot()
	want := []float32{1, 2, 3, 4, 5}
	for i := range want {
		if snap[i] != want[i] {
			t.Fatalf("Snapshot[%d]: got=%v, want %v", i, snap[i], want[i])
		}
	}

	// Snapshot must be isolated from later appends.
	acc.Append([]float32{9})
	if snap[0] != 1 || len(snap) != 5 {
		t.Fatal("Snapshot was mutated by a later Append")
	}
}

func TestAccumulator_Eviction(t *testing.T) {
	t.Parallel()

	acc := audio.NewAccumulator(4)
	acc.Append([]float32{1, 2, 3})
	if evicted := acc.Append([]float32{4, 5, 6}); evicted != 2 {
		t.Fatalf("Append: evicted=%d, want 2", evicted)
	}
	if got := acc.Len(); got != 4 {
		t.Fatalf("Len: got=%d, want 4", got)
	}

	snap := acc.Snapshot()
	want := []float32{3, 4, 5, 6}
	for i := range want {
		if snap[i] != want[i] {
			t.Fatalf("Snapshot[%d]: got=%v, want %v (oldest samples must go first)", i, snap[i], want[i])
		}
	}
}

func TestAccumulator_Reset(t *testing.T) {
	t.Parallel()

	acc := audio.NewAccumulator(10)
	acc.Append([]float32{1, 2, 3})
	acc.Reset()
	if got := acc.Len(); got != 0 {
		t.Fatalf("Len after Reset: got=%d, want 0", got)
	}
	if snap := acc.Snapshot(); len(snap) != 0 {
		t.Fatalf("Snapshot after Reset: got %d samples, want 0", len(snap))
	}
}
