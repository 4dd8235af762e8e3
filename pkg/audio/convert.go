// Package audio provides PCM sample handling for the voiceflowd dictation
// pipeline: conversion from wire-format 16-bit PCM to the normalised float32
// samples the ASR engine consumes, WAV container handling for the single-shot
// upload path, and the bounded per-session sample accumulator.
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// SampleRate is the working sample rate of the dictation pipeline in Hz.
// Clients must deliver audio at this rate; the ASR engine consumes it as-is.
const SampleRate = 16000

const bitsPerSample = 16

// PCM16ToFloat32 converts 16-bit signed little-endian PCM audio to float32
// samples normalised to the range [-1.0, 1.0]. The input length must be
// even (two bytes per sample); any trailing odd byte is silently ignored.
func PCM16ToFloat32(pcm []byte) []float32 {
	n := len(pcm) / 2
	samples := make([]float32, n)
	for i := range n {
		sample := int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
		samples[i] = float32(sample) / 32768.0
	}
	return samples
}

// Duration returns the playback duration of n samples at the given rate.
// Returns 0 for non-positive rates.
func Duration(n int, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second / time.Duration(sampleRate)
}

// ErrNotWAV is returned by DecodeWAV when the payload has no RIFF/WAVE header.
var ErrNotWAV = errors.New("audio: payload is not a RIFF/WAVE container")

// DecodeWAV extracts normalised float32 mono samples from a PCM16 WAV
// container. Multi-channel audio is down-mixed by averaging channels per
// frame. The container's sample rate is returned alongside the samples;
// callers decide whether a rate other than [SampleRate] is acceptable.
//
// Only uncompressed PCM16 data is supported; compressed formats return an
// error.
func DecodeWAV(data []byte) ([]float32, int, error) {
	if len(data) < 44 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, 0, ErrNotWAV
	}

	var (
		channels   int
		sampleRate int
		pcm        []byte
	)

	// Walk the chunk list; real-world encoders insert LIST/fact chunks
	// between fmt and data.
	off := 12
	for off+8 <= len(data) {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		body := off + 8
		if body+size > len(data) {
			size = len(data) - body
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, 0, fmt.Errorf("audio: fmt chunk too short (%d bytes)", size)
			}
			format := binary.LittleEndian.Uint16(data[body : body+2])
			if format != 1 {
				return nil, 0, fmt.Errorf("audio: unsupported WAV format %d (want PCM)", format)
			}
			channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			sampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			bits := binary.LittleEndian.Uint16(data[body+14 : body+16])
			if bits != bitsPerSample {
				return nil, 0, fmt.Errorf("audio: unsupported bit depth %d (want %d)", bits, bitsPerSample)
			}
		case "data":
			pcm = data[body : body+size]
		}

		// Chunks are word-aligned.
		off = body + size + size%2
	}

	if sampleRate == 0 {
		return nil, 0, errors.New("audio: missing fmt chunk")
	}
	if pcm == nil {
		return nil, 0, errors.New("audio: missing data chunk")
	}
	if channels <= 0 {
		channels = 1
	}

	return pcm16ToFloat32Mono(pcm, channels), sampleRate, nil
}

// EncodeWAV wraps raw 16-bit signed little-endian PCM data in a standard
// RIFF/WAV container.
func EncodeWAV(pcm []byte, sampleRate, channels int) []byte {
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8
	dataSize := len(pcm)

	buf := make([]byte, 44+dataSize)

	// RIFF chunk descriptor
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize)) // file size − 8
	copy(buf[8:12], "WAVE")

	// fmt sub-chunk
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)                 // sub-chunk size (PCM)
	binary.LittleEndian.PutUint16(buf[20:22], 1)                  // audio format: PCM
	binary.LittleEndian.PutUint16(buf[22:24], uint16(channels))   // num channels
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate)) // sample rate
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))   // byte rate
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign)) // block align
	binary.LittleEndian.PutUint16(buf[34:36], bitsPerSample)      // bits per sample

	// data sub-chunk
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	copy(buf[44:], pcm)

	return buf
}

// pcm16ToFloat32Mono down-mixes multi-channel 16-bit PCM to mono float32 by
// averaging all channels per frame. If channels is 1 this is equivalent to
// PCM16ToFloat32.
func pcm16ToFloat32Mono(pcm []byte, channels int) []float32 {
	if channels <= 1 {
		return PCM16ToFloat32(pcm)
	}
	samplesPerChannel := len(pcm) / (2 * channels)
	mono := make([]float32, samplesPerChannel)
	for i := range samplesPerChannel {
		var sum float32
		for ch := range channels {
			idx := (i*channels + ch) * 2
			sample := int16(binary.LittleEndian.Uint16(pcm[idx : idx+2]))
			sum += float32(sample) / 32768.0
		}
		mono[i] = sum / float32(channels)
	}
	return mono
}
