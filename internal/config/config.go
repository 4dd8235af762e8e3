// Package config provides the configuration schema and loader for the
// voiceflowd dictation server.
package config

import "time"

// LogLevel controls log verbosity for the voiceflowd server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for voiceflowd.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Engine    EngineConfig    `yaml:"engine"`
	Polish    PolishConfig    `yaml:"polish"`
	Store     StoreConfig     `yaml:"store"`
	Streaming StreamingConfig `yaml:"streaming"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// EngineConfig selects and configures the speech-recognition engine.
type EngineConfig struct {
	// ModelPath is the filesystem path to the whisper.cpp model file.
	ModelPath string `yaml:"model_path"`

	// Language is the BCP-47 language code for transcription (e.g. "en").
	Language string `yaml:"language"`
}

// PolishConfig configures the optional AI polish stage of the text pipeline.
// The endpoint must speak the OpenAI chat-completions protocol; OpenRouter
// does.
type PolishConfig struct {
	// APIKey authenticates against the completion endpoint. Polish is
	// disabled process-wide when empty.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the completion endpoint. Defaults to OpenRouter.
	BaseURL string `yaml:"base_url"`

	// Model is the default model when a dictation mode does not name one.
	Model string `yaml:"model"`

	// Timeout bounds a single polish request. Defaults to 6s; on timeout
	// the pre-polish text is used unchanged.
	Timeout time.Duration `yaml:"timeout"`
}

// StoreConfig configures the persistence layer.
type StoreConfig struct {
	// PostgresDSN is the connection string for the record store. When empty
	// the server runs on an in-memory store and nothing survives restarts.
	PostgresDSN string `yaml:"postgres_dsn"`
}

// StreamingConfig holds the tunables of the live dictation loop. Zero values
// are replaced by defaults in [Validate]; see Default for the canonical set.
type StreamingConfig struct {
	// MinConfirmations is the number of reconciliation passes that must
	// agree on a word at a position before it is confirmed.
	MinConfirmations int `yaml:"min_confirmations"`

	// MaxBufferDuration caps the per-session audio buffer; older samples
	// are evicted beyond it.
	MaxBufferDuration time.Duration `yaml:"max_buffer_duration"`

	// ReconcileInterval is the cadence of reconciliation passes.
	ReconcileInterval time.Duration `yaml:"reconcile_interval"`

	// MinAudioDuration is the minimum buffered audio before a
	// reconciliation pass will run at all.
	MinAudioDuration time.Duration `yaml:"min_audio_duration"`

	// MinFinalDuration is the minimum buffered audio for a final
	// transcription; below it the final text is empty.
	MinFinalDuration time.Duration `yaml:"min_final_duration"`

	// ChunkDuration is the window length used when transcribing audio
	// longer than the engine's single-pass limit.
	ChunkDuration time.Duration `yaml:"chunk_duration"`

	// ChunkOverlap is the overlap between consecutive long-audio windows.
	ChunkOverlap time.Duration `yaml:"chunk_overlap"`

	// MaxOverlapWords bounds the word-overlap search when merging window
	// transcripts.
	MaxOverlapWords int `yaml:"max_overlap_words"`

	// MaxChunkBytes caps a single binary audio frame on the WebSocket.
	MaxChunkBytes int `yaml:"max_chunk_bytes"`

	// AuthTimeout is how long a new WebSocket connection may take to send
	// its auth message before the server closes it.
	AuthTimeout time.Duration `yaml:"auth_timeout"`
}

// RateLimitConfig configures the per-IP limiter on public HTTP endpoints.
type RateLimitConfig struct {
	// RequestsPerMinute is the sliding-window allowance per client IP.
	RequestsPerMinute int `yaml:"requests_per_minute"`
}

// Default returns a Config populated with production defaults. Loading a
// file overlays onto this, so absent keys keep their defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr: ":8080",
			LogLevel:   LogInfo,
		},
		Engine: EngineConfig{
			Language: "en",
		},
		Polish: PolishConfig{
			BaseURL: "https://openrouter.ai/api/v1",
			Model:   "anthropic/claude-3.5-haiku",
			Timeout: 6 * time.Second,
		},
		Streaming: StreamingConfig{
			MinConfirmations:  4,
			MaxBufferDuration: 2 * time.Minute,
			ReconcileInterval: 300 * time.Millisecond,
			MinAudioDuration:  400 * time.Millisecond,
			MinFinalDuration:  300 * time.Millisecond,
			ChunkDuration:     30 * time.Second,
			ChunkOverlap:      2 * time.Second,
			MaxOverlapWords:   5,
			MaxChunkBytes:     1 << 20,
			AuthTimeout:       5 * time.Second,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 30,
		},
	}
}
