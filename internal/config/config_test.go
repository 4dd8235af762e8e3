package config_test

import (
	"strings"
	"testing"
	"time"

	"github.com/voiceflow/voiceflowd/internal/config"
)

func TestLoadFromReader_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFromReader(strings.NewReader(""))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("ListenAddr: got=%q, want %q", cfg.Server.ListenAddr, ":8080")
	}
	if cfg.Streaming.MinConfirmations != 4 {
		t.Errorf("MinConfirmations: got=%d, want 4", cfg.Streaming.MinConfirmations)
	}
	if cfg.Streaming.MaxBufferDuration != 2*time.Minute {
		t.Errorf("MaxBufferDuration: got=%v, want 2m", cfg.Streaming.MaxBufferDuration)
	}
	if cfg.Streaming.ReconcileInterval != 300*time.Millisecond {
		t.Errorf("ReconcileInterval: got=%v, want 300ms", cfg.Streaming.ReconcileInterval)
	}
	if cfg.RateLimit.RequestsPerMinute != 30 {
		t.Errorf("RequestsPerMinute: got=%d, want 30", cfg.RateLimit.RequestsPerMinute)
	}
	if cfg.Polish.Timeout != 6*time.Second {
		t.Errorf("Polish.Timeout: got=%v, want 6s", cfg.Polish.Timeout)
	}
}

func TestLoadFromReader_Overrides(t *testing.T) {
	t.Parallel()

	yml := `
server:
  listen_addr: ":9090"
  log_level: debug
engine:
  model_path: /models/ggml-base.en.bin
streaming:
  min_confirmations: 2
  reconcile_interval: 500ms
rate_limit:
  requests_per_minute: 3
`
	cfg, err := config.LoadFromReader(strings.NewReader(yml))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Server.ListenAddr != ":9090" {
		t.Errorf("ListenAddr: got=%q, want %q", cfg.Server.ListenAddr, ":9090")
	}
	if cfg.Server.LogLevel != config.LogDebug {
		t.Errorf("LogLevel: got=%q, want debug", cfg.Server.LogLevel)
	}
	if cfg.Streaming.MinConfirmations != 2 {
		t.Errorf("MinConfirmations: got=%d, want 2", cfg.Streaming.MinConfirmations)
	}
	if cfg.Streaming.ReconcileInterval != 500*time.Millisecond {
		t.Errorf("ReconcileInterval: got=%v, want 500ms", cfg.Streaming.ReconcileInterval)
	}
	if cfg.RateLimit.RequestsPerMinute != 3 {
		t.Errorf("RequestsPerMinute: got=%d, want 3", cfg.RateLimit.RequestsPerMinute)
	}

	// Untouched sections keep their defaults.
	if cfg.Streaming.ChunkDuration != 30*time.Second {
		t.Errorf("ChunkDuration: got=%v, want 30s", cfg.Streaming.ChunkDuration)
	}
}

func TestLoadFromReader_UnknownField(t *testing.T) {
	t.Parallel()

	if _, err := config.LoadFromReader(strings.NewReader("server:\n  listne_addr: ':8080'\n")); err == nil {
		t.Fatal("LoadFromReader: expected error for unknown field, got nil")
	}
}

func TestValidate_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"bad log level", func(c *config.Config) { c.Server.LogLevel = "loud" }, "log_level"},
		{"zero confirmations", func(c *config.Config) { c.Streaming.MinConfirmations = 0 }, "min_confirmations"},
		{"overlap exceeds chunk", func(c *config.Config) { c.Streaming.ChunkOverlap = c.Streaming.ChunkDuration }, "chunk_overlap"},
		{"zero rate limit", func(c *config.Config) { c.RateLimit.RequestsPerMinute = 0 }, "requests_per_minute"},
		{"empty listen addr", func(c *config.Config) { c.Server.ListenAddr = "" }, "listen_addr"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := config.Default()
			tt.mutate(cfg)
			err := config.Validate(cfg)
			if err == nil {
				t.Fatal("Validate: expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Validate: error %q does not mention %q", err, tt.want)
			}
		})
	}
}
