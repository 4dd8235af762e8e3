package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r over the defaults and validates
// the result. Useful in tests where configs are constructed from string
// literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.ListenAddr == "" {
		errs = append(errs, errors.New("server.listen_addr is required"))
	}
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	s := &cfg.Streaming
	if s.MinConfirmations < 1 {
		errs = append(errs, fmt.Errorf("streaming.min_confirmations %d is invalid; must be >= 1", s.MinConfirmations))
	}
	if s.MaxBufferDuration <= 0 {
		errs = append(errs, errors.New("streaming.max_buffer_duration must be positive"))
	}
	if s.ReconcileInterval <= 0 {
		errs = append(errs, errors.New("streaming.reconcile_interval must be positive"))
	}
	if s.ChunkDuration <= 0 {
		errs = append(errs, errors.New("streaming.chunk_duration must be positive"))
	}
	if s.ChunkOverlap < 0 || s.ChunkOverlap >= s.ChunkDuration {
		errs = append(errs, fmt.Errorf("streaming.chunk_overlap %v must be in [0, chunk_duration)", s.ChunkOverlap))
	}
	if s.MaxOverlapWords < 1 {
		errs = append(errs, fmt.Errorf("streaming.max_overlap_words %d is invalid; must be >= 1", s.MaxOverlapWords))
	}
	if s.MaxChunkBytes <= 0 {
		errs = append(errs, errors.New("streaming.max_chunk_bytes must be positive"))
	}
	if s.AuthTimeout <= 0 {
		errs = append(errs, errors.New("streaming.auth_timeout must be positive"))
	}

	if cfg.RateLimit.RequestsPerMinute < 1 {
		errs = append(errs, fmt.Errorf("rate_limit.requests_per_minute %d is invalid; must be >= 1", cfg.RateLimit.RequestsPerMinute))
	}

	if cfg.Polish.Timeout <= 0 {
		errs = append(errs, errors.New("polish.timeout must be positive"))
	}

	return errors.Join(errs...)
}
