// Package server exposes the HTTP surface: the WebSocket dictation
// endpoint, a single-shot transcription endpoint, the modes/snippets/
// dictionary management API, transcription history, and the operational
// probes plus Prometheus metrics.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/voiceflow/voiceflowd/internal/auth"
	"github.com/voiceflow/voiceflowd/internal/config"
	"github.com/voiceflow/voiceflowd/internal/health"
	"github.com/voiceflow/voiceflowd/internal/longform"
	"github.com/voiceflow/voiceflowd/internal/observe"
	"github.com/voiceflow/voiceflowd/internal/ratelimit"
	"github.com/voiceflow/voiceflowd/internal/session"
	"github.com/voiceflow/voiceflowd/internal/store"
	"github.com/voiceflow/voiceflowd/internal/textproc"
	"github.com/voiceflow/voiceflowd/internal/textproc/polish"
	"github.com/voiceflow/voiceflowd/pkg/asr"
	"github.com/voiceflow/voiceflowd/pkg/audio"
)

const (
	// minUploadBytes rejects uploads too small to hold speech.
	minUploadBytes = 1000

	// maxUploadBytes caps a single-shot upload (about 30 minutes of
	// 16 kHz PCM16).
	maxUploadBytes = 64 << 20
)

// Deps bundles everything the HTTP layer needs.
type Deps struct {
	Store     store.Store
	Engine    asr.Engine
	Pipeline  *textproc.Pipeline
	Auth      *auth.Service
	Limiter   *ratelimit.Limiter
	Metrics   *observe.Metrics
	Sessions  *session.Handler
	Streaming config.StreamingConfig
}

// Server routes HTTP requests to the dictation subsystems.
type Server struct {
	store    store.Store
	engine   asr.Engine
	pipeline *textproc.Pipeline
	auth     *auth.Service
	limiter  *ratelimit.Limiter
	metrics  *observe.Metrics
	sessions *session.Handler
	cfg      config.StreamingConfig
}

// New builds a Server from its dependencies.
func New(d Deps) *Server {
	return &Server{
		store:    d.Store,
		engine:   d.Engine,
		pipeline: d.Pipeline,
		auth:     d.Auth,
		limiter:  d.Limiter,
		metrics:  d.Metrics,
		sessions: d.Sessions,
		cfg:      d.Streaming,
	}
}

// Routes returns the full route table.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	health.New(
		health.Probe{Name: "engine", Check: s.checkEngine},
		health.Probe{Name: "store", Check: s.checkStore},
	).Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/ws-token", s.handleWSToken)
	mux.Handle("GET /ws/transcribe", s.sessions)

	mux.HandleFunc("POST /api/transcribe", s.handleTranscribe)
	mux.HandleFunc("GET /api/transcriptions", s.handleListTranscriptions)
	mux.HandleFunc("GET /api/transcriptions/{id}", s.handleGetTranscription)
	mux.HandleFunc("DELETE /api/transcriptions/{id}", s.handleDeleteTranscription)
	mux.HandleFunc("POST /api/transcriptions/{id}/reprocess", s.handleReprocess)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /api/sessions", s.handleSessions)

	mux.HandleFunc("GET /api/modes", s.handleListModes)
	mux.HandleFunc("POST /api/modes", s.handleCreateMode)
	mux.HandleFunc("PUT /api/modes/{id}", s.handleUpdateMode)
	mux.HandleFunc("DELETE /api/modes/{id}", s.handleDeleteMode)

	mux.HandleFunc("GET /api/snippets", s.handleListSnippets)
	mux.HandleFunc("POST /api/snippets", s.handleCreateSnippet)
	mux.HandleFunc("PUT /api/snippets/{id}", s.handleUpdateSnippet)
	mux.HandleFunc("DELETE /api/snippets/{id}", s.handleDeleteSnippet)

	mux.HandleFunc("GET /api/dictionary", s.handleListDictionary)
	mux.HandleFunc("PUT /api/dictionary", s.handlePutDictionary)
	mux.HandleFunc("DELETE /api/dictionary/{original}", s.handleDeleteDictionary)

	return mux
}

func (s *Server) checkEngine(ctx context.Context) error {
	if s.engine == nil {
		return errors.New("speech engine not loaded")
	}
	return nil
}

func (s *Server) checkStore(ctx context.Context) error {
	_, err := s.store.Stats(ctx)
	return err
}

// handleWSToken hands the per-process streaming token to the local client.
func (s *Server) handleWSToken(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"token": s.auth.Token()})
}

// handleSessions lists the live dictation sessions.
func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	active := s.sessions.Active()
	writeJSON(w, http.StatusOK, map[string]any{
		"count":    len(active),
		"sessions": active,
	})
}

// transcribeResponse is the single-shot transcription payload.
type transcribeResponse struct {
	ID           string  `json:"id"`
	Text         string  `json:"text"`
	Raw          string  `json:"raw"`
	Mode         string  `json:"mode"`
	CommandType  string  `json:"command_type"`
	AudioSeconds float64 `json:"audio_seconds"`
	WordCount    int     `json:"word_count"`
}

// handleTranscribe transcribes one uploaded recording: WAV (PCM16) or raw
// 16 kHz PCM16 in the body. Long recordings are chunked. The result runs
// through the full text pipeline and is persisted.
func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.Allow(clientIP(r)) {
		if s.metrics != nil {
			s.metrics.RateLimited.Add(r.Context(), 1)
		}
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUploadBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "body too large")
		return
	}
	if len(body) < minUploadBytes {
		writeError(w, http.StatusBadRequest, "audio too short")
		return
	}

	samples, rate, err := audio.DecodeWAV(body)
	switch {
	case errors.Is(err, audio.ErrNotWAV):
		// Raw 16 kHz PCM16.
		samples = audio.PCM16ToFloat32(body)
	case err != nil:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid audio: %v", err))
		return
	case rate != audio.SampleRate:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unsupported sample rate %d, want %d", rate, audio.SampleRate))
		return
	}

	ctx := r.Context()
	mode := s.modeFor(ctx, r.URL.Query().Get("mode_id"))

	start := time.Now()
	raw, err := longform.Transcribe(ctx, s.engine, samples, longform.Config{
		SampleRate:      audio.SampleRate,
		ChunkDuration:   s.cfg.ChunkDuration,
		ChunkOverlap:    s.cfg.ChunkOverlap,
		MaxOverlapWords: s.cfg.MaxOverlapWords,
	})
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordEngineError(ctx, "upload")
		}
		writeError(w, http.StatusInternalServerError, "transcription failed")
		return
	}
	if s.metrics != nil {
		s.metrics.TranscriptionDuration.Record(ctx, time.Since(start).Seconds())
	}
	raw = strings.TrimSpace(raw)

	res := s.pipeline.Run(ctx, raw, mode, polish.ContextGeneral)

	rec := &store.TranscriptionRecord{
		RawText:      raw,
		Text:         res.Text,
		ModeName:     mode.Name,
		CommandType:  string(res.Command),
		AppName:      r.URL.Query().Get("app_name"),
		AudioSeconds: audio.Duration(len(samples), audio.SampleRate).Seconds(),
		WordCount:    len(strings.Fields(res.Text)),
	}
	if err := s.store.SaveTranscription(ctx, rec); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to persist transcription")
		return
	}

	writeJSON(w, http.StatusOK, transcribeResponse{
		ID:           rec.ID.String(),
		Text:         rec.Text,
		Raw:          rec.RawText,
		Mode:         rec.ModeName,
		CommandType:  rec.CommandType,
		AudioSeconds: rec.AudioSeconds,
		WordCount:    rec.WordCount,
	})
}

// modeFor resolves an optional mode_id query value, falling back to the
// default mode and then to an all-stages-off passthrough.
func (s *Server) modeFor(ctx context.Context, modeID string) *store.Mode {
	if modeID != "" {
		if id, err := strconv.ParseInt(modeID, 10, 64); err == nil {
			if m, err := s.store.Mode(ctx, id); err == nil {
				return m
			}
		}
	}
	if m, err := s.store.DefaultMode(ctx); err == nil {
		return m
	}
	return &store.Mode{Name: "Passthrough"}
}

// clientIP extracts the rate-limit key from the request.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"encoding failed"}`, http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
