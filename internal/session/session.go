// Package session implements the live dictation session over a WebSocket:
// authentication, binary PCM streaming, periodic reconciliation passes with
// partial/confirmed updates, and finalisation through the text pipeline.
//
// Wire protocol, all JSON text frames except audio:
//
//	client -> {"type":"auth","token":...,...}        first frame, within the auth timeout
//	server -> {"type":"session_start",...}
//	client -> binary 16-bit LE PCM frames at 16 kHz
//	server -> {"type":"partial","partial":...,"confirmed":...}
//	client -> "stop"
//	server -> {"type":"final","text":...,"raw":...,...}
//
// After a final the session returns to streaming; the connection is reused
// for the next utterance.
package session

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/voiceflow/voiceflowd/internal/config"
	"github.com/voiceflow/voiceflowd/internal/longform"
	"github.com/voiceflow/voiceflowd/internal/observe"
	"github.com/voiceflow/voiceflowd/internal/reconcile"
	"github.com/voiceflow/voiceflowd/internal/store"
	"github.com/voiceflow/voiceflowd/internal/textproc"
	"github.com/voiceflow/voiceflowd/internal/textproc/polish"
	"github.com/voiceflow/voiceflowd/pkg/asr"
	"github.com/voiceflow/voiceflowd/pkg/audio"
)

// Handler upgrades HTTP requests to dictation sessions.
type Handler struct {
	Engine   asr.Engine
	Store    store.Store
	Pipeline *textproc.Pipeline
	Auth     AuthVerifier
	Metrics  *observe.Metrics
	Cfg      config.StreamingConfig

	mu     sync.Mutex
	active map[string]Info
}

// Info describes one live session.
type Info struct {
	ID         string    `json:"id"`
	RemoteAddr string    `json:"remote_addr"`
	StartedAt  time.Time `json:"started_at"`
}

// Active returns a snapshot of the authenticated sessions currently running.
func (h *Handler) Active() []Info {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Info, 0, len(h.active))
	for _, info := range h.active {
		out = append(out, info)
	}
	return out
}

func (h *Handler) track(info Info) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.active == nil {
		h.active = make(map[string]Info)
	}
	h.active[info.ID] = info
}

func (h *Handler) untrack(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.active, id)
}

// AuthVerifier checks session tokens. *auth.Service satisfies it.
type AuthVerifier interface {
	Verify(token string) bool
}

// ServeHTTP accepts the WebSocket and runs the session until the client
// disconnects.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// The client is a local desktop app; its origin is not a web page.
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Debug("websocket accept failed", "error", err)
		return
	}
	defer conn.CloseNow()

	s := &session{
		h:      h,
		id:     uuid.NewString(),
		remote: r.RemoteAddr,
		conn:   conn,
		buf:    audio.NewAccumulator(int(h.Cfg.MaxBufferDuration.Seconds()) * audio.SampleRate),
	}
	s.rec = reconcile.New(h.Engine, s.buf, reconcile.Config{
		SampleRate:       audio.SampleRate,
		MinConfirmations: h.Cfg.MinConfirmations,
		MinAudioDuration: h.Cfg.MinAudioDuration,
	})
	s.run(r.Context())
}

type session struct {
	h      *Handler
	id     string
	remote string
	conn   *websocket.Conn

	buf *audio.Accumulator
	rec *reconcile.Reconciler

	mode    *store.Mode
	appCtx  polish.AppContext
	appName string

	writeMu sync.Mutex

	// lastPartial/lastConfirmed suppress unchanged partial messages.
	// Guarded by partialMu: the scheduler updates them, finalize resets
	// them.
	partialMu     sync.Mutex
	lastPartial   string
	lastConfirmed string

	// finalizing pauses the reconcile scheduler while a final
	// transcription runs.
	finalizing atomic.Bool

	passMu     sync.Mutex
	passCancel context.CancelFunc
}

func (s *session) run(ctx context.Context) {
	if !s.authenticate(ctx) {
		return
	}

	s.h.track(Info{ID: s.id, RemoteAddr: s.remote, StartedAt: time.Now()})
	defer s.h.untrack(s.id)
	if s.h.Metrics != nil {
		s.h.Metrics.ActiveSessions.Add(ctx, 1)
		defer s.h.Metrics.ActiveSessions.Add(ctx, -1)
	}
	slog.Info("session started", "session_id", s.id, "mode", s.mode.Name, "app", s.appName)

	schedCtx, stopScheduler := context.WithCancel(ctx)
	defer stopScheduler()
	go s.scheduleLoop(schedCtx)

	s.readLoop(ctx)
	slog.Info("session ended", "session_id", s.id)
}

// authenticate reads and verifies the auth message, resolves the dictation
// mode, and acknowledges with session_start. It returns false when the
// connection was closed.
func (s *session) authenticate(ctx context.Context) bool {
	// Read in a goroutine so the timeout can close the connection with a
	// proper status code. Cancelling the read context would tear the
	// connection down before the close frame goes out.
	type readResult struct {
		typ  websocket.MessageType
		data []byte
		err  error
	}
	ch := make(chan readResult, 1)
	go func() {
		typ, data, err := s.conn.Read(ctx)
		ch <- readResult{typ, data, err}
	}()

	timer := time.NewTimer(s.h.Cfg.AuthTimeout)
	defer timer.Stop()

	var first readResult
	select {
	case <-timer.C:
		s.writeJSON(ctx, errorMessage{Error: "authentication timeout"})
		s.conn.Close(closeAuthTimeout, "authentication timeout")
		return false
	case first = <-ch:
	}
	if first.err != nil {
		return false
	}

	var msg authMessage
	if first.typ != websocket.MessageText || json.Unmarshal(first.data, &msg) != nil {
		s.writeJSON(ctx, errorMessage{Error: "malformed auth message"})
		s.conn.Close(closeAuthError, "malformed auth message")
		return false
	}
	if msg.Type != "auth" || !s.h.Auth.Verify(msg.Token) {
		s.writeJSON(ctx, errorMessage{Error: "authentication failed"})
		s.conn.Close(closeAuthFailed, "authentication failed")
		return false
	}

	s.appCtx = polish.AppContext(msg.AppContext)
	if s.appCtx == "" {
		s.appCtx = polish.ContextGeneral
	}
	s.appName = msg.AppName
	s.mode = resolveMode(ctx, s.h.Store, msg.ModeID, msg.AppName)

	return s.writeJSON(ctx, sessionStartMessage{
		Type:      "session_start",
		SessionID: s.id,
		Mode:      s.mode.Name,
	})
}

// readLoop consumes frames until the connection drops. Binary frames are
// audio; the "stop" text frame finalises the current utterance and the loop
// keeps going for the next one.
func (s *session) readLoop(ctx context.Context) {
	for {
		typ, data, err := s.conn.Read(ctx)
		if err != nil {
			return
		}

		switch typ {
		case websocket.MessageBinary:
			if len(data) > s.h.Cfg.MaxChunkBytes {
				s.writeJSON(ctx, errorMessage{Error: "chunk too large", MaxSize: s.h.Cfg.MaxChunkBytes})
				continue
			}
			evicted := s.buf.Append(audio.PCM16ToFloat32(data))
			if evicted > 0 {
				slog.Warn("audio buffer full, oldest samples evicted",
					"session_id", s.id, "evicted", evicted)
				if s.h.Metrics != nil {
					s.h.Metrics.BufferEvictions.Add(ctx, int64(evicted))
				}
			}

		case websocket.MessageText:
			if strings.TrimSpace(string(data)) == "stop" {
				s.finalize(ctx)
			}
		}
	}
}

// scheduleLoop drives reconciliation passes at the configured interval. A
// tick that lands while a pass is running (or a finalisation is in
// progress) is skipped, not queued.
func (s *session) scheduleLoop(ctx context.Context) {
	ticker := time.NewTicker(s.h.Cfg.ReconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.finalizing.Load() {
				continue
			}
			s.reconcileOnce(ctx)
		}
	}
}

// reconcileOnce runs a single cancellable pass and pushes a partial update
// when anything changed.
func (s *session) reconcileOnce(ctx context.Context) {
	passCtx, cancel := context.WithCancel(ctx)
	s.passMu.Lock()
	s.passCancel = cancel
	s.passMu.Unlock()
	defer func() {
		s.passMu.Lock()
		s.passCancel = nil
		s.passMu.Unlock()
		cancel()
	}()

	start := time.Now()
	snap, err := s.rec.Pass(passCtx)
	if err != nil {
		if passCtx.Err() != nil {
			return
		}
		slog.Warn("reconcile pass failed", "session_id", s.id, "error", err)
		if s.h.Metrics != nil {
			s.h.Metrics.RecordReconcilePass(ctx, "error")
			s.h.Metrics.RecordEngineError(ctx, "reconcile")
		}
		return
	}
	if s.h.Metrics != nil {
		if snap.Skipped {
			s.h.Metrics.RecordReconcilePass(ctx, "skipped")
		} else {
			s.h.Metrics.RecordReconcilePass(ctx, "ok")
			s.h.Metrics.TranscriptionDuration.Record(ctx, time.Since(start).Seconds())
			if snap.NewWords > 0 {
				s.h.Metrics.WordsConfirmed.Add(ctx, int64(snap.NewWords))
			}
		}
	}

	s.partialMu.Lock()
	defer s.partialMu.Unlock()
	if snap.Partial == s.lastPartial && snap.Confirmed == s.lastConfirmed {
		return
	}
	if snap.Partial == "" && snap.Confirmed == "" {
		return
	}
	if s.writeJSON(ctx, partialMessage{Type: "partial", Partial: snap.Partial, Confirmed: snap.Confirmed}) {
		s.lastPartial, s.lastConfirmed = snap.Partial, snap.Confirmed
	}
}

// finalize cancels any in-flight pass, transcribes the full buffer, runs the
// text pipeline, persists the result, and sends the final message. The
// session then resets for the next utterance.
func (s *session) finalize(ctx context.Context) {
	s.finalizing.Store(true)
	defer s.finalizing.Store(false)

	s.passMu.Lock()
	if s.passCancel != nil {
		s.passCancel()
	}
	s.passMu.Unlock()

	raw := s.finalTranscription(ctx)

	start := time.Now()
	res := s.h.Pipeline.Run(ctx, raw, s.mode, s.appCtx)
	if s.h.Metrics != nil && raw != "" {
		s.h.Metrics.PipelineDuration.Record(ctx, time.Since(start).Seconds())
	}

	if raw != "" {
		rec := &store.TranscriptionRecord{
			SessionID:    s.id,
			RawText:      raw,
			Text:         res.Text,
			ModeName:     s.mode.Name,
			CommandType:  string(res.Command),
			AppName:      s.appName,
			AudioSeconds: audio.Duration(s.buf.Len(), audio.SampleRate).Seconds(),
			WordCount:    len(strings.Fields(res.Text)),
		}
		if err := s.h.Store.SaveTranscription(ctx, rec); err != nil {
			slog.Error("failed to persist transcription", "session_id", s.id, "error", err)
		}
	}

	s.writeJSON(ctx, finalMessage{
		Type:        "final",
		Text:        res.Text,
		Raw:         raw,
		Mode:        s.mode.Name,
		CommandType: string(res.Command),
	})

	s.buf.Reset()
	s.rec.Reset()
	s.partialMu.Lock()
	s.lastPartial, s.lastConfirmed = "", ""
	s.partialMu.Unlock()
}

// finalTranscription runs one last inference over everything buffered,
// chunking long audio. Errors yield an empty final rather than killing the
// session.
func (s *session) finalTranscription(ctx context.Context) string {
	samples := s.buf.Snapshot()
	dur := audio.Duration(len(samples), audio.SampleRate)
	if dur < s.h.Cfg.MinFinalDuration {
		slog.Debug("final skipped, audio too short", "session_id", s.id, "duration", dur)
		return ""
	}

	text, err := longform.Transcribe(ctx, s.h.Engine, samples, longform.Config{
		SampleRate:      audio.SampleRate,
		ChunkDuration:   s.h.Cfg.ChunkDuration,
		ChunkOverlap:    s.h.Cfg.ChunkOverlap,
		MaxOverlapWords: s.h.Cfg.MaxOverlapWords,
	})
	if err != nil {
		slog.Error("final transcription failed", "session_id", s.id, "error", err)
		if s.h.Metrics != nil {
			s.h.Metrics.RecordEngineError(ctx, "final")
		}
		return ""
	}
	return strings.TrimSpace(text)
}

// writeJSON marshals v and writes it as a text frame. Returns false when the
// write failed (connection gone).
func (s *session) writeJSON(ctx context.Context, v any) bool {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("marshal websocket message", "error", err)
		return false
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.Write(ctx, websocket.MessageText, data); err != nil {
		slog.Debug("websocket write failed", "session_id", s.id, "error", err)
		return false
	}
	return true
}
