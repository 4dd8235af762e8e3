package session

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/voiceflow/voiceflowd/internal/auth"
	"github.com/voiceflow/voiceflowd/internal/config"
	"github.com/voiceflow/voiceflowd/internal/store"
	"github.com/voiceflow/voiceflowd/internal/textproc"
	"github.com/voiceflow/voiceflowd/pkg/asr/mock"
)

// wsMessage is a union of every server message shape, for test decoding.
type wsMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	Mode      string `json:"mode"`
	Partial   string `json:"partial"`
	Confirmed string `json:"confirmed"`
	Text      string `json:"text"`
	Raw       string `json:"raw"`
	Error     string `json:"error"`
	MaxSize   int    `json:"max_size"`
}

func testStreamingConfig() config.StreamingConfig {
	cfg := config.Default().Streaming
	cfg.MinConfirmations = 1
	cfg.ReconcileInterval = 10 * time.Millisecond
	cfg.MinAudioDuration = 100 * time.Millisecond
	cfg.MinFinalDuration = 100 * time.Millisecond
	cfg.AuthTimeout = 250 * time.Millisecond
	return cfg
}

func newTestHandler(t *testing.T, engine *mock.Engine, cfg config.StreamingConfig) (*Handler, store.Store) {
	t.Helper()
	svc, err := auth.New()
	if err != nil {
		t.Fatalf("auth.New(): %v", err)
	}
	st := store.NewMem()
	return &Handler{
		Engine:   engine,
		Store:    st,
		Pipeline: textproc.NewPipeline(st, nil),
		Auth:     svc,
		Cfg:      cfg,
	}, st
}

func dial(t *testing.T, ctx context.Context, h *Handler) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("websocket.Dial(): %v", err)
	}
	t.Cleanup(func() { conn.CloseNow() })
	return conn
}

func sendJSON(t *testing.T, ctx context.Context, conn *websocket.Conn, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func readMessage(t *testing.T, ctx context.Context, conn *websocket.Conn) wsMessage {
	t.Helper()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg wsMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal %q: %v", data, err)
	}
	return msg
}

// readUntil drains messages until one of the wanted type arrives.
func readUntil(t *testing.T, ctx context.Context, conn *websocket.Conn, typ string) wsMessage {
	t.Helper()
	for {
		msg := readMessage(t, ctx, conn)
		if msg.Type == typ {
			return msg
		}
	}
}

// pcmSilence returns n samples of silent 16-bit PCM.
func pcmSilence(n int) []byte {
	return make([]byte, 2*n)
}

func authenticate(t *testing.T, ctx context.Context, conn *websocket.Conn, h *Handler, extra authMessage) wsMessage {
	t.Helper()
	extra.Type = "auth"
	extra.Token = h.Auth.(*auth.Service).Token()
	sendJSON(t, ctx, conn, extra)
	msg := readMessage(t, ctx, conn)
	if msg.Type != "session_start" {
		t.Fatalf("expected session_start, got %+v", msg)
	}
	return msg
}

func TestSession_AuthFailure(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	h, _ := newTestHandler(t, &mock.Engine{}, testStreamingConfig())
	conn := dial(t, ctx, h)

	sendJSON(t, ctx, conn, authMessage{Type: "auth", Token: "not-the-token"})

	msg := readMessage(t, ctx, conn)
	if msg.Error == "" {
		t.Fatalf("expected error message, got %+v", msg)
	}
	_, _, err := conn.Read(ctx)
	if got := websocket.CloseStatus(err); got != closeAuthFailed {
		t.Fatalf("close status: got=%v, want %v", got, closeAuthFailed)
	}
}

func TestSession_AuthTimeout(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cfg := testStreamingConfig()
	cfg.AuthTimeout = 50 * time.Millisecond
	h, _ := newTestHandler(t, &mock.Engine{}, cfg)
	conn := dial(t, ctx, h)

	// Send nothing; the server should give up and close.
	msg := readMessage(t, ctx, conn)
	if msg.Error == "" {
		t.Fatalf("expected error message, got %+v", msg)
	}
	_, _, err := conn.Read(ctx)
	if got := websocket.CloseStatus(err); got != closeAuthTimeout {
		t.Fatalf("close status: got=%v, want %v", got, closeAuthTimeout)
	}
}

func TestSession_MalformedAuth(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	h, _ := newTestHandler(t, &mock.Engine{}, testStreamingConfig())
	conn := dial(t, ctx, h)

	if err := conn.Write(ctx, websocket.MessageText, []byte("{not json")); err != nil {
		t.Fatalf("write: %v", err)
	}
	readMessage(t, ctx, conn) // error message
	_, _, err := conn.Read(ctx)
	if got := websocket.CloseStatus(err); got != closeAuthError {
		t.Fatalf("close status: got=%v, want %v", got, closeAuthError)
	}
}

func TestSession_StreamToFinal(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	engine := &mock.Engine{Func: func([]float32) (string, error) { return "hello world", nil }}
	h, st := newTestHandler(t, engine, testStreamingConfig())
	conn := dial(t, ctx, h)

	start := authenticate(t, ctx, conn, h, authMessage{AppName: "TestApp"})
	if start.Mode != "Dictation" {
		t.Fatalf("mode: got=%q, want %q", start.Mode, "Dictation")
	}
	if start.SessionID == "" {
		t.Fatalf("expected a session id")
	}

	// One second of audio, well past the minimum pass duration.
	if err := conn.Write(ctx, websocket.MessageBinary, pcmSilence(16000)); err != nil {
		t.Fatalf("write audio: %v", err)
	}

	partial := readUntil(t, ctx, conn, "partial")
	if partial.Confirmed != "hello world" {
		t.Fatalf("confirmed: got=%q, want %q", partial.Confirmed, "hello world")
	}

	if err := conn.Write(ctx, websocket.MessageText, []byte("stop")); err != nil {
		t.Fatalf("write stop: %v", err)
	}
	final := readUntil(t, ctx, conn, "final")
	if final.Raw != "hello world" {
		t.Fatalf("final raw: got=%q, want %q", final.Raw, "hello world")
	}
	if final.Text != "Hello world" {
		t.Fatalf("final text: got=%q, want %q", final.Text, "Hello world")
	}
	if final.Mode != "Dictation" {
		t.Fatalf("final mode: got=%q, want %q", final.Mode, "Dictation")
	}

	recs, err := st.Transcriptions(ctx, 10, 0)
	if err != nil {
		t.Fatalf("Transcriptions(): %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("persisted transcriptions: got=%d, want 1", len(recs))
	}
	if recs[0].Text != "Hello world" || recs[0].WordCount != 2 {
		t.Fatalf("persisted record: %+v", recs[0])
	}
	if recs[0].SessionID != start.SessionID {
		t.Fatalf("session id: got=%q, want %q", recs[0].SessionID, start.SessionID)
	}
}

func TestSession_SurvivesFinal(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	engine := &mock.Engine{Func: func([]float32) (string, error) { return "again", nil }}
	h, st := newTestHandler(t, engine, testStreamingConfig())
	conn := dial(t, ctx, h)
	authenticate(t, ctx, conn, h, authMessage{})

	for i := 0; i < 2; i++ {
		if err := conn.Write(ctx, websocket.MessageBinary, pcmSilence(16000)); err != nil {
			t.Fatalf("write audio: %v", err)
		}
		if err := conn.Write(ctx, websocket.MessageText, []byte("stop")); err != nil {
			t.Fatalf("write stop: %v", err)
		}
		final := readUntil(t, ctx, conn, "final")
		if final.Raw != "again" {
			t.Fatalf("utterance %d raw: got=%q, want %q", i, final.Raw, "again")
		}
	}

	recs, err := st.Transcriptions(ctx, 10, 0)
	if err != nil {
		t.Fatalf("Transcriptions(): %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("persisted transcriptions: got=%d, want 2", len(recs))
	}
}

func TestSession_ShortAudioFinalIsEmpty(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	engine := &mock.Engine{Func: func([]float32) (string, error) { return "ghost", nil }}
	h, st := newTestHandler(t, engine, testStreamingConfig())
	conn := dial(t, ctx, h)
	authenticate(t, ctx, conn, h, authMessage{})

	// 50ms, below the final minimum of 100ms.
	if err := conn.Write(ctx, websocket.MessageBinary, pcmSilence(800)); err != nil {
		t.Fatalf("write audio: %v", err)
	}
	if err := conn.Write(ctx, websocket.MessageText, []byte("stop")); err != nil {
		t.Fatalf("write stop: %v", err)
	}

	final := readUntil(t, ctx, conn, "final")
	if final.Text != "" || final.Raw != "" {
		t.Fatalf("expected empty final, got %+v", final)
	}
	recs, err := st.Transcriptions(ctx, 10, 0)
	if err != nil {
		t.Fatalf("Transcriptions(): %v", err)
	}
	if len(recs) != 0 {
		t.Fatalf("persisted transcriptions: got=%d, want 0", len(recs))
	}
}

func TestSession_OversizeFrameRejected(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cfg := testStreamingConfig()
	cfg.MaxChunkBytes = 1024
	engine := &mock.Engine{Func: func([]float32) (string, error) { return "x", nil }}
	h, _ := newTestHandler(t, engine, cfg)
	conn := dial(t, ctx, h)
	authenticate(t, ctx, conn, h, authMessage{})

	if err := conn.Write(ctx, websocket.MessageBinary, pcmSilence(1024)); err != nil {
		t.Fatalf("write audio: %v", err)
	}
	msg := readMessage(t, ctx, conn)
	if msg.Error == "" || msg.MaxSize != 1024 {
		t.Fatalf("expected oversize error with max_size, got %+v", msg)
	}

	// The session keeps going.
	if err := conn.Write(ctx, websocket.MessageText, []byte("stop")); err != nil {
		t.Fatalf("write stop: %v", err)
	}
	if final := readUntil(t, ctx, conn, "final"); final.Raw != "" {
		t.Fatalf("expected empty final after rejected frame, got %+v", final)
	}
}

func TestSession_ModeResolution(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	h, st := newTestHandler(t, &mock.Engine{}, testStreamingConfig())

	// The seeded Email mode auto-switches on mail clients.
	conn := dial(t, ctx, h)
	start := authenticate(t, ctx, conn, h, authMessage{AppName: "Microsoft Outlook"})
	if start.Mode != "Email" {
		t.Fatalf("auto-switched mode: got=%q, want %q", start.Mode, "Email")
	}
	conn.Close(websocket.StatusNormalClosure, "")

	// An explicit mode id wins over the app name.
	modes, err := st.Modes(ctx)
	if err != nil {
		t.Fatalf("Modes(): %v", err)
	}
	var notesID int64
	for _, m := range modes {
		if m.Name == "Notes" {
			notesID = m.ID
		}
	}
	if notesID == 0 {
		t.Fatalf("seeded Notes mode not found")
	}
	conn2 := dial(t, ctx, h)
	start2 := authenticate(t, ctx, conn2, h, authMessage{AppName: "Microsoft Outlook", ModeID: notesID})
	if start2.Mode != "Notes" {
		t.Fatalf("explicit mode: got=%q, want %q", start2.Mode, "Notes")
	}
}
