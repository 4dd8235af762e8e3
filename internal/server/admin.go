package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/voiceflow/voiceflowd/internal/store"
	"github.com/voiceflow/voiceflowd/internal/textproc/polish"
)

// ─── Transcription history ──────────────────────────────────────────────────

func (s *Server) handleListTranscriptions(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	recs, err := s.store.Transcriptions(r.Context(), limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list transcriptions")
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleGetTranscription(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r)
	if !ok {
		return
	}
	rec, err := s.store.Transcription(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDeleteTranscription(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r)
	if !ok {
		return
	}
	if err := s.store.DeleteTranscription(r.Context(), id); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleReprocess re-runs a stored raw transcription through the pipeline,
// optionally under a different mode, and stores the outcome as a new record.
func (s *Server) handleReprocess(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r)
	if !ok {
		return
	}

	var req struct {
		ModeID int64 `json:"mode_id"`
	}
	if r.Body != nil {
		// An empty body means "use the default mode".
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	ctx := r.Context()
	orig, err := s.store.Transcription(ctx, id)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	var modeID string
	if req.ModeID != 0 {
		modeID = strconv.FormatInt(req.ModeID, 10)
	}
	mode := s.modeFor(ctx, modeID)

	res := s.pipeline.Run(ctx, orig.RawText, mode, polish.ContextGeneral)
	rec := &store.TranscriptionRecord{
		SessionID:    orig.SessionID,
		RawText:      orig.RawText,
		Text:         res.Text,
		ModeName:     mode.Name,
		CommandType:  string(res.Command),
		AppName:      orig.AppName,
		AudioSeconds: orig.AudioSeconds,
		WordCount:    len(strings.Fields(res.Text)),
	}
	if err := s.store.SaveTranscription(ctx, rec); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to persist transcription")
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to compute stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// ─── Modes ──────────────────────────────────────────────────────────────────

func (s *Server) handleListModes(w http.ResponseWriter, r *http.Request) {
	modes, err := s.store.Modes(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list modes")
		return
	}
	writeJSON(w, http.StatusOK, modes)
}

func (s *Server) handleCreateMode(w http.ResponseWriter, r *http.Request) {
	var m store.Mode
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		writeError(w, http.StatusBadRequest, "malformed mode")
		return
	}
	if err := s.store.CreateMode(r.Context(), &m); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (s *Server) handleUpdateMode(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt64(w, r)
	if !ok {
		return
	}
	var m store.Mode
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		writeError(w, http.StatusBadRequest, "malformed mode")
		return
	}
	m.ID = id
	if err := s.store.UpdateMode(r.Context(), &m); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleDeleteMode(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt64(w, r)
	if !ok {
		return
	}
	if err := s.store.DeleteMode(r.Context(), id); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ─── Snippets ───────────────────────────────────────────────────────────────

func (s *Server) handleListSnippets(w http.ResponseWriter, r *http.Request) {
	snips, err := s.store.Snippets(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list snippets")
		return
	}
	writeJSON(w, http.StatusOK, snips)
}

func (s *Server) handleCreateSnippet(w http.ResponseWriter, r *http.Request) {
	var sn store.Snippet
	if err := json.NewDecoder(r.Body).Decode(&sn); err != nil {
		writeError(w, http.StatusBadRequest, "malformed snippet")
		return
	}
	if err := s.store.CreateSnippet(r.Context(), &sn); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, sn)
}

func (s *Server) handleUpdateSnippet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt64(w, r)
	if !ok {
		return
	}
	var sn store.Snippet
	if err := json.NewDecoder(r.Body).Decode(&sn); err != nil {
		writeError(w, http.StatusBadRequest, "malformed snippet")
		return
	}
	sn.ID = id
	if err := s.store.UpdateSnippet(r.Context(), &sn); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sn)
}

func (s *Server) handleDeleteSnippet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt64(w, r)
	if !ok {
		return
	}
	if err := s.store.DeleteSnippet(r.Context(), id); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ─── Dictionary ─────────────────────────────────────────────────────────────

func (s *Server) handleListDictionary(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.Dictionary(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list dictionary")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handlePutDictionary(w http.ResponseWriter, r *http.Request) {
	var e store.DictionaryEntry
	if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
		writeError(w, http.StatusBadRequest, "malformed dictionary entry")
		return
	}
	if err := s.store.PutDictionaryEntry(r.Context(), e); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleDeleteDictionary(w http.ResponseWriter, r *http.Request) {
	original, err := url.PathUnescape(r.PathValue("original"))
	if err != nil || original == "" {
		writeError(w, http.StatusBadRequest, "missing dictionary key")
		return
	}
	if err := s.store.DeleteDictionaryEntry(r.Context(), original); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ─── Helpers ────────────────────────────────────────────────────────────────

func pathInt64(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func pathUUID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return uuid.Nil, false
	}
	return id, true
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	writeError(w, http.StatusBadRequest, err.Error())
}
