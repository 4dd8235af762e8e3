// Package store defines the persistence layer for voiceflowd: dictation
// modes, text snippets, the personal dictionary, and transcription history.
// The production implementation is [PostgresStore]; [MemStore] backs tests
// and DSN-less deployments.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("store: not found")

// Mode is a dictation mode: a named bundle of pipeline toggles plus the
// prompt settings used when AI polish is enabled.
type Mode struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	SystemPrompt string `json:"system_prompt"`

	// Tone steers AI polish phrasing: "formal", "casual", or "technical".
	Tone string `json:"tone"`

	UseAIPolish   bool `json:"use_ai_polish"`
	UseCleanup    bool `json:"use_cleanup"`
	UseDictionary bool `json:"use_dictionary"`
	UseSnippets   bool `json:"use_snippets"`

	// AIModel overrides the configured polish model when non-empty.
	AIModel string `json:"ai_model"`

	// AutoSwitchApps lists application-name substrings that select this
	// mode automatically when the client reports a matching frontmost app.
	AutoSwitchApps []string `json:"auto_switch_apps"`

	Shortcut  string `json:"shortcut"`
	SortOrder int    `json:"sort_order"`
	IsDefault bool   `json:"is_default"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Snippet expands a spoken trigger phrase into stored content.
type Snippet struct {
	ID          int64     `json:"id"`
	Trigger     string    `json:"trigger"`
	Content     string    `json:"content"`
	Description string    `json:"description"`
	UseCount    int64     `json:"use_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// DictionaryEntry is a personal-dictionary substitution applied verbatim
// (case-insensitively) to transcribed text.
type DictionaryEntry struct {
	Original    string `json:"original"`
	Replacement string `json:"replacement"`
}

// TranscriptionRecord is one persisted dictation result.
type TranscriptionRecord struct {
	ID        uuid.UUID `json:"id"`
	SessionID string    `json:"session_id"`

	// RawText is the engine output before the text pipeline ran.
	RawText string `json:"raw_text"`

	// Text is the final pipeline output delivered to the client.
	Text string `json:"text"`

	ModeName     string  `json:"mode"`
	CommandType  string  `json:"command_type"`
	AppName      string  `json:"app_name"`
	AudioSeconds float64 `json:"audio_seconds"`
	WordCount    int     `json:"word_count"`

	CreatedAt time.Time `json:"created_at"`
}

// Stats summarises transcription history for the client dashboard.
type Stats struct {
	TotalTranscriptions int64 `json:"total_transcriptions"`
	TotalWords          int64 `json:"total_words"`

	// EstimatedMinutes approximates time dictated at 40 words per minute.
	EstimatedMinutes int64 `json:"estimated_minutes"`
}

// Store is the persistence interface used by the server and session layers.
// Implementations must be safe for concurrent use.
type Store interface {
	// Modes returns all dictation modes ordered by sort order then name.
	Modes(ctx context.Context) ([]Mode, error)

	// Mode returns one mode by ID, or ErrNotFound.
	Mode(ctx context.Context, id int64) (*Mode, error)

	// DefaultMode returns the mode flagged is_default, or ErrNotFound when
	// none is flagged.
	DefaultMode(ctx context.Context) (*Mode, error)

	// CreateMode inserts m and fills its ID and timestamps.
	CreateMode(ctx context.Context, m *Mode) error

	// UpdateMode rewrites an existing mode by ID.
	UpdateMode(ctx context.Context, m *Mode) error

	// DeleteMode removes a mode by ID.
	DeleteMode(ctx context.Context, id int64) error

	// Snippets returns all snippets.
	Snippets(ctx context.Context) ([]Snippet, error)

	// CreateSnippet validates and inserts s, filling ID and timestamps.
	CreateSnippet(ctx context.Context, s *Snippet) error

	// UpdateSnippet rewrites an existing snippet by ID.
	UpdateSnippet(ctx context.Context, s *Snippet) error

	// DeleteSnippet removes a snippet by ID.
	DeleteSnippet(ctx context.Context, id int64) error

	// IncrementSnippetUse bumps a snippet's use counter.
	IncrementSnippetUse(ctx context.Context, id int64) error

	// Dictionary returns all personal-dictionary entries.
	Dictionary(ctx context.Context) ([]DictionaryEntry, error)

	// PutDictionaryEntry validates and upserts one entry keyed by its
	// lowercased original text.
	PutDictionaryEntry(ctx context.Context, e DictionaryEntry) error

	// DeleteDictionaryEntry removes the entry whose original matches
	// case-insensitively.
	DeleteDictionaryEntry(ctx context.Context, original string) error

	// SaveTranscription persists one dictation result, filling ID and
	// CreatedAt when unset.
	SaveTranscription(ctx context.Context, rec *TranscriptionRecord) error

	// Transcription returns one record by ID, or ErrNotFound.
	Transcription(ctx context.Context, id uuid.UUID) (*TranscriptionRecord, error)

	// Transcriptions returns history newest-first, bounded by limit with
	// the given offset. A non-positive limit applies a server default.
	Transcriptions(ctx context.Context, limit, offset int) ([]TranscriptionRecord, error)

	// DeleteTranscription removes a record by ID.
	DeleteTranscription(ctx context.Context, id uuid.UUID) error

	// Stats aggregates transcription history.
	Stats(ctx context.Context) (*Stats, error)
}
