package store

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemStore is an in-memory [Store]. It backs tests and DSN-less deployments;
// nothing survives a restart.
type MemStore struct {
	mu sync.RWMutex

	nextModeID    int64
	nextSnippetID int64

	modes          []Mode
	snippets       []Snippet
	dictionary     map[string]string // lowercased original -> replacement
	transcriptions []TranscriptionRecord
}

// Compile-time interface check.
var _ Store = (*MemStore)(nil)

// NewMem creates a MemStore pre-seeded with [DefaultModes].
func NewMem() *MemStore {
	s := &MemStore{dictionary: make(map[string]string)}
	for _, m := range DefaultModes() {
		_ = s.CreateMode(context.Background(), &m)
	}
	return s
}

func (s *MemStore) Modes(_ context.Context) ([]Mode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := slices.Clone(s.modes)
	slices.SortStableFunc(out, func(a, b Mode) int {
		if a.SortOrder != b.SortOrder {
			return a.SortOrder - b.SortOrder
		}
		return strings.Compare(a.Name, b.Name)
	})
	return out, nil
}

func (s *MemStore) Mode(_ context.Context, id int64) (*Mode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, m := range s.modes {
		if m.ID == id {
			return &m, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemStore) DefaultMode(_ context.Context) (*Mode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, m := range s.modes {
		if m.IsDefault {
			return &m, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemStore) CreateMode(_ context.Context, m *Mode) error {
	if err := ValidateMode(m); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.modes {
		if existing.Name == m.Name {
			return fmt.Errorf("store: mode %q already exists", m.Name)
		}
	}
	s.nextModeID++
	m.ID = s.nextModeID
	m.Tone = defaultTone(m.Tone)
	now := time.Now().UTC()
	m.CreatedAt, m.UpdatedAt = now, now
	s.modes = append(s.modes, *m)
	return nil
}

func (s *MemStore) UpdateMode(_ context.Context, m *Mode) error {
	if err := ValidateMode(m); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.modes {
		if s.modes[i].ID == m.ID {
			m.CreatedAt = s.modes[i].CreatedAt
			m.Tone = defaultTone(m.Tone)
			m.UpdatedAt = time.Now().UTC()
			s.modes[i] = *m
			return nil
		}
	}
	return ErrNotFound
}

func (s *MemStore) DeleteMode(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.modes {
		if s.modes[i].ID == id {
			s.modes = slices.Delete(s.modes, i, i+1)
			return nil
		}
	}
	return ErrNotFound
}

func (s *MemStore) Snippets(_ context.Context) ([]Snippet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := slices.Clone(s.snippets)
	slices.SortFunc(out, func(a, b Snippet) int {
		return strings.Compare(a.Trigger, b.Trigger)
	})
	return out, nil
}

func (s *MemStore) CreateSnippet(_ context.Context, sn *Snippet) error {
	if err := ValidateSnippet(sn); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.snippets) >= MaxSnippets {
		return fmt.Errorf("store: snippet limit of %d reached", MaxSnippets)
	}
	trigger := strings.ToLower(strings.TrimSpace(sn.Trigger))
	for _, existing := range s.snippets {
		if existing.Trigger == trigger {
			return fmt.Errorf("store: snippet trigger %q already exists", trigger)
		}
	}
	s.nextSnippetID++
	sn.ID = s.nextSnippetID
	sn.Trigger = trigger
	sn.UseCount = 0
	now := time.Now().UTC()
	sn.CreatedAt, sn.UpdatedAt = now, now
	s.snippets = append(s.snippets, *sn)
	return nil
}

func (s *MemStore) UpdateSnippet(_ context.Context, sn *Snippet) error {
	if err := ValidateSnippet(sn); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.snippets {
		if s.snippets[i].ID == sn.ID {
			sn.Trigger = strings.ToLower(strings.TrimSpace(sn.Trigger))
			sn.CreatedAt = s.snippets[i].CreatedAt
			sn.UseCount = s.snippets[i].UseCount
			sn.UpdatedAt = time.Now().UTC()
			s.snippets[i] = *sn
			return nil
		}
	}
	return ErrNotFound
}

func (s *MemStore) DeleteSnippet(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.snippets {
		if s.snippets[i].ID == id {
			s.snippets = slices.Delete(s.snippets, i, i+1)
			return nil
		}
	}
	return ErrNotFound
}

func (s *MemStore) IncrementSnippetUse(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.snippets {
		if s.snippets[i].ID == id {
			s.snippets[i].UseCount++
			return nil
		}
	}
	return nil
}

func (s *MemStore) Dictionary(_ context.Context) ([]DictionaryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]DictionaryEntry, 0, len(s.dictionary))
	for orig, repl := range s.dictionary {
		entries = append(entries, DictionaryEntry{Original: orig, Replacement: repl})
	}
	slices.SortFunc(entries, func(a, b DictionaryEntry) int {
		return strings.Compare(a.Original, b.Original)
	})
	return entries, nil
}

func (s *MemStore) PutDictionaryEntry(_ context.Context, e DictionaryEntry) error {
	if err := ValidateDictionaryEntry(e); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(strings.TrimSpace(e.Original))
	if _, exists := s.dictionary[key]; !exists && len(s.dictionary) >= MaxDictionaryEntries {
		return fmt.Errorf("store: dictionary limit of %d entries reached", MaxDictionaryEntries)
	}
	s.dictionary[key] = strings.TrimSpace(e.Replacement)
	return nil
}

func (s *MemStore) DeleteDictionaryEntry(_ context.Context, original string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(strings.TrimSpace(original))
	if _, ok := s.dictionary[key]; !ok {
		return ErrNotFound
	}
	delete(s.dictionary, key)
	return nil
}

func (s *MemStore) SaveTranscription(_ context.Context, rec *TranscriptionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	s.transcriptions = append(s.transcriptions, *rec)
	return nil
}

func (s *MemStore) Transcription(_ context.Context, id uuid.UUID) (*TranscriptionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rec := range s.transcriptions {
		if rec.ID == id {
			return &rec, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemStore) Transcriptions(_ context.Context, limit, offset int) ([]TranscriptionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	// Newest first.
	out := slices.Clone(s.transcriptions)
	slices.Reverse(out)
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemStore) DeleteTranscription(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.transcriptions {
		if s.transcriptions[i].ID == id {
			s.transcriptions = slices.Delete(s.transcriptions, i, i+1)
			return nil
		}
	}
	return ErrNotFound
}

func (s *MemStore) Stats(_ context.Context) (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := &Stats{TotalTranscriptions: int64(len(s.transcriptions))}
	for _, rec := range s.transcriptions {
		st.TotalWords += int64(rec.WordCount)
	}
	st.EstimatedMinutes = st.TotalWords / 40
	return st, nil
}
