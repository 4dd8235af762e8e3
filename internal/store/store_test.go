package store_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/voiceflow/voiceflowd/internal/store"
)

func TestNewMem_SeedsDefaultModes(t *testing.T) {
	t.Parallel()

	s := store.NewMem()
	modes, err := s.Modes(context.Background())
	if err != nil {
		t.Fatalf("Modes: %v", err)
	}
	if len(modes) != 5 {
		t.Fatalf("Modes: got %d, want 5", len(modes))
	}
	if modes[0].Name != "Dictation" || !modes[0].IsDefault {
		t.Fatalf("first mode: got %q (default=%v), want Dictation as default", modes[0].Name, modes[0].IsDefault)
	}

	def, err := s.DefaultMode(context.Background())
	if err != nil {
		t.Fatalf("DefaultMode: %v", err)
	}
	if def.Name != "Dictation" {
		t.Fatalf("DefaultMode: got=%q, want %q", def.Name, "Dictation")
	}
}

func TestMemStore_ModeCRUD(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := store.NewMem()

	m := &store.Mode{Name: "Slack", Tone: "casual", UseCleanup: true, AutoSwitchApps: []string{"Slack"}}
	if err := s.CreateMode(ctx, m); err != nil {
		t.Fatalf("CreateMode: %v", err)
	}
	if m.ID == 0 {
		t.Fatal("CreateMode: ID not assigned")
	}

	if err := s.CreateMode(ctx, &store.Mode{Name: "Slack"}); err == nil {
		t.Fatal("CreateMode: expected duplicate-name error")
	}

	m.Description = "chat dictation"
	if err := s.UpdateMode(ctx, m); err != nil {
		t.Fatalf("UpdateMode: %v", err)
	}
	got, err := s.Mode(ctx, m.ID)
	if err != nil {
		t.Fatalf("Mode: %v", err)
	}
	if got.Description != "chat dictation" {
		t.Fatalf("Mode description: got=%q, want %q", got.Description, "chat dictation")
	}

	if err := s.DeleteMode(ctx, m.ID); err != nil {
		t.Fatalf("DeleteMode: %v", err)
	}
	if _, err := s.Mode(ctx, m.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("Mode after delete: got err=%v, want ErrNotFound", err)
	}
}

func TestMemStore_ModeValidation(t *testing.T) {
	t.Parallel()

	s := store.NewMem()
	if err := s.CreateMode(context.Background(), &store.Mode{Name: "Bad", Tone: "shouty"}); err == nil {
		t.Fatal("CreateMode: expected tone validation error")
	}
	if err := s.CreateMode(context.Background(), &store.Mode{Name: "  "}); err == nil {
		t.Fatal("CreateMode: expected empty-name validation error")
	}
}

func TestMemStore_Snippets(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := store.NewMem()

	sn := &store.Snippet{Trigger: "My Address", Content: "1 Main St, Springfield"}
	if err := s.CreateSnippet(ctx, sn); err != nil {
		t.Fatalf("CreateSnippet: %v", err)
	}
	if sn.Trigger != "my address" {
		t.Fatalf("CreateSnippet: trigger not lowercased, got=%q", sn.Trigger)
	}

	if err := s.IncrementSnippetUse(ctx, sn.ID); err != nil {
		t.Fatalf("IncrementSnippetUse: %v", err)
	}
	all, err := s.Snippets(ctx)
	if err != nil {
		t.Fatalf("Snippets: %v", err)
	}
	if len(all) != 1 || all[0].UseCount != 1 {
		t.Fatalf("Snippets: got=%+v, want one snippet with use_count 1", all)
	}

	// Unknown ID increments are silently ignored; the counter is advisory.
	if err := s.IncrementSnippetUse(ctx, 9999); err != nil {
		t.Fatalf("IncrementSnippetUse(unknown): %v", err)
	}
}

func TestValidateSnippet_Limits(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		snippet store.Snippet
		wantErr bool
	}{
		{"ok", store.Snippet{Trigger: "sig", Content: "Best regards"}, false},
		{"empty trigger", store.Snippet{Trigger: " ", Content: "x"}, true},
		{"empty content", store.Snippet{Trigger: "sig", Content: ""}, true},
		{"long trigger", store.Snippet{Trigger: strings.Repeat("a", 51), Content: "x"}, true},
		{"long content", store.Snippet{Trigger: "sig", Content: strings.Repeat("a", 2001)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := store.ValidateSnippet(&tt.snippet)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateSnippet(%q): got err=%v, wantErr=%v", tt.snippet.Trigger, err, tt.wantErr)
			}
		})
	}
}

func TestValidateDictionaryEntry(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		entry   store.DictionaryEntry
		wantErr bool
	}{
		{"ok", store.DictionaryEntry{Original: "kubernetes", Replacement: "Kubernetes"}, false},
		{"empty original", store.DictionaryEntry{Original: "", Replacement: "x"}, true},
		{"metachars", store.DictionaryEntry{Original: "foo(bar)", Replacement: "x"}, true},
		{"backslash", store.DictionaryEntry{Original: `a\b`, Replacement: "x"}, true},
		{"too long original", store.DictionaryEntry{Original: strings.Repeat("ab", 51), Replacement: "x"}, true},
		{"too long replacement", store.DictionaryEntry{Original: "ok", Replacement: strings.Repeat("ab", 101)}, true},
		{"degenerate repeat", store.DictionaryEntry{Original: "aaaaaaaaaaab", Replacement: "x"}, true},
		{"short repeat allowed", store.DictionaryEntry{Original: "aaaa", Replacement: "x"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := store.ValidateDictionaryEntry(tt.entry)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateDictionaryEntry(%+v): got err=%v, wantErr=%v", tt.entry, err, tt.wantErr)
			}
		})
	}
}

func TestMemStore_DictionaryUpsert(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := store.NewMem()

	if err := s.PutDictionaryEntry(ctx, store.DictionaryEntry{Original: "GoLang", Replacement: "Go"}); err != nil {
		t.Fatalf("PutDictionaryEntry: %v", err)
	}
	if err := s.PutDictionaryEntry(ctx, store.DictionaryEntry{Original: "golang", Replacement: "Go (the language)"}); err != nil {
		t.Fatalf("PutDictionaryEntry upsert: %v", err)
	}

	entries, err := s.Dictionary(ctx)
	if err != nil {
		t.Fatalf("Dictionary: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Dictionary: got %d entries, want 1 (case-insensitive upsert)", len(entries))
	}
	if entries[0].Replacement != "Go (the language)" {
		t.Fatalf("Dictionary replacement: got=%q, want latest value", entries[0].Replacement)
	}

	if err := s.DeleteDictionaryEntry(ctx, "GOLANG"); err != nil {
		t.Fatalf("DeleteDictionaryEntry: %v", err)
	}
	if err := s.DeleteDictionaryEntry(ctx, "golang"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("DeleteDictionaryEntry twice: got err=%v, want ErrNotFound", err)
	}
}

func TestMemStore_Transcriptions(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := store.NewMem()

	for _, text := range []string{"first", "second", "third"} {
		rec := &store.TranscriptionRecord{Text: text, RawText: text, WordCount: 10}
		if err := s.SaveTranscription(ctx, rec); err != nil {
			t.Fatalf("SaveTranscription: %v", err)
		}
		if rec.ID == uuid.Nil || rec.CreatedAt.IsZero() {
			t.Fatal("SaveTranscription: ID or CreatedAt not filled")
		}
	}

	recs, err := s.Transcriptions(ctx, 2, 0)
	if err != nil {
		t.Fatalf("Transcriptions: %v", err)
	}
	if len(recs) != 2 || recs[0].Text != "third" || recs[1].Text != "second" {
		t.Fatalf("Transcriptions: got %+v, want newest-first page of 2", recs)
	}

	page2, err := s.Transcriptions(ctx, 2, 2)
	if err != nil {
		t.Fatalf("Transcriptions page 2: %v", err)
	}
	if len(page2) != 1 || page2[0].Text != "first" {
		t.Fatalf("Transcriptions page 2: got %+v, want [first]", page2)
	}

	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.TotalTranscriptions != 3 || st.TotalWords != 30 {
		t.Fatalf("Stats: got=%+v, want 3 transcriptions / 30 words", st)
	}

	if err := s.DeleteTranscription(ctx, recs[0].ID); err != nil {
		t.Fatalf("DeleteTranscription: %v", err)
	}
	if _, err := s.Transcription(ctx, recs[0].ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("Transcription after delete: got err=%v, want ErrNotFound", err)
	}
}
