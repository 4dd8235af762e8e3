package textproc_test

import (
	"testing"

	"github.com/voiceflow/voiceflowd/internal/textproc"
)

func TestCleanup(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"basic fillers", "um I think we should uh meet tomorrow", "I think we should meet tomorrow"},
		{"stretched fillers", "uhhh that hmm sounds errr fine", "That sounds fine"},
		{"hesitation like", "it was like the best day", "it was the best day"},
		{"discourse fillers", "it was you know pretty good honestly I liked it", "it was pretty good I liked it"},
		{"sentence starter", "Okay, The meeting is at noon", "The meeting is at noon"},
		{"starter kept before lowercase", "so we should go", "So we should go"},
		{"number correction", "let's meet at 2 actually 3", "let's meet at 3"},
		{"word correction", "send it to Bob sorry Alice", "send it to Alice"},
		{"stutter", "I need the the report", "I need the report"},
		{"deliberate repeat kept", "yes, yes it works", "yes, yes it works"},
		{"space before punctuation", "hello ,world", "hello, world"},
		{"double punctuation", "that is great!!", "that is great!"},
		{"capital after period", "first point. second point", "First point. Second point"},
		{"collapse spaces", "too   many    spaces", "Too many spaces"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := textproc.Cleanup(tt.in)
			want := tt.want
			if want != "" {
				// First letter is always capitalised.
				want = capitalizeFirst(want)
			}
			if got != want {
				t.Fatalf("Cleanup(%q): got=%q, want %q", tt.in, got, want)
			}
		})
	}
}

func capitalizeFirst(s string) string {
	if s == "" || (s[0] < 'a' || s[0] > 'z') {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}

func TestCleanup_Idempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"um I think we should uh meet tomorrow",
		"let's meet at 2 actually 3",
		"I need the the report  by Friday ,please",
		"it was you know pretty good",
		"first point. second point",
		"The quick brown fox jumps over the lazy dog.",
	}
	for _, in := range inputs {
		once := textproc.Cleanup(in)
		twice := textproc.Cleanup(once)
		if once != twice {
			t.Errorf("Cleanup not idempotent for %q: once=%q, twice=%q", in, once, twice)
		}
	}
}
