package auth_test

import (
	"testing"

	"github.com/voiceflow/voiceflowd/internal/auth"
)

func TestService_TokenAndVerify(t *testing.T) {
	t.Parallel()

	s, err := auth.New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	token := s.Token()
	if len(token) != 64 {
		t.Fatalf("Token length: got=%d, want 64 hex chars", len(token))
	}
	if !s.Verify(token) {
		t.Fatal("Verify(own token): got=false, want true")
	}
	if s.Verify("") || s.Verify(token[:63]) || s.Verify(token+"0") {
		t.Fatal("Verify accepted a wrong token")
	}
}

func TestNew_TokensAreUnique(t *testing.T) {
	t.Parallel()

	a, err := auth.New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	b, err := auth.New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if a.Token() == b.Token() {
		t.Fatal("two services minted the same token")
	}
}
