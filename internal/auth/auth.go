// Package auth issues and verifies the per-process WebSocket session token.
// The token is minted fresh at startup and handed to the local client over
// GET /api/ws-token; a restart invalidates every outstanding token.
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

const tokenBytes = 32

// Service holds the process token.
type Service struct {
	token string
}

// New mints a fresh random token.
func New() (*Service, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("auth: generate token: %w", err)
	}
	return &Service{token: hex.EncodeToString(buf)}, nil
}

// Token returns the current session token.
func (s *Service) Token() string { return s.token }

// Verify reports whether candidate matches the process token, in constant
// time.
func (s *Service) Verify(candidate string) bool {
	return subtle.ConstantTimeCompare([]byte(s.token), []byte(candidate)) == 1
}
