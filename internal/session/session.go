// Package session holds the client's bearer token for the lifetime of a
// storefront session. The guest cart correlator is a server-set cookie and
// lives in the HTTP client's cookie jar, not here.
package session

import (
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type Session struct {
	mu    sync.RWMutex
	token string
}

func New() *Session {
	return &Session{}
}

// Token returns the current bearer token, empty when unauthenticated.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// SetToken stores the bearer token received from a login.
func (s *Session) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// Clear drops the token, returning the session to guest state.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
}

func (s *Session) Authenticated() bool {
	return s.Token() != ""
}

// Expired inspects the token's exp claim without verifying the signature;
// verification is the server's job, the client only needs to know whether a
// login prompt is due. Tokens without an exp claim are treated as live.
func (s *Session) Expired(now time.Time) bool {
	token := s.Token()
	if token == "" {
		return false
	}

	claims := jwt.RegisteredClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, &claims); err != nil {
		return true
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return claims.ExpiresAt.Before(now)
}
