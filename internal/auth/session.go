// Package auth holds the session's bearer token. The backend issues and
// verifies tokens; the client only carries them and reads their claims.
package auth

import (
	"strings"
	"sync"

	"github.com/go-faster/errors"
	"github.com/golang-jwt/jwt/v5"
)

// ErrTokenMissing is returned when no bearer token is cached.
var ErrTokenMissing = errors.New("auth token missing")

// Claims are the backend token claims the client cares about.
type Claims struct {
	NameID         string `json:"http://schemas.xmlsoap.org/ws/2005/05/identity/claims/nameidentifier,omitempty"`
	Role           string `json:"http://schemas.microsoft.com/ws/2008/06/identity/claims/role,omitempty"`
	OrganizationID string `json:"organizationId,omitempty"`
	jwt.RegisteredClaims
}

// UserID returns the staff user id carried by the token.
func (c *Claims) UserID() string {
	if c.NameID != "" {
		return c.NameID
	}
	return c.Subject
}

// Session caches the bearer token for the current session.
type Session struct {
	mu    sync.RWMutex
	token string
}

// NewSession creates a Session holding token, which may be empty.
func NewSession(token string) *Session {
	return &Session{token: strings.TrimSpace(token)}
}

// Token returns the cached token or ErrTokenMissing.
func (s *Session) Token() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" {
		return "", ErrTokenMissing
	}
	return s.token, nil
}

// Set replaces the cached token. An empty token signs the session out.
func (s *Session) Set(token string) {
	s.mu.Lock()
	s.token = strings.TrimSpace(token)
	s.mu.Unlock()
}

// Claims decodes the cached token without verifying its signature, which
// only the backend can do.
func (s *Session) Claims() (*Claims, error) {
	token, err := s.Token()
	if err != nil {
		return nil, err
	}
	return ParseClaims(token)
}

// UserID returns the staff user id of the cached token.
func (s *Session) UserID() (string, error) {
	claims, err := s.Claims()
	if err != nil {
		return "", err
	}
	if id := claims.UserID(); id != "" {
		return id, nil
	}
	return "", errors.New("token carries no user id")
}

// ParseClaims decodes token claims without signature verification.
func ParseClaims(token string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, errors.Wrap(err, "parse token")
	}
	return claims, nil
}
