package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"
)

const idBytes = 32

// ErrNotFound is returned by a Store when the session is missing or expired.
var ErrNotFound = errors.New("session not found")

// Store persists session values keyed by session id.
type Store interface {
	Load(ctx context.Context, id string) (map[string]string, error)
	Save(ctx context.Context, id string, values map[string]string, ttl time.Duration) error
	// Touch slides the expiry of an existing session.
	Touch(ctx context.Context, id string, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
}

// Session is the server-side state behind one session cookie. It is not safe
// for concurrent use; each request owns its own copy.
type Session struct {
	id     string
	values map[string]string
	isNew  bool
	dirty  bool
}

func (s *Session) ID() string {
	return s.id
}

// IsNew reports whether the session was issued during this request.
func (s *Session) IsNew() bool {
	return s.isNew
}

// Dirty reports whether values changed since the session was loaded.
func (s *Session) Dirty() bool {
	return s.dirty
}

func (s *Session) Get(key string) (string, bool) {
	v, ok := s.values[key]
	return v, ok
}

func (s *Session) Set(key, value string) {
	if cur, ok := s.values[key]; ok && cur == value {
		return
	}
	s.values[key] = value
	s.dirty = true
}

func (s *Session) Delete(key string) {
	if _, ok := s.values[key]; !ok {
		return
	}
	delete(s.values, key)
	s.dirty = true
}

func newID() (string, error) {
	b := make([]byte, idBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating session id: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
