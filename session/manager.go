package session

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	DefaultCookieName  = "storefront_session"
	DefaultIdleTimeout = 30 * time.Minute
)

// Manager issues, loads and persists sessions against a Store.
type Manager struct {
	store       Store
	idleTimeout time.Duration
	cookieName  string
	secure      bool
}

type Options struct {
	CookieName  string
	IdleTimeout time.Duration
	// Secure marks the cookie HTTPS-only.
	Secure bool
}

func NewManager(store Store, opts Options) (*Manager, error) {
	if store == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = DefaultIdleTimeout
	}
	if opts.CookieName == "" {
		opts.CookieName = DefaultCookieName
	}
	return &Manager{
		store:       store,
		idleTimeout: opts.IdleTimeout,
		cookieName:  opts.CookieName,
		secure:      opts.Secure,
	}, nil
}

func (m *Manager) CookieName() string {
	return m.cookieName
}

func (m *Manager) IdleTimeout() time.Duration {
	return m.idleTimeout
}

func (m *Manager) Secure() bool {
	return m.secure
}

// Start loads the session named by the cookie value. Unknown or expired ids
// are never adopted: a fresh id is issued instead.
func (m *Manager) Start(ctx context.Context, cookieID string) (*Session, error) {
	if cookieID != "" {
		values, err := m.store.Load(ctx, cookieID)
		switch {
		case err == nil:
			if values == nil {
				values = map[string]string{}
			}
			return &Session{id: cookieID, values: values}, nil
		case !errors.Is(err, ErrNotFound):
			return nil, fmt.Errorf("loading session: %w", err)
		}
	}

	id, err := newID()
	if err != nil {
		return nil, err
	}
	return &Session{id: id, values: map[string]string{}, isNew: true}, nil
}

// Commit persists a dirty session and slides the idle timeout of a clean one.
// New sessions with no values are not stored.
func (m *Manager) Commit(ctx context.Context, s *Session) error {
	switch {
	case s.dirty:
		if err := m.store.Save(ctx, s.id, s.values, m.idleTimeout); err != nil {
			return fmt.Errorf("saving session: %w", err)
		}
		s.dirty = false
	case !s.isNew:
		if err := m.store.Touch(ctx, s.id, m.idleTimeout); err != nil && !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("touching session: %w", err)
		}
	}
	return nil
}

// Destroy removes the session from the store.
func (m *Manager) Destroy(ctx context.Context, s *Session) error {
	return m.store.Delete(ctx, s.id)
}
