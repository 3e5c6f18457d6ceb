package session

import (
	"context"
	"errors"
	"sync"
)

// ErrNoProvider is returned when a Store is used without an identity provider.
var ErrNoProvider = errors.New("session provider not configured")

// Store defines a public type used by sessionguard APIs.
//
// Store holds the one shared session handle per process and the refresh lock.
// Store instances are intended to be constructed once via [NewStore] and then
// shared; all methods are safe for concurrent use.
type Store struct {
	provider Provider

	mu      sync.RWMutex
	current *Session

	// refreshMu is the process-wide refresh flag. Exactly one refresh may
	// hold it; TryBeginRefresh/EndRefresh bracket every refresh attempt.
	refreshMu sync.Mutex
}

// NewStore describes the newstore operation and its observable behavior.
//
// NewStore wires the external identity provider into a fresh store with no
// cached session and the refresh lock released.
func NewStore(provider Provider) *Store {
	return &Store{provider: provider}
}

// Current returns the cached session, or nil when none has been fetched or
// the last fetch returned no session.
func (s *Store) Current() *Session {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Replace installs sess as the shared session. A nil sess clears the handle.
func (s *Store) Replace(sess *Session) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.current = sess
	s.mu.Unlock()
}

// Clear drops the cached session.
func (s *Store) Clear() {
	s.Replace(nil)
}

// Fetch asks the identity provider for the current session and caches the
// answer, including a nil answer. The caller owns the timeout on ctx.
func (s *Store) Fetch(ctx context.Context) (*Session, error) {
	if s == nil || s.provider == nil {
		return nil, ErrNoProvider
	}
	sess, err := s.provider.GetSession(ctx)
	if err != nil {
		return nil, err
	}
	s.Replace(sess)
	return sess, nil
}

// RefreshOnce performs exactly one refresh call against the identity provider
// and installs the replacement session on success. Retry policy belongs to
// the caller.
func (s *Store) RefreshOnce(ctx context.Context) (*Session, error) {
	if s == nil || s.provider == nil {
		return nil, ErrNoProvider
	}
	sess, err := s.provider.RefreshSession(ctx)
	if err != nil {
		return nil, err
	}
	if sess != nil {
		s.Replace(sess)
	}
	return sess, nil
}

// TryBeginRefresh attempts to take the refresh lock without blocking. It
// returns false when another refresh is already in flight.
func (s *Store) TryBeginRefresh() bool {
	if s == nil {
		return false
	}
	return s.refreshMu.TryLock()
}

// EndRefresh releases the refresh lock. It must be called exactly once for
// every successful TryBeginRefresh, on every exit path.
func (s *Store) EndRefresh() {
	if s == nil {
		return
	}
	s.refreshMu.Unlock()
}
