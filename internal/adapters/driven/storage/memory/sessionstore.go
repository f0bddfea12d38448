// Package memory provides in-process implementations of driven ports.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/core/ports/driven"
)

// Ensure SessionStore implements the interface.
var _ driven.SessionStore = (*SessionStore)(nil)

// SessionStore keeps conversation sessions for the lifetime of the process.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
	now      func() time.Time
}

// NewSessionStore creates a new in-memory session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*domain.Session),
		now:      time.Now,
	}
}

// GetOrCreate returns a copy of the session, creating it on first use.
func (s *SessionStore) GetOrCreate(_ context.Context, id string) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copySession(s.getOrCreateLocked(id)), nil
}

// Append adds a turn to the end of the session.
func (s *SessionStore) Append(_ context.Context, id string, turn domain.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session := s.getOrCreateLocked(id)
	session.Turns = append(session.Turns, turn)
	session.UpdatedAt = s.now()
	return nil
}

// History returns a copy of the session's turns.
func (s *SessionStore) History(_ context.Context, id string) ([]domain.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return []domain.Turn{}, nil
	}
	return slices.Clone(session.Turns), nil
}

// List returns the known session IDs, sorted.
func (s *SessionStore) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

// Delete removes a session.
func (s *SessionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

func (s *SessionStore) getOrCreateLocked(id string) *domain.Session {
	session, ok := s.sessions[id]
	if !ok {
		now := s.now()
		session = &domain.Session{ID: id, CreatedAt: now, UpdatedAt: now}
		s.sessions[id] = session
	}
	return session
}

func copySession(s *domain.Session) *domain.Session {
	cp := *s
	cp.Turns = slices.Clone(s.Turns)
	return &cp
}
