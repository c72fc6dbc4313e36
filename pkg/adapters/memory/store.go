package memory

import (
	"context"
	"sync"

	"github.com/aretw0/sessionstore/pkg/domain"
)

// Store implements ports.SessionStore in process memory.
// Safe for concurrent use. Everything is lost when the process exits.
type Store struct {
	data map[string]*domain.Session
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]*domain.Session),
	}
}

// Create stores a copy of the session, overwriting any previous value.
func (s *Store) Create(ctx context.Context, id string, session *domain.Session) error {
	return s.Save(ctx, id, session)
}

// Get returns a copy of the session, or false when it is absent or expired.
// Expired sessions are removed.
func (s *Store) Get(ctx context.Context, id string) (*domain.Session, bool, error) {
	s.mu.RLock()
	session, ok := s.data[id]
	s.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}

	if session.IsExpired() {
		s.mu.Lock()
		// Only drop the entry we inspected; a concurrent Save may have replaced it.
		if current, ok := s.data[id]; ok && current == session {
			delete(s.data, id)
		}
		s.mu.Unlock()
		return nil, false, nil
	}

	// Copy on read so the caller can't mutate store state through the pointer.
	return session.Clone(), true, nil
}

// Save replaces the stored session with a copy of the given one.
func (s *Store) Save(ctx context.Context, id string, session *domain.Session) error {
	// Deep copy to ensure isolation, similar to serialization
	copied := session.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[id] = copied
	return nil
}

// Delete removes the session.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, id)
	return nil
}

// Has reports whether a record is held for id, without applying expiration.
func (s *Store) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.data[id]
	return ok
}

// Len returns the number of records held, expired ones included.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
