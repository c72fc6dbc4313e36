package middleware_test

import (
	"context"
	"errors"

	"github.com/aretw0/sessionstore/pkg/domain"
	"github.com/aretw0/sessionstore/pkg/ports"
)

// MockStore is a simple map-based store for testing middleware.
// It keeps whatever it is given so tests can inspect the stored form.
type MockStore struct {
	data map[string]*domain.Session
	err  error
}

func NewMockStore() *MockStore {
	return &MockStore{
		data: make(map[string]*domain.Session),
	}
}

func (s *MockStore) Create(ctx context.Context, id string, session *domain.Session) error {
	return s.Save(ctx, id, session)
}

func (s *MockStore) Get(ctx context.Context, id string) (*domain.Session, bool, error) {
	if s.err != nil {
		return nil, false, s.err
	}
	session, ok := s.data[id]
	if !ok {
		return nil, false, nil
	}
	return session.Clone(), true, nil
}

func (s *MockStore) Save(ctx context.Context, id string, session *domain.Session) error {
	if s.err != nil {
		return s.err
	}
	s.data[id] = session.Clone()
	return nil
}

func (s *MockStore) Delete(ctx context.Context, id string) error {
	if s.err != nil {
		return s.err
	}
	delete(s.data, id)
	return nil
}

var errBoom = errors.New("boom")

var _ ports.SessionStore = (*MockStore)(nil)
