package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/sessionstore/internal/logging"
	"github.com/aretw0/sessionstore/pkg/domain"
	"github.com/aretw0/sessionstore/pkg/ports"
)

// DefaultLockTTL bounds how long a distributed lock survives a crashed holder.
const DefaultLockTTL = 30 * time.Second

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager serializes access to individual sessions on top of a SessionStore.
// The store itself applies last-write-wins; the Manager makes read-modify-write
// sequences (Touch, Update) safe within a process, and across processes when a
// Locker is configured. It uses Reference Counting to garbage collect unused locks.
type Manager struct {
	store ports.SessionStore

	mu    sync.Mutex            // Global lock for the map
	locks map[string]*lockEntry // Map of active locks

	locker  ports.Locker  // Optional distributed locker
	lockTTL time.Duration // Expiration of distributed locks
	logger  *slog.Logger  // Logger for internal events (like deferred errors)
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.Locker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL sets the expiration of distributed locks.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		m.lockTTL = ttl
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a new session Manager over the given store.
func NewManager(store ports.SessionStore, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		locks:   make(map[string]*lockEntry),
		lockTTL: DefaultLockTTL,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(id) after unlocking.
func (m *Manager) acquire(id string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[id]
	if !exists {
		entry = &lockEntry{}
		m.locks[id] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[id]
	if !exists {
		return
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, id)
	}
}

// Get retrieves a session. Reads do not take the lock.
func (m *Manager) Get(ctx context.Context, id string) (*domain.Session, bool, error) {
	return m.store.Get(ctx, id)
}

// Create stores a new session, overwriting any previous one.
func (m *Manager) Create(ctx context.Context, id string, session *domain.Session) error {
	return m.WithLock(ctx, id, func(ctx context.Context) error {
		return m.store.Create(ctx, id, session)
	})
}

// Save persists the session as given.
func (m *Manager) Save(ctx context.Context, id string, session *domain.Session) error {
	return m.WithLock(ctx, id, func(ctx context.Context) error {
		return m.store.Save(ctx, id, session)
	})
}

// Delete removes the session.
func (m *Manager) Delete(ctx context.Context, id string) error {
	return m.WithLock(ctx, id, func(ctx context.Context) error {
		return m.store.Delete(ctx, id)
	})
}

// GetOrCreate returns the live session for id, creating it with newSession when it
// is absent or expired. The boolean reports whether a new session was created.
func (m *Manager) GetOrCreate(ctx context.Context, id string, newSession func() *domain.Session) (*domain.Session, bool, error) {
	var (
		session *domain.Session
		created bool
	)
	err := m.WithLock(ctx, id, func(ctx context.Context) error {
		var (
			found bool
			err   error
		)
		session, found, err = m.store.Get(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to check session existence: %w", err)
		}
		if found {
			return nil
		}

		session = newSession()
		if err := m.store.Create(ctx, id, session); err != nil {
			return fmt.Errorf("failed to initialize session: %w", err)
		}
		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return session, created, nil
}

// Touch marks a live session as used now and persists it, extending its life.
// It reports false when the session is absent or expired.
func (m *Manager) Touch(ctx context.Context, id string) (*domain.Session, bool, error) {
	return m.Update(ctx, id, func(*domain.Session) error { return nil })
}

// Update loads the session, applies fn, touches it and saves it, all under the
// session lock. If fn returns an error nothing is saved.
// It reports false when the session is absent or expired.
func (m *Manager) Update(ctx context.Context, id string, fn func(*domain.Session) error) (*domain.Session, bool, error) {
	var (
		session *domain.Session
		found   bool
	)
	err := m.WithLock(ctx, id, func(ctx context.Context) error {
		var err error
		session, found, err = m.store.Get(ctx, id)
		if err != nil || !found {
			return err
		}

		if err := fn(session); err != nil {
			return err
		}
		session.Touch()

		if err := m.store.Save(ctx, id, session); err != nil {
			return fmt.Errorf("failed to save session: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return session, found, nil
}

// Store returns the underlying session store.
func (m *Manager) Store() ports.SessionStore {
	return m.store
}

// WithLock executes a function while holding the lock for the session.
func (m *Manager) WithLock(ctx context.Context, id string, fn func(context.Context) error) error {
	entry := m.acquire(id)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(id)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, id, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"session_id", id,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}
