package ports

import (
	"context"

	"github.com/aretw0/sessionstore/pkg/domain"
)

// SessionStore defines the interface every session backend implements.
// Implementations must behave identically regarding expiration and isolation.
type SessionStore interface {
	// Create stores the session under id, unconditionally overwriting any previous value.
	Create(ctx context.Context, id string, session *domain.Session) error

	// Get retrieves the session for id.
	// The boolean is false when the session is absent or expired; that is not an error.
	// An expired session is deleted before Get returns.
	Get(ctx context.Context, id string) (*domain.Session, bool, error)

	// Save replaces the whole stored session and re-arms its expiration window.
	// It does not touch the session; callers do that explicitly.
	Save(ctx context.Context, id string, session *domain.Session) error

	// Delete removes the session for id. Deleting an absent id is not an error.
	Delete(ctx context.Context, id string) error
}
