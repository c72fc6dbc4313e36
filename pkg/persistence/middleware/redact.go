package middleware

import (
	"context"
	"fmt"
	"maps"
	"regexp"

	"github.com/aretw0/sessionstore/pkg/domain"
	"github.com/aretw0/sessionstore/pkg/ports"
)

// RedactedContent replaces the content of files whose path matches a redaction pattern.
const RedactedContent = "***"

type redactMiddleware struct {
	next     ports.SessionStore
	patterns []*regexp.Regexp
}

// NewRedactMiddleware creates a middleware that never persists the content of files
// whose path matches one of the patterns (e.g. `\.env$`, `id_rsa`).
// The caller's in-memory session is left untouched.
func NewRedactMiddleware(patternStrings []string) (Middleware, error) {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid redaction pattern %q: %w", p, err)
		}
		patterns[i] = re
	}
	return func(next ports.SessionStore) ports.SessionStore {
		return &redactMiddleware{next: next, patterns: patterns}
	}, nil
}

func (m *redactMiddleware) Create(ctx context.Context, id string, session *domain.Session) error {
	return m.next.Create(ctx, id, m.redact(session))
}

func (m *redactMiddleware) Save(ctx context.Context, id string, session *domain.Session) error {
	return m.next.Save(ctx, id, m.redact(session))
}

func (m *redactMiddleware) Get(ctx context.Context, id string) (*domain.Session, bool, error) {
	return m.next.Get(ctx, id)
}

func (m *redactMiddleware) Delete(ctx context.Context, id string) error {
	return m.next.Delete(ctx, id)
}

func (m *redactMiddleware) redact(session *domain.Session) *domain.Session {
	cloned := *session
	cloned.Files = maps.Clone(session.Files)

	for path := range cloned.Files {
		for _, p := range m.patterns {
			if p.MatchString(path) {
				cloned.Files[path] = RedactedContent
				break
			}
		}
	}
	return &cloned
}
