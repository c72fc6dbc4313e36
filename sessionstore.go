package sessionstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"github.com/aretw0/sessionstore/internal/logging"
	"github.com/aretw0/sessionstore/pkg/adapters/memory"
	"github.com/aretw0/sessionstore/pkg/adapters/redis"
	"github.com/aretw0/sessionstore/pkg/persistence/middleware"
	"github.com/aretw0/sessionstore/pkg/ports"
)

// Backend names the storage substrate chosen by New.
type Backend string

const (
	BackendMemory Backend = "memory"
	BackendRedis  Backend = "redis"
)

// URLEnvVars are the environment variables holding the networked backend URL,
// in lookup order. The first non-empty one wins.
var URLEnvVars = []string{"REDIS_URL", "REDIS_URI"}

// ErrOverlappingPrefixes is returned by New when one of the session and lock key
// prefixes starts with the other, so a session id could address a lock key.
var ErrOverlappingPrefixes = errors.New("session and lock key prefixes overlap")

// Store is the process-wide session store returned by New.
// It embeds the chosen backend (wrapped by any configured middleware) and is
// meant to be created once and passed to every call site.
type Store struct {
	ports.SessionStore

	backend    Backend
	redis      *redis.Store
	lockPrefix string
}

// Option defines a functional option for configuring New.
type Option func(*config)

type config struct {
	logger      *slog.Logger
	lookupEnv   func(string) (string, bool)
	prefix      string
	lockPrefix  string
	middlewares []middleware.Middleware
	metrics     *middleware.Metrics
}

// WithLogger sets the logger used for the backend selection note.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithLookupEnv replaces os.LookupEnv as the source of environment configuration.
func WithLookupEnv(lookup func(string) (string, bool)) Option {
	return func(c *config) {
		c.lookupEnv = lookup
	}
}

// WithPrefix sets the key namespace of the networked backend.
func WithPrefix(prefix string) Option {
	return func(c *config) {
		c.prefix = prefix
	}
}

// WithLockPrefix sets the key namespace of distributed locks on the networked backend.
// It must not overlap the session prefix.
func WithLockPrefix(prefix string) Option {
	return func(c *config) {
		c.lockPrefix = prefix
	}
}

// WithMiddleware wraps the backend; the first middleware is the outermost.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(c *config) {
		c.middlewares = append(c.middlewares, mws...)
	}
}

// WithMetrics records every operation, labelled with the selected backend.
func WithMetrics(m *middleware.Metrics) Option {
	return func(c *config) {
		c.metrics = m
	}
}

// New selects exactly one backend from the environment: the networked store when a
// connection URL is found in URLEnvVars, the in-process store otherwise.
// No connection is attempted; connectivity errors surface on first use.
func New(opts ...Option) (*Store, error) {
	cfg := &config{
		logger:    logging.NewNop(),
		lookupEnv: os.LookupEnv,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	store := &Store{}
	var base ports.SessionStore

	if rawURL, ok := lookupURL(cfg.lookupEnv); ok {
		sessionPrefix, lockPrefix := redis.DefaultPrefix, redis.DefaultLockPrefix
		if cfg.prefix != "" {
			sessionPrefix = cfg.prefix
		}
		if cfg.lockPrefix != "" {
			lockPrefix = cfg.lockPrefix
		}
		if strings.HasPrefix(lockPrefix, sessionPrefix) || strings.HasPrefix(sessionPrefix, lockPrefix) {
			return nil, fmt.Errorf("%w: session %q, lock %q", ErrOverlappingPrefixes, sessionPrefix, lockPrefix)
		}
		store.lockPrefix = lockPrefix

		rs, err := redis.New(rawURL, redis.WithPrefix(sessionPrefix))
		if err != nil {
			return nil, err
		}
		cfg.logger.Info("Using Redis session store", "url", redact(rawURL))
		store.backend = BackendRedis
		store.redis = rs
		base = rs
	} else {
		cfg.logger.Info("Using in-memory session store (development mode)")
		store.backend = BackendMemory
		base = memory.NewStore()
	}

	mws := cfg.middlewares
	if cfg.metrics != nil {
		mws = append([]middleware.Middleware{cfg.metrics.Middleware(string(store.backend))}, mws...)
	}
	store.SessionStore = middleware.Chain(base, mws...)

	return store, nil
}

// Backend reports which substrate was selected.
func (s *Store) Backend() Backend {
	return s.backend
}

// Locker returns a distributed locker sharing the backend connection,
// or nil when the backend is process-local.
func (s *Store) Locker() ports.Locker {
	if s.redis == nil {
		return nil
	}
	return redis.NewLocker(s.redis.Client(), s.lockPrefix)
}

// Ping verifies the backend is reachable. It always succeeds for the memory backend.
func (s *Store) Ping(ctx context.Context) error {
	if s.redis == nil {
		return nil
	}
	return s.redis.Ping(ctx)
}

// Close releases the backend connection, if any.
func (s *Store) Close() error {
	if s.redis == nil {
		return nil
	}
	return s.redis.Close()
}

var _ io.Closer = (*Store)(nil)

func lookupURL(lookup func(string) (string, bool)) (string, bool) {
	for _, name := range URLEnvVars {
		if v, ok := lookup(name); ok && v != "" {
			return v, true
		}
	}
	return "", false
}

// redact hides the password of a connection URL for logging.
func redact(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<unparseable>"
	}
	return u.Redacted()
}
