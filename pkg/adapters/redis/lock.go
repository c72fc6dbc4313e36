package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/sessionstore/pkg/ports"
	"github.com/google/uuid"
	backend "github.com/redis/go-redis/v9"
)

// ErrLockNotHeld is returned when releasing a lock that expired or was taken over.
var ErrLockNotHeld = errors.New("distributed lock no longer held")

// DefaultLockPrefix namespaces lock keys. It must not overlap the session prefix,
// otherwise a session id could address a lock key.
const DefaultLockPrefix = "sessionstore:lock:"

const lockPollInterval = 100 * time.Millisecond

// releaseScript deletes the lock only if it still carries our token.
var releaseScript = backend.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`)

// Locker implements ports.Locker using Redis.
type Locker struct {
	client *backend.Client
	prefix string
}

// NewLocker creates a new Redis locker. Lock keys are prefix + key.
func NewLocker(client *backend.Client, prefix string) *Locker {
	return &Locker{
		client: client,
		prefix: prefix,
	}
}

// Lock acquires a distributed lock for the given key using Redis SET NX PX.
// It polls until the lock is free or ctx is done.
func (l *Locker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	lockKey := l.prefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(lockPollInterval)
	defer ticker.Stop()

	for {
		acquired, err := l.client.SetNX(ctx, lockKey, token, ttl).Result()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, unavailable("lock", err)
		}
		if acquired {
			return func(ctx context.Context) error {
				deleted, err := releaseScript.Run(ctx, l.client, []string{lockKey}, token).Int64()
				if err != nil {
					return unavailable("unlock", err)
				}
				if deleted == 0 {
					return fmt.Errorf("%w: %s", ErrLockNotHeld, key)
				}
				return nil
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
