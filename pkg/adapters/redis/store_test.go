package redis_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/sessionstore/pkg/adapters/redis"
	"github.com/aretw0/sessionstore/pkg/domain"
	"github.com/aretw0/sessionstore/pkg/ports"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, opts ...redis.Option) (*redis.Store, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { _ = client.Close() })

	return redis.NewFromClient(client, opts...), mr
}

func TestRedisStore_Contract(t *testing.T) {
	store, mr := newTestStore(t)

	ports.RunSessionStoreContract(t, store, func(id string) bool {
		return mr.Exists(store.Key(id))
	})
}

func TestRedisStore_NativeTTL(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	err := store.Create(ctx, "abc", domain.NewSession("python", 90*time.Second, nil))
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, mr.TTL("sessionstore:session:abc"))

	// Save re-arms the window.
	mr.FastForward(60 * time.Second)
	assert.Equal(t, 30*time.Second, mr.TTL("sessionstore:session:abc"))

	loaded, ok, err := store.Get(ctx, "abc")
	require.NoError(t, err)
	require.True(t, ok)
	loaded.Touch()
	require.NoError(t, store.Save(ctx, "abc", loaded))
	assert.Equal(t, 90*time.Second, mr.TTL("sessionstore:session:abc"))

	// The substrate drops the key on its own.
	mr.FastForward(91 * time.Second)
	assert.False(t, mr.Exists("sessionstore:session:abc"))

	_, ok, err = store.Get(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStore_NonPositiveTTLClamped(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, "zero", domain.NewSession("python", 0, nil)))
	assert.Equal(t, time.Second, mr.TTL("sessionstore:session:zero"))

	require.NoError(t, store.Create(ctx, "negative", domain.NewSession("python", -10*time.Second, nil)))
	assert.Equal(t, time.Second, mr.TTL("sessionstore:session:negative"))

	_, ok, err := store.Get(ctx, "negative")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, mr.Exists("sessionstore:session:negative"))
}

func TestRedisStore_Prefix(t *testing.T) {
	store, mr := newTestStore(t, redis.WithPrefix("custom:app:"))
	ctx := context.Background()

	err := store.Save(ctx, "my-session", domain.NewSession("go", time.Minute, map[string]string{"main.go": "package main"}))
	assert.NoError(t, err)

	// Verify keys in Redis directly
	assert.True(t, mr.Exists("custom:app:my-session"), "Expected key with custom prefix to exist")
	assert.False(t, mr.Exists("sessionstore:session:my-session"))

	raw, err := mr.Get("custom:app:my-session")
	require.NoError(t, err)
	assert.JSONEq(t, `{"main.go":"package main"}`, extractFiles(t, raw))
}

func TestRedisStore_MalformedPayload(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, mr.Set("sessionstore:session:broken", `{"language":"python"}`))

	loaded, ok, err := store.Get(ctx, "broken")
	assert.ErrorIs(t, err, domain.ErrMalformedPayload)
	assert.False(t, ok)
	assert.Nil(t, loaded)
}

func TestRedisStore_BackendUnavailable(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	mr.SetError("ERR simulated outage")
	defer mr.SetError("")

	err := store.Save(ctx, "abc", domain.NewSession("python", time.Minute, nil))
	assert.ErrorIs(t, err, domain.ErrBackendUnavailable)

	_, _, err = store.Get(ctx, "abc")
	assert.ErrorIs(t, err, domain.ErrBackendUnavailable)

	err = store.Delete(ctx, "abc")
	assert.ErrorIs(t, err, domain.ErrBackendUnavailable)
}

func TestRedisStore_ConnectionRefused(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	store, err := redis.New("redis://" + addr + "/0")
	require.NoError(t, err, "construction must not dial")
	defer store.Close()

	_, _, err = store.Get(context.Background(), "abc")
	assert.ErrorIs(t, err, domain.ErrBackendUnavailable)
	assert.ErrorIs(t, store.Ping(context.Background()), domain.ErrBackendUnavailable)
}

func TestRedisStore_Canceled(t *testing.T) {
	store, _ := newTestStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := store.Get(ctx, "abc")
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, errors.Is(err, domain.ErrBackendUnavailable))
}

func TestRedisStore_New_InvalidURL(t *testing.T) {
	_, err := redis.New("http://not-redis")
	assert.Error(t, err)
}

// beforeScriptHook runs fn once, right before the first Lua script reaches the server.
type beforeScriptHook struct {
	once sync.Once
	fn   func()
}

func (h *beforeScriptHook) DialHook(next backend.DialHook) backend.DialHook { return next }

func (h *beforeScriptHook) ProcessHook(next backend.ProcessHook) backend.ProcessHook {
	return func(ctx context.Context, cmd backend.Cmder) error {
		if name := cmd.Name(); name == "evalsha" || name == "eval" {
			h.once.Do(h.fn)
		}
		return next(ctx, cmd)
	}
}

func (h *beforeScriptHook) ProcessPipelineHook(next backend.ProcessPipelineHook) backend.ProcessPipelineHook {
	return next
}

func TestRedisStore_ExpiredGetKeepsConcurrentSave(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	stale := domain.NewSession("python", time.Second, nil)
	stale.LastUsed = stale.LastUsed.Add(-time.Minute)
	require.NoError(t, store.Save(ctx, "abc", stale))

	fresh, err := domain.Marshal(domain.NewSession("go", time.Hour, map[string]string{"main.go": "package main"}))
	require.NoError(t, err)

	// Another writer saves between our read and the lazy delete.
	store.Client().AddHook(&beforeScriptHook{fn: func() {
		require.NoError(t, mr.Set(store.Key("abc"), string(fresh)))
	}})

	_, ok, err := store.Get(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, ok, "the record that was read had expired")

	loaded, ok, err := store.Get(ctx, "abc")
	require.NoError(t, err)
	require.True(t, ok, "the concurrent save must survive the lazy delete")
	assert.Equal(t, "go", loaded.Language)
	assert.Equal(t, map[string]string{"main.go": "package main"}, loaded.Files)
}
