package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/sessionstore/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunSessionStoreContract runs a suite of tests to verify that a SessionStore implementation
// adheres to the defined interface contract.
//
// The exists callback reports whether the backend still physically holds id, bypassing expiration.
func RunSessionStoreContract(t *testing.T, store SessionStore, exists func(id string) bool) {
	t.Helper()

	ctx := context.Background()
	prefix := "contract-" + time.Now().Format("20060102150405") + "-"

	t.Run("Create and Get", func(t *testing.T) {
		id := prefix + "create"
		session := domain.NewSession("python", time.Hour, map[string]string{"a.py": "x"})

		require.NoError(t, store.Create(ctx, id, session))

		loaded, ok, err := store.Get(ctx, id)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "python", loaded.Language)
		assert.Equal(t, time.Hour, loaded.TTL)
		assert.True(t, session.LastUsed.Equal(loaded.LastUsed))
		assert.Equal(t, map[string]string{"a.py": "x"}, loaded.Files)
	})

	t.Run("Create Overwrites", func(t *testing.T) {
		id := prefix + "overwrite-create"
		require.NoError(t, store.Create(ctx, id, domain.NewSession("python", time.Hour, map[string]string{"old": "1"})))
		require.NoError(t, store.Create(ctx, id, domain.NewSession("go", time.Hour, map[string]string{"new": "2"})))

		loaded, ok, err := store.Get(ctx, id)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "go", loaded.Language)
		assert.Equal(t, map[string]string{"new": "2"}, loaded.Files)
	})

	t.Run("Get Non-Existent", func(t *testing.T) {
		loaded, ok, err := store.Get(ctx, prefix+"missing")
		assert.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, loaded)
	})

	t.Run("Save Replaces All Fields", func(t *testing.T) {
		id := prefix + "save"
		require.NoError(t, store.Create(ctx, id, domain.NewSession("python", time.Hour, map[string]string{"a.py": "1", "b.py": "2"})))

		replacement := domain.NewSession("node", 2*time.Hour, map[string]string{"index.js": "3"})
		require.NoError(t, store.Save(ctx, id, replacement))

		loaded, ok, err := store.Get(ctx, id)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "node", loaded.Language)
		assert.Equal(t, 2*time.Hour, loaded.TTL)
		assert.Equal(t, map[string]string{"index.js": "3"}, loaded.Files)
	})

	t.Run("Save Does Not Touch", func(t *testing.T) {
		id := prefix + "no-touch"
		session := domain.NewSession("python", time.Hour, nil)
		session.LastUsed = session.LastUsed.Add(-time.Minute)
		require.NoError(t, store.Save(ctx, id, session))

		loaded, ok, err := store.Get(ctx, id)
		require.NoError(t, err)
		require.True(t, ok)
		assert.True(t, session.LastUsed.Equal(loaded.LastUsed))
	})

	t.Run("Isolation", func(t *testing.T) {
		id := prefix + "isolation"
		session := domain.NewSession("python", time.Hour, map[string]string{"a.py": "1"})
		require.NoError(t, store.Create(ctx, id, session))

		// Mutations after Create must not leak into the store.
		session.Files["a.py"] = "mutated"

		loaded, ok, err := store.Get(ctx, id)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "1", loaded.Files["a.py"])

		loaded.Files["b.py"] = "2"
		again, ok, err := store.Get(ctx, id)
		require.NoError(t, err)
		require.True(t, ok)
		assert.NotContains(t, again.Files, "b.py")
	})

	t.Run("Expired Is Deleted On Get", func(t *testing.T) {
		id := prefix + "expired"
		session := domain.NewSession("python", 60*time.Second, nil)
		session.LastUsed = session.LastUsed.Add(-2 * time.Minute)
		require.NoError(t, store.Create(ctx, id, session))
		require.True(t, exists(id), "backend should hold the record before it is read")

		loaded, ok, err := store.Get(ctx, id)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, loaded)
		assert.False(t, exists(id), "expired record should be removed by Get")
	})

	t.Run("Negative TTL Is Always Expired", func(t *testing.T) {
		id := prefix + "negative"
		require.NoError(t, store.Create(ctx, id, domain.NewSession("python", -time.Second, nil)))

		_, ok, err := store.Get(ctx, id)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Delete", func(t *testing.T) {
		id := prefix + "delete"
		require.NoError(t, store.Create(ctx, id, domain.NewSession("python", time.Hour, nil)))

		require.NoError(t, store.Delete(ctx, id))
		assert.False(t, exists(id))

		_, ok, err := store.Get(ctx, id)
		require.NoError(t, err)
		assert.False(t, ok, "Get after Delete should report absence")
	})

	t.Run("Delete Is Idempotent", func(t *testing.T) {
		id := prefix + "never-created"
		assert.NoError(t, store.Delete(ctx, id))
		assert.NoError(t, store.Delete(ctx, id))
	})

	t.Run("Expires After TTL", func(t *testing.T) {
		if testing.Short() {
			t.Skip("waits for a real TTL to elapse")
		}

		id := prefix + "abc"
		require.NoError(t, store.Create(ctx, id, domain.NewSession("python", 2*time.Second, map[string]string{"a.py": "x"})))

		loaded, ok, err := store.Get(ctx, id)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, map[string]string{"a.py": "x"}, loaded.Files)

		time.Sleep(2100 * time.Millisecond)

		_, ok, err = store.Get(ctx, id)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}
