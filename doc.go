/*
Package sessionstore provides ephemeral, time-limited storage for session state
keyed by an opaque session identifier.

Two interchangeable backends implement ports.SessionStore: an in-process store
for development and single-node use, and a Redis-backed store for multi-node
deployments. Both expire sessions lazily, on read, using the same rule:

	now - last_used > ttl

The Redis backend additionally sets the native key expiration on every write.

# Selecting a Backend

New inspects REDIS_URL, then REDIS_URI. When one is set the Redis backend is used,
otherwise the in-memory one. The result is meant to be created once at startup and
passed to every caller.

	package main

	import (
		"context"
		"log"
		"time"

		"github.com/aretw0/sessionstore"
		"github.com/aretw0/sessionstore/pkg/domain"
	)

	func main() {
		store, err := sessionstore.New()
		if err != nil {
			log.Fatal(err)
		}
		defer store.Close()

		ctx := context.Background()
		s := domain.NewSession("python", time.Hour, map[string]string{"main.py": "print(1)"})
		if err := store.Create(ctx, "abc", s); err != nil {
			log.Fatal(err)
		}

		s, ok, err := store.Get(ctx, "abc")
		// ...
	}

# Saving

Save replaces the whole record and re-arms its expiration window, but it does not
touch the session. Call Session.Touch (or session.Manager.Touch) to extend its life.
*/
package sessionstore
