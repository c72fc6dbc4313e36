package testutils

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
)

// SetupRedis starts an in-process Redis server for the duration of the test
// and returns it together with a connection URL for it.
func SetupRedis(t *testing.T) (*miniredis.Miniredis, string) {
	t.Helper()

	mr := miniredis.RunT(t)
	return mr, "redis://" + mr.Addr()
}

// UnreachableRedisURL returns a URL for an address that refused connections
// a moment ago. Commands sent to it fail with a transport error.
func UnreachableRedisURL(t *testing.T) string {
	t.Helper()

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	return "redis://" + addr
}
