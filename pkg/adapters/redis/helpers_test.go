package redis_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

// extractFiles returns the raw "files" object of a stored payload.
func extractFiles(t *testing.T, raw string) string {
	t.Helper()

	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))
	return string(doc["files"])
}
