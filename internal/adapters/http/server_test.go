package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/sessionstore/internal/testutils"
	"github.com/aretw0/sessionstore/pkg/adapters/memory"
	"github.com/aretw0/sessionstore/pkg/adapters/redis"
	"github.com/aretw0/sessionstore/pkg/domain"
	"github.com/aretw0/sessionstore/pkg/persistence/middleware"
	"github.com/aretw0/sessionstore/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingPinger struct{}

func (failingPinger) Ping(ctx context.Context) error {
	return errors.New("connection refused")
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestSessions_Lifecycle(t *testing.T) {
	store := memory.NewStore()
	handler := NewHandler(session.NewManager(store))

	// Create
	w := do(t, handler, "POST", "/sessions/abc", `{"language":"python","ttl":60,"files":{"a.py":"x"}}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	// Get
	w = do(t, handler, "GET", "/sessions/abc", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var got map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "python", got["language"])
	assert.Equal(t, float64(60), got["ttl"])
	assert.Equal(t, map[string]any{"a.py": "x"}, got["files"])
	assert.Contains(t, got, "last_used")

	// Replace files
	w = do(t, handler, "PUT", "/sessions/abc/files", `{"b.py":"y"}`)
	require.Equal(t, http.StatusNoContent, w.Code)

	stored, ok, err := store.Get(context.Background(), "abc")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, map[string]string{"b.py": "y"}, stored.Files)

	// Touch
	w = do(t, handler, "POST", "/sessions/abc/touch", "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	// Delete (twice, idempotent)
	w = do(t, handler, "DELETE", "/sessions/abc", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = do(t, handler, "DELETE", "/sessions/abc", "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, handler, "GET", "/sessions/abc", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSessions_DefaultTTL(t *testing.T) {
	store := memory.NewStore()
	handler := NewHandler(session.NewManager(store), WithDefaultTTL(90*time.Second))

	w := do(t, handler, "POST", "/sessions/abc", `{"language":"go","files":{}}`)
	require.Equal(t, http.StatusCreated, w.Code)

	stored, ok, err := store.Get(context.Background(), "abc")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 90*time.Second, stored.TTL)
}

func TestSessions_NotFound(t *testing.T) {
	handler := NewHandler(session.NewManager(memory.NewStore()))

	assert.Equal(t, http.StatusNotFound, do(t, handler, "GET", "/sessions/nope", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, handler, "POST", "/sessions/nope/touch", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, handler, "PUT", "/sessions/nope/files", `{}`).Code)
}

func TestSessions_ExpiredIsNotFound(t *testing.T) {
	store := memory.NewStore()
	handler := NewHandler(session.NewManager(store))

	s := domain.NewSession("python", time.Second, nil)
	s.LastUsed = s.LastUsed.Add(-time.Minute)
	require.NoError(t, store.Create(context.Background(), "old", s))

	assert.Equal(t, http.StatusNotFound, do(t, handler, "GET", "/sessions/old", "").Code)
	assert.False(t, store.Has("old"))
}

func TestSessions_BadRequest(t *testing.T) {
	handler := NewHandler(session.NewManager(memory.NewStore()))

	assert.Equal(t, http.StatusBadRequest, do(t, handler, "POST", "/sessions/abc", `{not json`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, handler, "POST", "/sessions/abc", `{"language":"go","extra":1}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, handler, "PUT", "/sessions/abc/files", `null`).Code)
}

func TestCreateSession_TTLOutOfRange(t *testing.T) {
	store := memory.NewStore()
	handler := NewHandler(session.NewManager(store))

	assert.Equal(t, http.StatusBadRequest, do(t, handler, "POST", "/sessions/big", `{"language":"go","ttl":10000000000,"files":{}}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, handler, "POST", "/sessions/big", `{"language":"go","ttl":-10000000000,"files":{}}`).Code)
	assert.False(t, store.Has("big"))

	assert.Equal(t, http.StatusCreated, do(t, handler, "POST", "/sessions/big", `{"language":"go","ttl":9223372036,"files":{}}`).Code)
	assert.True(t, store.Has("big"))
}

func TestSessions_BackendUnavailable(t *testing.T) {
	store, err := redis.New(testutils.UnreachableRedisURL(t))
	require.NoError(t, err)
	defer store.Close()

	handler := NewHandler(session.NewManager(store), WithHealth(store))

	assert.Equal(t, http.StatusServiceUnavailable, do(t, handler, "GET", "/sessions/abc", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(t, handler, "GET", "/healthz", "").Code)
}

func TestSessions_MalformedStoredPayload(t *testing.T) {
	mr, url := testutils.SetupRedis(t)
	store, err := redis.New(url)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, mr.Set(store.Key("broken"), `{"ttl":1}`))

	handler := NewHandler(session.NewManager(store))
	assert.Equal(t, http.StatusInternalServerError, do(t, handler, "GET", "/sessions/broken", "").Code)
}

func TestHealthz(t *testing.T) {
	assert.Equal(t, http.StatusOK, do(t, NewHandler(session.NewManager(memory.NewStore())), "GET", "/healthz", "").Code)

	handler := NewHandler(session.NewManager(memory.NewStore()), WithHealth(failingPinger{}))
	assert.Equal(t, http.StatusServiceUnavailable, do(t, handler, "GET", "/healthz", "").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics, err := middleware.NewMetrics(reg)
	require.NoError(t, err)

	store := middleware.Chain(memory.NewStore(), metrics.Middleware("memory"))
	handler := NewHandler(session.NewManager(store), WithGatherer(reg))

	do(t, handler, "GET", "/sessions/abc", "")

	w := do(t, handler, "GET", "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `sessionstore_operations_total{backend="memory",op="get",result="miss"} 1`)
}

func TestCORSPreflight(t *testing.T) {
	handler := NewHandler(session.NewManager(memory.NewStore()))

	w := do(t, handler, "OPTIONS", "/sessions/abc", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
