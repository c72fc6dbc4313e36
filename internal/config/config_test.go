package config_test

import (
	"crypto/rand"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/sessionstore/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noEnv(string) (string, bool) { return "", false }

func envOf(vars map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := vars[k]
		return v, ok
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sessionstore.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func newKey(t *testing.T) string {
	k := make([]byte, 32)
	_, err := rand.Read(k)
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(k)
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("", noEnv)
	require.NoError(t, err)

	assert.Equal(t, time.Hour, cfg.DefaultTTL)
	assert.Equal(t, 30*time.Second, cfg.LockTTL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Empty(t, cfg.RedisURL)

	mws, err := cfg.Middlewares()
	require.NoError(t, err)
	assert.Empty(t, mws)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
redis_url: redis://localhost:6379/1
prefix: "sandbox:session:"
lock_prefix: "sandbox:lock:"
default_ttl: 15m
redact_paths:
  - \.env$
log:
  level: debug
http:
  addr: 127.0.0.1:9000
`)

	cfg, err := config.Load(path, noEnv)
	require.NoError(t, err)

	assert.Equal(t, "redis://localhost:6379/1", cfg.RedisURL)
	assert.Equal(t, "sandbox:session:", cfg.Prefix)
	assert.Equal(t, "sandbox:lock:", cfg.LockPrefix)
	assert.Equal(t, 15*time.Minute, cfg.DefaultTTL)
	assert.Equal(t, []string{`\.env$`}, cfg.RedactPaths)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format, "unset nested keys keep their default")
	assert.Equal(t, "127.0.0.1:9000", cfg.HTTP.Addr)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "default_ttl: 15m\nlog:\n  level: debug\n")

	cfg, err := config.Load(path, envOf(map[string]string{
		"SESSIONSTORE_DEFAULT_TTL":  "45s",
		"SESSIONSTORE_LOG_FORMAT":   "json",
		"SESSIONSTORE_REDACT_PATHS": `\.env$,id_rsa`,
	}))
	require.NoError(t, err)

	assert.Equal(t, 45*time.Second, cfg.DefaultTTL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, []string{`\.env$`, "id_rsa"}, cfg.RedactPaths)
}

func TestLoad_UnknownKey(t *testing.T) {
	path := writeConfig(t, "ttl_default: 1h\n")

	_, err := config.Load(path, noEnv)
	assert.Error(t, err)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"), noEnv)
	assert.Error(t, err)
}

func TestConfig_LookupEnv(t *testing.T) {
	path := writeConfig(t, "redis_url: redis://from-file:6379\n")

	cfg, err := config.Load(path, noEnv)
	require.NoError(t, err)
	v, ok := cfg.LookupEnv("REDIS_URL")
	assert.True(t, ok)
	assert.Equal(t, "redis://from-file:6379", v)

	_, ok = cfg.LookupEnv("REDIS_URI")
	assert.False(t, ok)

	cfg, err = config.Load(path, envOf(map[string]string{"REDIS_URL": "redis://from-env:6379"}))
	require.NoError(t, err)
	v, ok = cfg.LookupEnv("REDIS_URL")
	assert.True(t, ok)
	assert.Equal(t, "redis://from-env:6379", v)
}

func TestConfig_Middlewares(t *testing.T) {
	cfg, err := config.Load("", envOf(map[string]string{
		"SESSIONSTORE_ENCRYPTION_KEY":           newKey(t),
		"SESSIONSTORE_ENCRYPTION_FALLBACK_KEYS": newKey(t),
		"SESSIONSTORE_REDACT_PATHS":             "secret",
	}))
	require.NoError(t, err)

	mws, err := cfg.Middlewares()
	require.NoError(t, err)
	assert.Len(t, mws, 2)
}

func TestConfig_Middlewares_BadKey(t *testing.T) {
	cfg, err := config.Load("", envOf(map[string]string{
		"SESSIONSTORE_ENCRYPTION_KEY": base64.StdEncoding.EncodeToString([]byte("short")),
	}))
	require.NoError(t, err)

	_, err = cfg.Middlewares()
	assert.Error(t, err)
}

func TestConfig_Middlewares_FallbackWithoutActive(t *testing.T) {
	cfg, err := config.Load("", envOf(map[string]string{
		"SESSIONSTORE_ENCRYPTION_FALLBACK_KEYS": newKey(t),
	}))
	require.NoError(t, err)

	_, err = cfg.Middlewares()
	assert.Error(t, err)
}

func TestConfig_Logger(t *testing.T) {
	cfg, err := config.Load("", envOf(map[string]string{"SESSIONSTORE_LOG_LEVEL": "nope"}))
	require.NoError(t, err)

	_, err = cfg.Logger()
	assert.Error(t, err)
}
