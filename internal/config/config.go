package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/aretw0/sessionstore"
	"github.com/aretw0/sessionstore/internal/logging"
	"github.com/aretw0/sessionstore/pkg/persistence/middleware"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. SESSIONSTORE_LOG_LEVEL.
const EnvPrefix = "SESSIONSTORE_"

// Config is the command-line configuration of the session store.
type Config struct {
	// RedisURL is used when neither REDIS_URL nor REDIS_URI is set.
	RedisURL    string           `mapstructure:"redis_url" yaml:"redis_url"`
	Prefix      string           `mapstructure:"prefix" yaml:"prefix"`
	LockPrefix  string           `mapstructure:"lock_prefix" yaml:"lock_prefix"`
	DefaultTTL  time.Duration    `mapstructure:"default_ttl" yaml:"default_ttl"`
	LockTTL     time.Duration    `mapstructure:"lock_ttl" yaml:"lock_ttl"`
	RedactPaths []string         `mapstructure:"redact_paths" yaml:"redact_paths"`
	Log         LogConfig        `mapstructure:"log" yaml:"log"`
	HTTP        HTTPConfig       `mapstructure:"http" yaml:"http"`
	Encryption  EncryptionConfig `mapstructure:"encryption" yaml:"encryption"`

	lookupEnv func(string) (string, bool)
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// EncryptionConfig carries base64 encoded AES-256 keys.
type EncryptionConfig struct {
	Key          string   `mapstructure:"key" yaml:"key"`
	FallbackKeys []string `mapstructure:"fallback_keys" yaml:"fallback_keys"`
}

// envKeys maps environment suffixes to config paths.
var envKeys = map[string][]string{
	"REDIS_URL":                {"redis_url"},
	"PREFIX":                   {"prefix"},
	"LOCK_PREFIX":              {"lock_prefix"},
	"DEFAULT_TTL":              {"default_ttl"},
	"LOCK_TTL":                 {"lock_ttl"},
	"REDACT_PATHS":             {"redact_paths"},
	"LOG_LEVEL":                {"log", "level"},
	"LOG_FORMAT":               {"log", "format"},
	"HTTP_ADDR":                {"http", "addr"},
	"ENCRYPTION_KEY":           {"encryption", "key"},
	"ENCRYPTION_FALLBACK_KEYS": {"encryption", "fallback_keys"},
}

func defaults() map[string]any {
	return map[string]any{
		"default_ttl": "1h",
		"lock_ttl":    "30s",
		"log": map[string]any{
			"level":  "info",
			"format": "text",
		},
		"http": map[string]any{
			"addr": ":8080",
		},
	}
}

// Load reads the optional YAML file at path, overlays SESSIONSTORE_* variables
// from lookupEnv and decodes the result. A missing file is only an error when
// path was given explicitly.
func Load(path string, lookupEnv func(string) (string, bool)) (*Config, error) {
	if lookupEnv == nil {
		lookupEnv = os.LookupEnv
	}

	raw := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		var file map[string]any
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		merge(raw, file)
	}

	for suffix, keyPath := range envKeys {
		if v, ok := lookupEnv(EnvPrefix + suffix); ok && v != "" {
			set(raw, keyPath, v)
		}
	}

	cfg := &Config{lookupEnv: lookupEnv}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           cfg,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// LookupEnv resolves the backend selection variables: the process environment
// first, then redis_url from the config file for REDIS_URL.
func (c *Config) LookupEnv(key string) (string, bool) {
	if v, ok := c.lookupEnv(key); ok && v != "" {
		return v, true
	}
	if key == sessionstore.URLEnvVars[0] && c.RedisURL != "" {
		return c.RedisURL, true
	}
	return "", false
}

// Logger builds the application logger.
func (c *Config) Logger() (*slog.Logger, error) {
	level, err := logging.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, err
	}
	return logging.NewWithFormat(os.Stderr, c.Log.Format, level)
}

// Middlewares builds the store middlewares: redaction first, then encryption.
func (c *Config) Middlewares() ([]middleware.Middleware, error) {
	var mws []middleware.Middleware

	if len(c.RedactPaths) > 0 {
		mw, err := middleware.NewRedactMiddleware(c.RedactPaths)
		if err != nil {
			return nil, err
		}
		mws = append(mws, mw)
	}

	if c.Encryption.Key != "" {
		active, err := decodeKey(c.Encryption.Key)
		if err != nil {
			return nil, fmt.Errorf("encryption key: %w", err)
		}
		enc := middleware.EncryptionConfig{ActiveKey: active}
		for i, k := range c.Encryption.FallbackKeys {
			fallback, err := decodeKey(k)
			if err != nil {
				return nil, fmt.Errorf("fallback key %d: %w", i, err)
			}
			enc.FallbackKeys = append(enc.FallbackKeys, fallback)
		}
		mw, err := middleware.NewEncryptionMiddleware(enc)
		if err != nil {
			return nil, err
		}
		mws = append(mws, mw)
	} else if len(c.Encryption.FallbackKeys) > 0 {
		return nil, errors.New("encryption fallback keys require an active key")
	}

	return mws, nil
}

// StoreOptions returns the options for sessionstore.New derived from this config.
func (c *Config) StoreOptions(logger *slog.Logger) ([]sessionstore.Option, error) {
	mws, err := c.Middlewares()
	if err != nil {
		return nil, err
	}

	opts := []sessionstore.Option{
		sessionstore.WithLogger(logger),
		sessionstore.WithLookupEnv(c.LookupEnv),
		sessionstore.WithMiddleware(mws...),
	}
	if c.Prefix != "" {
		opts = append(opts, sessionstore.WithPrefix(c.Prefix))
	}
	if c.LockPrefix != "" {
		opts = append(opts, sessionstore.WithLockPrefix(c.LockPrefix))
	}
	return opts, nil
}

func decodeKey(s string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("not valid base64: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("must decode to 32 bytes, got %d", len(key))
	}
	return key, nil
}

// merge copies src into dst, recursing into nested maps.
func merge(dst, src map[string]any) {
	for k, v := range src {
		if sub, ok := v.(map[string]any); ok {
			if existing, ok := dst[k].(map[string]any); ok {
				merge(existing, sub)
				continue
			}
		}
		dst[k] = v
	}
}

func set(m map[string]any, path []string, value string) {
	for _, k := range path[:len(path)-1] {
		sub, ok := m[k].(map[string]any)
		if !ok {
			sub = make(map[string]any)
			m[k] = sub
		}
		m = sub
	}
	m[path[len(path)-1]] = value
}
