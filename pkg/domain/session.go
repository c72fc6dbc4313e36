package domain

import (
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"time"
)

// Session is the per-session record kept by a store.
type Session struct {
	// Language is an opaque tag describing the session runtime.
	Language string

	// TTL is the idle duration after which the session expires.
	// It has whole-second granularity.
	TTL time.Duration

	// LastUsed is the last time the session was touched.
	// It has microsecond granularity.
	LastUsed time.Time

	// Files maps relative paths to file contents.
	Files map[string]string
}

// NewSession creates a session used "now".
// A nil files map is replaced by an empty one. No validation is applied to ttl:
// zero or negative values produce a session that is expired on the next read.
func NewSession(language string, ttl time.Duration, files map[string]string) *Session {
	if files == nil {
		files = make(map[string]string)
	}
	return &Session{
		Language: language,
		TTL:      ttl.Truncate(time.Second),
		LastUsed: now(),
		Files:    files,
	}
}

// Touch marks the session as used now.
func (s *Session) Touch() {
	s.LastUsed = now()
}

// IsExpired reports whether the session idled longer than its TTL.
func (s *Session) IsExpired() bool {
	return s.ExpiredAt(time.Now())
}

// ExpiredAt reports whether the session is expired at the given instant.
func (s *Session) ExpiredAt(t time.Time) bool {
	return t.Sub(s.LastUsed) > s.TTL
}

// Clone returns a deep copy of the session.
func (s *Session) Clone() *Session {
	c := *s
	c.Files = maps.Clone(s.Files)
	if c.Files == nil {
		c.Files = make(map[string]string)
	}
	return &c
}

// wireSession is the JSON shape of a Session.
// Pointers distinguish absent keys from zero values.
type wireSession struct {
	Language *string            `json:"language"`
	TTL      *int64             `json:"ttl"`
	LastUsed *float64           `json:"last_used"`
	Files    *map[string]string `json:"files"`
}

// MarshalJSON encodes the session in its wire format.
func (s *Session) MarshalJSON() ([]byte, error) {
	files := s.Files
	if files == nil {
		files = map[string]string{}
	}
	ttl := int64(s.TTL / time.Second)
	lastUsed := float64(s.LastUsed.UnixMicro()) / 1e6
	return json.Marshal(wireSession{
		Language: &s.Language,
		TTL:      &ttl,
		LastUsed: &lastUsed,
		Files:    &files,
	})
}

// UnmarshalJSON decodes the wire format. Every key is required.
func (s *Session) UnmarshalJSON(data []byte) error {
	var w wireSession
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	switch {
	case w.Language == nil:
		return fmt.Errorf("%w: missing \"language\"", ErrMalformedPayload)
	case w.TTL == nil:
		return fmt.Errorf("%w: missing \"ttl\"", ErrMalformedPayload)
	case w.LastUsed == nil:
		return fmt.Errorf("%w: missing \"last_used\"", ErrMalformedPayload)
	case w.Files == nil || *w.Files == nil:
		return fmt.Errorf("%w: missing \"files\"", ErrMalformedPayload)
	}

	ttl, err := TTLFromSeconds(*w.TTL)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}

	// float64(math.MaxInt64) is 2^63, which no longer fits an int64.
	micros := math.Round(*w.LastUsed * 1e6)
	if math.IsNaN(micros) || micros >= math.MaxInt64 || micros < math.MinInt64 {
		return fmt.Errorf("%w: invalid \"last_used\"", ErrMalformedPayload)
	}

	s.Language = *w.Language
	s.TTL = ttl
	s.LastUsed = time.UnixMicro(int64(micros))
	s.Files = *w.Files
	return nil
}

// maxTTLSeconds is the largest whole number of seconds a time.Duration holds.
const maxTTLSeconds = math.MaxInt64 / int64(time.Second)

// TTLFromSeconds converts a wire TTL to a duration, rejecting values that
// would overflow time.Duration.
func TTLFromSeconds(seconds int64) (time.Duration, error) {
	if seconds > maxTTLSeconds || seconds < -maxTTLSeconds {
		return 0, fmt.Errorf("%w: %d seconds", ErrTTLOutOfRange, seconds)
	}
	return time.Duration(seconds) * time.Second, nil
}

// Marshal serializes the session to its wire format.
func Marshal(s *Session) ([]byte, error) {
	return json.Marshal(s)
}

// Unmarshal reconstructs a session from its wire format.
// Errors wrap ErrMalformedPayload.
func Unmarshal(payload []byte) (*Session, error) {
	var s Session
	if err := s.UnmarshalJSON(payload); err != nil {
		return nil, err
	}
	return &s, nil
}

// now returns the current wall time truncated to what the wire format keeps.
func now() time.Time {
	return time.UnixMicro(time.Now().UnixMicro())
}
