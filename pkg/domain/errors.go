package domain

import "errors"

// ErrMalformedPayload is returned when a serialized session is missing a required
// field or a field has the wrong shape.
var ErrMalformedPayload = errors.New("malformed session payload")

// ErrBackendUnavailable is returned when the storage substrate cannot be reached.
// It is never retried by the store; the caller decides what to do.
var ErrBackendUnavailable = errors.New("session backend unavailable")

// ErrTTLOutOfRange is returned when a TTL in seconds does not fit a time.Duration.
var ErrTTLOutOfRange = errors.New("ttl out of range")
