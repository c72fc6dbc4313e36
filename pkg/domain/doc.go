/*
Package domain contains the session record stored by every backend.

A Session carries the runtime language tag, its idle TTL, the last time it was
used and the files that belong to it. The package is pure: it knows how to
serialize a Session to its JSON wire form and how to decide whether it has
expired, but it never performs I/O.

# Wire Format

	{
	  "language": "python",
	  "ttl": 3600,
	  "last_used": 1760707200.123456,
	  "files": {"main.py": "print(1)"}
	}

All four keys are required when decoding.

# Expiration

A session is expired when now - last_used > ttl. The check is lazy: backends
evaluate it when a session is read and never sweep in the background.
*/
package domain
