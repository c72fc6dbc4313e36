/*
Package ports defines the driven ports (interfaces) implemented by the storage backends.

Callers obtain one SessionStore at startup and use it everywhere, never touching
the concrete backend directly.

# Key Interfaces

  - SessionStore: Create, Get, Save and Delete session records with lazy TTL expiration.
  - Locker: Provides distributed locking for serializing writers across replicas.
*/
package ports
