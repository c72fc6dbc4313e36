/*
Package session orchestrates concurrent access to stored sessions.

A SessionStore applies last-write-wins. The Manager layered on top serializes
read-modify-write sequences per session id, locally with reference-counted
mutexes and across replicas with an optional ports.Locker.
*/
package session
