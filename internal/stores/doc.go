// Package stores provides the Redis-backed, short-lived record store for
// anti-forgery (CSRF) tokens.
//
// # Design
//
// Each session owns at most one active token, persisted as a versioned
// binary record with a TTL. Consume uses a WATCH/MULTI optimistic
// transaction with automatic retry on contention, so two concurrent
// presentations of the same value cannot both succeed. Token values are
// stored and compared as SHA-256 hashes with constant-time compare.
//
// # What this package must NOT do
//
//   - Generate token values (the engine does that).
//   - Decide which HTTP verbs need protection (middleware's job).
//   - Log or expose plaintext token values.
package stores
