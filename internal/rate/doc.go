// Package rate provides the Redis-backed sliding-window primitives behind
// every quota the engine enforces, plus the global distributed-attack
// circuit breaker.
//
// # Window semantics
//
// Each (scope, identifier) pair owns a sorted set of attempt timestamps.
// Allow prunes entries older than the window, rejects when the remaining
// count has reached the budget (with a retry-after derived from the oldest
// surviving entry), and otherwise appends the current attempt. The whole
// read-prune-append sequence runs under WATCH/MULTI so concurrent requests
// for the same identifier cannot both slip through the last slot.
//
// The breaker is a fixed-window INCR counter across all identifiers; when
// it crosses the ceiling a cooldown key is set and all traffic is refused
// until the key expires.
//
// # What this package must NOT do
//
//   - Choose budgets or compose scope chains (the engine does that).
//   - Be imported outside the authcore module.
package rate
