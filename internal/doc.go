// Package internal contains helper utilities that are intentionally private
// to authcore: secure random token-value generation, hashing, and composite
// rate-limit identifier construction.
//
// # Sub-packages
//
//   - rate — Redis-backed sliding-window limiter and the global breaker
//   - stores — single-use CSRF token store
//
// # What this package must NOT do
//
//   - Export types that appear in the public authcore API.
//   - Be imported by any package outside the authcore module.
package internal
