// Package middleware exposes HTTP adapters for the authcore engine: a
// bearer-token guard, rate limit enforcement with standard headers, CSRF
// verification for state-changing methods, and baseline security headers.
//
// # Adapters
//
//   - [Guard] — reads the Authorization header, verifies the token, and
//     injects the authenticated result into the request context.
//   - [RateLimit] — charges each request against the per-client window
//     and emits X-RateLimit-* headers on every response.
//   - [Smooth] — optional in-process token bucket in front of the
//     Redis-backed limiter.
//   - [CSRF] — verifies anti-forgery tokens on POST/PUT/PATCH/DELETE.
//   - [SecurityHeaders] — static hardening headers.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT
// implement authentication logic itself; all decisions are delegated to
// the engine, and all failure responses are rendered through the engine's
// error handler so they carry correlation ids and land in the error log.
//
// # What this package must NOT do
//
//   - Parse or create tokens directly (delegates to Engine).
//   - Access Redis (Engine handles I/O).
//   - Vary failure responses by cause beyond the stable code set.
package middleware
