// Package authcore provides the authentication and access-control core for
// multi-tenant web backends: HMAC-signed session tokens, Redis-backed
// sliding-window rate limiting with a global circuit breaker, single-use
// CSRF tokens, declarative input validation, and a uniform error envelope
// with server-side detail capture.
//
// The package is designed for concurrent server workloads: Engine methods
// are safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Engine], [Builder], [Config],
// and value types (AuthResult, RateResult, MetricsSnapshot). Storage and
// coordination details — the sliding-window limiter, the CSRF record store,
// identifier hashing — live under internal/ and are never exported. The
// token, secret, validate, and apierror packages are importable on their
// own for callers that do not need the full engine.
//
// # What this package must NOT do
//
//   - Expose Redis clients, internal stores, or encoding details in its
//     public API.
//   - Leak token verification failure causes to callers: VerifyToken
//     returns [ErrTokenInvalid] for every rejection and records the cause
//     in logs and metrics only.
//   - Import any sub-package that re-imports authcore (no import cycles).
//
// # Performance contract
//
// VerifyToken is the hot path. Signature and claim checks run without
// network I/O; the principal status re-check is the single allowed
// round-trip. Rate limit checks are allowed one Redis transaction per call.
package authcore
