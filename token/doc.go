// Package token issues and verifies the compact HMAC-SHA256 bearer tokens
// used by the authcore engine: three base64url segments (header, claims,
// signature) carrying subject id, role, and issuance/expiry timestamps.
//
// # Architecture boundaries
//
// The manager is purely cryptographic. It resolves the signing secret
// through a [SecretSource] on every call and never caches key material
// itself; revocation against the principal store is the engine's job.
//
// # What this package must NOT do
//
//   - Persist anything. Tokens carry their own expiry and are never stored.
//   - Distinguish verification failures beyond its own sentinel errors;
//     collapsing them into one opaque caller-facing error happens upstream.
package token
