// Package secret guarantees that every process in the deployment signs and
// verifies with exactly one authoritative signing secret.
//
// # Design
//
// The provider reads the secret from a persistent settings row on first
// use and caches it for process lifetime. A missing row is populated with
// an insert-if-absent followed by a re-read of the committed value, so
// concurrent first-callers converge on the same winner. When the store is
// unreachable the provider serves a deterministic fallback derived from a
// single build-time constant; every process computes the identical value
// independently, trading secrecy for signature consistency during the
// outage. Degraded state is observable and logged for alerting.
//
// # What this package must NOT do
//
//   - Rotate as a side effect of reads. Rotation is [Provider.Rotate] only.
//   - Derive the fallback anywhere else. This file is the one authoritative
//     derivation.
package secret
