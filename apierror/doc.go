// Package apierror is the centralized failure surface of authcore: it maps
// every error to a stable code taxonomy, redacts sensitive detail from
// anything a client might see, and keeps the full original server-side
// under a correlation id.
//
// # Design
//
// A [Handler] classifies an error to a [Code], redacts and truncates the
// client-facing message, attaches a ULID correlation id, logs the raw
// detail, and hands an immutable [Record] to an async dispatcher so the
// request path never blocks on the error store. The JSON envelope is
// uniform across all codes.
//
// # What this package must NOT do
//
//   - Let a file path, connection string, credential, SQL fragment, stack
//     trace, or internal type name reach a client-visible field.
//   - Import the authcore root package (the root builds on this one).
package apierror
