// Package validate is a declarative rule engine for request input: a typed
// [Schema] maps field names to kinds and constraints, and [Apply] returns
// either typed values or the complete set of field-scoped errors.
//
// # Design
//
// Validation never fails fast and never panics on user input: every
// invalid field is reported in one pass so callers can surface all
// problems at once. Constraints are typed per kind, so a numeric bound on
// a text field is a compile-time shape error, not a runtime surprise.
// String inputs are additionally screened against known injection
// signatures as defense-in-depth; the business layer still owes
// parameterized queries.
//
// # What this package must NOT do
//
//   - Perform I/O or touch any store.
//   - Sanitize by mutation. Inputs either pass or are rejected.
package validate
