// Package session holds the shared authenticated session handle and the
// process-wide refresh lock.
//
// # Architecture boundaries
//
// This package owns the [Store] (cached session + refresh mutex) and the
// [Session] model. It does NOT classify expiration, retry failed refreshes,
// or translate errors into user-facing messages — those responsibilities
// belong to the Guard and the validity package.
//
// # What this package must NOT do
//
//   - Import sessionguard, validity, or dedupe (no upward imports).
//   - Retry or back off: [Store.RefreshOnce] performs exactly one provider call.
//   - Interpret the opaque expiration value carried by [Session.ExpiresAt].
package session
