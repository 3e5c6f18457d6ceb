// Package sessionguard coordinates the client-side session lifecycle for the
// Loocate toilet-finder: single-flight token refresh with retry and backoff,
// coalesced session validation, and time-windowed submission deduplication,
// composed into a [Guard] that wraps user-submitted contributions.
//
// The package is designed for concurrent callers: Guard methods are safe to
// call from multiple goroutines after initialization through [Builder.Build].
//
// # Architecture boundaries
//
// sessionguard is the public surface. It exposes [Guard], [Builder], [Config],
// and value types (SessionStatus, SubmissionRequest, AuditEvent, etc.).
// Expiration classification lives in the validity package, the shared session
// handle and refresh lock in session, and fingerprinting in dedupe.
//
// # What this package must NOT do
//
//   - Own a wire protocol: the identity provider and submission endpoint are
//     opaque interfaces supplied by the caller.
//   - Swallow errors: every failure path returns a sentinel or the original
//     error; best-effort steps that fail are logged, never silently dropped.
//   - Hold hidden globals: one Guard per process is a composition-root
//     decision, not a package-level singleton.
//
// # Coordination contract
//
// EnsureValidSession is the hot path. Concurrent callers piggyback on one
// in-flight validation, and at most one token refresh runs at a time; a
// caller that loses the refresh race reports success optimistically and
// re-checks the session afterward.
package sessionguard
