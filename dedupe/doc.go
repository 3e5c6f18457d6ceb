// Package dedupe fingerprints submission payloads and tracks recent
// submissions in a time-windowed store so near-duplicate resubmissions can be
// rejected before they reach the network.
//
// # Fingerprinting
//
// [Fingerprint] hashes the semantically meaningful fields of a payload —
// name, coordinates rounded to 6 decimal places, address, building, and
// floor — serialized with a stable key order. Identical semantic payloads
// always produce identical fingerprints; coordinate noise below the 6th
// decimal (≈11 cm) is ignored.
//
// # Stores
//
// [MemoryStore] is the default: a mutex-guarded map swept inline on every
// Record call, bounded by submission rate times the retention window.
// [RedisStore] implements the same [Store] interface on go-redis for
// server-side deployments that share the dedupe window across replicas.
//
// # What this package must NOT do
//
//   - Import sessionguard, session, or validity (no upward imports).
//   - Decide what counts as a rejection — callers own the window policy.
package dedupe
