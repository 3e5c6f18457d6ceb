// Package validity classifies a session's expiration metadata into a
// fine-grained [Status] that drives both refresh policy and user messaging.
//
// # Classification
//
// [Classify] is a pure function over a session and a clock reading. It
// normalizes the loosely typed expiration value (unix seconds, epoch
// milliseconds, numeric strings, date strings, or an embedded JWT exp claim),
// applies a reasonableness window, and maps the remaining lifetime onto the
// detailed-status taxonomy. Ambiguous or broken inputs fail toward refresh:
// a session we cannot reason about is cheaper to refresh than to trust.
//
// # Architecture boundaries
//
// This package owns expiration normalization and the [DetailedStatus]
// taxonomy. It performs no I/O, holds no state, and never logs — the Guard
// decides what to do with a classification.
//
// # What this package must NOT do
//
//   - Import sessionguard or dedupe (no upward imports).
//   - Call the identity provider or any network service.
//   - Verify JWT signatures: the exp claim is read unverified, as a hint only.
package validity
