package sessionguard

import (
	"context"

	"github.com/loocate/sessionguard/dedupe"
	"github.com/loocate/sessionguard/session"
	"github.com/loocate/sessionguard/validity"
)

// Session is the authenticated credential pair shared across the process.
type Session = session.Session

// SessionProvider is the external identity/session service that callers must
// implement to integrate sessionguard with their auth backend.
type SessionProvider = session.Provider

// SessionStatus is the fine-grained classification of one session at one
// instant, produced by the validity package.
type SessionStatus = validity.Status

// DetailedStatus defines a public type used by sessionguard APIs.
//
// DetailedStatus drives both refresh policy and the user-facing message
// chosen when validation ultimately fails.
type DetailedStatus = validity.DetailedStatus

const (
	// StatusNoSession is an exported constant or variable used by the session guard.
	StatusNoSession = validity.StatusNoSession
	// StatusValid is an exported constant or variable used by the session guard.
	StatusValid = validity.StatusValid
	// StatusExpiringSoon is an exported constant or variable used by the session guard.
	StatusExpiringSoon = validity.StatusExpiringSoon
	// StatusJustExpired is an exported constant or variable used by the session guard.
	StatusJustExpired = validity.StatusJustExpired
	// StatusExpiredPast is an exported constant or variable used by the session guard.
	StatusExpiredPast = validity.StatusExpiredPast
	// StatusSuspiciousFuture is an exported constant or variable used by the session guard.
	StatusSuspiciousFuture = validity.StatusSuspiciousFuture
	// StatusInvalidDate is an exported constant or variable used by the session guard.
	StatusInvalidDate = validity.StatusInvalidDate
	// StatusMissingExpiration is an exported constant or variable used by the session guard.
	StatusMissingExpiration = validity.StatusMissingExpiration
	// StatusCalculationError is an exported constant or variable used by the session guard.
	StatusCalculationError = validity.StatusCalculationError
	// StatusNetworkError is an exported constant or variable used by the session guard.
	StatusNetworkError = validity.StatusNetworkError
)

// Payload carries the semantically meaningful fields of one submission.
type Payload = dedupe.Payload

// DuplicateCheck is the outcome of a duplicate probe.
type DuplicateCheck = dedupe.Check

// RecentSubmissionStore tracks recent submissions by fingerprint. The default
// is an in-process TTL map; [Builder.WithRedis] swaps in a shared store.
type RecentSubmissionStore = dedupe.Store

// SubmissionType defines a public type used by sessionguard APIs.
//
// SubmissionType distinguishes the community-contribution flows that share
// the submission endpoint.
type SubmissionType string

const (
	// SubmissionNewToilet is an exported constant or variable used by the session guard.
	SubmissionNewToilet SubmissionType = "new_toilet"
	// SubmissionEdit is an exported constant or variable used by the session guard.
	SubmissionEdit SubmissionType = "edit"
	// SubmissionReport is an exported constant or variable used by the session guard.
	SubmissionReport SubmissionType = "report"
)

// SubmissionRequest is the input for [Guard.Submit]. TargetEntityID and
// Reason are only meaningful for edits and reports.
type SubmissionRequest struct {
	Payload        Payload
	Type           SubmissionType
	PrincipalID    string
	TargetEntityID string
	Reason         string
}

// SubmissionResult is returned by the submission endpoint on success.
type SubmissionResult struct {
	ID     string
	Status string
}

// SubmissionService is the external submission endpoint: one RPC that either
// returns a result or a structured error, ideally a [*BackendError] so the
// guard can translate the recognized codes.
type SubmissionService interface {
	Submit(ctx context.Context, req SubmissionRequest) (*SubmissionResult, error)
}

// EligibilityProbe asks the backend whether the current principal may perform
// a community action (voting, reporting). It runs under the eligibility
// timeout budget.
type EligibilityProbe func(ctx context.Context) (bool, error)

// GuardedOperation is the caller-supplied operation that [Guard.Run] wraps
// with deduplication, session validation, and the submission timeout.
type GuardedOperation func(ctx context.Context) (*SubmissionResult, error)
