package sessionguard

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrAuthRequired is an exported constant or variable used by the session guard.
	ErrAuthRequired = errors.New("authentication required")
	// ErrSessionExpired is an exported constant or variable used by the session guard.
	ErrSessionExpired = errors.New("session expired")
	// ErrSessionRefreshFailed is an exported constant or variable used by the session guard.
	ErrSessionRefreshFailed = errors.New("session refresh failed")
	// ErrSessionRefreshTimedOut is an exported constant or variable used by the session guard.
	ErrSessionRefreshTimedOut = errors.New("session refresh timed out")
	// ErrDuplicateSubmission is an exported constant or variable used by the session guard.
	ErrDuplicateSubmission = errors.New("duplicate submission")
	// ErrPermissionDenied is an exported constant or variable used by the session guard.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrOperationTimeout is an exported constant or variable used by the session guard.
	ErrOperationTimeout = errors.New("operation timed out")
	// ErrUnexpected is an exported constant or variable used by the session guard.
	ErrUnexpected = errors.New("unexpected error")
	// ErrGuardNotReady is an exported constant or variable used by the session guard.
	ErrGuardNotReady = errors.New("guard not initialized")
)

// DuplicateSubmissionError reports a rejected near-duplicate along with the
// submission it duplicates. It unwraps to [ErrDuplicateSubmission].
type DuplicateSubmissionError struct {
	ExistingID string
	Age        time.Duration
}

func (e *DuplicateSubmissionError) Error() string {
	return fmt.Sprintf("duplicate submission: matches %s recorded %s ago", e.ExistingID, e.Age.Round(time.Millisecond))
}

// Unwrap describes the unwrap operation and its observable behavior.
//
// Unwrap allows errors.Is(err, ErrDuplicateSubmission) on wrapped values.
func (e *DuplicateSubmissionError) Unwrap() error {
	return ErrDuplicateSubmission
}

// BackendError is a structured error from the submission endpoint carrying a
// machine-readable code. The guard recognizes exactly two codes
// ([CodePermissionDenied], [CodeStatementTimeout]); everything else passes
// through wrapped in [ErrUnexpected] with the original message appended.
type BackendError struct {
	Code    string
	Message string
}

func (e *BackendError) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return e.Code + ": " + e.Message
}

const (
	// CodePermissionDenied is the backend's row-level-security rejection code.
	CodePermissionDenied = "42501"
	// CodeStatementTimeout is the backend's statement-timeout code.
	CodeStatementTimeout = "57014"
)
