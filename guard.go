package sessionguard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/loocate/sessionguard/dedupe"
	"github.com/loocate/sessionguard/session"
	"github.com/loocate/sessionguard/validity"
)

// Guard defines a public type used by sessionguard APIs.
//
// Guard is the submission-guard coordinator: it wraps every community
// submission with duplicate rejection, session validation with coalesced
// refresh, per-stage timeout budgets, and backend error translation. Build
// one via [New] and share it; all methods are safe for concurrent use.
type Guard struct {
	config Config
	logger zerolog.Logger

	store     *session.Store
	submitter SubmissionService
	recent    RecentSubmissionStore
	ops       *operationRegistry
	audit     *auditDispatcher
	metrics   *Metrics
}

// CheckSession fetches the current session from the identity provider and
// classifies it. Provider failures map to a network_error status rather than
// an error so callers always get a status to act on.
func (g *Guard) CheckSession(ctx context.Context) SessionStatus {
	if g == nil {
		return SessionStatus{Detail: validity.StatusNoSession}
	}

	g.metricInc(MetricSessionCheck)

	checkCtx, cancel := context.WithTimeout(ctx, g.config.Timeouts.Validation)
	defer cancel()

	sess, err := g.store.Fetch(checkCtx)
	if err != nil {
		g.metricInc(MetricSessionCheckFailure)
		g.logger.Warn().Err(err).Msg("session check failed")
		return SessionStatus{Detail: validity.StatusNetworkError, NeedsForceRefresh: true}
	}

	status := validity.ClassifyWithin(g.config.thresholds(), sess, time.Now())
	if status.Detail == validity.StatusSuspiciousFuture {
		g.logger.Warn().
			Dur("expires_in", status.ExpiresIn).
			Msg("session expiry implausibly far in the future")
		g.emitAudit(ctx, AuditEvent{
			Timestamp: time.Now(),
			EventType: auditEventSuspiciousExpiry,
			Success:   true,
			Metadata:  map[string]string{"expires_in": status.ExpiresIn.String()},
		})
	}
	return status
}

// IsDuplicateSubmission probes the recent-submission store for a near-identical
// payload inside the dedupe window. Store failures fail open: a probe that
// cannot be answered never blocks a submission.
func (g *Guard) IsDuplicateSubmission(ctx context.Context, payload Payload) DuplicateCheck {
	if g == nil || g.recent == nil {
		return DuplicateCheck{}
	}

	check, err := g.recent.IsDuplicate(ctx, payload, g.config.Dedupe.Window)
	if err != nil {
		g.logger.Warn().Err(err).Msg("duplicate probe failed, allowing submission")
		return DuplicateCheck{}
	}
	return check
}

// RecordSubmission registers a successful submission so near-identical retries
// inside the window are rejected. Failures are logged and swallowed.
func (g *Guard) RecordSubmission(ctx context.Context, payload Payload, submissionID string) {
	if g == nil || g.recent == nil {
		return
	}
	if err := g.recent.Record(ctx, payload, submissionID); err != nil {
		g.logger.Warn().Err(err).Str("submission_id", submissionID).Msg("failed to record submission")
	}
}

// Run executes op under the full guard pipeline: duplicate rejection first,
// then session validation (refreshing when needed), then the operation under
// the submission timeout. The successful result is recorded for future
// duplicate probes.
func (g *Guard) Run(ctx context.Context, payload Payload, op GuardedOperation) (*SubmissionResult, error) {
	if g == nil {
		return nil, ErrGuardNotReady
	}
	if op == nil {
		return nil, fmt.Errorf("%w: no operation provided", ErrUnexpected)
	}

	// Duplicate check runs before validation so an obviously repeated tap
	// never costs a provider round-trip.
	if check := g.IsDuplicateSubmission(ctx, payload); check.Duplicate {
		g.metricInc(MetricDuplicateRejected)
		g.emitAudit(ctx, AuditEvent{
			Timestamp:    time.Now(),
			EventType:    auditEventDuplicateRejected,
			Fingerprint:  dedupe.Fingerprint(payload),
			SubmissionID: check.ExistingID,
			Error:        "duplicate submission",
		})
		return nil, &DuplicateSubmissionError{ExistingID: check.ExistingID, Age: check.Age}
	}

	if err := g.EnsureValidSession(ctx); err != nil {
		return nil, err
	}

	opCtx, cancel := context.WithTimeout(ctx, g.config.Timeouts.Submission)
	defer cancel()

	result, err := op(opCtx)
	if err != nil {
		translated := g.translateBackendError(err)
		g.recordSubmissionFailure(ctx, translated, err)
		return nil, translated
	}
	if result == nil {
		err := fmt.Errorf("%w: submission returned no result", ErrUnexpected)
		g.recordSubmissionFailure(ctx, err, err)
		return nil, err
	}

	g.metricInc(MetricSubmissionSuccess)
	g.RecordSubmission(ctx, payload, result.ID)
	g.emitAudit(ctx, AuditEvent{
		Timestamp:    time.Now(),
		EventType:    auditEventSubmissionSuccess,
		Fingerprint:  dedupe.Fingerprint(payload),
		SubmissionID: result.ID,
		Success:      true,
	})
	return result, nil
}

// Submit runs req through the guard pipeline against the wired submission
// service.
func (g *Guard) Submit(ctx context.Context, req SubmissionRequest) (*SubmissionResult, error) {
	if g == nil {
		return nil, ErrGuardNotReady
	}
	if g.submitter == nil {
		return nil, fmt.Errorf("%w: no submission service wired", ErrGuardNotReady)
	}
	return g.Run(ctx, req.Payload, func(ctx context.Context) (*SubmissionResult, error) {
		return g.submitter.Submit(ctx, req)
	})
}

// Principal resolves the current principal id from the cached or fetched
// session. No session is not an error: it returns ("", nil) so callers can
// branch on signed-out state.
func (g *Guard) Principal(ctx context.Context) (string, error) {
	if g == nil {
		return "", ErrGuardNotReady
	}

	pctx, cancel := context.WithTimeout(ctx, g.config.Timeouts.Principal)
	defer cancel()

	sess := g.store.Current()
	if sess == nil {
		var err error
		sess, err = g.store.Fetch(pctx)
		if err != nil {
			return "", fmt.Errorf("%w: could not resolve current user: %v", ErrUnexpected, err)
		}
	}
	if sess == nil || sess.UserID == "" {
		return "", nil
	}

	g.emitAudit(ctx, AuditEvent{
		Timestamp:   time.Now(),
		EventType:   auditEventPrincipalResolved,
		PrincipalID: sess.UserID,
		Success:     true,
	})
	return sess.UserID, nil
}

// CheckEligibility validates the session and then runs probe under the
// eligibility budget. It answers "may the current user perform this community
// action right now".
func (g *Guard) CheckEligibility(ctx context.Context, probe EligibilityProbe) (bool, error) {
	if g == nil {
		return false, ErrGuardNotReady
	}
	if probe == nil {
		return false, fmt.Errorf("%w: no eligibility probe provided", ErrUnexpected)
	}

	if err := g.EnsureValidSession(ctx); err != nil {
		return false, err
	}

	probeCtx, cancel := context.WithTimeout(ctx, g.config.Timeouts.Eligibility)
	defer cancel()

	eligible, err := probe(probeCtx)
	g.emitAudit(ctx, AuditEvent{
		Timestamp: time.Now(),
		EventType: auditEventEligibilityProbe,
		Success:   err == nil && eligible,
		Error:     errString(err),
	})
	if err != nil {
		return false, g.translateBackendError(err)
	}
	return eligible, nil
}

// MetricsSnapshot exposes a deep copy of the in-process metrics for exporters.
func (g *Guard) MetricsSnapshot() MetricsSnapshot {
	if g == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return g.metrics.Snapshot()
}

// AuditDropped reports audit events discarded under backpressure.
func (g *Guard) AuditDropped() uint64 {
	if g == nil {
		return 0
	}
	return g.audit.Dropped()
}

// Close shuts down the audit dispatcher after draining buffered events.
func (g *Guard) Close() {
	if g == nil {
		return
	}
	g.audit.Close()
}

// translateBackendError maps recognized backend error codes to sentinels with
// user-facing messages. Errors already produced by the guard and unrecognized
// non-backend errors pass through unchanged.
func (g *Guard) translateBackendError(err error) error {
	var be *BackendError
	if !errors.As(err, &be) {
		if errors.Is(err, context.DeadlineExceeded) {
			g.metricInc(MetricSubmissionTimeout)
			return fmt.Errorf("%w: submission is taking too long, please try again", ErrOperationTimeout)
		}
		return err
	}

	switch be.Code {
	case CodePermissionDenied:
		g.metricInc(MetricPermissionDenied)
		return fmt.Errorf("%w: please log out and back in", ErrPermissionDenied)
	case CodeStatementTimeout:
		g.metricInc(MetricSubmissionTimeout)
		return fmt.Errorf("%w: submission is taking too long, please try again", ErrOperationTimeout)
	default:
		return fmt.Errorf("%w: %s", ErrUnexpected, be.Message)
	}
}

func (g *Guard) recordSubmissionFailure(ctx context.Context, translated, original error) {
	g.metricInc(MetricSubmissionFailure)
	g.logOperationFailure(original)
	g.emitAudit(ctx, AuditEvent{
		Timestamp: time.Now(),
		EventType: auditEventSubmissionFailure,
		Error:     translated.Error(),
	})
}

// logOperationFailure classifies the failure for logging only, by message
// substring. User-facing behavior never depends on this.
func (g *Guard) logOperationFailure(err error) {
	msg := strings.ToLower(err.Error())
	event := g.logger.Warn().Err(err)
	switch {
	case strings.Contains(msg, "session"),
		strings.Contains(msg, "authentication"),
		strings.Contains(msg, "log in"):
		event.Str("category", "auth").Msg("submission failed on authentication")
	default:
		event.Str("category", "backend").Msg("submission failed")
	}
}

func (g *Guard) metricInc(id MetricID) {
	g.metrics.Inc(id)
}

func (g *Guard) emitAudit(ctx context.Context, event AuditEvent) {
	g.audit.Emit(ctx, event)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
