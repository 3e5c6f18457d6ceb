package sessionguard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/loocate/sessionguard/validity"
)

// validationOp is one in-flight EnsureValidSession call. Joiners wait on done
// and then read err; err must be set before done is closed.
type validationOp struct {
	id   string
	done chan struct{}
	err  error
}

// operationRegistry tracks pending validation operations in insertion order so
// concurrent callers can coalesce onto the oldest one.
type operationRegistry struct {
	mu    sync.Mutex
	order []string
	ops   map[string]*validationOp
}

func newOperationRegistry() *operationRegistry {
	return &operationRegistry{
		ops: make(map[string]*validationOp),
	}
}

// joinOrRegister returns the oldest pending op to wait on, or registers a new
// op owned by the caller when none is pending.
func (r *operationRegistry) joinOrRegister() (op *validationOp, owner bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.order) > 0 {
		return r.ops[r.order[0]], false
	}

	op = &validationOp{
		id:   uuid.NewString(),
		done: make(chan struct{}),
	}
	r.order = append(r.order, op.id)
	r.ops[op.id] = op
	return op, true
}

func (r *operationRegistry) deregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.ops, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

func (r *operationRegistry) pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ops)
}

// EnsureValidSession describes the ensurevalidsession operation and its
// observable behavior.
//
// EnsureValidSession checks the shared session, refreshes it when it is
// expired or close to expiring, and re-checks afterwards. Concurrent callers
// coalesce onto the first pending check: joiners wait for it and share its
// success. A joiner whose leader failed falls through to its own full check
// rather than propagating the leader's error, so a transient failure is not
// fanned out.
//
// EnsureValidSession may return an error when input validation, dependency
// calls, or security checks fail.
func (g *Guard) EnsureValidSession(ctx context.Context) (err error) {
	if g == nil {
		return ErrGuardNotReady
	}

	start := time.Now()
	defer func() {
		g.metrics.Observe(MetricEnsureSessionLatency, time.Since(start))
	}()

	op, owner := g.ops.joinOrRegister()
	if !owner {
		g.metricInc(MetricValidationCoalesced)
		select {
		case <-op.done:
			if op.err == nil {
				return nil
			}
			// Leader failed; run our own check instead of echoing its error.
		case <-ctx.Done():
			return ctx.Err()
		}
		return g.validateSession(ctx)
	}

	defer func() {
		op.err = err
		close(op.done)
		g.ops.deregister(op.id)
	}()

	return g.validateSession(ctx)
}

// validateSession is one full check-refresh-recheck pass.
func (g *Guard) validateSession(ctx context.Context) error {
	status := g.CheckSession(ctx)

	if status.Detail == validity.StatusNoSession {
		g.metricInc(MetricValidationFailure)
		return fmt.Errorf("%w: no active session found, please log in", ErrAuthRequired)
	}

	if !g.needsRefresh(status) {
		g.metricInc(MetricSessionValid)
		return nil
	}

	if err := g.refreshWithRetry(ctx); err != nil {
		g.metricInc(MetricValidationFailure)
		g.emitAudit(ctx, AuditEvent{
			Timestamp: time.Now(),
			EventType: auditEventValidationFailure,
			Error:     err.Error(),
		})
		return err
	}

	status = g.CheckSession(ctx)
	if status.Valid && !status.NeedsForceRefresh {
		g.metricInc(MetricSessionValid)
		return nil
	}

	g.metricInc(MetricValidationFailure)
	err := statusError(status)
	g.emitAudit(ctx, AuditEvent{
		Timestamp: time.Now(),
		EventType: auditEventValidationFailure,
		Error:     err.Error(),
		Metadata:  map[string]string{"detail": string(status.Detail)},
	})
	return err
}

// needsRefresh decides whether a status demands a refresh before the session
// can be trusted for a write.
func (g *Guard) needsRefresh(status SessionStatus) bool {
	if !status.Valid || status.NeedsForceRefresh {
		return true
	}
	switch status.Detail {
	case validity.StatusSuspiciousFuture, validity.StatusExpiredPast:
		return true
	}
	return status.ExpiryKnown && status.ExpiresIn < g.config.Validator.ExpiringSoonWindow
}

// refreshWithRetry runs one refresh under the refresh budget, then one outer
// retry after a fixed pause when the first round failed outright.
func (g *Guard) refreshWithRetry(ctx context.Context) error {
	if g.runRefresh(ctx) {
		return nil
	}

	delay := g.config.Refresh.OuterRetryDelay
	if delay > 0 {
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w: %v", ErrSessionRefreshTimedOut, ctx.Err())
		}
	}

	if g.runRefresh(ctx) {
		return nil
	}

	if ctx.Err() != nil {
		return fmt.Errorf("%w: session could not be renewed in time, please try again", ErrSessionRefreshTimedOut)
	}
	return fmt.Errorf("%w: your session could not be renewed, please log in again", ErrSessionRefreshFailed)
}

func (g *Guard) runRefresh(ctx context.Context) bool {
	refreshCtx, cancel := context.WithTimeout(ctx, g.config.Timeouts.Refresh)
	defer cancel()
	return g.refresh(refreshCtx)
}

// statusError maps a terminal post-refresh status to the sentinel and message
// shown to the user.
func statusError(status SessionStatus) error {
	switch status.Detail {
	case validity.StatusNoSession:
		return fmt.Errorf("%w: no active session found, please log in", ErrAuthRequired)
	case validity.StatusExpiredPast, validity.StatusJustExpired:
		return fmt.Errorf("%w: your session has expired, please log in again", ErrSessionExpired)
	case validity.StatusInvalidDate, validity.StatusMissingExpiration:
		return fmt.Errorf("%w: invalid session date, please log in again", ErrSessionExpired)
	case validity.StatusNetworkError:
		return fmt.Errorf("%w: network error while checking your session", ErrUnexpected)
	}
	if status.ExpiryKnown && status.ExpiresIn < 0 {
		return fmt.Errorf("%w: your session has expired, please log in again", ErrSessionExpired)
	}
	return fmt.Errorf("%w: authentication check failed", ErrUnexpected)
}
