package sessionguard

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
)

// refresh attempts to renew the shared session through the identity provider,
// retrying with capped exponential backoff. It returns true when a usable
// session is in place afterwards.
//
// Only one refresh runs per process. A caller that loses the race returns
// true immediately and trusts the winner; the next validity check catches the
// case where the winner ultimately failed.
func (g *Guard) refresh(ctx context.Context) bool {
	if !g.store.TryBeginRefresh() {
		g.metricInc(MetricRefreshCoalesced)
		g.emitAudit(ctx, AuditEvent{
			Timestamp: time.Now(),
			EventType: auditEventRefreshCoalesced,
			Success:   true,
		})
		return true
	}
	defer g.store.EndRefresh()

	g.metricInc(MetricRefreshTriggered)

	backoff, err := retry.NewExponential(g.config.Refresh.BackoffBase)
	if err != nil {
		// Config.Validate guarantees a positive base; keep the refresh alive
		// anyway with a constant delay.
		backoff = retry.BackoffFunc(func() (time.Duration, bool) {
			return time.Second, false
		})
	}
	backoff = retry.WithCappedDuration(g.config.Refresh.BackoffCap, backoff)
	backoff = retry.WithMaxRetries(g.config.Refresh.MaxRetries, backoff)

	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		sess, err := g.store.RefreshOnce(ctx)
		if err != nil {
			return retry.RetryableError(err)
		}
		if sess == nil {
			return retry.RetryableError(fmt.Errorf("provider returned no session"))
		}
		return nil
	})
	if err != nil {
		g.metricInc(MetricRefreshFailure)
		g.logger.Warn().Err(err).Msg("session refresh failed")
		g.emitAudit(ctx, AuditEvent{
			Timestamp: time.Now(),
			EventType: auditEventRefreshFailure,
			Error:     err.Error(),
		})
		return false
	}

	g.metricInc(MetricRefreshSuccess)
	g.logger.Debug().Msg("session refreshed")
	g.emitAudit(ctx, AuditEvent{
		Timestamp: time.Now(),
		EventType: auditEventRefreshSuccess,
		Success:   true,
	})
	return true
}
