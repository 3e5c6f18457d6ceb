package sessionguard

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/loocate/sessionguard/session"
)

// stubProvider is a controllable identity provider. A non-nil gate makes the
// corresponding call block until the gate channel is closed, which lets tests
// hold an operation in flight while concurrent callers pile up.
type stubProvider struct {
	mu sync.Mutex

	getCalls     atomic.Int64
	refreshCalls atomic.Int64

	getGate     chan struct{}
	refreshGate chan struct{}

	session    *Session
	getErr     error
	refreshed  *Session
	refreshErr error

	// getFailures and refreshFailures make the first N attempts of the
	// corresponding call fail before the provider recovers; zero means the
	// configured error applies to every call.
	getFailures     int64
	refreshFailures int64

	// refreshInstalls makes a successful refresh visible to later GetSession
	// calls, mimicking a real identity SDK.
	refreshInstalls bool
}

func (p *stubProvider) GetSession(ctx context.Context) (*Session, error) {
	call := p.getCalls.Add(1)
	if p.getGate != nil {
		select {
		case <-p.getGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.getErr != nil && (p.getFailures == 0 || call <= p.getFailures) {
		return nil, p.getErr
	}
	return p.session, nil
}

func (p *stubProvider) RefreshSession(ctx context.Context) (*Session, error) {
	call := p.refreshCalls.Add(1)
	if p.refreshGate != nil {
		select {
		case <-p.refreshGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.refreshErr != nil && (p.refreshFailures == 0 || call <= p.refreshFailures) {
		return nil, p.refreshErr
	}
	if p.refreshInstalls && p.refreshed != nil {
		p.session = p.refreshed
	}
	return p.refreshed, nil
}

func (p *stubProvider) setSession(sess *Session) {
	p.mu.Lock()
	p.session = sess
	p.mu.Unlock()
}

// stubSubmitter records requests and answers with a fixed result or error.
type stubSubmitter struct {
	mu      sync.Mutex
	calls   atomic.Int64
	last    SubmissionRequest
	result  *SubmissionResult
	err     error
	blockOn chan struct{}
}

func (s *stubSubmitter) Submit(ctx context.Context, req SubmissionRequest) (*SubmissionResult, error) {
	s.calls.Add(1)
	if s.blockOn != nil {
		select {
		case <-s.blockOn:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = req
	return s.result, s.err
}

func sessionValidFor(d time.Duration) *Session {
	return &Session{
		AccessToken:  "access-token",
		RefreshToken: "refresh-token",
		UserID:       "user-1",
		ExpiresAt:    time.Now().Add(d),
	}
}

// testConfig shrinks every delay so concurrency tests finish quickly.
func testConfig() Config {
	cfg := defaultConfig()
	cfg.Refresh.BackoffBase = time.Millisecond
	cfg.Refresh.BackoffCap = 2 * time.Millisecond
	cfg.Refresh.OuterRetryDelay = time.Millisecond
	cfg.Metrics.Enabled = true
	return cfg
}

func newTestGuard(t *testing.T, provider session.Provider, opts ...func(*Builder)) *Guard {
	t.Helper()

	b := New().
		WithConfig(testConfig()).
		WithProvider(provider)
	for _, opt := range opts {
		opt(b)
	}

	guard, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(guard.Close)
	return guard
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not reached before deadline")
}

func testPayload() Payload {
	floor := 1
	return Payload{
		Name:         "Central Park West Restroom",
		Lat:          40.782409,
		Lng:          -73.965355,
		Address:      "Central Park West & 72nd St",
		BuildingName: "",
		FloorLevel:   &floor,
	}
}
