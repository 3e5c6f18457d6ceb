package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	sessionguard "github.com/loocate/sessionguard"
	"github.com/loocate/sessionguard/dedupe"
	"github.com/loocate/sessionguard/session"
)

// loadProvider is an in-memory identity provider with a tunable failure rate,
// standing in for the hosted identity service.
type loadProvider struct {
	mu       sync.Mutex
	current  *session.Session
	failRate int
	rng      *rand.Rand
}

func (p *loadProvider) GetSession(context.Context) (*session.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failRate > 0 && p.rng.Intn(100) < p.failRate {
		return nil, fmt.Errorf("simulated identity outage")
	}
	return p.current, nil
}

func (p *loadProvider) RefreshSession(context.Context) (*session.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = &session.Session{
		AccessToken:  fmt.Sprintf("access-%d", time.Now().UnixNano()),
		RefreshToken: "refresh-token",
		UserID:       "load-user",
		ExpiresAt:    time.Now().Add(time.Hour),
	}
	return p.current, nil
}

type loadSubmitter struct {
	counter atomic.Int64
}

func (s *loadSubmitter) Submit(_ context.Context, _ sessionguard.SubmissionRequest) (*sessionguard.SubmissionResult, error) {
	id := s.counter.Add(1)
	return &sessionguard.SubmissionResult{ID: fmt.Sprintf("toilet-%d", id), Status: "pending"}, nil
}

func main() {
	var (
		concurrency = flag.Int("concurrency", 256, "number of concurrent workers")
		ops         = flag.Int("ops", 200000, "operations per phase (validate + submit)")
		payloads    = flag.Int("payloads", 50000, "distinct submission payloads")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "sgd", "dedupe key prefix")
	)
	flag.Parse()

	if *concurrency <= 0 || *ops <= 0 || *payloads <= 0 {
		fmt.Fprintln(os.Stderr, "concurrency, ops, and payloads must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  *redis.Client
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewClient(&redis.Options{Addr: addr})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewClient(&redis.Options{Addr: addr})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	provider := &loadProvider{rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
	if _, err := provider.RefreshSession(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "seeding session failed: %v\n", err)
		os.Exit(1)
	}

	guard, err := sessionguard.New().
		WithProvider(provider).
		WithSubmissionService(&loadSubmitter{}).
		WithRecentStore(dedupe.NewRedisStore(client, *prefix, 30*time.Minute)).
		WithMetricsEnabled(true).
		WithLatencyHistograms(true).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "guard build failed: %v\n", err)
		os.Exit(1)
	}
	defer guard.Close()

	validateStats := runValidatePhase(ctx, guard, *ops, *concurrency)
	submitStats := runSubmitPhase(ctx, guard, *ops, *concurrency, *payloads)

	fmt.Println("---- results ----")
	printStats("validate", validateStats)
	printStats("submit", submitStats)

	snapshot := guard.MetricsSnapshot()
	fmt.Printf("coalesced validations: %d\n", snapshot.Counters[sessionguard.MetricValidationCoalesced])
	fmt.Printf("duplicates rejected:   %d\n", snapshot.Counters[sessionguard.MetricDuplicateRejected])
	fmt.Printf("refreshes triggered:   %d\n", snapshot.Counters[sessionguard.MetricRefreshTriggered])
}

func runValidatePhase(ctx context.Context, guard *sessionguard.Guard, ops, concurrency int) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				err := guard.EnsureValidSession(ctx)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

func runSubmitPhase(ctx context.Context, guard *sessionguard.Guard, ops, concurrency, payloads int) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				idx := r.Intn(payloads)
				req := sessionguard.SubmissionRequest{
					Payload: payloadFor(idx),
					Type:    sessionguard.SubmissionNewToilet,
				}
				t0 := time.Now()
				_, err := guard.Submit(ctx, req)
				d := time.Since(t0)
				// Duplicate rejections are the dedupe layer doing its job, not
				// failures.
				if err != nil && !errors.Is(err, sessionguard.ErrDuplicateSubmission) {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}

func payloadFor(i int) sessionguard.Payload {
	floor := i % 5
	return sessionguard.Payload{
		Name:         fmt.Sprintf("Public Toilet %d", i),
		Lat:          35.0 + float64(i%1000)*0.001,
		Lng:          139.0 + float64(i%1000)*0.001,
		Address:      fmt.Sprintf("%d Example Street", i),
		BuildingName: "Load Test Plaza",
		FloorLevel:   &floor,
	}
}
