package sessionguard

import (
	"errors"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/loocate/sessionguard/dedupe"
	"github.com/loocate/sessionguard/session"
)

// Builder defines a public type used by sessionguard APIs.
//
// Builder is the composition root: it wires the identity provider, the
// submission endpoint, and the recent-submission store into exactly one
// [Guard]. Construction is allocation-only until [Builder.Build].
type Builder struct {
	config Config

	provider  session.Provider
	submitter SubmissionService
	recent    RecentSubmissionStore
	redis     *redis.Client

	auditSink AuditSink
	logger    zerolog.Logger
	hasLogger bool

	built bool
}

// New creates a Builder preloaded with the default configuration.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the builder's configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithProvider wires the external identity/session service.
func (b *Builder) WithProvider(p session.Provider) *Builder {
	b.provider = p
	return b
}

// WithSubmissionService wires the external submission endpoint used by
// [Guard.Submit]. Callers that only use [Guard.Run] may skip it.
func (b *Builder) WithSubmissionService(s SubmissionService) *Builder {
	b.submitter = s
	return b
}

// WithRecentStore replaces the default in-memory recent-submission store.
func (b *Builder) WithRecentStore(store RecentSubmissionStore) *Builder {
	b.recent = store
	return b
}

// WithRedis selects a Redis-backed recent-submission store so the dedupe
// window is shared across replicas. Ignored when WithRecentStore was called.
func (b *Builder) WithRedis(client *redis.Client) *Builder {
	b.redis = client
	return b
}

// WithAuditSink wires the audit sink; audit must also be enabled in config.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger wires a zerolog logger. The default discards everything.
func (b *Builder) WithLogger(logger zerolog.Logger) *Builder {
	b.logger = logger
	b.hasLogger = true
	return b
}

// WithMetricsEnabled toggles the in-process metrics counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the EnsureValidSession latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build describes the build operation and its observable behavior.
//
// Build may return an error when input validation or configuration checks fail.
// Build can be called at most once per Builder.
func (b *Builder) Build() (*Guard, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.provider == nil {
		return nil, errors.New("session provider required")
	}

	recent := b.recent
	if recent == nil {
		if b.redis != nil {
			recent = dedupe.NewRedisStore(b.redis, cfg.Dedupe.RedisPrefix, cfg.Dedupe.Retention)
		} else {
			recent = dedupe.NewMemoryStore(cfg.Dedupe.Retention)
		}
	}

	logger := b.logger
	if !b.hasLogger {
		logger = zerolog.Nop()
	}

	guard := &Guard{
		config:    cfg,
		logger:    logger,
		store:     session.NewStore(b.provider),
		submitter: b.submitter,
		recent:    recent,
		ops:       newOperationRegistry(),
		audit:     newAuditDispatcher(cfg.Audit, b.auditSink),
		metrics:   NewMetrics(cfg.Metrics),
	}

	b.built = true

	return guard, nil
}
