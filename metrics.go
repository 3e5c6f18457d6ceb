package sessionguard

import (
	"sync/atomic"
	"time"
)

// MetricID defines a public type used by sessionguard APIs.
//
// MetricID identifies a specific counter or histogram bucket in the
// in-process metrics system.
type MetricID uint16

const (
	// MetricSessionCheck is an exported constant or variable used by the session guard.
	MetricSessionCheck MetricID = iota
	// MetricSessionCheckFailure is an exported constant or variable used by the session guard.
	MetricSessionCheckFailure
	// MetricSessionValid is an exported constant or variable used by the session guard.
	MetricSessionValid
	// MetricValidationCoalesced is an exported constant or variable used by the session guard.
	MetricValidationCoalesced
	// MetricValidationFailure is an exported constant or variable used by the session guard.
	MetricValidationFailure
	// MetricRefreshTriggered is an exported constant or variable used by the session guard.
	MetricRefreshTriggered
	// MetricRefreshSuccess is an exported constant or variable used by the session guard.
	MetricRefreshSuccess
	// MetricRefreshFailure is an exported constant or variable used by the session guard.
	MetricRefreshFailure
	// MetricRefreshCoalesced is an exported constant or variable used by the session guard.
	MetricRefreshCoalesced
	// MetricDuplicateRejected is an exported constant or variable used by the session guard.
	MetricDuplicateRejected
	// MetricSubmissionSuccess is an exported constant or variable used by the session guard.
	MetricSubmissionSuccess
	// MetricSubmissionFailure is an exported constant or variable used by the session guard.
	MetricSubmissionFailure
	// MetricPermissionDenied is an exported constant or variable used by the session guard.
	MetricPermissionDenied
	// MetricSubmissionTimeout is an exported constant or variable used by the session guard.
	MetricSubmissionTimeout
	// MetricEnsureSessionLatency is an exported constant or variable used by the session guard.
	MetricEnsureSessionLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics defines a public type used by sessionguard APIs.
//
// Metrics holds cache-line-padded atomic counters and an optional latency
// histogram for EnsureValidSession. The write path is allocation-free.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot defines a public type used by sessionguard APIs.
//
// MetricsSnapshot is a point-in-time deep copy of all metrics.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics creates a new [Metrics] instance configured by the given
// [MetricsConfig]. When Enabled is false, all operations are no-ops.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether counters are recording.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// LatencyEnabled reports whether the latency histogram is recording.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc increments the counter identified by id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records one latency sample into the histogram identified by id.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricEnsureSessionLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value reads one counter.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot returns a point-in-time deep copy of all metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricEnsureSessionLatency].buckets[i])
		}
		s.Histograms[MetricEnsureSessionLatency] = buckets
	}

	return s
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}
