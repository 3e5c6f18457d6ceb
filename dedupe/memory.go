package dedupe

import (
	"context"
	"sync"
	"time"
)

// DefaultRetention is how long a recorded submission is remembered before the
// inline sweep drops it.
const DefaultRetention = 30 * time.Minute

// DefaultWindow is the duplicate-rejection window applied by callers that do
// not choose their own.
const DefaultWindow = 10 * time.Second

type record struct {
	timestamp    time.Time
	submissionID string
}

// MemoryStore defines a public type used by sessionguard APIs.
//
// MemoryStore is the in-process [Store]: a TTL map mutated only inside
// non-blocking critical sections, swept synchronously on every Record call.
type MemoryStore struct {
	mu        sync.Mutex
	entries   map[string]record
	retention time.Duration
	now       func() time.Time
}

// NewMemoryStore creates a memory store that retains records for the given
// duration; retention <= 0 falls back to [DefaultRetention].
func NewMemoryStore(retention time.Duration) *MemoryStore {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &MemoryStore{
		entries:   make(map[string]record),
		retention: retention,
		now:       time.Now,
	}
}

// IsDuplicate reports whether an identical payload was recorded within the
// window. window <= 0 falls back to [DefaultWindow].
func (s *MemoryStore) IsDuplicate(_ context.Context, p Payload, window time.Duration) (Check, error) {
	if window <= 0 {
		window = DefaultWindow
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.entries[Fingerprint(p)]
	if !ok {
		return Check{}, nil
	}
	age := s.now().Sub(rec.timestamp)
	if age >= window {
		return Check{}, nil
	}
	return Check{Duplicate: true, ExistingID: rec.submissionID, Age: age}, nil
}

// Record upserts the payload's fingerprint with the new submission id, then
// sweeps stale entries inline.
func (s *MemoryStore) Record(_ context.Context, p Payload, submissionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[Fingerprint(p)] = record{
		timestamp:    s.now(),
		submissionID: submissionID,
	}
	s.evictStaleLocked()
	return nil
}

// EvictStale removes every record older than the retention window. Record
// already runs this sweep; EvictStale exists for callers that want to reclaim
// memory during idle periods.
func (s *MemoryStore) EvictStale() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictStaleLocked()
}

func (s *MemoryStore) evictStaleLocked() {
	cutoff := s.now().Add(-s.retention)
	for fp, rec := range s.entries {
		if rec.timestamp.Before(cutoff) {
			delete(s.entries, fp)
		}
	}
}

// Len reports how many records are currently retained.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
