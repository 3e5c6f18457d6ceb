package dedupe

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "sgd"

// ErrStoreUnavailable is an exported constant used by the session guard.
var ErrStoreUnavailable = errors.New("recent submission store unavailable")

var errRecordCorrupt = errors.New("recent submission record corrupt")

// RedisStore defines a public type used by sessionguard APIs.
//
// RedisStore shares the dedupe window across replicas by keeping one key per
// fingerprint with a TTL equal to the retention window; Redis handles
// eviction, so there is no inline sweep.
type RedisStore struct {
	redis     *redis.Client
	prefix    string
	retention time.Duration
	now       func() time.Time
}

// NewRedisStore creates a Redis-backed [Store]. An empty prefix falls back to
// the package default; retention <= 0 falls back to [DefaultRetention].
func NewRedisStore(client *redis.Client, prefix string, retention time.Duration) *RedisStore {
	if prefix == "" {
		prefix = redisKeyPrefix
	}
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &RedisStore{
		redis:     client,
		prefix:    prefix,
		retention: retention,
		now:       time.Now,
	}
}

func (s *RedisStore) key(fingerprint string) string {
	return s.prefix + ":" + fingerprint
}

// IsDuplicate reports whether an identical payload was recorded within the
// window by any replica sharing this store.
func (s *RedisStore) IsDuplicate(ctx context.Context, p Payload, window time.Duration) (Check, error) {
	if window <= 0 {
		window = DefaultWindow
	}

	raw, err := s.redis.Get(ctx, s.key(Fingerprint(p))).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Check{}, nil
		}
		return Check{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	submissionID, recordedAt, err := decodeRecord(raw)
	if err != nil {
		// A corrupt record cannot witness a duplicate; treat it as absent.
		return Check{}, nil
	}

	age := s.now().Sub(recordedAt)
	if age >= window {
		return Check{}, nil
	}
	return Check{Duplicate: true, ExistingID: submissionID, Age: age}, nil
}

// Record upserts the payload's fingerprint with the new submission id and a
// fresh retention TTL.
func (s *RedisStore) Record(ctx context.Context, p Payload, submissionID string) error {
	value := encodeRecord(submissionID, s.now())
	if err := s.redis.Set(ctx, s.key(Fingerprint(p)), value, s.retention).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func encodeRecord(submissionID string, recordedAt time.Time) string {
	return submissionID + "|" + strconv.FormatInt(recordedAt.UnixMilli(), 10)
}

func decodeRecord(raw string) (string, time.Time, error) {
	idx := strings.LastIndexByte(raw, '|')
	if idx < 0 {
		return "", time.Time{}, errRecordCorrupt
	}
	ms, err := strconv.ParseInt(raw[idx+1:], 10, 64)
	if err != nil {
		return "", time.Time{}, errRecordCorrupt
	}
	return raw[:idx], time.UnixMilli(ms), nil
}
