package dedupe

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, "sgd-test", 30*time.Minute), mr
}

func TestRedisStoreRoundTrip(t *testing.T) {
	store, _ := newRedisStore(t)
	ctx := context.Background()
	p := basePayload()

	if err := store.Record(ctx, p, "sub-1"); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	check, err := store.IsDuplicate(ctx, p, 10*time.Second)
	if err != nil {
		t.Fatalf("IsDuplicate failed: %v", err)
	}
	if !check.Duplicate {
		t.Fatal("expected duplicate inside the window")
	}
	if check.ExistingID != "sub-1" {
		t.Fatalf("expected existing id sub-1, got %s", check.ExistingID)
	}
}

func TestRedisStoreWindowExpiry(t *testing.T) {
	store, _ := newRedisStore(t)
	ctx := context.Background()
	p := basePayload()

	base := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return base }

	if err := store.Record(ctx, p, "sub-1"); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	store.now = func() time.Time { return base.Add(11 * time.Second) }
	check, err := store.IsDuplicate(ctx, p, 10*time.Second)
	if err != nil {
		t.Fatalf("IsDuplicate failed: %v", err)
	}
	if check.Duplicate {
		t.Fatal("record older than the window must not be a duplicate")
	}
}

func TestRedisStoreRetentionTTL(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()
	p := basePayload()

	if err := store.Record(ctx, p, "sub-1"); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	mr.FastForward(31 * time.Minute)

	check, err := store.IsDuplicate(ctx, p, time.Hour)
	if err != nil {
		t.Fatalf("IsDuplicate failed: %v", err)
	}
	if check.Duplicate {
		t.Fatal("redis must have evicted the record after retention")
	}
}

func TestRedisStoreCorruptRecordTreatedAsAbsent(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()
	p := basePayload()

	if err := mr.Set(store.key(Fingerprint(p)), "garbage-without-separator"); err != nil {
		t.Fatalf("seeding corrupt record failed: %v", err)
	}

	check, err := store.IsDuplicate(ctx, p, 10*time.Second)
	if err != nil {
		t.Fatalf("IsDuplicate failed: %v", err)
	}
	if check.Duplicate {
		t.Fatal("a corrupt record must not witness a duplicate")
	}
}

func TestRedisStoreUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStore(client, "sgd-test", 30*time.Minute)
	mr.Close()
	_ = client.Close()

	_, err := store.IsDuplicate(context.Background(), basePayload(), 10*time.Second)
	if err == nil {
		t.Fatal("expected store unavailable error")
	}
}
