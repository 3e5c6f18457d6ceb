package dedupe

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStoreDetectsDuplicateInWindow(t *testing.T) {
	store := NewMemoryStore(DefaultRetention)
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
	if check.Age < 0 || check.Age >= time.Second {
		t.Fatalf("expected sub-second age, got %s", check.Age)
	}
}

func TestMemoryStoreWindowExpiry(t *testing.T) {
	store := NewMemoryStore(DefaultRetention)
	ctx := context.Background()
	p := basePayload()

	base := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return base }

	if err := store.Record(ctx, p, "sub-1"); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	store.now = func() time.Time { return base.Add(9 * time.Second) }
	check, _ := store.IsDuplicate(ctx, p, 10*time.Second)
	if !check.Duplicate {
		t.Fatal("9s old record must still be a duplicate in a 10s window")
	}

	store.now = func() time.Time { return base.Add(10 * time.Second) }
	check, _ = store.IsDuplicate(ctx, p, 10*time.Second)
	if check.Duplicate {
		t.Fatal("record exactly at the window boundary must not be a duplicate")
	}

	store.now = func() time.Time { return base.Add(11 * time.Second) }
	check, _ = store.IsDuplicate(ctx, p, 10*time.Second)
	if check.Duplicate {
		t.Fatal("11s old record must not be a duplicate in a 10s window")
	}
}

func TestMemoryStoreUnknownPayloadNotDuplicate(t *testing.T) {
	store := NewMemoryStore(DefaultRetention)

	check, err := store.IsDuplicate(context.Background(), basePayload(), 10*time.Second)
	if err != nil {
		t.Fatalf("IsDuplicate failed: %v", err)
	}
	if check.Duplicate {
		t.Fatal("unknown payload must not be a duplicate")
	}
}

func TestMemoryStoreRecordSweepsStaleEntries(t *testing.T) {
	store := NewMemoryStore(30 * time.Minute)
	ctx := context.Background()

	base := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	old := basePayload()
	old.Name = "old"
	fresh := basePayload()
	fresh.Name = "fresh"
	next := basePayload()
	next.Name = "next"

	store.now = func() time.Time { return base }
	_ = store.Record(ctx, old, "sub-old")

	store.now = func() time.Time { return base.Add(2 * time.Minute) }
	_ = store.Record(ctx, fresh, "sub-fresh")

	// 31 minutes after "old" was recorded the next Record sweeps it; "fresh"
	// at 29 minutes stays.
	store.now = func() time.Time { return base.Add(31 * time.Minute) }
	_ = store.Record(ctx, next, "sub-next")

	if store.Len() != 2 {
		t.Fatalf("expected 2 retained records after sweep, got %d", store.Len())
	}

	check, _ := store.IsDuplicate(ctx, fresh, time.Hour)
	if !check.Duplicate {
		t.Fatal("29min old record inside retention must survive the sweep")
	}
}

func TestMemoryStoreRecordUpserts(t *testing.T) {
	store := NewMemoryStore(DefaultRetention)
	ctx := context.Background()
	p := basePayload()

	_ = store.Record(ctx, p, "sub-1")
	_ = store.Record(ctx, p, "sub-2")

	check, _ := store.IsDuplicate(ctx, p, 10*time.Second)
	if check.ExistingID != "sub-2" {
		t.Fatalf("expected upserted id sub-2, got %s", check.ExistingID)
	}
	if store.Len() != 1 {
		t.Fatalf("upsert must not grow the map, got %d entries", store.Len())
	}
}
