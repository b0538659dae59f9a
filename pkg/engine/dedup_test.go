package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"chatcart/pkg/store"
)

func TestDeduplicatorFirstAndRepeat(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dedup := NewDeduplicator(store.NewMemoryKV(), time.Hour, 16)

	seen, err := dedup.SeenBefore(ctx, "telegram:1")
	if err != nil || seen {
		t.Fatalf("first delivery = (%v, %v), want unseen", seen, err)
	}

	seen, err = dedup.SeenBefore(ctx, "telegram:1")
	if err != nil || !seen {
		t.Fatalf("redelivery = (%v, %v), want seen", seen, err)
	}

	seen, err = dedup.SeenBefore(ctx, "telegram:2")
	if err != nil || seen {
		t.Fatalf("distinct id = (%v, %v), want unseen", seen, err)
	}
}

func TestDeduplicatorConcurrentSameID(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dedup := NewDeduplicator(store.NewMemoryKV(), time.Hour, 16)

	const workers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		unseenHit int
	)

	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()

			seen, err := dedup.SeenBefore(ctx, "telegram:race")
			if err != nil {
				t.Errorf("SeenBefore error: %v", err)
				return
			}
			if !seen {
				mu.Lock()
				unseenHit++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if unseenHit != 1 {
		t.Fatalf("unseen verdicts = %d, want exactly 1", unseenHit)
	}
}

func TestDeduplicatorSurvivesCacheEviction(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dedup := NewDeduplicator(store.NewMemoryKV(), time.Hour, 4)

	ids := []string{"e1", "e2", "e3", "e4", "e5", "e6"}
	for _, id := range ids {
		if seen, _ := dedup.SeenBefore(ctx, id); seen {
			t.Fatalf("id %s reported seen on first delivery", id)
		}
	}

	// e1 and e2 have been evicted from the advisory cache, but the
	// durable record still answers for them.
	for _, id := range ids {
		seen, err := dedup.SeenBefore(ctx, id)
		if err != nil || !seen {
			t.Fatalf("id %s = (%v, %v), want seen after eviction", id, seen, err)
		}
	}
}

func TestDeduplicatorTTLReopensID(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	kv := store.NewMemoryKV()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := base
	kv.SetClock(func() time.Time { return now })

	dedup := NewDeduplicator(kv, time.Minute, 2)

	if seen, _ := dedup.SeenBefore(ctx, "e1"); seen {
		t.Fatal("expected unseen first delivery")
	}

	// Push e1 out of the advisory cache so the KV record decides.
	_, _ = dedup.SeenBefore(ctx, "e2")
	_, _ = dedup.SeenBefore(ctx, "e3")

	now = base.Add(2 * time.Minute)
	if seen, _ := dedup.SeenBefore(ctx, "e1"); seen {
		t.Fatal("expected id reopened after record ttl")
	}
}

type failingKV struct {
	store.KV
}

func (failingKV) SetNX(context.Context, string, string, time.Duration) (bool, error) {
	return false, errors.New("kv unavailable")
}

func TestDeduplicatorPropagatesStoreError(t *testing.T) {
	t.Parallel()

	dedup := NewDeduplicator(failingKV{}, time.Hour, 16)
	if _, err := dedup.SeenBefore(context.Background(), "e1"); err == nil {
		t.Fatal("expected store error to propagate")
	}
}
