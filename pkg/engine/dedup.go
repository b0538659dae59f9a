package engine

import (
	"context"
	"sync"
	"time"

	"chatcart/pkg/store"
)

const dedupKeyPrefix = "dedup:"

// Deduplicator tracks event identifiers already processed.
//
// The durable KV is the source of truth: SetNX with TTL is the atomic
// check-and-mark, so two concurrent deliveries of the same event id
// cannot both observe "not seen". The in-process cache in front is a
// latency shortcut only; it may miss (after restart, across replicas)
// but never answers "seen" for an id the KV has not marked.
type Deduplicator struct {
	kv  store.KV
	ttl time.Duration

	mu    sync.Mutex
	cap   int
	seen  map[string]struct{}
	order []string
}

// NewDeduplicator builds a deduplicator with the given record TTL and
// in-process cache capacity.
func NewDeduplicator(kv store.KV, ttl time.Duration, cacheSize int) *Deduplicator {
	if cacheSize < 2 {
		cacheSize = 2
	}

	return &Deduplicator{
		kv:   kv,
		ttl:  ttl,
		cap:  cacheSize,
		seen: make(map[string]struct{}, cacheSize),
	}
}

// SeenBefore reports whether the event id was already processed, and
// marks it as seen if it was not.
func (d *Deduplicator) SeenBefore(ctx context.Context, eventID string) (bool, error) {
	d.mu.Lock()
	_, cached := d.seen[eventID]
	d.mu.Unlock()
	if cached {
		return true, nil
	}

	first, err := d.kv.SetNX(ctx, dedupKeyPrefix+eventID, "1", d.ttl)
	if err != nil {
		return false, err
	}

	d.remember(eventID)
	return !first, nil
}

// remember adds an id to the advisory cache, evicting the oldest half
// when the cache is full.
func (d *Deduplicator) remember(eventID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[eventID]; ok {
		return
	}

	if len(d.order) >= d.cap {
		half := len(d.order) / 2
		for _, old := range d.order[:half] {
			delete(d.seen, old)
		}
		d.order = append(d.order[:0], d.order[half:]...)
	}

	d.seen[eventID] = struct{}{}
	d.order = append(d.order, eventID)
}
