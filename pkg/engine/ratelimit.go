package engine

import (
	"context"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"chatcart/pkg/store"
)

const rateKeyPrefix = "rate:"

// SpacingLimiter enforces a minimum interval between automated
// responses to one conversation key.
//
// A grant claims the window with a single atomic SetNX whose TTL is
// the spacing itself: while the key exists the window is closed. The
// state lives in the durable KV so the spacing survives restarts, and
// concurrent callers (the queue, deferred notices, broadcasts) cannot
// both be granted for one key.
type SpacingLimiter struct {
	kv      store.KV
	spacing time.Duration
	now     func() time.Time
}

// NewSpacingLimiter builds a limiter with the given minimum spacing.
func NewSpacingLimiter(kv store.KV, spacing time.Duration) *SpacingLimiter {
	return &SpacingLimiter{kv: kv, spacing: spacing, now: time.Now}
}

// SetClock overrides the time source. Test helper.
func (l *SpacingLimiter) SetClock(now func() time.Time) {
	l.now = now
}

// Allow reports whether a response to the key may be sent now, and on
// success atomically claims the window for the next spacing interval.
func (l *SpacingLimiter) Allow(ctx context.Context, conversationKey string) (bool, error) {
	if l.spacing <= 0 {
		return true, nil
	}

	sentAt := strconv.FormatInt(l.now().UnixNano(), 10)
	return l.kv.SetNX(ctx, rateKeyPrefix+conversationKey, sentAt, l.spacing)
}

// Spacing returns the configured minimum interval.
func (l *SpacingLimiter) Spacing() time.Duration {
	return l.spacing
}

// BurstLimiter is the token-bucket variant used on bulk send paths
// (broadcasts), where short bursts up to a cap are fine but sustained
// throughput must stay bounded.
type BurstLimiter struct {
	limit rate.Limit
	burst int

	mu      sync.Mutex
	buckets map[string]*rate.Limiter
}

// NewBurstLimiter allows sustained perSecond sends with bursts up to cap.
func NewBurstLimiter(perSecond float64, cap int) *BurstLimiter {
	return &BurstLimiter{
		limit:   rate.Limit(perSecond),
		burst:   cap,
		buckets: make(map[string]*rate.Limiter),
	}
}

// Allow consumes one token for the key if available.
func (l *BurstLimiter) Allow(key string) bool {
	return l.bucket(key).Allow()
}

// Wait blocks until a token is available for the key or the context ends.
func (l *BurstLimiter) Wait(ctx context.Context, key string) error {
	return l.bucket(key).Wait(ctx)
}

func (l *BurstLimiter) bucket(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	bucket, ok := l.buckets[key]
	if !ok {
		bucket = rate.NewLimiter(l.limit, l.burst)
		l.buckets[key] = bucket
	}

	return bucket
}
