package engine

import (
	"context"
	"sync"
	"time"

	"github.com/storyloom/storyloom/internal/core"
)

// BucketConfig sets the token bucket parameters for one tier.
type BucketConfig struct {
	Capacity     float64 `mapstructure:"capacity"`
	RefillPerSec float64 `mapstructure:"refill_per_sec"`
}

// DefaultBuckets provides conservative per-tier defaults. The exact values
// are configuration; the ordering Free < Paid <= Native is the contract.
var DefaultBuckets = map[core.Tier]BucketConfig{
	core.TierFree:   {Capacity: 2, RefillPerSec: 1.0 / 60},
	core.TierPaid:   {Capacity: 10, RefillPerSec: 0.5},
	core.TierNative: {Capacity: 20, RefillPerSec: 1},
}

// maxConsecutiveFaults is the self-disable threshold: after this many
// consecutive internal faults a tier's bucket fails open.
const maxConsecutiveFaults = 5

// Limiter owns one token bucket per tier, created lazily. It is built once
// at process start and passed by reference into the router and orchestrator
// so tests can use fresh, isolated instances.
type Limiter struct {
	Configs map[core.Tier]BucketConfig
	Clock   func() time.Time
	Sleep   func(ctx context.Context, d time.Duration) error

	mu      sync.Mutex
	buckets map[core.Tier]*bucket
}

type bucket struct {
	mu         sync.Mutex
	capacity   float64
	refill     float64
	tokens     float64
	lastRefill time.Time
	faults     int
	disabled   bool
}

// NewLimiter returns a limiter using the provided per-tier configuration.
// Missing tiers fall back to DefaultBuckets.
func NewLimiter(configs map[core.Tier]BucketConfig) *Limiter {
	return &Limiter{Configs: configs}
}

// Acquire takes one token from the tier's bucket, suspending the caller
// until a token is available. Internal faults are absorbed: they count
// toward the tier's self-disable threshold and the call proceeds as if a
// token had been granted, so a broken limiter never blocks real traffic.
func (l *Limiter) Acquire(ctx context.Context, tier core.Tier) error {
	if l == nil {
		return nil
	}

	b := l.bucketFor(tier)

	for {
		b.mu.Lock()
		if b.disabled {
			b.mu.Unlock()
			return nil
		}

		if b.capacity <= 0 || b.refill <= 0 {
			// Misconfigured bucket: count the fault, fail open for this call.
			b.faults++
			if b.faults >= maxConsecutiveFaults {
				b.disabled = true
			}
			b.mu.Unlock()
			return nil
		}

		now := l.now()
		b.refillTokens(now)

		if b.tokens >= 1 {
			b.tokens--
			b.faults = 0
			b.mu.Unlock()
			return nil
		}

		wait := time.Duration((1 - b.tokens) / b.refill * float64(time.Second))
		b.mu.Unlock()

		if err := l.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// Disabled reports whether the tier's bucket has self-disabled.
func (l *Limiter) Disabled(tier core.Tier) bool {
	if l == nil {
		return false
	}
	b := l.bucketFor(tier)
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.disabled
}

// refillTokens tops the bucket up for the elapsed interval.
// Callers must hold b.mu. Invariant: 0 <= tokens <= capacity.
func (b *bucket) refillTokens(now time.Time) {
	if b.lastRefill.IsZero() {
		b.lastRefill = now
		return
	}

	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}

	b.tokens += elapsed * b.refill
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}
	b.lastRefill = now
}

func (l *Limiter) bucketFor(tier core.Tier) *bucket {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.buckets == nil {
		l.buckets = map[core.Tier]*bucket{}
	}
	if b, ok := l.buckets[tier]; ok {
		return b
	}

	cfg, ok := l.Configs[tier]
	if !ok {
		cfg = DefaultBuckets[tier]
	}

	b := &bucket{
		capacity: cfg.Capacity,
		refill:   cfg.RefillPerSec,
		tokens:   cfg.Capacity,
	}
	l.buckets[tier] = b
	return b
}

func (l *Limiter) now() time.Time {
	if l != nil && l.Clock != nil {
		return l.Clock()
	}
	return time.Now()
}

func (l *Limiter) sleep(ctx context.Context, d time.Duration) error {
	if l != nil && l.Sleep != nil {
		return l.Sleep(ctx, d)
	}
	return sleepContext(ctx, d)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// tokenCount exposes the current token level for tests.
func (l *Limiter) tokenCount(tier core.Tier) float64 {
	b := l.bucketFor(tier)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refillTokens(l.now())
	return b.tokens
}
