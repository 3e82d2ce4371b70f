package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/storyloom/storyloom/internal/core"
)

// fakeTime drives the limiter clock; Sleep advances it instead of blocking.
type fakeTime struct {
	now    time.Time
	sleeps []time.Duration
}

func newFakeTime() *fakeTime {
	return &fakeTime{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (f *fakeTime) Now() time.Time { return f.now }

func (f *fakeTime) Sleep(_ context.Context, d time.Duration) error {
	f.sleeps = append(f.sleeps, d)
	f.now = f.now.Add(d)
	return nil
}

func TestAcquireDrainsThenWaits(t *testing.T) {
	ft := newFakeTime()
	limiter := NewLimiter(map[core.Tier]BucketConfig{
		core.TierFree: {Capacity: 2, RefillPerSec: 1.0 / 60},
	})
	limiter.Clock = ft.Now
	limiter.Sleep = ft.Sleep

	// Two burst tokens go through without waiting.
	require.NoError(t, limiter.Acquire(context.Background(), core.TierFree))
	require.NoError(t, limiter.Acquire(context.Background(), core.TierFree))
	require.Empty(t, ft.sleeps)

	// The third call waits a full refill interval.
	require.NoError(t, limiter.Acquire(context.Background(), core.TierFree))
	require.Len(t, ft.sleeps, 1)
	require.InDelta(t, time.Minute.Seconds(), ft.sleeps[0].Seconds(), 0.01)
}

func TestAcquireNeverExceedsCapacity(t *testing.T) {
	ft := newFakeTime()
	limiter := NewLimiter(map[core.Tier]BucketConfig{
		core.TierPaid: {Capacity: 3, RefillPerSec: 10},
	})
	limiter.Clock = ft.Now
	limiter.Sleep = ft.Sleep

	require.NoError(t, limiter.Acquire(context.Background(), core.TierPaid))

	// A long idle period refills at most to capacity, not beyond.
	ft.now = ft.now.Add(time.Hour)
	require.LessOrEqual(t, limiter.tokenCount(core.TierPaid), 3.0)
}

func TestAcquireRespectsContext(t *testing.T) {
	limiter := NewLimiter(map[core.Tier]BucketConfig{
		core.TierFree: {Capacity: 1, RefillPerSec: 1.0 / 3600},
	})

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, limiter.Acquire(ctx, core.TierFree))

	cancel()
	err := limiter.Acquire(ctx, core.TierFree)
	require.ErrorIs(t, err, context.Canceled)
}

func TestMisconfiguredBucketFailsOpen(t *testing.T) {
	limiter := NewLimiter(map[core.Tier]BucketConfig{
		core.TierPaid: {Capacity: 0, RefillPerSec: 0},
	})

	// Every call proceeds despite the broken bucket.
	for i := 0; i < 4; i++ {
		require.NoError(t, limiter.Acquire(context.Background(), core.TierPaid))
		require.False(t, limiter.Disabled(core.TierPaid))
	}

	// The fifth consecutive fault disables the bucket for good.
	require.NoError(t, limiter.Acquire(context.Background(), core.TierPaid))
	require.True(t, limiter.Disabled(core.TierPaid))

	// Disabled buckets are a no-op.
	require.NoError(t, limiter.Acquire(context.Background(), core.TierPaid))
}

func TestTiersHaveIndependentBuckets(t *testing.T) {
	ft := newFakeTime()
	limiter := NewLimiter(map[core.Tier]BucketConfig{
		core.TierFree: {Capacity: 1, RefillPerSec: 1.0 / 60},
		core.TierPaid: {Capacity: 5, RefillPerSec: 1},
	})
	limiter.Clock = ft.Now
	limiter.Sleep = ft.Sleep

	require.NoError(t, limiter.Acquire(context.Background(), core.TierFree))

	// Draining the free bucket does not touch the paid bucket.
	for i := 0; i < 5; i++ {
		require.NoError(t, limiter.Acquire(context.Background(), core.TierPaid))
	}
	require.Empty(t, ft.sleeps)
}

func TestUnknownTierFallsBackToDefaults(t *testing.T) {
	ft := newFakeTime()
	limiter := NewLimiter(nil)
	limiter.Clock = ft.Now
	limiter.Sleep = ft.Sleep

	require.NoError(t, limiter.Acquire(context.Background(), core.TierNative))
	require.False(t, limiter.Disabled(core.TierNative))
}
