package quota_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/mymechanic/pkg/quota"
)

func limits(planID string) int {
	switch planID {
	case "basic":
		return 10
	case "unlimited":
		return quota.Unlimited
	default:
		return 50
	}
}

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func closeGate(t *testing.T, g *quota.Gate) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, g.Close(ctx))
}

func TestMonthToken(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "2026-03", quota.MonthToken(time.Date(2026, 3, 31, 23, 59, 0, 0, time.UTC)))
	// 00:30 on April 1st in UTC+2 is still March in UTC.
	assert.Equal(t, "2026-03", quota.MonthToken(time.Date(2026, 4, 1, 0, 30, 0, 0, time.FixedZone("EET", 2*3600))))
}

func TestGate_BoundaryAtLimit(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	clock := &fixedClock{now: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
	store := quota.NewMemoryStore()
	store.Set(quota.Usage{UserID: "u1", Count: 9, Month: "2026-03", LastReset: clock.Now()})

	g := quota.NewGate(store, limits, quota.WithClock(clock.Now))

	res, err := g.CheckAndReserve(ctx, "u1", "basic")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 1, res.Remaining)
	assert.Equal(t, 9, res.Used)

	g.Commit(ctx, "u1", "basic")
	closeGate(t, g)

	g = quota.NewGate(store, limits, quota.WithClock(clock.Now))
	res, err = g.CheckAndReserve(ctx, "u1", "basic")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, quota.Reservation{Allowed: false, Limit: 10, Used: 10, Remaining: 0}, res)
}

func TestGate_NewUserAllowed(t *testing.T) {
	t.Parallel()

	g := quota.NewGate(quota.NewMemoryStore(), limits)
	res, err := g.CheckAndReserve(context.Background(), "fresh", "starter")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 50, res.Remaining)
	assert.Equal(t, 0, res.Used)
}

func TestGate_MonthReset(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	clock := &fixedClock{now: time.Date(2026, 4, 1, 0, 5, 0, 0, time.UTC)}
	store := quota.NewMemoryStore()
	store.Set(quota.Usage{UserID: "u1", Count: 10, Month: "2026-03", LastReset: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)})

	g := quota.NewGate(store, limits, quota.WithClock(clock.Now))
	res, err := g.CheckAndReserve(ctx, "u1", "basic")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 0, res.Used)
	assert.Equal(t, 10, res.Remaining)

	u, err := store.Current(ctx, "u1", "2026-04", clock.Now())
	require.NoError(t, err)
	assert.Equal(t, "2026-04", u.Month)
	assert.True(t, u.LastReset.Equal(clock.Now()))
}

func TestGate_Unlimited(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := quota.NewMemoryStore()
	g := quota.NewGate(store, limits)
	for range 3 {
		res, err := g.CheckAndReserve(ctx, "u1", "unlimited")
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, quota.Unlimited, res.Remaining)
		g.Commit(ctx, "u1", "unlimited")
	}
	closeGate(t, g)

	u, err := store.Current(ctx, "u1", quota.MonthToken(time.Now()), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 3, u.Count, "unlimited plans are still counted")
}

func TestGate_ConcurrentCommitsNeverExceedLimit(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := quota.NewMemoryStore()
	g := quota.NewGate(store, limits)
	for range 25 {
		g.Commit(ctx, "u1", "basic")
	}
	closeGate(t, g)

	u, err := store.Current(ctx, "u1", quota.MonthToken(time.Now()), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 10, u.Count)
}

func TestGate_CommitAfterCloseIsDropped(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := quota.NewMemoryStore()
	g := quota.NewGate(store, limits)
	closeGate(t, g)

	g.Commit(ctx, "u1", "basic")
	u, err := store.Current(ctx, "u1", quota.MonthToken(time.Now()), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, u.Count)
}

func TestReservation_Consumed(t *testing.T) {
	t.Parallel()

	got := quota.Reservation{Allowed: true, Limit: 10, Used: 9, Remaining: 1}.Consumed()
	assert.Equal(t, 10, got.Used)
	assert.Equal(t, 0, got.Remaining)

	unlimited := quota.Reservation{Allowed: true, Limit: quota.Unlimited, Used: 3, Remaining: quota.Unlimited}.Consumed()
	assert.Equal(t, 4, unlimited.Used)
	assert.Equal(t, quota.Unlimited, unlimited.Remaining)
}
