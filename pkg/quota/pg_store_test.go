package quota_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/mymechanic/pkg/pg/pgtest"
	"github.com/dmitrymomot/mymechanic/pkg/quota"
)

func TestPGStore_IncrementStopsAtLimit(t *testing.T) {
	pool := pgtest.Pool(t)
	t.Parallel()
	ctx := context.Background()

	store := quota.NewPGStore(pool)
	user := "u-" + uuid.NewString()
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	u, err := store.Current(ctx, user, "2026-03", now)
	require.NoError(t, err)
	assert.Equal(t, 0, u.Count)
	assert.Equal(t, "2026-03", u.Month)

	for want := 1; want <= 2; want++ {
		count, ok, err := store.Increment(ctx, user, "2026-03", 2, now)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, want, count)
	}

	_, ok, err := store.Increment(ctx, user, "2026-03", 2, now)
	require.NoError(t, err)
	assert.False(t, ok, "count at the limit is not incremented")

	u, err = store.Current(ctx, user, "2026-03", now)
	require.NoError(t, err)
	assert.Equal(t, 2, u.Count)
}

func TestPGStore_UnlimitedKeepsCounting(t *testing.T) {
	pool := pgtest.Pool(t)
	t.Parallel()
	ctx := context.Background()

	store := quota.NewPGStore(pool)
	user := "u-" + uuid.NewString()
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	var count int
	for range 3 {
		var ok bool
		var err error
		count, ok, err = store.Increment(ctx, user, "2026-03", quota.Unlimited, now)
		require.NoError(t, err)
		require.True(t, ok)
	}
	assert.Equal(t, 3, count)
}

func TestPGStore_MonthRollover(t *testing.T) {
	pool := pgtest.Pool(t)
	t.Parallel()
	ctx := context.Background()

	store := quota.NewPGStore(pool)
	march := time.Date(2026, 3, 31, 23, 0, 0, 0, time.UTC)
	april := time.Date(2026, 4, 1, 0, 30, 0, 0, time.UTC)

	t.Run("increment in a new month restarts at one", func(t *testing.T) {
		user := "u-" + uuid.NewString()
		for range 2 {
			_, ok, err := store.Increment(ctx, user, "2026-03", 2, march)
			require.NoError(t, err)
			require.True(t, ok)
		}

		count, ok, err := store.Increment(ctx, user, "2026-04", 2, april)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, 1, count)

		u, err := store.Current(ctx, user, "2026-04", april)
		require.NoError(t, err)
		assert.Equal(t, "2026-04", u.Month)
		assert.True(t, april.Equal(u.LastReset), "last reset moves to the new month")
	})

	t.Run("current resets a stale row", func(t *testing.T) {
		user := "u-" + uuid.NewString()
		_, ok, err := store.Increment(ctx, user, "2026-03", 5, march)
		require.NoError(t, err)
		require.True(t, ok)

		u, err := store.Current(ctx, user, "2026-04", april)
		require.NoError(t, err)
		assert.Equal(t, 0, u.Count)
		assert.Equal(t, "2026-04", u.Month)
	})
}

func TestPGStore_ConcurrentIncrementsNeverExceedLimit(t *testing.T) {
	pool := pgtest.Pool(t)
	t.Parallel()
	ctx := context.Background()

	store := quota.NewPGStore(pool)
	user := "u-" + uuid.NewString()
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	_, err := store.Current(ctx, user, "2026-03", now)
	require.NoError(t, err)

	const limit = 5
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := store.Increment(ctx, user, "2026-03", limit, now)
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, limit, accepted)
	u, err := store.Current(ctx, user, "2026-03", now)
	require.NoError(t, err)
	assert.Equal(t, limit, u.Count)
}
