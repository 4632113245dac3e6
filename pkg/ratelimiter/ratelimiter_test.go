package ratelimiter_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/mymechanic/pkg/auth"
	"github.com/dmitrymomot/mymechanic/pkg/ratelimiter"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newBucket(t *testing.T, cfg ratelimiter.Config) (*ratelimiter.Bucket, *clock) {
	t.Helper()
	clk := &clock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	store := ratelimiter.NewMemoryStore(ratelimiter.WithCleanupInterval(0), ratelimiter.WithClock(clk.Now))
	t.Cleanup(store.Close)

	b, err := ratelimiter.NewBucket(store, cfg)
	require.NoError(t, err)
	return b, clk
}

func TestBucket_WindowRefill(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	b, clk := newBucket(t, ratelimiter.PerWindow(3, time.Minute))

	for i := range 3 {
		res, err := b.Allow(ctx, "user:1")
		require.NoError(t, err)
		assert.True(t, res.Allowed())
		assert.Equal(t, 2-i, res.Remaining)
	}

	res, err := b.Allow(ctx, "user:1")
	require.NoError(t, err)
	assert.False(t, res.Allowed())

	// Other keys have their own bucket.
	res, err = b.Allow(ctx, "user:2")
	require.NoError(t, err)
	assert.True(t, res.Allowed())

	clk.Advance(time.Minute)
	res, err = b.Allow(ctx, "user:1")
	require.NoError(t, err)
	assert.True(t, res.Allowed())
	assert.Equal(t, 2, res.Remaining)
}

func TestBucket_DeniedRequestsConsumeNothing(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	b, _ := newBucket(t, ratelimiter.PerWindow(2, time.Minute))

	res, err := b.AllowN(ctx, "k", 3)
	require.NoError(t, err)
	assert.False(t, res.Allowed())

	res, err = b.AllowN(ctx, "k", 2)
	require.NoError(t, err)
	assert.True(t, res.Allowed())
	assert.Equal(t, 0, res.Remaining)
}

func TestBucket_Reset(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	b, _ := newBucket(t, ratelimiter.PerWindow(1, time.Hour))

	_, err := b.Allow(ctx, "k")
	require.NoError(t, err)
	require.NoError(t, b.Reset(ctx, "k"))

	res, err := b.Allow(ctx, "k")
	require.NoError(t, err)
	assert.True(t, res.Allowed())
}

func TestNewBucket_Validation(t *testing.T) {
	t.Parallel()

	store := ratelimiter.NewMemoryStore(ratelimiter.WithCleanupInterval(0))
	defer store.Close()

	_, err := ratelimiter.NewBucket(store, ratelimiter.Config{})
	assert.ErrorIs(t, err, ratelimiter.ErrInvalidConfig)

	_, err = ratelimiter.NewBucket(nil, ratelimiter.PerWindow(1, time.Second))
	assert.ErrorIs(t, err, ratelimiter.ErrStoreRequired)

	b, err := ratelimiter.NewBucket(store, ratelimiter.PerWindow(1, time.Second))
	require.NoError(t, err)
	_, err = b.AllowN(context.Background(), "k", 0)
	assert.ErrorIs(t, err, ratelimiter.ErrInvalidTokenCount)
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	store := ratelimiter.NewMemoryStore(ratelimiter.WithCleanupInterval(0))
	t.Cleanup(store.Close)
	b, err := ratelimiter.NewBucket(store, ratelimiter.PerWindow(2, time.Minute))
	require.NoError(t, err)

	handler := ratelimiter.Middleware(b, ratelimiter.ByUser)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	call := func(userID string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/chat", nil)
		req.RemoteAddr = "192.0.2.1:1234"
		if userID != "" {
			req = req.WithContext(auth.WithIdentity(req.Context(), auth.Identity{UserID: userID}))
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, call("u1").Code)
	rec := call("u1")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	rec = call("u1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "too_many_requests", body["code"])

	// Anonymous callers from the same IP use a separate bucket.
	assert.Equal(t, http.StatusOK, call("").Code)
}

func TestComposite(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	short := ratelimiter.Composite(
		func(*http.Request) string { return "a" },
		func(*http.Request) string { return "" },
		func(*http.Request) string { return "b" },
	)
	assert.Equal(t, "a:b", short(req))

	long := ratelimiter.Composite(func(*http.Request) string { return strings.Repeat("x", 100) })
	key := long(req)
	assert.NotEmpty(t, key)
	assert.LessOrEqual(t, len(key), 64)

	assert.Empty(t, ratelimiter.Composite()(req))
}
