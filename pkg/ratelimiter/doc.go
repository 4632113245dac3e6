// Package ratelimiter provides token bucket rate limiting with memory and Redis
// storage and an HTTP middleware.
//
// Two budgets protect the API: chat completions are limited per user (10 per
// minute by default) and the whole /api surface per client IP (50 per 15
// minutes). Both are buckets that refill completely once their window passes:
//
//	store := ratelimiter.NewRedisStore(client, "rl:chat:")
//	bucket, err := ratelimiter.NewBucket(store, ratelimiter.PerWindow(10, time.Minute))
//	if err != nil {
//		return err
//	}
//	r.With(ratelimiter.Middleware(bucket, ratelimiter.ByUser)).Post("/chat", h)
//
// MemoryStore serves single-instance deployments and tests. RedisStore runs the
// refill-and-take step as a Lua script, so concurrent instances share one budget.
//
// The middleware sets X-RateLimit-Limit, X-RateLimit-Remaining and
// X-RateLimit-Reset on every response and Retry-After on 429.
package ratelimiter
