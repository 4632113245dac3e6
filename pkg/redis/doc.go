// Package redis connects the service to Redis with go-redis/v9.
//
// The client backs two optional fast paths: the distributed token-bucket store
// used by the chat rate limiter and the processed-event cache in front of the
// webhook ledger. Both degrade to their primary implementation when Redis is
// disabled (REDIS_ENABLED=false).
package redis
