package ratelimiter

import (
	"hash/fnv"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/dmitrymomot/mymechanic/pkg/auth"
	"github.com/dmitrymomot/mymechanic/pkg/clientip"
	"github.com/dmitrymomot/mymechanic/pkg/logger"
	"github.com/dmitrymomot/mymechanic/pkg/response"
)

// maxKeyLength is the maximum allowed length for a rate limit key.
const maxKeyLength = 64

// KeyFunc extracts a rate limit key from the request.
type KeyFunc func(r *http.Request) string

// ByIP keys requests by client address.
func ByIP(r *http.Request) string {
	if ip := clientip.FromContext(r.Context()); ip != "" {
		return "ip:" + ip
	}
	return "ip:" + clientip.GetIP(r)
}

// ByUser keys authenticated requests by user id and falls back to ByIP.
func ByUser(r *http.Request) string {
	if id, ok := auth.IdentityFromContext(r.Context()); ok {
		return "user:" + id.UserID
	}
	return ByIP(r)
}

// Composite combines multiple key functions into one.
// Long keys are hashed using FNV-1a.
func Composite(keyFuncs ...KeyFunc) KeyFunc {
	return func(r *http.Request) string {
		parts := make([]string, 0, len(keyFuncs))
		for _, fn := range keyFuncs {
			if key := fn(r); key != "" {
				parts = append(parts, key)
			}
		}
		if len(parts) == 0 {
			return ""
		}

		combined := strings.Join(parts, ":")
		if len(combined) <= maxKeyLength {
			return combined
		}

		h := fnv.New64a()
		h.Write([]byte(combined))
		return strconv.FormatUint(h.Sum64(), 36)
	}
}

type middlewareOptions struct {
	log     *slog.Logger
	message string
}

// MiddlewareOption configures Middleware.
type MiddlewareOption func(*middlewareOptions)

func WithLogger(l *slog.Logger) MiddlewareOption {
	return func(o *middlewareOptions) {
		if l != nil {
			o.log = l
		}
	}
}

// WithMessage sets the human-readable text of the 429 body.
func WithMessage(msg string) MiddlewareOption {
	return func(o *middlewareOptions) {
		o.message = msg
	}
}

// Middleware rejects requests over the bucket limit with 429 and standard
// X-RateLimit-* headers. Store failures are logged and the request passes.
func Middleware(b *Bucket, keyFunc KeyFunc, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	if b == nil || keyFunc == nil {
		panic("ratelimiter: bucket and key func are required")
	}
	o := middlewareOptions{
		log:     slog.Default(),
		message: "Too many requests, please try again later",
	}
	for _, opt := range opts {
		opt(&o)
	}
	tooMany := response.ErrTooManyRequests.WithMessage(o.message)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			result, err := b.Allow(r.Context(), keyFunc(r))
			if err != nil {
				o.log.WarnContext(r.Context(), "rate limit check failed", logger.Component("ratelimiter"), logger.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(max(0, result.Remaining)))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

			if !result.Allowed() {
				retryAfter := int(result.RetryAfter().Seconds())
				if retryAfter > 0 {
					w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				}
				response.Error(w, tooMany, map[string]any{"retryAfter": retryAfter})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
