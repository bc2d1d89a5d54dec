package tokenbucket

import (
	"hash/fnv"
	"math"
	"net/http"
	"strconv"
	"strings"
)

// maxKeyLength is the maximum allowed length for a rate limit key to keep
// stored keys short.
const maxKeyLength = 64

// KeyFunc extracts a rate limit key from the request.
type KeyFunc func(r *http.Request) string

// Composite combines multiple key functions into one.
// Long keys (>64 chars) are hashed using FNV-1a for storage efficiency.
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

		if len(parts) == 1 && len(parts[0]) <= maxKeyLength {
			return parts[0]
		}

		combined := strings.Join(parts, ":")

		if len(combined) > maxKeyLength {
			h := fnv.New64a()
			h.Write([]byte(combined))
			// Base36 encoding for compact output (~13 chars)
			return strconv.FormatUint(h.Sum64(), 36)
		}

		return combined
	}
}

// ErrorResponder handles failures from the limiter or its storage backend.
type ErrorResponder func(w http.ResponseWriter, r *http.Request, err error)

type middlewareConfig struct {
	tokensPerRequest int64
	errorResponder   ErrorResponder
}

// MiddlewareOption configures the HTTP middleware.
type MiddlewareOption func(*middlewareConfig)

// WithTokensPerRequest sets how many tokens each request consumes.
// Values below 1 are ignored.
func WithTokensPerRequest(n int64) MiddlewareOption {
	return func(c *middlewareConfig) {
		if n >= 1 {
			c.tokensPerRequest = n
		}
	}
}

// WithErrorResponder customizes the response written when the limiter
// returns an error (for example, an unreachable Redis backend).
func WithErrorResponder(fn ErrorResponder) MiddlewareOption {
	return func(c *middlewareConfig) {
		if fn != nil {
			c.errorResponder = fn
		}
	}
}

// Middleware creates an HTTP middleware that applies the limiter to every
// request, using keyFunc to derive the bucket key.
//
// It sets the X-RateLimit-Limit and X-RateLimit-Remaining headers on every
// response and answers non-conforming requests with 429 Too Many Requests
// plus a Retry-After hint derived from the replenishment rate.
func Middleware(l *Limiter, keyFunc KeyFunc, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	cfg := middlewareConfig{
		tokensPerRequest: 1,
		errorResponder: func(w http.ResponseWriter, r *http.Request, err error) {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFunc(r)

			ok, err := l.ConsumeN(r.Context(), key, cfg.tokensPerRequest)
			if err != nil {
				cfg.errorResponder(w, r, err)
				return
			}

			remaining, err := l.TokenCount(r.Context(), key)
			if err != nil {
				cfg.errorResponder(w, r, err)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(l.Capacity(), 10))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(int64(math.Max(0, remaining)), 10))

			if !ok {
				missing := float64(cfg.tokensPerRequest) - remaining
				if retryAfter := int(math.Ceil(missing / l.Rate())); retryAfter > 0 {
					w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				}

				http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
