// Package tokenbucket provides keyed token bucket rate limiting with
// pluggable storage backends and HTTP middleware.
//
// A Limiter manages a set of token buckets that share a single replenishment
// rate, capacity, and storage backend. Each bucket is referenced by a key,
// allowing independent tracking and limiting of multiple consumers of a
// resource. Tokens accrue lazily based on elapsed time, so no background
// timer is needed; each request consumes one or more tokens and is rejected
// when the bucket does not hold the full amount.
//
// # Basic Usage
//
// Create a limiter over the in-memory storage engine:
//
//	// 10 tokens per second, bursts of up to 20
//	limiter, err := tokenbucket.NewLimiter(10, 20, tokenbucket.NewMemoryStorage())
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	ok, err := limiter.Consume(ctx, "user:123")
//	if err != nil {
//		// Handle storage failure
//		return
//	}
//	if !ok {
//		// Non-conforming: the bucket did not hold enough tokens
//		return
//	}
//
// Consume several tokens at once when a request uses a larger share of the
// resource:
//
//	ok, err := limiter.ConsumeN(ctx, "user:123", 5)
//
// # Burst Size
//
// The bucket capacity has a direct impact on burst duration. Let M be the
// maximum possible token request rate, r the replenishment rate (both in
// tokens per second), and b the capacity. If r < M, the maximum burst
// duration in seconds is b/(M-r), and any one burst consumes at most
// b/(M-r) * M tokens. If r >= M, a consumer can never exceed the
// replenishment rate and may burst at full speed indefinitely.
//
// # Storage Backends
//
// The Storage interface abstracts the bucket table behind three operations:
// TokenCount, Replenish, and Consume. Two implementations ship with the
// package:
//
//   - MemoryStorage: an in-process engine built on a concurrent map with
//     per-bucket compare-and-swap updates. Lock-free, constant-time, and
//     safe for any number of goroutines, but local to one process.
//   - redis.Storage: a Redis-backed engine (subpackage redis) that performs
//     the replenish and consume steps in server-side Lua scripts, so a
//     single budget can be enforced across many application instances.
//
// Any other backend that honors the capped-addition replenishment and
// all-or-nothing consume semantics can be substituted without changing
// Limiter behavior.
//
// # HTTP Middleware
//
// Use the provided middleware for per-request rate limiting:
//
//	keyFunc := func(r *http.Request) string { return r.RemoteAddr }
//
//	handler := tokenbucket.Middleware(limiter, keyFunc)(mux)
//	http.ListenAndServe(":8080", handler)
//
// The middleware sets the X-RateLimit-Limit and X-RateLimit-Remaining
// headers, answers non-conforming requests with 429 Too Many Requests, and
// includes a Retry-After hint derived from the replenishment rate. Combine
// several extractors with Composite; keys longer than 64 characters are
// hashed with FNV-1a to keep stored keys short.
//
// # Error Types
//
// Argument validation fails fast with package-level sentinel errors:
//
//	if errors.Is(err, tokenbucket.ErrInvalidRate) {
//		// Rate was zero, negative, or not finite
//	}
//	if errors.Is(err, tokenbucket.ErrInvalidKey) {
//		// Key was empty
//	}
//
// Errors from a storage backend propagate to the caller unmodified; the
// package performs no internal retries and no logging.
//
// # Concurrency
//
// All operations are safe for concurrent use. MemoryStorage serializes
// nothing: every update is a compare-and-swap on an immutable per-bucket
// snapshot, so unrelated keys never contend and contended keys pay only a
// short retry loop instead of a lock.
//
// # Limitations
//
// MemoryStorage never evicts buckets; the table grows with the number of
// distinct keys seen during the process lifetime. Keep the key space
// bounded, or use the Redis backend with a TTL, if that matters for your
// workload.
package tokenbucket
