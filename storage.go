package tokenbucket

import "context"

// Storage defines the contract for token bucket storage backends.
//
// Any conforming implementation (in-memory, Redis, database-backed) may be
// substituted without changing Limiter behavior, provided it honors the
// capped-addition replenishment and all-or-nothing consume semantics.
type Storage interface {
	// TokenCount returns the bucket's last-known token count without
	// performing replenishment, so the count is whatever it was the last
	// time Replenish was called. It returns 0 for a key that has never been
	// replenished and never mutates state. The count may be fractional;
	// callers that want whole tokens should truncate it themselves.
	TokenCount(ctx context.Context, key string) (float64, error)

	// Replenish ensures the bucket for key exists and reflects the tokens
	// accrued since its last update, at rate tokens per second, capped at
	// capacity. Conceptually one token is added every 1/rate seconds; rather
	// than running an out-of-band timer, implementations calculate the number
	// of tokens that should have been added since the last replenishment. A
	// previously unseen key is created with a full bucket. Must be safe to
	// call repeatedly and concurrently for the same key.
	Replenish(ctx context.Context, key string, rate float64, capacity int64) error

	// Consume attempts to take numTokens from the bucket identified by key.
	// It returns true and performs the debit only if the bucket held at
	// least numTokens; otherwise it returns false and removes nothing (all
	// or nothing). A key that was never replenished is treated as an empty
	// bucket; callers should always replenish before consuming.
	Consume(ctx context.Context, key string, numTokens int64) (bool, error)
}
