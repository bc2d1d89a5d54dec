package tokenbucket

import (
	"context"
	"fmt"
	"math"
)

// Limiter limits demand for a finite resource via keyed token buckets.
//
// A limiter manages a set of buckets that share a single rate, capacity, and
// storage backend. Each bucket is referenced by a key, allowing independent
// tracking and limiting of multiple consumers of a resource. If a global
// limit is desired for all consumers, the same key may be used for every
// call; otherwise derive the key from consumer identity.
//
// The limiter itself performs no locking and keeps no per-key state; all
// concurrency properties derive from the chosen Storage.
type Limiter struct {
	rate     float64
	capacity int64
	storage  Storage
}

// NewLimiter creates a limiter bound to one storage backend.
//
// rate is the number of tokens per second added to each bucket; over time it
// bounds the sustained consumption rate. capacity is the maximum number of
// tokens a bucket can hold and bounds burst size: with a maximum possible
// request rate M (tokens/second) and rate r < M, a burst can last up to
// capacity/(M-r) seconds before requests become non-conforming.
//
// It fails fast on invalid arguments: rate must be a positive finite number,
// capacity must be at least 1, and storage must be non-nil.
func NewLimiter(rate float64, capacity int64, storage Storage) (*Limiter, error) {
	if math.IsNaN(rate) || math.IsInf(rate, 0) {
		return nil, fmt.Errorf("%w: must be a finite number, got %v", ErrInvalidRate, rate)
	}
	if rate <= 0 {
		return nil, fmt.Errorf("%w: must be positive, got %v", ErrInvalidRate, rate)
	}
	if capacity < 1 {
		return nil, fmt.Errorf("%w: must be >= 1, got %d", ErrInvalidCapacity, capacity)
	}
	if storage == nil {
		return nil, ErrStorageRequired
	}

	return &Limiter{
		rate:     rate,
		capacity: capacity,
		storage:  storage,
	}, nil
}

// Rate returns the configured replenishment rate in tokens per second.
func (l *Limiter) Rate() float64 { return l.rate }

// Capacity returns the configured maximum bucket size.
func (l *Limiter) Capacity() int64 { return l.capacity }

// Consume attempts to take a single token from the bucket identified by key.
// See ConsumeN.
func (l *Limiter) Consume(ctx context.Context, key string) (bool, error) {
	return l.ConsumeN(ctx, key, 1)
}

// ConsumeN attempts to take numTokens from the bucket identified by key.
//
// If the bucket does not yet exist, it is created at full capacity before
// proceeding. It returns true if the requested number of tokens were removed
// (conforming), false otherwise (non-conforming). The entire amount must be
// available for the call to conform; otherwise no tokens are removed.
//
// It may be appropriate to ask for more than one token according to the
// proportion of the resource a given request will use relative to other
// requests for the same resource.
//
// Validation failures are reported via ErrInvalidKey and
// ErrInvalidTokenCount; any error from the storage backend is returned
// unmodified.
func (l *Limiter) ConsumeN(ctx context.Context, key string, numTokens int64) (bool, error) {
	if key == "" {
		return false, fmt.Errorf("%w: key must not be empty", ErrInvalidKey)
	}
	if numTokens < 1 {
		return false, fmt.Errorf("%w: must be >= 1, got %d", ErrInvalidTokenCount, numTokens)
	}

	if err := l.storage.Replenish(ctx, key, l.rate, l.capacity); err != nil {
		return false, err
	}
	return l.storage.Consume(ctx, key, numTokens)
}

// TokenCount reports the bucket's token count as of its last replenishment.
// It is a diagnostic read-through to the storage backend and does not
// replenish the bucket first.
func (l *Limiter) TokenCount(ctx context.Context, key string) (float64, error) {
	if key == "" {
		return 0, fmt.Errorf("%w: key must not be empty", ErrInvalidKey)
	}
	return l.storage.TokenCount(ctx, key)
}
