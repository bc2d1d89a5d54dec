package tokenbucket

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// bucketState is an immutable snapshot of a single bucket. Updates replace
// the whole snapshot through a compare-and-swap, so readers never observe a
// torn (tokens, timestamp) pair.
type bucketState struct {
	tokens            float64
	lastReplenishedAt time.Time
}

type bucketEntry struct {
	state atomic.Pointer[bucketState]
}

// MemoryStorage is the in-process Storage implementation, backed by one
// shared table of buckets.
//
// The table is a concurrent map and every bucket update is a per-entry
// compare-and-swap retry loop, so no operation ever takes a lock or blocks.
// Two goroutines racing on the same key simply cause one of them to retry
// its few instructions of arithmetic; check-then-act sequences cannot
// interleave, which keeps token counts non-negative and capped at capacity
// even under heavy contention on a single key.
//
// Buckets are never evicted: the table grows with the number of distinct
// keys seen during the process lifetime. Use a bounded key space (or hash
// long identifiers, see Composite) if that matters for your workload.
type MemoryStorage struct {
	buckets sync.Map // string -> *bucketEntry

	// now is swappable in tests to make the replenishment arithmetic
	// deterministic. time.Now carries a monotonic reading, so elapsed time
	// computed via Sub is immune to wall clock adjustments.
	now func() time.Time
}

// NewMemoryStorage creates an empty in-memory storage engine.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{now: time.Now}
}

// TokenCount returns the bucket's token count as of its last update, or 0
// if the key has never been replenished.
func (ms *MemoryStorage) TokenCount(_ context.Context, key string) (float64, error) {
	v, ok := ms.buckets.Load(key)
	if !ok {
		return 0, nil
	}
	return v.(*bucketEntry).state.Load().tokens, nil
}

// Replenish adds the tokens accrued since the bucket's last update, capped
// at capacity. A previously unseen key gets a full bucket stamped with the
// current time.
func (ms *MemoryStorage) Replenish(_ context.Context, key string, rate float64, capacity int64) error {
	v, ok := ms.buckets.Load(key)
	if !ok {
		entry := &bucketEntry{}
		entry.state.Store(&bucketState{
			tokens:            float64(capacity),
			lastReplenishedAt: ms.now(),
		})
		if v, ok = ms.buckets.LoadOrStore(key, entry); !ok {
			return nil
		}
		// Lost the insert race; update the winner's entry below.
	}
	entry := v.(*bucketEntry)

	for {
		cur := entry.state.Load()
		now := ms.now()

		// Never regress the recorded timestamp: a stale now must not
		// overwrite a newer token count with a smaller one.
		elapsed := now.Sub(cur.lastReplenishedAt)
		if elapsed < 0 {
			return nil
		}

		next := &bucketState{
			tokens:            min(float64(capacity), cur.tokens+rate*elapsed.Seconds()),
			lastReplenishedAt: now,
		}
		if entry.state.CompareAndSwap(cur, next) {
			return nil
		}
	}
}

// Consume takes numTokens from the bucket if, and only if, the full amount
// is available. A key that was never replenished is treated as an empty
// bucket.
func (ms *MemoryStorage) Consume(_ context.Context, key string, numTokens int64) (bool, error) {
	v, ok := ms.buckets.Load(key)
	if !ok {
		return false, nil
	}
	entry := v.(*bucketEntry)

	for {
		cur := entry.state.Load()
		if cur.tokens < float64(numTokens) {
			return false, nil
		}
		next := &bucketState{
			tokens:            cur.tokens - float64(numTokens),
			lastReplenishedAt: cur.lastReplenishedAt,
		}
		if entry.state.CompareAndSwap(cur, next) {
			return true, nil
		}
	}
}
