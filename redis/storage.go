package redis

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

//go:embed replenish.lua
var replenishScript string

//go:embed consume.lua
var consumeScript string

// Storage is a Redis-backed tokenbucket.Storage implementation.
//
// Each bucket is a Redis hash holding a "tokens" field and a
// "last_replenished_at" timestamp in float seconds. Replenish and Consume
// run as server-side Lua scripts, so the read-compute-write cycle is atomic
// and a single budget per key is enforced across any number of application
// instances sharing the same Redis.
//
// Timestamps are supplied by the client from its wall clock; hosts sharing
// one limiter should run NTP so that elapsed-time computations agree. A
// client whose clock lags behind the recorded timestamp simply skips the
// update rather than regressing the bucket.
type Storage struct {
	client    redis.UniversalClient
	prefix    string
	ttl       time.Duration
	replenish *redis.Script
	consume   *redis.Script

	// now is swappable in tests.
	now func() time.Time
}

// StorageOption configures a Storage.
type StorageOption func(*Storage)

// WithPrefix sets the key prefix for bucket hashes. Default "tokenbucket:".
func WithPrefix(prefix string) StorageOption {
	return func(s *Storage) {
		s.prefix = prefix
	}
}

// WithTTL expires bucket hashes that have not been replenished for the given
// duration, so idle keys do not accumulate in Redis forever. The TTL is
// refreshed on every Replenish. Zero (the default) disables expiry.
func WithTTL(ttl time.Duration) StorageOption {
	return func(s *Storage) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// NewStorage creates a Redis-backed storage engine on top of an established
// client.
func NewStorage(client redis.UniversalClient, opts ...StorageOption) *Storage {
	s := &Storage{
		client:    client,
		prefix:    "tokenbucket:",
		replenish: redis.NewScript(replenishScript),
		consume:   redis.NewScript(consumeScript),
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// TokenCount returns the bucket's token count as of its last replenishment,
// or 0 if the key has never been replenished.
func (s *Storage) TokenCount(ctx context.Context, key string) (float64, error) {
	val, err := s.client.HGet(ctx, s.prefix+key, "tokens").Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("tokenbucket redis: get token count: %w", err)
	}

	tokens, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("tokenbucket redis: malformed token count %q: %w", val, err)
	}
	return tokens, nil
}

// Replenish adds the tokens accrued since the bucket's last update, capped
// at capacity, creating the bucket at full capacity on first sight.
func (s *Storage) Replenish(ctx context.Context, key string, rate float64, capacity int64) error {
	now := float64(s.now().UnixMicro()) / 1e6

	err := s.replenish.Run(ctx, s.client, []string{s.prefix + key},
		rate, capacity, now, s.ttl.Milliseconds()).Err()
	if err != nil {
		return fmt.Errorf("tokenbucket redis: replenish: %w", err)
	}
	return nil
}

// Consume takes numTokens from the bucket if, and only if, the full amount
// is available.
func (s *Storage) Consume(ctx context.Context, key string, numTokens int64) (bool, error) {
	res, err := s.consume.Run(ctx, s.client, []string{s.prefix + key}, numTokens).Int()
	if err != nil {
		return false, fmt.Errorf("tokenbucket redis: consume: %w", err)
	}
	return res == 1, nil
}
