package tokenbucket_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/tokenbucket"
)

// stubStorage records calls and returns canned results, for testing the
// Limiter's orchestration independently of a real engine.
type stubStorage struct {
	calls []string

	tokenCount   float64
	replenishErr error
	consumeOK    bool
	consumeErr   error

	lastRate      float64
	lastCapacity  int64
	lastKey       string
	lastNumTokens int64
}

func (s *stubStorage) TokenCount(_ context.Context, key string) (float64, error) {
	s.calls = append(s.calls, "token_count")
	s.lastKey = key
	return s.tokenCount, nil
}

func (s *stubStorage) Replenish(_ context.Context, key string, rate float64, capacity int64) error {
	s.calls = append(s.calls, "replenish")
	s.lastKey = key
	s.lastRate = rate
	s.lastCapacity = capacity
	return s.replenishErr
}

func (s *stubStorage) Consume(_ context.Context, key string, numTokens int64) (bool, error) {
	s.calls = append(s.calls, "consume")
	s.lastKey = key
	s.lastNumTokens = numTokens
	return s.consumeOK, s.consumeErr
}

func TestNewLimiter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		rate     float64
		capacity int64
		storage  tokenbucket.Storage
		wantErr  error
	}{
		{
			name:     "valid arguments",
			rate:     10,
			capacity: 100,
			storage:  tokenbucket.NewMemoryStorage(),
		},
		{
			name:     "fractional rate",
			rate:     0.5,
			capacity: 1,
			storage:  tokenbucket.NewMemoryStorage(),
		},
		{
			name:     "zero rate",
			rate:     0,
			capacity: 100,
			storage:  tokenbucket.NewMemoryStorage(),
			wantErr:  tokenbucket.ErrInvalidRate,
		},
		{
			name:     "negative rate",
			rate:     -2.5,
			capacity: 100,
			storage:  tokenbucket.NewMemoryStorage(),
			wantErr:  tokenbucket.ErrInvalidRate,
		},
		{
			name:     "NaN rate",
			rate:     math.NaN(),
			capacity: 100,
			storage:  tokenbucket.NewMemoryStorage(),
			wantErr:  tokenbucket.ErrInvalidRate,
		},
		{
			name:     "infinite rate",
			rate:     math.Inf(1),
			capacity: 100,
			storage:  tokenbucket.NewMemoryStorage(),
			wantErr:  tokenbucket.ErrInvalidRate,
		},
		{
			name:     "zero capacity",
			rate:     10,
			capacity: 0,
			storage:  tokenbucket.NewMemoryStorage(),
			wantErr:  tokenbucket.ErrInvalidCapacity,
		},
		{
			name:     "negative capacity",
			rate:     10,
			capacity: -1,
			storage:  tokenbucket.NewMemoryStorage(),
			wantErr:  tokenbucket.ErrInvalidCapacity,
		},
		{
			name:     "nil storage",
			rate:     10,
			capacity: 100,
			wantErr:  tokenbucket.ErrStorageRequired,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			limiter, err := tokenbucket.NewLimiter(tt.rate, tt.capacity, tt.storage)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, limiter)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, limiter)
			assert.Equal(t, tt.rate, limiter.Rate())
			assert.Equal(t, tt.capacity, limiter.Capacity())
		})
	}
}

func TestLimiter_ConsumeValidation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("empty key", func(t *testing.T) {
		t.Parallel()

		storage := &stubStorage{}
		limiter, err := tokenbucket.NewLimiter(10, 10, storage)
		require.NoError(t, err)

		ok, err := limiter.Consume(ctx, "")
		assert.ErrorIs(t, err, tokenbucket.ErrInvalidKey)
		assert.False(t, ok)
		assert.Empty(t, storage.calls, "storage must not be touched on validation failure")
	})

	t.Run("zero tokens", func(t *testing.T) {
		t.Parallel()

		storage := &stubStorage{}
		limiter, err := tokenbucket.NewLimiter(10, 10, storage)
		require.NoError(t, err)

		ok, err := limiter.ConsumeN(ctx, "key", 0)
		assert.ErrorIs(t, err, tokenbucket.ErrInvalidTokenCount)
		assert.False(t, ok)
		assert.Empty(t, storage.calls)
	})

	t.Run("negative tokens", func(t *testing.T) {
		t.Parallel()

		storage := &stubStorage{}
		limiter, err := tokenbucket.NewLimiter(10, 10, storage)
		require.NoError(t, err)

		ok, err := limiter.ConsumeN(ctx, "key", -3)
		assert.ErrorIs(t, err, tokenbucket.ErrInvalidTokenCount)
		assert.False(t, ok)
		assert.Empty(t, storage.calls)
	})

	t.Run("empty key on token count", func(t *testing.T) {
		t.Parallel()

		storage := &stubStorage{}
		limiter, err := tokenbucket.NewLimiter(10, 10, storage)
		require.NoError(t, err)

		_, err = limiter.TokenCount(ctx, "")
		assert.ErrorIs(t, err, tokenbucket.ErrInvalidKey)
	})
}

func TestLimiter_StorageOrchestration(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("replenish then consume, exactly once each", func(t *testing.T) {
		t.Parallel()

		storage := &stubStorage{consumeOK: true}
		limiter, err := tokenbucket.NewLimiter(2.5, 42, storage)
		require.NoError(t, err)

		ok, err := limiter.ConsumeN(ctx, "some-key", 7)
		require.NoError(t, err)
		assert.True(t, ok)

		assert.Equal(t, []string{"replenish", "consume"}, storage.calls)
		assert.Equal(t, "some-key", storage.lastKey)
		assert.Equal(t, 2.5, storage.lastRate)
		assert.Equal(t, int64(42), storage.lastCapacity)
		assert.Equal(t, int64(7), storage.lastNumTokens)
	})

	t.Run("replenish error propagates unmodified", func(t *testing.T) {
		t.Parallel()

		wantErr := errors.New("backend down")
		storage := &stubStorage{replenishErr: wantErr}
		limiter, err := tokenbucket.NewLimiter(10, 10, storage)
		require.NoError(t, err)

		ok, err := limiter.Consume(ctx, "key")
		assert.ErrorIs(t, err, wantErr)
		assert.False(t, ok)
		assert.Equal(t, []string{"replenish"}, storage.calls, "consume must not run after a failed replenish")
	})

	t.Run("consume error propagates unmodified", func(t *testing.T) {
		t.Parallel()

		wantErr := errors.New("backend down")
		storage := &stubStorage{consumeErr: wantErr}
		limiter, err := tokenbucket.NewLimiter(10, 10, storage)
		require.NoError(t, err)

		ok, err := limiter.Consume(ctx, "key")
		assert.ErrorIs(t, err, wantErr)
		assert.False(t, ok)
		assert.Equal(t, []string{"replenish", "consume"}, storage.calls)
	})
}

func TestLimiter_BurstThenRefill(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	limiter, err := tokenbucket.NewLimiter(10, 10, tokenbucket.NewMemoryStorage())
	require.NoError(t, err)

	key := "burst"

	// Drain the full burst in one call.
	ok, err := limiter.ConsumeN(ctx, key, 10)
	require.NoError(t, err)
	assert.True(t, ok)

	// The bucket is empty now.
	ok, err = limiter.Consume(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	// At 10 tokens/second, 150ms accrues at least one whole token.
	time.Sleep(150 * time.Millisecond)

	ok, err = limiter.Consume(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLimiter_RequestLargerThanCapacity(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	limiter, err := tokenbucket.NewLimiter(100, 1, tokenbucket.NewMemoryStorage())
	require.NoError(t, err)

	key := "single"

	// Two tokens can never fit in a one-token bucket.
	ok, err := limiter.ConsumeN(ctx, key, 2)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = limiter.Consume(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = limiter.Consume(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLimiter_IndependentKeys(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	limiter, err := tokenbucket.NewLimiter(0.001, 5, tokenbucket.NewMemoryStorage())
	require.NoError(t, err)

	// Exhaust one key entirely.
	ok, err := limiter.ConsumeN(ctx, "alpha", 5)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = limiter.Consume(ctx, "alpha")
	require.NoError(t, err)
	assert.False(t, ok)

	// A different key under the same limiter is untouched.
	count, err := limiter.TokenCount(ctx, "beta")
	require.NoError(t, err)
	assert.Zero(t, count, "unseen key must report zero tokens")

	ok, err = limiter.Consume(ctx, "beta")
	require.NoError(t, err)
	assert.True(t, ok)

	count, err = limiter.TokenCount(ctx, "beta")
	require.NoError(t, err)
	assert.InDelta(t, 4, count, 0.01)
}
