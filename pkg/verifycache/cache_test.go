package verifycache

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chainsafe/qtx-rewards/pkg/config"
	"github.com/chainsafe/qtx-rewards/pkg/oracle"
)

func runCacheContract(t *testing.T, c Cache) {
	ctx := context.Background()
	ref := "ref-" + uuid.NewString()

	t.Run("lock is exclusive", func(t *testing.T) {
		release, err := c.Acquire(ctx, ref, time.Minute)
		require.NoError(t, err)

		_, err = c.Acquire(ctx, ref, time.Minute)
		assert.True(t, errors.Is(err, ErrLocked))

		release()
		release2, err := c.Acquire(ctx, ref, time.Minute)
		require.NoError(t, err, "lock must be free after release")
		release2()
	})

	t.Run("remember and lookup", func(t *testing.T) {
		_, err := c.Lookup(ctx, ref)
		assert.True(t, errors.Is(err, ErrMiss))

		p := &oracle.Payment{Hash: "h1", Sender: "0:aa", Amount: decimal.RequireFromString("1.5"), Timestamp: time.Unix(1700000000, 0).UTC()}
		require.NoError(t, c.Remember(ctx, ref, p, time.Minute))

		got, err := c.Lookup(ctx, ref)
		require.NoError(t, err)
		assert.Equal(t, "h1", got.Hash)
		assert.True(t, got.Amount.Equal(p.Amount))
		assert.True(t, got.Timestamp.Equal(p.Timestamp))
	})
}

func TestMemoryCache(t *testing.T) {
	runCacheContract(t, NewMemoryCache())
}

func TestMemoryCache_Expiry(t *testing.T) {
	c := NewMemoryCache()
	now := time.Now()
	c.now = func() time.Time { return now }
	ctx := context.Background()

	_, err := c.Acquire(ctx, "r", time.Second)
	require.NoError(t, err)
	require.NoError(t, c.Remember(ctx, "r", &oracle.Payment{Hash: "h"}, time.Second))

	now = now.Add(2 * time.Second)

	release, err := c.Acquire(ctx, "r", time.Second)
	require.NoError(t, err, "expired lock must be reclaimable")
	release()

	_, err = c.Lookup(ctx, "r")
	assert.True(t, errors.Is(err, ErrMiss))
}

func TestMemoryCache_StaleReleaseKeepsNewLock(t *testing.T) {
	c := NewMemoryCache()
	now := time.Now()
	c.now = func() time.Time { return now }
	ctx := context.Background()

	staleRelease, err := c.Acquire(ctx, "r", time.Second)
	require.NoError(t, err)
	now = now.Add(2 * time.Second)
	_, err = c.Acquire(ctx, "r", time.Minute)
	require.NoError(t, err)

	staleRelease()
	_, err = c.Acquire(ctx, "r", time.Minute)
	assert.True(t, errors.Is(err, ErrLocked))
}

// TestRedisCache runs against QTX_TEST_REDIS_ADDR when it is set.
func TestRedisCache(t *testing.T) {
	addr := os.Getenv("QTX_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("QTX_TEST_REDIS_ADDR not set; skipping redis-backed cache tests")
	}

	client, err := Connect(context.Background(), config.RedisConfig{Addr: addr})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	runCacheContract(t, NewRedisCache(client, zap.NewNop()))
}
