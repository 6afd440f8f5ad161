package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Kadacheahmedrami/Email-Craft/pkg/cache"
)

func TestMemory_SetGet(t *testing.T) {
	t.Parallel()

	c := cache.NewMemory[string](cache.WithCleanupInterval(0))
	defer c.Close()

	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k", "v", time.Minute))

	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "v", got)
}

func TestMemory_GetMissing(t *testing.T) {
	t.Parallel()

	c := cache.NewMemory[int](cache.WithCleanupInterval(0))
	defer c.Close()

	_, err := c.Get(context.Background(), "missing")
	require.ErrorIs(t, err, cache.ErrNotFound)
}

func TestMemory_Expiration(t *testing.T) {
	t.Parallel()

	c := cache.NewMemory[string](cache.WithCleanupInterval(0))
	defer c.Close()

	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "short", "v", 10*time.Millisecond))

	time.Sleep(20 * time.Millisecond)

	_, err := c.Get(ctx, "short")
	require.ErrorIs(t, err, cache.ErrNotFound)
}

func TestMemory_NegativeTTLNeverExpires(t *testing.T) {
	t.Parallel()

	c := cache.NewMemory[string](
		cache.WithCleanupInterval(0),
		cache.WithDefaultTTL(time.Nanosecond),
	)
	defer c.Close()

	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k", "v", -1))

	time.Sleep(5 * time.Millisecond)

	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "v", got)
}

func TestMemory_LRUEviction(t *testing.T) {
	t.Parallel()

	c := cache.NewMemory[int](
		cache.WithCleanupInterval(0),
		cache.WithMaxEntries(2),
	)
	defer c.Close()

	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "a", 1, time.Minute))
	require.NoError(t, c.Set(ctx, "b", 2, time.Minute))

	// Touch "a" so "b" becomes the LRU candidate.
	_, err := c.Get(ctx, "a")
	require.NoError(t, err)

	require.NoError(t, c.Set(ctx, "c", 3, time.Minute))

	_, err = c.Get(ctx, "b")
	require.ErrorIs(t, err, cache.ErrNotFound)

	got, err := c.Get(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, 1, got)
}

func TestMemory_Delete(t *testing.T) {
	t.Parallel()

	c := cache.NewMemory[string](cache.WithCleanupInterval(0))
	defer c.Close()

	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k", "v", time.Minute))
	require.NoError(t, c.Delete(ctx, "k"))

	_, err := c.Get(ctx, "k")
	require.ErrorIs(t, err, cache.ErrNotFound)
}

func TestMemory_ClosedRejectsWrites(t *testing.T) {
	t.Parallel()

	c := cache.NewMemory[string](cache.WithCleanupInterval(0))
	require.NoError(t, c.Close())
	require.NoError(t, c.Close()) // idempotent

	err := c.Set(context.Background(), "k", "v", time.Minute)
	require.ErrorIs(t, err, cache.ErrClosed)
}
