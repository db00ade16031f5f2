package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestCache(t *testing.T, ttl time.Duration) (*ProgressCache, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return NewProgressCache(client, ttl), mr
}

func TestProgressCacheSetGet(t *testing.T) {
	cache, _ := setupTestCache(t, time.Minute)
	ctx := context.Background()
	jobID := uuid.New()

	stamp := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, cache.Set(ctx, jobID, Progress{Status: "processing", ProcessedRows: 120, TotalRows: 400, UpdatedAt: stamp}))

	got, ok, err := cache.Get(ctx, jobID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "processing", got.Status)
	assert.Equal(t, 120, got.ProcessedRows)
	assert.Equal(t, 400, got.TotalRows)
	assert.True(t, stamp.Equal(got.UpdatedAt))
}

func TestProgressCacheMissingEntry(t *testing.T) {
	cache, _ := setupTestCache(t, time.Minute)

	_, ok, err := cache.Get(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestProgressCacheExpiry(t *testing.T) {
	cache, mr := setupTestCache(t, 30*time.Second)
	ctx := context.Background()
	jobID := uuid.New()

	require.NoError(t, cache.Set(ctx, jobID, Progress{Status: "processing", ProcessedRows: 1, TotalRows: 2}))
	assert.Equal(t, 30*time.Second, mr.TTL(key(jobID)))

	mr.FastForward(31 * time.Second)
	_, ok, err := cache.Get(ctx, jobID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestProgressCacheDelete(t *testing.T) {
	cache, _ := setupTestCache(t, time.Minute)
	ctx := context.Background()
	jobID := uuid.New()

	require.NoError(t, cache.Set(ctx, jobID, Progress{Status: "processing"}))
	require.NoError(t, cache.Delete(ctx, jobID))

	_, ok, err := cache.Get(ctx, jobID)
	require.NoError(t, err)
	assert.False(t, ok)
}
