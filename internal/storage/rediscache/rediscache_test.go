package rediscache

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

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return New(client), mr
}

func TestConsumeMatchDeletesEntry(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()
	userID := uuid.New()

	require.NoError(t, cache.SetVerificationToken(ctx, userID, "tok-1", time.Hour))

	ok, err := cache.ConsumeVerificationToken(ctx, userID, "tok-1")
	require.NoError(t, err)
	assert.True(t, ok)

	// Single use: gone after the first successful consume.
	ok, err = cache.ConsumeVerificationToken(ctx, userID, "tok-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestConsumeMismatchKeepsEntry(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()
	userID := uuid.New()

	require.NoError(t, cache.SetVerificationToken(ctx, userID, "tok-1", time.Hour))

	ok, err := cache.ConsumeVerificationToken(ctx, userID, "wrong")
	require.NoError(t, err)
	assert.False(t, ok)

	// A mismatch must not burn the real token.
	ok, err = cache.ConsumeVerificationToken(ctx, userID, "tok-1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestConsumeAbsentIsFalse(t *testing.T) {
	cache, _ := newTestCache(t)

	ok, err := cache.ConsumeVerificationToken(context.Background(), uuid.New(), "anything")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEntryExpires(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()
	userID := uuid.New()

	require.NoError(t, cache.SetVerificationToken(ctx, userID, "tok-1", time.Minute))

	mr.FastForward(2 * time.Minute)

	ok, err := cache.ConsumeVerificationToken(ctx, userID, "tok-1")
	require.NoError(t, err)
	assert.False(t, ok, "expired entry reads as absent, not as an error")
}

func TestReissueOverwrites(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()
	userID := uuid.New()

	require.NoError(t, cache.SetVerificationToken(ctx, userID, "old", time.Hour))
	require.NoError(t, cache.SetVerificationToken(ctx, userID, "new", time.Hour))

	ok, err := cache.ConsumeVerificationToken(ctx, userID, "old")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = cache.ConsumeVerificationToken(ctx, userID, "new")
	require.NoError(t, err)
	assert.True(t, ok)
}
