package db

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slackhooks/models"
)

func setupRedisStore(t *testing.T) (*RedisOAuthStatesStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisOAuthStatesStore(client), mr
}

func TestRedisOAuthStatesStore_SaveFindDelete(t *testing.T) {
	ctx := context.Background()
	store, mr := setupRedisStore(t)
	now := time.Now().UTC().Truncate(time.Second)

	redirect := "https://example.com/done"
	state := models.NewOAuthState("tok", &redirect, now, models.OAuthStateTTL)
	require.NoError(t, store.Save(ctx, state))

	assert.True(t, mr.Exists("oauth_state:tok"))
	ttl := mr.TTL("oauth_state:tok")
	assert.True(t, ttl > 9*time.Minute && ttl <= 10*time.Minute, "ttl should track expiry, got %s", ttl)

	found, err := store.Find(ctx, "tok")
	require.NoError(t, err)
	require.True(t, found.IsPresent())
	assert.Equal(t, "tok", found.MustGet().Token)
	assert.Equal(t, redirect, *found.MustGet().RedirectURI)
	assert.True(t, state.ExpiresAt.Equal(found.MustGet().ExpiresAt))

	require.NoError(t, store.Delete(ctx, "tok"))
	found, err = store.Find(ctx, "tok")
	require.NoError(t, err)
	assert.True(t, found.IsAbsent())
}

func TestRedisOAuthStatesStore_VerifyAndConsume(t *testing.T) {
	ctx := context.Background()
	store, mr := setupRedisStore(t)
	now := time.Now().UTC()

	require.NoError(t, store.Save(ctx, models.NewOAuthState("tok", nil, now, models.OAuthStateTTL)))

	got, err := store.VerifyAndConsume(ctx, "tok", now)
	require.NoError(t, err)
	assert.True(t, got.IsPresent())
	assert.False(t, mr.Exists("oauth_state:tok"))

	got, err = store.VerifyAndConsume(ctx, "tok", now)
	require.NoError(t, err)
	assert.True(t, got.IsAbsent())
}

func TestRedisOAuthStatesStore_ExpiredIsDeletedOnConsume(t *testing.T) {
	ctx := context.Background()
	store, mr := setupRedisStore(t)
	now := time.Now().UTC()

	require.NoError(t, store.Save(ctx, models.NewOAuthState("tok", nil, now, models.OAuthStateTTL)))

	got, err := store.VerifyAndConsume(ctx, "tok", now.Add(11*time.Minute))
	require.NoError(t, err)
	assert.True(t, got.IsAbsent())
	assert.False(t, mr.Exists("oauth_state:tok"))
}

func TestRedisOAuthStatesStore_CleanupExpired(t *testing.T) {
	ctx := context.Background()
	store, mr := setupRedisStore(t)
	now := time.Now().UTC()

	require.NoError(t, store.Save(ctx, models.NewOAuthState("fresh", nil, now, models.OAuthStateTTL)))
	require.NoError(t, store.Save(ctx, models.NewOAuthState("stale", nil, now.Add(-9*time.Minute), models.OAuthStateTTL)))
	require.NoError(t, mr.Set("unrelated", "x"))

	removed, err := store.CleanupExpired(ctx, now.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
	assert.True(t, mr.Exists("oauth_state:fresh"))
	assert.False(t, mr.Exists("oauth_state:stale"))
	assert.True(t, mr.Exists("unrelated"))
}

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewRedisClient(context.Background(), "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	assert.NoError(t, client.Close())

	_, err = NewRedisClient(context.Background(), "not a url")
	assert.Error(t, err)
}
