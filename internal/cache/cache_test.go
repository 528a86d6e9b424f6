package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withMiniRedis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	SetClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { SetClient(nil) })
	return mr
}

type payload struct {
	Name string `json:"name"`
}

func TestAside_MissThenHit(t *testing.T) {
	withMiniRedis(t)
	ctx := context.Background()
	calls := 0
	fetch := func(dest *payload) func() error {
		return func() error {
			calls++
			dest.Name = "fresh"
			return nil
		}
	}

	var first payload
	require.NoError(t, Aside(ctx, "k", &first, UserTTL, fetch(&first)))
	var second payload
	require.NoError(t, Aside(ctx, "k", &second, UserTTL, fetch(&second)))

	assert.Equal(t, 1, calls)
	assert.Equal(t, "fresh", second.Name)
}

func TestAside_FetchErrorIsNotCached(t *testing.T) {
	mr := withMiniRedis(t)
	boom := errors.New("db down")

	var dest payload
	err := Aside(context.Background(), "k", &dest, UserTTL, func() error { return boom })

	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists("k"))
}

func TestAside_WithoutRedisAlwaysFetches(t *testing.T) {
	SetClient(nil)
	calls := 0
	var dest payload
	for i := 0; i < 2; i++ {
		require.NoError(t, Aside(context.Background(), "k", &dest, UserTTL, func() error { calls++; return nil }))
	}
	assert.Equal(t, 2, calls)
}

func TestInvalidatePosts_ChangesKeys(t *testing.T) {
	withMiniRedis(t)
	ctx := context.Background()

	before := PostsListKey(ctx, "page=1")
	InvalidatePosts(ctx)
	after := PostsListKey(ctx, "page=1")

	assert.Equal(t, "posts:v0:list:page=1", before)
	assert.Equal(t, "posts:v1:list:page=1", after)
	assert.Equal(t, "posts:v1:detail:hello-world", PostDetailKey(ctx, "hello-world"))
}

func TestInvalidateUser(t *testing.T) {
	mr := withMiniRedis(t)
	require.NoError(t, mr.Set(UserKey(3), "{}"))

	InvalidateUser(context.Background(), 3)

	assert.False(t, mr.Exists(UserKey(3)))
}
