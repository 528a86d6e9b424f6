package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	UserKeyPrefix       = "user:%d"
	PostsVersionKey     = "posts:version"
	PostsListKeyPrefix  = "posts:v%d:list:%s"
	PostDetailKeyPrefix = "posts:v%d:detail:%s"
	BlacklistKeyPrefix  = "blacklist:%s"
)

const (
	UserTTL       = 5 * time.Minute
	PostsListTTL  = 2 * time.Minute
	PostDetailTTL = 5 * time.Minute
)

func UserKey(userID uint) string {
	return fmt.Sprintf(UserKeyPrefix, userID)
}

// PostsVersion returns the current generation of post-derived keys.
// Without Redis, or on error, it returns 0.
func PostsVersion(ctx context.Context) int64 {
	if client == nil {
		return 0
	}
	v, err := client.Get(ctx, PostsVersionKey).Int64()
	if err != nil {
		return 0
	}
	return v
}

// PostsListKey keys one anonymous list page; query is the normalised query string.
func PostsListKey(ctx context.Context, query string) string {
	return fmt.Sprintf(PostsListKeyPrefix, PostsVersion(ctx), query)
}

// PostDetailKey keys an anonymous post detail by id or slug.
func PostDetailKey(ctx context.Context, idOrSlug string) string {
	return fmt.Sprintf(PostDetailKeyPrefix, PostsVersion(ctx), idOrSlug)
}

// BlacklistKey keys a revoked token id.
func BlacklistKey(jti string) string {
	return fmt.Sprintf(BlacklistKeyPrefix, jti)
}

func Invalidate(ctx context.Context, key string) {
	if client != nil {
		client.Del(ctx, key)
	}
}

func InvalidateUser(ctx context.Context, userID uint) {
	Invalidate(ctx, UserKey(userID))
}

// InvalidatePosts retires every cached post list and detail by bumping the version.
func InvalidatePosts(ctx context.Context) {
	if client != nil {
		client.Incr(ctx, PostsVersionKey)
	}
}
