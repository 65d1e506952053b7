package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	PostKeyPrefix        = "post:%d"
	TrendingVersionKey   = "feed:trending:version"
	TrendingPageKeyShape = "feed:trending:v%d:%d:%d"
)

const (
	PostTTL     = 30 * time.Minute
	TrendingTTL = 30 * time.Second
)

func PostKey(postID uint) string {
	return fmt.Sprintf(PostKeyPrefix, postID)
}

// TrendingPageKey names one cached trending page under the current version.
func TrendingPageKey(ctx context.Context, page, pageSize int) string {
	return fmt.Sprintf(TrendingPageKeyShape, trendingVersion(ctx), page, pageSize)
}

func trendingVersion(ctx context.Context) int64 {
	if client == nil {
		return 0
	}
	v, err := client.Get(ctx, TrendingVersionKey).Int64()
	if err != nil {
		return 0
	}
	return v
}

func Invalidate(ctx context.Context, key string) {
	if client != nil {
		client.Del(ctx, key)
	}
}

func InvalidatePost(ctx context.Context, postID uint) {
	Invalidate(ctx, PostKey(postID))
}

// InvalidateTrending retires every cached trending page by bumping the version;
// stale pages expire on their own TTL.
func InvalidateTrending(ctx context.Context) {
	if client != nil {
		client.Incr(ctx, TrendingVersionKey)
	}
}
