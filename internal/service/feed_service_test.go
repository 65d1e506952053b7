package service

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"press/internal/cache"
	"press/internal/models"
	"press/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePage(t *testing.T) {
	t.Parallel()
	tests := []struct {
		page, size         int
		wantPage, wantSize int
	}{
		{0, 0, 1, DefaultPageSize},
		{-3, 5, 1, 5},
		{2, 1000, 2, MaxPageSize},
		{4, 20, 4, 20},
	}
	for _, tt := range tests {
		p, s := normalizePage(tt.page, tt.size)
		assert.Equal(t, tt.wantPage, p)
		assert.Equal(t, tt.wantSize, s)
	}
}

func TestFeedService_FresherPostRanksHigher(t *testing.T) {
	f := newFixture(t)
	now := time.Unix(1_700_000_000, 0)

	fresh := testutil.CreatePost(t, f.db, testutil.CreateUser(t, f.db, "fresh"), "fresh")
	stale := testutil.CreatePost(t, f.db, testutil.CreateUser(t, f.db, "stale"), "stale")
	f.stamp(t, fresh.ID, 5, now.Add(-time.Second))
	f.stamp(t, stale.ID, 5, now.Add(-time.Hour))

	page, err := f.feed.TrendingAsOf(context.Background(), 1, 10, now)
	require.NoError(t, err)
	require.Len(t, page.Posts, 2)
	assert.Equal(t, fresh.ID, page.Posts[0].ID)
	assert.Equal(t, stale.ID, page.Posts[1].ID)
	assert.Greater(t, page.Posts[0].Score, page.Posts[1].Score)
	assert.InDelta(t, 4.0/math.Pow(2, 1.8), page.Posts[0].Score, 1e-9)
	assert.False(t, page.HasNext)
}

func TestFeedService_PagesAreNonIncreasing(t *testing.T) {
	f := newFixture(t)
	now := time.Unix(1_700_000_000, 0)

	for i := 0; i < 7; i++ {
		u := testutil.CreateUser(t, f.db, fmt.Sprintf("writer%d", i))
		p := testutil.CreatePost(t, f.db, u, "post")
		f.stamp(t, p.ID, int64(i%4), now.Add(-time.Duration(i*10)*time.Minute))
	}

	var all []*models.Post
	for page := 1; ; page++ {
		got, err := f.feed.TrendingAsOf(context.Background(), page, 3, now)
		require.NoError(t, err)
		assert.Equal(t, page, got.Page)
		all = append(all, got.Posts...)
		if !got.HasNext {
			break
		}
		require.Len(t, got.Posts, 3)
	}

	require.Len(t, all, 7)
	seen := map[uint]bool{}
	for i, p := range all {
		assert.False(t, seen[p.ID], "post %d appears twice", p.ID)
		seen[p.ID] = true
		if i > 0 {
			assert.GreaterOrEqual(t, all[i-1].Score, p.Score)
		}
	}
}

func TestFeedService_TrendingAsOfBypassesCache(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	cache.SetClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() {
		_ = cache.GetClient().Close()
		cache.SetClient(nil)
		mr.Close()
	})

	f := newFixture(t)
	ctx := context.Background()
	t0 := time.Unix(1_700_000_000, 0)

	popular := testutil.CreatePost(t, f.db, testutil.CreateUser(t, f.db, "popular"), "popular")
	recent := testutil.CreatePost(t, f.db, testutil.CreateUser(t, f.db, "recent"), "recent")
	f.stamp(t, popular.ID, 3, t0)
	f.stamp(t, recent.ID, 2, t0.Add(100*time.Second))

	// Shortly after the second update the fresher post leads.
	early := t0.Add(100 * time.Second)
	f.feed.now = func() time.Time { return early }
	page, err := f.feed.Trending(ctx, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, []uint{recent.ID, popular.ID}, postIDs(page.Posts))
	assert.True(t, mr.Exists(cache.TrendingPageKey(ctx, 1, 10)))

	// Much later age evens out and the extra like wins.
	late := t0.Add(1_000_000 * time.Second)
	page, err = f.feed.TrendingAsOf(ctx, 1, 10, late)
	require.NoError(t, err)
	assert.Equal(t, []uint{popular.ID, recent.ID}, postIDs(page.Posts))

	// The cached page is still served to wall-clock readers until it expires.
	f.feed.now = func() time.Time { return late }
	page, err = f.feed.Trending(ctx, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, []uint{recent.ID, popular.ID}, postIDs(page.Posts))
}

func TestFeedService_Following(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reader := testutil.CreateUser(t, f.db, "reader")
	a := testutil.CreatePost(t, f.db, testutil.CreateUser(t, f.db, "a"), "a")
	b := testutil.CreatePost(t, f.db, testutil.CreateUser(t, f.db, "b"), "b")
	testutil.CreatePost(t, f.db, testutil.CreateUser(t, f.db, "c"), "c")

	for _, p := range []*models.Post{a, b} {
		_, err := f.counter.Set(ctx, SetEngagementInput{Kind: models.EngagementFollow, PostID: p.ID, UserID: reader.ID, Active: true})
		require.NoError(t, err)
	}
	// A like alone does not put a post in the following feed.
	_, err := f.counter.Set(ctx, SetEngagementInput{Kind: models.EngagementLike, PostID: a.ID, UserID: reader.ID, Active: true})
	require.NoError(t, err)

	page, err := f.feed.Following(ctx, reader.ID, 1, 10)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint{a.ID, b.ID}, postIDs(page.Posts))

	_, err = f.counter.Toggle(ctx, models.EngagementFollow, a.ID, reader.ID)
	require.NoError(t, err)

	page, err = f.feed.Following(ctx, reader.ID, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, []uint{b.ID}, postIDs(page.Posts))

	page, err = f.feed.Following(ctx, reader.ID, 1, 1)
	require.NoError(t, err)
	assert.False(t, page.HasNext)
}

func postIDs(posts []*models.Post) []uint {
	ids := make([]uint, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}
	return ids
}
