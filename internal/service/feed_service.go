package service

import (
	"context"
	"time"

	"press/internal/cache"
	"press/internal/models"
	"press/internal/observability"
	"press/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

const (
	DefaultPageSize = 15
	MaxPageSize     = 100
	DefaultGravity  = 1.8
)

// normalizePage clamps page to at least 1 and size into [1, MaxPageSize].
func normalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return page, size
}

// TrendingPage is one page of the trending feed. Posts carry their score.
type TrendingPage struct {
	Posts   []*models.Post `json:"posts"`
	Page    int            `json:"page"`
	HasNext bool           `json:"has_next"`
}

// FeedService ranks posts for the home page.
type FeedService struct {
	posts   repository.PostRepository
	gravity float64
	now     func() time.Time
}

func NewFeedService(posts repository.PostRepository, gravity float64) *FeedService {
	if gravity <= 0 {
		gravity = DefaultGravity
	}
	return &FeedService{posts: posts, gravity: gravity, now: time.Now}
}

// Trending returns one page of posts ordered by hot score, scored as of now.
// Pages are cached for cache.TrendingTTL.
func (s *FeedService) Trending(ctx context.Context, page, size int) (*TrendingPage, error) {
	return s.trending(ctx, page, size, s.now(), true)
}

// TrendingAsOf scores posts against asOf instead of the wall clock. It always
// reads the database; cached pages were scored at another instant.
func (s *FeedService) TrendingAsOf(ctx context.Context, page, size int, asOf time.Time) (*TrendingPage, error) {
	return s.trending(ctx, page, size, asOf, false)
}

// trending reads one extra row beyond the page to tell whether another page exists.
func (s *FeedService) trending(ctx context.Context, page, size int, asOf time.Time, cached bool) (*TrendingPage, error) {
	page, size = normalizePage(page, size)

	span, ctx := observability.NewSpan(ctx, "feed.trending",
		attribute.Int("page", page),
		attribute.Int("page_size", size),
		attribute.Bool("cached", cached),
	)
	defer span.End()
	defer observability.ObserveSince(observability.TrendingQueryLatency, time.Now())

	var posts []*models.Post
	fetch := func() error {
		var err error
		posts, err = s.posts.Trending(ctx, asOf, s.gravity, size+1, (page-1)*size)
		return err
	}
	var err error
	if cached {
		err = cache.Aside(ctx, cache.TrendingPageKey(ctx, page, size), &posts, cache.TrendingTTL, fetch)
	} else {
		err = fetch()
	}
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	out := &TrendingPage{Page: page}
	if len(posts) > size {
		out.HasNext = true
		posts = posts[:size]
	}
	out.Posts = posts
	return out, nil
}

// FollowingPage is one page of posts a user follows.
type FollowingPage struct {
	Posts   []*models.Post `json:"posts"`
	Page    int            `json:"page"`
	HasNext bool           `json:"has_next"`
}

// Following returns the posts userID actively follows.
func (s *FeedService) Following(ctx context.Context, userID uint, page, size int) (*FollowingPage, error) {
	page, size = normalizePage(page, size)
	posts, err := s.posts.FollowedBy(ctx, userID, size+1, (page-1)*size)
	if err != nil {
		return nil, err
	}
	out := &FollowingPage{Page: page}
	if len(posts) > size {
		out.HasNext = true
		posts = posts[:size]
	}
	out.Posts = posts
	return out, nil
}
