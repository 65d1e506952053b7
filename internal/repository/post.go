package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"press/internal/cache"
	"press/internal/database"
	"press/internal/models"

	"gorm.io/gorm"
)

// PostRepository defines the interface for post data operations.
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uint) (*models.Post, error)
	GetByUserID(ctx context.Context, userID uint) (*models.Post, error)
	Update(ctx context.Context, post *models.Post) error
	Trending(ctx context.Context, asOf time.Time, gravity float64, limit, offset int) ([]*models.Post, error)
	FollowedBy(ctx context.Context, userID uint, limit, offset int) ([]*models.Post, error)
	RecountEngagement(ctx context.Context, postID uint, kind models.EngagementKind) error
	RecountComments(ctx context.Context, postID uint) error
	RecountAll(ctx context.Context) (int64, error)
}

type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new post repository.
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	if err := r.db.WithContext(ctx).Create(post).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return models.NewConflictError("You already have a post", err)
		}
		return models.NewInternalError(err)
	}
	cache.InvalidateTrending(ctx)
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	err := cache.Aside(ctx, cache.PostKey(id), &post, cache.PostTTL, func() error {
		if err := r.db.WithContext(ctx).Preload("User.Profile").First(&post, id).Error; err != nil {
			return lookupError(err, "Post", id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// GetByUserID returns nil, nil when the user has not created a post yet.
func (r *postRepository) GetByUserID(ctx context.Context, userID uint) (*models.Post, error) {
	var post models.Post
	if err := r.db.WithContext(ctx).Preload("User.Profile").Where("user_id = ?", userID).First(&post).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &post, nil
}

// Update writes title and content only; the counters belong to the recount queries.
func (r *postRepository) Update(ctx context.Context, post *models.Post) error {
	err := r.db.WithContext(ctx).
		Model(post).
		Select("title", "content", "updated_at", "updated_unix").
		Updates(post).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidatePost(ctx, post.ID)
	cache.InvalidateTrending(ctx)
	return nil
}

// trendingScore is (like_count - 1) / (age + 1)^gravity with age in seconds
// measured from updated_unix to the caller's clock, floored at zero.
const trendingScore = "CAST(posts.like_count - 1 AS DOUBLE PRECISION) / " +
	"POWER(CAST(CASE WHEN ? > posts.updated_unix THEN ? - posts.updated_unix ELSE 0 END AS DOUBLE PRECISION) + 1.0, ?)"

// Trending returns one page of posts ordered by decaying score, highest first.
// Ties fall back to the newest post id so pages never overlap.
func (r *postRepository) Trending(ctx context.Context, asOf time.Time, gravity float64, limit, offset int) ([]*models.Post, error) {
	now := asOf.Unix()
	var posts []*models.Post
	err := r.db.WithContext(ctx).
		Model(&models.Post{}).
		Select("posts.*, "+trendingScore+" AS score", now, now, gravity).
		Preload("User.Profile").
		Order("score DESC").
		Order("posts.id DESC").
		Limit(limit).
		Offset(offset).
		Find(&posts).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}

// FollowedBy returns the posts userID actively follows, most recently followed first.
// Columns are pinned to posts.*; with a join gorm would also select the computed Score.
func (r *postRepository) FollowedBy(ctx context.Context, userID uint, limit, offset int) ([]*models.Post, error) {
	var posts []*models.Post
	err := r.db.WithContext(ctx).
		Select("posts.*").
		Preload("User.Profile").
		Joins("JOIN follows ON follows.post_id = posts.id AND follows.user_id = ? AND follows.active = ?", userID, true).
		Order("follows.updated_at DESC").
		Order("posts.id DESC").
		Limit(limit).
		Offset(offset).
		Find(&posts).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}

func engagementCount(kind models.EngagementKind) string {
	t := kind.Table()
	return fmt.Sprintf("(SELECT COUNT(*) FROM %s WHERE %s.post_id = posts.id AND %s.active = ?)", t, t, t)
}

const commentCount = "(SELECT COUNT(*) FROM comments WHERE comments.content_type = ? AND comments.object_id = posts.id)"

// RecountEngagement sets the like or follow counter of a post from its active rows.
func (r *postRepository) RecountEngagement(ctx context.Context, postID uint, kind models.EngagementKind) error {
	err := r.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("id = ?", postID).
		UpdateColumn(kind.CountColumn(), gorm.Expr(engagementCount(kind), true)).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidatePost(ctx, postID)
	if kind == models.EngagementLike {
		cache.InvalidateTrending(ctx)
	}
	return nil
}

// RecountComments sets the comment counter of a post from its comment rows.
func (r *postRepository) RecountComments(ctx context.Context, postID uint) error {
	err := r.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("id = ?", postID).
		UpdateColumn("comment_count", gorm.Expr(commentCount, models.ContentTypePost)).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidatePost(ctx, postID)
	return nil
}

// RecountAll recomputes every counter of every post and returns the number of posts touched.
func (r *postRepository) RecountAll(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).
		Session(&gorm.Session{AllowGlobalUpdate: true}).
		Model(&models.Post{}).
		UpdateColumns(map[string]interface{}{
			"like_count":    gorm.Expr(engagementCount(models.EngagementLike), true),
			"follow_count":  gorm.Expr(engagementCount(models.EngagementFollow), true),
			"comment_count": gorm.Expr(commentCount, models.ContentTypePost),
		})
	if res.Error != nil {
		return 0, models.NewInternalError(res.Error)
	}
	cache.InvalidateTrending(ctx)
	return res.RowsAffected, nil
}
