package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"press/internal/models"

	"gorm.io/gorm"
)

// EngagementRepository stores likes and follows. Each (post, user) pair has at
// most one row per kind; its Active flag is the current state.
type EngagementRepository interface {
	Get(ctx context.Context, kind models.EngagementKind, postID, userID uint) (*models.Engagement, error)
	Set(ctx context.Context, kind models.EngagementKind, postID, userID uint, active bool) (*models.Engagement, bool, error)
	PostIDsByUser(ctx context.Context, userID uint) ([]uint, error)
	RemoveDuplicates(ctx context.Context, kind models.EngagementKind) (int64, error)
}

type engagementRepository struct {
	db *gorm.DB
}

// NewEngagementRepository creates a new EngagementRepository.
func NewEngagementRepository(db *gorm.DB) EngagementRepository {
	return &engagementRepository{db: db}
}

// Get returns nil, nil when the user never engaged with the post.
func (r *engagementRepository) Get(ctx context.Context, kind models.EngagementKind, postID, userID uint) (*models.Engagement, error) {
	var row models.Engagement
	err := r.db.WithContext(ctx).
		Table(kind.Table()).
		Where("post_id = ? AND user_id = ?", postID, userID).
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	row.Kind = kind
	return &row, nil
}

// Set moves the pair to the requested state with a single conditional upsert and
// reports whether a row was written. A write that finds the pair already in
// that state affects no row, so concurrent callers see exactly one transition.
func (r *engagementRepository) Set(ctx context.Context, kind models.EngagementKind, postID, userID uint, active bool) (*models.Engagement, bool, error) {
	table := kind.Table()
	now := time.Now().UTC()
	upsert := fmt.Sprintf(
		"INSERT INTO %[1]s (post_id, user_id, active, created_at, updated_at) VALUES (?, ?, ?, ?, ?) "+
			"ON CONFLICT (post_id, user_id) DO UPDATE SET active = excluded.active, updated_at = excluded.updated_at "+
			"WHERE %[1]s.active <> excluded.active",
		table,
	)

	res := r.db.WithContext(ctx).Exec(upsert, postID, userID, active, now, now)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrForeignKeyViolated) {
			return nil, false, models.NewNotFoundError("Post", postID)
		}
		return nil, false, models.NewInternalError(res.Error)
	}

	row, err := r.Get(ctx, kind, postID, userID)
	if err != nil {
		return nil, false, err
	}
	if row == nil {
		return nil, false, models.NewInternalError(fmt.Errorf("%s row for post %d user %d vanished after write", kind, postID, userID))
	}
	return row, res.RowsAffected > 0, nil
}

// PostIDsByUser lists the posts the user has a like or follow row on.
func (r *engagementRepository) PostIDsByUser(ctx context.Context, userID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Raw(
		"SELECT post_id FROM likes WHERE user_id = ? UNION SELECT post_id FROM follows WHERE user_id = ?",
		userID, userID,
	).Scan(&ids).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return ids, nil
}

// RemoveDuplicates deletes every row of kind that repeats an earlier (post, user)
// pair, keeping the lowest id, and returns how many rows went.
func (r *engagementRepository) RemoveDuplicates(ctx context.Context, kind models.EngagementKind) (int64, error) {
	table := kind.Table()
	res := r.db.WithContext(ctx).Exec(fmt.Sprintf(
		"DELETE FROM %[1]s WHERE id NOT IN (SELECT MIN(id) FROM %[1]s GROUP BY post_id, user_id)",
		table,
	))
	if res.Error != nil {
		return 0, models.NewInternalError(res.Error)
	}
	return res.RowsAffected, nil
}
