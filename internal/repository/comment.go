package repository

import (
	"context"
	"errors"
	"hash/fnv"
	"time"

	"press/internal/database"
	"press/internal/models"
	"press/internal/tree"

	"gorm.io/gorm"
)

// CommentRepository stores threaded comments and keeps their nested-set index consistent.
type CommentRepository interface {
	Insert(ctx context.Context, comment *models.Comment, order tree.Order) error
	GetByID(ctx context.Context, id uint) (*models.Comment, error)
	ListByObject(ctx context.Context, ref models.ObjectRef) ([]*models.Comment, error)
	CountByObject(ctx context.Context, ref models.ObjectRef) (int64, error)
	Move(ctx context.Context, commentID uint, parentID *uint, order tree.Order) (*models.Comment, error)
	MarkOld(ctx context.Context, ref models.ObjectRef) (int64, error)
	Nodes(ctx context.Context, ref models.ObjectRef) ([]tree.Node, error)
	Objects(ctx context.Context) ([]models.ObjectRef, error)
	RebuildObject(ctx context.Context, ref models.ObjectRef, order tree.Order) error
	DeleteByAuthor(ctx context.Context, userID uint, order tree.Order) ([]models.ObjectRef, error)
	DeleteByObject(ctx context.Context, ref models.ObjectRef) error
}

type commentRepository struct {
	db *gorm.DB
}

// NewCommentRepository creates a new CommentRepository.
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db}
}

// Insert places comment in its object's forest. A top-level comment opens a new
// tree; a reply is slotted among its siblings by submission time. The whole
// update runs in one transaction holding the object's lock.
func (r *commentRepository) Insert(ctx context.Context, comment *models.Comment, order tree.Order) error {
	if comment.SubmittedAt.IsZero() {
		comment.SubmittedAt = time.Now().UTC()
	}
	ref := comment.Ref()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockObject(tx, ref); err != nil {
			return err
		}

		if comment.ParentID == nil {
			var roots []models.Comment
			if err := tx.Scopes(objectScope(ref)).Where("parent_id IS NULL").Find(&roots).Error; err != nil {
				return err
			}
			pos := tree.RootPosition(nodesOf(roots), comment.SubmittedAt, order)
			if pos.ShiftFrom != 0 {
				if err := tx.Model(&models.Comment{}).Scopes(objectScope(ref)).
					Where("tree_id >= ?", pos.ShiftFrom).
					UpdateColumn("tree_id", gorm.Expr("tree_id + 1")).Error; err != nil {
					return err
				}
			}
			comment.TreeID, comment.Lft, comment.Rgt, comment.Level = pos.TreeID, 1, 2, 0
			return tx.Create(comment).Error
		}

		var parent models.Comment
		if err := tx.First(&parent, *comment.ParentID).Error; err != nil {
			return lookupError(err, "Comment", *comment.ParentID)
		}
		if parent.Ref() != ref {
			return models.NewValidationError("Parent comment belongs to a different object")
		}

		var siblings []models.Comment
		if err := tx.Where("parent_id = ?", parent.ID).Find(&siblings).Error; err != nil {
			return err
		}
		pos := tree.ChildPosition(nodeOf(&parent), nodesOf(siblings), comment.SubmittedAt, order)

		inTree := tx.Model(&models.Comment{}).Scopes(objectScope(ref)).Where("tree_id = ?", pos.TreeID)
		if err := inTree.Session(&gorm.Session{}).Where("lft >= ?", pos.ShiftFrom).
			UpdateColumn("lft", gorm.Expr("lft + 2")).Error; err != nil {
			return err
		}
		if err := inTree.Session(&gorm.Session{}).Where("rgt >= ?", pos.ShiftFrom).
			UpdateColumn("rgt", gorm.Expr("rgt + 2")).Error; err != nil {
			return err
		}

		comment.TreeID, comment.Lft, comment.Rgt, comment.Level = pos.TreeID, pos.Lft, pos.Rgt, pos.Level
		return tx.Create(comment).Error
	})
	return storageError(err)
}

func (r *commentRepository) GetByID(ctx context.Context, id uint) (*models.Comment, error) {
	var comment models.Comment
	if err := r.db.WithContext(ctx).Preload("User.Profile").First(&comment, id).Error; err != nil {
		return nil, lookupError(err, "Comment", id)
	}
	return &comment, nil
}

// ListByObject returns the object's comments in display order: each thread in
// turn, every reply right after its parent.
func (r *commentRepository) ListByObject(ctx context.Context, ref models.ObjectRef) ([]*models.Comment, error) {
	var comments []*models.Comment
	err := r.db.WithContext(ctx).
		Preload("User.Profile").
		Scopes(objectScope(ref)).
		Order("tree_id ASC").
		Order("lft ASC").
		Find(&comments).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return comments, nil
}

func (r *commentRepository) CountByObject(ctx context.Context, ref models.ObjectRef) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.Comment{}).Scopes(objectScope(ref)).Count(&n).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return n, nil
}

// Move re-parents a comment (nil makes it top-level) and renumbers the object's
// forest. Moving a comment under itself or one of its replies is a CYCLE error.
func (r *commentRepository) Move(ctx context.Context, commentID uint, parentID *uint, order tree.Order) (*models.Comment, error) {
	var moved models.Comment
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&moved, commentID).Error; err != nil {
			return lookupError(err, "Comment", commentID)
		}
		ref := moved.Ref()
		if err := lockObject(tx, ref); err != nil {
			return err
		}

		var all []models.Comment
		if err := tx.Scopes(objectScope(ref)).Find(&all).Error; err != nil {
			return err
		}
		parents := make(map[uint]*uint, len(all))
		for i := range all {
			parents[all[i].ID] = all[i].ParentID
		}

		if parentID != nil {
			var parent models.Comment
			if err := tx.First(&parent, *parentID).Error; err != nil {
				return lookupError(err, "Comment", *parentID)
			}
			if parent.Ref() != ref {
				return models.NewValidationError("Parent comment belongs to a different object")
			}
			if tree.WouldCycle(parents, moved.ID, parentID) {
				return models.NewCycleError(moved.ID, *parentID)
			}
		}

		if err := tx.Model(&models.Comment{}).Where("id = ?", moved.ID).
			UpdateColumn("parent_id", parentID).Error; err != nil {
			return err
		}
		for i := range all {
			if all[i].ID == moved.ID {
				all[i].ParentID = parentID
			}
		}
		return renumber(tx, all, order)
	})
	if err != nil {
		return nil, storageError(err)
	}
	return r.GetByID(ctx, commentID)
}

// MarkOld flags every current comment of the object as old and returns how many changed.
func (r *commentRepository) MarkOld(ctx context.Context, ref models.ObjectRef) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Comment{}).
		Scopes(objectScope(ref)).
		Where("old = ?", false).
		UpdateColumn("old", true)
	if res.Error != nil {
		return 0, models.NewInternalError(res.Error)
	}
	return res.RowsAffected, nil
}

// Nodes returns the structural index of the object's comments.
func (r *commentRepository) Nodes(ctx context.Context, ref models.ObjectRef) ([]tree.Node, error) {
	var comments []models.Comment
	if err := r.db.WithContext(ctx).Scopes(objectScope(ref)).Order("tree_id, lft").Find(&comments).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return nodesOf(comments), nil
}

// Objects lists every content object that has comments.
func (r *commentRepository) Objects(ctx context.Context) ([]models.ObjectRef, error) {
	var refs []models.ObjectRef
	err := r.db.WithContext(ctx).
		Model(&models.Comment{}).
		Distinct("content_type", "object_id").
		Order("content_type, object_id").
		Scan(&refs).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return refs, nil
}

// RebuildObject renumbers the object's forest from parent links alone.
func (r *commentRepository) RebuildObject(ctx context.Context, ref models.ObjectRef, order tree.Order) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockObject(tx, ref); err != nil {
			return err
		}
		var all []models.Comment
		if err := tx.Scopes(objectScope(ref)).Find(&all).Error; err != nil {
			return err
		}
		return renumber(tx, all, order)
	})
	return storageError(err)
}

// DeleteByAuthor removes the user's comments together with their replies and
// renumbers every affected object. It returns the objects that lost comments.
func (r *commentRepository) DeleteByAuthor(ctx context.Context, userID uint, order tree.Order) ([]models.ObjectRef, error) {
	var touched []models.ObjectRef
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var authored []models.Comment
		if err := tx.Where("user_id = ?", userID).Find(&authored).Error; err != nil {
			return err
		}

		seen := make(map[models.ObjectRef]bool)
		for _, c := range authored {
			ref := c.Ref()
			if !seen[ref] {
				seen[ref] = true
				touched = append(touched, ref)
				if err := lockObject(tx, ref); err != nil {
					return err
				}
			}
			// Bounds come from the snapshot; nothing is renumbered until every subtree is gone.
			if err := tx.Scopes(objectScope(ref)).
				Where("tree_id = ? AND lft >= ? AND rgt <= ?", c.TreeID, c.Lft, c.Rgt).
				Delete(&models.Comment{}).Error; err != nil {
				return err
			}
		}

		for _, ref := range touched {
			var rest []models.Comment
			if err := tx.Scopes(objectScope(ref)).Find(&rest).Error; err != nil {
				return err
			}
			if err := renumber(tx, rest, order); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, storageError(err)
	}
	return touched, nil
}

func (r *commentRepository) DeleteByObject(ctx context.Context, ref models.ObjectRef) error {
	err := r.db.WithContext(ctx).Scopes(objectScope(ref)).Delete(&models.Comment{}).Error
	return storageError(err)
}

// renumber recomputes the index of comments, which must be a whole object's
// forest, and writes back every node whose position changed.
func renumber(tx *gorm.DB, comments []models.Comment, order tree.Order) error {
	rebuilt, err := tree.Rebuild(nodesOf(comments), order)
	if err != nil {
		if errors.Is(err, tree.ErrCycle) {
			return models.NewValidationError("Comment parents form a cycle")
		}
		return err
	}

	current := make(map[uint]tree.Node, len(comments))
	for i := range comments {
		current[comments[i].ID] = nodeOf(&comments[i])
	}
	for _, n := range rebuilt {
		if current[n.ID] == n {
			continue
		}
		if err := tx.Model(&models.Comment{}).Where("id = ?", n.ID).UpdateColumns(map[string]interface{}{
			"tree_id": n.TreeID,
			"lft":     n.Lft,
			"rgt":     n.Rgt,
			"level":   n.Level,
		}).Error; err != nil {
			return err
		}
	}
	return nil
}

// lockObject serializes index writers of one object. PostgreSQL takes a
// transaction-scoped advisory lock; SQLite already admits a single writer.
func lockObject(tx *gorm.DB, ref models.ObjectRef) error {
	if !database.IsPostgres(tx) {
		return nil
	}
	return tx.Exec("SELECT pg_advisory_xact_lock(?)", objectLockKey(ref)).Error
}

func objectLockKey(ref models.ObjectRef) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(ref.ContentType))
	_, _ = h.Write([]byte{0})
	var id [8]byte
	for i := 0; i < 8; i++ {
		id[i] = byte(uint64(ref.ObjectID) >> (8 * i))
	}
	_, _ = h.Write(id[:])
	return int64(h.Sum64())
}

func nodeOf(c *models.Comment) tree.Node {
	return tree.Node{
		ID:          c.ID,
		ParentID:    c.ParentID,
		SubmittedAt: c.SubmittedAt,
		TreeID:      c.TreeID,
		Lft:         c.Lft,
		Rgt:         c.Rgt,
		Level:       c.Level,
	}
}

func nodesOf(comments []models.Comment) []tree.Node {
	nodes := make([]tree.Node, len(comments))
	for i := range comments {
		nodes[i] = nodeOf(&comments[i])
	}
	return nodes
}
