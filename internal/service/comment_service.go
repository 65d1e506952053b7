package service

import (
	"context"
	"strings"
	"time"

	"press/internal/mention"
	"press/internal/models"
	"press/internal/observability"
	"press/internal/repository"
	"press/internal/tree"

	"go.opentelemetry.io/otel/attribute"
)

type CommentService struct {
	comments      repository.CommentRepository
	posts         repository.PostRepository
	users         repository.UserRepository
	mentions      *mention.Detector
	notifications *NotificationService
	counter       *EngagementService
	order         tree.Order
	now           func() time.Time
}

type CreateCommentInput struct {
	UserID   uint
	PostID   uint
	Body     string
	ParentID *uint
}

type MoveCommentInput struct {
	UserID    uint
	CommentID uint
	ParentID  *uint
}

func NewCommentService(
	comments repository.CommentRepository,
	posts repository.PostRepository,
	users repository.UserRepository,
	mentions *mention.Detector,
	notifications *NotificationService,
	counter *EngagementService,
	order tree.Order,
) *CommentService {
	return &CommentService{
		comments:      comments,
		posts:         posts,
		users:         users,
		mentions:      mentions,
		notifications: notifications,
		counter:       counter,
		order:         order,
		now:           time.Now,
	}
}

// CreateComment adds a comment, or a reply when ParentID is set, to a post.
// The post's comment count is refreshed and mentioned users are notified.
func (s *CommentService) CreateComment(ctx context.Context, in CreateCommentInput) (*models.Comment, error) {
	body := strings.TrimSpace(in.Body)
	if body == "" {
		return nil, models.NewValidationError("Comment cannot be empty")
	}
	if len(body) > models.MaxCommentLength {
		return nil, models.NewValidationError("Comment too long (max 3000 characters)")
	}

	post, err := s.posts.GetByID(ctx, in.PostID)
	if err != nil {
		return nil, err
	}

	comment := &models.Comment{
		ContentType: models.ContentTypePost,
		ObjectID:    post.ID,
		UserID:      in.UserID,
		Body:        body,
		SubmittedAt: s.now().UTC(),
		ParentID:    in.ParentID,
	}

	span, spanCtx := observability.NewSpan(ctx, "comments.insert",
		attribute.Int64("post_id", int64(post.ID)),
		attribute.Bool("reply", in.ParentID != nil),
	)
	err = s.comments.Insert(spanCtx, comment, s.order)
	span.SetError(err)
	span.End()
	observability.CommentTreeWrites.WithLabelValues("insert", observability.ResultLabel(err)).Inc()
	if err != nil {
		return nil, err
	}

	if s.counter != nil {
		_ = s.counter.RecountComments(ctx, post.ID)
	}
	if users := detectMentions(ctx, s.mentions, body); len(users) > 0 && s.notifications != nil {
		s.notifications.NotifyMentions(ctx, in.UserID, users, models.ObjectComment, comment.ID, post.ID)
	}

	if stored, err := s.comments.GetByID(ctx, comment.ID); err == nil {
		return stored, nil
	}
	return comment, nil
}

// ListComments returns the post's comments in display order, flat.
func (s *CommentService) ListComments(ctx context.Context, postID uint) ([]*models.Comment, error) {
	if _, err := s.posts.GetByID(ctx, postID); err != nil {
		return nil, err
	}
	return s.comments.ListByObject(ctx, models.PostRef(postID))
}

// ListThreads returns the post's top-level comments with replies nested under them.
func (s *CommentService) ListThreads(ctx context.Context, postID uint) ([]*models.Comment, error) {
	flat, err := s.ListComments(ctx, postID)
	if err != nil {
		return nil, err
	}
	return Thread(flat), nil
}

// MoveComment re-parents a comment. Only its author or an admin may do so.
func (s *CommentService) MoveComment(ctx context.Context, in MoveCommentInput) (*models.Comment, error) {
	comment, err := s.comments.GetByID(ctx, in.CommentID)
	if err != nil {
		return nil, err
	}
	if comment.UserID != in.UserID {
		user, err := s.users.GetByID(ctx, in.UserID)
		if err != nil {
			return nil, err
		}
		if !user.IsAdmin {
			return nil, models.NewForbiddenError("Only the author can move this comment")
		}
	}

	span, spanCtx := observability.NewSpan(ctx, "comments.move",
		attribute.Int64("comment_id", int64(in.CommentID)),
	)
	moved, err := s.comments.Move(spanCtx, in.CommentID, in.ParentID, s.order)
	span.SetError(err)
	span.End()
	observability.CommentTreeWrites.WithLabelValues("move", observability.ResultLabel(err)).Inc()
	return moved, err
}

// Thread nests a pre-order comment list: each comment is attached to the
// Children of its parent and top-level comments are returned in order.
// Replies whose parent is missing from the list are promoted to the top level.
func Thread(flat []*models.Comment) []*models.Comment {
	byID := make(map[uint]*models.Comment, len(flat))
	roots := make([]*models.Comment, 0)
	for _, c := range flat {
		c.Children = nil
		byID[c.ID] = c
		if c.ParentID != nil {
			if parent, ok := byID[*c.ParentID]; ok {
				parent.Children = append(parent.Children, c)
				continue
			}
		}
		roots = append(roots, c)
	}
	return roots
}
