package service

import (
	"context"
	"log/slog"

	"press/internal/middleware"
	"press/internal/models"
	"press/internal/observability"
	"press/internal/repository"
)

// Recount kinds used in logs and metrics.
const (
	recountLikes    = "likes"
	recountFollows  = "follows"
	recountComments = "comments"
)

// EngagementService records likes and follows, keeps the post counters in step
// with them and announces new ones to the post owner.
type EngagementService struct {
	engagements   repository.EngagementRepository
	posts         repository.PostRepository
	notifications *NotificationService
}

type SetEngagementInput struct {
	Kind   models.EngagementKind
	PostID uint
	UserID uint
	Active bool
}

// EngagementResult is the state of a relation after a write.
type EngagementResult struct {
	Engagement *models.Engagement `json:"engagement"`
	Changed    bool               `json:"changed"`
	Post       *models.Post       `json:"post,omitempty"`
}

func NewEngagementService(
	engagements repository.EngagementRepository,
	posts repository.PostRepository,
	notifications *NotificationService,
) *EngagementService {
	return &EngagementService{
		engagements:   engagements,
		posts:         posts,
		notifications: notifications,
	}
}

// Set stores the requested state. When the row actually changes the counter is
// recomputed, and a transition to active notifies the post owner exactly once.
func (s *EngagementService) Set(ctx context.Context, in SetEngagementInput) (*EngagementResult, error) {
	if !in.Kind.Valid() {
		return nil, models.NewValidationError("Unknown engagement kind")
	}
	if in.UserID == 0 {
		return nil, models.NewUnauthorizedError("Login required")
	}

	post, err := s.posts.GetByID(ctx, in.PostID)
	if err != nil {
		return nil, err
	}

	e, changed, err := s.engagements.Set(ctx, in.Kind, in.PostID, in.UserID, in.Active)
	if err != nil {
		return nil, err
	}

	if changed {
		s.recountEngagement(ctx, in.PostID, in.Kind)
		if e.Active && s.notifications != nil {
			s.notifications.NotifyEngagement(ctx, e, post)
		}
		if fresh, err := s.posts.GetByID(ctx, in.PostID); err == nil {
			post = fresh
		}
	}
	return &EngagementResult{Engagement: e, Changed: changed, Post: post}, nil
}

// Toggle flips the caller's current state.
func (s *EngagementService) Toggle(ctx context.Context, kind models.EngagementKind, postID, userID uint) (*EngagementResult, error) {
	if !kind.Valid() {
		return nil, models.NewValidationError("Unknown engagement kind")
	}
	current, err := s.engagements.Get(ctx, kind, postID, userID)
	if err != nil {
		return nil, err
	}
	active := current == nil || !current.Active
	return s.Set(ctx, SetEngagementInput{Kind: kind, PostID: postID, UserID: userID, Active: active})
}

// State reports userID's like and follow on postID. Missing rows read as inactive.
func (s *EngagementService) State(ctx context.Context, postID, userID uint) (liked, followed bool, err error) {
	like, err := s.engagements.Get(ctx, models.EngagementLike, postID, userID)
	if err != nil {
		return false, false, err
	}
	follow, err := s.engagements.Get(ctx, models.EngagementFollow, postID, userID)
	if err != nil {
		return false, false, err
	}
	return like != nil && like.Active, follow != nil && follow.Active, nil
}

// RecomputeCounts refreshes every counter of postID from the rows it summarizes.
// Each recount runs even when an earlier one fails; the first failure is returned.
func (s *EngagementService) RecomputeCounts(ctx context.Context, postID uint) error {
	var first error
	for _, err := range []error{
		s.RecountLikes(ctx, postID),
		s.RecountFollows(ctx, postID),
		s.RecountComments(ctx, postID),
	} {
		if err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (s *EngagementService) RecountLikes(ctx context.Context, postID uint) error {
	return s.observeRecount(ctx, recountLikes, postID, s.posts.RecountEngagement(ctx, postID, models.EngagementLike))
}

func (s *EngagementService) RecountFollows(ctx context.Context, postID uint) error {
	return s.observeRecount(ctx, recountFollows, postID, s.posts.RecountEngagement(ctx, postID, models.EngagementFollow))
}

func (s *EngagementService) RecountComments(ctx context.Context, postID uint) error {
	return s.observeRecount(ctx, recountComments, postID, s.posts.RecountComments(ctx, postID))
}

// recountEngagement refreshes one counter after a child write. Errors stop here.
func (s *EngagementService) recountEngagement(ctx context.Context, postID uint, kind models.EngagementKind) {
	if kind == models.EngagementFollow {
		_ = s.RecountFollows(ctx, postID)
		return
	}
	_ = s.RecountLikes(ctx, postID)
}

func (s *EngagementService) observeRecount(ctx context.Context, kind string, postID uint, err error) error {
	observability.CountRecomputes.WithLabelValues(kind, observability.ResultLabel(err)).Inc()
	if err != nil {
		middleware.Logger.ErrorContext(ctx, "failed to recompute post counter",
			slog.String("kind", kind),
			slog.Uint64("post_id", uint64(postID)),
			slog.String("error", err.Error()),
		)
	}
	return err
}
