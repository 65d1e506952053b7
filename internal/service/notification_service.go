package service

import (
	"context"
	"log/slog"

	"press/internal/middleware"
	"press/internal/models"
	"press/internal/notifications"
	"press/internal/observability"
	"press/internal/repository"
)

// Publisher pushes live events to a user's open sockets.
type Publisher interface {
	PublishEvent(ctx context.Context, userID uint, eventType string, payload any) error
}

type NotificationService struct {
	repo      repository.NotificationRepository
	publisher Publisher
}

func NewNotificationService(repo repository.NotificationRepository, publisher Publisher) *NotificationService {
	return &NotificationService{repo: repo, publisher: publisher}
}

// Emit stores n and pushes it to the recipient's sockets.
// Failures are logged and counted but never reach the caller.
func (s *NotificationService) Emit(ctx context.Context, n *models.Notification) {
	err := s.repo.Create(ctx, n)
	observability.NotificationsEmitted.WithLabelValues(n.Verb, observability.ResultLabel(err)).Inc()
	if err != nil {
		middleware.Logger.ErrorContext(ctx, "failed to store notification",
			slog.String("verb", n.Verb),
			slog.Uint64("recipient_id", uint64(n.RecipientID)),
			slog.String("error", err.Error()),
		)
		return
	}

	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishEvent(ctx, n.RecipientID, notifications.EventNotification, n); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to publish notification",
			slog.Uint64("notification_id", uint64(n.ID)),
			slog.String("error", err.Error()),
		)
	}
}

// NotifyEngagement tells the post owner that e turned active.
func (s *NotificationService) NotifyEngagement(ctx context.Context, e *models.Engagement, post *models.Post) {
	s.Emit(ctx, &models.Notification{
		RecipientID:      post.UserID,
		ActorID:          e.UserID,
		Verb:             e.Kind.Verb(),
		ActionObjectType: string(e.Kind),
		ActionObjectID:   e.ID,
		TargetType:       models.ObjectPost,
		TargetID:         post.ID,
		Unread:           true,
	})
}

// NotifyMentions sends one "mentioned you" notification per user. The action
// object is the text that carried the mention; the target is the post it belongs to.
func (s *NotificationService) NotifyMentions(ctx context.Context, actorID uint, users []*models.User, objectType string, objectID, postID uint) {
	for _, u := range users {
		s.Emit(ctx, &models.Notification{
			RecipientID:      u.ID,
			ActorID:          actorID,
			Verb:             models.VerbMentioned,
			ActionObjectType: objectType,
			ActionObjectID:   objectID,
			TargetType:       models.ObjectPost,
			TargetID:         postID,
			Unread:           true,
		})
	}
}

// NewsPage is one page of a user's notifications.
type NewsPage struct {
	Notifications []*models.Notification `json:"notifications"`
	Page          int                    `json:"page"`
	HasNext       bool                   `json:"has_next"`
}

// List returns one page of userID's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, userID uint, page, size int) (*NewsPage, error) {
	page, size = normalizePage(page, size)
	items, err := s.repo.ListByRecipient(ctx, userID, size+1, (page-1)*size)
	if err != nil {
		return nil, err
	}
	hasNext := len(items) > size
	if hasNext {
		items = items[:size]
	}
	return &NewsPage{Notifications: items, Page: page, HasNext: hasNext}, nil
}

// News lists a page of notifications and then marks everything read.
func (s *NotificationService) News(ctx context.Context, userID uint, page, size int) (*NewsPage, error) {
	out, err := s.List(ctx, userID, page, size)
	if err != nil {
		return nil, err
	}
	if _, err := s.repo.MarkAllRead(ctx, userID); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	return s.repo.CountUnread(ctx, userID)
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID uint) (int64, error) {
	return s.repo.MarkAllRead(ctx, userID)
}
