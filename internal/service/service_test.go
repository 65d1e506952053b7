package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"press/internal/config"
	"press/internal/mention"
	"press/internal/models"
	"press/internal/repository"
	"press/internal/testutil"
	"press/internal/tree"
	"press/internal/verification"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// publishedEvent is one call recorded by publisherStub.
type publishedEvent struct {
	UserID    uint
	EventType string
	Payload   any
}

type publisherStub struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (p *publisherStub) PublishEvent(_ context.Context, userID uint, eventType string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{UserID: userID, EventType: eventType, Payload: payload})
	return p.err
}

func (p *publisherStub) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

type outbox struct {
	mu   sync.Mutex
	sent []verification.Message
}

func (o *outbox) Send(_ context.Context, msg verification.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, msg)
	return nil
}

// fixture wires every service against one private SQLite database.
type fixture struct {
	db  *gorm.DB
	cfg *config.Config

	users         repository.UserRepository
	posts         repository.PostRepository
	engagements   repository.EngagementRepository
	comments      repository.CommentRepository
	notifications repository.NotificationRepository

	publisher *publisherStub
	mail      *outbox

	notifier   *NotificationService
	counter    *EngagementService
	postSvc    *PostService
	commentSvc *CommentService
	feed       *FeedService
	userSvc    *UserService
}

func newFixture(t *testing.T, mutate ...func(*config.Config)) *fixture {
	t.Helper()

	cfg := &config.Config{
		JWTSecret:             "test-secret",
		TrendGravity:          1.8,
		PageSize:              15,
		CommentOrder:          "asc",
		EmailTokenLifeSeconds: 3600,
		EmailPageDomain:       "http://localhost:8375",
		EmailFromAddress:      "no-reply@press.local",
		EmailSubject:          "Confirm your e-mail",
		MediaDir:              t.TempDir(),
	}
	for _, m := range mutate {
		m(cfg)
	}

	db := testutil.NewDB(t)
	f := &fixture{
		db:            db,
		cfg:           cfg,
		users:         repository.NewUserRepository(db),
		posts:         repository.NewPostRepository(db),
		engagements:   repository.NewEngagementRepository(db),
		comments:      repository.NewCommentRepository(db),
		notifications: repository.NewNotificationRepository(db),
		publisher:     &publisherStub{},
		mail:          &outbox{},
	}

	detector := mention.NewDetector(f.users)
	f.notifier = NewNotificationService(f.notifications, f.publisher)
	f.counter = NewEngagementService(f.engagements, f.posts, f.notifier)
	f.postSvc = NewPostService(f.posts, f.comments, detector, f.notifier)
	f.commentSvc = NewCommentService(f.comments, f.posts, f.users, detector, f.notifier, f.counter, tree.ParseOrder(cfg.CommentOrder))
	f.feed = NewFeedService(f.posts, cfg.TrendGravity)
	f.userSvc = NewUserService(f.users, f.posts, f.comments, f.engagements, f.counter,
		verification.NewSender(cfg, f.mail), cfg)
	return f
}

func (f *fixture) reload(t *testing.T, postID uint) *models.Post {
	t.Helper()
	var post models.Post
	require.NoError(t, f.db.First(&post, postID).Error)
	return &post
}

func (f *fixture) notificationsFor(t *testing.T, userID uint) []models.Notification {
	t.Helper()
	var out []models.Notification
	require.NoError(t, f.db.Where("recipient_id = ?", userID).Order("id").Find(&out).Error)
	return out
}

// stamp sets a post's freshness without going through the save hook.
func (f *fixture) stamp(t *testing.T, postID uint, likes int64, updated time.Time) {
	t.Helper()
	require.NoError(t, f.db.Model(&models.Post{}).Where("id = ?", postID).UpdateColumns(map[string]interface{}{
		"like_count":   likes,
		"updated_unix": updated.Unix(),
	}).Error)
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code)
}

func assertValidationError(t *testing.T, err error) {
	t.Helper()
	assertCode(t, err, models.CodeValidation)
}
