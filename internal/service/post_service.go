package service

import (
	"bytes"
	"context"
	"log/slog"
	"strings"

	"press/internal/mention"
	"press/internal/middleware"
	"press/internal/models"
	"press/internal/observability"
	"press/internal/repository"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
)

// MaxPostLength bounds post content, in bytes.
const MaxPostLength = 100000

type PostService struct {
	posts         repository.PostRepository
	comments      repository.CommentRepository
	mentions      *mention.Detector
	notifications *NotificationService
	markdown      goldmark.Markdown
}

type UpdatePostInput struct {
	UserID  uint
	Content string
}

func NewPostService(
	posts repository.PostRepository,
	comments repository.CommentRepository,
	mentions *mention.Detector,
	notifications *NotificationService,
) *PostService {
	return &PostService{
		posts:         posts,
		comments:      comments,
		mentions:      mentions,
		notifications: notifications,
		markdown: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithParserOptions(parser.WithAutoHeadingID()),
			goldmark.WithRendererOptions(html.WithHardWraps()),
		),
	}
}

// CreatePost gives userID their only post. Empty content falls back to the starter text.
func (s *PostService) CreatePost(ctx context.Context, userID uint, content string) (*models.Post, error) {
	if strings.TrimSpace(content) == "" {
		content = models.DefaultPostContent
	}
	if len(content) > MaxPostLength {
		return nil, models.NewValidationError("Post is too long")
	}

	existing, err := s.posts.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.NewConflictError("You already have a post", nil)
	}

	post := &models.Post{
		UserID:  userID,
		Title:   models.DeriveTitle(content),
		Content: content,
	}
	if err := s.posts.Create(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

func (s *PostService) GetPost(ctx context.Context, id uint) (*models.Post, error) {
	return s.posts.GetByID(ctx, id)
}

// GetOwnPost returns userID's post or POST_REQUIRED when there is none.
func (s *PostService) GetOwnPost(ctx context.Context, userID uint) (*models.Post, error) {
	post, err := s.posts.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, models.NewPostRequiredError()
	}
	return post, nil
}

// UpdatePost rewrites the caller's post, notifies the users it mentions and
// marks the comments written so far as old.
func (s *PostService) UpdatePost(ctx context.Context, in UpdatePostInput) (*models.Post, error) {
	if strings.TrimSpace(in.Content) == "" {
		return nil, models.NewValidationError("Post content is required")
	}
	if len(in.Content) > MaxPostLength {
		return nil, models.NewValidationError("Post is too long")
	}

	post, err := s.GetOwnPost(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	post.Content = in.Content
	post.Title = models.DeriveTitle(in.Content)
	if err := s.posts.Update(ctx, post); err != nil {
		return nil, err
	}

	if users := detectMentions(ctx, s.mentions, in.Content); len(users) > 0 && s.notifications != nil {
		s.notifications.NotifyMentions(ctx, in.UserID, users, models.ObjectPost, post.ID, post.ID)
	}

	if _, err := s.comments.MarkOld(ctx, models.PostRef(post.ID)); err != nil {
		return nil, err
	}
	return post, nil
}

// RenderHTML renders the post's markdown with mentions linked to profiles.
// Raw HTML in the source is not passed through.
func (s *PostService) RenderHTML(ctx context.Context, id uint) (string, error) {
	post, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	return s.Render(ctx, post.Content)
}

func (s *PostService) Render(ctx context.Context, content string) (string, error) {
	src := content
	if s.mentions != nil {
		linked, err := s.mentions.Markdown(ctx, content)
		if err != nil {
			return "", err
		}
		src = linked
	}
	var buf bytes.Buffer
	if err := s.markdown.Convert([]byte(src), &buf); err != nil {
		return "", models.NewInternalError(err)
	}
	return buf.String(), nil
}

// detectMentions resolves the users text mentions. Lookup failures are logged
// and treated as no mentions so the write that carried the text still succeeds.
func detectMentions(ctx context.Context, d *mention.Detector, text string) []*models.User {
	if d == nil {
		return nil
	}
	tokens := len(mention.Extract(text))
	if tokens == 0 {
		return nil
	}
	users, err := d.Detect(ctx, text)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "mention lookup failed", slog.String("error", err.Error()))
		return nil
	}
	observability.MentionsResolved.WithLabelValues("resolved").Add(float64(len(users)))
	observability.MentionsResolved.WithLabelValues("unknown").Add(float64(tokens - len(users)))
	return users
}
