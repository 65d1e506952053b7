package seed

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"press/internal/config"
	"press/internal/mention"
	"press/internal/middleware"
	"press/internal/models"
	"press/internal/repository"
	"press/internal/service"
	"press/internal/tree"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

// Options configures a seeding run. It can be loaded from a YAML preset file.
type Options struct {
	Users           int     `yaml:"users"`
	CommentsPerPost int     `yaml:"comments_per_post"`
	LikeChance      float64 `yaml:"like_chance"`
	FollowChance    float64 `yaml:"follow_chance"`
	ReplyChance     float64 `yaml:"reply_chance"`
	MaxDays         int     `yaml:"max_days"`
	Seed            int64   `yaml:"seed"`
	FastHash        bool    `yaml:"fast_hash"`
	Clean           bool    `yaml:"clean"`
}

// Presets are the built-in seeding profiles.
var Presets = map[string]Options{
	"tiny": {
		Users: 5, CommentsPerPost: 2, LikeChance: 0.5, FollowChance: 0.3, ReplyChance: 0.5,
		MaxDays: 3, Seed: 1, FastHash: true,
	},
	"demo": {
		Users: 40, CommentsPerPost: 6, LikeChance: 0.3, FollowChance: 0.15, ReplyChance: 0.6,
		MaxDays: 14, Seed: 42,
	},
	"busy": {
		Users: 200, CommentsPerPost: 15, LikeChance: 0.2, FollowChance: 0.1, ReplyChance: 0.7,
		MaxDays: 30, Seed: 7, FastHash: true,
	},
}

// PresetNames lists the built-in presets in a stable order.
func PresetNames() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LoadPreset resolves name as a built-in preset or, failing that, as a YAML file path.
func LoadPreset(name string) (Options, error) {
	if opts, ok := Presets[name]; ok {
		return opts, nil
	}
	raw, err := os.ReadFile(name)
	if err != nil {
		return Options{}, fmt.Errorf("unknown preset %q: %w", name, err)
	}
	var opts Options
	if err := yaml.Unmarshal(raw, &opts); err != nil {
		return Options{}, fmt.Errorf("invalid preset file %s: %w", name, err)
	}
	return opts, opts.Validate()
}

// Validate rejects options that cannot produce a consistent dataset.
func (o Options) Validate() error {
	if o.Users <= 0 {
		return fmt.Errorf("users must be positive, got %d", o.Users)
	}
	if o.CommentsPerPost < 0 {
		return fmt.Errorf("comments_per_post must not be negative, got %d", o.CommentsPerPost)
	}
	for name, p := range map[string]float64{
		"like_chance": o.LikeChance, "follow_chance": o.FollowChance, "reply_chance": o.ReplyChance,
	} {
		if p < 0 || p > 1 {
			return fmt.Errorf("%s must be within [0, 1], got %v", name, p)
		}
	}
	return nil
}

// Summary counts what a run created.
type Summary struct {
	Users    int
	Posts    int
	Likes    int
	Follows  int
	Comments int
}

// Seeder writes demo data through the application services.
type Seeder struct {
	db       *gorm.DB
	counter  *service.EngagementService
	comments *service.CommentService
}

// NewSeeder wires the services against db. Notifications are stored but not published.
func NewSeeder(db *gorm.DB, cfg *config.Config) *Seeder {
	users := repository.NewUserRepository(db)
	posts := repository.NewPostRepository(db)
	commentRepo := repository.NewCommentRepository(db)

	notifier := service.NewNotificationService(repository.NewNotificationRepository(db), nil)
	counter := service.NewEngagementService(repository.NewEngagementRepository(db), posts, notifier)
	return &Seeder{
		db:      db,
		counter: counter,
		comments: service.NewCommentService(commentRepo, posts, users, mention.NewDetector(users),
			notifier, counter, tree.ParseOrder(cfg.CommentOrder)),
	}
}

// ClearAll deletes every row the application owns.
func (s *Seeder) ClearAll(ctx context.Context) error {
	tables := []any{
		&models.Notification{},
		&models.Comment{},
		&models.Like{},
		&models.Follow{},
		&models.Post{},
		&models.Profile{},
		&models.User{},
	}
	for _, t := range tables {
		if err := s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(t).Error; err != nil {
			return fmt.Errorf("clear %T: %w", t, err)
		}
	}
	middleware.Logger.InfoContext(ctx, "database cleared")
	return nil
}

// Run seeds users with their posts, then likes, follows and comment threads.
func (s *Seeder) Run(ctx context.Context, opts Options) (*Summary, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if opts.Clean {
		if err := s.ClearAll(ctx); err != nil {
			return nil, err
		}
	}

	f, err := NewFactory(s.db, opts)
	if err != nil {
		return nil, err
	}
	sum := &Summary{}

	users := make([]*models.User, 0, opts.Users)
	for i := 0; i < opts.Users; i++ {
		u, err := f.CreateUser(ctx)
		if err != nil {
			return sum, fmt.Errorf("create user: %w", err)
		}
		users = append(users, u)
		sum.Users++
	}

	posts := make([]*models.Post, 0, len(users))
	for _, u := range users {
		p, err := f.CreatePost(ctx, u, users)
		if err != nil {
			return sum, fmt.Errorf("create post: %w", err)
		}
		posts = append(posts, p)
		sum.Posts++
	}

	for _, p := range posts {
		for _, u := range users {
			if u.ID == p.UserID {
				continue
			}
			if f.Chance(opts.LikeChance) {
				if err := s.engage(ctx, models.EngagementLike, p.ID, u.ID); err != nil {
					return sum, err
				}
				sum.Likes++
			}
			if f.Chance(opts.FollowChance) {
				if err := s.engage(ctx, models.EngagementFollow, p.ID, u.ID); err != nil {
					return sum, err
				}
				sum.Follows++
			}
		}

		var thread []*models.Comment
		for i := 0; i < opts.CommentsPerPost; i++ {
			in := service.CreateCommentInput{
				UserID: users[f.Pick(len(users))].ID,
				PostID: p.ID,
				Body:   f.CommentBody(users),
			}
			if len(thread) > 0 && f.Chance(opts.ReplyChance) {
				in.ParentID = &thread[f.Pick(len(thread))].ID
			}
			c, err := s.comments.CreateComment(ctx, in)
			if err != nil {
				return sum, fmt.Errorf("create comment: %w", err)
			}
			thread = append(thread, c)
			sum.Comments++
		}
	}

	middleware.Logger.InfoContext(ctx, "seeding complete",
		slog.Int("users", sum.Users),
		slog.Int("posts", sum.Posts),
		slog.Int("likes", sum.Likes),
		slog.Int("follows", sum.Follows),
		slog.Int("comments", sum.Comments),
	)
	return sum, nil
}

func (s *Seeder) engage(ctx context.Context, kind models.EngagementKind, postID, userID uint) error {
	_, err := s.counter.Set(ctx, service.SetEngagementInput{Kind: kind, PostID: postID, UserID: userID, Active: true})
	if err != nil {
		return fmt.Errorf("%s post %d: %w", kind, postID, err)
	}
	return nil
}
