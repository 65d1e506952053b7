// Package seed creates demo data for development databases. Engagement and
// comments are written through the services so counters, comment trees and
// notifications end up exactly as real traffic would leave them.
package seed

import (
	"context"
	"fmt"
	"strings"
	"time"

	"press/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DefaultPassword is the password of every seeded account.
const DefaultPassword = "password123"

// Factory builds domain entities and persists them to the database.
type Factory struct {
	db    *gorm.DB
	faker *gofakeit.Faker
	opts  Options

	hash string
	seq  int
}

// NewFactory creates a Factory bound to db. Output is reproducible for a given opts.Seed.
func NewFactory(db *gorm.DB, opts Options) (*Factory, error) {
	cost := bcrypt.DefaultCost
	if opts.FastHash {
		cost = bcrypt.MinCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), cost)
	if err != nil {
		return nil, err
	}
	return &Factory{db: db, faker: gofakeit.New(opts.Seed), opts: opts, hash: string(hash)}, nil
}

// CreateUser persists an active user with a complete profile.
func (f *Factory) CreateUser(ctx context.Context, overrides ...func(*models.User)) (*models.User, error) {
	f.seq++
	username := fmt.Sprintf("%s%d", f.faker.Username(), f.seq)
	user := &models.User{
		Username: username,
		Email:    strings.ToLower(username) + "@example.com",
		Password: f.hash,
		IsActive: true,
		Profile: &models.Profile{
			Name:        f.faker.Name(),
			Description: f.faker.Sentence(12),
		},
	}
	for _, override := range overrides {
		override(user)
	}

	if err := f.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// CreatePost persists user's post. The content is markdown with a heading and
// may mention some of the given users. The post's freshness is backdated
// within opts.MaxDays so the trending feed has something to rank.
func (f *Factory) CreatePost(ctx context.Context, user *models.User, mentionable []*models.User) (*models.Post, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", strings.TrimSuffix(f.faker.Sentence(5), "."))
	b.WriteString(f.faker.Paragraph(2, 3, 12, "\n\n"))
	if len(mentionable) > 0 && f.Chance(0.5) {
		other := mentionable[f.faker.Number(0, len(mentionable)-1)]
		if other.ID != user.ID {
			fmt.Fprintf(&b, "\n\nShout-out to @%s!", other.Username)
		}
	}

	content := b.String()
	post := &models.Post{
		UserID:  user.ID,
		Title:   models.DeriveTitle(content),
		Content: content,
	}
	if err := f.db.WithContext(ctx).Create(post).Error; err != nil {
		return nil, err
	}

	updated := time.Now().Add(-f.age())
	err := f.db.WithContext(ctx).Model(post).UpdateColumns(map[string]any{
		"created_at":   updated,
		"updated_at":   updated,
		"updated_unix": updated.Unix(),
	}).Error
	if err != nil {
		return nil, err
	}
	post.CreatedAt, post.UpdatedAt, post.UpdatedUnix = updated, updated, updated.Unix()
	return post, nil
}

// CommentBody returns a short comment, sometimes mentioning a user.
func (f *Factory) CommentBody(mentionable []*models.User) string {
	body := f.faker.Sentence(f.faker.Number(4, 16))
	if len(mentionable) > 0 && f.Chance(0.2) {
		other := mentionable[f.faker.Number(0, len(mentionable)-1)]
		body = fmt.Sprintf("@%s %s", other.Username, body)
	}
	return body
}

// Chance reports true with probability p.
func (f *Factory) Chance(p float64) bool {
	return f.faker.Float64Range(0, 1) < p
}

// Pick returns an index in [0, n).
func (f *Factory) Pick(n int) int {
	return f.faker.Number(0, n-1)
}

func (f *Factory) age() time.Duration {
	maxDays := f.opts.MaxDays
	if maxDays <= 0 {
		maxDays = 30
	}
	minutes := f.faker.Number(1, maxDays*24*60)
	return time.Duration(minutes) * time.Minute
}
