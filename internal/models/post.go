package models

import (
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"
)

// DefaultPostContent seeds a freshly created post.
const DefaultPostContent = "# Edit here to create your first and only post!\n[TOC]\n## Subtitle\n(you can edit it later if you want)"

// MaxTitleLength bounds the derived post title, in runes.
const MaxTitleLength = 255

// ContentTypePost identifies posts as the object of comments and notifications.
const ContentTypePost = "post"

// Post is the single long-form post each user owns.
// LikeCount, FollowCount and CommentCount are denormalized and only written by recount queries.
type Post struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	Title        string    `gorm:"size:255;not null" json:"title"`
	Content      string    `gorm:"type:text" json:"content"`
	LikeCount    int64     `gorm:"not null;default:0" json:"like_count"`
	FollowCount  int64     `gorm:"not null;default:0" json:"follow_count"`
	CommentCount int64     `gorm:"not null;default:0" json:"comment_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	UpdatedUnix  int64     `gorm:"not null;default:0;index" json:"-"`

	// Score is only populated by ranking queries.
	Score float64 `gorm:"->;-:migration" json:"score,omitempty"`

	User *User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user,omitempty"`
}

// BeforeSave keeps UpdatedUnix in step with UpdatedAt so ranking can compute ages in SQL.
func (p *Post) BeforeSave(_ *gorm.DB) error {
	p.UpdatedAt = time.Now().UTC()
	p.UpdatedUnix = p.UpdatedAt.Unix()
	return nil
}

// DeriveTitle returns the first non-empty line of content, cut to MaxTitleLength runes.
func DeriveTitle(content string) string {
	line := strings.TrimSpace(content)
	if i := strings.IndexAny(line, "\r\n"); i >= 0 {
		line = strings.TrimSpace(line[:i])
	}
	if utf8.RuneCountInString(line) > MaxTitleLength {
		line = string([]rune(line)[:MaxTitleLength])
	}
	return line
}
