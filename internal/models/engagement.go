package models

import "time"

// EngagementKind distinguishes the two toggleable relations a user can hold on a post.
type EngagementKind string

const (
	EngagementLike   EngagementKind = "like"
	EngagementFollow EngagementKind = "follow"
)

// Notification verbs.
const (
	VerbLiked     = "liked your post"
	VerbFollowed  = "followed your post"
	VerbMentioned = "mentioned you"
)

// Table is the backing table of the relation.
func (k EngagementKind) Table() string {
	switch k {
	case EngagementFollow:
		return "follows"
	default:
		return "likes"
	}
}

// CountColumn is the denormalized counter on posts kept for the relation.
func (k EngagementKind) CountColumn() string {
	switch k {
	case EngagementFollow:
		return "follow_count"
	default:
		return "like_count"
	}
}

// Verb is the notification verb sent when the relation turns active.
func (k EngagementKind) Verb() string {
	switch k {
	case EngagementFollow:
		return VerbFollowed
	default:
		return VerbLiked
	}
}

// Valid reports whether k names a known relation.
func (k EngagementKind) Valid() bool {
	return k == EngagementLike || k == EngagementFollow
}

// Like records a user's like on a post. One row per (post, user); Active carries the state.
type Like struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    uint      `gorm:"not null;uniqueIndex:idx_likes_post_user,priority:1" json:"post_id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_likes_post_user,priority:2;index" json:"user_id"`
	Active    bool      `gorm:"not null;default:false" json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Post *Post `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"-"`
	User *User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

// Follow records a user following a post. One row per (post, user); Active carries the state.
type Follow struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    uint      `gorm:"not null;uniqueIndex:idx_follows_post_user,priority:1" json:"post_id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_follows_post_user,priority:2;index" json:"user_id"`
	Active    bool      `gorm:"not null;default:false" json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Post *Post `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"-"`
	User *User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

// Engagement is the kind-independent view of a like or follow row.
type Engagement struct {
	ID        uint           `json:"id"`
	Kind      EngagementKind `gorm:"-" json:"kind"`
	PostID    uint           `json:"post_id"`
	UserID    uint           `json:"user_id"`
	Active    bool           `json:"active"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}
