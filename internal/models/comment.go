package models

import "time"

// Comment is a threaded comment attached to a content object.
// TreeID, Lft, Rgt and Level form a nested-set index per object:
// ordering by (tree_id, lft) yields a pre-order walk of every thread.
type Comment struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ContentType string    `gorm:"size:64;not null;index:idx_comments_object,priority:1" json:"content_type"`
	ObjectID    uint      `gorm:"not null;index:idx_comments_object,priority:2" json:"object_id"`
	UserID      uint      `gorm:"not null;index" json:"user_id"`
	Body        string    `gorm:"type:text;not null" json:"body"`
	SubmittedAt time.Time `gorm:"not null" json:"submitted_at"`
	ParentID    *uint     `gorm:"index" json:"parent_id,omitempty"`
	Old         bool      `gorm:"not null;default:false" json:"old"`
	TreeID      uint      `gorm:"not null;index:idx_comments_object,priority:3" json:"tree_id"`
	Lft         int       `gorm:"not null;index:idx_comments_object,priority:4" json:"lft"`
	Rgt         int       `gorm:"not null" json:"rgt"`
	Level       int       `gorm:"not null" json:"level"`

	User     *User      `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user,omitempty"`
	Children []*Comment `gorm:"-" json:"children,omitempty"`
}

// ObjectRef identifies the content object a comment hangs off.
type ObjectRef struct {
	ContentType string
	ObjectID    uint
}

// PostRef is the ObjectRef of a post.
func PostRef(postID uint) ObjectRef {
	return ObjectRef{ContentType: ContentTypePost, ObjectID: postID}
}

// Ref returns the content object the comment belongs to.
func (c *Comment) Ref() ObjectRef {
	return ObjectRef{ContentType: c.ContentType, ObjectID: c.ObjectID}
}

// MaxCommentLength bounds a comment body, in bytes.
const MaxCommentLength = 3000
