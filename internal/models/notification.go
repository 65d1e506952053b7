package models

import "time"

// Object types referenced by notifications.
const (
	ObjectPost    = "post"
	ObjectLike    = "like"
	ObjectFollow  = "follow"
	ObjectComment = "comment"
)

// Notification tells Recipient that Actor did Verb to ActionObject on Target.
type Notification struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	RecipientID      uint      `gorm:"not null;index:idx_notifications_recipient,priority:1" json:"recipient_id"`
	ActorID          uint      `gorm:"not null" json:"actor_id"`
	Verb             string    `gorm:"size:64;not null" json:"verb"`
	ActionObjectType string    `gorm:"size:32" json:"action_object_type"`
	ActionObjectID   uint      `json:"action_object_id"`
	TargetType       string    `gorm:"size:32" json:"target_type"`
	TargetID         uint      `json:"target_id"`
	Unread           bool      `gorm:"not null;default:true;index:idx_notifications_recipient,priority:2" json:"unread"`
	CreatedAt        time.Time `gorm:"index" json:"created_at"`

	Recipient *User `gorm:"foreignKey:RecipientID;constraint:OnDelete:CASCADE" json:"-"`
	Actor     *User `gorm:"foreignKey:ActorID;constraint:OnDelete:CASCADE" json:"actor,omitempty"`
}
