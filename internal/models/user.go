// Package models contains data structures for the application's domain models.
package models

import (
	"fmt"
	"strings"
	"time"
)

// User represents an account. Users start inactive until their e-mail is verified
// when verification is required.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Username  string    `gorm:"uniqueIndex;size:150;not null" json:"username"`
	Email     string    `gorm:"uniqueIndex;not null" json:"email"`
	Password  string    `gorm:"not null" json:"-"`
	IsActive  bool      `gorm:"not null;default:false" json:"is_active"`
	IsAdmin   bool      `gorm:"not null;default:false" json:"is_admin"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Profile *Profile `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"profile,omitempty"`
}

// Profile holds the public details of a user. Exactly one per user.
type Profile struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	Name        string    `gorm:"size:255" json:"name"`
	Pic         string    `json:"pic"`
	Description string    `gorm:"type:text" json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// IsValid reports whether the profile is complete enough to use the site.
func (p *Profile) IsValid() bool {
	if p == nil {
		return false
	}
	return strings.TrimSpace(p.Name) != "" && strings.TrimSpace(p.Description) != ""
}

// URL is the public address of the profile page.
func (p *Profile) URL() string {
	return ProfileURL(p.ID)
}

// ProfileURL builds the profile page path for a profile ID.
func ProfileURL(profileID uint) string {
	return fmt.Sprintf("/profile/%d/", profileID)
}
