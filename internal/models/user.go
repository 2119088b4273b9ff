package models

import (
	"time"
)

// AccountKind classifies a user by which identity keys it holds.
type AccountKind string

const (
	// AccountKindGhost is a Discord-only account created by bot usage.
	AccountKindGhost AccountKind = "ghost"
	// AccountKindWeb is any account that owns an email.
	AccountKindWeb AccountKind = "web"
	// AccountKindUnlinked holds neither an email nor a Discord id.
	AccountKindUnlinked AccountKind = "unlinked"
)

type User struct {
	ID                 uint64     `gorm:"primarykey" json:"id"`
	DiscordID          *string    `gorm:"type:varchar(64);uniqueIndex" json:"discord_id"`
	GoogleID           *string    `gorm:"type:varchar(64);uniqueIndex" json:"google_id"`
	Email              *string    `gorm:"type:varchar(255);uniqueIndex" json:"email"`
	Username           string     `gorm:"type:varchar(100);not null" json:"username"`
	HashedPassword     *string    `gorm:"type:varchar(255)" json:"-"`
	DisplayName        *string    `gorm:"type:varchar(100)" json:"display_name"`
	IsAnonymous        bool       `gorm:"not null;default:false" json:"is_anonymous"`
	CommentsEnabled    bool       `gorm:"not null;default:true" json:"comments_enabled"`
	DiscordPrivacyMode string     `gorm:"type:varchar(20);not null;default:'private'" json:"discord_privacy_mode"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
	LastLogin          *time.Time `json:"last_login"`

	// Relations
	Processes []Process  `gorm:"foreignKey:UserID" json:"-"`
	Feedback  []Feedback `gorm:"foreignKey:UserID" json:"-"`
}

// Kind derives the account classification from the identity columns.
func (u *User) Kind() AccountKind {
	switch {
	case u.Email != nil:
		return AccountKindWeb
	case u.DiscordID != nil:
		return AccountKindGhost
	default:
		return AccountKindUnlinked
	}
}

// IsGhost reports whether the user only exists because of bot usage.
func (u *User) IsGhost() bool {
	return u.Kind() == AccountKindGhost
}

// HasEmail reports whether the user holds a non-empty email.
func (u *User) HasEmail() bool {
	return u.Email != nil && *u.Email != ""
}

// StringPtr returns nil for an empty string.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// StringValue dereferences s, returning "" for nil.
func StringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
