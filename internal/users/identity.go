package users

import (
	"strings"
	"time"
)

// Identity captures the mapping between a canonical user id and a provider-specific login.
type Identity struct {
	Provider    string    `gorm:"column:provider;primaryKey;size:32;not null"`
	Subject     string    `gorm:"column:subject;primaryKey;size:190;not null"`
	UserID      string    `gorm:"column:user_id;size:190;not null;index"`
	Email       string    `gorm:"column:user_email;size:320"`
	DisplayName string    `gorm:"column:user_display_name;size:320"`
	AvatarURL   string    `gorm:"column:user_avatar_url;size:512"`
	LastSeenAt  time.Time `gorm:"column:last_seen_at;autoUpdateTime"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName exposes the table backing user identities.
func (Identity) TableName() string {
	return "user_identities"
}

// User is the public channel profile of a canonical user. Catalog queries join it by
// id for owner names and avatars.
type User struct {
	ID              string `gorm:"column:id;primaryKey;size:190"`
	Name            string `gorm:"column:name;size:320;not null;default:''"`
	ImageURL        string `gorm:"column:image_url;size:512;not null;default:''"`
	CreatedAtMillis int64  `gorm:"column:created_at_ms;not null"`
	UpdatedAtMillis int64  `gorm:"column:updated_at_ms;not null"`
}

// TableName exposes the table backing channel profiles.
func (User) TableName() string {
	return "users"
}

// Models lists the tables owned by the users package.
func Models() []any {
	return []any{&Identity{}, &User{}}
}

// normalize value helper used across service implementation.
func normalize(value string) string {
	return strings.TrimSpace(value)
}
