package models

import (
	"time"
)

// User represents a user in the system. Identity comes from the external
// auth provider; the ID is the provider's numeric subject.
type User struct {
	ID        uint      `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Email     string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Nickname  string    `gorm:"size:50;uniqueIndex;not null" json:"nickname"`
	AvatarURL *string   `gorm:"size:500" json:"avatar_url,omitempty"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for User model
func (User) TableName() string {
	return "users"
}
