package models

import (
	"time"
)

// RateLimitCounter is a fixed-window request counter shared by all instances.
// WindowStart is the window start in unix seconds.
type RateLimitCounter struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	BucketKey   string    `gorm:"size:200;not null;uniqueIndex:idx_rate_limit_window" json:"bucket_key"`
	Action      string    `gorm:"size:50;not null;uniqueIndex:idx_rate_limit_window" json:"action"`
	WindowStart int64     `gorm:"not null;uniqueIndex:idx_rate_limit_window" json:"window_start"`
	Count       int       `gorm:"not null;default:0" json:"count"`
	ExpiresAt   time.Time `gorm:"not null;index" json:"expires_at"`
}

// TableName specifies the table name for RateLimitCounter model
func (RateLimitCounter) TableName() string {
	return "rate_limit_counters"
}
