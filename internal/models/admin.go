package models

import (
	"time"

	"gorm.io/datatypes"
)

// AdminLog records every administrative mutation
type AdminLog struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	AdminID    uint           `gorm:"not null;index" json:"admin_id"`
	AdminEmail string         `gorm:"size:255;not null" json:"admin_email"`
	Action     string         `gorm:"size:50;not null;index" json:"action"`
	TargetType string         `gorm:"size:50" json:"target_type"`
	TargetID   *uint          `gorm:"index" json:"target_id,omitempty"`
	Details    datatypes.JSON `json:"details,omitempty"`
	CreatedAt  time.Time      `gorm:"index" json:"created_at"`
}

func (AdminLog) TableName() string {
	return "admin_logs"
}

// PlatformStats is the admin dashboard snapshot
type PlatformStats struct {
	Markets          map[MarketStatus]int64 `json:"markets"`
	TotalMarkets     int64                  `json:"total_markets"`
	TotalUsers       int64                  `json:"total_users"`
	RecentSignups    int64                  `json:"recent_signups"`
	TotalPredictions int64                  `json:"total_predictions"`
	TotalPoints      int64                  `json:"total_points"`
	AvailablePoints  int64                  `json:"available_points"`
	LockedPoints     int64                  `json:"locked_points"`
	PointsEarnedWeek int64                  `json:"points_earned_7d"`
	PointsSpentWeek  int64                  `json:"points_spent_7d"`
	GeneratedAt      time.Time              `json:"generated_at"`
}
