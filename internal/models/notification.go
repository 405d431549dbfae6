package models

import (
	"time"

	"gorm.io/datatypes"
)

// NotificationType classifies a notification
type NotificationType string

const (
	NotifyMarketResult    NotificationType = "market_result"
	NotifyPointsEarned    NotificationType = "points_earned"
	NotifyPointsSpent     NotificationType = "points_spent"
	NotifyMarketApproved  NotificationType = "market_approved"
	NotifyMarketRejected  NotificationType = "market_rejected"
	NotifyAttendanceBonus NotificationType = "attendance_bonus"
	NotifyStreakBonus     NotificationType = "streak_bonus"
	NotifySystem          NotificationType = "system"
)

// IsValid reports whether t is a known notification type
func (t NotificationType) IsValid() bool {
	switch t {
	case NotifyMarketResult, NotifyPointsEarned, NotifyPointsSpent, NotifyMarketApproved,
		NotifyMarketRejected, NotifyAttendanceBonus, NotifyStreakBonus, NotifySystem:
		return true
	}
	return false
}

// Notification is an in-app message for one user
type Notification struct {
	ID        uint             `gorm:"primaryKey" json:"id"`
	UserID    uint             `gorm:"not null;index" json:"user_id"`
	Type      NotificationType `gorm:"size:30;not null" json:"type"`
	Title     string           `gorm:"size:200;not null" json:"title"`
	Message   string           `gorm:"type:text" json:"message"`
	Data      datatypes.JSON   `json:"data,omitempty"`
	IsRead    bool             `gorm:"not null;default:false;index" json:"is_read"`
	ReadAt    *time.Time       `json:"read_at,omitempty"`
	CreatedAt time.Time        `gorm:"index" json:"created_at"`
}

// TableName specifies the table name for Notification model
func (Notification) TableName() string {
	return "notifications"
}
