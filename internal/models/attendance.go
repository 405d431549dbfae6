package models

import (
	"time"
)

// Attendance is one daily check-in. Date is the local calendar day (YYYY-MM-DD).
type Attendance struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	UserID          uint      `gorm:"not null;uniqueIndex:idx_attendance_user_date" json:"user_id"`
	Date            string    `gorm:"size:10;not null;uniqueIndex:idx_attendance_user_date" json:"date"`
	PointsEarned    int64     `gorm:"not null" json:"points_earned"`
	BonusPoints     int64     `gorm:"not null;default:0" json:"bonus_points"`
	ConsecutiveDays int       `gorm:"not null" json:"consecutive_days"`
	CreatedAt       time.Time `json:"created_at"`
}

// TableName specifies the table name for Attendance model
func (Attendance) TableName() string {
	return "attendance"
}
