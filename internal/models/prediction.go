package models

import (
	"time"
)

// PredictionOption is the side a user voted for
type PredictionOption string

const (
	OptionYes PredictionOption = "yes"
	OptionNo  PredictionOption = "no"
)

// Prediction is a single user's vote on a market. One per (user, market).
type Prediction struct {
	ID                  uint             `gorm:"primaryKey" json:"id"`
	UserID              uint             `gorm:"not null;uniqueIndex:idx_predictions_user_market" json:"user_id"`
	MarketID            uint             `gorm:"not null;uniqueIndex:idx_predictions_user_market;index" json:"market_id"`
	PredictedOption     PredictionOption `gorm:"size:3;not null" json:"predicted_option"`
	ParticipationReward int64            `gorm:"not null;default:0" json:"participation_reward"`
	AccuracyReward      int64            `gorm:"not null;default:0" json:"accuracy_reward"`
	IsCorrect           *bool            `json:"is_correct"`
	IsSettled           bool             `gorm:"not null;default:false;index" json:"is_settled"`
	SettledAt           *time.Time       `json:"settled_at,omitempty"`
	CreatedAt           time.Time        `gorm:"index" json:"created_at"`
}

// TableName specifies the table name for Prediction model
func (Prediction) TableName() string {
	return "predictions"
}
