package models

import (
	"time"
)

// TransactionType classifies a ledger entry
type TransactionType string

const (
	TxSignupBonus             TransactionType = "signup_bonus"
	TxDailyLogin              TransactionType = "daily_login"
	TxConsecutiveBonus        TransactionType = "consecutive_bonus"
	TxPredictionParticipation TransactionType = "prediction_participation"
	TxPredictionReward        TransactionType = "prediction_reward"
	TxPredictionRefund        TransactionType = "prediction_refund"
	TxMarketCreation          TransactionType = "market_creation"
	TxCreatorBonus            TransactionType = "creator_bonus"
	TxAdminAdjustment         TransactionType = "admin_adjustment"
)

// IsValid reports whether t is a known transaction type
func (t TransactionType) IsValid() bool {
	switch t {
	case TxSignupBonus, TxDailyLogin, TxConsecutiveBonus, TxPredictionParticipation,
		TxPredictionReward, TxPredictionRefund, TxMarketCreation, TxCreatorBonus, TxAdminAdjustment:
		return true
	}
	return false
}

// PointsAccount holds a user's balances and activity counters.
// TotalPoints only grows with earnings; AvailablePoints is what can be spent.
type PointsAccount struct {
	UserID          uint       `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	TotalPoints     int64      `gorm:"not null;default:0;index" json:"total_points"`
	AvailablePoints int64      `gorm:"not null;default:0" json:"available_points"`
	DailyVotes      int        `gorm:"not null;default:0" json:"daily_votes"`
	DailyVotesDate  string     `gorm:"size:10" json:"daily_votes_date"`
	ConsecutiveDays int        `gorm:"not null;default:0;index" json:"consecutive_days"`
	TotalLoginDays  int        `gorm:"not null;default:0" json:"total_login_days"`
	LastLoginAt     *time.Time `json:"last_login_at,omitempty"`
	TotalVotes      int        `gorm:"not null;default:0" json:"total_votes"`
	CorrectVotes    int        `gorm:"not null;default:0;index" json:"correct_votes"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// TableName specifies the table name for PointsAccount model
func (PointsAccount) TableName() string {
	return "points_accounts"
}

// LockedPoints is the part of the balance that cannot currently be spent
func (a *PointsAccount) LockedPoints() int64 {
	return a.TotalPoints - a.AvailablePoints
}

// PointTransaction is an immutable ledger entry. Balances snapshot AvailablePoints.
type PointTransaction struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	UserID          uint            `gorm:"not null;index" json:"user_id"`
	TransactionType TransactionType `gorm:"size:50;not null;index" json:"transaction_type"`
	Amount          int64           `gorm:"not null" json:"amount"`
	BalanceBefore   int64           `gorm:"not null" json:"balance_before"`
	BalanceAfter    int64           `gorm:"not null" json:"balance_after"`
	MarketID        *uint           `gorm:"index" json:"market_id,omitempty"`
	PredictionID    *uint           `gorm:"index" json:"prediction_id,omitempty"`
	Description     string          `gorm:"size:255" json:"description"`
	CreatedAt       time.Time       `gorm:"index" json:"created_at"`
}

// TableName specifies the table name for PointTransaction model
func (PointTransaction) TableName() string {
	return "point_transactions"
}
