package models

import (
	"time"
)

// MarketStatus is the lifecycle state of a market
type MarketStatus string

const (
	MarketStatusPending   MarketStatus = "pending"
	MarketStatusApproved  MarketStatus = "approved"
	MarketStatusActive    MarketStatus = "active"
	MarketStatusClosed    MarketStatus = "closed"
	MarketStatusCancelled MarketStatus = "cancelled"
	MarketStatusDeleted   MarketStatus = "deleted"
)

// MarketResult is the confirmed outcome of a market
type MarketResult string

const (
	ResultYes       MarketResult = "yes"
	ResultNo        MarketResult = "no"
	ResultCancelled MarketResult = "cancelled"
)

// IsValid reports whether r is a settleable result
func (r MarketResult) IsValid() bool {
	return r == ResultYes || r == ResultNo || r == ResultCancelled
}

// Market represents a binary-outcome question users vote on
type Market struct {
	ID                uint          `gorm:"primaryKey" json:"id"`
	Title             string        `gorm:"size:200;not null" json:"title"`
	Description       string        `gorm:"type:text" json:"description"`
	CategorySlug      string        `gorm:"size:50;not null;index" json:"category_slug"`
	OptionYes         string        `gorm:"size:100;not null" json:"option_yes"`
	OptionNo          string        `gorm:"size:100;not null" json:"option_no"`
	MarketType        string        `gorm:"size:20;not null;default:general" json:"market_type"`
	Status            MarketStatus  `gorm:"size:20;not null;index" json:"status"`
	DeletedFrom       *MarketStatus `gorm:"size:20" json:"-"`
	ClosesAt          time.Time     `gorm:"not null;index" json:"closes_at"`
	IsClosed          bool          `gorm:"not null;default:false;index" json:"is_closed"`
	Result            *MarketResult `gorm:"size:20" json:"result"`
	ResultDescription string        `gorm:"type:text" json:"result_description,omitempty"`
	CreatorID         uint          `gorm:"not null;index" json:"creator_id"`
	CreationFee       int64         `gorm:"not null;default:0" json:"creation_fee"`
	YesCount          int64         `gorm:"not null;default:0" json:"yes_count"`
	NoCount           int64         `gorm:"not null;default:0" json:"no_count"`
	TotalParticipants int64         `gorm:"not null;default:0" json:"total_participants"`
	TotalPointsPool   int64         `gorm:"not null;default:0" json:"total_points_pool"`
	YesPoints         int64         `gorm:"not null;default:0" json:"yes_points"`
	NoPoints          int64         `gorm:"not null;default:0" json:"no_points"`
	ConfirmedBy       *string       `gorm:"size:255" json:"confirmed_by,omitempty"`
	ConfirmedAt       *time.Time    `json:"confirmed_at,omitempty"`
	ApprovedAt        *time.Time    `json:"approved_at,omitempty"`
	CreatedAt         time.Time     `gorm:"index" json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

// TableName specifies the table name for Market model
func (Market) TableName() string {
	return "markets"
}

// AcceptsVotes reports whether the status allows voting at all
func (m *Market) AcceptsVotes() bool {
	return m.Status == MarketStatusActive || m.Status == MarketStatusApproved
}

// IsOpenForVoting reports whether votes may still be cast at now
func (m *Market) IsOpenForVoting(now time.Time) bool {
	return m.AcceptsVotes() && !m.IsClosed && now.Before(m.ClosesAt)
}

// MarketStats is the aggregate view returned after a vote
type MarketStats struct {
	TotalParticipants int64 `json:"total_participants"`
	YesCount          int64 `json:"yes_count"`
	NoCount           int64 `json:"no_count"`
	TotalPointsPool   int64 `json:"total_points_pool"`
}
