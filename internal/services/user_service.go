package services

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"ppplay-api/internal/apperrors"
	"ppplay-api/internal/config"
	"ppplay-api/internal/contentfilter"
	"ppplay-api/internal/database"
	"ppplay-api/internal/models"
)

const (
	nicknameMinLen = 2
	nicknameMaxLen = 20
	profileHistory = 50
)

// UserService handles profile reads and updates
type UserService struct {
	db     *gorm.DB
	ledger *LedgerService
	filter *contentfilter.Filter
	points config.PointsConfig
	loc    *time.Location
	now    func() time.Time
}

func NewUserService(db *gorm.DB, ledger *LedgerService, filter *contentfilter.Filter, points config.PointsConfig, loc *time.Location) *UserService {
	if loc == nil {
		loc = time.UTC
	}
	return &UserService{
		db:     db,
		ledger: ledger,
		filter: filter,
		points: points,
		loc:    loc,
		now:    time.Now,
	}
}

// PointsSummary is the balance block of a profile
type PointsSummary struct {
	Total      int64 `json:"total"`
	Available  int64 `json:"available"`
	Locked     int64 `json:"locked"`
	DailyVotes int   `json:"daily_votes"`
	DailyLimit int   `json:"daily_limit"`
}

// UserStats is the activity block of a profile
type UserStats struct {
	TotalVotes      int   `json:"total_votes"`
	CorrectVotes    int   `json:"correct_votes"`
	WinRate         int64 `json:"win_rate"`
	ConsecutiveDays int   `json:"consecutive_days"`
	TotalLoginDays  int   `json:"total_login_days"`
}

// Profile is everything the profile page shows
type Profile struct {
	User              models.User               `json:"user"`
	Points            PointsSummary             `json:"points"`
	Stats             UserStats                 `json:"stats"`
	RecentPredictions []PredictionWithMarket    `json:"predictions"`
	PointHistory      []models.PointTransaction `json:"point_history"`
}

// PredictionWithMarket pairs a prediction with the market it was cast on
type PredictionWithMarket struct {
	models.Prediction
	Market *models.Market `json:"market,omitempty" gorm:"-"`
}

// GetUserByID retrieves a user by ID
func (s *UserService) GetUserByID(ctx context.Context, userID uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &user, nil
}

// GetProfile assembles the caller's profile
func (s *UserService) GetProfile(ctx context.Context, userID uint) (*Profile, error) {
	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	account, err := s.ledger.GetAccount(ctx, userID)
	if err != nil {
		return nil, err
	}

	predictions, err := s.ListPredictions(ctx, userID, "all", profileHistory, 0)
	if err != nil {
		return nil, err
	}
	history, err := s.ledger.ListTransactions(ctx, userID, "", profileHistory, 0)
	if err != nil {
		return nil, err
	}

	dailyVotes := account.DailyVotes
	if account.DailyVotesDate != dateKey(s.now(), s.loc) {
		dailyVotes = 0
	}

	return &Profile{
		User: *user,
		Points: PointsSummary{
			Total:      account.TotalPoints,
			Available:  account.AvailablePoints,
			Locked:     account.LockedPoints(),
			DailyVotes: dailyVotes,
			DailyLimit: s.points.DailyVoteLimit,
		},
		Stats: UserStats{
			TotalVotes:      account.TotalVotes,
			CorrectVotes:    account.CorrectVotes,
			WinRate:         WinRate(account.CorrectVotes, account.TotalVotes),
			ConsecutiveDays: account.ConsecutiveDays,
			TotalLoginDays:  account.TotalLoginDays,
		},
		RecentPredictions: predictions.Predictions,
		PointHistory:      history.Transactions,
	}, nil
}

// UpdateNickname validates and stores a new nickname
func (s *UserService) UpdateNickname(ctx context.Context, userID uint, nickname string) (*models.User, error) {
	nickname = s.filter.Sanitize(nickname)
	length := utf8.RuneCountInString(nickname)
	if length < nicknameMinLen || length > nicknameMaxLen {
		return nil, apperrors.Validation(fmt.Sprintf("nickname must be %d to %d characters", nicknameMinLen, nicknameMaxLen))
	}
	if strings.ContainsAny(nickname, " \t\n") {
		return nil, apperrors.Validation("nickname must not contain spaces")
	}
	if err := s.filter.Validate(nickname); err != nil {
		return nil, err
	}

	result := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("nickname", nickname)
	if result.Error != nil {
		if database.IsUniqueViolation(result.Error) {
			return nil, ErrNicknameTaken
		}
		return nil, fmt.Errorf("failed to update nickname: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrUserNotFound
	}

	return s.GetUserByID(ctx, userID)
}

// PredictionPage is one page of a user's predictions
type PredictionPage struct {
	Predictions []PredictionWithMarket `json:"predictions"`
	HasMore     bool                   `json:"has_more"`
}

// ListPredictions pages through a user's votes. status is all, active or settled.
func (s *UserService) ListPredictions(ctx context.Context, userID uint, status string, limit, offset int) (*PredictionPage, error) {
	limit, offset = clampPage(limit, offset, 20, 100)
	db := s.db.WithContext(ctx)

	query := db.Where("user_id = ?", userID)
	switch status {
	case "", "all":
	case "active":
		query = query.Where("is_settled = ?", false)
	case "settled":
		query = query.Where("is_settled = ?", true)
	default:
		return nil, apperrors.Validation("status must be all, active or settled")
	}

	var rows []models.Prediction
	if err := query.Order("created_at DESC, id DESC").Limit(limit + 1).Offset(offset).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list predictions: %w", err)
	}

	page := &PredictionPage{}
	if len(rows) > limit {
		rows = rows[:limit]
		page.HasMore = true
	}

	marketIDs := make([]uint, 0, len(rows))
	for _, p := range rows {
		marketIDs = append(marketIDs, p.MarketID)
	}
	marketsByID := make(map[uint]*models.Market, len(marketIDs))
	if len(marketIDs) > 0 {
		var markets []models.Market
		if err := db.Where("id IN ?", marketIDs).Find(&markets).Error; err != nil {
			return nil, fmt.Errorf("failed to load markets: %w", err)
		}
		for i := range markets {
			marketsByID[markets[i].ID] = &markets[i]
		}
	}

	page.Predictions = make([]PredictionWithMarket, 0, len(rows))
	for _, p := range rows {
		page.Predictions = append(page.Predictions, PredictionWithMarket{
			Prediction: p,
			Market:     marketsByID[p.MarketID],
		})
	}
	return page, nil
}

// WinRate returns correct/total as a whole percentage, rounded half up
func WinRate(correct, total int) int64 {
	if total <= 0 {
		return 0
	}
	return decimal.NewFromInt(int64(correct)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(total))).
		Round(0).
		IntPart()
}

// dateKey is the calendar day of t in loc
func dateKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02")
}
