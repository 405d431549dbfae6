package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"ppplay-api/internal/apperrors"
	"ppplay-api/internal/config"
	"ppplay-api/internal/contentfilter"
	"ppplay-api/internal/database"
	"ppplay-api/internal/events"
	"ppplay-api/internal/models"
	"ppplay-api/internal/ratelimit"
	"ppplay-api/internal/utils"
)

const (
	titleMaxLen       = 200
	descriptionMaxLen = 2000
	optionMaxLen      = 100
)

// CreateMarketInput is the user-supplied part of a new market
type CreateMarketInput struct {
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	CategorySlug string    `json:"category_slug"`
	OptionYes    string    `json:"option_yes"`
	OptionNo     string    `json:"option_no"`
	ClosesAt     time.Time `json:"closes_at"`
	MarketType   string    `json:"market_type"`
}

// MarketService handles market creation and public market reads
type MarketService struct {
	db        *gorm.DB
	ledger    *LedgerService
	limiter   ratelimit.Limiter
	rule      ratelimit.Rule
	filter    *contentfilter.Filter
	publisher events.Publisher
	points    config.PointsConfig
	now       func() time.Time
}

func NewMarketService(
	db *gorm.DB,
	ledger *LedgerService,
	limiter ratelimit.Limiter,
	rule ratelimit.Rule,
	filter *contentfilter.Filter,
	publisher events.Publisher,
	points config.PointsConfig,
) *MarketService {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &MarketService{
		db:        db,
		ledger:    ledger,
		limiter:   limiter,
		rule:      rule,
		filter:    filter,
		publisher: publisher,
		points:    points,
		now:       time.Now,
	}
}

func (s *MarketService) validate(in *CreateMarketInput) error {
	in.Title = s.filter.Sanitize(in.Title)
	in.Description = s.filter.Sanitize(in.Description)
	in.CategorySlug = strings.ToLower(strings.TrimSpace(in.CategorySlug))
	in.OptionYes = s.filter.Sanitize(in.OptionYes)
	in.OptionNo = s.filter.Sanitize(in.OptionNo)
	in.MarketType = strings.TrimSpace(in.MarketType)
	if in.MarketType == "" {
		in.MarketType = "general"
	}

	if in.Title == "" || in.CategorySlug == "" || in.OptionYes == "" || in.OptionNo == "" || in.ClosesAt.IsZero() {
		return apperrors.Validation("title, category_slug, option_yes, option_no and closes_at are required")
	}
	if utf8.RuneCountInString(in.Title) > titleMaxLen {
		return apperrors.Validation(fmt.Sprintf("title must be at most %d characters", titleMaxLen))
	}
	if utf8.RuneCountInString(in.Description) > descriptionMaxLen {
		return apperrors.Validation(fmt.Sprintf("description must be at most %d characters", descriptionMaxLen))
	}
	if utf8.RuneCountInString(in.OptionYes) > optionMaxLen || utf8.RuneCountInString(in.OptionNo) > optionMaxLen {
		return apperrors.Validation(fmt.Sprintf("options must be at most %d characters", optionMaxLen))
	}
	if !in.ClosesAt.After(s.now()) {
		return apperrors.Validation("closes_at must be in the future")
	}

	if err := s.filter.Validate(in.Title); err != nil {
		return err
	}
	if in.Description != "" {
		if _, found := s.filter.ContainsBanned(in.Description); found {
			return contentfilter.ErrBannedWord
		}
	}
	return nil
}

// CreateMarket inserts a pending market and charges the creation fee in one
// transaction. A failed debit rolls the market back.
func (s *MarketService) CreateMarket(ctx context.Context, userID uint, in CreateMarketInput) (*models.Market, *models.PointTransaction, error) {
	if err := s.validate(&in); err != nil {
		return nil, nil, err
	}

	if err := enforceLimit(ctx, s.limiter, ratelimit.UserKey(userID), s.rule); err != nil {
		return nil, nil, err
	}

	var market models.Market
	var fee *models.PointTransaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		account, err := s.ledger.LockAccount(tx, userID)
		if err != nil {
			return err
		}
		if account.AvailablePoints < s.points.MarketCreationFee {
			return apperrors.Wrap(ErrInsufficientPoints, apperrors.ErrCodeInsufficientPoints,
				fmt.Sprintf("creating a market costs %d points, you have %d", s.points.MarketCreationFee, account.AvailablePoints))
		}

		market = models.Market{
			Title:        in.Title,
			Description:  in.Description,
			CategorySlug: in.CategorySlug,
			OptionYes:    in.OptionYes,
			OptionNo:     in.OptionNo,
			MarketType:   in.MarketType,
			Status:       models.MarketStatusPending,
			ClosesAt:     in.ClosesAt.UTC(),
			CreatorID:    userID,
			CreationFee:  s.points.MarketCreationFee,
		}
		if err := tx.Create(&market).Error; err != nil {
			return fmt.Errorf("failed to create market: %w", err)
		}

		fee, err = s.ledger.Debit(tx, LedgerEntry{
			UserID:      userID,
			Amount:      s.points.MarketCreationFee,
			Type:        models.TxMarketCreation,
			MarketID:    &market.ID,
			Description: "Market creation",
		})
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	log.WithFields(log.Fields{
		"market_id":  market.ID,
		"creator_id": userID,
	}).Info("[Market] created pending market")

	publishAll(ctx, s.publisher, marketEvent(events.SubjectMarketCreated, &market, map[string]interface{}{
		"title":    market.Title,
		"category": market.CategorySlug,
	}))
	return &market, fee, nil
}

// MarketPage is one page of markets
type MarketPage struct {
	Markets []models.Market `json:"markets"`
	Total   int64           `json:"total"`
}

// ListMarkets returns open markets, newest first
func (s *MarketService) ListMarkets(ctx context.Context, category string, limit, offset int) (*MarketPage, error) {
	limit, offset = clampPage(limit, offset, 20, 100)

	query := s.db.WithContext(ctx).Model(&models.Market{}).
		Where("status IN ?", []models.MarketStatus{models.MarketStatusActive, models.MarketStatusApproved}).
		Where("is_closed = ?", false)
	if category != "" && category != "all" {
		query = query.Where("category_slug = ?", category)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count markets: %w", err)
	}

	var markets []models.Market
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Offset(offset).Find(&markets).Error; err != nil {
		return nil, fmt.Errorf("failed to list markets: %w", err)
	}
	return &MarketPage{Markets: markets, Total: total}, nil
}

// GetMarket returns one market with its aggregate counters
func (s *MarketService) GetMarket(ctx context.Context, id uint) (*models.Market, error) {
	var market models.Market
	if err := s.db.WithContext(ctx).First(&market, id).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, ErrMarketNotFound
		}
		return nil, fmt.Errorf("failed to load market: %w", err)
	}
	return &market, nil
}

// Activity is one vote in a market's public feed
type Activity struct {
	ID              uint                    `json:"id"`
	Nickname        string                  `json:"nickname"`
	PredictedOption models.PredictionOption `json:"predicted_option"`
	CreatedAt       time.Time               `json:"created_at"`
}

// ActivityPage is one page of a market's vote feed
type ActivityPage struct {
	Activities []Activity `json:"activities"`
	Total      int64      `json:"total"`
}

// MarketActivity lists recent votes on a market with masked nicknames
func (s *MarketService) MarketActivity(ctx context.Context, marketID uint, limit, offset int) (*ActivityPage, error) {
	limit, offset = clampPage(limit, offset, 20, 100)
	db := s.db.WithContext(ctx)

	if _, err := s.GetMarket(ctx, marketID); err != nil {
		return nil, err
	}

	var total int64
	if err := db.Model(&models.Prediction{}).Where("market_id = ?", marketID).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count predictions: %w", err)
	}

	type row struct {
		ID              uint
		UserID          uint
		Nickname        *string
		PredictedOption models.PredictionOption
		CreatedAt       time.Time
	}
	var rows []row
	err := db.Table("predictions").
		Select("predictions.id, predictions.user_id, users.nickname, predictions.predicted_option, predictions.created_at").
		Joins("LEFT JOIN users ON users.id = predictions.user_id").
		Where("predictions.market_id = ?", marketID).
		Order("predictions.created_at DESC, predictions.id DESC").
		Limit(limit).Offset(offset).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list market activity: %w", err)
	}

	page := &ActivityPage{Activities: make([]Activity, 0, len(rows)), Total: total}
	for _, r := range rows {
		name := utils.FallbackNickname(r.UserID)
		if r.Nickname != nil && *r.Nickname != "" {
			name = *r.Nickname
		}
		page.Activities = append(page.Activities, Activity{
			ID:              r.ID,
			Nickname:        utils.MaskNickname(name),
			PredictedOption: r.PredictedOption,
			CreatedAt:       r.CreatedAt,
		})
	}
	return page, nil
}

// enforceLimit turns a denied rate-limit decision into an AppError carrying the retry delay
func enforceLimit(ctx context.Context, limiter ratelimit.Limiter, key string, rule ratelimit.Rule) error {
	if limiter == nil {
		return nil
	}
	decision, err := limiter.Allow(ctx, key, rule)
	if err != nil {
		return fmt.Errorf("rate limit check failed: %w", err)
	}
	if !decision.Allowed {
		return apperrors.Wrap(&ratelimit.ExceededError{Action: rule.Action, RetryAfter: decision.RetryAfter},
			apperrors.ErrCodeRateLimitExceeded, ErrRateLimited.Message)
	}
	return nil
}

// RetryAfter extracts the wait from a rate-limit error
func RetryAfter(err error) (time.Duration, bool) {
	var exceeded *ratelimit.ExceededError
	if errors.As(err, &exceeded) {
		return exceeded.RetryAfter, true
	}
	return 0, false
}

// CloseExpiredMarkets marks open markets past their closing time as closed
// for voting. They keep their status until an admin settles them.
func (s *MarketService) CloseExpiredMarkets(ctx context.Context) (int64, error) {
	now := s.now().UTC()
	db := s.db.WithContext(ctx)

	var ids []uint
	if err := db.Model(&models.Market{}).
		Where("status IN ?", []models.MarketStatus{models.MarketStatusActive, models.MarketStatusApproved}).
		Where("is_closed = ? AND closes_at <= ?", false, now).
		Pluck("id", &ids).Error; err != nil {
		return 0, fmt.Errorf("failed to find expired markets: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	result := db.Model(&models.Market{}).
		Where("id IN ? AND is_closed = ?", ids, false).
		Update("is_closed", true)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to close expired markets: %w", result.Error)
	}

	evs := make([]events.Event, 0, len(ids))
	for _, id := range ids {
		evs = append(evs, events.Event{Subject: events.SubjectMarketClosed, MarketID: id})
	}
	publishAll(ctx, s.publisher, evs...)
	return result.RowsAffected, nil
}
