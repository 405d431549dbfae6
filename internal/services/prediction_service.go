package services

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ppplay-api/internal/config"
	"ppplay-api/internal/database"
	"ppplay-api/internal/events"
	"ppplay-api/internal/models"
)

// VoteResult is returned after a successful vote
type VoteResult struct {
	Prediction     *models.Prediction `json:"prediction"`
	MarketStats    models.MarketStats `json:"market_stats"`
	PointsEarned   int64              `json:"points_earned"`
	DailyVotesUsed int                `json:"daily_votes_used"`
	DailyVoteLimit int                `json:"daily_vote_limit"`
}

// PredictionService records votes
type PredictionService struct {
	db        *gorm.DB
	ledger    *LedgerService
	publisher events.Publisher
	points    config.PointsConfig
	loc       *time.Location
	now       func() time.Time
}

func NewPredictionService(db *gorm.DB, ledger *LedgerService, publisher events.Publisher, points config.PointsConfig, loc *time.Location) *PredictionService {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	if loc == nil {
		loc = time.UTC
	}
	return &PredictionService{
		db:        db,
		ledger:    ledger,
		publisher: publisher,
		points:    points,
		loc:       loc,
		now:       time.Now,
	}
}

// CastVote records one free vote and pays the participation reward. The
// market and account rows are locked for the whole transaction.
func (s *PredictionService) CastVote(ctx context.Context, userID, marketID uint, option models.PredictionOption) (*VoteResult, error) {
	if option != models.OptionYes && option != models.OptionNo {
		return nil, ErrInvalidOption
	}

	now := s.now()
	today := dateKey(now, s.loc)
	reward := s.points.ParticipationReward
	result := &VoteResult{DailyVoteLimit: s.points.DailyVoteLimit, PointsEarned: reward}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var market models.Market
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&market, marketID).Error; err != nil {
			if database.IsNotFound(err) {
				return ErrMarketNotFound
			}
			return fmt.Errorf("failed to lock market: %w", err)
		}
		if !market.AcceptsVotes() {
			return ErrMarketNotOpen
		}
		if !market.IsOpenForVoting(now) {
			return ErrMarketClosed
		}

		var existing int64
		if err := tx.Model(&models.Prediction{}).
			Where("user_id = ? AND market_id = ?", userID, marketID).
			Count(&existing).Error; err != nil {
			return fmt.Errorf("failed to check existing vote: %w", err)
		}
		if existing > 0 {
			return ErrAlreadyVoted
		}

		account, err := s.ledger.LockAccount(tx, userID)
		if err != nil {
			return err
		}
		used := account.DailyVotes
		if account.DailyVotesDate != today {
			used = 0
		}
		if used >= s.points.DailyVoteLimit {
			return ErrDailyVoteLimit
		}

		prediction := models.Prediction{
			UserID:              userID,
			MarketID:            marketID,
			PredictedOption:     option,
			ParticipationReward: reward,
		}
		if err := tx.Create(&prediction).Error; err != nil {
			if database.IsUniqueViolation(err) {
				return ErrAlreadyVoted
			}
			return fmt.Errorf("failed to create prediction: %w", err)
		}

		if reward > 0 {
			if _, err := s.ledger.Credit(tx, LedgerEntry{
				UserID:       userID,
				Amount:       reward,
				Type:         models.TxPredictionParticipation,
				MarketID:     &marketID,
				PredictionID: &prediction.ID,
				Description:  "Prediction participation",
			}); err != nil {
				return err
			}
		}

		countCol, pointsCol := "yes_count", "yes_points"
		if option == models.OptionNo {
			countCol, pointsCol = "no_count", "no_points"
		}
		if err := tx.Model(&models.Market{}).Where("id = ?", marketID).Updates(map[string]interface{}{
			countCol:             gorm.Expr(countCol+" + ?", 1),
			pointsCol:            gorm.Expr(pointsCol+" + ?", reward),
			"total_participants": gorm.Expr("total_participants + ?", 1),
			"total_points_pool":  gorm.Expr("total_points_pool + ?", reward),
		}).Error; err != nil {
			return fmt.Errorf("failed to update market counters: %w", err)
		}

		if err := tx.Model(&models.PointsAccount{}).Where("user_id = ?", userID).Updates(map[string]interface{}{
			"daily_votes":      used + 1,
			"daily_votes_date": today,
			"total_votes":      gorm.Expr("total_votes + ?", 1),
		}).Error; err != nil {
			return fmt.Errorf("failed to update vote counters: %w", err)
		}

		if err := tx.First(&market, marketID).Error; err != nil {
			return fmt.Errorf("failed to reload market: %w", err)
		}

		result.Prediction = &prediction
		result.DailyVotesUsed = used + 1
		result.MarketStats = models.MarketStats{
			TotalParticipants: market.TotalParticipants,
			YesCount:          market.YesCount,
			NoCount:           market.NoCount,
			TotalPointsPool:   market.TotalPointsPool,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"user_id":   userID,
		"market_id": marketID,
		"option":    option,
	}).Info("[Prediction] vote recorded")

	publishAll(ctx, s.publisher, events.Event{
		Subject:  events.SubjectPredictionCreated,
		UserID:   userID,
		MarketID: marketID,
		Payload: map[string]interface{}{
			"prediction_id":      result.Prediction.ID,
			"predicted_option":   option,
			"total_participants": result.MarketStats.TotalParticipants,
		},
	})
	return result, nil
}

// ResetStaleDailyVotes zeroes daily counters that belong to an earlier day
func (s *PredictionService) ResetStaleDailyVotes(ctx context.Context) (int64, error) {
	today := dateKey(s.now(), s.loc)
	result := s.db.WithContext(ctx).Model(&models.PointsAccount{}).
		Where("daily_votes > 0 AND daily_votes_date <> ?", today).
		Updates(map[string]interface{}{
			"daily_votes":      0,
			"daily_votes_date": today,
		})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to reset daily votes: %w", result.Error)
	}
	return result.RowsAffected, nil
}
