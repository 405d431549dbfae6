package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ppplay-api/internal/config"
	"ppplay-api/internal/database"
	"ppplay-api/internal/events"
	"ppplay-api/internal/models"
)

// SettlementSummary reports what a settlement pass did
type SettlementSummary struct {
	MarketID uint                `json:"market_id"`
	Result   models.MarketResult `json:"result"`
	Settled  int                 `json:"settled"`
	Winners  int                 `json:"winners"`
	Paid     int64               `json:"paid"`
}

// MarketResolutionService settles markets and pays accuracy rewards
type MarketResolutionService struct {
	db            *gorm.DB
	ledger        *LedgerService
	notifications *NotificationService
	publisher     events.Publisher
	points        config.PointsConfig
	now           func() time.Time
}

func NewMarketResolutionService(db *gorm.DB, ledger *LedgerService, notifications *NotificationService, publisher events.Publisher, points config.PointsConfig) *MarketResolutionService {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &MarketResolutionService{
		db:            db,
		ledger:        ledger,
		notifications: notifications,
		publisher:     publisher,
		points:        points,
		now:           time.Now,
	}
}

// ResolveMarket confirms the result and settles every unsettled prediction.
// description is optional and kept as the market's result_description.
// Re-running with the same result resumes an interrupted pass; each
// prediction is claimed with a guarded update so nothing is paid twice.
func (s *MarketResolutionService) ResolveMarket(ctx context.Context, marketID uint, result models.MarketResult, confirmedBy, description string) (*SettlementSummary, error) {
	if !result.IsValid() {
		return nil, ErrInvalidResult
	}

	summary := &SettlementSummary{MarketID: marketID, Result: result}
	var market models.Market
	var notes []*models.Notification

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&market, marketID).Error; err != nil {
			if database.IsNotFound(err) {
				return ErrMarketNotFound
			}
			return fmt.Errorf("failed to lock market: %w", err)
		}

		switch market.Status {
		case models.MarketStatusDeleted, models.MarketStatusCancelled, models.MarketStatusPending:
			return ErrMarketNotSettleable
		}

		now := s.now().UTC()
		if !market.IsClosed && now.Before(market.ClosesAt) {
			return ErrVotingNotEnded
		}

		if market.Result != nil && *market.Result != result {
			return ErrAlreadySettled
		}

		var pending []models.Prediction
		if err := tx.Where("market_id = ? AND is_settled = ?", marketID, false).
			Order("id ASC").
			Find(&pending).Error; err != nil {
			return fmt.Errorf("failed to load predictions: %w", err)
		}
		if market.Result != nil && len(pending) == 0 {
			return ErrAlreadySettled
		}

		if market.Result == nil {
			fields := map[string]interface{}{
				"result":       result,
				"status":       models.MarketStatusClosed,
				"is_closed":    true,
				"confirmed_by": confirmedBy,
				"confirmed_at": now,
			}
			if d := strings.TrimSpace(description); d != "" {
				fields["result_description"] = d
			}
			if err := tx.Model(&market).Updates(fields).Error; err != nil {
				return fmt.Errorf("failed to record market result: %w", err)
			}
		}

		for _, p := range pending {
			paid, won, settled, err := s.settlePrediction(tx, &market, p, result, now)
			if err != nil {
				return err
			}
			if !settled {
				continue
			}
			summary.Settled++
			summary.Paid += paid
			if won {
				summary.Winners++
			}

			n, err := s.notifications.CreateTx(tx, resultNotification(&market, p, result, won, paid))
			if err != nil {
				return err
			}
			notes = append(notes, n)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"market_id": marketID,
		"result":    result,
		"settled":   summary.Settled,
		"winners":   summary.Winners,
		"paid":      summary.Paid,
	}).Info("[Settlement] market settled")

	s.notifications.Publish(ctx, notes...)
	publishAll(ctx, s.publisher, marketEvent(events.SubjectMarketSettled, &market, map[string]interface{}{
		"result":  result,
		"settled": summary.Settled,
		"winners": summary.Winners,
	}))
	return summary, nil
}

func (s *MarketResolutionService) settlePrediction(tx *gorm.DB, market *models.Market, p models.Prediction, result models.MarketResult, now time.Time) (paid int64, won bool, settled bool, err error) {
	updates := map[string]interface{}{
		"is_settled": true,
		"settled_at": now,
	}
	if result != models.ResultCancelled {
		won = string(p.PredictedOption) == string(result)
		updates["is_correct"] = won
		if won {
			updates["accuracy_reward"] = s.points.AccuracyReward
		}
	}

	claim := tx.Model(&models.Prediction{}).
		Where("id = ? AND is_settled = ?", p.ID, false).
		Updates(updates)
	if claim.Error != nil {
		return 0, false, false, fmt.Errorf("failed to settle prediction %d: %w", p.ID, claim.Error)
	}
	if claim.RowsAffected != 1 {
		return 0, false, false, nil
	}

	if !won {
		return 0, false, true, nil
	}

	if s.points.AccuracyReward > 0 {
		if _, err := s.ledger.Credit(tx, LedgerEntry{
			UserID:       p.UserID,
			Amount:       s.points.AccuracyReward,
			Type:         models.TxPredictionReward,
			MarketID:     &market.ID,
			PredictionID: &p.ID,
			Description:  "Correct prediction reward",
		}); err != nil {
			return 0, false, false, err
		}
	}
	if err := tx.Model(&models.PointsAccount{}).
		Where("user_id = ?", p.UserID).
		Update("correct_votes", gorm.Expr("correct_votes + ?", 1)).Error; err != nil {
		return 0, false, false, fmt.Errorf("failed to update correct votes: %w", err)
	}
	return s.points.AccuracyReward, true, true, nil
}

func resultNotification(market *models.Market, p models.Prediction, result models.MarketResult, won bool, paid int64) NotificationInput {
	in := NotificationInput{
		UserID: p.UserID,
		Type:   models.NotifyMarketResult,
		Data: map[string]interface{}{
			"market_id":        market.ID,
			"result":           result,
			"predicted_option": p.PredictedOption,
			"is_correct":       won,
			"reward":           paid,
		},
	}
	switch {
	case result == models.ResultCancelled:
		in.Title = "Market cancelled"
		in.Message = fmt.Sprintf("\"%s\" was cancelled. Your participation reward is kept.", market.Title)
	case won:
		in.Title = "Correct prediction!"
		in.Message = fmt.Sprintf("\"%s\" resolved %s. You earned %d points.", market.Title, result, paid)
	default:
		in.Title = "Market resolved"
		in.Message = fmt.Sprintf("\"%s\" resolved %s. Better luck next time.", market.Title, result)
	}
	return in
}
