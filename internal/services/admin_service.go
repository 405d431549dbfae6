package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ppplay-api/internal/apperrors"
	"ppplay-api/internal/config"
	"ppplay-api/internal/database"
	"ppplay-api/internal/events"
	"ppplay-api/internal/models"
)

// Admin actions recorded in admin_logs
const (
	ActionApproveMarket      = "APPROVE_MARKET"
	ActionRejectMarket       = "REJECT_MARKET"
	ActionSettleMarket       = "SETTLE_MARKET"
	ActionDeleteMarket       = "DELETE_MARKET"
	ActionRestoreMarket      = "RESTORE_MARKET"
	ActionDeleteComment      = "DELETE_COMMENT"
	ActionAdjustPoints       = "ADJUST_POINTS"
	ActionCreateNotification = "CREATE_NOTIFICATION"
)

// Actor identifies the admin performing an action
type Actor struct {
	ID    uint
	Email string
}

type AdminService struct {
	db            *gorm.DB
	ledger        *LedgerService
	notifications *NotificationService
	resolution    *MarketResolutionService
	comments      *CommentService
	publisher     events.Publisher
	points        config.PointsConfig
	now           func() time.Time
}

func NewAdminService(
	db *gorm.DB,
	ledger *LedgerService,
	notifications *NotificationService,
	resolution *MarketResolutionService,
	comments *CommentService,
	publisher events.Publisher,
	points config.PointsConfig,
) *AdminService {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &AdminService{
		db:            db,
		ledger:        ledger,
		notifications: notifications,
		resolution:    resolution,
		comments:      comments,
		publisher:     publisher,
		points:        points,
		now:           time.Now,
	}
}

func lockMarket(tx *gorm.DB, id uint) (*models.Market, error) {
	var market models.Market
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&market, id).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, ErrMarketNotFound
		}
		return nil, fmt.Errorf("failed to lock market: %w", err)
	}
	return &market, nil
}

// ApproveMarket opens a pending market for voting and pays the creator bonus
func (s *AdminService) ApproveMarket(ctx context.Context, actor Actor, id uint) (*models.Market, error) {
	var market *models.Market
	var note *models.Notification

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		market, err = lockMarket(tx, id)
		if err != nil {
			return err
		}
		if market.Status != models.MarketStatusPending {
			return ErrMarketNotPending
		}

		now := s.now().UTC()
		if err := tx.Model(market).Updates(map[string]interface{}{
			"status":      models.MarketStatusApproved,
			"approved_at": now,
		}).Error; err != nil {
			return fmt.Errorf("failed to approve market: %w", err)
		}
		market.Status = models.MarketStatusApproved
		market.ApprovedAt = &now

		if s.points.CreatorBonus > 0 {
			if _, err := s.ledger.Credit(tx, LedgerEntry{
				UserID:      market.CreatorID,
				Amount:      s.points.CreatorBonus,
				Type:        models.TxCreatorBonus,
				MarketID:    &market.ID,
				Description: "Market approved bonus",
			}); err != nil {
				return err
			}
		}

		note, err = s.notifications.CreateTx(tx, NotificationInput{
			UserID:  market.CreatorID,
			Type:    models.NotifyMarketApproved,
			Title:   "Market approved",
			Message: fmt.Sprintf("\"%s\" is now open for voting. You earned %d bonus points.", market.Title, s.points.CreatorBonus),
			Data: map[string]interface{}{
				"market_id": market.ID,
				"bonus":     s.points.CreatorBonus,
			},
		})
		if err != nil {
			return err
		}

		return s.LogAdminAction(tx, actor, ActionApproveMarket, "market", &market.ID, map[string]interface{}{
			"creator_id": market.CreatorID,
			"bonus":      s.points.CreatorBonus,
		})
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{"market_id": id, "admin": actor.Email}).Info("[Admin] market approved")
	s.notifications.Publish(ctx, note)
	publishAll(ctx, s.publisher, marketEvent(events.SubjectMarketApproved, market, nil))
	return market, nil
}

// RejectMarket cancels a pending market and refunds the creation fee once
func (s *AdminService) RejectMarket(ctx context.Context, actor Actor, id uint, reason string) (*models.Market, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "Rejected by administrator"
	}

	var market *models.Market
	var note *models.Notification

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		market, err = lockMarket(tx, id)
		if err != nil {
			return err
		}
		if market.Status != models.MarketStatusPending {
			return ErrMarketNotPending
		}

		if err := tx.Model(market).Updates(map[string]interface{}{
			"status":             models.MarketStatusCancelled,
			"is_closed":          true,
			"result_description": reason,
		}).Error; err != nil {
			return fmt.Errorf("failed to reject market: %w", err)
		}
		market.Status = models.MarketStatusCancelled
		market.IsClosed = true
		market.ResultDescription = reason

		if market.CreationFee > 0 {
			if _, err := s.ledger.Refund(tx, LedgerEntry{
				UserID:      market.CreatorID,
				Amount:      market.CreationFee,
				Type:        models.TxPredictionRefund,
				MarketID:    &market.ID,
				Description: "Market rejected, creation fee refunded",
			}); err != nil {
				return err
			}
		}

		note, err = s.notifications.CreateTx(tx, NotificationInput{
			UserID:  market.CreatorID,
			Type:    models.NotifyMarketRejected,
			Title:   "Market rejected",
			Message: fmt.Sprintf("\"%s\" was rejected: %s. %d points were refunded.", market.Title, reason, market.CreationFee),
			Data: map[string]interface{}{
				"market_id": market.ID,
				"reason":    reason,
				"refund":    market.CreationFee,
			},
		})
		if err != nil {
			return err
		}

		return s.LogAdminAction(tx, actor, ActionRejectMarket, "market", &market.ID, map[string]interface{}{
			"reason": reason,
			"refund": market.CreationFee,
		})
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{"market_id": id, "admin": actor.Email}).Info("[Admin] market rejected")
	s.notifications.Publish(ctx, note)
	publishAll(ctx, s.publisher, marketEvent(events.SubjectMarketRejected, market, map[string]interface{}{"reason": reason}))
	return market, nil
}

// SettleMarket confirms a result and pays out through the resolution service
func (s *AdminService) SettleMarket(ctx context.Context, actor Actor, id uint, result models.MarketResult, description string) (*SettlementSummary, error) {
	summary, err := s.resolution.ResolveMarket(ctx, id, result, actor.Email, description)
	if err != nil {
		return nil, err
	}

	if err := s.LogAdminAction(s.db.WithContext(ctx), actor, ActionSettleMarket, "market", &id, map[string]interface{}{
		"result":      result,
		"description": strings.TrimSpace(description),
		"settled":     summary.Settled,
		"winners":     summary.Winners,
		"paid":        summary.Paid,
	}); err != nil {
		log.WithError(err).WithField("market_id", id).Error("[Admin] failed to log settlement")
	}
	return summary, nil
}

// DeleteMarket soft-deletes a market and tells its creator why.
// The status it had is kept so RestoreMarket can put it back.
func (s *AdminService) DeleteMarket(ctx context.Context, actor Actor, id uint, reason string) (*models.Market, error) {
	reason = strings.TrimSpace(reason)
	var market *models.Market
	var note *models.Notification

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		market, err = lockMarket(tx, id)
		if err != nil {
			return err
		}
		if market.Status == models.MarketStatusDeleted {
			return ErrMarketDeleted
		}
		previous := market.Status

		if err := tx.Model(market).Updates(map[string]interface{}{
			"status":       models.MarketStatusDeleted,
			"deleted_from": previous,
			"is_closed":    true,
		}).Error; err != nil {
			return fmt.Errorf("failed to delete market: %w", err)
		}
		market.Status = models.MarketStatusDeleted
		market.DeletedFrom = &previous
		market.IsClosed = true

		message := fmt.Sprintf("\"%s\" was removed by an administrator.", market.Title)
		if reason != "" {
			message = fmt.Sprintf("\"%s\" was removed by an administrator: %s", market.Title, reason)
		}
		note, err = s.notifications.CreateTx(tx, NotificationInput{
			UserID:  market.CreatorID,
			Type:    models.NotifyMarketRejected,
			Title:   "Market removed",
			Message: message,
			Data:    map[string]interface{}{"market_id": market.ID, "reason": reason},
		})
		if err != nil {
			return err
		}

		return s.LogAdminAction(tx, actor, ActionDeleteMarket, "market", &market.ID, map[string]interface{}{
			"previous_status": previous,
			"reason":          reason,
		})
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{"market_id": id, "admin": actor.Email}).Info("[Admin] market deleted")
	s.notifications.Publish(ctx, note)
	publishAll(ctx, s.publisher, marketEvent(events.SubjectMarketDeleted, market, nil))
	return market, nil
}

// RestoreMarket puts a deleted market back in the status it was deleted from
func (s *AdminService) RestoreMarket(ctx context.Context, actor Actor, id uint) (*models.Market, error) {
	var market *models.Market
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		market, err = lockMarket(tx, id)
		if err != nil {
			return err
		}
		if market.Status != models.MarketStatusDeleted {
			return ErrMarketNotDeleted
		}

		status := restoredStatus(market)
		closed := market.Result != nil ||
			status == models.MarketStatusClosed ||
			status == models.MarketStatusCancelled ||
			!s.now().UTC().Before(market.ClosesAt)

		if err := tx.Model(market).Updates(map[string]interface{}{
			"status":       status,
			"deleted_from": nil,
			"is_closed":    closed,
		}).Error; err != nil {
			return fmt.Errorf("failed to restore market: %w", err)
		}
		market.Status = status
		market.DeletedFrom = nil
		market.IsClosed = closed

		return s.LogAdminAction(tx, actor, ActionRestoreMarket, "market", &market.ID, map[string]interface{}{
			"restored_status": status,
		})
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{"market_id": id, "admin": actor.Email, "status": market.Status}).Info("[Admin] market restored")
	return market, nil
}

// restoredStatus falls back to what the row itself shows for markets
// deleted before the previous status was recorded.
func restoredStatus(m *models.Market) models.MarketStatus {
	switch {
	case m.DeletedFrom != nil && *m.DeletedFrom != models.MarketStatusDeleted:
		return *m.DeletedFrom
	case m.Result != nil:
		return models.MarketStatusClosed
	case m.ApprovedAt != nil:
		return models.MarketStatusApproved
	default:
		return models.MarketStatusPending
	}
}

// ListPendingMarkets returns markets awaiting review, newest first
func (s *AdminService) ListPendingMarkets(ctx context.Context) ([]models.Market, error) {
	var markets []models.Market
	if err := s.db.WithContext(ctx).
		Where("status = ?", models.MarketStatusPending).
		Order("created_at DESC, id DESC").
		Find(&markets).Error; err != nil {
		return nil, fmt.Errorf("failed to list pending markets: %w", err)
	}
	return markets, nil
}

// ListAllMarkets pages through every market, optionally filtered by status
func (s *AdminService) ListAllMarkets(ctx context.Context, status models.MarketStatus, limit, offset int) (*MarketPage, error) {
	limit, offset = clampPage(limit, offset, 50, 200)

	query := s.db.WithContext(ctx).Model(&models.Market{})
	if status != "" {
		query = query.Where("status = ?", status)
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

// DeleteComment soft-deletes any comment
func (s *AdminService) DeleteComment(ctx context.Context, actor Actor, id uint) (*models.Comment, error) {
	comment, err := s.comments.Delete(ctx, actor.ID, id, true)
	if err != nil {
		return nil, err
	}
	if err := s.LogAdminAction(s.db.WithContext(ctx), actor, ActionDeleteComment, "comment", &comment.ID, map[string]interface{}{
		"market_id": comment.MarketID,
		"author_id": comment.UserID,
	}); err != nil {
		return nil, err
	}
	return comment, nil
}

// AdjustPoints applies a signed correction to a user's balance
func (s *AdminService) AdjustPoints(ctx context.Context, actor Actor, userID uint, amount int64, reason string) (*models.PointTransaction, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperrors.Validation("a reason is required")
	}

	var entry *models.PointTransaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		entry, err = s.ledger.Adjust(tx, LedgerEntry{
			UserID:      userID,
			Amount:      amount,
			Description: reason,
		})
		if err != nil {
			return err
		}
		return s.LogAdminAction(tx, actor, ActionAdjustPoints, "user", &userID, map[string]interface{}{
			"amount": amount,
			"reason": reason,
		})
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{"user_id": userID, "amount": amount, "admin": actor.Email}).Info("[Admin] points adjusted")
	return entry, nil
}

// CreateNotification sends a notification on behalf of an admin
func (s *AdminService) CreateNotification(ctx context.Context, actor Actor, in NotificationInput) (*models.Notification, error) {
	n, err := s.notifications.Create(ctx, in)
	if err != nil {
		return nil, err
	}
	if err := s.LogAdminAction(s.db.WithContext(ctx), actor, ActionCreateNotification, "user", &in.UserID, map[string]interface{}{
		"notification_id": n.ID,
		"type":            in.Type,
	}); err != nil {
		log.WithError(err).Error("[Admin] failed to log notification")
	}
	return n, nil
}

// LogAdminAction logs an admin action using db, which may be a transaction
func (s *AdminService) LogAdminAction(db *gorm.DB, actor Actor, action string, targetType string,
	targetID *uint, details map[string]interface{}) error {

	adminLog := models.AdminLog{
		AdminID:    actor.ID,
		AdminEmail: actor.Email,
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
	}
	if len(details) > 0 {
		raw, err := json.Marshal(details)
		if err != nil {
			return fmt.Errorf("failed to encode admin log details: %w", err)
		}
		adminLog.Details = datatypes.JSON(raw)
	}

	if err := db.Create(&adminLog).Error; err != nil {
		return fmt.Errorf("failed to write admin log: %w", err)
	}
	return nil
}

// GetAdminLogs returns admin activity logs
func (s *AdminService) GetAdminLogs(ctx context.Context, limit int, offset int) ([]models.AdminLog, error) {
	limit, offset = clampPage(limit, offset, 50, 200)

	var logs []models.AdminLog
	if err := s.db.WithContext(ctx).
		Order("created_at DESC, id DESC").Limit(limit).Offset(offset).Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("failed to list admin logs: %w", err)
	}
	return logs, nil
}

// GetPlatformStats computes the dashboard snapshot
func (s *AdminService) GetPlatformStats(ctx context.Context) (*models.PlatformStats, error) {
	db := s.db.WithContext(ctx)
	now := s.now().UTC()
	weekAgo := now.AddDate(0, 0, -7)

	stats := &models.PlatformStats{
		Markets:     make(map[models.MarketStatus]int64),
		GeneratedAt: now,
	}

	type statusCount struct {
		Status models.MarketStatus
		Count  int64
	}
	var byStatus []statusCount
	if err := db.Model(&models.Market{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&byStatus).Error; err != nil {
		return nil, fmt.Errorf("failed to count markets: %w", err)
	}
	for _, sc := range byStatus {
		stats.Markets[sc.Status] = sc.Count
		stats.TotalMarkets += sc.Count
	}

	if err := db.Model(&models.User{}).Count(&stats.TotalUsers).Error; err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}
	if err := db.Model(&models.User{}).Where("created_at >= ?", weekAgo).Count(&stats.RecentSignups).Error; err != nil {
		return nil, fmt.Errorf("failed to count signups: %w", err)
	}
	if err := db.Model(&models.Prediction{}).Count(&stats.TotalPredictions).Error; err != nil {
		return nil, fmt.Errorf("failed to count predictions: %w", err)
	}

	var totals struct {
		Total     int64
		Available int64
	}
	if err := db.Model(&models.PointsAccount{}).
		Select("COALESCE(SUM(total_points), 0) AS total, COALESCE(SUM(available_points), 0) AS available").
		Scan(&totals).Error; err != nil {
		return nil, fmt.Errorf("failed to sum points: %w", err)
	}
	stats.TotalPoints = totals.Total
	stats.AvailablePoints = totals.Available
	stats.LockedPoints = totals.Total - totals.Available

	var flows struct {
		Earned int64
		Spent  int64
	}
	if err := db.Model(&models.PointTransaction{}).
		Select("COALESCE(SUM(CASE WHEN amount > 0 THEN amount ELSE 0 END), 0) AS earned, "+
			"COALESCE(SUM(CASE WHEN amount < 0 THEN -amount ELSE 0 END), 0) AS spent").
		Where("created_at >= ?", weekAgo).
		Scan(&flows).Error; err != nil {
		return nil, fmt.Errorf("failed to sum point flows: %w", err)
	}
	stats.PointsEarnedWeek = flows.Earned
	stats.PointsSpentWeek = flows.Spent

	return stats, nil
}
