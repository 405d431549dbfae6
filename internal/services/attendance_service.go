package services

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"ppplay-api/internal/config"
	"ppplay-api/internal/database"
	"ppplay-api/internal/events"
	"ppplay-api/internal/models"
)

// CheckInResult is returned after a successful daily check-in
type CheckInResult struct {
	Message         string `json:"message"`
	PointsEarned    int64  `json:"pointsEarned"`
	BasePoints      int64  `json:"basePoints"`
	BonusPoints     int64  `json:"bonusPoints"`
	ConsecutiveDays int    `json:"consecutiveDays"`
	TotalDays       int    `json:"totalDays"`
}

// AttendanceStatus is today's check-in state for a user
type AttendanceStatus struct {
	CheckedIn       bool  `json:"checkedIn"`
	ConsecutiveDays int   `json:"consecutiveDays"`
	TotalDays       int   `json:"totalDays"`
	TodayPoints     int64 `json:"todayPoints"`
}

// AttendanceService runs daily check-ins and streak bonuses
type AttendanceService struct {
	db            *gorm.DB
	ledger        *LedgerService
	notifications *NotificationService
	publisher     events.Publisher
	points        config.PointsConfig
	loc           *time.Location
	now           func() time.Time
}

func NewAttendanceService(db *gorm.DB, ledger *LedgerService, notifications *NotificationService, publisher events.Publisher, points config.PointsConfig, loc *time.Location) *AttendanceService {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	if loc == nil {
		loc = time.UTC
	}
	return &AttendanceService{
		db:            db,
		ledger:        ledger,
		notifications: notifications,
		publisher:     publisher,
		points:        points,
		loc:           loc,
		now:           time.Now,
	}
}

// StreakBonus returns the bonus for the given streak day. Day multiples of
// seven win over multiples of three.
func (s *AttendanceService) StreakBonus(day int) int64 {
	switch {
	case day <= 0:
		return 0
	case day%7 == 0:
		return s.points.StreakBonus7
	case day%3 == 0:
		return s.points.StreakBonus3
	}
	return 0
}

// CheckIn records today's attendance once per local calendar day
func (s *AttendanceService) CheckIn(ctx context.Context, userID uint) (*CheckInResult, error) {
	now := s.now()
	today := dateKey(now, s.loc)
	yesterday := dateKey(now.In(s.loc).AddDate(0, 0, -1), s.loc)
	base := s.points.AttendancePoints

	result := &CheckInResult{BasePoints: base}
	var note *models.Notification

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		account, err := s.ledger.LockAccount(tx, userID)
		if err != nil {
			return err
		}

		var count int64
		if err := tx.Model(&models.Attendance{}).
			Where("user_id = ? AND date = ?", userID, today).
			Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check attendance: %w", err)
		}
		if count > 0 {
			return ErrAlreadyCheckedIn
		}

		consecutive := 1
		var prev models.Attendance
		err = tx.Where("user_id = ? AND date = ?", userID, yesterday).First(&prev).Error
		switch {
		case err == nil:
			consecutive = prev.ConsecutiveDays + 1
		case !database.IsNotFound(err):
			return fmt.Errorf("failed to load yesterday's attendance: %w", err)
		}

		bonus := s.StreakBonus(consecutive)
		row := models.Attendance{
			UserID:          userID,
			Date:            today,
			PointsEarned:    base + bonus,
			BonusPoints:     bonus,
			ConsecutiveDays: consecutive,
		}
		if err := tx.Create(&row).Error; err != nil {
			if database.IsUniqueViolation(err) {
				return ErrAlreadyCheckedIn
			}
			return fmt.Errorf("failed to record attendance: %w", err)
		}

		if base > 0 {
			if _, err := s.ledger.Credit(tx, LedgerEntry{
				UserID:      userID,
				Amount:      base,
				Type:        models.TxDailyLogin,
				Description: "Daily attendance",
			}); err != nil {
				return err
			}
		}
		if bonus > 0 {
			if _, err := s.ledger.Credit(tx, LedgerEntry{
				UserID:      userID,
				Amount:      bonus,
				Type:        models.TxConsecutiveBonus,
				Description: fmt.Sprintf("%d-day streak bonus", consecutive),
			}); err != nil {
				return err
			}
		}

		if err := tx.Model(&models.PointsAccount{}).Where("user_id = ?", userID).Updates(map[string]interface{}{
			"consecutive_days": consecutive,
			"total_login_days": gorm.Expr("total_login_days + ?", 1),
			"last_login_at":    now.UTC(),
		}).Error; err != nil {
			return fmt.Errorf("failed to update attendance counters: %w", err)
		}

		result.PointsEarned = base + bonus
		result.BonusPoints = bonus
		result.ConsecutiveDays = consecutive
		result.TotalDays = account.TotalLoginDays + 1

		in := NotificationInput{
			UserID:  userID,
			Type:    models.NotifyAttendanceBonus,
			Title:   "Attendance checked",
			Message: fmt.Sprintf("You earned %d points for checking in today.", base),
			Data: map[string]interface{}{
				"date":             today,
				"points":           base,
				"consecutive_days": consecutive,
			},
		}
		if bonus > 0 {
			in.Type = models.NotifyStreakBonus
			in.Title = fmt.Sprintf("%d-day streak!", consecutive)
			in.Message = fmt.Sprintf("You earned %d points plus a %d point streak bonus.", base, bonus)
			in.Data["bonus_points"] = bonus
		}
		note, err = s.notifications.CreateTx(tx, in)
		return err
	})
	if err != nil {
		return nil, err
	}

	if result.BonusPoints > 0 {
		result.Message = fmt.Sprintf("Checked in! %dP + %dP streak bonus", base, result.BonusPoints)
	} else {
		result.Message = fmt.Sprintf("Checked in! %dP earned", base)
	}

	log.WithFields(log.Fields{
		"user_id":     userID,
		"date":        today,
		"consecutive": result.ConsecutiveDays,
		"bonus":       result.BonusPoints,
	}).Info("[Attendance] checked in")

	s.notifications.Publish(ctx, note)
	publishAll(ctx, s.publisher, events.Event{
		Subject: events.SubjectAttendanceCheckedIn,
		UserID:  userID,
		Payload: map[string]interface{}{
			"date":             today,
			"consecutive_days": result.ConsecutiveDays,
			"points_earned":    result.PointsEarned,
		},
	})
	return result, nil
}

// Status reports today's check-in and the current streak. A streak whose
// last check-in is older than yesterday reads as zero.
func (s *AttendanceService) Status(ctx context.Context, userID uint) (*AttendanceStatus, error) {
	now := s.now()
	today := dateKey(now, s.loc)
	yesterday := dateKey(now.In(s.loc).AddDate(0, 0, -1), s.loc)
	db := s.db.WithContext(ctx)

	account, err := s.ledger.GetAccount(ctx, userID)
	if err != nil {
		return nil, err
	}

	status := &AttendanceStatus{TotalDays: account.TotalLoginDays}

	var latest models.Attendance
	err = db.Where("user_id = ?", userID).Order("date DESC").First(&latest).Error
	if err != nil && !database.IsNotFound(err) {
		return nil, fmt.Errorf("failed to load attendance: %w", err)
	}
	if err == nil {
		if latest.Date == today {
			status.CheckedIn = true
			status.TodayPoints = latest.PointsEarned
		}
		if latest.Date == today || latest.Date == yesterday {
			status.ConsecutiveDays = latest.ConsecutiveDays
		}
	}
	return status, nil
}

// History returns check-ins from the last days calendar days, newest first
func (s *AttendanceService) History(ctx context.Context, userID uint, days int) ([]models.Attendance, error) {
	if days <= 0 {
		days = 30
	}
	if days > 365 {
		days = 365
	}
	since := dateKey(s.now().In(s.loc).AddDate(0, 0, -(days - 1)), s.loc)

	var rows []models.Attendance
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND date >= ?", userID, since).
		Order("date DESC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load attendance history: %w", err)
	}
	return rows, nil
}
