package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"ppplay-api/internal/apperrors"
	"ppplay-api/internal/events"
	"ppplay-api/internal/models"
)

// NotificationInput is what a caller supplies to create a notification
type NotificationInput struct {
	UserID  uint                    `json:"userId"`
	Type    models.NotificationType `json:"type"`
	Title   string                  `json:"title"`
	Message string                  `json:"message"`
	Data    map[string]interface{}  `json:"data,omitempty"`
}

// NotificationPage is one page of a user's notifications
type NotificationPage struct {
	Notifications []models.Notification `json:"notifications"`
	UnreadCount   int64                 `json:"unreadCount"`
	HasMore       bool                  `json:"hasMore"`
}

// NotificationService stores in-app notifications and announces them on the event bus
type NotificationService struct {
	db        *gorm.DB
	publisher events.Publisher
	now       func() time.Time
}

func NewNotificationService(db *gorm.DB, publisher events.Publisher) *NotificationService {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &NotificationService{
		db:        db,
		publisher: publisher,
		now:       time.Now,
	}
}

// CreateTx inserts a notification inside tx. The caller publishes it after commit.
func (s *NotificationService) CreateTx(tx *gorm.DB, in NotificationInput) (*models.Notification, error) {
	if !in.Type.IsValid() {
		return nil, apperrors.Validation(fmt.Sprintf("unknown notification type %q", in.Type))
	}
	if in.Title == "" {
		return nil, apperrors.Validation("notification title is required")
	}

	n := models.Notification{
		UserID:  in.UserID,
		Type:    in.Type,
		Title:   in.Title,
		Message: in.Message,
	}
	if len(in.Data) > 0 {
		raw, err := json.Marshal(in.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to encode notification data: %w", err)
		}
		n.Data = datatypes.JSON(raw)
	}

	if err := tx.Create(&n).Error; err != nil {
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}
	return &n, nil
}

// Create stores a standalone notification for an existing user
func (s *NotificationService) Create(ctx context.Context, in NotificationInput) (*models.Notification, error) {
	var n *models.Notification
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Where("id = ?", in.UserID).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to look up user: %w", err)
		}
		if count == 0 {
			return ErrUserNotFound
		}

		var err error
		n, err = s.CreateTx(tx, in)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.Publish(ctx, n)
	return n, nil
}

// Publish announces committed notifications
func (s *NotificationService) Publish(ctx context.Context, notes ...*models.Notification) {
	publishAll(ctx, s.publisher, notificationEvents(notes)...)
}

// List returns the newest notifications for a user plus the unread count
func (s *NotificationService) List(ctx context.Context, userID uint, limit, offset int, unreadOnly bool) (*NotificationPage, error) {
	limit, offset = clampPage(limit, offset, 20, 100)
	db := s.db.WithContext(ctx)

	query := db.Where("user_id = ?", userID)
	if unreadOnly {
		query = query.Where("is_read = ?", false)
	}

	var rows []models.Notification
	if err := query.Order("created_at DESC, id DESC").Limit(limit + 1).Offset(offset).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}

	var unread int64
	if err := db.Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&unread).Error; err != nil {
		return nil, fmt.Errorf("failed to count unread notifications: %w", err)
	}

	page := &NotificationPage{Notifications: rows, UnreadCount: unread}
	if len(rows) > limit {
		page.Notifications = rows[:limit]
		page.HasMore = true
	}
	return page, nil
}

// MarkRead marks one of the user's notifications as read
func (s *NotificationService) MarkRead(ctx context.Context, userID, id uint) error {
	result := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(map[string]interface{}{
			"is_read": true,
			"read_at": s.now().UTC(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to mark notification read: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

// MarkAllRead marks every unread notification of the user as read
func (s *NotificationService) MarkAllRead(ctx context.Context, userID uint) (int64, error) {
	result := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Updates(map[string]interface{}{
			"is_read": true,
			"read_at": s.now().UTC(),
		})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// Delete removes one of the user's notifications
func (s *NotificationService) Delete(ctx context.Context, userID, id uint) error {
	result := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&models.Notification{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete notification: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

// DeleteAll removes every notification of the user
func (s *NotificationService) DeleteAll(ctx context.Context, userID uint) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&models.Notification{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete notifications: %w", result.Error)
	}
	return result.RowsAffected, nil
}
