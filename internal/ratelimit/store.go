package ratelimit

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ppplay-api/internal/models"
)

// DBLimiter keeps fixed-window counters in the database so every instance
// sees the same counts
type DBLimiter struct {
	db  *gorm.DB
	now func() time.Time
}

func NewDBLimiter(db *gorm.DB) *DBLimiter {
	return &DBLimiter{db: db, now: time.Now}
}

func (l *DBLimiter) Allow(ctx context.Context, key string, rule Rule) (Decision, error) {
	now := l.now().UTC()
	windowStart := now.Truncate(rule.Window)
	windowEnd := windowStart.Add(rule.Window)

	counter := models.RateLimitCounter{
		BucketKey:   key,
		Action:      rule.Action,
		WindowStart: windowStart.Unix(),
		Count:       1,
		ExpiresAt:   windowEnd,
	}

	err := l.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "bucket_key"}, {Name: "action"}, {Name: "window_start"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"count": gorm.Expr("rate_limit_counters.count + ?", 1),
		}),
	}).Create(&counter).Error
	if err != nil {
		return Decision{}, fmt.Errorf("failed to increment rate limit counter: %w", err)
	}

	var current models.RateLimitCounter
	err = l.db.WithContext(ctx).
		Where("bucket_key = ? AND action = ? AND window_start = ?", key, rule.Action, windowStart.Unix()).
		First(&current).Error
	if err != nil {
		return Decision{}, fmt.Errorf("failed to read rate limit counter: %w", err)
	}

	if current.Count > rule.Limit {
		return Decision{
			Allowed:    false,
			Remaining:  0,
			RetryAfter: windowEnd.Sub(now),
		}, nil
	}

	return Decision{
		Allowed:   true,
		Remaining: rule.Limit - current.Count,
	}, nil
}

// Purge deletes counters whose window has ended
func (l *DBLimiter) Purge(ctx context.Context) (int64, error) {
	result := l.db.WithContext(ctx).
		Where("expires_at < ?", l.now().UTC()).
		Delete(&models.RateLimitCounter{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to purge rate limit counters: %w", result.Error)
	}
	return result.RowsAffected, nil
}
