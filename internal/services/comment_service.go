package services

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"ppplay-api/internal/apperrors"
	"ppplay-api/internal/contentfilter"
	"ppplay-api/internal/database"
	"ppplay-api/internal/models"
	"ppplay-api/internal/ratelimit"
	"ppplay-api/internal/utils"
)

const commentMaxLen = 500

// CommentView is a comment with its author's nickname
type CommentView struct {
	ID        uint      `json:"id"`
	MarketID  uint      `json:"market_id"`
	UserID    uint      `json:"user_id"`
	ParentID  *uint     `json:"parent_id,omitempty"`
	Content   string    `json:"content"`
	Nickname  string    `json:"nickname"`
	IsDeleted bool      `json:"is_deleted"`
	CreatedAt time.Time `json:"created_at"`
}

// CommentService manages market discussion threads
type CommentService struct {
	db      *gorm.DB
	filter  *contentfilter.Filter
	limiter ratelimit.Limiter
	rule    ratelimit.Rule
}

func NewCommentService(db *gorm.DB, filter *contentfilter.Filter, limiter ratelimit.Limiter, rule ratelimit.Rule) *CommentService {
	return &CommentService{
		db:      db,
		filter:  filter,
		limiter: limiter,
		rule:    rule,
	}
}

type commentRow struct {
	models.Comment
	Nickname *string
}

func (r commentRow) view() CommentView {
	name := utils.FallbackNickname(r.UserID)
	if r.Nickname != nil && *r.Nickname != "" {
		name = *r.Nickname
	}
	return CommentView{
		ID:        r.ID,
		MarketID:  r.MarketID,
		UserID:    r.UserID,
		ParentID:  r.ParentID,
		Content:   r.Content,
		Nickname:  name,
		IsDeleted: r.IsDeleted,
		CreatedAt: r.CreatedAt,
	}
}

func (s *CommentService) joined(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Table("comments").
		Select("comments.*, users.nickname").
		Joins("LEFT JOIN users ON users.id = comments.user_id")
}

// List returns a market's visible comments, oldest first
func (s *CommentService) List(ctx context.Context, marketID uint, limit int) ([]CommentView, error) {
	limit, _ = clampPage(limit, 0, 50, 200)

	var rows []commentRow
	if err := s.joined(ctx).
		Where("comments.market_id = ? AND comments.is_deleted = ?", marketID, false).
		Order("comments.created_at ASC, comments.id ASC").
		Limit(limit).
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}

	out := make([]CommentView, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.view())
	}
	return out, nil
}

// ListForModeration returns comments including deleted ones, newest first.
// marketID 0 lists every market.
func (s *CommentService) ListForModeration(ctx context.Context, marketID uint, limit, offset int) ([]CommentView, int64, error) {
	limit, offset = clampPage(limit, offset, 50, 200)

	count := s.db.WithContext(ctx).Model(&models.Comment{})
	query := s.joined(ctx)
	if marketID != 0 {
		count = count.Where("market_id = ?", marketID)
		query = query.Where("comments.market_id = ?", marketID)
	}

	var total int64
	if err := count.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count comments: %w", err)
	}

	var rows []commentRow
	if err := query.Order("comments.created_at DESC, comments.id DESC").
		Limit(limit).Offset(offset).
		Scan(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list comments: %w", err)
	}

	out := make([]CommentView, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.view())
	}
	return out, total, nil
}

// Create posts a comment after filtering and rate limiting
func (s *CommentService) Create(ctx context.Context, userID, marketID uint, content string, parentID *uint) (*CommentView, error) {
	content = strings.TrimSpace(content)
	if utf8.RuneCountInString(content) > commentMaxLen {
		return nil, apperrors.Validation(fmt.Sprintf("comments must be at most %d characters", commentMaxLen))
	}
	if err := s.filter.Validate(content); err != nil {
		return nil, err
	}
	content = s.filter.Sanitize(content)
	if content == "" {
		return nil, contentfilter.ErrEmpty
	}

	db := s.db.WithContext(ctx)

	var market models.Market
	if err := db.Select("id", "status").First(&market, marketID).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, ErrMarketNotFound
		}
		return nil, fmt.Errorf("failed to load market: %w", err)
	}
	if market.Status == models.MarketStatusDeleted {
		return nil, ErrMarketNotFound
	}

	if parentID != nil {
		var parent models.Comment
		if err := db.First(&parent, *parentID).Error; err != nil {
			if database.IsNotFound(err) {
				return nil, ErrCommentNotFound
			}
			return nil, fmt.Errorf("failed to load parent comment: %w", err)
		}
		if parent.MarketID != marketID {
			return nil, ErrParentMismatch
		}
	}

	if err := enforceLimit(ctx, s.limiter, ratelimit.UserKey(userID), s.rule); err != nil {
		return nil, err
	}

	comment := models.Comment{
		MarketID: marketID,
		UserID:   userID,
		ParentID: parentID,
		Content:  content,
	}
	if err := db.Create(&comment).Error; err != nil {
		return nil, fmt.Errorf("failed to create comment: %w", err)
	}

	log.WithFields(log.Fields{
		"comment_id": comment.ID,
		"market_id":  marketID,
		"user_id":    userID,
	}).Debug("[Comment] created")

	var nickname string
	if err := db.Model(&models.User{}).Where("id = ?", userID).Pluck("nickname", &nickname).Error; err != nil {
		return nil, fmt.Errorf("failed to load nickname: %w", err)
	}
	view := commentRow{Comment: comment, Nickname: &nickname}.view()
	return &view, nil
}

// Delete soft-deletes a comment. Only the author may delete unless asAdmin is set.
func (s *CommentService) Delete(ctx context.Context, userID, commentID uint, asAdmin bool) (*models.Comment, error) {
	db := s.db.WithContext(ctx)

	var comment models.Comment
	if err := db.First(&comment, commentID).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, ErrCommentNotFound
		}
		return nil, fmt.Errorf("failed to load comment: %w", err)
	}
	if !asAdmin && comment.UserID != userID {
		return nil, ErrCommentForbidden
	}
	if comment.IsDeleted {
		return &comment, nil
	}

	if err := db.Model(&comment).Update("is_deleted", true).Error; err != nil {
		return nil, fmt.Errorf("failed to delete comment: %w", err)
	}
	comment.IsDeleted = true
	return &comment, nil
}
