package services

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ppplay-api/internal/apperrors"
	"ppplay-api/internal/config"
	"ppplay-api/internal/database"
	"ppplay-api/internal/models"
)

// LedgerEntry describes one balance change
type LedgerEntry struct {
	UserID       uint
	Amount       int64
	Type         models.TransactionType
	MarketID     *uint
	PredictionID *uint
	Description  string
}

// LedgerService is the only writer of points_accounts balances. Every
// mutating method runs inside the caller's transaction and appends exactly
// one point_transactions row.
type LedgerService struct {
	db     *gorm.DB
	points config.PointsConfig
}

func NewLedgerService(db *gorm.DB, points config.PointsConfig) *LedgerService {
	return &LedgerService{
		db:     db,
		points: points,
	}
}

// Credit records earned points: total and available both rise
func (s *LedgerService) Credit(tx *gorm.DB, e LedgerEntry) (*models.PointTransaction, error) {
	if e.Amount <= 0 {
		return nil, apperrors.Validation("credit amount must be positive")
	}
	return s.apply(tx, e, e.Amount, e.Amount)
}

// Debit spends points: only available falls
func (s *LedgerService) Debit(tx *gorm.DB, e LedgerEntry) (*models.PointTransaction, error) {
	if e.Amount <= 0 {
		return nil, apperrors.Validation("debit amount must be positive")
	}
	return s.apply(tx, e, 0, -e.Amount)
}

// Refund returns previously debited points: only available rises
func (s *LedgerService) Refund(tx *gorm.DB, e LedgerEntry) (*models.PointTransaction, error) {
	if e.Amount <= 0 {
		return nil, apperrors.Validation("refund amount must be positive")
	}
	return s.apply(tx, e, 0, e.Amount)
}

// Adjust applies a signed admin correction as a credit or a debit
func (s *LedgerService) Adjust(tx *gorm.DB, e LedgerEntry) (*models.PointTransaction, error) {
	e.Type = models.TxAdminAdjustment
	switch {
	case e.Amount > 0:
		return s.Credit(tx, e)
	case e.Amount < 0:
		e.Amount = -e.Amount
		return s.Debit(tx, e)
	default:
		return nil, apperrors.Validation("adjustment amount must not be zero")
	}
}

func (s *LedgerService) apply(tx *gorm.DB, e LedgerEntry, totalDelta, availableDelta int64) (*models.PointTransaction, error) {
	if !e.Type.IsValid() {
		return nil, apperrors.Validation(fmt.Sprintf("unknown transaction type %q", e.Type))
	}

	account, err := s.lockAccount(tx, e.UserID)
	if err != nil {
		return nil, err
	}

	before := account.AvailablePoints
	after := before + availableDelta
	total := account.TotalPoints + totalDelta

	if after < 0 {
		return nil, ErrInsufficientPoints
	}
	if after > total {
		return nil, fmt.Errorf("ledger invariant violated for user %d: available %d exceeds total %d", e.UserID, after, total)
	}

	result := tx.Model(&models.PointsAccount{}).
		Where("user_id = ? AND available_points = ? AND total_points = ?", e.UserID, before, account.TotalPoints).
		Updates(map[string]interface{}{
			"total_points":     total,
			"available_points": after,
		})
	if result.Error != nil {
		return nil, fmt.Errorf("failed to update points account: %w", result.Error)
	}
	if result.RowsAffected != 1 {
		return nil, ErrConcurrentUpdate
	}

	entry := models.PointTransaction{
		UserID:          e.UserID,
		TransactionType: e.Type,
		Amount:          availableDelta,
		BalanceBefore:   before,
		BalanceAfter:    after,
		MarketID:        e.MarketID,
		PredictionID:    e.PredictionID,
		Description:     e.Description,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return nil, fmt.Errorf("failed to record point transaction: %w", err)
	}

	return &entry, nil
}

// lockAccount loads the account row FOR UPDATE. sqlite ignores the lock
// clause and serializes writers instead.
func (s *LedgerService) lockAccount(tx *gorm.DB, userID uint) (*models.PointsAccount, error) {
	var account models.PointsAccount
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		First(&account).Error
	if err != nil {
		if database.IsNotFound(err) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to lock points account: %w", err)
	}
	return &account, nil
}

// LockAccount exposes the row lock to services that update account counters
func (s *LedgerService) LockAccount(tx *gorm.DB, userID uint) (*models.PointsAccount, error) {
	return s.lockAccount(tx, userID)
}

// GetOrCreateAccount returns the user's account, opening it with the
// starting balance on first use
func (s *LedgerService) GetOrCreateAccount(tx *gorm.DB, userID uint) (*models.PointsAccount, error) {
	account := models.PointsAccount{
		UserID:          userID,
		TotalPoints:     s.points.StartingBalance,
		AvailablePoints: s.points.StartingBalance,
	}

	result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&account)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to create points account: %w", result.Error)
	}

	if result.RowsAffected == 1 && s.points.StartingBalance > 0 {
		signup := models.PointTransaction{
			UserID:          userID,
			TransactionType: models.TxSignupBonus,
			Amount:          s.points.StartingBalance,
			BalanceBefore:   0,
			BalanceAfter:    s.points.StartingBalance,
			Description:     "Welcome bonus",
		}
		if err := tx.Create(&signup).Error; err != nil {
			return nil, fmt.Errorf("failed to record signup bonus: %w", err)
		}
	}

	var existing models.PointsAccount
	if err := tx.Where("user_id = ?", userID).First(&existing).Error; err != nil {
		return nil, fmt.Errorf("failed to load points account: %w", err)
	}
	return &existing, nil
}

// GetAccount loads an account without locking it
func (s *LedgerService) GetAccount(ctx context.Context, userID uint) (*models.PointsAccount, error) {
	var account models.PointsAccount
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&account).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to load points account: %w", err)
	}
	return &account, nil
}

// TransactionPage is one page of a user's ledger history
type TransactionPage struct {
	Transactions []models.PointTransaction `json:"transactions"`
	HasMore      bool                      `json:"has_more"`
}

// ListTransactions pages through a user's ledger, newest first
func (s *LedgerService) ListTransactions(ctx context.Context, userID uint, txType models.TransactionType, limit, offset int) (*TransactionPage, error) {
	limit, offset = clampPage(limit, offset, 20, 100)

	query := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if txType != "" {
		if !txType.IsValid() {
			return nil, apperrors.Validation(fmt.Sprintf("unknown transaction type %q", txType))
		}
		query = query.Where("transaction_type = ?", txType)
	}

	// one extra row tells us whether another page exists
	var rows []models.PointTransaction
	if err := query.Order("created_at DESC, id DESC").Limit(limit + 1).Offset(offset).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	page := &TransactionPage{Transactions: rows}
	if len(rows) > limit {
		page.Transactions = rows[:limit]
		page.HasMore = true
	}
	return page, nil
}

func clampPage(limit, offset, def, max int) (int, int) {
	if limit <= 0 {
		limit = def
	}
	if limit > max {
		limit = max
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
