package services

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ppplay-api/internal/apperrors"
	"ppplay-api/internal/database"
	"ppplay-api/internal/models"
	"ppplay-api/internal/utils"
)

const maxNicknameAttempts = 5

// AuthService provisions local records for identities issued by the
// external auth provider
type AuthService struct {
	db     *gorm.DB
	ledger *LedgerService
}

func NewAuthService(db *gorm.DB, ledger *LedgerService) *AuthService {
	return &AuthService{
		db:     db,
		ledger: ledger,
	}
}

// EnsureUser returns the user for a verified token, creating the user row
// and the points account on first sight
func (s *AuthService) EnsureUser(ctx context.Context, userID uint, email string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).First(&user, userID).Error
	if err == nil {
		return &user, nil
	}
	if !database.IsNotFound(err) {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	email = strings.ToLower(strings.TrimSpace(email))
	for attempt := 0; attempt < maxNicknameAttempts; attempt++ {
		nickname, err := utils.GenerateNickname()
		if err != nil {
			return nil, err
		}

		created, err := s.provision(ctx, userID, email, nickname)
		if err != nil {
			return nil, err
		}
		if created != nil {
			return created, nil
		}
	}

	return nil, apperrors.Conflict("could not provision account, please retry")
}

// provision returns nil without error when the insert lost a race or hit a
// nickname collision, so the caller can retry
func (s *AuthService) provision(ctx context.Context, userID uint, email, nickname string) (*models.User, error) {
	var user *models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		candidate := models.User{
			ID:       userID,
			Email:    email,
			Nickname: nickname,
		}
		result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&candidate)
		if result.Error != nil {
			return fmt.Errorf("failed to create user: %w", result.Error)
		}

		var existing models.User
		if err := tx.First(&existing, userID).Error; err != nil {
			if database.IsNotFound(err) {
				// email or nickname already belongs to someone else
				return nil
			}
			return fmt.Errorf("failed to load user: %w", err)
		}

		if _, err := s.ledger.GetOrCreateAccount(tx, userID); err != nil {
			return err
		}

		if result.RowsAffected == 1 {
			log.WithFields(log.Fields{
				"user_id":  userID,
				"nickname": nickname,
			}).Info("[Auth] provisioned new user")
		}
		user = &existing
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}
