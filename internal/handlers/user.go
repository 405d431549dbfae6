package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ppplay-api/internal/apperrors"
	"ppplay-api/internal/models"
	"ppplay-api/internal/services"
)

// UserHandler handles user-related endpoints
type UserHandler struct {
	userService   *services.UserService
	ledgerService *services.LedgerService
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(userService *services.UserService, ledgerService *services.LedgerService) *UserHandler {
	return &UserHandler{
		userService:   userService,
		ledgerService: ledgerService,
	}
}

// GetProfile returns the current user's profile
func (h *UserHandler) GetProfile(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	profile, err := h.userService.GetProfile(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"user":          profile.User,
		"points":        profile.Points,
		"stats":         profile.Stats,
		"predictions":   profile.RecentPredictions,
		"point_history": profile.PointHistory,
	})
}

// GetTransactions pages through the caller's point history
func (h *UserHandler) GetTransactions(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	txType := models.TransactionType(c.Query("type"))
	if txType == "all" {
		txType = ""
	}
	if txType != "" && !txType.IsValid() {
		respondError(c, apperrors.Validation("unknown transaction type"))
		return
	}

	page, err := h.ledgerService.ListTransactions(c.Request.Context(), userID, txType, queryInt(c, "limit", 50), queryInt(c, "offset", 0))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"transactions": page.Transactions,
		"has_more":     page.HasMore,
	})
}

// GetPredictions pages through the caller's votes
func (h *UserHandler) GetPredictions(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	page, err := h.userService.ListPredictions(c.Request.Context(), userID, c.DefaultQuery("status", "all"), queryInt(c, "limit", 20), queryInt(c, "offset", 0))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"predictions": page.Predictions,
		"has_more":    page.HasMore,
	})
}

// UpdateNickname changes the caller's display name
func (h *UserHandler) UpdateNickname(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req struct {
		Nickname string `json:"nickname" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.userService.UpdateNickname(c.Request.Context(), userID, req.Nickname)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"user":    user,
	})
}
