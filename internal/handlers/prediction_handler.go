package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ppplay-api/internal/models"
	"ppplay-api/internal/services"
)

type PredictionHandler struct {
	predictionService *services.PredictionService
}

func NewPredictionHandler(predictionService *services.PredictionService) *PredictionHandler {
	return &PredictionHandler{predictionService: predictionService}
}

// CreatePrediction casts the caller's vote on a market
// POST /api/predictions/create
func (h *PredictionHandler) CreatePrediction(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req struct {
		MarketID        uint   `json:"market_id" binding:"required"`
		PredictedOption string `json:"predicted_option" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.predictionService.CastVote(c.Request.Context(), userID, req.MarketID, models.PredictionOption(req.PredictedOption))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":          true,
		"prediction":       result.Prediction,
		"market_stats":     result.MarketStats,
		"points_earned":    result.PointsEarned,
		"daily_votes_used": result.DailyVotesUsed,
		"daily_vote_limit": result.DailyVoteLimit,
	})
}
