package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ppplay-api/internal/auth"
	"ppplay-api/internal/services"
)

type LeaderboardHandler struct {
	leaderboardService *services.LeaderboardService
}

func NewLeaderboardHandler(leaderboardService *services.LeaderboardService) *LeaderboardHandler {
	return &LeaderboardHandler{leaderboardService: leaderboardService}
}

// GetLeaderboard ranks users by points, win rate or streak. Signed-in callers also get their own rank.
func (h *LeaderboardHandler) GetLeaderboard(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	kind := services.LeaderboardType(c.DefaultQuery("type", string(services.LeaderboardPoints)))

	board, err := h.leaderboardService.Get(c.Request.Context(), kind, queryInt(c, "limit", 50), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"type":      board.Type,
		"rankings":  board.Rankings,
		"myRanking": board.MyRanking,
		"total":     board.Total,
	})
}
