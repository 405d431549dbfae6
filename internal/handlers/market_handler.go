package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"ppplay-api/internal/services"
)

type MarketHandler struct {
	marketService *services.MarketService
}

func NewMarketHandler(marketService *services.MarketService) *MarketHandler {
	return &MarketHandler{marketService: marketService}
}

// GetMarkets returns open markets with optional category filtering
func (h *MarketHandler) GetMarkets(c *gin.Context) {
	category := c.Query("category")
	limit := queryInt(c, "limit", 20)
	offset := queryInt(c, "offset", 0)

	page, err := h.marketService.ListMarkets(c.Request.Context(), category, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    page.Markets,
		"count":   len(page.Markets),
		"total":   page.Total,
	})
}

// GetMarketByID returns a specific market with its counters
func (h *MarketHandler) GetMarketByID(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	market, err := h.marketService.GetMarket(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    market,
	})
}

// GetActivity returns the latest votes on a market
func (h *MarketHandler) GetActivity(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	page, err := h.marketService.MarketActivity(c.Request.Context(), id, queryInt(c, "limit", 20), queryInt(c, "offset", 0))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"activities": page.Activities,
		"total":      page.Total,
	})
}

// CreateMarket lets a user open a market for a fee. It waits for admin approval.
// POST /api/markets/create
func (h *MarketHandler) CreateMarket(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req struct {
		Title        string    `json:"title" binding:"required"`
		Description  string    `json:"description"`
		CategorySlug string    `json:"category_slug" binding:"required"`
		OptionYes    string    `json:"option_yes" binding:"required"`
		OptionNo     string    `json:"option_no" binding:"required"`
		ClosesAt     time.Time `json:"closes_at" binding:"required"`
		MarketType   string    `json:"market_type"`
	}
	if !bindJSON(c, &req) {
		return
	}

	market, feeTx, err := h.marketService.CreateMarket(c.Request.Context(), userID, services.CreateMarketInput{
		Title:        req.Title,
		Description:  req.Description,
		CategorySlug: req.CategorySlug,
		OptionYes:    req.OptionYes,
		OptionNo:     req.OptionNo,
		ClosesAt:     req.ClosesAt,
		MarketType:   req.MarketType,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success":     true,
		"market":      market,
		"points_left": feeTx.BalanceAfter,
		"message":     "Market submitted for review",
	})
}
