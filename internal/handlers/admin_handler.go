package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"ppplay-api/internal/apperrors"
	"ppplay-api/internal/models"
	"ppplay-api/internal/services"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type AdminHandler struct {
	adminService   *services.AdminService
	commentService *services.CommentService
	exportService  *services.ExportService
	loc            *time.Location
}

func NewAdminHandler(adminService *services.AdminService, commentService *services.CommentService, exportService *services.ExportService, loc *time.Location) *AdminHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &AdminHandler{
		adminService:   adminService,
		commentService: commentService,
		exportService:  exportService,
		loc:            loc,
	}
}

type marketIDRequest struct {
	MarketID uint `json:"market_id" binding:"required"`
}

// GetPlatformStats returns platform statistics
func (h *AdminHandler) GetPlatformStats(c *gin.Context) {
	stats, err := h.adminService.GetPlatformStats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    stats,
	})
}

// GetMarkets returns all markets for admin, optionally filtered by status
func (h *AdminHandler) GetMarkets(c *gin.Context) {
	status := models.MarketStatus(c.Query("status"))
	page, err := h.adminService.ListAllMarkets(c.Request.Context(), status, queryInt(c, "limit", 50), queryInt(c, "offset", 0))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    page.Markets,
		"total":   page.Total,
	})
}

// GetPendingMarkets returns markets waiting for review
func (h *AdminHandler) GetPendingMarkets(c *gin.Context) {
	markets, err := h.adminService.ListPendingMarkets(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    markets,
		"count":   len(markets),
	})
}

// ApproveMarket opens a pending market for voting
func (h *AdminHandler) ApproveMarket(c *gin.Context) {
	var req marketIDRequest
	if !bindJSON(c, &req) {
		return
	}

	market, err := h.adminService.ApproveMarket(c.Request.Context(), actorFrom(c), req.MarketID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"market":  market,
	})
}

// RejectMarket cancels a pending market and refunds its fee
func (h *AdminHandler) RejectMarket(c *gin.Context) {
	var req struct {
		MarketID uint   `json:"market_id" binding:"required"`
		Reason   string `json:"reason"`
	}
	if !bindJSON(c, &req) {
		return
	}

	market, err := h.adminService.RejectMarket(c.Request.Context(), actorFrom(c), req.MarketID, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"market":  market,
	})
}

// SettleMarket confirms a result and pays the winners
func (h *AdminHandler) SettleMarket(c *gin.Context) {
	var req struct {
		MarketID    uint   `json:"market_id" binding:"required"`
		Result      string `json:"result" binding:"required"`
		Description string `json:"description"`
	}
	if !bindJSON(c, &req) {
		return
	}

	summary, err := h.adminService.SettleMarket(c.Request.Context(), actorFrom(c), req.MarketID, models.MarketResult(req.Result), req.Description)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"settlement": summary,
	})
}

// DeleteMarket soft-deletes a market. The reason may come as ?reason= or a JSON body.
func (h *AdminHandler) DeleteMarket(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}
	if req.Reason == "" {
		req.Reason = c.Query("reason")
	}

	market, err := h.adminService.DeleteMarket(c.Request.Context(), actorFrom(c), id, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"market":  market,
	})
}

// RestoreMarket brings a deleted market back
func (h *AdminHandler) RestoreMarket(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	market, err := h.adminService.RestoreMarket(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"market":  market,
	})
}

// GetComments lists comments for moderation, deleted ones included
func (h *AdminHandler) GetComments(c *gin.Context) {
	marketID, err := optionalQueryID(c, "marketId")
	if err != nil {
		respondError(c, err)
		return
	}

	comments, total, err := h.commentService.ListForModeration(c.Request.Context(), marketID, queryInt(c, "limit", 50), queryInt(c, "offset", 0))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"comments": comments,
		"total":    total,
	})
}

// DeleteComment removes any comment
func (h *AdminHandler) DeleteComment(c *gin.Context) {
	id, err := parseID(c.Query("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	if _, err := h.adminService.DeleteComment(c.Request.Context(), actorFrom(c), id); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// CreateNotification sends a notification to one user
func (h *AdminHandler) CreateNotification(c *gin.Context) {
	var req struct {
		UserID  uint                   `json:"userId" binding:"required"`
		Type    string                 `json:"type" binding:"required"`
		Title   string                 `json:"title" binding:"required"`
		Message string                 `json:"message"`
		Data    map[string]interface{} `json:"data"`
	}
	if !bindJSON(c, &req) {
		return
	}

	notification, err := h.adminService.CreateNotification(c.Request.Context(), actorFrom(c), services.NotificationInput{
		UserID:  req.UserID,
		Type:    models.NotificationType(req.Type),
		Title:   req.Title,
		Message: req.Message,
		Data:    req.Data,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success":      true,
		"notification": notification,
	})
}

// AdjustPoints corrects a user's balance
func (h *AdminHandler) AdjustPoints(c *gin.Context) {
	var req struct {
		UserID uint   `json:"user_id" binding:"required"`
		Amount int64  `json:"amount" binding:"required"`
		Reason string `json:"reason" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}

	entry, err := h.adminService.AdjustPoints(c.Request.Context(), actorFrom(c), req.UserID, req.Amount, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"transaction": entry,
	})
}

// ExportTransactions downloads point transactions between from and to (inclusive local dates) as XLSX
func (h *AdminHandler) ExportTransactions(c *gin.Context) {
	today := time.Now().In(h.loc)
	from, err := h.parseDate(c.Query("from"), today.AddDate(0, 0, -29))
	if err != nil {
		respondError(c, err)
		return
	}
	to, err := h.parseDate(c.Query("to"), today)
	if err != nil {
		respondError(c, err)
		return
	}

	var buf bytes.Buffer
	if _, err := h.exportService.WriteTransactionsXLSX(c.Request.Context(), &buf, from, to.AddDate(0, 0, 1)); err != nil {
		respondError(c, err)
		return
	}

	filename := fmt.Sprintf("transactions_%s_%s.xlsx", from.Format("20060102"), to.Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// parseDate reads a local calendar date, returning its midnight in h.loc
func (h *AdminHandler) parseDate(raw string, def time.Time) (time.Time, error) {
	if raw == "" {
		return time.Date(def.Year(), def.Month(), def.Day(), 0, 0, 0, 0, h.loc), nil
	}
	t, err := time.ParseInLocation("2006-01-02", raw, h.loc)
	if err != nil {
		return time.Time{}, apperrors.Validation("dates must use YYYY-MM-DD")
	}
	return t, nil
}

// GetAdminLogs returns admin activity logs
func (h *AdminHandler) GetAdminLogs(c *gin.Context) {
	logs, err := h.adminService.GetAdminLogs(c.Request.Context(), queryInt(c, "limit", 50), queryInt(c, "offset", 0))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    logs,
		"count":   len(logs),
	})
}
