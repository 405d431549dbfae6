package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ppplay-api/internal/apperrors"
	"ppplay-api/internal/services"
)

type NotificationHandler struct {
	notificationService *services.NotificationService
}

func NewNotificationHandler(notificationService *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{notificationService: notificationService}
}

// GetNotifications lists the caller's notifications with the unread count
func (h *NotificationHandler) GetNotifications(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	page, err := h.notificationService.List(c.Request.Context(), userID,
		queryInt(c, "limit", 20), queryInt(c, "offset", 0), c.Query("unread") == "true")
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"notifications": page.Notifications,
		"unreadCount":   page.UnreadCount,
		"hasMore":       page.HasMore,
	})
}

// MarkRead marks one notification, or all of them, as read
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req struct {
		NotificationID uint `json:"notificationId"`
		MarkAll        bool `json:"markAll"`
	}
	if !bindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	switch {
	case req.MarkAll:
		updated, err := h.notificationService.MarkAllRead(ctx, userID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "updated": updated})
	case req.NotificationID != 0:
		if err := h.notificationService.MarkRead(ctx, userID, req.NotificationID); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "updated": 1})
	default:
		respondError(c, apperrors.Validation("notificationId or markAll is required"))
	}
}

// DeleteNotifications removes one notification (?id=) or all of them (?all=true)
func (h *NotificationHandler) DeleteNotifications(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if c.Query("all") == "true" {
		removed, err := h.notificationService.DeleteAll(ctx, userID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "deleted": removed})
		return
	}

	id, err := parseID(c.Query("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.notificationService.Delete(ctx, userID, id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "deleted": 1})
}
