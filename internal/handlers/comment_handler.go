package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ppplay-api/internal/apperrors"
	"ppplay-api/internal/services"
)

type CommentHandler struct {
	commentService *services.CommentService
}

func NewCommentHandler(commentService *services.CommentService) *CommentHandler {
	return &CommentHandler{commentService: commentService}
}

// GetComments lists the visible comments on a market, oldest first
func (h *CommentHandler) GetComments(c *gin.Context) {
	marketID, err := optionalQueryID(c, "marketId")
	if err != nil {
		respondError(c, err)
		return
	}
	if marketID == 0 {
		respondError(c, apperrors.Validation("marketId is required"))
		return
	}

	comments, err := h.commentService.List(c.Request.Context(), marketID, queryInt(c, "limit", 50))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"comments": comments,
	})
}

// CreateComment posts a comment or a reply
func (h *CommentHandler) CreateComment(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req struct {
		MarketID uint   `json:"marketId" binding:"required"`
		Content  string `json:"content" binding:"required"`
		ParentID *uint  `json:"parentId"`
	}
	if !bindJSON(c, &req) {
		return
	}

	comment, err := h.commentService.Create(c.Request.Context(), userID, req.MarketID, req.Content, req.ParentID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"comment": comment,
	})
}

// DeleteComment soft-deletes one of the caller's comments
func (h *CommentHandler) DeleteComment(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	id, err := parseID(c.Query("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	if _, err := h.commentService.Delete(c.Request.Context(), userID, id, false); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
