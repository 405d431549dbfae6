package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ppplay-api/internal/auth"
	"ppplay-api/internal/services"
)

// AuthHandler handles identity endpoints. Tokens are issued by the external
// auth provider; this API only verifies them.
type AuthHandler struct {
	userService *services.UserService
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(userService *services.UserService) *AuthHandler {
	return &AuthHandler{
		userService: userService,
	}
}

// GetMe returns the current authenticated user
// GET /auth/me
func (h *AuthHandler) GetMe(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	user, err := h.userService.GetUserByID(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"user":    user,
		"role":    auth.GetRole(c),
	})
}

// CheckAdmin reports whether the caller may use the admin console
// GET /api/admin/check
func (h *AuthHandler) CheckAdmin(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	user, err := h.userService.GetUserByID(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"isAdmin": auth.IsAdmin(c),
		"user":    user,
	})
}
