package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ppplay-api/internal/auth"
	"ppplay-api/internal/ratelimit"
	"ppplay-api/internal/services"
)

// ProvisionUser creates the local user and points account for a verified
// caller the first time they reach the API. Anonymous requests pass through.
func ProvisionUser(authService *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := auth.GetUserID(c)
		if !ok {
			c.Next()
			return
		}

		if _, err := authService.EnsureUser(c.Request.Context(), userID, auth.GetEmail(c)); err != nil {
			respondError(c, err)
			return
		}
		c.Next()
	}
}

// IPRateLimit throttles clients by address
func IPRateLimit(limiter *ratelimit.IPLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow(c.ClientIP()) {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "Too many requests",
				"retry_after": 1,
			})
			return
		}
		c.Next()
	}
}
