package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

const (
	ctxUserID = "user_id"
	ctxEmail  = "email"
	ctxRole   = "role"
)

// AuthMiddleware validates JWT tokens and protects routes
func AuthMiddleware(allowlist *Allowlist) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")

		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization header required",
			})
			c.Abort()
			return
		}

		claims, err := parseBearer(authHeader)
		if err != nil {
			log.WithError(err).Debug("[Auth] token rejected")
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid or expired token",
			})
			c.Abort()
			return
		}

		setIdentity(c, claims, allowlist)
		c.Next()
	}
}

// OptionalAuth sets the caller identity when a valid token is present and never aborts
func OptionalAuth(allowlist *Allowlist) gin.HandlerFunc {
	return func(c *gin.Context) {
		if authHeader := c.GetHeader("Authorization"); authHeader != "" {
			if claims, err := parseBearer(authHeader); err == nil {
				setIdentity(c, claims, allowlist)
			}
		}
		c.Next()
	}
}

// RequireRole rejects callers that do not hold role
func RequireRole(role Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := GetUserID(c); !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			c.Abort()
			return
		}
		if GetRole(c) != role {
			c.JSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
			c.Abort()
			return
		}
		c.Next()
	}
}

func parseBearer(header string) (*Claims, error) {
	// Extract token from "Bearer <token>" format
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return nil, errInvalidHeader
	}
	return ValidateToken(parts[1])
}

func setIdentity(c *gin.Context, claims *Claims, allowlist *Allowlist) {
	c.Set(ctxUserID, claims.UserID)
	c.Set(ctxEmail, strings.ToLower(claims.Email))
	c.Set(ctxRole, allowlist.RoleFor(claims.Email))
}

// GetUserID retrieves the user ID from the context
func GetUserID(c *gin.Context) (uint, bool) {
	userID, exists := c.Get(ctxUserID)
	if !exists {
		return 0, false
	}

	id, ok := userID.(uint)
	return id, ok
}

// GetEmail retrieves the caller's email from the context
func GetEmail(c *gin.Context) string {
	return c.GetString(ctxEmail)
}

// GetRole retrieves the caller's role from the context
func GetRole(c *gin.Context) Role {
	role, exists := c.Get(ctxRole)
	if !exists {
		return ""
	}
	r, _ := role.(Role)
	return r
}

// IsAdmin reports whether the caller holds the admin role
func IsAdmin(c *gin.Context) bool {
	return GetRole(c) == RoleAdmin
}
