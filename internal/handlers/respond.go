package handlers

import (
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"ppplay-api/internal/apperrors"
	"ppplay-api/internal/auth"
	"ppplay-api/internal/services"
)

var errInvalidID = apperrors.Validation("invalid id")

// respondError writes err with the status its code maps to
func respondError(c *gin.Context, err error) {
	status := apperrors.HTTPStatus(err)
	body := gin.H{"error": apperrors.PublicMessage(err)}

	if wait, ok := services.RetryAfter(err); ok {
		seconds := int(math.Ceil(wait.Seconds()))
		body["retry_after"] = seconds
		c.Header("Retry-After", strconv.Itoa(seconds))
	}

	if status >= http.StatusInternalServerError {
		log.WithError(err).WithFields(log.Fields{
			"path":       c.FullPath(),
			"request_id": c.GetString("request_id"),
		}).Error("[API] request failed")
	}

	c.AbortWithStatusJSON(status, body)
}

// bindJSON decodes the request body and writes a 400 on failure
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}

// currentUser returns the authenticated caller or writes a 401
func currentUser(c *gin.Context) (uint, bool) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return 0, false
	}
	return userID, true
}

func actorFrom(c *gin.Context) services.Actor {
	userID, _ := auth.GetUserID(c)
	return services.Actor{ID: userID, Email: auth.GetEmail(c)}
}

func parseID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, errInvalidID
	}
	return uint(id), nil
}

// pathID reads a numeric :id route parameter
func pathID(c *gin.Context) (uint, bool) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return 0, false
	}
	return id, true
}

// queryInt reads an integer query parameter, falling back to def when absent or malformed
func queryInt(c *gin.Context, key string, def int) int {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

// optionalQueryID reads an optional numeric query parameter. Zero means absent.
func optionalQueryID(c *gin.Context, key string) (uint, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	id, err := parseID(raw)
	if err != nil {
		return 0, apperrors.Validation("invalid " + key)
	}
	return id, nil
}
