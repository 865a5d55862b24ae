package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Identity and perimeter headers.
const (
	// HeaderUserID carries the dashboard's authenticated subject. The API
	// trusts it as-is; authentication itself happens upstream.
	HeaderUserID = "X-User-ID"

	// HeaderAPIKey carries the optional shared perimeter key.
	HeaderAPIKey = "X-API-Key"
)

const contextKeyUserID = "userID"

// Identity requires the caller identity header on every request and stores
// it for the handlers.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader(HeaderUserID))
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing " + HeaderUserID + " header",
			})
			return
		}
		c.Set(contextKeyUserID, userID)
		c.Next()
	}
}

// UserID returns the caller identity stored by Identity.
func UserID(c *gin.Context) string {
	return c.GetString(contextKeyUserID)
}

// APIKey enforces the shared perimeter key. An empty configured key disables
// the check.
func APIKey(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if key != "" {
			supplied := c.GetHeader(HeaderAPIKey)
			if subtle.ConstantTimeCompare([]byte(supplied), []byte(key)) != 1 {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error": "invalid api key",
				})
				return
			}
		}
		c.Next()
	}
}
