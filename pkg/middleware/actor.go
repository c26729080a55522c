package middleware

import (
	"github.com/abhijeet-qsofte/asikh-oms-sub000/pkg/logging"
	"github.com/gin-gonic/gin"
)

// Identity headers set by the upstream gateway after authentication
const (
	HeaderUserID   = "X-User-ID"
	HeaderDeviceID = "X-Device-ID"
)

const (
	ContextKeyUserID   = "userId"
	ContextKeyDeviceID = "deviceId"
)

// Actor copies the caller identity headers into the gin and request contexts.
// Requests without a user header are attributed to an empty actor.
func Actor() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := SanitizeString(c.GetHeader(HeaderUserID))
		deviceID := SanitizeString(c.GetHeader(HeaderDeviceID))

		if userID != "" {
			c.Set(ContextKeyUserID, userID)
			c.Request = c.Request.WithContext(logging.ContextWithUserID(c.Request.Context(), userID))
		}
		if deviceID != "" {
			c.Set(ContextKeyDeviceID, deviceID)
		}

		c.Next()
	}
}

// GetUserID returns the authenticated user id, if any
func GetUserID(c *gin.Context) string {
	return c.GetString(ContextKeyUserID)
}

// GetDeviceID returns the scanning device id, if any
func GetDeviceID(c *gin.Context) string {
	return c.GetString(ContextKeyDeviceID)
}
