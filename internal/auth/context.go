package auth

import "github.com/gin-gonic/gin"

const userIDKey = "userID"

// GetUserID returns the authenticated user's ID or empty string.
func GetUserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}
