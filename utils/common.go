package utils

import (
	"github.com/ghostbadfame/CRM-Chase-local/models"

	"github.com/gin-gonic/gin"
)

// Context keys shared by middleware and controllers.
const (
	UserKey      = "user"
	RequestIDKey = "requestId"
)

// GetUser returns the session principal stored by the auth middleware.
func GetUser(c *gin.Context) (*models.ActingUser, error) {
	value, exists := c.Get(UserKey)
	if !exists {
		return nil, CreateUnauthorizedError()
	}
	user, ok := value.(*models.ActingUser)
	if !ok || user == nil {
		return nil, CreateUnauthorizedError()
	}
	return user, nil
}

// ListResponse writes a list payload under key together with its length.
func ListResponse(c *gin.Context, key string, items interface{}, count int, message string) {
	c.JSON(200, gin.H{
		key:       items,
		"count":   count,
		"message": message,
	})
}
