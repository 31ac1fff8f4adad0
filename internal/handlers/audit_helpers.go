package handlers

import (
	"github.com/gin-gonic/gin"

	"messaging-service/internal/middleware"
	"messaging-service/internal/observability"
)

func requestIDFromContext(c *gin.Context) string {
	return observability.RequestIDFromRequest(c.Request)
}

func userIDFromContext(c *gin.Context) *int64 {
	if userID := middleware.UserID(c); userID != 0 {
		return &userID
	}
	return nil
}
