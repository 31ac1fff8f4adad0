package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/apperr"
)

// UserIDKey is the gin context key holding the authenticated user id.
const UserIDKey = "userID"

// TokenValidator resolves a bearer token to a user id.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (int64, error)
}

// AuthMiddleware validates the Authorization header and stores the caller's id.
func AuthMiddleware(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			AbortWithError(c, apperr.Unauthenticated("missing authorization"))
			return
		}

		token, ok := BearerToken(header)
		if !ok {
			AbortWithError(c, apperr.Unauthenticated("invalid authorization header"))
			return
		}

		userID, err := validator.ValidateToken(c.Request.Context(), token)
		if err != nil {
			if apperr.Is(err, apperr.CodeUnavailable) {
				AbortWithError(c, err)
				return
			}
			AbortWithError(c, apperr.Unauthenticated("invalid token"))
			return
		}

		c.Set(UserIDKey, userID)
		c.Next()
	}
}

// BearerToken extracts the token of a "Bearer <token>" header value.
func BearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// UserID returns the authenticated user id set by AuthMiddleware.
func UserID(c *gin.Context) int64 {
	if val, ok := c.Get(UserIDKey); ok {
		if id, ok := val.(int64); ok {
			return id
		}
	}
	return 0
}
