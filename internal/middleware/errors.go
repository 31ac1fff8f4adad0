package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/apperr"
)

// StatusFor maps an error code to its HTTP status.
func StatusFor(code apperr.Code) int {
	switch code {
	case apperr.CodeValidation, apperr.CodeInvalidParticipants:
		return http.StatusBadRequest
	case apperr.CodeUnauthenticated:
		return http.StatusUnauthorized
	case apperr.CodeForbidden:
		return http.StatusForbidden
	case apperr.CodeNotFound:
		return http.StatusNotFound
	case apperr.CodeRateLimited:
		return http.StatusTooManyRequests
	case apperr.CodeDeadlineExceeded:
		return http.StatusGatewayTimeout
	case apperr.CodeTransientStore, apperr.CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// AbortWithError writes the standard error body and stops the chain.
func AbortWithError(c *gin.Context, err error) {
	code := apperr.CodeOf(err)
	if code == apperr.CodeConflictRetried {
		code = apperr.CodeInternal
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(StatusFor(code), gin.H{
		"error": gin.H{
			"code":    code,
			"message": apperr.MessageOf(err),
		},
	})
}
