package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/apperr"
	"messaging-service/internal/middleware"
)

func writeError(c *gin.Context, err error) {
	middleware.AbortWithError(c, err)
}

func pathID(c *gin.Context, name, what string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		writeError(c, apperr.Validation("invalid "+what+" id"))
		return 0, false
	}
	return id, true
}
