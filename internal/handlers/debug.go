package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/telemetry"
	"messaging-service/internal/ws"
)

// RealtimeStats reports the live subscription table.
type RealtimeStats interface {
	Stats() ws.Stats
}

// RegisterDebugRoutes wires debug-only endpoints.
func RegisterDebugRoutes(router gin.IRouter, emitter *telemetry.AuditEmitter, realtime RealtimeStats, enabled bool) {
	if !enabled {
		return
	}

	router.GET("/debug/realtime", func(c *gin.Context) {
		c.JSON(http.StatusOK, realtime.Stats())
	})

	router.GET("/debug/audit-test", func(c *gin.Context) {
		if emitter == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": gin.H{"code": "UNAVAILABLE", "message": "audit emitter not configured"}})
			return
		}
		emitter.Emit(c.Request.Context(), "INFO", "audit test", requestIDFromContext(c), userIDFromContext(c), 0)
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}
