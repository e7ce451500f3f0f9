package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"studybuddy-chat/internal/presence"
	"studybuddy-chat/internal/telemetry"
)

// RegisterDebugRoutes wires debug-only endpoints.
func RegisterDebugRoutes(router gin.IRoutes, emitter *telemetry.AuditEmitter, tracker *presence.Tracker, enabled bool) {
	if !enabled {
		return
	}

	router.GET("/debug/audit-test", func(c *gin.Context) {
		if emitter == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit emitter not configured"})
			return
		}
		emitter.Emit(c.Request.Context(), "INFO", "audit test", requestIDFromContext(c), userIDFromContext(c), c.Query("group_id"))
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/debug/presence", func(c *gin.Context) {
		if tracker == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "presence tracker not configured"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"stats": tracker.Stats(), "rooms": tracker.Rooms()})
	})
}

// RegisterHealthRoutes wires liveness probes.
func RegisterHealthRoutes(router gin.IRoutes) {
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}
