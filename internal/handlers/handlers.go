package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gracechapel/backend/internal/cache"
	"github.com/gracechapel/backend/internal/database"
	"github.com/gracechapel/backend/internal/engagement"
)

// Handlers contains all HTTP handlers for the API
type Handlers struct {
	engagement *engagement.Service
}

// NewHandlers creates a new handlers instance
func NewHandlers(engagementService *engagement.Service) *Handlers {
	return &Handlers{
		engagement: engagementService,
	}
}

// Health reports service liveness plus database and Redis connectivity
// GET /health
func (h *Handlers) Health(c *gin.Context) {
	if err := database.Health(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "degraded",
			"error":  "database unreachable",
		})
		return
	}
	if rc := cache.GetRedisClient(); rc != nil {
		if err := rc.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "degraded",
				"error":  "redis unreachable",
			})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
