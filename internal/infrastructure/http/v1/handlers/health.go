package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"acmesync/internal/infrastructure/storage/sqlite"
)

// HealthHandler provides health check endpoints.
type HealthHandler struct {
	db   *sqlite.DB
	node string
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(db *sqlite.DB, node string) *HealthHandler {
	return &HealthHandler{db: db, node: node}
}

// Live handles liveness probe (is the process alive?).
// GET /health/live
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// Ready handles readiness probe (is the service ready to accept traffic?).
// GET /health/ready
func (h *HealthHandler) Ready(c *gin.Context) {
	if err := h.db.PingContext(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "error",
			"checks": map[string]string{
				"database": "unhealthy: " + err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"checks": map[string]string{
			"database": "healthy",
		},
	})
}

// Info returns application information.
// GET /health/info
func (h *HealthHandler) Info(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"app":      "acmesync",
		"node":     h.node,
		"database": h.db.Path(),
	})
}
