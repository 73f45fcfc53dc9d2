package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/costwatch/costwatch/pkg/response"
)

type HealthHandler struct {
	db        *gorm.DB
	startedAt time.Time
	version   string
}

func NewHealthHandler(db *gorm.DB, version string) *HealthHandler {
	return &HealthHandler{db: db, startedAt: time.Now().UTC(), version: version}
}

// Health reports liveness.
// GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	response.Success(c, gin.H{
		"status":  "ok",
		"version": h.version,
		"uptime":  time.Since(h.startedAt).Truncate(time.Second).String(),
	})
}

// Ready reports readiness, including storage connectivity.
// GET /ready
func (h *HealthHandler) Ready(c *gin.Context) {
	sqlDB, err := h.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unavailable",
			"checks": gin.H{"database": "down"},
		})
		return
	}
	response.Success(c, gin.H{
		"status": "ready",
		"checks": gin.H{"database": "up"},
	})
}
