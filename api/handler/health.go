package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/adscope/models"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// Health returns a handler for GET /api/v1/health.
//
// Reports session utilisation and degrades status when every session is busy.
func Health(sc AdScraper, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats := sc.Stats()

		status := "ok"
		if stats.MaxSessions > 0 && stats.ActiveSessions >= stats.MaxSessions {
			status = "degraded"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:       status,
			Browser:      "chromium",
			Uptime:       time.Since(startTime).Round(time.Second).String(),
			Timestamp:    time.Now().UTC().Format(time.RFC3339),
			SessionStats: stats,
			Version:      Version,
		})
	}
}
