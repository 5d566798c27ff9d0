package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/codex-app/codex/pkg/redis"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// HealthHandler reports liveness and dependency readiness.
type HealthHandler struct {
	db      *gorm.DB
	redis   *redis.Client
	appName string
}

func NewHealthHandler(db *gorm.DB, redisClient *redis.Client, appName string) *HealthHandler {
	return &HealthHandler{db: db, redis: redisClient, appName: appName}
}

// Health handles GET /health. Database failure makes the service
// unhealthy; the rate-limit backend is best-effort so Redis state is
// reported but never degrades the status.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	status := http.StatusOK
	dbStatus := "ok"

	sqlDB, err := h.db.DB()
	if err != nil || sqlDB.PingContext(ctx) != nil {
		dbStatus = "unavailable"
		status = http.StatusServiceUnavailable
	}

	redisStatus := "disabled"
	if h.redis.IsEnabled() {
		redisStatus = "ok"
		if err := h.redis.Ping(ctx); err != nil {
			redisStatus = "unavailable"
		}
	}

	c.JSON(status, gin.H{
		"service":  h.appName,
		"status":   healthWord(status),
		"database": dbStatus,
		"redis":    redisStatus,
	})
}

func healthWord(status int) string {
	if status == http.StatusOK {
		return "healthy"
	}
	return "unhealthy"
}
