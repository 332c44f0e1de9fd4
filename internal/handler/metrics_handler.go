package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/timetable-api/internal/service"
	"github.com/noah-isme/timetable-api/pkg/database"
)

// MetricsHandler exposes observability endpoints.
type MetricsHandler struct {
	metrics *service.MetricsService
	db      database.Pinger
	redis   func(ctx context.Context) error
}

// NewMetricsHandler constructs a metrics handler. redisPing may be nil when
// Redis is disabled.
func NewMetricsHandler(metrics *service.MetricsService, db database.Pinger, redisPing func(ctx context.Context) error) *MetricsHandler {
	return &MetricsHandler{metrics: metrics, db: db, redis: redisPing}
}

// Prometheus serves the Prometheus metrics endpoint.
func (h *MetricsHandler) Prometheus(c *gin.Context) {
	if h.metrics == nil {
		c.Status(http.StatusServiceUnavailable)
		return
	}
	h.metrics.Handler().ServeHTTP(c.Writer, c.Request)
}

// Health responds with a generic OK payload for liveness probes.
func (h *MetricsHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready reports whether the database and, when configured, Redis answer.
func (h *MetricsHandler) Ready(c *gin.Context) {
	checks := gin.H{"database": "ok"}
	status := http.StatusOK
	if err := database.HealthCheck(c.Request.Context(), h.db); err != nil {
		checks["database"] = err.Error()
		status = http.StatusServiceUnavailable
	}
	if h.redis != nil {
		checks["redis"] = "ok"
		if err := h.redis(c.Request.Context()); err != nil {
			checks["redis"] = err.Error()
			status = http.StatusServiceUnavailable
		}
	}
	state := "ready"
	if status != http.StatusOK {
		state = "unavailable"
	}
	c.JSON(status, gin.H{"status": state, "checks": checks})
}
