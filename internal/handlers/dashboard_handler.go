package handlers

import (
	"context"
	"net/http"
	"time"

	"fungiscan/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// HealthCheck pings one dependency.
type HealthCheck func(ctx context.Context) error

// StatsSource reports cache server statistics.
type StatsSource func(ctx context.Context) (map[string]string, error)

type DashboardHandler struct {
	dashboard service.DashboardService
	analysis  service.AnalysisService
	telemetry service.TelemetryService
	auth      service.AuthService
	checks    map[string]HealthCheck
	stats     StatsSource
	log       *zap.Logger
}

func NewDashboardHandler(
	dashboard service.DashboardService,
	analysis service.AnalysisService,
	telemetry service.TelemetryService,
	auth service.AuthService,
	checks map[string]HealthCheck,
	stats StatsSource,
	log *zap.Logger,
) *DashboardHandler {
	return &DashboardHandler{
		dashboard: dashboard,
		analysis:  analysis,
		telemetry: telemetry,
		auth:      auth,
		checks:    checks,
		stats:     stats,
		log:       log,
	}
}

// GetData returns the dashboard snapshot polled by the web client.
func (h *DashboardHandler) GetData(c *gin.Context) {
	snapshot, err := h.dashboard.Snapshot(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

func (h *DashboardHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	services := gin.H{}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			h.log.Warn("health check failed", zap.String("service", name), zap.Error(err))
			services[name] = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		services[name] = "connected"
	}

	state := "ok"
	if status != http.StatusOK {
		state = "degraded"
	}
	c.JSON(status, gin.H{
		"status":    state,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"services":  services,
	})
}

func (h *DashboardHandler) SystemStats(c *gin.Context) {
	ctx := c.Request.Context()

	database := gin.H{}
	if n, err := h.analysis.Count(ctx); err == nil {
		database["diagnoses"] = n
	}
	if n, err := h.telemetry.Count(ctx); err == nil {
		database["telemetry"] = n
	}
	if n, err := h.auth.CountUsers(ctx); err == nil {
		database["users"] = n
	}

	var redisStats map[string]string
	if h.stats != nil {
		s, err := h.stats(ctx)
		if err != nil {
			h.log.Warn("redis stats unavailable", zap.Error(err))
		}
		redisStats = s
	}

	c.JSON(http.StatusOK, gin.H{
		"database": database,
		"redis":    redisStats,
	})
}
