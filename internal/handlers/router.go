package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Handlers struct {
	Auth      *AuthHandler
	Analysis  *AnalysisHandler
	Telemetry *TelemetryHandler
	Dashboard *DashboardHandler
	// ImageLimit guards the analysis upload route. May be nil.
	ImageLimit gin.HandlerFunc
	// Metrics serves the prometheus exposition. Defaults to the global registry.
	Metrics http.Handler
}

// RegisterRoutes mounts the API under /api and metrics at /metrics.
func RegisterRoutes(r *gin.Engine, h Handlers) {
	api := r.Group("/api")

	api.POST("/register", h.Auth.Register)
	api.POST("/login", h.Auth.Login)
	api.POST("/logout", h.Auth.Logout)

	api.GET("/data", h.Dashboard.GetData)
	api.POST("/sensor", h.Telemetry.Ingest)

	analyze := []gin.HandlerFunc{h.Analysis.AnalyzeImage}
	if h.ImageLimit != nil {
		analyze = append([]gin.HandlerFunc{h.ImageLimit}, analyze...)
	}
	api.POST("/analizar-imagen", analyze...)
	api.GET("/historial-ia", h.Analysis.History)
	api.GET("/historial-ia/export", h.Analysis.Export)

	api.GET("/health", h.Dashboard.Health)
	api.GET("/system/stats", h.Dashboard.SystemStats)

	metrics := h.Metrics
	if metrics == nil {
		metrics = promhttp.Handler()
	}
	r.GET("/metrics", gin.WrapH(metrics))
}
