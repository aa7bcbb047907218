package handlers

import (
	"net/http"

	"fungiscan/internal/apperr"
	"fungiscan/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type TelemetryHandler struct {
	service service.TelemetryService
	log     *zap.Logger
}

func NewTelemetryHandler(service service.TelemetryService, log *zap.Logger) *TelemetryHandler {
	return &TelemetryHandler{service: service, log: log}
}

// Ingest stores one sensor reading. Any JSON object is accepted.
func (h *TelemetryHandler) Ingest(c *gin.Context) {
	var payload map[string]interface{}
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondError(c, h.log, apperr.Validation("telemetry body must be a JSON object"))
		return
	}

	if _, err := h.service.Ingest(c.Request.Context(), payload); err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
