package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/eduverify/backend/internal/services/anomaly"
)

// AnomalyHandler serves operational anomaly alerts
type AnomalyHandler struct {
	detector *anomaly.Detector
}

// NewAnomalyHandler creates a new anomaly handler
func NewAnomalyHandler(detector *anomaly.Detector) *AnomalyHandler {
	return &AnomalyHandler{detector: detector}
}

// ListAlerts returns recent alerts, optionally filtered by acknowledged state
func (h *AnomalyHandler) ListAlerts(c *gin.Context) {
	var acknowledged *bool
	if raw := c.Query("acknowledged"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid acknowledged filter"})
			return
		}
		acknowledged = &v
	}

	limit, _ := pagination(c, 50)

	alerts, err := h.detector.List(c.Request.Context(), acknowledged, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"alerts": alerts})
}

// AcknowledgeAlert marks an alert as seen by an operator
func (h *AnomalyHandler) AcknowledgeAlert(c *gin.Context) {
	alertID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid alert ID"})
		return
	}

	if err := h.detector.Acknowledge(c.Request.Context(), alertID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"acknowledged": true})
}
