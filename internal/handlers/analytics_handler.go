package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/eduverify/backend/internal/services/analytics"
)

// AnalyticsHandler serves risk scores, processing-time predictions and
// the operational summary
type AnalyticsHandler struct {
	risk       *analytics.RiskEngine
	predictor  *analytics.Predictor
	summarizer *analytics.Summarizer
}

// NewAnalyticsHandler creates a new analytics handler
func NewAnalyticsHandler(risk *analytics.RiskEngine, predictor *analytics.Predictor, summarizer *analytics.Summarizer) *AnalyticsHandler {
	return &AnalyticsHandler{
		risk:       risk,
		predictor:  predictor,
		summarizer: summarizer,
	}
}

// GetRiskAssessment scores a tenant's application risk
func (h *AnalyticsHandler) GetRiskAssessment(c *gin.Context) {
	tenantID, err := uuid.Parse(c.Param("tenantId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid tenant ID"})
		return
	}

	assessment, err := h.risk.AssessRisk(c.Request.Context(), tenantID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, assessment)
}

// GetProcessingTime predicts how long a tenant's review will take
func (h *AnalyticsHandler) GetProcessingTime(c *gin.Context) {
	tenantID, err := uuid.Parse(c.Param("tenantId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid tenant ID"})
		return
	}

	prediction, err := h.predictor.Predict(c.Request.Context(), tenantID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, prediction)
}

// GetSummary returns the pipeline-wide operational summary
func (h *AnalyticsHandler) GetSummary(c *gin.Context) {
	summary, err := h.summarizer.Summarize(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}
