package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/eduverify/backend/internal/models"
	"github.com/eduverify/backend/internal/services/verification"
)

// AppealHandler handles rejection appeal requests
type AppealHandler struct {
	svc *verification.Service
}

// NewAppealHandler creates a new appeal handler
func NewAppealHandler(svc *verification.Service) *AppealHandler {
	return &AppealHandler{svc: svc}
}

// OpenAppealRequest is the payload for contesting a rejection
type OpenAppealRequest struct {
	Reason              string               `json:"reason" binding:"required"`
	SupportingDocuments []models.DocumentRef `json:"supporting_documents"`
}

// OpenAppeal files an appeal against the caller tenant's rejection
func (h *AppealHandler) OpenAppeal(c *gin.Context) {
	tenantID, ok := callerTenantID(c)
	if !ok {
		return
	}

	var req OpenAppealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	appeal, err := h.svc.OpenAppeal(c.Request.Context(), tenantID, req.Reason, req.SupportingDocuments)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, appeal)
}

// ResubmitInfoRequest is the payload answering a MORE_INFO_REQUESTED appeal
type ResubmitInfoRequest struct {
	AdditionalInfo      string               `json:"additional_info"`
	SupportingDocuments []models.DocumentRef `json:"supporting_documents"`
}

// ResubmitInfo supplies the information a reviewer asked for and moves
// the appeal back into the review queue
func (h *AppealHandler) ResubmitInfo(c *gin.Context) {
	appealID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid appeal ID"})
		return
	}

	var req ResubmitInfoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	appeal, err := h.svc.ResubmitAppealInfo(c.Request.Context(), appealID, req.AdditionalInfo, req.SupportingDocuments)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, appeal)
}

// DecideAppealRequest is the reviewer's verdict on an appeal
type DecideAppealRequest struct {
	Decision models.AppealStatus `json:"decision" binding:"required"`
	Notes    string              `json:"notes"`
}

// DecideAppeal records a reviewer decision on an open appeal. Approval
// cascades to the tenant's eligibility status.
func (h *AppealHandler) DecideAppeal(c *gin.Context) {
	appealID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid appeal ID"})
		return
	}

	reviewerID, err := uuid.Parse(c.GetString("user_id"))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req DecideAppealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	appeal, err := h.svc.DecideAppeal(c.Request.Context(), appealID, reviewerID, req.Decision, req.Notes)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, appeal)
}
