package handlers

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/eduverify/backend/internal/models"
	"github.com/eduverify/backend/internal/services/verification"
)

// AdminHandler serves the reviewer-facing work queues and decisions
type AdminHandler struct {
	svc *verification.Service
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(svc *verification.Service) *AdminHandler {
	return &AdminHandler{svc: svc}
}

// ReviewQueue lists tenants awaiting a decision in a given status
func (h *AdminHandler) ReviewQueue(c *gin.Context) {
	status := models.EligibilityStatus(c.DefaultQuery("status", string(models.EligibilityUnderReview)))
	limit, offset := pagination(c, 50)

	tenants, total, err := h.svc.ReviewQueue(c.Request.Context(), status, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tenants": tenants,
		"total":   total,
		"limit":   limit,
		"offset":  offset,
	})
}

// AppealQueue lists appeals in a given status
func (h *AdminHandler) AppealQueue(c *gin.Context) {
	status := models.AppealStatus(c.DefaultQuery("status", string(models.AppealPending)))
	limit, offset := pagination(c, 50)

	appeals, total, err := h.svc.AppealQueue(c.Request.Context(), status, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"appeals": appeals,
		"total":   total,
		"limit":   limit,
		"offset":  offset,
	})
}

// RecordReviewRequest is the reviewer's decision payload
type RecordReviewRequest struct {
	Action models.ReviewAction `json:"action" binding:"required"`
	Notes  string              `json:"notes"`
}

// RecordReview applies a reviewer decision to a tenant's application
func (h *AdminHandler) RecordReview(c *gin.Context) {
	tenantID, err := uuid.Parse(c.Param("tenantId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid tenant ID"})
		return
	}

	reviewerID, err := uuid.Parse(c.GetString("user_id"))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req RecordReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	review, err := h.svc.RecordReview(c.Request.Context(), tenantID, reviewerID, req.Action, req.Notes)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, review)
}

// BulkReviewRequest applies one decision to many tenants at once
type BulkReviewRequest struct {
	TenantIDs []uuid.UUID         `json:"tenant_ids" binding:"required"`
	Action    models.ReviewAction `json:"action" binding:"required"`
	Notes     string              `json:"notes"`
}

// BulkReview runs a batch of reviewer decisions and reports the
// per-tenant outcomes
func (h *AdminHandler) BulkReview(c *gin.Context) {
	reviewerID, err := uuid.Parse(c.GetString("user_id"))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req BulkReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	result, err := h.svc.BulkReview(c.Request.Context(), req.TenantIDs, reviewerID, req.Action, req.Notes)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// Export streams the verification roster for a status as CSV (default)
// or JSON
func (h *AdminHandler) Export(c *gin.Context) {
	status := models.EligibilityStatus(c.DefaultQuery("status", string(models.EligibilityUnderReview)))

	rows, err := h.svc.ExportByStatus(c.Request.Context(), status)
	if err != nil {
		respondError(c, err)
		return
	}

	if c.DefaultQuery("format", "csv") == "json" {
		c.JSON(http.StatusOK, gin.H{"count": len(rows), "tenants": rows})
		return
	}

	fileName := fmt.Sprintf("verification-export-%s-%s.csv", status, time.Now().UTC().Format("2006-01-02"))
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", `attachment; filename="`+fileName+`"`)

	w := csv.NewWriter(c.Writer)
	_ = w.Write([]string{
		"Tenant ID", "Institution Name", "Contact Email", "Student Count", "Status",
		"Deadline", "Created At", "Documents Submitted", "Document Types",
		"Last Review Action", "Last Review Notes",
	})
	for _, row := range rows {
		_ = w.Write([]string{
			row.TenantID.String(),
			row.Name,
			row.ContactEmail,
			strconv.Itoa(row.StudentCount),
			string(row.Status),
			row.Deadline,
			row.CreatedAt,
			strconv.Itoa(row.DocumentsSubmitted),
			row.DocumentTypes,
			row.LastReviewAction,
			row.LastReviewNotes,
		})
	}
	w.Flush()
}
