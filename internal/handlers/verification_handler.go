package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/eduverify/backend/internal/models"
	"github.com/eduverify/backend/internal/services/verification"
)

// VerificationHandler handles tenant-facing verification requests
type VerificationHandler struct {
	svc     *verification.Service
	domains *verification.DomainChecker
}

// NewVerificationHandler creates a new verification handler
func NewVerificationHandler(svc *verification.Service) *VerificationHandler {
	return &VerificationHandler{
		svc:     svc,
		domains: verification.NewDomainChecker(),
	}
}

// RegisterTenantRequest is the payload for institution signup
type RegisterTenantRequest struct {
	Name         string `json:"name" binding:"required"`
	ContactEmail string `json:"contact_email" binding:"required"`
	Domain       string `json:"domain"`
	StudentCount int    `json:"student_count"`
}

// RegisterTenant creates a new institution in PENDING status
func (h *VerificationHandler) RegisterTenant(c *gin.Context) {
	var req RegisterTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	tenant, err := h.svc.RegisterTenant(c.Request.Context(), verification.RegisterTenantInput{
		Name:         req.Name,
		ContactEmail: req.ContactEmail,
		Domain:       req.Domain,
		StudentCount: req.StudentCount,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, tenant)
}

// SubmitDocument accepts a multipart evidence upload for the caller's tenant
func (h *VerificationHandler) SubmitDocument(c *gin.Context) {
	tenantID, ok := callerTenantID(c)
	if !ok {
		return
	}

	docType := models.DocumentType(c.PostForm("document_type"))

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File is required"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read uploaded file"})
		return
	}
	defer file.Close()

	doc, err := h.svc.SubmitDocument(c.Request.Context(), tenantID, verification.SubmitDocumentInput{
		DocumentType: docType,
		FileName:     fileHeader.Filename,
		ContentType:  fileHeader.Header.Get("Content-Type"),
		FileSize:     fileHeader.Size,
		Content:      file,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, doc)
}

// GetStatus returns the full verification picture for the caller's tenant
func (h *VerificationHandler) GetStatus(c *gin.Context) {
	tenantID, ok := callerTenantID(c)
	if !ok {
		return
	}

	report, err := h.svc.GetStatus(c.Request.Context(), tenantID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// GetAuditTrail returns the chronological compliance log for a tenant
func (h *VerificationHandler) GetAuditTrail(c *gin.Context) {
	tenantID, err := uuid.Parse(c.Param("tenantId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid tenant ID"})
		return
	}

	limit, offset := pagination(c, 50)

	entries, err := h.svc.AuditTrail(c.Request.Context(), tenantID, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"entries": entries,
		"limit":   limit,
		"offset":  offset,
	})
}

// CheckDomain probes whether an institution's website responds
func (h *VerificationHandler) CheckDomain(c *gin.Context) {
	var req struct {
		Domain string `json:"domain" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	result, err := h.domains.Check(c.Request.Context(), req.Domain)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// callerTenantID resolves the tenant from the authenticated JWT claims.
func callerTenantID(c *gin.Context) (uuid.UUID, bool) {
	tenantIDStr := c.GetString("tenant_id")
	tenantID, err := uuid.Parse(tenantIDStr)
	if err != nil || tenantID == uuid.Nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "No tenant associated with this account"})
		return uuid.Nil, false
	}
	return tenantID, true
}

// pagination reads limit/offset query params with a default page size.
func pagination(c *gin.Context, defaultLimit int) (int, int) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultLimit)))
	if err != nil || limit <= 0 || limit > 200 {
		limit = defaultLimit
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}
