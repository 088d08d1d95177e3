package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/eduverify/backend/internal/config"
	"github.com/eduverify/backend/internal/repository"
	"github.com/eduverify/backend/internal/utils"
)

// AuthHandler issues tokens for the bootstrap reviewer account and for
// tenant portal sessions. Reviewer identity is derived from the
// configured email so decisions stay attributable across restarts.
type AuthHandler struct {
	admin config.AdminConfig
	store repository.Store
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(admin config.AdminConfig, store repository.Store) *AuthHandler {
	return &AuthHandler{admin: admin, store: store}
}

// LoginRequest is the reviewer login payload
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login authenticates the bootstrap reviewer and returns a token pair
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if h.admin.Email == "" || h.admin.PasswordHash == "" {
		c.JSON(http.StatusForbidden, gin.H{"error": "Reviewer login is not configured"})
		return
	}

	if req.Email != h.admin.Email ||
		bcrypt.CompareHashAndPassword([]byte(h.admin.PasswordHash), []byte(req.Password)) != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	reviewerID := uuid.NewSHA1(uuid.NameSpaceURL, []byte("mailto:"+h.admin.Email))

	tokens, err := utils.GenerateTokenPair(reviewerID, uuid.Nil, h.admin.Email, true)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate tokens"})
		return
	}

	c.JSON(http.StatusOK, tokens)
}

// TenantToken mints a portal token for a tenant. Reviewer-only; used to
// hand institutions their upload credentials after registration.
func (h *AuthHandler) TenantToken(c *gin.Context) {
	tenantID, err := uuid.Parse(c.Param("tenantId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid tenant ID"})
		return
	}

	tenant, err := h.store.Tenants().Get(c.Request.Context(), tenantID)
	if err != nil {
		respondError(c, err)
		return
	}

	tokens, err := utils.GenerateTokenPair(tenant.ID, tenant.ID, tenant.ContactEmail, false)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate tokens"})
		return
	}

	c.JSON(http.StatusOK, tokens)
}
