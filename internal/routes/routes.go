package routes

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/eduverify/backend/internal/config"
	"github.com/eduverify/backend/internal/handlers"
	"github.com/eduverify/backend/internal/middleware"
)

// Handlers bundles everything the router needs
type Handlers struct {
	Auth         *handlers.AuthHandler
	Verification *handlers.VerificationHandler
	Appeals      *handlers.AppealHandler
	Analytics    *handlers.AnalyticsHandler
	Anomalies    *handlers.AnomalyHandler
	Admin        *handlers.AdminHandler
}

// SetupRouter wires middleware and all route groups onto a gin engine
func SetupRouter(cfg *config.Config, h Handlers, rateLimiter *middleware.RateLimiter) *gin.Engine {
	router := gin.Default()

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.FrontendURL},
		AllowMethods:     []string{"GET", "POST", "PATCH", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.Use(rateLimiter.IPRateLimiterMiddleware())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	registerAuthRoutes(router, h)
	registerVerificationRoutes(router, h)
	registerAdminRoutes(router, h)

	return router
}

// registerAuthRoutes registers token issuance routes
func registerAuthRoutes(router *gin.Engine, h Handlers) {
	authGroup := router.Group("/api/auth")
	{
		authGroup.POST("/login", h.Auth.Login)
	}
}

// registerVerificationRoutes registers the /api/verification surface.
// Reviewer-only endpoints carry the admin gate per route.
func registerVerificationRoutes(router *gin.Engine, h Handlers) {
	// Institution signup happens before any credentials exist
	router.POST("/api/verification/register", h.Verification.RegisterTenant)
	router.POST("/api/verification/domain/verify", h.Verification.CheckDomain)

	verificationGroup := router.Group("/api/verification")
	verificationGroup.Use(middleware.AuthMiddleware())
	{
		verificationGroup.POST("/documents", h.Verification.SubmitDocument)
		verificationGroup.GET("/status", h.Verification.GetStatus)

		verificationGroup.POST("/appeals", h.Appeals.OpenAppeal)
		verificationGroup.POST("/appeals/:id/info", h.Appeals.ResubmitInfo)
		verificationGroup.PATCH("/appeals/:id", middleware.AdminMiddleware(), h.Appeals.DecideAppeal)

		verificationGroup.GET("/risk/:tenantId", middleware.AdminMiddleware(), h.Analytics.GetRiskAssessment)
		verificationGroup.GET("/processing-time/:tenantId", h.Analytics.GetProcessingTime)
		verificationGroup.GET("/analytics/summary", middleware.AdminMiddleware(), h.Analytics.GetSummary)

		verificationGroup.GET("/anomalies", middleware.AdminMiddleware(), h.Anomalies.ListAlerts)
		verificationGroup.POST("/anomalies/:id/ack", middleware.AdminMiddleware(), h.Anomalies.AcknowledgeAlert)
	}
}

// registerAdminRoutes registers the reviewer work queues
func registerAdminRoutes(router *gin.Engine, h Handlers) {
	adminGroup := router.Group("/api/admin/verification")
	adminGroup.Use(middleware.AuthMiddleware(), middleware.AdminMiddleware())
	{
		adminGroup.GET("", h.Admin.ReviewQueue)
		adminGroup.POST("/:tenantId/review", h.Admin.RecordReview)
		adminGroup.POST("/bulk-review", h.Admin.BulkReview)
		adminGroup.GET("/export", h.Admin.Export)
		adminGroup.GET("/:tenantId/audit", h.Verification.GetAuditTrail)
		adminGroup.POST("/:tenantId/token", h.Auth.TenantToken)

		adminGroup.GET("/appeals", h.Admin.AppealQueue)
	}
}
