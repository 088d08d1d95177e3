package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"

	"github.com/eduverify/backend/internal/config"
	"github.com/eduverify/backend/internal/database"
	"github.com/eduverify/backend/internal/handlers"
	"github.com/eduverify/backend/internal/jobs"
	"github.com/eduverify/backend/internal/middleware"
	"github.com/eduverify/backend/internal/notify"
	"github.com/eduverify/backend/internal/queue"
	"github.com/eduverify/backend/internal/repository"
	"github.com/eduverify/backend/internal/routes"
	"github.com/eduverify/backend/internal/services/analytics"
	"github.com/eduverify/backend/internal/services/anomaly"
	"github.com/eduverify/backend/internal/services/verification"
	"github.com/eduverify/backend/internal/storage"
)

func main() {
	// Initialize configuration (loads .env when present)
	cfg := config.LoadConfig()

	// Initialize database
	db, err := database.InitDB(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// Initialize Redis client for the risk-score cache
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.URL,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx := context.Background()
	if _, err := redisClient.Ping(ctx).Result(); err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}

	// Initialize document storage
	blobs, err := storage.NewLocalStore(cfg.Storage.UploadDir)
	if err != nil {
		log.Fatalf("Failed to initialize document storage: %v", err)
	}

	// Initialize repositories and the background queue
	store := repository.NewStore(db)
	jobQueue := queue.NewQueue(queue.NewGormJobStore(db))

	// Initialize services
	dispatcher := notify.NewQueueDispatcher(jobQueue)
	verificationSvc := verification.NewService(store, blobs, dispatcher)
	riskEngine := analytics.NewRiskEngine(store, analytics.NewRedisCache(redisClient))
	predictor := analytics.NewPredictor(store)
	summarizer := analytics.NewSummarizer(store)
	detector := anomaly.NewDetector(store)

	// Register job handlers and start workers
	emailSender := notify.NewEmailSender()
	jobs.RegisterAllJobHandlers(jobQueue, emailSender, detector)
	jobQueue.Start(cfg.Queue.Workers)

	// Schedule the daily anomaly scan and grace-period sweep
	scheduler := jobs.ScheduleRecurringJobs(detector, verificationSvc)

	// Initialize handlers
	h := routes.Handlers{
		Auth:         handlers.NewAuthHandler(cfg.Admin, store),
		Verification: handlers.NewVerificationHandler(verificationSvc),
		Appeals:      handlers.NewAppealHandler(verificationSvc),
		Analytics:    handlers.NewAnalyticsHandler(riskEngine, predictor, summarizer),
		Anomalies:    handlers.NewAnomalyHandler(detector),
		Admin:        handlers.NewAdminHandler(verificationSvc),
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	rateLimiter := middleware.NewRateLimiter(10, 20)
	router := routes.SetupRouter(cfg, h, rateLimiter)

	// Start server
	srv := startServer(router, cfg.Server.Port)

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	scheduler.Stop()
	jobQueue.Stop()
	rateLimiter.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting")
}

// startServer starts the HTTP server
func startServer(router *gin.Engine, port string) *http.Server {
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	log.Printf("Server started on port %s", port)
	return srv
}
