package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/clapserv/backend/internal/auth"
	"github.com/clapserv/backend/internal/cache"
	"github.com/clapserv/backend/internal/database"
	"github.com/clapserv/backend/internal/email"
	"github.com/clapserv/backend/internal/geo"
	"github.com/clapserv/backend/internal/handlers"
	"github.com/clapserv/backend/internal/logger"
	"github.com/clapserv/backend/internal/matching"
	"github.com/clapserv/backend/internal/metrics"
	"github.com/clapserv/backend/internal/middleware"
	"github.com/clapserv/backend/internal/notifications"
	"github.com/clapserv/backend/internal/push"
	"github.com/clapserv/backend/internal/storage"
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	// Load environment variables before anything reads them.
	// Running without a .env file is normal in production.
	_ = godotenv.Load()

	if err := logger.Initialize(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FILE")); err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer logger.Close()

	logger.Log.Info("clapserv backend starting")

	metrics.Initialize()

	// Database
	if err := database.Initialize(); err != nil {
		logger.FatalWithErr("failed to initialize database", err)
	}
	defer database.Close()

	if err := database.Migrate(); err != nil {
		logger.FatalWithErr("failed to run migrations", err)
	}

	// Redis (rate limiting + geocode cache). The server runs degraded
	// without it rather than refusing to start.
	redisClient, err := cache.NewRedisClient(
		os.Getenv("REDIS_HOST"),
		os.Getenv("REDIS_PORT"),
		os.Getenv("REDIS_PASSWORD"),
	)
	if err != nil {
		logger.WarnWithErr("redis unavailable, continuing without cache", err)
	} else {
		defer redisClient.Close()
	}

	// Auth
	jwtSecret := []byte(os.Getenv("JWT_SECRET"))
	if len(jwtSecret) == 0 {
		logger.Log.Fatal("JWT_SECRET environment variable is required")
	}
	authService := auth.NewService(jwtSecret)

	// Matching and push pipeline
	ipClient := geo.NewIPLocateClient(os.Getenv("IP_GEOLOCATION_URL"))
	resolver := geo.NewResolver(ipClient)
	matcher := matching.NewMatcher(resolver)
	expoClient := push.NewExpoClient(os.Getenv("EXPO_PUSH_URL"))
	dispatcher := notifications.NewDispatcher(matcher, expoClient)

	h := handlers.NewHandlers(authService, dispatcher)

	// S3 attachment storage
	s3Uploader, err := storage.NewS3Uploader(
		os.Getenv("AWS_REGION"),
		os.Getenv("AWS_BUCKET"),
		os.Getenv("CDN_BASE_URL"),
	)
	if err != nil {
		logger.WarnWithErr("S3 uploader unavailable, attachment uploads will fail", err)
	} else {
		if err := s3Uploader.CheckBucketAccess(context.Background()); err != nil {
			logger.WarnWithErr("S3 bucket access check failed", err)
		}
		h.SetUploader(s3Uploader)
	}

	// SES for password reset mail
	if fromEmail := os.Getenv("SES_FROM_EMAIL"); fromEmail != "" {
		emailService, err := email.NewEmailService(
			os.Getenv("AWS_REGION"),
			fromEmail,
			os.Getenv("SES_FROM_NAME"),
			os.Getenv("WEB_BASE_URL"),
		)
		if err != nil {
			logger.WarnWithErr("SES unavailable, password reset mail disabled", err)
		} else {
			h.SetEmailService(emailService)
		}
	}

	router := setupRouter(h)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	go func() {
		logger.Log.Info("listening", zap.String("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.FatalWithErr("server failed", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("shutting down server")

	// Give outstanding requests 30 seconds to complete
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.FatalWithErr("server forced to shutdown", err)
	}

	logger.Log.Info("server exited")
}

func setupRouter(h *handlers.Handlers) *gin.Engine {
	if os.Getenv("ENVIRONMENT") == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.GinLoggerMiddleware())
	r.Use(middleware.MetricsMiddleware())
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"*"} // Configure properly for production
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-Request-ID"}
	r.Use(cors.New(corsConfig))

	r.Use(middleware.RedisRateLimitMiddleware(300, time.Minute))

	// Health and metrics
	r.GET("/health", func(c *gin.Context) {
		status := http.StatusOK
		dbStatus := "ok"
		if err := database.Health(); err != nil {
			status = http.StatusServiceUnavailable
			dbStatus = "down"
		}
		redisStatus := "not configured"
		if rc := cache.GetRedisClient(); rc != nil {
			redisStatus = "ok"
			if err := rc.Ping(c.Request.Context()); err != nil {
				redisStatus = "down"
			}
		}
		c.JSON(status, gin.H{
			"status":    dbStatus,
			"redis":     redisStatus,
			"timestamp": time.Now().UTC(),
			"service":   "clapserv-backend",
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	{
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/register", h.Register)
			authGroup.POST("/login", h.Login)
			authGroup.POST("/reset-password", h.RequestPasswordReset)
			authGroup.POST("/reset-password/confirm", h.ConfirmPasswordReset)
			authGroup.GET("/me", h.AuthMiddleware(), h.Me)
		}

		// Public catalog
		api.GET("/categories", h.ListCategories)
		api.GET("/categories/:id", h.GetCategory)
		api.GET("/regions", h.ListRegions)
		api.GET("/users/:id", h.GetUser)
		api.GET("/users/:id/provider-profile", h.GetProviderProfile)
		api.GET("/users/:id/reviews", h.ListProviderReviews)

		// Authenticated routes
		authed := api.Group("")
		authed.Use(h.AuthMiddleware())
		{
			authed.PUT("/users/me", h.UpdateProfile)
			authed.POST("/users/me/role", h.SwitchRole)
			authed.PUT("/users/me/provider-profile", h.UpsertProviderProfile)

			requests := authed.Group("/requests")
			{
				requests.POST("", h.CreateRequest)
				requests.GET("/mine", h.ListMyRequests)
				requests.GET("/open", h.ListOpenRequests)
				requests.GET("/:id", h.GetRequest)
				requests.POST("/:id/cancel", h.CancelRequest)
				requests.POST("/:id/proposals", h.SubmitProposal)
				requests.GET("/:id/proposals", h.ListProposals)
			}

			proposals := authed.Group("/proposals")
			{
				proposals.GET("/mine", h.ListMyProposals)
				proposals.POST("/:id/accept", h.AcceptProposal)
				proposals.POST("/:id/reject", h.RejectProposal)
				proposals.POST("/:id/withdraw", h.WithdrawProposal)
			}

			projects := authed.Group("/projects")
			{
				projects.GET("", h.ListProjects)
				projects.GET("/:id", h.GetProject)
				projects.POST("/:id/status", h.UpdateProjectStatus)
				projects.POST("/:id/review", h.CreateReview)
			}

			conversations := authed.Group("/conversations")
			{
				conversations.POST("", h.CreateConversation)
				conversations.GET("", h.ListConversations)
				conversations.GET("/:id", h.GetConversation)
				conversations.POST("/:id/messages", h.SendMessage)
				conversations.GET("/:id/messages", h.ListMessages)
				conversations.POST("/:id/read", h.MarkMessagesRead)
				conversations.POST("/:id/attachments", h.UploadAttachment)
			}

			notifs := authed.Group("/notifications")
			{
				notifs.GET("", h.GetNotifications)
				notifs.GET("/counts", h.GetNotificationCounts)
				notifs.POST("/read", h.MarkNotificationsRead)
				notifs.POST("/seen", h.MarkNotificationsSeen)
			}

			authed.POST("/push-tokens", h.RegisterPushToken)
			authed.DELETE("/push-tokens", h.RemovePushToken)
		}

		// Admin routes
		admin := api.Group("/admin")
		admin.Use(h.AuthMiddleware(), middleware.RequireAdmin())
		{
			admin.POST("/categories", h.CreateCategory)
			admin.PUT("/categories/:id", h.UpdateCategory)
			admin.POST("/regions", h.CreateRegion)
			admin.POST("/regions/:id/categories", h.EnableRegionCategory)
		}
	}

	return r
}
