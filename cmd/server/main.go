package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/tripnest/booking-backend/internal/config"
	"github.com/tripnest/booking-backend/internal/database"
	"github.com/tripnest/booking-backend/internal/handlers"
	"github.com/tripnest/booking-backend/internal/middleware"
	"github.com/tripnest/booking-backend/internal/notification"
	"github.com/tripnest/booking-backend/internal/services"
	"github.com/tripnest/booking-backend/pkg/jwt"
	"github.com/tripnest/booking-backend/pkg/payment"
	"github.com/tripnest/booking-backend/pkg/sms"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	logger.Info("Starting TripNest booking backend")
	logger.Infof("Version: %s, Build Time: %s", version, buildTime)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	// Set log level
	logLevel, err := logrus.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		logger.Warn("Invalid log level, using INFO")
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Set Gin mode
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// Initialize database connection
	logger.Info("Connecting to database...")
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Info("Database connection established")

	if cfg.Database.AutoMigrate {
		logger.Info("Applying database migrations...")
		if err := database.Migrate(db.DB.DB); err != nil {
			logger.Fatalf("Failed to migrate database: %v", err)
		}
	}

	location := cfg.Location()

	// Initialize repositories
	tx := database.NewTransactor(db)
	packageRepository := database.NewPackageRepository(db)
	bookingRepository := database.NewBookingRepository(db)
	rewardRepository := database.NewRewardRepository(db)
	paymentRepository := database.NewPaymentTransactionRepository(db)
	userRepository := database.NewUserRepository(db)
	reviewRepository := database.NewReviewRepository(db)
	eventRepository := database.NewOutboundEventRepository(db)
	webhookRepository := database.NewWebhookEventRepository(db, logger)

	// Initialize payment gateway
	gateway := payment.NewMidtransGateway(payment.MidtransConfig{
		ServerKey:    cfg.Payment.ServerKey,
		IsProduction: cfg.Payment.IsProduction,
		BaseURL:      cfg.Payment.BaseURL,
		FinishURL:    cfg.Payment.FinishURL,
		Timeout:      cfg.Payment.SessionTimeout,
	}, logger)
	if cfg.Payment.ServerKey == "" {
		logger.Warn("PAYMENT_SERVER_KEY is not set, payment sessions will fail")
	}

	// Initialize services
	logger.Info("Initializing services...")
	jwtService := jwt.NewService(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.AccessTokenExpiry)

	orchestratorService := services.NewBookingOrchestratorService(
		tx,
		packageRepository,
		bookingRepository,
		rewardRepository,
		paymentRepository,
		userRepository,
		gateway,
		eventRepository,
		services.BookingOrchestratorConfig{Location: location},
		logger,
	)
	reconcilerService := services.NewWebhookReconcilerService(
		tx,
		bookingRepository,
		paymentRepository,
		rewardRepository,
		webhookRepository,
		eventRepository,
		services.WebhookReconcilerConfig{
			Provider:        cfg.Payment.Provider,
			ServerKey:       cfg.Payment.ServerKey,
			VerifySignature: cfg.Webhook.VerifySignature,
		},
		logger,
	)
	if !cfg.Webhook.VerifySignature {
		logger.Warn("Webhook signature verification is DISABLED")
	}

	bookingService := services.NewBookingService(tx, bookingRepository, packageRepository, paymentRepository, rewardRepository, eventRepository, logger)
	packageService := services.NewPackageService(packageRepository, bookingRepository, location, logger)
	rewardService := services.NewRewardService(rewardRepository, logger)
	reviewService := services.NewReviewService(reviewRepository, bookingRepository, logger)
	rateLimitService := services.NewRateLimitService(db, services.RateLimitConfig{
		MaxUserBookings:    cfg.RateLimit.MaxUserBookings,
		BookingWindow:      cfg.RateLimit.BookingWindow,
		MaxPaymentAttempts: cfg.RateLimit.MaxPaymentAttempts,
		PaymentWindow:      cfg.RateLimit.PaymentWindow,
	})

	// Notification channels
	channels := notificationChannels(cfg.Notification, logger)
	notifierService := services.NewNotifierService(
		eventRepository,
		userRepository,
		channels,
		services.NotifierConfig{
			PollInterval:  cfg.Notification.PollInterval,
			BatchSize:     cfg.Notification.BatchSize,
			MaxAttempts:   cfg.Notification.MaxAttempts,
			LeaseDuration: cfg.Notification.LeaseDuration,
		},
		logger,
	)

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	go notifierService.Run(workerCtx)

	// Scheduled jobs
	cronService := services.NewCronService(rewardService, eventRepository, services.CronConfig{
		RewardExpirySpec:  cfg.Scheduler.RewardExpirySpec,
		OutboxCleanupSpec: cfg.Scheduler.OutboxCleanupSpec,
		OutboxRetention:   cfg.Scheduler.OutboxRetention,
	}, logger)
	if err := cronService.Start(); err != nil {
		logger.Fatalf("Failed to start cron service: %v", err)
	}
	// Catch up on rewards that lapsed while the server was down
	go cronService.RunRewardExpiryNow()

	// Initialize handlers
	bookingHandler := handlers.NewBookingHandler(orchestratorService, bookingService, rateLimitService, logger)
	webhookHandler := handlers.NewPaymentWebhookHandler(reconcilerService, logger)
	packageHandler := handlers.NewPackageHandler(packageService, reviewService, logger)
	rewardHandler := handlers.NewRewardHandler(rewardService, logger)
	reviewHandler := handlers.NewReviewHandler(reviewService, logger)

	// Setup Gin router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(logger))

	// CORS middleware
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    []string{"Content-Length", "Retry-After", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Health check endpoint
	router.GET("/health", healthCheckHandler(db, cronService))

	v1 := router.Group("/api/v1")
	{
		// Public catalog
		packages := v1.Group("/packages")
		{
			packages.GET("/:type", packageHandler.ListPackages)
			packages.GET("/:type/:id", packageHandler.GetPackage)
			packages.GET("/:type/:id/availability", packageHandler.CheckAvailability)
			packages.GET("/:type/:id/reviews", packageHandler.ListReviews)
		}

		// Gateway callbacks, authenticated by signature
		v1.POST("/payments/webhook", webhookHandler.HandleNotification)

		// Customer endpoints
		authed := v1.Group("")
		authed.Use(middleware.AuthMiddleware(jwtService, logger))
		{
			bookings := authed.Group("/bookings")
			{
				bookings.POST("", bookingHandler.CreateBooking)
				bookings.GET("", bookingHandler.ListMyBookings)
				bookings.GET("/:id", bookingHandler.GetBooking)
				bookings.POST("/:id/cancel", bookingHandler.CancelBooking)
				bookings.POST("/:id/payment", bookingHandler.RetryPayment)
				bookings.GET("/:id/payments", bookingHandler.ListPayments)
				bookings.POST("/:id/review", reviewHandler.Create)
				bookings.GET("/:id/can-review", reviewHandler.CanReview)
			}

			rewards := authed.Group("/rewards")
			{
				rewards.GET("", rewardHandler.ListAvailable)
				rewards.POST("/preview", rewardHandler.Preview)
			}

			authed.GET("/reviews/me", reviewHandler.ListMine)

			// Staff endpoints; access is restricted by the upstream gateway
			authed.PUT("/admin/bookings/:id/status", bookingHandler.UpdateBookingStatus)
		}
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Infof("Server listening on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	logger.Info("Stopping background workers...")
	cronService.Stop()
	stopWorkers()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited successfully")
}

// notificationChannels builds the staff and customer channels. Telegram is
// optional; SMS falls back to logging outside production mode.
func notificationChannels(cfg config.NotificationConfig, logger *logrus.Logger) []notification.Channel {
	var channels []notification.Channel

	if cfg.TelegramBotToken != "" {
		telegram, err := notification.NewTelegramChannel(cfg.TelegramBotToken, cfg.TelegramChatID, logger)
		if err != nil {
			logger.WithError(err).Warn("Telegram channel disabled")
		} else {
			channels = append(channels, telegram)
		}
	}

	var gateway sms.Gateway
	if cfg.Mode == "production" {
		gateway = sms.NewURLGateway(cfg.SMSBaseURL, cfg.SMSAPIKey, cfg.SMSMask, logger)
	} else {
		gateway = sms.NewLogGateway(logger)
	}
	channels = append(channels, notification.NewSMSChannel(gateway, logger))

	logger.WithField("channels", len(channels)).Info("Notification channels configured")
	return channels
}

// healthCheckHandler returns a health check handler
func healthCheckHandler(db database.DB, cronService *services.CronService) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check database connection
		dbStatus := "healthy"
		if err := db.PingContext(c.Request.Context()); err != nil {
			dbStatus = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"database": dbStatus,
				"error":    err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"database":  dbStatus,
			"version":   version,
			"scheduler": cronService.GetJobStatus(),
			"timestamp": time.Now().Unix(),
		})
	}
}
