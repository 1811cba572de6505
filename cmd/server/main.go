// Package main runs the ticketing platform HTTP server with WebSocket and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sheger-events/backend/config"
	"github.com/sheger-events/backend/internal/analytics"
	"github.com/sheger-events/backend/internal/customers"
	"github.com/sheger-events/backend/internal/events"
	"github.com/sheger-events/backend/internal/middleware"
	"github.com/sheger-events/backend/internal/models"
	"github.com/sheger-events/backend/internal/notify"
	"github.com/sheger-events/backend/internal/realtime"
	"github.com/sheger-events/backend/internal/session"
	"github.com/sheger-events/backend/internal/tickets"
	"github.com/sheger-events/backend/internal/transactions"
	"github.com/sheger-events/backend/internal/users"
	"github.com/sheger-events/backend/pkg/database"
	"github.com/sheger-events/backend/pkg/queue"
	"github.com/sheger-events/backend/pkg/redis"
	"github.com/sheger-events/backend/pkg/response"
	"github.com/sheger-events/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var s3Client *storage.S3
	if cfg.AWS.Region != "" {
		s3Cfg := storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			PostersBucket:        cfg.AWS.PostersBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}
		s3Client, err = storage.NewS3(ctx, s3Cfg, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		}
	}

	codec := session.NewCodec(cfg.Session.Secret, cfg.Session.ExpireDays)
	sessions := session.NewStore(codec, cfg.Server.Production())

	redisPubSub := realtime.NewRedisPubSub(rdb.Client, logger)
	hub := realtime.NewHub(logger, redisPubSub, redisPubSub)
	salesFeed := realtime.NewSalesFeed(hub)

	jobQueue := queue.NewQueue(rdb.Client, logger)
	tokenService := users.NewTokenService(rdb.Client)

	// Users / auth
	userRepo := users.NewRepository(pool)
	userHandler := users.NewHandler(userRepo, sessions, tokenService, jobQueue, logger)

	// Events
	eventRepo := events.NewRepository(pool)
	eventHandler := events.NewHandler(eventRepo, s3Client, logger)

	// Tickets
	ticketRepo := tickets.NewRepository(pool)
	ticketHandler := tickets.NewHandler(ticketRepo, eventRepo, logger)

	// Transactions
	txRepo := transactions.NewRepository(pool)
	txHandler := transactions.NewHandler(txRepo, eventRepo, jobQueue, salesFeed, logger)

	// Customers
	customerRepo := customers.NewRepository(pool)
	customerHandler := customers.NewHandler(customerRepo, logger)

	// Analytics
	analyticsHandler := analytics.NewHandler(pool, logger)

	// Email logs (admin console)
	emailLogRepo := notify.NewRepository(pool)
	emailLogHandler := notify.NewHandler(emailLogRepo, logger)

	if cfg.Server.Production() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/register", userHandler.Register)
		authGroup.POST("/login", userHandler.Login)
		authGroup.GET("/me", userHandler.Me)
		authGroup.POST("/logout", userHandler.Logout)
		authGroup.POST("/forgot-password", userHandler.ForgotPassword)
		authGroup.POST("/reset-password", userHandler.ResetPassword)
		authGroup.POST("/verify-email", userHandler.VerifyEmail)
		authGroup.POST("/request-verification", middleware.RequireAuth(sessions), userHandler.RequestVerification)
	}

	// Public checkout (no session; buyers are anonymous)
	router.POST("/v1/transactions", txHandler.Create)
	router.POST("/v1/transactions/:id/confirm", txHandler.Confirm)

	// Back office (session required, approved organizer or admin)
	api := router.Group("/v1")
	api.Use(middleware.RequireAuth(sessions), middleware.RequireRole(models.RoleOrganizer, models.RoleAdmin))
	{
		eventAccess := events.RequireEventAccess(eventRepo)

		api.GET("/events", eventHandler.List)
		api.POST("/events", middleware.RequireRole(models.RoleOrganizer), eventHandler.Create)
		api.GET("/events/:id", eventAccess, eventHandler.Get)
		api.PUT("/events/:id", eventAccess, eventHandler.Update)
		api.DELETE("/events/:id", eventAccess, eventHandler.Delete)
		api.POST("/events/:id/poster", eventAccess, eventHandler.UploadPoster)
		api.GET("/events/:id/poster-url", eventAccess, eventHandler.PosterURL)

		api.POST("/admin/events/:id/approve", middleware.RequireRole(models.RoleAdmin), eventHandler.Approve)
		api.POST("/admin/events/:id/reject", middleware.RequireRole(models.RoleAdmin), eventHandler.Reject)

		api.GET("/tickets", ticketHandler.List)
		api.POST("/tickets", ticketHandler.Create)
		api.GET("/tickets/:id", ticketHandler.Get)
		api.PUT("/tickets/:id", ticketHandler.Update)
		api.DELETE("/tickets/:id", ticketHandler.Delete)

		api.GET("/transactions", txHandler.List)
		api.GET("/transactions/:id", txHandler.Get)
		api.PUT("/transactions/:id/status", txHandler.UpdateStatus)

		api.GET("/customers", customerHandler.List)
		api.GET("/analytics/dashboard", analyticsHandler.Dashboard)
	}

	// Admin console
	admin := router.Group("/admin")
	admin.Use(middleware.RequireAuth(sessions), middleware.RequireRole(models.RoleAdmin))
	{
		admin.GET("/organizers", userHandler.ListOrganizers)
		admin.POST("/organizers/:id/status", userHandler.UpdateStatus)
		admin.POST("/users", userHandler.CreateUser)
		admin.GET("/email-logs", emailLogHandler.List)
		admin.GET("/dashboard", analyticsHandler.Platform)
	}

	// WebSocket sales feed (session cookie auth inside the handler)
	router.GET("/ws", realtime.ServeWs(hub, sessions, logger))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
