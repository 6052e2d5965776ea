package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gracechapel/backend/internal/auth"
	"github.com/gracechapel/backend/internal/cache"
	"github.com/gracechapel/backend/internal/config"
	"github.com/gracechapel/backend/internal/database"
	"github.com/gracechapel/backend/internal/engagement"
	"github.com/gracechapel/backend/internal/handlers"
	"github.com/gracechapel/backend/internal/logger"
	"github.com/gracechapel/backend/internal/metrics"
	"github.com/gracechapel/backend/internal/middleware"
	"github.com/gracechapel/backend/internal/telemetry"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using system environment variables")
	}

	cfg := config.Load()

	if err := logger.Initialize(cfg.LogLevel, cfg.LogFile); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Close()

	// Initialize database
	if err := database.Initialize(); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.Close()

	if err := database.Migrate(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Initialize Redis. The engagement engine degrades without it (views
	// become uncounted, stats skip the snapshot cache) but we treat it as
	// required in production.
	redisClient, err := cache.NewRedisClient(cfg.RedisHost, cfg.RedisPort, cfg.RedisPassword)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()

	// Initialize tracing
	tp, err := telemetry.InitTracer(telemetry.Config{
		ServiceName:  "gracechapel-backend",
		Environment:  cfg.Environment,
		OTLPEndpoint: cfg.OTLPEndpoint,
		Enabled:      cfg.TracingEnabled,
		SamplingRate: cfg.TraceSampleRate,
	})
	if err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}
	if tp != nil {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = tp.Shutdown(ctx)
		}()
	}

	metrics.Initialize()

	// Wire the engagement engine
	viewStore := engagement.NewRedisViewStore(redisClient)
	engagementService := engagement.NewService(
		database.DB,
		viewStore,
		redisClient,
		engagement.OptionsFromConfig(cfg.Engagement),
	)

	authMW := auth.NewMiddleware(cfg.JWTSecret)
	h := handlers.NewHandlers(engagementService)

	// Setup Gin router
	if cfg.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.GinLoggerMiddleware())
	r.Use(middleware.MetricsMiddleware())
	if cfg.TracingEnabled {
		r.Use(middleware.TracingMiddleware("gracechapel-backend"))
	}

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = strings.Split(cfg.CORSOrigins, ",")
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-Session-ID", "X-Request-ID"}
	r.Use(cors.New(corsConfig))

	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API routes
	api := r.Group("/api/v1")
	api.Use(gzip.Gzip(gzip.DefaultCompression))
	api.Use(middleware.RedisRateLimitMiddleware(300, time.Minute))
	{
		// Church blog
		api.GET("/blog", h.ListPosts)
		api.GET("/blog/:slug", h.GetPost)

		// Community posts
		api.GET("/community", h.ListCommunityPosts)
		api.GET("/community/:slug", h.GetCommunityPost)
		api.POST("/community", authMW.RequireAuth(), h.CreateCommunityPost)

		// Engagement endpoints, shared across both content types.
		// Beacons take optional auth; likes require it.
		content := api.Group("/:ctype/:slug")
		{
			content.POST("/view", authMW.OptionalAuth(), h.RecordView)
			content.POST("/engagement", authMW.OptionalAuth(), h.RecordEngagement)
			content.POST("/share", authMW.OptionalAuth(), h.RecordShare)
			content.GET("/stats", authMW.OptionalAuth(), h.Stats)
			content.POST("/like", authMW.RequireAuth(), h.Like)
			content.DELETE("/like", authMW.RequireAuth(), h.Unlike)
		}

		// Admin
		admin := api.Group("/admin")
		admin.Use(authMW.RequireAuth(), authMW.RequireAdmin())
		{
			admin.GET("/members", h.ListMembers)
			admin.POST("/members", h.CreateMember)
			admin.PUT("/members/:id", h.UpdateMember)
			admin.DELETE("/members/:id", h.DeleteMember)

			admin.GET("/positions", h.ListPositions)
			admin.POST("/positions", h.CreatePosition)
			admin.PUT("/positions/:id", h.UpdatePosition)
			admin.DELETE("/positions/:id", h.DeletePosition)

			admin.GET("/events", h.ListEvents)
			admin.POST("/events", h.CreateEvent)
			admin.PUT("/events/:id", h.UpdateEvent)
			admin.DELETE("/events/:id", h.DeleteEvent)

			admin.GET("/doctrines", h.ListDoctrines)
			admin.POST("/doctrines", h.CreateDoctrine)
			admin.PUT("/doctrines/:id", h.UpdateDoctrine)
			admin.DELETE("/doctrines/:id", h.DeleteDoctrine)

			admin.GET("/settings", h.GetSiteSettings)
			admin.PUT("/settings", h.UpdateSiteSettings)

			admin.GET("/export/:entity", h.ExportEntity)
		}
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		log.Printf("Grace Chapel backend starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Give outstanding requests 30 seconds to complete
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}
