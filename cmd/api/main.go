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

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/preptracker/backend/internal/data"
	"github.com/preptracker/backend/internal/handler"
	"github.com/preptracker/backend/internal/infrastructure"
	"github.com/preptracker/backend/internal/repository"
	"github.com/preptracker/backend/internal/service"
)

func main() {
	// Load configuration
	config := infrastructure.LoadConfig()

	// Initialize logger
	logger, err := infrastructure.NewLogger(config.Server.Environment)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer infrastructure.SyncLogger(logger)

	logger.Info("Starting PrepTracker API",
		zap.String("environment", config.Server.Environment),
		zap.Int("port", config.Server.Port),
	)

	// Initialize context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize telemetry
	telemetry, err := infrastructure.NewTelemetry(ctx, &config.Telemetry, logger)
	if err != nil {
		logger.Error("Failed to initialize telemetry", zap.Error(err))
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = telemetry.Shutdown(shutdownCtx)
	}()

	// Create metrics
	metrics, err := telemetry.CreateMetrics()
	if err != nil {
		logger.Error("Failed to create metrics", zap.Error(err))
		os.Exit(1)
	}

	// Initialize database
	database, err := infrastructure.NewDatabase(&config.Database, logger)
	if err != nil {
		logger.Error("Failed to connect to database", zap.Error(err))
		os.Exit(1)
	}
	defer database.Close()

	// Run migrations
	if err := database.AutoMigrate(); err != nil {
		logger.Error("Failed to run migrations", zap.Error(err))
		os.Exit(1)
	}

	// Optional stats cache
	redisClient, err := infrastructure.NewRedisClient(ctx, &config.Redis, logger)
	if err != nil {
		logger.Error("Failed to connect to redis", zap.Error(err))
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}
	cache := service.NewCache(redisClient)

	store := repository.NewStore(database.DB)

	// Seed the starter catalog
	if config.Catalog.SeedStarter {
		seeder := data.NewSeeder(store.Problems(), logger)
		if err := seeder.SeedProblems(ctx); err != nil {
			logger.Error("Failed to seed problems", zap.Error(err))
			os.Exit(1)
		}
	}

	// Initialize services
	clock := service.SystemClock
	tracer := telemetry.Tracer
	userService := service.NewUserService(store.Users(), cache, &config.JWT, tracer, logger)
	reviewService := service.NewReviewService(store, cache, metrics, tracer, logger, clock)
	problemService := service.NewProblemService(store, reviewService, cache, tracer, logger, clock)
	contestService := service.NewContestService(store, reviewService, metrics, tracer, logger, clock)
	statsService := service.NewStatsService(store, cache, config.Redis.TTL, tracer, logger, clock)

	// Setup Gin router
	if config.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := handler.NewRouter(handler.RouterConfig{
		Services: handler.Services{
			Users:    userService,
			Problems: problemService,
			Reviews:  reviewService,
			Contests: contestService,
			Stats:    statsService,
		},
		Metrics:        metrics,
		Logger:         logger,
		Clock:          clock,
		ServiceName:    config.Telemetry.ServiceName,
		Version:        config.Telemetry.ServiceVersion,
		AllowedOrigins: config.Server.AllowedOrigins,
		HealthCheck:    database.HealthCheck,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port),
		Handler:      router,
		ReadTimeout:  config.Server.ReadTimeout,
		WriteTimeout: config.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("HTTP server starting",
			zap.String("address", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
