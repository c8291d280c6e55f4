package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/preptracker/backend/internal/infrastructure"
	"github.com/preptracker/backend/internal/middleware"
	"github.com/preptracker/backend/internal/service"
)

// Services are the application services the API exposes
type Services struct {
	Users    *service.UserService
	Problems *service.ProblemService
	Reviews  *service.ReviewService
	Contests *service.ContestService
	Stats    *service.StatsService
}

// RouterConfig wires the HTTP surface
type RouterConfig struct {
	Services       Services
	Metrics        *infrastructure.TelemetryMetrics
	Logger         *zap.Logger
	Clock          service.Clock
	ServiceName    string
	Version        string
	AllowedOrigins []string
	// HealthCheck reports whether the backing stores are reachable
	HealthCheck func(ctx context.Context) error
}

// NewRouter builds the gin engine with middleware and all routes
func NewRouter(cfg RouterConfig) *gin.Engine {
	logger := cfg.Logger
	now := cfg.Clock
	if now == nil {
		now = service.SystemClock
	}

	authHandler := NewAuthHandler(cfg.Services.Users, logger)
	userHandler := NewUserHandler(cfg.Services.Users, logger)
	problemHandler := NewProblemHandler(cfg.Services.Problems, logger)
	reviewHandler := NewReviewHandler(cfg.Services.Reviews, logger)
	contestHandler := NewContestHandler(cfg.Services.Contests, logger, now)
	statsHandler := NewStatsHandler(cfg.Services.Stats, logger)

	router := gin.New()

	// Add global middleware
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))
	router.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))
	router.Use(middleware.TracingMiddleware(cfg.ServiceName))
	router.Use(middleware.SpanAttributes())
	if cfg.Metrics != nil {
		router.Use(middleware.MetricsMiddleware(cfg.Metrics))
	}

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		if cfg.HealthCheck != nil {
			if err := cfg.HealthCheck(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status": "unhealthy",
					"error":  "database connection failed",
				})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": cfg.Version,
		})
	})

	// Metrics endpoint for Prometheus
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1")
	{
		// Auth routes (public)
		auth := api.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.POST("/refresh", authHandler.Refresh)
		}

		// Protected routes
		protected := api.Group("")
		protected.Use(middleware.AuthMiddleware(cfg.Services.Users))
		{
			users := protected.Group("/users")
			{
				users.GET("/me", userHandler.GetCurrentUser)
				users.PATCH("/me/settings", userHandler.UpdateSettings)
			}

			problems := protected.Group("/problems")
			{
				problems.POST("", problemHandler.AddProblem)
				problems.GET("", problemHandler.GetProblems)
				problems.GET("/:id", problemHandler.GetProblem)
				problems.PATCH("/:id", problemHandler.UpdateProblem)
			}

			reviews := protected.Group("/reviews")
			{
				reviews.POST("", reviewHandler.RecordReview)
				reviews.GET("/due", reviewHandler.GetDue)
			}

			contests := protected.Group("/contests")
			{
				contests.POST("/generate", contestHandler.GenerateContest)
				contests.GET("", contestHandler.GetContests)
				contests.GET("/:id", contestHandler.GetContest)
				contests.POST("/:id/start", contestHandler.StartContest)
				contests.POST("/:id/complete", contestHandler.CompleteContest)
				contests.POST("/:id/results", contestHandler.SubmitResults)
				contests.POST("/:id/items/:problemId/result", contestHandler.RecordResult)
			}

			stats := protected.Group("/stats")
			{
				stats.GET("/overview", statsHandler.Overview)
				stats.GET("/topics", statsHandler.Topics)
				stats.GET("/streaks", statsHandler.Streaks)
				stats.GET("/contests", statsHandler.Contests)
			}
		}
	}

	return router
}
