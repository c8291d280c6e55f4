package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/preptracker/backend/internal/domain"
	"github.com/preptracker/backend/internal/middleware"
	"github.com/preptracker/backend/internal/service"
)

// StatsHandler serves the dashboard aggregates
type StatsHandler struct {
	statsService *service.StatsService
	logger       *zap.Logger
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(statsService *service.StatsService, logger *zap.Logger) *StatsHandler {
	return &StatsHandler{
		statsService: statsService,
		logger:       logger,
	}
}

// Overview returns the workload counters
// GET /api/v1/stats/overview
func (h *StatsHandler) Overview(c *gin.Context) {
	userID, ok := middleware.RequireUser(c)
	if !ok {
		return
	}

	overview, err := h.statsService.Overview(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, overview)
}

// Topics returns mastery per topic
// GET /api/v1/stats/topics
func (h *StatsHandler) Topics(c *gin.Context) {
	userID, ok := middleware.RequireUser(c)
	if !ok {
		return
	}

	topics, err := h.statsService.Topics(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, topics)
}

// Streaks returns the current review streak
// GET /api/v1/stats/streaks
func (h *StatsHandler) Streaks(c *gin.Context) {
	userID, ok := middleware.RequireUser(c)
	if !ok {
		return
	}

	streaks, err := h.statsService.Streaks(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, streaks)
}

// Contests returns contest activity over a window
// GET /api/v1/stats/contests?window_days=N
func (h *StatsHandler) Contests(c *gin.Context) {
	userID, ok := middleware.RequireUser(c)
	if !ok {
		return
	}

	// Unparsable windows fall back to the default
	window := domain.DefaultStatsWindowDays
	if n, err := strconv.Atoi(c.Query("window_days")); err == nil {
		window = n
	}

	stats, err := h.statsService.ContestStats(c.Request.Context(), userID, window)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
