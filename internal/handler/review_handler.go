package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/preptracker/backend/internal/domain"
	"github.com/preptracker/backend/internal/middleware"
	"github.com/preptracker/backend/internal/service"
)

// ReviewHandler handles review-related HTTP requests
type ReviewHandler struct {
	reviewService *service.ReviewService
	logger        *zap.Logger
}

// NewReviewHandler creates a new review handler
func NewReviewHandler(reviewService *service.ReviewService, logger *zap.Logger) *ReviewHandler {
	return &ReviewHandler{
		reviewService: reviewService,
		logger:        logger,
	}
}

// RecordReview logs a graded attempt and reschedules the problem
// POST /api/v1/reviews
func (h *ReviewHandler) RecordReview(c *gin.Context) {
	userID, ok := middleware.RequireUser(c)
	if !ok {
		return
	}

	var req domain.RecordReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}

	problemID, err := uuid.Parse(req.ProblemID)
	if err != nil {
		badRequest(c, "Invalid problem ID")
		return
	}

	updated, err := h.reviewService.RecordReview(c.Request.Context(), domain.ReviewInput{
		UserID:       userID,
		ProblemID:    problemID,
		Grade:        *req.Grade,
		ReviewedAt:   req.ReviewedAt,
		TimeSpentSec: req.TimeSpentSec,
		Source:       req.Source,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, updated)
}

// GetDue returns the problems due within the requested window
// GET /api/v1/reviews/due?window_days=N
func (h *ReviewHandler) GetDue(c *gin.Context) {
	userID, ok := middleware.RequireUser(c)
	if !ok {
		return
	}

	window := 0
	if raw := c.Query("window_days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			badRequest(c, "window_days must be an integer")
			return
		}
		window = n
	}

	items, err := h.reviewService.DueItems(c.Request.Context(), userID, window)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, items)
}
