package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/preptracker/backend/internal/domain"
	"github.com/preptracker/backend/internal/middleware"
	"github.com/preptracker/backend/internal/service"
)

// ProblemHandler handles library-related HTTP requests
type ProblemHandler struct {
	problemService *service.ProblemService
	logger         *zap.Logger
}

// NewProblemHandler creates a new problem handler
func NewProblemHandler(problemService *service.ProblemService, logger *zap.Logger) *ProblemHandler {
	return &ProblemHandler{
		problemService: problemService,
		logger:         logger,
	}
}

// AddProblem adds a problem to the user's library
// POST /api/v1/problems
func (h *ProblemHandler) AddProblem(c *gin.Context) {
	userID, ok := middleware.RequireUser(c)
	if !ok {
		return
	}

	var req domain.AddProblemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}

	result, err := h.problemService.AddProblem(c.Request.Context(), userID, &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	c.JSON(status, result)
}

// GetProblems returns the tracked problems of the user
// GET /api/v1/problems
func (h *ProblemHandler) GetProblems(c *gin.Context) {
	userID, ok := middleware.RequireUser(c)
	if !ok {
		return
	}

	problems, err := h.problemService.ListProblems(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, problems)
}

// GetProblem returns a tracked problem with its latest reviews
// GET /api/v1/problems/:id
func (h *ProblemHandler) GetProblem(c *gin.Context) {
	userID, ok := middleware.RequireUser(c)
	if !ok {
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "Invalid problem ID")
		return
	}

	problem, err := h.problemService.GetProblem(c.Request.Context(), userID, id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, problem)
}

// UpdateProblem archives, restores or edits a tracked problem
// PATCH /api/v1/problems/:id
func (h *ProblemHandler) UpdateProblem(c *gin.Context) {
	userID, ok := middleware.RequireUser(c)
	if !ok {
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "Invalid problem ID")
		return
	}

	var req domain.UpdateProblemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}

	problem, err := h.problemService.UpdateProblem(c.Request.Context(), userID, id, &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, problem)
}
