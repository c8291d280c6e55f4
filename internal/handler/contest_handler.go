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

// ContestHandler handles contest-related HTTP requests
type ContestHandler struct {
	contestService *service.ContestService
	logger         *zap.Logger
	now            service.Clock
}

// NewContestHandler creates a new contest handler
func NewContestHandler(contestService *service.ContestService, logger *zap.Logger, now service.Clock) *ContestHandler {
	return &ContestHandler{
		contestService: contestService,
		logger:         logger,
		now:            now,
	}
}

// GenerateContest builds a new contest from the user's library
// POST /api/v1/contests/generate
func (h *ContestHandler) GenerateContest(c *gin.Context) {
	userID, ok := middleware.RequireUser(c)
	if !ok {
		return
	}

	var req domain.GenerateContestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}

	contest, err := h.contestService.Generate(c.Request.Context(), userID, &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, contest.ToResponse(h.now()))
}

// GetContests returns the user's recent contests
// GET /api/v1/contests
func (h *ContestHandler) GetContests(c *gin.Context) {
	userID, ok := middleware.RequireUser(c)
	if !ok {
		return
	}

	contests, err := h.contestService.List(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	summaries := make([]domain.ContestSummary, len(contests))
	for i := range contests {
		summaries[i] = contests[i].ToSummary()
	}

	c.JSON(http.StatusOK, gin.H{
		"contests": summaries,
	})
}

// GetContest returns a specific contest by ID
// GET /api/v1/contests/:id
func (h *ContestHandler) GetContest(c *gin.Context) {
	userID, contestID, ok := h.contestParams(c)
	if !ok {
		return
	}

	contest, err := h.contestService.Get(c.Request.Context(), userID, contestID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, contest.ToResponse(h.now()))
}

// StartContest starts the contest clock
// POST /api/v1/contests/:id/start
func (h *ContestHandler) StartContest(c *gin.Context) {
	userID, contestID, ok := h.contestParams(c)
	if !ok {
		return
	}

	contest, err := h.contestService.Start(c.Request.Context(), userID, contestID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, contest.ToResponse(h.now()))
}

// CompleteContest finishes a started contest
// POST /api/v1/contests/:id/complete
func (h *ContestHandler) CompleteContest(c *gin.Context) {
	userID, contestID, ok := h.contestParams(c)
	if !ok {
		return
	}

	contest, err := h.contestService.Complete(c.Request.Context(), userID, contestID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, contest.ToResponse(h.now()))
}

// RecordResult records the result of one contest item
// POST /api/v1/contests/:id/items/:problemId/result
func (h *ContestHandler) RecordResult(c *gin.Context) {
	userID, contestID, ok := h.contestParams(c)
	if !ok {
		return
	}

	problemID, err := uuid.Parse(c.Param("problemId"))
	if err != nil {
		badRequest(c, "Invalid problem ID")
		return
	}

	var req domain.ItemResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}
	if req.Grade == nil {
		badRequest(c, "grade is required")
		return
	}

	item, updated, err := h.contestService.RecordResult(c.Request.Context(), userID, contestID, domain.ResultInput{
		ProblemID:    problemID,
		Grade:        *req.Grade,
		SolvedFlag:   req.SolvedFlag,
		TimeSpentSec: req.TimeSpentSec,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"item":  item.ToResponse(),
		"state": updated,
	})
}

// SubmitResults records a batch of item results. Each item succeeds or fails
// on its own; the refreshed contest lists the failures under "rejected".
// POST /api/v1/contests/:id/results
func (h *ContestHandler) SubmitResults(c *gin.Context) {
	userID, contestID, ok := h.contestParams(c)
	if !ok {
		return
	}

	var req domain.SubmitResultsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}

	rejected := []domain.ResultRejection{}
	inputs := make([]domain.ResultInput, 0, len(req.Results))
	for _, r := range req.Results {
		problemID, err := uuid.Parse(r.ProblemID)
		if err != nil {
			rejected = append(rejected, rejection(r.ProblemID, domain.WrapError(domain.ErrBadRequest, "invalid problem_id")))
			continue
		}
		if r.Grade == nil {
			rejected = append(rejected, rejection(r.ProblemID, domain.ErrInvalidGrade))
			continue
		}
		inputs = append(inputs, domain.ResultInput{
			ProblemID:    problemID,
			Grade:        *r.Grade,
			SolvedFlag:   r.SolvedFlag,
			TimeSpentSec: r.TimeSpentSec,
		})
	}

	contest, failures, err := h.contestService.RecordResults(c.Request.Context(), userID, contestID, inputs)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	for _, f := range failures {
		rejected = append(rejected, rejection(f.ProblemID.String(), f.Err))
	}

	resp := contest.ToResponse(h.now())
	resp.Rejected = rejected
	c.JSON(http.StatusOK, resp)
}

// contestParams resolves the authenticated user and the :id contest param
func (h *ContestHandler) contestParams(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	userID, ok := middleware.RequireUser(c)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}

	contestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "Invalid contest ID")
		return uuid.Nil, uuid.Nil, false
	}
	return userID, contestID, true
}
