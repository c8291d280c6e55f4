package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/preptracker/backend/internal/domain"
	"github.com/preptracker/backend/internal/middleware"
)

type errorMapping struct {
	err    error
	status int
	code   string
}

// errorTable maps domain errors to HTTP responses. Order matters only for
// errors that wrap more than one sentinel.
var errorTable = []errorMapping{
	{domain.ErrInvalidGrade, http.StatusBadRequest, "invalid_grade"},
	{domain.ErrInvalidTimeSpent, http.StatusBadRequest, "invalid_time_spent"},
	{domain.ErrInvalidReviewAt, http.StatusBadRequest, "invalid_reviewed_at"},
	{domain.ErrClockSkew, http.StatusBadRequest, "clock_skew"},
	{domain.ErrInvalidSource, http.StatusBadRequest, "invalid_source"},
	{domain.ErrInvalidDuration, http.StatusBadRequest, "invalid_duration"},
	{domain.ErrEmptyMix, http.StatusBadRequest, "empty_mix"},
	{domain.ErrInvalidMix, http.StatusBadRequest, "invalid_mix"},
	{domain.ErrUnknownStrategy, http.StatusBadRequest, "unknown_strategy"},
	{domain.ErrInvalidDifficulty, http.StatusBadRequest, "invalid_difficulty"},
	{domain.ErrProblemURLMissing, http.StatusBadRequest, "url_required"},
	{domain.ErrInvalidSettings, http.StatusBadRequest, "invalid_settings"},
	{domain.ErrBadRequest, http.StatusBadRequest, "bad_request"},

	{domain.ErrProblemNotFound, http.StatusNotFound, "problem_not_found"},
	{domain.ErrContestNotFound, http.StatusNotFound, "contest_not_found"},
	{domain.ErrUserNotFound, http.StatusNotFound, "user_not_found"},

	{domain.ErrItemNotFound, http.StatusConflict, "item_not_found"},
	{domain.ErrAlreadyStarted, http.StatusConflict, "already_started"},
	{domain.ErrNotStarted, http.StatusConflict, "not_started"},
	{domain.ErrAlreadyCompleted, http.StatusConflict, "already_completed"},
	{domain.ErrAlreadyRecorded, http.StatusConflict, "already_recorded"},
	{domain.ErrUserAlreadyExists, http.StatusConflict, "user_exists"},
	{domain.ErrStaleState, http.StatusConflict, "concurrent_update"},

	{domain.ErrNoEligibleProblems, http.StatusUnprocessableEntity, "no_eligible_problems"},

	{domain.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials"},
	{domain.ErrInvalidToken, http.StatusUnauthorized, "invalid_token"},
	{domain.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
	{domain.ErrForbidden, http.StatusForbidden, "forbidden"},
}

// lookupError returns the status, code and client message for err. Unknown
// errors map to a generic 500.
func lookupError(err error) (int, string, string, bool) {
	for _, m := range errorTable {
		if errors.Is(err, m.err) {
			return m.status, m.code, err.Error(), true
		}
	}
	return http.StatusInternalServerError, "internal", "internal server error", false
}

// respondError writes the JSON error body for err
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	status, code, message, known := lookupError(err)
	if !known {
		middleware.GetLogger(c, logger).Error("Unhandled error",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
	}
	_ = c.Error(err)
	c.JSON(status, gin.H{"error": message, "code": code})
}

// badRequest reports a malformed request body or parameter
func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": message, "code": "bad_request"})
}

// rejection describes a batch item that was not recorded
func rejection(problemID string, err error) domain.ResultRejection {
	_, code, message, _ := lookupError(err)
	return domain.ResultRejection{ProblemID: problemID, Error: message, Code: code}
}
