package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Review sources
const (
	SourceWeb        = "web"
	SourceLibraryAdd = "library_add"
	SourceContest    = "contest"
	SourceManual     = "manual"
)

// ValidSource reports whether source may be recorded. Contest reviews
// must carry the contest they came from.
func ValidSource(source string, fromContest bool) bool {
	switch source {
	case SourceWeb, SourceLibraryAdd, SourceManual:
		return true
	case SourceContest:
		return fromContest
	}
	return false
}

// Grade bounds. Grades below GradePass are failures.
const (
	MinGrade  = 0
	MaxGrade  = 4
	GradePass = 3
)

// ValidGrade reports whether g is an accepted grade
func ValidGrade(g int) bool {
	return g >= MinGrade && g <= MaxGrade
}

// ReviewEvent is an append-only record of one graded attempt
type ReviewEvent struct {
	ID           uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	UserID       uuid.UUID  `json:"user_id" gorm:"type:uuid;not null;index:idx_review_user_time"`
	ProblemID    uuid.UUID  `json:"problem_id" gorm:"type:uuid;not null;index"`
	ContestID    *uuid.UUID `json:"contest_id,omitempty" gorm:"type:uuid;index"`
	Grade        int        `json:"grade" gorm:"not null"`
	TimeSpentSec *int       `json:"time_spent_sec,omitempty"`
	Source       string     `json:"source" gorm:"type:varchar(32);not null"`
	ReviewedAt   time.Time  `json:"reviewed_at" gorm:"not null;index:idx_review_user_time"`
	CreatedAt    time.Time  `json:"created_at"`
}

// TableName specifies the table name for GORM
func (ReviewEvent) TableName() string {
	return "review_events"
}

func (e *ReviewEvent) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// ReviewRepository defines the interface for review event access
type ReviewRepository interface {
	Create(ctx context.Context, event *ReviewEvent) error
	ListByProblem(ctx context.Context, userID, problemID uuid.UUID, limit int) ([]ReviewEvent, error)
	CountSince(ctx context.Context, userID uuid.UUID, since time.Time) (int64, error)
	ReviewTimesSince(ctx context.Context, userID uuid.UUID, since time.Time) ([]time.Time, error)
}

// RecordReviewRequest is the body of POST /reviews
type RecordReviewRequest struct {
	ProblemID    string `json:"problem_id" binding:"required"`
	Grade        *int   `json:"grade" binding:"required"`
	Source       string `json:"source"`
	ReviewedAt   string `json:"reviewed_at"`
	TimeSpentSec *int   `json:"time_spent_sec"`
}

// ReviewInput is a review submitted to the scheduler. ReviewedAt is either
// RFC3339 or a wall-clock "YYYY-MM-DDTHH:MM" in the user's timezone; empty
// means now.
type ReviewInput struct {
	UserID       uuid.UUID
	ProblemID    uuid.UUID
	ContestID    *uuid.UUID
	Grade        int
	ReviewedAt   string
	TimeSpentSec *int
	Source       string
}

// UpdatedState is what a caller sees after a review is applied
type UpdatedState struct {
	ProblemID       uuid.UUID `json:"problem_id"`
	ReviewedAt      time.Time `json:"reviewed_at"`
	NextDueAt       time.Time `json:"next_due_at"`
	Reps            int       `json:"reps"`
	IntervalDays    int       `json:"interval_days"`
	Ease            float64   `json:"ease"`
	MinIntervalDays int       `json:"min_interval_days"`
}

// ReviewEventResponse represents a review in API responses
type ReviewEventResponse struct {
	Grade        int        `json:"grade"`
	Source       string     `json:"source"`
	ReviewedAt   time.Time  `json:"reviewed_at"`
	TimeSpentSec *int       `json:"time_spent_sec,omitempty"`
	ContestID    *uuid.UUID `json:"contest_id,omitempty"`
}

// ToResponse converts a ReviewEvent to a ReviewEventResponse
func (e *ReviewEvent) ToResponse() ReviewEventResponse {
	return ReviewEventResponse{
		Grade:        e.Grade,
		Source:       e.Source,
		ReviewedAt:   e.ReviewedAt,
		TimeSpentSec: e.TimeSpentSec,
		ContestID:    e.ContestID,
	}
}
