package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Scheduling defaults for a freshly tracked problem
const (
	InitialEase         = 2.5
	InitialIntervalDays = 1
)

// UserProblemState is the spaced-repetition state of one problem for one user
type UserProblemState struct {
	UserID       uuid.UUID  `json:"user_id" gorm:"type:uuid;primaryKey"`
	ProblemID    uuid.UUID  `json:"problem_id" gorm:"type:uuid;primaryKey;index"`
	Reps         int        `json:"reps" gorm:"not null"`
	Ease         float64    `json:"ease" gorm:"not null"`
	IntervalDays int        `json:"interval_days" gorm:"not null"`
	DueAt        time.Time  `json:"due_at" gorm:"not null;index"`
	LastReviewAt *time.Time `json:"last_review_at"`
	LastGrade    *int       `json:"last_grade"`
	IsActive     bool       `json:"is_active" gorm:"not null"`
	Version      int        `json:"-" gorm:"not null"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`

	Problem Problem `json:"-" gorm:"foreignKey:ProblemID"`
}

// TableName specifies the table name for GORM
func (UserProblemState) TableName() string {
	return "user_problem_states"
}

// NewUserProblemState returns the initial state for a problem due at dueAt
func NewUserProblemState(userID, problemID uuid.UUID, dueAt time.Time) *UserProblemState {
	return &UserProblemState{
		UserID:       userID,
		ProblemID:    problemID,
		Reps:         0,
		Ease:         InitialEase,
		IntervalDays: InitialIntervalDays,
		DueAt:        dueAt,
		IsActive:     true,
	}
}

// ReviewedWithin reports whether the last review happened in (at-d, at].
func (s *UserProblemState) ReviewedWithin(at time.Time, d time.Duration) bool {
	return s.LastReviewAt != nil && at.Sub(*s.LastReviewAt) < d
}

// StateRepository defines the interface for scheduling state access.
// Update is a compare-and-swap on Version and returns ErrStaleState when the
// row changed underneath the caller.
type StateRepository interface {
	Get(ctx context.Context, userID, problemID uuid.UUID) (*UserProblemState, error)
	GetForUpdate(ctx context.Context, userID, problemID uuid.UUID) (*UserProblemState, error)
	Create(ctx context.Context, state *UserProblemState) error
	Update(ctx context.Context, state *UserProblemState) error
	GetWithProblem(ctx context.Context, userID, problemID uuid.UUID) (*UserProblemState, error)
	ListActive(ctx context.Context, userID uuid.UUID) ([]UserProblemState, error)
	ListAll(ctx context.Context, userID uuid.UUID) ([]UserProblemState, error)
	ListDue(ctx context.Context, userID uuid.UUID, until time.Time) ([]UserProblemState, error)
}

// StateView is the scheduling state as returned to clients
type StateView struct {
	Reps         int        `json:"reps"`
	Ease         float64    `json:"ease"`
	IntervalDays int        `json:"interval_days"`
	DueAt        time.Time  `json:"due_at"`
	LastReviewAt *time.Time `json:"last_review_at"`
	LastGrade    *int       `json:"last_grade"`
	IsActive     bool       `json:"is_active"`
}

// ProblemWithState is a tracked problem with its scheduling state nested
// under "state" and the mastery computed at read time
type ProblemWithState struct {
	ProblemResponse
	State   StateView `json:"state"`
	Mastery float64   `json:"mastery"`
}

// ToProblemWithState converts a state row loaded with its problem
func (s *UserProblemState) ToProblemWithState(mastery float64) ProblemWithState {
	return ProblemWithState{
		ProblemResponse: s.Problem.ToResponse(),
		State: StateView{
			Reps:         s.Reps,
			Ease:         s.Ease,
			IntervalDays: s.IntervalDays,
			DueAt:        s.DueAt,
			LastReviewAt: s.LastReviewAt,
			LastGrade:    s.LastGrade,
			IsActive:     s.IsActive,
		},
		Mastery: mastery,
	}
}

// ProblemDetail is a tracked problem with its latest reviews
type ProblemDetail struct {
	ProblemWithState
	Reviews []ReviewEventResponse `json:"reviews"`
}

// AddProblemResult is returned when a problem is added to a library. Review
// is set when an initial review was logged with it.
type AddProblemResult struct {
	Problem ProblemWithState `json:"problem"`
	Created bool             `json:"created"`
	Review  *UpdatedState    `json:"review,omitempty"`
}
