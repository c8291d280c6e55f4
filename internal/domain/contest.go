package domain

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ContestStatus represents the current state of a contest
type ContestStatus string

const (
	ContestStatusCreated   ContestStatus = "created"
	ContestStatusStarted   ContestStatus = "started"
	ContestStatusCompleted ContestStatus = "completed"
)

// Strategy decides how candidates are ranked inside a difficulty bucket
type Strategy string

const (
	StrategyBalanced Strategy = "balanced"
	StrategyWeakness Strategy = "weakness"
	StrategyDueHeavy Strategy = "due-heavy"
)

// ParseStrategy validates a strategy name. An empty name means balanced.
func ParseStrategy(raw string) (Strategy, error) {
	switch s := Strategy(strings.ToLower(strings.TrimSpace(raw))); s {
	case "":
		return StrategyBalanced, nil
	case StrategyBalanced, StrategyWeakness, StrategyDueHeavy:
		return s, nil
	default:
		return "", ErrUnknownStrategy
	}
}

// Contest limits
const (
	MinContestMinutes  = 10
	MaxContestMinutes  = 300
	MaxContestProblems = 20
)

// DifficultyMix is the requested number of problems per difficulty
type DifficultyMix struct {
	Easy   int `json:"easy"`
	Medium int `json:"medium"`
	Hard   int `json:"hard"`
}

// Total returns the number of problems requested
func (m DifficultyMix) Total() int {
	return m.Easy + m.Medium + m.Hard
}

// Count returns the requested count for a difficulty
func (m DifficultyMix) Count(d Difficulty) int {
	switch d {
	case DifficultyEasy:
		return m.Easy
	case DifficultyMedium:
		return m.Medium
	case DifficultyHard:
		return m.Hard
	default:
		return 0
	}
}

// Validate checks the mix bounds
func (m DifficultyMix) Validate() error {
	if m.Easy < 0 || m.Medium < 0 || m.Hard < 0 {
		return ErrInvalidMix
	}
	if m.Total() == 0 {
		return ErrEmptyMix
	}
	if m.Total() > MaxContestProblems {
		return ErrInvalidMix
	}
	return nil
}

// Contest represents a timed problem set generated for a user
type Contest struct {
	ID              uuid.UUID     `json:"id" gorm:"type:uuid;primaryKey"`
	UserID          uuid.UUID     `json:"user_id" gorm:"type:uuid;not null;index"`
	DurationMinutes int           `json:"duration_minutes" gorm:"not null"`
	Strategy        Strategy      `json:"strategy" gorm:"type:varchar(20);not null"`
	Status          ContestStatus `json:"status" gorm:"type:varchar(20);not null"`
	StartedAt       *time.Time    `json:"started_at"`
	CompletedAt     *time.Time    `json:"completed_at" gorm:"index"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`

	Items []ContestItem `json:"items,omitempty" gorm:"foreignKey:ContestID"`
}

// TableName specifies the table name for GORM
func (Contest) TableName() string {
	return "contests"
}

func (c *Contest) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// Start moves a created contest to started
func (c *Contest) Start(now time.Time) error {
	if c.Status != ContestStatusCreated {
		return ErrAlreadyStarted
	}
	c.Status = ContestStatusStarted
	c.StartedAt = &now
	return nil
}

// Complete moves a started contest to completed
func (c *Contest) Complete(now time.Time) error {
	switch c.Status {
	case ContestStatusCreated:
		return ErrNotStarted
	case ContestStatusCompleted:
		return ErrAlreadyCompleted
	}
	c.Status = ContestStatusCompleted
	c.CompletedAt = &now
	return nil
}

// ContestItem is one frozen problem slot of a contest. Only the result
// columns change after generation, and only once.
type ContestItem struct {
	ContestID     uuid.UUID  `json:"contest_id" gorm:"type:uuid;primaryKey"`
	ProblemID     uuid.UUID  `json:"problem_id" gorm:"type:uuid;primaryKey"`
	OrderIndex    int        `json:"order_index" gorm:"not null"`
	TargetMinutes int        `json:"target_minutes" gorm:"not null"`
	Difficulty    Difficulty `json:"difficulty" gorm:"type:varchar(10);not null"`
	Grade         *int       `json:"grade"`
	SolvedFlag    *bool      `json:"solved_flag"`
	TimeSpentSec  *int       `json:"time_spent_sec"`
	RecordedAt    *time.Time `json:"recorded_at" gorm:"index"`

	Problem Problem `json:"problem" gorm:"foreignKey:ProblemID"`
}

// TableName specifies the table name for GORM
func (ContestItem) TableName() string {
	return "contest_items"
}

// Recorded reports whether the item already has a result
func (i *ContestItem) Recorded() bool {
	return i.RecordedAt != nil
}

// ItemResult is the write-once result of a contest item
type ItemResult struct {
	Grade        int
	SolvedFlag   bool
	TimeSpentSec *int
	RecordedAt   time.Time
}

// ContestRepository defines the interface for contest data access
type ContestRepository interface {
	Create(ctx context.Context, contest *Contest) error
	FindByID(ctx context.Context, userID, id uuid.UUID) (*Contest, error)
	FindByIDForUpdate(ctx context.Context, userID, id uuid.UUID) (*Contest, error)
	FindByUserID(ctx context.Context, userID uuid.UUID, limit int) ([]Contest, error)
	FindCompletedSince(ctx context.Context, userID uuid.UUID, since time.Time) ([]Contest, error)
	FindRecentCompleted(ctx context.Context, userID uuid.UUID, limit int) ([]Contest, error)
	FindResultsSince(ctx context.Context, userID uuid.UUID, since time.Time) ([]ContestItem, error)
	UpdateStatus(ctx context.Context, contest *Contest) error
	FindItem(ctx context.Context, contestID, problemID uuid.UUID) (*ContestItem, error)
	RecordResult(ctx context.Context, contestID, problemID uuid.UUID, result ItemResult) error
}

// GenerateContestRequest represents the data needed to generate a contest
type GenerateContestRequest struct {
	DurationMinutes int           `json:"duration_minutes"`
	Strategy        string        `json:"strategy"`
	DifficultyMix   DifficultyMix `json:"difficulty_mix"`
}

// ItemResultRequest is one result submitted for a contest item
type ItemResultRequest struct {
	ProblemID    string `json:"problem_id"`
	Grade        *int   `json:"grade"`
	SolvedFlag   *bool  `json:"solved_flag"`
	TimeSpentSec *int   `json:"time_spent_sec"`
}

// SubmitResultsRequest is the body of POST /contests/:id/results
type SubmitResultsRequest struct {
	Results []ItemResultRequest `json:"results"`
}

// ResultInput is a validated contest item result
type ResultInput struct {
	ProblemID    uuid.UUID
	Grade        int
	SolvedFlag   *bool
	TimeSpentSec *int
}

// ResultRejection explains why one item of a batch was not recorded
type ResultRejection struct {
	ProblemID string `json:"problem_id"`
	Error     string `json:"error"`
	Code      string `json:"code"`
}

// ContestResponse represents a contest in API responses
type ContestResponse struct {
	ID              uuid.UUID             `json:"id"`
	DurationMinutes int                   `json:"duration_minutes"`
	Strategy        Strategy              `json:"strategy"`
	Status          ContestStatus         `json:"status"`
	CreatedAt       time.Time             `json:"created_at"`
	StartedAt       *time.Time            `json:"started_at"`
	CompletedAt     *time.Time            `json:"completed_at"`
	Items           []ContestItemResponse `json:"items"`
	TimeRemaining   int                   `json:"time_remaining_seconds"`
	// Rejected is only set on batch result submissions
	Rejected []ResultRejection `json:"rejected,omitempty"`
}

// ContestItemResponse represents an item within a contest response
type ContestItemResponse struct {
	OrderIndex    int                  `json:"order_index"`
	TargetMinutes int                  `json:"target_minutes"`
	Difficulty    Difficulty           `json:"difficulty"`
	Problem       ProblemResponse      `json:"problem"`
	Result        *ContestResultOutput `json:"result,omitempty"`
}

// ContestResultOutput is a recorded item result
type ContestResultOutput struct {
	Grade        int       `json:"grade"`
	SolvedFlag   bool      `json:"solved_flag"`
	TimeSpentSec *int      `json:"time_spent_sec,omitempty"`
	RecordedAt   time.Time `json:"recorded_at"`
}

// ToResponse converts a ContestItem to a ContestItemResponse
func (i *ContestItem) ToResponse() ContestItemResponse {
	out := ContestItemResponse{
		OrderIndex:    i.OrderIndex,
		TargetMinutes: i.TargetMinutes,
		Difficulty:    i.Difficulty,
		Problem:       i.Problem.ToResponse(),
	}
	if i.Recorded() {
		res := &ContestResultOutput{
			TimeSpentSec: i.TimeSpentSec,
			RecordedAt:   *i.RecordedAt,
		}
		if i.Grade != nil {
			res.Grade = *i.Grade
		}
		if i.SolvedFlag != nil {
			res.SolvedFlag = *i.SolvedFlag
		}
		out.Result = res
	}
	return out
}

// ToResponse converts a Contest to a ContestResponse as seen at now
func (c *Contest) ToResponse(now time.Time) ContestResponse {
	items := make([]ContestItemResponse, len(c.Items))
	for i := range c.Items {
		items[i] = c.Items[i].ToResponse()
	}

	var timeRemaining int
	if c.Status == ContestStatusStarted && c.StartedAt != nil {
		endTime := c.StartedAt.Add(time.Duration(c.DurationMinutes) * time.Minute)
		if remaining := endTime.Sub(now); remaining > 0 {
			timeRemaining = int(remaining.Seconds())
		}
	}

	return ContestResponse{
		ID:              c.ID,
		DurationMinutes: c.DurationMinutes,
		Strategy:        c.Strategy,
		Status:          c.Status,
		CreatedAt:       c.CreatedAt,
		StartedAt:       c.StartedAt,
		CompletedAt:     c.CompletedAt,
		Items:           items,
		TimeRemaining:   timeRemaining,
	}
}

// ContestSummary is a contest in list responses
type ContestSummary struct {
	ID              uuid.UUID     `json:"id"`
	DurationMinutes int           `json:"duration_minutes"`
	Strategy        Strategy      `json:"strategy"`
	Status          ContestStatus `json:"status"`
	CreatedAt       time.Time     `json:"created_at"`
	StartedAt       *time.Time    `json:"started_at"`
	CompletedAt     *time.Time    `json:"completed_at"`
	TotalItems      int           `json:"total_items"`
	RecordedCount   int           `json:"recorded_count"`
}

// ToSummary converts a Contest loaded with items to a ContestSummary
func (c *Contest) ToSummary() ContestSummary {
	recorded := 0
	for i := range c.Items {
		if c.Items[i].Recorded() {
			recorded++
		}
	}
	return ContestSummary{
		ID:              c.ID,
		DurationMinutes: c.DurationMinutes,
		Strategy:        c.Strategy,
		Status:          c.Status,
		CreatedAt:       c.CreatedAt,
		StartedAt:       c.StartedAt,
		CompletedAt:     c.CompletedAt,
		TotalItems:      len(c.Items),
		RecordedCount:   recorded,
	}
}
