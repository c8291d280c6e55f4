package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/preptracker/backend/internal/domain"
)

// stateRepository implements domain.StateRepository using GORM
type stateRepository struct {
	db *gorm.DB
}

// NewStateRepository creates a new scheduling state repository
func NewStateRepository(db *gorm.DB) domain.StateRepository {
	return &stateRepository{db: db}
}

func (r *stateRepository) find(db *gorm.DB, userID, problemID uuid.UUID) (*domain.UserProblemState, error) {
	var state domain.UserProblemState
	result := db.Where("user_id = ? AND problem_id = ?", userID, problemID).First(&state)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, domain.ErrStateNotFound
		}
		return nil, result.Error
	}
	return &state, nil
}

// Get returns the state row without locking it
func (r *stateRepository) Get(ctx context.Context, userID, problemID uuid.UUID) (*domain.UserProblemState, error) {
	return r.find(r.db.WithContext(ctx), userID, problemID)
}

// GetForUpdate locks the state row for the rest of the transaction.
// SQLite has no row locks; the version check in Update still applies.
func (r *stateRepository) GetForUpdate(ctx context.Context, userID, problemID uuid.UUID) (*domain.UserProblemState, error) {
	return r.find(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), userID, problemID)
}

// Create inserts a new state row
func (r *stateRepository) Create(ctx context.Context, state *domain.UserProblemState) error {
	result := r.db.WithContext(ctx).Omit(clause.Associations).Create(state)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return domain.ErrStaleState
		}
		return result.Error
	}
	return nil
}

// Update writes state back if nobody changed it since it was read, and
// bumps its version.
func (r *stateRepository) Update(ctx context.Context, state *domain.UserProblemState) error {
	now := time.Now().UTC().Truncate(time.Second)
	result := r.db.WithContext(ctx).
		Model(&domain.UserProblemState{}).
		Where("user_id = ? AND problem_id = ? AND version = ?", state.UserID, state.ProblemID, state.Version).
		Updates(map[string]interface{}{
			"reps":           state.Reps,
			"ease":           state.Ease,
			"interval_days":  state.IntervalDays,
			"due_at":         state.DueAt,
			"last_review_at": state.LastReviewAt,
			"last_grade":     state.LastGrade,
			"is_active":      state.IsActive,
			"version":        state.Version + 1,
			"updated_at":     now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrStaleState
	}
	state.Version++
	state.UpdatedAt = now
	return nil
}

// GetWithProblem returns the state row with its catalog problem loaded
func (r *stateRepository) GetWithProblem(ctx context.Context, userID, problemID uuid.UUID) (*domain.UserProblemState, error) {
	return r.find(r.db.WithContext(ctx).Preload("Problem"), userID, problemID)
}

// ListActive returns the active tracked problems of a user ordered by due date
func (r *stateRepository) ListActive(ctx context.Context, userID uuid.UUID) ([]domain.UserProblemState, error) {
	var states []domain.UserProblemState
	result := r.db.WithContext(ctx).
		Preload("Problem").
		Where("user_id = ? AND is_active = ?", userID, true).
		Order("due_at ASC").
		Order("problem_id ASC").
		Find(&states)
	return states, result.Error
}

// ListAll returns every tracked problem of a user, archived ones included
func (r *stateRepository) ListAll(ctx context.Context, userID uuid.UUID) ([]domain.UserProblemState, error) {
	var states []domain.UserProblemState
	result := r.db.WithContext(ctx).
		Preload("Problem").
		Where("user_id = ?", userID).
		Order("due_at ASC").
		Order("problem_id ASC").
		Find(&states)
	return states, result.Error
}

// ListDue returns active rows due at or before until, ordered by due date
func (r *stateRepository) ListDue(ctx context.Context, userID uuid.UUID, until time.Time) ([]domain.UserProblemState, error) {
	var states []domain.UserProblemState
	result := r.db.WithContext(ctx).
		Preload("Problem").
		Where("user_id = ? AND is_active = ? AND due_at <= ?", userID, true, until).
		Order("due_at ASC").
		Order("problem_id ASC").
		Find(&states)
	return states, result.Error
}
