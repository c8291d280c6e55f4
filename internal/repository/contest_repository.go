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

// contestRepository implements domain.ContestRepository using GORM
type contestRepository struct {
	db *gorm.DB
}

// NewContestRepository creates a new contest repository
func NewContestRepository(db *gorm.DB) domain.ContestRepository {
	return &contestRepository{db: db}
}

func orderedItems(db *gorm.DB) *gorm.DB {
	return db.Order("contest_items.order_index ASC")
}

// Create inserts a contest and its frozen items
func (r *contestRepository) Create(ctx context.Context, contest *domain.Contest) error {
	db := r.db.WithContext(ctx)
	if err := db.Omit(clause.Associations).Create(contest).Error; err != nil {
		return err
	}
	if len(contest.Items) == 0 {
		return nil
	}
	for i := range contest.Items {
		contest.Items[i].ContestID = contest.ID
	}
	return db.Omit(clause.Associations).CreateInBatches(&contest.Items, 50).Error
}

// FindByID finds a contest of the user with its items and problems loaded
func (r *contestRepository) FindByID(ctx context.Context, userID, id uuid.UUID) (*domain.Contest, error) {
	var contest domain.Contest
	result := r.db.WithContext(ctx).
		Preload("Items", orderedItems).
		Preload("Items.Problem").
		Where("id = ? AND user_id = ?", id, userID).
		First(&contest)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, domain.ErrContestNotFound
		}
		return nil, result.Error
	}
	return &contest, nil
}

// FindByIDForUpdate locks the contest row without loading its items
func (r *contestRepository) FindByIDForUpdate(ctx context.Context, userID, id uuid.UUID) (*domain.Contest, error) {
	var contest domain.Contest
	result := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND user_id = ?", id, userID).
		First(&contest)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, domain.ErrContestNotFound
		}
		return nil, result.Error
	}
	return &contest, nil
}

// FindByUserID returns the latest contests of a user, newest first
func (r *contestRepository) FindByUserID(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Contest, error) {
	contests := []domain.Contest{}
	result := r.db.WithContext(ctx).
		Preload("Items", orderedItems).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id ASC").
		Limit(limit).
		Find(&contests)
	return contests, result.Error
}

// FindCompletedSince returns contests completed at or after since
func (r *contestRepository) FindCompletedSince(ctx context.Context, userID uuid.UUID, since time.Time) ([]domain.Contest, error) {
	var contests []domain.Contest
	result := r.db.WithContext(ctx).
		Where("user_id = ? AND completed_at IS NOT NULL AND completed_at >= ?", userID, since).
		Order("completed_at ASC").
		Find(&contests)
	return contests, result.Error
}

// FindRecentCompleted returns the last completed contests with their items
func (r *contestRepository) FindRecentCompleted(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Contest, error) {
	var contests []domain.Contest
	result := r.db.WithContext(ctx).
		Preload("Items", orderedItems).
		Where("user_id = ? AND completed_at IS NOT NULL", userID).
		Order("completed_at DESC").
		Limit(limit).
		Find(&contests)
	return contests, result.Error
}

// FindResultsSince returns the user's contest items recorded at or after since
func (r *contestRepository) FindResultsSince(ctx context.Context, userID uuid.UUID, since time.Time) ([]domain.ContestItem, error) {
	var items []domain.ContestItem
	result := r.db.WithContext(ctx).
		Joins("JOIN contests ON contests.id = contest_items.contest_id").
		Where("contests.user_id = ? AND contest_items.recorded_at IS NOT NULL AND contest_items.recorded_at >= ?", userID, since).
		Order("contest_items.recorded_at ASC").
		Find(&items)
	return items, result.Error
}

// UpdateStatus persists the lifecycle columns of a contest
func (r *contestRepository) UpdateStatus(ctx context.Context, contest *domain.Contest) error {
	result := r.db.WithContext(ctx).
		Model(&domain.Contest{}).
		Where("id = ?", contest.ID).
		Updates(map[string]interface{}{
			"status":       contest.Status,
			"started_at":   contest.StartedAt,
			"completed_at": contest.CompletedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrContestNotFound
	}
	return nil
}

// FindItem returns one item of a contest with its problem
func (r *contestRepository) FindItem(ctx context.Context, contestID, problemID uuid.UUID) (*domain.ContestItem, error) {
	var item domain.ContestItem
	result := r.db.WithContext(ctx).
		Preload("Problem").
		Where("contest_id = ? AND problem_id = ?", contestID, problemID).
		First(&item)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, domain.ErrItemNotFound
		}
		return nil, result.Error
	}
	return &item, nil
}

// RecordResult sets the result of an item that has none yet
func (r *contestRepository) RecordResult(ctx context.Context, contestID, problemID uuid.UUID, res domain.ItemResult) error {
	result := r.db.WithContext(ctx).
		Model(&domain.ContestItem{}).
		Where("contest_id = ? AND problem_id = ? AND recorded_at IS NULL", contestID, problemID).
		Updates(map[string]interface{}{
			"grade":          res.Grade,
			"solved_flag":    res.SolvedFlag,
			"time_spent_sec": res.TimeSpentSec,
			"recorded_at":    res.RecordedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrAlreadyRecorded
	}
	return nil
}
