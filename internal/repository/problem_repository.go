package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/preptracker/backend/internal/domain"
)

// problemRepository implements domain.ProblemRepository using GORM
type problemRepository struct {
	db *gorm.DB
}

// NewProblemRepository creates a new problem repository
func NewProblemRepository(db *gorm.DB) domain.ProblemRepository {
	return &problemRepository{db: db}
}

// CreateOrGet inserts the problem unless its URL is already catalogued.
// An existing row keeps its metadata; only empty fields are filled in from
// the incoming problem.
func (r *problemRepository) CreateOrGet(ctx context.Context, problem *domain.Problem) (*domain.Problem, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "url"}}, DoNothing: true}).
		Create(problem)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 1 {
		return problem, nil
	}

	existing, err := r.FindByURL(ctx, problem.URL)
	if err != nil {
		return nil, err
	}

	var patch domain.MetadataPatch
	if existing.Platform == "" && problem.Platform != "" {
		patch.Platform = &problem.Platform
	}
	if existing.Title == "" && problem.Title != "" {
		patch.Title = &problem.Title
	}
	if existing.Difficulty == domain.DifficultyUnknown && problem.Difficulty != domain.DifficultyUnknown && problem.Difficulty != "" {
		patch.Difficulty = &problem.Difficulty
	}
	if len(existing.Topics) == 0 && len(problem.Topics) > 0 {
		patch.Topics = &problem.Topics
	}
	if patch.Empty() {
		return existing, nil
	}
	return r.UpdateMetadata(ctx, existing.ID, patch)
}

// FindByID finds a problem by its ID
func (r *problemRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Problem, error) {
	var problem domain.Problem
	result := r.db.WithContext(ctx).Where("id = ?", id).First(&problem)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, domain.ErrProblemNotFound
		}
		return nil, result.Error
	}
	return &problem, nil
}

// FindByURL finds a problem by its normalized URL
func (r *problemRepository) FindByURL(ctx context.Context, url string) (*domain.Problem, error) {
	var problem domain.Problem
	result := r.db.WithContext(ctx).Where("url = ?", url).First(&problem)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, domain.ErrProblemNotFound
		}
		return nil, result.Error
	}
	return &problem, nil
}

// UpdateMetadata applies the non-nil fields of patch
func (r *problemRepository) UpdateMetadata(ctx context.Context, id uuid.UUID, patch domain.MetadataPatch) (*domain.Problem, error) {
	updates := map[string]interface{}{}
	if patch.Platform != nil {
		updates["platform"] = *patch.Platform
	}
	if patch.Title != nil {
		updates["title"] = *patch.Title
	}
	if patch.Difficulty != nil {
		updates["difficulty"] = *patch.Difficulty
	}
	if patch.Topics != nil {
		updates["topics"] = *patch.Topics
	}

	if len(updates) > 0 {
		result := r.db.WithContext(ctx).Model(&domain.Problem{}).Where("id = ?", id).Updates(updates)
		if result.Error != nil {
			return nil, result.Error
		}
		if result.RowsAffected == 0 {
			return nil, domain.ErrProblemNotFound
		}
	}
	return r.FindByID(ctx, id)
}

// Count returns the catalog size
func (r *problemRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	result := r.db.WithContext(ctx).Model(&domain.Problem{}).Count(&count)
	return count, result.Error
}
