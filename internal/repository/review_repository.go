package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/preptracker/backend/internal/domain"
)

// reviewRepository implements domain.ReviewRepository using GORM
type reviewRepository struct {
	db *gorm.DB
}

// NewReviewRepository creates a new review event repository
func NewReviewRepository(db *gorm.DB) domain.ReviewRepository {
	return &reviewRepository{db: db}
}

// Create appends a review event
func (r *reviewRepository) Create(ctx context.Context, event *domain.ReviewEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

// ListByProblem returns the latest reviews of one problem, newest first
func (r *reviewRepository) ListByProblem(ctx context.Context, userID, problemID uuid.UUID, limit int) ([]domain.ReviewEvent, error) {
	events := []domain.ReviewEvent{}
	result := r.db.WithContext(ctx).
		Where("user_id = ? AND problem_id = ?", userID, problemID).
		Order("reviewed_at DESC").
		Limit(limit).
		Find(&events)
	return events, result.Error
}

// CountSince counts reviews at or after since
func (r *reviewRepository) CountSince(ctx context.Context, userID uuid.UUID, since time.Time) (int64, error) {
	var count int64
	result := r.db.WithContext(ctx).
		Model(&domain.ReviewEvent{}).
		Where("user_id = ? AND reviewed_at >= ?", userID, since).
		Count(&count)
	return count, result.Error
}

// ReviewTimesSince returns the review instants at or after since
func (r *reviewRepository) ReviewTimesSince(ctx context.Context, userID uuid.UUID, since time.Time) ([]time.Time, error) {
	var times []time.Time
	result := r.db.WithContext(ctx).
		Model(&domain.ReviewEvent{}).
		Where("user_id = ? AND reviewed_at >= ?", userID, since).
		Order("reviewed_at DESC").
		Pluck("reviewed_at", &times)
	return times, result.Error
}
