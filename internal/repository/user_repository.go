package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/preptracker/backend/internal/domain"
)

// userRepository implements domain.UserRepository using GORM
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *gorm.DB) domain.UserRepository {
	return &userRepository{db: db}
}

// Create creates a new user and its settings row
func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	result := r.db.WithContext(ctx).Create(user)
	if result.Error != nil {
		// Check for unique constraint violation
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return domain.ErrUserAlreadyExists
		}
		return result.Error
	}
	return nil
}

// FindByID finds a user by their ID
func (r *userRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	var user domain.User
	result := r.db.WithContext(ctx).Preload("Settings").Where("id = ?", id).First(&user)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, result.Error
	}
	r.fillSettings(&user)
	return &user, nil
}

// FindByEmail finds a user by their email address
func (r *userRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	var user domain.User
	result := r.db.WithContext(ctx).Preload("Settings").Where("email = ?", email).First(&user)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, result.Error
	}
	r.fillSettings(&user)
	return &user, nil
}

// GetSettings returns the user's settings, or the defaults if none are stored
func (r *userRepository) GetSettings(ctx context.Context, userID uuid.UUID) (domain.UserSettings, error) {
	var settings domain.UserSettings
	result := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&settings)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return domain.DefaultSettings(userID), nil
		}
		return domain.UserSettings{}, result.Error
	}
	return settings, nil
}

// SaveSettings upserts the settings row
func (r *userRepository) SaveSettings(ctx context.Context, settings *domain.UserSettings) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"timezone", "min_interval_days", "due_hour_local", "due_minute_local", "updated_at"}),
		}).
		Create(settings).Error
}

func (r *userRepository) fillSettings(user *domain.User) {
	if user.Settings.UserID == uuid.Nil {
		user.Settings = domain.DefaultSettings(user.ID)
	}
}
