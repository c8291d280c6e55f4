package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Settings defaults
const (
	DefaultTimezone        = "America/New_York"
	DefaultMinIntervalDays = 1
	DefaultDueHourLocal    = 9
	DefaultDueMinuteLocal  = 0
)

// User represents a registered user of the platform
type User struct {
	ID           uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	Email        string    `json:"email" gorm:"uniqueIndex;not null"`
	PasswordHash string    `json:"-" gorm:"not null"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	Settings UserSettings `json:"settings" gorm:"foreignKey:UserID"`
}

// TableName specifies the table name for GORM
func (User) TableName() string {
	return "users"
}

func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// UserSettings holds the scheduling preferences of a user
type UserSettings struct {
	UserID          uuid.UUID `json:"-" gorm:"type:uuid;primaryKey"`
	Timezone        string    `json:"timezone" gorm:"not null"`
	MinIntervalDays int       `json:"min_interval_days" gorm:"not null"`
	DueHourLocal    int       `json:"due_hour_local" gorm:"not null"`
	DueMinuteLocal  int       `json:"due_minute_local" gorm:"not null"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (UserSettings) TableName() string {
	return "user_settings"
}

// DefaultSettings returns the settings of a user that never changed them
func DefaultSettings(userID uuid.UUID) UserSettings {
	return UserSettings{
		UserID:          userID,
		Timezone:        DefaultTimezone,
		MinIntervalDays: DefaultMinIntervalDays,
		DueHourLocal:    DefaultDueHourLocal,
		DueMinuteLocal:  DefaultDueMinuteLocal,
	}
}

// Validate checks bounds. Timezone loading is checked by the caller.
func (s UserSettings) Validate() error {
	if s.Timezone == "" {
		return NewDomainError(ErrInvalidSettings, "timezone is required")
	}
	if s.MinIntervalDays < 1 || s.MinIntervalDays > 365 {
		return NewDomainError(ErrInvalidSettings, "min_interval_days must be between 1 and 365")
	}
	if s.DueHourLocal < 0 || s.DueHourLocal > 23 {
		return NewDomainError(ErrInvalidSettings, "due_hour_local must be between 0 and 23")
	}
	if s.DueMinuteLocal < 0 || s.DueMinuteLocal > 59 {
		return NewDomainError(ErrInvalidSettings, "due_minute_local must be between 0 and 59")
	}
	return nil
}

// UserRepository defines the interface for user data access
// This abstraction allows for easy testing and swapping implementations
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	FindByID(ctx context.Context, id uuid.UUID) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	GetSettings(ctx context.Context, userID uuid.UUID) (UserSettings, error)
	SaveSettings(ctx context.Context, settings *UserSettings) error
}

// UserCreateRequest represents the data needed to create a new user
type UserCreateRequest struct {
	Email           string `json:"email" binding:"required,email"`
	Password        string `json:"password" binding:"required,min=8"`
	Timezone        string `json:"timezone"`
	MinIntervalDays *int   `json:"min_interval_days"`
}

// UserLoginRequest represents login credentials
type UserLoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// RefreshRequest carries a refresh token
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// UpdateSettingsRequest is a partial settings edit
type UpdateSettingsRequest struct {
	Timezone        *string `json:"timezone"`
	MinIntervalDays *int    `json:"min_interval_days"`
	DueHourLocal    *int    `json:"due_hour_local"`
	DueMinuteLocal  *int    `json:"due_minute_local"`
}

// UserResponse represents the public user data returned by the API
type UserResponse struct {
	ID        uuid.UUID    `json:"id"`
	Email     string       `json:"email"`
	CreatedAt time.Time    `json:"created_at"`
	Settings  UserSettings `json:"settings"`
}

// ToResponse converts a User to a UserResponse (hides sensitive data)
func (u *User) ToResponse() UserResponse {
	return UserResponse{
		ID:        u.ID,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
		Settings:  u.Settings,
	}
}
