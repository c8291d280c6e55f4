package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/preptracker/backend/internal/domain"
	"github.com/preptracker/backend/internal/infrastructure"
	"github.com/preptracker/backend/internal/scheduling"
)

// UserService handles user-related business logic
type UserService struct {
	userRepo  domain.UserRepository
	cache     Cache
	jwtConfig *infrastructure.JWTConfig
	tracer    trace.Tracer
	logger    *zap.Logger
}

// NewUserService creates a new user service
func NewUserService(
	userRepo domain.UserRepository,
	cache Cache,
	jwtConfig *infrastructure.JWTConfig,
	tracer trace.Tracer,
	logger *zap.Logger,
) *UserService {
	return &UserService{
		userRepo:  userRepo,
		cache:     cache,
		jwtConfig: jwtConfig,
		tracer:    tracer,
		logger:    logger,
	}
}

// TokenPair represents access and refresh tokens
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Register creates a new user account
func (s *UserService) Register(ctx context.Context, req *domain.UserCreateRequest) (*domain.User, *TokenPair, error) {
	ctx, span := s.tracer.Start(ctx, "UserService.Register")
	defer span.End()

	email := strings.ToLower(strings.TrimSpace(req.Email))
	span.SetAttributes(attribute.String("user.email", email))

	settings := domain.DefaultSettings(uuid.Nil)
	if req.Timezone != "" {
		settings.Timezone = req.Timezone
	}
	if req.MinIntervalDays != nil {
		settings.MinIntervalDays = *req.MinIntervalDays
	}
	if err := validateSettings(settings); err != nil {
		return nil, nil, err
	}

	// Check if user already exists
	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, domain.ErrUserNotFound) {
		s.logger.Error("Failed to check existing user", zap.Error(err))
		return nil, nil, err
	}
	if existing != nil {
		return nil, nil, domain.ErrUserAlreadyExists
	}

	// Hash password
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("Failed to hash password", zap.Error(err))
		return nil, nil, domain.ErrInternalServer
	}

	user := &domain.User{
		Email:        email,
		PasswordHash: string(hashedPassword),
		Settings:     settings,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if !errors.Is(err, domain.ErrUserAlreadyExists) {
			s.logger.Error("Failed to create user", zap.Error(err))
		}
		return nil, nil, err
	}

	// Generate tokens
	tokens, err := s.generateTokenPair(user)
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("User registered successfully",
		zap.String("user_id", user.ID.String()),
		zap.String("email", user.Email),
	)

	span.SetAttributes(attribute.String("user.id", user.ID.String()))
	return user, tokens, nil
}

// Login authenticates a user and returns tokens
func (s *UserService) Login(ctx context.Context, email, password string) (*domain.User, *TokenPair, error) {
	ctx, span := s.tracer.Start(ctx, "UserService.Login")
	defer span.End()

	email = strings.ToLower(strings.TrimSpace(email))
	span.SetAttributes(attribute.String("user.email", email))

	// Find user by email
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, nil, domain.ErrInvalidCredentials
		}
		return nil, nil, err
	}

	// Verify password
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, nil, domain.ErrInvalidCredentials
	}

	// Generate tokens
	tokens, err := s.generateTokenPair(user)
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("User logged in",
		zap.String("user_id", user.ID.String()),
		zap.String("email", user.Email),
	)

	span.SetAttributes(attribute.String("user.id", user.ID.String()))
	return user, tokens, nil
}

// RefreshToken generates a new access token from a refresh token
func (s *UserService) RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	ctx, span := s.tracer.Start(ctx, "UserService.RefreshToken")
	defer span.End()

	// Parse and validate refresh token
	claims, err := s.validateToken(refreshToken)
	if err != nil {
		return nil, domain.ErrInvalidToken
	}

	// Check token type
	tokenType, ok := claims["type"].(string)
	if !ok || tokenType != "refresh" {
		return nil, domain.ErrInvalidToken
	}

	// Get user ID from claims
	userIDStr, ok := claims["sub"].(string)
	if !ok {
		return nil, domain.ErrInvalidToken
	}

	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return nil, domain.ErrInvalidToken
	}

	// Find user
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidToken
		}
		return nil, err
	}

	// Generate new tokens
	return s.generateTokenPair(user)
}

// GetUserByID retrieves a user by their ID
func (s *UserService) GetUserByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	ctx, span := s.tracer.Start(ctx, "UserService.GetUserByID")
	defer span.End()

	span.SetAttributes(attribute.String("user.id", id.String()))
	return s.userRepo.FindByID(ctx, id)
}

// GetSettings returns the scheduling preferences of a user
func (s *UserService) GetSettings(ctx context.Context, userID uuid.UUID) (domain.UserSettings, error) {
	ctx, span := s.tracer.Start(ctx, "UserService.GetSettings")
	defer span.End()

	span.SetAttributes(attribute.String("user.id", userID.String()))
	return s.userRepo.GetSettings(ctx, userID)
}

// UpdateSettings applies a partial settings edit. Due dates already stored
// keep their value; new reviews use the new settings.
func (s *UserService) UpdateSettings(ctx context.Context, userID uuid.UUID, req *domain.UpdateSettingsRequest) (domain.UserSettings, error) {
	ctx, span := s.tracer.Start(ctx, "UserService.UpdateSettings")
	defer span.End()

	span.SetAttributes(attribute.String("user.id", userID.String()))

	settings, err := s.userRepo.GetSettings(ctx, userID)
	if err != nil {
		return domain.UserSettings{}, err
	}
	if req.Timezone != nil {
		settings.Timezone = strings.TrimSpace(*req.Timezone)
	}
	if req.MinIntervalDays != nil {
		settings.MinIntervalDays = *req.MinIntervalDays
	}
	if req.DueHourLocal != nil {
		settings.DueHourLocal = *req.DueHourLocal
	}
	if req.DueMinuteLocal != nil {
		settings.DueMinuteLocal = *req.DueMinuteLocal
	}
	if err := validateSettings(settings); err != nil {
		return domain.UserSettings{}, err
	}

	settings.UserID = userID
	settings.UpdatedAt = time.Now().UTC().Truncate(time.Second)
	if err := s.userRepo.SaveSettings(ctx, &settings); err != nil {
		s.logger.Error("Failed to save settings", zap.String("user_id", userID.String()), zap.Error(err))
		return domain.UserSettings{}, err
	}
	// Due counts depend on the due time and timezone
	if err := s.cache.Delete(ctx, overviewCacheKey(userID)); err != nil {
		s.logger.Warn("Failed to invalidate stats cache", zap.String("user_id", userID.String()), zap.Error(err))
	}

	s.logger.Info("Settings updated",
		zap.String("user_id", userID.String()),
		zap.String("timezone", settings.Timezone),
		zap.Int("min_interval_days", settings.MinIntervalDays),
	)
	return settings, nil
}

func validateSettings(settings domain.UserSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	if !scheduling.ValidTimezone(settings.Timezone) {
		return domain.NewDomainError(domain.ErrInvalidSettings, "timezone must be a valid IANA name")
	}
	return nil
}

// ValidateAccessToken validates an access token and returns the user ID
func (s *UserService) ValidateAccessToken(tokenString string) (uuid.UUID, error) {
	claims, err := s.validateToken(tokenString)
	if err != nil {
		return uuid.Nil, domain.ErrInvalidToken
	}

	// Check token type
	tokenType, ok := claims["type"].(string)
	if !ok || tokenType != "access" {
		return uuid.Nil, domain.ErrInvalidToken
	}

	// Get user ID from claims
	userIDStr, ok := claims["sub"].(string)
	if !ok {
		return uuid.Nil, domain.ErrInvalidToken
	}

	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return uuid.Nil, domain.ErrInvalidToken
	}
	return userID, nil
}

// generateTokenPair creates access and refresh tokens for a user
func (s *UserService) generateTokenPair(user *domain.User) (*TokenPair, error) {
	now := time.Now()
	accessExpiry := now.Add(s.jwtConfig.AccessTokenExpiry)
	refreshExpiry := now.Add(s.jwtConfig.RefreshTokenExpiry)

	// Generate access token
	accessClaims := jwt.MapClaims{
		"sub":   user.ID.String(),
		"email": user.Email,
		"type":  "access",
		"iat":   now.Unix(),
		"exp":   accessExpiry.Unix(),
		"iss":   s.jwtConfig.Issuer,
	}
	accessToken := jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims)
	accessTokenString, err := accessToken.SignedString([]byte(s.jwtConfig.SecretKey))
	if err != nil {
		return nil, err
	}

	// Generate refresh token
	refreshClaims := jwt.MapClaims{
		"sub":  user.ID.String(),
		"type": "refresh",
		"iat":  now.Unix(),
		"exp":  refreshExpiry.Unix(),
		"iss":  s.jwtConfig.Issuer,
	}
	refreshToken := jwt.NewWithClaims(jwt.SigningMethodHS256, refreshClaims)
	refreshTokenString, err := refreshToken.SignedString([]byte(s.jwtConfig.SecretKey))
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  accessTokenString,
		RefreshToken: refreshTokenString,
		ExpiresAt:    accessExpiry,
	}, nil
}

// validateToken validates a JWT token and returns its claims
func (s *UserService) validateToken(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, domain.ErrInvalidToken
		}
		return []byte(s.jwtConfig.SecretKey), nil
	})

	if err != nil || !token.Valid {
		return nil, domain.ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, domain.ErrInvalidToken
	}

	return claims, nil
}
