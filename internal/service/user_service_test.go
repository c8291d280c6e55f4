package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/preptracker/backend/internal/domain"
	"github.com/preptracker/backend/internal/infrastructure"
	"github.com/preptracker/backend/internal/repository"
	"github.com/preptracker/backend/internal/testutil"
)

func newUserService(t *testing.T) *UserService {
	t.Helper()
	return newUserServiceWithCache(t, NoopCache{})
}

func newUserServiceWithCache(t *testing.T, cache Cache) *UserService {
	t.Helper()
	store := repository.NewStore(testutil.NewDB(t))
	return NewUserService(store.Users(), cache, &infrastructure.JWTConfig{
		SecretKey:          "test-secret",
		AccessTokenExpiry:  15 * time.Minute,
		RefreshTokenExpiry: 24 * time.Hour,
		Issuer:             "preptracker-test",
	}, testutil.Tracer(), zap.NewNop())
}

func TestRegisterAndLogin(t *testing.T) {
	svc := newUserService(t)
	ctx := context.Background()

	user, tokens, err := svc.Register(ctx, &domain.UserCreateRequest{
		Email:    "  Ada@Example.com ",
		Password: "correct horse",
		Timezone: "Europe/Berlin",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if user.Email != "ada@example.com" || user.Settings.Timezone != "Europe/Berlin" || user.Settings.MinIntervalDays != 1 {
		t.Fatalf("user = %+v", user)
	}
	if tokens.AccessToken == "" || tokens.RefreshToken == "" {
		t.Fatal("missing tokens")
	}

	id, err := svc.ValidateAccessToken(tokens.AccessToken)
	if err != nil || id != user.ID {
		t.Fatalf("ValidateAccessToken = %s, %v", id, err)
	}
	if _, err := svc.ValidateAccessToken(tokens.RefreshToken); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("refresh token accepted as access token: %v", err)
	}

	if _, _, err := svc.Register(ctx, &domain.UserCreateRequest{Email: "ada@example.com", Password: "another one"}); !errors.Is(err, domain.ErrUserAlreadyExists) {
		t.Fatalf("duplicate register: %v", err)
	}

	logged, _, err := svc.Login(ctx, "ADA@example.com", "correct horse")
	if err != nil || logged.ID != user.ID {
		t.Fatalf("Login = %+v, %v", logged, err)
	}
	if _, _, err := svc.Login(ctx, "ada@example.com", "wrong"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("wrong password: %v", err)
	}
	if _, _, err := svc.Login(ctx, "nobody@example.com", "whatever1"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("unknown user: %v", err)
	}

	refreshed, err := svc.RefreshToken(ctx, tokens.RefreshToken)
	if err != nil || refreshed.AccessToken == "" {
		t.Fatalf("RefreshToken = %+v, %v", refreshed, err)
	}
	if _, err := svc.RefreshToken(ctx, tokens.AccessToken); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("access token accepted as refresh token: %v", err)
	}
}

func TestRegister_ValidatesSettings(t *testing.T) {
	svc := newUserService(t)
	ctx := context.Background()

	if _, _, err := svc.Register(ctx, &domain.UserCreateRequest{Email: "a@example.com", Password: "password1", Timezone: "Mars/Olympus"}); !errors.Is(err, domain.ErrInvalidSettings) {
		t.Fatalf("bad timezone: %v", err)
	}
	if _, _, err := svc.Register(ctx, &domain.UserCreateRequest{Email: "a@example.com", Password: "password1", MinIntervalDays: intPtr(0)}); !errors.Is(err, domain.ErrInvalidSettings) {
		t.Fatalf("bad interval: %v", err)
	}

	user, _, err := svc.Register(ctx, &domain.UserCreateRequest{Email: "a@example.com", Password: "password1"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if user.Settings.Timezone != domain.DefaultTimezone || user.Settings.DueHourLocal != domain.DefaultDueHourLocal {
		t.Fatalf("default settings = %+v", user.Settings)
	}
}

func TestUpdateSettings_InvalidatesOverviewCache(t *testing.T) {
	cache := newMemoryCache()
	svc := newUserServiceWithCache(t, cache)
	ctx := context.Background()
	user, _, err := svc.Register(ctx, &domain.UserCreateRequest{Email: "c@example.com", Password: "password1", Timezone: "UTC"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	key := overviewCacheKey(user.ID)
	if err := cache.Set(ctx, key, domain.Overview{DueTodayCount: 4}, time.Minute); err != nil {
		t.Fatalf("seed cache: %v", err)
	}
	hour := 22
	if _, err := svc.UpdateSettings(ctx, user.ID, &domain.UpdateSettingsRequest{DueHourLocal: &hour}); err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}
	if cache.has(key) {
		t.Fatal("overview cache survived a settings change")
	}
}

func TestUpdateSettings(t *testing.T) {
	svc := newUserService(t)
	ctx := context.Background()
	user, _, err := svc.Register(ctx, &domain.UserCreateRequest{Email: "b@example.com", Password: "password1", Timezone: "UTC"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	tz, hour := "Asia/Tokyo", 7
	settings, err := svc.UpdateSettings(ctx, user.ID, &domain.UpdateSettingsRequest{Timezone: &tz, DueHourLocal: &hour})
	if err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}
	if settings.Timezone != tz || settings.DueHourLocal != 7 || settings.MinIntervalDays != 1 {
		t.Fatalf("settings = %+v", settings)
	}

	stored, err := svc.GetSettings(ctx, user.ID)
	if err != nil || stored.Timezone != tz || stored.DueHourLocal != 7 {
		t.Fatalf("stored = %+v (err %v)", stored, err)
	}

	minute := 60
	if _, err := svc.UpdateSettings(ctx, user.ID, &domain.UpdateSettingsRequest{DueMinuteLocal: &minute}); !errors.Is(err, domain.ErrInvalidSettings) {
		t.Fatalf("bad minute: %v", err)
	}
	if stored, _ := svc.GetSettings(ctx, user.ID); stored.DueMinuteLocal != 0 {
		t.Fatalf("rejected edit was saved: %+v", stored)
	}

	me, err := svc.GetUserByID(ctx, user.ID)
	if err != nil || me.Settings.Timezone != tz {
		t.Fatalf("GetUserByID = %+v, %v", me, err)
	}
}
