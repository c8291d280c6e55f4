// Package testutil provides an in-memory database and no-op telemetry for
// package tests.
package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/preptracker/backend/internal/domain"
	"github.com/preptracker/backend/internal/infrastructure"
)

// NewDB opens a migrated, private in-memory SQLite database that is closed
// when the test ends.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	cfg := infrastructure.GormConfig(zap.NewNop())
	cfg.PrepareStmt = false

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared&_foreign_keys=on"
	db, err := gorm.Open(sqlite.Open(dsn), cfg)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := infrastructure.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// Tracer returns a tracer that records nothing
func Tracer() trace.Tracer {
	return tracenoop.NewTracerProvider().Tracer("test")
}

// Metrics returns instruments backed by a no-op meter
func Metrics(t testing.TB) *infrastructure.TelemetryMetrics {
	t.Helper()
	m, err := infrastructure.NewMetrics(metricnoop.NewMeterProvider().Meter("test"))
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	return m
}

// Clock is a settable test clock
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a clock stopped at now
func NewClock(now time.Time) *Clock {
	return &Clock{now: now.UTC()}
}

// Now returns the current test time
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to t
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t.UTC()
}

// Advance moves the clock forward by d
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// CreateUser inserts a user with the given settings timezone
func CreateUser(t testing.TB, db *gorm.DB, email, timezone string) *domain.User {
	t.Helper()
	settings := domain.DefaultSettings(uuid.Nil)
	if timezone != "" {
		settings.Timezone = timezone
	}
	user := &domain.User{Email: email, PasswordHash: "x", Settings: settings}
	if err := db.WithContext(context.Background()).Create(user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}
