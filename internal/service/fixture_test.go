package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/preptracker/backend/internal/domain"
	"github.com/preptracker/backend/internal/infrastructure"
	"github.com/preptracker/backend/internal/repository"
	"github.com/preptracker/backend/internal/testutil"
)

// Monday noon UTC
var fixtureStart = time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)

// memoryCache is a Cache kept in a map, JSON-encoded like the redis one
type memoryCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	deletes int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string][]byte)}
}

func (m *memoryCache) Get(_ context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.entries[key]
	if !ok {
		return ErrCacheMiss
	}
	return json.Unmarshal(data, dest)
}

func (m *memoryCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = data
	return nil
}

func (m *memoryCache) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.entries, k)
		m.deletes++
	}
	return nil
}

func (m *memoryCache) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[key]
	return ok
}

type fixture struct {
	ctx      context.Context
	db       *gorm.DB
	store    domain.Store
	clock    *testutil.Clock
	cache    *memoryCache
	metrics  *infrastructure.TelemetryMetrics
	reviews  *ReviewService
	problems *ProblemService
	contests *ContestService
	stats    *StatsService
	user     *domain.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testutil.NewDB(t)
	store := repository.NewStore(db)
	clock := testutil.NewClock(fixtureStart)
	cache := newMemoryCache()
	metrics := testutil.Metrics(t)
	tracer := testutil.Tracer()
	logger := zap.NewNop()

	reviews := NewReviewService(store, cache, metrics, tracer, logger, clock.Now)
	return &fixture{
		ctx:      context.Background(),
		db:       db,
		store:    store,
		clock:    clock,
		cache:    cache,
		metrics:  metrics,
		reviews:  reviews,
		problems: NewProblemService(store, reviews, cache, tracer, logger, clock.Now),
		contests: NewContestService(store, reviews, metrics, tracer, logger, clock.Now),
		stats:    NewStatsService(store, cache, time.Minute, tracer, logger, clock.Now),
		user:     testutil.CreateUser(t, db, "learner@example.com", "UTC"),
	}
}

// track adds a problem to the fixture user's library and returns its id
func (f *fixture) track(t *testing.T, url string, difficulty domain.Difficulty, topics ...string) uuid.UUID {
	t.Helper()
	res, err := f.problems.AddProblem(f.ctx, f.user.ID, &domain.AddProblemRequest{
		URL:        url,
		Title:      url,
		Platform:   "leetcode",
		Difficulty: string(difficulty),
		Topics:     topics,
	})
	if err != nil {
		t.Fatalf("AddProblem(%s): %v", url, err)
	}
	return res.Problem.ID
}

func (f *fixture) review(t *testing.T, problemID uuid.UUID, grade int) *domain.UpdatedState {
	t.Helper()
	out, err := f.reviews.RecordReview(f.ctx, domain.ReviewInput{
		UserID:    f.user.ID,
		ProblemID: problemID,
		Grade:     grade,
		Source:    domain.SourceManual,
	})
	if err != nil {
		t.Fatalf("RecordReview: %v", err)
	}
	return out
}

func (f *fixture) state(t *testing.T, problemID uuid.UUID) *domain.UserProblemState {
	t.Helper()
	st, err := f.store.States().Get(f.ctx, f.user.ID, problemID)
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	return st
}

func (f *fixture) events(t *testing.T, problemID uuid.UUID) []domain.ReviewEvent {
	t.Helper()
	events, err := f.store.Reviews().ListByProblem(f.ctx, f.user.ID, problemID, 100)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	return events
}

func intPtr(v int) *int { return &v }

func boolPtr(v bool) *bool { return &v }
