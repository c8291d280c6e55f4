package service

import (
	"context"
	"errors"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/preptracker/backend/internal/domain"
	"github.com/preptracker/backend/internal/scheduling"
)

const (
	streakLookback = 90 * 24 * time.Hour
	dueSoonDays    = 3
)

func overviewCacheKey(userID uuid.UUID) string {
	return "stats:overview:" + userID.String()
}

// StatsService computes the dashboard aggregates of a user
type StatsService struct {
	store    domain.Store
	cache    Cache
	cacheTTL time.Duration
	tracer   trace.Tracer
	logger   *zap.Logger
	now      Clock
}

// NewStatsService creates a new stats service
func NewStatsService(
	store domain.Store,
	cache Cache,
	cacheTTL time.Duration,
	tracer trace.Tracer,
	logger *zap.Logger,
	now Clock,
) *StatsService {
	return &StatsService{
		store:    store,
		cache:    cache,
		cacheTTL: cacheTTL,
		tracer:   tracer,
		logger:   logger,
		now:      now,
	}
}

// Overview returns the workload counters, served from cache when possible
func (s *StatsService) Overview(ctx context.Context, userID uuid.UUID) (*domain.Overview, error) {
	ctx, span := s.tracer.Start(ctx, "StatsService.Overview")
	defer span.End()

	span.SetAttributes(attribute.String("user.id", userID.String()))

	key := overviewCacheKey(userID)
	var cached domain.Overview
	switch err := s.cache.Get(ctx, key, &cached); {
	case err == nil:
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return &cached, nil
	case !errors.Is(err, ErrCacheMiss):
		s.logger.Warn("Stats cache read failed", zap.String("user_id", userID.String()), zap.Error(err))
	}
	span.SetAttributes(attribute.Bool("cache.hit", false))

	settings, err := s.store.Users().GetSettings(ctx, userID)
	if err != nil {
		return nil, err
	}
	loc := scheduling.LoadLocation(settings.Timezone)
	now := scheduling.Normalize(s.now())

	var (
		states  []domain.UserProblemState
		reviews int64
		streak  int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		states, err = s.store.States().ListActive(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		reviews, err = s.store.Reviews().CountSince(gctx, userID, now.Add(-7*24*time.Hour))
		return err
	})
	g.Go(func() error {
		var err error
		streak, err = s.currentStreak(gctx, userID, loc, now)
		return err
	})
	if err := g.Wait(); err != nil {
		s.logger.Error("Failed to compute overview", zap.String("user_id", userID.String()), zap.Error(err))
		return nil, err
	}

	startToday := scheduling.StartOfLocalDay(now, loc)
	startTomorrow := startToday.AddDate(0, 0, 1)
	dueSoonEnd := startTomorrow.AddDate(0, 0, dueSoonDays)

	out := &domain.Overview{
		ActiveProblems:    len(states),
		ReviewsLast7Days:  int(reviews),
		CurrentStreakDays: streak,
	}
	for i := range states {
		due := states[i].DueAt
		switch {
		case due.Before(startToday):
			out.OverdueCount++
		case due.Before(startTomorrow):
			out.DueTodayCount++
		case due.Before(dueSoonEnd):
			out.DueSoonCount++
		}
	}

	if err := s.cache.Set(ctx, key, out, s.cacheTTL); err != nil {
		s.logger.Warn("Stats cache write failed", zap.String("user_id", userID.String()), zap.Error(err))
	}
	return out, nil
}

// Topics returns the average mastery per topic over active problems,
// weakest first
func (s *StatsService) Topics(ctx context.Context, userID uuid.UUID) ([]domain.TopicStat, error) {
	ctx, span := s.tracer.Start(ctx, "StatsService.Topics")
	defer span.End()

	span.SetAttributes(attribute.String("user.id", userID.String()))

	states, err := s.store.States().ListActive(ctx, userID)
	if err != nil {
		return nil, err
	}

	type agg struct {
		sum float64
		n   int
	}
	now := s.now().UTC()
	byTopic := make(map[string]*agg)
	for i := range states {
		st := &states[i]
		m := scheduling.MasteryAt(st.Reps, st.Ease, st.DueAt, now)
		for _, topic := range st.Problem.Topics.Keys() {
			a := byTopic[topic]
			if a == nil {
				a = &agg{}
				byTopic[topic] = a
			}
			a.sum += m
			a.n++
		}
	}

	out := make([]domain.TopicStat, 0, len(byTopic))
	for topic, a := range byTopic {
		out = append(out, domain.TopicStat{
			Topic:      topic,
			Count:      a.n,
			MasteryAvg: math.Round(a.sum/float64(a.n)*10) / 10,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MasteryAvg != out[j].MasteryAvg {
			return out[i].MasteryAvg < out[j].MasteryAvg
		}
		return out[i].Topic < out[j].Topic
	})
	return out, nil
}

// Streaks returns the current run of review days
func (s *StatsService) Streaks(ctx context.Context, userID uuid.UUID) (*domain.StreakStats, error) {
	ctx, span := s.tracer.Start(ctx, "StatsService.Streaks")
	defer span.End()

	span.SetAttributes(attribute.String("user.id", userID.String()))

	settings, err := s.store.Users().GetSettings(ctx, userID)
	if err != nil {
		return nil, err
	}
	streak, err := s.currentStreak(ctx, userID, scheduling.LoadLocation(settings.Timezone), s.now().UTC())
	if err != nil {
		return nil, err
	}
	return &domain.StreakStats{CurrentStreakDays: streak}, nil
}

// currentStreak counts consecutive local days with a review, ending today,
// or yesterday when nothing was reviewed today yet
func (s *StatsService) currentStreak(ctx context.Context, userID uuid.UUID, loc *time.Location, now time.Time) (int, error) {
	times, err := s.store.Reviews().ReviewTimesSince(ctx, userID, scheduling.Normalize(now.Add(-streakLookback)))
	if err != nil {
		return 0, err
	}
	return streakDays(times, loc, now), nil
}

func streakDays(times []time.Time, loc *time.Location, now time.Time) int {
	days := make(map[string]bool, len(times))
	for _, t := range times {
		days[scheduling.LocalDateKey(t, loc)] = true
	}

	local := now.In(loc)
	cur := time.Date(local.Year(), local.Month(), local.Day(), 12, 0, 0, 0, loc)
	if !days[cur.Format("2006-01-02")] {
		cur = cur.AddDate(0, 0, -1)
	}
	streak := 0
	for days[cur.Format("2006-01-02")] {
		streak++
		cur = cur.AddDate(0, 0, -1)
	}
	return streak
}

// ContestStats aggregates contest results over the last windowDays local
// days, today included
func (s *StatsService) ContestStats(ctx context.Context, userID uuid.UUID, windowDays int) (*domain.ContestStats, error) {
	ctx, span := s.tracer.Start(ctx, "StatsService.ContestStats")
	defer span.End()

	if windowDays < 1 {
		windowDays = 1
	}
	if windowDays > domain.MaxStatsWindowDays {
		windowDays = domain.MaxStatsWindowDays
	}
	span.SetAttributes(
		attribute.String("user.id", userID.String()),
		attribute.Int("window.days", windowDays),
	)

	settings, err := s.store.Users().GetSettings(ctx, userID)
	if err != nil {
		return nil, err
	}
	loc := scheduling.LoadLocation(settings.Timezone)
	now := s.now().UTC()
	startWindow := scheduling.StartOfLocalDay(now, loc).AddDate(0, 0, -(windowDays - 1))
	since := scheduling.Normalize(startWindow)

	var (
		results  []domain.ContestItem
		finished []domain.Contest
		recent   []domain.Contest
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		results, err = s.store.Contests().FindResultsSince(gctx, userID, since)
		return err
	})
	g.Go(func() error {
		var err error
		finished, err = s.store.Contests().FindCompletedSince(gctx, userID, since)
		return err
	})
	g.Go(func() error {
		var err error
		recent, err = s.store.Contests().FindRecentCompleted(gctx, userID, domain.RecentContestsLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		s.logger.Error("Failed to compute contest stats", zap.String("user_id", userID.String()), zap.Error(err))
		return nil, err
	}

	byDay := make(map[string]*totalsBuilder, windowDays)
	dayOf := func(key string) *totalsBuilder {
		b := byDay[key]
		if b == nil {
			b = &totalsBuilder{}
			byDay[key] = b
		}
		return b
	}

	var totals totalsBuilder
	for i := range results {
		totals.add(&results[i])
		dayOf(scheduling.LocalDateKey(*results[i].RecordedAt, loc)).add(&results[i])
	}
	totals.finished = len(finished)
	for i := range finished {
		dayOf(scheduling.LocalDateKey(*finished[i].CompletedAt, loc)).finished++
	}

	days := make([]domain.ContestDay, 0, windowDays)
	for i := 0; i < windowDays; i++ {
		key := startWindow.AddDate(0, 0, i).Format("2006-01-02")
		day := domain.ContestDay{Date: key}
		if b := byDay[key]; b != nil {
			day.ContestTotals = b.build()
		}
		days = append(days, day)
	}

	out := &domain.ContestStats{
		WindowDays: windowDays,
		Totals:     totals.build(),
		Days:       days,
		Recent:     make([]domain.RecentContest, 0, len(recent)),
	}
	for i := range recent {
		out.Recent = append(out.Recent, recentContest(&recent[i]))
	}
	return out, nil
}

// totalsBuilder accumulates recorded contest items
type totalsBuilder struct {
	finished  int
	recorded  int
	solved    int
	gradeSum  int
	totalTime int
}

func (b *totalsBuilder) add(item *domain.ContestItem) {
	if !item.Recorded() {
		return
	}
	b.recorded++
	if item.SolvedFlag != nil && *item.SolvedFlag {
		b.solved++
	}
	if item.Grade != nil {
		b.gradeSum += *item.Grade
	}
	if item.TimeSpentSec != nil {
		b.totalTime += *item.TimeSpentSec
	}
}

func (b *totalsBuilder) avgGrade() *float64 {
	if b.recorded == 0 {
		return nil
	}
	avg := float64(b.gradeSum) / float64(b.recorded)
	return &avg
}

func (b *totalsBuilder) build() domain.ContestTotals {
	return domain.ContestTotals{
		ContestsFinished: b.finished,
		ProblemsRecorded: b.recorded,
		SolvedCount:      b.solved,
		AvgGrade:         b.avgGrade(),
		TotalTimeSec:     b.totalTime,
	}
}

func recentContest(c *domain.Contest) domain.RecentContest {
	var b totalsBuilder
	for i := range c.Items {
		b.add(&c.Items[i])
	}
	return domain.RecentContest{
		ContestID:       c.ID.String(),
		Strategy:        c.Strategy,
		DurationMinutes: c.DurationMinutes,
		CreatedAt:       c.CreatedAt,
		StartedAt:       c.StartedAt,
		CompletedAt:     c.CompletedAt,
		TotalItems:      len(c.Items),
		RecordedCount:   b.recorded,
		SolvedCount:     b.solved,
		AvgGrade:        b.avgGrade(),
		TotalTimeSec:    b.totalTime,
	}
}
