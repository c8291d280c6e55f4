package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/preptracker/backend/internal/domain"
	"github.com/preptracker/backend/internal/infrastructure"
	"github.com/preptracker/backend/internal/scheduling"
)

const (
	// clockSkewTolerance is how far in the future a review may be stamped
	clockSkewTolerance = 5 * time.Minute
	// maxTxAttempts bounds retries after a lost version check
	maxTxAttempts = 3
	maxWindowDays = 365
)

// Clock returns the current time
type Clock func() time.Time

// SystemClock is the wall clock
func SystemClock() time.Time { return time.Now() }

// ReviewService applies graded reviews to the scheduling state and answers
// due-set queries
type ReviewService struct {
	store   domain.Store
	cache   Cache
	metrics *infrastructure.TelemetryMetrics
	tracer  trace.Tracer
	logger  *zap.Logger
	now     Clock
}

// NewReviewService creates a new review service
func NewReviewService(
	store domain.Store,
	cache Cache,
	metrics *infrastructure.TelemetryMetrics,
	tracer trace.Tracer,
	logger *zap.Logger,
	now Clock,
) *ReviewService {
	return &ReviewService{
		store:   store,
		cache:   cache,
		metrics: metrics,
		tracer:  tracer,
		logger:  logger,
		now:     now,
	}
}

// reviewPlan is a review whose input checks passed and whose settings are
// resolved, ready to run inside a transaction
type reviewPlan struct {
	in       domain.ReviewInput
	at       time.Time
	settings domain.UserSettings
}

// RecordReview validates and applies one review. The event insert and the
// state update commit together or not at all.
func (s *ReviewService) RecordReview(ctx context.Context, in domain.ReviewInput) (*domain.UpdatedState, error) {
	ctx, span := s.tracer.Start(ctx, "ReviewService.RecordReview")
	defer span.End()

	span.SetAttributes(
		attribute.String("user.id", in.UserID.String()),
		attribute.String("problem.id", in.ProblemID.String()),
		attribute.Int("review.grade", in.Grade),
		attribute.String("review.source", in.Source),
	)

	plan, err := s.prepare(ctx, in)
	if err != nil {
		return nil, err
	}

	var out *domain.UpdatedState
	err = s.runInTx(ctx, func(tx domain.Store) error {
		var err error
		out, err = s.apply(ctx, tx, plan)
		return err
	})
	if err != nil {
		if domain.KindOf(err) == domain.KindInternal {
			s.logger.Error("Failed to record review",
				zap.String("user_id", in.UserID.String()),
				zap.String("problem_id", in.ProblemID.String()),
				zap.Error(err),
			)
		}
		return nil, err
	}

	s.afterReview(ctx, in.UserID, plan.in.Source)

	s.logger.Info("Review recorded",
		zap.String("user_id", in.UserID.String()),
		zap.String("problem_id", in.ProblemID.String()),
		zap.Int("grade", in.Grade),
		zap.Int("interval_days", out.IntervalDays),
		zap.Time("next_due_at", out.NextDueAt),
	)
	return out, nil
}

// prepare runs the checks that need no lock: grade, time spent, timestamp
// parsing and the future guard.
func (s *ReviewService) prepare(ctx context.Context, in domain.ReviewInput) (reviewPlan, error) {
	if !domain.ValidGrade(in.Grade) {
		return reviewPlan{}, domain.ErrInvalidGrade
	}
	if in.TimeSpentSec != nil && *in.TimeSpentSec <= 0 {
		return reviewPlan{}, domain.ErrInvalidTimeSpent
	}
	if in.Source == "" {
		in.Source = domain.SourceWeb
	}
	if !domain.ValidSource(in.Source, in.ContestID != nil) {
		return reviewPlan{}, domain.ErrInvalidSource
	}

	settings, err := s.store.Users().GetSettings(ctx, in.UserID)
	if err != nil {
		return reviewPlan{}, fmt.Errorf("load settings: %w", err)
	}

	now := s.now().UTC()
	at := now
	if in.ReviewedAt != "" {
		parsed, err := scheduling.ParseReviewTime(in.ReviewedAt, scheduling.LoadLocation(settings.Timezone))
		if err != nil {
			return reviewPlan{}, domain.ErrInvalidReviewAt
		}
		at = parsed.UTC()
		if at.After(now.Add(clockSkewTolerance)) {
			return reviewPlan{}, domain.ErrClockSkew
		}
	}

	return reviewPlan{in: in, at: scheduling.Normalize(at), settings: settings}, nil
}

// apply appends the review event and moves the state row forward. It must
// run inside tx.
func (s *ReviewService) apply(ctx context.Context, tx domain.Store, plan reviewPlan) (*domain.UpdatedState, error) {
	in := plan.in

	if _, err := tx.Problems().FindByID(ctx, in.ProblemID); err != nil {
		return nil, err
	}

	state, err := tx.States().GetForUpdate(ctx, in.UserID, in.ProblemID)
	created := false
	switch {
	case errors.Is(err, domain.ErrStateNotFound):
		state = domain.NewUserProblemState(in.UserID, in.ProblemID, plan.at)
		created = true
	case err != nil:
		return nil, err
	case !state.IsActive:
		return nil, domain.ErrProblemNotFound
	}

	event := &domain.ReviewEvent{
		UserID:       in.UserID,
		ProblemID:    in.ProblemID,
		ContestID:    in.ContestID,
		Grade:        in.Grade,
		TimeSpentSec: in.TimeSpentSec,
		Source:       in.Source,
		ReviewedAt:   plan.at,
	}
	if err := tx.Reviews().Create(ctx, event); err != nil {
		return nil, fmt.Errorf("insert review event: %w", err)
	}

	sched := scheduling.SettingsFrom(plan.settings)
	outcome, err := scheduling.Apply(scheduling.State{
		Reps:         state.Reps,
		Ease:         state.Ease,
		IntervalDays: state.IntervalDays,
	}, in.Grade, plan.at, sched)
	if err != nil {
		return nil, err
	}

	at, grade := plan.at, in.Grade
	state.Reps = outcome.Reps
	state.Ease = outcome.Ease
	state.IntervalDays = outcome.IntervalDays
	state.DueAt = outcome.DueAt
	state.LastReviewAt = &at
	state.LastGrade = &grade

	if created {
		err = tx.States().Create(ctx, state)
	} else {
		err = tx.States().Update(ctx, state)
	}
	if err != nil {
		return nil, err
	}

	return &domain.UpdatedState{
		ProblemID:       in.ProblemID,
		ReviewedAt:      plan.at,
		NextDueAt:       state.DueAt,
		Reps:            state.Reps,
		IntervalDays:    state.IntervalDays,
		Ease:            state.Ease,
		MinIntervalDays: sched.MinIntervalDays,
	}, nil
}

// runInTx runs fn in a transaction, starting over when a concurrent writer
// won the version check.
func (s *ReviewService) runInTx(ctx context.Context, fn func(tx domain.Store) error) error {
	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = s.store.Transaction(ctx, fn)
		if !errors.Is(err, domain.ErrStaleState) {
			return err
		}
		s.metrics.ReviewRetries.Add(ctx, 1)
		s.logger.Debug("Retrying review transaction", zap.Int("attempt", attempt), zap.Error(err))
	}
	return err
}

// afterReview records metrics and drops cached stats of the user
func (s *ReviewService) afterReview(ctx context.Context, userID uuid.UUID, source string) {
	s.metrics.ReviewsRecorded.Add(ctx, 1, metric.WithAttributes(attribute.String("source", source)))
	if err := s.cache.Delete(ctx, overviewCacheKey(userID)); err != nil {
		s.logger.Warn("Failed to invalidate stats cache", zap.String("user_id", userID.String()), zap.Error(err))
	}
}

// DueItems returns active problems due within windowDays from now, most
// urgent first
func (s *ReviewService) DueItems(ctx context.Context, userID uuid.UUID, windowDays int) ([]domain.ProblemWithState, error) {
	ctx, span := s.tracer.Start(ctx, "ReviewService.DueItems")
	defer span.End()

	if windowDays < 0 {
		windowDays = 0
	}
	if windowDays > maxWindowDays {
		windowDays = maxWindowDays
	}
	span.SetAttributes(
		attribute.String("user.id", userID.String()),
		attribute.Int("window.days", windowDays),
	)

	now := s.now().UTC()
	until := scheduling.Normalize(now.Add(time.Duration(windowDays) * 24 * time.Hour))

	states, err := s.store.States().ListDue(ctx, userID, until)
	if err != nil {
		s.logger.Error("Failed to list due items", zap.String("user_id", userID.String()), zap.Error(err))
		return nil, err
	}

	items := make([]domain.ProblemWithState, 0, len(states))
	for i := range states {
		st := &states[i]
		items = append(items, st.ToProblemWithState(scheduling.MasteryAt(st.Reps, st.Ease, st.DueAt, now)))
	}
	sortByUrgency(items)

	span.SetAttributes(attribute.Int("due.count", len(items)))
	return items, nil
}

// sortByUrgency orders by due date, then lowest mastery, then problem id
func sortByUrgency(items []domain.ProblemWithState) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if !a.State.DueAt.Equal(b.State.DueAt) {
			return a.State.DueAt.Before(b.State.DueAt)
		}
		if a.Mastery != b.Mastery {
			return a.Mastery < b.Mastery
		}
		return a.ID.String() < b.ID.String()
	})
}
