package service

import (
	"context"
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

// contestListLimit caps GET /contests
const contestListLimit = 50

// ContestService handles contest-related business logic
type ContestService struct {
	store   domain.Store
	reviews *ReviewService
	metrics *infrastructure.TelemetryMetrics
	tracer  trace.Tracer
	logger  *zap.Logger
	now     Clock
}

// NewContestService creates a new contest service
func NewContestService(
	store domain.Store,
	reviews *ReviewService,
	metrics *infrastructure.TelemetryMetrics,
	tracer trace.Tracer,
	logger *zap.Logger,
	now Clock,
) *ContestService {
	return &ContestService{
		store:   store,
		reviews: reviews,
		metrics: metrics,
		tracer:  tracer,
		logger:  logger,
		now:     now,
	}
}

// Generate selects problems for a new contest and persists it as created
func (s *ContestService) Generate(ctx context.Context, userID uuid.UUID, req *domain.GenerateContestRequest) (*domain.Contest, error) {
	ctx, span := s.tracer.Start(ctx, "ContestService.Generate")
	defer span.End()

	span.SetAttributes(
		attribute.String("user.id", userID.String()),
		attribute.Int("duration.minutes", req.DurationMinutes),
		attribute.String("strategy", req.Strategy),
		attribute.Int("problem.count", req.DifficultyMix.Total()),
	)

	if req.DurationMinutes < domain.MinContestMinutes || req.DurationMinutes > domain.MaxContestMinutes {
		return nil, domain.ErrInvalidDuration
	}
	strategy, err := domain.ParseStrategy(req.Strategy)
	if err != nil {
		return nil, err
	}
	if err := req.DifficultyMix.Validate(); err != nil {
		return nil, err
	}

	now := scheduling.Normalize(s.now())
	states, err := s.store.States().ListActive(ctx, userID)
	if err != nil {
		return nil, err
	}

	items, err := selectContestItems(states, req.DifficultyMix, strategy, req.DurationMinutes, now)
	if err != nil {
		s.logger.Info("Not enough problems for contest",
			zap.String("user_id", userID.String()),
			zap.Int("requested", req.DifficultyMix.Total()),
			zap.Int("active", len(states)),
		)
		return nil, err
	}

	contest := &domain.Contest{
		UserID:          userID,
		DurationMinutes: req.DurationMinutes,
		Strategy:        strategy,
		Status:          domain.ContestStatusCreated,
		CreatedAt:       now,
		UpdatedAt:       now,
		Items:           items,
	}
	if err := s.store.Transaction(ctx, func(tx domain.Store) error {
		return tx.Contests().Create(ctx, contest)
	}); err != nil {
		s.logger.Error("Failed to create contest", zap.String("user_id", userID.String()), zap.Error(err))
		return nil, err
	}

	s.metrics.ContestsGenerated.Add(ctx, 1, metric.WithAttributes(attribute.String("strategy", string(strategy))))
	s.logger.Info("Contest created",
		zap.String("contest_id", contest.ID.String()),
		zap.String("user_id", userID.String()),
		zap.String("strategy", string(strategy)),
		zap.Int("problem_count", len(items)),
	)

	return contest, nil
}

// Get retrieves a contest of the user with its items
func (s *ContestService) Get(ctx context.Context, userID, contestID uuid.UUID) (*domain.Contest, error) {
	ctx, span := s.tracer.Start(ctx, "ContestService.Get")
	defer span.End()

	span.SetAttributes(attribute.String("contest.id", contestID.String()))
	return s.store.Contests().FindByID(ctx, userID, contestID)
}

// List retrieves the user's most recent contests
func (s *ContestService) List(ctx context.Context, userID uuid.UUID) ([]domain.Contest, error) {
	ctx, span := s.tracer.Start(ctx, "ContestService.List")
	defer span.End()

	span.SetAttributes(attribute.String("user.id", userID.String()))
	return s.store.Contests().FindByUserID(ctx, userID, contestListLimit)
}

// Start moves a created contest to started
func (s *ContestService) Start(ctx context.Context, userID, contestID uuid.UUID) (*domain.Contest, error) {
	ctx, span := s.tracer.Start(ctx, "ContestService.Start")
	defer span.End()

	span.SetAttributes(
		attribute.String("user.id", userID.String()),
		attribute.String("contest.id", contestID.String()),
	)

	if err := s.transition(ctx, userID, contestID, (*domain.Contest).Start); err != nil {
		return nil, err
	}
	s.metrics.ActiveContests.Add(ctx, 1)
	s.logger.Info("Contest started", zap.String("contest_id", contestID.String()))

	return s.store.Contests().FindByID(ctx, userID, contestID)
}

// Complete moves a started contest to completed
func (s *ContestService) Complete(ctx context.Context, userID, contestID uuid.UUID) (*domain.Contest, error) {
	ctx, span := s.tracer.Start(ctx, "ContestService.Complete")
	defer span.End()

	span.SetAttributes(
		attribute.String("user.id", userID.String()),
		attribute.String("contest.id", contestID.String()),
	)

	if err := s.transition(ctx, userID, contestID, (*domain.Contest).Complete); err != nil {
		return nil, err
	}
	s.metrics.ActiveContests.Add(ctx, -1)
	s.logger.Info("Contest completed", zap.String("contest_id", contestID.String()))

	return s.store.Contests().FindByID(ctx, userID, contestID)
}

// transition applies a lifecycle step to the locked contest row
func (s *ContestService) transition(ctx context.Context, userID, contestID uuid.UUID, step func(*domain.Contest, time.Time) error) error {
	now := scheduling.Normalize(s.now())
	return s.store.Transaction(ctx, func(tx domain.Store) error {
		contest, err := tx.Contests().FindByIDForUpdate(ctx, userID, contestID)
		if err != nil {
			return err
		}
		if err := step(contest, now); err != nil {
			return err
		}
		return tx.Contests().UpdateStatus(ctx, contest)
	})
}

// RecordResult writes the result of one contest item and applies it as a
// review. Both happen in one transaction.
func (s *ContestService) RecordResult(ctx context.Context, userID, contestID uuid.UUID, in domain.ResultInput) (*domain.ContestItem, *domain.UpdatedState, error) {
	ctx, span := s.tracer.Start(ctx, "ContestService.RecordResult")
	defer span.End()

	span.SetAttributes(
		attribute.String("user.id", userID.String()),
		attribute.String("contest.id", contestID.String()),
		attribute.String("problem.id", in.ProblemID.String()),
		attribute.Int("review.grade", in.Grade),
	)

	if _, err := s.store.Contests().FindByID(ctx, userID, contestID); err != nil {
		return nil, nil, err
	}

	cid := contestID
	plan, err := s.reviews.prepare(ctx, domain.ReviewInput{
		UserID:       userID,
		ProblemID:    in.ProblemID,
		ContestID:    &cid,
		Grade:        in.Grade,
		TimeSpentSec: in.TimeSpentSec,
		Source:       domain.SourceContest,
	})
	if err != nil {
		return nil, nil, err
	}

	solved := in.Grade >= domain.GradePass
	if in.SolvedFlag != nil {
		solved = *in.SolvedFlag
	}

	var updated *domain.UpdatedState
	err = s.reviews.runInTx(ctx, func(tx domain.Store) error {
		if _, err := tx.Contests().FindItem(ctx, contestID, in.ProblemID); err != nil {
			return err
		}
		if err := tx.Contests().RecordResult(ctx, contestID, in.ProblemID, domain.ItemResult{
			Grade:        in.Grade,
			SolvedFlag:   solved,
			TimeSpentSec: in.TimeSpentSec,
			RecordedAt:   plan.at,
		}); err != nil {
			return err
		}
		var err error
		updated, err = s.reviews.apply(ctx, tx, plan)
		return err
	})
	if err != nil {
		if domain.KindOf(err) == domain.KindInternal {
			s.logger.Error("Failed to record contest result",
				zap.String("contest_id", contestID.String()),
				zap.String("problem_id", in.ProblemID.String()),
				zap.Error(err),
			)
		}
		return nil, nil, err
	}

	s.reviews.afterReview(ctx, userID, domain.SourceContest)
	s.metrics.ContestResults.Add(ctx, 1, metric.WithAttributes(attribute.Bool("solved", solved)))

	item, err := s.store.Contests().FindItem(ctx, contestID, in.ProblemID)
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("Contest result recorded",
		zap.String("contest_id", contestID.String()),
		zap.String("problem_id", in.ProblemID.String()),
		zap.Int("grade", in.Grade),
		zap.Bool("solved", solved),
	)
	return item, updated, nil
}

// ItemFailure is a batch result that was not recorded
type ItemFailure struct {
	ProblemID uuid.UUID
	Err       error
}

// RecordResults applies every result on its own. Items that fail are reported
// back and do not affect the others.
func (s *ContestService) RecordResults(ctx context.Context, userID, contestID uuid.UUID, inputs []domain.ResultInput) (*domain.Contest, []ItemFailure, error) {
	ctx, span := s.tracer.Start(ctx, "ContestService.RecordResults")
	defer span.End()

	span.SetAttributes(
		attribute.String("contest.id", contestID.String()),
		attribute.Int("result.count", len(inputs)),
	)

	if _, err := s.store.Contests().FindByID(ctx, userID, contestID); err != nil {
		return nil, nil, err
	}

	var failures []ItemFailure
	for _, in := range inputs {
		if _, _, err := s.RecordResult(ctx, userID, contestID, in); err != nil {
			if domain.KindOf(err) == domain.KindInternal {
				return nil, nil, err
			}
			failures = append(failures, ItemFailure{ProblemID: in.ProblemID, Err: err})
		}
	}

	contest, err := s.store.Contests().FindByID(ctx, userID, contestID)
	if err != nil {
		return nil, nil, err
	}
	span.SetAttributes(attribute.Int("result.rejected", len(failures)))
	return contest, failures, nil
}
