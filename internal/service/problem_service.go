package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/preptracker/backend/internal/domain"
	"github.com/preptracker/backend/internal/scheduling"
)

// recentReviewsLimit is how many reviews GetProblem returns
const recentReviewsLimit = 20

// ProblemService handles catalog and library business logic
type ProblemService struct {
	store   domain.Store
	reviews *ReviewService
	cache   Cache
	tracer  trace.Tracer
	logger  *zap.Logger
	now     Clock
}

// NewProblemService creates a new problem service
func NewProblemService(
	store domain.Store,
	reviews *ReviewService,
	cache Cache,
	tracer trace.Tracer,
	logger *zap.Logger,
	now Clock,
) *ProblemService {
	return &ProblemService{
		store:   store,
		reviews: reviews,
		cache:   cache,
		tracer:  tracer,
		logger:  logger,
		now:     now,
	}
}

// AddProblem catalogs a problem by URL and tracks it for the user. Adding a
// problem already in the library reactivates it and keeps the earlier due
// date.
func (s *ProblemService) AddProblem(ctx context.Context, userID uuid.UUID, req *domain.AddProblemRequest) (*domain.AddProblemResult, error) {
	ctx, span := s.tracer.Start(ctx, "ProblemService.AddProblem")
	defer span.End()

	span.SetAttributes(
		attribute.String("user.id", userID.String()),
		attribute.String("problem.url", req.URL),
	)

	url := domain.NormalizeURL(req.URL)
	if url == "" {
		return nil, domain.ErrProblemURLMissing
	}
	difficulty, err := domain.ParseDifficulty(req.Difficulty)
	if err != nil {
		return nil, err
	}
	// A rejected initial review must leave nothing written
	var plan *reviewPlan
	if req.Initial != nil {
		source := req.Initial.Source
		if source == "" {
			source = domain.SourceLibraryAdd
		}
		p, err := s.reviews.prepare(ctx, domain.ReviewInput{
			UserID:       userID,
			Grade:        req.Initial.Grade,
			ReviewedAt:   req.Initial.ReviewedAt,
			TimeSpentSec: req.Initial.TimeSpentSec,
			Source:       source,
		})
		if err != nil {
			return nil, err
		}
		plan = &p
	}

	settings, err := s.store.Users().GetSettings(ctx, userID)
	if err != nil {
		return nil, err
	}
	dueAt := scheduling.InitialDueAt(s.now(), scheduling.SettingsFrom(settings))

	var (
		problem *domain.Problem
		created bool
		review  *domain.UpdatedState
	)
	err = s.reviews.runInTx(ctx, func(tx domain.Store) error {
		var err error
		problem, err = tx.Problems().CreateOrGet(ctx, &domain.Problem{
			URL:        url,
			Platform:   req.Platform,
			Title:      req.Title,
			Difficulty: difficulty,
			Topics:     domain.NormalizeTopics(req.Topics),
		})
		if err != nil {
			return err
		}
		if created, err = track(ctx, tx, userID, problem.ID, dueAt); err != nil {
			return err
		}
		if plan == nil {
			return nil
		}
		planned := *plan
		planned.in.ProblemID = problem.ID
		review, err = s.reviews.apply(ctx, tx, planned)
		return err
	})
	if err != nil {
		if domain.KindOf(err) == domain.KindInternal {
			s.logger.Error("Failed to add problem", zap.String("url", url), zap.Error(err))
		}
		return nil, err
	}

	result := &domain.AddProblemResult{Created: created, Review: review}
	if plan != nil {
		s.reviews.afterReview(ctx, userID, plan.in.Source)
	} else {
		s.invalidateStats(ctx, userID)
	}

	state, err := s.store.States().GetWithProblem(ctx, userID, problem.ID)
	if err != nil {
		return nil, err
	}
	result.Problem = state.ToProblemWithState(scheduling.MasteryAt(state.Reps, state.Ease, state.DueAt, s.now()))

	s.logger.Info("Problem added",
		zap.String("user_id", userID.String()),
		zap.String("problem_id", problem.ID.String()),
		zap.Bool("created", created),
	)
	return result, nil
}

// track makes sure the user has an active state for the problem. It must
// run inside tx and reports whether the state row was created.
func track(ctx context.Context, tx domain.Store, userID, problemID uuid.UUID, dueAt time.Time) (bool, error) {
	state, err := tx.States().GetForUpdate(ctx, userID, problemID)
	if errors.Is(err, domain.ErrStateNotFound) {
		return true, tx.States().Create(ctx, domain.NewUserProblemState(userID, problemID, dueAt))
	}
	if err != nil {
		return false, err
	}
	if state.IsActive && !dueAt.Before(state.DueAt) {
		return false, nil
	}
	state.IsActive = true
	if dueAt.Before(state.DueAt) {
		state.DueAt = dueAt
	}
	return false, tx.States().Update(ctx, state)
}

// ListProblems returns every tracked problem of the user, archived ones
// included, ordered by due date
func (s *ProblemService) ListProblems(ctx context.Context, userID uuid.UUID) ([]domain.ProblemWithState, error) {
	ctx, span := s.tracer.Start(ctx, "ProblemService.ListProblems")
	defer span.End()

	span.SetAttributes(attribute.String("user.id", userID.String()))

	states, err := s.store.States().ListAll(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	out := make([]domain.ProblemWithState, 0, len(states))
	for i := range states {
		st := &states[i]
		out = append(out, st.ToProblemWithState(scheduling.MasteryAt(st.Reps, st.Ease, st.DueAt, now)))
	}
	return out, nil
}

// GetProblem returns one tracked problem with its latest reviews
func (s *ProblemService) GetProblem(ctx context.Context, userID, problemID uuid.UUID) (*domain.ProblemDetail, error) {
	ctx, span := s.tracer.Start(ctx, "ProblemService.GetProblem")
	defer span.End()

	span.SetAttributes(
		attribute.String("user.id", userID.String()),
		attribute.String("problem.id", problemID.String()),
	)

	state, err := s.store.States().GetWithProblem(ctx, userID, problemID)
	if errors.Is(err, domain.ErrStateNotFound) {
		return nil, domain.ErrProblemNotFound
	}
	if err != nil {
		return nil, err
	}

	events, err := s.store.Reviews().ListByProblem(ctx, userID, problemID, recentReviewsLimit)
	if err != nil {
		return nil, err
	}
	reviews := make([]domain.ReviewEventResponse, len(events))
	for i := range events {
		reviews[i] = events[i].ToResponse()
	}

	return &domain.ProblemDetail{
		ProblemWithState: state.ToProblemWithState(scheduling.MasteryAt(state.Reps, state.Ease, state.DueAt, s.now())),
		Reviews:          reviews,
	}, nil
}

// UpdateProblem archives or restores a tracked problem and edits its
// catalog metadata
func (s *ProblemService) UpdateProblem(ctx context.Context, userID, problemID uuid.UUID, req *domain.UpdateProblemRequest) (*domain.ProblemWithState, error) {
	ctx, span := s.tracer.Start(ctx, "ProblemService.UpdateProblem")
	defer span.End()

	span.SetAttributes(
		attribute.String("user.id", userID.String()),
		attribute.String("problem.id", problemID.String()),
	)

	patch, err := metadataPatch(req)
	if err != nil {
		return nil, err
	}

	err = s.reviews.runInTx(ctx, func(tx domain.Store) error {
		state, err := tx.States().GetForUpdate(ctx, userID, problemID)
		if errors.Is(err, domain.ErrStateNotFound) {
			return domain.ErrProblemNotFound
		}
		if err != nil {
			return err
		}
		if !patch.Empty() {
			if _, err := tx.Problems().UpdateMetadata(ctx, problemID, patch); err != nil {
				return err
			}
		}
		if req.IsActive != nil && *req.IsActive != state.IsActive {
			state.IsActive = *req.IsActive
			return tx.States().Update(ctx, state)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.invalidateStats(ctx, userID)

	state, err := s.store.States().GetWithProblem(ctx, userID, problemID)
	if err != nil {
		return nil, err
	}
	out := state.ToProblemWithState(scheduling.MasteryAt(state.Reps, state.Ease, state.DueAt, s.now()))

	s.logger.Info("Problem updated",
		zap.String("user_id", userID.String()),
		zap.String("problem_id", problemID.String()),
		zap.Bool("is_active", out.State.IsActive),
	)
	return &out, nil
}

func metadataPatch(req *domain.UpdateProblemRequest) (domain.MetadataPatch, error) {
	patch := domain.MetadataPatch{Platform: req.Platform, Title: req.Title}
	if req.Difficulty != nil {
		d, err := domain.ParseDifficulty(*req.Difficulty)
		if err != nil {
			return patch, err
		}
		patch.Difficulty = &d
	}
	if req.Topics != nil {
		topics := domain.NormalizeTopics(*req.Topics)
		patch.Topics = &topics
	}
	return patch, nil
}

func (s *ProblemService) invalidateStats(ctx context.Context, userID uuid.UUID) {
	if err := s.cache.Delete(ctx, overviewCacheKey(userID)); err != nil {
		s.logger.Warn("Failed to invalidate stats cache", zap.String("user_id", userID.String()), zap.Error(err))
	}
}
