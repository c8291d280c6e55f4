package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/preptracker/backend/internal/domain"
)

// store implements domain.Store on top of a single *gorm.DB, which is either
// the pooled connection or an open transaction.
type store struct {
	db *gorm.DB
}

// NewStore creates a Store backed by db
func NewStore(db *gorm.DB) domain.Store {
	return &store{db: db}
}

func (s *store) Problems() domain.ProblemRepository { return NewProblemRepository(s.db) }
func (s *store) States() domain.StateRepository     { return NewStateRepository(s.db) }
func (s *store) Reviews() domain.ReviewRepository   { return NewReviewRepository(s.db) }
func (s *store) Contests() domain.ContestRepository { return NewContestRepository(s.db) }
func (s *store) Users() domain.UserRepository       { return NewUserRepository(s.db) }

// Transaction runs fn inside a database transaction. Nested calls use
// savepoints.
func (s *store) Transaction(ctx context.Context, fn func(tx domain.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&store{db: tx})
	})
}
