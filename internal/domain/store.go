package domain

import "context"

// Store groups the repositories so a service can run several of them in one
// transaction. Repositories obtained from the tx Store passed to fn share the
// transaction; fn returning an error rolls everything back.
type Store interface {
	Problems() ProblemRepository
	States() StateRepository
	Reviews() ReviewRepository
	Contests() ContestRepository
	Users() UserRepository
	Transaction(ctx context.Context, fn func(tx Store) error) error
}
