package data

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/preptracker/backend/internal/domain"
)

//go:embed starter_catalog.json
var starterCatalogData []byte

// problemJSON represents the JSON structure for problems
type problemJSON struct {
	Title      string   `json:"title"`
	Platform   string   `json:"platform"`
	URL        string   `json:"url"`
	Difficulty string   `json:"difficulty"`
	Topics     []string `json:"topics"`
}

// Seeder handles database seeding operations
type Seeder struct {
	problems domain.ProblemRepository
	logger   *zap.Logger
}

// NewSeeder creates a new database seeder
func NewSeeder(problems domain.ProblemRepository, logger *zap.Logger) *Seeder {
	return &Seeder{
		problems: problems,
		logger:   logger,
	}
}

// SeedProblems catalogs the embedded starter problems. Problems already
// catalogued by URL are left as they are, so seeding is safe to repeat.
// Seeding only fills the shared catalog; nothing is tracked for any user.
func (s *Seeder) SeedProblems(ctx context.Context) error {
	s.logger.Info("Starting to seed problems...")

	problems, err := StarterProblems()
	if err != nil {
		return err
	}

	for i := range problems {
		if _, err := s.problems.CreateOrGet(ctx, &problems[i]); err != nil {
			return fmt.Errorf("seed %s: %w", problems[i].URL, err)
		}
	}

	count, err := s.problems.Count(ctx)
	if err != nil {
		return err
	}
	s.logger.Info("Successfully seeded problems",
		zap.Int("starter", len(problems)),
		zap.Int64("catalog_size", count),
	)
	return nil
}

// StarterProblems returns the embedded starter catalog, normalized the same
// way user-added problems are
func StarterProblems() ([]domain.Problem, error) {
	var problemsJSON []problemJSON
	if err := json.Unmarshal(starterCatalogData, &problemsJSON); err != nil {
		return nil, err
	}

	problems := make([]domain.Problem, len(problemsJSON))
	for i, p := range problemsJSON {
		difficulty, err := domain.ParseDifficulty(p.Difficulty)
		if err != nil {
			return nil, fmt.Errorf("starter problem %q: %w", p.Title, err)
		}
		problems[i] = domain.Problem{
			URL:        domain.NormalizeURL(p.URL),
			Platform:   p.Platform,
			Title:      p.Title,
			Difficulty: difficulty,
			Topics:     domain.NormalizeTopics(p.Topics),
		}
	}

	return problems, nil
}
