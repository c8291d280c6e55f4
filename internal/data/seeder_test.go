package data

import (
	"context"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/preptracker/backend/internal/domain"
	"github.com/preptracker/backend/internal/repository"
	"github.com/preptracker/backend/internal/testutil"
)

func TestStarterProblems(t *testing.T) {
	problems, err := StarterProblems()
	if err != nil {
		t.Fatalf("StarterProblems: %v", err)
	}
	if len(problems) != 24 {
		t.Fatalf("got %d problems", len(problems))
	}

	counts := map[domain.Difficulty]int{}
	urls := map[string]bool{}
	for _, p := range problems {
		counts[p.Difficulty]++
		if urls[p.URL] {
			t.Fatalf("duplicate url %s", p.URL)
		}
		urls[p.URL] = true
		if strings.HasSuffix(p.URL, "/") || p.Title == "" || len(p.Topics) == 0 {
			t.Fatalf("problem not normalized: %+v", p)
		}
	}
	if counts[domain.DifficultyEasy] != 8 || counts[domain.DifficultyMedium] != 10 || counts[domain.DifficultyHard] != 6 {
		t.Fatalf("difficulty counts = %v", counts)
	}
	if problems[0].URL != "https://leetcode.com/problems/two-sum" || problems[0].Topics[0] != "Array" {
		t.Fatalf("first problem = %+v", problems[0])
	}
}

func TestSeedProblemsIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewStore(testutil.NewDB(t)).Problems()
	seeder := NewSeeder(repo, zap.NewNop())

	for i := 0; i < 2; i++ {
		if err := seeder.SeedProblems(ctx); err != nil {
			t.Fatalf("seed run %d: %v", i+1, err)
		}
	}

	count, err := repo.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 24 {
		t.Fatalf("catalog size = %d, want 24", count)
	}
}
