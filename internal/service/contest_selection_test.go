package service

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/preptracker/backend/internal/domain"
)

var selectionNow = time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)

func stateOf(n int, d domain.Difficulty, dueAt time.Time, topics ...string) domain.UserProblemState {
	id := uuid.MustParse(fmt.Sprintf("00000000-0000-0000-0000-%012d", n))
	return domain.UserProblemState{
		ProblemID:    id,
		Reps:         2,
		Ease:         2.5,
		IntervalDays: 3,
		DueAt:        dueAt,
		IsActive:     true,
		Problem:      domain.Problem{ID: id, Difficulty: d, Topics: topics},
	}
}

func TestAllocate(t *testing.T) {
	E, M, H := domain.DifficultyEasy, domain.DifficultyMedium, domain.DifficultyHard

	tests := []struct {
		name      string
		mix       domain.DifficultyMix
		available map[domain.Difficulty]int
		want      map[domain.Difficulty]int
		wantErr   error
	}{
		{
			name:      "enough everywhere",
			mix:       domain.DifficultyMix{Easy: 1, Medium: 2, Hard: 1},
			available: map[domain.Difficulty]int{E: 3, M: 3, H: 3},
			want:      map[domain.Difficulty]int{E: 1, M: 2, H: 1},
		},
		{
			name:      "easy shortfall moves to medium",
			mix:       domain.DifficultyMix{Easy: 3, Medium: 1},
			available: map[domain.Difficulty]int{E: 1, M: 5},
			want:      map[domain.Difficulty]int{E: 1, M: 3, H: 0},
		},
		{
			name:      "hard shortfall moves back",
			mix:       domain.DifficultyMix{Hard: 3},
			available: map[domain.Difficulty]int{E: 2, M: 1, H: 1},
			want:      map[domain.Difficulty]int{E: 1, M: 1, H: 1},
		},
		{
			name:      "pool too small",
			mix:       domain.DifficultyMix{Easy: 2, Medium: 2},
			available: map[domain.Difficulty]int{E: 1, M: 2},
			wantErr:   domain.ErrNoEligibleProblems,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := allocate(tt.mix, tt.available)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("allocate: %v", err)
			}
			total := 0
			for _, d := range domain.ContestDifficulties {
				if got[d] != tt.want[d] {
					t.Fatalf("%s = %d, want %d (got %v)", d, got[d], tt.want[d], got)
				}
				total += got[d]
			}
			if total != tt.mix.Total() {
				t.Fatalf("total = %d, want %d", total, tt.mix.Total())
			}
		})
	}
}

func TestTargetMinutes(t *testing.T) {
	E, M, H := domain.DifficultyEasy, domain.DifficultyMedium, domain.DifficultyHard

	got := targetMinutes([]domain.Difficulty{E, M, H, E, M}, 60)
	want := []int{6, 13, 20, 6, 15}
	sum := 0
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("minutes = %v, want %v", got, want)
		}
		sum += got[i]
	}
	if sum != 60 {
		t.Fatalf("sum = %d", sum)
	}

	if got := targetMinutes([]domain.Difficulty{H}, 45); got[0] != 45 {
		t.Fatalf("single item = %v", got)
	}
	if got := targetMinutes(nil, 30); len(got) != 0 {
		t.Fatalf("empty = %v", got)
	}
}

func TestInterleave(t *testing.T) {
	mk := func(n int, d domain.Difficulty) candidate {
		st := stateOf(n, d, selectionNow)
		return candidate{state: &st, difficulty: d}
	}
	picks := map[domain.Difficulty][]candidate{
		domain.DifficultyEasy:   {mk(1, domain.DifficultyEasy), mk(2, domain.DifficultyEasy)},
		domain.DifficultyMedium: {mk(3, domain.DifficultyMedium)},
		domain.DifficultyHard:   {mk(4, domain.DifficultyHard), mk(5, domain.DifficultyHard), mk(6, domain.DifficultyHard)},
	}

	out := interleave(picks)
	want := []domain.Difficulty{
		domain.DifficultyEasy, domain.DifficultyMedium, domain.DifficultyHard,
		domain.DifficultyEasy, domain.DifficultyHard,
		domain.DifficultyHard,
	}
	if len(out) != len(want) {
		t.Fatalf("len = %d, want %d", len(out), len(want))
	}
	for i := range want {
		if out[i].difficulty != want[i] {
			t.Fatalf("position %d = %s, want %s", i, out[i].difficulty, want[i])
		}
	}
}

func TestSelectContestItems_SkipsIneligible(t *testing.T) {
	active := stateOf(1, domain.DifficultyEasy, selectionNow)
	archived := stateOf(2, domain.DifficultyEasy, selectionNow)
	archived.IsActive = false
	unknown := stateOf(3, domain.DifficultyUnknown, selectionNow)

	states := []domain.UserProblemState{active, archived, unknown}
	_, err := selectContestItems(states, domain.DifficultyMix{Easy: 2}, domain.StrategyBalanced, 30, selectionNow)
	if !errors.Is(err, domain.ErrNoEligibleProblems) {
		t.Fatalf("err = %v, want ErrNoEligibleProblems", err)
	}

	items, err := selectContestItems(states, domain.DifficultyMix{Easy: 1}, domain.StrategyBalanced, 30, selectionNow)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(items) != 1 || items[0].ProblemID != active.ProblemID || items[0].OrderIndex != 1 || items[0].TargetMinutes != 30 {
		t.Fatalf("items = %+v", items)
	}
}

func TestSelectContestItems_DueHeavyTakesMostOverdue(t *testing.T) {
	day := 24 * time.Hour
	states := []domain.UserProblemState{
		stateOf(1, domain.DifficultyMedium, selectionNow.Add(2*day)),
		stateOf(2, domain.DifficultyMedium, selectionNow.Add(-1*day)),
		stateOf(3, domain.DifficultyMedium, selectionNow.Add(-5*day)),
		stateOf(4, domain.DifficultyMedium, selectionNow.Add(5*day)),
	}

	items, err := selectContestItems(states, domain.DifficultyMix{Medium: 3}, domain.StrategyDueHeavy, 60, selectionNow)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("items = %d", len(items))
	}
	if items[0].ProblemID != states[2].ProblemID || items[1].ProblemID != states[1].ProblemID {
		t.Fatalf("overdue order = %s, %s", items[0].ProblemID, items[1].ProblemID)
	}
	// Both remaining are not due; balanced ranking breaks the tie by due date
	if items[2].ProblemID != states[0].ProblemID {
		t.Fatalf("filler = %s, want %s", items[2].ProblemID, states[0].ProblemID)
	}
}

func TestSelectContestItems_DueHeavySkipsRecentlyReviewedOverdue(t *testing.T) {
	reviewed := selectionNow.Add(-3 * time.Hour)
	overdue := stateOf(1, domain.DifficultyEasy, selectionNow.Add(-24*time.Hour))
	overdue.LastReviewAt = &reviewed
	upcoming := stateOf(2, domain.DifficultyEasy, selectionNow.Add(48*time.Hour))
	stale := stateOf(3, domain.DifficultyEasy, selectionNow.Add(-2*24*time.Hour))
	stale.LastReviewAt = &reviewed

	items, err := selectContestItems([]domain.UserProblemState{overdue, upcoming}, domain.DifficultyMix{Easy: 1}, domain.StrategyDueHeavy, 20, selectionNow)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if items[0].ProblemID != upcoming.ProblemID {
		t.Fatalf("picked %s, want the problem not reviewed today", items[0].ProblemID)
	}

	// Recent candidates still keep overdue order among themselves
	ranked := rank(newCandidates([]domain.UserProblemState{overdue, upcoming, stale}, selectionNow)[domain.DifficultyEasy], domain.StrategyDueHeavy, selectionNow)
	got := []string{ranked[0].id(), ranked[1].id(), ranked[2].id()}
	want := []string{upcoming.ProblemID.String(), stale.ProblemID.String(), overdue.ProblemID.String()}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("rank = %v, want %v", got, want)
		}
	}
}

func TestSelectContestItems_WeaknessTakesLowestMastery(t *testing.T) {
	strong := stateOf(1, domain.DifficultyHard, selectionNow.Add(24*time.Hour))
	strong.Reps, strong.Ease = 6, 3.0
	weak := stateOf(2, domain.DifficultyHard, selectionNow.Add(48*time.Hour))
	weak.Reps, weak.Ease = 0, 1.3

	items, err := selectContestItems([]domain.UserProblemState{strong, weak}, domain.DifficultyMix{Hard: 1}, domain.StrategyWeakness, 40, selectionNow)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if items[0].ProblemID != weak.ProblemID {
		t.Fatalf("picked %s, want the weakest", items[0].ProblemID)
	}
}

func TestSelectContestItems_RecentReviewsGoLast(t *testing.T) {
	reviewed := selectionNow.Add(-2 * time.Hour)
	fresh := stateOf(1, domain.DifficultyEasy, selectionNow.Add(-3*24*time.Hour))
	fresh.LastReviewAt = &reviewed
	older := stateOf(2, domain.DifficultyEasy, selectionNow.Add(10*24*time.Hour))

	for _, strategy := range []domain.Strategy{domain.StrategyBalanced, domain.StrategyWeakness, domain.StrategyDueHeavy} {
		items, err := selectContestItems([]domain.UserProblemState{fresh, older}, domain.DifficultyMix{Easy: 1}, strategy, 20, selectionNow)
		if err != nil {
			t.Fatalf("%s: %v", strategy, err)
		}
		if items[0].ProblemID != older.ProblemID {
			t.Fatalf("%s picked the problem reviewed two hours ago", strategy)
		}
	}
}

func TestSelectContestItems_BalancedPrefersNewTopics(t *testing.T) {
	due := selectionNow.Add(-24 * time.Hour)
	first := stateOf(1, domain.DifficultyMedium, due, "graph")
	sameTopic := stateOf(2, domain.DifficultyMedium, due, "Graph")
	newTopic := stateOf(3, domain.DifficultyMedium, due.Add(time.Hour), "dp")

	items, err := selectContestItems([]domain.UserProblemState{first, sameTopic, newTopic}, domain.DifficultyMix{Medium: 2}, domain.StrategyBalanced, 60, selectionNow)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if items[0].ProblemID != first.ProblemID || items[1].ProblemID != newTopic.ProblemID {
		t.Fatalf("picked %s, %s", items[0].ProblemID, items[1].ProblemID)
	}
}

func TestSelectContestItems_RecentFailBoostsPriority(t *testing.T) {
	failedAt := selectionNow.Add(-3 * 24 * time.Hour)
	grade := 1
	failed := stateOf(1, domain.DifficultyEasy, selectionNow.Add(24*time.Hour))
	failed.LastReviewAt, failed.LastGrade = &failedAt, &grade
	other := stateOf(2, domain.DifficultyEasy, selectionNow.Add(-24*time.Hour))

	items, err := selectContestItems([]domain.UserProblemState{other, failed}, domain.DifficultyMix{Easy: 1}, domain.StrategyBalanced, 15, selectionNow)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if items[0].ProblemID != failed.ProblemID {
		t.Fatalf("picked %s, want the recent failure", items[0].ProblemID)
	}
}
