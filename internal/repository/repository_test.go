package repository

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/preptracker/backend/internal/domain"
	"github.com/preptracker/backend/internal/testutil"
)

var due = time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)

func setup(t *testing.T) (context.Context, domain.Store, *domain.User) {
	t.Helper()
	db := testutil.NewDB(t)
	return context.Background(), NewStore(db), testutil.CreateUser(t, db, "repo@example.com", "UTC")
}

func catalog(t *testing.T, ctx context.Context, s domain.Store, url string, d domain.Difficulty, topics ...string) *domain.Problem {
	t.Helper()
	p, err := s.Problems().CreateOrGet(ctx, &domain.Problem{URL: url, Difficulty: d, Topics: topics})
	if err != nil {
		t.Fatalf("CreateOrGet(%s): %v", url, err)
	}
	return p
}

func TestProblemRepository_CreateOrGet(t *testing.T) {
	ctx, s, _ := setup(t)

	first := catalog(t, ctx, s, "https://leetcode.com/problems/two-sum", domain.DifficultyUnknown)
	again, err := s.Problems().CreateOrGet(ctx, &domain.Problem{
		URL:        "https://leetcode.com/problems/two-sum",
		Title:      "Two Sum",
		Difficulty: domain.DifficultyEasy,
		Topics:     domain.Topics{"Array", "Hash Table"},
	})
	if err != nil {
		t.Fatalf("second CreateOrGet: %v", err)
	}
	if again.ID != first.ID {
		t.Fatalf("ids differ: %s vs %s", again.ID, first.ID)
	}
	if again.Title != "Two Sum" || again.Difficulty != domain.DifficultyEasy {
		t.Fatalf("empty metadata not filled: %+v", again)
	}
	if !reflect.DeepEqual([]string(again.Topics), []string{"Array", "Hash Table"}) {
		t.Fatalf("topics = %v", again.Topics)
	}

	if n, err := s.Problems().Count(ctx); err != nil || n != 1 {
		t.Fatalf("count = %d (err %v)", n, err)
	}
	if _, err := s.Problems().FindByID(ctx, uuid.New()); !errors.Is(err, domain.ErrProblemNotFound) {
		t.Fatalf("FindByID unknown: %v", err)
	}
}

func TestStateRepository_UpdateIsCompareAndSwap(t *testing.T) {
	ctx, s, user := setup(t)
	p := catalog(t, ctx, s, "https://leetcode.com/problems/cas", domain.DifficultyMedium)

	if err := s.States().Create(ctx, domain.NewUserProblemState(user.ID, p.ID, due)); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.States().Create(ctx, domain.NewUserProblemState(user.ID, p.ID, due)); !errors.Is(err, domain.ErrStaleState) {
		t.Fatalf("duplicate create: %v", err)
	}

	a, err := s.States().Get(ctx, user.ID, p.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	b, err := s.States().Get(ctx, user.ID, p.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	a.Reps = 1
	if err := s.States().Update(ctx, a); err != nil {
		t.Fatalf("first update: %v", err)
	}
	if a.Version != 1 {
		t.Fatalf("version = %d, want 1", a.Version)
	}

	b.Reps = 7
	if err := s.States().Update(ctx, b); !errors.Is(err, domain.ErrStaleState) {
		t.Fatalf("stale update: %v", err)
	}

	got, err := s.States().Get(ctx, user.ID, p.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Reps != 1 || got.Version != 1 {
		t.Fatalf("state = %+v", got)
	}
}

func TestStateRepository_ListDue(t *testing.T) {
	ctx, s, user := setup(t)
	early := catalog(t, ctx, s, "https://leetcode.com/problems/early", domain.DifficultyEasy)
	late := catalog(t, ctx, s, "https://leetcode.com/problems/late", domain.DifficultyEasy)
	archived := catalog(t, ctx, s, "https://leetcode.com/problems/archived", domain.DifficultyEasy)

	for _, st := range []*domain.UserProblemState{
		domain.NewUserProblemState(user.ID, early.ID, due),
		domain.NewUserProblemState(user.ID, late.ID, due.Add(48*time.Hour)),
		domain.NewUserProblemState(user.ID, archived.ID, due),
	} {
		if err := s.States().Create(ctx, st); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	st, _ := s.States().Get(ctx, user.ID, archived.ID)
	st.IsActive = false
	if err := s.States().Update(ctx, st); err != nil {
		t.Fatalf("archive: %v", err)
	}

	rows, err := s.States().ListDue(ctx, user.ID, due)
	if err != nil {
		t.Fatalf("ListDue: %v", err)
	}
	if len(rows) != 1 || rows[0].ProblemID != early.ID || rows[0].Problem.URL != early.URL {
		t.Fatalf("due rows = %+v", rows)
	}

	all, err := s.States().ListAll(ctx, user.ID)
	if err != nil || len(all) != 3 {
		t.Fatalf("ListAll = %d rows (err %v)", len(all), err)
	}
	active, err := s.States().ListActive(ctx, user.ID)
	if err != nil || len(active) != 2 || active[1].ProblemID != late.ID {
		t.Fatalf("ListActive = %+v (err %v)", active, err)
	}
}

func TestStore_TransactionRollsBack(t *testing.T) {
	ctx, s, user := setup(t)
	p := catalog(t, ctx, s, "https://leetcode.com/problems/rollback", domain.DifficultyHard)
	boom := errors.New("boom")

	err := s.Transaction(ctx, func(tx domain.Store) error {
		if err := tx.States().Create(ctx, domain.NewUserProblemState(user.ID, p.ID, due)); err != nil {
			return err
		}
		if err := tx.Reviews().Create(ctx, &domain.ReviewEvent{UserID: user.ID, ProblemID: p.ID, Grade: 3, Source: domain.SourceWeb, ReviewedAt: due}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}

	if _, err := s.States().Get(ctx, user.ID, p.ID); !errors.Is(err, domain.ErrStateNotFound) {
		t.Fatalf("state survived rollback: %v", err)
	}
	if n, _ := s.Reviews().CountSince(ctx, user.ID, due.Add(-time.Hour)); n != 0 {
		t.Fatalf("events survived rollback: %d", n)
	}
}

func TestReviewRepository_Queries(t *testing.T) {
	ctx, s, user := setup(t)
	p := catalog(t, ctx, s, "https://leetcode.com/problems/events", domain.DifficultyEasy)

	for i, grade := range []int{1, 3, 4} {
		ev := &domain.ReviewEvent{
			UserID: user.ID, ProblemID: p.ID, Grade: grade, Source: domain.SourceWeb,
			ReviewedAt: due.Add(time.Duration(i) * 24 * time.Hour),
		}
		if err := s.Reviews().Create(ctx, ev); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	events, err := s.Reviews().ListByProblem(ctx, user.ID, p.ID, 2)
	if err != nil || len(events) != 2 || events[0].Grade != 4 || events[1].Grade != 3 {
		t.Fatalf("ListByProblem = %+v (err %v)", events, err)
	}

	since := due.Add(24 * time.Hour)
	if n, err := s.Reviews().CountSince(ctx, user.ID, since); err != nil || n != 2 {
		t.Fatalf("CountSince = %d (err %v)", n, err)
	}
	times, err := s.Reviews().ReviewTimesSince(ctx, user.ID, since)
	if err != nil || len(times) != 2 || !times[0].Equal(due.Add(48*time.Hour)) {
		t.Fatalf("ReviewTimesSince = %v (err %v)", times, err)
	}
}

func TestContestRepository_RecordResultOnce(t *testing.T) {
	ctx, s, user := setup(t)
	easy := catalog(t, ctx, s, "https://leetcode.com/problems/c-easy", domain.DifficultyEasy)
	hard := catalog(t, ctx, s, "https://leetcode.com/problems/c-hard", domain.DifficultyHard)

	contest := &domain.Contest{
		UserID:          user.ID,
		DurationMinutes: 40,
		Strategy:        domain.StrategyBalanced,
		Status:          domain.ContestStatusCreated,
		Items: []domain.ContestItem{
			{ProblemID: hard.ID, OrderIndex: 2, TargetMinutes: 30, Difficulty: domain.DifficultyHard},
			{ProblemID: easy.ID, OrderIndex: 1, TargetMinutes: 10, Difficulty: domain.DifficultyEasy},
		},
	}
	if err := s.Contests().Create(ctx, contest); err != nil {
		t.Fatalf("Create: %v", err)
	}

	loaded, err := s.Contests().FindByID(ctx, user.ID, contest.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if len(loaded.Items) != 2 || loaded.Items[0].ProblemID != easy.ID || loaded.Items[0].Problem.URL != easy.URL {
		t.Fatalf("items not ordered or problems not loaded: %+v", loaded.Items)
	}
	if _, err := s.Contests().FindByID(ctx, uuid.New(), contest.ID); !errors.Is(err, domain.ErrContestNotFound) {
		t.Fatalf("other user FindByID: %v", err)
	}

	res := domain.ItemResult{Grade: 3, SolvedFlag: true, RecordedAt: due}
	if err := s.Contests().RecordResult(ctx, contest.ID, easy.ID, res); err != nil {
		t.Fatalf("RecordResult: %v", err)
	}
	res.Grade = 0
	if err := s.Contests().RecordResult(ctx, contest.ID, easy.ID, res); !errors.Is(err, domain.ErrAlreadyRecorded) {
		t.Fatalf("second RecordResult: %v", err)
	}

	item, err := s.Contests().FindItem(ctx, contest.ID, easy.ID)
	if err != nil {
		t.Fatalf("FindItem: %v", err)
	}
	if !item.Recorded() || *item.Grade != 3 || !*item.SolvedFlag {
		t.Fatalf("item = %+v", item)
	}
	if _, err := s.Contests().FindItem(ctx, contest.ID, uuid.New()); !errors.Is(err, domain.ErrItemNotFound) {
		t.Fatalf("FindItem unknown: %v", err)
	}

	results, err := s.Contests().FindResultsSince(ctx, user.ID, due)
	if err != nil || len(results) != 1 || results[0].ProblemID != easy.ID {
		t.Fatalf("FindResultsSince = %+v (err %v)", results, err)
	}
}

func TestContestRepository_StatusAndHistory(t *testing.T) {
	ctx, s, user := setup(t)
	p := catalog(t, ctx, s, "https://leetcode.com/problems/hist", domain.DifficultyMedium)

	contest := &domain.Contest{
		UserID: user.ID, DurationMinutes: 30, Strategy: domain.StrategyWeakness, Status: domain.ContestStatusCreated,
		Items: []domain.ContestItem{{ProblemID: p.ID, OrderIndex: 1, TargetMinutes: 30, Difficulty: domain.DifficultyMedium}},
	}
	if err := s.Contests().Create(ctx, contest); err != nil {
		t.Fatalf("Create: %v", err)
	}

	locked, err := s.Contests().FindByIDForUpdate(ctx, user.ID, contest.ID)
	if err != nil {
		t.Fatalf("FindByIDForUpdate: %v", err)
	}
	if err := locked.Start(due); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := locked.Complete(due.Add(20 * time.Minute)); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if err := s.Contests().UpdateStatus(ctx, locked); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	done, err := s.Contests().FindCompletedSince(ctx, user.ID, due)
	if err != nil || len(done) != 1 || done[0].Status != domain.ContestStatusCompleted {
		t.Fatalf("FindCompletedSince = %+v (err %v)", done, err)
	}
	recent, err := s.Contests().FindRecentCompleted(ctx, user.ID, 5)
	if err != nil || len(recent) != 1 || len(recent[0].Items) != 1 {
		t.Fatalf("FindRecentCompleted = %+v (err %v)", recent, err)
	}
	if later, _ := s.Contests().FindCompletedSince(ctx, user.ID, due.Add(time.Hour)); len(later) != 0 {
		t.Fatalf("completed window filter ignored: %+v", later)
	}
}

func TestUserRepository_Settings(t *testing.T) {
	ctx, s, user := setup(t)

	got, err := s.Users().GetSettings(ctx, user.ID)
	if err != nil || got.Timezone != "UTC" {
		t.Fatalf("GetSettings = %+v (err %v)", got, err)
	}

	got.MinIntervalDays = 3
	if err := s.Users().SaveSettings(ctx, &got); err != nil {
		t.Fatalf("SaveSettings: %v", err)
	}
	reloaded, err := s.Users().FindByID(ctx, user.ID)
	if err != nil || reloaded.Settings.MinIntervalDays != 3 {
		t.Fatalf("FindByID = %+v (err %v)", reloaded, err)
	}

	stranger := uuid.New()
	defaults, err := s.Users().GetSettings(ctx, stranger)
	if err != nil || defaults != domain.DefaultSettings(stranger) {
		t.Fatalf("default settings = %+v (err %v)", defaults, err)
	}

	if err := s.Users().Create(ctx, &domain.User{Email: "repo@example.com", PasswordHash: "x"}); !errors.Is(err, domain.ErrUserAlreadyExists) {
		t.Fatalf("duplicate email: %v", err)
	}
}
