package scheduling

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/preptracker/backend/internal/domain"
)

func utcSettings(minInterval int) Settings {
	return Settings{Location: time.UTC, MinIntervalDays: minInterval, DueHour: 9, DueMinute: 0}
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestApply_Branches(t *testing.T) {
	at := time.Date(2024, 3, 10, 15, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		prev         State
		grade        int
		minInterval  int
		wantReps     int
		wantEase     float64
		wantInterval int
		wantDue      time.Time
	}{
		{
			name:  "perfect from initial",
			prev:  InitialState(),
			grade: 4, minInterval: 1,
			wantReps: 1, wantEase: 2.65, wantInterval: 3,
			wantDue: time.Date(2024, 3, 13, 9, 0, 0, 0, time.UTC),
		},
		{
			name:  "pass keeps ease flat",
			prev:  InitialState(),
			grade: 3, minInterval: 1,
			wantReps: 1, wantEase: 2.5, wantInterval: 3,
			wantDue: time.Date(2024, 3, 13, 9, 0, 0, 0, time.UTC),
		},
		{
			name:  "failure resets reps and interval",
			prev:  State{Reps: 3, Ease: 2.0, IntervalDays: 10},
			grade: 2, minInterval: 1,
			wantReps: 0, wantEase: 1.8, wantInterval: 1,
			wantDue: time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC),
		},
		{
			name:  "failure ignores min interval",
			prev:  State{Reps: 1, Ease: 2.5, IntervalDays: 3},
			grade: 0, minInterval: 7,
			wantReps: 0, wantEase: 2.3, wantInterval: 1,
			wantDue: time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC),
		},
		{
			name:  "ease floor",
			prev:  State{Reps: 0, Ease: 1.35, IntervalDays: 1},
			grade: 1, minInterval: 1,
			wantReps: 0, wantEase: 1.3, wantInterval: 1,
			wantDue: time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC),
		},
		{
			name:  "ease ceiling",
			prev:  State{Reps: 5, Ease: 2.95, IntervalDays: 10},
			grade: 4, minInterval: 1,
			wantReps: 6, wantEase: 3.0, wantInterval: 30,
			wantDue: time.Date(2024, 4, 9, 9, 0, 0, 0, time.UTC),
		},
		{
			name:  "min interval lifts short success",
			prev:  InitialState(),
			grade: 3, minInterval: 7,
			wantReps: 1, wantEase: 2.5, wantInterval: 7,
			wantDue: time.Date(2024, 3, 17, 9, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Apply(tt.prev, tt.grade, at, utcSettings(tt.minInterval))
			if err != nil {
				t.Fatalf("Apply: %v", err)
			}
			if out.Reps != tt.wantReps {
				t.Errorf("reps = %d, want %d", out.Reps, tt.wantReps)
			}
			if !approx(out.Ease, tt.wantEase) {
				t.Errorf("ease = %v, want %v", out.Ease, tt.wantEase)
			}
			if out.IntervalDays != tt.wantInterval {
				t.Errorf("interval = %d, want %d", out.IntervalDays, tt.wantInterval)
			}
			if !out.DueAt.Equal(tt.wantDue) {
				t.Errorf("due = %s, want %s", out.DueAt, tt.wantDue)
			}
		})
	}
}

func TestApply_RejectsOutOfRangeGrades(t *testing.T) {
	for _, g := range []int{-1, 5, 100} {
		if _, err := Apply(InitialState(), g, time.Now(), utcSettings(1)); !errors.Is(err, domain.ErrInvalidGrade) {
			t.Fatalf("grade %d: err = %v, want ErrInvalidGrade", g, err)
		}
	}
}

func TestApply_SuccessNeverShrinksInterval(t *testing.T) {
	at := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	for _, start := range []State{
		{Reps: 0, Ease: EaseFloor, IntervalDays: 1},
		{Reps: 2, Ease: 1.4, IntervalDays: 2},
		InitialState(),
	} {
		state := start
		for i := 0; i < 12; i++ {
			grade := 3 + i%2
			out, err := Apply(state, grade, at, utcSettings(1))
			if err != nil {
				t.Fatalf("Apply: %v", err)
			}
			if out.IntervalDays < state.IntervalDays {
				t.Fatalf("interval shrank from %d to %d", state.IntervalDays, out.IntervalDays)
			}
			if out.Ease < EaseFloor || out.Ease > EaseCeiling {
				t.Fatalf("ease %v out of bounds", out.Ease)
			}
			state = out.State
		}
	}
}

func TestApply_AnchorsDueInUserTimezone(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tz database unavailable: %v", err)
	}
	// 22:30 local on Mar 9; the next local day crosses the DST switch.
	at := time.Date(2024, 3, 10, 3, 30, 0, 0, time.UTC)
	out, err := Apply(InitialState(), 0, at, Settings{Location: ny, MinIntervalDays: 1, DueHour: 9})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	want := time.Date(2024, 3, 10, 13, 0, 0, 0, time.UTC)
	if !out.DueAt.Equal(want) {
		t.Fatalf("due = %s, want %s", out.DueAt, want)
	}
	if out.DueAt.Location() != time.UTC {
		t.Fatalf("due not normalized to UTC: %s", out.DueAt.Location())
	}
}

func TestSettingsFrom_FallsBackToUTC(t *testing.T) {
	s := SettingsFrom(domain.UserSettings{Timezone: "Mars/Olympus", MinIntervalDays: 0, DueHourLocal: 7, DueMinuteLocal: 30})
	if s.Location != time.UTC {
		t.Fatalf("location = %s, want UTC", s.Location)
	}
	if s.MinIntervalDays != 1 {
		t.Fatalf("min interval = %d, want 1", s.MinIntervalDays)
	}
	due := InitialDueAt(time.Date(2024, 5, 1, 20, 0, 0, 0, time.UTC), s)
	if want := time.Date(2024, 5, 1, 7, 30, 0, 0, time.UTC); !due.Equal(want) {
		t.Fatalf("initial due = %s, want %s", due, want)
	}
}
