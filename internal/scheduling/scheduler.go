// Package scheduling holds the pure spaced-repetition rules: how a grade
// moves ease, interval and due date, and how mastery is estimated.
package scheduling

import (
	"math"
	"time"

	"github.com/preptracker/backend/internal/domain"
)

// Ease bounds and adjustments
const (
	EaseFloor   = 1.3
	EaseCeiling = 3.0

	easeBonusPerfect = 0.15
	easePenaltyFail  = 0.20
)

// State is the part of a per-user problem state the scheduler reads and writes
type State struct {
	Reps         int
	Ease         float64
	IntervalDays int
}

// InitialState is the state of a problem that was never reviewed
func InitialState() State {
	return State{Reps: 0, Ease: domain.InitialEase, IntervalDays: domain.InitialIntervalDays}
}

// Settings are the user preferences that shape due dates
type Settings struct {
	Location        *time.Location
	MinIntervalDays int
	DueHour         int
	DueMinute       int
}

// SettingsFrom resolves stored user settings into scheduler settings
func SettingsFrom(us domain.UserSettings) Settings {
	minInterval := us.MinIntervalDays
	if minInterval < 1 {
		minInterval = domain.DefaultMinIntervalDays
	}
	return Settings{
		Location:        LoadLocation(us.Timezone),
		MinIntervalDays: minInterval,
		DueHour:         us.DueHourLocal,
		DueMinute:       us.DueMinuteLocal,
	}
}

// Outcome is the scheduler result for one review
type Outcome struct {
	State
	DueAt time.Time
}

// Apply computes the state after a review with grade at time at.
func Apply(prev State, grade int, at time.Time, s Settings) (Outcome, error) {
	if !domain.ValidGrade(grade) {
		return Outcome{}, domain.ErrInvalidGrade
	}
	if s.Location == nil {
		s.Location = time.UTC
	}
	if prev.Ease < EaseFloor {
		prev.Ease = EaseFloor
	}
	if prev.IntervalDays < 1 {
		prev.IntervalDays = 1
	}

	var next State
	if grade < domain.GradePass {
		next = State{
			Reps:         0,
			Ease:         roundEase(prev.Ease - easePenaltyFail),
			IntervalDays: 1,
		}
	} else {
		ease := prev.Ease
		if grade == domain.MaxGrade {
			ease += easeBonusPerfect
		}
		ease = roundEase(ease)
		interval := int(math.Round(float64(prev.IntervalDays) * ease))
		if interval < s.MinIntervalDays {
			interval = s.MinIntervalDays
		}
		if interval < 1 {
			interval = 1
		}
		next = State{Reps: prev.Reps + 1, Ease: ease, IntervalDays: interval}
	}

	return Outcome{
		State: next,
		DueAt: DueAt(at, next.IntervalDays, s.Location, s.DueHour, s.DueMinute),
	}, nil
}

// InitialDueAt is when a newly tracked problem first comes due: its local
// day at the user's due time.
func InitialDueAt(now time.Time, s Settings) time.Time {
	loc := s.Location
	if loc == nil {
		loc = time.UTC
	}
	return DueAt(now, 0, loc, s.DueHour, s.DueMinute)
}

func roundEase(e float64) float64 {
	e = math.Round(e*100) / 100
	return clamp(e, EaseFloor, EaseCeiling)
}
