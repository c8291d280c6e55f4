package scheduling

import (
	"math"
	"time"
)

const maxOverduePenalty = 30

// Mastery estimates how well a problem is retained, in [0, 100].
// Every surface that shows or ranks by mastery goes through here.
func Mastery(reps int, ease float64, overdueDays int) float64 {
	penalty := math.Min(maxOverduePenalty, float64(2*overdueDays))
	m := 20*math.Log2(float64(reps)+1) + 25*(ease-1.3) - penalty
	return clamp(m, 0, 100)
}

// OverdueDays counts whole days past due; zero when not yet due.
func OverdueDays(now, dueAt time.Time) int {
	if !now.After(dueAt) {
		return 0
	}
	return int(math.Floor(now.Sub(dueAt).Hours() / 24))
}

// MasteryAt is Mastery for a state observed at now
func MasteryAt(reps int, ease float64, dueAt, now time.Time) float64 {
	return Mastery(reps, ease, OverdueDays(now, dueAt))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
