package service

import (
	"sort"
	"time"

	"github.com/preptracker/backend/internal/domain"
	"github.com/preptracker/backend/internal/scheduling"
)

const (
	recentReviewWindow = 24 * time.Hour
	recentFailWindow   = 14 * 24 * time.Hour
	recentFailMaxGrade = 1
)

// candidate is an eligible state with the numbers ranking needs
type candidate struct {
	state      *domain.UserProblemState
	difficulty domain.Difficulty
	mastery    float64
	overdue    int
	recent     bool
	recentFail bool
}

func (c candidate) id() string { return c.state.ProblemID.String() }

// priority is the balanced score, higher first
func (c candidate) priority() float64 {
	p := 3*float64(c.overdue) + 2*(100-c.mastery)
	if c.recentFail {
		p += 15
	}
	return p
}

func newCandidates(states []domain.UserProblemState, now time.Time) map[domain.Difficulty][]candidate {
	buckets := make(map[domain.Difficulty][]candidate, len(domain.ContestDifficulties))
	for i := range states {
		st := &states[i]
		if !st.IsActive {
			continue
		}
		d := st.Problem.Difficulty
		if d.Weight() == 0 {
			continue
		}
		fail := st.LastGrade != nil && *st.LastGrade <= recentFailMaxGrade && st.ReviewedWithin(now, recentFailWindow)
		buckets[d] = append(buckets[d], candidate{
			state:      st,
			difficulty: d,
			mastery:    scheduling.MasteryAt(st.Reps, st.Ease, st.DueAt, now),
			overdue:    scheduling.OverdueDays(now, st.DueAt),
			recent:     st.ReviewedWithin(now, recentReviewWindow),
			recentFail: fail,
		})
	}
	return buckets
}

func byDueThenID(a, b candidate) bool {
	if !a.state.DueAt.Equal(b.state.DueAt) {
		return a.state.DueAt.Before(b.state.DueAt)
	}
	return a.id() < b.id()
}

func balancedLess(a, b candidate) bool {
	if a.recent != b.recent {
		return !a.recent
	}
	if pa, pb := a.priority(), b.priority(); pa != pb {
		return pa > pb
	}
	return byDueThenID(a, b)
}

func weaknessLess(a, b candidate) bool {
	if a.recent != b.recent {
		return !a.recent
	}
	if a.mastery != b.mastery {
		return a.mastery < b.mastery
	}
	return byDueThenID(a, b)
}

// rank orders one bucket by strategy
func rank(cands []candidate, strategy domain.Strategy, now time.Time) []candidate {
	out := append([]candidate(nil), cands...)
	switch strategy {
	case domain.StrategyWeakness:
		sort.SliceStable(out, func(i, j int) bool { return weaknessLess(out[i], out[j]) })
		return out
	case domain.StrategyDueHeavy:
		var fresh, recent []candidate
		for _, c := range out {
			if c.recent {
				recent = append(recent, c)
			} else {
				fresh = append(fresh, c)
			}
		}
		return append(dueFirst(fresh, now), dueFirst(recent, now)...)
	default:
		return preferNewTopics(out)
	}
}

// dueFirst puts due candidates first, most overdue leading, and fills the
// rest in balanced order
func dueFirst(cands []candidate, now time.Time) []candidate {
	var overdue, rest []candidate
	for _, c := range cands {
		if !c.state.DueAt.After(now) {
			overdue = append(overdue, c)
		} else {
			rest = append(rest, c)
		}
	}
	sort.SliceStable(overdue, func(i, j int) bool { return byDueThenID(overdue[i], overdue[j]) })
	return append(overdue, preferNewTopics(rest)...)
}

// preferNewTopics sorts by balanced order, then greedily pulls forward the
// best candidate of the current tier that adds a topic not yet covered.
func preferNewTopics(cands []candidate) []candidate {
	sort.SliceStable(cands, func(i, j int) bool { return balancedLess(cands[i], cands[j]) })

	seen := make(map[string]bool)
	out := make([]candidate, 0, len(cands))
	rest := cands
	for len(rest) > 0 {
		pick := 0
		for i, c := range rest {
			if c.recent != rest[0].recent {
				break
			}
			if addsTopic(c, seen) {
				pick = i
				break
			}
		}
		chosen := rest[pick]
		out = append(out, chosen)
		for _, k := range chosen.state.Problem.Topics.Keys() {
			seen[k] = true
		}
		rest = append(rest[:pick:pick], rest[pick+1:]...)
	}
	return out
}

func addsTopic(c candidate, seen map[string]bool) bool {
	for _, k := range c.state.Problem.Topics.Keys() {
		if !seen[k] {
			return true
		}
	}
	return false
}

// allocate turns requested counts into counts the buckets can fill. A
// shortfall moves forward easy to medium to hard, then what is still missing
// moves back from hard to medium to easy.
func allocate(mix domain.DifficultyMix, available map[domain.Difficulty]int) (map[domain.Difficulty]int, error) {
	order := domain.ContestDifficulties
	total, pool := mix.Total(), 0
	for _, d := range order {
		pool += available[d]
	}
	if pool < total {
		return nil, domain.ErrNoEligibleProblems
	}

	got := make(map[domain.Difficulty]int, len(order))
	carry := 0
	for _, d := range order {
		want := mix.Count(d) + carry
		take := min(want, available[d])
		got[d] = take
		carry = want - take
	}
	for i := len(order) - 1; i >= 0 && carry > 0; i-- {
		d := order[i]
		extra := min(carry, available[d]-got[d])
		got[d] += extra
		carry -= extra
	}
	return got, nil
}

// interleave takes picks round-robin across difficulties in easy, medium,
// hard order
func interleave(picks map[domain.Difficulty][]candidate) []candidate {
	var out []candidate
	for i := 0; ; i++ {
		added := false
		for _, d := range domain.ContestDifficulties {
			if i < len(picks[d]) {
				out = append(out, picks[d][i])
				added = true
			}
		}
		if !added {
			return out
		}
	}
}

// targetMinutes splits duration by difficulty weight. Each item gets the
// floor of its share and the last item takes the remainder, so the result
// always sums to duration.
func targetMinutes(difficulties []domain.Difficulty, duration int) []int {
	out := make([]int, len(difficulties))
	if len(difficulties) == 0 {
		return out
	}
	weightSum := 0
	for _, d := range difficulties {
		weightSum += d.Weight()
	}
	assigned := 0
	for i, d := range difficulties {
		out[i] = duration * d.Weight() / weightSum
		assigned += out[i]
	}
	out[len(out)-1] += duration - assigned
	return out
}

// selectContestItems builds the frozen items of a contest from the user's
// states
func selectContestItems(states []domain.UserProblemState, mix domain.DifficultyMix, strategy domain.Strategy, duration int, now time.Time) ([]domain.ContestItem, error) {
	buckets := newCandidates(states, now)
	available := make(map[domain.Difficulty]int, len(buckets))
	for d, cands := range buckets {
		available[d] = len(cands)
	}

	counts, err := allocate(mix, available)
	if err != nil {
		return nil, err
	}

	picks := make(map[domain.Difficulty][]candidate, len(counts))
	for _, d := range domain.ContestDifficulties {
		if counts[d] == 0 {
			continue
		}
		picks[d] = rank(buckets[d], strategy, now)[:counts[d]]
	}

	ordered := interleave(picks)
	diffs := make([]domain.Difficulty, len(ordered))
	for i, c := range ordered {
		diffs[i] = c.difficulty
	}
	minutes := targetMinutes(diffs, duration)

	items := make([]domain.ContestItem, len(ordered))
	for i, c := range ordered {
		items[i] = domain.ContestItem{
			ProblemID:     c.state.ProblemID,
			OrderIndex:    i + 1,
			TargetMinutes: minutes[i],
			Difficulty:    c.difficulty,
			Problem:       c.state.Problem,
		}
	}
	return items, nil
}
