package domain

import "time"

// Overview summarizes the review workload of a user
type Overview struct {
	ActiveProblems    int `json:"active_problems"`
	OverdueCount      int `json:"overdue_count"`
	DueTodayCount     int `json:"due_today_count"`
	DueSoonCount      int `json:"due_soon_count"`
	ReviewsLast7Days  int `json:"reviews_last_7_days"`
	CurrentStreakDays int `json:"current_streak_days"`
}

// TopicStat is the average mastery of the active problems tagged with a topic
type TopicStat struct {
	Topic      string  `json:"topic"`
	Count      int     `json:"count"`
	MasteryAvg float64 `json:"mastery_avg"`
}

// StreakStats reports consecutive review days
type StreakStats struct {
	CurrentStreakDays int `json:"current_streak_days"`
}

// Contest stats window bounds
const (
	DefaultStatsWindowDays = 30
	MaxStatsWindowDays     = 180
	RecentContestsLimit    = 12
)

// ContestTotals aggregates contest activity over a window
type ContestTotals struct {
	ContestsFinished int      `json:"contests_finished"`
	ProblemsRecorded int      `json:"problems_recorded"`
	SolvedCount      int      `json:"solved_count"`
	AvgGrade         *float64 `json:"avg_grade,omitempty"`
	TotalTimeSec     int      `json:"total_time_sec"`
}

// ContestDay is one local day of the contest activity series
type ContestDay struct {
	Date string `json:"date"`
	ContestTotals
}

// RecentContest is a completed contest with its result aggregates
type RecentContest struct {
	ContestID       string     `json:"contest_id"`
	Strategy        Strategy   `json:"strategy"`
	DurationMinutes int        `json:"duration_minutes"`
	CreatedAt       time.Time  `json:"created_at"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	TotalItems      int        `json:"total_items"`
	RecordedCount   int        `json:"recorded_count"`
	SolvedCount     int        `json:"solved_count"`
	AvgGrade        *float64   `json:"avg_grade,omitempty"`
	TotalTimeSec    int        `json:"total_time_sec"`
}

// ContestStats is the response of the contest stats query
type ContestStats struct {
	WindowDays int             `json:"window_days"`
	Totals     ContestTotals   `json:"totals"`
	Days       []ContestDay    `json:"days"`
	Recent     []RecentContest `json:"recent"`
}
