package domain

import (
	"context"
	"database/sql/driver"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// Difficulty represents the difficulty level of a problem
type Difficulty string

const (
	DifficultyEasy    Difficulty = "easy"
	DifficultyMedium  Difficulty = "medium"
	DifficultyHard    Difficulty = "hard"
	DifficultyUnknown Difficulty = "unknown"
)

// ContestDifficulties lists the difficulties a contest can draw from, in
// presentation order.
var ContestDifficulties = []Difficulty{DifficultyEasy, DifficultyMedium, DifficultyHard}

// ParseDifficulty validates a difficulty string. An empty value is unknown.
func ParseDifficulty(raw string) (Difficulty, error) {
	switch d := Difficulty(strings.ToLower(strings.TrimSpace(raw))); d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard, DifficultyUnknown:
		return d, nil
	case "":
		return DifficultyUnknown, nil
	default:
		return "", ErrInvalidDifficulty
	}
}

// Weight returns the relative effort of a difficulty, used for sorting and
// for splitting contest time.
func (d Difficulty) Weight() int {
	switch d {
	case DifficultyEasy:
		return 1
	case DifficultyMedium:
		return 2
	case DifficultyHard:
		return 3
	default:
		return 0
	}
}

// Topics is a topic set stored as a Postgres text[] (plain text elsewhere).
type Topics []string

// NormalizeTopics trims entries, drops empties and removes case-insensitive
// duplicates while keeping the first spelling.
func NormalizeTopics(in []string) Topics {
	out := make(Topics, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, t := range in {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		key := strings.ToLower(t)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, t)
	}
	return out
}

// Keys returns the lower-cased topic set used for matching.
func (t Topics) Keys() []string {
	keys := make([]string, 0, len(t))
	for _, topic := range NormalizeTopics(t) {
		keys = append(keys, strings.ToLower(topic))
	}
	return keys
}

func (t Topics) Value() (driver.Value, error) {
	if t == nil {
		t = Topics{}
	}
	return pq.StringArray(t).Value()
}

func (t *Topics) Scan(src interface{}) error {
	return (*pq.StringArray)(t).Scan(src)
}

func (Topics) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	if db.Dialector.Name() == "postgres" {
		return "text[]"
	}
	return "text"
}

// Problem is a canonical catalog entry shared by all users
type Problem struct {
	ID         uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	URL        string     `json:"url" gorm:"uniqueIndex;not null"`
	Platform   string     `json:"platform" gorm:"not null;default:''"`
	Title      string     `json:"title" gorm:"not null;default:''"`
	Difficulty Difficulty `json:"difficulty" gorm:"type:varchar(10);not null;default:'unknown'"`
	Topics     Topics     `json:"topics"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Problem) TableName() string {
	return "problems"
}

func (p *Problem) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Topics == nil {
		p.Topics = Topics{}
	}
	return nil
}

// NormalizeURL canonicalizes a problem link so the same problem pasted twice
// maps to one catalog row.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return strings.TrimRight(raw, "/")
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.Path = strings.TrimRight(u.Path, "/")
	return u.String()
}

// MetadataPatch carries optional catalog metadata edits
type MetadataPatch struct {
	Platform   *string
	Title      *string
	Difficulty *Difficulty
	Topics     *Topics
}

// Empty reports whether the patch touches no field
func (p MetadataPatch) Empty() bool {
	return p.Platform == nil && p.Title == nil && p.Difficulty == nil && p.Topics == nil
}

// ProblemRepository defines the interface for catalog data access
type ProblemRepository interface {
	CreateOrGet(ctx context.Context, problem *Problem) (*Problem, error)
	FindByID(ctx context.Context, id uuid.UUID) (*Problem, error)
	FindByURL(ctx context.Context, url string) (*Problem, error)
	UpdateMetadata(ctx context.Context, id uuid.UUID, patch MetadataPatch) (*Problem, error)
	Count(ctx context.Context) (int64, error)
}

// ProblemResponse represents a problem in API responses
type ProblemResponse struct {
	ID         uuid.UUID  `json:"id"`
	URL        string     `json:"url"`
	Platform   string     `json:"platform"`
	Title      string     `json:"title"`
	Difficulty Difficulty `json:"difficulty"`
	Topics     []string   `json:"topics"`
}

// ToResponse converts a Problem to a ProblemResponse
func (p *Problem) ToResponse() ProblemResponse {
	topics := []string(p.Topics)
	if topics == nil {
		topics = []string{}
	}
	return ProblemResponse{
		ID:         p.ID,
		URL:        p.URL,
		Platform:   p.Platform,
		Title:      p.Title,
		Difficulty: p.Difficulty,
		Topics:     topics,
	}
}

// InitialReview is an optional first attempt logged while adding a problem
type InitialReview struct {
	Grade        int    `json:"grade"`
	TimeSpentSec *int   `json:"time_spent_sec"`
	ReviewedAt   string `json:"reviewed_at"`
	Source       string `json:"source"`
}

// AddProblemRequest represents the data needed to track a problem
type AddProblemRequest struct {
	URL        string         `json:"url"`
	Platform   string         `json:"platform"`
	Title      string         `json:"title"`
	Difficulty string         `json:"difficulty"`
	Topics     []string       `json:"topics"`
	Initial    *InitialReview `json:"initial_review"`
}

// UpdateProblemRequest represents a partial edit of a tracked problem
type UpdateProblemRequest struct {
	IsActive   *bool     `json:"is_active"`
	Platform   *string   `json:"platform"`
	Title      *string   `json:"title"`
	Difficulty *string   `json:"difficulty"`
	Topics     *[]string `json:"topics"`
}
