package model

import "time"

// Scope selects which entity a leaderboard ranks.
type Scope string

// Leaderboard scopes.
const (
	ScopeTeam       Scope = "team"
	ScopeIndividual Scope = "individual"
)

// ScoreRange is the min/max of the judge totals used in an average.
type ScoreRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// AggregatedScore summarises all judges' scores for one submission.
// It is derived on demand and never persisted.
type AggregatedScore struct {
	SubmissionID     string             `json:"submission_id"`
	TotalScore       float64            `json:"total_score"`
	AverageScore     float64            `json:"average_score"`
	JudgeCount       int                `json:"judge_count"`
	CriteriaScores   map[string]float64 `json:"criteria_scores"`
	Range            ScoreRange         `json:"range"`
	IndividualScores []Score            `json:"individual_scores"`
}

// LeaderboardEntry is one team's or member's ranked row.
type LeaderboardEntry struct {
	ID              string             `json:"id"`
	DisplayName     string             `json:"display_name"`
	TotalScore      float64            `json:"total_score"`
	AverageScore    float64            `json:"average_score"`
	SubmissionCount int                `json:"submission_count"`
	Position        int                `json:"position"`
	CriteriaScores  map[string]float64 `json:"criteria_scores"`
	SubmittedBy     []string           `json:"submitted_by,omitempty"`
}

// LeaderboardMetadata carries bookkeeping about how a leaderboard was built.
type LeaderboardMetadata struct {
	Scope            Scope `json:"scope"`
	TotalSubmissions int   `json:"total_submissions"`
	TotalScores      int   `json:"total_scores"`
	EntityCount      int   `json:"entity_count"`
	Filtered         bool  `json:"filtered,omitempty"`
	Sorted           bool  `json:"sorted,omitempty"`
	OriginalCount    int   `json:"original_count,omitempty"`
	FilteredCount    int   `json:"filtered_count,omitempty"`
}

// Leaderboard is a ranked set of entries for one event at one point in time.
// Every recalculation produces a new value; existing values are never mutated.
type Leaderboard struct {
	ID           string              `json:"id"`
	EventID      string              `json:"event_id"`
	Entries      []LeaderboardEntry  `json:"entries"`
	CalculatedAt time.Time           `json:"calculated_at"`
	Metadata     LeaderboardMetadata `json:"metadata"`
}
