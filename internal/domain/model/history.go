package model

import "time"

// HistoryEntry is one scored submission in a team's history.
type HistoryEntry struct {
	SubmissionID   string             `json:"submission_id"`
	EventID        string             `json:"event_id"`
	EventName      string             `json:"event_name"`
	Score          float64            `json:"score"`
	Total          float64            `json:"total"`
	JudgeCount     int                `json:"judge_count"`
	CriteriaScores map[string]float64 `json:"criteria_scores"`
	SubmittedAt    time.Time          `json:"submitted_at"`
}

// ScoreHistory is a team's scored submissions ordered by submission time.
type ScoreHistory struct {
	TeamID  string         `json:"team_id"`
	Entries []HistoryEntry `json:"entries"`
}

// TrendDirection classifies how a score series moves.
type TrendDirection string

// Trend directions.
const (
	TrendUpward   TrendDirection = "upward"
	TrendDownward TrendDirection = "downward"
	TrendStable   TrendDirection = "stable"
)

// TrendPoint is a plottable history sample.
type TrendPoint struct {
	Timestamp    time.Time `json:"timestamp"`
	Score        float64   `json:"score"`
	SubmissionID string    `json:"submission_id"`
	EventName    string    `json:"event_name"`
}

// TrendMetadata describes the window a trend was computed over.
type TrendMetadata struct {
	PeriodDays int     `json:"period_days"`
	DataPoints int     `json:"data_points"`
	MaxScore   float64 `json:"max_score"`
	MinScore   float64 `json:"min_score"`
}

// ScoreTrend is the classified direction and magnitude of a team's score series.
type ScoreTrend struct {
	TeamID        string         `json:"team_id"`
	Direction     TrendDirection `json:"direction"`
	PercentChange float64        `json:"percent_change"`
	AverageScore  float64        `json:"average_score"`
	Points        []TrendPoint   `json:"points"`
	Metadata      TrendMetadata  `json:"metadata"`
}
