// Package types contains query shapes shared by the HTTP layer and the ranking engines.
package types

import (
	"time"

	"github.com/okian/arena/internal/domain/model"
)

// SortField names a leaderboard column that entries can be ordered by.
type SortField string

// Sortable leaderboard columns.
const (
	SortAverageScore    SortField = "average_score"
	SortTotalScore      SortField = "total_score"
	SortSubmissionCount SortField = "submission_count"
	SortDisplayName     SortField = "display_name"
)

// Valid reports whether f names a sortable column.
func (f SortField) Valid() bool {
	switch f {
	case SortAverageScore, SortTotalScore, SortSubmissionCount, SortDisplayName:
		return true
	}
	return false
}

// LeaderboardFilter holds optional predicates, all ANDed together.
// Nil pointers and empty slices disable the corresponding predicate.
type LeaderboardFilter struct {
	MinScore       *float64
	MaxScore       *float64
	MinSubmissions *int
	IDs            []string // team ids, or member ids for the individual scope
	TopN           *int     // applied after the other predicates, before re-ranking
}

// LeaderboardSort orders entries by one column.
type LeaderboardSort struct {
	Field      SortField
	Descending bool
}

// LeaderboardQuery describes a filtered, sorted, paginated leaderboard read.
type LeaderboardQuery struct {
	EventID string
	Scope   model.Scope
	Filter  *LeaderboardFilter
	Sort    *LeaderboardSort
	Limit   int // 0 means no limit
	Offset  int
}

// HistoryQuery selects a team's scored submissions.
type HistoryQuery struct {
	TeamID  string
	GroupID string
	Start   *time.Time // exclusive
	End     *time.Time // exclusive
	Limit   int        // keeps the most recent N; 0 means all
}

// TrendQuery selects the window a team's trend is computed over.
type TrendQuery struct {
	TeamID     string
	GroupID    string
	Period     time.Duration // 0 means unbounded
	DataPoints int           // 0 means all
}
