package ranking

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/okian/arena/internal/domain/model"
	"github.com/okian/arena/internal/domain/types"
)

// GetFilteredLeaderboard calculates a fresh leaderboard for the query's
// event and scope, then filters, sorts and pages it.
func (c *Calculator) GetFilteredLeaderboard(ctx context.Context, q types.LeaderboardQuery) (model.Leaderboard, error) {
	if err := ValidateQuery(q); err != nil {
		return model.Leaderboard{}, err
	}
	scope := q.Scope
	if scope == "" {
		scope = model.ScopeTeam
	}
	base, err := c.Calculate(ctx, q.EventID, scope)
	if err != nil {
		return model.Leaderboard{}, err
	}
	return Apply(base, q), nil
}

// ValidateQuery rejects negative paging, unknown sort fields and unknown scopes.
func ValidateQuery(q types.LeaderboardQuery) error {
	if q.Limit < 0 || q.Offset < 0 {
		return fmt.Errorf("%w: limit and offset must not be negative", ErrInvalidQuery)
	}
	if q.Scope != "" && q.Scope != model.ScopeTeam && q.Scope != model.ScopeIndividual {
		return fmt.Errorf("%w: unknown scope %q", ErrInvalidQuery, q.Scope)
	}
	if q.Sort != nil && !q.Sort.Field.Valid() {
		return fmt.Errorf("%w: unknown sort field %q", ErrInvalidQuery, q.Sort.Field)
	}
	if f := q.Filter; f != nil {
		if f.TopN != nil && *f.TopN < 0 {
			return fmt.Errorf("%w: top_n must not be negative", ErrInvalidQuery)
		}
		if f.MinScore != nil && f.MaxScore != nil && *f.MinScore > *f.MaxScore {
			return fmt.Errorf("%w: min_score exceeds max_score", ErrInvalidQuery)
		}
	}
	return nil
}

// Apply returns a new leaderboard holding base's entries after filtering,
// sorting, offset and limit, renumbered from 1. base is not modified.
func Apply(base model.Leaderboard, q types.LeaderboardQuery) model.Leaderboard {
	entries := make([]model.LeaderboardEntry, 0, len(base.Entries))
	for _, e := range base.Entries {
		if keep(e, q.Filter) {
			entries = append(entries, cloneEntry(e))
		}
	}
	if f := q.Filter; f != nil && f.TopN != nil && *f.TopN < len(entries) {
		entries = entries[:*f.TopN]
	}

	sorted := q.Sort != nil && q.Sort.Field != ""
	if sorted {
		sortEntries(entries, *q.Sort)
	}

	if q.Offset > 0 {
		if q.Offset >= len(entries) {
			entries = entries[:0]
		} else {
			entries = entries[q.Offset:]
		}
	}
	if q.Limit > 0 && q.Limit < len(entries) {
		entries = entries[:q.Limit]
	}
	renumber(entries)

	out := base
	out.Entries = entries
	out.Metadata.Filtered = hasFilter(q.Filter) || q.Offset > 0 || q.Limit > 0
	out.Metadata.Sorted = sorted
	out.Metadata.OriginalCount = len(base.Entries)
	out.Metadata.FilteredCount = len(entries)
	return out
}

func keep(e model.LeaderboardEntry, f *types.LeaderboardFilter) bool {
	if f == nil {
		return true
	}
	if f.MinScore != nil && e.AverageScore < *f.MinScore {
		return false
	}
	if f.MaxScore != nil && e.AverageScore > *f.MaxScore {
		return false
	}
	if f.MinSubmissions != nil && e.SubmissionCount < *f.MinSubmissions {
		return false
	}
	if len(f.IDs) > 0 && !slices.Contains(f.IDs, e.ID) {
		return false
	}
	return true
}

func hasFilter(f *types.LeaderboardFilter) bool {
	return f != nil && (f.MinScore != nil || f.MaxScore != nil || f.MinSubmissions != nil || len(f.IDs) > 0 || f.TopN != nil)
}

func sortEntries(entries []model.LeaderboardEntry, s types.LeaderboardSort) {
	cmp := func(a, b model.LeaderboardEntry) int {
		switch s.Field {
		case types.SortTotalScore:
			return compareFloat(a.TotalScore, b.TotalScore)
		case types.SortSubmissionCount:
			return a.SubmissionCount - b.SubmissionCount
		case types.SortDisplayName:
			return strings.Compare(a.DisplayName, b.DisplayName)
		default:
			return compareFloat(a.AverageScore, b.AverageScore)
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		c := cmp(entries[i], entries[j])
		if s.Descending {
			return c > 0
		}
		return c < 0
	})
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cloneEntry(e model.LeaderboardEntry) model.LeaderboardEntry {
	if e.CriteriaScores != nil {
		m := make(map[string]float64, len(e.CriteriaScores))
		for k, v := range e.CriteriaScores {
			m[k] = v
		}
		e.CriteriaScores = m
	}
	if e.SubmittedBy != nil {
		e.SubmittedBy = append([]string{}, e.SubmittedBy...)
	}
	return e
}
