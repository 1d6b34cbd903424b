package ranking_test

import (
	"context"
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/arena/internal/domain/model"
	"github.com/okian/arena/internal/domain/ranking"
	"github.com/okian/arena/internal/domain/types"
)

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

func baseBoard() model.Leaderboard {
	entries := []model.LeaderboardEntry{
		{ID: "a", DisplayName: "Delta", AverageScore: 90, TotalScore: 90, SubmissionCount: 1, CriteriaScores: map[string]float64{"x": 1}},
		{ID: "b", DisplayName: "Alpha", AverageScore: 80, TotalScore: 240, SubmissionCount: 3},
		{ID: "c", DisplayName: "Charlie", AverageScore: 70, TotalScore: 140, SubmissionCount: 2},
		{ID: "d", DisplayName: "Bravo", AverageScore: 60, TotalScore: 60, SubmissionCount: 1},
	}
	ranking.Rank(entries)
	return model.Leaderboard{ID: "lb", EventID: "e1", Entries: entries}
}

func ids(lb model.Leaderboard) []string {
	out := make([]string, len(lb.Entries))
	for i, e := range lb.Entries {
		out[i] = e.ID
	}
	return out
}

func TestApply(t *testing.T) {
	Convey("Given a ranked base leaderboard", t, func() {
		base := baseBoard()

		Convey("No query keeps the base order", func() {
			out := ranking.Apply(base, types.LeaderboardQuery{})
			So(ids(out), ShouldResemble, []string{"a", "b", "c", "d"})
			So(out.Metadata.Filtered, ShouldBeFalse)
			So(out.Metadata.Sorted, ShouldBeFalse)
		})

		Convey("Score bounds and minimum submissions are ANDed", func() {
			out := ranking.Apply(base, types.LeaderboardQuery{Filter: &types.LeaderboardFilter{
				MinScore: floatPtr(65), MaxScore: floatPtr(85), MinSubmissions: intPtr(2),
			}})
			So(ids(out), ShouldResemble, []string{"b", "c"})
			So(positions(out), ShouldResemble, []int{1, 2})
		})

		Convey("An id allow-set restricts the entries", func() {
			out := ranking.Apply(base, types.LeaderboardQuery{Filter: &types.LeaderboardFilter{IDs: []string{"d", "b"}}})
			So(ids(out), ShouldResemble, []string{"b", "d"})
		})

		Convey("Top N applies after the other filters and before sorting", func() {
			out := ranking.Apply(base, types.LeaderboardQuery{
				Filter: &types.LeaderboardFilter{MaxScore: floatPtr(85), TopN: intPtr(2)},
				Sort:   &types.LeaderboardSort{Field: types.SortDisplayName},
			})
			So(ids(out), ShouldResemble, []string{"b", "c"})
			So(positions(out), ShouldResemble, []int{1, 2})
			So(out.Metadata.Sorted, ShouldBeTrue)
		})

		Convey("Sorting by each field in either direction", func() {
			byName := ranking.Apply(base, types.LeaderboardQuery{Sort: &types.LeaderboardSort{Field: types.SortDisplayName}})
			So(ids(byName), ShouldResemble, []string{"b", "d", "c", "a"})

			byTotal := ranking.Apply(base, types.LeaderboardQuery{Sort: &types.LeaderboardSort{Field: types.SortTotalScore, Descending: true}})
			So(ids(byTotal), ShouldResemble, []string{"b", "c", "a", "d"})

			byCount := ranking.Apply(base, types.LeaderboardQuery{Sort: &types.LeaderboardSort{Field: types.SortSubmissionCount}})
			So(ids(byCount), ShouldResemble, []string{"a", "d", "c", "b"})

			byAvg := ranking.Apply(base, types.LeaderboardQuery{Sort: &types.LeaderboardSort{Field: types.SortAverageScore}})
			So(ids(byAvg), ShouldResemble, []string{"d", "c", "b", "a"})
			So(positions(byAvg), ShouldResemble, []int{1, 2, 3, 4})
		})

		Convey("Offset is applied before limit", func() {
			out := ranking.Apply(base, types.LeaderboardQuery{Offset: 1, Limit: 2})
			So(ids(out), ShouldResemble, []string{"b", "c"})
			So(positions(out), ShouldResemble, []int{1, 2})
			So(out.Metadata.Filtered, ShouldBeTrue)
			So(out.Metadata.OriginalCount, ShouldEqual, 4)
			So(out.Metadata.FilteredCount, ShouldEqual, 2)

			past := ranking.Apply(base, types.LeaderboardQuery{Offset: 10})
			So(past.Entries, ShouldBeEmpty)
		})

		Convey("The base leaderboard is never modified", func() {
			out := ranking.Apply(base, types.LeaderboardQuery{Sort: &types.LeaderboardSort{Field: types.SortAverageScore}})
			out.Entries[3].CriteriaScores["x"] = 42
			So(base.Entries[0].CriteriaScores["x"], ShouldEqual, 1)
			So(ids(base), ShouldResemble, []string{"a", "b", "c", "d"})
			So(positions(base), ShouldResemble, []int{1, 2, 3, 4})
		})
	})
}

func TestValidateQuery(t *testing.T) {
	Convey("Bad queries are rejected", t, func() {
		bad := []types.LeaderboardQuery{
			{Limit: -1},
			{Offset: -2},
			{Scope: "guild"},
			{Sort: &types.LeaderboardSort{Field: "height"}},
			{Filter: &types.LeaderboardFilter{TopN: intPtr(-1)}},
			{Filter: &types.LeaderboardFilter{MinScore: floatPtr(5), MaxScore: floatPtr(1)}},
		}
		for _, q := range bad {
			So(errors.Is(ranking.ValidateQuery(q), ranking.ErrInvalidQuery), ShouldBeTrue)
		}
		So(ranking.ValidateQuery(types.LeaderboardQuery{Scope: model.ScopeIndividual, Limit: 5}), ShouldBeNil)
	})
}

func TestGetFilteredLeaderboard(t *testing.T) {
	Convey("Given an event with three teams", t, func() {
		f := newFixture()
		f.add("s1", "red", "ana", model.StatusSubmitted, 30)
		f.add("s2", "blue", "bo", model.StatusApproved, 50)
		f.add("s3", "green", "cy", model.StatusSubmitted, 40)
		calc := newCalculator(f)

		Convey("A filtered read starts from a fresh calculation", func() {
			out, err := calc.GetFilteredLeaderboard(context.Background(), types.LeaderboardQuery{
				EventID: "e1",
				Filter:  &types.LeaderboardFilter{MinScore: floatPtr(35)},
			})
			So(err, ShouldBeNil)
			So(ids(out), ShouldResemble, []string{"blue", "green"})
			So(positions(out), ShouldResemble, []int{1, 2})
			So(out.Metadata.Scope, ShouldEqual, model.ScopeTeam)
		})

		Convey("Invalid queries fail before any calculation", func() {
			f.err = errors.New("should not be reached")
			_, err := calc.GetFilteredLeaderboard(context.Background(), types.LeaderboardQuery{EventID: "e1", Limit: -1})
			So(errors.Is(err, ranking.ErrInvalidQuery), ShouldBeTrue)
		})
	})
}
