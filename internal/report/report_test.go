package report_test

import (
	"bytes"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/xuri/excelize/v2"

	"github.com/okian/arena/internal/domain/model"
	"github.com/okian/arena/internal/report"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func TestTrendPNG(t *testing.T) {
	Convey("Given trends to chart", t, func() {
		day := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

		Convey("An empty trend renders the placeholder", func() {
			img, err := report.TrendPNG(model.ScoreTrend{TeamID: "red", Direction: model.TrendStable}, report.DefaultPalette)
			So(err, ShouldBeNil)
			So(bytes.HasPrefix(img, pngMagic), ShouldBeTrue)
		})

		Convey("A single point still renders", func() {
			tr := model.ScoreTrend{
				TeamID:    "red",
				Direction: model.TrendStable,
				Points:    []model.TrendPoint{{Timestamp: day, Score: 12}},
				Metadata:  model.TrendMetadata{DataPoints: 1, MinScore: 12, MaxScore: 12},
			}
			img, err := report.TrendPNG(tr, report.DefaultPalette)
			So(err, ShouldBeNil)
			So(bytes.HasPrefix(img, pngMagic), ShouldBeTrue)
		})

		Convey("A rising series renders", func() {
			tr := model.ScoreTrend{
				TeamID:        "red",
				Direction:     model.TrendUpward,
				PercentChange: 50,
				Points: []model.TrendPoint{
					{Timestamp: day, Score: 10},
					{Timestamp: day.Add(48 * time.Hour), Score: 12},
					{Timestamp: day.Add(96 * time.Hour), Score: 15},
				},
				Metadata: model.TrendMetadata{DataPoints: 3, MinScore: 10, MaxScore: 15},
			}
			img, err := report.TrendPNG(tr, report.DefaultPalette)
			So(err, ShouldBeNil)
			So(bytes.HasPrefix(img, pngMagic), ShouldBeTrue)
		})
	})
}

func TestLeaderboardXLSX(t *testing.T) {
	Convey("Given a team leaderboard", t, func() {
		lb := model.Leaderboard{
			EventID: "spring-jam",
			Entries: []model.LeaderboardEntry{
				{ID: "blue", DisplayName: "Blue Whales", AverageScore: 27, TotalScore: 27, SubmissionCount: 1, Position: 1,
					CriteriaScores: map[string]float64{"impact": 9.5, "polish": 5}, SubmittedBy: []string{"bo"}},
				{ID: "red", DisplayName: "=HYPERLINK(\"x\")", AverageScore: 15.5, TotalScore: 15.5, SubmissionCount: 1, Position: 2,
					CriteriaScores: map[string]float64{"impact": 6}, SubmittedBy: []string{"ana", "cy"}},
			},
			Metadata: model.LeaderboardMetadata{Scope: model.ScopeTeam},
		}

		var buf bytes.Buffer
		So(report.LeaderboardXLSX(&buf, lb), ShouldBeNil)

		f, err := excelize.OpenReader(&buf)
		So(err, ShouldBeNil)
		defer f.Close()
		rows, err := f.GetRows(report.LeaderboardSheet)
		So(err, ShouldBeNil)

		Convey("Then the header lists a column per criterion", func() {
			So(rows, ShouldHaveLength, 3)
			So(rows[0], ShouldResemble, []string{"Position", "ID", "Name", "Average", "Total", "Submissions", "impact", "polish", "Submitted by"})
		})

		Convey("Then rows follow positions and formulas are neutralised", func() {
			So(rows[1][1], ShouldEqual, "blue")
			So(rows[1][6], ShouldEqual, "9.5")
			So(rows[2][2], ShouldEqual, "'=HYPERLINK(\"x\")")
			So(rows[2][8], ShouldEqual, "ana, cy")
		})
	})

	Convey("Given an individual leaderboard", t, func() {
		lb := model.Leaderboard{
			Entries:  []model.LeaderboardEntry{{ID: "ana", DisplayName: "Ana", Position: 1}},
			Metadata: model.LeaderboardMetadata{Scope: model.ScopeIndividual},
		}
		var buf bytes.Buffer
		So(report.LeaderboardXLSX(&buf, lb), ShouldBeNil)
		f, err := excelize.OpenReader(&buf)
		So(err, ShouldBeNil)
		defer f.Close()
		rows, err := f.GetRows(report.LeaderboardSheet)
		So(err, ShouldBeNil)

		Convey("Then there is no submitted-by column", func() {
			So(rows[0], ShouldNotContain, "Submitted by")
			So(rows[1][2], ShouldEqual, "Ana")
		})
	})
}
