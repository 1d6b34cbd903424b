package scoring_test

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/arena/internal/domain/model"
	"github.com/okian/arena/internal/domain/scoring"
	"github.com/okian/arena/pkg/logger"
)

func TestSubmit(t *testing.T) {
	Convey("Given a score service with one submission and the demo rubric", t, func() {
		ctx := context.Background()
		subs := fakeSubmissions{"s1": {ID: "s1", EventID: "e1", TeamID: "t1", Status: model.StatusSubmitted}}
		scores := &fakeScores{}
		rubrics := &fakeRubrics{byID: map[string]model.Rubric{"r1": demoRubric()}}
		pub := &fakePublisher{}
		clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		svc := scoring.NewService(scores, subs, rubrics,
			scoring.WithPublisher(pub),
			scoring.WithServiceLogger(logger.Nop()),
			scoring.WithClock(func() time.Time { return clock }),
		)

		input := scoring.ScoreInput{
			SubmissionID: "s1",
			JudgeID:      "j1",
			RubricID:     "r1",
			Values:       map[string]model.CriterionValue{"impact": model.Numeric(5), "demo": model.Boolean(true)},
		}

		Convey("When a judge scores for the first time", func() {
			out, err := svc.Submit(ctx, input)

			Convey("Then a score is created with a weighted total and announced", func() {
				So(err, ShouldBeNil)
				So(out.ID, ShouldNotBeEmpty)
				So(out.EventID, ShouldEqual, "e1")
				So(out.HasTotal(), ShouldBeTrue)
				So(*out.Total, ShouldEqual, 13)
				So(out.CreatedAt, ShouldEqual, clock)
				So(scores.rows, ShouldHaveLength, 1)
				So(pub.events, ShouldHaveLength, 1)
				So(pub.events[0].EventID, ShouldEqual, "e1")
				So(pub.events[0].ScoreID, ShouldEqual, out.ID)
			})

			Convey("And when the same judge scores again", func() {
				clock = clock.Add(time.Hour)
				input.Values = map[string]model.CriterionValue{"impact": model.Numeric(9)}
				again, err := svc.Submit(ctx, input)

				Convey("Then the existing row is updated in place", func() {
					So(err, ShouldBeNil)
					So(again.ID, ShouldEqual, out.ID)
					So(scores.rows, ShouldHaveLength, 1)
					So(*scores.rows[0].Total, ShouldEqual, 18)
					So(scores.rows[0].UpdatedAt, ShouldEqual, clock)
					So(scores.rows[0].CreatedAt, ShouldEqual, out.CreatedAt)
					So(pub.events, ShouldHaveLength, 2)
				})
			})
		})

		Convey("When the judge leaves only a comment without a rubric", func() {
			out, err := svc.Submit(ctx, scoring.ScoreInput{SubmissionID: "s1", JudgeID: "j2", Comments: "see notes"})

			Convey("Then the score has no total", func() {
				So(err, ShouldBeNil)
				So(out.HasTotal(), ShouldBeFalse)
				So(out.Comments, ShouldEqual, "see notes")
			})
		})

		Convey("When the values break the rubric", func() {
			input.Values = map[string]model.CriterionValue{"impact": model.Numeric(11)}
			_, err := svc.Submit(ctx, input)

			Convey("Then nothing is stored", func() {
				So(errors.Is(err, scoring.ErrInvalidScore), ShouldBeTrue)
				So(scores.writes, ShouldEqual, 0)
				So(pub.events, ShouldBeEmpty)
			})
		})

		Convey("When references are missing or unknown", func() {
			_, err := svc.Submit(ctx, scoring.ScoreInput{SubmissionID: "s1"})
			So(errors.Is(err, scoring.ErrInvalidScore), ShouldBeTrue)

			_, err = svc.Submit(ctx, scoring.ScoreInput{SubmissionID: "nope", JudgeID: "j1"})
			So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)

			input.RubricID = "missing"
			_, err = svc.Submit(ctx, input)
			So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)
		})

		Convey("When publishing fails", func() {
			pub.err = errors.New("bus closed")
			out, err := svc.Submit(ctx, input)

			Convey("Then the score is still stored", func() {
				So(err, ShouldBeNil)
				So(scores.rows, ShouldHaveLength, 1)
				So(scores.rows[0].ID, ShouldEqual, out.ID)
			})
		})
	})
}

func TestRubricService(t *testing.T) {
	Convey("Given a rubric service", t, func() {
		ctx := context.Background()
		store := &fakeRubrics{}
		svc := scoring.NewRubricService(store, logger.Nop())

		Convey("When a rubric without ids or weights is created", func() {
			r := demoRubric()
			r.ID = ""
			r.Criteria[3].Weight = 0
			out, err := svc.Create(ctx, r)

			Convey("Then it gets an id, a timestamp and unit weights", func() {
				So(err, ShouldBeNil)
				So(out.ID, ShouldNotBeEmpty)
				So(out.CreatedAt.IsZero(), ShouldBeFalse)
				So(out.Criteria[3].Weight, ShouldEqual, 1)
				So(r.Criteria[3].Weight, ShouldEqual, 0)

				got, err := svc.Get(ctx, out.ID)
				So(err, ShouldBeNil)
				So(got.Name, ShouldEqual, "Demo day")
			})

			Convey("And cloning it applies overrides and clears the template flag", func() {
				cl, err := svc.Clone(ctx, out.ID, model.RubricOverrides{EventID: "e9"})
				So(err, ShouldBeNil)
				So(cl.ID, ShouldNotEqual, out.ID)
				So(cl.EventID, ShouldEqual, "e9")
				So(cl.IsTemplate, ShouldBeFalse)
				So(cl.Name, ShouldEqual, "Demo day (copy)")

				list, err := svc.List(ctx, model.RubricFilter{})
				So(err, ShouldBeNil)
				So(list, ShouldHaveLength, 2)
			})
		})

		Convey("When an invalid rubric is created", func() {
			_, err := svc.Create(ctx, model.Rubric{Name: "x"})
			So(errors.Is(err, scoring.ErrInvalidRubric), ShouldBeTrue)
		})

		Convey("When an unknown rubric is requested", func() {
			_, err := svc.Get(ctx, "nope")
			So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)

			_, err = svc.Clone(ctx, "nope", model.RubricOverrides{})
			So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)
		})

		Convey("When a negative page is requested", func() {
			_, err := svc.List(ctx, model.RubricFilter{Limit: -1})
			So(err, ShouldNotBeNil)
		})
	})
}
