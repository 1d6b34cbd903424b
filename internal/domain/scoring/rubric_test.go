package scoring_test

import (
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/arena/internal/domain/model"
	"github.com/okian/arena/internal/domain/scoring"
)

func demoRubric() model.Rubric {
	return model.Rubric{
		ID:   "r1",
		Name: "Demo day",
		Criteria: []model.Criterion{
			{Key: "impact", Kind: model.KindNumeric, Required: true, Min: ptr(0), Max: ptr(10), Weight: 2},
			{Key: "polish", Kind: model.KindNumeric, Min: ptr(0), Max: ptr(5), Weight: 1},
			{Key: "demo", Kind: model.KindBoolean, Weight: 3},
			{Key: "track", Kind: model.KindText, Options: []string{"ai", "infra"}},
		},
	}
}

func TestValidateRubric(t *testing.T) {
	Convey("Given rubric definitions", t, func() {
		Convey("A well formed rubric passes", func() {
			So(scoring.ValidateRubric(demoRubric()), ShouldBeNil)
		})

		Convey("Duplicate keys are rejected", func() {
			r := demoRubric()
			r.Criteria = append(r.Criteria, model.Criterion{Key: "impact", Kind: model.KindNumeric})
			err := scoring.ValidateRubric(r)
			So(errors.Is(err, scoring.ErrInvalidRubric), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "duplicate key")
		})

		Convey("Missing name, unknown kind, negative weight and inverted range are all reported", func() {
			r := model.Rubric{Criteria: []model.Criterion{
				{Key: "a", Kind: "colour"},
				{Key: "b", Kind: model.KindNumeric, Weight: -1},
				{Key: "c", Kind: model.KindNumeric, Min: ptr(5), Max: ptr(1)},
				{Kind: model.KindNumeric},
			}}
			err := scoring.ValidateRubric(r)
			So(err, ShouldNotBeNil)
			msg := err.Error()
			So(msg, ShouldContainSubstring, "name is required")
			So(msg, ShouldContainSubstring, "unknown kind")
			So(msg, ShouldContainSubstring, "negative weight")
			So(msg, ShouldContainSubstring, "min exceeds max")
			So(msg, ShouldContainSubstring, "key is required")
		})

		Convey("A rubric needs criteria", func() {
			So(scoring.ValidateRubric(model.Rubric{Name: "empty"}), ShouldNotBeNil)
		})
	})
}

func TestValidateValues(t *testing.T) {
	Convey("Given the demo rubric", t, func() {
		r := demoRubric()

		Convey("Valid values pass", func() {
			err := scoring.ValidateValues(r, map[string]model.CriterionValue{
				"impact": model.Numeric(7), "demo": model.Boolean(true), "track": model.Text("ai"),
			})
			So(err, ShouldBeNil)
		})

		Convey("Each violation is reported", func() {
			err := scoring.ValidateValues(r, map[string]model.CriterionValue{
				"polish":  model.Numeric(9),
				"demo":    model.Text("yes"),
				"track":   model.Text("web"),
				"unknown": model.Numeric(1),
			})
			So(errors.Is(err, scoring.ErrInvalidScore), ShouldBeTrue)
			msg := err.Error()
			So(msg, ShouldContainSubstring, `"impact": required`)
			So(msg, ShouldContainSubstring, "above maximum")
			So(msg, ShouldContainSubstring, "want boolean, got text")
			So(msg, ShouldContainSubstring, "not an allowed option")
			So(msg, ShouldContainSubstring, "not in rubric")
		})

		Convey("Values below the minimum are rejected", func() {
			err := scoring.ValidateValues(r, map[string]model.CriterionValue{"impact": model.Numeric(-1)})
			So(err.Error(), ShouldContainSubstring, "below minimum")
		})
	})
}

func TestWeightedTotal(t *testing.T) {
	Convey("Numeric values are weighted, true booleans add their weight, text adds nothing", t, func() {
		got := scoring.WeightedTotal(demoRubric(), map[string]model.CriterionValue{
			"impact": model.Numeric(7),
			"polish": model.Numeric(4),
			"demo":   model.Boolean(true),
			"track":  model.Text("ai"),
		})
		So(got, ShouldEqual, 2*7+4+3)
	})

	Convey("A false boolean adds nothing", t, func() {
		got := scoring.WeightedTotal(demoRubric(), map[string]model.CriterionValue{
			"impact": model.Numeric(1), "demo": model.Boolean(false),
		})
		So(got, ShouldEqual, 2)
	})
}
