package model_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	model "github.com/okian/arena/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestCriterionValue(t *testing.T) {
	convey.Convey("Given criterion values of each kind", t, func() {
		num := model.Numeric(7.5)
		txt := model.Text("solid demo")
		flag := model.Boolean(true)

		convey.Convey("Then the accessors expose only the populated variant", func() {
			f, ok := num.Float()
			convey.So(ok, convey.ShouldBeTrue)
			convey.So(f, convey.ShouldEqual, 7.5)
			_, ok = num.Str()
			convey.So(ok, convey.ShouldBeFalse)

			s, ok := txt.Str()
			convey.So(ok, convey.ShouldBeTrue)
			convey.So(s, convey.ShouldEqual, "solid demo")

			b, ok := flag.Bool()
			convey.So(ok, convey.ShouldBeTrue)
			convey.So(b, convey.ShouldBeTrue)
			_, ok = flag.Float()
			convey.So(ok, convey.ShouldBeFalse)
		})

		convey.Convey("When encoding a value map to JSON", func() {
			data, err := json.Marshal(map[string]model.CriterionValue{"impact": num, "notes": txt, "demo": flag})

			convey.Convey("Then each value is a bare scalar", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(string(data), convey.ShouldEqual, `{"demo":true,"impact":7.5,"notes":"solid demo"}`)
			})
		})

		convey.Convey("When decoding a value map from JSON", func() {
			var values map[string]model.CriterionValue
			err := json.Unmarshal([]byte(`{"impact": 9, "notes": "ok", "demo": false}`), &values)

			convey.Convey("Then each scalar becomes the matching variant", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(values["impact"].Kind(), convey.ShouldEqual, model.KindNumeric)
				convey.So(values["notes"].Kind(), convey.ShouldEqual, model.KindText)
				convey.So(values["demo"].Kind(), convey.ShouldEqual, model.KindBoolean)
				convey.So(values["impact"].Equal(model.Numeric(9)), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When decoding an array or object", func() {
			var v model.CriterionValue
			err := json.Unmarshal([]byte(`[1,2]`), &v)

			convey.Convey("Then it is rejected", func() {
				convey.So(errors.Is(err, model.ErrUnsupportedValue), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When converting decoded scalars", func() {
			v, err := model.ValueOf(3)
			convey.So(err, convey.ShouldBeNil)
			convey.So(v.Equal(model.Numeric(3)), convey.ShouldBeTrue)

			_, err = model.ValueOf(nil)
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}

func TestSubmission(t *testing.T) {
	convey.Convey("Given submissions in every status", t, func() {
		convey.Convey("Then only submitted and approved are ranked", func() {
			convey.So(model.StatusDraft.Ranked(), convey.ShouldBeFalse)
			convey.So(model.StatusSubmitted.Ranked(), convey.ShouldBeTrue)
			convey.So(model.StatusUnderReview.Ranked(), convey.ShouldBeFalse)
			convey.So(model.StatusApproved.Ranked(), convey.ShouldBeTrue)
			convey.So(model.StatusRejected.Ranked(), convey.ShouldBeFalse)
			convey.So(model.SubmissionStatus("archived").Valid(), convey.ShouldBeFalse)
		})

		convey.Convey("When a submission has no submitted time", func() {
			created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
			sub := model.Submission{ID: "s1", CreatedAt: created}

			convey.Convey("Then the effective time falls back to creation", func() {
				convey.So(sub.EffectiveTime(), convey.ShouldEqual, created)

				submitted := created.Add(time.Hour)
				sub.SubmittedAt = &submitted
				convey.So(sub.EffectiveTime(), convey.ShouldEqual, submitted)
			})
		})
	})
}
