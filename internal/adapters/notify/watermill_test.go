package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/arena/internal/domain/model"
	"github.com/okian/arena/pkg/logger"
)

func receive(ch <-chan model.ScoreChanged) (model.ScoreChanged, bool) {
	select {
	case c, ok := <-ch:
		return c, ok
	case <-time.After(2 * time.Second):
		return model.ScoreChanged{}, false
	}
}

func TestChannelBus(t *testing.T) {
	Convey("Given an in-process bus with two subscribers", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		bus := NewChannelBus(WithLogger(logger.Nop()), WithBuffer(8))
		defer bus.Close()

		first, err := bus.Subscribe(ctx)
		So(err, ShouldBeNil)
		second, err := bus.Subscribe(ctx)
		So(err, ShouldBeNil)

		Convey("When a change is published", func() {
			at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
			change := model.ScoreChanged{ScoreID: "s1", SubmissionID: "sub-1", EventID: "ev-1", JudgeID: "j1", At: at}
			So(bus.Publish(ctx, change), ShouldBeNil)

			Convey("Then both subscribers receive it", func() {
				got, ok := receive(first)
				So(ok, ShouldBeTrue)
				So(got.EventID, ShouldEqual, "ev-1")
				So(got.At.Equal(at), ShouldBeTrue)

				got, ok = receive(second)
				So(ok, ShouldBeTrue)
				So(got.SubmissionID, ShouldEqual, "sub-1")
			})
		})

		Convey("When the bus is closed", func() {
			So(bus.Close(), ShouldBeNil)

			Convey("Then subscriber channels close and publishing fails", func() {
				_, ok := receive(first)
				So(ok, ShouldBeFalse)
				So(bus.Publish(ctx, model.ScoreChanged{EventID: "ev"}), ShouldEqual, ErrClosed)
				_, err := bus.Subscribe(ctx)
				So(err, ShouldEqual, ErrClosed)
				So(bus.Close(), ShouldBeNil)
			})
		})
	})
}

func TestDecode(t *testing.T) {
	Convey("Payload decoding", t, func() {
		Convey("rejects garbage", func() {
			_, err := decode([]byte("{nope"))
			So(errors.Is(err, ErrDecode), ShouldBeTrue)
		})

		Convey("rejects a payload without ids", func() {
			_, err := decode([]byte(`{"judge_id":"j1"}`))
			So(errors.Is(err, ErrDecode), ShouldBeTrue)
		})

		Convey("round-trips a change", func() {
			data, err := encode(model.ScoreChanged{SubmissionID: "sub-1", EventID: "ev-1"})
			So(err, ShouldBeNil)
			got, err := decode(data)
			So(err, ShouldBeNil)
			So(got.EventID, ShouldEqual, "ev-1")
		})
	})
}
