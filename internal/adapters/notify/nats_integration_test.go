//go:build integration

package notify

import (
	"context"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/testcontainers/testcontainers-go"
	tcnats "github.com/testcontainers/testcontainers-go/modules/nats"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/okian/arena/internal/domain/model"
	"github.com/okian/arena/pkg/logger"
)

func TestNATSBus(t *testing.T) {
	ctx := context.Background()
	container, err := tcnats.Run(ctx, "nats:2.9.22-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForAll(
				wait.ForLog("Server is ready"),
				wait.ForListeningPort("4222/tcp"),
			).WithDeadline(45*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("start nats: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	url, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("nats url: %v", err)
	}

	Convey("Given a NATS-backed bus", t, func() {
		bus, err := DialNATS(url, WithLogger(logger.Nop()), WithTopic("arena.test.changed"))
		So(err, ShouldBeNil)
		defer bus.Close()

		subCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		changes, err := bus.Subscribe(subCtx)
		So(err, ShouldBeNil)

		Convey("Published changes reach the subscriber", func() {
			So(bus.Publish(ctx, model.ScoreChanged{SubmissionID: "sub-1", EventID: "ev-1", JudgeID: "j1"}), ShouldBeNil)
			got, ok := receive(changes)
			So(ok, ShouldBeTrue)
			So(got.EventID, ShouldEqual, "ev-1")
			So(got.JudgeID, ShouldEqual, "j1")
		})

		Convey("Cancelling the subscription closes its channel", func() {
			cancel()
			_, ok := receive(changes)
			So(ok, ShouldBeFalse)
		})

		Convey("A closed bus refuses work", func() {
			So(bus.Close(), ShouldBeNil)
			So(bus.Publish(ctx, model.ScoreChanged{EventID: "ev"}), ShouldEqual, ErrClosed)
		})
	})
}
