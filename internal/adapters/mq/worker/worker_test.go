package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	queue "github.com/okian/arena/internal/adapters/mq/queue"
	worker "github.com/okian/arena/internal/adapters/mq/worker"
	"github.com/okian/arena/internal/domain/dedupe"
	model "github.com/okian/arena/internal/domain/model"
	logging "github.com/okian/arena/pkg/logger"
)

type mockQueue struct {
	eventChan chan queue.Event
	once      sync.Once
}

func newMockQueue() *mockQueue {
	return &mockQueue{eventChan: make(chan queue.Event, 64)}
}

func (mq *mockQueue) Dequeue(context.Context) <-chan queue.Event {
	return mq.eventChan
}

func (mq *mockQueue) Close() error {
	mq.once.Do(func() { close(mq.eventChan) })
	return nil
}

func (mq *mockQueue) add(eventID string) {
	mq.eventChan <- model.ScoreChanged{SubmissionID: "sub-" + eventID, EventID: eventID, JudgeID: "j1"}
}

type recorder struct {
	mu    sync.Mutex
	calls map[string]int
	fail  map[string]error
	hit   chan string
}

func newRecorder() *recorder {
	return &recorder{calls: map[string]int{}, fail: map[string]error{}, hit: make(chan string, 64)}
}

func (r *recorder) Recompute(_ context.Context, eventID string) error {
	r.mu.Lock()
	r.calls[eventID]++
	err := r.fail[eventID]
	r.mu.Unlock()
	r.hit <- eventID
	return err
}

func (r *recorder) count(eventID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[eventID]
}

func waitHit(r *recorder) (string, bool) {
	select {
	case id := <-r.hit:
		return id, true
	case <-time.After(2 * time.Second):
		return "", false
	}
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a worker with a coalescing window", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		q := newMockQueue()
		rec := newRecorder()
		pending := dedupe.NewInMemoryDeduper()
		w := worker.NewInMemoryWorker(q, rec, pending,
			worker.WithName("test"),
			worker.WithLogger(logging.Nop()),
			worker.WithWindow(50*time.Millisecond),
		)
		go w.Run(ctx)

		convey.Convey("When a burst of changes hits one event", func() {
			for i := 0; i < 10; i++ {
				q.add("ev-1")
			}

			convey.Convey("Then the event is recomputed once", func() {
				id, ok := waitHit(rec)
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(id, convey.ShouldEqual, "ev-1")
				time.Sleep(150 * time.Millisecond)
				convey.So(rec.count("ev-1"), convey.ShouldEqual, 1)
				convey.So(pending.Size(), convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When changes hit two events", func() {
			q.add("ev-1")
			q.add("ev-2")
			q.add("ev-1")

			convey.Convey("Then each event is recomputed once", func() {
				seen := map[string]bool{}
				for i := 0; i < 2; i++ {
					id, ok := waitHit(rec)
					convey.So(ok, convey.ShouldBeTrue)
					seen[id] = true
				}
				convey.So(seen, convey.ShouldResemble, map[string]bool{"ev-1": true, "ev-2": true})
				convey.So(rec.count("ev-1"), convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When a change arrives after the window closed", func() {
			q.add("ev-1")
			_, ok := waitHit(rec)
			convey.So(ok, convey.ShouldBeTrue)
			q.add("ev-1")

			convey.Convey("Then it schedules another recompute", func() {
				_, ok := waitHit(rec)
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(rec.count("ev-1"), convey.ShouldEqual, 2)
			})
		})

		convey.Convey("When recomputing fails", func() {
			rec.mu.Lock()
			rec.fail["ev-bad"] = errors.New("store down")
			rec.mu.Unlock()
			q.add("ev-bad")
			_, ok := waitHit(rec)
			convey.So(ok, convey.ShouldBeTrue)

			convey.Convey("Then the worker keeps going", func() {
				q.add("ev-2")
				id, ok := waitHit(rec)
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(id, convey.ShouldEqual, "ev-2")
			})
		})

		convey.Convey("When a change carries no event id", func() {
			q.eventChan <- model.ScoreChanged{SubmissionID: "orphan"}
			q.add("ev-3")

			convey.Convey("Then it is skipped", func() {
				id, ok := waitHit(rec)
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(id, convey.ShouldEqual, "ev-3")
			})
		})

		convey.Convey("When shutting down", func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), time.Second)
			defer done()

			convey.Convey("Then it stops and a second shutdown is harmless", func() {
				convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)
				convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)
			})
		})
	})

	convey.Convey("Given a worker without a window", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		q := newMockQueue()
		rec := newRecorder()
		w := worker.NewInMemoryWorker(q, rec, dedupe.NewInMemoryDeduper(),
			worker.WithLogger(logging.Nop()),
			worker.WithWindow(0),
		)
		go w.Run(ctx)

		convey.Convey("Every change recomputes immediately", func() {
			q.add("ev-1")
			_, ok := waitHit(rec)
			convey.So(ok, convey.ShouldBeTrue)
			q.add("ev-1")
			_, ok = waitHit(rec)
			convey.So(ok, convey.ShouldBeTrue)
			convey.So(rec.count("ev-1"), convey.ShouldEqual, 2)
		})

		convey.Convey("Cancelling the context stops the worker", func() {
			cancel()
			shutdownCtx, done := context.WithTimeout(context.Background(), time.Second)
			defer done()
			convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)
		})
	})
}

func TestWorkerPool(t *testing.T) {
	convey.Convey("Given a pool over a real queue", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		q := queue.NewInMemoryQueue(queue.WithCapacity(100))
		rec := newRecorder()
		pool := worker.NewPool(4, q, rec, dedupe.NewInMemoryDeduper(),
			worker.WithLogger(logging.Nop()),
			worker.WithWindow(50*time.Millisecond),
		)
		convey.So(pool.Size(), convey.ShouldEqual, 4)
		pool.Start(ctx)

		convey.Convey("When many changes for a few events are enqueued", func() {
			for i := 0; i < 30; i++ {
				ev := []string{"ev-a", "ev-b", "ev-c"}[i%3]
				convey.So(q.Enqueue(ctx, model.ScoreChanged{SubmissionID: "s", EventID: ev}), convey.ShouldBeTrue)
			}

			convey.Convey("Then each event is recomputed once", func() {
				seen := map[string]int{}
				for i := 0; i < 3; i++ {
					id, ok := waitHit(rec)
					convey.So(ok, convey.ShouldBeTrue)
					seen[id]++
				}
				time.Sleep(150 * time.Millisecond)
				convey.So(seen, convey.ShouldResemble, map[string]int{"ev-a": 1, "ev-b": 1, "ev-c": 1})
				convey.So(rec.count("ev-a")+rec.count("ev-b")+rec.count("ev-c"), convey.ShouldEqual, 3)
			})
		})

		convey.Convey("When the pool shuts down", func() {
			convey.So(pool.Shutdown(context.Background()), convey.ShouldBeNil)

			convey.Convey("Then the queue is closed", func() {
				convey.So(q.IsClosed(), convey.ShouldBeTrue)
			})
		})
	})

	convey.Convey("A pool with a non-positive count picks a default", t, func() {
		pool := worker.NewPool(0, newMockQueue(), newRecorder(), dedupe.NewInMemoryDeduper())
		convey.So(pool.Size(), convey.ShouldBeGreaterThan, 0)
	})
}
