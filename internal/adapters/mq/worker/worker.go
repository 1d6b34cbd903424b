// Package worker runs the debounced leaderboard recompute loop.
//
// Each score change names an event. The first change for an event marks it
// pending and starts the coalescing window; changes that arrive while the
// event is pending are dropped. When the window closes the event is handed
// back to the worker that scheduled it, the mark is cleared and the event is
// recomputed. A change landing mid-recompute therefore schedules another pass.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"time"

	"github.com/okian/arena/internal/adapters/mq/queue"
	"github.com/okian/arena/pkg/logger"
	"github.com/okian/arena/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerMultiplier = 2
	defaultWindow           = 250 * time.Millisecond
	poolShutdownTimeout     = 30 * time.Second
)

// Event abstracts what workers read off the queue.
type Event = queue.Event

// Recomputer rebuilds and publishes the leaderboards of one event.
type Recomputer interface {
	Recompute(ctx context.Context, eventID string) error
}

// Pending tracks events that already have a recompute scheduled.
type Pending interface {
	SeenAndRecord(ctx context.Context, id string) bool
	Unrecord(ctx context.Context, id string)
}

// Queue defines how workers receive events.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Event
}

// Worker processes score changes until stopped.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown stops the worker. Windows still open are abandoned.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue      Queue
	recomputer Recomputer
	pending    Pending
	name       string
	window     time.Duration

	due      chan string
	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, r Recomputer, pending Pending, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:      q,
		recomputer: r,
		pending:    pending,
		name:       "worker",
		window:     defaultWindow,
		due:        make(chan string),
		shutdown:   make(chan struct{}),
		done:       make(chan struct{}),
		logger:     logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	events := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case id := <-w.due:
			if err := w.recompute(ctx, id); err != nil {
				w.logger.Error(ctx, "recompute failed", logger.String("event_id", id), logger.Error(err))
			}
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := w.process(ctx, event); err != nil {
				w.logger.Error(ctx, "recompute failed",
					logger.String("event_id", event.EventID),
					logger.Error(err),
				)
			}
		}
	}
}

// Shutdown signals the worker to stop and waits for it.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	select {
	case <-w.shutdown:
	default:
		close(w.shutdown)
	}

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *InMemoryWorker) process(ctx context.Context, event Event) error {
	if event.EventID == "" {
		metrics.RecordNotificationDropped()
		w.logger.Warn(ctx, "score change without event id", logger.String("submission_id", event.SubmissionID))
		return nil
	}
	metrics.RecordRecomputeTriggered()

	if w.pending.SeenAndRecord(ctx, event.EventID) {
		metrics.RecordRecomputeCoalesced()
		return nil
	}
	if w.window <= 0 {
		return w.recompute(ctx, event.EventID)
	}

	id := event.EventID
	time.AfterFunc(w.window, func() {
		select {
		case w.due <- id:
		case <-w.done:
			w.pending.Unrecord(context.Background(), id)
		}
	})
	return nil
}

func (w *InMemoryWorker) recompute(ctx context.Context, eventID string) error {
	w.pending.Unrecord(ctx, eventID)

	start := time.Now()
	err := w.recomputer.Recompute(ctx, eventID)
	metrics.RecordRecomputeLatency(float64(time.Since(start).Milliseconds()))
	if err != nil {
		metrics.RecordErrorByComponent("worker", "recompute_error")
		return fmt.Errorf("recompute event %s: %w", eventID, err)
	}
	return nil
}

// Pool manages multiple workers sharing one queue and one pending set.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	logger  logger.Logger
}

// NewPool creates a new worker pool. A non-positive count picks a default
// based on the CPU count.
func NewPool(workerCount int, q Queue, r Recomputer, pending Pending, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}

	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := 0; i < workerCount; i++ {
		workerOpts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		pool.workers[i] = NewInMemoryWorker(q, r, pending, workerOpts...)
	}

	metrics.UpdateWorkerCount(workerCount)
	return pool
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return len(p.workers)
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Shutdown closes the queue and waits for all workers to stop.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var firstErr error
	for i, w := range p.workers {
		if err := w.Shutdown(shutdownCtx); err != nil {
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	metrics.UpdateWorkerCount(0)
	return firstErr
}
