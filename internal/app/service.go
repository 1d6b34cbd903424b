// Package service wires the judging engine, its stores and the live
// recompute pipeline into the single dependency the HTTP API consumes.
package service

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	eventqueue "github.com/okian/arena/internal/adapters/mq/queue"
	workerpool "github.com/okian/arena/internal/adapters/mq/worker"
	"github.com/okian/arena/internal/adapters/notify"
	repository "github.com/okian/arena/internal/adapters/repository"
	"github.com/okian/arena/internal/domain/dedupe"
	"github.com/okian/arena/internal/domain/model"
	"github.com/okian/arena/internal/domain/ranking"
	"github.com/okian/arena/internal/domain/scoring"
	"github.com/okian/arena/internal/domain/trend"
	"github.com/okian/arena/internal/domain/types"
	"github.com/okian/arena/pkg/logger"
	"github.com/okian/arena/pkg/metrics"
)

// Service implements the API dependencies for the judging system.
type Service struct {
	mu sync.RWMutex

	// Collaborators
	store repository.Store
	bus   notify.Bus

	// Engine
	aggregator *scoring.Aggregator
	calculator *ranking.Calculator
	trends     *trend.Engine
	scores     *scoring.Service
	rubrics    *scoring.RubricService

	// Live recompute pipeline, built on Start
	pending    dedupe.Deduper
	eventQueue *eventqueue.InMemoryQueue
	workerPool *workerpool.Pool
	hub        *hub

	// Configuration
	workerCount int
	queueSize   int
	dedupeSize  int
	window      time.Duration
	now         func() time.Time

	// State
	started bool
	cancel  context.CancelFunc
	pumped  chan struct{}

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the collaborator store. Defaults to an empty memory store.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithBus sets the score-change bus. Defaults to an in-process bus.
func WithBus(bus notify.Bus) Option {
	return func(s *Service) {
		if bus != nil {
			s.bus = bus
		}
	}
}

// WithWorkerCount sets the number of recompute workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum number of queued score changes.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize bounds the number of events that can be pending at once.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithRecomputeWindow sets how long changes to one event are collected
// before its live leaderboards are recomputed.
func WithRecomputeWindow(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.window = d
		}
	}
}

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service. Queries work immediately; live updates need Start.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount: runtime.NumCPU(),
		queueSize:   10000,
		dedupeSize:  10000,
		window:      250 * time.Millisecond,
		now:         time.Now,
		hub:         newHub(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if s.store == nil {
		s.store = repository.NewMemoryStore()
	}
	if s.bus == nil {
		s.bus = notify.NewChannelBus(notify.WithLogger(s.logger.Named("bus")))
	}

	s.aggregator = scoring.NewAggregator(s.store.Scores(), s.store.Submissions(),
		scoring.WithLogger(s.logger.Named("aggregator")))
	s.calculator = ranking.NewCalculator(s.store.Submissions(), s.store.Scores(), s.store,
		ranking.WithMemberLookup(s.store),
		ranking.WithLogger(s.logger.Named("ranking")),
		ranking.WithClock(s.now),
	)
	s.trends = trend.NewEngine(s.store.Submissions(), s.store, s.aggregator,
		trend.WithLogger(s.logger.Named("trend")),
		trend.WithClock(s.now),
	)
	s.scores = scoring.NewService(s.store.Scores(), s.store.Submissions(), s.store.Rubrics(),
		scoring.WithPublisher(s.bus),
		scoring.WithServiceLogger(s.logger.Named("scoring")),
		scoring.WithClock(s.now),
	)
	s.rubrics = scoring.NewRubricService(s.store.Rubrics(), s.logger.Named("rubrics"))
	return s
}

// Start subscribes to score changes and starts the recompute workers.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	s.logger.Info(ctx, "starting judging service...")

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	changes, err := s.bus.Subscribe(runCtx)
	if err != nil {
		cancel()
		return fmt.Errorf("subscribe to score changes: %w", err)
	}

	s.pending = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.eventQueue = eventqueue.NewInMemoryQueue(
		eventqueue.WithCapacity(s.queueSize),
		eventqueue.WithBufferSize(s.queueSize),
	)
	s.workerPool = workerpool.NewPool(s.workerCount, s.eventQueue, s, s.pending,
		workerpool.WithWindow(s.window),
		workerpool.WithLogger(s.logger.Named("worker")),
	)
	s.workerPool.Start(runCtx)

	s.pumped = make(chan struct{})
	go s.pump(runCtx, changes, s.eventQueue, s.pumped)

	s.cancel = cancel
	s.started = true
	s.logger.Info(ctx, "judging service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Duration("window", s.window),
	)
	return nil
}

// pump moves bus notifications onto the bounded queue. A full queue drops
// the change; a later change to the same event still triggers a recompute.
func (s *Service) pump(ctx context.Context, changes <-chan model.ScoreChanged, q eventqueue.Queue, done chan<- struct{}) {
	defer close(done)
	for change := range changes {
		if !q.Enqueue(ctx, change) {
			metrics.RecordNotificationDropped()
			s.logger.Warn(ctx, "score change dropped",
				logger.String("event_id", change.EventID),
				logger.String("submission_id", change.SubmissionID),
			)
		}
	}
}

// Stop shuts down the recompute pipeline, closes live subscriptions and
// releases the bus and store.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx := context.Background()
	if s.started {
		s.logger.Info(ctx, "stopping judging service...")
		s.cancel()
		<-s.pumped
		if err := s.workerPool.Shutdown(ctx); err != nil {
			s.logger.Warn(ctx, "worker pool shutdown incomplete", logger.Error(err))
		}
		s.started = false
	}

	s.hub.closeAll()
	if err := s.bus.Close(); err != nil {
		s.logger.Warn(ctx, "closing bus", logger.Error(err))
	}
	if err := s.store.Close(); err != nil {
		s.logger.Warn(ctx, "closing store", logger.Error(err))
	}
	s.logger.Info(ctx, "judging service stopped")
}

// SubmitScore validates and stores a judge's score, then announces the change.
func (s *Service) SubmitScore(ctx context.Context, in scoring.ScoreInput) (model.Score, error) {
	return s.scores.Submit(ctx, in)
}

// Aggregate summarises every judge's score for a submission.
func (s *Service) Aggregate(ctx context.Context, submissionID string) (model.AggregatedScore, error) {
	return s.aggregator.Aggregate(ctx, submissionID)
}

// Leaderboard calculates, filters, sorts and pages an event's leaderboard.
func (s *Service) Leaderboard(ctx context.Context, q types.LeaderboardQuery) (model.Leaderboard, error) {
	return s.calculator.GetFilteredLeaderboard(ctx, q)
}

// History returns a team's scored submissions in chronological order.
func (s *Service) History(ctx context.Context, q types.HistoryQuery) (model.ScoreHistory, error) {
	return s.trends.History(ctx, q)
}

// Trend classifies a team's recent score movement.
func (s *Service) Trend(ctx context.Context, q types.TrendQuery) (model.ScoreTrend, error) {
	return s.trends.Trend(ctx, q)
}

// CreateRubric validates and stores a rubric.
func (s *Service) CreateRubric(ctx context.Context, r model.Rubric) (model.Rubric, error) {
	return s.rubrics.Create(ctx, r)
}

// GetRubric returns one rubric.
func (s *Service) GetRubric(ctx context.Context, id string) (model.Rubric, error) {
	return s.rubrics.Get(ctx, id)
}

// ListRubrics returns a page of rubrics matching f.
func (s *Service) ListRubrics(ctx context.Context, f model.RubricFilter) ([]model.Rubric, error) {
	return s.rubrics.List(ctx, f)
}

// CloneRubric copies a rubric under a new id with overrides applied.
func (s *Service) CloneRubric(ctx context.Context, id string, o model.RubricOverrides) (model.Rubric, error) {
	return s.rubrics.Clone(ctx, id, o)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":         s.started,
		"workerCount":     s.workerCount,
		"queueSize":       s.queueSize,
		"dedupeSize":      s.dedupeSize,
		"recomputeWindow": s.window.String(),
		"liveSubscribers": s.hub.count(),
	}
	if s.started {
		stats["queueLength"] = s.eventQueue.Len()
		stats["pendingEvents"] = s.pending.Size()
	}
	return stats
}
