// Package api exposes the judging engine over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/okian/arena/internal/domain/model"
	"github.com/okian/arena/internal/domain/ranking"
	"github.com/okian/arena/internal/domain/scoring"
	"github.com/okian/arena/internal/domain/types"
	"github.com/okian/arena/pkg/logger"
)

// ScoreDependencies covers judge writes and per-submission reads.
type ScoreDependencies interface {
	SubmitScore(ctx context.Context, in scoring.ScoreInput) (model.Score, error)
	Aggregate(ctx context.Context, submissionID string) (model.AggregatedScore, error)
	WatchSubmission(ctx context.Context, submissionID string) (<-chan model.AggregatedScore, error)
}

// LeaderboardDependencies covers leaderboard reads.
type LeaderboardDependencies interface {
	Leaderboard(ctx context.Context, q types.LeaderboardQuery) (model.Leaderboard, error)
	Watch(ctx context.Context, eventID string, scope model.Scope) (<-chan model.Leaderboard, error)
}

// TeamDependencies covers team history and trend reads.
type TeamDependencies interface {
	History(ctx context.Context, q types.HistoryQuery) (model.ScoreHistory, error)
	Trend(ctx context.Context, q types.TrendQuery) (model.ScoreTrend, error)
}

// RubricDependencies covers rubric management.
type RubricDependencies interface {
	CreateRubric(ctx context.Context, r model.Rubric) (model.Rubric, error)
	GetRubric(ctx context.Context, id string) (model.Rubric, error)
	ListRubrics(ctx context.Context, f model.RubricFilter) ([]model.Rubric, error)
	CloneRubric(ctx context.Context, id string, o model.RubricOverrides) (model.Rubric, error)
}

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	ScoreDependencies
	LeaderboardDependencies
	TeamDependencies
	RubricDependencies
	StatsProvider
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	scoreHandler       *ScoreHandler
	leaderboardHandler *LeaderboardHandler
	teamHandler        *TeamHandler
	rubricHandler      *RubricHandler
	limiter            *IPRateLimiter
}

// Option configures the Server.
type Option func(*serverConfig)

type serverConfig struct {
	maxLimit int
	limiter  *IPRateLimiter
	logger   logger.Logger
}

// WithMaxLimit caps the leaderboard page size.
func WithMaxLimit(n int) Option {
	return func(c *serverConfig) {
		if n > 0 {
			c.maxLimit = n
		}
	}
}

// WithRateLimiter limits write requests per client IP.
func WithRateLimiter(l *IPRateLimiter) Option {
	return func(c *serverConfig) { c.limiter = l }
}

// WithLogger sets the handler logger.
func WithLogger(l logger.Logger) Option {
	return func(c *serverConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	cfg := serverConfig{maxLimit: defaultMaxLimit, logger: logger.Get().Named("http")}
	for _, opt := range opts {
		opt(&cfg)
	}
	live := newStreamer(cfg.logger)
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(deps),
		scoreHandler:       NewScoreHandler(deps, live),
		leaderboardHandler: NewLeaderboardHandler(deps, live, cfg.maxLimit),
		teamHandler:        NewTeamHandler(deps),
		rubricHandler:      NewRubricHandler(deps),
		limiter:            cfg.limiter,
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	route := func(pattern, endpoint string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, MetricsMiddleware(h, endpoint))
	}
	write := func(h http.HandlerFunc) http.HandlerFunc {
		if s.limiter == nil {
			return h
		}
		return RateLimit(s.limiter, h)
	}

	route("GET /healthz", "healthz", s.healthHandler.HandleHealth)
	route("GET /metrics", "metrics", s.healthHandler.HandleMetrics)
	route("GET /stats", "stats", s.statsHandler.HandleStats)

	route("POST /scores", "scores", write(s.scoreHandler.HandlePostScore))
	route("GET /submissions/{id}/aggregate", "aggregate", s.scoreHandler.HandleGetAggregate)
	route("GET /submissions/{id}/aggregate/live", "aggregate_live", s.scoreHandler.HandleLiveAggregate)

	route("GET /events/{id}/leaderboard", "leaderboard", s.leaderboardHandler.HandleGetLeaderboard)
	route("GET /events/{id}/leaderboard.xlsx", "leaderboard_xlsx", s.leaderboardHandler.HandleExportLeaderboard)
	route("GET /events/{id}/leaderboard/live", "leaderboard_live", s.leaderboardHandler.HandleLiveLeaderboard)

	route("GET /teams/{id}/history", "history", s.teamHandler.HandleGetHistory)
	route("GET /teams/{id}/trend", "trend", s.teamHandler.HandleGetTrend)
	route("GET /teams/{id}/trend.png", "trend_png", s.teamHandler.HandleGetTrendChart)

	route("POST /rubrics", "rubrics", write(s.rubricHandler.HandleCreateRubric))
	route("GET /rubrics", "rubrics", s.rubricHandler.HandleListRubrics)
	route("GET /rubrics/{id}", "rubric", s.rubricHandler.HandleGetRubric)
	route("POST /rubrics/{id}/clone", "rubric_clone", write(s.rubricHandler.HandleCloneRubric))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeDomainError maps engine errors onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, op string, err error) {
	err = fmt.Errorf("%s: %w", op, err)
	switch {
	case errors.Is(err, model.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case isValidation(err):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}

func isValidation(err error) bool {
	for _, target := range []error{
		ErrBadRequest,
		scoring.ErrInvalidScore,
		scoring.ErrInvalidRubric,
		ranking.ErrInvalidQuery,
		model.ErrUnsupportedValue,
		errInvalidScope,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// decodeJSON reads a single JSON document, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	return nil
}
