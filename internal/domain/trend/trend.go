// Package trend tracks a team's aggregated scores over time.
package trend

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/okian/arena/internal/domain/model"
	"github.com/okian/arena/internal/domain/types"
	"github.com/okian/arena/pkg/logger"
	"github.com/okian/arena/pkg/metrics"
)

// UnknownEvent names history entries whose event has no record.
const UnknownEvent = "Unknown Event"

// TeamSubmissions lists a team's submissions.
type TeamSubmissions interface {
	GetByTeamID(ctx context.Context, teamID string) ([]model.Submission, error)
}

// EventLookup resolves an event. A nil event means unknown.
type EventLookup interface {
	GetEventByID(ctx context.Context, id string) (*model.Event, error)
}

// Aggregator summarizes one submission's scores.
type Aggregator interface {
	Aggregate(ctx context.Context, submissionID string) (model.AggregatedScore, error)
}

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithLogger sets the logger used by the Engine.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithClock overrides the time source used for trend windows.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// Engine builds score histories and trends.
type Engine struct {
	submissions TeamSubmissions
	events      EventLookup
	aggregator  Aggregator
	log         logger.Logger
	now         func() time.Time
}

// NewEngine creates a history and trend Engine.
func NewEngine(submissions TeamSubmissions, events EventLookup, aggregator Aggregator, opts ...Option) *Engine {
	e := &Engine{
		submissions: submissions,
		events:      events,
		aggregator:  aggregator,
		log:         logger.Get().Named("trend"),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// History returns the team's submissions, oldest first, each with its
// aggregated score. Start and End bound createdAt exclusively. Limit keeps
// the most recent entries and is applied before any score is loaded.
func (e *Engine) History(ctx context.Context, q types.HistoryQuery) (model.ScoreHistory, error) {
	subs, err := e.submissions.GetByTeamID(ctx, q.TeamID)
	if err != nil {
		return model.ScoreHistory{}, fmt.Errorf("load submissions for team %s: %w", q.TeamID, err)
	}

	events := map[string]*model.Event{}
	event := func(id string) (*model.Event, error) {
		if ev, ok := events[id]; ok {
			return ev, nil
		}
		ev, err := e.events.GetEventByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("resolve event %s: %w", id, err)
		}
		events[id] = ev
		return ev, nil
	}

	kept := make([]model.Submission, 0, len(subs))
	for _, s := range subs {
		if q.Start != nil && !s.CreatedAt.After(*q.Start) {
			continue
		}
		if q.End != nil && !s.CreatedAt.Before(*q.End) {
			continue
		}
		if q.GroupID != "" {
			ev, err := event(s.EventID)
			if err != nil {
				return model.ScoreHistory{}, err
			}
			if ev == nil || ev.GroupID != q.GroupID {
				continue
			}
		}
		kept = append(kept, s)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		ti, tj := kept[i].EffectiveTime(), kept[j].EffectiveTime()
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return kept[i].ID < kept[j].ID
	})
	if q.Limit > 0 && len(kept) > q.Limit {
		kept = kept[len(kept)-q.Limit:]
	}

	out := model.ScoreHistory{TeamID: q.TeamID, Entries: make([]model.HistoryEntry, 0, len(kept))}
	for _, s := range kept {
		agg, err := e.aggregator.Aggregate(ctx, s.ID)
		if err != nil {
			return model.ScoreHistory{}, err
		}
		ev, err := event(s.EventID)
		if err != nil {
			return model.ScoreHistory{}, err
		}
		name := UnknownEvent
		if ev != nil && ev.Title != "" {
			name = ev.Title
		}
		out.Entries = append(out.Entries, model.HistoryEntry{
			SubmissionID:   s.ID,
			EventID:        s.EventID,
			EventName:      name,
			Score:          agg.AverageScore,
			Total:          agg.TotalScore,
			JudgeCount:     agg.JudgeCount,
			CriteriaScores: agg.CriteriaScores,
			SubmittedAt:    s.EffectiveTime(),
		})
	}

	metrics.RecordHistoryRead()
	e.log.Debug(ctx, "history built", logger.String("team_id", q.TeamID), logger.Int("entries", len(out.Entries)))
	return out, nil
}

// Trend classifies the team's scores over the last Period, limited to the
// most recent DataPoints entries. A team without history is stable.
func (e *Engine) Trend(ctx context.Context, q types.TrendQuery) (model.ScoreTrend, error) {
	hq := types.HistoryQuery{TeamID: q.TeamID, GroupID: q.GroupID, Limit: q.DataPoints}
	if q.Period > 0 {
		start := e.now().Add(-q.Period)
		hq.Start = &start
	}
	hist, err := e.History(ctx, hq)
	if err != nil {
		return model.ScoreTrend{}, err
	}

	out := model.ScoreTrend{
		TeamID:    q.TeamID,
		Direction: model.TrendStable,
		Points:    make([]model.TrendPoint, 0, len(hist.Entries)),
		Metadata:  model.TrendMetadata{PeriodDays: int(q.Period.Hours() / 24)},
	}
	scores := make([]float64, len(hist.Entries))
	for i, h := range hist.Entries {
		scores[i] = h.Score
		out.Points = append(out.Points, model.TrendPoint{
			Timestamp:    h.SubmittedAt,
			Score:        h.Score,
			SubmissionID: h.SubmissionID,
			EventName:    h.EventName,
		})
	}

	out.Direction = Classify(scores)
	out.PercentChange = PercentChange(scores)
	out.AverageScore = mean(scores)
	out.Metadata.DataPoints = len(scores)
	out.Metadata.MinScore, out.Metadata.MaxScore = bounds(scores)

	metrics.RecordTrend(string(out.Direction))
	return out, nil
}

// Classify compares how many consecutive pairs strictly rise against how
// many strictly fall.
func Classify(scores []float64) model.TrendDirection {
	var up, down int
	for i := 1; i < len(scores); i++ {
		switch {
		case scores[i] > scores[i-1]:
			up++
		case scores[i] < scores[i-1]:
			down++
		}
	}
	switch {
	case up > down:
		return model.TrendUpward
	case down > up:
		return model.TrendDownward
	}
	return model.TrendStable
}

// PercentChange is the change from the first to the last score as a
// percentage of the first, or 0 when there is no non-zero first score.
func PercentChange(scores []float64) float64 {
	if len(scores) == 0 || scores[0] == 0 {
		return 0
	}
	first, last := scores[0], scores[len(scores)-1]
	return (last - first) / first * 100
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func bounds(xs []float64) (lo, hi float64) {
	for i, x := range xs {
		if i == 0 || x < lo {
			lo = x
		}
		if i == 0 || x > hi {
			hi = x
		}
	}
	return lo, hi
}
