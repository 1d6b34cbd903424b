// Package scoring aggregates judge scores and validates them against rubrics.
package scoring

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/arena/internal/domain/model"
	"github.com/okian/arena/pkg/logger"
	"github.com/okian/arena/pkg/metrics"
)

// ScoreSource lists the judge scores recorded for a submission.
type ScoreSource interface {
	GetBySubmissionID(ctx context.Context, submissionID string) ([]model.Score, error)
}

// SubmissionSource resolves a single submission.
type SubmissionSource interface {
	GetByID(ctx context.Context, id string) (*model.Submission, error)
}

// Option applies a configuration option to the Aggregator.
type Option func(*Aggregator)

// WithLogger sets the logger used by the Aggregator.
func WithLogger(l logger.Logger) Option {
	return func(a *Aggregator) {
		if l != nil {
			a.log = l
		}
	}
}

// Aggregator summarizes every judge's score for one submission.
type Aggregator struct {
	scores      ScoreSource
	submissions SubmissionSource
	log         logger.Logger
}

// NewAggregator creates an Aggregator over the given stores.
func NewAggregator(scores ScoreSource, submissions SubmissionSource, opts ...Option) *Aggregator {
	a := &Aggregator{
		scores:      scores,
		submissions: submissions,
		log:         logger.Get().Named("aggregator"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Aggregate loads the submission's scores and summarizes them. A submission
// with no scores yields a zero aggregate; an unknown submission yields
// model.ErrNotFound.
func (a *Aggregator) Aggregate(ctx context.Context, submissionID string) (model.AggregatedScore, error) {
	start := time.Now()

	sub, err := a.submissions.GetByID(ctx, submissionID)
	if err != nil {
		return model.AggregatedScore{}, fmt.Errorf("load submission %s: %w", submissionID, err)
	}
	if sub == nil {
		return model.AggregatedScore{}, fmt.Errorf("submission %s: %w", submissionID, model.ErrNotFound)
	}

	scores, err := a.scores.GetBySubmissionID(ctx, submissionID)
	if err != nil {
		return model.AggregatedScore{}, fmt.Errorf("load scores for %s: %w", submissionID, err)
	}

	out := Summarize(submissionID, scores)
	metrics.RecordAggregation(float64(time.Since(start).Microseconds()) / 1000)
	a.log.Debug(ctx, "submission aggregated",
		logger.String("submission_id", submissionID),
		logger.Int("judges", out.JudgeCount),
		logger.Float64("average", out.AverageScore),
	)
	return out, nil
}

// Summarize folds a submission's scores into an AggregatedScore. Only scores
// carrying a total count towards the sum, mean, judge count and range; every
// numeric criterion value counts towards the per-criterion means.
func Summarize(submissionID string, scores []model.Score) model.AggregatedScore {
	out := model.AggregatedScore{
		SubmissionID:     submissionID,
		CriteriaScores:   map[string]float64{},
		IndividualScores: []model.Score{},
	}

	active := ActiveScores(scores)
	if len(active) == 0 {
		return out
	}
	out.IndividualScores = active

	var (
		sum      float64
		counted  int
		lo, hi   float64
		critSum  = map[string]float64{}
		critSeen = map[string]int{}
	)
	for _, s := range active {
		if s.Total != nil {
			t := *s.Total
			if counted == 0 || t < lo {
				lo = t
			}
			if counted == 0 || t > hi {
				hi = t
			}
			sum += t
			counted++
		}
		for key, v := range s.Values {
			if f, ok := v.Float(); ok {
				critSum[key] += f
				critSeen[key]++
			}
		}
	}

	for key, total := range critSum {
		out.CriteriaScores[key] = total / float64(critSeen[key])
	}
	if counted > 0 {
		out.TotalScore = sum
		out.AverageScore = sum / float64(counted)
		out.JudgeCount = counted
		out.Range = model.ScoreRange{Min: lo, Max: hi}
	}
	return out
}

// ActiveScores keeps one score per judge, the most recently updated, in the
// order judges first appear. Scores without a judge are kept by id.
func ActiveScores(scores []model.Score) []model.Score {
	if len(scores) == 0 {
		return nil
	}
	index := make(map[string]int, len(scores))
	out := make([]model.Score, 0, len(scores))
	for _, s := range scores {
		key := "judge:" + s.JudgeID
		if s.JudgeID == "" {
			key = "score:" + s.ID
		}
		i, ok := index[key]
		if !ok {
			index[key] = len(out)
			out = append(out, s)
			continue
		}
		if !s.UpdatedAt.Before(out[i].UpdatedAt) {
			out[i] = s
		}
	}
	return out
}
