// Package ranking builds team and member leaderboards from aggregated
// submission scores.
package ranking

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/okian/arena/internal/domain/model"
	"github.com/okian/arena/internal/domain/scoring"
	"github.com/okian/arena/pkg/logger"
	"github.com/okian/arena/pkg/metrics"
)

// Display names used when a lookup has no record.
const (
	UnknownTeam   = "Unknown Team"
	UnknownMember = "Unknown Member"
)

// SubmissionLister lists an event's submissions.
type SubmissionLister interface {
	GetByEventID(ctx context.Context, eventID string) ([]model.Submission, error)
}

// ScoreBatcher fetches scores for many submissions at once.
type ScoreBatcher interface {
	GetBySubmissionIDs(ctx context.Context, ids []string) (map[string][]model.Score, error)
}

// TeamLookup resolves team display names. A nil team means unknown.
type TeamLookup interface {
	GetTeamByID(ctx context.Context, id string) (*model.Team, error)
}

// MemberLookup resolves member display names. A nil member means unknown.
type MemberLookup interface {
	GetMemberByID(ctx context.Context, id string) (*model.Member, error)
}

// Option applies a configuration option to the Calculator.
type Option func(*Calculator)

// WithMemberLookup sets how individual entries get their names.
func WithMemberLookup(m MemberLookup) Option {
	return func(c *Calculator) { c.members = m }
}

// WithLogger sets the logger used by the Calculator.
func WithLogger(l logger.Logger) Option {
	return func(c *Calculator) {
		if l != nil {
			c.log = l
		}
	}
}

// WithClock overrides the time source for calculatedAt.
func WithClock(now func() time.Time) Option {
	return func(c *Calculator) {
		if now != nil {
			c.now = now
		}
	}
}

// Calculator ranks an event's teams or members. Every call recomputes from
// the stores and returns a new Leaderboard value.
type Calculator struct {
	submissions SubmissionLister
	scores      ScoreBatcher
	teams       TeamLookup
	members     MemberLookup
	log         logger.Logger
	now         func() time.Time
}

// NewCalculator creates a leaderboard Calculator.
func NewCalculator(submissions SubmissionLister, scores ScoreBatcher, teams TeamLookup, opts ...Option) *Calculator {
	c := &Calculator{
		submissions: submissions,
		scores:      scores,
		teams:       teams,
		log:         logger.Get().Named("ranking"),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CalculateLeaderboard ranks the event's teams.
func (c *Calculator) CalculateLeaderboard(ctx context.Context, eventID string) (model.Leaderboard, error) {
	return c.Calculate(ctx, eventID, model.ScopeTeam)
}

// CalculateIndividualLeaderboard ranks the event's submitting members.
func (c *Calculator) CalculateIndividualLeaderboard(ctx context.Context, eventID string) (model.Leaderboard, error) {
	return c.Calculate(ctx, eventID, model.ScopeIndividual)
}

// Calculate ranks the event for the given scope. Only submitted and approved
// submissions take part. Any store failure aborts the whole calculation.
func (c *Calculator) Calculate(ctx context.Context, eventID string, scope model.Scope) (model.Leaderboard, error) {
	if scope != model.ScopeTeam && scope != model.ScopeIndividual {
		return model.Leaderboard{}, fmt.Errorf("%w: unknown scope %q", ErrInvalidQuery, scope)
	}
	start := time.Now()

	all, err := c.submissions.GetByEventID(ctx, eventID)
	if err != nil {
		return model.Leaderboard{}, fmt.Errorf("load submissions for %s: %w", eventID, err)
	}
	eligible := Eligible(all)

	lb := model.Leaderboard{
		ID:           uuid.NewString(),
		EventID:      eventID,
		Entries:      []model.LeaderboardEntry{},
		CalculatedAt: c.now().UTC(),
		Metadata:     model.LeaderboardMetadata{Scope: scope},
	}
	if len(eligible) == 0 {
		return lb, nil
	}

	ids := make([]string, len(eligible))
	for i, s := range eligible {
		ids[i] = s.ID
	}
	scores, err := c.scores.GetBySubmissionIDs(ctx, ids)
	if err != nil {
		return model.Leaderboard{}, fmt.Errorf("load scores for %s: %w", eventID, err)
	}

	tally := Fold(eligible, scores, scope)
	names, err := c.resolveNames(ctx, tally.Keys(), scope)
	if err != nil {
		return model.Leaderboard{}, err
	}

	lb.Entries = Finalize(tally, names, scope)
	lb.Metadata.TotalSubmissions = len(eligible)
	for _, id := range ids {
		lb.Metadata.TotalScores += len(scores[id])
	}
	lb.Metadata.EntityCount = len(lb.Entries)

	elapsed := float64(time.Since(start).Microseconds()) / 1000
	metrics.RecordLeaderboardCalculation(string(scope), len(lb.Entries), elapsed)
	c.log.Debug(ctx, "leaderboard calculated",
		logger.String("event_id", eventID),
		logger.String("scope", string(scope)),
		logger.Int("entries", len(lb.Entries)),
		logger.Float64("took_ms", elapsed),
	)
	return lb, nil
}

func (c *Calculator) resolveNames(ctx context.Context, keys []string, scope model.Scope) (map[string]string, error) {
	names := make(map[string]string, len(keys))
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		switch scope {
		case model.ScopeTeam:
			if c.teams == nil {
				continue
			}
			t, err := c.teams.GetTeamByID(ctx, key)
			if err != nil {
				return nil, fmt.Errorf("resolve team %s: %w", key, err)
			}
			if t != nil && t.Name != "" {
				names[key] = t.Name
			}
		case model.ScopeIndividual:
			if c.members == nil {
				continue
			}
			m, err := c.members.GetMemberByID(ctx, key)
			if err != nil {
				return nil, fmt.Errorf("resolve member %s: %w", key, err)
			}
			if m != nil && m.Name != "" {
				names[key] = m.Name
			}
		}
	}
	return names, nil
}

// Eligible keeps the submissions whose status lets them be ranked.
func Eligible(subs []model.Submission) []model.Submission {
	out := make([]model.Submission, 0, len(subs))
	for _, s := range subs {
		if s.Status.Ranked() {
			out = append(out, s)
		}
	}
	return out
}

// accumulator is one entity's running totals during a fold.
type accumulator struct {
	total      float64
	count      int
	criteria   map[string][]float64
	submitters []string
}

// Tally is the result of folding submissions into per-entity accumulators.
type Tally struct {
	order   []string
	buckets map[string]accumulator
}

// Keys returns the entity ids in first-seen order.
func (t Tally) Keys() []string { return append([]string(nil), t.order...) }

// Fold accumulates each scored submission's aggregate into its entity's
// bucket. An entity's total is the sum of its submissions' average scores.
// Submissions without scores or without an entity key are skipped.
func Fold(subs []model.Submission, scores map[string][]model.Score, scope model.Scope) Tally {
	t := Tally{buckets: map[string]accumulator{}}
	for _, s := range subs {
		rows := scores[s.ID]
		if len(rows) == 0 {
			continue
		}
		key := s.TeamID
		if scope == model.ScopeIndividual {
			key = s.SubmittedBy
		}
		if key == "" {
			continue
		}
		t = t.add(key, s, scoring.Summarize(s.ID, rows), scope)
	}
	return t
}

func (t Tally) add(key string, s model.Submission, agg model.AggregatedScore, scope model.Scope) Tally {
	acc, ok := t.buckets[key]
	if !ok {
		t.order = append(t.order, key)
		acc = accumulator{criteria: map[string][]float64{}}
	}
	acc.total += agg.AverageScore
	acc.count++
	for crit, mean := range agg.CriteriaScores {
		acc.criteria[crit] = append(acc.criteria[crit], mean)
	}
	if scope == model.ScopeTeam && s.SubmittedBy != "" && !slices.Contains(acc.submitters, s.SubmittedBy) {
		acc.submitters = append(acc.submitters, s.SubmittedBy)
	}
	t.buckets[key] = acc
	return t
}

// Finalize turns a tally into ranked entries. Names missing from names get
// the scope's placeholder.
func Finalize(t Tally, names map[string]string, scope model.Scope) []model.LeaderboardEntry {
	fallback := UnknownTeam
	if scope == model.ScopeIndividual {
		fallback = UnknownMember
	}

	entries := make([]model.LeaderboardEntry, 0, len(t.order))
	for _, key := range t.order {
		acc := t.buckets[key]
		name, ok := names[key]
		if !ok {
			name = fallback
		}
		e := model.LeaderboardEntry{
			ID:              key,
			DisplayName:     name,
			TotalScore:      acc.total,
			AverageScore:    acc.total / float64(acc.count),
			SubmissionCount: acc.count,
			CriteriaScores:  make(map[string]float64, len(acc.criteria)),
		}
		for crit, means := range acc.criteria {
			e.CriteriaScores[crit] = mean(means)
		}
		if scope == model.ScopeTeam {
			e.SubmittedBy = append([]string{}, acc.submitters...)
		}
		entries = append(entries, e)
	}

	Rank(entries)
	return entries
}

// Rank orders entries by average score descending, breaking ties by total
// score descending then id, and assigns positions 1..n.
func Rank(entries []model.LeaderboardEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.AverageScore != b.AverageScore {
			return a.AverageScore > b.AverageScore
		}
		if a.TotalScore != b.TotalScore {
			return a.TotalScore > b.TotalScore
		}
		return a.ID < b.ID
	})
	renumber(entries)
}

func renumber(entries []model.LeaderboardEntry) {
	for i := range entries {
		entries[i].Position = i + 1
	}
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
