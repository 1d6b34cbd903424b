package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/arena/internal/domain/model"
)

type pairKey struct{ submission, judge string }

// MemoryStore keeps every collaborator record in process memory.
type MemoryStore struct {
	mu          sync.RWMutex
	scores      map[string]model.Score
	scoreOrder  map[string][]string // submission id -> score ids, insertion order
	byPair      map[pairKey]string
	submissions map[string]model.Submission
	subOrder    []string
	rubrics     map[string]model.Rubric
	rubricOrder []string
	teams       map[string]model.Team
	events      map[string]model.Event
	members     map[string]model.Member

	watchMu      sync.Mutex
	watchers     map[string]map[chan model.ScoreChanged]struct{}
	streamBuffer int
	now          func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		scores:       map[string]model.Score{},
		scoreOrder:   map[string][]string{},
		byPair:       map[pairKey]string{},
		submissions:  map[string]model.Submission{},
		rubrics:      map[string]model.Rubric{},
		teams:        map[string]model.Team{},
		events:       map[string]model.Event{},
		members:      map[string]model.Member{},
		watchers:     map[string]map[chan model.ScoreChanged]struct{}{},
		streamBuffer: 16,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scores returns the score store view.
func (s *MemoryStore) Scores() ScoreStore { return memScores{s} }

// Submissions returns the submission store view.
func (s *MemoryStore) Submissions() SubmissionStore { return memSubmissions{s} }

// Rubrics returns the rubric store view.
func (s *MemoryStore) Rubrics() RubricStore { return memRubrics{s} }

// Close releases nothing; it exists to satisfy Store.
func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) GetTeamByID(_ context.Context, id string) (*model.Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.teams[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (s *MemoryStore) GetEventByID(_ context.Context, id string) (*model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.events[id]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (s *MemoryStore) GetMemberByID(_ context.Context, id string) (*model.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.members[id]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (s *MemoryStore) PutEvent(_ context.Context, e model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[e.ID] = e
	return nil
}

func (s *MemoryStore) PutTeam(_ context.Context, t model.Team) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teams[t.ID] = t
	return nil
}

func (s *MemoryStore) PutMember(_ context.Context, m model.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[m.ID] = m
	return nil
}

// PutSubmission inserts or replaces a submission.
func (s *MemoryStore) PutSubmission(_ context.Context, sub model.Submission) error {
	if !sub.Status.Valid() {
		return fmt.Errorf("submission %s: unknown status %q", sub.ID, sub.Status)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.submissions[sub.ID]; !ok {
		s.subOrder = append(s.subOrder, sub.ID)
	}
	s.submissions[sub.ID] = sub
	return nil
}

// notify wakes every stream watching the score's submission. Slow readers
// miss notifications rather than block writers.
func (s *MemoryStore) notify(sc model.Score) {
	ev := model.ScoreChanged{ScoreID: sc.ID, SubmissionID: sc.SubmissionID, EventID: sc.EventID, JudgeID: sc.JudgeID, At: sc.UpdatedAt}
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	for ch := range s.watchers[sc.SubmissionID] {
		select {
		case ch <- ev:
		default:
		}
	}
}

type memScores struct{ *MemoryStore }

func (s memScores) Create(_ context.Context, sc model.Score) error {
	defer observe("scores.create", time.Now())
	s.mu.Lock()
	key := pairKey{sc.SubmissionID, sc.JudgeID}
	if id, ok := s.byPair[key]; ok && sc.JudgeID != "" {
		prev := s.scores[id]
		sc.ID = prev.ID
		sc.CreatedAt = prev.CreatedAt
		s.scores[id] = cloneScore(sc)
	} else {
		if _, dup := s.scores[sc.ID]; dup {
			s.mu.Unlock()
			return fmt.Errorf("score %s: %w", sc.ID, ErrConflict)
		}
		s.scores[sc.ID] = cloneScore(sc)
		s.scoreOrder[sc.SubmissionID] = append(s.scoreOrder[sc.SubmissionID], sc.ID)
		if sc.JudgeID != "" {
			s.byPair[key] = sc.ID
		}
	}
	s.mu.Unlock()
	s.notify(sc)
	return nil
}

func (s memScores) Update(_ context.Context, sc model.Score) error {
	defer observe("scores.update", time.Now())
	s.mu.Lock()
	prev, ok := s.scores[sc.ID]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("score %s: %w", sc.ID, ErrNotFound)
	}
	sc.SubmissionID, sc.JudgeID = prev.SubmissionID, prev.JudgeID
	s.scores[sc.ID] = cloneScore(sc)
	s.mu.Unlock()
	s.notify(sc)
	return nil
}

func (s memScores) GetBySubmissionID(_ context.Context, submissionID string) ([]model.Score, error) {
	defer observe("scores.by_submission", time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scoresFor(submissionID), nil
}

func (s memScores) GetBySubmissionAndJudge(_ context.Context, submissionID, judgeID string) (*model.Score, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byPair[pairKey{submissionID, judgeID}]
	if !ok {
		return nil, nil
	}
	sc := cloneScore(s.scores[id])
	return &sc, nil
}

func (s memScores) GetBySubmissionIDs(_ context.Context, ids []string) (map[string][]model.Score, error) {
	defer observe("scores.by_submissions", time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]model.Score, len(ids))
	for _, id := range ids {
		if rows := s.scoresFor(id); len(rows) > 0 {
			out[id] = rows
		}
	}
	return out, nil
}

func (s memScores) GetByEventID(_ context.Context, eventID string) ([]model.Score, error) {
	defer observe("scores.by_event", time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Score
	for _, subID := range s.subOrder {
		if s.submissions[subID].EventID != eventID {
			continue
		}
		out = append(out, s.scoresFor(subID)...)
	}
	return out, nil
}

func (s memScores) StreamBySubmissionID(ctx context.Context, submissionID string) (<-chan model.ScoreChanged, error) {
	ch := make(chan model.ScoreChanged, s.streamBuffer)
	s.watchMu.Lock()
	if s.watchers[submissionID] == nil {
		s.watchers[submissionID] = map[chan model.ScoreChanged]struct{}{}
	}
	s.watchers[submissionID][ch] = struct{}{}
	s.watchMu.Unlock()

	go func() {
		<-ctx.Done()
		s.watchMu.Lock()
		delete(s.watchers[submissionID], ch)
		if len(s.watchers[submissionID]) == 0 {
			delete(s.watchers, submissionID)
		}
		close(ch)
		s.watchMu.Unlock()
	}()
	return ch, nil
}

// scoresFor must be called with mu held.
func (s *MemoryStore) scoresFor(submissionID string) []model.Score {
	ids := s.scoreOrder[submissionID]
	out := make([]model.Score, 0, len(ids))
	for _, id := range ids {
		out = append(out, cloneScore(s.scores[id]))
	}
	return out
}

type memSubmissions struct{ *MemoryStore }

func (s memSubmissions) GetByID(_ context.Context, id string) (*model.Submission, error) {
	defer observe("submissions.by_id", time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.submissions[id]
	if !ok {
		return nil, fmt.Errorf("submission %s: %w", id, ErrNotFound)
	}
	return &sub, nil
}

func (s memSubmissions) GetByEventID(_ context.Context, eventID string) ([]model.Submission, error) {
	defer observe("submissions.by_event", time.Now())
	return s.filter(func(sub model.Submission) bool { return sub.EventID == eventID }), nil
}

func (s memSubmissions) GetByTeamID(_ context.Context, teamID string) ([]model.Submission, error) {
	defer observe("submissions.by_team", time.Now())
	return s.filter(func(sub model.Submission) bool { return sub.TeamID == teamID }), nil
}

func (s memSubmissions) filter(keep func(model.Submission) bool) []model.Submission {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Submission
	for _, id := range s.subOrder {
		if sub := s.submissions[id]; keep(sub) {
			out = append(out, sub)
		}
	}
	return out
}

type memRubrics struct{ *MemoryStore }

func (s memRubrics) Create(_ context.Context, r model.Rubric) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.rubrics[r.ID]; dup {
		return fmt.Errorf("rubric %s: %w", r.ID, ErrConflict)
	}
	s.rubrics[r.ID] = r.Copy()
	s.rubricOrder = append(s.rubricOrder, r.ID)
	return nil
}

func (s memRubrics) GetByID(_ context.Context, id string) (*model.Rubric, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rubrics[id]
	if !ok {
		return nil, fmt.Errorf("rubric %s: %w", id, ErrNotFound)
	}
	out := r.Copy()
	return &out, nil
}

// List returns rubrics in creation order, paged by f.Offset and f.Limit.
func (s memRubrics) List(_ context.Context, f model.RubricFilter) ([]model.Rubric, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []model.Rubric{}
	skipped := 0
	for _, id := range s.rubricOrder {
		r := s.rubrics[id]
		if f.EventID != "" && r.EventID != f.EventID {
			continue
		}
		if f.GroupID != "" && r.GroupID != f.GroupID {
			continue
		}
		if f.TemplateOnly && !r.IsTemplate {
			continue
		}
		if skipped < f.Offset {
			skipped++
			continue
		}
		out = append(out, r.Copy())
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

func (s memRubrics) Clone(_ context.Context, id string, o model.RubricOverrides) (model.Rubric, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	src, ok := s.rubrics[id]
	if !ok {
		return model.Rubric{}, fmt.Errorf("rubric %s: %w", id, ErrNotFound)
	}
	out := src.Derive(uuid.NewString(), o, s.now().UTC())
	s.rubrics[out.ID] = out
	s.rubricOrder = append(s.rubricOrder, out.ID)
	return out, nil
}

func cloneScore(sc model.Score) model.Score {
	if sc.Values != nil {
		vals := make(map[string]model.CriterionValue, len(sc.Values))
		for k, v := range sc.Values {
			vals[k] = v
		}
		sc.Values = vals
	}
	if sc.Total != nil {
		t := *sc.Total
		sc.Total = &t
	}
	return sc
}
