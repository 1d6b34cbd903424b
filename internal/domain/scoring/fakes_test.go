package scoring_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/okian/arena/internal/domain/model"
)

var errStoreDown = errors.New("store down")

type fakeScores struct {
	mu     sync.Mutex
	rows   []model.Score
	err    error
	writes int
}

func (f *fakeScores) GetBySubmissionID(_ context.Context, id string) ([]model.Score, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var out []model.Score
	for _, s := range f.rows {
		if s.SubmissionID == id {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeScores) GetBySubmissionAndJudge(_ context.Context, sub, judge string) (*model.Score, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.rows {
		if s.SubmissionID == sub && s.JudgeID == judge {
			c := s
			return &c, nil
		}
	}
	return nil, nil
}

func (f *fakeScores) Create(_ context.Context, s model.Score) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes++
	f.rows = append(f.rows, s)
	return nil
}

func (f *fakeScores) Update(_ context.Context, s model.Score) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes++
	for i := range f.rows {
		if f.rows[i].ID == s.ID {
			f.rows[i] = s
			return nil
		}
	}
	return model.ErrNotFound
}

type fakeSubmissions map[string]model.Submission

func (f fakeSubmissions) GetByID(_ context.Context, id string) (*model.Submission, error) {
	s, ok := f[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return &s, nil
}

type fakeRubrics struct {
	mu   sync.Mutex
	byID map[string]model.Rubric
}

func (f *fakeRubrics) Create(_ context.Context, r model.Rubric) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.byID == nil {
		f.byID = map[string]model.Rubric{}
	}
	f.byID[r.ID] = r
	return nil
}

func (f *fakeRubrics) GetByID(_ context.Context, id string) (*model.Rubric, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.byID[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (f *fakeRubrics) List(_ context.Context, _ model.RubricFilter) ([]model.Rubric, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Rubric, 0, len(f.byID))
	for _, r := range f.byID {
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeRubrics) Clone(_ context.Context, id string, o model.RubricOverrides) (model.Rubric, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.byID[id]
	if !ok {
		return model.Rubric{}, model.ErrNotFound
	}
	out := r.Derive("clone-of-"+id, o, time.Unix(0, 0))
	f.byID[out.ID] = out
	return out, nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []model.ScoreChanged
	err    error
}

func (p *fakePublisher) Publish(_ context.Context, ev model.ScoreChanged) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, ev)
	return nil
}

func ptr(v float64) *float64 { return &v }
