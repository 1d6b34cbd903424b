package repository

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/okian/arena/internal/domain/model"
	"github.com/okian/arena/internal/domain/scoring"
)

// Seed is a fixture file of reference data and scores.
type Seed struct {
	Events      []model.Event    `yaml:"events"`
	Teams       []model.Team     `yaml:"teams"`
	Members     []model.Member   `yaml:"members"`
	Rubrics     []seedRubric     `yaml:"rubrics"`
	Submissions []seedSubmission `yaml:"submissions"`
	Scores      []seedScore      `yaml:"scores"`
}

type seedCriterion struct {
	Key      string   `yaml:"key"`
	Label    string   `yaml:"label"`
	Kind     string   `yaml:"kind"`
	Required bool     `yaml:"required"`
	Min      *float64 `yaml:"min"`
	Max      *float64 `yaml:"max"`
	Options  []string `yaml:"options"`
	Weight   float64  `yaml:"weight"`
}

type seedRubric struct {
	ID          string          `yaml:"id"`
	Name        string          `yaml:"name"`
	Description string          `yaml:"description"`
	EventID     string          `yaml:"event_id"`
	GroupID     string          `yaml:"group_id"`
	IsTemplate  bool            `yaml:"is_template"`
	Criteria    []seedCriterion `yaml:"criteria"`
}

type seedSubmission struct {
	ID          string     `yaml:"id"`
	EventID     string     `yaml:"event_id"`
	TeamID      string     `yaml:"team_id"`
	SubmittedBy string     `yaml:"submitted_by"`
	Status      string     `yaml:"status"`
	CreatedAt   time.Time  `yaml:"created_at"`
	SubmittedAt *time.Time `yaml:"submitted_at"`
}

type seedScore struct {
	ID           string         `yaml:"id"`
	SubmissionID string         `yaml:"submission_id"`
	JudgeID      string         `yaml:"judge_id"`
	RubricID     string         `yaml:"rubric_id"`
	Values       map[string]any `yaml:"values"`
	Comments     string         `yaml:"comments"`
	Total        *float64       `yaml:"total"`
	UpdatedAt    time.Time      `yaml:"updated_at"`
}

// LoadSeedFile reads a seed file from disk.
func LoadSeedFile(path string) (*Seed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()
	return LoadSeed(f)
}

// LoadSeed decodes a YAML seed document.
func LoadSeed(r io.Reader) (*Seed, error) {
	var s Seed
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil && err != io.EOF {
		return nil, fmt.Errorf("%w: %w", ErrBadSeed, err)
	}
	return &s, nil
}

// Apply writes the seed into store. Scores naming a rubric get their
// weighted total when the file does not give one. Applying twice is safe.
func (s *Seed) Apply(ctx context.Context, store Store) error {
	for _, e := range s.Events {
		if err := store.PutEvent(ctx, e); err != nil {
			return err
		}
	}
	for _, t := range s.Teams {
		if err := store.PutTeam(ctx, t); err != nil {
			return err
		}
	}
	for _, m := range s.Members {
		if err := store.PutMember(ctx, m); err != nil {
			return err
		}
	}

	rubrics := make(map[string]model.Rubric, len(s.Rubrics))
	for _, sr := range s.Rubrics {
		r := sr.toModel()
		if err := scoring.ValidateRubric(r); err != nil {
			return fmt.Errorf("%w: rubric %s: %w", ErrBadSeed, r.ID, err)
		}
		if err := store.Rubrics().Create(ctx, r); err != nil && !errors.Is(err, ErrConflict) {
			return err
		}
		rubrics[r.ID] = r
	}

	for _, ss := range s.Submissions {
		sub := model.Submission{
			ID:          ss.ID,
			EventID:     ss.EventID,
			TeamID:      ss.TeamID,
			SubmittedBy: ss.SubmittedBy,
			Status:      model.SubmissionStatus(ss.Status),
			CreatedAt:   ss.CreatedAt.UTC(),
			SubmittedAt: ss.SubmittedAt,
		}
		if err := store.PutSubmission(ctx, sub); err != nil {
			return fmt.Errorf("%w: %w", ErrBadSeed, err)
		}
	}

	for i, sc := range s.Scores {
		score, err := sc.toModel(ctx, store, rubrics)
		if err != nil {
			return fmt.Errorf("%w: score %d: %w", ErrBadSeed, i, err)
		}
		if err := store.Scores().Create(ctx, score); err != nil {
			return err
		}
	}
	return nil
}

func (sr seedRubric) toModel() model.Rubric {
	r := model.Rubric{
		ID:          sr.ID,
		Name:        sr.Name,
		Description: sr.Description,
		EventID:     sr.EventID,
		GroupID:     sr.GroupID,
		IsTemplate:  sr.IsTemplate,
		Criteria:    make([]model.Criterion, len(sr.Criteria)),
	}
	for i, c := range sr.Criteria {
		w := c.Weight
		if w == 0 {
			w = 1
		}
		r.Criteria[i] = model.Criterion{
			Key: c.Key, Label: c.Label, Kind: model.ValueKind(c.Kind), Required: c.Required,
			Min: c.Min, Max: c.Max, Options: c.Options, Weight: w,
		}
	}
	return r
}

func (sc seedScore) toModel(ctx context.Context, store Store, rubrics map[string]model.Rubric) (model.Score, error) {
	sub, err := store.Submissions().GetByID(ctx, sc.SubmissionID)
	if err != nil {
		return model.Score{}, err
	}
	values := make(map[string]model.CriterionValue, len(sc.Values))
	for k, raw := range sc.Values {
		v, err := model.ValueOf(raw)
		if err != nil {
			return model.Score{}, fmt.Errorf("value %q: %w", k, err)
		}
		values[k] = v
	}

	total := sc.Total
	if sc.RubricID != "" && total == nil {
		r, ok := rubrics[sc.RubricID]
		if !ok {
			return model.Score{}, fmt.Errorf("rubric %s: %w", sc.RubricID, ErrNotFound)
		}
		if err := scoring.ValidateValues(r, values); err != nil {
			return model.Score{}, err
		}
		t := scoring.WeightedTotal(r, values)
		total = &t
	}

	at := sc.UpdatedAt.UTC()
	if at.IsZero() {
		at = sub.EffectiveTime()
	}
	id := sc.ID
	if id == "" {
		id = fmt.Sprintf("%s:%s", sc.SubmissionID, sc.JudgeID)
	}
	return model.Score{
		ID:           id,
		SubmissionID: sub.ID,
		JudgeID:      sc.JudgeID,
		EventID:      sub.EventID,
		RubricID:     sc.RubricID,
		Values:       values,
		Comments:     sc.Comments,
		Total:        total,
		CreatedAt:    at,
		UpdatedAt:    at,
	}, nil
}
