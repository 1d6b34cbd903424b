package scoring

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/okian/arena/internal/domain/model"
	"github.com/okian/arena/pkg/logger"
)

// RubricStore persists rubrics.
type RubricStore interface {
	Create(ctx context.Context, r model.Rubric) error
	GetByID(ctx context.Context, id string) (*model.Rubric, error)
	List(ctx context.Context, f model.RubricFilter) ([]model.Rubric, error)
	Clone(ctx context.Context, id string, o model.RubricOverrides) (model.Rubric, error)
}

// RubricService manages scoring rubrics.
type RubricService struct {
	store RubricStore
	log   logger.Logger
	now   func() time.Time
}

// NewRubricService creates a RubricService.
func NewRubricService(store RubricStore, l logger.Logger) *RubricService {
	if l == nil {
		l = logger.Get().Named("rubrics")
	}
	return &RubricService{store: store, log: l, now: time.Now}
}

// Create validates and stores a rubric. Missing ids are generated and
// criteria without a weight count once.
func (s *RubricService) Create(ctx context.Context, r model.Rubric) (model.Rubric, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now().UTC()
	}
	r.Criteria = append([]model.Criterion(nil), r.Criteria...)
	for i := range r.Criteria {
		if r.Criteria[i].Weight == 0 {
			r.Criteria[i].Weight = 1
		}
	}
	if err := ValidateRubric(r); err != nil {
		return model.Rubric{}, err
	}
	if err := s.store.Create(ctx, r); err != nil {
		return model.Rubric{}, fmt.Errorf("create rubric: %w", err)
	}
	s.log.Info(ctx, "rubric created", logger.String("rubric_id", r.ID), logger.Int("criteria", len(r.Criteria)))
	return r, nil
}

// Get returns a rubric or model.ErrNotFound.
func (s *RubricService) Get(ctx context.Context, id string) (model.Rubric, error) {
	r, err := s.store.GetByID(ctx, id)
	if err != nil {
		return model.Rubric{}, fmt.Errorf("load rubric %s: %w", id, err)
	}
	if r == nil {
		return model.Rubric{}, fmt.Errorf("rubric %s: %w", id, model.ErrNotFound)
	}
	return *r, nil
}

// List returns one page of rubrics matching f.
func (s *RubricService) List(ctx context.Context, f model.RubricFilter) ([]model.Rubric, error) {
	if f.Limit < 0 || f.Offset < 0 {
		return nil, fmt.Errorf("%w: negative limit or offset", ErrInvalidRubric)
	}
	out, err := s.store.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list rubrics: %w", err)
	}
	return out, nil
}

// Clone copies a rubric under a new id with the overrides applied.
func (s *RubricService) Clone(ctx context.Context, id string, o model.RubricOverrides) (model.Rubric, error) {
	out, err := s.store.Clone(ctx, id, o)
	if err != nil {
		return model.Rubric{}, fmt.Errorf("clone rubric %s: %w", id, err)
	}
	s.log.Info(ctx, "rubric cloned", logger.String("source_id", id), logger.String("rubric_id", out.ID))
	return out, nil
}
