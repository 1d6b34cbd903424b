package scoring

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/okian/arena/internal/domain/model"
	"github.com/okian/arena/pkg/logger"
	"github.com/okian/arena/pkg/metrics"
)

// ScoreWriter is the score store surface the submission service needs.
type ScoreWriter interface {
	Create(ctx context.Context, s model.Score) error
	Update(ctx context.Context, s model.Score) error
	GetBySubmissionAndJudge(ctx context.Context, submissionID, judgeID string) (*model.Score, error)
}

// RubricSource resolves a rubric by id.
type RubricSource interface {
	GetByID(ctx context.Context, id string) (*model.Rubric, error)
}

// Publisher announces that a score was written.
type Publisher interface {
	Publish(ctx context.Context, ev model.ScoreChanged) error
}

// ScoreInput is one judge action on a submission.
type ScoreInput struct {
	SubmissionID string                          `json:"submission_id"`
	JudgeID      string                          `json:"judge_id"`
	RubricID     string                          `json:"rubric_id,omitempty"`
	Values       map[string]model.CriterionValue `json:"values"`
	Comments     string                          `json:"comments,omitempty"`
}

// ServiceOption applies a configuration option to the Service.
type ServiceOption func(*Service)

// WithPublisher sets where score changes are announced.
func WithPublisher(p Publisher) ServiceOption {
	return func(s *Service) { s.publisher = p }
}

// WithServiceLogger sets the logger used by the Service.
func WithServiceLogger(l logger.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// Service records judge scores.
type Service struct {
	scores      ScoreWriter
	submissions SubmissionSource
	rubrics     RubricSource
	publisher   Publisher
	log         logger.Logger
	now         func() time.Time
}

// NewService creates a score submission service.
func NewService(scores ScoreWriter, submissions SubmissionSource, rubrics RubricSource, opts ...ServiceOption) *Service {
	s := &Service{
		scores:      scores,
		submissions: submissions,
		rubrics:     rubrics,
		log:         logger.Get().Named("scoring"),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit validates a judge's values and stores them as that judge's single
// active score for the submission, creating it on first use and updating it
// in place afterwards. With a rubric the weighted total is computed; without
// one the score carries no total.
func (s *Service) Submit(ctx context.Context, in ScoreInput) (model.Score, error) {
	if in.SubmissionID == "" || in.JudgeID == "" {
		metrics.RecordScoreRejected("missing_reference")
		return model.Score{}, fmt.Errorf("%w: submission_id and judge_id are required", ErrInvalidScore)
	}

	sub, err := s.submissions.GetByID(ctx, in.SubmissionID)
	if err != nil {
		return model.Score{}, fmt.Errorf("load submission %s: %w", in.SubmissionID, err)
	}
	if sub == nil {
		return model.Score{}, fmt.Errorf("submission %s: %w", in.SubmissionID, model.ErrNotFound)
	}

	var total *float64
	if in.RubricID != "" {
		rubric, err := s.rubrics.GetByID(ctx, in.RubricID)
		if err != nil {
			return model.Score{}, fmt.Errorf("load rubric %s: %w", in.RubricID, err)
		}
		if rubric == nil {
			return model.Score{}, fmt.Errorf("rubric %s: %w", in.RubricID, model.ErrNotFound)
		}
		if err := ValidateValues(*rubric, in.Values); err != nil {
			metrics.RecordScoreRejected("validation")
			return model.Score{}, err
		}
		t := WeightedTotal(*rubric, in.Values)
		total = &t
	}

	values := make(map[string]model.CriterionValue, len(in.Values))
	for k, v := range in.Values {
		values[k] = v
	}

	now := s.now().UTC()
	existing, err := s.scores.GetBySubmissionAndJudge(ctx, in.SubmissionID, in.JudgeID)
	if err != nil {
		return model.Score{}, fmt.Errorf("load existing score: %w", err)
	}

	var out model.Score
	action := "update"
	if existing != nil {
		out = *existing
		out.Values = values
		out.Comments = in.Comments
		out.RubricID = in.RubricID
		out.Total = total
		out.UpdatedAt = now
		if err := s.scores.Update(ctx, out); err != nil {
			return model.Score{}, fmt.Errorf("update score: %w", err)
		}
	} else {
		action = "create"
		out = model.Score{
			ID:           uuid.NewString(),
			SubmissionID: sub.ID,
			JudgeID:      in.JudgeID,
			EventID:      sub.EventID,
			RubricID:     in.RubricID,
			Values:       values,
			Comments:     in.Comments,
			Total:        total,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := s.scores.Create(ctx, out); err != nil {
			return model.Score{}, fmt.Errorf("create score: %w", err)
		}
	}
	metrics.RecordScoreSubmitted(action)

	s.announce(ctx, out)
	s.log.Info(ctx, "score recorded",
		logger.String("action", action),
		logger.String("score_id", out.ID),
		logger.String("submission_id", out.SubmissionID),
		logger.String("judge_id", out.JudgeID),
		logger.Bool("has_total", out.HasTotal()),
	)
	return out, nil
}

// announce publishes the change. The score is already durable, so a failed
// publish only delays live listeners until the next change.
func (s *Service) announce(ctx context.Context, sc model.Score) {
	if s.publisher == nil {
		return
	}
	ev := model.ScoreChanged{
		ScoreID:      sc.ID,
		SubmissionID: sc.SubmissionID,
		EventID:      sc.EventID,
		JudgeID:      sc.JudgeID,
		At:           sc.UpdatedAt,
	}
	if err := s.publisher.Publish(ctx, ev); err != nil {
		metrics.RecordNotificationDropped()
		metrics.RecordErrorByComponent("scoring", "publish")
		s.log.Warn(ctx, "score change not published", logger.String("score_id", sc.ID), logger.Error(err))
	}
}
