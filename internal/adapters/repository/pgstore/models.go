package pgstore

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/okian/arena/internal/domain/model"
)

type eventRow struct {
	bun.BaseModel `bun:"table:events,alias:ev"`

	ID      string `bun:"id,pk"`
	Title   string `bun:"title,notnull"`
	GroupID string `bun:"group_id"`
}

type teamRow struct {
	bun.BaseModel `bun:"table:teams,alias:tm"`

	ID      string `bun:"id,pk"`
	Name    string `bun:"name,notnull"`
	GroupID string `bun:"group_id"`
}

type memberRow struct {
	bun.BaseModel `bun:"table:members,alias:mb"`

	ID   string `bun:"id,pk"`
	Name string `bun:"name,notnull"`
}

type submissionRow struct {
	bun.BaseModel `bun:"table:submissions,alias:sub"`

	ID          string     `bun:"id,pk"`
	EventID     string     `bun:"event_id,notnull"`
	TeamID      string     `bun:"team_id"`
	SubmittedBy string     `bun:"submitted_by"`
	Status      string     `bun:"status,notnull"`
	CreatedAt   time.Time  `bun:"created_at,notnull"`
	SubmittedAt *time.Time `bun:"submitted_at"`
}

// scoreRow holds one judge's score. (submission_id, judge_id) is unique.
type scoreRow struct {
	bun.BaseModel `bun:"table:scores,alias:sc"`

	ID           string                          `bun:"id,pk"`
	SubmissionID string                          `bun:"submission_id,notnull,unique:scores_submission_judge"`
	JudgeID      string                          `bun:"judge_id,notnull,unique:scores_submission_judge"`
	EventID      string                          `bun:"event_id,notnull"`
	RubricID     string                          `bun:"rubric_id"`
	Values       map[string]model.CriterionValue `bun:"criterion_values,type:jsonb"`
	Comments     string                          `bun:"comments"`
	Total        *float64                        `bun:"total"`
	CreatedAt    time.Time                       `bun:"created_at,notnull"`
	UpdatedAt    time.Time                       `bun:"updated_at,notnull"`
}

type rubricRow struct {
	bun.BaseModel `bun:"table:rubrics,alias:rb"`

	ID          string            `bun:"id,pk"`
	Name        string            `bun:"name,notnull"`
	Description string            `bun:"description"`
	Criteria    []model.Criterion `bun:"criteria,type:jsonb,notnull"`
	EventID     string            `bun:"event_id"`
	GroupID     string            `bun:"group_id"`
	IsTemplate  bool              `bun:"is_template,notnull,default:false"`
	CreatedBy   string            `bun:"created_by"`
	CreatedAt   time.Time         `bun:"created_at,notnull"`
}

func (r submissionRow) toModel() model.Submission {
	return model.Submission{
		ID:          r.ID,
		EventID:     r.EventID,
		TeamID:      r.TeamID,
		SubmittedBy: r.SubmittedBy,
		Status:      model.SubmissionStatus(r.Status),
		CreatedAt:   r.CreatedAt.UTC(),
		SubmittedAt: r.SubmittedAt,
	}
}

func fromScore(s model.Score) *scoreRow {
	return &scoreRow{
		ID:           s.ID,
		SubmissionID: s.SubmissionID,
		JudgeID:      s.JudgeID,
		EventID:      s.EventID,
		RubricID:     s.RubricID,
		Values:       s.Values,
		Comments:     s.Comments,
		Total:        s.Total,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
}

func (r scoreRow) toModel() model.Score {
	return model.Score{
		ID:           r.ID,
		SubmissionID: r.SubmissionID,
		JudgeID:      r.JudgeID,
		EventID:      r.EventID,
		RubricID:     r.RubricID,
		Values:       r.Values,
		Comments:     r.Comments,
		Total:        r.Total,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
}

func fromRubric(r model.Rubric) *rubricRow {
	return &rubricRow{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Criteria:    r.Criteria,
		EventID:     r.EventID,
		GroupID:     r.GroupID,
		IsTemplate:  r.IsTemplate,
		CreatedBy:   r.CreatedBy,
		CreatedAt:   r.CreatedAt,
	}
}

func (r rubricRow) toModel() model.Rubric {
	return model.Rubric{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Criteria:    r.Criteria,
		EventID:     r.EventID,
		GroupID:     r.GroupID,
		IsTemplate:  r.IsTemplate,
		CreatedBy:   r.CreatedBy,
		CreatedAt:   r.CreatedAt.UTC(),
	}
}
